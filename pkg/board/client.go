package board

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/redis/go-redis/v9"
)

// Client provides instance-scoped Redis operations for the session board.
// All keys and channels are automatically namespaced with the instance name.
// The client is thread-safe and can be used concurrently from multiple
// goroutines.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a new board client for the specified instance.
// The client automatically namespaces all keys and channels with the
// instance name. Returns an error if instanceName is empty.
func NewClient(redisOpts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}

	return &Client{
		rdb:          redis.NewClient(redisOpts),
		instanceName: instanceName,
	}, nil
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CreateSession writes a session to Redis, adds it to the creation-order
// index, and publishes a lifecycle event. Validates the session first.
// Idempotent: writing the same session twice is safe.
func (c *Client) CreateSession(ctx context.Context, s *Session) error {
	if err := s.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	hash, err := SessionToHash(s)
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	key := SessionKey(c.instanceName, s.Hash)
	pipe := c.rdb.TxPipeline()
	pipe.HSet(ctx, key, hash)
	pipe.ZAdd(ctx, SessionIndexKey(c.instanceName), redis.Z{
		Score:  float64(s.CreatedAt),
		Member: s.Hash,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to write session to Redis: %w", err)
	}

	c.publishSessionEvent(ctx, s, "created")
	return nil
}

// GetSession retrieves a session by its hash.
// Returns an error wrapping ErrNotFound if the session doesn't exist.
func (c *Client) GetSession(ctx context.Context, sessionHash string) (*Session, error) {
	key := SessionKey(c.instanceName, sessionHash)

	hashData, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session from Redis: %w", err)
	}

	// HGetAll returns an empty map for non-existent keys.
	if len(hashData) == 0 {
		return nil, fmt.Errorf("session %s: %w", sessionHash, ErrNotFound)
	}

	session, err := HashToSession(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}

	return session, nil
}

// ListActive returns all sessions that have not finalized, newest first.
func (c *Client) ListActive(ctx context.Context) ([]*Session, error) {
	sessions, err := c.listSessions(ctx, 0, -1)
	if err != nil {
		return nil, err
	}

	active := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Iteration < s.MaxIterations {
			active = append(active, s)
		}
	}
	return active, nil
}

// ListArchived returns finalized sessions, newest first, paginated.
func (c *Client) ListArchived(ctx context.Context, limit, offset int) ([]*Session, error) {
	sessions, err := c.listSessions(ctx, 0, -1)
	if err != nil {
		return nil, err
	}

	archived := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Iteration >= s.MaxIterations {
			archived = append(archived, s)
		}
	}

	if offset >= len(archived) {
		return []*Session{}, nil
	}
	archived = archived[offset:]
	if limit > 0 && limit < len(archived) {
		archived = archived[:limit]
	}
	return archived, nil
}

// ListPromptSessions returns sessions still in the prompt phase, newest
// first. Used by the engine to decide whether to seed a fresh session.
func (c *Client) ListPromptSessions(ctx context.Context) ([]*Session, error) {
	sessions, err := c.listSessions(ctx, 0, -1)
	if err != nil {
		return nil, err
	}

	prompting := make([]*Session, 0, len(sessions))
	for _, s := range sessions {
		if s.Iteration == 0 {
			prompting = append(prompting, s)
		}
	}
	return prompting, nil
}

func (c *Client) listSessions(ctx context.Context, start, stop int64) ([]*Session, error) {
	hashes, err := c.rdb.ZRevRange(ctx, SessionIndexKey(c.instanceName), start, stop).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read session index: %w", err)
	}

	sessions := make([]*Session, 0, len(hashes))
	for _, h := range hashes {
		s, err := c.GetSession(ctx, h)
		if err != nil {
			if IsNotFound(err) {
				continue
			}
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// AdvanceIteration atomically swaps a session's iteration counter and the
// iteration start timestamp, then publishes a lifecycle event. This is the
// single mutation point for phase transitions.
func (c *Client) AdvanceIteration(ctx context.Context, sessionHash string, nextIteration int, startedAt int64) error {
	key := SessionKey(c.instanceName, sessionHash)
	if err := c.rdb.HSet(ctx, key,
		"iteration", nextIteration,
		"iteration_started_at", startedAt,
	).Err(); err != nil {
		return fmt.Errorf("failed to advance session iteration: %w", err)
	}

	s, err := c.GetSession(ctx, sessionHash)
	if err == nil {
		c.publishSessionEvent(ctx, s, "iteration_advanced")
	}
	return nil
}

// SetPrompt fixes a session's prompt text. When final is true the session
// simultaneously advances into the first painting iteration; the prompt is
// immutable from then on.
func (c *Client) SetPrompt(ctx context.Context, sessionHash, prompt string, final bool, startedAt int64) error {
	key := SessionKey(c.instanceName, sessionHash)
	fields := []interface{}{"prompt", prompt}
	if final {
		fields = append(fields, "iteration", 1, "iteration_started_at", startedAt)
	}
	if err := c.rdb.HSet(ctx, key, fields...).Err(); err != nil {
		return fmt.Errorf("failed to set session prompt: %w", err)
	}
	return nil
}

// PaintCommit bundles the state swapped by one accepted paint mutation.
// Everything in a commit is applied in a single Redis transaction so a
// submission is never partially visible: the activity append, the revision
// swap, the balance decrement, and the signature supersede succeed or fail
// together.
type PaintCommit struct {
	Activity    *Activity
	NewRevision string
	NewBalance  int
	Signature   string
}

// CommitPaint applies an accepted paint mutation and publishes the activity
// event. Validates the activity before writing.
func (c *Client) CommitPaint(ctx context.Context, sessionHash string, commit *PaintCommit) error {
	if err := commit.Activity.Validate(); err != nil {
		return fmt.Errorf("invalid activity: %w", err)
	}
	if !IsValidDigest(commit.NewRevision) {
		return fmt.Errorf("invalid new revision: not a 32-byte hex digest")
	}
	if commit.NewBalance < 0 {
		return fmt.Errorf("invalid balance: must not be negative, got %d", commit.NewBalance)
	}

	activityJSON, err := json.Marshal(commit.Activity)
	if err != nil {
		return fmt.Errorf("failed to marshal activity: %w", err)
	}

	pipe := c.rdb.TxPipeline()
	pipe.RPush(ctx, ActivityKey(c.instanceName, sessionHash), activityJSON)
	pipe.HSet(ctx, SessionKey(c.instanceName, sessionHash), "revision", commit.NewRevision)
	pipe.HSet(ctx, PaintKey(c.instanceName, sessionHash), commit.Activity.Identity, commit.NewBalance)
	pipe.HSet(ctx, SignatureKey(c.instanceName, sessionHash), commit.Activity.Identity, commit.Signature)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to commit paint mutation: %w", err)
	}

	if err := c.rdb.Publish(ctx, ActivityEventsChannel(c.instanceName), activityJSON).Err(); err != nil {
		return fmt.Errorf("failed to publish activity event: %w", err)
	}

	return nil
}

// ActivityLog returns a session's activity records in acceptance order.
// Pass an empty identity to fetch the full log, or an address to fetch one
// identity's own ordered history (the hash-chain input).
func (c *Client) ActivityLog(ctx context.Context, sessionHash, identity string) ([]Activity, error) {
	raw, err := c.rdb.LRange(ctx, ActivityKey(c.instanceName, sessionHash), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read activity log: %w", err)
	}

	log := make([]Activity, 0, len(raw))
	for _, entry := range raw {
		var a Activity
		if err := json.Unmarshal([]byte(entry), &a); err != nil {
			return nil, fmt.Errorf("failed to unmarshal activity record: %w", err)
		}
		if identity != "" && !strings.EqualFold(a.Identity, identity) {
			continue
		}
		log = append(log, a)
	}
	return log, nil
}

// PixelHistory returns the accepted edits at one cell, in acceptance order.
// Pass iteration < 0 for all iterations, or a specific iteration to scope
// the history (the paint cost function uses the current iteration only).
func (c *Client) PixelHistory(ctx context.Context, sessionHash string, positionIndex, iteration int) ([]Activity, error) {
	log, err := c.ActivityLog(ctx, sessionHash, "")
	if err != nil {
		return nil, err
	}

	history := make([]Activity, 0)
	for _, a := range log {
		if a.PositionIndex != positionIndex {
			continue
		}
		if iteration >= 0 && a.Iteration != iteration {
			continue
		}
		history = append(history, a)
	}
	return history, nil
}

// GetPaint returns an identity's paint balance for a session. The second
// return value reports whether a balance row exists yet; balances are
// created lazily on first spend.
func (c *Client) GetPaint(ctx context.Context, sessionHash, identity string) (int, bool, error) {
	raw, err := c.rdb.HGet(ctx, PaintKey(c.instanceName, sessionHash), identity).Result()
	if err == redis.Nil {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to read paint balance: %w", err)
	}

	balance, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false, fmt.Errorf("invalid paint balance %q: %w", raw, err)
	}
	return balance, true, nil
}

// SetPaint writes an identity's paint balance for a session.
func (c *Client) SetPaint(ctx context.Context, sessionHash, identity string, balance int) error {
	if balance < 0 {
		return fmt.Errorf("invalid balance: must not be negative, got %d", balance)
	}
	if err := c.rdb.HSet(ctx, PaintKey(c.instanceName, sessionHash), identity, balance).Err(); err != nil {
		return fmt.Errorf("failed to write paint balance: %w", err)
	}
	return nil
}

// ReplenishPaint rewrites every participant's balance for a session through
// the supplied function. Used at iteration boundaries; decoupled from the
// mutation path.
func (c *Client) ReplenishPaint(ctx context.Context, sessionHash string, replenish func(current int) int) error {
	key := PaintKey(c.instanceName, sessionHash)
	balances, err := c.rdb.HGetAll(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to read paint balances: %w", err)
	}
	if len(balances) == 0 {
		return nil
	}

	pipe := c.rdb.TxPipeline()
	for identity, raw := range balances {
		current, err := strconv.Atoi(raw)
		if err != nil {
			return fmt.Errorf("invalid paint balance %q for %s: %w", raw, identity, err)
		}
		pipe.HSet(ctx, key, identity, replenish(current))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to replenish paint balances: %w", err)
	}
	return nil
}

// GetSignature returns the latest chain signature stored for an identity in
// a session, or an error wrapping ErrNotFound if none exists yet.
func (c *Client) GetSignature(ctx context.Context, sessionHash, identity string) (string, error) {
	sig, err := c.rdb.HGet(ctx, SignatureKey(c.instanceName, sessionHash), identity).Result()
	if err == redis.Nil {
		return "", fmt.Errorf("signature for %s: %w", identity, ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read signature: %w", err)
	}
	return sig, nil
}

// Signatures returns all stored chain signatures for a session, keyed by
// identity. Used by the finalization encoder.
func (c *Client) Signatures(ctx context.Context, sessionHash string) (map[string]string, error) {
	sigs, err := c.rdb.HGetAll(ctx, SignatureKey(c.instanceName, sessionHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read signatures: %w", err)
	}
	return sigs, nil
}

// UpsertPrompt records or replaces an identity's prompt submission.
func (c *Client) UpsertPrompt(ctx context.Context, sessionHash string, entry *PromptEntry) error {
	if !IsValidIdentity(entry.Identity) {
		return fmt.Errorf("invalid prompt entry identity")
	}

	entryJSON, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal prompt entry: %w", err)
	}

	if err := c.rdb.HSet(ctx, PromptKey(c.instanceName, sessionHash), entry.Identity, entryJSON).Err(); err != nil {
		return fmt.Errorf("failed to write prompt entry: %w", err)
	}
	return nil
}

// DeletePrompts removes all prompt submissions for a session. Called once
// consensus locks the prompt in.
func (c *Client) DeletePrompts(ctx context.Context, sessionHash string) error {
	if err := c.rdb.Del(ctx, PromptKey(c.instanceName, sessionHash)).Err(); err != nil {
		return fmt.Errorf("failed to delete prompt entries: %w", err)
	}
	return nil
}

// PromptByIdentity returns an identity's current prompt submission text, or
// an empty string if none exists.
func (c *Client) PromptByIdentity(ctx context.Context, sessionHash, identity string) (string, error) {
	raw, err := c.rdb.HGet(ctx, PromptKey(c.instanceName, sessionHash), identity).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read prompt entry: %w", err)
	}

	var entry PromptEntry
	if err := json.Unmarshal([]byte(raw), &entry); err != nil {
		return "", fmt.Errorf("failed to unmarshal prompt entry: %w", err)
	}
	return entry.Text, nil
}

// PromptMatchCount returns how many existing submissions match the given
// text case-insensitively. The submitting identity's own pending entry is
// included if present.
func (c *Client) PromptMatchCount(ctx context.Context, sessionHash, text string) (int, error) {
	entries, err := c.promptEntries(ctx, sessionHash)
	if err != nil {
		return 0, err
	}

	target := strings.ToLower(strings.TrimSpace(text))
	count := 0
	for _, entry := range entries {
		if strings.ToLower(strings.TrimSpace(entry.Text)) == target {
			count++
		}
	}
	return count, nil
}

// PromptTallies returns the session's prompt submissions grouped
// case-insensitively, sorted by vote count descending. The display text of
// each group is the casing of its first-seen submission.
func (c *Client) PromptTallies(ctx context.Context, sessionHash string) ([]PromptTally, error) {
	entries, err := c.promptEntries(ctx, sessionHash)
	if err != nil {
		return nil, err
	}

	order := make([]string, 0)
	tallies := make(map[string]*PromptTally)
	for _, entry := range entries {
		token := strings.ToLower(strings.TrimSpace(entry.Text))
		if existing, ok := tallies[token]; ok {
			existing.Votes++
			continue
		}
		tallies[token] = &PromptTally{Text: entry.Text, Votes: 1}
		order = append(order, token)
	}

	result := make([]PromptTally, 0, len(tallies))
	for _, token := range order {
		result = append(result, *tallies[token])
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Votes > result[j].Votes
	})
	return result, nil
}

func (c *Client) promptEntries(ctx context.Context, sessionHash string) ([]PromptEntry, error) {
	raw, err := c.rdb.HGetAll(ctx, PromptKey(c.instanceName, sessionHash)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read prompt entries: %w", err)
	}

	entries := make([]PromptEntry, 0, len(raw))
	// Iterate identities in stable order so tallies are deterministic.
	identities := make([]string, 0, len(raw))
	for identity := range raw {
		identities = append(identities, identity)
	}
	sort.Strings(identities)

	for _, identity := range identities {
		var entry PromptEntry
		if err := json.Unmarshal([]byte(raw[identity]), &entry); err != nil {
			return nil, fmt.Errorf("failed to unmarshal prompt entry: %w", err)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// GetUser retrieves an identity's user metrics.
// Returns an error wrapping ErrNotFound if the identity has never cleared
// its challenge.
func (c *Client) GetUser(ctx context.Context, identity string) (*UserMetrics, error) {
	hashData, err := c.rdb.HGetAll(ctx, UserKey(c.instanceName, identity)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read user: %w", err)
	}
	if len(hashData) == 0 {
		return nil, fmt.Errorf("user %s: %w", identity, ErrNotFound)
	}

	user, err := HashToUser(hashData)
	if err != nil {
		return nil, fmt.Errorf("failed to deserialize user: %w", err)
	}
	return user, nil
}

// CreateUser writes an identity's user metrics. Validates first.
func (c *Client) CreateUser(ctx context.Context, u *UserMetrics) error {
	if err := u.Validate(); err != nil {
		return fmt.Errorf("invalid user: %w", err)
	}

	if err := c.rdb.HSet(ctx, UserKey(c.instanceName, u.Identity), UserToHash(u)).Err(); err != nil {
		return fmt.Errorf("failed to write user: %w", err)
	}
	return nil
}

// GetSequence returns an identity's current authorization sequence number.
// Identities that have never performed a sequenced mutation are at 0.
func (c *Client) GetSequence(ctx context.Context, identity string) (uint32, error) {
	raw, err := c.rdb.Get(ctx, SequenceKey(c.instanceName, identity)).Result()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read sequence: %w", err)
	}

	seq, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid sequence %q: %w", raw, err)
	}
	return uint32(seq), nil
}

// IncrSequence advances an identity's authorization sequence number after
// an accepted sequenced mutation.
func (c *Client) IncrSequence(ctx context.Context, identity string) error {
	if err := c.rdb.Incr(ctx, SequenceKey(c.instanceName, identity)).Err(); err != nil {
		return fmt.Errorf("failed to increment sequence: %w", err)
	}
	return nil
}

// Subscription represents an active Pub/Sub subscription to activity
// events. Caller must call Close() when done to clean up resources.
type Subscription struct {
	events <-chan *Activity
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of activity events.
// The channel is closed when the subscription is closed or the context is
// cancelled.
func (s *Subscription) Events() <-chan *Activity {
	return s.events
}

// Errors returns the channel of subscription errors.
// Errors include JSON unmarshaling failures and other non-fatal issues.
// The subscription continues after errors - messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription and cleans up resources. Implements
// io.Closer. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// SubscribeActivityEvents subscribes to accepted paint activity for this
// instance. Returns a Subscription that delivers full activity records.
// Caller must call subscription.Close() when done. Context cancellation
// also stops the subscription.
//
// Events are delivered on a buffered channel (size 10) to prevent blocking.
// If the subscriber is too slow, events may be dropped by Redis Pub/Sub
// (at-most-once delivery).
func (c *Client) SubscribeActivityEvents(ctx context.Context) (*Subscription, error) {
	pubsub := c.rdb.Subscribe(ctx, ActivityEventsChannel(c.instanceName))

	eventsChan := make(chan *Activity, 10)
	errorsChan := make(chan error, 10)

	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()

		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var activity Activity
				if err := json.Unmarshal([]byte(msg.Payload), &activity); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal activity event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- &activity:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

func (c *Client) publishSessionEvent(ctx context.Context, s *Session, eventType string) {
	payload, err := json.Marshal(map[string]interface{}{
		"event":     eventType,
		"hash":      s.Hash,
		"iteration": s.Iteration,
		"revision":  s.Revision,
		"phase":     string(s.Phase()),
	})
	if err != nil {
		return
	}
	// Lifecycle events are advisory; a publish failure must not fail the
	// state mutation that already committed.
	_ = c.rdb.Publish(ctx, SessionEventsChannel(c.instanceName), payload).Err()
}
