// Package session implements the coordination engine: the session lifecycle
// state machine, the paint submission pipeline, prompt consensus, and
// finalization. The engine serializes writers per session with an in-memory
// lock, keeps the revision ledger per session, and drives phase transitions
// from the wall-clock scheduler.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/easelhq/easel/internal/canvasstore"
	"github.com/easelhq/easel/internal/captcha"
	"github.com/easelhq/easel/internal/clock"
	"github.com/easelhq/easel/internal/config"
	"github.com/easelhq/easel/internal/economy"
	"github.com/easelhq/easel/internal/ledger"
	"github.com/easelhq/easel/internal/promptfilter"
	"github.com/easelhq/easel/internal/settle"
	"github.com/easelhq/easel/pkg/board"
)

// Engine is the core coordinator. One engine instance owns every session of
// its easel instance; writers on the same session are serialized through a
// per-session lock, writers on different sessions proceed independently.
type Engine struct {
	boardClient  *board.Client
	canvases     *canvasstore.Client
	scheduler    clock.Scheduler
	settlement   settle.Ledger
	wordFilter   promptfilter.Filter
	gate         captcha.Gate
	cfg          *config.EngineConfig
	defaults     economy.Defaults
	replenish    economy.ReplenishPolicy
	rng          *rand.Rand
	instanceName string
	healthServer *HealthServer

	mu       sync.Mutex
	runCtx   context.Context
	sessions map[string]*sessionState
}

// sessionState is the engine's in-memory per-session state. The ledger ring
// is rebuilt empty after a restart, which only narrows acceptance to
// current-revision claims until new edits repopulate it.
type sessionState struct {
	lock chan struct{}
	ring *ledger.Ring
}

// NewEngine wires the engine's collaborators. The scheduler, settlement
// ledger, word filter, and challenge gate are contracts so tests and
// deployments can substitute them.
func NewEngine(
	boardClient *board.Client,
	canvases *canvasstore.Client,
	scheduler clock.Scheduler,
	settlement settle.Ledger,
	wordFilter promptfilter.Filter,
	gate captcha.Gate,
	cfg *config.EngineConfig,
	rng *rand.Rand,
	instanceName string,
) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if wordFilter == nil {
		wordFilter = promptfilter.AllowAll
	}
	if gate == nil {
		gate = captcha.Open{}
	}

	replenish, err := economy.PolicyFor(cfg.Paint.ReplenishPolicy, *cfg.Paint.IterationPaint)
	if err != nil {
		return nil, fmt.Errorf("invalid replenish policy: %w", err)
	}

	e := &Engine{
		boardClient: boardClient,
		canvases:    canvases,
		scheduler:   scheduler,
		settlement:  settlement,
		wordFilter:  wordFilter,
		gate:        gate,
		cfg:         cfg,
		defaults: economy.Defaults{
			Base:            *cfg.Paint.Default,
			Verified:        *cfg.Paint.Verified,
			VIP:             *cfg.Paint.VIP,
			InvitationBonus: *cfg.Paint.InvitationBonus,
			IterationPaint:  *cfg.Paint.IterationPaint,
		},
		replenish:    replenish,
		rng:          rng,
		instanceName: instanceName,
		runCtx:       context.Background(),
		sessions:     make(map[string]*sessionState),
	}
	e.healthServer = NewHealthServer(boardClient, e.sessionCount)
	return e, nil
}

// sessionCount reports how many sessions currently hold in-memory state.
func (e *Engine) sessionCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.sessions)
}

// state returns (creating if needed) the in-memory state for a session.
func (e *Engine) state(sessionHash string) *sessionState {
	e.mu.Lock()
	defer e.mu.Unlock()

	st, ok := e.sessions[sessionHash]
	if !ok {
		st = &sessionState{
			lock: make(chan struct{}, 1),
			ring: ledger.NewRing(*e.cfg.Ledger.Capacity, *e.cfg.Ledger.ConflictRadius),
		}
		e.sessions[sessionHash] = st
	}
	return st
}

// forgetState drops the in-memory state for a hash that turned out not to
// name a session, so requests carrying garbage hashes cannot grow the
// registry without bound.
func (e *Engine) forgetState(sessionHash string) {
	e.mu.Lock()
	delete(e.sessions, sessionHash)
	e.mu.Unlock()
}

var errSessionBusy = errors.New("session busy")

// lockSession acquires a session's write lock with bounded exponential
// backoff. A session held past the retry budget surfaces as an internal
// error rather than blocking the caller forever.
func (e *Engine) lockSession(ctx context.Context, sessionHash string) (*sessionState, error) {
	st := e.state(sessionHash)

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = 50 * time.Millisecond
	policy.MaxElapsedTime = 10 * time.Second

	err := backoff.Retry(func() error {
		select {
		case st.lock <- struct{}{}:
			return nil
		default:
			return errSessionBusy
		}
	}, backoff.WithContext(policy, ctx))
	if err != nil {
		return nil, fmt.Errorf("session %s lock not acquired: %w", sessionHash, board.ErrInternal)
	}
	return st, nil
}

func (e *Engine) unlockSession(st *sessionState) {
	<-st.lock
}

// consensusThreshold computes the number of matching prompt submissions
// required to open painting. Scales with canvas area so bigger canvases
// demand broader agreement; the configured minimum keeps small canvases
// from reaching consensus on a single voice.
func (e *Engine) consensusThreshold(area int) int {
	threshold := int(math.Round(
		math.Log2(float64(area)) * float64(area) / 16384 * float64(*e.cfg.Session.ConsensusMultiplier)))
	if threshold < *e.cfg.Session.ConsensusMinimum {
		threshold = *e.cfg.Session.ConsensusMinimum
	}
	return threshold
}

// checkGate rejects identities that have not cleared the challenge gate.
func (e *Engine) checkGate(identity string) error {
	if !e.gate.Passed(identity) {
		return fmt.Errorf("identity %s has not passed the challenge gate: %w", identity, board.ErrUnauthorized)
	}
	return nil
}

// initialBalance resolves an identity's starting paint from its account
// metrics; unknown identities get the base tier.
func (e *Engine) initialBalance(ctx context.Context, identity string) (int, error) {
	user, err := e.boardClient.GetUser(ctx, identity)
	if board.IsNotFound(err) {
		return e.defaults.InitialBalance(board.UserMetrics{Identity: identity}), nil
	}
	if err != nil {
		return 0, err
	}
	return e.defaults.InitialBalance(*user), nil
}

// logEvent emits a structured JSON log line for machine consumption.
func (e *Engine) logEvent(eventType string, data map[string]interface{}) {
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339)
	data["level"] = "info"
	data["component"] = "engine"
	data["event_type"] = eventType
	data["instance"] = e.instanceName

	jsonData, err := json.Marshal(data)
	if err != nil {
		log.Printf("[Engine] Failed to marshal log event: %v", err)
		return
	}

	log.Println(string(jsonData))
}
