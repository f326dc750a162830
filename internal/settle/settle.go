// Package settle records the value owed to contributors of finished
// sessions. The engine only talks to the Ledger contract; the stock
// implementation keeps transactions in Redis next to the rest of the
// instance state. Actual payment rails live behind whatever consumes the
// pending-transaction listing.
package settle

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/easelhq/easel/pkg/board"
)

// Payout is one identity's settled share of a finished session.
type Payout struct {
	Identity string
	Amount   int
}

// Transaction is a recorded payout awaiting withdrawal.
type Transaction struct {
	ID       string
	Identity string
	Amount   int
	// Message carries the artifact digest the payout derives from.
	Message   string
	CreatedAt int64
}

// Ledger is the settlement contract the session engine depends on.
type Ledger interface {
	// Submit records a finalized artifact and its total settled value,
	// returning a settlement transaction id.
	Submit(ctx context.Context, artifactDigest string, value int) (string, error)
	// RecordPayouts persists per-identity payout transactions referencing
	// an artifact digest. Zero-amount payouts are skipped. Recording the
	// same artifact twice is a no-op returning no transactions.
	RecordPayouts(ctx context.Context, artifactDigest string, payouts []Payout, now int64) ([]Transaction, error)
}

// Client is the Redis-backed Ledger.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient connects the settlement ledger to Redis.
func NewClient(opts *redis.Options, instanceName string) (*Client, error) {
	if instanceName == "" {
		return nil, fmt.Errorf("instance name cannot be empty")
	}
	return &Client{rdb: redis.NewClient(opts), instanceName: instanceName}, nil
}

// Close releases the Redis connection.
func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) txKey(id string) string {
	return fmt.Sprintf("easel:%s:tx:%s", c.instanceName, id)
}

func (c *Client) identityIndexKey(identity string) string {
	return fmt.Sprintf("easel:%s:txs:%s", c.instanceName, identity)
}

func (c *Client) submissionKey(artifactDigest string) string {
	return fmt.Sprintf("easel:%s:settlement:%s", c.instanceName, artifactDigest)
}

// Submit records a finalized artifact's total settled value. Submitting
// the same artifact twice returns the original transaction id, keeping
// finalization idempotent across engine restarts.
func (c *Client) Submit(ctx context.Context, artifactDigest string, value int) (string, error) {
	if !board.IsValidDigest(artifactDigest) {
		return "", fmt.Errorf("invalid artifact digest %q: %w", artifactDigest, board.ErrInvalidInput)
	}

	id := uuid.New().String()
	key := c.submissionKey(artifactDigest)

	set, err := c.rdb.HSetNX(ctx, key, "id", id).Result()
	if err != nil {
		return "", fmt.Errorf("failed to record settlement: %w", err)
	}
	if !set {
		existing, err := c.rdb.HGet(ctx, key, "id").Result()
		if err != nil {
			return "", fmt.Errorf("failed to load settlement: %w", err)
		}
		return existing, nil
	}

	if err := c.rdb.HSet(ctx, key, "value", strconv.Itoa(value)).Err(); err != nil {
		return "", fmt.Errorf("failed to record settlement value: %w", err)
	}
	return id, nil
}

// RecordPayouts persists one transaction per non-zero payout. An artifact's
// payouts are recorded at most once: a second call for the same digest is a
// no-op, so a finalization that re-enters after a crash cannot double-pay
// contributors.
func (c *Client) RecordPayouts(ctx context.Context, artifactDigest string, payouts []Payout, now int64) ([]Transaction, error) {
	if !board.IsValidDigest(artifactDigest) {
		return nil, fmt.Errorf("invalid artifact digest %q: %w", artifactDigest, board.ErrInvalidInput)
	}

	key := c.submissionKey(artifactDigest)
	done, err := c.rdb.HExists(ctx, key, "payouts").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to check settlement: %w", err)
	}
	if done {
		return nil, nil
	}

	recorded := make([]Transaction, 0, len(payouts))
	pipe := c.rdb.TxPipeline()
	for _, p := range payouts {
		if p.Amount <= 0 {
			continue
		}
		if !board.IsValidIdentity(p.Identity) {
			return nil, fmt.Errorf("invalid payout identity %q: %w", p.Identity, board.ErrInvalidInput)
		}

		tx := Transaction{
			ID:        uuid.New().String(),
			Identity:  p.Identity,
			Amount:    p.Amount,
			Message:   artifactDigest,
			CreatedAt: now,
		}
		pipe.HSet(ctx, c.txKey(tx.ID), map[string]interface{}{
			"id":         tx.ID,
			"identity":   tx.Identity,
			"amount":     strconv.Itoa(tx.Amount),
			"message":    tx.Message,
			"created_at": strconv.FormatInt(tx.CreatedAt, 10),
		})
		pipe.RPush(ctx, c.identityIndexKey(tx.Identity), tx.ID)
		recorded = append(recorded, tx)
	}

	// The marker lands in the same transaction as the payouts, so a crash
	// mid-record leaves neither.
	pipe.HSet(ctx, key, "payouts", strconv.Itoa(len(recorded)))

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to record payouts: %w", err)
	}
	return recorded, nil
}

// Pending lists an identity's recorded transactions in insertion order.
func (c *Client) Pending(ctx context.Context, identity string) ([]Transaction, error) {
	if !board.IsValidIdentity(identity) {
		return nil, fmt.Errorf("invalid identity %q: %w", identity, board.ErrInvalidInput)
	}

	ids, err := c.rdb.LRange(ctx, c.identityIndexKey(identity), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}

	out := make([]Transaction, 0, len(ids))
	for _, id := range ids {
		fields, err := c.rdb.HGetAll(ctx, c.txKey(id)).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to load transaction %s: %w", id, err)
		}
		if len(fields) == 0 {
			continue
		}

		amount, err := strconv.Atoi(fields["amount"])
		if err != nil {
			return nil, fmt.Errorf("corrupt transaction %s: %w", id, err)
		}
		createdAt, err := strconv.ParseInt(fields["created_at"], 10, 64)
		if err != nil {
			return nil, fmt.Errorf("corrupt transaction %s: %w", id, err)
		}

		out = append(out, Transaction{
			ID:        fields["id"],
			Identity:  fields["identity"],
			Amount:    amount,
			Message:   fields["message"],
			CreatedAt: createdAt,
		})
	}
	return out, nil
}
