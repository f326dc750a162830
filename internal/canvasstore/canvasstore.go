// Package canvasstore provides content-addressed storage for whole-canvas
// byte buffers. Buffers are keyed by the 0x-prefixed hex sha256 digest of
// their contents and are append-immutable: a stored buffer is never edited
// in place, only written once and eventually deleted when its revision is
// evicted from a session's revision ledger.
package canvasstore

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/easelhq/easel/pkg/board"
)

// Client provides instance-scoped canvas buffer storage on Redis.
// Thread-safe.
type Client struct {
	rdb          *redis.Client
	instanceName string
}

// NewClient creates a canvas store client for the specified instance.
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

// Digest returns the content address of a buffer: the 0x-prefixed hex
// sha256 of its bytes.
func Digest(buffer []byte) string {
	sum := sha256.Sum256(buffer)
	return "0x" + hex.EncodeToString(sum[:])
}

// Put stores a buffer under its content address and returns the digest.
// Storing the same buffer twice is a no-op with the same digest.
func (c *Client) Put(ctx context.Context, buffer []byte) (string, error) {
	digest := Digest(buffer)
	if err := c.rdb.Set(ctx, c.key(digest), buffer, 0).Err(); err != nil {
		return "", fmt.Errorf("failed to store canvas buffer: %w", err)
	}
	return digest, nil
}

// Get retrieves a buffer by its digest.
// Returns an error wrapping board.ErrNotFound if the buffer doesn't exist.
func (c *Client) Get(ctx context.Context, digest string) ([]byte, error) {
	buffer, err := c.rdb.Get(ctx, c.key(digest)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("canvas buffer %s: %w", digest, board.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read canvas buffer: %w", err)
	}
	return buffer, nil
}

// Delete removes a buffer. Deleting an absent buffer is not an error;
// ledger eviction and finalization pruning may race benignly.
func (c *Client) Delete(ctx context.Context, digest string) error {
	if err := c.rdb.Del(ctx, c.key(digest)).Err(); err != nil {
		return fmt.Errorf("failed to delete canvas buffer: %w", err)
	}
	return nil
}

// key returns the Redis key for a canvas buffer.
// Pattern: easel:{instance_name}:canvas:{digest}
func (c *Client) key(digest string) string {
	return fmt.Sprintf("easel:%s:canvas:%s", c.instanceName, digest)
}
