package settle

import (
	"context"
	"strings"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/pkg/board"
)

const (
	alice = "0x7e5f4552091a69125d5dfcb7b8c2659029395bdf"
	bob   = "0x2b5ad5c4795c026514f8317c7a215e218dccd6cf"
)

func testDigest(fill string) string {
	return "0x" + strings.Repeat(fill, 32)
}

func setupTestClient(t *testing.T) *Client {
	mr := miniredis.NewMiniRedis()
	err := mr.Start()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := NewClient(&redis.Options{Addr: mr.Addr()}, "test-instance")
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	return client
}

func TestSubmit(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	id, err := client.Submit(ctx, testDigest("aa"), 500)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	t.Run("is idempotent per artifact", func(t *testing.T) {
		again, err := client.Submit(ctx, testDigest("aa"), 500)
		require.NoError(t, err)
		assert.Equal(t, id, again)
	})

	t.Run("distinct artifacts get distinct ids", func(t *testing.T) {
		other, err := client.Submit(ctx, testDigest("bb"), 100)
		require.NoError(t, err)
		assert.NotEqual(t, id, other)
	})

	t.Run("rejects malformed digests", func(t *testing.T) {
		_, err := client.Submit(ctx, "not-a-digest", 1)
		assert.ErrorIs(t, err, board.ErrInvalidInput)
	})
}

func TestRecordPayoutsAndPending(t *testing.T) {
	client := setupTestClient(t)
	ctx := context.Background()

	recorded, err := client.RecordPayouts(ctx, testDigest("cc"), []Payout{
		{Identity: alice, Amount: 42},
		{Identity: bob, Amount: 0}, // skipped
		{Identity: alice, Amount: 7},
	}, 1700000000)
	require.NoError(t, err)
	require.Len(t, recorded, 2)

	pending, err := client.Pending(ctx, alice)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	assert.Equal(t, 42, pending[0].Amount)
	assert.Equal(t, 7, pending[1].Amount)
	assert.Equal(t, testDigest("cc"), pending[0].Message)
	assert.Equal(t, int64(1700000000), pending[0].CreatedAt)
	assert.Equal(t, alice, pending[0].Identity)

	t.Run("recording the same artifact again pays nothing", func(t *testing.T) {
		again, err := client.RecordPayouts(ctx, testDigest("cc"), []Payout{
			{Identity: alice, Amount: 42},
			{Identity: alice, Amount: 7},
		}, 1700000999)
		require.NoError(t, err)
		assert.Empty(t, again)

		pending, err := client.Pending(ctx, alice)
		require.NoError(t, err)
		assert.Len(t, pending, 2)
	})

	t.Run("zero-amount payouts leave no trace", func(t *testing.T) {
		pending, err := client.Pending(ctx, bob)
		require.NoError(t, err)
		assert.Empty(t, pending)
	})

	t.Run("rejects malformed identities", func(t *testing.T) {
		_, err := client.RecordPayouts(ctx, testDigest("dd"), []Payout{
			{Identity: "nobody", Amount: 1},
		}, 1700000000)
		assert.ErrorIs(t, err, board.ErrInvalidInput)

		_, err = client.Pending(ctx, "nobody")
		assert.ErrorIs(t, err, board.ErrInvalidInput)
	})
}

func TestNewClientRejectsEmptyInstance(t *testing.T) {
	_, err := NewClient(&redis.Options{Addr: "localhost:6379"}, "")
	assert.Error(t, err)
}
