package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/easelhq/easel/pkg/board"
)

func TestHealthEndpoint(t *testing.T) {
	env := setupEngine(t, nil)
	h := NewHealthServer(env.boardC, func() int { return 3 })

	t.Run("healthy with session count", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.healthCheckHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "healthy", resp.Status)
		assert.Equal(t, "connected", resp.Redis)
		assert.Equal(t, 3, resp.Sessions)
	})

	t.Run("rejects non-GET", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.healthCheckHandler(rec, httptest.NewRequest(http.MethodPost, "/healthz", nil))
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})

	t.Run("unhealthy when redis is unreachable", func(t *testing.T) {
		dead, err := board.NewClient(&redis.Options{Addr: "127.0.0.1:1"}, "test-instance")
		require.NoError(t, err)
		t.Cleanup(func() { dead.Close() })

		rec := httptest.NewRecorder()
		NewHealthServer(dead, nil).healthCheckHandler(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		require.Equal(t, http.StatusServiceUnavailable, rec.Code)
		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Status)
		assert.Equal(t, "disconnected", resp.Redis)
		assert.NotEmpty(t, resp.Error)
	})
}
