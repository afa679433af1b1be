package transport

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPoolCountsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPool(nil, zap.NewNop())
	for i := 0; i < 3; i++ {
		resp, err := p.Client().Get(srv.URL)
		require.NoError(t, err)
		resp.Body.Close()
	}

	stats := p.Stats()
	assert.Equal(t, int64(3), stats.Requests)
	assert.Zero(t, stats.InFlight, "no request is in flight after completion")
}

func TestPoolTracksInFlight(t *testing.T) {
	release := make(chan struct{})
	var once sync.Once
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer once.Do(func() { close(release) })

	p := NewPool(&PoolConfig{MaxConns: 4}, zap.NewNop())

	done := make(chan struct{})
	go func() {
		defer close(done)
		resp, err := p.Client().Get(srv.URL)
		if err == nil {
			resp.Body.Close()
		}
	}()

	assert.Eventually(t, func() bool {
		return p.Stats().InFlight == 1
	}, time.Second, 5*time.Millisecond)
	assert.InDelta(t, 0.25, p.Stats().Utilization, 0.01)

	once.Do(func() { close(release) })
	<-done
	assert.Zero(t, p.Stats().InFlight)
}

func TestPoolPrune(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	p := NewPool(nil, zap.NewNop())
	resp, err := p.Client().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()

	p.Prune()
	// Pruning must not break subsequent requests.
	resp, err = p.Client().Get(srv.URL)
	require.NoError(t, err)
	resp.Body.Close()
}

func TestNewPoolCorrectsZeroConfig(t *testing.T) {
	p := NewPool(&PoolConfig{MaxConns: -1, UtilizationWarn: 2.0}, nil)

	assert.Equal(t, 64, p.config.MaxConns)
	assert.Equal(t, 16, p.config.MaxIdleConns)
	assert.Equal(t, 90*time.Second, p.config.IdleTimeout)
	assert.Equal(t, 30*time.Second, p.config.RequestTimeout)
	assert.Equal(t, 0.8, p.config.UtilizationWarn)
}

func TestPoolStatsSnapshot(t *testing.T) {
	p := NewPool(&PoolConfig{MaxConns: 10}, zap.NewNop())
	stats := p.Stats()

	assert.Equal(t, 10, stats.MaxConns)
	assert.Zero(t, stats.InFlight)
	assert.Zero(t, stats.Requests)
	assert.Zero(t, stats.Utilization)
}
