package chain

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointSet_RoundRobins(t *testing.T) {
	s := newEndpointSet([]string{"a", "b", "c"})

	seen := make([]string, 6)
	for i := range seen {
		u, err := s.pick()
		assert.NoError(t, err)
		seen[i] = u
	}

	assert.Equal(t, []string{"a", "b", "c", "a", "b", "c"}, seen)
}

func TestEndpointSet_ErrorsWhenEmpty(t *testing.T) {
	s := newEndpointSet(nil)
	_, err := s.pick()
	assert.Error(t, err)
}

func TestClient_Status_FailsOverOn5xxThenSucceeds(t *testing.T) {
	var calls int32

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer bad.Close()

	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"result":{"sync_info":{"latest_block_height":"100"}}}`))
	}))
	defer good.Close()

	c := NewClient([]string{bad.URL}, []string{good.URL}, nil, nil)

	status, err := c.Status(context.Background())
	assert.NoError(t, err)
	height, err := status.LatestHeight()
	assert.NoError(t, err)
	assert.Equal(t, uint64(100), height)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&calls), int32(2))
}

func TestClient_Status_FailsFastOn4xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := NewClient([]string{srv.URL}, nil, nil, nil)

	_, err := c.Status(context.Background())
	assert.Error(t, err)

	var permErr *permanentHTTPError
	assert.ErrorAs(t, err, &permErr)
	assert.Equal(t, 404, permErr.status)
	assert.False(t, IsNotImplemented(err))
}

func TestIsNotImplemented_MatchesHTTP501(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotImplemented)
	}))
	defer srv.Close()

	c := NewClient([]string{srv.URL}, nil, nil, nil)

	_, err := c.Status(context.Background())
	assert.True(t, IsNotImplemented(err))
}
