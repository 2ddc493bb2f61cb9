package ui

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/leapstack-labs/lineagebench/internal/state"
	"github.com/leapstack-labs/lineagebench/internal/testutil"
	"github.com/leapstack-labs/lineagebench/internal/ui/notifier"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, statePath string) *Server {
	t.Helper()
	store := state.NewSQLiteStore(nil)
	require.NoError(t, store.Open(statePath))
	require.NoError(t, store.InitSchema())
	t.Cleanup(func() { _ = store.Close() })

	return NewServer(Config{
		Store:     store,
		StatePath: statePath,
		Watch:     true,
		Logger:    testutil.NewTestLogger(t),
	})
}

func TestServer_Handler(t *testing.T) {
	s := newTestServer(t, ":memory:")
	h, err := s.Handler()
	require.NoError(t, err)

	srv := httptest.NewServer(h)
	defer srv.Close()

	tests := []struct {
		path   string
		status int
	}{
		{"/", http.StatusOK},
		{"/api/runs", http.StatusOK},
		{"/api/runs/latest/results", http.StatusNotFound},
		{"/static/chart.css", http.StatusOK},
		{"/reload", http.StatusNotFound},
	}
	for _, tt := range tests {
		resp, err := http.Get(srv.URL + tt.path)
		require.NoError(t, err, tt.path)
		_ = resp.Body.Close()
		assert.Equal(t, tt.status, resp.StatusCode, tt.path)
	}
}

func TestServer_SharedNotifier(t *testing.T) {
	n := notifier.New()
	s := NewServer(Config{Notifier: n})
	assert.Same(t, n, s.Notifier())
	assert.NotNil(t, NewServer(Config{}).Notifier())
}

func TestServer_Watchable(t *testing.T) {
	assert.False(t, NewServer(Config{}).watchable())
	assert.False(t, NewServer(Config{StatePath: ":memory:"}).watchable())
	assert.True(t, NewServer(Config{StatePath: "/tmp/state.db"}).watchable())
}

func TestServer_WatchStateBroadcasts(t *testing.T) {
	dir := t.TempDir()
	statePath := filepath.Join(dir, "state.db")
	s := newTestServer(t, statePath)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	updates := s.Notifier().Subscribe()
	defer s.Notifier().Unsubscribe(updates)

	done := make(chan error, 1)
	go func() { done <- s.watchState(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(100 * time.Millisecond)

	// Unrelated files are ignored.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600))
	select {
	case <-updates:
		t.Fatal("unrelated file triggered an update")
	case <-time.After(watchDebounce + 150*time.Millisecond):
	}

	require.NoError(t, os.WriteFile(statePath+"-wal", []byte("x"), 0o600))
	select {
	case u := <-updates:
		assert.Empty(t, u.RunID)
	case <-time.After(2 * time.Second):
		t.Fatal("state write did not trigger an update")
	}

	cancel()
	assert.NoError(t, <-done)
}

func TestServer_ServeStopsOnCancel(t *testing.T) {
	s := newTestServer(t, ":memory:")
	s.port = 0

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(6 * time.Second):
		t.Fatal("server did not shut down")
	}
}
