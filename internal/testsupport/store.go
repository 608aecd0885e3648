package testsupport

import (
	"testing"

	"dealdesk/internal/config"
	"dealdesk/internal/history"
)

// MustOpenStore opens a history.Store for tests and registers cleanup.
func MustOpenStore(t testing.TB, cfg *config.Config) *history.Store {
	t.Helper()

	store, err := history.OpenFromConfig(cfg)
	if err != nil {
		t.Fatalf("history.OpenFromConfig: %v", err)
	}
	t.Cleanup(func() {
		store.Close()
	})
	return store
}
