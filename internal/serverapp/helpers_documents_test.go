package serverapp

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"gqlhttp/internal/config"
)

func TestBuildDocumentProviders_Disabled(t *testing.T) {
	cfg := testConfig()
	providers, store, err := buildDocumentProviders(cfg, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if providers != nil {
		t.Fatalf("expected nil providers when persisted documents are disabled")
	}
	if store != nil {
		t.Fatalf("expected nil store when persisted documents are disabled")
	}
}

func TestBuildDocumentProviders_LoadsFile(t *testing.T) {
	file := filepath.Join(t.TempDir(), "persisted.json")
	contents := `{"abc123": "{ items { id name } }"}`
	if err := os.WriteFile(file, []byte(contents), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg := testConfig()
	cfg.GraphQL.PersistedDocuments = config.PersistedDocumentsConfig{
		Enabled:       true,
		File:          file,
		CacheMaxBytes: 1 << 20,
	}

	providers, store, err := buildDocumentProviders(cfg, testLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer store.Close()

	if len(providers) != 2 {
		t.Fatalf("expected persisted + text providers, got %d", len(providers))
	}
	text, ok := store.Get(context.Background(), "abc123")
	if !ok {
		t.Fatalf("expected document abc123 in store")
	}
	if text != "{ items { id name } }" {
		t.Fatalf("unexpected document text: %q", text)
	}
}

func TestBuildDocumentProviders_BadJSON(t *testing.T) {
	file := filepath.Join(t.TempDir(), "persisted.json")
	if err := os.WriteFile(file, []byte("not json"), 0o600); err != nil {
		t.Fatalf("failed to write fixture: %v", err)
	}

	cfg := testConfig()
	cfg.GraphQL.PersistedDocuments = config.PersistedDocumentsConfig{
		Enabled:       true,
		File:          file,
		CacheMaxBytes: 1 << 20,
	}

	if _, _, err := buildDocumentProviders(cfg, testLogger()); err == nil {
		t.Fatalf("expected error for malformed persisted documents file")
	}
}
