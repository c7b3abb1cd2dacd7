package config

import (
	"errors"
	"strings"
	"testing"
)

var errNotFoundForTest = errors.New("not found")

// mapBackend is an in-memory ConfigBackend for tests.
type mapBackend struct {
	data map[string]any
}

func (b *mapBackend) GetString(key string) (string, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return "", false, nil
	}
	return v.(string), true, nil
}

func (b *mapBackend) GetInt(key string) (int, bool, error) {
	v, ok := b.data[key]
	if !ok {
		return 0, false, nil
	}
	return v.(int), true, nil
}

func (b *mapBackend) SetString(key, val string) error { b.data[key] = val; return nil }

func (b *mapBackend) SetInt(key string, val int) error { b.data[key] = val; return nil }

func (b *mapBackend) Delete(key string) error { delete(b.data, key); return nil }

// mockKeychain is a test double for the keychain interface.
type mockKeychain struct {
	value string
	err   error
}

func (m mockKeychain) Get(service, account string) (string, error) {
	return m.value, m.err
}

func TestDefaults(t *testing.T) {
	t.Setenv("COURSECHAT_ANTHROPIC_API_KEY", "test-key")

	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 4001 {
		t.Errorf("Server.Port = %d, want 4001", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://localhost:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Ollama.EmbedModel != "nomic-embed-text" {
		t.Errorf("Ollama.EmbedModel = %q", cfg.Ollama.EmbedModel)
	}
	if cfg.Anthropic.Model != "claude-sonnet-4-20250514" {
		t.Errorf("Anthropic.Model = %q", cfg.Anthropic.Model)
	}
	if cfg.Chunking.Size != 800 || cfg.Chunking.Overlap != 100 {
		t.Errorf("Chunking = %+v", cfg.Chunking)
	}
	if cfg.Chat.MaxResults != 5 || cfg.Chat.MaxHistory != 2 {
		t.Errorf("Chat = %+v", cfg.Chat)
	}
	if cfg.Storage.DocsDir != "./docs" {
		t.Errorf("Storage.DocsDir = %q", cfg.Storage.DocsDir)
	}
}

func TestBackendValues(t *testing.T) {
	t.Setenv("COURSECHAT_ANTHROPIC_API_KEY", "test-key")

	b := &mapBackend{data: map[string]any{
		"server.port":      5000,
		"ollama.base_url":  "http://custom:11434",
		"chunking.size":    1200,
		"chat.max_results": 10,
		"anthropic.model":  "claude-opus-4-20250514",
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Ollama.BaseURL != "http://custom:11434" {
		t.Errorf("Ollama.BaseURL = %q", cfg.Ollama.BaseURL)
	}
	if cfg.Chunking.Size != 1200 {
		t.Errorf("Chunking.Size = %d", cfg.Chunking.Size)
	}
	if cfg.Chat.MaxResults != 10 {
		t.Errorf("Chat.MaxResults = %d", cfg.Chat.MaxResults)
	}
	if cfg.Anthropic.Model != "claude-opus-4-20250514" {
		t.Errorf("Anthropic.Model = %q", cfg.Anthropic.Model)
	}
}

func TestEnvOverridesBackend(t *testing.T) {
	t.Setenv("COURSECHAT_ANTHROPIC_API_KEY", "test-key")
	t.Setenv("COURSECHAT_SERVER_PORT", "6001")
	t.Setenv("COURSECHAT_OLLAMA_EMBED_MODEL", "mxbai-embed-large")

	b := &mapBackend{data: map[string]any{
		"server.port":        5000,
		"ollama.embed_model": "backend-model",
	}}

	cfg, err := loadWith(b, mockKeychain{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Server.Port != 6001 {
		t.Errorf("Server.Port = %d, want env override", cfg.Server.Port)
	}
	if cfg.Ollama.EmbedModel != "mxbai-embed-large" {
		t.Errorf("Ollama.EmbedModel = %q, want env override", cfg.Ollama.EmbedModel)
	}
}

func TestMissingAPIKey(t *testing.T) {
	t.Setenv("COURSECHAT_ANTHROPIC_API_KEY", "")

	_, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{err: errNotFoundForTest})
	if err == nil {
		t.Fatal("expected error for missing API key, got nil")
	}
	if !strings.Contains(err.Error(), "missing required config") {
		t.Errorf("error = %q", err)
	}
}

func TestKeychainFallback(t *testing.T) {
	t.Setenv("COURSECHAT_ANTHROPIC_API_KEY", "")

	cfg, err := loadWith(&mapBackend{data: map[string]any{}}, mockKeychain{value: "keychain-secret"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Anthropic.APIKey != "keychain-secret" {
		t.Errorf("Anthropic.APIKey = %q", cfg.Anthropic.APIKey)
	}
}

func TestShowAllOmitsSecrets(t *testing.T) {
	cfg := defaults()
	cfg.Anthropic.APIKey = "super-secret"

	for _, info := range ShowAll(cfg) {
		if info.Key == "anthropic.api_key" || info.Key == "server.auth_token" {
			t.Errorf("secret key %q exposed", info.Key)
		}
		if strings.Contains(info.Value, "super-secret") {
			t.Errorf("secret value leaked via %q", info.Key)
		}
	}
}

func TestValidKeysExcludeSecrets(t *testing.T) {
	for _, k := range ValidKeys() {
		if k == "anthropic.api_key" {
			t.Error("api key listed as settable")
		}
	}
}
