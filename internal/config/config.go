package config

import (
	"fmt"
	"strings"
)

type Config struct {
	Server    ServerConfig
	Ollama    OllamaConfig
	Anthropic AnthropicConfig
	Storage   StorageConfig
	Chunking  ChunkingConfig
	Chat      ChatConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
	// AuthToken, when non-empty, gates the ingestion endpoint.
	AuthToken string
}

type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
}

type AnthropicConfig struct {
	APIKey  string
	Model   string
	BaseURL string
}

type StorageConfig struct {
	DataDir string
	// DocsDir is where course documents are ingested from at startup.
	DocsDir string
}

type ChunkingConfig struct {
	Size    int
	Overlap int
}

type ChatConfig struct {
	MaxResults int
	MaxHistory int
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4001,
		},
		Ollama: OllamaConfig{
			BaseURL:    "http://localhost:11434",
			EmbedModel: "nomic-embed-text",
		},
		Anthropic: AnthropicConfig{
			Model: "claude-sonnet-4-20250514",
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			DocsDir: "./docs",
		},
		Chunking: ChunkingConfig{
			Size:    800,
			Overlap: 100,
		},
		Chat: ChatConfig{
			MaxResults: 5,
			MaxHistory: 2,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the platform-native backend, environment
// variables, and platform secret store.
//
// On macOS the backend is UserDefaults (domain: com.coursechat.app) and
// secrets fall back to macOS Keychain.
// On Linux the backend is a JSON file at
// $XDG_CONFIG_HOME/coursechat/config.json and secrets come from a file
// next to the data dir or environment variables.
//
// Environment variables (COURSECHAT_*) override backend values on all
// platforms.
func Load() (Config, error) {
	return loadWith(newPlatformBackend(), keychainReader{})
}

// keychain abstracts Keychain access for testing.
type keychain interface {
	Get(service, account string) (string, error)
}

func loadWith(b ConfigBackend, kc keychain) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	// Try platform keychain for API key if still empty.
	if cfg.Anthropic.APIKey == "" {
		if key, err := kc.Get("coursechat", "anthropic_api_key"); err == nil && key != "" {
			cfg.Anthropic.APIKey = key
		}
	}

	if cfg.Anthropic.APIKey == "" {
		msg := "missing required config: Anthropic API key. " +
			"Set it via environment variable COURSECHAT_ANTHROPIC_API_KEY" +
			apiKeyHint()
		return Config{}, fmt.Errorf("%s", msg)
	}

	return cfg, nil
}

// keychainReader reads from the platform secret store.
type keychainReader struct{}

func (keychainReader) Get(service, account string) (string, error) {
	out, err := keychainExec(service, account)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(out)), nil
}
