package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benekli/minerva/pkg/config/provider"
)

func TestLoader_File_Load(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "test.yaml")

	configYAML := `
version: "1.0"
name: "test-config"
llm:
  providers:
    - name: main
      type: openai
      model: gpt-4o-mini
      api_key: test-key
    - name: local
      type: ollama
  primary: main
router:
  mode: hybrid
  confidence_threshold: 0.7
code:
  execution_timeout: 45s
databases:
  main:
    type: chromem
rag:
  database: main
`
	if err := os.WriteFile(configFile, []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	cfg, loader, err := LoadConfigFile(context.Background(), configFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	defer loader.Close()

	if cfg.Version != "1.0" {
		t.Errorf("expected version 1.0, got %s", cfg.Version)
	}
	if cfg.Name != "test-config" {
		t.Errorf("expected name 'test-config', got %s", cfg.Name)
	}
	if len(cfg.LLM.Providers) != 2 {
		t.Errorf("expected 2 providers, got %d", len(cfg.LLM.Providers))
	}
	if cfg.LLM.Primary != "main" {
		t.Errorf("expected primary 'main', got %s", cfg.LLM.Primary)
	}
	if cfg.Router.ConfidenceThreshold != 0.7 {
		t.Errorf("expected threshold 0.7, got %v", cfg.Router.ConfidenceThreshold)
	}
	if cfg.Code.ExecutionTimeout.Duration() != 45*time.Second {
		t.Errorf("expected execution_timeout 45s, got %v", cfg.Code.ExecutionTimeout)
	}
	if cfg.RAG.Database != "main" {
		t.Errorf("expected rag database 'main', got %s", cfg.RAG.Database)
	}
	// Defaults fill in around the explicit values.
	if cfg.Server.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Server.Port)
	}
	if cfg.Research.MaxSubqueries != 5 {
		t.Errorf("expected default max_subqueries 5, got %d", cfg.Research.MaxSubqueries)
	}
}

func TestLoader_File_NotFound(t *testing.T) {
	_, _, err := LoadConfigFile(context.Background(), "/nonexistent/file.yaml")
	if err == nil {
		t.Fatal("expected error for nonexistent file")
	}
}

func TestLoader_File_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invalid.yaml")

	invalidYAML := `
version: "1.0"
llm:
  - invalid: [unclosed
`
	if err := os.WriteFile(configFile, []byte(invalidYAML), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	_, _, err := LoadConfigFile(context.Background(), configFile)
	if err == nil {
		t.Fatal("expected error for invalid YAML")
	}
}

func TestLoader_File_InvalidConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invalid-config.yaml")

	// References a database that is never declared.
	invalidConfig := `
version: "1.0"
rag:
  database: no-such-db
`
	if err := os.WriteFile(configFile, []byte(invalidConfig), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	_, _, err := LoadConfigFile(context.Background(), configFile)
	if err == nil {
		t.Fatal("expected error for invalid config structure")
	}
}

func TestLoader_EnvVarExpansion(t *testing.T) {
	os.Setenv("TEST_API_KEY", "secret-key-123")
	defer os.Unsetenv("TEST_API_KEY")

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "env-test.yaml")

	configYAML := `
version: "1.0"
llm:
  providers:
    - name: main
      type: openai
      api_key: ${TEST_API_KEY}
      model: ${TEST_MODEL:-gpt-4o-mini}
`
	if err := os.WriteFile(configFile, []byte(configYAML), 0644); err != nil {
		t.Fatalf("failed to create test config: %v", err)
	}

	cfg, loader, err := LoadConfigFile(context.Background(), configFile)
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	defer loader.Close()

	if cfg.LLM.Providers[0].APIKey != "secret-key-123" {
		t.Errorf("expected API key 'secret-key-123', got %s", cfg.LLM.Providers[0].APIKey)
	}
	if cfg.LLM.Providers[0].Model != "gpt-4o-mini" {
		t.Errorf("expected default-expanded model, got %s", cfg.LLM.Providers[0].Model)
	}
}

func TestLoader_File_Watch(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "watch-test.yaml")

	writeConfig := func(name string) {
		t.Helper()
		configYAML := `
version: "1.0"
name: "` + name + `"
`
		if err := os.WriteFile(configFile, []byte(configYAML), 0644); err != nil {
			t.Fatalf("failed to write config: %v", err)
		}
	}
	writeConfig("initial")

	reloaded := make(chan *Config, 4)
	p, err := provider.New(provider.ProviderConfig{Type: provider.TypeFile, Path: configFile})
	if err != nil {
		t.Fatalf("failed to create provider: %v", err)
	}

	loader := NewLoader(p, WithOnChange(func(cfg *Config) {
		select {
		case reloaded <- cfg:
		default:
		}
	}))
	defer loader.Close()

	cfg, err := loader.Load(context.Background())
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}
	if cfg.Name != "initial" {
		t.Errorf("expected name 'initial', got %s", cfg.Name)
	}

	ctx, cancel := context.WithCancel(context.Background())
	watchDone := make(chan error, 1)
	go func() { watchDone <- loader.Watch(ctx) }()

	// Give the watcher time to register before touching the file.
	time.Sleep(200 * time.Millisecond)
	writeConfig("updated")

	select {
	case got := <-reloaded:
		if got.Name != "updated" {
			t.Errorf("expected reloaded name 'updated', got %s", got.Name)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("expected reload to be triggered, but it wasn't")
	}

	cancel()
	<-watchDone
}

func TestParseBytes_YAML(t *testing.T) {
	data := []byte(`
name: test
router:
  mode: keyword
`)
	result, err := parseBytes(data)
	if err != nil {
		t.Fatalf("failed to parse YAML: %v", err)
	}
	if result["name"] != "test" {
		t.Errorf("expected name 'test', got %v", result["name"])
	}
}

func TestParseBytes_JSON(t *testing.T) {
	data := []byte(`{"name": "test", "router": {"mode": "keyword"}}`)
	result, err := parseBytes(data)
	if err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if result["name"] != "test" {
		t.Errorf("expected name 'test', got %v", result["name"])
	}
}

func TestParseBytes_Invalid(t *testing.T) {
	if _, err := parseBytes([]byte("{{not valid")); err == nil {
		t.Fatal("expected error for unparseable input")
	}
}

func TestExpandEnvString(t *testing.T) {
	os.Setenv("MINERVA_TEST_VAR", "hello")
	defer os.Unsetenv("MINERVA_TEST_VAR")

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"braced", "${MINERVA_TEST_VAR}", "hello"},
		{"simple", "$MINERVA_TEST_VAR/suffix", "hello/suffix"},
		{"default_used", "${MINERVA_UNSET_VAR:-fallback}", "fallback"},
		{"default_ignored", "${MINERVA_TEST_VAR:-fallback}", "hello"},
		{"unset_empty", "${MINERVA_UNSET_VAR}", ""},
		{"no_vars", "plain text", "plain text"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := expandEnvString(tt.input); got != tt.want {
				t.Errorf("expandEnvString(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDecodeConfig_DurationStrings(t *testing.T) {
	input := map[string]any{
		"code":   map[string]any{"execution_timeout": "45s"},
		"router": map[string]any{"cache_ttl": "10m"},
	}

	cfg := &Config{}
	if err := decodeConfig(input, cfg); err != nil {
		t.Fatalf("failed to decode: %v", err)
	}
	if cfg.Code.ExecutionTimeout.Duration() != 45*time.Second {
		t.Errorf("execution_timeout = %v, want 45s", cfg.Code.ExecutionTimeout)
	}
	if cfg.Router.CacheTTL.Duration() != 10*time.Minute {
		t.Errorf("cache_ttl = %v, want 10m", cfg.Router.CacheTTL)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg, err := DefaultConfig()
	if err != nil {
		t.Fatalf("DefaultConfig() failed: %v", err)
	}
	if cfg.Name != "minerva" {
		t.Errorf("name = %q, want minerva", cfg.Name)
	}
	if cfg.Router.Mode != "hybrid" {
		t.Errorf("router mode = %q, want hybrid", cfg.Router.Mode)
	}
}
