package config

import (
	"os"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// clearProviderEnv hides provider API keys from the environment so
// zero-config defaults are deterministic. Returns a restore func.
func clearProviderEnv() func() {
	keys := []string{"OPENAI_API_KEY", "ANTHROPIC_API_KEY", "GEMINI_API_KEY", "GOOGLE_API_KEY"}
	saved := make(map[string]string, len(keys))
	for _, k := range keys {
		saved[k] = os.Getenv(k)
		os.Unsetenv(k)
	}
	return func() {
		for k, v := range saved {
			if v != "" {
				os.Setenv(k, v)
			}
		}
	}
}

func TestProcessConfigPipeline_ZeroConfig(t *testing.T) {
	restore := clearProviderEnv()
	defer restore()

	cfg, err := ProcessConfigPipeline(&Config{})
	if err != nil {
		t.Fatalf("pipeline failed on empty config: %v", err)
	}

	if cfg.Router.ConfidenceThreshold != 0.6 {
		t.Errorf("router threshold = %v, want 0.6", cfg.Router.ConfidenceThreshold)
	}
	if cfg.Router.Mode != "hybrid" {
		t.Errorf("router mode = %v, want hybrid", cfg.Router.Mode)
	}
	if cfg.Research.MaxSubqueries != 5 {
		t.Errorf("max_subqueries = %d, want 5", cfg.Research.MaxSubqueries)
	}
	if cfg.Research.TopURLs != 9 {
		t.Errorf("top_urls = %d, want 9", cfg.Research.TopURLs)
	}
	if cfg.Code.ExecutionTimeout.Duration() != 30*time.Second {
		t.Errorf("execution_timeout = %v, want 30s", cfg.Code.ExecutionTimeout)
	}
	if cfg.Code.MaxOutputLines != 1000 {
		t.Errorf("max_output_lines = %d, want 1000", cfg.Code.MaxOutputLines)
	}
	if cfg.RAG.TopK != 10 {
		t.Errorf("rag top_k = %d, want 10", cfg.RAG.TopK)
	}
	if cfg.Workflow.MaxConcurrentNodes != 10 {
		t.Errorf("max_concurrent_nodes = %d, want 10", cfg.Workflow.MaxConcurrentNodes)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("server port = %d, want 8080", cfg.Server.Port)
	}

	// Zero-config wires RAG to embedded defaults.
	if cfg.RAG.Database != "default-database" {
		t.Errorf("rag database ref = %q, want default-database", cfg.RAG.Database)
	}
	if _, ok := cfg.Databases["default-database"]; !ok {
		t.Error("default-database was not created")
	}
	db := cfg.Databases["default-database"]
	if db.Type != "chromem" {
		t.Errorf("default database type = %q, want chromem", db.Type)
	}
	if _, ok := cfg.Embedders["default-embedder"]; !ok {
		t.Error("default-embedder was not created")
	}

	// Without API keys only ollama remains, and it is enabled.
	providers := cfg.LLM.EnabledProviders()
	if len(providers) != 1 {
		t.Fatalf("enabled providers = %d, want 1 (ollama)", len(providers))
	}
	if providers[0].Type != ProviderOllama {
		t.Errorf("enabled provider = %v, want ollama", providers[0].Type)
	}
}

func TestProcessConfigPipeline_NilConfig(t *testing.T) {
	if _, err := ProcessConfigPipeline(nil); err == nil {
		t.Fatal("expected error for nil config")
	}
}

func TestConfig_Validate_BadReferences(t *testing.T) {
	restore := clearProviderEnv()
	defer restore()

	cfg := &Config{
		RAG: RAGConfig{Database: "missing-db"},
	}
	_, err := ProcessConfigPipeline(cfg)
	if err == nil {
		t.Fatal("expected reference validation error")
	}
	if !strings.Contains(err.Error(), "missing-db") {
		t.Errorf("error should name the missing reference, got: %v", err)
	}
}

func TestLLMProviderConfig_SetDefaults(t *testing.T) {
	tests := []struct {
		name           string
		config         LLMProviderConfig
		envVars        map[string]string
		validateConfig func(t *testing.T, config LLMProviderConfig)
	}{
		{
			name:   "empty_config_openai_defaults",
			config: LLMProviderConfig{},
			validateConfig: func(t *testing.T, config LLMProviderConfig) {
				if config.Type != ProviderOpenAI {
					t.Errorf("Default type = %v, want openai", config.Type)
				}
				if config.Model != "gpt-4o-mini" {
					t.Errorf("Default model = %v, want gpt-4o-mini", config.Model)
				}
				if config.Host != "https://api.openai.com/v1" {
					t.Errorf("Default host = %v", config.Host)
				}
				if *config.Temperature != 0.7 {
					t.Errorf("Default temperature = %v, want 0.7", *config.Temperature)
				}
				if config.MaxTokens != 4096 {
					t.Errorf("Default max_tokens = %v, want 4096", config.MaxTokens)
				}
				if config.Timeout.Duration() != 60*time.Second {
					t.Errorf("Default timeout = %v, want 60s", config.Timeout)
				}
				if config.MaxRetries != 3 {
					t.Errorf("Default max_retries = %v, want 3", config.MaxRetries)
				}
			},
		},
		{
			name:   "missing_api_key_disables_provider",
			config: LLMProviderConfig{Type: ProviderAnthropic},
			validateConfig: func(t *testing.T, config LLMProviderConfig) {
				if config.IsEnabled() {
					t.Error("provider without API key should be disabled, not fail")
				}
			},
		},
		{
			name:   "api_key_from_environment_enables",
			config: LLMProviderConfig{Type: ProviderAnthropic},
			envVars: map[string]string{
				"ANTHROPIC_API_KEY": "sk-ant-test-key",
			},
			validateConfig: func(t *testing.T, config LLMProviderConfig) {
				if config.APIKey != "sk-ant-test-key" {
					t.Errorf("API key from env = %v", config.APIKey)
				}
				if !config.IsEnabled() {
					t.Error("provider with API key should be enabled")
				}
				if config.Model != "claude-sonnet-4-20250514" {
					t.Errorf("Default anthropic model = %v", config.Model)
				}
			},
		},
		{
			name:   "ollama_enabled_without_key",
			config: LLMProviderConfig{Type: ProviderOllama},
			validateConfig: func(t *testing.T, config LLMProviderConfig) {
				if !config.IsEnabled() {
					t.Error("ollama should be enabled without an API key")
				}
				if config.Host != "http://localhost:11434" {
					t.Errorf("Default ollama host = %v", config.Host)
				}
				if config.Model != "llama3.2" {
					t.Errorf("Default ollama model = %v", config.Model)
				}
			},
		},
		{
			name: "partial_config_preserves_values",
			config: LLMProviderConfig{
				Type:   ProviderGemini,
				Model:  "gemini-2.5-pro",
				APIKey: "explicit-key",
			},
			validateConfig: func(t *testing.T, config LLMProviderConfig) {
				if config.Model != "gemini-2.5-pro" {
					t.Errorf("Model should be preserved: %v", config.Model)
				}
				if config.Host != "https://generativelanguage.googleapis.com" {
					t.Errorf("Default gemini host = %v", config.Host)
				}
				if config.Name != "gemini" {
					t.Errorf("Default name = %v, want gemini", config.Name)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			restore := clearProviderEnv()
			defer restore()

			for key, value := range tt.envVars {
				os.Setenv(key, value)
			}
			defer func() {
				for key := range tt.envVars {
					os.Unsetenv(key)
				}
			}()

			tt.config.SetDefaults()
			tt.validateConfig(t, tt.config)
		})
	}
}

func TestLLMConfig_EnabledProviders_Order(t *testing.T) {
	cfg := LLMConfig{
		Providers: []*LLMProviderConfig{
			{Name: "a", Type: ProviderOpenAI, APIKey: "k", Enabled: BoolPtr(true)},
			{Name: "b", Type: ProviderAnthropic, APIKey: "k", Enabled: BoolPtr(true)},
			{Name: "c", Type: ProviderOllama, Enabled: BoolPtr(false)},
			{Name: "d", Type: ProviderGemini, APIKey: "k", Enabled: BoolPtr(true)},
		},
		Primary: "b",
	}

	providers := cfg.EnabledProviders()
	if len(providers) != 3 {
		t.Fatalf("enabled providers = %d, want 3", len(providers))
	}
	got := []string{providers[0].Name, providers[1].Name, providers[2].Name}
	want := []string{"b", "a", "d"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("order[%d] = %q, want %q (full order %v)", i, got[i], want[i], got)
		}
	}
}

func TestLLMConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  LLMConfig
		wantErr bool
	}{
		{
			name: "duplicate_names",
			config: LLMConfig{
				Providers: []*LLMProviderConfig{
					{Name: "x", Type: ProviderOpenAI},
					{Name: "x", Type: ProviderOllama},
				},
			},
			wantErr: true,
		},
		{
			name: "unknown_primary",
			config: LLMConfig{
				Providers: []*LLMProviderConfig{{Name: "x", Type: ProviderOpenAI}},
				Primary:   "y",
			},
			wantErr: true,
		},
		{
			name: "temperature_out_of_range",
			config: LLMConfig{
				Providers: []*LLMProviderConfig{
					{Name: "x", Type: ProviderOpenAI, Temperature: Float64Ptr(3.0)},
				},
			},
			wantErr: true,
		},
		{
			name: "valid",
			config: LLMConfig{
				Providers: []*LLMProviderConfig{
					{Name: "x", Type: ProviderOpenAI},
					{Name: "y", Type: ProviderOllama},
				},
				Primary: "y",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRouterConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		config  RouterConfig
		wantErr bool
	}{
		{"valid_hybrid", RouterConfig{Mode: "hybrid", ConfidenceThreshold: 0.6}, false},
		{"valid_keyword", RouterConfig{Mode: "keyword", ConfidenceThreshold: 0.5}, false},
		{"invalid_mode", RouterConfig{Mode: "neural", ConfidenceThreshold: 0.5}, true},
		{"threshold_too_high", RouterConfig{Mode: "hybrid", ConfidenceThreshold: 1.5}, true},
		{"threshold_negative", RouterConfig{Mode: "hybrid", ConfidenceThreshold: -0.1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestRAGConfig_Validate_RerankWeights(t *testing.T) {
	cfg := RAGConfig{}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default rag config should validate: %v", err)
	}
	if cfg.RerankWeights.Embedding != 0.6 || cfg.RerankWeights.Cross != 0.4 {
		t.Errorf("default weights = %v/%v, want 0.6/0.4",
			cfg.RerankWeights.Embedding, cfg.RerankWeights.Cross)
	}

	bad := RAGConfig{RerankWeights: RerankWeights{Embedding: 0.8, Cross: 0.4}}
	bad.SetDefaults()
	if err := bad.Validate(); err == nil {
		t.Error("weights not summing to 1.0 should fail validation")
	}

	tooMany := RAGConfig{TopK: 5, RerankTopK: 10}
	tooMany.SetDefaults()
	if err := tooMany.Validate(); err == nil {
		t.Error("rerank_top_k above top_k should fail validation")
	}
}

func TestSQLConfig_DSN(t *testing.T) {
	tests := []struct {
		name   string
		config SQLConfig
		want   string
	}{
		{
			name: "postgres_full",
			config: SQLConfig{
				Driver: "postgres", Host: "db.example.com", Port: 5432,
				Database: "minerva", Username: "app", Password: "secret", SSLMode: "require",
			},
			want: "host=db.example.com port=5432 dbname=minerva user=app password=secret sslmode=require",
		},
		{
			name: "mysql_with_credentials",
			config: SQLConfig{
				Driver: "mysql", Host: "localhost", Port: 3306,
				Database: "minerva", Username: "root", Password: "pw",
			},
			want: "root:pw@tcp(localhost:3306)/minerva",
		},
		{
			name:   "sqlite_path",
			config: SQLConfig{Driver: "sqlite", Database: ".minerva/history.db"},
			want:   ".minerva/history.db",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.DSN(); got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLConfig_DriverName(t *testing.T) {
	c := SQLConfig{Driver: "sqlite"}
	if c.DriverName() != "sqlite3" {
		t.Errorf("DriverName() = %q, want sqlite3", c.DriverName())
	}
	c = SQLConfig{Driver: "postgres"}
	if c.DriverName() != "postgres" {
		t.Errorf("DriverName() = %q, want postgres", c.DriverName())
	}
}

func TestDomainsConfig_SetDefaults(t *testing.T) {
	var cfg DomainsConfig
	cfg.SetDefaults()

	if cfg.Weather.Primary != "open-meteo" || cfg.Weather.Fallback != "wttr.in" {
		t.Errorf("weather sources = %q/%q", cfg.Weather.Primary, cfg.Weather.Fallback)
	}
	if cfg.Finance.Primary != "alphavantage" || cfg.Finance.Fallback != "stooq" {
		t.Errorf("finance sources = %q/%q", cfg.Finance.Primary, cfg.Finance.Fallback)
	}
	if cfg.Finance.APIKeyEnv != "ALPHAVANTAGE_API_KEY" {
		t.Errorf("finance api_key_env = %q", cfg.Finance.APIKeyEnv)
	}
	if cfg.Routing.Primary != "osrm" || cfg.Routing.Fallback != "haversine" {
		t.Errorf("routing sources = %q/%q", cfg.Routing.Primary, cfg.Routing.Fallback)
	}
	if !BoolValue(cfg.Weather.Enabled, false) {
		t.Error("weather should default to enabled")
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default domains should validate: %v", err)
	}
}

func TestChunkingConfig_Validate(t *testing.T) {
	cfg := ChunkingConfig{Strategy: "overlapping", Size: 100, Overlap: 100}
	cfg.MinSize, cfg.MaxSize = 10, 200
	cfg.PreserveWords = BoolPtr(true)
	if err := cfg.Validate(); err == nil {
		t.Error("overlap equal to size should fail validation")
	}

	cfg.Overlap = 20
	if err := cfg.Validate(); err != nil {
		t.Errorf("valid chunking config rejected: %v", err)
	}
}

func TestHistoryConfig_Validate(t *testing.T) {
	cfg := HistoryConfig{Backend: "sql"}
	cfg.SetDefaults()
	if cfg.SQL == nil {
		t.Fatal("sql backend should get a default SQL section")
	}
	if cfg.SQL.Driver != "sqlite" {
		t.Errorf("default driver = %q, want sqlite", cfg.SQL.Driver)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("sqlite history config should validate: %v", err)
	}

	bad := HistoryConfig{Backend: "redis"}
	if err := bad.Validate(); err == nil {
		t.Error("unknown backend should fail validation")
	}
}

func TestDuration_UnmarshalYAML(t *testing.T) {
	var out struct {
		Timeout Duration `yaml:"timeout"`
	}

	if err := yaml.Unmarshal([]byte("timeout: 1h30m"), &out); err != nil {
		t.Fatalf("unmarshal duration string: %v", err)
	}
	if out.Timeout.Duration() != 90*time.Minute {
		t.Errorf("duration = %v, want 1h30m", out.Timeout)
	}

	if err := yaml.Unmarshal([]byte("timeout: 5000000000"), &out); err != nil {
		t.Fatalf("unmarshal duration int: %v", err)
	}
	if out.Timeout.Duration() != 5*time.Second {
		t.Errorf("duration = %v, want 5s", out.Timeout)
	}

	if err := yaml.Unmarshal([]byte("timeout: fast"), &out); err == nil {
		t.Error("invalid duration string should fail")
	}
}

func TestCodeConfig_DefaultAllowedImports(t *testing.T) {
	var cfg CodeConfig
	cfg.SetDefaults()

	allowed := make(map[string]bool, len(cfg.AllowedImports))
	for _, imp := range cfg.AllowedImports {
		allowed[imp] = true
	}

	for _, want := range []string{"fmt", "math", "strings", "strconv", "time"} {
		if !allowed[want] {
			t.Errorf("expected %q in default allowed imports", want)
		}
	}
	for _, banned := range []string{"os", "os/exec", "net", "net/http", "syscall", "unsafe"} {
		if allowed[banned] {
			t.Errorf("%q must never be in default allowed imports", banned)
		}
	}
}
