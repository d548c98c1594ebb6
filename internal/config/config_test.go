package config

import "testing"

func validConfig() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Database: DatabaseConfig{
			Driver: "valkey",
			Addrs:  []string{"localhost:6379"},
		},
		Embedding: EmbeddingConfig{APIKey: "test-key"},
		Search:    SearchConfig{DefaultCorpus: "kjv"},
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_InvalidDriver(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Driver = "postgres"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for invalid driver")
	}

	expected := `database.driver must be "valkey" or "redis", got "postgres"`
	if err.Error() != expected {
		t.Errorf("unexpected error message:\ngot:  %q\nwant: %q", err.Error(), expected)
	}
}

func TestValidate_MissingAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Database.Addrs = nil

	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing database addrs")
	}
}

func TestValidate_EmptyAPIKeyAllowed(t *testing.T) {
	// local.yaml defaults api_key to empty; the service still starts and
	// the provider rejects embedding calls at request time.
	cfg := validConfig()
	cfg.Embedding.APIKey = ""

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error for empty embedding api key: %v", err)
	}
}

func TestValidate_BadCorpusIDs(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"uppercase allow-list entry", func(c *Config) { c.Registry.Corpora = []string{"KJV"} }},
		{"spaced fallback entry", func(c *Config) { c.Registry.Fallback = []string{"k j v"} }},
		{"default corpus with wildcard", func(c *Config) { c.Search.DefaultCorpus = "kjv*" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := Config{}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 10 {
		t.Errorf("expected ReadTimeoutSec=10, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.HTTP.WriteTimeoutSec != 30 {
		t.Errorf("expected WriteTimeoutSec=30, got %d", cfg.HTTP.WriteTimeoutSec)
	}
	if cfg.Database.Driver != "valkey" {
		t.Errorf("expected driver=valkey, got %q", cfg.Database.Driver)
	}
	if cfg.Database.MaxSessions != 64 {
		t.Errorf("expected MaxSessions=64, got %d", cfg.Database.MaxSessions)
	}
	if cfg.Embedding.Dimensions != 768 {
		t.Errorf("expected Dimensions=768, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Registry.TTLSec != 300 {
		t.Errorf("expected TTLSec=300, got %d", cfg.Registry.TTLSec)
	}
	if len(cfg.Registry.Corpora) == 0 {
		t.Error("expected default allow-list")
	}
	if len(cfg.Registry.Fallback) == 0 {
		t.Error("expected default fallback list")
	}
	if cfg.Search.DefaultCorpus != "kjv" {
		t.Errorf("expected DefaultCorpus=kjv, got %q", cfg.Search.DefaultCorpus)
	}
}

func TestApplyDefaults_NoOverride(t *testing.T) {
	cfg := Config{
		HTTP:     HTTPConfig{ReadTimeoutSec: 30, WriteTimeoutSec: 60, ShutdownSec: 5},
		Database: DatabaseConfig{Driver: "redis", ReadinessTimeout: 15, MaxSessions: 8},
		Registry: RegistryConfig{TTLSec: 60, Corpora: []string{"kjv"}, Fallback: []string{"kjv"}},
		Search:   SearchConfig{DefaultCorpus: "web"},
	}
	cfg.ApplyDefaults()

	if cfg.HTTP.ReadTimeoutSec != 30 {
		t.Errorf("expected ReadTimeoutSec=30, got %d", cfg.HTTP.ReadTimeoutSec)
	}
	if cfg.Database.Driver != "redis" {
		t.Errorf("expected driver=redis, got %q", cfg.Database.Driver)
	}
	if cfg.Database.MaxSessions != 8 {
		t.Errorf("expected MaxSessions=8, got %d", cfg.Database.MaxSessions)
	}
	if cfg.Registry.TTLSec != 60 {
		t.Errorf("expected TTLSec=60, got %d", cfg.Registry.TTLSec)
	}
	if len(cfg.Registry.Corpora) != 1 || cfg.Registry.Corpora[0] != "kjv" {
		t.Errorf("allow-list overridden: %v", cfg.Registry.Corpora)
	}
	if cfg.Search.DefaultCorpus != "web" {
		t.Errorf("expected DefaultCorpus=web, got %q", cfg.Search.DefaultCorpus)
	}
}

func TestMustLoad_PanicsOnMissingConfig(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected MustLoad to panic for a nonexistent environment")
		}
	}()
	MustLoad("no-such-env")
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("VERSEVEC_TEST_KEY", "secret")

	in := []byte("api_key: ${VERSEVEC_TEST_KEY}\nmodel: ${VERSEVEC_TEST_MODEL:-text-embedding-3-small}\n")
	out := string(expandEnvVars(in))

	want := "api_key: secret\nmodel: text-embedding-3-small\n"
	if out != want {
		t.Errorf("expanded config:\ngot:  %q\nwant: %q", out, want)
	}
}
