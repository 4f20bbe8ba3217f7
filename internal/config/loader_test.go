package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/intervoq/intervoq/internal/config"
)

func TestLoad_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "intervoq.yaml")
	if err := os.WriteFile(path, []byte(sampleYAML), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("listen_addr = %q", cfg.Server.ListenAddr)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoad_ExpandsEnvironmentVariables(t *testing.T) {
	t.Setenv("INTERVOQ_TEST_OPENROUTER_KEY", "sk-from-env")

	yml := `
providers:
  llm:
    accounts:
      openrouter:
        - name: acct-1
          api_key: ${INTERVOQ_TEST_OPENROUTER_KEY}
`
	cfg, err := config.LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if got := cfg.Providers.LLM.Accounts["openrouter"][0].APIKey; got != "sk-from-env" {
		t.Errorf("api_key = %q, want value from environment", got)
	}
}

func TestLoad_UnsetEnvironmentVariableExpandsEmpty(t *testing.T) {
	yml := `
memory:
  postgres_dsn: ${INTERVOQ_TEST_UNSET_DSN}
`
	cfg, err := config.LoadFromReader(strings.NewReader(yml))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.Memory.PostgresDSN != "" {
		t.Errorf("postgres_dsn = %q, want empty", cfg.Memory.PostgresDSN)
	}
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := config.LoadFromReader(strings.NewReader("server: [broken"))
	if err == nil {
		t.Fatal("expected decode error")
	}
}
