package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const sandboxYAML = `
database:
  driver: sqlite
  dsn: ":memory:"
chain:
  sandbox: true
auth:
  jwt_secret: from-file
`

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, sandboxYAML))
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 24*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 60*time.Second, cfg.Chain.CallTimeout)
	assert.Equal(t, uint64(6000000), cfg.Chain.GasLimit)
	assert.Equal(t, []string{"title", "name"}, cfg.Campaign.SearchFields)
	assert.True(t, cfg.Lifecycle.ContributeBeforeEnd)
	assert.Equal(t, "any", cfg.Lifecycle.VoteWindow)
	assert.True(t, cfg.Lifecycle.FinalizeOwnerOnly)
	assert.Equal(t, 5, cfg.Task.MaxAttempts)
	assert.Equal(t, 600, cfg.Task.StaleAfter)
	assert.True(t, cfg.Auth.CookieSecure)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("AUTH_JWT_SECRET", "from-env")
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("CHAIN_CONTRACT_ADDRESS", "0x00000000000000000000000000000000000000Cf")

	cfg, err := Load(writeConfig(t, sandboxYAML))
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.Equal(t, "0x00000000000000000000000000000000000000Cf", cfg.Chain.ContractAddress)
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			Database: DatabaseConfig{Driver: "postgres"},
			Chain: ChainConfig{
				RpcUrl:          "http://127.0.0.1:7545",
				ContractAddress: "0x00000000000000000000000000000000000000Cf",
				PrivateKey:      "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80",
				CallTimeout:     time.Minute,
			},
			Auth:      AuthConfig{JWTSecret: "secret", TokenTTL: time.Hour},
			Campaign:  CampaignConfig{SearchFields: []string{"title"}},
			Lifecycle: LifecycleConfig{VoteWindow: "any"},
		}
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing secret", func(c *Config) { c.Auth.JWTSecret = "" }},
		{"zero ttl", func(c *Config) { c.Auth.TokenTTL = 0 }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"unknown vote window", func(c *Config) { c.Lifecycle.VoteWindow = "sometimes" }},
		{"unsearchable field", func(c *Config) { c.Campaign.SearchFields = []string{"creator_id"} }},
		{"missing contract", func(c *Config) { c.Chain.ContractAddress = "" }},
		{"missing key", func(c *Config) { c.Chain.PrivateKey = "" }},
		{"zero call timeout", func(c *Config) { c.Chain.CallTimeout = 0 }},
		{"zero stale after", func(c *Config) { c.Task = TaskConfig{Enabled: true} }},
		{"stale after within call timeout", func(c *Config) { c.Task = TaskConfig{Enabled: true, StaleAfter: 60} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	withTask := valid()
	withTask.Task = TaskConfig{Enabled: true, StaleAfter: 600}
	assert.NoError(t, withTask.Validate())

	sandbox := valid()
	sandbox.Chain = ChainConfig{Sandbox: true}
	assert.NoError(t, sandbox.Validate())
}
