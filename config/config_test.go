package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "hyperagent", cfg.App.Name)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.HTTP.ReadTimeout)
	assert.Equal(t, "memory", cfg.Storage.Type)
	assert.Equal(t, "memory", cfg.EventBus.Type)

	a := cfg.Agent
	assert.Equal(t, 0.15, a.ImpasseThreshold)
	assert.Equal(t, 0.02, a.TieEpsilon)
	assert.Equal(t, 0.55, a.SemanticFloor)
	assert.Equal(t, 0.7, a.GenericMultiplier)
	assert.Equal(t, 0.7, a.PressureHigh)
	assert.Equal(t, 0.60, a.CompleteBoth)
	assert.Equal(t, 0.70, a.CompleteEither)
	assert.Equal(t, 0.53, a.AdvanceThreshold)
	assert.Equal(t, 0.5, a.KeywordCompleteRatio)
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		field   string
		wantErr bool
	}{
		{name: "defaults", mutate: func(*Config) {}},
		{name: "empty app name", mutate: func(c *Config) { c.App.Name = "" }, field: "Config.App.Name", wantErr: true},
		{name: "bad environment", mutate: func(c *Config) { c.App.Environment = "qa" }, field: "Config.App.Environment", wantErr: true},
		{name: "port out of range", mutate: func(c *Config) { c.Server.Port = 70000 }, field: "Config.Server.Port", wantErr: true},
		{name: "bad log level", mutate: func(c *Config) { c.Log.Level = "trace" }, field: "Config.Log.Level", wantErr: true},
		{name: "bad storage", mutate: func(c *Config) { c.Storage.Type = "redis" }, field: "Config.Storage.Type", wantErr: true},
		{name: "bad bus", mutate: func(c *Config) { c.EventBus.Type = "kafka" }, field: "Config.EventBus.Type", wantErr: true},
		{name: "threshold above one", mutate: func(c *Config) { c.Agent.SemanticFloor = 1.2 }, field: "Config.Agent.SemanticFloor", wantErr: true},
		{name: "advance above complete", mutate: func(c *Config) { c.Agent.AdvanceThreshold = 0.65 }, field: "Config.Agent.AdvanceThreshold", wantErr: true},
		{name: "both above either", mutate: func(c *Config) { c.Agent.CompleteBoth = 0.75 }, field: "Config.Agent.CompleteBoth", wantErr: true},
		{name: "zero weights", mutate: func(c *Config) { c.Memory.VectorWeight, c.Memory.BM25Weight = 0, 0 }, field: "Config.Memory.VectorWeight", wantErr: true},
		{name: "zero rate", mutate: func(c *Config) { c.Runner.CyclesPerSecond = 0 }, field: "Config.Runner.CyclesPerSecond", wantErr: true},
		{name: "tiny vectors", mutate: func(c *Config) { c.Vector.Dimension = 8 }, field: "Config.Vector.Dimension", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := ValidateWithDetails(cfg)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			var details ValidationErrors
			require.True(t, errors.As(err, &details), "got %v", err)
			fields := make([]string, len(details))
			for i, d := range details {
				fields[i] = d.Field
			}
			assert.Contains(t, fields, tt.field)
		})
	}
}

func TestValidationErrors_Error(t *testing.T) {
	assert.Equal(t, "no validation errors", ValidationErrors{}.Error())

	errs := ValidationErrors{{Field: "Config.Server.Port", Message: "must be at most 65535", Value: 70000}}
	assert.Contains(t, errs.Error(), "Config.Server.Port: must be at most 65535 (got 70000)")
}

func TestConfig_String(t *testing.T) {
	s := DefaultConfig().String()
	assert.Equal(t, "Config{App: hyperagent, Server: :8080, Env: development, Storage: memory}", s)
}

func TestLoader_Defaults(t *testing.T) {
	loader := NewLoader()
	cfg, err := loader.Load("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig().Agent, cfg.Agent)
	assert.Equal(t, DefaultConfig().Memory, cfg.Memory)
	assert.Equal(t, time.Hour, cfg.Memory.DecayInterval)
	assert.Equal(t, uint64(42), cfg.Vector.Seed)

	assert.Equal(t, "hyperagent", loader.GetString("app.name"))
	assert.Equal(t, 8080, loader.GetInt("server.port"))
	assert.True(t, loader.GetBool("metrics.enabled"))

	assert.Equal(t, "hyperagent", loader.Get("app.name"))
	assert.Contains(t, loader.Print(), "app.name")
}

func TestLoader_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `
app:
  name: moons
agent:
  semantic_floor: 0.6
  spread:
    max_depth: 3
memory:
  working_capacity: 32
  decay_interval: 10m
storage:
  type: badger
  badger:
    path: /tmp/hyperagent
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "moons", cfg.App.Name)
	assert.Equal(t, 0.6, cfg.Agent.SemanticFloor)
	assert.Equal(t, 3, cfg.Agent.Spread.MaxDepth)
	assert.Equal(t, 0.5, cfg.Agent.Spread.Decay, "unset nested keys keep defaults")
	assert.Equal(t, 0.02, cfg.Agent.TieEpsilon)
	assert.Equal(t, 32, cfg.Memory.WorkingCapacity)
	assert.Equal(t, 10*time.Minute, cfg.Memory.DecayInterval)
	assert.Equal(t, "badger", cfg.Storage.Type)
	assert.Equal(t, "/tmp/hyperagent", cfg.Storage.Badger.Path)
}

func TestLoader_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server": {"port": 9000}, "eventbus": {"type": "redis"}}`), 0o644))

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "redis", cfg.EventBus.Type)
	assert.Equal(t, "localhost:6379", cfg.EventBus.Redis.Address)
}

func TestLoader_FileErrors(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml", nil)
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("x = 1"), 0o644))
	_, err = Load(path, nil)
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "unsupported config file format"))
}

func TestLoader_ReloadKeepsOverridesAndDropsRemovedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("agent:\n  tie_epsilon: 0.05\nmemory:\n  working_capacity: 16\n"), 0o644))

	loader := NewLoader()
	cfg, err := loader.Load(path, map[string]interface{}{"server.port": 9191})
	require.NoError(t, err)
	assert.Equal(t, 9191, cfg.Server.Port)
	assert.Equal(t, 16, cfg.Memory.WorkingCapacity)

	require.NoError(t, os.WriteFile(path, []byte("agent:\n  tie_epsilon: 0.03\n"), 0o644))
	cfg, err = loader.Reload(path)
	require.NoError(t, err)

	assert.Equal(t, 9191, cfg.Server.Port, "overrides survive reload")
	assert.Equal(t, 0.03, cfg.Agent.TieEpsilon)
	assert.Equal(t, DefaultConfig().Memory.WorkingCapacity, cfg.Memory.WorkingCapacity, "removed keys fall back to defaults")
}

func TestLoader_FailedLoadKeepsPreviousState(t *testing.T) {
	loader := NewLoader()
	_, err := loader.Load("", map[string]interface{}{"app.name": "first"})
	require.NoError(t, err)

	_, err = loader.Load("", map[string]interface{}{"server.port": 70000})
	require.Error(t, err)
	assert.Equal(t, "first", loader.GetString("app.name"))
}

func TestLoader_EnvAndOverrides(t *testing.T) {
	t.Setenv("HYPERAGENT_SERVER__PORT", "7777")
	t.Setenv("HYPERAGENT_AGENT__TIE_EPSILON", "0.05")
	t.Setenv("HYPERAGENT_LOG__LEVEL", "error")

	cfg, err := Load("", map[string]interface{}{"log.level": "debug"})
	require.NoError(t, err)

	assert.Equal(t, 7777, cfg.Server.Port)
	assert.Equal(t, 0.05, cfg.Agent.TieEpsilon)
	assert.Equal(t, "debug", cfg.Log.Level, "overrides win over env")
}

func TestFormatValidationError(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	cfg.Agent.CompleteBoth = 0.9

	err := ValidateWithDetails(cfg)
	var details ValidationErrors
	require.True(t, errors.As(err, &details))

	messages := make(map[string]string)
	for _, d := range details {
		messages[d.Field] = d.Message
	}
	assert.Equal(t, "this field is required", messages["Config.Server.Port"])
	assert.Equal(t, "must not exceed the next progress threshold", messages["Config.Agent.CompleteBoth"])
}
