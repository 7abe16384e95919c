package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "SQL Agent", cfg.App.Name)
	assert.False(t, cfg.App.Debug)
	assert.Equal(t, "gpt-4o-mini", cfg.OpenAI.Model)
	assert.Equal(t, 0.0, cfg.OpenAI.Temperature)
	assert.Equal(t, 30*time.Second, cfg.OpenAI.Timeout)
	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 3, cfg.Search.MaxOptionalFilters)
	assert.Equal(t, "memory", cfg.Session.Backend)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Warnings)
}

func TestLoad_MissingAPIKeyIsFatal(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load()
	assert.Nil(t, cfg)
	assert.ErrorIs(t, err, ErrMissingAPIKey)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("LLM_MODEL", "gpt-4o")
	t.Setenv("LLM_TEMPERATURE", "0.4")
	t.Setenv("MAX_RESULTS", "12")
	t.Setenv("APP_NAME", "Agente")
	t.Setenv("DEBUG", "true")
	t.Setenv("SESSION_BACKEND", "Redis")
	t.Setenv("CORS_ALLOWED_ORIGINS", "http://a.test, http://b.test")
	t.Setenv("OPENAI_API_BASE", "http://llm.local/v1/")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.OpenAI.Model)
	assert.InDelta(t, 0.4, cfg.OpenAI.Temperature, 1e-9)
	assert.Equal(t, 12, cfg.Search.MaxResults)
	assert.Equal(t, "Agente", cfg.App.Name)
	assert.True(t, cfg.App.Debug)
	assert.Equal(t, "debug", cfg.Server.GinMode)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "redis", cfg.Session.Backend)
	assert.Equal(t, []string{"http://a.test", "http://b.test"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "http://llm.local/v1", cfg.OpenAI.APIBase)
}

func TestValidate_RejectsUnknownBackend(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SESSION_BACKEND", "memcached")

	_, err := Load()
	assert.Error(t, err)
}

func TestGetPostgreSQLDSN(t *testing.T) {
	cfg := &Config{PostgreSQL: PostgreSQLConfig{
		Host: "db", Port: 5433, User: "u", Password: "p", Database: "props", SSLMode: "disable",
	}}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=props sslmode=disable", cfg.GetPostgreSQLDSN())

	cfg.PostgreSQL.DSN = "postgres://x"
	assert.Equal(t, "postgres://x", cfg.GetPostgreSQLDSN())
}

func TestLoad_MalformedValuesFallBackWithWarnings(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("MAX_RESULTS", "lots")
	t.Setenv("LLM_TEMPERATURE", "warm")
	t.Setenv("DEBUG", "maybe")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Search.MaxResults)
	assert.Equal(t, 0.0, cfg.OpenAI.Temperature)
	assert.False(t, cfg.App.Debug)
	assert.ElementsMatch(t, []string{
		"invalid boolean value for DEBUG, using default false",
		"invalid integer value for MAX_RESULTS, using default 5",
		"invalid float value for LLM_TEMPERATURE, using default 0",
	}, cfg.Warnings)
}
