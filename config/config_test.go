package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresVoterHashSecret(t *testing.T) {
	t.Setenv("VOTER_HASH_SECRET", "")

	cfg, err := Load()
	assert.ErrorIs(t, err, ErrVoterHashSecretMissing)
	assert.Nil(t, cfg)
}

func TestLoadDefaultsAndOverrides(t *testing.T) {
	t.Setenv("VOTER_HASH_SECRET", "  pepper  ")
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_ENABLED", "false")
	t.Setenv("JWT_EXPIRE_HOURS", "not-a-number")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("ADMIN_EMAILS", " Chair@Example.org, ,sec@example.org ")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "pepper", cfg.Voting.VoterHashSecret)
	assert.Equal(t, "9090", cfg.Server.Port)
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 24, cfg.JWT.ExpireHours)
	assert.Equal(t, 10, cfg.Voting.RequestTimeoutSec)
	assert.Equal(t, []string{"chair@example.org", "sec@example.org"}, cfg.JWT.AdminEmails)
}

func TestDSN(t *testing.T) {
	c := DatabaseConfig{Host: "db", Port: "5432", User: "u", Password: "p", DBName: "portal", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/portal?sslmode=disable", c.DSN())

	c.URL = "postgres://elsewhere/x"
	assert.Equal(t, "postgres://elsewhere/x", c.DSN())
}
