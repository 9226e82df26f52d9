package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"MODE", "HTTP_ADDR", "PRACTICE_THRESHOLD", "STALE_AFTER", "REDIS_ADDR", "RABBITMQ_URI"} {
		t.Setenv(k, "")
	}
	c := FromEnv()
	assert.Equal(t, ModeOffline, c.Mode)
	assert.Equal(t, ":8080", c.HTTPAddr)
	assert.Equal(t, 80.0, c.PracticeThreshold)
	assert.Equal(t, 100.0, c.InterviewThreshold)
	assert.Equal(t, 72*time.Hour, c.StaleAfter)
	assert.Empty(t, c.RedisAddr)
	assert.Empty(t, c.RabbitMQURI)
	assert.Equal(t, c.CORSOriginsOffline, c.CORSOrigins())
}

func TestFromEnvOverrides(t *testing.T) {
	t.Setenv("MODE", "online")
	t.Setenv("PRACTICE_THRESHOLD", "70.5")
	t.Setenv("STALE_AFTER", "90m")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("LOG_PRETTY", "no")
	t.Setenv("CORS_ORIGINS_ONLINE", " https://a.example , https://b.example ,")

	c := FromEnv()
	assert.Equal(t, ModeOnline, c.Mode)
	assert.Equal(t, 70.5, c.PracticeThreshold)
	assert.Equal(t, 90*time.Minute, c.StaleAfter)
	assert.Equal(t, 3, c.RedisDB)
	assert.False(t, c.LogPretty)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.CORSOrigins())
}

func TestBadNumbersFallBack(t *testing.T) {
	t.Setenv("INTERVIEW_THRESHOLD", "strict")
	t.Setenv("LOCK_TTL", "soon")
	c := FromEnv()
	assert.Equal(t, 100.0, c.InterviewThreshold)
	assert.Equal(t, 10*time.Second, c.LockTTL)
}
