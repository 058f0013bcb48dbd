package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, "env: development\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, "9090", cfg.Server.MetricsPort)
	assert.Equal(t, "mongodb://localhost:27017", cfg.Mongo.URI)
	assert.Equal(t, "consogab", cfg.Mongo.Database)
	assert.Equal(t, "consogab.messaging", cfg.Kafka.Topic)
	assert.Equal(t, int64(5<<20), cfg.Media.MaxBytes)
	assert.Equal(t, 60, cfg.Rate.SendPerMinute)
	assert.Equal(t, 15*time.Second, cfg.ReadTimeout)
	assert.Equal(t, 5*time.Minute, cfg.DirectoryTTL)
	assert.Equal(t, 15*time.Minute, cfg.PresignTTL)
}

func TestLoadReadsValues(t *testing.T) {
	path := writeConfig(t, `
env: production
server:
  port: "3000"
  read_timeout_seconds: 30
mongo:
  uri: mongodb://db:27017
  database: messaging
kafka:
  brokers:
    - broker-1:9092
    - broker-2:9092
  topic: events
jwt:
  signing_method: RS256
  public_key_path: /etc/keys/jwt.pem
directory:
  base_url: http://directory:8081
  cache_ttl_seconds: 60
rate:
  send_per_minute: 10
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "production", cfg.Env)
	assert.Equal(t, "3000", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "messaging", cfg.Mongo.Database)
	assert.Equal(t, []string{"broker-1:9092", "broker-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, "events", cfg.Kafka.Topic)
	assert.Equal(t, "RS256", cfg.JWT.SigningMethod)
	assert.Equal(t, "http://directory:8081", cfg.Directory.BaseURL)
	assert.Equal(t, time.Minute, cfg.DirectoryTTL)
	assert.Equal(t, 10, cfg.Rate.SendPerMinute)
}

func TestLoadFailsOnMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
