package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

const sample = `
server:
  port: 9000
database:
  host: db
  user: trip
  password: ${TRIPWISE_TEST_DB_PASSWORD}
  dbname: tripwise
aws:
  region: eu-central-1
  s3_bucket: tripwise-photos
jwt:
  secret: ${TRIPWISE_TEST_JWT_SECRET}
  ttl: 1h
valkey:
  addr: localhost:6379
`

func TestParseExpandsEnvironment(t *testing.T) {
	t.Setenv("TRIPWISE_TEST_DB_PASSWORD", "hunter2")
	t.Setenv("TRIPWISE_TEST_JWT_SECRET", "s3cret")

	cfg, err := Parse([]byte(sample))
	assert.Equal(t, nil, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "hunter2", cfg.Database.Password)
	assert.Equal(t, "s3cret", cfg.JWT.Secret)
	assert.Equal(t, time.Hour, cfg.JWT.TTL)
	assert.Equal(t, "host=db port=5432 user=trip password=hunter2 dbname=tripwise sslmode=disable", cfg.Database.DSN())
}

func TestParseDefaults(t *testing.T) {
	t.Setenv("TRIPWISE_TEST_DB_PASSWORD", "")
	t.Setenv("TRIPWISE_TEST_JWT_SECRET", "x")

	cfg, err := Parse([]byte(sample))
	assert.Equal(t, nil, err)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "tripwise:changes", cfg.Valkey.Channel)
	assert.Equal(t, 15*time.Minute, cfg.AWS.PresignTTL)
	assert.Equal(t, 20, cfg.Photos.MaxBatch)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowedOrigins)
	assert.Equal(t, "", cfg.APNs.KeyFile)
}

func TestParseRequiresSecret(t *testing.T) {
	t.Setenv("TRIPWISE_TEST_JWT_SECRET", "")
	_, err := Parse([]byte(sample))
	assert.NotEqual(t, nil, err)
}

func TestDatabaseURLWins(t *testing.T) {
	c := DatabaseConfig{URL: "postgres://u:p@h/db", Host: "ignored"}
	assert.Equal(t, "postgres://u:p@h/db", c.DSN())
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.NotEqual(t, nil, err)

	path := filepath.Join(t.TempDir(), "config.yaml")
	t.Setenv("TRIPWISE_TEST_JWT_SECRET", "x")
	assert.Equal(t, nil, os.WriteFile(path, []byte(sample), 0o600))
	cfg, err := Load(path)
	assert.Equal(t, nil, err)
	assert.Equal(t, "tripwise-photos", cfg.AWS.S3Bucket)
}
