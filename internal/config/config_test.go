package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_DefaultConfigIsValid(t *testing.T) {
	require.NoError(t, NewDefaultConfig().Validate())
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"server port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"environment", func(c *Config) { c.Server.Environment = "qa" }, "server.environment"},
		{"grpc port collision", func(c *Config) { c.GRPC.Enabled = true; c.GRPC.Port = c.Server.Port }, "collides"},
		{"database host", func(c *Config) { c.Database.Host = "" }, "database.host"},
		{"database conns", func(c *Config) { c.Database.MaxOpenConns = 0 }, "database.max_open_conns"},
		{"redis mode", func(c *Config) { c.Redis.Mode = "ring" }, "redis.mode"},
		{"redis cluster addrs", func(c *Config) { c.Redis.Mode = "cluster" }, "redis.addrs"},
		{"kafka brokers", func(c *Config) { c.Kafka.Enabled = true; c.Kafka.Brokers = nil }, "kafka.brokers"},
		{"minio bucket", func(c *Config) { c.MinIO.Bucket = "" }, "minio.bucket"},
		{"worker concurrency", func(c *Config) { c.Worker.Concurrency = 0 }, "worker.concurrency"},
		{"auth secret", func(c *Config) { c.Auth.Enabled = true }, "auth.secret_key"},
		{"auth algorithm", func(c *Config) {
			c.Auth.Enabled = true
			c.Auth.SecretKey = "s"
			c.Auth.Algorithm = "RS256"
		}, "auth.algorithm"},
		{"production without auth", func(c *Config) { c.Server.Environment = "production" }, "production"},
		{"inline limit", func(c *Config) { c.Upload.InlineParseLimit = c.Upload.MaxFileSize + 1 }, "inline_parse_limit"},
		{"max atoms", func(c *Config) { c.Analysis.MaxAtoms = -1 }, "analysis.max_atoms"},
		{"hbond range", func(c *Config) { c.Analysis.HBondMinDistance = 3.0 }, "hbond_min_distance"},
		{"vdw range", func(c *Config) { c.Analysis.VdWMinRatio = 1.5 }, "vdw_min_ratio"},
		{"log level", func(c *Config) { c.Log.Level = "trace" }, "log.level"},
		{"log format", func(c *Config) { c.Log.Format = "text" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestDatabaseConfig_DSN(t *testing.T) {
	d := DatabaseConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "bio", SSLMode: "disable"}
	assert.Equal(t, "postgres://u:p@db:5432/bio?sslmode=disable", d.DSN())
}

func TestServerConfig_IsProduction(t *testing.T) {
	assert.True(t, ServerConfig{Environment: "production"}.IsProduction())
	assert.False(t, ServerConfig{Environment: "development"}.IsProduction())
}
