package internal

import (
	"testing"
	"time"

	env "github.com/Netflix/go-env"
	"github.com/stretchr/testify/require"
)

func TestConfig_Defaults(t *testing.T) {
	req := require.New(t)

	// Given only the required paths
	es := env.EnvSet{
		"BADGER_FILEPATH": "/tmp/badger",
		"BLUGE_FILEPATH":  "/tmp/bluge",
		"UPLOAD_DIR":      "/tmp/uploads",
	}

	// When the environment is unmarshalled
	var cfg Config
	err := env.Unmarshal(es, &cfg)

	// Then every tunable falls back to its default
	req.NoError(err)
	req.Equal(8080, cfg.Port)
	req.Equal(9090, cfg.GrpcPort)
	req.Equal("INFO", cfg.LogLevel)
	req.Equal(int64(10485760), cfg.MaxUploadBytes)
	req.Equal(256, cfg.OutboundQueueSize)
	req.Equal(20.0, cfg.InboundRatePerSecond)
	req.Equal(2*time.Second, cfg.SinkTimeout)
	req.False(cfg.EnableModeration)
	req.Empty(cfg.AuthSecret)
}

func TestConfig_Overrides(t *testing.T) {
	req := require.New(t)

	// Given explicit values
	es := env.EnvSet{
		"BADGER_FILEPATH":     "/data/badger",
		"BLUGE_FILEPATH":      "/data/bluge",
		"UPLOAD_DIR":          "/data/uploads",
		"PORT":                "9000",
		"AUTH_SECRET":         "s3cret",
		"ENABLE_MODERATION":   "true",
		"SHUTDOWN_TIMEOUT":    "30s",
		"OUTBOUND_QUEUE_SIZE": "16",
	}

	// When the environment is unmarshalled
	var cfg Config
	err := env.Unmarshal(es, &cfg)

	// Then the values win over defaults
	req.NoError(err)
	req.Equal(9000, cfg.Port)
	req.Equal("s3cret", cfg.AuthSecret)
	req.True(cfg.EnableModeration)
	req.Equal(30*time.Second, cfg.ShutdownTimeout)
	req.Equal(16, cfg.OutboundQueueSize)
}

func TestConfig_MissingRequiredPath(t *testing.T) {
	req := require.New(t)

	// Given no storage paths
	es := env.EnvSet{"PORT": "8080"}

	// When the environment is unmarshalled
	var cfg Config
	err := env.Unmarshal(es, &cfg)

	// Then it fails
	req.Error(err)
}
