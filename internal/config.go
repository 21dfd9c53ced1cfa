package internal

import (
	"fmt"
	"time"
)

type Config struct {
	Host                 string        `env:"HOST,default=0.0.0.0"`
	Port                 int           `env:"PORT,default=8080"`
	GrpcPort             int           `env:"GRPC_PORT,default=9090"`
	PublicURL            string        `env:"PUBLIC_URL,default=http://localhost:8080"`
	AllowedOrigin        string        `env:"ALLOWED_ORIGIN"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath        string        `env:"BLUGE_FILEPATH,required=true"`
	UploadDir            string        `env:"UPLOAD_DIR,required=true"`
	MaxUploadBytes       int64         `env:"MAX_UPLOAD_BYTES,default=10485760"`
	AuthSecret           string        `env:"AUTH_SECRET"`
	EnableModeration     bool          `env:"ENABLE_MODERATION,default=false"`
	CharReplacement      string        `env:"CHARACTER_REPLACEMENT,default=*"`
	InboundQueueSize     int           `env:"INBOUND_QUEUE_SIZE,default=64"`
	OutboundQueueSize    int           `env:"OUTBOUND_QUEUE_SIZE,default=256"`
	MaxFrameBytes        int64         `env:"MAX_FRAME_BYTES,default=65536"`
	InboundRatePerSecond float64       `env:"INBOUND_RATE_PER_SECOND,default=20"`
	InboundBurst         int           `env:"INBOUND_BURST,default=40"`
	EventBufferSize      int           `env:"EVENT_BUFFER_SIZE,default=1024"`
	SinkTimeout          time.Duration `env:"SINK_TIMEOUT,default=2s"`
	IndexBatchSize       int           `env:"INDEX_BATCH_SIZE,default=100"`
	IndexBufferTimeout   time.Duration `env:"INDEX_BUFFER_TIMEOUT,default=1s"`
	MetricInterval       time.Duration `env:"METRIC_INTERVAL,default=15s"`
	ShutdownTimeout      time.Duration `env:"SHUTDOWN_TIMEOUT,default=10s"`
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
