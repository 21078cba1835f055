package config

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type BaseEnv struct {
	Env       string `envconfig:"ENV" default:"local"`
	HTTPHost  string `envconfig:"HTTP_HOST" default:""`
	HTTPPort  string `envconfig:"HTTP_PORT" default:"3200"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"debug"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`
	APIKey    string `envconfig:"API_KEY" required:"true"`
}

type StorageEnv struct {
	Type    string `envconfig:"STORAGE_TYPE" default:"local"`
	BaseDir string `envconfig:"STORAGE_BASE_DIR" default:".tmdash/data"`
	// S3 settings (used when Type == "s3")
	S3Bucket string `envconfig:"S3_BUCKET"`
	S3Prefix string `envconfig:"S3_PREFIX" default:"tmdash/"`
	S3Region string `envconfig:"S3_REGION" default:"ap-northeast-1"`
}

type PushEnv struct {
	VAPIDPublicKey  string `envconfig:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `envconfig:"VAPID_PRIVATE_KEY"`
	VAPIDContact    string `envconfig:"VAPID_CONTACT" default:"mailto:admin@localhost"`
}

// TaskmasterEnv configures how projects are inspected and how the
// task-master CLI is run.
type TaskmasterEnv struct {
	CLIBinary      string        `envconfig:"CLI_BINARY" default:"task-master"`
	CLITimeout     time.Duration `envconfig:"CLI_TIMEOUT" default:"5m"`
	MCPConfigPaths []string      `envconfig:"MCP_CONFIG_PATHS"`
	RefreshCron    string        `envconfig:"REFRESH_SCHEDULE" default:"@every 1m"`
	WatchEnabled   bool          `envconfig:"WATCH_ENABLED" default:"true"`
	WatchDebounce  time.Duration `envconfig:"WATCH_DEBOUNCE" default:"300ms"`
}

type Env struct {
	BaseEnv
	StorageEnv
	PushEnv
	TaskmasterEnv
}

const namespace = "TMDASH"

func LoadEnv() (*Env, error) {
	var env Env
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

// LoadTaskmasterEnv reads only the taskmaster settings, for commands that
// inspect a project without serving.
func LoadTaskmasterEnv() (*TaskmasterEnv, error) {
	var env TaskmasterEnv
	if err := envconfig.Process(namespace, &env); err != nil {
		return nil, fmt.Errorf("failed to load env: %w", err)
	}
	return &env, nil
}

func (e *BaseEnv) SlogLevel() slog.Level {
	if e == nil {
		return slog.LevelDebug
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(e.LogLevel)); err != nil {
		return slog.LevelDebug
	}
	return level
}

func (e *BaseEnv) Addr() string {
	return e.HTTPHost + ":" + e.HTTPPort
}

func (e *PushEnv) PushEnabled() bool {
	return e.VAPIDPublicKey != "" && e.VAPIDPrivateKey != ""
}
