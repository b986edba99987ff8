package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates all runtime settings required by the application.
type Config struct {
	AppName     string
	Environment string
	HTTP        HTTPConfig
	Registry    RegistryConfig
	Workspace   WorkspaceConfig
	Supervisor  SupervisorConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Buffer      BufferConfig
	Context     ContextConfig
	Logger      LoggerConfig
	Migrations  MigrationsConfig
}

type HTTPConfig struct {
	Host               string
	Port               string
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	MaxConn            int
	MaxRequestBodySize int
}

type RegistryConfig struct {
	Path string
}

type WorkspaceConfig struct {
	Root          string
	BackupDir     string
	MaxMediaBytes int64
}

// SupervisorConfig holds the worker lifecycle knobs, including the
// restart-storm thresholds.
type SupervisorConfig struct {
	Mode              string
	WorkerCommand     string
	WorkerArgs        []string
	StartTimeout      time.Duration
	StopTimeout       time.Duration
	RestartGrace      time.Duration
	HeartbeatInterval time.Duration
	HeartbeatTimeout  time.Duration
	MaxConcurrent     int
	AutoRestart       bool
	MaxRestarts       int
	RestartWindow     time.Duration
	MinUptime         time.Duration
	RestartDelay      time.Duration
	CronRestart       string
	Timezone          string
	AutoStart         bool
}

type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	MaxConnLifetime time.Duration
}

// Enabled reports whether the audit trail database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.URL != ""
}

type RedisConfig struct {
	URL       string
	Password  string
	DB        int
	KeyPrefix string
}

func (r RedisConfig) Enabled() bool {
	return r.URL != ""
}

type JWTConfig struct {
	Secret string
	Issuer string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type BufferConfig struct {
	Path           string
	RetentionHours int
	SyncInterval   time.Duration
	MaxRetry       int
}

type ContextConfig struct {
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
}

type LoggerConfig struct {
	Level    string
	Encoding string
}

type MigrationsConfig struct {
	Enabled bool
	Path    string
}

// Load reads configuration from environment variables (optionally .env)
// and applies defaults so the control plane can boot without any backend
// besides the local filesystem.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	cfg := &Config{
		AppName:     getString("APP_NAME", "botfleet"),
		Environment: getString("APP_ENV", "development"),
		HTTP: HTTPConfig{
			Host:               getString("SERVER_HOST", "0.0.0.0"),
			Port:               getString("SERVER_PORT", "5001"),
			ReadTimeout:        getDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:       getDuration("SERVER_WRITE_TIMEOUT", 75*time.Second),
			IdleTimeout:        getDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			MaxConn:            getInt("SERVER_MAX_CONN", 0),
			MaxRequestBodySize: getInt("SERVER_MAX_BODY_BYTES", 32<<20),
		},
		Registry: RegistryConfig{
			Path: getString("REGISTRY_PATH", "./data/registry.db"),
		},
		Workspace: WorkspaceConfig{
			Root:          getString("WORKSPACE_ROOT", "./accounts"),
			BackupDir:     getString("WORKSPACE_BACKUP_DIR", "./data/backups"),
			MaxMediaBytes: int64(getInt("WORKSPACE_MAX_MEDIA_BYTES", 15<<20)),
		},
		Supervisor: SupervisorConfig{
			Mode:              getString("SUPERVISOR_MODE", "process"),
			WorkerCommand:     os.Getenv("SUPERVISOR_WORKER_COMMAND"),
			WorkerArgs:        getList("SUPERVISOR_WORKER_ARGS", nil),
			StartTimeout:      getDuration("SUPERVISOR_START_TIMEOUT", 10*time.Second),
			StopTimeout:       getDuration("SUPERVISOR_STOP_TIMEOUT", 5*time.Second),
			RestartGrace:      getDuration("SUPERVISOR_RESTART_GRACE", 5*time.Second),
			HeartbeatInterval: getDuration("SUPERVISOR_HEARTBEAT_INTERVAL", 5*time.Second),
			HeartbeatTimeout:  getDuration("SUPERVISOR_HEARTBEAT_TIMEOUT", 30*time.Second),
			MaxConcurrent:     getInt("SUPERVISOR_MAX_CONCURRENT", 3),
			AutoRestart:       getBool("SUPERVISOR_AUTO_RESTART", true),
			MaxRestarts:       getInt("SUPERVISOR_MAX_RESTARTS", 10),
			RestartWindow:     getDuration("SUPERVISOR_RESTART_WINDOW", 15*time.Minute),
			MinUptime:         getDuration("SUPERVISOR_MIN_UPTIME", 10*time.Second),
			RestartDelay:      getDuration("SUPERVISOR_RESTART_DELAY", 5*time.Second),
			CronRestart:       getString("SUPERVISOR_CRON_RESTART", "0 3 * * *"),
			Timezone:          getString("SUPERVISOR_TIMEZONE", "Local"),
			AutoStart:         getBool("SUPERVISOR_AUTO_START", false),
		},
		Database: DatabaseConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DB_MAX_IDLE_CONNS", 2),
			MaxConnLifetime: getDuration("DB_CONN_LIFETIME", time.Hour),
		},
		Redis: RedisConfig{
			URL:       os.Getenv("REDIS_URL"),
			Password:  os.Getenv("REDIS_PASSWORD"),
			DB:        getInt("REDIS_DB", 0),
			KeyPrefix: getString("REDIS_KEY_PREFIX", "botfleet:"),
		},
		JWT: JWTConfig{
			Secret: os.Getenv("JWT_SECRET"),
			Issuer: getString("JWT_ISSUER", "botfleet"),
		},
		CORS: CORSConfig{
			AllowedOrigins: getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Buffer: BufferConfig{
			Path:           getString("BOLTDB_PATH", "./data/buffer.db"),
			RetentionHours: getInt("BUFFER_RETENTION_HOURS", 72),
			SyncInterval:   getDuration("SYNC_INTERVAL_SECONDS", 30*time.Second),
			MaxRetry:       getInt("MAX_RETRY_ATTEMPTS", 5),
		},
		Context: ContextConfig{
			RequestTimeout:  getDuration("REQUEST_TIMEOUT_SECONDS", 20*time.Second),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT_SECONDS", 30*time.Second),
		},
		Logger: LoggerConfig{
			Level:    getString("LOG_LEVEL", "info"),
			Encoding: getString("LOG_ENCODING", "json"),
		},
		Migrations: MigrationsConfig{
			Enabled: getBool("RUN_MIGRATIONS", true),
			Path:    os.Getenv("MIGRATIONS_PATH"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// MustLoad panics if configuration cannot be loaded.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

func (c *Config) validate() error {
	switch c.Supervisor.Mode {
	case "process", "inproc":
	default:
		return fmt.Errorf("SUPERVISOR_MODE must be process or inproc, got %q", c.Supervisor.Mode)
	}
	if c.Supervisor.StopTimeout <= 0 || c.Supervisor.StartTimeout <= 0 {
		return fmt.Errorf("supervisor start/stop timeouts must be positive")
	}
	if c.Workspace.MaxMediaBytes <= 0 {
		return fmt.Errorf("WORKSPACE_MAX_MEDIA_BYTES must be positive")
	}
	if int64(c.HTTP.MaxRequestBodySize) <= c.Workspace.MaxMediaBytes {
		// keep room for multipart framing so oversized media is rejected by
		// the workspace with FileTooLarge instead of a dropped connection
		c.HTTP.MaxRequestBodySize = int(c.Workspace.MaxMediaBytes*2 + 1<<20)
	}
	return nil
}

func getString(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			return parsed
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if parsed, err := time.ParseDuration(val); err == nil {
			return parsed
		}
		if seconds, err := strconv.Atoi(val); err == nil {
			return time.Duration(seconds) * time.Second
		}
	}
	return fallback
}

func getList(key string, fallback []string) []string {
	val := os.Getenv(key)
	if strings.TrimSpace(val) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Address returns the HTTP listen address for the fasthttp server.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%s", c.HTTP.Host, c.HTTP.Port)
}
