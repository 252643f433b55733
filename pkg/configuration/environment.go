package configuration

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/jusegoram/react-apollo-ccs-desk/pkg/logging"
)

const Production = "production"

var singleton = sync.OnceValue(func() *Configuration {
	c := &Configuration{}
	if err := c.load([]string{".env", ".env.local"}); err != nil {
		c.Unload()
		panic(err)
	}
	return c
})

// LoadEnv loads the env files found in the working directory, or in the nearest
// parent that holds a go.mod when none exist there.
func LoadEnv(envFiles []string) (int, error) {
	existingFiles := existingEnvFiles("", envFiles)
	if len(existingFiles) == 0 {
		if root := findModuleRoot(); root != "" {
			existingFiles = existingEnvFiles(root, envFiles)
		}
	}
	if len(existingFiles) == 0 {
		return 0, nil
	}
	return len(existingFiles), godotenv.Load(existingFiles...)
}

func existingEnvFiles(dir string, envFiles []string) []string {
	out := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		path := file
		if dir != "" {
			path = filepath.Join(dir, file)
		}
		if fs.FileExists(path) {
			out = append(out, path)
		}
	}
	return out
}

func findModuleRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if fs.FileExists(filepath.Join(dir, "go.mod")) {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

type DatabaseOptions struct {
	Opts             string        `env:"-"`
	Name             string        `env:"DB_NAME" envDefault:"ccs_desk"`
	Host             string        `env:"DB_HOST" envDefault:"localhost"`
	Port             string        `env:"DB_PORT" envDefault:"5432"`
	User             string        `env:"DB_USER" envDefault:"postgres"`
	Password         string        `env:"DB_PASSWORD" envDefault:"postgres"`
	MaxConns         int32         `env:"DB_MAX_CONNS" envDefault:"10"`
	LockTimeout      time.Duration `env:"DB_LOCK_TIMEOUT" envDefault:"30s"`
	StatementTimeout time.Duration `env:"DB_STATEMENT_TIMEOUT" envDefault:"0s"`
}

func (d *DatabaseOptions) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s dbname=%s password=%s sslmode=disable",
		d.Host, d.Port, d.User, d.Name, d.Password,
	)
}

type OpenTelemetryOptions struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	TempoURL    string `env:"OTEL_TEMPO_URL" envDefault:"localhost:4318"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"ccs-import"`
}

type PrometheusOptions struct {
	Enabled bool   `env:"PROMETHEUS_METRICS_ENABLED" envDefault:"true"`
	Path    string `env:"PROMETHEUS_METRICS_PATH" envDefault:"/debug/prometheus"`
}

type OpsOptions struct {
	GuardEnabled    bool   `env:"OPS_GUARD_ENABLED" envDefault:"false"`
	GuardToken      string `env:"OPS_GUARD_TOKEN"`
	GuardCIDRs      string `env:"OPS_GUARD_CIDRS"`
	CORSOrigins     string `env:"OPS_CORS_ORIGINS"`
	RealIPHeader    string `env:"REAL_IP_HEADER" envDefault:"X-Real-IP"`
	RequestIDHeader string `env:"REQUEST_ID_HEADER" envDefault:"X-Request-Id"`
}

type ImportOptions struct {
	Concurrency     int           `env:"IMPORT_CONCURRENCY" envDefault:"200"`
	FetchTimeout    time.Duration `env:"IMPORT_FETCH_TIMEOUT" envDefault:"5m"`
	CatalogPath     string        `env:"IMPORT_CATALOG" envDefault:"config/sources.yaml"`
	ReportsDir      string        `env:"IMPORT_REPORTS_DIR" envDefault:"reports"`
	DefaultTimezone string        `env:"IMPORT_DEFAULT_TIMEZONE" envDefault:"America/Chicago"`
	LockEnabled     bool          `env:"IMPORT_LOCK_ENABLED" envDefault:"false"`
	LockTTL         time.Duration `env:"IMPORT_LOCK_TTL" envDefault:"10m"`
	SkipUnchanged   bool          `env:"IMPORT_SKIP_UNCHANGED" envDefault:"false"`
}

// Validate checks the import configuration for errors
func (o *ImportOptions) Validate() error {
	if o.Concurrency < 1 {
		return fmt.Errorf("IMPORT_CONCURRENCY must be positive, got %d", o.Concurrency)
	}
	if o.Concurrency > 10000 {
		return fmt.Errorf("IMPORT_CONCURRENCY too high, maximum is 10000, got %d", o.Concurrency)
	}
	if o.FetchTimeout <= 0 {
		return fmt.Errorf("IMPORT_FETCH_TIMEOUT must be positive, got %s", o.FetchTimeout)
	}
	if _, err := time.LoadLocation(o.DefaultTimezone); err != nil {
		return fmt.Errorf("invalid IMPORT_DEFAULT_TIMEZONE=%q: %w", o.DefaultTimezone, err)
	}
	if o.LockEnabled && o.LockTTL < time.Second {
		return fmt.Errorf("IMPORT_LOCK_TTL must be at least 1s when the lock is enabled, got %s", o.LockTTL)
	}
	return nil
}

type Configuration struct {
	Database      DatabaseOptions
	OpenTelemetry OpenTelemetryOptions
	Prometheus    PrometheusOptions
	Import        ImportOptions
	Ops           OpsOptions

	RedisURL         string `env:"REDIS_URL" envDefault:"redis://localhost:6379/0"`
	MigrationsDir    string `env:"MIGRATIONS_DIR" envDefault:"migrations"`
	ServerPort       int    `env:"PORT" envDefault:"3200"`
	GoAppEnvironment string `env:"GO_APP_ENV" envDefault:"development"`
	SocketAddress    string `env:"-"`
	LogLevel         string `env:"LOG_LEVEL" envDefault:"error"`
	LogPath          string `env:"LOG_PATH" envDefault:"./logs/ccs-import.log"`

	logFile io.Closer
	logger  *logrus.Logger
}

func (c *Configuration) Logger() *logrus.Logger {
	return c.logger
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	switch c.LogLevel {
	case "silent":
		return logrus.PanicLevel
	case "error":
		return logrus.ErrorLevel
	case "warn":
		return logrus.WarnLevel
	case "info":
		return logrus.InfoLevel
	case "debug":
		return logrus.DebugLevel
	default:
		return logrus.ErrorLevel
	}
}

func Use() *Configuration {
	return singleton()
}

func (c *Configuration) load(envFiles []string) error {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return err
	}
	if n == 0 {
		wd, _ := os.Getwd()
		log.Println("No .env files found. Tried:")
		for _, file := range envFiles {
			log.Println(filepath.Join(wd, file))
		}
	}
	if err := env.Parse(c); err != nil {
		return err
	}

	if err := c.Import.Validate(); err != nil {
		return fmt.Errorf("import configuration error: %w", err)
	}
	if err := c.validateLogLevel(); err != nil {
		return err
	}

	f, logger, err := logging.FileLogger(c.LogrusLogLevel(), c.LogPath)
	if err != nil {
		return err
	}
	c.logFile = f
	c.logger = logger

	c.Database.Opts = c.Database.ConnectionString()
	if c.GoAppEnvironment == Production {
		c.SocketAddress = fmt.Sprintf(":%d", c.ServerPort)
	} else {
		c.SocketAddress = fmt.Sprintf("localhost:%d", c.ServerPort)
	}
	return nil
}

func (c *Configuration) validateLogLevel() error {
	level := strings.ToLower(strings.TrimSpace(c.LogLevel))
	if level == "" {
		level = "error"
	}
	switch level {
	case "silent", "error", "warn", "info", "debug":
	default:
		return fmt.Errorf("invalid LOG_LEVEL=%q (expected silent|error|warn|info|debug)", c.LogLevel)
	}
	c.LogLevel = level
	return nil
}

// unload handles a graceful shutdown.
func (c *Configuration) Unload() {
	if c.logFile != nil {
		if err := c.logFile.Close(); err != nil {
			log.Printf("Failed to close log file: %v", err)
		}
	}
}
