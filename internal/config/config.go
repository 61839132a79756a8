package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"kaptam/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App          AppConfig          `yaml:"app"`
	Server       ServerConfig       `yaml:"server"`
	Database     DatabaseConfig     `yaml:"database"`
	Redis        RedisConfig        `yaml:"redis"`
	Backup       BackupConfig       `yaml:"backup"`
	Monitoring   MonitoringConfig   `yaml:"monitoring"`
	Logging      LoggingConfig      `yaml:"logging"`
	API          APIConfig          `yaml:"api"`
	Reservations ReservationsConfig `yaml:"reservations"`
	Retention    RetentionConfig    `yaml:"retention"`
	Admin        AdminConfig        `yaml:"admin"`
	Catalog      CatalogConfig      `yaml:"catalog"`
	Email        EmailConfig        `yaml:"email"`
	Telegram     TelegramConfig     `yaml:"telegram"`
	Google       GoogleConfig       `yaml:"google"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
	// SiteURL is the public front end, used to build the "modify reservation" link.
	SiteURL string `yaml:"site_url"`
}

type ServerConfig struct {
	CORSOrigins    []string      `yaml:"cors_origins"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxBodyBytes   int64         `yaml:"max_body_bytes"`
	ServeFrontend  bool          `yaml:"serve_frontend"`
	FrontendDir    string        `yaml:"frontend_dir"`
	TrustForwarded bool          `yaml:"trust_forwarded"`
}

type APIConfig struct {
	HTTP      APIHTTPConfig      `yaml:"http"`
	GRPC      APIGRPCConfig      `yaml:"grpc"`
	RateLimit APIRateLimitConfig `yaml:"rate_limit"`
}

type APIHTTPConfig struct {
	Port int `yaml:"port"`
}

type APIGRPCConfig struct {
	Enabled    bool `yaml:"enabled"`
	Port       int  `yaml:"port"`
	Reflection bool `yaml:"reflection"`
}

// APIRateLimitConfig caps requests per client IP under /api/.
type APIRateLimitConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
}

type ReservationsConfig struct {
	MaxPerDate     int `yaml:"max_per_date"`
	MaxItems       int `yaml:"max_items"`
	// MaxAdvanceDays 0 disables the visit date window.
	MaxAdvanceDays int `yaml:"max_advance_days"`
}

type RetentionConfig struct {
	Days     int           `yaml:"days"`
	Interval time.Duration `yaml:"interval"`
}

type AdminConfig struct {
	Username     string        `yaml:"username"`
	PasswordHash string        `yaml:"password_hash"`
	JWTSecret    string        `yaml:"jwt_secret"`
	TokenTTL     time.Duration `yaml:"token_ttl"`
}

type CatalogConfig struct {
	BoardgamesPath string `yaml:"boardgames_path"`
	VideogamesPath string `yaml:"videogames_path"`
}

type EmailConfig struct {
	Enabled      bool          `yaml:"enabled"`
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	Username     string        `yaml:"username"`
	Password     string        `yaml:"password"`
	From         string        `yaml:"from"`
	AdminAddress string        `yaml:"admin_address"`
	TLS          bool          `yaml:"tls"`
	Timeout      time.Duration `yaml:"timeout"`
}

type TelegramConfig struct {
	BotToken     string  `yaml:"bot_token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	Debug        bool    `yaml:"debug"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool          `yaml:"enabled"`
	Interval      time.Duration `yaml:"interval"`
	RetentionDays int           `yaml:"retention_days"`
	StoragePath   string        `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

type GoogleConfig struct {
	GoogleCredentialsFile     string `yaml:"credentials_file"`
	ReservationsSpreadsheetID string `yaml:"reservations_spreadsheet_id"`
}

// SheetsEnabled reports whether spreadsheet sync has everything it needs.
func (g GoogleConfig) SheetsEnabled() bool {
	return g.GoogleCredentialsFile != "" && g.ReservationsSpreadsheetID != ""
}

func Load(configPath string) (*Config, error) {
	// .env опционален, переменные могут прийти из окружения
	if err := godotenv.Load(".env"); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Предварительная замена переменных окружения в YAML
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}
	if c.Admin.JWTSecret == "" {
		return errors.New("admin jwt_secret is required (run setup-admin)")
	}
	if c.Reservations.MaxPerDate < 1 {
		return fmt.Errorf("reservations.max_per_date must be positive, got %d", c.Reservations.MaxPerDate)
	}
	if c.Reservations.MaxItems < 1 {
		return fmt.Errorf("reservations.max_items must be positive, got %d", c.Reservations.MaxItems)
	}
	if c.Retention.Days < 1 {
		return fmt.Errorf("retention.days must be positive, got %d", c.Retention.Days)
	}
	if c.Email.Enabled {
		if c.Email.Host == "" || c.Email.From == "" {
			return errors.New("email host and from are required when email is enabled")
		}
	}
	if c.API.HTTP.Port == c.API.GRPC.Port && c.API.GRPC.Enabled {
		return fmt.Errorf("http and grpc ports collide: %d", c.API.HTTP.Port)
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.App.Name == "" {
		c.App.Name = "kaptam"
	}
	if c.App.Environment == "" {
		c.App.Environment = "development"
	}
	if c.API.HTTP.Port == 0 {
		c.API.HTTP.Port = 3000
	}
	if c.API.GRPC.Port == 0 {
		c.API.GRPC.Port = 3001
	}
	if c.API.RateLimit.Requests == 0 {
		c.API.RateLimit.Requests = 100
	}
	if c.API.RateLimit.Window == 0 {
		c.API.RateLimit.Window = 15 * time.Minute
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 10 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30 * time.Second
	}
	if c.Server.MaxBodyBytes == 0 {
		c.Server.MaxBodyBytes = 1 << 20
	}
	if len(c.Server.CORSOrigins) == 0 {
		c.Server.CORSOrigins = []string{"*"}
	}
	if c.Server.FrontendDir == "" {
		c.Server.FrontendDir = "public"
	}

	if c.Reservations.MaxPerDate == 0 {
		c.Reservations.MaxPerDate = models.DefaultMaxReservationsPerDate
	}
	if c.Reservations.MaxItems == 0 {
		c.Reservations.MaxItems = models.DefaultMaxItemsPerReservation
	}
	if c.Retention.Days == 0 {
		c.Retention.Days = models.DefaultRetentionDays
	}
	if c.Retention.Interval == 0 {
		c.Retention.Interval = 24 * time.Hour
	}

	if c.Admin.Username == "" {
		c.Admin.Username = "admin"
	}
	if c.Admin.TokenTTL == 0 {
		c.Admin.TokenTTL = 24 * time.Hour
	}

	if c.Catalog.BoardgamesPath == "" {
		c.Catalog.BoardgamesPath = "data/boardgames.json"
	}
	if c.Catalog.VideogamesPath == "" {
		c.Catalog.VideogamesPath = "data/videogames.json"
	}

	if c.Email.Port == 0 {
		c.Email.Port = 587
	}
	if c.Email.Timeout == 0 {
		c.Email.Timeout = 15 * time.Second
	}

	if c.Backup.Interval == 0 {
		c.Backup.Interval = 24 * time.Hour
	}
	if c.Backup.RetentionDays == 0 {
		c.Backup.RetentionDays = 7
	}
	if c.Backup.StoragePath == "" {
		c.Backup.StoragePath = "backups"
	}
}
