package utils

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"dealflow/pkg/database"
)

// EnvPrefix prefixes every environment override, e.g. DEALFLOW_SERVER_ADDR.
const EnvPrefix = "DEALFLOW"

type Config struct {
	Data     DataConfig     `yaml:"data" envconfig:"DATA"`
	Backfill BackfillConfig `yaml:"backfill" envconfig:"BACKFILL"`
	Auth     AuthConfig     `yaml:"auth" envconfig:"AUTH"`
	Server   ServerConfig   `yaml:"server" envconfig:"SERVER"`
	Grpc     GrpcConfig     `yaml:"grpc" envconfig:"GRPC"`
	Logging  LoggingConfig  `yaml:"logging" envconfig:"LOGGING"`
	Database DatabaseConfig `yaml:"database" envconfig:"DATABASE"`
}

// DataConfig holds the pipeline's input and output CSV paths.
type DataConfig struct {
	RawDeals         string `yaml:"raw_deals" split_words:"true" validate:"required"`
	Deals            string `yaml:"deals" split_words:"true" validate:"required"`
	Companies        string `yaml:"companies" split_words:"true" validate:"required"`
	CompaniesCleaned string `yaml:"companies_cleaned" split_words:"true"`
	Investors        string `yaml:"investors" split_words:"true" validate:"required"`
	InvestorsEDA     string `yaml:"investors_eda" split_words:"true" validate:"required"`
	DealInvestors    string `yaml:"deal_investors" split_words:"true" validate:"required"`

	CompaniesOut     string `yaml:"companies_out" split_words:"true" validate:"required"`
	DealInvestorsOut string `yaml:"deal_investors_out" split_words:"true" validate:"required"`
	InvestorsOut     string `yaml:"investors_out" split_words:"true" validate:"required"`
	InsightsOut      string `yaml:"insights_out" split_words:"true"`
}

type BackfillConfig struct {
	Enabled       bool          `yaml:"enabled" split_words:"true"`
	GeminiAPIKey  string        `yaml:"gemini_api_key" split_words:"true" validate:"required_if=Enabled true"`
	GeminiModel   string        `yaml:"gemini_model" split_words:"true"`
	GeminiBaseURL string        `yaml:"gemini_base_url" split_words:"true" validate:"omitempty,url"`
	Delay         time.Duration `yaml:"delay" split_words:"true"`
	SearchTimeout time.Duration `yaml:"search_timeout" split_words:"true"`
	ScrapeTimeout time.Duration `yaml:"scrape_timeout" split_words:"true"`
	ModelTimeout  time.Duration `yaml:"model_timeout" split_words:"true"`
}

type AuthConfig struct {
	JWTSecret   string        `yaml:"jwt_secret" split_words:"true" validate:"required,min=8"`
	JWTIssuer   string        `yaml:"jwt_issuer" split_words:"true" validate:"required"`
	JWTDuration time.Duration `yaml:"jwt_duration" split_words:"true"`
	// Registration is open, first (only the first operator may sign up) or closed.
	Registration string `yaml:"registration" split_words:"true" validate:"oneof=open first closed"`
}

type ServerConfig struct {
	Addr            string        `yaml:"addr" split_words:"true" validate:"required"`
	TCPAddr         string        `yaml:"tcp_addr" split_words:"true" validate:"required"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" split_words:"true"`
}

type GrpcConfig struct {
	Addr string `yaml:"addr" split_words:"true" validate:"required"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" split_words:"true" validate:"oneof=debug info warn warning error"`
	Output   string `yaml:"output" split_words:"true" validate:"oneof=console file both"`
	FilePath string `yaml:"file_path" split_words:"true" validate:"required_unless=Output console"`
}

type DatabaseConfig struct {
	Path        string        `yaml:"path" split_words:"true" validate:"required"`
	BusyTimeout time.Duration `yaml:"busy_timeout" split_words:"true" validate:"gte=0"`
}

// Options converts the section into the database package's open options.
func (c DatabaseConfig) Options() database.Config {
	return database.Config{Path: c.Path, BusyTimeout: c.BusyTimeout}
}

func DefaultConfig() Config {
	return Config{
		Data: DataConfig{
			RawDeals:         "raw_data/deals.csv",
			Deals:            "data/deals_updated.csv",
			Companies:        "data/companies_updated.csv",
			CompaniesCleaned: "data/companies_cleaned.csv",
			Investors:        "data/investors_updated.csv",
			InvestorsEDA:     "data/EDA/investors_EDA.csv",
			DealInvestors:    "data/dealInvestor_updated.csv",
			CompaniesOut:     "data/companies_final.csv",
			DealInvestorsOut: "data/dealInvestor_final.csv",
			InvestorsOut:     "data/investors_final.csv",
			InsightsOut:      "data/insights.xlsx",
		},
		Backfill: BackfillConfig{
			Delay:         2 * time.Second,
			SearchTimeout: 10 * time.Second,
			ScrapeTimeout: 10 * time.Second,
			ModelTimeout:  30 * time.Second,
		},
		Auth: AuthConfig{
			// dev default (change for demo / production)
			JWTSecret:    "dev-secret-change-me",
			JWTIssuer:    "dealflow",
			JWTDuration:  24 * time.Hour,
			Registration: "first",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			TCPAddr:         ":7070",
			ShutdownTimeout: 10 * time.Second,
		},
		Grpc: GrpcConfig{Addr: ":9090"},
		Logging: LoggingConfig{
			Level:    "info",
			Output:   "console",
			FilePath: "logs/dealflow.log",
		},
		Database: DatabaseConfig{
			Path:        database.DefaultConfig().Path,
			BusyTimeout: database.DefaultBusyTimeout,
		},
	}
}

// LoadConfig layers, lowest first: defaults, the optional YAML file at path,
// a .env file in the working directory, then DEALFLOW_* environment variables.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return cfg, fmt.Errorf("load .env: %w", err)
	}

	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return cfg, fmt.Errorf("process env: %w", err)
	}
	// the key is commonly exported unprefixed
	if cfg.Backfill.GeminiAPIKey == "" {
		cfg.Backfill.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}

	if err := Validate(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

func Validate(cfg Config) error {
	if err := validate.Struct(cfg); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// ConfigPath returns the config file named by DEALFLOW_CONFIG, if any.
func ConfigPath() string {
	return os.Getenv(EnvPrefix + "_CONFIG")
}
