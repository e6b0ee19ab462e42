package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/flexprice/payflow/internal/types"
)

type Configuration struct {
	Deployment DeploymentConfig `validate:"required"`
	Server     ServerConfig     `validate:"required"`
	Logging    LoggingConfig    `validate:"required"`
	Postgres   PostgresConfig   `validate:"required"`
	Payment    PaymentConfig    `validate:"required"`
}

type DeploymentConfig struct {
	Mode types.RunMode `validate:"required"`
}

type ServerConfig struct {
	Address string `validate:"required"`
}

type LoggingConfig struct {
	Level types.LogLevel `validate:"required"`
}

type PostgresConfig struct {
	Host        string `validate:"required"`
	Port        int    `validate:"required"`
	User        string `validate:"required"`
	Password    string
	DBName      string `validate:"required"`
	SSLMode     string
	AutoMigrate bool
}

// PaymentConfig carries the tunables the correctness engine deliberately
// does not hard-code: retry budget, backoff curve, staleness threshold and
// sweep cadence. Defaults are set in NewConfig.
type PaymentConfig struct {
	// MaxAttempts bounds gateway retries per payment before the payment is
	// failed with reason retries_exhausted
	MaxAttempts int `validate:"required,min=1"`
	// BackoffInitial and BackoffMax shape the exponential retry curve
	BackoffInitial time.Duration `validate:"required"`
	BackoffMax     time.Duration `validate:"required"`
	// StaleAfter is how long a payment may sit in PROCESSING before the
	// reconciliation sweeper considers it abandoned
	StaleAfter time.Duration `validate:"required"`
	// SweepInterval is the reconciliation cadence, SweepBatch the max rows
	// repaired per cycle
	SweepInterval time.Duration `validate:"required"`
	SweepBatch    int           `validate:"required,min=1"`
	// InflightWait bounds how long admission waits on a key still in flight
	// before answering with a processing status, polling every InflightPoll
	InflightWait time.Duration `validate:"required"`
	InflightPoll time.Duration `validate:"required"`
}

func NewConfig() (*Configuration, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./internal/config")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/payflow")

	// Set up environment variables support
	v.SetEnvPrefix("PAYFLOW")
	v.SetEnvKeyReplacer(strings.NewReplacer(
		".", "_",
		"-", "_",
	))
	v.AutomaticEnv()

	setDefaults(v)

	// Read config file if exists
	if err := v.ReadInConfig(); err != nil {
		if !errors.As(err, &viper.ConfigFileNotFoundError{}) {
			return nil, err
		}
	}

	var config Configuration
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("deployment.mode", string(types.ModeLocal))
	v.SetDefault("server.address", ":8080")
	v.SetDefault("logging.level", string(types.LogLevelInfo))
	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "payflow")
	v.SetDefault("postgres.dbname", "payflow")
	v.SetDefault("postgres.sslmode", "disable")
	v.SetDefault("postgres.automigrate", true)
	v.SetDefault("payment.maxattempts", 5)
	v.SetDefault("payment.backoffinitial", 500*time.Millisecond)
	v.SetDefault("payment.backoffmax", 30*time.Second)
	v.SetDefault("payment.staleafter", 5*time.Minute)
	v.SetDefault("payment.sweepinterval", time.Minute)
	v.SetDefault("payment.sweepbatch", 100)
	v.SetDefault("payment.inflightwait", 2*time.Second)
	v.SetDefault("payment.inflightpoll", 100*time.Millisecond)
}

func (c Configuration) Validate() error {
	return validator.New().Struct(c)
}

// GetDSN returns the postgres connection string
func (c PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}
