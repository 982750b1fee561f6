package core

import (
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type (
	ServerConfig struct {
		Host string
	}

	DatabaseConfig struct {
		Engine        string `validate:"required"`
		Host          string `validate:"required"`
		Port          string `validate:"required,numeric"`
		Name          string `validate:"required,alphanum_"`
		User          string
		Password      string
		AdminUser     string
		AdminPassword string
		DisableTLS    bool
	}

	Config struct {
		Env      string `validate:"required"`
		Debug    bool
		TestMode bool
		AppName  string `validate:"required"`
		Build    string

		// TimeZone is the single calendar zone all date computations run in.
		TimeZone string `validate:"required"`

		SchedulerTimeout time.Duration `validate:"min=0"`

		RollbarToken string
		Server       ServerConfig
		Database     DatabaseConfig

		loc *time.Location
	}
)

func (c DatabaseConfig) Address() string {
	return net.JoinHostPort(c.Host, c.Port)
}

// Location returns the configured *time.Location. Only valid after NewConfig.
func (c *Config) Location() *time.Location {
	return c.loc
}

// NewConfig loads the app configuration from defaults, an optional
// config/.env.<env> file and environment variables (prefixed with ENV).
func NewConfig() (*Config, error) {
	v := viper.New()
	v.SetTypeByDefaultValue(true)

	// defaults
	v.SetDefault("debug", true)
	v.SetDefault("testMode", false)
	v.SetDefault("appName", "Ratiba")
	v.SetDefault("build", "dev")
	v.SetDefault("timeZone", "UTC")
	v.SetDefault("schedulerTimeout", 30*time.Second)
	v.SetDefault("rollbarToken", "")
	v.SetDefault("server.host", "localhost")
	v.SetDefault("database.engine", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.name", "ratiba")
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.adminUser", "")
	v.SetDefault("database.adminPassword", "")
	v.SetDefault("database.disableTLS", true)

	env := os.Getenv("ENV") // DEV (local; default), TEST, QA, PROD
	switch env {
	case "":
		env = "DEV"
	case "TEST":
		v.SetDefault("testMode", true)
	}
	v.SetDefault("env", env)
	v.SetEnvPrefix(env)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// load .env if it exists (ignore if it does not)
	dotEnvPath := filepath.Join(Getwd(), "config", ".env."+strings.ToLower(env))
	if _, err := os.Stat(dotEnvPath); err == nil {
		if err := godotenv.Load(dotEnvPath); err != nil {
			return nil, errors.Wrapf(err, "loading %s", dotEnvPath)
		}
	} else if !os.IsNotExist(err) {
		return nil, errors.Wrapf(err, "checking %s", dotEnvPath)
	}
	v.AutomaticEnv()

	conf := new(Config)
	if err := v.Unmarshal(conf); err != nil {
		return nil, errors.Wrap(err, "unmarshalling config")
	}
	if err := Validate.Struct(conf); err != nil {
		return nil, TranslateValidationError(err)
	}

	loc, err := time.LoadLocation(conf.TimeZone)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid time zone %q", conf.TimeZone)
	}
	conf.loc = loc
	return conf, nil
}
