package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	Mode            string        `mapstructure:"mode" validate:"oneof=debug release test"`
	Port            int           `mapstructure:"port" validate:"min=1,max=65535"`
	AllowedOrigin   string        `mapstructure:"allowed_origin" validate:"required"`
	ReadLimit       int64         `mapstructure:"read_limit" validate:"min=0"`
	PingPeriod      time.Duration `mapstructure:"ping_period" validate:"min=0"`
	PongWait        time.Duration `mapstructure:"pong_wait" validate:"min=0,gtfield=PingPeriod"`
	WriteWait       time.Duration `mapstructure:"write_wait" validate:"gt=0"`
	SendBuffer      int           `mapstructure:"send_buffer" validate:"min=1"`
	LoopQueue       int           `mapstructure:"loop_queue" validate:"min=0"`
	SlowConsumer    string        `mapstructure:"slow_consumer" validate:"oneof=drop kick"`
	JoinLimit       int           `mapstructure:"join_limit" validate:"min=0"`
	JoinInterval    time.Duration `mapstructure:"join_interval" validate:"min=0"`
	LogLevel        string        `mapstructure:"log_level" validate:"oneof=trace debug info warn error"`
	LogFormat       string        `mapstructure:"log_format" validate:"oneof=console json"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"gt=0"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Load reads, in increasing priority: defaults, config/config.<CONFIG_ENV>.yaml
// (or --config), RELAY_* environment variables (a .env file is loaded
// first) and command-line flags.
func Load(args []string) (*Config, error) {
	if err := godotenv.Load(); err == nil {
		log.Info().Str("module", "config").Msg("loaded .env")
	}

	fs := pflag.NewFlagSet("relay", pflag.ContinueOnError)
	configFile := fs.String("config", "", "path to a yaml config file")
	fs.Int("port", 3001, "listen port")
	fs.String("allowed-origin", "http://localhost:3000", "origin allowed to open connections, * for any")
	fs.String("log-level", "info", "trace|debug|info|warn|error")
	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 3001)
	v.SetDefault("allowed_origin", "http://localhost:3000")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("pong_wait", "60s")
	v.SetDefault("write_wait", "5s")
	v.SetDefault("send_buffer", 64)
	v.SetDefault("loop_queue", 1024)
	v.SetDefault("slow_consumer", "drop")
	v.SetDefault("join_limit", 20)
	v.SetDefault("join_interval", "10s")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "console")
	v.SetDefault("shutdown_timeout", "5s")

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, flag := range map[string]string{
		"port":           "port",
		"allowed_origin": "allowed-origin",
		"log_level":      "log-level",
	} {
		if err := v.BindPFlag(key, fs.Lookup(flag)); err != nil {
			return nil, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	fileName := *configFile
	if fileName == "" {
		env := os.Getenv("CONFIG_ENV")
		if env == "" {
			env = "dev"
		}
		fileName = fmt.Sprintf("config/config.%s.yaml", env)
	}
	v.SetConfigFile(fileName)

	if err := v.ReadInConfig(); err != nil {
		if *configFile != "" {
			return nil, fmt.Errorf("read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("port", cfg.Port).
		Str("origin", cfg.AllowedOrigin).
		Msg("config ready")
	return &cfg, nil
}
