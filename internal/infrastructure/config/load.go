package config

import (
	"errors"
	"fmt"
	"strings"

	"exo-agent/internal/domain/entity"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

const envPrefix = "EXO"

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", EnvDevelopment)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.file", false)
	v.SetDefault("logging.dir", "log")

	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.timeout", "30s")
	v.SetDefault("browser.viewport.width", 1280)
	v.SetDefault("browser.viewport.height", 720)
	v.SetDefault("browser.search_engine", "duckduckgo")
	v.SetDefault("browser.bin_path", "")
	v.SetDefault("browser.pool_size", 4)

	v.SetDefault("scraping.max_retries", 3)
	v.SetDefault("scraping.retry_delay", "1s")
	v.SetDefault("scraping.delay_between_requests", "1s")
	v.SetDefault("scraping.max_content_length", 1000000)
	v.SetDefault("scraping.concurrency", 3)

	v.SetDefault("agent.max_iterations", 5)
	v.SetDefault("agent.max_observation_length", 4000)

	v.SetDefault("default_backend", "echo")
	v.SetDefault("http.addr", ":8080")
}

// profileDefaults are layered over the base defaults for the selected env, so
// explicit file and environment values still win.
var profileDefaults = map[string]map[string]any{
	EnvDevelopment: {
		"logging.level":    "debug",
		"browser.headless": false,
	},
	EnvProduction: {
		"logging.level":    "info",
		"browser.headless": true,
	},
}

// Load reads configuration. path may be empty, in which case only defaults and
// the environment are used.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	env := strings.ToLower(v.GetString("env"))
	for key, value := range profileDefaults[env] {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.Env = env

	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return entity.ConfigError("invalid config: %s", strings.Join(fields, ", "))
		}
		return entity.ConfigError("invalid config: %v", err)
	}
	return nil
}
