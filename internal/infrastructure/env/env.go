package env

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"exo-agent/internal/application/port/output"
	"exo-agent/internal/domain/entity"

	"github.com/joho/godotenv"
)

var _ output.ConfigPort = (*EnvService)(nil)

type EnvService struct {
	appEnv string
}

// NewEnvService loads .env and then .env.$APP_ENV, the latter overriding the
// former. Missing files are not an error.
func NewEnvService(logger output.LoggerPort) *EnvService {
	appEnv := os.Getenv("APP_ENV")
	if appEnv == "" {
		appEnv = "dev"
	}

	if err := godotenv.Load(".env"); err != nil && logger != nil {
		logger.Debug("No .env file with secrets found")
	}

	envFile := fmt.Sprintf(".env.%s", appEnv)
	if err := godotenv.Overload(envFile); err != nil && logger != nil {
		if errors.Is(err, fs.ErrNotExist) {
			logger.Debug("No environment file", "file", envFile)
		} else {
			logger.Warn("Could not load environment file", "file", envFile, "error", err)
		}
	}

	if logger != nil {
		logger.Debug("Environment loaded", "APP_ENV", appEnv)
	}

	return &EnvService{appEnv: appEnv}
}

func (e *EnvService) AppEnv() string {
	return e.appEnv
}

func (e *EnvService) Get(key string) string {
	return os.Getenv(key)
}

// MustGet panics when key is unset. Use it only during start-up wiring.
func (e *EnvService) MustGet(key string) string {
	val := os.Getenv(key)
	if val == "" {
		panic(entity.ConfigError("ENV %s is missing", key))
	}
	return val
}

func (e *EnvService) GetWithDefault(key, defaultValue string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultValue
	}
	return val
}
