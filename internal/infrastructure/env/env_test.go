package env

import (
	"os"
	"path/filepath"
	"testing"

	"exo-agent/internal/domain/entity"
	"exo-agent/internal/infrastructure/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestEnvService_Getters(t *testing.T) {
	t.Setenv("EXO_TEST_STR", "value")

	e := &EnvService{}

	assert.Equal(t, "value", e.Get("EXO_TEST_STR"))
	assert.Equal(t, "value", e.GetWithDefault("EXO_TEST_STR", "x"))
	assert.Equal(t, "x", e.GetWithDefault("EXO_TEST_MISSING", "x"))
}

func TestEnvService_MustGet(t *testing.T) {
	t.Setenv("EXO_TEST_SET", "ok")
	e := &EnvService{}

	assert.Equal(t, "ok", e.MustGet("EXO_TEST_SET"))
	assert.PanicsWithError(t, entity.ConfigError("ENV EXO_TEST_UNSET is missing").Error(), func() {
		e.MustGet("EXO_TEST_UNSET")
	})
}

func TestNewEnvService_LoadsFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("EXO_TEST_KEY=base\nEXO_TEST_ONLY_BASE=1\n"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env.ci"), []byte("EXO_TEST_KEY=ci\n"), 0600))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	t.Setenv("APP_ENV", "ci")
	t.Setenv("EXO_TEST_KEY", "")
	t.Setenv("EXO_TEST_ONLY_BASE", "")
	os.Unsetenv("EXO_TEST_KEY")
	os.Unsetenv("EXO_TEST_ONLY_BASE")

	e := NewEnvService(nil)

	assert.Equal(t, "ci", e.AppEnv())
	assert.Equal(t, "ci", e.Get("EXO_TEST_KEY"))
	assert.Equal(t, "1", e.Get("EXO_TEST_ONLY_BASE"))
}

func TestNewEnvService_LogsFileProblems(t *testing.T) {
	dir := t.TempDir()
	// A directory where the profile file should be cannot be read.
	require.NoError(t, os.Mkdir(filepath.Join(dir, ".env.broken"), 0700))

	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	core, logs := observer.New(zapcore.DebugLevel)
	log := logger.NewFromZap(zap.New(core))

	t.Setenv("APP_ENV", "missing")
	NewEnvService(log)
	assert.Equal(t, 1, logs.FilterMessage("No environment file").Len())
	assert.Zero(t, logs.FilterLevelExact(zapcore.WarnLevel).Len())

	t.Setenv("APP_ENV", "broken")
	NewEnvService(log)
	warned := logs.FilterMessage("Could not load environment file").All()
	require.Len(t, warned, 1)
	assert.Equal(t, ".env.broken", warned[0].ContextMap()["file"])
}
