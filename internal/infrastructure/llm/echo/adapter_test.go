package echo

import (
	"context"
	"testing"

	"exo-agent/internal/domain/entity"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEchoAdapter_GenerateBeforeInitialize(t *testing.T) {
	a := NewEchoAdapter(entity.BackendConfig{})

	_, err := a.Generate(context.Background(), "hello", entity.GenerationParams{})
	assert.ErrorIs(t, err, entity.ErrUninitialized)

	_, err = a.ListModels(context.Background())
	assert.ErrorIs(t, err, entity.ErrUninitialized)
}

func TestEchoAdapter_Generate(t *testing.T) {
	ctx := context.Background()
	a := NewEchoAdapter(entity.BackendConfig{})
	require.NoError(t, a.Initialize(ctx, entity.BackendConfig{}))

	res, err := a.Generate(ctx, "hello", entity.GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, BackendID, res.Backend)
	assert.Equal(t, defaultModel, res.Model)
}

func TestEchoAdapter_EmptyPrompt(t *testing.T) {
	ctx := context.Background()
	a := NewEchoAdapter(entity.BackendConfig{})
	require.NoError(t, a.Initialize(ctx, entity.BackendConfig{}))

	_, err := a.Generate(ctx, "", entity.GenerationParams{})
	assert.ErrorIs(t, err, entity.ErrConfiguration)
}

func TestEchoAdapter_Prefix(t *testing.T) {
	ctx := context.Background()
	a := NewEchoAdapter(entity.BackendConfig{Extra: map[string]string{"prefix": "> "}})
	require.NoError(t, a.Initialize(ctx, entity.BackendConfig{Model: "mirror"}))

	res, err := a.Generate(ctx, "ping", entity.GenerationParams{})
	require.NoError(t, err)
	assert.Equal(t, "> ping", res.Text)
	assert.Equal(t, "mirror", a.ModelInfo().Model)
}

func TestEchoAdapter_CloseResetsState(t *testing.T) {
	ctx := context.Background()
	a := NewEchoAdapter(entity.BackendConfig{})
	require.NoError(t, a.Initialize(ctx, entity.BackendConfig{}))
	require.NoError(t, a.Close())

	_, err := a.Generate(ctx, "hello", entity.GenerationParams{})
	assert.ErrorIs(t, err, entity.ErrUninitialized)
}
