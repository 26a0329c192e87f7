package settings

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shaderland/backend/shared"
)

func fixedID(id string) shared.IDGenerator {
	return func() string { return id }
}

func TestLoadInitialisesOnFirstUse(t *testing.T) {
	store := NewMemoryStore()

	s, err := Load(store, fixedID("creator000000001"))
	require.NoError(t, err)
	assert.Equal(t, Settings{UserID: "creator000000001", SelectedModel: shared.DefaultModel}, s)

	// the id is stable once persisted
	s, err = Load(store, fixedID("someoneelse00000"))
	require.NoError(t, err)
	assert.Equal(t, "creator000000001", s.UserID)
}

func TestLoadDefaultIDGenerator(t *testing.T) {
	s, err := Load(NewMemoryStore(), nil)
	require.NoError(t, err)
	assert.Len(t, s.UserID, shared.ShaderIDLength)
}

func TestModelAndDebug(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, SetModel(store, shared.ModelMistralSmall))
	require.NoError(t, SetDebugMode(store, true))

	var unsupported *shared.UnsupportedModelError
	assert.ErrorAs(t, SetModel(store, "gpt-2"), &unsupported)

	s, err := Load(store, fixedID("x"))
	require.NoError(t, err)
	assert.Equal(t, shared.ModelMistralSmall, s.SelectedModel)
	assert.True(t, s.DebugMode)
}

func TestLoadIgnoresStaleModel(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Set(KeySelectedModel, "retired-model"))
	require.NoError(t, store.Set(KeyDebugMode, "not-a-bool"))

	s, err := Load(store, fixedID("x"))
	require.NoError(t, err)
	assert.Equal(t, shared.DefaultModel, s.SelectedModel)
	assert.False(t, s.DebugMode)
}

func TestFileStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.json")

	first := NewFileStore(path)
	s, err := Load(first, fixedID("persisted0000001"))
	require.NoError(t, err)
	require.NoError(t, SetModel(first, shared.ModelGeminiFlash))

	second := NewFileStore(path)
	reloaded, err := Load(second, fixedID("other"))
	require.NoError(t, err)
	assert.Equal(t, s.UserID, reloaded.UserID)
	assert.Equal(t, shared.ModelGeminiFlash, reloaded.SelectedModel)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"userId": "persisted0000001"`)
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "settings.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(NewFileStore(path), fixedID("x"))
	assert.Error(t, err)
}
