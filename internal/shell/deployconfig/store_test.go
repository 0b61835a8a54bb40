package deployconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/artpar/pagepub/internal/core/domain"
)

func sampleRecord() domain.DeploymentRecord {
	return domain.DeploymentRecord{
		ProjectLocation: "deploy",
		ProjectName:     "my-cool-game",
		ProjectDomain:   "my-cool-game.wonderland.dev",
		AccessType:      domain.AccessPublic,
		WithThreads:     true,
	}
}

func TestNewStore_DefaultFileName(t *testing.T) {
	store := NewStore("/work/game", "", nil)
	assert.Equal(t, filepath.Join("/work/game", "deployment.json"), store.Path())
}

// =============================================================================
// Load Tests
// =============================================================================

func TestStore_Load_Missing(t *testing.T) {
	store := NewStore(t.TempDir(), "", nil)

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestStore_Load_Empty(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte("  \n"), 0644))
	store := NewStore(dir, "", nil)

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestStore_Load_Corrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(`{"projectName": "trunc`), 0644))
	store := NewStore(dir, "", nil)

	record, err := store.Load()
	assert.ErrorIs(t, err, domain.ErrConfigCorrupt)
	assert.Nil(t, record)
}

func TestStore_Load_WrongShape(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(`["not", "an", "object"]`), 0644))
	store := NewStore(dir, "", nil)

	_, err := store.Load()
	assert.ErrorIs(t, err, domain.ErrConfigCorrupt)
}

func TestStore_Load_WrittenByOtherClient(t *testing.T) {
	dir := t.TempDir()
	content := `{"projectLocation":"deploy","projectName":"game","projectDomain":"game.wonderland.dev","accessType":"private","withThreads":false}`
	require.NoError(t, os.WriteFile(filepath.Join(dir, DefaultFileName), []byte(content), 0644))
	store := NewStore(dir, "", nil)

	record, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "game", record.ProjectName)
	assert.Equal(t, domain.AccessPrivate, record.AccessType)
	assert.False(t, record.Listed())
}

// =============================================================================
// Save Tests
// =============================================================================

func TestStore_SaveLoad_RoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), "", nil)
	record := sampleRecord()

	require.NoError(t, store.Save(record))

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, record, *loaded)
}

func TestStore_Save_Overwrites(t *testing.T) {
	store := NewStore(t.TempDir(), "", nil)
	require.NoError(t, store.Save(sampleRecord()))

	updated := sampleRecord()
	updated.AccessType = domain.AccessPrivate
	updated.WithThreads = false
	require.NoError(t, store.Save(updated))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, updated, *loaded)
}

func TestStore_Save_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	store := NewStore(dir, "", nil)

	require.NoError(t, store.Save(sampleRecord()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, DefaultFileName, entries[0].Name())
}

func TestStore_Save_MissingDirectory(t *testing.T) {
	store := NewStore(filepath.Join(t.TempDir(), "missing"), "", nil)

	err := store.Save(sampleRecord())
	assert.Error(t, err)
}

// =============================================================================
// Remove Tests
// =============================================================================

func TestStore_Remove(t *testing.T) {
	store := NewStore(t.TempDir(), "", nil)
	require.NoError(t, store.Save(sampleRecord()))

	require.NoError(t, store.Remove())

	record, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestStore_Remove_Missing(t *testing.T) {
	store := NewStore(t.TempDir(), "", nil)
	assert.NoError(t, store.Remove())
}
