package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func populate(t *testing.T, store *Store) {
	t.Helper()

	todo, err := store.CreateColumn("Todo")
	require.NoError(t, err)
	done, err := store.CreateColumn("Done")
	require.NoError(t, err)
	_, err = store.CreateTask("write tests", todo.ID)
	require.NoError(t, err)
	_, err = store.CreateTask("ship", done.ID)
	require.NoError(t, err)
	_, err = store.CreateEvent("2026-05-01", "launch", "the big one")
	require.NoError(t, err)
	_, err = store.CreateCustomSound("applause", "a1b2.mp3", "clap.mp3")
	require.NoError(t, err)
	require.NoError(t, store.SetAdminMessage("deploy freeze friday"))
	require.NoError(t, store.SetMarqueeConfig(MarqueeConfig{Enabled: true, Speed: 20}))
	require.NoError(t, store.SetSetting("theme", `"dark"`))
}

func TestExportImportRoundTrip(t *testing.T) {
	source := newTestStore(t)
	populate(t, source)

	doc, err := source.Export()
	require.NoError(t, err)
	assert.Equal(t, ExportVersion, doc.Version)
	assert.NotEmpty(t, doc.ExportedAt)

	// Import into an empty store; ids must be preserved, not reassigned.
	target := newTestStore(t)
	restored, err := target.Import(doc)
	require.NoError(t, err)
	assert.True(t, restored)

	reExport, err := target.Export()
	require.NoError(t, err)

	assert.Equal(t, doc.Columns, reExport.Columns)
	assert.Equal(t, doc.Tasks, reExport.Tasks)
	assert.Equal(t, doc.Events, reExport.Events)
	assert.Equal(t, doc.CustomSounds, reExport.CustomSounds)
	assert.Equal(t, doc.AdminMessage, reExport.AdminMessage)
	assert.Equal(t, doc.Settings, reExport.Settings)
}

func TestImportReplacesExistingState(t *testing.T) {
	source := newTestStore(t)
	populate(t, source)
	doc, err := source.Export()
	require.NoError(t, err)

	target := newTestStore(t)
	_, err = target.CreateColumn("stale column")
	require.NoError(t, err)

	_, err = target.Import(doc)
	require.NoError(t, err)

	state, err := target.FullState()
	require.NoError(t, err)
	for _, col := range state.Columns {
		assert.NotEqual(t, "stale column", col.Title)
	}
	assert.Len(t, state.Columns, 2)
}

func TestImportFailureRestoresPriorState(t *testing.T) {
	store := newTestStore(t)
	populate(t, store)

	before, err := store.Export()
	require.NoError(t, err)

	// Duplicate primary keys make the repopulation fail mid-transaction.
	bad := &ExportDocument{
		Version: ExportVersion,
		Columns: []Column{
			{ID: 1, Title: "first", Position: 1},
			{ID: 1, Title: "dup", Position: 2},
		},
	}

	restored, err := store.Import(bad)
	require.Error(t, err)
	assert.True(t, restored)

	after, err := store.Export()
	require.NoError(t, err)

	assert.Equal(t, before.Columns, after.Columns)
	assert.Equal(t, before.Tasks, after.Tasks)
	assert.Equal(t, before.Events, after.Events)
	assert.Equal(t, before.CustomSounds, after.CustomSounds)
	assert.Equal(t, before.AdminMessage, after.AdminMessage)
	assert.Equal(t, before.Settings, after.Settings)
}

func TestImportRejectsUnsupportedVersion(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Import(&ExportDocument{Version: 99})
	assert.ErrorIs(t, err, ErrValidation)

	_, err = store.Import(nil)
	assert.ErrorIs(t, err, ErrValidation)
}
