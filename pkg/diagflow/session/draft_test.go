package session_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/diagflow/diagflow/pkg/diagflow/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDraftStore_SaveAndLoad(t *testing.T) {
	ds := session.NewDraftStore(filepath.Join(t.TempDir(), "draft.json"))

	s := newTestSession("s1", "work in progress")
	require.NoError(t, ds.Save(s))

	draft, err := ds.Load()
	require.NoError(t, err)
	assert.Equal(t, "s1", draft.SessionID)
	assert.Equal(t, "work in progress", draft.Session.Name)
	assert.False(t, draft.SavedAt.IsZero())
}

func TestDraftStore_LoadMissing(t *testing.T) {
	ds := session.NewDraftStore(filepath.Join(t.TempDir(), "draft.json"))

	_, err := ds.Load()
	assert.ErrorIs(t, err, session.ErrNotFound)
}

func TestDraftStore_SaveReplaces(t *testing.T) {
	ds := session.NewDraftStore(filepath.Join(t.TempDir(), "draft.json"))

	require.NoError(t, ds.Save(newTestSession("s1", "first")))
	require.NoError(t, ds.Save(newTestSession("s2", "second")))

	draft, err := ds.Load()
	require.NoError(t, err)
	assert.Equal(t, "s2", draft.SessionID)
}

func TestDraftStore_Clear(t *testing.T) {
	ds := session.NewDraftStore(filepath.Join(t.TempDir(), "draft.json"))

	require.NoError(t, ds.Save(newTestSession("s1", "a")))
	require.NoError(t, ds.Clear())

	_, err := ds.Load()
	assert.ErrorIs(t, err, session.ErrNotFound)

	// Clearing again is not an error.
	assert.NoError(t, ds.Clear())
}

func TestDraftStore_CreatesParentDirs(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "draft.json")
	ds := session.NewDraftStore(path)

	require.NoError(t, ds.Save(newTestSession("s1", "a")))

	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestDraftStore_CorruptDraft(t *testing.T) {
	path := filepath.Join(t.TempDir(), "draft.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	ds := session.NewDraftStore(path)
	_, err := ds.Load()
	require.Error(t, err)
	assert.NotErrorIs(t, err, session.ErrNotFound)
}
