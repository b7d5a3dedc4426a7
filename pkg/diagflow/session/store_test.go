package session_test

import (
	"testing"
	"time"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/diagflow/diagflow/pkg/diagflow/history"
	"github.com/diagflow/diagflow/pkg/diagflow/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeFactory creates a store instance with the given retention cap.
type storeFactory func(t *testing.T, maxSessions int) session.Store

func newTestSession(id, name string) *session.Session {
	now := time.Now().UTC()
	return &session.Session{
		ID:   id,
		Name: name,
		Diagram: history.Document{
			Engine:    engine.Mermaid,
			Source:    "graph TD\n  A --> B",
			Timestamp: now,
		},
		Messages: []session.Message{
			{Role: session.RoleUser, Content: "draw a flowchart", CreatedAt: now},
			{Role: session.RoleAssistant, Content: "done", CreatedAt: now},
		},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// storeContractTest runs contract tests against any Store implementation.
func storeContractTest(t *testing.T, name string, factory storeFactory) {
	t.Run(name+"/Save_and_Get", func(t *testing.T) {
		store := factory(t, 0)
		defer store.Close()

		s := newTestSession("s1", "Mermaid 0101-0000")
		require.NoError(t, store.Save(s))

		got, err := store.Get("s1")
		require.NoError(t, err)
		assert.Equal(t, "s1", got.ID)
		assert.Equal(t, s.Name, got.Name)
		assert.Equal(t, engine.Mermaid, got.Diagram.Engine)
		assert.Equal(t, s.Diagram.Source, got.Diagram.Source)
		require.Len(t, got.Messages, 2)
		assert.Equal(t, session.RoleUser, got.Messages[0].Role)
	})

	t.Run(name+"/Get_NotFound", func(t *testing.T) {
		store := factory(t, 0)
		defer store.Close()

		_, err := store.Get("nonexistent")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run(name+"/Save_StampsUpdatedAt", func(t *testing.T) {
		store := factory(t, 0)
		defer store.Close()

		s := newTestSession("s1", "n")
		s.UpdatedAt = time.Time{}
		require.NoError(t, store.Save(s))
		assert.False(t, s.UpdatedAt.IsZero(), "Save must stamp UpdatedAt")
	})

	t.Run(name+"/Save_Overwrite", func(t *testing.T) {
		store := factory(t, 0)
		defer store.Close()

		s := newTestSession("s1", "first")
		require.NoError(t, store.Save(s))
		s.Name = "second"
		s.Diagram.Source = "graph LR\n  X --> Y"
		require.NoError(t, store.Save(s))

		got, err := store.Get("s1")
		require.NoError(t, err)
		assert.Equal(t, "second", got.Name)
		assert.Equal(t, "graph LR\n  X --> Y", got.Diagram.Source)

		metas, err := store.List()
		require.NoError(t, err)
		assert.Len(t, metas, 1)
	})

	t.Run(name+"/Save_EmptyID", func(t *testing.T) {
		store := factory(t, 0)
		defer store.Close()

		s := newTestSession("", "n")
		assert.Error(t, store.Save(s))
	})

	t.Run(name+"/List_Empty", func(t *testing.T) {
		store := factory(t, 0)
		defer store.Close()

		metas, err := store.List()
		require.NoError(t, err)
		assert.Empty(t, metas)
	})

	t.Run(name+"/List_MostRecentFirst", func(t *testing.T) {
		store := factory(t, 0)
		defer store.Close()

		require.NoError(t, store.Save(newTestSession("s1", "oldest")))
		time.Sleep(5 * time.Millisecond) // Ensure different timestamps
		require.NoError(t, store.Save(newTestSession("s2", "middle")))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, store.Save(newTestSession("s3", "newest")))

		metas, err := store.List()
		require.NoError(t, err)
		require.Len(t, metas, 3)
		assert.Equal(t, "s3", metas[0].ID)
		assert.Equal(t, "s2", metas[1].ID)
		assert.Equal(t, "s1", metas[2].ID)
		assert.Equal(t, engine.Mermaid, metas[0].Engine)
	})

	t.Run(name+"/Eviction", func(t *testing.T) {
		store := factory(t, 3)
		defer store.Close()

		require.NoError(t, store.Save(newTestSession("s1", "a")))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, store.Save(newTestSession("s2", "b")))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, store.Save(newTestSession("s3", "c")))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, store.Save(newTestSession("s4", "d")))

		metas, err := store.List()
		require.NoError(t, err)
		require.Len(t, metas, 3)

		// The least recently updated session is gone.
		_, err = store.Get("s1")
		assert.ErrorIs(t, err, session.ErrNotFound)
		_, err = store.Get("s4")
		assert.NoError(t, err)
	})

	t.Run(name+"/Eviction_KeepsRecentlyTouched", func(t *testing.T) {
		store := factory(t, 2)
		defer store.Close()

		s1 := newTestSession("s1", "a")
		require.NoError(t, store.Save(s1))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, store.Save(newTestSession("s2", "b")))
		time.Sleep(5 * time.Millisecond)

		// Touch s1 so s2 becomes the eviction candidate.
		require.NoError(t, store.Save(s1))
		time.Sleep(5 * time.Millisecond)
		require.NoError(t, store.Save(newTestSession("s3", "c")))

		_, err := store.Get("s1")
		assert.NoError(t, err)
		_, err = store.Get("s2")
		assert.ErrorIs(t, err, session.ErrNotFound)
	})

	t.Run(name+"/Delete", func(t *testing.T) {
		store := factory(t, 0)
		defer store.Close()

		require.NoError(t, store.Save(newTestSession("s1", "a")))
		require.NoError(t, store.Delete("s1"))

		_, err := store.Get("s1")
		assert.ErrorIs(t, err, session.ErrNotFound)

		// Deleting a missing session is not an error.
		assert.NoError(t, store.Delete("s1"))
	})

	t.Run(name+"/ActiveID", func(t *testing.T) {
		store := factory(t, 0)
		defer store.Close()

		id, err := store.ActiveID()
		require.NoError(t, err)
		assert.Empty(t, id, "no active session initially")

		require.NoError(t, store.Save(newTestSession("s1", "a")))
		require.NoError(t, store.SetActiveID("s1"))

		id, err = store.ActiveID()
		require.NoError(t, err)
		assert.Equal(t, "s1", id)

		require.NoError(t, store.SetActiveID(""))
		id, err = store.ActiveID()
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run(name+"/Delete_ClearsActive", func(t *testing.T) {
		store := factory(t, 0)
		defer store.Close()

		require.NoError(t, store.Save(newTestSession("s1", "a")))
		require.NoError(t, store.SetActiveID("s1"))
		require.NoError(t, store.Delete("s1"))

		id, err := store.ActiveID()
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run(name+"/Closed", func(t *testing.T) {
		store := factory(t, 0)
		require.NoError(t, store.Close())

		_, err := store.List()
		assert.ErrorIs(t, err, session.ErrStoreClosed)
		_, err = store.Get("s1")
		assert.ErrorIs(t, err, session.ErrStoreClosed)
		assert.ErrorIs(t, store.Save(newTestSession("s1", "a")), session.ErrStoreClosed)
		assert.ErrorIs(t, store.Delete("s1"), session.ErrStoreClosed)
		_, err = store.ActiveID()
		assert.ErrorIs(t, err, session.ErrStoreClosed)
		assert.ErrorIs(t, store.SetActiveID("s1"), session.ErrStoreClosed)
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	storeContractTest(t, "memory", func(t *testing.T, maxSessions int) session.Store {
		if maxSessions > 0 {
			return session.NewMemoryStore(session.WithMemoryMaxSessions(maxSessions))
		}
		return session.NewMemoryStore()
	})
}

func TestSQLiteStore_Contract(t *testing.T) {
	storeContractTest(t, "sqlite", func(t *testing.T, maxSessions int) session.Store {
		opts := []session.SQLiteOption{}
		if maxSessions > 0 {
			opts = append(opts, session.WithMaxSessions(maxSessions))
		}
		store, err := session.NewSQLiteStore(":memory:", opts...)
		require.NoError(t, err)
		return store
	})
}

func TestSQLiteStore_Persistence(t *testing.T) {
	path := t.TempDir() + "/sessions.db"

	store, err := session.NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, store.Save(newTestSession("s1", "survives restart")))
	require.NoError(t, store.SetActiveID("s1"))
	require.NoError(t, store.Close())

	reopened, err := session.NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "survives restart", got.Name)

	id, err := reopened.ActiveID()
	require.NoError(t, err)
	assert.Equal(t, "s1", id)
}

func TestMemoryStore_Isolation(t *testing.T) {
	store := session.NewMemoryStore()
	defer store.Close()

	s := newTestSession("s1", "a")
	require.NoError(t, store.Save(s))

	// Mutating the caller's copy must not affect the stored session.
	s.Diagram.Source = "mutated"
	s.Messages[0].Content = "mutated"

	got, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "graph TD\n  A --> B", got.Diagram.Source)
	assert.Equal(t, "draw a flowchart", got.Messages[0].Content)

	// And mutating a returned session must not affect the store.
	got.Name = "mutated"
	again, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "a", again.Name)
}

func TestNew(t *testing.T) {
	s := session.New(engine.PlantUML)

	assert.NotEmpty(t, s.ID)
	assert.Contains(t, s.Name, "PlantUML")
	assert.Equal(t, engine.PlantUML, s.Diagram.Engine)
	assert.Equal(t, engine.Template(engine.PlantUML), s.Diagram.Source)
	assert.False(t, s.CreatedAt.IsZero())

	other := session.New(engine.PlantUML)
	assert.NotEqual(t, s.ID, other.ID)
}
