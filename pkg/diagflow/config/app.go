package config

import (
	"os"
	"time"
)

// Defaults for application settings.
const (
	DefaultKrokiURL         = "https://kroki.io"
	DefaultStoragePath      = "diagflow.db"
	DefaultDraftPath        = "diagflow-draft.json"
	DefaultDebounce         = 500 * time.Millisecond
	DefaultRequestTimeout   = 30 * time.Second
	DefaultAutosaveInterval = 30 * time.Second
	DefaultMaxSessions      = 50
	DefaultMaxUndoSteps     = 50
	DefaultAIMaxRetries     = 3
)

// AI configures the LLM provider connection.
type AI struct {
	BaseURL    string
	APIKey     string
	Model      string
	MaxRetries int
}

// App is the resolved application configuration.
type App struct {
	// KrokiURL is the render service base URL.
	KrokiURL string

	// StoragePath is the SQLite session database path.
	StoragePath string

	// DraftPath is where draft snapshots are written.
	DraftPath string

	// Debounce is the quiet period before a source edit triggers a render.
	Debounce time.Duration

	// RequestTimeout bounds a single render request.
	RequestTimeout time.Duration

	// AutosaveInterval is how often callers should snapshot drafts.
	AutosaveInterval time.Duration

	// MaxSessions caps retained sessions.
	MaxSessions int

	// MaxUndoSteps caps the undo history depth.
	MaxUndoSteps int

	AI AI
}

// Resolve builds the application configuration from a raw Config, applying
// defaults and DIAGFLOW_-prefixed environment overrides.
func Resolve(c Config) App {
	ai := c.Section("ai")
	app := App{
		KrokiURL:         envOr("DIAGFLOW_KROKI_URL", c.String("kroki_url", DefaultKrokiURL)),
		StoragePath:      envOr("DIAGFLOW_STORAGE_PATH", c.String("storage_path", DefaultStoragePath)),
		DraftPath:        envOr("DIAGFLOW_DRAFT_PATH", c.String("draft_path", DefaultDraftPath)),
		Debounce:         c.Duration("debounce_ms", DefaultDebounce),
		RequestTimeout:   c.Duration("request_timeout", DefaultRequestTimeout),
		AutosaveInterval: c.Duration("autosave_interval", DefaultAutosaveInterval),
		MaxSessions:      c.Int("max_sessions", DefaultMaxSessions),
		MaxUndoSteps:     c.Int("max_undo_steps", DefaultMaxUndoSteps),
		AI: AI{
			BaseURL:    envOr("DIAGFLOW_OPENAI_BASE_URL", ai.String("base_url", "")),
			APIKey:     envOr("DIAGFLOW_OPENAI_API_KEY", ai.String("api_key", "")),
			Model:      envOr("DIAGFLOW_OPENAI_MODEL", ai.String("model", "")),
			MaxRetries: ai.Int("max_retries", DefaultAIMaxRetries),
		},
	}
	return app
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
