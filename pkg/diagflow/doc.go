// Package diagflow coordinates the diagram editing core: an undo-aware
// document, latest-wins rendering, and persistent sessions.
//
// The Workspace is the single entry point. It owns one active session at a
// time and keeps three collaborators consistent:
//
//   - a history.Store holding the document and its undo/redo stacks,
//   - a render.Executor publishing rendered artifacts with a latest-wins
//     guarantee,
//   - a session.Store persisting sessions across restarts, plus an optional
//     session.DraftStore for crash recovery of unsaved work.
//
// # Render triggering
//
// Document changes are classified by comparing (session ID, engine) against
// the pair that drove the previous immediate render. Session switches and
// engine changes render immediately and update that pair; source-only edits
// are debounced behind a quiet period and leave the pair untouched, so a
// typing burst costs one render instead of one per keystroke.
//
// # Lifecycle
//
// A Workspace starts idle. Start restores the previous session (preferring
// a newer draft snapshot when one exists), kicks off the initial render and
// moves to StateReady. Subscribers on the Workspace's event bus observe
// render and session lifecycle notifications.
//
// Basic usage:
//
//	store, _ := session.NewSQLiteStore("diagflow.db")
//	ws, _ := diagflow.New(store, krokiClient)
//	if err := ws.Start(); err != nil { ... }
//	ws.SetSource("graph TD\n  A --> B")   // debounced render
//	ws.SetEngine(engine.PlantUML)         // immediate render
//	ws.Undo()
//	ws.Save()
package diagflow
