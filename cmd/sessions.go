package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/diagflow/diagflow/pkg/diagflow/session"
	"github.com/spf13/cobra"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Manage saved diagram sessions",
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		metas, err := store.List()
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		activeID, err := store.ActiveID()
		if err != nil {
			activeID = ""
		}

		if len(metas) == 0 {
			fmt.Println(headerStyle.Render("No sessions found"))
			return nil
		}

		fmt.Println(headerStyle.Render(fmt.Sprintf("Found %d session(s)", len(metas))))
		fmt.Println()

		w := tabwriter.NewWriter(lipgloss.DefaultRenderer().Output(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, titleStyle.Render("ID")+"\t"+titleStyle.Render("Name")+"\t"+titleStyle.Render("Engine")+"\t"+titleStyle.Render("Updated")+"\t")
		for _, meta := range metas {
			name := meta.Name
			if name == "" {
				name = "Untitled"
			}
			if meta.ID == activeID {
				name += " *"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t\n",
				idStyle.Render(shortID(meta.ID)),
				name,
				engineStyle.Render(meta.Engine.DisplayName()),
				dateStyle.Render(relativeTime(meta.UpdatedAt)))
		}
		return w.Flush()
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one session's document and transcript",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		sess, err := findSession(store, args[0])
		if err != nil {
			return err
		}

		fmt.Println(titleStyle.Render(sess.Name))
		fmt.Println(idStyle.Render(sess.ID))
		fmt.Printf("%s %s\n", engineStyle.Render(sess.Diagram.Engine.DisplayName()),
			dateStyle.Render("updated "+relativeTime(sess.UpdatedAt)))
		fmt.Println()
		fmt.Println(sess.Diagram.Source)

		if len(sess.Messages) > 0 {
			fmt.Println()
			fmt.Println(headerStyle.Render(fmt.Sprintf("Transcript (%d messages)", len(sess.Messages))))
			for _, msg := range sess.Messages {
				fmt.Printf("%s %s\n", titleStyle.Render(string(msg.Role)+":"), msg.Content)
			}
		}
		return nil
	},
}

var sessionsDeleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		sess, err := findSession(store, args[0])
		if err != nil {
			return err
		}
		if err := store.Delete(sess.ID); err != nil {
			return fmt.Errorf("delete session: %w", err)
		}
		fmt.Println(successStyle.Render("✓ Deleted " + sess.Name))
		return nil
	},
}

var sessionsRenameCmd = &cobra.Command{
	Use:   "rename <id> <name>",
	Short: "Rename a session",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(args[1]) == "" {
			return fmt.Errorf("session name cannot be empty")
		}
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		sess, err := findSession(store, args[0])
		if err != nil {
			return err
		}
		old := sess.Name
		sess.Name = args[1]
		if err := store.Save(sess); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		fmt.Println(successStyle.Render(fmt.Sprintf("✓ Renamed %q to %q", old, sess.Name)))
		return nil
	},
}

// openStore opens the SQLite session store from the resolved config.
func openStore() (*session.SQLiteStore, error) {
	app, err := loadApp()
	if err != nil {
		return nil, err
	}
	store, err := session.NewSQLiteStore(app.StoragePath, session.WithMaxSessions(app.MaxSessions))
	if err != nil {
		return nil, fmt.Errorf("open session store %s: %w", app.StoragePath, err)
	}
	return store, nil
}

// findSession resolves a possibly-abbreviated session ID. A unique prefix
// of at least 4 characters is accepted.
func findSession(store *session.SQLiteStore, id string) (*session.Session, error) {
	if sess, err := store.Get(id); err == nil {
		return sess, nil
	}
	if len(id) < 4 {
		return nil, fmt.Errorf("session %q not found", id)
	}

	metas, err := store.List()
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	var match string
	for _, meta := range metas {
		if strings.HasPrefix(meta.ID, id) {
			if match != "" {
				return nil, fmt.Errorf("session ID %q is ambiguous", id)
			}
			match = meta.ID
		}
	}
	if match == "" {
		return nil, fmt.Errorf("session %q not found", id)
	}
	return store.Get(match)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// relativeTime renders a timestamp the way humans scan lists: recent
// entries by clock time, older ones by date.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return "—"
	}
	t = t.Local()
	switch diff := time.Since(t); {
	case diff < 24*time.Hour:
		return t.Format("Today 15:04")
	case diff < 7*24*time.Hour:
		return t.Format("Mon 15:04")
	case diff < 365*24*time.Hour:
		return t.Format("Jan 02 15:04")
	default:
		return t.Format("2006-01-02")
	}
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd)
	sessionsCmd.AddCommand(sessionsShowCmd)
	sessionsCmd.AddCommand(sessionsDeleteCmd)
	sessionsCmd.AddCommand(sessionsRenameCmd)
}
