package cmd

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/diagflow/diagflow/pkg/diagflow/kroki"
	"github.com/spf13/cobra"
)

var (
	renderEngine string
	renderOut    string
)

// enginesByExt maps common source file extensions to engines so the
// --engine flag is usually unnecessary.
var enginesByExt = map[string]engine.Engine{
	".mmd":      engine.Mermaid,
	".mermaid":  engine.Mermaid,
	".puml":     engine.PlantUML,
	".plantuml": engine.PlantUML,
	".d2":       engine.D2,
	".dbml":     engine.DBML,
	".dot":      engine.Graphviz,
	".gv":       engine.Graphviz,
	".nomnoml":  engine.Nomnoml,
	".erd":      engine.Erd,
	".ditaa":    engine.Ditaa,
	".bob":      engine.Svgbob,
}

var renderCmd = &cobra.Command{
	Use:   "render <file>",
	Short: "Render a diagram file to SVG",
	Long: `Render a diagram source file through the Kroki service and write the
resulting SVG next to the input (or to --out).

The engine is inferred from the file extension (.mmd, .puml, .d2, .dot, ...)
and can be overridden with --engine.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp()
		if err != nil {
			return err
		}

		path := args[0]
		eng, err := resolveEngine(path, renderEngine)
		if err != nil {
			return err
		}
		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		client := kroki.NewClient(
			kroki.WithBaseURL(app.KrokiURL),
			kroki.WithTimeout(app.RequestTimeout),
			kroki.WithLogger(newLogger()),
		)
		svg, err := client.Render(cmd.Context(), eng, string(source))
		if err != nil {
			return renderFailure(eng, err)
		}

		out := renderOut
		if out == "" {
			out = strings.TrimSuffix(path, filepath.Ext(path)) + ".svg"
		}
		if err := os.WriteFile(out, []byte(svg), 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}

		fmt.Println(successStyle.Render(fmt.Sprintf("✓ %s → %s (%d bytes)", path, out, len(svg))))
		return nil
	},
}

// resolveEngine picks the engine from an explicit flag or the file
// extension.
func resolveEngine(path, flag string) (engine.Engine, error) {
	if flag != "" {
		eng := engine.Engine(strings.ToLower(flag))
		if !eng.Valid() {
			return "", fmt.Errorf("unknown engine %q (choose from: %s)", flag, engineList())
		}
		return eng, nil
	}
	if eng, ok := enginesByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return eng, nil
	}
	return "", fmt.Errorf("cannot infer engine from %q, pass --engine (choose from: %s)",
		filepath.Base(path), engineList())
}

func engineList() string {
	all := engine.All()
	names := make([]string, len(all))
	for i, e := range all {
		names[i] = e.String()
	}
	return strings.Join(names, ", ")
}

// renderFailure formats a render error, surfacing the parsed source
// position and context when the service reported one.
func renderFailure(eng engine.Engine, err error) error {
	var rerr *kroki.RenderError
	if !errors.As(err, &rerr) {
		return err
	}

	msg := fmt.Sprintf("%s render failed: %s", eng.DisplayName(), rerr.Message)
	if rerr.Line > 0 {
		msg += fmt.Sprintf(" (line %d)", rerr.Line)
	}
	if rerr.Context != nil {
		var b strings.Builder
		b.WriteString(msg)
		b.WriteString("\n")
		for _, l := range rerr.Context.Before {
			b.WriteString("    " + l + "\n")
		}
		b.WriteString("  > " + rerr.Context.ErrorLine + "\n")
		for _, l := range rerr.Context.After {
			b.WriteString("    " + l + "\n")
		}
		return fmt.Errorf("%s", strings.TrimRight(b.String(), "\n"))
	}
	return fmt.Errorf("%s", msg)
}

func init() {
	rootCmd.AddCommand(renderCmd)
	renderCmd.Flags().StringVarP(&renderEngine, "engine", "e", "", "Diagram engine (default: inferred from extension)")
	renderCmd.Flags().StringVarP(&renderOut, "out", "o", "", "Output file (default: input with .svg extension)")
}
