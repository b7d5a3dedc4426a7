package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/diagflow/diagflow/pkg/diagflow/engine"
	"github.com/diagflow/diagflow/pkg/diagflow/kroki"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var (
	exportEngine  string
	exportFormats string
	exportOutDir  string
)

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Export a diagram to one or more image formats",
	Long: `Export a diagram source file to image formats (svg, png, jpeg, pdf,
png-opaque). Formats are fetched concurrently; each output is written as
<name>.<format> in the input's directory or --out-dir.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := loadApp()
		if err != nil {
			return err
		}

		path := args[0]
		eng, err := resolveEngine(path, exportEngine)
		if err != nil {
			return err
		}

		formats, err := parseFormats(eng, exportFormats)
		if err != nil {
			return err
		}

		source, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		outDir := exportOutDir
		if outDir == "" {
			outDir = filepath.Dir(path)
		}
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", outDir, err)
		}
		base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		client := kroki.NewClient(
			kroki.WithBaseURL(app.KrokiURL),
			kroki.WithTimeout(app.RequestTimeout),
			kroki.WithLogger(newLogger()),
		)

		g, ctx := errgroup.WithContext(cmd.Context())
		outs := make([]string, len(formats))
		for i, format := range formats {
			g.Go(func() error {
				data, err := client.Export(ctx, eng, format, string(source))
				if err != nil {
					return fmt.Errorf("export %s: %w", format, err)
				}
				out := filepath.Join(outDir, base+"."+formatExt(format))
				if err := os.WriteFile(out, data, 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				outs[i] = fmt.Sprintf("%s (%d bytes)", out, len(data))
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}

		for _, out := range outs {
			fmt.Println(successStyle.Render("✓ " + out))
		}
		return nil
	},
}

// parseFormats validates a comma-separated format list against the
// engine's export capability.
func parseFormats(eng engine.Engine, list string) ([]engine.ExportFormat, error) {
	capability := eng.Capability()
	var formats []engine.ExportFormat
	for _, name := range strings.Split(list, ",") {
		name = strings.TrimSpace(strings.ToLower(name))
		if name == "" {
			continue
		}
		format := engine.ExportFormat(name)
		if !capability.Supports(format) {
			return nil, fmt.Errorf("engine %s does not support %q export", eng, name)
		}
		formats = append(formats, format)
	}
	if len(formats) == 0 {
		return nil, fmt.Errorf("no export formats given")
	}
	return formats, nil
}

// formatExt maps an export format to its file extension.
func formatExt(format engine.ExportFormat) string {
	if format == engine.FormatPNGOpaque {
		return "png"
	}
	return string(format)
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportEngine, "engine", "e", "", "Diagram engine (default: inferred from extension)")
	exportCmd.Flags().StringVarP(&exportFormats, "formats", "f", "svg,png", "Comma-separated export formats")
	exportCmd.Flags().StringVar(&exportOutDir, "out-dir", "", "Output directory (default: alongside the input)")
}
