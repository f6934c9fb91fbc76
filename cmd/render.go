package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/tk103331/eino-chatlab/config"
	"github.com/tk103331/eino-chatlab/segment"
	"github.com/tk103331/eino-chatlab/snippet"
)

var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Segment a model response and print it",
	Long: `Split a model response into plain text and markdown snippets and print the
result as JSON fragments or as the HTML the web interface shows. Reads stdin
when no file is given.`,
	Args: cobra.MaximumNArgs(1),
	// render works without a configuration file
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnv(); err != nil {
			return err
		}
		if _, err := os.Stat(configPath); err != nil {
			return nil
		}
		_, err := config.LoadConfig(configPath)
		return err
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE: func(cmd *cobra.Command, args []string) error {
		in := cmd.InOrStdin()
		if len(args) == 1 {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		raw, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		seg := segment.New()
		if cfg := config.GetConfig(); cfg != nil {
			seg = newSegmenter(cfg)
		}
		fragments := seg.Segment(string(raw))

		format, _ := cmd.Flags().GetString("format")
		out := cmd.OutOrStdout()
		switch format {
		case "json":
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(fragments)
		case "html":
			_, err := fmt.Fprintln(out, snippet.Markup(fragments, snippet.NewID))
			return err
		default:
			return fmt.Errorf("unsupported format: %s", format)
		}
	},
}

func init() {
	RootCmd.AddCommand(renderCmd)

	renderCmd.Flags().StringP("format", "f", "json", "output format: json or html")
}
