package commands

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/amerfu/llmrouter/internal/config"
)

// NewConfigCommand validates router configuration locally, without a
// running router.
func NewConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect router configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "check [path]",
		Short: "Load and validate a config file or directory",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}

			cfg, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				OutputJSON(out, map[string]interface{}{
					"mode":            cfg.Mode(),
					"models":          cfg.ModelList,
					"query_types":     cfg.QueryTypes(),
					"fallback_model":  cfg.FallbackModel(),
					"fast_model":      cfg.FastModel(),
					"creative_model":  cfg.CreativeModel(),
					"preferred_types": cfg.PreferredQueryTypes(),
					"timeout":         cfg.Timeout().String(),
					"max_retries":     cfg.MaxRetries(),
				})
				return nil
			}

			fmt.Fprintf(out, "Mode:           %s\n", cfg.Mode())
			fmt.Fprintf(out, "Fallback model: %s\n", cfg.FallbackModel())
			fmt.Fprintf(out, "Fast model:     %s\n", orNone(cfg.FastModel()))
			fmt.Fprintf(out, "Creative model: %s\n", orNone(cfg.CreativeModel()))
			fmt.Fprintf(out, "Timeout:        %s\n\n", cfg.Timeout())

			rows := make([][]string, 0, len(cfg.ModelList))
			for _, m := range cfg.ModelList {
				rows = append(rows, []string{
					m.ID, string(m.API), m.ModelName, string(m.Profile), strconv.Itoa(m.MaxQueueDepth), m.Endpoint,
				})
			}
			OutputTable(out, []string{"ID", "API", "MODEL", "PROFILE", "MAX_QUEUE", "ENDPOINT"}, rows)

			fmt.Fprintln(out)
			qtRows := make([][]string, 0, len(cfg.QueryTypes()))
			for _, qt := range cfg.QueryTypes() {
				qtRows = append(qtRows, []string{qt.Name, strconv.Itoa(len(qt.Keywords))})
			}
			OutputTable(out, []string{"QUERY_TYPE", "KEYWORDS"}, qtRows)
			return nil
		},
	})

	return cmd
}

func orNone(s string) string {
	if s == "" {
		return "(none)"
	}
	return s
}
