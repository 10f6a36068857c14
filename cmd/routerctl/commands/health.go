package commands

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/amerfu/llmrouter/internal/handlers"
)

func NewHealthCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the router is up",
		RunE: func(cmd *cobra.Command, args []string) error {
			var health handlers.HealthResponse
			if err := APIRequest(http.MethodGet, "/healthz", nil, &health, cmd.ErrOrStderr()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				OutputJSON(out, health)
				return nil
			}

			fmt.Fprintf(out, "Status: %s\n", health.Status)
			fmt.Fprintf(out, "Mode:   %s\n", health.Mode)
			fmt.Fprintf(out, "Note:   %s\n", health.Note)
			return nil
		},
	}
}

func NewStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show per-model queue depths and latency percentiles",
		RunE: func(cmd *cobra.Command, args []string) error {
			var stats handlers.StatsResponse
			if err := APIRequest(http.MethodGet, "/stats", nil, &stats, cmd.ErrOrStderr()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				OutputJSON(out, stats)
				return nil
			}

			models := make([]string, 0, len(stats.QueueDepths))
			for model := range stats.QueueDepths {
				models = append(models, model)
			}
			sort.Strings(models)

			rows := make([][]string, 0, len(models))
			for _, model := range models {
				row := []string{model, strconv.FormatInt(stats.QueueDepths[model], 10), "-", "-", "-"}
				if l, ok := stats.Latency[model]; ok && l.SampleCount > 0 {
					row[2] = strconv.FormatInt(l.SampleCount, 10)
					row[3] = l.P50.Round(time.Millisecond).String()
					row[4] = l.P95.Round(time.Millisecond).String()
				}
				rows = append(rows, row)
			}

			OutputTable(out, []string{"MODEL", "QUEUE", "SAMPLES", "P50", "P95"}, rows)
			return nil
		},
	}
}
