package commands

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/amerfu/llmrouter/internal/handlers"
)

// defaultPrompts cover every query type in the default keyword table.
var defaultPrompts = []string{
	"hello there",
	"write a short poem about queues",
	"explain how a load balancer works",
	"why is the sky blue",
	"give me a summary of the plot of hamlet",
	"what time is it",
}

// LoadResult aggregates a load run by model and reason.
type LoadResult struct {
	Requests int            `json:"requests"`
	Failures int            `json:"failures"`
	Degraded int            `json:"degraded"`
	Elapsed  string         `json:"elapsed"`
	ByModel  map[string]int `json:"by_model"`
	ByReason map[string]int `json:"by_reason"`
}

func NewLoadCommand() *cobra.Command {
	var (
		requests    int
		concurrency int
		latencyHint string
	)

	cmd := &cobra.Command{
		Use:   "load",
		Short: "Send concurrent chat requests and summarise routing decisions",
		Long: `Sends a burst of chat requests cycling through prompts of every query type.
With enough concurrency the creative model's queue fills up and requests show
up under the "+fallback" reasons.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if requests <= 0 || concurrency <= 0 {
				return fmt.Errorf("--requests and --concurrency must be positive")
			}

			result := LoadResult{
				ByModel:  make(map[string]int),
				ByReason: make(map[string]int),
			}
			var mu sync.Mutex

			g := new(errgroup.Group)
			g.SetLimit(concurrency)

			start := time.Now()
			for i := 0; i < requests; i++ {
				prompt := defaultPrompts[i%len(defaultPrompts)]
				g.Go(func() error {
					var response handlers.ChatResponse
					err := APIRequest(http.MethodPost, "/route/chat", handlers.ChatRequest{
						Messages:    []handlers.ChatMessage{{Role: "user", Content: prompt}},
						LatencyHint: latencyHint,
					}, &response, cmd.ErrOrStderr())

					mu.Lock()
					defer mu.Unlock()
					result.Requests++
					if err != nil {
						result.Failures++
						if verbose {
							fmt.Fprintf(cmd.ErrOrStderr(), "request failed: %v\n", err)
						}
						return nil
					}
					result.ByModel[response.ModelSelected]++
					result.ByReason[response.Meta.Reason]++
					if response.Meta.Degraded {
						result.Degraded++
					}
					return nil
				})
			}
			_ = g.Wait()
			result.Elapsed = time.Since(start).Round(time.Millisecond).String()

			out := cmd.OutOrStdout()
			if outputJSON {
				OutputJSON(out, result)
				return nil
			}

			fmt.Fprintf(out, "Requests: %d  Failures: %d  Degraded: %d  Elapsed: %s\n\n",
				result.Requests, result.Failures, result.Degraded, result.Elapsed)
			OutputTable(out, []string{"MODEL", "COUNT"}, countRows(result.ByModel))
			fmt.Fprintln(out)
			OutputTable(out, []string{"REASON", "COUNT"}, countRows(result.ByReason))
			return nil
		},
	}

	cmd.Flags().IntVarP(&requests, "requests", "n", 30, "total number of requests")
	cmd.Flags().IntVarP(&concurrency, "concurrency", "c", 10, "requests in flight at once")
	cmd.Flags().StringVar(&latencyHint, "latency", "normal", "latency hint sent with every request")

	return cmd
}

func countRows(counts map[string]int) [][]string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, []string{k, strconv.Itoa(counts[k])})
	}
	return rows
}
