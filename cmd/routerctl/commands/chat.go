package commands

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"github.com/amerfu/llmrouter/internal/handlers"
)

func NewChatCommand() *cobra.Command {
	var (
		latencyHint string
		priority    string
		system      string
	)

	cmd := &cobra.Command{
		Use:   "chat [message...]",
		Short: "Send a chat request through the router",
		Example: `  routerctl chat "write a poem about queues"
  routerctl chat --latency fast "hello"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			request := handlers.ChatRequest{
				LatencyHint: latencyHint,
				Priority:    priority,
			}
			if system != "" {
				request.Messages = append(request.Messages, handlers.ChatMessage{Role: "system", Content: system})
			}
			request.Messages = append(request.Messages, handlers.ChatMessage{
				Role:    "user",
				Content: strings.Join(args, " "),
			})

			var response handlers.ChatResponse
			if err := APIRequest(http.MethodPost, "/route/chat", request, &response, cmd.ErrOrStderr()); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if outputJSON {
				OutputJSON(out, response)
				return nil
			}

			fmt.Fprintf(out, "Model:   %s\n", response.ModelSelected)
			fmt.Fprintf(out, "Reason:  %s\n", response.Meta.Reason)
			fmt.Fprintf(out, "Latency: %dms (queue depth %d)\n", response.Meta.LatencyMS, response.Meta.QueueDepth)
			if response.Meta.Degraded {
				fmt.Fprintln(out, "Warning: backend unreachable, completion is a placeholder")
			}
			fmt.Fprintf(out, "\n%s\n", response.Completion)
			return nil
		},
	}

	cmd.Flags().StringVar(&latencyHint, "latency", "normal", `latency hint ("fast" prefers the fast model)`)
	cmd.Flags().StringVar(&priority, "priority", "normal", "request priority")
	cmd.Flags().StringVar(&system, "system", "", "optional system message sent before the user message")

	return cmd
}
