package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/tjfontaine/helpdesk-router/internal/core/domain"
	"github.com/tjfontaine/helpdesk-router/internal/workflow"
)

var (
	chatThread   string
	chatSimulate bool
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Start an interactive ticket conversation",
	Long: `Read messages from stdin, one turn per line, and print each result.
An empty line or EOF ends the conversation.`,
	RunE: runChatCmd,
}

func init() {
	rootCmd.AddCommand(chatCmd)

	chatCmd.Flags().StringVar(&chatThread, "thread", "", "conversation id (random if empty)")
	chatCmd.Flags().BoolVar(&chatSimulate, "simulate", false, "simulate dispatch (defaults to workflow.simulate_dispatch_default)")
}

func runChatCmd(cmd *cobra.Command, args []string) error {
	hd, err := newHelpdesk(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer hd.Shutdown(context.Background())

	simulate := hd.Config().Workflow.SimulateDispatchDefault
	if cmd.Flags().Changed("simulate") {
		simulate = chatSimulate
	}

	thread := chatThread
	if thread == "" {
		thread = uuid.NewString()
	}

	return runChat(cmd.Context(), hd.Engine(), thread, simulate, cmd.InOrStdin(), cmd.OutOrStdout())
}

// runChat processes one turn per input line until an empty line or EOF.
func runChat(ctx context.Context, engine *workflow.Engine, thread string, simulate bool, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "Thread %s. Describe your request; an empty line ends the conversation.\n", thread)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}

		result, err := engine.ProcessTurn(ctx, thread, line, simulate)
		if domain.IsCallerError(err) {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		printResult(out, result)
		if err != nil {
			return err
		}
	}
	fmt.Fprintln(out)
	return scanner.Err()
}

func printResult(out io.Writer, r *domain.TicketResult) {
	fmt.Fprintf(out, "[%s] %s\n", r.Status, r.Message)
	if r.Status.AwaitingIdentity() {
		labels := make([]string, len(r.MissingFields))
		for i, f := range r.MissingFields {
			labels[i] = f.Label()
		}
		fmt.Fprintf(out, "  Fehlt: %s\n", strings.Join(labels, ", "))
	}
	if r.Classification != "" {
		fmt.Fprintf(out, "  Kategorie: %s\n", r.Classification)
	}
	if r.Summary != "" {
		fmt.Fprintf(out, "  Zusammenfassung: %s\n", r.Summary)
	}
	if d := r.Dispatch; d != nil {
		mode := "real"
		if d.Simulated {
			mode = "simulated"
		}
		fmt.Fprintf(out, "  Dispatch: %s success=%t %s\n", mode, d.Success, d.Detail)
	}
	if len(r.Degraded) > 0 {
		fmt.Fprintf(out, "  Degraded: %s\n", strings.Join(r.Degraded, ", "))
	}
}
