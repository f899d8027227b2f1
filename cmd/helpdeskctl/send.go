package main

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"
)

var (
	sendThread   string
	sendSimulate bool
	sendJSON     bool
)

var sendCmd = &cobra.Command{
	Use:   "send <message>",
	Short: "Process a single turn",
	Long:  `Process one message for a conversation and print the result.`,
	Args:  cobra.MinimumNArgs(1),
	RunE:  runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	sendCmd.Flags().StringVar(&sendThread, "thread", "", "conversation id")
	sendCmd.Flags().BoolVar(&sendSimulate, "simulate", false, "simulate dispatch (defaults to workflow.simulate_dispatch_default)")
	sendCmd.Flags().BoolVar(&sendJSON, "json", false, "print the result as JSON")
	_ = sendCmd.MarkFlagRequired("thread")
}

func runSend(cmd *cobra.Command, args []string) error {
	hd, err := newHelpdesk(cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer hd.Shutdown(context.Background())

	simulate := hd.Config().Workflow.SimulateDispatchDefault
	if cmd.Flags().Changed("simulate") {
		simulate = sendSimulate
	}

	result, err := hd.Engine().ProcessTurn(cmd.Context(), sendThread, strings.Join(args, " "), simulate)
	if result == nil {
		return err
	}

	out := cmd.OutOrStdout()
	if sendJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if encErr := enc.Encode(result); encErr != nil {
			return encErr
		}
	} else {
		printResult(out, result)
	}
	return err
}
