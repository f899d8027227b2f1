package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tjfontaine/helpdesk-router/internal/auth"
)

var keygenPrefix string

var keygenCmd = &cobra.Command{
	Use:   "keygen [api-key]",
	Short: "Generate an API key hash for config.yaml",
	Long: `Print the SHA-256 hash of the given API key, or of a newly generated key
when none is given, in the form expected by server.api_keys.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runKeygen,
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVar(&keygenPrefix, "prefix", "hd_", "prefix for generated keys")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	var key, hash string
	if len(args) == 1 {
		key, hash = args[0], auth.HashAPIKey(args[0])
	} else {
		var err error
		key, hash, err = auth.GenerateAPIKey(keygenPrefix)
		if err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "API Key: %s\n", key)
	fmt.Fprintf(out, "SHA-256 Hash: %s\n", hash)
	fmt.Fprintln(out, "\nAdd this to your config.yaml:")
	fmt.Fprintf(out, "server:\n  api_keys:\n")
	fmt.Fprintf(out, "    - key_hash: %q\n", hash)
	fmt.Fprintf(out, "      description: \"Generated key\"\n")
	return nil
}
