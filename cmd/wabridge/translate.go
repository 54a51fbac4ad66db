package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/inbound"
)

var normalizeCmd = &cobra.Command{
	Use:   "normalize [file]",
	Short: "Print the bot message for a provider webhook event",
	Long:  "Reads a provider webhook event from file (or stdin) and prints the canonical message that would be forwarded to the bot backend.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		evt, err := inbound.Normalize(data)
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), evt.Message)
	},
}

type composedOutput struct {
	Index   int    `json:"index"`
	URLPath string `json:"urlPath,omitempty"`
	Payload any    `json:"payload,omitempty"`
	Error   string `json:"error,omitempty"`
}

var composeCmd = &cobra.Command{
	Use:   "compose [file]",
	Short: "Print the provider requests for a batch of bot responses",
	Long:  "Reads bot responses (a JSON array or a single object) from file (or stdin) and prints the provider request composed for each one.",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		data, err := readInput(cmd, args)
		if err != nil {
			return err
		}

		cfg, err := loadConfig(false)
		if err != nil {
			return err
		}

		results, err := newComposer(cfg).ComposeBatch(data)
		if err != nil {
			return err
		}

		out := make([]composedOutput, len(results))
		for i, res := range results {
			out[i] = composedOutput{Index: res.Index}
			if res.Err != nil {
				out[i].Error = res.Err.Error()
				continue
			}
			out[i].URLPath = res.Request.URLPath
			out[i].Payload = res.Request.Payload
		}
		return printJSON(cmd.OutOrStdout(), out)
	},
}

func init() {
	rootCmd.AddCommand(normalizeCmd, composeCmd)
}

func readInput(cmd *cobra.Command, args []string) ([]byte, error) {
	if len(args) == 0 || args[0] == "-" {
		return io.ReadAll(cmd.InOrStdin())
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", args[0], err)
	}
	return data, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
