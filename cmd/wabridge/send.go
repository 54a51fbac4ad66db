package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/infobip"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/outbound"
)

var (
	sendTo   string
	sendText string
)

var sendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a text message through the WhatsApp API",
	Example: `  wabridge send --to 27820000000 --text "Your outage has been logged."`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if sendTo == "" || sendText == "" {
			return fmt.Errorf("--to and --text are required")
		}

		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}

		req, err := newComposer(cfg).Compose(outbound.TextResponse{RecipientID: sendTo, Text: sendText})
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), time.Duration(cfg.Provider.Timeout)*time.Second)
		defer cancel()

		client := infobip.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
		resp, err := client.Send(ctx, req.URLPath, req.Payload)
		if err != nil {
			return err
		}

		if resp.MessageID != "" {
			fmt.Fprintf(cmd.OutOrStdout(), "sent (id: %s, status: %s)\n", resp.MessageID, resp.Status.Name)
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "sent")
		}
		return nil
	},
}

func init() {
	sendCmd.Flags().StringVar(&sendTo, "to", "", "recipient phone number")
	sendCmd.Flags().StringVar(&sendText, "text", "", "message text")
	rootCmd.AddCommand(sendCmd)
}
