package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/config"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/logging"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/outbound"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "wabridge",
	Short: "Bridge WhatsApp Business messages to a conversational bot backend",
	Long: `wabridge receives WhatsApp webhook events, normalizes them into the bot
backend's message schema and forwards them. Bot replies posted back to the
gateway are turned into WhatsApp text, button and list messages.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: $WABRIDGE_CONFIG or ~/.config/wabridge/config.toml)")
}

// loadConfig loads and, when strict, validates the configuration.
func loadConfig(strict bool) (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if strict {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*slog.Logger, error) {
	log, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	slog.SetDefault(log)
	return log, nil
}

func newComposer(cfg *config.Config) *outbound.Composer {
	c := outbound.NewComposer(cfg.Provider.Sender, cfg.Composer.ListTitle)
	if cfg.Composer.MessageID != "" {
		c.NewMessageID = outbound.FixedMessageID(cfg.Composer.MessageID)
	}
	return c
}
