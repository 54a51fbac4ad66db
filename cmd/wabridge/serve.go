package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Enriquefft/whatsapp-bot-bridge/internal/backend"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/infobip"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/security"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/session"
	"github.com/Enriquefft/whatsapp-bot-bridge/internal/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the webhook gateway",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig(true)
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		backendTimeout := time.Duration(cfg.Backend.Timeout) * time.Second
		fwd, err := backend.New(cfg.Backend.Transport, cfg.Backend.URL, cfg.Backend.Token, backendTimeout)
		if err != nil {
			return err
		}
		defer fwd.Close()

		providerTimeout := time.Duration(cfg.Provider.Timeout) * time.Second
		client := infobip.NewClient(cfg.Provider.BaseURL, cfg.Provider.APIKey)
		client.HTTPClient = &http.Client{Timeout: providerTimeout}

		guard := security.New(cfg.Security)

		srv := &webhook.Server{
			Addr:           cfg.Server.Addr,
			Composer:       newComposer(cfg),
			Forwarder:      fwd,
			Dispatcher:     webhook.NewDispatcher(client, providerTimeout, log),
			Sessions:       session.New(time.Duration(cfg.Session.TTL)*time.Second, time.Duration(cfg.Session.DedupTTL)*time.Second),
			Guard:          guard,
			ForwardTimeout: backendTimeout,
			Log:            log.With("component", "gateway"),
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go sweepGuard(ctx, guard, time.Duration(cfg.Security.RateWindow)*time.Second)

		log.Info("starting gateway",
			"addr", cfg.Server.Addr,
			"backend", cfg.Backend.URL,
			"transport", cfg.Backend.Transport,
			"security", cfg.Security.Mode)
		return srv.Run(ctx)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// sweepGuard periodically drops expired rate-limit buckets.
func sweepGuard(ctx context.Context, g *security.Guard, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			g.Sweep()
		}
	}
}
