package main

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

var statusAddr string

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check gateway health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		addr := statusAddr
		if addr == "" {
			cfg, err := loadConfig(false)
			if err != nil {
				return err
			}
			addr = cfg.Server.Addr
		}

		url := healthURL(addr)
		client := &http.Client{Timeout: 5 * time.Second}
		resp, err := client.Get(url)
		if err != nil {
			return fmt.Errorf("gateway unreachable: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("gateway unhealthy (status %d)", resp.StatusCode)
		}
		fmt.Fprintln(cmd.OutOrStdout(), "gateway: ok")
		return nil
	},
}

func init() {
	statusCmd.Flags().StringVar(&statusAddr, "addr", "", "gateway address (default: server.addr from config)")
	rootCmd.AddCommand(statusCmd)
}

// healthURL turns a listen address or base URL into the health endpoint URL.
func healthURL(addr string) string {
	if !strings.HasPrefix(addr, "http://") && !strings.HasPrefix(addr, "https://") {
		if strings.HasPrefix(addr, ":") {
			addr = "localhost" + addr
		}
		addr = "http://" + addr
	}
	return strings.TrimRight(addr, "/") + "/health"
}
