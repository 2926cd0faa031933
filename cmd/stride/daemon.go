package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/stridefit/stride/internal/config"
	"github.com/stridefit/stride/internal/connectivity"
	"github.com/stridefit/stride/internal/dashboard"
	"github.com/stridefit/stride/internal/logging"
	syncengine "github.com/stridefit/stride/internal/sync"
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run the connectivity monitor and dashboard server",
	Long: `Run the sync daemon: poll connectivity, replay the offline queue on
reconnect, and serve the real-time dashboard.

The daemon broadcasts WebSocket messages to connected clients:
- status: connectivity/queue snapshot (also sent on connect)
- sync_result: outcome of each reconciliation pass
- queue_update: queue depth changes
- precache: cache warm progress

Example usage:
  stride daemon                  # sync against the configured backend
  stride daemon --dev            # in-memory backend, no network needed
  stride daemon --port 9000      # dashboard on a custom port

Connect with a WebSocket client:
  ws://localhost:8787/ws`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dev, _ := cmd.Flags().GetBool("dev")
		port, _ := cmd.Flags().GetInt("port")

		c, err := openCore(dev)
		if err != nil {
			return err
		}
		defer c.close()

		if port == 0 {
			port = c.cfg.DashboardPort
		}

		var controller *connectivity.Controller

		server := dashboard.NewServer(&dashboard.Config{
			Port:   port,
			Logger: logging.New("dashboard"),
			Status: func() any { return controller.Status() },
		})
		handler := dashboard.NewHandler(server, logging.New("dashboard"))

		listener := func(result *syncengine.Result, err error) {
			handler.OnSyncPass(result, err)
			handler.OnStatusChange(controller.Status())
		}

		prober := newProber(dev, c.probeURL())
		controller = connectivity.New(prober, c.engine, c.queue, &connectivity.Config{
			PollInterval: c.cfg.ProbeInterval,
			Logger:       logging.New("connectivity"),
		}, listener)

		if err := server.Start(); err != nil {
			return err
		}
		controller.Start()

		// Tunables that matter mid-flight get logged on hot reload; a
		// poll-interval change needs a restart.
		config.Watch(func(cfg *config.Config) {
			logging.New("config").Printf("Config reloaded (probe_interval=%v dashboard_port=%d)",
				cfg.ProbeInterval, cfg.DashboardPort)
		})

		fmt.Printf("Dashboard: http://localhost:%d (ws://localhost:%d/ws)\n", port, port)
		fmt.Printf("Pending operations: %d\n", c.queue.Len())
		fmt.Println("\nPress Ctrl+C to stop...")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()
		<-ctx.Done()

		fmt.Println("\nShutting down...")
		controller.Stop()
		if err := server.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Error during shutdown: %v\n", err)
		}
		return nil
	},
}

// newProber returns the reachability check: a real HTTP HEAD probe, or
// an always-online stub in dev mode.
func newProber(dev bool, url string) connectivity.Prober {
	if dev || url == "" {
		return devProber{}
	}
	return connectivity.NewHTTPProber(url)
}

type devProber struct{}

func (devProber) Online(ctx context.Context) bool { return true }

func init() {
	daemonCmd.Flags().Bool("dev", false, "Use the in-memory backend (no network)")
	daemonCmd.Flags().IntP("port", "p", 0, "Dashboard port (default from config)")

	rootCmd.AddCommand(daemonCmd)
}
