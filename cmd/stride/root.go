package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stridefit/stride/internal/cache"
	"github.com/stridefit/stride/internal/config"
	"github.com/stridefit/stride/internal/kv"
	"github.com/stridefit/stride/internal/logging"
	"github.com/stridefit/stride/internal/queue"
	"github.com/stridefit/stride/internal/remote"
	syncengine "github.com/stridefit/stride/internal/sync"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "stride",
	Short: "Offline-first sync core for the Stride coaching app",
	Long: `Stride keeps the mobile client usable without a network connection.

Writes made while offline land in a durable local queue and replay
against the backend when connectivity returns; reads come from
last-known-good cache snapshots. The daemon watches connectivity and
serves a real-time dashboard; the other commands inspect and drive the
same local state.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: ./stride.yaml, ~/.stride/stride.yaml)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// core bundles the wired subsystems the commands operate on.
type core struct {
	cfg    *config.Config
	store  *kv.Store
	queue  *queue.Store
	cache  *cache.Store
	remote remote.Service
	engine *syncengine.Engine
}

// openCore loads config and wires storage, queue, cache, remote service
// and sync engine. dev swaps the real backend for the in-memory one.
func openCore(dev bool) (*core, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, err
	}

	if cfg.LogFile != "" {
		logging.SetFile(cfg.LogFile, cfg.LogMaxSizeMB, cfg.LogMaxBackups)
	}

	store, err := kv.Open(cfg.DBPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open local store: %w", err)
	}

	q := queue.New(store, logging.New("queue"))
	if err := q.Load(); err != nil {
		store.Close()
		return nil, fmt.Errorf("failed to load queue: %w", err)
	}

	var svc remote.Service
	switch {
	case dev || cfg.RemoteURL == "":
		svc = remote.NewMemory()
	default:
		svc = remote.NewClient(cfg.RemoteURL, cfg.RemoteAPIKey, nil)
	}

	return &core{
		cfg:    cfg,
		store:  store,
		queue:  q,
		cache:  cache.New(store, logging.New("cache")),
		remote: svc,
		engine: syncengine.New(q, svc, store, logging.New("sync")),
	}, nil
}

func (c *core) close() {
	if err := c.store.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: failed to close store: %v\n", err)
	}
}

// probeURL is the reachability endpoint: the configured probe target,
// falling back to the backend itself.
func (c *core) probeURL() string {
	if c.cfg.ProbeURL != "" {
		return c.cfg.ProbeURL
	}
	return c.cfg.RemoteURL
}
