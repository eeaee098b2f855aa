// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

// netstated is the declarative network state daemon: it applies desired
// interface states, watches link and Wi-Fi events, and reacts to them
// according to the saved triggers.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"grimm.is/netstate/internal/config"
	"grimm.is/netstate/internal/daemon"
	"grimm.is/netstate/internal/logging"
	"grimm.is/netstate/internal/metrics"
	"grimm.is/netstate/internal/monitor"
	"grimm.is/netstate/internal/plugin"
	"grimm.is/netstate/internal/plugin/netlinkbr"
	"grimm.is/netstate/internal/state"
	"grimm.is/netstate/internal/store"
)

func main() {
	configPath := flag.String("config", "", "path to the HCL configuration file")
	statePath := flag.String("state", "", "desired state document (YAML) to apply at startup")
	flag.Parse()

	if err := run(*configPath, *statePath); err != nil {
		fmt.Fprintf(os.Stderr, "netstated: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath, statePath string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	logCfg := cfg.LogConfigFor()
	if cfg.Syslog != nil && cfg.Syslog.Enabled {
		sw, err := logging.NewSyslogWriter(*cfg.Syslog)
		if err != nil {
			return err
		}
		defer sw.Close()
		logCfg.Output = io.MultiWriter(os.Stderr, sw)
	}
	logger := logging.New(logCfg)

	if cfg.Backend != "netlink" {
		return fmt.Errorf("unknown backend %q", cfg.Backend)
	}
	backend := netlinkbr.New(logger)

	st, err := store.Open(cfg.StateDB)
	if err != nil {
		return err
	}
	defer st.Close()

	m := metrics.New()

	watcher, err := monitor.NewNetlinkWatcher(plugin.NewIWScanner(), logger)
	if err != nil {
		return err
	}
	mon := monitor.NewManager(watcher, m.WatchedIfaces, logger)
	defer mon.Close()

	if cfg.Metrics != nil && cfg.Metrics.Listen != "" {
		srv, err := metrics.NewServer(cfg.Metrics.Listen, m, logger)
		if err != nil {
			return err
		}
		srv.Start()
		defer srv.Stop()
	}

	cmdr := daemon.New(cfg, st, backend, mon, m, netlinkbr.Sanitize(), logger)
	defer cmdr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	desired, err := startupState(ctx, st, statePath)
	if err != nil {
		return err
	}
	if !desired.IsEmpty() {
		if err := cmdr.ApplyState(ctx, desired); err != nil {
			return err
		}
		logger.Info("startup state applied", "ifaces", desired.Ifaces.Len())
	}

	err = cmdr.Run(ctx)
	if err == context.Canceled {
		logger.Info("shutting down")
		return nil
	}
	return err
}

// startupState decides what to apply on boot: an explicit document
// wins, otherwise the saved state is restored.
func startupState(ctx context.Context, st *store.Store, statePath string) (state.NetworkState, error) {
	if statePath != "" {
		doc, err := os.ReadFile(statePath)
		if err != nil {
			return state.NewNetworkState(), err
		}
		return state.ParseNetworkState(doc)
	}
	return st.LoadState(ctx)
}
