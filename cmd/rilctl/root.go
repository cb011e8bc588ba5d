package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	logs "github.com/danmuck/rilbridge/internal/logging"
	"github.com/danmuck/rilbridge/internal/ril/codec"
	"github.com/danmuck/rilbridge/internal/ril/transport"
)

type rootFlags struct {
	configPath string
	instance   int
	socketDir  string
	logLevel   string
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{instance: -1}
	cmd := &cobra.Command{
		Use:           "rilctl",
		Short:         "Talk to the radio daemon over its command socket",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "path to a TOML config file")
	pf.IntVar(&flags.instance, "instance", -1, "radio instance (0 = rild, 1 = rild2, ...)")
	pf.StringVar(&flags.socketDir, "socket-dir", "", "directory holding the daemon sockets")
	pf.StringVar(&flags.logLevel, "log-level", "", "log level (trace, debug, info, warn, error)")

	cmd.AddCommand(
		newMonitorCommand(flags),
		newSendCommand(flags),
		newMockCommand(flags),
		newConfigCommand(flags),
		newVersionCommand(),
	)
	return cmd
}

// resolve loads the config file, applies flag overrides and configures logging.
func (f *rootFlags) resolve() (appConfig, error) {
	cfg, err := loadAppConfig(f.configPath)
	if err != nil {
		return appConfig{}, err
	}
	if f.instance >= 0 {
		cfg.Transport.Instance = f.instance
	}
	if f.socketDir != "" {
		cfg.Transport.SocketDir = f.socketDir
	}
	if f.logLevel != "" {
		lvl, ok := logs.ParseLevel(f.logLevel)
		if !ok {
			return appConfig{}, fmt.Errorf("unknown log level %q", f.logLevel)
		}
		cfg.Log.Level = lvl
	}
	logs.ConfigureWith(cfg.Log)
	return cfg, nil
}

// startTransport runs a transport in the background and waits up to
// connectWait for the first connection. stop cancels the transport and waits
// for Run to return; on error the transport is already stopped.
func startTransport(ctx context.Context, cfg appConfig, connectWait time.Duration, opts ...transport.Option) (*transport.Transport, func() error, error) {
	opts = append([]transport.Option{transport.WithCodecs(codec.Default())}, opts...)
	tr, err := transport.New(cfg.Transport, opts...)
	if err != nil {
		return nil, nil, err
	}
	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() {
		done <- tr.Run(runCtx)
	}()
	stop := func() error {
		cancel()
		return <-done
	}
	if connectWait <= 0 {
		return tr, stop, nil
	}
	waitCtx, waitCancel := context.WithTimeout(ctx, connectWait)
	defer waitCancel()
	if err := tr.WaitState(waitCtx, transport.StateConnected); err != nil {
		_ = stop()
		return nil, nil, fmt.Errorf("connect %s: %w", cfg.Transport.SocketPath(), err)
	}
	return tr, stop, nil
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the rilctl version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintf(cmd.OutOrStdout(), "rilctl %s\n", version)
			return err
		},
	}
}
