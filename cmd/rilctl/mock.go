package main

import (
	"context"
	"encoding/binary"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	logs "github.com/danmuck/rilbridge/internal/logging"
	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/mockmodem"
	"github.com/danmuck/rilbridge/internal/ril/parcel"
)

func newMockCommand(flags *rootFlags) *cobra.Command {
	var (
		daemonVersion int32
		signalEvery   time.Duration
		silentActInfo bool
	)
	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Serve a fake radio daemon on the configured socket",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}
			m := newDemoModem(daemonVersion, silentActInfo)
			path := filepath.Clean(cfg.Transport.WithDefaults().SocketPath())
			return runMock(cmd.Context(), m, path, signalEvery)
		},
	}
	cmd.Flags().Int32Var(&daemonVersion, "daemon-version", ril.AckMinVersion, "protocol version announced on connect")
	cmd.Flags().DurationVar(&signalEvery, "signal-every", 5*time.Second, "interval between signal strength events; 0 disables them")
	cmd.Flags().BoolVar(&silentActInfo, "silent-activity-info", false, "never answer activity info requests")
	return cmd
}

// newDemoModem answers the codes in the default codec table with canned values.
func newDemoModem(version int32, silentActInfo bool) *mockmodem.Modem {
	m := mockmodem.New(mockmodem.Options{Version: version})
	m.Handle(ril.RequestBasebandVersion, func(mockmodem.Request) mockmodem.Response {
		w := parcel.NewWriter()
		w.WriteString("rilbridge-mock-1.0")
		return mockmodem.Response{Kind: ril.KindSolicitedAckExp, Body: w.Bytes()}
	})
	m.Handle(ril.RequestSignalStrength, func(mockmodem.Request) mockmodem.Response {
		w := parcel.NewWriter()
		w.WriteInt32s([]int32{-71, 99})
		return mockmodem.Response{AckFirst: true, Body: w.Bytes()}
	})
	m.Handle(ril.RequestRadioPower, func(req mockmodem.Request) mockmodem.Response {
		if len(req.Body) < 8 {
			return mockmodem.Response{Status: 2}
		}
		return mockmodem.Response{}
	})
	m.Handle(ril.RequestGetActivityInfo, func(mockmodem.Request) mockmodem.Response {
		if silentActInfo {
			return mockmodem.Response{Drop: true}
		}
		body := make([]byte, 0, 32)
		for _, v := range []int32{1000, 200, 1, 2, 3, 4, 5, 300} {
			body = binary.LittleEndian.AppendUint32(body, uint32(v))
		}
		return mockmodem.Response{Body: body}
	})
	m.HandleDefault(func(req mockmodem.Request) mockmodem.Response {
		logs.Debugf("rilctl.mock unhandled code=%d serial=%08x", req.Code, req.Serial)
		// REQUEST_NOT_SUPPORTED
		return mockmodem.Response{Status: 6}
	})
	return m
}

func runMock(ctx context.Context, m *mockmodem.Modem, path string, signalEvery time.Duration) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return m.ListenAndServe(gctx, path)
	})
	if signalEvery > 0 {
		g.Go(func() error {
			ticker := time.NewTicker(signalEvery)
			defer ticker.Stop()
			level := int32(-80)
			for {
				select {
				case <-gctx.Done():
					return nil
				case <-ticker.C:
				}
				level++
				if level > -60 {
					level = -80
				}
				w := parcel.NewWriter()
				w.WriteInt32s([]int32{level, 99})
				if err := m.Unsolicited(ril.UnsolSignalStrength, w.Bytes(), true); err != nil {
					logs.Debugf("rilctl.mock signal event skipped: %v", err)
				}
			}
		})
	}
	return g.Wait()
}
