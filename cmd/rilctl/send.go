package main

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/danmuck/rilbridge/internal/ril"
	"github.com/danmuck/rilbridge/internal/ril/codec"
)

func newSendCommand(flags *rootFlags) *cobra.Command {
	var (
		strArgs     []string
		connectWait time.Duration
		timeout     time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send <code> [int32 args...]",
		Short: "Send one command and print the decoded reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			code, err := strconv.ParseInt(args[0], 10, 32)
			if err != nil {
				return fmt.Errorf("command code: %w", err)
			}
			enc, err := sendEncoder(args[1:], strArgs)
			if err != nil {
				return err
			}
			cfg, err := flags.resolve()
			if err != nil {
				return err
			}

			tr, stop, err := startTransport(cmd.Context(), cfg, connectWait)
			if err != nil {
				return err
			}
			defer func() { _ = stop() }()
			ctx := cmd.Context()
			if timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}
			reply, err := tr.Send(ctx, int32(code), enc)
			if re, ok := ril.IsRadioError(err); ok {
				return fmt.Errorf("%s failed: status %d", codec.Default().Command(re.Code).Name, re.Status)
			}
			if err != nil {
				return err
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "%s serial=%08x latency=%s synthetic=%t value=%v\n",
				codec.Default().Command(reply.Code).Name, reply.Serial, reply.Latency, reply.Synthetic, reply.Value)
			return err
		},
	}
	cmd.Flags().StringArrayVar(&strArgs, "string", nil, "string argument; repeat for a string array (exclusive with int args)")
	cmd.Flags().DurationVar(&connectWait, "connect-wait", 10*time.Second, "how long to wait for the daemon socket")
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "how long to wait for the reply; 0 waits forever")
	return cmd
}

func sendEncoder(intArgs, strArgs []string) (codec.Encoder, error) {
	if len(intArgs) > 0 && len(strArgs) > 0 {
		return nil, fmt.Errorf("int and string arguments are exclusive")
	}
	if len(strArgs) > 0 {
		return codec.StringArgs(strArgs...), nil
	}
	if len(intArgs) == 0 {
		return nil, nil
	}
	vs := make([]int32, 0, len(intArgs))
	for _, a := range intArgs {
		v, err := strconv.ParseInt(a, 10, 32)
		if err != nil {
			return nil, fmt.Errorf("int argument %q: %w", a, err)
		}
		vs = append(vs, int32(v))
	}
	return codec.Int32s(vs...), nil
}
