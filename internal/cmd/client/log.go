package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/rzbill/logkv/internal/logclient"
	"github.com/rzbill/logkv/internal/runtime"
)

// NewLogCommand constructs the `log` command group and subcommands.
func NewLogCommand(load ConfigFunc) *cobra.Command {
	logCmd := &cobra.Command{Use: "log", Short: "Commit log operations"}
	logCmd.AddCommand(
		newLogAppendCommand(load),
		newLogTailCommand(load),
	)
	return logCmd
}

// newLogAppendCommand constructs the `log append` subcommand.
func newLogAppendCommand(load ConfigFunc) *cobra.Command {
	appendCmd := &cobra.Command{
		Use:   "append KEY [VALUE]",
		Short: "Append a record; --delete appends a tombstone",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			topicFlag, _ := cmd.Flags().GetString("topic")
			del, _ := cmd.Flags().GetBool("delete")
			if del && len(args) == 2 {
				return errors.New("--delete takes no value")
			}
			if !del && len(args) == 1 {
				return errors.New("a value is required unless --delete is set")
			}
			var value []byte
			if !del {
				value = []byte(args[1])
			}
			return withBackend(load, func(b *runtime.Backend, topic string) error {
				if topicFlag != "" {
					topic = topicFlag
				}
				off, err := b.Produce(cmd.Context(), topic, []byte(args[0]), value)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "offset: %d\n", off)
				return nil
			})
		},
	}
	appendCmd.Flags().String("topic", "", "Topic (defaults to the configured store topic)")
	appendCmd.Flags().Bool("delete", false, "Append a tombstone for KEY")
	return appendCmd
}

// newLogTailCommand constructs the `log tail` subcommand. Records are
// printed as JSON lines. Tail never commits offsets.
func newLogTailCommand(load ConfigFunc) *cobra.Command {
	tailCmd := &cobra.Command{
		Use:   "tail",
		Short: "Print records of a single-partition topic",
		RunE: func(cmd *cobra.Command, _ []string) error {
			topicFlag, _ := cmd.Flags().GetString("topic")
			from, _ := cmd.Flags().GetInt64("from")
			limit, _ := cmd.Flags().GetInt("limit")
			idle, _ := cmd.Flags().GetDuration("idle-timeout")
			if from < 0 {
				return fmt.Errorf("invalid --from %d", from)
			}
			return withBackend(load, func(b *runtime.Backend, topic string) error {
				if topicFlag != "" {
					topic = topicFlag
				}
				c := b.NewConsumer("logkv-tail", nil)
				defer func() { _ = c.Close() }()
				if err := c.Subscribe(cmd.Context(), topic, from); err != nil {
					return err
				}
				enc := json.NewEncoder(cmd.OutOrStdout())
				for n := 0; limit == 0 || n < limit; n++ {
					rec, err := next(cmd.Context(), c, idle)
					if errors.Is(err, context.DeadlineExceeded) {
						return nil
					}
					if err != nil {
						return err
					}
					if err := enc.Encode(decodedRecord(rec)); err != nil {
						return err
					}
				}
				return nil
			})
		},
	}
	tailCmd.Flags().String("topic", "", "Topic (defaults to the configured store topic)")
	tailCmd.Flags().Int64("from", 0, "First offset to print")
	tailCmd.Flags().Int("limit", 0, "Stop after N records (0 = infinite)")
	tailCmd.Flags().Duration("idle-timeout", 0, "Stop when no record arrives for this long (0 = follow)")
	return tailCmd
}

func next(ctx context.Context, c logclient.Client, idle time.Duration) (logclient.Record, error) {
	if idle <= 0 {
		return c.Next(ctx)
	}
	ctx, cancel := context.WithTimeout(ctx, idle)
	defer cancel()
	return c.Next(ctx)
}
