package client

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rzbill/logkv/internal/runtime"
)

// NewTopicCommand constructs the `topic` command group.
func NewTopicCommand(load ConfigFunc) *cobra.Command {
	topicCmd := &cobra.Command{Use: "topic", Short: "Topic operations"}
	topicCmd.AddCommand(newTopicCreateCommand(load))
	return topicCmd
}

// newTopicCreateCommand constructs the `topic create` subcommand. Store
// topics must have exactly one partition; more are allowed for other uses.
func newTopicCreateCommand(load ConfigFunc) *cobra.Command {
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create topic (existing topics are left unchanged)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			name, _ := cmd.Flags().GetString("name")
			parts, _ := cmd.Flags().GetInt("partitions")
			if parts <= 0 {
				return errors.New("--partitions must be positive")
			}
			return withBackend(load, func(b *runtime.Backend, topic string) error {
				if name == "" {
					name = topic
				}
				if err := b.EnsureTopic(cmd.Context(), name, parts); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "topic %s ready (%s)\n", name, b.Name())
				return nil
			})
		},
	}
	createCmd.Flags().String("name", "", "Topic name (defaults to the configured store topic)")
	createCmd.Flags().Int("partitions", 1, "Partition count")
	return createCmd
}
