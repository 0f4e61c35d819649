package client

import (
	"github.com/spf13/cobra"

	cfgpkg "github.com/rzbill/logkv/internal/config"
)

// ConfigFunc resolves the configuration a command runs against, typically
// from the --config flag and LOGKV_* variables.
type ConfigFunc func() (cfgpkg.Config, error)

// NewRoot constructs a root Cobra command for the logkv client.
// It registers the log and topic command groups.
func NewRoot(load ConfigFunc) *cobra.Command {
	root := &cobra.Command{
		Use:   "logkv",
		Short: "logkv client commands",
	}
	root.AddCommand(NewLogCommand(load))
	root.AddCommand(NewTopicCommand(load))
	return root
}
