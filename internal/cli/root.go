// Package cli holds the meraki-activity command tree.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/jeffbryner/meraki-activity/common/logging"
	"github.com/jeffbryner/meraki-activity/internal/config"
)

const serviceName = "meraki-activity"

// options is shared by every subcommand; PersistentPreRunE fills it in.
type options struct {
	cfgFile string
	output  string
	cfg     *config.Config
	logger  *logging.Logger
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   serviceName,
		Short: "Copy Meraki network event logs into a streaming sink",
		Long: `meraki-activity polls the Meraki dashboard event log for every network in an
organization and forwards new events to Kinesis Data Firehose, NATS JetStream
or OpenSearch. A stored watermark limits each run to events since the last
run that found any.`,
		Version:       "0.1.0",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(opts.cfgFile)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logging.NewWithWriter(
				cmd.ErrOrStderr(),
				logging.ParseLevel(cfg.Logging.Level),
				cfg.Logging.Format,
			).With(logging.Service(serviceName))
			logging.SetDefault(opts.logger)
			return nil
		},
	}

	root.PersistentFlags().StringVar(&opts.cfgFile, "config", "", "config file (default: ./config.yaml or /etc/meraki-activity/config.yaml)")

	root.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newLambdaCmd(opts),
		newConfigCmd(opts),
	)
	return root
}

// Execute runs the command tree against os.Args.
func Execute() error {
	return NewRootCmd().Execute()
}
