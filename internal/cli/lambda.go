package cli

import (
	"context"
	"encoding/json"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"github.com/jeffbryner/meraki-activity/internal/poller"
	"github.com/jeffbryner/meraki-activity/internal/scheduler"
)

func newLambdaCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "lambda",
		Short: "Serve as an AWS Lambda function, polling once per invocation",
		Long: `Starts the Lambda runtime loop. Clients are built once at cold start and
reused across invocations. The invocation payload is ignored, so any
scheduled-event trigger works.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts.cfg, opts.logger)
			if err != nil {
				return err
			}
			defer a.Close()

			lambda.Start(handler(a.poller))
			return nil
		},
	}
}

// handler adapts a poll run to the Lambda handler signature.
func handler(p scheduler.Runner) func(ctx context.Context, _ json.RawMessage) (*poller.RunSummary, error) {
	return func(ctx context.Context, _ json.RawMessage) (*poller.RunSummary, error) {
		return p.Run(ctx)
	}
}
