// Package cli is the thin command shell around the deployment orchestrator.
// An application hands it a stack name and a definition function; the shell
// exposes synth, diff, deploy and destroy over them.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/mason-iac/mason/internal/constraint"
	"github.com/mason-iac/mason/internal/core"
	"github.com/mason-iac/mason/internal/deploy"
	"github.com/mason-iac/mason/internal/logging"
)

// Exit codes surfaced to the process.
const (
	ExitSuccess          = 0
	ExitError            = 1
	ExitValidationFailed = 2
	ExitDeploymentFailed = 3
	ExitCancelled        = 4
)

// App is an application's stack definition.
type App struct {
	// StackName names the deployed stack.
	StackName string
	// Define assembles the application's resources into the builder.
	// It runs once per command invocation; tags and externals included.
	Define func(sb *core.StackBuilder) error
}

var (
	flagLogLevel  string
	flagLogFormat string
	flagRegion    string
	flagProfile   string
)

// Execute runs the CLI for the given app and returns the process exit code.
func Execute(app App) int {
	root := &cobra.Command{
		Use:           "mason",
		Short:         "Typed infrastructure as code for CloudFormation",
		Long:          "Mason assembles typed, validated resource graphs in Go and drives\nCloudFormation to deploy them.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(flagLogLevel, flagLogFormat)
		},
	}
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "log format (text, json)")
	root.PersistentFlags().StringVar(&flagRegion, "region", "", "AWS region override")
	root.PersistentFlags().StringVar(&flagProfile, "profile", "", "AWS shared config profile")

	root.AddCommand(newSynthCmd(app))
	root.AddCommand(newDiffCmd(app))
	root.AddCommand(newDeployCmd(app))
	root.AddCommand(newDestroyCmd(app))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return exitCodeFor(err)
	}
	return ExitSuccess
}

// exitCodeFor maps the two error families onto distinct exit codes.
func exitCodeFor(err error) int {
	var violations constraint.Violations
	var validationErr *constraint.ValidationError
	if errors.As(err, &violations) || errors.As(err, &validationErr) {
		return ExitValidationFailed
	}
	var depErr *deploy.Error
	if errors.As(err, &depErr) {
		if depErr.Kind == deploy.Cancelled {
			return ExitCancelled
		}
		return ExitDeploymentFailed
	}
	if errors.Is(err, context.Canceled) {
		return ExitCancelled
	}
	return ExitError
}

// defineStack runs the app's definition into a fresh builder.
func defineStack(app App) (*core.StackBuilder, error) {
	sb := core.NewStackBuilder()
	if err := app.Define(sb); err != nil {
		return nil, err
	}
	return sb, nil
}
