package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mason-iac/mason/internal/synth"
)

func newSynthCmd(app App) *cobra.Command {
	return &cobra.Command{
		Use:   "synth",
		Short: "Assemble the stack and print its template",
		RunE: func(cmd *cobra.Command, args []string) error {
			sb, err := defineStack(app)
			if err != nil {
				return err
			}
			stack, err := sb.Build(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(synth.Synth(stack).CanonicalJSON()))
			return nil
		},
	}
}
