package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonandersen/tokenctl/internal/tui"
)

// uiOptions holds dependencies for the ui command.
type uiOptions struct {
	source tui.TokenSource
	run    func(source tui.TokenSource, opts ...tui.Option) error
}

func newUICmd(opts *uiOptions) *cobra.Command {
	var autoRenew bool

	cmd := &cobra.Command{
		Use:   "ui",
		Short: "Watch the cached token in an interactive view",
		Long: `Open a live view of the cached access token: its status, the time left
before it expires and a log of renewals.

Examples:
  tokenctl ui
  tokenctl ui --auto-renew    # Renew the token as soon as it turns stale`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.run(opts.source, tui.WithAutoRenew(autoRenew)); err != nil {
				return fmt.Errorf("ui failed: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&autoRenew, "auto-renew", false, "Renew stale tokens automatically")

	return cmd
}

func init() {
	opts := &uiOptions{run: tui.Run}

	uiCmd := newUICmd(opts)
	uiCmd.PreRunE = func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		opts.source = a.Coordinator
		return nil
	}
	rootCmd.AddCommand(uiCmd)
}
