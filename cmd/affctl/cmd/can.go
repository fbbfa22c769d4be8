package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

func newCanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "can <permission>",
		Short: "Check whether the signed-in user holds a permission",
		Example: `  affctl can manage_campaigns
  affctl can view_reports && echo allowed`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := runtimeFrom(cmd.Context())

			if _, err := rt.Store.WaitSettled(cmd.Context()); err != nil {
				return err
			}
			if !rt.Store.HasPermission(args[0]) {
				return fmt.Errorf("missing permission %s", args[0])
			}
			pterm.Success.Printfln("granted: %s", args[0])
			return nil
		},
	}
}
