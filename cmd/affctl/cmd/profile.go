package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"github.com/daap14/affconsole/internal/session"
)

func newProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Manage your business profile",
	}
	cmd.AddCommand(newProfileUpdateCmd())
	return cmd
}

func newProfileUpdateCmd() *cobra.Command {
	var firstName, lastName string

	cmd := &cobra.Command{
		Use:   "update",
		Short: "Change your first or last name",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := runtimeFrom(cmd.Context())

			var update session.ProfileUpdate
			if cmd.Flags().Changed("first-name") {
				update.FirstName = &firstName
			}
			if cmd.Flags().Changed("last-name") {
				update.LastName = &lastName
			}
			if update.FirstName == nil && update.LastName == nil {
				return errors.New("nothing to update: pass --first-name or --last-name")
			}

			// The initial profile load must land before the update reads it.
			if _, err := rt.Store.WaitSettled(cmd.Context()); err != nil {
				return err
			}
			return reported(rt.Store.UpdateProfile(cmd.Context(), update))
		},
	}

	cmd.Flags().StringVar(&firstName, "first-name", "", "New first name")
	cmd.Flags().StringVar(&lastName, "last-name", "", "New last name")
	return cmd
}
