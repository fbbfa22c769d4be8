package cmd

import (
	"fmt"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/daap14/affconsole/internal/session"
)

func newLoginCmd() *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := runtimeFrom(cmd.Context())

			pw, err := promptPassword(password)
			if err != nil {
				return err
			}
			if err := rt.Store.SignIn(cmd.Context(), email, pw); err != nil {
				return reported(err)
			}
			st, err := rt.Store.WaitSettled(cmd.Context())
			if err != nil {
				return err
			}
			if st.Profile == nil {
				pterm.Warning.Println("Signed in without a business profile")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newSignupCmd() *cobra.Command {
	var (
		in       session.SignUpInput
		orgID    int64
		password string
	)

	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account and its business profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := runtimeFrom(cmd.Context())

			pw, err := promptPassword(password)
			if err != nil {
				return err
			}
			in.Password = pw
			if cmd.Flags().Changed("organization-id") {
				if orgID <= 0 {
					return fmt.Errorf("--organization-id must be positive")
				}
				in.OrganizationID = &orgID
			}

			user, err := rt.Store.SignUp(cmd.Context(), in)
			if err != nil {
				return reported(err)
			}
			if st := rt.Store.State(); !st.IsAuthenticated {
				pterm.Info.Printfln("Account %s created; confirm your email, then run affctl login", user.Email)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&in.Email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (prompted when omitted)")
	cmd.Flags().StringVar(&in.FirstName, "first-name", "", "First name")
	cmd.Flags().StringVar(&in.LastName, "last-name", "", "Last name")
	cmd.Flags().Int64Var(&orgID, "organization-id", 0, "Organization to join")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := runtimeFrom(cmd.Context())
			if !rt.Store.State().IsAuthenticated {
				pterm.Info.Println("Not signed in")
				return nil
			}
			if err := rt.Store.SignOut(cmd.Context()); err != nil {
				return reported(err)
			}
			return nil
		},
	}
}

func promptPassword(flag string) (string, error) {
	if flag != "" {
		return flag, nil
	}
	pw, err := pterm.DefaultInteractiveTextInput.WithMask("*").Show("Password")
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return pw, nil
}
