package cmd

import (
	"fmt"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/daap14/affconsole/internal/session"
)

func newWhoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user, profile and permissions",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := runtimeFrom(cmd.Context())

			st, err := rt.Store.WaitSettled(cmd.Context())
			if err != nil {
				return err
			}
			if !st.IsAuthenticated {
				pterm.Info.Println("Not signed in. Run affctl login.")
				return nil
			}

			pterm.DefaultSection.Println("Session")
			return pterm.DefaultTable.WithHasHeader().WithData(stateRows(st)).Render()
		},
	}
}

func stateRows(st session.State) pterm.TableData {
	rows := pterm.TableData{
		{"Field", "Value"},
		{"User ID", st.User.ID},
		{"Email", st.User.Email},
		{"Profile", st.ProfileStatus.String()},
	}

	if p := st.Profile; p != nil {
		name := strings.TrimSpace(p.FirstName + " " + p.LastName)
		rows = append(rows,
			[]string{"Name", orDash(name)},
			[]string{"Role", orDash(p.RoleName())},
		)
	}
	if o := st.Organization; o != nil {
		rows = append(rows, []string{"Organization", fmt.Sprintf("%s (#%d, %s)", o.Name, o.OrganizationID, o.Status)})
	}

	rows = append(rows,
		[]string{"Permissions", orDash(strings.Join(st.Permissions.Tokens(), ", "))},
		[]string{"Session expires", st.Session.ExpiresAt.Local().Format("2006-01-02 15:04:05")},
	)
	return rows
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
