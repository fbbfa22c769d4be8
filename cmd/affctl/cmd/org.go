package cmd

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/daap14/affconsole/internal/session"
)

func newOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "org",
		Aliases: []string{"organization"},
		Short:   "Inspect organizations",
	}
	cmd.AddCommand(newOrgShowCmd())
	return cmd
}

func newOrgShowCmd() *cobra.Command {
	var extra bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt := runtimeFrom(cmd.Context())

			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil || id <= 0 {
				return fmt.Errorf("invalid organization id %q", args[0])
			}

			var opts []session.FetchOption
			if extra {
				opts = append(opts, session.WithExtra())
			}
			org := rt.Store.FetchOrganization(cmd.Context(), id, opts...)
			if org == nil {
				return fmt.Errorf("organization %d could not be loaded", id)
			}

			rows := pterm.TableData{
				{"Field", "Value"},
				{"ID", strconv.FormatInt(org.OrganizationID, 10)},
				{"Name", org.Name},
				{"Status", org.Status},
				{"Type", orDash(org.Type)},
			}
			keys := make([]string, 0, len(org.ExtraInfo))
			for k := range org.ExtraInfo {
				keys = append(keys, k)
			}
			slices.Sort(keys)
			for _, k := range keys {
				v, _ := json.Marshal(org.ExtraInfo[k])
				rows = append(rows, []string{"extra." + k, string(v)})
			}

			pterm.DefaultSection.Println(org.Name)
			return pterm.DefaultTable.WithHasHeader().WithData(rows).Render()
		},
	}

	cmd.Flags().BoolVar(&extra, "extra", false, "Include the organization's extra info")
	return cmd
}
