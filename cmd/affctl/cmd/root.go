package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/daap14/affconsole/internal/config"
	"github.com/daap14/affconsole/internal/logging"
	"github.com/daap14/affconsole/internal/notify"
)

// errReported marks failures the session store has already shown to the user.
var errReported = errors.New("already reported")

func reported(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %w", errReported, err)
}

// NewRootCmd builds the affctl command tree. n receives the session store's
// notifications; nil prints them to the terminal.
//
// The returned func releases whatever the command opened. Call it once
// Execute returns, whether or not the command failed.
func NewRootCmd(n notify.Notifier) (*cobra.Command, func()) {
	root, a := newRootCmd(n)
	return root, a.close
}

// app holds what a single invocation opened.
type app struct {
	rt *Runtime
}

func (a *app) close() {
	if a.rt != nil {
		a.rt.Store.Close()
	}
}

func newRootCmd(n notify.Notifier) (*cobra.Command, *app) {
	if n == nil {
		n = notify.Terminal{}
	}

	a := &app{}
	root := &cobra.Command{
		Use:   "affctl",
		Short: "Affiliate console CLI",
		Long: `affctl signs you in to the affiliate console and shows the profile,
organization and permissions the console resolves for your session.

Configuration is read from AFF_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadClient()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			logging.Setup(os.Stderr, cfg.LogLevel)

			rt, err := newRuntime(cmd.Context(), cfg, n)
			if err != nil {
				return err
			}
			a.rt = rt
			cmd.SetContext(injectRuntime(cmd.Context(), rt))
			return nil
		},
	}

	root.AddCommand(
		newLoginCmd(),
		newSignupCmd(),
		newLogoutCmd(),
		newWhoamiCmd(),
		newProfileCmd(),
		newOrgCmd(),
		newCanCmd(),
	)
	return root, a
}

// Execute runs the root command
func Execute() {
	root, closeRuntime := NewRootCmd(nil)
	err := root.Execute()
	closeRuntime()
	if err != nil {
		if !errors.Is(err, errReported) {
			pterm.Error.Println(err)
		}
		os.Exit(1)
	}
}
