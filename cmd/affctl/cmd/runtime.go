package cmd

import (
	"context"
	"fmt"
	"net/http"

	"github.com/daap14/affconsole/internal/config"
	"github.com/daap14/affconsole/internal/identity"
	"github.com/daap14/affconsole/internal/notify"
	"github.com/daap14/affconsole/internal/permission"
	"github.com/daap14/affconsole/internal/profileapi"
	"github.com/daap14/affconsole/internal/session"
)

// Demo account registered with the fake identity provider.
const (
	DemoEmail    = "demo@affconsole.local"
	DemoPassword = "demo-password"
)

type contextKey string

const runtimeKey contextKey = "affctl-runtime"

// Runtime is what every subcommand works with: one identity provider and
// one session store per process.
type Runtime struct {
	Config   *config.ClientConfig
	Identity identity.Provider
	Store    *session.Store
}

func newRuntime(ctx context.Context, cfg *config.ClientConfig, n notify.Notifier) (*Runtime, error) {
	path := cfg.SessionFile
	if path == "" {
		var err error
		if path, err = identity.DefaultSessionPath(); err != nil {
			return nil, err
		}
	}
	tokens, err := identity.NewFileStore(path)
	if err != nil {
		return nil, fmt.Errorf("opening session store: %w", err)
	}

	provider, err := newProvider(cfg, tokens)
	if err != nil {
		return nil, err
	}

	policy, err := permission.LoadFile(cfg.PermissionsFile)
	if err != nil {
		return nil, err
	}

	profiles := profileapi.NewClient(cfg.ProfileAPIURL,
		identity.NewTokenSource(ctx, provider),
		profileapi.WithTimeout(cfg.HTTPTimeout),
	)
	store := session.New(provider, profiles,
		session.WithNotifier(n),
		session.WithPolicy(policy),
	)
	if err := store.Start(ctx); err != nil {
		return nil, fmt.Errorf("starting session: %w", err)
	}

	return &Runtime{Config: cfg, Identity: provider, Store: store}, nil
}

func newProvider(cfg *config.ClientConfig, tokens identity.TokenStore) (identity.Provider, error) {
	if cfg.AuthMode == config.AuthModeFake {
		fake := identity.NewFake(
			identity.WithSigningSecret(cfg.FakeSecret),
			identity.WithFakeTokenStore(tokens),
		)
		if _, err := fake.AddUser(DemoEmail, DemoPassword, identity.Metadata{FirstName: "Demo", LastName: "User"}); err != nil {
			return nil, fmt.Errorf("seeding demo account: %w", err)
		}
		return fake, nil
	}

	return identity.NewHTTPProvider(cfg.IdentityURL, cfg.IdentityAPIKey,
		identity.WithTokenStore(tokens),
		identity.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
	), nil
}

// injectRuntime adds rt to the command context.
func injectRuntime(ctx context.Context, rt *Runtime) context.Context {
	return context.WithValue(ctx, runtimeKey, rt)
}

// runtimeFrom retrieves the runtime from the command context or panics.
// Only the root command's PersistentPreRunE injects it.
func runtimeFrom(ctx context.Context) *Runtime {
	rt, ok := ctx.Value(runtimeKey).(*Runtime)
	if !ok {
		panic("affctl: runtime not found in context")
	}
	return rt
}
