package identity

import (
	"context"

	"golang.org/x/oauth2"
)

type providerTokenSource struct {
	ctx      context.Context
	provider Provider
}

// NewTokenSource returns an oauth2.TokenSource that always yields the
// provider's current access token. Each call goes through GetSession, so
// expired sessions are refreshed first.
func NewTokenSource(ctx context.Context, p Provider) oauth2.TokenSource {
	if ctx == nil {
		ctx = context.Background()
	}
	return &providerTokenSource{ctx: ctx, provider: p}
}

func (s *providerTokenSource) Token() (*oauth2.Token, error) {
	session, err := s.provider.GetSession(s.ctx)
	if err != nil {
		return nil, err
	}
	if session == nil || session.AccessToken == "" {
		return nil, ErrNoSession
	}
	return session.Token(), nil
}
