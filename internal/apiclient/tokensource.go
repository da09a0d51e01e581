package apiclient

import (
	"context"

	"golang.org/x/oauth2"
)

type storedTokenSource struct {
	ctx    context.Context
	client *Client
}

// Token returns the stored access token and refreshes it first when it is already expired
func (s storedTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.client.AccessToken(s.ctx)
	if err != nil {
		return nil, err
	}
	if token.Expired() {
		token, err = s.client.RefreshNow(s.ctx)
		if err != nil {
			return nil, err
		}
	}
	return &oauth2.Token{AccessToken: token.Value, TokenType: "Bearer", Expiry: token.ExpiresAt}, nil
}

// TokenSource exposes the session to code that builds its own oauth2 HTTP clients
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return storedTokenSource{ctx: ctx, client: c}
}
