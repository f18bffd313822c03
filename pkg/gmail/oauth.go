package gmail

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
)

// Scopes requested on the consent screen
var Scopes = []string{
	gmail.GmailReadonlyScope,
	gmail.GmailModifyScope,
}

// OAuth wraps the Google OAuth2 configuration for the Gmail connection flow
type OAuth struct {
	config     *oauth2.Config
	httpClient *http.Client
}

func NewOAuth(clientID, clientSecret, redirectURI string) *OAuth {
	return NewOAuthWithEndpoint(clientID, clientSecret, redirectURI, google.Endpoint, nil)
}

// NewOAuthWithEndpoint is NewOAuth against a custom authorization server
func NewOAuthWithEndpoint(clientID, clientSecret, redirectURI string, endpoint oauth2.Endpoint, httpClient *http.Client) *OAuth {
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Endpoint:     endpoint,
			Scopes:       Scopes,
		},
		httpClient: httpClient,
	}
}

// AuthCodeURL builds the consent URL. Offline access with a forced consent
// prompt makes Google issue a refresh token on every connect.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
	)
}

// Exchange trades an authorization code for a token set
func (o *OAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := o.config.Exchange(o.context(ctx), code)
	if err != nil {
		return nil, fmt.Errorf("token exchange failed: %w", err)
	}
	return token, nil
}

// RefreshToken performs the refresh_token grant. The returned token carries
// a new refresh token only when Google rotated it.
func (o *OAuth) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, errors.New("no refresh token stored")
	}

	src := o.config.TokenSource(o.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	token, err := src.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}
	if token.RefreshToken == refreshToken {
		token.RefreshToken = ""
	}
	return token, nil
}

func (o *OAuth) context(ctx context.Context) context.Context {
	if o.httpClient != nil {
		return context.WithValue(ctx, oauth2.HTTPClient, o.httpClient)
	}
	return ctx
}
