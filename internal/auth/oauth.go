package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"

	"github.com/wonny/sheetalert/internal/contracts"
	"github.com/wonny/sheetalert/pkg/config"
	"github.com/wonny/sheetalert/pkg/logger"
)

// Scopes requested during consent
var Scopes = []string{
	"https://www.googleapis.com/auth/spreadsheets",
	"https://www.googleapis.com/auth/userinfo.email",
	"https://www.googleapis.com/auth/userinfo.profile",
}

// Grant is the outcome of a completed consent
type Grant struct {
	UserID      string
	Email       string
	Credentials contracts.Credentials
	// Refreshable is false when the provider did not issue a refresh token
	Refreshable bool
}

// OAuth runs the authorization-code flow against Google and turns stored
// credentials back into authorized HTTP clients.
// ⭐ SSOT: OAuth 토큰 처리는 여기서만
type OAuth struct {
	config      *oauth2.Config
	apiEndpoint string // userinfo API base URL override
	logger      *logger.Logger
}

// NewOAuth creates the OAuth flow from config
func NewOAuth(cfg *config.Config, log *logger.Logger) *OAuth {
	return &OAuth{
		config: &oauth2.Config{
			ClientID:     cfg.Google.ClientID,
			ClientSecret: cfg.Google.ClientSecret,
			RedirectURL:  cfg.URL(cfg.Google.RedirectPath),
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
		logger: log,
	}
}

// WithEndpoints overrides the provider URLs. apiEndpoint is the base URL
// the userinfo API is resolved against.
func (o *OAuth) WithEndpoints(authURL, tokenURL, apiEndpoint string) *OAuth {
	o.config.Endpoint = oauth2.Endpoint{
		AuthURL:   authURL,
		TokenURL:  tokenURL,
		AuthStyle: oauth2.AuthStyleInParams,
	}
	o.apiEndpoint = apiEndpoint
	return o
}

// AuthCodeURL returns the consent page URL. Offline access with forced
// approval makes the provider issue a refresh token every time.
func (o *OAuth) AuthCodeURL(state string) string {
	return o.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for credentials and identifies the user
func (o *OAuth) Exchange(ctx context.Context, code string) (*Grant, error) {
	tok, err := o.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	info, err := o.userInfo(ctx, tok)
	if err != nil {
		return nil, err
	}

	creds, err := json.Marshal(tok)
	if err != nil {
		return nil, fmt.Errorf("encode token: %w", err)
	}

	o.logger.WithFields(map[string]interface{}{
		"user_id":     info.Id,
		"refreshable": tok.RefreshToken != "",
	}).Info("OAuth grant received")

	return &Grant{
		UserID:      info.Id,
		Email:       info.Email,
		Credentials: creds,
		Refreshable: tok.RefreshToken != "",
	}, nil
}

// HTTPClient returns a client that authorizes requests with the stored
// token, refreshing it when expired.
func (o *OAuth) HTTPClient(ctx context.Context, creds contracts.Credentials) (*http.Client, error) {
	var tok oauth2.Token
	if err := json.Unmarshal(creds, &tok); err != nil {
		return nil, fmt.Errorf("decode token: %w", err)
	}
	return o.config.Client(ctx, &tok), nil
}

func (o *OAuth) userInfo(ctx context.Context, tok *oauth2.Token) (*oauth2api.Userinfo, error) {
	opts := []option.ClientOption{option.WithHTTPClient(o.config.Client(ctx, tok))}
	if o.apiEndpoint != "" {
		opts = append(opts, option.WithEndpoint(o.apiEndpoint))
	}

	svc, err := oauth2api.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create userinfo service: %w", err)
	}

	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("userinfo request failed: %w", err)
	}
	if info.Id == "" {
		return nil, fmt.Errorf("userinfo: missing user id")
	}
	return info, nil
}
