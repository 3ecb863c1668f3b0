package iam

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sirius/pkg/common"
	"sirius/pkg/config"
	apperrors "sirius/pkg/errors"
	"sirius/pkg/logger"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/microsoft"
)

const (
	// DefaultAuthority is the Microsoft identity platform root
	DefaultAuthority = "https://login.microsoftonline.com"
	DefaultScope     = "User.Read"
)

// AuthenticationFlow is a pending device-code sign-in
type AuthenticationFlow struct {
	UserCode        string
	DeviceCode      string
	VerificationURI string
	Message         string
	ExpiryTimestamp time.Time

	response *oauth2.DeviceAuthResponse
}

// EntraID signs users in to one Microsoft Entra ID application as a public client
type EntraID struct {
	TenantID string
	ClientID string

	authority string
	logger    *zap.Logger
}

// EntraOption configures an EntraID or Validator
type EntraOption func(*EntraID)

// WithAuthority replaces DefaultAuthority
func WithAuthority(authority string) EntraOption {
	return func(e *EntraID) { e.authority = strings.TrimRight(authority, "/") }
}

func NewEntraID(tenantID, clientID string, opts ...EntraOption) *EntraID {
	e := &EntraID{
		TenantID:  tenantID,
		ClientID:  clientID,
		authority: DefaultAuthority,
		logger:    logger.Named("iam"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultEntraID reads ENTRA_ID_TENANT_ID and ENTRA_ID_CLIENT_ID
func DefaultEntraID(opts ...EntraOption) (*EntraID, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	tenantID, err := config.Require("ENTRA_ID_TENANT_ID", cfg.EntraIDTenantID)
	if err != nil {
		return nil, err
	}
	clientID, err := config.Require("ENTRA_ID_CLIENT_ID", cfg.EntraIDClientID)
	if err != nil {
		return nil, err
	}
	return NewEntraID(tenantID, clientID, opts...), nil
}

func (e *EntraID) endpoint() oauth2.Endpoint {
	endpoint := microsoft.AzureADEndpoint(e.TenantID)
	if e.authority != DefaultAuthority {
		base := e.authority + "/" + e.TenantID + "/oauth2/v2.0"
		endpoint = oauth2.Endpoint{
			AuthURL:       base + "/authorize",
			TokenURL:      base + "/token",
			DeviceAuthURL: base + "/devicecode",
		}
	}
	// public clients have no secret, so the client ID travels in the form body
	endpoint.AuthStyle = oauth2.AuthStyleInParams
	return endpoint
}

func (e *EntraID) config(redirectURL string, scopes ...string) *oauth2.Config {
	if len(scopes) == 0 {
		scopes = []string{DefaultScope}
	}
	return &oauth2.Config{
		ClientID:    e.ClientID,
		Endpoint:    e.endpoint(),
		RedirectURL: redirectURL,
		Scopes:      scopes,
	}
}

type loginOptions struct {
	scope string
	state string
}

// LoginOption customises GetLoginURL
type LoginOption func(*loginOptions)

// WithScope replaces DefaultScope. Multiple scopes are space separated.
func WithScope(scope string) LoginOption {
	return func(o *loginOptions) { o.scope = scope }
}

// WithState sets the state echoed back to the redirect URL
func WithState(state string) LoginOption {
	return func(o *loginOptions) { o.state = state }
}

// GetLoginURL returns the authorization-code sign-in URL. The state defaults to a new unique ID.
func (e *EntraID) GetLoginURL(redirectURL string, opts ...LoginOption) string {
	o := loginOptions{scope: DefaultScope}
	for _, opt := range opts {
		opt(&o)
	}
	if o.state == "" {
		o.state = common.GetUniqueID(16)
	}

	return e.config(redirectURL, strings.Fields(o.scope)...).
		AuthCodeURL(o.state, oauth2.SetAuthURLParam("response_mode", "query"))
}

// GetAccessToken redeems an authorization code
func (e *EntraID) GetAccessToken(ctx context.Context, code, redirectURL string) (string, error) {
	token, err := e.config(redirectURL).Exchange(ctx, code)
	if err != nil {
		return "", tokenError(err)
	}
	return token.AccessToken, nil
}

// StartDeviceFlow begins a device-code sign-in for the default scope
func (e *EntraID) StartDeviceFlow(ctx context.Context) (*AuthenticationFlow, error) {
	resp, err := e.config("").DeviceAuth(ctx)
	if err != nil {
		return nil, tokenError(err)
	}

	return &AuthenticationFlow{
		UserCode:        resp.UserCode,
		DeviceCode:      resp.DeviceCode,
		VerificationURI: resp.VerificationURI,
		Message: fmt.Sprintf("To sign in, use a web browser to open the page %s and enter the code %s to authenticate.",
			resp.VerificationURI, resp.UserCode),
		ExpiryTimestamp: resp.Expiry,
		response:        resp,
	}, nil
}

// PollDeviceFlow waits until the user completes flow, it expires or ctx ends
func (e *EntraID) PollDeviceFlow(ctx context.Context, flow *AuthenticationFlow) (string, error) {
	if flow == nil || flow.response == nil {
		return "", apperrors.NewSDKClientError("device flow was not started with StartDeviceFlow", nil)
	}

	token, err := e.config("").DeviceAccessToken(ctx, flow.response)
	if err != nil {
		if ctx.Err() != nil {
			return "", apperrors.NewContextCancelled("device flow", ctx.Err())
		}
		return "", tokenError(err)
	}

	e.logger.Info("Device flow completed", zap.String("tenant_id", e.TenantID))
	return token.AccessToken, nil
}

// tokenError surfaces the identity platform's error_description
func tokenError(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		message := retrieveErr.ErrorDescription
		if message == "" {
			message = retrieveErr.ErrorCode
		}
		if message == "" {
			message = strings.TrimSpace(string(retrieveErr.Body))
		}
		return apperrors.NewClientSideError(message, err)
	}
	return fmt.Errorf("token request failed: %w", err)
}
