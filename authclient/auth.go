package authclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	portalAuth "github.com/MrEthical07/portalAuth"
	"github.com/MrEthical07/portalAuth/session"
)

// Endpoint paths relative to the primary API base URL.
const (
	PathLogin   = "/auth/login"
	PathLogout  = "/auth/logout"
	PathRefresh = "/auth/refresh"
	PathProfile = "/auth/profile"
)

// Auth implements portalAuth.Authenticator against the primary API.
type Auth struct {
	client *Client
}

var _ portalAuth.Authenticator = (*Auth)(nil)

// NewAuth wraps client.
func NewAuth(client *Client) *Auth {
	return &Auth{client: client}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenAnswer struct {
	AccessToken  string `json:"access_token"`
	Token        string `json:"token"`
	RefreshToken string `json:"refresh_token"`
}

func (t tokenAnswer) access() string {
	if t.AccessToken != "" {
		return t.AccessToken
	}
	return t.Token
}

type loginAnswer struct {
	tokenAnswer
	User        *session.User        `json:"user"`
	UserInfo    *session.User        `json:"user_info"`
	Permissions []string             `json:"permissions"`
	Roles       []session.RoleRecord `json:"roles"`
}

// Login posts the credentials. 401 and 403 answers become
// ErrInvalidCredentials, as do other 4xx rejections.
func (a *Auth) Login(ctx context.Context, creds portalAuth.Credentials) (portalAuth.LoginResponse, error) {
	var ans loginAnswer
	err := a.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathLogin,
		Body:   loginRequest{Username: creds.Username, Password: creds.Password},
	}, &ans)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden || IsRejected(err)) {
			return portalAuth.LoginResponse{}, fmt.Errorf("%w: %w", portalAuth.ErrInvalidCredentials, apiErr)
		}
		return portalAuth.LoginResponse{}, err
	}

	user := ans.User
	if user == nil {
		user = ans.UserInfo
	}
	if user == nil {
		return portalAuth.LoginResponse{}, fmt.Errorf("%w: login answer without user", portalAuth.ErrMalformedResponse)
	}
	return portalAuth.LoginResponse{
		Token:        ans.access(),
		RefreshToken: ans.RefreshToken,
		User:         *user,
		Permissions:  ans.Permissions,
		Roles:        ans.Roles,
	}, nil
}

// Logout tells the primary API the session is over.
func (a *Auth) Logout(ctx context.Context, token string) error {
	return a.client.Do(ctx, Request{Method: http.MethodPost, Path: PathLogout, Token: token}, nil)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token,omitempty"`
}

// Refresh exchanges the token pair for a new one.
func (a *Auth) Refresh(ctx context.Context, token, refreshToken string) (portalAuth.RefreshResult, error) {
	var ans tokenAnswer
	err := a.client.Do(ctx, Request{
		Method: http.MethodPost,
		Path:   PathRefresh,
		Token:  token,
		Body:   refreshRequest{RefreshToken: refreshToken},
	}, &ans)
	if err != nil {
		return portalAuth.RefreshResult{}, err
	}
	return portalAuth.RefreshResult{Token: ans.access(), RefreshToken: ans.RefreshToken}, nil
}

// Profile loads the current user.
func (a *Auth) Profile(ctx context.Context, token string) (session.User, error) {
	var user session.User
	if err := a.client.Do(ctx, Request{Method: http.MethodGet, Path: PathProfile, Token: token}, &user); err != nil {
		return session.User{}, err
	}
	return user, nil
}
