package client

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrijs2005/amoclient/internal/client/models"
	"github.com/dmitrijs2005/amoclient/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Credentials authorize outgoing requests and resolve the account identity.
type Credentials interface {
	// Identity returns the account the credentials belong to.
	Identity() (Account, error)

	// Apply authorizes req in place.
	Apply(req *http.Request)
}

// LegacyCredentials authenticate with USER_LOGIN/USER_HASH query arguments.
type LegacyCredentials struct {
	Domain    string
	AccountID int64
	Login     string
	Hash      string
}

func (c LegacyCredentials) Identity() (Account, error) {
	if c.Domain == "" || c.AccountID <= 0 {
		return Account{}, fmt.Errorf("domain and account id are required: %w", ErrInvalidCredentials)
	}
	if c.Login == "" || c.Hash == "" {
		return Account{}, fmt.Errorf("login and api hash are required: %w", ErrInvalidCredentials)
	}
	return Account{Domain: c.Domain, ID: c.AccountID}, nil
}

func (c LegacyCredentials) Apply(req *http.Request) {
	q := req.URL.Query()
	q.Set(common.LegacyLoginParam, c.Login)
	q.Set(common.LegacyHashParam, c.Hash)
	req.URL.RawQuery = q.Encode()
}

// OAuthCredentials send a bearer access token. The account id is read from
// the token's account_id claim; the signature is not verified locally.
type OAuthCredentials struct {
	Domain      string
	AccessToken string

	// Now overrides the clock used for the expiry check.
	Now func() time.Time
}

type oauthClaims struct {
	jwt.RegisteredClaims
	AccountID any `json:"account_id"`
}

func (c OAuthCredentials) Identity() (Account, error) {
	if c.Domain == "" || strings.TrimSpace(c.AccessToken) == "" {
		return Account{}, fmt.Errorf("domain and access token are required: %w", ErrInvalidCredentials)
	}

	claims := &oauthClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(c.AccessToken, claims); err != nil {
		return Account{}, errors.Join(common.ErrInvalidToken, err)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	if claims.ExpiresAt != nil && !now().Before(claims.ExpiresAt.Time) {
		return Account{}, common.ErrTokenExpired
	}

	id, ok := models.ToInt64(claims.AccountID)
	if !ok || id <= 0 {
		return Account{}, fmt.Errorf("account_id claim missing: %w", common.ErrInvalidToken)
	}
	return Account{Domain: c.Domain, ID: id}, nil
}

func (c OAuthCredentials) Apply(req *http.Request) {
	req.Header.Set(common.AuthorizationHeaderName, "Bearer "+c.AccessToken)
}
