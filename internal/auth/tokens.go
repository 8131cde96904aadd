// Package auth implements the wallet challenge/session exchange that gates
// write access to the relay. A wallet asks for a challenge, signs its nonce
// with the account key, and trades the signature for a session cookie.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	DefaultChallengeTTL = 5 * time.Minute
	DefaultSessionTTL   = 24 * time.Hour

	issuer = "hush-relay"
)

var (
	ErrInvalidToken = errors.New("invalid or expired token")
)

// Challenge is an issued, not-yet-verified login challenge.
type Challenge struct {
	WalletAddress string
	Nonce         string
	IssuedAt      time.Time
}

// Session identifies an authenticated wallet.
type Session struct {
	WalletAddress string
	IssuedAt      time.Time
}

// TokenIssuer signs and verifies challenge and session tokens (HS256).
type TokenIssuer struct {
	secret       []byte
	challengeTTL time.Duration
	sessionTTL   time.Duration
}

// NewTokenIssuer creates an issuer with the default TTLs.
func NewTokenIssuer(secret string) *TokenIssuer {
	return &TokenIssuer{
		secret:       []byte(secret),
		challengeTTL: DefaultChallengeTTL,
		sessionTTL:   DefaultSessionTTL,
	}
}

// IssueChallenge creates a signed challenge token for a wallet address.
func (i *TokenIssuer) IssueChallenge(walletAddress string) (token string, challenge *Challenge, err error) {
	now := time.Now()
	c := &Challenge{
		WalletAddress: strings.ToLower(strings.TrimSpace(walletAddress)),
		Nonce:         uuid.NewString(),
		IssuedAt:      now,
	}

	claims := jwt.MapClaims{
		"iss":   issuer,
		"sub":   c.WalletAddress,
		"nonce": c.Nonce,
		"typ":   "challenge",
		"iat":   now.Unix(),
		"exp":   now.Add(i.challengeTTL).Unix(),
	}
	token, err = jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", nil, err
	}
	return token, c, nil
}

// VerifyChallenge validates a challenge token and returns its contents.
func (i *TokenIssuer) VerifyChallenge(token string) (*Challenge, error) {
	claims, err := i.parse(token, "challenge")
	if err != nil {
		return nil, err
	}
	nonce, _ := claims["nonce"].(string)
	if nonce == "" {
		return nil, ErrInvalidToken
	}
	return &Challenge{
		WalletAddress: claims.subject(),
		Nonce:         nonce,
		IssuedAt:      claims.issuedAt(),
	}, nil
}

// IssueSession creates a session token after a verified challenge.
func (i *TokenIssuer) IssueSession(walletAddress string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": issuer,
		"sub": strings.ToLower(strings.TrimSpace(walletAddress)),
		"typ": "session",
		"iat": now.Unix(),
		"exp": now.Add(i.sessionTTL).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
}

// VerifySession validates a session token.
func (i *TokenIssuer) VerifySession(token string) (*Session, error) {
	claims, err := i.parse(token, "session")
	if err != nil {
		return nil, err
	}
	return &Session{
		WalletAddress: claims.subject(),
		IssuedAt:      claims.issuedAt(),
	}, nil
}

// ChallengeTTL returns the challenge lifetime, used to bound the nonce
// replay-guard entry in Redis.
func (i *TokenIssuer) ChallengeTTL() time.Duration {
	return i.challengeTTL
}

type parsedClaims jwt.MapClaims

func (i *TokenIssuer) parse(token, wantType string) (parsedClaims, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return i.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithExpirationRequired())
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, ErrInvalidToken
	}
	if typ, _ := claims["typ"].(string); typ != wantType {
		return nil, ErrInvalidToken
	}
	if sub, _ := claims["sub"].(string); sub == "" {
		return nil, ErrInvalidToken
	}
	return parsedClaims(claims), nil
}

func (c parsedClaims) subject() string {
	sub, _ := c["sub"].(string)
	return sub
}

func (c parsedClaims) issuedAt() time.Time {
	if iat, ok := c["iat"].(float64); ok {
		return time.Unix(int64(iat), 0)
	}
	return time.Time{}
}
