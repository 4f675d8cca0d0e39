// Package identity adapts bearer tokens from the surrounding platform into
// the opaque user identifiers the reconciliation engine consumes. Signature
// verification of electronic-signature actions happens upstream; this adapter
// only resolves who is acting.
package identity

import (
	"github.com/golang-jwt/jwt/v5"

	id "veridata/pkg/domain"
	dErrors "veridata/pkg/domain-errors"
)

// Claims carries the subset of token claims this engine reads.
type Claims struct {
	UserID string `json:"user_id"`
	jwt.RegisteredClaims
}

// Provider resolves acting-user identity from platform-issued HS256 tokens.
type Provider struct {
	signingKey []byte
}

func NewProvider(signingKey string) *Provider {
	return &Provider{signingKey: []byte(signingKey)}
}

// CurrentUser extracts the acting user's ID from a bearer token.
func (p *Provider) CurrentUser(tokenString string) (id.UserID, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenUnverifiable
		}
		return p.signingKey, nil
	})
	if err != nil {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeAuthorizationDenied, "invalid bearer token")
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return id.UserID{}, dErrors.New(dErrors.CodeAuthorizationDenied, "invalid bearer token")
	}

	subject := claims.UserID
	if subject == "" {
		subject = claims.Subject
	}
	userID, err := id.ParseUserID(subject)
	if err != nil {
		return id.UserID{}, dErrors.Wrap(err, dErrors.CodeAuthorizationDenied, "token carries no usable user id")
	}
	return userID, nil
}
