package session

import (
	"context"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"quicktasker/gig-service/internal/apperr"
	"quicktasker/gig-service/internal/model"
)

// Claims is the payload of an access token issued by the auth provider.
type Claims struct {
	Email        string       `json:"email"`
	Phone        string       `json:"phone"`
	UserMetadata UserMetadata `json:"user_metadata"`
	jwt.RegisteredClaims
}

// UserMetadata holds the profile fields the provider copies into tokens.
type UserMetadata struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// JWTAuthenticator verifies HS256 access tokens with a shared secret.
type JWTAuthenticator struct {
	secret []byte
}

// NewJWTAuthenticator returns an Authenticator for tokens signed with secret.
func NewJWTAuthenticator(secret string) *JWTAuthenticator {
	return &JWTAuthenticator{secret: []byte(secret)}
}

// CurrentUser verifies token and returns the identity it carries. Every
// failure wraps apperr.ErrUnauthenticated.
func (a *JWTAuthenticator) CurrentUser(_ context.Context, token string) (model.Identity, error) {
	if token == "" {
		return model.Identity{}, apperr.ErrUnauthenticated
	}

	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil || !parsed.Valid {
		return model.Identity{}, fmt.Errorf("%w: %v", apperr.ErrUnauthenticated, err)
	}
	if claims.Subject == "" {
		return model.Identity{}, fmt.Errorf("%w: token has no subject", apperr.ErrUnauthenticated)
	}

	return model.Identity{
		ID:          claims.Subject,
		Email:       claims.Email,
		Phone:       claims.Phone,
		DisplayName: claims.UserMetadata.FullName,
		AvatarURL:   claims.UserMetadata.AvatarURL,
	}, nil
}
