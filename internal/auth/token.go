package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"ms-passes/internal/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrMissingToken = errors.New("authorization token is missing")
	ErrInvalidToken = errors.New("invalid token")
	ErrRevokedToken = errors.New("token has been revoked")
	ErrUnknownUser  = errors.New("user no longer exists")
)

// Claims is the payload of a session token. The subject is the user ID.
type Claims struct {
	Username string      `json:"username"`
	Role     models.Role `json:"role"`
	jwt.RegisteredClaims
}

// TokenIssuer signs and verifies HS256 session tokens.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration) *TokenIssuer {
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Issue returns a signed token for the user and the principal it stands for.
func (t *TokenIssuer) Issue(user *models.User) (string, Principal, error) {
	now := t.now()
	claims := Claims{
		Username: user.Username,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   strconv.FormatInt(user.ID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", Principal{}, fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, claims.principal(), nil
}

// Parse verifies the signature and expiry of a token.
func (t *TokenIssuer) Parse(tokenString string) (Principal, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return t.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithTimeFunc(t.now))
	if err != nil {
		return Principal{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if !claims.Role.Valid() || claims.ID == "" {
		return Principal{}, fmt.Errorf("%w: missing role or token id", ErrInvalidToken)
	}
	if _, err := strconv.ParseInt(claims.Subject, 10, 64); err != nil {
		return Principal{}, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}
	return claims.principal(), nil
}

func (c Claims) principal() Principal {
	userID, _ := strconv.ParseInt(c.Subject, 10, 64)
	p := Principal{
		UserID:   userID,
		Username: c.Username,
		Role:     c.Role,
		TokenID:  c.ID,
	}
	if c.ExpiresAt != nil {
		p.ExpiresAt = c.ExpiresAt.Time
	}
	return p
}

// ExtractTokenFromRequest takes the token from a "Bearer" Authorization header,
// falling back to the session cookie.
func ExtractTokenFromRequest(r *http.Request, cookieName string) (string, error) {
	if authHeader := r.Header.Get("Authorization"); authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			return "", fmt.Errorf("%w: authorization header format must be 'Bearer {token}'", ErrInvalidToken)
		}
		return parts[1], nil
	}

	cookie, err := r.Cookie(cookieName)
	if err != nil || cookie.Value == "" {
		return "", ErrMissingToken
	}
	return cookie.Value, nil
}
