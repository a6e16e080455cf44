package handler

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

const (
	authHeaderKey = "Authorization"
	bearerPrefix  = "Bearer "
	claimsKey     = "jwt_claims"
)

var (
	ErrMissingToken = errors.New("missing bearer token")
	ErrInvalidToken = errors.New("invalid token")
	ErrForbidden    = errors.New("admin role required")
)

// Claims carries the caller identity. Subject is the actor id recorded on
// ledger entries.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role"`
}

// Authenticator validates HS256 bearer tokens issued by the identity
// provider and decides whether a caller is an administrator.
type Authenticator struct {
	secret    []byte
	issuer    string
	adminRole string
}

func NewAuthenticator(secret, issuer, adminRole string) *Authenticator {
	return &Authenticator{
		secret:    []byte(secret),
		issuer:    issuer,
		adminRole: adminRole,
	}
}

// IssueToken signs a token for subject with the given role.
func (a *Authenticator) IssueToken(subject, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Role: role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// ParseToken validates tokenString and returns its claims.
func (a *Authenticator) ParseToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}

// ParseAuthorization validates an "Authorization: Bearer <token>" value.
func (a *Authenticator) ParseAuthorization(header string) (*Claims, error) {
	if !strings.HasPrefix(header, bearerPrefix) {
		return nil, ErrMissingToken
	}
	token := strings.TrimSpace(strings.TrimPrefix(header, bearerPrefix))
	if token == "" {
		return nil, ErrMissingToken
	}
	return a.ParseToken(token)
}

func (a *Authenticator) IsAdmin(c *Claims) bool {
	return c != nil && c.Role == a.adminRole
}

// Authenticate rejects requests without a valid bearer token.
func (a *Authenticator) Authenticate() gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := a.ParseAuthorization(c.GetHeader(authHeaderKey))
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			return
		}
		c.Set(claimsKey, claims)
		c.Next()
	}
}

// RequireAdmin must run after Authenticate.
func (a *Authenticator) RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !a.IsAdmin(claimsFrom(c)) {
			abortWithError(c, http.StatusForbidden, "FORBIDDEN", ErrForbidden.Error())
			return
		}
		c.Next()
	}
}

func claimsFrom(c *gin.Context) *Claims {
	v, ok := c.Get(claimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*Claims)
	return claims
}

// actorID returns the authenticated subject.
func actorID(c *gin.Context) string {
	if claims := claimsFrom(c); claims != nil {
		return claims.Subject
	}
	return ""
}
