package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid token")

// Claims identifies the caller and the tenant every request is scoped to.
type Claims struct {
	TenantID string `json:"tenant_id"`
	Role     string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

// NewClaims builds claims for subject in tenant, valid for ttl.
func NewClaims(subject, tenantID, role string, ttl time.Duration) Claims {
	now := time.Now()
	return Claims{
		TenantID: tenantID,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
}

func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

func SignRS256(claims Claims, key *rsa.PrivateKey, kid string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	if kid != "" {
		token.Header["kid"] = kid
	}
	return token.SignedString(key)
}

func ParseAndVerifyHS256(token, secret string) (*Claims, error) {
	return parse(token, []string{jwt.SigningMethodHS256.Alg()}, func(*jwt.Token) (any, error) {
		return []byte(secret), nil
	})
}

func VerifyRS256(token string, pubKey *rsa.PublicKey) (*Claims, error) {
	return parse(token, []string{jwt.SigningMethodRS256.Alg()}, func(*jwt.Token) (any, error) {
		return pubKey, nil
	})
}

// KeySource resolves an RSA public key by key id (see JWKSClient).
type KeySource interface {
	Get(keyID string) (*rsa.PublicKey, error)
}

// VerifyWithKeySource verifies an RS256 token using the key named by its kid header.
func VerifyWithKeySource(token string, keys KeySource) (*Claims, error) {
	return parse(token, []string{jwt.SigningMethodRS256.Alg()}, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, errors.New("missing kid")
		}
		return keys.Get(kid)
	})
}

func parse(token string, methods []string, keyFunc jwt.Keyfunc) (*Claims, error) {
	var claims Claims
	parsed, err := jwt.ParseWithClaims(token, &claims, keyFunc,
		jwt.WithValidMethods(methods),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(30*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.TenantID == "" {
		return nil, ErrInvalidToken
	}
	return &claims, nil
}
