package auth

import (
	"crypto/hmac"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v4"
)

var (
	ErrInvalidToken  = errors.New("invalid token")
	ErrForbiddenRole = errors.New("role not authorized")
)

// SecretEqual compares a presented shared secret against the configured one
// in constant time. An empty configured secret never matches.
func SecretEqual(got, want string) bool {
	if want == "" {
		return false
	}
	return hmac.Equal([]byte(got), []byte(want))
}

// RoleVerifier validates a bearer JWT and checks that its role claim is one
// of the authorized roles.
type RoleVerifier struct {
	secret []byte
	roles  map[string]struct{}
}

func NewRoleVerifier(secret string, roles []string) *RoleVerifier {
	allowed := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return &RoleVerifier{secret: []byte(secret), roles: allowed}
}

// Verify parses the token and checks the role claim. It distinguishes a bad
// credential (ErrInvalidToken) from a valid one lacking the role
// (ErrForbiddenRole) so callers can answer 401 vs 403.
func (v *RoleVerifier) Verify(tokenString string) error {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return ErrInvalidToken
	}
	role, _ := claims["role"].(string)
	if _, allowed := v.roles[role]; !allowed {
		return ErrForbiddenRole
	}
	return nil
}
