package models

import "github.com/golang-jwt/jwt/v5"

// Operator roles accepted on the admin endpoints.
const (
	RoleAdmin     = "admin"
	RoleRegistrar = "registrar"
)

// JWTClaims is the access-token payload issued by the identity service.
type JWTClaims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// CanOperateCycle reports whether the role may open, reset or normalize the
// enrollment cycle.
func (c *JWTClaims) CanOperateCycle() bool {
	return c.Role == RoleAdmin || c.Role == RoleRegistrar
}
