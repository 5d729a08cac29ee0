package rpc

import (
	"net/http"
	"strings"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
)

// OperatorAuth gates operator-only read methods behind an HS256 bearer token.
type OperatorAuth struct {
	Enable   bool
	Secret   []byte
	Issuer   string
	Audience string
	MaxSkew  time.Duration
}

func extractBearer(header string) string {
	if !strings.HasPrefix(header, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
}

// authorizeOperator validates the bearer token of r. It is a no-op when
// operator auth is disabled.
func (s *Server) authorizeOperator(r *http.Request) *RPCError {
	auth := s.cfg.Operator
	if !auth.Enable {
		return nil
	}
	if len(auth.Secret) == 0 {
		return &RPCError{Code: codeUnauthorized, Message: "operator authentication not configured"}
	}
	token := extractBearer(r.Header.Get("Authorization"))
	if token == "" {
		return &RPCError{Code: codeUnauthorized, Message: "missing bearer token"}
	}
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.clock.Now),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(auth.MaxSkew),
	}
	if auth.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(auth.Issuer))
	}
	if auth.Audience != "" {
		opts = append(opts, jwt.WithAudience(auth.Audience))
	}
	parsed, err := jwt.ParseWithClaims(token, &jwt.RegisteredClaims{}, func(*jwt.Token) (interface{}, error) {
		return auth.Secret, nil
	}, opts...)
	if err != nil {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token", Data: err.Error()}
	}
	if !parsed.Valid {
		return &RPCError{Code: codeUnauthorized, Message: "invalid bearer token", Data: "token invalid"}
	}
	return nil
}
