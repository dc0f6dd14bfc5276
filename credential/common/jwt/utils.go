package jwt

import (
	"errors"
	"strings"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
)

// Decode parses a compact JWS into claims without checking the signature.
// Any structural failure is reported as a MalformedToken error.
func Decode(token string, claims gojwt.Claims) (*gojwt.Token, error) {
	token = normalize(token)
	parsed, _, err := gojwt.NewParser().ParseUnverified(token, claims)
	if err != nil {
		if errors.Is(err, gojwt.ErrTokenUnverifiable) {
			return nil, &verification.Error{Kind: verification.KindUnsupportedAlgorithm, Message: "unknown signing algorithm", Err: err}
		}
		return nil, &verification.Error{Kind: verification.KindMalformedToken, Message: "cannot decode token", Err: err}
	}
	return parsed, nil
}

// HeaderString returns a string header value of a parsed token.
func HeaderString(token *gojwt.Token, name string) string {
	if token == nil {
		return ""
	}
	v, _ := token.Header[name].(string)
	return v
}

// normalize strips whitespace and the JSON quotes a transport may wrap a
// token in.
func normalize(token string) string {
	token = strings.TrimSpace(token)
	token = strings.Trim(token, "\"")
	return strings.TrimSpace(token)
}
