package vp

import (
	"context"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/errgroup"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
)

// PresentationClaims are the JWT claims of a VP-JWT.
type PresentationClaims struct {
	gojwt.RegisteredClaims
	VP PresentationPayload `json:"vp"`
}

// Presentation is a decoded VP-JWT together with its embedded credentials.
type Presentation struct {
	Token       string
	Claims      PresentationClaims
	Credentials []*vc.Credential
	Verified    bool
}

// RegisteredClaimsFor returns the registered claims of a presentation signed
// by signer: iss is the signer, sub the holder, jti the presentation id.
func RegisteredClaimsFor(payload PresentationPayload, signer jwt.Signer, now time.Time) gojwt.RegisteredClaims {
	sub := payload.Holder
	if sub == "" {
		sub = signer.DID()
	}
	return gojwt.RegisteredClaims{
		Issuer:   signer.DID(),
		Subject:  sub,
		ID:       payload.ID,
		IssuedAt: gojwt.NewNumericDate(now),
	}
}

// Encode signs payload as a VP-JWT.
func Encode(payload PresentationPayload, signer jwt.Signer) (string, error) {
	if signer == nil {
		return "", fmt.Errorf("signer is required")
	}
	claims := PresentationClaims{
		RegisteredClaims: RegisteredClaimsFor(payload, signer, time.Now()),
		VP:               payload,
	}
	return jwt.Encode(&claims, signer)
}

// Decode parses a VP-JWT and its embedded credentials without verification.
func Decode(token string) (*Presentation, error) {
	var claims PresentationClaims
	if _, err := jwt.Decode(token, &claims); err != nil {
		return nil, err
	}
	creds, err := DecodeCredentials(claims.VP.VerifiableCredential)
	if err != nil {
		return nil, err
	}
	return &Presentation{Token: token, Claims: claims, Credentials: creds}, nil
}

// DecodeAndVerify verifies a VP-JWT and every credential it embeds.
func DecodeAndVerify(ctx context.Context, token string, verifier *jwt.Verifier) (*Presentation, error) {
	var claims PresentationClaims
	if _, err := verifier.DecodeAndVerify(ctx, token, &claims); err != nil {
		return nil, err
	}
	creds, err := VerifyCredentials(ctx, claims.VP.VerifiableCredential, verifier)
	if err != nil {
		return nil, err
	}
	return &Presentation{Token: token, Claims: claims, Credentials: creds, Verified: true}, nil
}

// DecodeCredentials decodes VC-JWT tokens without verification.
func DecodeCredentials(tokens []string) ([]*vc.Credential, error) {
	creds := make([]*vc.Credential, 0, len(tokens))
	for i, t := range tokens {
		c, err := vc.Decode(t)
		if err != nil {
			return nil, verification.Wrap(err, verification.KindMalformedToken, fmt.Sprintf("embedded credential %d", i))
		}
		creds = append(creds, c)
	}
	return creds, nil
}

// VerifyCredentials verifies VC-JWT tokens concurrently. The first failure
// is returned with its original kind.
func VerifyCredentials(ctx context.Context, tokens []string, verifier *jwt.Verifier) ([]*vc.Credential, error) {
	creds := make([]*vc.Credential, len(tokens))
	g, gctx := errgroup.WithContext(ctx)
	for i, t := range tokens {
		g.Go(func() error {
			c, err := vc.DecodeAndVerify(gctx, t, verifier)
			if err != nil {
				return verification.Wrap(err, verification.KindMalformedToken, fmt.Sprintf("embedded credential %d", i))
			}
			creds[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return creds, nil
}
