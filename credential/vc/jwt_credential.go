package vc

import (
	"context"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/common/schema"
	"github.com/pilacorp/go-credential-exchange/credential/common/util"
	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
)

// CredentialClaims are the JWT claims of a VC-JWT: registered claims plus the
// payload under "vc".
type CredentialClaims struct {
	gojwt.RegisteredClaims
	VC CredentialPayload `json:"vc"`
}

// Credential is a decoded, and possibly verified, VC-JWT.
type Credential struct {
	Token    string
	Claims   CredentialClaims
	Verified bool
}

// Payload returns the credential payload.
func (c *Credential) Payload() *CredentialPayload {
	return &c.Claims.VC
}

// Encode signs payload as a VC-JWT. Registered claims mirror the payload:
// iss is the signer DID, sub the first subject, nbf the issuance date, exp the
// expiration date and jti the credential id. An empty issuer is filled in
// with the signer DID.
func Encode(payload CredentialPayload, signer jwt.Signer) (string, error) {
	if signer == nil {
		return "", fmt.Errorf("signer is required")
	}
	if payload.Issuer == nil || payload.Issuer.ID == "" {
		payload.Issuer = &IssuerRef{ID: signer.DID()}
	}

	claims := CredentialClaims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:  signer.DID(),
			Subject: payload.SubjectID(),
			ID:      payload.ID,
		},
		VC: payload,
	}
	if !payload.IssuanceDate.IsZero() {
		claims.NotBefore = gojwt.NewNumericDate(payload.IssuanceDate)
	}
	if payload.ExpirationDate != nil {
		claims.ExpiresAt = gojwt.NewNumericDate(*payload.ExpirationDate)
	}

	return jwt.Encode(&claims, signer)
}

// Decode parses a VC-JWT without verifying it.
func Decode(token string) (*Credential, error) {
	var claims CredentialClaims
	if _, err := jwt.Decode(token, &claims); err != nil {
		return nil, err
	}
	if err := checkShape(&claims); err != nil {
		return nil, err
	}
	return &Credential{Token: token, Claims: claims}, nil
}

// DecodeAndVerify parses and verifies a VC-JWT.
func DecodeAndVerify(ctx context.Context, token string, verifier *jwt.Verifier) (*Credential, error) {
	var claims CredentialClaims
	if _, err := verifier.DecodeAndVerify(ctx, token, &claims); err != nil {
		return nil, err
	}
	if err := checkShape(&claims); err != nil {
		return nil, err
	}
	return &Credential{Token: token, Claims: claims, Verified: true}, nil
}

// checkShape fills payload fields that VC-JWT allows to live only in the
// registered claims and rejects tokens without a credential. A vc.issuer
// other than iss is rejected: the signature only covers the iss key.
func checkShape(claims *CredentialClaims) error {
	p := &claims.VC
	if len(p.Type) == 0 {
		return verification.New(verification.KindMalformedToken, "token carries no vc claim")
	}
	if p.Issuer != nil && p.Issuer.ID != "" && p.Issuer.ID != claims.Issuer {
		return verification.Newf(verification.KindInvalidSignature, "vc.issuer %s is not the signer %s", p.Issuer.ID, claims.Issuer)
	}
	if p.Type[0] != VerifiableCredentialType {
		p.Type = util.AppendUnique([]string{VerifiableCredentialType}, p.Type...)
	}
	if p.Issuer == nil && claims.Issuer != "" {
		p.Issuer = &IssuerRef{ID: claims.Issuer}
	}
	if p.ID == "" {
		p.ID = claims.ID
	}
	if p.IssuanceDate.IsZero() && claims.NotBefore != nil {
		p.IssuanceDate = claims.NotBefore.UTC()
	}
	if p.ExpirationDate == nil && claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.UTC()
		p.ExpirationDate = &exp
	}
	if first := p.CredentialSubject.First(); first != nil && first.ID == "" && claims.Subject != "" {
		first.ID = claims.Subject
	}
	return nil
}

// IsExpired reports whether the payload's expirationDate is before now.
func (p *CredentialPayload) IsExpired(now time.Time) bool {
	return p.ExpirationDate != nil && now.After(*p.ExpirationDate)
}

// CanonicalDigest returns the hex SHA-256 of the payload's URDNA2015 form.
func CanonicalDigest(payload CredentialPayload, opts ...schema.ProcessorOpt) (string, error) {
	doc, err := util.ToMap(payload)
	if err != nil {
		return "", fmt.Errorf("failed to convert payload: %w", err)
	}
	return schema.Digest(doc, opts...)
}
