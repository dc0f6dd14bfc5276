package manifest

import (
	"context"
	"fmt"

	gojwt "github.com/golang-jwt/jwt/v5"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
	"github.com/pilacorp/go-credential-exchange/credential/vp"
)

// ApplicationClaims are the JWT claims of a signed Credential Application:
// a holder VP plus the application and its presentation submission.
type ApplicationClaims struct {
	gojwt.RegisteredClaims
	VP                     vp.PresentationPayload  `json:"vp"`
	CredentialApplication  CredentialApplication   `json:"credential_application"`
	PresentationSubmission *PresentationSubmission `json:"presentation_submission,omitempty"`
}

// Application is a decoded Credential Application.
type Application struct {
	Token       string
	Algorithm   string
	Claims      ApplicationClaims
	Credentials []*vc.Credential
	verified    bool
}

// Verified reports whether the token signature and every embedded credential
// have been checked. Only DecodeAndVerifyApplication sets it.
func (a *Application) Verified() bool {
	return a.verified
}

// ManifestID returns credential_application.manifest_id.
func (a *Application) ManifestID() string {
	return a.Claims.CredentialApplication.ManifestID
}

// Holder returns the DID that signed the application. vp.holder, when
// present, is bound to iss by decoding.
func (a *Application) Holder() string {
	if a.Claims.VP.Holder != "" {
		return a.Claims.VP.Holder
	}
	return a.Claims.Issuer
}

// DecodeApplication parses an application token without verifying it. Only
// routing decisions may be taken on the result.
func DecodeApplication(token string) (*Application, error) {
	var claims ApplicationClaims
	parsed, err := jwt.Decode(token, &claims)
	if err != nil {
		return nil, err
	}
	if err := checkApplication(&claims); err != nil {
		return nil, err
	}
	creds, err := vp.DecodeCredentials(claims.VP.VerifiableCredential)
	if err != nil {
		return nil, err
	}
	return &Application{
		Token:       parsed.Raw,
		Algorithm:   jwt.HeaderString(parsed, "alg"),
		Claims:      claims,
		Credentials: creds,
	}, nil
}

// DecodeAndVerifyApplication verifies the application token and every
// credential embedded in its VP.
func DecodeAndVerifyApplication(ctx context.Context, token string, verifier *jwt.Verifier) (*Application, error) {
	var claims ApplicationClaims
	parsed, err := verifier.DecodeAndVerify(ctx, token, &claims)
	if err != nil {
		return nil, err
	}
	if err := checkApplication(&claims); err != nil {
		return nil, err
	}
	creds, err := vp.VerifyCredentials(ctx, claims.VP.VerifiableCredential, verifier)
	if err != nil {
		return nil, err
	}
	return &Application{
		Token:       parsed.Raw,
		Algorithm:   jwt.HeaderString(parsed, "alg"),
		Claims:      claims,
		Credentials: creds,
		verified:    true,
	}, nil
}

func checkApplication(claims *ApplicationClaims) error {
	if claims.CredentialApplication.ManifestID == "" {
		return verification.New(verification.KindMalformedToken, "credential_application.manifest_id is missing")
	}
	if claims.CredentialApplication.ID == "" {
		return verification.New(verification.KindMalformedToken, "credential_application.id is missing")
	}
	if claims.VP.Holder != "" && claims.VP.Holder != claims.Issuer {
		return verification.Newf(verification.KindConstraintViolation, "vp.holder %s is not the signer %s", claims.VP.Holder, claims.Issuer)
	}
	if claims.Subject != "" && claims.Subject != claims.Issuer {
		return verification.Newf(verification.KindConstraintViolation, "sub %s is not the signer %s", claims.Subject, claims.Issuer)
	}
	return nil
}

// String implements fmt.Stringer for log output.
func (a *Application) String() string {
	return fmt.Sprintf("application %s for %s by %s", a.Claims.CredentialApplication.ID, a.ManifestID(), a.Holder())
}
