// Package exchange runs the Presentation Exchange message flow: a holder
// composes a Credential Application for a manifest, the issuer decodes and
// evaluates it and answers with a signed fulfillment, and any verifier can
// check the resulting presentation.
package exchange

import (
	"context"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/manifest"
	"github.com/pilacorp/go-credential-exchange/credential/vp"
)

// ComposeOpt configures ComposeCredentialApplication.
type ComposeOpt func(*composeOptions)

type composeOptions struct {
	id          string
	submission  string
	credentials []string
	now         func() time.Time
}

// WithApplicationID overrides the generated application id.
func WithApplicationID(id string) ComposeOpt {
	return func(o *composeOptions) {
		o.id = id
	}
}

// WithEmbeddedCredential embeds VC-JWT tokens verbatim in the application's
// presentation. They are answered to input descriptors other than proof of
// control, in order.
func WithEmbeddedCredential(tokens ...string) ComposeOpt {
	return func(o *composeOptions) {
		o.credentials = append(o.credentials, tokens...)
	}
}

// WithComposeClock replaces time.Now for the iat claim.
func WithComposeClock(now func() time.Time) ComposeOpt {
	return func(o *composeOptions) {
		o.now = now
	}
}

// ComposeCredentialApplication builds and signs a Credential Application for
// m on behalf of holder.
func ComposeCredentialApplication(m *manifest.CredentialManifest, holder jwt.Signer, opts ...ComposeOpt) (string, error) {
	if m == nil {
		return "", fmt.Errorf("manifest is required")
	}
	if holder == nil {
		return "", fmt.Errorf("holder signer is required")
	}
	o := &composeOptions{
		id:         uuid.NewString(),
		submission: uuid.NewString(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}

	algs := m.Format.VCAlgorithms()
	if len(algs) == 0 {
		algs = []string{holder.Algorithm()}
	}

	presentation := vp.BuildPresentationPayload(
		vp.WithHolder(holder.DID()),
		vp.WithCredentials(o.credentials...),
	)

	claims := manifest.ApplicationClaims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:   holder.DID(),
			Subject:  holder.DID(),
			ID:       o.id,
			IssuedAt: gojwt.NewNumericDate(o.now()),
		},
		VP: presentation,
		CredentialApplication: manifest.CredentialApplication{
			ID:         o.id,
			ManifestID: m.ID,
			Format: manifest.ClaimFormat{
				JWTVC: &manifest.AlgFormat{Alg: algs},
				JWTVP: &manifest.AlgFormat{Alg: []string{holder.Algorithm()}},
			},
		},
		PresentationSubmission: buildSubmission(m, o.submission, len(o.credentials)),
	}

	return jwt.Encode(&claims, holder)
}

func buildSubmission(m *manifest.CredentialManifest, id string, credentials int) *manifest.PresentationSubmission {
	pd := m.PresentationDefinition
	if pd == nil {
		return nil
	}
	sub := &manifest.PresentationSubmission{ID: id, DefinitionID: pd.ID}
	next := 0
	for _, desc := range pd.InputDescriptors {
		if desc.ID == manifest.ProofOfControlDescriptorID {
			sub.DescriptorMap = append(sub.DescriptorMap, manifest.Descriptor{
				ID:     desc.ID,
				Format: manifest.FormatJWTVP,
				Path:   "$.vp",
			})
			continue
		}
		if next >= credentials {
			continue
		}
		sub.DescriptorMap = append(sub.DescriptorMap, manifest.Descriptor{
			ID:     desc.ID,
			Format: manifest.FormatJWTVC,
			Path:   fmt.Sprintf("$.vp.verifiableCredential[%d]", next),
		})
		next++
	}
	return sub
}

// DecodeCredentialApplication decodes an application body without verifying
// it. The body may be the bare token or a JSON string holding it.
func DecodeCredentialApplication(raw []byte) (*manifest.Application, error) {
	return manifest.DecodeApplication(string(raw))
}

// DecodeAndVerifyCredentialApplicationJWT verifies an application token and
// the credentials it embeds.
func DecodeAndVerifyCredentialApplicationJWT(ctx context.Context, token string, verifier *jwt.Verifier) (*manifest.Application, error) {
	return manifest.DecodeAndVerifyApplication(ctx, token, verifier)
}

// EvaluateCredentialApplication verifies token and evaluates it against m.
func EvaluateCredentialApplication(ctx context.Context, token string, m *manifest.CredentialManifest, evaluator *manifest.Evaluator) (*manifest.Application, error) {
	return evaluator.EvaluateCredentialApplication(ctx, token, m)
}

// ValidateCredentialApplication evaluates app against m and keeps only the
// error.
func ValidateCredentialApplication(ctx context.Context, app *manifest.Application, m *manifest.CredentialManifest, evaluator *manifest.Evaluator) error {
	return evaluator.ValidateCredentialApplication(ctx, app, m)
}
