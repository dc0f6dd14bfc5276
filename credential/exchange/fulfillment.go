package exchange

import (
	"context"
	"fmt"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
	"github.com/pilacorp/go-credential-exchange/credential/manifest"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
	"github.com/pilacorp/go-credential-exchange/credential/vp"
)

// CredentialFulfillmentType is added to the type of a fulfillment VP.
const CredentialFulfillmentType = "CredentialFulfillment"

// FulfillmentClaims are the JWT claims of a fulfillment: a VP signed by the
// issuer plus the descriptor map tying its credentials to the manifest.
type FulfillmentClaims struct {
	gojwt.RegisteredClaims
	VP                    vp.PresentationPayload         `json:"vp"`
	CredentialFulfillment manifest.CredentialFulfillment `json:"credential_fulfillment"`
}

// Fulfillment is an issued or decoded fulfillment.
type Fulfillment struct {
	Token       string
	Claims      FulfillmentClaims
	Credentials []*vc.Credential
	Verified    bool
}

// FulfillmentOpt configures fulfillment issuance.
type FulfillmentOpt func(*fulfillmentOptions)

type fulfillmentOptions struct {
	manifest  *manifest.CredentialManifest
	expiresIn time.Duration
	status    func(i int) *vc.StatusList2021Entry
	types     []string
	now       func() time.Time
}

// WithManifest maps issued credentials to the manifest's output descriptors.
func WithManifest(m *manifest.CredentialManifest) FulfillmentOpt {
	return func(o *fulfillmentOptions) {
		o.manifest = m
	}
}

// WithCredentialTTL sets an expiration date on every issued credential.
func WithCredentialTTL(d time.Duration) FulfillmentOpt {
	return func(o *fulfillmentOptions) {
		o.expiresIn = d
	}
}

// WithStatusAllocator attaches a status list entry to the i-th credential.
func WithStatusAllocator(alloc func(i int) *vc.StatusList2021Entry) FulfillmentOpt {
	return func(o *fulfillmentOptions) {
		o.status = alloc
	}
}

// WithCredentialType adds credential types beyond the attestation type.
func WithCredentialType(types ...string) FulfillmentOpt {
	return func(o *fulfillmentOptions) {
		o.types = append(o.types, types...)
	}
}

// WithFulfillmentClock replaces time.Now.
func WithFulfillmentClock(now func() time.Time) FulfillmentOpt {
	return func(o *fulfillmentOptions) {
		o.now = now
	}
}

// BuildAndSignFulfillment issues one credential for attestation to the
// application's holder and returns the signed fulfillment token.
func BuildAndSignFulfillment(issuer jwt.Signer, app *manifest.Application, attestation vc.Attestation, opts ...FulfillmentOpt) (string, error) {
	f, err := IssueFulfillment(issuer, app, []vc.Attestation{attestation}, opts...)
	if err != nil {
		return "", err
	}
	return f.Token, nil
}

// IssueFulfillment issues one credential per attestation to the application's
// holder, wraps them in a VP signed by issuer and returns the result.
func IssueFulfillment(issuer jwt.Signer, app *manifest.Application, attestations []vc.Attestation, opts ...FulfillmentOpt) (*Fulfillment, error) {
	if issuer == nil {
		return nil, fmt.Errorf("issuer signer is required")
	}
	if app == nil {
		return nil, fmt.Errorf("application is required")
	}
	if len(attestations) == 0 {
		return nil, fmt.Errorf("at least one attestation is required")
	}
	o := &fulfillmentOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	now := o.now().UTC().Truncate(time.Second)
	subject := app.Holder()
	tokens := make([]string, 0, len(attestations))
	creds := make([]*vc.Credential, 0, len(attestations))
	descriptors := make([]manifest.Descriptor, 0, len(attestations))

	for i, a := range attestations {
		popts := []vc.PayloadOpt{
			vc.WithID("urn:uuid:" + uuid.NewString()),
			vc.WithType(a.AttestationType()),
			vc.WithType(o.types...),
			vc.WithIssuer(issuer.DID()),
			vc.WithAttestation(subject, a),
			vc.WithIssuanceDate(now),
		}
		if o.expiresIn > 0 {
			popts = append(popts, vc.WithExpirationDate(now.Add(o.expiresIn)))
		}
		if o.status != nil {
			if entry := o.status(i); entry != nil {
				popts = append(popts, vc.WithCredentialStatus(entry))
			}
		}
		payload := vc.BuildCredentialPayload(popts...)

		token, err := vc.Encode(payload, issuer)
		if err != nil {
			return nil, fmt.Errorf("failed to sign credential %d: %w", i, err)
		}
		cred, err := vc.Decode(token)
		if err != nil {
			return nil, err
		}
		tokens = append(tokens, token)
		creds = append(creds, cred)

		descriptorID := a.AttestationType()
		if o.manifest != nil {
			if od, ok := o.manifest.OutputDescriptorFor(a.AttestationType()); ok {
				descriptorID = od.ID
			}
		}
		descriptors = append(descriptors, manifest.Descriptor{
			ID:     descriptorID,
			Format: manifest.FormatJWTVC,
			Path:   fmt.Sprintf("$.vp.verifiableCredential[%d]", i),
		})
	}

	id := uuid.NewString()
	presentation := vp.BuildPresentationPayload(
		vp.WithPresentationID("urn:uuid:"+id),
		vp.WithPresentationType(CredentialFulfillmentType),
		vp.WithHolder(issuer.DID()),
		vp.WithCredentials(tokens...),
	)
	claims := FulfillmentClaims{
		RegisteredClaims: gojwt.RegisteredClaims{
			Issuer:   issuer.DID(),
			Subject:  subject,
			ID:       id,
			IssuedAt: gojwt.NewNumericDate(now),
		},
		VP: presentation,
		CredentialFulfillment: manifest.CredentialFulfillment{
			ID:            id,
			ManifestID:    app.ManifestID(),
			DescriptorMap: descriptors,
		},
	}

	token, err := jwt.Encode(&claims, issuer)
	if err != nil {
		return nil, fmt.Errorf("failed to sign fulfillment: %w", err)
	}
	return &Fulfillment{Token: token, Claims: claims, Credentials: creds}, nil
}

// DecodeAndVerifyFulfillment verifies a fulfillment token and every
// credential in it.
func DecodeAndVerifyFulfillment(ctx context.Context, token string, verifier *jwt.Verifier) (*Fulfillment, error) {
	var claims FulfillmentClaims
	if _, err := verifier.DecodeAndVerify(ctx, token, &claims); err != nil {
		return nil, err
	}
	if claims.CredentialFulfillment.ManifestID == "" {
		return nil, verification.New(verification.KindMalformedToken, "credential_fulfillment.manifest_id is missing")
	}
	creds, err := vp.VerifyCredentials(ctx, claims.VP.VerifiableCredential, verifier)
	if err != nil {
		return nil, err
	}
	return &Fulfillment{Token: token, Claims: claims, Credentials: creds, Verified: true}, nil
}
