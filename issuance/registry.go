package issuance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/pilacorp/go-credential-exchange/credential/manifest"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
)

// ErrUnknownManifest is returned for applications naming a manifest the
// issuer does not serve.
var ErrUnknownManifest = errors.New("unknown manifest")

// AttestationBuilder produces the attestations to issue for an evaluated
// application. It is where eligibility decisions belong.
type AttestationBuilder func(ctx context.Context, app *manifest.Application) ([]vc.Attestation, error)

// Route is what the registry holds for one manifest id.
type Route struct {
	Manifest manifest.CredentialManifest
	Build    AttestationBuilder
}

// Registry maps manifest ids to manifests and attestation builders. It is
// filled at startup and read-only afterwards.
type Registry struct {
	routes    map[string]Route
	published []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{routes: map[string]Route{}}
}

// Register publishes m and routes applications for it to build. Applications
// may also name m by any of aliases; they are evaluated against a copy of m
// carrying the alias as its id.
func (r *Registry) Register(m manifest.CredentialManifest, build AttestationBuilder, aliases ...string) error {
	if m.ID == "" {
		return fmt.Errorf("manifest id is required")
	}
	if build == nil {
		return fmt.Errorf("manifest %s: attestation builder is required", m.ID)
	}
	for _, id := range append([]string{m.ID}, aliases...) {
		if _, ok := r.routes[id]; ok {
			return fmt.Errorf("manifest id %s is already registered", id)
		}
	}
	r.routes[m.ID] = Route{Manifest: m, Build: build}
	for _, alias := range aliases {
		aliased := m
		aliased.ID = alias
		r.routes[alias] = Route{Manifest: aliased, Build: build}
	}
	r.published = append(r.published, m.ID)
	return nil
}

// Lookup returns the route for a manifest id.
func (r *Registry) Lookup(manifestID string) (Route, error) {
	route, ok := r.routes[manifestID]
	if !ok {
		return Route{}, fmt.Errorf("%w: %q", ErrUnknownManifest, manifestID)
	}
	return route, nil
}

// Manifest returns a published manifest by id.
func (r *Registry) Manifest(id string) (manifest.CredentialManifest, bool) {
	if !slices.Contains(r.published, id) {
		return manifest.CredentialManifest{}, false
	}
	return r.routes[id].Manifest, true
}

// Manifests returns the published manifests in registration order.
func (r *Registry) Manifests() []manifest.CredentialManifest {
	out := make([]manifest.CredentialManifest, 0, len(r.published))
	for _, id := range r.published {
		out = append(out, r.routes[id].Manifest)
	}
	return out
}

// DefaultRegistry serves the KYC/AML and credit score manifests with the
// demo attestations. The attestation type names are accepted as aliases.
func DefaultRegistry(issuer manifest.ManifestIssuer, now func() time.Time) *Registry {
	if now == nil {
		now = time.Now
	}
	r := NewRegistry()
	kyc := manifest.BuildSampleProcessApprovalManifest(vc.KYCAMLAttestationType, issuer)
	credit := manifest.BuildSampleProcessApprovalManifest(vc.CreditScoreAttestationType, issuer)

	// Fresh registry with distinct ids, cannot fail.
	_ = r.Register(kyc, func(context.Context, *manifest.Application) ([]vc.Attestation, error) {
		return []vc.Attestation{vc.KYCAMLAttestation{
			AuthorityID:          "verity.id",
			ApprovalDate:         now().UTC().Truncate(time.Second),
			AuthorityName:        "verity.id",
			AuthorityURL:         "https://verity.id",
			AuthorityCallbackURL: "https://verity.id",
		}}, nil
	}, vc.KYCAMLAttestationType)
	_ = r.Register(credit, func(context.Context, *manifest.Application) ([]vc.Attestation, error) {
		return []vc.Attestation{vc.CreditScoreAttestation{
			Score:     90,
			ScoreType: "Credit Score",
			Provider:  "Experian",
		}}, nil
	}, vc.CreditScoreAttestationType)
	return r
}
