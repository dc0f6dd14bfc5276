// Package vp builds, signs and verifies Verifiable Presentations in the JWT
// encoding. Embedded credentials are carried as VC-JWT strings.
package vp

import (
	"slices"

	"github.com/pilacorp/go-credential-exchange/credential/common/util"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
)

// VerifiablePresentationType is always the first entry of a presentation's type.
const VerifiablePresentationType = "VerifiablePresentation"

// PresentationPayload is an unsigned Verifiable Presentation.
type PresentationPayload struct {
	Context              vc.Contexts        `json:"@context"`
	ID                   string             `json:"id,omitempty"`
	Type                 util.StringOrSlice `json:"type"`
	Holder               string             `json:"holder,omitempty"`
	VerifiableCredential []string           `json:"verifiableCredential,omitempty"`
}

// PresentationOpt configures a presentation payload.
type PresentationOpt func(*PresentationPayload)

// WithPresentationID sets the presentation id.
func WithPresentationID(id string) PresentationOpt {
	return func(p *PresentationPayload) {
		p.ID = id
	}
}

// WithHolder sets the holder DID.
func WithHolder(holder string) PresentationOpt {
	return func(p *PresentationPayload) {
		p.Holder = holder
	}
}

// WithCredentials appends VC-JWT tokens.
func WithCredentials(tokens ...string) PresentationOpt {
	return func(p *PresentationPayload) {
		p.VerifiableCredential = append(p.VerifiableCredential, tokens...)
	}
}

// WithPresentationType appends presentation types after the base type.
func WithPresentationType(types ...string) PresentationOpt {
	return func(p *PresentationPayload) {
		p.Type = util.AppendUnique(p.Type, types...)
	}
}

// BuildPresentationPayload assembles a presentation. Like the credential
// builder it never fails.
func BuildPresentationPayload(opts ...PresentationOpt) PresentationPayload {
	p := PresentationPayload{
		Context: vc.Contexts{vc.CredentialsContextV1},
		Type:    util.StringOrSlice{VerifiablePresentationType},
	}
	for _, opt := range opts {
		opt(&p)
	}
	p.VerifiableCredential = slices.Clone(p.VerifiableCredential)
	return p
}
