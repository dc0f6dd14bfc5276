// Package manifest models Credential Manifests and Presentation Exchange
// submissions, and evaluates Credential Applications against a manifest.
package manifest

import (
	"slices"
	"strings"

	"github.com/pilacorp/go-credential-exchange/credential/vc"
)

// Claim format designations used in descriptor maps.
const (
	FormatJWTVC = "jwt_vc"
	FormatJWTVP = "jwt_vp"
)

// ProofOfControlDescriptorID is the input descriptor asking the holder to
// prove control of its DID by signing the application.
const ProofOfControlDescriptorID = "proofOfIdentifierControlVP"

// CredentialManifest is what an issuer publishes about a credential it
// issues and what it needs from the holder to issue it.
type CredentialManifest struct {
	ID                     string                  `json:"id"`
	Version                string                  `json:"version,omitempty"`
	Issuer                 ManifestIssuer          `json:"issuer"`
	OutputDescriptors      []OutputDescriptor      `json:"output_descriptors"`
	Format                 *ClaimFormat            `json:"format,omitempty"`
	PresentationDefinition *PresentationDefinition `json:"presentation_definition,omitempty"`
}

// ManifestIssuer identifies the issuer of a manifest.
type ManifestIssuer struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// OutputDescriptor describes one credential the issuer will return.
type OutputDescriptor struct {
	ID          string `json:"id"`
	Schema      string `json:"schema"`
	Name        string `json:"name,omitempty"`
	Description string `json:"description,omitempty"`
}

// ClaimFormat lists accepted algorithms per token format.
type ClaimFormat struct {
	JWTVC *AlgFormat `json:"jwt_vc,omitempty"`
	JWTVP *AlgFormat `json:"jwt_vp,omitempty"`
}

// AlgFormat is a list of JWS algorithms.
type AlgFormat struct {
	Alg []string `json:"alg"`
}

// VCAlgorithms returns the jwt_vc algorithms, or nil.
func (f *ClaimFormat) VCAlgorithms() []string {
	if f == nil || f.JWTVC == nil {
		return nil
	}
	return f.JWTVC.Alg
}

// VPAlgorithms returns the jwt_vp algorithms, or nil.
func (f *ClaimFormat) VPAlgorithms() []string {
	if f == nil || f.JWTVP == nil {
		return nil
	}
	return f.JWTVP.Alg
}

// PresentationDefinition is the set of inputs an issuer requires.
type PresentationDefinition struct {
	ID               string            `json:"id"`
	Format           *ClaimFormat      `json:"format,omitempty"`
	InputDescriptors []InputDescriptor `json:"input_descriptors"`
}

// InputDescriptor describes one required input.
type InputDescriptor struct {
	ID          string       `json:"id"`
	Name        string       `json:"name,omitempty"`
	Purpose     string       `json:"purpose,omitempty"`
	Schema      []SchemaRef  `json:"schema,omitempty"`
	Constraints *Constraints `json:"constraints,omitempty"`
}

// SchemaRef names a schema by URI.
type SchemaRef struct {
	URI string `json:"uri"`
}

// Constraints restrict the content of an input.
type Constraints struct {
	Fields []Field `json:"fields,omitempty"`
}

// Field selects a value by JSONPath and optionally checks it against a JSON
// Schema filter. The first path that matches is used.
type Field struct {
	Path     []string       `json:"path"`
	Purpose  string         `json:"purpose,omitempty"`
	Filter   map[string]any `json:"filter,omitempty"`
	Optional bool           `json:"optional,omitempty"`
}

// CredentialApplication is the holder's request for a manifest's credentials.
type CredentialApplication struct {
	ID         string      `json:"id"`
	ManifestID string      `json:"manifest_id"`
	Format     ClaimFormat `json:"format"`
}

// PresentationSubmission maps submitted inputs to input descriptors.
type PresentationSubmission struct {
	ID            string       `json:"id"`
	DefinitionID  string       `json:"definition_id"`
	DescriptorMap []Descriptor `json:"descriptor_map"`
}

// Descriptor locates one submitted input inside the enclosing token.
type Descriptor struct {
	ID     string `json:"id"`
	Format string `json:"format"`
	Path   string `json:"path"`
}

// CredentialFulfillment maps issued credentials to output descriptors.
type CredentialFulfillment struct {
	ID            string       `json:"id"`
	ManifestID    string       `json:"manifest_id"`
	DescriptorMap []Descriptor `json:"descriptor_map"`
}

// InputDescriptor returns the input descriptor with the given id.
func (m *CredentialManifest) InputDescriptor(id string) (*InputDescriptor, bool) {
	if m.PresentationDefinition == nil {
		return nil, false
	}
	for i := range m.PresentationDefinition.InputDescriptors {
		if m.PresentationDefinition.InputDescriptors[i].ID == id {
			return &m.PresentationDefinition.InputDescriptors[i], true
		}
	}
	return nil, false
}

// OutputDescriptorFor returns the output descriptor for an attestation type,
// falling back to the first descriptor.
func (m *CredentialManifest) OutputDescriptorFor(attestationType string) (OutputDescriptor, bool) {
	idx := slices.IndexFunc(m.OutputDescriptors, func(d OutputDescriptor) bool {
		return d.ID == attestationType
	})
	if idx >= 0 {
		return m.OutputDescriptors[idx], true
	}
	if len(m.OutputDescriptors) > 0 {
		return m.OutputDescriptors[0], true
	}
	return OutputDescriptor{}, false
}

// BuildSampleProcessApprovalManifest returns the manifest an issuer of
// process approval attestations (KYC/AML, credit score) publishes. The id is
// the attestation type with "Attestation" replaced by "Manifest".
func BuildSampleProcessApprovalManifest(attestationType string, issuer ManifestIssuer) CredentialManifest {
	id := strings.TrimSuffix(attestationType, "Attestation") + "Manifest"
	name, description := outputText(attestationType)
	return CredentialManifest{
		ID:      id,
		Version: "0.1.0",
		Issuer:  issuer,
		OutputDescriptors: []OutputDescriptor{{
			ID:          attestationType,
			Schema:      "https://verite.id/definitions/schemas/0.0.1/" + attestationType,
			Name:        name,
			Description: description,
		}},
		Format: &ClaimFormat{
			JWTVC: &AlgFormat{Alg: []string{"EdDSA"}},
			JWTVP: &AlgFormat{Alg: []string{"EdDSA"}},
		},
		PresentationDefinition: &PresentationDefinition{
			ID: "ProofOfControlPresentationDefinition",
			Format: &ClaimFormat{
				JWTVP: &AlgFormat{Alg: []string{"EdDSA", "ES256K"}},
			},
			InputDescriptors: []InputDescriptor{{
				ID:      ProofOfControlDescriptorID,
				Name:    "Proof of Control Verifiable Presentation",
				Purpose: "A VP establishing proof of identifier control over the DID.",
				Schema:  []SchemaRef{{URI: "https://verite.id/definitions/schemas/0.0.1/ProofOfControl"}},
				Constraints: &Constraints{
					Fields: []Field{{
						Path:    []string{"$.holder"},
						Purpose: "The VP must name the holder DID it proves control of.",
						Filter:  map[string]any{"type": "string", "pattern": "^did:"},
					}},
				},
			}},
		},
	}
}

func outputText(attestationType string) (string, string) {
	switch attestationType {
	case vc.KYCAMLAttestationType:
		return "Proof of KYC from Verite", "Attestation that Verite has completed KYC/AML verification for this subject"
	case vc.CreditScoreAttestationType:
		return "Proof of Credit Score from Verite", "Attestation of the subject's credit score"
	default:
		return attestationType, ""
	}
}
