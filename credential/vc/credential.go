// Package vc builds, signs and verifies W3C Verifiable Credentials in the
// JWT encoding.
package vc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/pilacorp/go-credential-exchange/credential/common/util"
)

const (
	// VerifiableCredentialType is always the first entry of a credential's type.
	VerifiableCredentialType = "VerifiableCredential"
	// CredentialsContextV1 is the base JSON-LD context.
	CredentialsContextV1 = "https://www.w3.org/2018/credentials/v1"
	// StatusList2021Context is added when a credential carries a status entry.
	StatusList2021Context = "https://w3id.org/vc/status-list/2021/v1"
)

// Contexts is the "@context" value. It accepts a bare string when decoding.
type Contexts []any

// UnmarshalJSON implements json.Unmarshaler.
func (c *Contexts) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*c = nil
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*c = Contexts{one}
		return nil
	}
	var many []any
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("invalid @context: %w", err)
	}
	*c = many
	return nil
}

// IssuerRef is the credential issuer, encoded as {"id": ..} and decoded from
// either a string or an object.
type IssuerRef struct {
	ID   string `json:"id"`
	Name string `json:"name,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *IssuerRef) UnmarshalJSON(data []byte) error {
	var id string
	if err := json.Unmarshal(data, &id); err == nil {
		*i = IssuerRef{ID: id}
		return nil
	}
	type plain IssuerRef
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("invalid issuer: %w", err)
	}
	*i = IssuerRef(p)
	return nil
}

// CredentialSchema points at the JSON Schema a credential conforms to.
type CredentialSchema struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// RefreshService tells holders where to obtain a fresh copy.
type RefreshService struct {
	ID   string `json:"id"`
	Type string `json:"type"`
}

// StatusList2021Entry points into a hosted status list bitstring.
type StatusList2021Entry struct {
	ID                   string `json:"id"`
	Type                 string `json:"type"`
	StatusPurpose        string `json:"statusPurpose,omitempty"`
	StatusListIndex      string `json:"statusListIndex"`
	StatusListCredential string `json:"statusListCredential"`
}

// CredentialSubject is one subject entry: the subject DID, at most one
// attestation embedded under its type name, and any other claims.
type CredentialSubject struct {
	ID          string
	Attestation Attestation
	Claims      map[string]any
}

// MarshalJSON writes {"id": .., "<type>": attestation, ...claims}.
func (s CredentialSubject) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(s.Claims)+2)
	for k, v := range s.Claims {
		out[k] = v
	}
	if s.ID != "" {
		out["id"] = s.ID
	}
	switch a := s.Attestation.(type) {
	case nil:
	case CustomAttestation:
		if a.Type == "" {
			for k, v := range a.Fields {
				out[k] = v
			}
		} else {
			out[a.Type] = a
		}
	default:
		out[a.AttestationType()] = a
	}
	return json.Marshal(out)
}

// UnmarshalJSON recognises the first attestation-shaped member and keeps
// everything else in Claims.
func (s *CredentialSubject) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("invalid credentialSubject: %w", err)
	}
	*s = CredentialSubject{}
	if raw, ok := fields["id"]; ok {
		if err := json.Unmarshal(raw, &s.ID); err != nil {
			return fmt.Errorf("invalid credentialSubject id: %w", err)
		}
		delete(fields, "id")
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		if s.Attestation == nil {
			a, ok, err := decodeAttestation(k, fields[k])
			if err != nil {
				return err
			}
			if ok {
				s.Attestation = a
				continue
			}
		}
		var v any
		if err := json.Unmarshal(fields[k], &v); err != nil {
			return err
		}
		if s.Claims == nil {
			s.Claims = make(map[string]any)
		}
		s.Claims[k] = v
	}
	return nil
}

// CredentialSubjects is the credentialSubject value. It is written as a bare
// object when it holds one subject built from a single attestation and as an
// array otherwise.
type CredentialSubjects struct {
	Subjects []CredentialSubject
	Array    bool
}

// MarshalJSON implements json.Marshaler.
func (c CredentialSubjects) MarshalJSON() ([]byte, error) {
	if len(c.Subjects) == 1 && !c.Array {
		return json.Marshal(c.Subjects[0])
	}
	if c.Subjects == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(c.Subjects)
}

// UnmarshalJSON implements json.Unmarshaler.
func (c *CredentialSubjects) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var subjects []CredentialSubject
		if err := json.Unmarshal(data, &subjects); err != nil {
			return err
		}
		*c = CredentialSubjects{Subjects: subjects, Array: true}
		return nil
	}
	var subject CredentialSubject
	if err := json.Unmarshal(data, &subject); err != nil {
		return err
	}
	*c = CredentialSubjects{Subjects: []CredentialSubject{subject}}
	return nil
}

// First returns the first subject, or nil.
func (c CredentialSubjects) First() *CredentialSubject {
	if len(c.Subjects) == 0 {
		return nil
	}
	return &c.Subjects[0]
}

// Attestations returns every attestation in subject order.
func (c CredentialSubjects) Attestations() []Attestation {
	var out []Attestation
	for _, s := range c.Subjects {
		if s.Attestation != nil {
			out = append(out, s.Attestation)
		}
	}
	return out
}

// CredentialPayload is an unsigned Verifiable Credential.
type CredentialPayload struct {
	Context           Contexts             `json:"@context"`
	ID                string               `json:"id,omitempty"`
	Type              util.StringOrSlice   `json:"type"`
	Issuer            *IssuerRef           `json:"issuer,omitempty"`
	CredentialSubject CredentialSubjects   `json:"credentialSubject"`
	CredentialSchema  *CredentialSchema    `json:"credentialSchema,omitempty"`
	CredentialStatus  *StatusList2021Entry `json:"credentialStatus,omitempty"`
	RefreshService    *RefreshService      `json:"refreshService,omitempty"`
	Evidence          []any                `json:"evidence,omitempty"`
	IssuanceDate      time.Time            `json:"issuanceDate"`
	ExpirationDate    *time.Time           `json:"expirationDate,omitempty"`
}

// HasType reports whether the payload declares t.
func (p *CredentialPayload) HasType(t string) bool {
	return slices.Contains(p.Type, t)
}

// SubjectID returns the id of the first subject.
func (p *CredentialPayload) SubjectID() string {
	if s := p.CredentialSubject.First(); s != nil {
		return s.ID
	}
	return ""
}

// IssuerID returns the issuer id, or "".
func (p *CredentialPayload) IssuerID() string {
	if p.Issuer == nil {
		return ""
	}
	return p.Issuer.ID
}
