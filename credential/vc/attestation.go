package vc

import (
	"encoding/json"
	"fmt"
	"maps"
	"time"
)

// Attestation type names. Each doubles as the credentialSubject key the
// attestation is embedded under and as a manifest output descriptor id.
const (
	KYCAMLAttestationType      = "KYCAMLAttestation"
	CreditScoreAttestationType = "CreditScoreAttestation"
)

// Attestation is a claim an issuer makes about a subject.
type Attestation interface {
	AttestationType() string
}

// KYCAMLAttestation records that a subject passed KYC/AML checks.
type KYCAMLAttestation struct {
	AuthorityID          string     `json:"authorityId"`
	ApprovalDate         time.Time  `json:"approvalDate"`
	AuthorityName        string     `json:"authorityName"`
	AuthorityURL         string     `json:"authorityUrl"`
	AuthorityCallbackURL string     `json:"authorityCallbackUrl"`
	ServiceProviders     []Provider `json:"serviceProviders,omitempty"`
	ExpirationDate       *time.Time `json:"expirationDate,omitempty"`
}

// Provider names a third party that took part in a KYC/AML check.
type Provider struct {
	Name  string `json:"name"`
	Score int    `json:"score,omitempty"`
}

func (KYCAMLAttestation) AttestationType() string { return KYCAMLAttestationType }

// MarshalJSON adds the "type" discriminant.
func (a KYCAMLAttestation) MarshalJSON() ([]byte, error) {
	type plain KYCAMLAttestation
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{a.AttestationType(), plain(a)})
}

// CreditScoreAttestation carries a credit score.
type CreditScoreAttestation struct {
	Score     int    `json:"score"`
	ScoreType string `json:"scoreType"`
	Provider  string `json:"provider"`
}

func (CreditScoreAttestation) AttestationType() string { return CreditScoreAttestationType }

// MarshalJSON adds the "type" discriminant.
func (a CreditScoreAttestation) MarshalJSON() ([]byte, error) {
	type plain CreditScoreAttestation
	return json.Marshal(struct {
		Type string `json:"type"`
		plain
	}{a.AttestationType(), plain(a)})
}

// CustomAttestation holds any other attestation verbatim. An empty Type
// marks plain subject claims that are merged into the subject object.
type CustomAttestation struct {
	Type   string
	Fields map[string]any
}

func (a CustomAttestation) AttestationType() string { return a.Type }

// MarshalJSON writes Fields with "type" set to Type.
func (a CustomAttestation) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(a.Fields)+1)
	maps.Copy(out, a.Fields)
	if a.Type != "" {
		out["type"] = a.Type
	}
	return json.Marshal(out)
}

// decodeAttestation turns the object found under a subject key into a typed
// attestation. It reports false when the value is not an attestation.
func decodeAttestation(key string, raw json.RawMessage) (Attestation, bool, error) {
	switch key {
	case KYCAMLAttestationType:
		var a KYCAMLAttestation
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, false, fmt.Errorf("invalid %s: %w", key, err)
		}
		return a, true, nil
	case CreditScoreAttestationType:
		var a CreditScoreAttestation
		if err := json.Unmarshal(raw, &a); err != nil {
			return nil, false, fmt.Errorf("invalid %s: %w", key, err)
		}
		return a, true, nil
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, false, nil
	}
	if t, _ := fields["type"].(string); t == key {
		delete(fields, "type")
		return CustomAttestation{Type: key, Fields: fields}, true, nil
	}
	return nil, false, nil
}
