package vc

import (
	"slices"
	"time"

	"github.com/pilacorp/go-credential-exchange/credential/common/util"
)

// PayloadOpt sets one field of a credential payload under construction.
type PayloadOpt func(*payloadOptions)

type payloadOptions struct {
	id               string
	types            []string
	issuer           *IssuerRef
	subject          CredentialSubjects
	credentialSchema *CredentialSchema
	credentialStatus *StatusList2021Entry
	refreshService   *RefreshService
	evidence         []any
	issuanceDate     time.Time
	expirationDate   *time.Time
	contexts         []any
	now              func() time.Time
}

// WithType appends credential types. The base type is filtered out since it
// is always present.
func WithType(types ...string) PayloadOpt {
	return func(o *payloadOptions) {
		for _, t := range types {
			if t != VerifiableCredentialType {
				o.types = append(o.types, t)
			}
		}
	}
}

// WithAttestation sets a single subject object {id, <type>: attestation}.
func WithAttestation(subjectDID string, attestation Attestation) PayloadOpt {
	return func(o *payloadOptions) {
		o.subject = CredentialSubjects{
			Subjects: []CredentialSubject{{ID: subjectDID, Attestation: attestation}},
		}
	}
}

// WithAttestations sets an array of subject objects, one per attestation,
// even when only one attestation is given.
func WithAttestations(subjectDID string, attestations ...Attestation) PayloadOpt {
	return func(o *payloadOptions) {
		subjects := make([]CredentialSubject, 0, len(attestations))
		for _, a := range attestations {
			subjects = append(subjects, CredentialSubject{ID: subjectDID, Attestation: a})
		}
		o.subject = CredentialSubjects{Subjects: subjects, Array: true}
	}
}

// WithSubjects sets credentialSubject verbatim.
func WithSubjects(subjects CredentialSubjects) PayloadOpt {
	return func(o *payloadOptions) {
		o.subject = subjects
	}
}

// WithIssuer sets issuer to {id: issuerDID}.
func WithIssuer(issuerDID string) PayloadOpt {
	return func(o *payloadOptions) {
		o.issuer = &IssuerRef{ID: issuerDID}
	}
}

func WithID(id string) PayloadOpt {
	return func(o *payloadOptions) {
		o.id = id
	}
}

func WithCredentialSchema(schema *CredentialSchema) PayloadOpt {
	return func(o *payloadOptions) {
		o.credentialSchema = schema
	}
}

// WithCredentialStatus sets the status entry and adds the StatusList2021
// context.
func WithCredentialStatus(status *StatusList2021Entry) PayloadOpt {
	return func(o *payloadOptions) {
		o.credentialStatus = status
	}
}

func WithRefreshService(rs *RefreshService) PayloadOpt {
	return func(o *payloadOptions) {
		o.refreshService = rs
	}
}

// WithEvidence sets evidence. The slice is copied.
func WithEvidence(evidence ...any) PayloadOpt {
	return func(o *payloadOptions) {
		o.evidence = slices.Clone(evidence)
	}
}

func WithIssuanceDate(t time.Time) PayloadOpt {
	return func(o *payloadOptions) {
		o.issuanceDate = t
	}
}

func WithExpirationDate(t time.Time) PayloadOpt {
	return func(o *payloadOptions) {
		o.expirationDate = &t
	}
}

// WithContext appends extra JSON-LD contexts after the base one.
func WithContext(contexts ...any) PayloadOpt {
	return func(o *payloadOptions) {
		o.contexts = append(o.contexts, contexts...)
	}
}

// WithBuildClock replaces the clock used for the default issuance date.
func WithBuildClock(now func() time.Time) PayloadOpt {
	return func(o *payloadOptions) {
		o.now = now
	}
}

// BuildCredentialPayload assembles a payload from opts. It never fails: the
// payload is not validated here. Unset issuanceDate defaults to now,
// truncated to whole seconds.
func BuildCredentialPayload(opts ...PayloadOpt) CredentialPayload {
	o := &payloadOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	contexts := []any{CredentialsContextV1}
	if o.credentialStatus != nil {
		contexts = append(contexts, StatusList2021Context)
	}
	for _, c := range o.contexts {
		if s, ok := c.(string); ok && slices.Contains(contexts, any(s)) {
			continue
		}
		contexts = append(contexts, c)
	}

	issuanceDate := o.issuanceDate
	if issuanceDate.IsZero() {
		issuanceDate = o.now().UTC().Truncate(time.Second)
	}

	return CredentialPayload{
		Context:           contexts,
		ID:                o.id,
		Type:              util.AppendUnique([]string{VerifiableCredentialType}, o.types...),
		Issuer:            o.issuer,
		CredentialSubject: o.subject,
		CredentialSchema:  o.credentialSchema,
		CredentialStatus:  o.credentialStatus,
		RefreshService:    o.refreshService,
		Evidence:          o.evidence,
		IssuanceDate:      issuanceDate,
		ExpirationDate:    o.expirationDate,
	}
}
