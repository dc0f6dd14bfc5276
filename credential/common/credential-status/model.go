package credentialstatus

import (
	"fmt"

	"github.com/pilacorp/go-credential-exchange/credential/vc"
)

// StatusList2021 type names and purposes.
const (
	StatusList2021CredentialType = "StatusList2021Credential"
	StatusList2021Type           = "StatusList2021"
	StatusList2021EntryType      = "StatusList2021Entry"

	PurposeRevocation = "revocation"
	PurposeSuspension = "suspension"
)

// Status is the state of one credential in its status list.
type Status struct {
	Revoked   bool
	Suspended bool
}

// ListSubject is the credentialSubject of a status list credential.
type ListSubject struct {
	ID            string
	Type          string
	StatusPurpose string
	EncodedList   string
}

// listSubjectFrom reads the status list fields out of a decoded subject.
func listSubjectFrom(s vc.CredentialSubject) (ListSubject, error) {
	out := ListSubject{ID: s.ID}
	for key, dst := range map[string]*string{
		"type":          &out.Type,
		"statusPurpose": &out.StatusPurpose,
		"encodedList":   &out.EncodedList,
	} {
		v, ok := s.Claims[key]
		if !ok {
			continue
		}
		str, ok := v.(string)
		if !ok {
			return ListSubject{}, fmt.Errorf("credentialSubject.%s is not a string", key)
		}
		*dst = str
	}
	if out.Type != StatusList2021Type {
		return ListSubject{}, fmt.Errorf("credentialSubject type is %q, want %s", out.Type, StatusList2021Type)
	}
	if out.EncodedList == "" {
		return ListSubject{}, fmt.Errorf("credentialSubject.encodedList is empty")
	}
	return out, nil
}

func (s ListSubject) subject() vc.CredentialSubject {
	return vc.CredentialSubject{
		ID: s.ID,
		Claims: map[string]any{
			"type":          s.Type,
			"statusPurpose": s.StatusPurpose,
			"encodedList":   s.EncodedList,
		},
	}
}
