package credentialstatus

import (
	"fmt"
	"strconv"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
)

// Entry returns the credentialStatus pointing at index of the list published
// at listURL.
func Entry(listURL, purpose string, index int) *vc.StatusList2021Entry {
	return &vc.StatusList2021Entry{
		ID:                   fmt.Sprintf("%s#%d", listURL, index),
		Type:                 StatusList2021EntryType,
		StatusPurpose:        purpose,
		StatusListIndex:      strconv.Itoa(index),
		StatusListCredential: listURL,
	}
}

// BuildStatusListCredential returns the unsigned credential publishing list
// at listURL. opts are applied after the status list fields.
func BuildStatusListCredential(issuerDID, listURL, purpose string, list *StatusList, opts ...vc.PayloadOpt) (vc.CredentialPayload, error) {
	encoded, err := list.Encode()
	if err != nil {
		return vc.CredentialPayload{}, err
	}
	subject := ListSubject{
		ID:            listURL + "#list",
		Type:          StatusList2021Type,
		StatusPurpose: purpose,
		EncodedList:   encoded,
	}
	base := []vc.PayloadOpt{
		vc.WithContext(vc.StatusList2021Context),
		vc.WithID(listURL),
		vc.WithType(StatusList2021CredentialType),
		vc.WithIssuer(issuerDID),
		vc.WithSubjects(vc.CredentialSubjects{Subjects: []vc.CredentialSubject{subject.subject()}}),
	}
	return vc.BuildCredentialPayload(append(base, opts...)...), nil
}

// SignStatusListCredential builds and signs the status list credential of
// list. The result is what listURL serves.
func SignStatusListCredential(signer jwt.Signer, listURL, purpose string, list *StatusList, opts ...vc.PayloadOpt) (string, error) {
	payload, err := BuildStatusListCredential(signer.DID(), listURL, purpose, list, opts...)
	if err != nil {
		return "", err
	}
	return vc.Encode(payload, signer)
}
