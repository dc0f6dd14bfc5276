package exchange

import (
	"context"
	"errors"
	"fmt"

	credentialstatus "github.com/pilacorp/go-credential-exchange/credential/common/credential-status"
	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
	"github.com/pilacorp/go-credential-exchange/credential/vp"
)

// ErrCredentialRevoked is returned when a presented credential's status list
// bit is set.
var ErrCredentialRevoked = errors.New("credential revoked")

// StatusChecker reports the status of a verified credential. Implementations
// must only accept status lists published by the credential's issuer, as
// credentialstatus.Checker does.
type StatusChecker interface {
	CheckCredential(ctx context.Context, cred *vc.Credential) (credentialstatus.Status, error)
}

// PresentationOpt configures VerifyPresentation.
type PresentationOpt func(*presentationOptions)

type presentationOptions struct {
	status        StatusChecker
	holderBinding bool
}

// WithStatusChecker consults checker for every credential that carries a
// credentialStatus.
func WithStatusChecker(checker StatusChecker) PresentationOpt {
	return func(o *presentationOptions) {
		o.status = checker
	}
}

// WithHolderBinding requires every credential subject to be the VP signer.
func WithHolderBinding() PresentationOpt {
	return func(o *presentationOptions) {
		o.holderBinding = true
	}
}

// VerifyPresentation verifies a presentation submitted to a verifier: the VP
// signature, every embedded credential and, when configured, holder binding
// and revocation status.
func VerifyPresentation(ctx context.Context, token string, verifier *jwt.Verifier, opts ...PresentationOpt) (*vp.Presentation, error) {
	o := &presentationOptions{}
	for _, opt := range opts {
		opt(o)
	}

	p, err := vp.DecodeAndVerify(ctx, token, verifier)
	if err != nil {
		return nil, err
	}

	for i, c := range p.Credentials {
		payload := c.Payload()
		if o.holderBinding && payload.SubjectID() != p.Claims.Issuer {
			return nil, verification.Newf(verification.KindConstraintViolation,
				"credential %d: subject %s is not the presenter %s", i, payload.SubjectID(), p.Claims.Issuer)
		}
		if o.status == nil || payload.CredentialStatus == nil {
			continue
		}
		status, err := o.status.CheckCredential(ctx, c)
		if err != nil {
			return nil, err
		}
		if status.Revoked || status.Suspended {
			return nil, &verification.Error{
				Kind:    verification.KindConstraintViolation,
				Message: fmt.Sprintf("credential %d (%s)", i, payload.ID),
				Err:     ErrCredentialRevoked,
			}
		}
	}
	return p, nil
}
