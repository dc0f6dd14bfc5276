package manifest

import (
	"context"
	"slices"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
)

const tracerName = "github.com/pilacorp/go-credential-exchange/credential/manifest"

// Evaluator checks Credential Applications against manifests. It judges
// structure and cryptography only; whether a subject deserves an
// attestation is up to the caller.
type Evaluator struct {
	verifier *jwt.Verifier
	accepted []string
	tracer   trace.Tracer
}

// EvaluatorOpt configures an Evaluator.
type EvaluatorOpt func(*Evaluator)

// WithAcceptedAlgorithms sets the jwt_vc algorithms the evaluator accepts.
// It defaults to the verifier's algorithms.
func WithAcceptedAlgorithms(algs ...string) EvaluatorOpt {
	return func(e *Evaluator) {
		e.accepted = slices.Clone(algs)
	}
}

// WithTracer sets the tracer used for evaluation spans.
func WithTracer(t trace.Tracer) EvaluatorOpt {
	return func(e *Evaluator) {
		e.tracer = t
	}
}

// NewEvaluator creates an Evaluator that verifies tokens with verifier.
func NewEvaluator(verifier *jwt.Verifier, opts ...EvaluatorOpt) *Evaluator {
	e := &Evaluator{
		verifier: verifier,
		accepted: verifier.Algorithms(),
		tracer:   otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Verifier returns the token verifier.
func (e *Evaluator) Verifier() *jwt.Verifier {
	return e.verifier
}

// EvaluateCredentialApplication verifies an application token and evaluates
// it against m.
func (e *Evaluator) EvaluateCredentialApplication(ctx context.Context, token string, m *CredentialManifest) (*Application, error) {
	app, err := DecodeAndVerifyApplication(ctx, token, e.verifier)
	if err != nil {
		return nil, err
	}
	return e.Evaluate(ctx, app, m)
}

// Evaluate checks, in order: manifest binding, declared algorithms, embedded
// credentials and the presentation submission. An application that has not
// been verified yet is verified first.
func (e *Evaluator) Evaluate(ctx context.Context, app *Application, m *CredentialManifest) (_ *Application, err error) {
	ctx, span := e.tracer.Start(ctx, "manifest.Evaluate", trace.WithAttributes(
		attribute.String("manifest.id", m.ID),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, string(verification.KindOf(err)))
		}
		span.End()
	}()

	if app == nil {
		return nil, verification.New(verification.KindMalformedToken, "application is nil")
	}
	if app.ManifestID() != m.ID {
		return nil, verification.Newf(verification.KindManifestMismatch, "application is for manifest %q, not %q", app.ManifestID(), m.ID)
	}
	if err := e.checkAlgorithms(app, m); err != nil {
		return nil, err
	}

	if !app.Verified() {
		verified, err := DecodeAndVerifyApplication(ctx, app.Token, e.verifier)
		if err != nil {
			return nil, err
		}
		app = verified
	}

	if err := e.checkSubmission(app, m); err != nil {
		return nil, err
	}
	span.SetAttributes(attribute.Int("application.credentials", len(app.Credentials)))
	return app, nil
}

// ValidateCredentialApplication is Evaluate without the result.
func (e *Evaluator) ValidateCredentialApplication(ctx context.Context, app *Application, m *CredentialManifest) error {
	_, err := e.Evaluate(ctx, app, m)
	return err
}

func (e *Evaluator) checkAlgorithms(app *Application, m *CredentialManifest) error {
	declared := app.Claims.CredentialApplication.Format.VCAlgorithms()
	if len(declared) == 0 {
		return verification.New(verification.KindUnsupportedAlgorithm, "application declares no jwt_vc algorithms")
	}
	offered := m.Format.VCAlgorithms()
	for _, alg := range declared {
		if !slices.Contains(e.accepted, alg) {
			return verification.Newf(verification.KindUnsupportedAlgorithm, "algorithm %q is not accepted", alg)
		}
		if len(offered) > 0 && !slices.Contains(offered, alg) {
			return verification.Newf(verification.KindUnsupportedAlgorithm, "manifest %s does not issue %q credentials", m.ID, alg)
		}
	}

	vpAlgs := m.Format.VPAlgorithms()
	if m.PresentationDefinition != nil && m.PresentationDefinition.Format.VPAlgorithms() != nil {
		vpAlgs = m.PresentationDefinition.Format.VPAlgorithms()
	}
	if app.Algorithm != "" && len(vpAlgs) > 0 && !slices.Contains(vpAlgs, app.Algorithm) {
		return verification.Newf(verification.KindUnsupportedAlgorithm, "application signed with %q", app.Algorithm)
	}
	return nil
}

func (e *Evaluator) checkSubmission(app *Application, m *CredentialManifest) error {
	pd := m.PresentationDefinition
	if pd == nil || len(pd.InputDescriptors) == 0 {
		return nil
	}
	sub := app.Claims.PresentationSubmission
	if sub == nil {
		return verification.New(verification.KindConstraintViolation, "presentation_submission is missing")
	}
	if sub.DefinitionID != pd.ID {
		return verification.Newf(verification.KindManifestMismatch, "submission answers definition %q, not %q", sub.DefinitionID, pd.ID)
	}

	doc, err := newDocument(app.Claims)
	if err != nil {
		return verification.Wrap(err, verification.KindMalformedToken, "application claims")
	}

	covered := make(map[string]bool, len(sub.DescriptorMap))
	for _, d := range sub.DescriptorMap {
		desc, ok := m.InputDescriptor(d.ID)
		if !ok {
			return verification.Newf(verification.KindConstraintViolation, "descriptor %q is not in the presentation definition", d.ID)
		}
		if d.Format != FormatJWTVP && d.Format != FormatJWTVC {
			return verification.Newf(verification.KindUnsupportedAlgorithm, "descriptor %q has unsupported format %q", d.ID, d.Format)
		}
		input, err := resolveInput(doc, d)
		if err != nil {
			return err
		}
		if err := checkConstraints(input, desc); err != nil {
			return err
		}
		covered[d.ID] = true
	}
	for _, desc := range pd.InputDescriptors {
		if !covered[desc.ID] {
			return verification.Newf(verification.KindConstraintViolation, "input descriptor %q is not answered", desc.ID)
		}
	}
	return nil
}
