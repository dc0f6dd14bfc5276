// Package issuance is the issuer side of the exchange: it routes Credential
// Applications to a manifest, evaluates them and answers with a signed
// fulfillment over HTTP.
package issuance

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/common/schema"
	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
	"github.com/pilacorp/go-credential-exchange/credential/exchange"
	"github.com/pilacorp/go-credential-exchange/credential/manifest"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
	"github.com/pilacorp/go-credential-exchange/internal/log"
)

// Result is an issued fulfillment.
type Result struct {
	Token      string
	ManifestID string
	Exchange   *exchange.Exchange
	// Digest is the URDNA2015 digest of the first issued credential, when
	// digests are enabled and the credential could be canonicalized.
	Digest string
}

// Service issues credentials for Credential Applications.
type Service struct {
	issuer    jwt.Signer
	registry  *Registry
	evaluator *manifest.Evaluator
	metrics   *Metrics
	tracer    trace.Tracer
	ttl       time.Duration
	status    func(i int) *vc.StatusList2021Entry
	digest    []schema.ProcessorOpt
	digestOn  bool
}

// ServiceOpt configures a Service.
type ServiceOpt func(*Service)

// WithMetrics records request outcomes in m.
func WithMetrics(m *Metrics) ServiceOpt {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithCredentialLifetime sets the expiration of issued credentials.
func WithCredentialLifetime(d time.Duration) ServiceOpt {
	return func(s *Service) {
		s.ttl = d
	}
}

// WithStatusEntries attaches status list entries to issued credentials.
func WithStatusEntries(alloc func(i int) *vc.StatusList2021Entry) ServiceOpt {
	return func(s *Service) {
		s.status = alloc
	}
}

// WithCredentialDigest computes the canonical digest of issued credentials.
func WithCredentialDigest(opts ...schema.ProcessorOpt) ServiceOpt {
	return func(s *Service) {
		s.digestOn = true
		s.digest = opts
	}
}

// NewService returns a Service signing fulfillments with issuer.
func NewService(issuer jwt.Signer, registry *Registry, evaluator *manifest.Evaluator, opts ...ServiceOpt) *Service {
	s := &Service{
		issuer:    issuer,
		registry:  registry,
		evaluator: evaluator,
		tracer:    otel.Tracer("github.com/pilacorp/go-credential-exchange/issuance"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Registry returns the manifest registry.
func (s *Service) Registry() *Registry {
	return s.registry
}

// Issue handles one application body. The manifest is picked from the
// unverified application; nothing else is read before the evaluator has
// verified it.
func (s *Service) Issue(ctx context.Context, body []byte) (_ *Result, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "issuance.Issue")
	manifestID := "unknown"
	defer func() {
		outcome, kind := classify(err)
		s.metrics.observe(manifestID, outcome, kind, start)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, outcome)
		}
		span.End()
	}()

	app, err := exchange.DecodeCredentialApplication(body)
	if err != nil {
		log.Warn(ctx, "undecodable credential application", "err", err)
		return nil, err
	}

	route, err := s.registry.Lookup(app.ManifestID())
	if err != nil {
		log.Warn(ctx, "application for unknown manifest", "manifest", app.ManifestID())
		return nil, err
	}
	manifestID = route.Manifest.ID
	span.SetAttributes(attribute.String("manifest.id", manifestID))

	ex := exchange.NewExchange(uuid.NewString(), manifestID)
	ctx = log.With(ctx, "exchange", ex.ID, "manifest", manifestID)
	defer func() {
		if err != nil {
			_ = ex.Fail(err)
			log.Info(ctx, "exchange failed", "state", ex.State(), "kind", ex.FailureKind())
		}
	}()
	if err := s.advance(ctx, ex, exchange.StateApplicationDecoded); err != nil {
		return nil, err
	}

	verified, err := s.evaluator.Evaluate(ctx, app, &route.Manifest)
	if err != nil {
		return nil, err
	}
	if err := s.advance(ctx, ex, exchange.StateApplicationEvaluated); err != nil {
		return nil, err
	}

	attestations, err := route.Build(ctx, verified)
	if err != nil {
		return nil, err
	}

	opts := []exchange.FulfillmentOpt{exchange.WithManifest(&route.Manifest)}
	if s.ttl > 0 {
		opts = append(opts, exchange.WithCredentialTTL(s.ttl))
	}
	if s.status != nil {
		opts = append(opts, exchange.WithStatusAllocator(s.status))
	}
	f, err := exchange.IssueFulfillment(s.issuer, verified, attestations, opts...)
	if err != nil {
		return nil, err
	}
	if err := s.advance(ctx, ex, exchange.StateFulfillmentIssued); err != nil {
		return nil, err
	}

	res := &Result{Token: f.Token, ManifestID: manifestID, Exchange: ex}
	if s.digestOn && len(f.Credentials) > 0 {
		digest, err := vc.CanonicalDigest(*f.Credentials[0].Payload(), s.digest...)
		if err != nil {
			log.Warn(ctx, "credential digest unavailable", "err", err)
		} else {
			res.Digest = digest
		}
	}
	log.Info(ctx, "fulfillment issued", "holder", verified.Holder(), "credentials", len(f.Credentials))
	return res, nil
}

func (s *Service) advance(ctx context.Context, ex *exchange.Exchange, next exchange.State) error {
	from := ex.State()
	if err := ex.Advance(next); err != nil {
		return err
	}
	log.Debug(ctx, "exchange state", "from", from, "to", next)
	return nil
}

func classify(err error) (outcome, kind string) {
	switch {
	case err == nil:
		return OutcomeIssued, ""
	case errors.Is(err, ErrUnknownManifest):
		return OutcomeUnknownManifest, ""
	case verification.KindOf(err) != "":
		return OutcomeRejected, string(verification.KindOf(err))
	default:
		return OutcomeError, ""
	}
}
