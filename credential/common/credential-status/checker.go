package credentialstatus

import (
	"context"
	"strconv"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
)

// decodedList is a verified status list credential.
type decodedList struct {
	issuer  string
	purpose string
	list    *StatusList
}

// Checker resolves StatusList2021 entries. Verified lists are cached per URL
// and concurrent fetches of one URL are collapsed.
type Checker struct {
	verifier *jwt.Verifier
	fetcher  Fetcher
	cache    *cache.Cache
	group    singleflight.Group
	maxSize  int64
}

// CheckerOpt configures a Checker.
type CheckerOpt func(*Checker)

// WithFetcher replaces the default HTTP fetcher.
func WithFetcher(f Fetcher) CheckerOpt {
	return func(c *Checker) {
		c.fetcher = f
	}
}

// WithListCacheTTL sets how long a verified list is reused. Zero disables
// caching.
func WithListCacheTTL(ttl time.Duration) CheckerOpt {
	return func(c *Checker) {
		if ttl <= 0 {
			c.cache = nil
			return
		}
		c.cache = cache.New(ttl, 2*ttl)
	}
}

// WithMaxListSize bounds the decompressed size of a list in bytes.
func WithMaxListSize(n int64) CheckerOpt {
	return func(c *Checker) {
		c.maxSize = n
	}
}

// NewChecker returns a Checker verifying list credentials with verifier.
func NewChecker(verifier *jwt.Verifier, opts ...CheckerOpt) *Checker {
	c := &Checker{
		verifier: verifier,
		fetcher:  NewHTTPFetcher(10*time.Second, nil),
		cache:    cache.New(5*time.Minute, 10*time.Minute),
		maxSize:  16 << 20,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check returns the status of the credential entry points at. A list that
// cannot be fetched fails with StatusListUnavailable; a list that fails
// verification keeps the verification kind.
func (c *Checker) Check(ctx context.Context, entry *vc.StatusList2021Entry) (Status, error) {
	list, index, err := c.resolve(ctx, entry)
	if err != nil {
		return Status{}, err
	}
	set, err := list.list.Get(index)
	if err != nil {
		return Status{}, verification.Wrap(err, verification.KindMalformedToken, "statusListIndex")
	}
	if list.purpose == PurposeSuspension {
		return Status{Suspended: set}, nil
	}
	return Status{Revoked: set}, nil
}

// CheckCredential checks the status of cred and requires its status list to
// be published by the credential's issuer. A credential without
// credentialStatus is reported as active.
func (c *Checker) CheckCredential(ctx context.Context, cred *vc.Credential) (Status, error) {
	payload := cred.Payload()
	if payload.CredentialStatus == nil {
		return Status{}, nil
	}
	list, _, err := c.resolve(ctx, payload.CredentialStatus)
	if err != nil {
		return Status{}, err
	}
	if list.issuer != payload.IssuerID() {
		return Status{}, verification.Newf(verification.KindInvalidSignature,
			"status list issued by %s, credential by %s", list.issuer, payload.IssuerID())
	}
	return c.Check(ctx, payload.CredentialStatus)
}

// IsRevoked reports whether the entry is revoked or suspended.
func (c *Checker) IsRevoked(ctx context.Context, entry *vc.StatusList2021Entry) (bool, error) {
	s, err := c.Check(ctx, entry)
	if err != nil {
		return false, err
	}
	return s.Revoked || s.Suspended, nil
}

func (c *Checker) resolve(ctx context.Context, entry *vc.StatusList2021Entry) (*decodedList, int, error) {
	if entry == nil {
		return nil, 0, verification.New(verification.KindMalformedToken, "credentialStatus is missing")
	}
	if entry.Type != "" && entry.Type != StatusList2021EntryType {
		return nil, 0, verification.Newf(verification.KindMalformedToken, "unsupported credentialStatus type %q", entry.Type)
	}
	index, err := strconv.Atoi(entry.StatusListIndex)
	if err != nil || index < 0 {
		return nil, 0, verification.Newf(verification.KindMalformedToken, "invalid statusListIndex %q", entry.StatusListIndex)
	}
	list, err := c.load(ctx, entry.StatusListCredential)
	if err != nil {
		return nil, 0, err
	}
	if entry.StatusPurpose != "" && entry.StatusPurpose != list.purpose {
		return nil, 0, verification.Newf(verification.KindMalformedToken,
			"entry purpose %q does not match list purpose %q", entry.StatusPurpose, list.purpose)
	}
	return list, index, nil
}

func (c *Checker) load(ctx context.Context, url string) (*decodedList, error) {
	if c.cache != nil {
		if v, ok := c.cache.Get(url); ok {
			return v.(*decodedList), nil
		}
	}
	v, err, _ := c.group.Do(url, func() (any, error) {
		token, err := c.fetcher.Fetch(ctx, url)
		if err != nil {
			return nil, verification.Wrap(err, verification.KindStatusListUnavailable, "status list "+url)
		}
		list, err := c.decode(ctx, token)
		if err != nil {
			return nil, err
		}
		if c.cache != nil {
			c.cache.SetDefault(url, list)
		}
		return list, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*decodedList), nil
}

func (c *Checker) decode(ctx context.Context, token string) (*decodedList, error) {
	cred, err := vc.DecodeAndVerify(ctx, token, c.verifier)
	if err != nil {
		return nil, err
	}
	payload := cred.Payload()
	if !payload.HasType(StatusList2021CredentialType) {
		return nil, verification.Newf(verification.KindMalformedToken, "credential %s is not a %s", payload.ID, StatusList2021CredentialType)
	}
	first := payload.CredentialSubject.First()
	if first == nil {
		return nil, verification.New(verification.KindMalformedToken, "status list credential has no subject")
	}
	subject, err := listSubjectFrom(*first)
	if err != nil {
		return nil, verification.Wrap(err, verification.KindMalformedToken, "status list credential")
	}
	list, err := DecodeStatusList(subject.EncodedList, c.maxSize)
	if err != nil {
		return nil, verification.Wrap(err, verification.KindMalformedToken, "status list credential")
	}
	purpose := subject.StatusPurpose
	if purpose == "" {
		purpose = PurposeRevocation
	}
	return &decodedList{issuer: payload.IssuerID(), purpose: purpose, list: list}, nil
}
