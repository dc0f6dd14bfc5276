package credentialstatus

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/credential/common/verification"
	"github.com/pilacorp/go-credential-exchange/credential/vc"
	"github.com/pilacorp/go-credential-exchange/did"
	"github.com/pilacorp/go-credential-exchange/did/resolver"
	"github.com/pilacorp/go-credential-exchange/did/signer"
)

func newSigner(t *testing.T) signer.Signer {
	t.Helper()
	key, err := did.RandomDidKey(nil)
	require.NoError(t, err)
	s, err := signer.FromDidKey(key)
	require.NoError(t, err)
	return s
}

type listServer struct {
	*httptest.Server
	hits   atomic.Int32
	tokens map[string]string
}

func newListServer(t *testing.T) *listServer {
	t.Helper()
	s := &listServer{tokens: map[string]string{}}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.hits.Add(1)
		token, ok := s.tokens[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("format") {
		case "envelope":
			fmt.Fprintf(w, `{"data":%q}`, token)
		default:
			fmt.Fprint(w, token)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *listServer) publish(t *testing.T, issuer signer.Signer, path, purpose string, set ...int) string {
	t.Helper()
	list := NewStatusList(0)
	for _, i := range set {
		require.NoError(t, list.Set(i, true))
	}
	url := s.URL + path
	token, err := SignStatusListCredential(issuer, url, purpose, list)
	require.NoError(t, err)
	s.tokens[path] = token
	return url
}

func testVerifier() *jwt.Verifier {
	return jwt.NewVerifier(resolver.NewKeyResolver())
}

func TestBuildStatusListCredential(t *testing.T) {
	list := NewStatusList(0)
	require.NoError(t, list.Set(3, true))
	payload, err := BuildStatusListCredential("did:key:issuer", "https://example.com/status/1", PurposeRevocation, list)
	require.NoError(t, err)

	assert.Equal(t, []string{"VerifiableCredential", StatusList2021CredentialType}, []string(payload.Type))
	assert.Contains(t, payload.Context, any(vc.StatusList2021Context))
	assert.Equal(t, "https://example.com/status/1", payload.ID)

	subject, err := listSubjectFrom(*payload.CredentialSubject.First())
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/status/1#list", subject.ID)
	assert.Equal(t, PurposeRevocation, subject.StatusPurpose)

	decoded, err := DecodeStatusList(subject.EncodedList, 1<<20)
	require.NoError(t, err)
	got, err := decoded.Get(3)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestCheck(t *testing.T) {
	issuer := newSigner(t)
	srv := newListServer(t)
	revocation := srv.publish(t, issuer, "/status/1", PurposeRevocation, 5, 100)
	suspension := srv.publish(t, issuer, "/status/2", PurposeSuspension, 6)

	checker := NewChecker(testVerifier(), WithFetcher(NewHTTPFetcher(time.Second, nil)))
	tests := []struct {
		name  string
		entry *vc.StatusList2021Entry
		want  Status
	}{
		{"revoked", Entry(revocation, PurposeRevocation, 5), Status{Revoked: true}},
		{"revoked without purpose", Entry(revocation, "", 100), Status{Revoked: true}},
		{"active", Entry(revocation, PurposeRevocation, 6), Status{}},
		{"suspended", Entry(suspension, PurposeSuspension, 6), Status{Suspended: true}},
		{"not suspended", Entry(suspension, PurposeSuspension, 5), Status{}},
		{"envelope body", Entry(revocation+"?format=envelope", PurposeRevocation, 5), Status{Revoked: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := checker.Check(context.Background(), tt.entry)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCheckErrors(t *testing.T) {
	issuer := newSigner(t)
	srv := newListServer(t)
	url := srv.publish(t, issuer, "/status/1", PurposeRevocation, 1)

	tampered := srv.publish(t, issuer, "/status/tampered", PurposeRevocation)
	forged, err := SignStatusListCredential(newSigner(t), tampered, PurposeRevocation, NewStatusList(0))
	require.NoError(t, err)
	parts := strings.Split(srv.tokens["/status/tampered"], ".")
	parts[2] = strings.Split(forged, ".")[2]
	srv.tokens["/status/tampered"] = strings.Join(parts, ".")

	notAList, err := vc.Encode(vc.BuildCredentialPayload(vc.WithAttestation("did:key:holder", vc.CreditScoreAttestation{Score: 90})), issuer)
	require.NoError(t, err)
	srv.tokens["/status/plain"] = notAList

	checker := NewChecker(testVerifier(), WithFetcher(NewHTTPFetcher(time.Second, nil)))
	tests := []struct {
		name  string
		entry *vc.StatusList2021Entry
		kind  verification.Kind
	}{
		{"missing list", Entry(srv.URL+"/status/missing", PurposeRevocation, 1), verification.KindStatusListUnavailable},
		{"index out of range", Entry(url, PurposeRevocation, MinListLength), verification.KindMalformedToken},
		{"index not a number", &vc.StatusList2021Entry{StatusListIndex: "one", StatusListCredential: url}, verification.KindMalformedToken},
		{"wrong entry type", &vc.StatusList2021Entry{Type: "RevocationList2020Status", StatusListIndex: "1", StatusListCredential: url}, verification.KindMalformedToken},
		{"purpose mismatch", Entry(url, PurposeSuspension, 1), verification.KindMalformedToken},
		{"tampered list", Entry(tampered, PurposeRevocation, 1), verification.KindInvalidSignature},
		{"not a status list", Entry(srv.URL+"/status/plain", PurposeRevocation, 1), verification.KindMalformedToken},
		{"nil entry", nil, verification.KindMalformedToken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := checker.Check(context.Background(), tt.entry)
			require.Error(t, err)
			assert.Equal(t, tt.kind, verification.KindOf(err), err.Error())
		})
	}

	_, err = checker.Check(context.Background(), Entry(srv.URL+"/status/missing", PurposeRevocation, 1))
	var verr *verification.Error
	require.True(t, errors.As(err, &verr))
	assert.True(t, verr.Retryable())
}

func TestCheckCachesLists(t *testing.T) {
	issuer := newSigner(t)
	srv := newListServer(t)
	url := srv.publish(t, issuer, "/status/1", PurposeRevocation, 2)

	checker := NewChecker(testVerifier(), WithFetcher(NewHTTPFetcher(time.Second, nil)))
	for i := 0; i < 5; i++ {
		revoked, err := checker.IsRevoked(context.Background(), Entry(url, PurposeRevocation, i))
		require.NoError(t, err)
		assert.Equal(t, i == 2, revoked)
	}
	assert.Equal(t, int32(1), srv.hits.Load())

	uncached := NewChecker(testVerifier(), WithFetcher(NewHTTPFetcher(time.Second, nil)), WithListCacheTTL(0))
	for i := 0; i < 2; i++ {
		_, err := uncached.IsRevoked(context.Background(), Entry(url, PurposeRevocation, 0))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(3), srv.hits.Load())
}

func TestCheckCredential(t *testing.T) {
	issuer := newSigner(t)
	srv := newListServer(t)
	url := srv.publish(t, issuer, "/status/1", PurposeRevocation, 4)

	issue := func(s signer.Signer, entry *vc.StatusList2021Entry) *vc.Credential {
		opts := []vc.PayloadOpt{vc.WithAttestation("did:key:holder", vc.CreditScoreAttestation{Score: 90})}
		if entry != nil {
			opts = append(opts, vc.WithCredentialStatus(entry))
		}
		token, err := vc.Encode(vc.BuildCredentialPayload(opts...), s)
		require.NoError(t, err)
		cred, err := vc.Decode(token)
		require.NoError(t, err)
		return cred
	}

	checker := NewChecker(testVerifier(), WithFetcher(NewHTTPFetcher(time.Second, nil)))

	status, err := checker.CheckCredential(context.Background(), issue(issuer, Entry(url, PurposeRevocation, 4)))
	require.NoError(t, err)
	assert.True(t, status.Revoked)

	status, err = checker.CheckCredential(context.Background(), issue(issuer, nil))
	require.NoError(t, err)
	assert.Equal(t, Status{}, status)

	_, err = checker.CheckCredential(context.Background(), issue(newSigner(t), Entry(url, PurposeRevocation, 4)))
	assert.True(t, verification.HasKind(err, verification.KindInvalidSignature))
}

func TestCheckerFetcherFunc(t *testing.T) {
	calls := 0
	checker := NewChecker(testVerifier(), WithFetcher(FetcherFunc(func(context.Context, string) (string, error) {
		calls++
		return "", errors.New("connection refused")
	})))
	_, err := checker.Check(context.Background(), Entry("https://example.com/status/1", PurposeRevocation, 0))
	assert.True(t, verification.HasKind(err, verification.KindStatusListUnavailable))
	assert.Equal(t, 1, calls)
}
