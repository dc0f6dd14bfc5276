// Package schema computes JSON-LD canonical forms of credential payloads.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/piprate/json-gold/ld"
)

// ProcessorOpt represents an option for JSON-LD processing.
type ProcessorOpt func(*ProcessorOptions)

// ProcessorOptions holds configuration for JSON-LD processing.
type ProcessorOptions struct {
	documentLoader ld.DocumentLoader
	algorithm      string
}

// WithDocumentLoader sets the document loader for JSON-LD processing.
func WithDocumentLoader(loader ld.DocumentLoader) ProcessorOpt {
	return func(p *ProcessorOptions) {
		p.documentLoader = loader
	}
}

// WithAlgorithm sets the canonicalization algorithm.
func WithAlgorithm(alg string) ProcessorOpt {
	return func(p *ProcessorOptions) {
		p.algorithm = alg
	}
}

// defaultDocumentLoader caches remote contexts across calls.
var defaultDocumentLoader = ld.NewCachingDocumentLoader(ld.NewDefaultDocumentLoader(nil))

// CanonicalizeDocument returns the URDNA2015 n-quads of doc.
func CanonicalizeDocument(doc map[string]any, opts ...ProcessorOpt) ([]byte, error) {
	if doc == nil {
		return nil, fmt.Errorf("failed to canonicalize document: document is nil")
	}
	o := &ProcessorOptions{
		documentLoader: defaultDocumentLoader,
		algorithm:      ld.AlgorithmURDNA2015,
	}
	for _, opt := range opts {
		opt(o)
	}

	processor := ld.NewJsonLdProcessor()
	options := ld.NewJsonLdOptions("")
	options.Format = "application/n-quads"
	options.Algorithm = o.algorithm
	options.DocumentLoader = o.documentLoader

	normalized, err := processor.Normalize(standardize(doc), options)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize document: %w", err)
	}
	s, ok := normalized.(string)
	if !ok {
		return nil, fmt.Errorf("unexpected normalized output %T", normalized)
	}
	return []byte(s), nil
}

// ComputeDigest computes the SHA-256 digest of the input data.
func ComputeDigest(data []byte) ([]byte, error) {
	if data == nil {
		return nil, fmt.Errorf("failed to compute digest: input data is nil")
	}
	hash := sha256.Sum256(data)
	return hash[:], nil
}

// Digest canonicalizes doc and returns its hex SHA-256.
func Digest(doc map[string]any, opts ...ProcessorOpt) (string, error) {
	canonical, err := CanonicalizeDocument(doc, opts...)
	if err != nil {
		return "", err
	}
	sum, err := ComputeDigest(canonical)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(sum), nil
}

// standardize forces scalars into typed literals so numeric precision does
// not leak into the canonical form.
func standardize(input map[string]any) map[string]any {
	out := make(map[string]any, len(input))
	for key, value := range input {
		out[key] = literal(key, value)
	}
	return out
}

func literal(key string, value any) any {
	switch v := value.(type) {
	case map[string]any:
		return standardize(v)
	case []any:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = literal(key, val)
		}
		return result
	case []string:
		result := make([]any, len(v))
		for i, val := range v {
			result[i] = val
		}
		return result
	case string, nil:
		return v
	case bool:
		return map[string]any{
			"@value": fmt.Sprintf("%v", v),
			"@type":  "http://www.w3.org/2001/XMLSchema#boolean",
		}
	default:
		return map[string]any{
			"@value": fmt.Sprintf("%v", v),
			"@type":  "http://www.w3.org/2001/XMLSchema#string",
		}
	}
}
