package issuance

import (
	"context"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/pilacorp/go-credential-exchange/credential/common/jwt"
	"github.com/pilacorp/go-credential-exchange/did/resolver"
	"github.com/pilacorp/go-credential-exchange/did/signer"
	"github.com/pilacorp/go-credential-exchange/internal/log"
)

// Config is the issuer service configuration, read from the environment.
type Config struct {
	IssuerDID        string        `env:"ISSUER_DID,required"`
	IssuerSecret     string        `env:"ISSUER_SECRET,required,unset"`
	IssuerName       string        `env:"ISSUER_NAME" envDefault:"Verite"`
	ServerAddr       string        `env:"SERVER_ADDR" envDefault:":8080"`
	DIDResolverURL   string        `env:"DID_RESOLVER_URL"`
	ResolverCacheTTL time.Duration `env:"RESOLVER_CACHE_TTL" envDefault:"5m"`
	HTTPTimeout      time.Duration `env:"HTTP_TIMEOUT" envDefault:"10s"`
	CredentialTTL    time.Duration `env:"CREDENTIAL_TTL"`
	LogLevel         int           `env:"LOG_LEVEL" envDefault:"0"`
	LogFormat        int           `env:"LOG_FORMAT" envDefault:"1"`
}

// LoadConfig reads the configuration from the process environment.
func LoadConfig() (Config, error) {
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// LoadConfigFrom reads the configuration from environ instead of the process
// environment.
func LoadConfigFrom(environ map[string]string) (Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, env.Options{Environment: environ}); err != nil {
		return Config{}, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// Issuer builds the signing issuer from ISSUER_DID and ISSUER_SECRET.
func (c Config) Issuer() (*signer.Issuer, error) {
	iss, err := signer.BuildIssuerFromHex(c.IssuerDID, c.IssuerSecret)
	if err != nil {
		return nil, err
	}
	return iss.WithName(c.IssuerName), nil
}

// Resolver returns the key resolver: did:key locally and, when
// DID_RESOLVER_URL is set, every other method through that endpoint.
func (c Config) Resolver(ctx context.Context) jwt.KeyResolver {
	if c.DIDResolverURL == "" {
		return resolver.NewMulti()
	}
	remote := resolver.NewHTTPResolver(c.DIDResolverURL,
		resolver.WithCacheTTL(c.ResolverCacheTTL),
		resolver.WithTimeout(c.HTTPTimeout),
		resolver.WithLogger(log.Leveled(ctx)),
	)
	return resolver.NewMulti(resolver.WithFallback(remote))
}
