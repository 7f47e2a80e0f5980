package credentials

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/qbiz-tools/qconsole/internal/session"
	"github.com/rs/zerolog"
)

// Source records where a resolved configuration's credentials came from.
type Source string

const (
	SourceDirect  Source = "direct"
	SourceCache   Source = "cache"
	SourceStore   Source = "store"
	SourceDefault Source = "default"
)

// Resolver resolves per-request AWS configurations. Resolution order:
// direct credentials, then the TTL cache, then the session store, then the
// server's default identity. Falling back to the default is silent from the
// caller's perspective; the discarded cause is logged.
type Resolver struct {
	store      session.Store
	cache      *Cache
	defaultCfg aws.Config
	logger     zerolog.Logger
}

// NewResolver creates a resolver around an injected cache instance, so
// multiple resolvers (e.g. in tests) never share state.
func NewResolver(store session.Store, cache *Cache, defaultCfg aws.Config, logger zerolog.Logger) *Resolver {
	return &Resolver{
		store:      store,
		cache:      cache,
		defaultCfg: defaultCfg,
		logger:     logger,
	}
}

// ResolveOptions names the optional inputs to a resolution.
type ResolveOptions struct {
	SessionID string
	Direct    *Static
	Region    string // overrides the default region when set
}

// Resolve returns a ready aws.Config and the source its credentials came
// from. It never fails: any resolution problem degrades to the default
// configuration unchanged.
func (r *Resolver) Resolve(ctx context.Context, opts ResolveOptions) (aws.Config, Source) {
	if opts.Direct != nil {
		return r.configFor(*opts.Direct, opts.Region), SourceDirect
	}

	if opts.SessionID == "" {
		return r.defaultConfig(opts.Region), SourceDefault
	}

	if creds, ok := r.cache.Get(opts.SessionID); ok && creds.populated() {
		return r.configFor(creds, opts.Region), SourceCache
	}

	rec, err := r.store.Get(ctx, opts.SessionID)
	if err != nil {
		r.logger.Debug().Err(err).Str("session_id", opts.SessionID).
			Msg("session resolution failed; using default identity")
		return r.defaultConfig(opts.Region), SourceDefault
	}

	creds := Static{
		AccessKeyID:     rec.AccessKeyID,
		SecretAccessKey: rec.SecretAccessKey,
		SessionToken:    rec.SessionToken,
	}
	if !creds.populated() {
		r.logger.Debug().Str("session_id", opts.SessionID).
			Msg("stored session has incomplete credentials; using default identity")
		return r.defaultConfig(opts.Region), SourceDefault
	}

	r.cache.Put(opts.SessionID, creds)
	return r.configFor(creds, opts.Region), SourceStore
}

func (r *Resolver) configFor(creds Static, region string) aws.Config {
	if region == "" {
		region = r.defaultCfg.Region
	}
	return aws.Config{
		Region: region,
		Credentials: awscreds.NewStaticCredentialsProvider(
			creds.AccessKeyID,
			creds.SecretAccessKey,
			creds.SessionToken,
		),
		RetryMaxAttempts: 5,
	}
}

// defaultConfig returns the pre-supplied default configuration, with at most
// the region overridden. The credentials provider is handed back unchanged.
func (r *Resolver) defaultConfig(region string) aws.Config {
	cfg := r.defaultCfg
	if region != "" {
		cfg.Region = region
	}
	return cfg
}
