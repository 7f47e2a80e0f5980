package credentials

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscreds "github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/qbiz-tools/qconsole/internal/session"
	"github.com/rs/zerolog"
)

// countingStore is a session.Store fake that counts reads.
type countingStore struct {
	records map[string]*session.Record
	gets    int
}

func (s *countingStore) Put(_ context.Context, rec session.Record) error {
	if s.records == nil {
		s.records = map[string]*session.Record{}
	}
	s.records[rec.SessionID] = &rec
	return nil
}

func (s *countingStore) Get(_ context.Context, id string) (*session.Record, error) {
	s.gets++
	rec, ok := s.records[id]
	if !ok {
		return nil, session.ErrNotFound
	}
	return rec, nil
}

func defaultTestConfig() aws.Config {
	return aws.Config{
		Region:      "us-east-1",
		Credentials: awscreds.NewStaticCredentialsProvider("DEFAULTKEY", "defaultsecret", ""),
	}
}

func newTestResolver(store session.Store, ttl time.Duration) (*Resolver, aws.Config, *Cache) {
	cache := NewCache(ttl)
	defaultCfg := defaultTestConfig()
	return NewResolver(store, cache, defaultCfg, zerolog.Nop()), defaultCfg, cache
}

func TestResolveUnknownSessionFallsBackToDefault(t *testing.T) {
	resolver, defaultCfg, _ := newTestResolver(&countingStore{}, 0)

	cfg, source := resolver.Resolve(context.Background(), ResolveOptions{SessionID: "missing"})
	if source != SourceDefault {
		t.Fatalf("source = %s, want default", source)
	}
	// The default credentials provider must come back unchanged.
	if cfg.Credentials != defaultCfg.Credentials {
		t.Error("expected the default credentials provider instance")
	}
}

func TestResolveDirectCredentialsIgnoreSession(t *testing.T) {
	store := &countingStore{}
	store.Put(context.Background(), session.Record{
		SessionID:       "sess-1",
		AccessKeyID:     "SESSIONKEY",
		SecretAccessKey: "sessionsecret",
	})
	resolver, _, _ := newTestResolver(store, 0)

	direct := &Static{AccessKeyID: "DIRECTKEY", SecretAccessKey: "directsecret"}
	cfg, source := resolver.Resolve(context.Background(), ResolveOptions{SessionID: "sess-1", Direct: direct})
	if source != SourceDirect {
		t.Fatalf("source = %s, want direct", source)
	}
	if store.gets != 0 {
		t.Errorf("direct credentials must not trigger a store read, got %d", store.gets)
	}

	got, err := cfg.Credentials.Retrieve(context.Background())
	if err != nil {
		t.Fatalf("retrieving credentials: %v", err)
	}
	if got.AccessKeyID != "DIRECTKEY" {
		t.Errorf("access key = %s, want DIRECTKEY", got.AccessKeyID)
	}
}

func TestResolveCachesWithinTTL(t *testing.T) {
	store := &countingStore{}
	store.Put(context.Background(), session.Record{
		SessionID:       "sess-1",
		AccessKeyID:     "SESSIONKEY",
		SecretAccessKey: "sessionsecret",
	})
	resolver, _, cache := newTestResolver(store, 30*time.Minute)

	_, source := resolver.Resolve(context.Background(), ResolveOptions{SessionID: "sess-1"})
	if source != SourceStore {
		t.Fatalf("first resolve source = %s, want store", source)
	}
	_, source = resolver.Resolve(context.Background(), ResolveOptions{SessionID: "sess-1"})
	if source != SourceCache {
		t.Fatalf("second resolve source = %s, want cache", source)
	}
	if store.gets != 1 {
		t.Fatalf("store reads = %d, want 1", store.gets)
	}

	// After the TTL window lapses the entry is a miss and the store is
	// consulted again.
	base := time.Now()
	cache.now = func() time.Time { return base.Add(31 * time.Minute) }
	_, source = resolver.Resolve(context.Background(), ResolveOptions{SessionID: "sess-1"})
	if source != SourceStore {
		t.Fatalf("post-TTL resolve source = %s, want store", source)
	}
	if store.gets != 2 {
		t.Fatalf("store reads = %d, want 2", store.gets)
	}
}

func TestResolveIncompleteCredentialsFallBack(t *testing.T) {
	store := &countingStore{}
	store.Put(context.Background(), session.Record{
		SessionID:   "sess-1",
		AccessKeyID: "SESSIONKEY", // no secret
	})
	resolver, defaultCfg, _ := newTestResolver(store, 0)

	cfg, source := resolver.Resolve(context.Background(), ResolveOptions{SessionID: "sess-1"})
	if source != SourceDefault {
		t.Fatalf("source = %s, want default", source)
	}
	if cfg.Credentials != defaultCfg.Credentials {
		t.Error("expected the default credentials provider instance")
	}
}

func TestResolveRegionOverride(t *testing.T) {
	resolver, _, _ := newTestResolver(&countingStore{}, 0)

	cfg, _ := resolver.Resolve(context.Background(), ResolveOptions{Region: "eu-west-1"})
	if cfg.Region != "eu-west-1" {
		t.Errorf("region = %s, want eu-west-1", cfg.Region)
	}

	cfg, _ = resolver.Resolve(context.Background(), ResolveOptions{})
	if cfg.Region != "us-east-1" {
		t.Errorf("region = %s, want default us-east-1", cfg.Region)
	}
}
