// Package secrets resolves provider credential references. A reference is a
// scheme-prefixed string from the provider config:
//
//	env:OPENAI_API_KEY      read from the environment
//	aws:genroute/openai     fetched from AWS Secrets Manager
//	enc:<base64>            AES-GCM ciphertext decrypted with the local key
//
// Anything without a scheme is taken as a literal value, which is only
// acceptable for local development.
package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/secretsmanager"
)

// Store fetches named secrets from a remote backend.
type Store interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Resolver turns credential references into usable secret values.
type Resolver struct {
	store  Store
	cipher *cipher
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithStore wires a remote secret backend for aws: references.
func WithStore(s Store) Option {
	return func(r *Resolver) { r.store = s }
}

// WithEncryptionKey enables enc: references. The key is stretched to a
// 256-bit AES key.
func WithEncryptionKey(key string) Option {
	return func(r *Resolver) { r.cipher = newCipher(key) }
}

func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Resolve returns the secret value a reference points at.
func (r *Resolver) Resolve(ctx context.Context, ref string) (string, error) {
	scheme, rest, found := strings.Cut(ref, ":")
	if !found {
		return ref, nil
	}

	switch scheme {
	case "env":
		value := os.Getenv(rest)
		if value == "" {
			return "", fmt.Errorf("environment variable %s is not set", rest)
		}
		return value, nil
	case "aws":
		if r.store == nil {
			return "", fmt.Errorf("resolve %q: no secret store configured", ref)
		}
		return r.store.GetSecret(ctx, rest)
	case "enc":
		if r.cipher == nil {
			return "", fmt.Errorf("resolve %q: no encryption key configured", ref)
		}
		return r.cipher.decrypt(rest)
	default:
		// Unknown scheme: the reference is a literal containing a colon.
		return ref, nil
	}
}

// AWSStore fetches secrets from AWS Secrets Manager with a short-lived
// local cache so provider reloads do not hammer the API.
type AWSStore struct {
	client *secretsmanager.Client
	ttl    time.Duration

	mu    sync.RWMutex
	cache map[string]cachedSecret
}

type cachedSecret struct {
	value     string
	expiresAt time.Time
}

func NewAWSStore(ctx context.Context, region string) (*AWSStore, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}
	return NewAWSStoreFromConfig(cfg), nil
}

func NewAWSStoreFromConfig(cfg aws.Config) *AWSStore {
	return &AWSStore{
		client: secretsmanager.NewFromConfig(cfg),
		ttl:    5 * time.Minute,
		cache:  make(map[string]cachedSecret),
	}
}

func (s *AWSStore) GetSecret(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	if cached, ok := s.cache[name]; ok && time.Now().Before(cached.expiresAt) {
		s.mu.RUnlock()
		return cached.value, nil
	}
	s.mu.RUnlock()

	result, err := s.client.GetSecretValue(ctx, &secretsmanager.GetSecretValueInput{
		SecretId: aws.String(name),
	})
	if err != nil {
		return "", fmt.Errorf("get secret %s: %w", name, err)
	}

	value := ""
	if result.SecretString != nil {
		value = *result.SecretString
	}

	s.mu.Lock()
	s.cache[name] = cachedSecret{value: value, expiresAt: time.Now().Add(s.ttl)}
	s.mu.Unlock()

	return value, nil
}

// StaticStore is a fixed name-to-value map for tests and local setups.
type StaticStore struct {
	mu      sync.RWMutex
	secrets map[string]string
}

func NewStaticStore() *StaticStore {
	return &StaticStore{secrets: make(map[string]string)}
}

func (s *StaticStore) GetSecret(ctx context.Context, name string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.secrets[name]
	if !ok {
		return "", fmt.Errorf("secret %s not found", name)
	}
	return value, nil
}

func (s *StaticStore) SetSecret(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.secrets[name] = value
}
