// Package secrets persists KEM key pairs in a Vault KV v2 mount.
package secrets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	lru "github.com/hashicorp/golang-lru"
	vault "github.com/hashicorp/vault/api"
)

// ErrNotFound is returned when no secret exists at a path.
var ErrNotFound = errors.New("secrets: not found")

// Config controls the Vault client and the read cache.
type Config struct {
	Address   string
	Token     string
	TokenFile string
	Namespace string
	MountPath string
	Timeout   time.Duration
	// CacheTTL bounds how long a read is served from memory. A secret's
	// custom metadata "ttl" overrides it per path.
	CacheTTL time.Duration
	// LeaseSafetyBuffer is subtracted from the TTL so entries expire
	// before the stored value is expected to rotate.
	LeaseSafetyBuffer time.Duration
	MaxCacheEntries   int
}

// Manager reads and writes KV v2 secrets. Reads are cached until their TTL.
type Manager struct {
	kv          *vault.KVv2
	ttl         time.Duration
	leaseBuffer time.Duration
	cache       *lru.Cache
	now         func() time.Time
}

type cacheEntry struct {
	value  map[string]string
	expiry time.Time
}

// New builds a Manager. The token comes from Config.Token, then
// Config.TokenFile, then VAULT_TOKEN.
func New(cfg Config) (*Manager, error) {
	if cfg.Address == "" {
		return nil, errors.New("secrets: vault address required")
	}
	token, err := resolveToken(cfg)
	if err != nil {
		return nil, err
	}

	vcfg := vault.DefaultConfig()
	if vcfg.Error != nil {
		return nil, fmt.Errorf("secrets: vault config: %w", vcfg.Error)
	}
	vcfg.Address = cfg.Address
	if cfg.Timeout > 0 {
		vcfg.Timeout = cfg.Timeout
	}
	client, err := vault.NewClient(vcfg)
	if err != nil {
		return nil, fmt.Errorf("secrets: create client: %w", err)
	}
	client.SetToken(token)
	if cfg.Namespace != "" {
		client.SetNamespace(cfg.Namespace)
	}

	mount := cfg.MountPath
	if mount == "" {
		mount = "secret"
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	buffer := cfg.LeaseSafetyBuffer
	if buffer <= 0 {
		buffer = 15 * time.Second
	}
	size := cfg.MaxCacheEntries
	if size <= 0 {
		size = 64
	}
	cache, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("secrets: cache: %w", err)
	}

	return &Manager{
		kv:          client.KVv2(mount),
		ttl:         ttl,
		leaseBuffer: buffer,
		cache:       cache,
		now:         time.Now,
	}, nil
}

func resolveToken(cfg Config) (string, error) {
	token := cfg.Token
	if token == "" && cfg.TokenFile != "" {
		b, err := os.ReadFile(cfg.TokenFile)
		if err != nil {
			return "", fmt.Errorf("secrets: read token file: %w", err)
		}
		token = strings.TrimSpace(string(b))
	}
	if token == "" {
		token = os.Getenv("VAULT_TOKEN")
	}
	if token == "" {
		return "", errors.New("secrets: vault token unavailable")
	}
	return token, nil
}

// GetKV returns the string fields of the secret at path.
func (m *Manager) GetKV(ctx context.Context, path string) (map[string]string, error) {
	if m == nil {
		return nil, errors.New("secrets: manager is nil")
	}
	if v, ok := m.cached(path); ok {
		return v, nil
	}
	secret, err := m.kv.Get(ctx, path)
	if errors.Is(err, vault.ErrSecretNotFound) {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, path)
	}
	if err != nil {
		return nil, fmt.Errorf("secrets: kv get %q: %w", path, err)
	}

	payload := make(map[string]string, len(secret.Data))
	for k, v := range secret.Data {
		if s, ok := v.(string); ok {
			payload[k] = s
		}
	}
	m.store(path, payload, ttlFrom(secret.CustomMetadata, m.ttl))
	return clone(payload), nil
}

// PutKV writes fields to path and drops any cached read of it.
func (m *Manager) PutKV(ctx context.Context, path string, fields map[string]any) error {
	if m == nil {
		return errors.New("secrets: manager is nil")
	}
	if _, err := m.kv.Put(ctx, path, fields); err != nil {
		return fmt.Errorf("secrets: kv put %q: %w", path, err)
	}
	m.cache.Remove(path)
	return nil
}

func ttlFrom(meta map[string]any, fallback time.Duration) time.Duration {
	raw, ok := meta["ttl"].(string)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func (m *Manager) cached(path string) (map[string]string, bool) {
	v, ok := m.cache.Get(path)
	if !ok {
		return nil, false
	}
	entry := v.(cacheEntry)
	if m.now().After(entry.expiry) {
		m.cache.Remove(path)
		return nil, false
	}
	return clone(entry.value), true
}

func (m *Manager) store(path string, value map[string]string, ttl time.Duration) {
	if ttl > m.leaseBuffer {
		ttl -= m.leaseBuffer
	}
	m.cache.Add(path, cacheEntry{value: clone(value), expiry: m.now().Add(ttl)})
}

func clone(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
