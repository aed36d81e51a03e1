// Package keys is the runtime configuration store: named string values that
// are encrypted at rest and cached in process.
package keys

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/phone-auth-api/internal/domain"
	"github.com/phone-auth-api/internal/pkg/id"
	"github.com/phone-auth-api/internal/storage"
)

// ValueType selects how a raw value is converted by Get.
type ValueType int

const (
	TypeString ValueType = iota
	TypeInt
	TypeFloat
	TypeBool
	TypeStrings
)

// Cipher seals values before they are persisted.
type Cipher interface {
	Seal(plaintext string) (string, error)
	Open(ciphertext string) (string, error)
}

// Manager caches decrypted keys by name. Cache misses and writes run under the
// write lock, so a miss can never re-populate a value older than a completed
// Set or Update.
type Manager struct {
	store  storage.KeyStore
	cipher Cipher
	now    func() time.Time

	mu    sync.RWMutex
	cache map[string]domain.ConfigKey
}

func NewManager(store storage.KeyStore, cipher Cipher) *Manager {
	return &Manager{
		store:  store,
		cipher: cipher,
		now:    func() time.Time { return time.Now().UTC() },
		cache:  make(map[string]domain.ConfigKey),
	}
}

// Get returns the value stored under name converted to vt, or def when the key
// does not exist. def is returned as given.
func (m *Manager) Get(ctx context.Context, name string, def any, vt ValueType) (any, error) {
	k, ok, err := m.lookup(ctx, name)
	if err != nil {
		return nil, err
	}
	if !ok {
		return def, nil
	}
	v, err := convert(k.Value, vt)
	if err != nil {
		return nil, fmt.Errorf("key %s: %w", name, err)
	}
	return v, nil
}

func (m *Manager) String(ctx context.Context, name, def string) (string, error) {
	v, err := m.Get(ctx, name, def, TypeString)
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (m *Manager) Int(ctx context.Context, name string, def int) (int, error) {
	v, err := m.Get(ctx, name, def, TypeInt)
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (m *Manager) Float(ctx context.Context, name string, def float64) (float64, error) {
	v, err := m.Get(ctx, name, def, TypeFloat)
	if err != nil {
		return 0, err
	}
	return v.(float64), nil
}

func (m *Manager) Bool(ctx context.Context, name string, def bool) (bool, error) {
	v, err := m.Get(ctx, name, def, TypeBool)
	if err != nil {
		return false, err
	}
	return v.(bool), nil
}

func (m *Manager) Strings(ctx context.Context, name string, def []string) ([]string, error) {
	v, err := m.Get(ctx, name, def, TypeStrings)
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// Set creates a new key. It fails with domain.ErrConflict if name is taken.
func (m *Manager) Set(ctx context.Context, name, value string) (*domain.ConfigKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("key name is required: %w", domain.ErrBadRequest)
	}
	sealed, err := m.cipher.Seal(value)
	if err != nil {
		return nil, fmt.Errorf("encrypt key %s: %w", name, err)
	}
	now := m.now()
	enc := &domain.EncryptedKey{
		KeyID:      id.New(),
		Name:       name,
		Ciphertext: sealed,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.store.CreateKey(ctx, enc); err != nil {
		return nil, err
	}
	k := domain.ConfigKey{KeyID: enc.KeyID, Name: name, Value: value, CreatedAt: now, UpdatedAt: now}
	m.cache[name] = k
	return &k, nil
}

// Update renames and/or rewrites the key identified by keyID. Any cache entry
// for the same id is dropped before the new one is stored, which covers renames.
func (m *Manager) Update(ctx context.Context, keyID, name, value string) (*domain.ConfigKey, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("key name is required: %w", domain.ErrBadRequest)
	}
	sealed, err := m.cipher.Seal(value)
	if err != nil {
		return nil, fmt.Errorf("encrypt key %s: %w", name, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	enc, err := m.store.GetKey(ctx, keyID)
	if err != nil {
		return nil, err
	}
	enc.Name = name
	enc.Ciphertext = sealed
	enc.UpdatedAt = m.now()
	if err := m.store.UpdateKey(ctx, enc); err != nil {
		return nil, err
	}
	for n, cached := range m.cache {
		if cached.KeyID == keyID {
			delete(m.cache, n)
		}
	}
	k := domain.ConfigKey{KeyID: keyID, Name: name, Value: value, CreatedAt: enc.CreatedAt, UpdatedAt: enc.UpdatedAt}
	m.cache[name] = k
	return &k, nil
}

// List returns every persisted key, decrypted. It bypasses the cache.
func (m *Manager) List(ctx context.Context) ([]domain.ConfigKey, error) {
	encs, err := m.store.ListKeys(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.ConfigKey, 0, len(encs))
	for i := range encs {
		k, err := m.decrypt(&encs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, k)
	}
	return out, nil
}

// Invalidate drops name from the cache; the next read goes to storage.
func (m *Manager) Invalidate(name string) {
	m.mu.Lock()
	delete(m.cache, name)
	m.mu.Unlock()
}

// Reset empties the cache.
func (m *Manager) Reset() {
	m.mu.Lock()
	m.cache = make(map[string]domain.ConfigKey)
	m.mu.Unlock()
}

func (m *Manager) lookup(ctx context.Context, name string) (domain.ConfigKey, bool, error) {
	m.mu.RLock()
	k, ok := m.cache[name]
	m.mu.RUnlock()
	if ok {
		return k, true, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if k, ok := m.cache[name]; ok {
		return k, true, nil
	}
	enc, err := m.store.GetKeyByName(ctx, name)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.ConfigKey{}, false, nil
	}
	if err != nil {
		return domain.ConfigKey{}, false, fmt.Errorf("load key %s: %w", name, err)
	}
	k, err = m.decrypt(enc)
	if err != nil {
		return domain.ConfigKey{}, false, err
	}
	m.cache[name] = k
	return k, true, nil
}

func (m *Manager) decrypt(enc *domain.EncryptedKey) (domain.ConfigKey, error) {
	plain, err := m.cipher.Open(enc.Ciphertext)
	if err != nil {
		return domain.ConfigKey{}, fmt.Errorf("decrypt key %s: %w", enc.Name, err)
	}
	return domain.ConfigKey{
		KeyID:     enc.KeyID,
		Name:      enc.Name,
		Value:     plain,
		CreatedAt: enc.CreatedAt,
		UpdatedAt: enc.UpdatedAt,
	}, nil
}

func convert(raw string, vt ValueType) (any, error) {
	switch vt {
	case TypeString:
		return raw, nil
	case TypeInt:
		n, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("not an integer %q: %w", raw, domain.ErrBadRequest)
		}
		return n, nil
	case TypeFloat:
		f, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("not a float %q: %w", raw, domain.ErrBadRequest)
		}
		return f, nil
	case TypeBool:
		b, err := strconv.ParseBool(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("not a boolean %q: %w", raw, domain.ErrBadRequest)
		}
		return b, nil
	case TypeStrings:
		out := []string{}
		for _, part := range strings.Split(raw, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out, nil
	default:
		return nil, fmt.Errorf("value type %d: %w", vt, domain.ErrUnknownValueType)
	}
}
