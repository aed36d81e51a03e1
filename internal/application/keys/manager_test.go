package keys

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/phone-auth-api/internal/domain"
	"github.com/phone-auth-api/internal/pkg/secretbox"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- fakes ---

type memKeyStore struct {
	mu    sync.Mutex
	byID  map[string]domain.EncryptedKey
	reads int
}

func newMemKeyStore() *memKeyStore {
	return &memKeyStore{byID: map[string]domain.EncryptedKey{}}
}

func (s *memKeyStore) GetKey(_ context.Context, keyID string) (*domain.EncryptedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.byID[keyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &k, nil
}

func (s *memKeyStore) GetKeyByName(_ context.Context, name string) (*domain.EncryptedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reads++
	for _, k := range s.byID {
		if k.Name == name {
			return &k, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *memKeyStore) CreateKey(_ context.Context, k *domain.EncryptedKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.byID {
		if existing.Name == k.Name {
			return domain.ErrConflict
		}
	}
	s.byID[k.KeyID] = *k
	return nil
}

func (s *memKeyStore) UpdateKey(_ context.Context, k *domain.EncryptedKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[k.KeyID]; !ok {
		return domain.ErrNotFound
	}
	s.byID[k.KeyID] = *k
	return nil
}

func (s *memKeyStore) ListKeys(_ context.Context) ([]domain.EncryptedKey, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.EncryptedKey, 0, len(s.byID))
	for _, k := range s.byID {
		out = append(out, k)
	}
	return out, nil
}

func (s *memKeyStore) readCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reads
}

type mockKeyStore struct{ mock.Mock }

func (m *mockKeyStore) GetKey(ctx context.Context, keyID string) (*domain.EncryptedKey, error) {
	args := m.Called(ctx, keyID)
	if k, _ := args.Get(0).(*domain.EncryptedKey); k != nil {
		return k, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockKeyStore) GetKeyByName(ctx context.Context, name string) (*domain.EncryptedKey, error) {
	args := m.Called(ctx, name)
	if k, _ := args.Get(0).(*domain.EncryptedKey); k != nil {
		return k, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockKeyStore) CreateKey(ctx context.Context, k *domain.EncryptedKey) error {
	return m.Called(ctx, k).Error(0)
}
func (m *mockKeyStore) UpdateKey(ctx context.Context, k *domain.EncryptedKey) error {
	return m.Called(ctx, k).Error(0)
}
func (m *mockKeyStore) ListKeys(ctx context.Context) ([]domain.EncryptedKey, error) {
	args := m.Called(ctx)
	ks, _ := args.Get(0).([]domain.EncryptedKey)
	return ks, args.Error(1)
}

func newTestManager(t *testing.T) (*Manager, *memKeyStore) {
	t.Helper()
	box, err := secretbox.New([]byte("test-secret"))
	require.NoError(t, err)
	store := newMemKeyStore()
	return NewManager(store, box), store
}

// --- Get ---

func TestGet_MissingReturnsDefault(t *testing.T) {
	m, _ := newTestManager(t)

	v, err := m.Int(context.Background(), "PHONE_NUMBER_TOKEN_TTL", 300)
	require.NoError(t, err)
	assert.Equal(t, 300, v)
}

func TestGet_Conversions(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	for name, value := range map[string]string{
		"S": "hello", "I": " 42 ", "F": "1.5", "B": "true", "L": "a, b,,c ",
	} {
		_, err := m.Set(ctx, name, value)
		require.NoError(t, err)
	}

	s, err := m.String(ctx, "S", "")
	require.NoError(t, err)
	assert.Equal(t, "hello", s)

	i, err := m.Int(ctx, "I", 0)
	require.NoError(t, err)
	assert.Equal(t, 42, i)

	f, err := m.Float(ctx, "F", 0)
	require.NoError(t, err)
	assert.InDelta(t, 1.5, f, 1e-9)

	b, err := m.Bool(ctx, "B", false)
	require.NoError(t, err)
	assert.True(t, b)

	l, err := m.Strings(ctx, "L", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, l)
}

func TestGet_UnparsableValue(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	_, err := m.Set(ctx, "LEN", "six")
	require.NoError(t, err)

	_, err = m.Int(ctx, "LEN", 6)
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestGet_UnknownValueType(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	_, err := m.Set(ctx, "X", "1")
	require.NoError(t, err)

	_, err = m.Get(ctx, "X", nil, ValueType(99))
	assert.ErrorIs(t, err, domain.ErrUnknownValueType)
}

func TestGet_CachesAfterFirstLoad(t *testing.T) {
	box, err := secretbox.New([]byte("test-secret"))
	require.NoError(t, err)
	store := newMemKeyStore()
	seed := NewManager(store, box)
	_, err = seed.Set(context.Background(), "A", "1")
	require.NoError(t, err)

	m := NewManager(store, box)
	for i := 0; i < 3; i++ {
		v, err := m.String(context.Background(), "A", "")
		require.NoError(t, err)
		assert.Equal(t, "1", v)
	}
	assert.Equal(t, 1, store.readCount())

	m.Invalidate("A")
	_, err = m.String(context.Background(), "A", "")
	require.NoError(t, err)
	assert.Equal(t, 2, store.readCount())
}

func TestGet_StoreError(t *testing.T) {
	store := new(mockKeyStore)
	box, err := secretbox.New([]byte("test-secret"))
	require.NoError(t, err)
	m := NewManager(store, box)
	store.On("GetKeyByName", mock.Anything, "A").Return(nil, fmt.Errorf("boom"))

	_, err = m.String(context.Background(), "A", "def")
	assert.Error(t, err)
	store.AssertExpectations(t)
}

// --- Set / Update ---

func TestSet_EncryptsAtRest(t *testing.T) {
	m, store := newTestManager(t)

	k, err := m.Set(context.Background(), "API_SECRET", "s3cr3t")
	require.NoError(t, err)

	stored, err := store.GetKey(context.Background(), k.KeyID)
	require.NoError(t, err)
	assert.NotEqual(t, "s3cr3t", stored.Ciphertext)
	assert.NotContains(t, stored.Ciphertext, "s3cr3t")
}

func TestSet_DuplicateName(t *testing.T) {
	m, _ := newTestManager(t)
	_, err := m.Set(context.Background(), "A", "1")
	require.NoError(t, err)

	_, err = m.Set(context.Background(), "A", "2")
	assert.ErrorIs(t, err, domain.ErrConflict)
}

func TestUpdate_RenameLeavesNoStaleEntry(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	k, err := m.Set(ctx, "A", "1")
	require.NoError(t, err)
	v, err := m.String(ctx, "A", "")
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	_, err = m.Update(ctx, k.KeyID, "B", "2")
	require.NoError(t, err)

	v, err = m.String(ctx, "B", "")
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	v, err = m.String(ctx, "A", "gone")
	require.NoError(t, err)
	assert.Equal(t, "gone", v)
}

func TestUpdate_NotFound(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.Update(context.Background(), "missing", "A", "1")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestList_Decrypts(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	_, err := m.Set(ctx, "A", "1")
	require.NoError(t, err)
	_, err = m.Set(ctx, "B", "2")
	require.NoError(t, err)

	ks, err := m.List(ctx)
	require.NoError(t, err)
	values := map[string]string{}
	for _, k := range ks {
		values[k.Name] = k.Value
	}
	assert.Equal(t, map[string]string{"A": "1", "B": "2"}, values)
}

func TestManager_ConcurrentReadsAndUpdates(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()
	k, err := m.Set(ctx, "N", "0")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 1; i <= 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_, err := m.Update(ctx, k.KeyID, "N", fmt.Sprint(i))
			assert.NoError(t, err)
		}(i)
		go func() {
			defer wg.Done()
			m.Invalidate("N")
			_, err := m.Int(ctx, "N", -1)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	m.Reset()
	fresh, err := m.Int(ctx, "N", -1)
	require.NoError(t, err)
	cached, err := m.Int(ctx, "N", -1)
	require.NoError(t, err)
	assert.Equal(t, fresh, cached)
}
