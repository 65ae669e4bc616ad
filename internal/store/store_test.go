package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreContract checks the behaviour every backend must share.
func runStoreContract(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	t.Run("get missing key", func(t *testing.T) {
		_, err := s.Get(ctx, "missing")
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, KeyCart, []byte(`[{"id":"1"}]`)))

		got, err := s.Get(ctx, KeyCart)
		require.NoError(t, err)
		assert.Equal(t, `[{"id":"1"}]`, string(got))
	})

	t.Run("overwrite", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, KeyToken, []byte("first")))
		require.NoError(t, s.Set(ctx, KeyToken, []byte("second")))

		got, err := s.Get(ctx, KeyToken)
		require.NoError(t, err)
		assert.Equal(t, "second", string(got))
	})

	t.Run("remove", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, KeyUser, []byte(`{}`)))
		require.NoError(t, s.Remove(ctx, KeyUser))

		_, err := s.Get(ctx, KeyUser)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("remove missing key", func(t *testing.T) {
		assert.NoError(t, s.Remove(ctx, "never-set"))
	})

	t.Run("keys are independent", func(t *testing.T) {
		require.NoError(t, s.Set(ctx, KeyTheme, []byte(`"light"`)))
		require.NoError(t, s.Remove(ctx, KeyCart))

		got, err := s.Get(ctx, KeyTheme)
		require.NoError(t, err)
		assert.Equal(t, `"light"`, string(got))
	})
}

func TestMemoryStore_Contract(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	value := []byte("abc")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'x'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	got[1] = 'y'

	again, _ := s.Get(ctx, "k")
	assert.Equal(t, "abc", string(again))
	assert.Equal(t, 1, s.Writes())
}

type payload struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestGetJSON_Absent(t *testing.T) {
	var p payload
	found, err := GetJSON(context.Background(), NewMemoryStore(), "k", &p)

	assert.False(t, found)
	assert.NoError(t, err)
}

func TestGetJSON_Malformed(t *testing.T) {
	s := NewMemoryStore()
	require.NoError(t, s.Set(context.Background(), "k", []byte(`{"name":`)))

	var p payload
	found, err := GetJSON(context.Background(), s, "k", &p)

	assert.False(t, found)
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestSetJSON_RoundTrip(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, SetJSON(ctx, s, "k", payload{Name: "a", N: 2}))

	var p payload
	found, err := GetJSON(ctx, s, "k", &p)
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, payload{Name: "a", N: 2}, p)
}

func TestOpen_Memory(t *testing.T) {
	s, err := Open(context.Background(), Options{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(context.Background(), Options{Driver: "etcd"})
	assert.ErrorContains(t, err, "unknown store driver")
}
