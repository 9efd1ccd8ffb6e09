package identity

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func signedToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return token
}

func TestUsernameFromToken_ClaimPriority(t *testing.T) {
	tests := []struct {
		name   string
		claims jwt.MapClaims
		want   string
	}{
		{"preferred username", jwt.MapClaims{"preferred_username": "alice", "email": "a@x.io", "sub": "42"}, "alice"},
		{"email", jwt.MapClaims{"email": "a@x.io", "sub": "42"}, "a@x.io"},
		{"name", jwt.MapClaims{"name": "Alice", "sub": "42"}, "Alice"},
		{"subject", jwt.MapClaims{"sub": "42"}, "42"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UsernameFromToken(signedToken(t, tt.claims))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestUsernameFromToken_Invalid(t *testing.T) {
	_, err := UsernameFromToken("")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = UsernameFromToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = UsernameFromToken(signedToken(t, jwt.MapClaims{"iat": 1}))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestProvider_SignInResolveSignOut(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(NewMemoryStore(), zap.NewNop())

	_, err := p.Resolve(ctx, "tab-1")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = p.SignInWithPassword(ctx, "tab-1", "alice", "")
	assert.ErrorIs(t, err, ErrUnauthenticated)

	_, err = p.SignInWithPassword(ctx, "tab-1", "alice", "token-1")
	require.NoError(t, err)

	id, err := p.Resolve(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", id.Username)
	assert.Equal(t, "token-1", id.AccessToken)
	assert.Equal(t, SourcePassword, id.Source)

	require.NoError(t, p.SignOut(ctx, "tab-1"))
	require.NoError(t, p.SignOut(ctx, "tab-1"))
	_, err = p.Resolve(ctx, "tab-1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func TestProvider_SignInWithToken(t *testing.T) {
	ctx := context.Background()
	p := NewProvider(NewMemoryStore(), nil)

	token := signedToken(t, jwt.MapClaims{"email": "bob@example.com"})
	id, err := p.SignInWithToken(ctx, "tab-2", token)
	require.NoError(t, err)
	assert.Equal(t, "bob@example.com", id.Username)
	assert.Equal(t, SourceOAuth, id.Source)

	resolved, err := p.Resolve(ctx, "tab-2")
	require.NoError(t, err)
	assert.Equal(t, token, resolved.AccessToken)
}

func TestProvider_ResolveRejectsPartialIdentity(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	require.NoError(t, store.Save(ctx, "tab-1", &Identity{Username: "alice"}))

	_, err := NewProvider(store, nil).Resolve(ctx, "tab-1")
	assert.ErrorIs(t, err, ErrUnauthenticated)
}

func testStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()

	_, err := store.Load(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	signedIn := time.UnixMilli(1700000000123).UTC()
	require.NoError(t, store.Save(ctx, "tab-1", &Identity{
		Username: "alice", AccessToken: "t1", Source: SourcePassword, SignedInAt: signedIn,
	}))
	require.NoError(t, store.Save(ctx, "tab-1", &Identity{
		Username: "alice", AccessToken: "t2", Source: SourceOAuth, SignedInAt: signedIn,
	}))

	id, err := store.Load(ctx, "tab-1")
	require.NoError(t, err)
	assert.Equal(t, "t2", id.AccessToken)
	assert.Equal(t, SourceOAuth, id.Source)
	assert.True(t, signedIn.Equal(id.SignedInAt))

	require.NoError(t, store.Ping(ctx))
	require.NoError(t, store.Delete(ctx, "tab-1"))
	assert.ErrorIs(t, store.Delete(ctx, "tab-1"), ErrNotFound)
}

func TestMemoryStore_Contract(t *testing.T) {
	testStoreContract(t, NewMemoryStore())
}

func TestSQLiteStore_Contract(t *testing.T) {
	store, err := NewSQLiteStore(context.Background(), filepath.Join(t.TempDir(), "identity.db"))
	require.NoError(t, err)
	defer store.Close()
	testStoreContract(t, store)
}

func TestFileStore_Contract(t *testing.T) {
	path := filepath.Join(t.TempDir(), "profile", "triagectl.yaml")
	store, err := NewFileStore(path)
	require.NoError(t, err)
	testStoreContract(t, store)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

// Требует PostgreSQL: POSTGRES_TEST_DSN=postgres://...
func TestPostgresStore_Contract(t *testing.T) {
	dsn := os.Getenv("POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_TEST_DSN not set")
	}
	store, err := NewPostgresStore(context.Background(), dsn)
	require.NoError(t, err)
	defer store.Close()
	testStoreContract(t, store)
}

func TestNewStore_UnknownType(t *testing.T) {
	_, err := NewStore(context.Background(), "mongo", Params{})
	assert.ErrorIs(t, err, ErrInvalidStoreType)
}
