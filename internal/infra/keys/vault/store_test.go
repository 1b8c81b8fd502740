package vault

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/domain"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/keys/soft"
	"github.com/sumit-singh53/Hybrid-Quantum-Cryptography-Banking-Application-sub000/internal/infra/vaultclient"
)

type fakeVault struct {
	mu   sync.Mutex
	data map[string]json.RawMessage
}

func newFakeVault(t *testing.T) (*fakeVault, *vaultclient.Client) {
	t.Helper()
	fv := &fakeVault{data: map[string]json.RawMessage{}}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fv.mu.Lock()
		defer fv.mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			stored, ok := fv.data[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]json.RawMessage{"data": stored}})
		case http.MethodPut:
			var body struct {
				Data json.RawMessage `json:"data"`
			}
			_ = json.NewDecoder(r.Body).Decode(&body)
			fv.data[r.URL.Path] = body.Data
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	t.Cleanup(srv.Close)
	return fv, vaultclient.New(srv.URL, "token")
}

func (f *fakeVault) has(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data["/v1/"+path]
	return ok
}

func TestStore_BacksTheKeyring(t *testing.T) {
	fv, client := newFakeVault(t)
	store, err := NewStore(client, "test")
	require.NoError(t, err)
	ctx := context.Background()

	keys := soft.NewManager(store, 2048, nil)
	before, err := keys.PublicKeys(ctx)
	require.NoError(t, err)
	assert.True(t, fv.has("secret/data/certauth/test/ca/classical"))
	assert.True(t, fv.has("secret/data/certauth/test/ca/pq"))

	again, err := soft.NewManager(store, 2048, nil).PublicKeys(ctx)
	require.NoError(t, err)
	assert.Equal(t, before.ClassicalFingerprint, again.ClassicalFingerprint)

	retired, err := store.Retire(ctx, domain.CAKeyPQ, 42)
	require.NoError(t, err)
	assert.Equal(t, "secret/data/certauth/test/ca/pq-retired-42", retired)
	assert.True(t, fv.has(retired))
}

func TestStore_RequiresEnv(t *testing.T) {
	_, client := newFakeVault(t)
	_, err := NewStore(client, "")
	require.Error(t, err)
}

func TestPassphraseSource(t *testing.T) {
	_, client := newFakeVault(t)
	ctx := context.Background()
	source := NewPassphraseSource(client, "secret/data/certauth/test/vault")

	_, err := source.Passphrase(ctx)
	require.ErrorIs(t, err, vaultclient.ErrNotFound)

	require.NoError(t, client.WriteKV(ctx, "secret/data/certauth/test/vault", map[string]string{"passphrase": "correct horse"}))
	got, err := source.Passphrase(ctx)
	require.NoError(t, err)
	assert.Equal(t, "correct horse", got)
}
