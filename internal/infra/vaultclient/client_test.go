package vaultclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKV is a minimal KV v2 endpoint keyed by request path.
func fakeKV(t *testing.T, token string) *httptest.Server {
	t.Helper()
	var mu sync.Mutex
	data := map[string]json.RawMessage{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Vault-Token") != token {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			stored, ok := data[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]any{"data": map[string]json.RawMessage{"data": stored}})
		case http.MethodPut:
			var body struct {
				Data json.RawMessage `json:"data"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			data[r.URL.Path] = body.Data
			w.WriteHeader(http.StatusNoContent)
		default:
			w.WriteHeader(http.StatusMethodNotAllowed)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_WriteThenRead(t *testing.T) {
	srv := fakeKV(t, "root")
	client := New(srv.URL+"/", "root")
	ctx := context.Background()

	require.NoError(t, client.WriteKV(ctx, "secret/data/certauth/dev/vault", map[string]string{"passphrase": "s3cret"}))
	var out struct {
		Passphrase string `json:"passphrase"`
	}
	require.NoError(t, client.ReadKV(ctx, "/secret/data/certauth/dev/vault", &out))
	assert.Equal(t, "s3cret", out.Passphrase)
}

func TestClient_Errors(t *testing.T) {
	srv := fakeKV(t, "root")
	ctx := context.Background()
	var out map[string]string

	err := New(srv.URL, "root").ReadKV(ctx, "secret/data/missing", &out)
	require.ErrorIs(t, err, ErrNotFound)

	err = New(srv.URL, "wrong").ReadKV(ctx, "secret/data/missing", &out)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotFound)

	require.Error(t, New("", "root").ReadKV(ctx, "secret/data/x", &out))
	require.Error(t, New(srv.URL, "root").ReadKV(ctx, "", &out))
}
