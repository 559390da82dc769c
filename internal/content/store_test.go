package content_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nikola43/SPLTokenDeployer/internal/content"
)

func TestUploadTokenMetadata(t *testing.T) {
	var gotAuth string
	var gotBody content.TokenMetadata

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/upload", r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":    true,
			"value": map[string]string{"cid": "bafytestcid"},
		})
	}))
	defer server.Close()

	store := content.NewStore(content.StoreConfig{APIKey: "secret", Endpoint: server.URL}, zap.NewNop())

	uri, err := store.UploadTokenMetadata(context.Background(), content.TokenMetadata{
		Name:                 "Test Token",
		Symbol:               "TT",
		Description:          "a test",
		SellerFeeBasisPoints: 250,
		Image:                "https://img.example/logo.png",
	})
	require.NoError(t, err)

	assert.Equal(t, "https://bafytestcid.ipfs.nftstorage.link", uri)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "Test Token", gotBody.Name)
	assert.Equal(t, uint16(250), gotBody.SellerFeeBasisPoints)
}

func TestUploadRejected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"ok":    false,
			"error": map[string]string{"name": "HTTPError", "message": "bad key"},
		})
	}))
	defer server.Close()

	store := content.NewStore(content.StoreConfig{APIKey: "wrong", Endpoint: server.URL}, zap.NewNop())

	_, err := store.UploadImage(context.Background(), []byte{0x89, 0x50}, "image/png")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad key")
}
