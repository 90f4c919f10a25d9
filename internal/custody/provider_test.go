package custody

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
	"github.com/stretchr/testify/require"
)

func testProvider(baseUrl string) *privyProvider {
	return &privyProvider{
		baseUrl:   baseUrl,
		appId:     "app-id",
		appSecret: "app-secret",
		client:    &http.Client{Timeout: 5 * time.Second},
	}
}

func TestCreateWallet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/v1/wallets", r.URL.Path)
		require.Equal(t, "app-id", r.Header.Get("privy-app-id"))

		expectedAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("app-id:app-secret"))
		require.Equal(t, expectedAuth, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "ethereum", body["chain_type"])

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"w-1","address":"0xabc0000000000000000000000000000000000001","chain_type":"ethereum","created_at":1700000000000}`))
	}))
	defer server.Close()

	wallet, problem := testProvider(server.URL).Create(context.Background(), "ethereum")
	require.Nil(t, problem)
	require.Equal(t, "w-1", wallet.Id)
	require.Equal(t, "0xabc0000000000000000000000000000000000001", wallet.Address)
	require.Equal(t, "ethereum", wallet.ChainType)
	require.Equal(t, int64(1700000000000), wallet.CreatedAt)
}

func TestCreateWalletRejectedCarriesUpstreamDetail(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		w.Write([]byte(`unsupported chain type`))
	}))
	defer server.Close()

	_, problem := testProvider(server.URL).Create(context.Background(), "dogecoin")
	require.NotNil(t, problem)
	require.Equal(t, reject.CodeProviderRejected, problem.Problem.Code)
	require.Contains(t, problem.Problem.Detail, "unsupported chain type")
}

func TestCreateWalletProviderUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	_, problem := testProvider(server.URL).Create(context.Background(), "ethereum")
	require.NotNil(t, problem)
	require.Equal(t, reject.CodeProviderUnavailable, problem.Problem.Code)
}

func TestExportSigningKey(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/wallets/w-1/export", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"private_key":"0x4c0883a69102937d6231471b5dbb6204fe512961708279f8e3f27c1f1f1f1f1f"}`))
	}))
	defer server.Close()

	key, problem := testProvider(server.URL).ExportSigningKey(context.Background(), "w-1")
	require.Nil(t, problem)
	require.NotEmpty(t, key)
}

func TestExportSigningKeyUnknownWallet(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	_, problem := testProvider(server.URL).ExportSigningKey(context.Background(), "w-unknown")
	require.NotNil(t, problem)
	require.Equal(t, reject.CodeWalletNotFound, problem.Problem.Code)
}
