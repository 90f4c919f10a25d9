package custody

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
	"github.com/custodia-labs/safevault-backend/internal/pkg/utils"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// ProviderWallet is the provider's view of a freshly created embedded wallet.
type ProviderWallet struct {
	Id        string `json:"id"`
	Address   string `json:"address"`
	ChainType string `json:"chain_type"`
	CreatedAt int64  `json:"created_at"`
}

// Provider wraps the external key-custody service. Exported key material is
// ephemeral: callers must turn it into a signing context immediately and must
// never persist or log it.
type Provider interface {
	Create(ctx context.Context, chainType string) (*ProviderWallet, *reject.ProblemWithTrace)
	ExportSigningKey(ctx context.Context, walletId string) (string, *reject.ProblemWithTrace)
}

type privyProvider struct {
	baseUrl   string
	appId     string
	appSecret string
	client    *http.Client
}

func NewPrivyProvider() Provider {
	return &privyProvider{
		baseUrl:   viper.Get("PRIVY_API_URL").(string),
		appId:     viper.Get("PRIVY_APP_ID").(string),
		appSecret: viper.Get("PRIVY_APP_SECRET").(string),
		client:    &http.Client{Timeout: 30 * time.Second},
	}
}

type createWalletRequest struct {
	ChainType string `json:"chain_type"`
}

type exportKeyResponse struct {
	PrivateKey string `json:"private_key"`
}

func (p *privyProvider) Create(ctx context.Context, chainType string) (*ProviderWallet, *reject.ProblemWithTrace) {
	body := utils.JsonEncode(createWalletRequest{ChainType: chainType})

	response, problem := p.send(ctx, fmt.Sprintf("%s/v1/wallets", p.baseUrl), body)
	if problem != nil {
		return nil, problem
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return nil, p.rejected(response)
	}

	wallet, err := utils.JsonDecodeByteStream[ProviderWallet](mustReadAll(response.Body))
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.ProviderRejectedProblem("malformed wallet payload"), Cause: err}
	}

	log.Info().
		Str("walletId", wallet.Id).
		Str("address", wallet.Address).
		Msg("Custodial wallet created")

	return wallet, nil
}

func (p *privyProvider) ExportSigningKey(ctx context.Context, walletId string) (string, *reject.ProblemWithTrace) {
	response, problem := p.send(ctx, fmt.Sprintf("%s/v1/wallets/%s/export", p.baseUrl, walletId), nil)
	if problem != nil {
		return "", problem
	}
	defer response.Body.Close()

	if response.StatusCode == http.StatusNotFound {
		return "", &reject.ProblemWithTrace{
			Problem: reject.WalletNotFoundProblem(walletId),
			Cause:   fmt.Errorf("provider does not know wallet %s", walletId),
		}
	}

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return "", p.rejected(response)
	}

	export, err := utils.JsonDecodeByteStream[exportKeyResponse](mustReadAll(response.Body))
	if err != nil {
		return "", &reject.ProblemWithTrace{Problem: reject.ProviderRejectedProblem("malformed export payload"), Cause: err}
	}

	// Deliberately no logging here: the response carries raw key material.
	return export.PrivateKey, nil
}

func (p *privyProvider) send(ctx context.Context, url string, body []byte) (*http.Response, *reject.ProblemWithTrace) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, url, reader)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(fmt.Sprintf("%s:%s", p.appId, p.appSecret)))
	request.Header.Set("Authorization", fmt.Sprintf("Basic %s", credentials))
	request.Header.Set("privy-app-id", p.appId)
	request.Header.Set("Content-Type", "application/json")

	response, err := p.client.Do(request)
	if err != nil {
		return nil, &reject.ProblemWithTrace{Problem: reject.ProviderUnavailableProblem(err), Cause: err}
	}

	return response, nil
}

func (p *privyProvider) rejected(response *http.Response) *reject.ProblemWithTrace {
	detail := string(mustReadAll(response.Body))
	err := fmt.Errorf("custody provider returned status %d: %s", response.StatusCode, detail)
	log.Warn().Err(err).Msg("Custody provider rejected request")
	return &reject.ProblemWithTrace{Problem: reject.ProviderRejectedProblem(detail), Cause: err}
}

func mustReadAll(body io.Reader) []byte {
	data, _ := io.ReadAll(body)
	return data
}
