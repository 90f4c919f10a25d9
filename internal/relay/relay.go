package relay

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
	"github.com/custodia-labs/safevault-backend/internal/pkg/utils"
	"github.com/jpillora/backoff"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const deployTypeSafeCreate = "SAFE-CREATE"

// Relay task states as reported by the relayer's transaction endpoint.
const (
	taskStateMined     = "STATE_MINED"
	taskStateConfirmed = "STATE_CONFIRMED"
	taskStateFailed    = "STATE_FAILED"
)

// Outcome is the finalized result of a relayed deployment.
type Outcome struct {
	ContractAddress string
	TransactionHash string
}

// Relay wraps the gas-abstracted deployment relayer. Submission needs a
// signing capability for exactly one signature; awaiting suspends the caller
// until the relayer finalizes or the timeout elapses. A timeout means the
// outcome is unknown, not that the deployment failed.
type Relay interface {
	SubmitDeployment(ctx context.Context, signer *SigningContext) (string, *reject.ProblemWithTrace)
	AwaitOutcome(ctx context.Context, handle string, timeout time.Duration) (*Outcome, *reject.ProblemWithTrace)
}

type relayClient struct {
	baseUrl string
	chainId int64
	client  *http.Client
}

func NewRelayClient() Relay {
	return newRelayClient(
		viper.Get("RELAYER_URL").(string),
		viper.GetInt64("CHAIN_ID"),
		&http.Client{Timeout: 30 * time.Second},
	)
}

func newRelayClient(baseUrl string, chainId int64, client *http.Client) Relay {
	return &relayClient{
		baseUrl: baseUrl,
		chainId: chainId,
		client:  client,
	}
}

type deployRequest struct {
	From      string `json:"from"`
	ChainId   int64  `json:"chainId"`
	Type      string `json:"type"`
	Signature string `json:"signature"`
}

type deployResponse struct {
	TaskId string `json:"taskId"`
}

type taskStateResponse struct {
	State           string `json:"state"`
	ProxyAddress    string `json:"proxyAddress"`
	TransactionHash string `json:"transactionHash"`
	Error           string `json:"error"`
}

func (r *relayClient) SubmitDeployment(ctx context.Context, signer *SigningContext) (string, *reject.ProblemWithTrace) {
	from := signer.Address().Hex()

	digest := crypto.Keccak256([]byte(fmt.Sprintf("%s:%d:%s", deployTypeSafeCreate, r.chainId, from)))
	signature, err := signer.SignMessage(digest)
	if err != nil {
		return "", &reject.ProblemWithTrace{Problem: reject.RelaySubmitFailedProblem("cannot sign deployment request"), Cause: err}
	}

	body := utils.JsonEncode(deployRequest{
		From:      from,
		ChainId:   r.chainId,
		Type:      deployTypeSafeCreate,
		Signature: hexutil.Encode(signature),
	})

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, fmt.Sprintf("%s/deploy", r.baseUrl), bytes.NewReader(body))
	if err != nil {
		return "", &reject.ProblemWithTrace{Problem: reject.UnexpectedProblem(err), Cause: err}
	}
	request.Header.Set("Content-Type", "application/json")

	response, err := r.client.Do(request)
	if err != nil {
		return "", &reject.ProblemWithTrace{Problem: reject.RelaySubmitFailedProblem(err.Error()), Cause: err}
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		detail, _ := io.ReadAll(response.Body)
		err := fmt.Errorf("relay returned status %d: %s", response.StatusCode, detail)
		return "", &reject.ProblemWithTrace{Problem: reject.RelaySubmitFailedProblem(string(detail)), Cause: err}
	}

	submitted, err := utils.JsonDecodeByteStream[deployResponse](readAll(response.Body))
	if err != nil || submitted.TaskId == "" {
		return "", &reject.ProblemWithTrace{Problem: reject.RelaySubmitFailedProblem("malformed relay response"), Cause: err}
	}

	log.Info().
		Str("from", from).
		Str("relayHandle", submitted.TaskId).
		Msg("Deployment submitted to relay")

	return submitted.TaskId, nil
}

// AwaitOutcome polls the relayer until the task is mined, fails, or the
// deadline passes. Jittered backoff keeps the polling gentle; the deadline is
// the only cancellation mechanism, an already-submitted deployment cannot be
// recalled.
func (r *relayClient) AwaitOutcome(ctx context.Context, handle string, timeout time.Duration) (*Outcome, *reject.ProblemWithTrace) {
	b := &backoff.Backoff{
		Min:    500 * time.Millisecond,
		Max:    5 * time.Second,
		Factor: 2,
		Jitter: true,
	}

	deadline := time.Now().Add(timeout)

	for {
		task, err := r.fetchTask(ctx, handle)
		if err != nil {
			// Poll failures are transient from this layer's point of view;
			// only the task state or the deadline decides the outcome.
			log.Warn().Err(err).Str("relayHandle", handle).Msg("Relay task poll failed, will retry")
		} else {
			switch task.State {
			case taskStateMined, taskStateConfirmed:
				log.Info().
					Str("relayHandle", handle).
					Str("contractAddress", task.ProxyAddress).
					Str("transactionHash", task.TransactionHash).
					Msg("Relay confirmed deployment")
				return &Outcome{
					ContractAddress: task.ProxyAddress,
					TransactionHash: task.TransactionHash,
				}, nil
			case taskStateFailed:
				failure := fmt.Errorf("relay task %s failed: %s", handle, task.Error)
				log.Warn().Err(failure).Msg("Relay reported deployment failure")
				return nil, &reject.ProblemWithTrace{Problem: reject.RelayRejectedProblem(task.Error), Cause: failure}
			}
		}

		select {
		case <-ctx.Done():
			return nil, &reject.ProblemWithTrace{Problem: reject.DeploymentTimedOutProblem(), Cause: ctx.Err()}
		case <-time.After(b.Duration()):
		}

		if time.Now().After(deadline) {
			err := fmt.Errorf("relay task %s not finalized within %s", handle, timeout)
			log.Warn().Err(err).Msg("Deployment confirmation timed out")
			return nil, &reject.ProblemWithTrace{Problem: reject.DeploymentTimedOutProblem(), Cause: err}
		}
	}
}

func (r *relayClient) fetchTask(ctx context.Context, handle string) (*taskStateResponse, error) {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf("%s/deploy/%s", r.baseUrl, handle), nil)
	if err != nil {
		return nil, err
	}

	response, err := r.client.Do(request)
	if err != nil {
		return nil, err
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		detail, _ := io.ReadAll(response.Body)
		return nil, fmt.Errorf("relay task lookup returned status %d: %s", response.StatusCode, detail)
	}

	task, err := utils.JsonDecodeByteStream[taskStateResponse](readAll(response.Body))
	if err != nil {
		return nil, fmt.Errorf("malformed relay task payload: %w", err)
	}

	return task, nil
}

func readAll(body io.Reader) []byte {
	data, _ := io.ReadAll(body)
	return data
}
