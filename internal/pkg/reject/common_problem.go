package reject

import (
	"net/http"

	"github.com/rs/zerolog/log"
)

// Stable error codes for the custody and deployment pipeline. Handlers and the
// orchestrator branch on these, so they are part of the API contract.
const (
	CodeUnexpected          string = "error.generic.unexpected"
	CodeCannotParseParams   string = "error.generic.cannot-parse-params"
	CodeInvalidRequest      string = "error.generic.invalid-request-payload"
	CodeCannotParseBody     string = "error.generic.cannot-parse-payload"
	CodeNotFound            string = "error.generic.not-found"
	CodeWalletNotFound      string = "error.wallet.not-found"
	CodeProviderUnavailable string = "error.provider.unavailable"
	CodeProviderRejected    string = "error.provider.rejected"
	CodeRelaySubmitFailed   string = "error.relay.submit-failed"
	CodeRelayRejected       string = "error.relay.rejected"
	CodeRpcUnavailable      string = "error.rpc.unavailable"
	CodeTimedOut            string = "error.deployment.timed-out"
	CodeAlreadyDeployed     string = "error.deployment.already-deployed"
	CodeConflict            string = "error.deployment.conflict"
)

func RequestValidationProblem() Problem {
	return NewProblem().
		WithTitle("Invalid request payload").
		WithStatus(http.StatusBadRequest).
		WithCode(CodeInvalidRequest).
		Build()
}

func RequestParamsProblem() Problem {
	return NewProblem().
		WithTitle("Invalid request parameters").
		WithStatus(http.StatusBadRequest).
		WithCode(CodeCannotParseParams).
		Build()
}

func BodyParseProblem() Problem {
	return NewProblem().
		WithTitle("Cannot read payload").
		WithStatus(http.StatusBadRequest).
		WithCode(CodeCannotParseBody).
		Build()
}

func NotFoundProblem() Problem {
	return NewProblem().
		WithTitle("Record not found").
		WithStatus(http.StatusNotFound).
		WithCode(CodeNotFound).
		Build()
}

func WalletNotFoundProblem(walletId string) Problem {
	return NewProblem().
		WithTitle("Custodial wallet not found").
		WithStatus(http.StatusNotFound).
		WithCode(CodeWalletNotFound).
		WithParam("walletId", walletId).
		Build()
}

// ProviderUnavailableProblem covers transport failures talking to the custody
// provider. Callers may retry with backoff; the pipeline itself never does.
func ProviderUnavailableProblem(err error) Problem {
	log.Warn().Err(err).Msg("Custody provider unreachable")
	return NewProblem().
		WithTitle("Custody provider unavailable").
		WithStatus(http.StatusServiceUnavailable).
		WithCode(CodeProviderUnavailable).
		Build()
}

// ProviderRejectedProblem carries the upstream diagnostic text of a non-2xx
// provider response. Not retried.
func ProviderRejectedProblem(detail string) Problem {
	return NewProblem().
		WithTitle("Custody provider rejected the request").
		WithStatus(http.StatusBadGateway).
		WithCode(CodeProviderRejected).
		WithDetail(detail).
		Build()
}

func RelaySubmitFailedProblem(detail string) Problem {
	return NewProblem().
		WithTitle("Relay rejected the deployment submission").
		WithStatus(http.StatusBadGateway).
		WithCode(CodeRelaySubmitFailed).
		WithDetail(detail).
		Build()
}

// RelayRejectedProblem reports a deployment the relay accepted but later
// marked as failed. Distinct from TimedOut: the outcome here is known.
func RelayRejectedProblem(detail string) Problem {
	return NewProblem().
		WithTitle("Relay reported the deployment as failed").
		WithStatus(http.StatusBadGateway).
		WithCode(CodeRelayRejected).
		WithDetail(detail).
		Build()
}

func RpcUnavailableProblem(err error) Problem {
	log.Warn().Err(err).Msg("Chain RPC node unreachable")
	return NewProblem().
		WithTitle("Chain node unavailable").
		WithStatus(http.StatusServiceUnavailable).
		WithCode(CodeRpcUnavailable).
		Build()
}

// DeploymentTimedOutProblem means the relay never confirmed within the bound.
// The deployment may still land on-chain, so this is "outcome unknown", not a
// failure; callers should reconcile via the status endpoint before retrying.
func DeploymentTimedOutProblem() Problem {
	return NewProblem().
		WithTitle("Deployment confirmation timed out").
		WithStatus(http.StatusGatewayTimeout).
		WithCode(CodeTimedOut).
		WithDetail("The relay did not confirm the deployment in time. Check the deployment status before retrying.").
		Build()
}

func AlreadyDeployedProblem(contractAddress string) Problem {
	return NewProblem().
		WithTitle("Contract already deployed for this owner").
		WithStatus(http.StatusConflict).
		WithCode(CodeAlreadyDeployed).
		WithParam("contractAddress", contractAddress).
		Build()
}

func DeploymentConflictProblem(ownerId string) Problem {
	return NewProblem().
		WithTitle("A deployment is already in progress for this owner").
		WithStatus(http.StatusConflict).
		WithCode(CodeConflict).
		WithParam("ownerId", ownerId).
		Build()
}

func UnexpectedProblem(err error) Problem {
	log.Warn().Err(err).Msg("Unexpected error while handling request: " + err.Error())
	return NewProblem().
		WithTitle("Unexpected error").
		WithStatus(http.StatusInternalServerError).
		WithCode(CodeUnexpected).
		Build()
}
