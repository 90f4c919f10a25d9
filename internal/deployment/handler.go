package deployment

import (
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/custodia-labs/safevault-backend/internal/custody"
	"github.com/custodia-labs/safevault-backend/internal/pkg/middleware"
	"github.com/custodia-labs/safevault-backend/internal/pkg/model"
	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
	"github.com/custodia-labs/safevault-backend/internal/pkg/utils"
	"github.com/custodia-labs/safevault-backend/internal/relay"
	"github.com/spf13/viper"
	"gorm.io/gorm"
)

const defaultAwaitTimeout = 60 * time.Second

type deploymentHandler struct {
	orchestrator *Orchestrator
	attempts     AttemptStore
}

func RegisterRoutes(rg *gin.RouterGroup, db *gorm.DB, registry *custody.Registry, provider custody.Provider, relayClient relay.Relay) {
	awaitTimeout := defaultAwaitTimeout
	if viper.IsSet("DEPLOYMENT_AWAIT_TIMEOUT") {
		awaitTimeout = viper.GetDuration("DEPLOYMENT_AWAIT_TIMEOUT")
	}

	attempts := NewAttemptStore(db)
	handler := deploymentHandler{
		orchestrator: NewOrchestrator(registry, provider, relayClient, attempts, awaitTimeout),
		attempts:     attempts,
	}

	routes := rg.Group("/deployments")
	routes.POST("", middleware.VerifyAuthToken, handler.deploy)
	routes.GET("", middleware.VerifyAuthToken, handler.listAttempts)
}

type DeployRequest struct {
	OwnerId          string `json:"ownerId"`
	CustodialAddress string `json:"custodialAddress"`
}

func (h deploymentHandler) deploy(c *gin.Context) {
	body := DeployRequest{}

	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	ownerRef := strings.TrimSpace(body.OwnerId)
	if custodialAddress := strings.TrimSpace(body.CustodialAddress); custodialAddress != "" {
		if !common.IsHexAddress(custodialAddress) {
			c.JSON(http.StatusBadRequest, reject.RequestValidationProblem())
			return
		}
		ownerRef = custodialAddress
	}

	if ownerRef == "" || len(ownerRef) > 128 {
		c.JSON(http.StatusBadRequest, reject.RequestValidationProblem())
		return
	}

	result, err := h.orchestrator.Deploy(c.Request.Context(), ownerRef)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h deploymentHandler) listAttempts(c *gin.Context) {
	page, err := utils.NewPageRequest(c)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	ownerId := strings.TrimSpace(c.Query("owner_id"))
	if ownerId == "" {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	attempts, total, listErr := h.attempts.ListByOwner(ownerId, page.Offset, page.Size)
	if listErr != nil {
		problem := reject.UnexpectedProblem(listErr)
		c.JSON(problem.Status, problem)
		return
	}

	c.JSON(http.StatusOK, utils.NewPageResponse[model.DeploymentAttempt]().
		WithItems(attempts).
		WithItemCount(total).
		WithNextPageToken(int64(page.Token+1)).
		Build())
}
