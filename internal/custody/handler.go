package custody

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/custodia-labs/safevault-backend/internal/pkg/middleware"
	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
)

type custodyHandler struct {
	service *custodyService
}

func RegisterRoutes(rg *gin.RouterGroup, registry *Registry) {
	handler := custodyHandler{
		service: &custodyService{registry: registry},
	}

	routes := rg.Group("/wallets")
	routes.POST("", middleware.VerifyAuthToken, handler.createWallet)
	routes.GET("/:ownerId", middleware.VerifyAuthToken, handler.getWallet)
}

type CreateWalletRequest struct {
	OwnerId string `json:"ownerId"`
}

func (h custodyHandler) createWallet(c *gin.Context) {
	body := CreateWalletRequest{}

	if err := c.BindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, reject.BodyParseProblem())
		return
	}

	ownerId := strings.TrimSpace(body.OwnerId)
	if ownerId == "" || len(ownerId) > 128 {
		c.JSON(http.StatusBadRequest, reject.RequestValidationProblem())
		return
	}

	record, err := h.service.createWallet(c.Request.Context(), ownerId)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, record)
}

func (h custodyHandler) getWallet(c *gin.Context) {
	ownerId := strings.TrimSpace(c.Param("ownerId"))
	if ownerId == "" {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return
	}

	record, err := h.service.findWallet(ownerId)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, record)
}
