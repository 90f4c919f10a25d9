package status

import (
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"github.com/custodia-labs/safevault-backend/internal/chain"
	"github.com/custodia-labs/safevault-backend/internal/pkg/reject"
	"github.com/spf13/viper"
)

// USDC carries six decimal places on every chain it is issued on.
const usdcDecimals = 6

type statusHandler struct {
	service *Service
}

func RegisterRoutes(rg *gin.RouterGroup, reader chain.Reader) {
	handler := statusHandler{
		service: NewService(
			reader,
			common.HexToAddress(viper.Get("USDC_CONTRACT_ADDRESS").(string)),
			usdcDecimals,
		),
	}

	routes := rg.Group("/safes")
	routes.GET("/:address/balance", handler.balance)
	routes.GET("/:address/status", handler.deploymentStatus)
}

func (h statusHandler) balance(c *gin.Context) {
	address, ok := safeAddress(c)
	if !ok {
		return
	}

	report, err := h.service.Balance(c.Request.Context(), address)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, report)
}

func (h statusHandler) deploymentStatus(c *gin.Context) {
	address, ok := safeAddress(c)
	if !ok {
		return
	}

	report, err := h.service.DeploymentStatus(c.Request.Context(), address)
	if err != nil {
		c.JSON(err.Problem.Status, err.Problem)
		return
	}

	c.JSON(http.StatusOK, report)
}

func safeAddress(c *gin.Context) (common.Address, bool) {
	raw := c.Param("address")
	if !common.IsHexAddress(raw) {
		c.JSON(http.StatusBadRequest, reject.RequestParamsProblem())
		return common.Address{}, false
	}
	return common.HexToAddress(raw), true
}
