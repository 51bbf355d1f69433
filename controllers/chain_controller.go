package controllers

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tws-options/interfaces"
)

// ChainController handles option-chain HTTP requests.
type ChainController struct {
	chainService interfaces.OptionChainService
	logger       *logrus.Logger
}

// NewChainController creates a new chain controller.
func NewChainController(chainService interfaces.OptionChainService) *ChainController {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &ChainController{
		chainService: chainService,
		logger:       logger,
	}
}

// HandleGetChain handles POST /options/chain.
func (cc *ChainController) HandleGetChain(c *gin.Context) {
	var req interfaces.ChainRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}
	if req.OptionType == "" {
		req.OptionType = "all"
	}

	chain, err := cc.chainService.GetOptionChain(c.Request.Context(), req)
	if err != nil {
		cc.logger.WithError(err).WithField("symbol", req.Symbol).Error("Failed to get option chain")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, chain)
}

// HandleGetExpirations handles GET /options/expirations/:symbol.
func (cc *ChainController) HandleGetExpirations(c *gin.Context) {
	symbol := c.Param("symbol")
	if symbol == "" {
		c.JSON(400, gin.H{"error": "symbol required"})
		return
	}

	result, err := cc.chainService.GetExpirations(c.Request.Context(), symbol)
	if err != nil {
		cc.logger.WithError(err).WithField("symbol", symbol).Error("Failed to get expirations")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, result)
}

// HandleSearch handles GET /search/:symbol.
func (cc *ChainController) HandleSearch(c *gin.Context) {
	symbol := c.Param("symbol")
	if symbol == "" {
		c.JSON(400, gin.H{"error": "symbol required"})
		return
	}

	result, err := cc.chainService.SearchContract(c.Request.Context(), symbol)
	if err != nil {
		cc.logger.WithError(err).WithField("symbol", symbol).Error("Failed to search contract")
		c.JSON(statusFor(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, result)
}

// statusFor maps service errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, interfaces.ErrNotConnected),
		errors.Is(err, interfaces.ErrInvalidDeltaRange),
		errors.Is(err, interfaces.ErrInvalidExpiration):
		return 400
	case errors.Is(err, interfaces.ErrSymbolNotFound):
		return 404
	default:
		return 500
	}
}
