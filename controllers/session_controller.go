package controllers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"tws-options/interfaces"
)

// SessionController manages the gateway session lifecycle.
type SessionController struct {
	gateway interfaces.MarketDataGateway
	logger  *logrus.Logger
}

// NewSessionController creates a new session controller.
func NewSessionController(gateway interfaces.MarketDataGateway) *SessionController {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	return &SessionController{
		gateway: gateway,
		logger:  logger,
	}
}

// ConnectRequest is the body for POST /connect.
type ConnectRequest struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	ClientID int    `json:"client_id"`
}

// HandleStatus handles GET /.
func (sc *SessionController) HandleStatus(c *gin.Context) {
	c.JSON(200, gin.H{
		"status":       "ok",
		"ib_connected": sc.gateway.IsConnected(),
	})
}

// HandleConnect handles POST /connect.
func (sc *SessionController) HandleConnect(c *gin.Context) {
	req := ConnectRequest{Host: "127.0.0.1", Port: 7497, ClientID: 1}
	if err := c.ShouldBindJSON(&req); err != nil && err.Error() != "EOF" {
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	if sc.gateway.IsConnected() {
		c.JSON(200, gin.H{"message": "Already connected"})
		return
	}

	if err := sc.gateway.Connect(c.Request.Context(), req.Host, req.Port, req.ClientID); err != nil {
		sc.logger.WithError(err).Error("Failed to connect to TWS")
		c.JSON(400, gin.H{"error": err.Error()})
		return
	}

	c.JSON(200, gin.H{"message": "Connected successfully"})
}

// HandleDisconnect handles POST /disconnect.
func (sc *SessionController) HandleDisconnect(c *gin.Context) {
	if err := sc.gateway.Disconnect(); err != nil {
		c.JSON(500, gin.H{"error": err.Error()})
		return
	}
	c.JSON(200, gin.H{"message": "Disconnected"})
}
