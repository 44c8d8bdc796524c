// Package api exposes the public REST surface for intents, subscriptions
// and the checkout widget.
package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/paystream-hq/paystreamer/pkg/errs"
	"github.com/paystream-hq/paystreamer/pkg/intent"
	"github.com/paystream-hq/paystreamer/pkg/logger"
	"github.com/paystream-hq/paystreamer/pkg/models"
	"github.com/paystream-hq/paystreamer/pkg/registry"
	"github.com/paystream-hq/paystreamer/pkg/subscription"
)

// ExecutionDriver triggers an immediate settlement attempt for one intent.
type ExecutionDriver interface {
	ExecuteIntent(ctx context.Context, id string) error
}

// WalletInfoProvider reports the signer wallet backing the registry.
type WalletInfoProvider interface {
	WalletInfo(ctx context.Context) (registry.WalletInfo, error)
}

// Server is the public HTTP API.
type Server struct {
	intents *intent.Manager
	subs    *subscription.Manager
	driver  ExecutionDriver
	wallet  WalletInfoProvider
	network string
	logger  logger.Logger
}

// NewServer creates the public API server.
func NewServer(intents *intent.Manager, subs *subscription.Manager, driver ExecutionDriver, wallet WalletInfoProvider, network string, log logger.Logger) *Server {
	return &Server{
		intents: intents,
		subs:    subs,
		driver:  driver,
		wallet:  wallet,
		network: network,
		logger:  log,
	}
}

// Router builds the gin engine with all API routes.
func (s *Server) Router() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := r.Group("/api")
	{
		api.POST("/intents", s.createIntent)
		api.GET("/intents", s.listIntents)
		api.GET("/intents/:id", s.getIntent)
		api.GET("/intents/:id/status", s.getIntentStatus)
		api.POST("/intents/:id/cancel", s.cancelIntent)
		api.POST("/intents/:id/execute", s.executeIntent)

		api.POST("/subscriptions", s.createSubscription)
		api.GET("/subscriptions", s.listSubscriptions)
		api.GET("/subscriptions/:id", s.getSubscription)
		api.POST("/subscriptions/:id/cancel", s.cancelSubscription)

		api.POST("/widget/init", s.initWidget)
		api.GET("/wallet", s.walletInfo)
	}

	return r
}

// createIntentPayload is the wire shape for intent creation: the owner
// rides alongside the intent fields.
type createIntentPayload struct {
	Owner string `json:"owner"`
	models.CreateIntentRequest
}

func (s *Server) createIntent(c *gin.Context) {
	var payload createIntentPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	it, err := s.intents.CreateIntent(c.Request.Context(), payload.CreateIntentRequest, payload.Owner)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, it)
}

func (s *Server) listIntents(c *gin.Context) {
	owner := c.Query("owner")
	var intents []models.Intent
	if owner != "" {
		intents = s.intents.UserIntents(owner)
	} else {
		intents = s.intents.AllIntents()
	}
	if intents == nil {
		intents = []models.Intent{}
	}
	c.JSON(http.StatusOK, gin.H{"intents": intents})
}

func (s *Server) getIntent(c *gin.Context) {
	it, err := s.intents.GetIntent(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Server) getIntentStatus(c *gin.Context) {
	id := c.Param("id")
	it, err := s.intents.GetIntent(id)
	if err != nil {
		s.respondError(c, err)
		return
	}

	logs := s.intents.Logs(id)
	if logs == nil {
		logs = []models.ExecutionLog{}
	}

	c.JSON(http.StatusOK, gin.H{
		"intent": it,
		"logs":   logs,
	})
}

func (s *Server) cancelIntent(c *gin.Context) {
	id := c.Param("id")
	if err := s.intents.CancelIntent(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}

	it, err := s.intents.GetIntent(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Server) executeIntent(c *gin.Context) {
	id := c.Param("id")
	if err := s.driver.ExecuteIntent(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}

	it, err := s.intents.GetIntent(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, it)
}

func (s *Server) createSubscription(c *gin.Context) {
	var req models.CreateSubscriptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}

	sub, err := s.subs.CreateSubscription(req)
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, sub)
}

func (s *Server) listSubscriptions(c *gin.Context) {
	customer := c.Query("customer")
	var subs []models.Subscription
	if customer != "" {
		subs = s.subs.CustomerSubscriptions(customer)
	} else {
		subs = s.subs.AllSubscriptions()
	}
	if subs == nil {
		subs = []models.Subscription{}
	}
	c.JSON(http.StatusOK, gin.H{"subscriptions": subs})
}

func (s *Server) getSubscription(c *gin.Context) {
	sub, err := s.subs.GetSubscription(c.Param("id"))
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

func (s *Server) cancelSubscription(c *gin.Context) {
	id := c.Param("id")
	if err := s.subs.CancelSubscription(id); err != nil {
		s.respondError(c, err)
		return
	}

	sub, err := s.subs.GetSubscription(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, sub)
}

// widgetInitRequest describes a checkout session a merchant embeds in
// their page.
type widgetInitRequest struct {
	MerchantID string `json:"merchant_id"`
	Amount     string `json:"amount"`
	Token      string `json:"token"`
	Recipient  string `json:"recipient"`
	Recurring  bool   `json:"recurring,omitempty"`
}

func (s *Server) initWidget(c *gin.Context) {
	var req widgetInitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body: " + err.Error()})
		return
	}
	if req.MerchantID == "" || req.Amount == "" || req.Token == "" || req.Recipient == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "merchant_id, amount, token and recipient are required"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": uuid.NewString(),
		"network":    s.network,
		"payment": gin.H{
			"merchant_id": req.MerchantID,
			"amount":      req.Amount,
			"token":       req.Token,
			"recipient":   req.Recipient,
			"recurring":   req.Recurring,
		},
	})
}

func (s *Server) walletInfo(c *gin.Context) {
	info, err := s.wallet.WalletInfo(c.Request.Context())
	if err != nil {
		s.respondError(c, errs.Collaborator("wallet info", err))
		return
	}
	c.JSON(http.StatusOK, info)
}

// respondError maps domain errors to HTTP status codes.
func (s *Server) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, errs.ErrInvalidState), errors.Is(err, errs.ErrRaceLost):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	default:
		s.logger.Error("API internal error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}
