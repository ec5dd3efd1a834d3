package payment

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Handler handles HTTP requests for payments.
type Handler struct {
	service *Service
}

// NewHandler creates a new payment handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the payment routes.
func (h *Handler) RegisterRoutes(r *gin.RouterGroup) {
	transactions := r.Group("/transactions")
	{
		transactions.POST("", h.CreateTransaction)
		transactions.GET("/:id", h.GetTransaction)
		transactions.POST("/:id/refund", h.InitiateRefund)
	}
}

type createTransactionBody struct {
	UserID      uuid.UUID       `json:"user_id" binding:"required"`
	Amount      decimal.Decimal `json:"amount" binding:"required"`
	Currency    string          `json:"currency"`
	Description string          `json:"description"`

	// Set to retry a payment; in-flight transactions are reused and
	// already-paid ones rejected.
	PriorTransactionID *uuid.UUID `json:"prior_transaction_id"`
}

type refundBody struct {
	Amount decimal.Decimal `json:"amount"`
	Reason string          `json:"reason"`
}

// CreateTransaction creates a payment transaction and schedules intent creation.
func (h *Handler) CreateTransaction(c *gin.Context) {
	var body createTransactionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	req := &CreateTransactionRequest{
		UserID:      body.UserID,
		Amount:      body.Amount,
		Currency:    body.Currency,
		Description: body.Description,
	}

	priorID := uuid.Nil
	if body.PriorTransactionID != nil {
		priorID = *body.PriorTransactionID
	}

	tx, err := h.service.EnsureIntent(c.Request.Context(), priorID, req)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusCreated, tx)
}

// GetTransaction returns a transaction by ID.
func (h *Handler) GetTransaction(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	tx, err := h.service.GetTransaction(c.Request.Context(), id)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusOK, tx)
}

// InitiateRefund requests a refund against a succeeded transaction.
func (h *Handler) InitiateRefund(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid transaction ID"})
		return
	}

	var body refundBody
	if err := c.ShouldBindJSON(&body); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	refund, err := h.service.InitiateRefund(c.Request.Context(), id, body.Amount, body.Reason)
	if err != nil {
		handlePaymentError(c, err)
		return
	}

	c.JSON(http.StatusAccepted, refund)
}

func handlePaymentError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, ErrTransactionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "transaction_not_found"})
	case errors.Is(err, ErrRefundNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "refund_not_found"})
	case errors.Is(err, ErrAlreadyPaid):
		c.JSON(http.StatusConflict, gin.H{"error": "already_paid"})
	case errors.Is(err, ErrRefundPending):
		c.JSON(http.StatusConflict, gin.H{"error": "refund_pending"})
	case errors.Is(err, ErrNotSucceeded):
		c.JSON(http.StatusBadRequest, gin.H{"error": "transaction_not_succeeded"})
	case errors.Is(err, ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_amount"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
	}
}
