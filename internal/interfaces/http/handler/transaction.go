package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/finsight/backend/internal/domain/ledger"
)

// UserLookup resolves an external identity to its internal UUID.
type UserLookup interface {
	Lookup(ctx context.Context, externalID string) (uuid.UUID, error)
}

// TransactionHandler serves the normalized ledger read API
type TransactionHandler struct {
	BaseHandler
	transactions ledger.TransactionRepository
	users        UserLookup
}

// NewTransactionHandler creates a new TransactionHandler
func NewTransactionHandler(transactions ledger.TransactionRepository, users UserLookup) *TransactionHandler {
	return &TransactionHandler{transactions: transactions, users: users}
}

// ListTransactionsRequest carries the listing window as date-only params
// and an optional platform filter
type ListTransactionsRequest struct {
	From     string `form:"from" binding:"omitempty,datetime=2006-01-02"`
	To       string `form:"to" binding:"omitempty,datetime=2006-01-02"`
	Platform string `form:"platform" binding:"omitempty,platform"`
}

// TransactionResponse is the wire shape of a ledger transaction
type TransactionResponse struct {
	ID          string           `json:"id"`
	Platform    string           `json:"platform"`
	PlatformID  string           `json:"platform_id"`
	Type        string           `json:"type"`
	Amount      decimal.Decimal  `json:"amount"`
	Currency    string           `json:"currency"`
	AmountUSD   decimal.Decimal  `json:"amount_usd"`
	Timestamp   time.Time        `json:"timestamp"`
	SKUID       string           `json:"sku_id,omitempty"`
	Quantity    *int64           `json:"quantity,omitempty"`
	CostPerUnit *decimal.Decimal `json:"cost_per_unit,omitempty"`
	CampaignID  string           `json:"campaign_id,omitempty"`
	CustomerID  string           `json:"customer_id,omitempty"`
}

// List returns the user's transactions within the window.
// GET /transactions
func (h *TransactionHandler) List(c *gin.Context) {
	userID, err := getUserID(c)
	if err != nil {
		h.Unauthorized(c, err.Error())
		return
	}

	var req ListTransactionsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.BadRequest(c, err.Error())
		return
	}

	from, to := resolveWindow(req.From, req.To)

	userUUID, err := h.users.Lookup(c.Request.Context(), userID)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	txs, err := h.transactions.ListByUser(c.Request.Context(), userUUID, from, to)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		if req.Platform != "" && tx.Platform.String() != req.Platform {
			continue
		}
		out = append(out, TransactionResponse{
			ID:          tx.ID.String(),
			Platform:    tx.Platform.String(),
			PlatformID:  tx.PlatformID,
			Type:        string(tx.Type),
			Amount:      tx.Amount,
			Currency:    tx.Currency,
			AmountUSD:   tx.AmountUSD,
			Timestamp:   tx.Timestamp,
			SKUID:       tx.SKUID,
			Quantity:    tx.Quantity,
			CostPerUnit: tx.CostPerUnit,
			CampaignID:  tx.CampaignID,
			CustomerID:  tx.CustomerID,
		})
	}
	h.Success(c, gin.H{"transactions": out, "count": len(out)})
}

// resolveWindow parses date-only bounds, defaulting to the last 30 days.
func resolveWindow(fromStr, toStr string) (time.Time, time.Time) {
	to := time.Now().UTC()
	if toStr != "" {
		t, _ := time.Parse("2006-01-02", toStr)
		to = t.Add(24*time.Hour - time.Nanosecond)
	}
	from := to.AddDate(0, 0, -30)
	if fromStr != "" {
		from, _ = time.Parse("2006-01-02", fromStr)
	}
	return from, to
}

// RegisterRoutes registers transaction routes on the given group
func (h *TransactionHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/transactions", h.List)
}
