package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	purchasedomain "github.com/uplinehq/upline/internal/purchase/domain"
)

type createPurchaseRequest struct {
	ChatID    int64           `json:"chat_id"`
	ProjectID int64           `json:"project_id"`
	OptionID  int64           `json:"option_id"`
	PackQty   int             `json:"pack_qty"`
	PackPrice decimal.Decimal `json:"pack_price"`
}

func (s *Server) createPurchase(c *gin.Context) {
	var req createPurchaseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.PackQty == 0 {
		req.PackQty = 1
	}

	purchase, commissions, err := s.purchaseSvc.RecordPurchase(c.Request.Context(), purchasedomain.CreatePurchaseRequest{
		ChatID:    req.ChatID,
		ProjectID: req.ProjectID,
		OptionID:  req.OptionID,
		PackQty:   req.PackQty,
		PackPrice: req.PackPrice,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": gin.H{
		"purchase":    purchase,
		"commissions": commissions,
	}})
}

// processPurchase re-runs commission processing for a recorded purchase.
// Safe to call repeatedly; an already-paid purchase returns its existing
// ledger rows.
func (s *Server) processPurchase(c *gin.Context) {
	id, err := parseMemberID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.commissionSvc.ProcessPurchase(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
