package server

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
)

type registerMemberRequest struct {
	ChatID       int64  `json:"chat_id"`
	UplineChatID *int64 `json:"upline_chat_id"`
}

func (s *Server) registerMember(c *gin.Context) {
	var req registerMemberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	if req.ChatID == 0 {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.memberSvc.Register(c.Request.Context(), memberdomain.RegisterRequest{
		ChatID:       req.ChatID,
		UplineChatID: req.UplineChatID,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": resp})
}

func (s *Server) getMember(c *gin.Context) {
	id, err := parseMemberID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.memberSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) getActiveRank(c *gin.Context) {
	id, err := parseMemberID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	rank, err := s.rankSvc.ActiveRank(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"member_id": id.String(), "rank": rank}})
}

func (s *Server) getBranches(c *gin.Context) {
	id, err := parseMemberID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	count := 0
	if raw := strings.TrimSpace(c.Query("count")); raw != "" {
		count, err = strconv.Atoi(raw)
		if err != nil || count < 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
	}

	branches, err := s.volumeSvc.BestBranches(c.Request.Context(), id, count)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": branches})
}

type transferRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

func (s *Server) transferBalance(c *gin.Context) {
	id, err := parseMemberID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	resp, err := s.memberSvc.TransferPassiveToActive(c.Request.Context(), id, req.Amount)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func parseMemberID(c *gin.Context) (snowflake.ID, error) {
	raw := strings.TrimSpace(c.Param("id"))
	id, err := snowflake.ParseString(raw)
	if err != nil {
		return 0, ErrInvalidRequest
	}
	return id, nil
}
