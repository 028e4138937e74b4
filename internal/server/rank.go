package server

import (
	"net/http"
	"strings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/uplinehq/upline/internal/rankplan"
)

func (s *Server) getQualification(c *gin.Context) {
	id, err := parseMemberID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.rankSvc.CheckQualification(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) checkAllRanks(c *gin.Context) {
	resp, err := s.rankSvc.CheckAllRanks(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type assignRankRequest struct {
	FounderID string `json:"founder_id"`
	MemberID  string `json:"member_id"`
	Rank      string `json:"rank"`
}

func (s *Server) assignRank(c *gin.Context) {
	var req assignRankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	founderID, err := snowflake.ParseString(strings.TrimSpace(req.FounderID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	memberID, err := snowflake.ParseString(strings.TrimSpace(req.MemberID))
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if err := s.rankSvc.AssignRank(c.Request.Context(), founderID, memberID, rankplan.Rank(strings.TrimSpace(req.Rank))); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"member_id": memberID.String(), "rank": req.Rank}})
}

func (s *Server) resetVolumes(c *gin.Context) {
	affected, err := s.volumeSvc.ResetMonthlyVolumes(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"members_reset": affected}})
}

func (s *Server) snapshotStats(c *gin.Context) {
	resp, err := s.rankSvc.SaveAllMonthlyStats(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
