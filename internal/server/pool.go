package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

func (s *Server) listPools(c *gin.Context) {
	limit := 0
	if raw := strings.TrimSpace(c.Query("limit")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			AbortWithError(c, ErrInvalidRequest)
			return
		}
		limit = parsed
	}

	pools, err := s.poolSvc.PoolHistory(c.Request.Context(), limit)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pools})
}

func (s *Server) getPoolQualification(c *gin.Context) {
	id, err := parseMemberID(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp, err := s.poolSvc.CheckMemberQualification(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) calculatePool(c *gin.Context) {
	pool, err := s.poolSvc.CalculateMonthlyPool(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": pool})
}

func (s *Server) distributePool(c *gin.Context) {
	resp, err := s.poolSvc.DistributeGlobalPool(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type setClockRequest struct {
	Time string `json:"time"`
}

// setVirtualClock pins the virtual clock, available only when the service
// runs in virtual clock mode. Used to walk a deployment through month
// boundaries in staging.
func (s *Server) setVirtualClock(c *gin.Context) {
	var req setClockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}

	if strings.TrimSpace(req.Time) == "" {
		s.virtualClock.Reset()
		c.JSON(http.StatusOK, gin.H{"data": gin.H{"now": s.virtualClock.Now().Format(time.RFC3339)}})
		return
	}

	t, err := time.Parse(time.RFC3339, req.Time)
	if err != nil {
		AbortWithError(c, ErrInvalidRequest)
		return
	}
	s.virtualClock.Set(t)

	c.JSON(http.StatusOK, gin.H{"data": gin.H{"now": s.virtualClock.Now().Format(time.RFC3339)}})
}
