package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	commissiondomain "github.com/uplinehq/upline/internal/commission/domain"
	globalpooldomain "github.com/uplinehq/upline/internal/globalpool/domain"
	memberdomain "github.com/uplinehq/upline/internal/member/domain"
	purchasedomain "github.com/uplinehq/upline/internal/purchase/domain"
	rankdomain "github.com/uplinehq/upline/internal/rank/domain"
	"gorm.io/gorm"
)

var ErrInvalidRequest = errors.New("invalid_request")

type errorPayload struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func mapError(err error) (int, errorPayload) {
	switch {
	case isValidationError(err):
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: err.Error(),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: err.Error(),
		}
	case isConflictError(err):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: err.Error(),
		}
	case errors.Is(err, rankdomain.ErrNotFounder):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: err.Error(),
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, memberdomain.ErrInvalidAmount),
		errors.Is(err, memberdomain.ErrInsufficientBalance),
		errors.Is(err, purchasedomain.ErrInvalidPrice),
		errors.Is(err, purchasedomain.ErrInvalidQty),
		errors.Is(err, rankdomain.ErrUnknownRank):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, memberdomain.ErrMemberNotFound),
		errors.Is(err, memberdomain.ErrUplineNotFound),
		errors.Is(err, commissiondomain.ErrPurchaseNotFound),
		errors.Is(err, globalpooldomain.ErrPoolNotCalculated),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func isConflictError(err error) bool {
	switch {
	case errors.Is(err, memberdomain.ErrChatIDTaken),
		errors.Is(err, globalpooldomain.ErrPoolAlreadyCalculated),
		errors.Is(err, globalpooldomain.ErrPoolAlreadyDistributed):
		return true
	default:
		return false
	}
}
