package domain

import (
	"context"
	"errors"

	"github.com/bwmarrin/snowflake"
	"github.com/shopspring/decimal"
)

var (
	ErrMemberNotFound      = errors.New("member_not_found")
	ErrUplineNotFound      = errors.New("upline_not_found")
	ErrChatIDTaken         = errors.New("chat_id_taken")
	ErrInvalidAmount       = errors.New("invalid_amount")
	ErrInsufficientBalance = errors.New("insufficient_balance")

	// ErrUplineCycle marks a corrupted parent reference in the referral
	// tree. Walks report it instead of looping.
	ErrUplineCycle = errors.New("upline_cycle_detected")
)

type RegisterRequest struct {
	ChatID       int64  `json:"chat_id"`
	UplineChatID *int64 `json:"upline_chat_id,omitempty"`
}

// TransferResult reports a passive-to-active balance move including the
// transfer bonus credited on top.
type TransferResult struct {
	MemberID    snowflake.ID    `json:"member_id"`
	Amount      decimal.Decimal `json:"amount"`
	BonusAmount decimal.Decimal `json:"bonus_amount"`
}

type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Member, error)
	GetByID(ctx context.Context, id snowflake.ID) (*Member, error)
	GetByChatID(ctx context.Context, chatID int64) (*Member, error)
	TransferPassiveToActive(ctx context.Context, memberID snowflake.ID, amount decimal.Decimal) (*TransferResult, error)
}
