package domain

import (
	"fmt"
	"time"
)

type PayoutStatus string

const (
	PayoutStatusRequested PayoutStatus = "requested"
	PayoutStatusPaid      PayoutStatus = "paid"
	PayoutStatusRejected  PayoutStatus = "rejected"
)

func CheckPayoutTransition(from, to PayoutStatus) (changed bool, err error) {
	if from == to {
		return false, nil
	}
	if from == PayoutStatusRequested && (to == PayoutStatusPaid || to == PayoutStatusRejected) {
		return true, nil
	}
	return false, fmt.Errorf("%w: payout %s -> %s", ErrInvalidTransition, from, to)
}

type Payout struct {
	ID           string       `json:"id"`
	SellerID     string       `json:"seller_id"`
	AmountCents  int64        `json:"amount_cents"`
	Status       PayoutStatus `json:"status"`
	Reference    string       `json:"reference,omitempty"`
	StatementKey string       `json:"statement_key,omitempty"`
	Note         string       `json:"note,omitempty"`
	Version      int          `json:"version"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

type PayoutFilter struct {
	SellerID string
	Status   PayoutStatus
	Limit    int
	Offset   int
}

// PayoutTransition is a guarded payout status change with its postings.
type PayoutTransition struct {
	PayoutID     string
	From         PayoutStatus
	To           PayoutStatus
	Version      int
	Reference    string
	StatementKey string
	Note         string
	Postings     []Posting
	At           time.Time
}
