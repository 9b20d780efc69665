package domain

import (
	"fmt"
	"time"
)

const (
	AccountPlatformCommission = "platform:commission"
	AccountExternalBuyers     = "external:buyers"
	AccountExternalPayouts    = "external:payouts"
)

func SellerEscrowAccount(sellerID string) string    { return "seller:" + sellerID + ":escrow" }
func SellerAvailableAccount(sellerID string) string { return "seller:" + sellerID + ":available" }
func SellerPayoutAccount(sellerID string) string    { return "seller:" + sellerID + ":payout" }

type EntryKind string

const (
	EntryEscrowHold     EntryKind = "escrow_hold"
	EntryEscrowRelease  EntryKind = "escrow_release"
	EntryCommission     EntryKind = "commission"
	EntryRefund         EntryKind = "refund"
	EntryPayoutHold     EntryKind = "payout_hold"
	EntryPayoutSettle   EntryKind = "payout_settle"
	EntryPayoutReversal EntryKind = "payout_reversal"
)

// Posting is one signed movement against an account. A group of postings
// written together must balance to zero.
type Posting struct {
	Account     string    `json:"account"`
	AmountCents int64     `json:"amount_cents"`
	Kind        EntryKind `json:"kind"`
}

type LedgerEntry struct {
	ID          string    `json:"id"`
	TxID        string    `json:"tx_id"`
	Account     string    `json:"account"`
	AmountCents int64     `json:"amount_cents"`
	Kind        EntryKind `json:"kind"`
	OrderID     string    `json:"order_id,omitempty"`
	PayoutID    string    `json:"payout_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type LedgerFilter struct {
	Account string
	OrderID string
	Limit   int
	Offset  int
}

// ValidatePostings checks that a posting group is non-empty and balanced.
func ValidatePostings(postings []Posting) error {
	if len(postings) == 0 {
		return fmt.Errorf("%w: empty posting group", ErrValidation)
	}
	var sum int64
	for _, p := range postings {
		if p.Account == "" {
			return fmt.Errorf("%w: posting without account", ErrValidation)
		}
		sum += p.AmountCents
	}
	if sum != 0 {
		return fmt.Errorf("%w: postings unbalanced by %d", ErrValidation, sum)
	}
	return nil
}

// Commission returns total*bps/10000 rounded half up.
func Commission(totalCents int64, bps int) int64 {
	if totalCents <= 0 || bps <= 0 {
		return 0
	}
	return (totalCents*int64(bps) + 5000) / 10000
}

func PaymentPostings(o Order) []Posting {
	return []Posting{
		{Account: AccountExternalBuyers, AmountCents: -o.TotalCents, Kind: EntryEscrowHold},
		{Account: SellerEscrowAccount(o.SellerID), AmountCents: o.TotalCents, Kind: EntryEscrowHold},
	}
}

func ReleasePostings(o Order, commission int64) []Posting {
	postings := []Posting{
		{Account: SellerEscrowAccount(o.SellerID), AmountCents: -o.TotalCents, Kind: EntryEscrowRelease},
		{Account: SellerAvailableAccount(o.SellerID), AmountCents: o.TotalCents - commission, Kind: EntryEscrowRelease},
	}
	if commission > 0 {
		postings = append(postings, Posting{Account: AccountPlatformCommission, AmountCents: commission, Kind: EntryCommission})
	}
	return postings
}

func RefundPostings(o Order) []Posting {
	return []Posting{
		{Account: SellerEscrowAccount(o.SellerID), AmountCents: -o.TotalCents, Kind: EntryRefund},
		{Account: AccountExternalBuyers, AmountCents: o.TotalCents, Kind: EntryRefund},
	}
}

func PayoutHoldPostings(sellerID string, amount int64) []Posting {
	return []Posting{
		{Account: SellerAvailableAccount(sellerID), AmountCents: -amount, Kind: EntryPayoutHold},
		{Account: SellerPayoutAccount(sellerID), AmountCents: amount, Kind: EntryPayoutHold},
	}
}

func PayoutSettlePostings(sellerID string, amount int64) []Posting {
	return []Posting{
		{Account: SellerPayoutAccount(sellerID), AmountCents: -amount, Kind: EntryPayoutSettle},
		{Account: AccountExternalPayouts, AmountCents: amount, Kind: EntryPayoutSettle},
	}
}

func PayoutReversalPostings(sellerID string, amount int64) []Posting {
	return []Posting{
		{Account: SellerPayoutAccount(sellerID), AmountCents: -amount, Kind: EntryPayoutReversal},
		{Account: SellerAvailableAccount(sellerID), AmountCents: amount, Kind: EntryPayoutReversal},
	}
}

// Balance summarises a seller's ledger accounts.
type Balance struct {
	SellerID       string `json:"seller_id"`
	EscrowCents    int64  `json:"escrow_cents"`
	AvailableCents int64  `json:"available_cents"`
	PayoutCents    int64  `json:"payout_pending_cents"`
}

// PlatformSummary is the admin view over platform-level accounts.
type PlatformSummary struct {
	CommissionCents     int64 `json:"commission_cents"`
	EscrowOutstanding   int64 `json:"escrow_outstanding_cents"`
	PendingPayoutsCents int64 `json:"pending_payouts_cents"`
	PaidOutCents        int64 `json:"paid_out_cents"`
}
