package domain

import "time"

type SellerStatus string

const (
	SellerStatusPending   SellerStatus = "pending"
	SellerStatusApproved  SellerStatus = "approved"
	SellerStatusSuspended SellerStatus = "suspended"
)

var sellerTransitions = map[SellerStatus][]SellerStatus{
	SellerStatusPending:   {SellerStatusApproved},
	SellerStatusApproved:  {SellerStatusSuspended},
	SellerStatusSuspended: {SellerStatusApproved},
}

// CanTransition reports whether a seller may move from s to next.
func (s SellerStatus) CanTransition(next SellerStatus) bool {
	for _, allowed := range sellerTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type Seller struct {
	ID            string       `json:"id"`
	Name          string       `json:"name"`
	Email         string       `json:"email"`
	StoreName     string       `json:"store_name"`
	Status        SellerStatus `json:"status"`
	CommissionBps int          `json:"commission_bps"` // 0 uses the platform default
	Version       int          `json:"version"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

type SellerFilter struct {
	Status SellerStatus
	Limit  int
	Offset int
}
