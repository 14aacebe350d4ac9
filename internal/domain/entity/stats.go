package entity

import "github.com/shopspring/decimal"

// StatusStat is the per-status rollup row produced by the store aggregate.
type StatusStat struct {
	Status      string          `json:"status"`
	Count       int64           `json:"count"`
	TotalAmount decimal.Decimal `json:"total_amount"`
}

// PaymentStats is the full rollup returned by the stats aggregator.
type PaymentStats struct {
	ByStatus    map[string]StatusStat `json:"by_status"`
	TotalCount  int64                 `json:"total_count"`
	TotalAmount decimal.Decimal       `json:"total_amount"`
	OwnerUID    string                `json:"owner_uid,omitempty"`
}
