package models

import (
	"time"

	"gorm.io/gorm"
)

// DBChainRequest is the audit record for one served chain request.
type DBChainRequest struct {
	gorm.Model
	RequestID          string    `gorm:"uniqueIndex" json:"request_id"`
	Symbol             string    `gorm:"index" json:"symbol"`
	Expiration         string    `json:"expiration"`
	Policy             string    `gorm:"index" json:"policy"`
	NeedGreeks         bool      `json:"need_greeks"`
	StrikesSelected    int       `json:"strikes_selected"`
	ContractsQualified int       `json:"contracts_qualified"`
	GreeksReceived     int       `json:"greeks_received"`
	ElapsedMs          int64     `json:"elapsed_ms"`
	ServedAt           time.Time `gorm:"index" json:"served_at"`
}

// TableName overrides for cleaner table names
func (DBChainRequest) TableName() string {
	return "chain_requests"
}
