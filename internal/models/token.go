package models

import "time"

// TokenInfo describes the marketplace settlement token.
type TokenInfo struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Decimals    int    `json:"decimals"`
	TotalSupply int64  `json:"totalSupply"`
}

// TransferRecord is the single most recent successful transfer. Each
// successful transfer overwrites it; callers that need history must index
// transfer events externally.
type TransferRecord struct {
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Amount    int64     `json:"amount"`
	Timestamp time.Time `json:"timestamp"`
}
