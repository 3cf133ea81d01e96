package audit

import (
	"encoding/json"
	"log"
	"time"
)

type Event struct {
	Timestamp  time.Time `json:"timestamp"`
	EventType  string    `json:"event_type"`
	PurchaseID string    `json:"purchase_id,omitempty"`
	Address    string    `json:"address,omitempty"`
	Amount     int64     `json:"amount,omitempty"`
	Status     string    `json:"status"`
	Details    any       `json:"details"`
}

type Logger struct{}

func NewLogger() *Logger {
	return &Logger{}
}

func (a *Logger) LogTransfer(purchaseID, from, to string, amount int64, status string) {
	event := Event{
		Timestamp:  time.Now(),
		EventType:  "TRANSFER",
		PurchaseID: purchaseID,
		Amount:     amount,
		Status:     status,
		Details: map[string]string{
			"from_address": from,
			"to_address":   to,
		},
	}
	a.log(event)
}

func (a *Logger) LogApproval(owner, spender string, amount int64) {
	event := Event{
		Timestamp: time.Now(),
		EventType: "APPROVAL",
		Address:   owner,
		Amount:    amount,
		Status:    "SUCCESS",
		Details:   map[string]string{"spender": spender},
	}
	a.log(event)
}

func (a *Logger) LogSettlement(purchaseID string, listingID int64, status string) {
	event := Event{
		Timestamp:  time.Now(),
		EventType:  "SETTLEMENT",
		PurchaseID: purchaseID,
		Status:     status,
		Details:    map[string]int64{"listing_id": listingID},
	}
	a.log(event)
}

func (a *Logger) LogError(purchaseID, address string, err error) {
	event := Event{
		Timestamp:  time.Now(),
		EventType:  "ERROR",
		PurchaseID: purchaseID,
		Address:    address,
		Status:     "FAILED",
		Details:    map[string]string{"error": err.Error()},
	}
	a.log(event)
}

func (a *Logger) LogOperation(purchaseID, address, operation, details string) {
	event := Event{
		Timestamp:  time.Now(),
		EventType:  operation,
		PurchaseID: purchaseID,
		Address:    address,
		Status:     "SUCCESS",
		Details:    map[string]string{"details": details},
	}
	a.log(event)
}

func (a *Logger) log(event Event) {
	data, _ := json.Marshal(event)
	log.Printf("AUDIT: %s", string(data))
}
