package amqp

import (
	"encoding/json"
	"time"

	"fintrack/internal/core"
)

// BudgetAlertMessage carries one batch of generated alerts to the delivery
// worker. The worker formats and emails them; the API side never blocks on
// delivery.
type BudgetAlertMessage struct {
	UserID    string       `json:"userId"`
	Alerts    []core.Alert `json:"alerts"`
	Timestamp time.Time    `json:"timestamp"`
}

func NewBudgetAlertMessage(userID string, alerts []core.Alert) *BudgetAlertMessage {
	return &BudgetAlertMessage{
		UserID:    userID,
		Alerts:    alerts,
		Timestamp: time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *BudgetAlertMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// BudgetAlertMessageFromJSON creates a message from JSON bytes
func BudgetAlertMessageFromJSON(data []byte) (*BudgetAlertMessage, error) {
	var msg BudgetAlertMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
