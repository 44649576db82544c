package messaging

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types
const (
	EventBatchRegistered = "inventory.batch.registered"
	EventStockConsumed   = "inventory.stock.consumed"
	EventAlertGenerated  = "inventory.alert.generated"
)

// Exchange names
const (
	ExchangeInventoryEvents = "inventory.events"
)

// Event is the base event structure
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Source        string          `json:"source"`
	Timestamp     time.Time       `json:"timestamp"`
	CorrelationID string          `json:"correlation_id"`
	Data          json.RawMessage `json:"data"`
}

// NewEvent creates a new event with the given type and data
func NewEvent(eventType, source, correlationID string, data interface{}) (*Event, error) {
	dataBytes, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:            GenerateEventID(),
		Type:          eventType,
		Source:        source,
		Timestamp:     time.Now().UTC(),
		CorrelationID: correlationID,
		Data:          dataBytes,
	}, nil
}

// UnmarshalData unmarshals the event data into the provided struct
func (e *Event) UnmarshalData(v interface{}) error {
	return json.Unmarshal(e.Data, v)
}

// BatchRegisteredEvent is published when a delivery is booked into the ledger
type BatchRegisteredEvent struct {
	ItemID         int64  `json:"item_id"`
	ItemName       string `json:"item_name"`
	BatchID        int64  `json:"batch_id"`
	BatchNumber    string `json:"batch_number"`
	Quantity       int    `json:"quantity"`
	ExpirationDate string `json:"expiration_date"`
	Supplier       string `json:"supplier,omitempty"`
	TotalAvailable int    `json:"total_available"`
}

// StockConsumedEvent is published when stock is drawn from the ledger
type StockConsumedEvent struct {
	ItemID         int64       `json:"item_id"`
	ItemName       string      `json:"item_name"`
	Quantity       int         `json:"quantity"`
	Reason         string      `json:"reason,omitempty"`
	Draws          []EventDraw `json:"draws"`
	TotalAvailable int         `json:"total_available"`
	LowStock       bool        `json:"low_stock"`
}

// EventDraw describes how much a single batch contributed to a consumption
type EventDraw struct {
	BatchID     int64  `json:"batch_id"`
	BatchNumber string `json:"batch_number"`
	Quantity    int    `json:"quantity"`
}

// AlertGeneratedEvent is published when the scanner flags a stock condition
type AlertGeneratedEvent struct {
	AlertID     string `json:"alert_id"`
	AlertType   string `json:"alert_type"`
	Severity    string `json:"severity"`
	Message     string `json:"message"`
	ItemID      int64  `json:"item_id,omitempty"`
	ItemName    string `json:"item_name,omitempty"`
	BatchID     int64  `json:"batch_id,omitempty"`
	BatchNumber string `json:"batch_number,omitempty"`
}

// GenerateEventID generates a unique event ID
func GenerateEventID() string {
	return uuid.New().String()
}
