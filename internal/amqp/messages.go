package amqp

import (
	"encoding/json"
	"time"
)

// ReportSyncMessage asks the worker to push one saved month to Google Sheets.
// It carries only the month key; the worker reloads the record from the store.
type ReportSyncMessage struct {
	Month     string    `json:"month"`
	BatchID   string    `json:"batch_id"`
	Timestamp time.Time `json:"timestamp"`
}

func NewReportSyncMessage(month, batchID string) *ReportSyncMessage {
	return &ReportSyncMessage{
		Month:     month,
		BatchID:   batchID,
		Timestamp: time.Now(),
	}
}

func (m *ReportSyncMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportSyncMessageFromJSON decodes a message and rejects one without a month.
func ReportSyncMessageFromJSON(data []byte) (*ReportSyncMessage, error) {
	var msg ReportSyncMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Month == "" {
		return nil, errMissingMonth
	}
	return &msg, nil
}
