package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ReportExportMessage asks the export worker to write the report of one
// period. The worker reads the ledger itself; the message carries no rows.
type ReportExportMessage struct {
	ID          string    `json:"id"`
	Month       int       `json:"month"`
	Year        int       `json:"year"`
	Destination string    `json:"destination,omitempty"`
	Timestamp   time.Time `json:"timestamp"`
}

func NewReportExportMessage(month, year int, destination string) *ReportExportMessage {
	return &ReportExportMessage{
		ID:          uuid.NewString(),
		Month:       month,
		Year:        year,
		Destination: destination,
		Timestamp:   time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *ReportExportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ReportExportMessageFromJSON decodes and sanity-checks a message body.
func ReportExportMessageFromJSON(data []byte) (*ReportExportMessage, error) {
	var msg ReportExportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Month < 1 || msg.Month > 12 || msg.Year < 1 {
		return nil, fmt.Errorf("invalid period %d/%d", msg.Month, msg.Year)
	}
	return &msg, nil
}
