package amqp

import (
	"errors"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
)

var (
	ErrMissingJobID = errors.New("import message has no job id")
	ErrMissingPath  = errors.New("import message has no file path")
)

// ImportMessage asks a worker to load a deprivation CSV.
// The file must be readable from the worker's filesystem.
type ImportMessage struct {
	JobID       uuid.UUID `json:"job_id"`
	Path        string    `json:"path"`
	CreateTable bool      `json:"create_table"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewImportMessage creates an import request with a fresh job ID
func NewImportMessage(path string, createTable bool) *ImportMessage {
	return &ImportMessage{
		JobID:       uuid.New(),
		Path:        path,
		CreateTable: createTable,
		RequestedAt: time.Now().UTC(),
	}
}

func (m *ImportMessage) Validate() error {
	if m.JobID == uuid.Nil {
		return ErrMissingJobID
	}
	if m.Path == "" {
		return ErrMissingPath
	}
	return nil
}

// ToJSON converts the message to JSON bytes
func (m *ImportMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ImportMessageFromJSON decodes and validates a message
func ImportMessageFromJSON(data []byte) (*ImportMessage, error) {
	var msg ImportMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if err := msg.Validate(); err != nil {
		return nil, err
	}
	return &msg, nil
}
