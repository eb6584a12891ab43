package storage

import "errors"

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// ErrUnsupportedMode is returned by Execute for a mode it does not know.
var ErrUnsupportedMode = errors.New("unsupported statement mode")

// ConfigRowID is the identifier of the single configuration row.
const ConfigRowID = 1

// ConfigRecord is the persisted configuration row. Content holds the
// full settings payload as JSON text.
type ConfigRecord struct {
	ID      int64
	Content string
}

// Mode tells Execute what kind of write a statement performs.
type Mode string

const (
	ModeUpdate Mode = "update"
	ModeInsert Mode = "insert"
	ModeDelete Mode = "delete"
)

func (m Mode) valid() bool {
	switch m {
	case ModeUpdate, ModeInsert, ModeDelete:
		return true
	}
	return false
}

// WriteAck acknowledges a write statement.
type WriteAck struct {
	Changes         int64 `json:"changes"`
	LastInsertRowID int64 `json:"lastInsertRowid"`
}
