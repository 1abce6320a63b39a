package ch

import "fmt"

var (
	// ErrWriterClosed is returned by Write after Close
	ErrWriterClosed = fmt.Errorf("ch: audit writer is closed")

	// ErrConnectionClosed is returned by client calls after Close
	ErrConnectionClosed = fmt.Errorf("ch: client is closed")

	// ErrInvalidTable rejects table names that are not plain identifiers
	ErrInvalidTable = fmt.Errorf("ch: table name must be a plain identifier")

	// ErrWriterDisabled is returned by Writer when Config.WriterConfig is nil
	ErrWriterDisabled = fmt.Errorf("ch: audit writer is disabled, set WriterConfig to enable it")
)

// ErrInvalidConfig invalid config
func ErrInvalidConfig(msg string) error {
	return fmt.Errorf("ch: invalid config: %s", msg)
}

// ErrConnection wraps a dial or ping failure
func ErrConnection(err error) error {
	return fmt.Errorf("ch: connect: %w", err)
}

// ErrInsert wraps a failed batch insert into table
func ErrInsert(table string, err error) error {
	return fmt.Errorf("ch: insert into %s: %w", table, err)
}
