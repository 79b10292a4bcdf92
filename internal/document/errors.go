package document

import "fmt"

// ExtractionError means the document could not be read. It is a client
// error: retrying the same bytes will fail again.
type ExtractionError struct {
	Message string
	// Unsupported is set when the format itself is not accepted.
	Unsupported bool
	Cause       error
}

func (e *ExtractionError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("extraction error: %s: %v", e.Message, e.Cause)
	}
	return fmt.Sprintf("extraction error: %s", e.Message)
}

func (e *ExtractionError) Unwrap() error {
	return e.Cause
}
