package constants

// GenerationStatus is the canonical status for rows in structured_document.
type GenerationStatus string

// Stable values (store these exact strings in DB).
const (
	StatusPending   GenerationStatus = "PENDING"   // write in flight
	StatusCompleted GenerationStatus = "COMPLETED" // terminal success
	StatusFailed    GenerationStatus = "FAILED"    // retryable until exhausted
)
