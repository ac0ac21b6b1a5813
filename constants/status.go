package constants

import "fmt"

// Status is the canonical processing status for a receipt log entry.
type Status string

// Stable values (store these exact strings in the log file).
const (
	StatusPending         Status = "pending"           // discovered, waiting for processing
	StatusProcessing      Status = "processing"        // extraction in flight
	StatusProcessed       Status = "processed"         // extraction produced usable data
	StatusError           Status = "error"             // failure, no retry scheduled
	StatusNoDataExtracted Status = "no_data_extracted" // extraction finished with nothing usable
	StatusEmailed         Status = "emailed"           // receipt emailed downstream
	StatusSubmitted       Status = "submitted"         // submitted for payment
	StatusPaymentReceived Status = "payment_received"  // terminal: payment confirmed
	StatusRetry           Status = "retry"             // queued for another attempt
)

// AllStatuses lists every valid status value.
var AllStatuses = []Status{
	StatusPending,
	StatusProcessing,
	StatusProcessed,
	StatusError,
	StatusNoDataExtracted,
	StatusEmailed,
	StatusSubmitted,
	StatusPaymentReceived,
	StatusRetry,
}

// ParseStatus converts a stored string into a Status, rejecting unknown values.
func ParseStatus(s string) (Status, error) {
	for _, st := range AllStatuses {
		if string(st) == s {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown status %q", s)
}

// IsValid reports whether s is one of the nine known status values.
func (s Status) IsValid() bool {
	for _, st := range AllStatuses {
		if s == st {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transitions are allowed from s.
func (s Status) IsTerminal() bool {
	return s == StatusPaymentReceived
}

// IsSuccessful reports whether s counts toward successful extractions.
func (s Status) IsSuccessful() bool {
	switch s {
	case StatusProcessed, StatusEmailed, StatusSubmitted, StatusPaymentReceived:
		return true
	}
	return false
}

// IsFailed reports whether s counts toward failed extractions.
func (s Status) IsFailed() bool {
	return s == StatusError || s == StatusNoDataExtracted
}
