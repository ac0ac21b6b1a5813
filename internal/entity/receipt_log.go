package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/receipts-lifecycle/constants"
)

// LogFileVersion is the persisted document format version.
const LogFileVersion = "1.0"

// ReceiptData holds the payload produced by an extraction collaborator.
// The lifecycle core treats it as opaque beyond Usable().
type ReceiptData struct {
	VendorName           string     `json:"vendor_name,omitempty"`
	TransactionDate      *time.Time `json:"transaction_date,omitempty"`
	TotalAmount          *float64   `json:"total_amount,omitempty"`
	Currency             string     `json:"currency,omitempty"`
	ReceiptNumber        string     `json:"receipt_number,omitempty"`
	ExtractedText        string     `json:"extracted_text,omitempty"`
	ExtractionConfidence float64    `json:"extraction_confidence"`
}

// Usable reports whether the minimum required fields were extracted.
func (d *ReceiptData) Usable() bool {
	if d == nil {
		return false
	}
	return d.VendorName != "" && d.TransactionDate != nil && d.TotalAmount != nil
}

// TransitionMetadata carries audit details for a status transition.
// All fields are optional; which ones are set depends on the transition kind.
type TransitionMetadata struct {
	ErrorCategory        constants.ErrorCategory `json:"error_category,omitempty"`
	ErrorPriority        int                     `json:"error_priority,omitempty"`
	RetryCount           int                     `json:"retry_count,omitempty"`
	FinalError           bool                    `json:"final_error,omitempty"`
	StartTime            *time.Time              `json:"start_time,omitempty"`
	CompletionTime       *time.Time              `json:"completion_time,omitempty"`
	ErrorTime            *time.Time              `json:"error_time,omitempty"`
	ExtractionConfidence *float64                `json:"extraction_confidence,omitempty"`
}

// StatusTransition is one recorded status change. FromStatus is nil only for
// the transition created together with the log entry.
type StatusTransition struct {
	FromStatus *constants.Status   `json:"from_status"`
	ToStatus   constants.Status    `json:"to_status"`
	Timestamp  time.Time           `json:"timestamp"`
	Reason     string              `json:"reason,omitempty"`
	User       string              `json:"user,omitempty"`
	Metadata   *TransitionMetadata `json:"metadata,omitempty"`
}

// ReceiptLog is the complete processing log for a single receipt.
type ReceiptLog struct {
	ID uuid.UUID `json:"id"`

	OriginalFilename  string  `json:"original_filename"`
	FilePath          string  `json:"file_path"`
	ProcessedFilename *string `json:"processed_filename,omitempty"`
	FileSize          int64   `json:"file_size"`
	FileHash          *string `json:"file_hash,omitempty"`

	CurrentStatus constants.Status   `json:"current_status"`
	StatusHistory []StatusTransition `json:"status_history"`

	CreatedAt   time.Time  `json:"created_at"`
	LastUpdated time.Time  `json:"last_updated"`
	ProcessedAt *time.Time `json:"processed_at,omitempty"`

	ReceiptData *ReceiptData `json:"receipt_data,omitempty"`

	ProcessingAttempts    int      `json:"processing_attempts"`
	LastError             *string  `json:"last_error,omitempty"`
	AIModelUsed           *string  `json:"ai_model_used,omitempty"`
	ProcessingTimeSeconds *float64 `json:"processing_time_seconds,omitempty"`

	EmailSentAt           *time.Time `json:"email_sent_at,omitempty"`
	EmailRecipient        *string    `json:"email_recipient,omitempty"`
	SubmittedForPaymentAt *time.Time `json:"submitted_for_payment_at,omitempty"`
	PaymentReceivedAt     *time.Time `json:"payment_received_at,omitempty"`
	PaymentAmount         *float64   `json:"payment_amount,omitempty"`
	PaymentReference      *string    `json:"payment_reference,omitempty"`

	Tags            []string `json:"tags,omitempty"`
	Notes           *string  `json:"notes,omitempty"`
	ConfidenceScore *float64 `json:"confidence_score,omitempty"`
}

// NewReceiptLog creates a log entry in the pending status with its creation
// transition (the only one whose FromStatus is nil).
func NewReceiptLog(originalFilename, filePath string, fileSize int64) *ReceiptLog {
	now := time.Now().UTC()
	return &ReceiptLog{
		ID:               uuid.New(),
		OriginalFilename: originalFilename,
		FilePath:         filePath,
		FileSize:         fileSize,
		CurrentStatus:    constants.StatusPending,
		StatusHistory: []StatusTransition{{
			FromStatus: nil,
			ToStatus:   constants.StatusPending,
			Timestamp:  now,
			Reason:     "log entry created",
		}},
		CreatedAt:   now,
		LastUpdated: now,
	}
}

// ApplyTransition appends a transition from the current status to toStatus and
// applies status-entry side effects (workflow timestamps, attempt counter).
// Legality of the transition is the caller's responsibility.
func (l *ReceiptLog) ApplyTransition(toStatus constants.Status, reason, user string, md *TransitionMetadata, at time.Time) {
	from := l.CurrentStatus
	l.StatusHistory = append(l.StatusHistory, StatusTransition{
		FromStatus: &from,
		ToStatus:   toStatus,
		Timestamp:  at,
		Reason:     reason,
		User:       user,
		Metadata:   md,
	})
	l.CurrentStatus = toStatus
	l.LastUpdated = at

	switch toStatus {
	case constants.StatusProcessing:
		l.ProcessingAttempts++
	case constants.StatusProcessed:
		t := at
		l.ProcessedAt = &t
	case constants.StatusEmailed:
		t := at
		l.EmailSentAt = &t
	case constants.StatusSubmitted:
		t := at
		l.SubmittedForPaymentAt = &t
	case constants.StatusPaymentReceived:
		t := at
		l.PaymentReceivedAt = &t
	}
}

// LatestTransition returns the most recent transition, or nil for a log entry
// that has no history (which never happens for entries built via NewReceiptLog).
func (l *ReceiptLog) LatestTransition() *StatusTransition {
	if len(l.StatusHistory) == 0 {
		return nil
	}
	return &l.StatusHistory[len(l.StatusHistory)-1]
}

// IsSuccessful reports whether the entry reached a successful status.
func (l *ReceiptLog) IsSuccessful() bool {
	return l.CurrentStatus.IsSuccessful()
}

// ProcessingDuration returns the wall time from creation to completion,
// or zero and false if processing has not completed.
func (l *ReceiptLog) ProcessingDuration() (time.Duration, bool) {
	if l.ProcessedAt == nil {
		return 0, false
	}
	return l.ProcessedAt.Sub(l.CreatedAt), true
}

// LogUpdate names the mutable fields of a ReceiptLog for partial updates.
// Nil fields are left untouched.
type LogUpdate struct {
	ProcessedFilename     *string
	FileHash              *string
	ReceiptData           *ReceiptData
	ProcessedAt           *time.Time
	LastError             *string
	AIModelUsed           *string
	ProcessingTimeSeconds *float64
	EmailRecipient        *string
	PaymentAmount         *float64
	PaymentReference      *string
	Tags                  []string
	Notes                 *string
	ConfidenceScore       *float64
}

// ApplyTo copies the set fields onto the log entry.
func (u LogUpdate) ApplyTo(l *ReceiptLog) {
	if u.ProcessedFilename != nil {
		l.ProcessedFilename = u.ProcessedFilename
	}
	if u.FileHash != nil {
		l.FileHash = u.FileHash
	}
	if u.ReceiptData != nil {
		l.ReceiptData = u.ReceiptData
	}
	if u.ProcessedAt != nil {
		l.ProcessedAt = u.ProcessedAt
	}
	if u.LastError != nil {
		l.LastError = u.LastError
	}
	if u.AIModelUsed != nil {
		l.AIModelUsed = u.AIModelUsed
	}
	if u.ProcessingTimeSeconds != nil {
		l.ProcessingTimeSeconds = u.ProcessingTimeSeconds
	}
	if u.EmailRecipient != nil {
		l.EmailRecipient = u.EmailRecipient
	}
	if u.PaymentAmount != nil {
		l.PaymentAmount = u.PaymentAmount
	}
	if u.PaymentReference != nil {
		l.PaymentReference = u.PaymentReference
	}
	if u.Tags != nil {
		l.Tags = u.Tags
	}
	if u.Notes != nil {
		l.Notes = u.Notes
	}
	if u.ConfidenceScore != nil {
		l.ConfidenceScore = u.ConfidenceScore
	}
}
