package tracker

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RejectionReason enumerates why a report failed validation. Reasons are
// reported to the ingestion caller and are never fatal to the core.
type RejectionReason string

const (
	ReasonMissingField    RejectionReason = "missing_field"
	ReasonOutOfRange      RejectionReason = "out_of_range"
	ReasonFutureTimestamp RejectionReason = "future_timestamp"
)

// ValidationError carries the enumerated reason plus the offending field.
type ValidationError struct {
	Reason RejectionReason
	Field  string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return string(e.Reason)
	}
	return string(e.Reason) + ": " + e.Field
}

// DefaultClockSkew is how far a report timestamp may run ahead of server
// time before it is rejected as FutureTimestamp.
const DefaultClockSkew = 5 * time.Second

// Validator normalizes and rejects malformed position reports.
type Validator struct {
	validate  *validator.Validate
	clockSkew time.Duration
	now       func() time.Time
}

// NewValidator creates a validator. A zero clockSkew selects
// DefaultClockSkew; a nil now selects time.Now.
func NewValidator(clockSkew time.Duration, now func() time.Time) *Validator {
	if clockSkew <= 0 {
		clockSkew = DefaultClockSkew
	}
	if now == nil {
		now = time.Now
	}
	return &Validator{
		validate:  validator.New(),
		clockSkew: clockSkew,
		now:       now,
	}
}

// Validate checks ranges and required fields and returns the normalized
// report, or the enumerated rejection.
func (v *Validator) Validate(report LocationReport) (LocationReport, *ValidationError) {
	report.DeviceID = strings.TrimSpace(report.DeviceID)
	report.UserID = strings.TrimSpace(report.UserID)

	if err := v.validate.Struct(report); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return report, rejectionFromFieldError(errs[0])
		}
		return report, &ValidationError{Reason: ReasonMissingField}
	}

	if report.Timestamp.After(v.now().Add(v.clockSkew)) {
		return report, &ValidationError{Reason: ReasonFutureTimestamp, Field: "timestamp"}
	}

	report.Timestamp = report.Timestamp.UTC()
	return report, nil
}

func rejectionFromFieldError(fe validator.FieldError) *ValidationError {
	field := strings.ToLower(fe.Field()[:1]) + fe.Field()[1:]
	if fe.Tag() == "required" {
		return &ValidationError{Reason: ReasonMissingField, Field: field}
	}
	return &ValidationError{Reason: ReasonOutOfRange, Field: field}
}
