package domain

// StatusOutcome is a catalog row for a known HTTP status code. The catalog is
// static reference data: seeded at startup, read-only afterwards.
type StatusOutcome struct {
	Code        int    `gorm:"primaryKey;autoIncrement:false" json:"code"`
	Description string `gorm:"size:300;not null" json:"description"`
}

// TransportFailureCode is the distinguished status clients report when the
// proxy itself could not be reached (dial error, TLS failure, timeout). It is
// outside the HTTP range on purpose and blocks a proxy on first sight.
const TransportFailureCode = 599

// IsFailure classifies an outcome the way the health tracker counts failures.
func (status *StatusOutcome) IsFailure() bool {
	return status.Code >= 400
}
