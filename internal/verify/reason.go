package verify

import (
	"fmt"
	"net/http"
)

// Kind groups rejection reasons into the coarse error taxonomy callers can
// branch on without matching reason codes one by one.
type Kind int

const (
	KindPreconditionNotMet Kind = iota
	KindFaceNotDetected
	KindIdentityNotMatched
	KindOutOfBounds
	KindInvalidInput
	KindExtractionFailed
)

func (k Kind) String() string {
	switch k {
	case KindPreconditionNotMet:
		return "precondition_not_met"
	case KindFaceNotDetected:
		return "face_not_detected"
	case KindIdentityNotMatched:
		return "identity_not_matched"
	case KindOutOfBounds:
		return "out_of_bounds"
	case KindInvalidInput:
		return "invalid_input"
	case KindExtractionFailed:
		return "extraction_failed"
	}
	return "unknown"
}

// ReasonCode is the stable machine-checkable identifier stored in the audit
// record. Human-readable text travels separately in Rejection.Detail.
type ReasonCode string

const (
	ReasonNoEnrolledFace     ReasonCode = "no_enrolled_face"
	ReasonNotClockedIn       ReasonCode = "not_clocked_in"
	ReasonAlreadyClockedIn   ReasonCode = "already_clocked_in"
	ReasonNoDepartment       ReasonCode = "no_department"
	ReasonDepartmentNotFound ReasonCode = "department_not_found"
	ReasonAccuracyTooLow     ReasonCode = "accuracy_too_low"
	ReasonFaceNotFound       ReasonCode = "face_not_found"
	ReasonFaceMismatch       ReasonCode = "face_mismatch"
	ReasonNotRecognized      ReasonCode = "face_not_recognized"
	ReasonOutOfBounds        ReasonCode = "out_of_bounds"
	ReasonExtractionFailed   ReasonCode = "extraction_failed"
	ReasonInvalidAction      ReasonCode = "invalid_action"

	// ReasonManual tags successful manual (no-image) events in the audit
	// trail. It is never a rejection.
	ReasonManual ReasonCode = "manual"
)

// Kind maps a reason code to its taxonomy group.
func (c ReasonCode) Kind() Kind {
	switch c {
	case ReasonFaceNotFound:
		return KindFaceNotDetected
	case ReasonFaceMismatch, ReasonNotRecognized:
		return KindIdentityNotMatched
	case ReasonOutOfBounds:
		return KindOutOfBounds
	case ReasonInvalidAction:
		return KindInvalidInput
	case ReasonExtractionFailed:
		return KindExtractionFailed
	}
	return KindPreconditionNotMet
}

// HTTPStatus returns the transport-independent status class for a reason.
func (c ReasonCode) HTTPStatus() int {
	switch c {
	case ReasonNoEnrolledFace, ReasonNotClockedIn, ReasonAlreadyClockedIn,
		ReasonAccuracyTooLow, ReasonFaceNotFound, ReasonInvalidAction:
		return http.StatusBadRequest
	case ReasonNotRecognized:
		return http.StatusUnauthorized
	case ReasonNoDepartment, ReasonDepartmentNotFound, ReasonFaceMismatch,
		ReasonOutOfBounds:
		return http.StatusForbidden
	case ReasonExtractionFailed:
		return http.StatusServiceUnavailable
	}
	return http.StatusBadRequest
}

// Rejection is a verification refusal: a stable code plus human-readable
// detail. It is always audited before being returned.
type Rejection struct {
	Code   ReasonCode
	Detail string
}

func (r *Rejection) Error() string {
	return r.Detail
}

// Retryable reports whether resubmitting the same request may succeed
// without any state change (e.g. a clearer photo after a slow extraction).
func (r *Rejection) Retryable() bool {
	return r.Code == ReasonExtractionFailed
}

func reject(code ReasonCode, detail string) *Rejection {
	return &Rejection{Code: code, Detail: detail}
}

func rejectf(code ReasonCode, format string, args ...any) *Rejection {
	return &Rejection{Code: code, Detail: fmt.Sprintf(format, args...)}
}
