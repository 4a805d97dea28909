package verify

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReasonHTTPStatus(t *testing.T) {
	cases := map[ReasonCode]int{
		ReasonNoEnrolledFace:     http.StatusBadRequest,
		ReasonNotClockedIn:       http.StatusBadRequest,
		ReasonAlreadyClockedIn:   http.StatusBadRequest,
		ReasonAccuracyTooLow:     http.StatusBadRequest,
		ReasonFaceNotFound:       http.StatusBadRequest,
		ReasonInvalidAction:      http.StatusBadRequest,
		ReasonNotRecognized:      http.StatusUnauthorized,
		ReasonNoDepartment:       http.StatusForbidden,
		ReasonDepartmentNotFound: http.StatusForbidden,
		ReasonFaceMismatch:       http.StatusForbidden,
		ReasonOutOfBounds:        http.StatusForbidden,
		ReasonExtractionFailed:   http.StatusServiceUnavailable,
	}
	for code, want := range cases {
		assert.Equal(t, want, code.HTTPStatus(), "code %s", code)
	}
}

func TestReasonKind(t *testing.T) {
	assert.Equal(t, KindPreconditionNotMet, ReasonNoEnrolledFace.Kind())
	assert.Equal(t, KindPreconditionNotMet, ReasonAccuracyTooLow.Kind())
	assert.Equal(t, KindFaceNotDetected, ReasonFaceNotFound.Kind())
	assert.Equal(t, KindIdentityNotMatched, ReasonFaceMismatch.Kind())
	assert.Equal(t, KindIdentityNotMatched, ReasonNotRecognized.Kind())
	assert.Equal(t, KindOutOfBounds, ReasonOutOfBounds.Kind())
	assert.Equal(t, KindInvalidInput, ReasonInvalidAction.Kind())
	assert.Equal(t, KindExtractionFailed, ReasonExtractionFailed.Kind())
}

func TestRejectionError(t *testing.T) {
	rej := reject(ReasonOutOfBounds, "Out of permitted area: 500m > 210m")
	assert.Equal(t, "Out of permitted area: 500m > 210m", rej.Error())
	assert.False(t, rej.Retryable())
}
