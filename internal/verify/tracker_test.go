package verify

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/presence/internal/models"
)

func TestNextAction(t *testing.T) {
	assert.Equal(t, models.ActionIn, NextAction(nil))
	assert.Equal(t, models.ActionOut, NextAction(&models.AttendanceEvent{Action: models.ActionIn}))
	assert.Equal(t, models.ActionIn, NextAction(&models.AttendanceEvent{Action: models.ActionOut}))
}

func TestSequenceRejection(t *testing.T) {
	out := sequenceRejection(models.ActionOut)
	assert.Equal(t, ReasonNotClockedIn, out.Code)
	assert.Equal(t, "not clocked in yet", out.Detail)

	in := sequenceRejection(models.ActionIn)
	assert.Equal(t, ReasonAlreadyClockedIn, in.Code)
	assert.Equal(t, "already clocked in", in.Detail)
}
