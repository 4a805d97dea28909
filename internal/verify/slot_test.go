package verify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/your-org/presence/internal/models"
)

func TestClassifySlot(t *testing.T) {
	// All instants in UTC; buckets are decided on the UTC+7 wall clock.
	cases := []struct {
		name string
		utc  string
		want models.Slot
	}{
		{"early morning", "2026-03-02T00:00:00Z", models.SlotMorning},   // 07:00 local
		{"last morning minute", "2026-03-02T02:59:59Z", models.SlotMorning}, // 09:59 local
		{"noon boundary", "2026-03-02T03:00:00Z", models.SlotNoon},      // 10:00 local
		{"afternoon boundary", "2026-03-02T06:00:00Z", models.SlotAfternoon}, // 13:00 local
		{"evening boundary", "2026-03-02T10:00:00Z", models.SlotEvening}, // 17:00 local
		{"midnight wrap", "2026-03-02T18:30:00Z", models.SlotMorning},   // 01:30 local next day
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			ts, err := time.Parse(time.RFC3339, tc.utc)
			assert.NoError(t, err)
			assert.Equal(t, tc.want, ClassifySlot(ts, 7))
		})
	}
}
