package verify

import (
	"time"

	"github.com/your-org/presence/internal/models"
)

// ClassifySlot maps an instant to the organizational time-of-day bucket.
// offsetHours is the fixed organizational zone east of UTC. Reporting only:
// the slot never influences accept/reject outcomes.
func ClassifySlot(t time.Time, offsetHours int) models.Slot {
	h := t.In(time.FixedZone("org", offsetHours*3600)).Hour()
	switch {
	case h < 10:
		return models.SlotMorning
	case h < 13:
		return models.SlotNoon
	case h < 17:
		return models.SlotAfternoon
	default:
		return models.SlotEvening
	}
}
