package verify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/observability"
)

// ErrNoFace is returned by an Extractor when the supplied image contains no
// detectable face.
var ErrNoFace = errors.New("no face detected in image")

// Extractor produces one normalized probe embedding from raw image bytes.
type Extractor interface {
	Extract(ctx context.Context, image []byte) ([]float32, error)
}

// DirectoryStore is the read-only view of identities and authorized
// locations the pipeline needs.
type DirectoryStore interface {
	// GetDepartment returns nil, nil when the department does not exist.
	GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error)
	ReferenceEmbeddings(ctx context.Context, userID uuid.UUID) ([][]float32, error)
}

// AttendanceLog reads and appends a user's attendance events.
type AttendanceLog interface {
	// Last returns nil, nil when the user has no events.
	Last(ctx context.Context, userID uuid.UUID) (*models.AttendanceEvent, error)
	Append(ctx context.Context, ev *models.AttendanceEvent) error
}

// TxLog is the view available inside the per-identity critical section: the
// attendance log plus the attempt log, all committing together.
type TxLog interface {
	AttendanceLog
	AttemptLog
}

// AttendanceStore adds per-identity serialization on top of AttendanceLog.
// Two concurrent calls for the same user must not both observe the same last
// event and both append. Everything written through the TxLog handed to fn
// becomes durable only if fn returns nil.
type AttendanceStore interface {
	AttendanceLog
	WithIdentityLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, log TxLog) error) error
}

// AttemptLog appends audit records. Exactly one append per verification
// call; an append failure is fatal to the call.
type AttemptLog interface {
	AppendAttempt(ctx context.Context, at *models.AttendanceAttempt) error
}

// Notifier receives every recorded attempt, e.g. for real-time fan-out.
// Best-effort; failures never affect the verification outcome.
type Notifier interface {
	AttemptRecorded(ctx context.Context, at *models.AttendanceAttempt)
}

// Config carries the engine's fixed policy knobs.
type Config struct {
	MatchThreshold float64
	MaxAccuracyM   float64
	DefaultRadiusM float64
	TZOffsetHours  int
	ExtractTimeout time.Duration
}

// Request is one verification call. Identity is the claimed identity from
// the credential layer; nil only for the anonymous variant. Image is nil for
// the manual variant.
type Request struct {
	Identity    *models.User
	Action      models.Action
	Image       []byte
	Lat         float64
	Lng         float64
	Accuracy    *float64
	Threshold   float64 // 0 means Config.MatchThreshold
	ClientIP    *string
	UserAgent   *string
	SnapshotKey *string
}

// Result describes an accepted attendance event.
type Result struct {
	Action       models.Action
	Slot         models.Slot
	Score        *float64
	DistanceM    int
	AttendanceID uuid.UUID
	User         models.User
}

// Pipeline sequences the verification checks in fixed order, short-circuits
// on the first failure, and writes exactly one attempt record per call plus
// one attendance event on success. It holds no per-call state; collaborators
// are injected, never ambient.
type Pipeline struct {
	cfg        Config
	directory  DirectoryStore
	attendance AttendanceStore
	attempts   AttemptLog
	extractor  Extractor
	resolver   Resolver
	notifier   Notifier
	now        func() time.Time
}

func NewPipeline(cfg Config, directory DirectoryStore, attendance AttendanceStore, attempts AttemptLog, extractor Extractor, resolver Resolver, notifier Notifier) *Pipeline {
	if cfg.MatchThreshold == 0 {
		cfg.MatchThreshold = 0.35
	}
	if cfg.MaxAccuracyM == 0 {
		cfg.MaxAccuracyM = 100
	}
	if cfg.DefaultRadiusM == 0 {
		cfg.DefaultRadiusM = 200
	}
	if cfg.ExtractTimeout == 0 {
		cfg.ExtractTimeout = 10 * time.Second
	}
	return &Pipeline{
		cfg:        cfg,
		directory:  directory,
		attendance: attendance,
		attempts:   attempts,
		extractor:  extractor,
		resolver:   resolver,
		notifier:   notifier,
		now:        time.Now,
	}
}

// call accumulates per-call audit fields as checks progress, so a failure at
// any step records everything known up to that step and nothing beyond it.
type call struct {
	req    *Request
	user   *models.User
	ts     time.Time
	slot   models.Slot
	depID  *uuid.UUID
	score  *float64
	dist   *float64
	manual bool
}

func (p *Pipeline) begin(req *Request) *call {
	ts := p.now()
	return &call{
		req:  req,
		user: req.Identity,
		ts:   ts,
		slot: ClassifySlot(ts, p.cfg.TZOffsetHours),
	}
}

func (p *Pipeline) threshold(req *Request) float64 {
	if req.Threshold > 0 {
		return req.Threshold
	}
	return p.cfg.MatchThreshold
}

// Verify runs the authenticated face-scan variant: the credential layer has
// already resolved req.Identity.
func (p *Pipeline) Verify(ctx context.Context, req *Request) (*Result, error) {
	st := p.begin(req)

	if !req.Action.Valid() {
		return nil, p.fail(ctx, st, rejectf(ReasonInvalidAction, "invalid action %q", req.Action))
	}

	// 1. Enrollment.
	refs, err := p.directory.ReferenceEmbeddings(ctx, st.user.ID)
	if err != nil {
		return nil, fmt.Errorf("load reference embeddings: %w", err)
	}
	if len(refs) == 0 {
		return nil, p.fail(ctx, st, reject(ReasonNoEnrolledFace, "no enrolled face for this user"))
	}

	// 2. Sequencing (fail-fast; re-validated under lock before the append).
	if rej, err := p.checkSequence(ctx, st); err != nil {
		return nil, err
	} else if rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	// 3+4. Assigned and resolvable department.
	dep, rej, err := p.resolveDepartment(ctx, st)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	// 5. Accuracy ceiling, before any distance math.
	if rej := p.checkAccuracy(st); rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	// 6. Probe extraction.
	probe, rej, err := p.extract(ctx, st)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	// 7. Similarity against the claimed identity's references.
	th := p.threshold(req)
	score := Score(probe, refs)
	st.score = &score
	if score < th {
		return nil, p.fail(ctx, st, rejectf(ReasonFaceMismatch, "face mismatch (score=%.2f < th=%.2f)", score, th))
	}

	// 8. Geofence.
	if rej := p.checkGeofence(st, dep); rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	// 9. Record.
	return p.record(ctx, st)
}

// VerifyAnonymous runs the unauthenticated variant: the identity is resolved
// from the probe itself, and resolution failure is terminal before any other
// check.
func (p *Pipeline) VerifyAnonymous(ctx context.Context, req *Request) (*Result, error) {
	st := p.begin(req)

	if !req.Action.Valid() {
		return nil, p.fail(ctx, st, rejectf(ReasonInvalidAction, "invalid action %q", req.Action))
	}

	probe, rej, err := p.extract(ctx, st)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	th := p.threshold(req)
	score, user, err := p.resolver.Resolve(ctx, probe, th)
	if err != nil {
		return nil, fmt.Errorf("resolve identity: %w", err)
	}
	if score > NoScore {
		st.score = &score
	}
	if user == nil {
		return nil, p.fail(ctx, st, reject(ReasonNotRecognized, "face not recognized"))
	}
	st.user = user

	if rej, err := p.checkSequence(ctx, st); err != nil {
		return nil, err
	} else if rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	dep, rej, err := p.resolveDepartment(ctx, st)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	if rej := p.checkAccuracy(st); rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	if rej := p.checkGeofence(st, dep); rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	return p.record(ctx, st)
}

// VerifyManual runs the no-image variant: enrollment and face checks are
// skipped, and the success audit record is tagged "manual".
func (p *Pipeline) VerifyManual(ctx context.Context, req *Request) (*Result, error) {
	st := p.begin(req)
	st.manual = true

	if !req.Action.Valid() {
		return nil, p.fail(ctx, st, rejectf(ReasonInvalidAction, "invalid action %q", req.Action))
	}

	if rej, err := p.checkSequence(ctx, st); err != nil {
		return nil, err
	} else if rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	dep, rej, err := p.resolveDepartment(ctx, st)
	if err != nil {
		return nil, err
	}
	if rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	if rej := p.checkAccuracy(st); rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	if rej := p.checkGeofence(st, dep); rej != nil {
		return nil, p.fail(ctx, st, rej)
	}

	return p.record(ctx, st)
}

func (p *Pipeline) checkSequence(ctx context.Context, st *call) (*Rejection, error) {
	last, err := p.attendance.Last(ctx, st.user.ID)
	if err != nil {
		return nil, fmt.Errorf("load last attendance: %w", err)
	}
	if NextAction(last) != st.req.Action {
		return sequenceRejection(st.req.Action), nil
	}
	return nil, nil
}

func (p *Pipeline) resolveDepartment(ctx context.Context, st *call) (*models.Department, *Rejection, error) {
	if st.user.DepartmentID == nil {
		return nil, reject(ReasonNoDepartment, "No department assigned"), nil
	}
	st.depID = st.user.DepartmentID

	dep, err := p.directory.GetDepartment(ctx, *st.user.DepartmentID)
	if err != nil {
		return nil, nil, fmt.Errorf("load department: %w", err)
	}
	if dep == nil {
		return nil, reject(ReasonDepartmentNotFound, "Department not found"), nil
	}
	return dep, nil, nil
}

func (p *Pipeline) checkAccuracy(st *call) *Rejection {
	if st.req.Accuracy != nil && *st.req.Accuracy > p.cfg.MaxAccuracyM {
		return reject(ReasonAccuracyTooLow, "Location accuracy too low")
	}
	return nil
}

func (p *Pipeline) extract(ctx context.Context, st *call) ([]float32, *Rejection, error) {
	extractCtx, cancel := context.WithTimeout(ctx, p.cfg.ExtractTimeout)
	defer cancel()

	start := p.now()
	probe, err := p.extractor.Extract(extractCtx, st.req.Image)
	observability.PipelineStageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, ErrNoFace) {
			return nil, reject(ReasonFaceNotFound, "face not found"), nil
		}
		// Slow or failed extraction is retryable by the caller; it is still
		// audited like every other refusal.
		slog.Warn("probe extraction failed", "error", err)
		return nil, reject(ReasonExtractionFailed, "face extraction failed"), nil
	}
	return probe, nil, nil
}

func (p *Pipeline) checkGeofence(st *call, dep *models.Department) *Rejection {
	res := WithinBounds(st.req.Lat, st.req.Lng, dep, st.req.Accuracy, p.cfg.DefaultRadiusM)
	st.dist = &res.DistanceM
	if !res.OK {
		return rejectf(ReasonOutOfBounds, "Out of permitted area: %dm > %dm",
			int(res.DistanceM), int(res.AllowedRadiusM))
	}
	return nil
}

// record appends the attendance event and the success attempt. The
// sequencing rule is re-validated inside the per-identity critical section so
// the last-event read is consistent with the append even under concurrent
// calls for the same user. The success attempt is written through the same
// critical section, so a committed event can never exist without its audit
// record.
func (p *Pipeline) record(ctx context.Context, st *call) (*Result, error) {
	ev := &models.AttendanceEvent{
		ID:        uuid.New(),
		UserID:    st.user.ID,
		TS:        st.ts,
		Action:    st.req.Action,
		Score:     st.score,
		Lat:       st.req.Lat,
		Lng:       st.req.Lng,
		DistanceM: deref(st.dist),
		Slot:      st.slot,
	}
	at := p.attempt(st, nil)

	err := p.attendance.WithIdentityLock(ctx, st.user.ID, func(ctx context.Context, log TxLog) error {
		last, err := log.Last(ctx, st.user.ID)
		if err != nil {
			return fmt.Errorf("reload last attendance: %w", err)
		}
		if NextAction(last) != st.req.Action {
			return sequenceRejection(st.req.Action)
		}
		if err := log.Append(ctx, ev); err != nil {
			return err
		}
		return log.AppendAttempt(ctx, at)
	})
	if err != nil {
		var rej *Rejection
		if errors.As(err, &rej) {
			// Lost the race: another call for this user was admitted first.
			return nil, p.fail(ctx, st, rej)
		}
		return nil, fmt.Errorf("record attendance: %w", err)
	}

	if p.notifier != nil {
		p.notifier.AttemptRecorded(ctx, at)
	}
	observability.VerificationsTotal.WithLabelValues("success", successReason(st)).Inc()

	return &Result{
		Action:       st.req.Action,
		Slot:         st.slot,
		Score:        st.score,
		DistanceM:    int(deref(st.dist)),
		AttendanceID: ev.ID,
		User:         *st.user,
	}, nil
}

// fail writes the failure attempt record and returns the rejection. The
// audit write must complete before the rejection surfaces; if the write
// itself fails, that error wins because an unrecorded attempt breaks the
// audit invariant.
func (p *Pipeline) fail(ctx context.Context, st *call, rej *Rejection) error {
	if err := p.audit(ctx, st, rej); err != nil {
		return err
	}
	observability.VerificationsTotal.WithLabelValues("rejected", string(rej.Code)).Inc()
	return rej
}

func (p *Pipeline) audit(ctx context.Context, st *call, rej *Rejection) error {
	at := p.attempt(st, rej)
	if err := p.attempts.AppendAttempt(ctx, at); err != nil {
		return fmt.Errorf("append attempt record: %w", err)
	}
	if p.notifier != nil {
		p.notifier.AttemptRecorded(ctx, at)
	}
	return nil
}

// attempt builds the audit record for the current call state.
func (p *Pipeline) attempt(st *call, rej *Rejection) *models.AttendanceAttempt {
	at := &models.AttendanceAttempt{
		ID:           uuid.New(),
		TS:           st.ts,
		Action:       st.req.Action,
		Success:      rej == nil,
		Score:        st.score,
		Lat:          st.req.Lat,
		Lng:          st.req.Lng,
		Accuracy:     st.req.Accuracy,
		DistanceM:    st.dist,
		DepartmentID: st.depID,
		ClientIP:     st.req.ClientIP,
		UserAgent:    st.req.UserAgent,
		SnapshotKey:  st.req.SnapshotKey,
		Slot:         st.slot,
	}
	if st.user != nil {
		at.UserID = &st.user.ID
		at.Email = &st.user.Email
	}
	if rej != nil {
		code := string(rej.Code)
		at.Reason = &code
		at.Detail = &rej.Detail
	} else if st.manual {
		code := string(ReasonManual)
		at.Reason = &code
	}
	return at
}

func successReason(st *call) string {
	if st.manual {
		return string(ReasonManual)
	}
	return "ok"
}

func deref(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
