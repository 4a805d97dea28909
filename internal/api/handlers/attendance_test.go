package handlers

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/your-org/presence/internal/models"
	"github.com/your-org/presence/internal/verify"
)

// In-memory engine collaborators, just enough for transport-level tests.

type stubDirectory struct {
	dep  *models.Department
	refs [][]float32
}

func (s *stubDirectory) GetDepartment(ctx context.Context, id uuid.UUID) (*models.Department, error) {
	if s.dep != nil && s.dep.ID == id {
		return s.dep, nil
	}
	return nil, nil
}

func (s *stubDirectory) ReferenceEmbeddings(ctx context.Context, userID uuid.UUID) ([][]float32, error) {
	return s.refs, nil
}

type stubAttendance struct {
	events   []*models.AttendanceEvent
	attempts *stubAttempts
}

func (s *stubAttendance) Last(ctx context.Context, userID uuid.UUID) (*models.AttendanceEvent, error) {
	if len(s.events) == 0 {
		return nil, nil
	}
	return s.events[len(s.events)-1], nil
}

func (s *stubAttendance) Append(ctx context.Context, ev *models.AttendanceEvent) error {
	s.events = append(s.events, ev)
	return nil
}

func (s *stubAttendance) AppendAttempt(ctx context.Context, at *models.AttendanceAttempt) error {
	return s.attempts.AppendAttempt(ctx, at)
}

func (s *stubAttendance) WithIdentityLock(ctx context.Context, userID uuid.UUID, fn func(ctx context.Context, log verify.TxLog) error) error {
	return fn(ctx, s)
}

type stubAttempts struct {
	records []*models.AttendanceAttempt
}

func (s *stubAttempts) AppendAttempt(ctx context.Context, at *models.AttendanceAttempt) error {
	s.records = append(s.records, at)
	return nil
}

type stubExtractor struct {
	vec []float32
}

func (s *stubExtractor) Extract(ctx context.Context, image []byte) ([]float32, error) {
	return s.vec, nil
}

type stubCorpus struct {
	identities []verify.EnrolledIdentity
}

func (s *stubCorpus) EnrolledIdentities(ctx context.Context) ([]verify.EnrolledIdentity, error) {
	return s.identities, nil
}

func anonymousTestRouter(t *testing.T) (*gin.Engine, *stubAttempts) {
	t.Helper()

	dep := &models.Department{ID: uuid.New(), Name: "HQ", Lat: 10.0, Lng: 106.0, RadiusM: 200}
	user := models.User{ID: uuid.New(), Email: "ann@example.com", Name: "Ann", DepartmentID: &dep.ID}
	ref := []float32{1, 0, 0}

	dir := &stubDirectory{dep: dep, refs: [][]float32{ref}}
	attempts := &stubAttempts{}
	att := &stubAttendance{attempts: attempts}
	resolver := verify.NewLinearResolver(&stubCorpus{identities: []verify.EnrolledIdentity{
		{User: user, References: [][]float32{ref}},
	}})

	pipeline := verify.NewPipeline(verify.Config{TZOffsetHours: 7},
		dir, att, attempts, &stubExtractor{vec: ref}, resolver, nil)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	h := NewAttendanceHandler(pipeline, nil)
	r.POST("/v1/attendance/anonymous-clock", h.AnonymousClock)
	return r, attempts
}

func multipartBody(t *testing.T, fields map[string]string, withFile bool) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if withFile {
		fw, err := w.CreateFormFile("file", "probe.jpg")
		require.NoError(t, err)
		_, err = fw.Write([]byte("not-a-real-jpeg"))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return buf, w.FormDataContentType()
}

func TestAnonymousClockAccepted(t *testing.T) {
	r, attempts := anonymousTestRouter(t)

	body, contentType := multipartBody(t, map[string]string{
		"action": "in", "lat": "10.0", "lng": "106.0", "accuracy": "15",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/v1/attendance/anonymous-clock", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"ok":true`)
	assert.Contains(t, w.Body.String(), `"action":"in"`)
	assert.Contains(t, w.Body.String(), "ann@example.com")
	require.Len(t, attempts.records, 1)
	assert.True(t, attempts.records[0].Success)
}

func TestAnonymousClockSequenceRejected(t *testing.T) {
	r, attempts := anonymousTestRouter(t)

	// clock-out with no open clock-in maps to 400 with a stable reason code
	body, contentType := multipartBody(t, map[string]string{
		"action": "out", "lat": "10.0", "lng": "106.0",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/v1/attendance/anonymous-clock", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"not_clocked_in"`)
	require.Len(t, attempts.records, 1)
	assert.False(t, attempts.records[0].Success)
}

func TestAnonymousClockMissingProbe(t *testing.T) {
	r, attempts := anonymousTestRouter(t)

	body, contentType := multipartBody(t, map[string]string{
		"action": "in", "lat": "10.0", "lng": "106.0",
	}, false)

	req := httptest.NewRequest(http.MethodPost, "/v1/attendance/anonymous-clock", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	// Malformed transport input never reaches the engine, so no attempt is
	// recorded.
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, attempts.records)
}

func TestAnonymousClockInvalidCoordinates(t *testing.T) {
	r, _ := anonymousTestRouter(t)

	body, contentType := multipartBody(t, map[string]string{
		"action": "in", "lat": "north", "lng": "106.0",
	}, true)

	req := httptest.NewRequest(http.MethodPost, "/v1/attendance/anonymous-clock", body)
	req.Header.Set("Content-Type", contentType)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid lat")
}
