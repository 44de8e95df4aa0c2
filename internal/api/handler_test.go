package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"AttendanceSync/internal/config"
	"AttendanceSync/internal/model"
	"AttendanceSync/internal/repository"
	"AttendanceSync/internal/service"
	"AttendanceSync/internal/utils/datekey"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func testLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func testCalendar() *datekey.Calendar {
	return datekey.NewCalendar(time.UTC).WithClock(func() time.Time {
		return time.Date(2024, 1, 10, 15, 0, 0, 0, time.UTC)
	})
}

type stack struct {
	submissions repository.SubmissionRepository
	router      *gin.Engine
}

func newStack(t *testing.T, serverCfg config.ServerConfig) *stack {
	t.Helper()
	submissions := repository.NewMemorySubmissionRepository()
	canonical := repository.NewMemoryCanonicalRepository()
	runs := repository.NewMemoryRunRepository()
	cal := testCalendar()
	engine := service.NewAggregationEngine(submissions, canonical, service.DefaultPolicy(), time.Second, testLogger())
	svc := service.NewAggregationService(engine, runs, cal, testLogger())
	reports := service.NewReportService(canonical, runs)
	return &stack{
		submissions: submissions,
		router:      NewRouter(serverCfg, svc, reports, cal, testLogger()),
	}
}

func (s *stack) submit(t *testing.T, id, student string, present, permission bool, hour int) {
	t.Helper()
	require.NoError(t, s.submissions.Append(context.Background(), &model.ProvisionalEntry{
		SubmissionID:  id,
		StudentID:     student,
		DateKey:       "2024-01-10",
		Present:       present,
		HasPermission: permission,
		MarkedBy:      "facilitator-1",
		SubmittedAt:   time.Date(2024, 1, 10, hour, 0, 0, 0, time.UTC),
	}))
}

func serve(r http.Handler, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func get(r http.Handler, target string) *httptest.ResponseRecorder {
	return serve(r, httptest.NewRequest(http.MethodGet, target, nil))
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), v))
}

func TestAggregate_SuccessReturnsSummary(t *testing.T) {
	s := newStack(t, config.ServerConfig{})
	s.submit(t, "s1", "A", true, false, 9)
	s.submit(t, "s2", "A", false, false, 10)
	s.submit(t, "s3", "B", false, true, 9)

	w := get(s.router, "/aggregate?date=2024-01-10")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var summary model.RunSummary
	decode(t, w, &summary)
	assert.Equal(t, "2024-01-10", summary.DateKey)
	assert.Equal(t, model.TriggerHTTP, summary.Trigger)
	assert.Equal(t, 3, summary.EntriesScanned)
	assert.Equal(t, 2, summary.StudentsResolved)
	assert.Equal(t, 2, summary.RecordsCreated)
	assert.Equal(t, model.Tally{Present: 1, Absent: 1, Permission: 1}, summary.Tally)

	// 再次触发：幂等
	w = get(s.router, "/aggregate?date=2024-01-10")
	require.Equal(t, http.StatusOK, w.Code)
	decode(t, w, &summary)
	assert.Equal(t, 0, summary.RecordsCreated)
	assert.Equal(t, 0, summary.RecordsUpdated)
	assert.Equal(t, 2, summary.RecordsUnchanged)
}

func TestAggregate_DefaultsToToday(t *testing.T) {
	s := newStack(t, config.ServerConfig{})
	s.submit(t, "s1", "A", true, false, 9)

	w := get(s.router, "/aggregate")
	require.Equal(t, http.StatusOK, w.Code)

	var summary model.RunSummary
	decode(t, w, &summary)
	assert.Equal(t, "2024-01-10", summary.DateKey)
	assert.Equal(t, 1, summary.RecordsCreated)
}

func TestAggregate_InvalidDateKey(t *testing.T) {
	s := newStack(t, config.ServerConfig{})
	for _, date := range []string{"2024-13-01", "2024/01/10", "20240110", "2024-02-30"} {
		w := get(s.router, "/aggregate?date="+date)
		assert.Equal(t, http.StatusBadRequest, w.Code, date)

		var body map[string]interface{}
		decode(t, w, &body)
		assert.Equal(t, CodeInvalidDateKey, body["code"], date)
	}
}

func TestAggregate_TriggerToken(t *testing.T) {
	s := newStack(t, config.ServerConfig{TriggerToken: "secret"})

	w := get(s.router, "/aggregate?date=2024-01-10")
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/aggregate?date=2024-01-10", nil)
	req.Header.Set(TriggerTokenHeader, "wrong")
	assert.Equal(t, http.StatusUnauthorized, serve(s.router, req).Code)

	req = httptest.NewRequest(http.MethodGet, "/aggregate?date=2024-01-10", nil)
	req.Header.Set(TriggerTokenHeader, "secret")
	assert.Equal(t, http.StatusOK, serve(s.router, req).Code)
}

// stubRunner 固定返回结果，用于错误映射
type stubRunner struct {
	summary *model.RunSummary
	err     error
}

func (r *stubRunner) Aggregate(ctx context.Context, dateKey string, trigger string) (*model.RunSummary, error) {
	return r.summary, r.err
}

func TestAggregate_ErrorMapping(t *testing.T) {
	partial := &service.PartialFailureError{
		DateKey:  "2024-01-10",
		Students: []string{"C"},
		Causes:   map[string]error{"C": assert.AnError},
	}
	cases := []struct {
		name    string
		err     error
		status  int
		code    string
		summary bool
	}{
		{"非法日期", fmt.Errorf("%w: %q", service.ErrInvalidDateKey, "x"), http.StatusBadRequest, CodeInvalidDateKey, false},
		{"存储不可用", fmt.Errorf("%w: timeout", service.ErrStoreUnavailable), http.StatusInternalServerError, CodeStoreUnavailable, false},
		{"部分失败", partial, http.StatusInternalServerError, CodePartialFailure, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			runner := &stubRunner{
				summary: &model.RunSummary{DateKey: "2024-01-10", RecordsCreated: 2, FailedStudents: []string{"C"}},
				err:     tc.err,
			}
			r := NewRouter(config.ServerConfig{}, runner, nil, testCalendar(), testLogger())

			w := get(r, "/aggregate?date=2024-01-10")
			assert.Equal(t, tc.status, w.Code)

			var body map[string]interface{}
			decode(t, w, &body)
			assert.Equal(t, tc.code, body["code"])
			assert.NotEmpty(t, body["error"])
			_, hasSummary := body["summary"]
			assert.Equal(t, tc.summary, hasSummary)
		})
	}
}

func TestDailyReport(t *testing.T) {
	s := newStack(t, config.ServerConfig{})
	s.submit(t, "s1", "A", true, false, 9)
	s.submit(t, "s2", "B", false, true, 9)
	require.Equal(t, http.StatusOK, get(s.router, "/aggregate?date=2024-01-10").Code)

	w := get(s.router, "/api/attendance")
	require.Equal(t, http.StatusOK, w.Code)

	var report model.DailyReport
	decode(t, w, &report)
	assert.Equal(t, "2024-01-10", report.DateKey)
	assert.Len(t, report.Records, 2)
	assert.Equal(t, model.Tally{Present: 1, Absent: 1, Permission: 1}, report.Tally)

	w = get(s.router, "/api/attendance?date=bad")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRecentRuns(t *testing.T) {
	s := newStack(t, config.ServerConfig{})
	s.submit(t, "s1", "A", true, false, 9)
	for i := 0; i < 3; i++ {
		require.Equal(t, http.StatusOK, get(s.router, "/aggregate?date=2024-01-10").Code)
	}

	w := get(s.router, "/api/aggregation/runs?date=2024-01-10&limit=2")
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Runs []*model.AggregationRun `json:"runs"`
	}
	decode(t, w, &body)
	require.Len(t, body.Runs, 2)
	assert.Equal(t, model.TriggerHTTP, body.Runs[0].Trigger)
	assert.Equal(t, model.RunStatusSuccess, body.Runs[0].Status)
}

func TestHealthz(t *testing.T) {
	s := newStack(t, config.ServerConfig{})
	w := get(s.router, "/healthz")
	assert.Equal(t, http.StatusOK, w.Code)
}
