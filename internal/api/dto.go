package api

import (
	"strconv"
	"strings"
	"time"

	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// Every timestamp at the HTTP boundary is a Unix epoch in seconds (float,
// sub-second precision), matching the wire format orchestrators already
// speak against original_source/.../api/schemas/*.py's `float` time
// fields -- an external protocol compatibility constraint, not a style
// choice, so it is kept even though internal storage uses time.Time.

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / 1e9
}

func unixSecondsPtr(t *time.Time) *float64 {
	if t == nil {
		return nil
	}
	v := unixSeconds(*t)
	return &v
}

func fromUnixSeconds(f float64) time.Time {
	return time.Unix(0, int64(f*1e9))
}

func fromUnixSecondsPtr(f *float64) *time.Time {
	if f == nil {
		return nil
	}
	v := fromUnixSeconds(*f)
	return &v
}

// --- auth ---

type tokenRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
}

type timeResponse struct {
	Time float64 `json:"time"`
}

// --- test ---

type testResponse struct {
	IDTest int64 `json:"id_test"`
	Name   string `json:"name"`
	Version int64 `json:"version"`
	KeyRO   string `json:"key_ro"`
	KeyRW   string `json:"key_rw"`

	Description string           `json:"description"`
	State       models.TestState `json:"state"`
	TestParams  string           `json:"test_params"`
	Timeout     int64            `json:"timeout"`

	SchedulingInterval *int64   `json:"scheduling_interval"`
	SchedulingFrom     *float64 `json:"scheduling_from"`
	SchedulingUntil    *float64 `json:"scheduling_until"`

	RecoveryInterval     *int64 `json:"recovery_interval"`
	RecoveryAttemptLimit *int64 `json:"recovery_attempt_limit"`

	LastStartedTime    *float64 `json:"last_started_time"`
	LastResultTime     *float64 `json:"last_result_time"`
	LastResultStatus   *string  `json:"last_result_status"`
	LastDownloadedTime *float64 `json:"last_downloaded_time"`
}

func newTestResponse(t *models.Test) *testResponse {
	return &testResponse{
		IDTest:               t.IDTest,
		Name:                 t.Name,
		Version:              t.Version,
		KeyRO:                t.KeyRO,
		KeyRW:                t.KeyRW,
		Description:          t.Description,
		State:                t.State,
		TestParams:           t.TestParams,
		Timeout:              t.Timeout,
		SchedulingInterval:   t.SchedulingInterval,
		SchedulingFrom:       unixSecondsPtr(t.SchedulingFrom),
		SchedulingUntil:      unixSecondsPtr(t.SchedulingUntil),
		RecoveryInterval:     t.RecoveryInterval,
		RecoveryAttemptLimit: t.RecoveryAttemptLimit,
		LastStartedTime:      unixSecondsPtr(t.LastStartedTime),
		LastResultTime:       unixSecondsPtr(t.LastResultTime),
		LastResultStatus:     t.LastResultStatus,
		LastDownloadedTime:   unixSecondsPtr(t.LastDownloadedTime),
	}
}

type testsResponse struct {
	Tests []*testResponse `json:"tests"`
}

type testCreateRequest struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	State       models.TestState `json:"state"`
	TestParams  string           `json:"test_params"`
	Timeout     int64            `json:"timeout"`

	SchedulingInterval *int64   `json:"scheduling_interval"`
	SchedulingFrom     *float64 `json:"scheduling_from"`
	SchedulingUntil    *float64 `json:"scheduling_until"`

	RecoveryInterval     *int64 `json:"recovery_interval"`
	RecoveryAttemptLimit *int64 `json:"recovery_attempt_limit"`

	KeyRO string `json:"key_ro"`
	KeyRW string `json:"key_rw"`
}

// toModel builds a models.Test from the create request. Version is always
// 1 for a newly created test regardless of what the client supplied --
// the original's schema carries a client-supplied version field, but
// letting a caller fabricate version history for a brand new test makes
// no sense, so this divergence is deliberate.
func (r *testCreateRequest) toModel() *models.Test {
	return &models.Test{
		Name:                 r.Name,
		Description:          r.Description,
		Version:              1,
		State:                r.State,
		TestParams:           r.TestParams,
		Timeout:              r.Timeout,
		SchedulingInterval:   r.SchedulingInterval,
		SchedulingFrom:       fromUnixSecondsPtr(r.SchedulingFrom),
		SchedulingUntil:      fromUnixSecondsPtr(r.SchedulingUntil),
		RecoveryInterval:     r.RecoveryInterval,
		RecoveryAttemptLimit: r.RecoveryAttemptLimit,
		KeyRO:                r.KeyRO,
		KeyRW:                r.KeyRW,
		Created:              time.Now(),
	}
}

type testUpdateRequest struct {
	Description string           `json:"description"`
	State       models.TestState `json:"state"`
	TestParams  string           `json:"test_params"`
	Timeout     int64            `json:"timeout"`

	SchedulingInterval *int64   `json:"scheduling_interval"`
	SchedulingFrom     *float64 `json:"scheduling_from"`
	SchedulingUntil    *float64 `json:"scheduling_until"`

	RecoveryInterval     *int64 `json:"recovery_interval"`
	RecoveryAttemptLimit *int64 `json:"recovery_attempt_limit"`
}

type testRequestResponse struct {
	IDRequest int64 `json:"id_request"`
}

type oldParamsResponse struct {
	IDTest     int64   `json:"id_test"`
	Version    int64   `json:"version"`
	Changed    float64 `json:"changed"`
	TestParams string  `json:"test_params"`
}

func newOldParamsResponse(o *models.OldParams) *oldParamsResponse {
	return &oldParamsResponse{
		IDTest:     o.IDTest,
		Version:    o.Version,
		Changed:    unixSeconds(o.Changed),
		TestParams: o.TestParams,
	}
}

type oldParamsListResponse struct {
	OldParams []*oldParamsResponse `json:"old_params"`
}

type eventResponse struct {
	IDEvent         int64               `json:"id_event"`
	IDTest          int64               `json:"id_test"`
	RunAt           float64             `json:"run_at"`
	Source          models.EventSource  `json:"source"`
	RecoveryAttempt int64               `json:"recovery_attempt"`
}

func newEventResponse(e *models.Event) *eventResponse {
	return &eventResponse{
		IDEvent:         e.IDEvent,
		IDTest:          e.IDTest,
		RunAt:           unixSeconds(e.RunAt),
		Source:          e.Source,
		RecoveryAttempt: e.RecoveryAttempt,
	}
}

type eventsResponse struct {
	Events []*eventResponse `json:"events"`
}

type requestResponse struct {
	IDRequest       int64                `json:"id_request"`
	IDTest          int64                `json:"id_test"`
	Reason          models.RequestReason `json:"reason"`
	RecoveryAttempt int64                `json:"recovery_attempt"`
	AddedTime       float64              `json:"added_time"`
}

func newRequestResponse(r *models.Request) *requestResponse {
	return &requestResponse{
		IDRequest:       r.IDRequest,
		IDTest:          r.IDTest,
		Reason:          r.Reason,
		RecoveryAttempt: r.RecoveryAttempt,
		AddedTime:       unixSeconds(r.AddedTime),
	}
}

type runResponse struct {
	IDRun           int64           `json:"id_run"`
	IDTest          int64           `json:"id_test"`
	Version         int64           `json:"version"`
	State           models.RunState `json:"state"`
	PID             *int            `json:"pid"`
	Planned         float64         `json:"planned"`
	Started         *float64        `json:"started"`
	Deadline        *float64        `json:"deadline"`
	RecoveryAttempt int64           `json:"recovery_attempt"`
}

func newRunResponse(r *models.Run) *runResponse {
	return &runResponse{
		IDRun:           r.IDRun,
		IDTest:          r.IDTest,
		Version:         r.Version,
		State:           r.State,
		PID:             r.PID,
		Planned:         unixSeconds(r.Planned),
		Started:         unixSecondsPtr(r.Started),
		Deadline:        unixSecondsPtr(r.Deadline),
		RecoveryAttempt: r.RecoveryAttempt,
	}
}

type resultResponse struct {
	IDResult        int64               `json:"id_result"`
	IDTest          int64               `json:"id_test"`
	Version         int64               `json:"version"`
	Planned         float64             `json:"planned"`
	Started         float64             `json:"started"`
	Finished        float64             `json:"finished"`
	Status          models.ResultStatus `json:"status"`
	RecoveryAttempt int64               `json:"recovery_attempt"`
	Data            string              `json:"data"`
}

func newResultResponse(r *models.Result) *resultResponse {
	return &resultResponse{
		IDResult:        r.IDResult,
		IDTest:          r.IDTest,
		Version:         r.Version,
		Planned:         unixSeconds(r.Planned),
		Started:         unixSeconds(r.Started),
		Finished:        unixSeconds(r.Finished),
		Status:          r.Status,
		RecoveryAttempt: r.RecoveryAttempt,
		Data:            r.Data,
	}
}

type resultsResponse struct {
	Results []*resultResponse `json:"results"`
}

func newResultsResponse(results []models.Result) *resultsResponse {
	out := make([]*resultResponse, 0, len(results))
	for i := range results {
		out = append(out, newResultResponse(&results[i]))
	}
	return &resultsResponse{Results: out}
}

type testFullResponse struct {
	Test      *testResponse        `json:"test"`
	Requests  []*requestResponse   `json:"requests"`
	Events    []*eventResponse     `json:"events"`
	Runs      []*runResponse       `json:"runs"`
	Results   []*resultResponse    `json:"results"`
	OldParams []*oldParamsResponse `json:"old_params"`
}

// --- multi-results ---

type multiResultInitRequest struct {
	Key string `json:"key"`
}

type multiResultIDResponse struct {
	IDMultiResult int64 `json:"id_multi_result"`
}

type multiResultAddTestRequest struct {
	IDTest int64  `json:"id_test"`
	Hash   string `json:"hash"`
}

type multiResultTestIDsResponse struct {
	TestIDs string `json:"test_ids"`
}

// testIDsToString renders a member set as the comma-separated string the
// API boundary has always spoken, per models.MultiResult's doc comment.
func testIDsToString(ids models.IntArray) string {
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, strconv.FormatInt(id, 10))
	}
	return strings.Join(parts, ",")
}

type multiResultResponse struct {
	Results       map[int64]*resultsResponse `json:"results"`
	LastCheckedID int64                      `json:"last_checked_id"`
}

// --- system ---

type orchestratorResponse struct {
	Name     string  `json:"name"`
	LastSeen float64 `json:"last_seen"`
}

type orchestratorsResponse struct {
	Orchestrators []*orchestratorResponse `json:"orchestrators"`
}

type configResponse struct {
	Options map[string]map[string]string `json:"options"`
}

type configChangeRequest struct {
	Options map[string]map[string]string `json:"options"`
}

type configChangeResponse struct {
	Options map[string]map[string]string `json:"options"`
}

type logsResponse struct {
	Data            string                `json:"data"`
	CompressionAlg  *models.CompressionAlg `json:"compression_alg"`
	LastDatetime    string                `json:"last_datetime"`
	MoreData        bool                  `json:"more_data"`
}

type logsStatsResponse struct {
	Debug    int `json:"debug"`
	Info     int `json:"info"`
	Warning  int `json:"warning"`
	Error    int `json:"error"`
	Critical int `json:"critical"`
	Unknown  int `json:"unknown"`
}
