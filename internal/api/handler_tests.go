package api

import (
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

func parseIDParam(c *echo.Context, name string) (int64, error) {
	return strconv.ParseInt(c.Param(name), 10, 64)
}

// findTest fetches the test named by :id, writing a 404 response itself
// when it doesn't exist -- the handler should return the (nil, err) pair
// straight back to Echo.
func (s *Server) findTest(c *echo.Context) (*models.Test, error) {
	id, err := parseIDParam(c, "id")
	if err != nil {
		return nil, badRequest(c, "invalid test id")
	}
	t, err := s.set.Tests.Get(c.Request().Context(), id)
	if err != nil {
		return nil, internalError(c, "failed to load test")
	}
	if t == nil {
		return nil, notFound(c, "test not found")
	}
	return t, nil
}

// testAllHandler lists every test, root tier only.
func (s *Server) testAllHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	if err := s.authorize(c, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	tests, err := s.set.Tests.GetAll(c.Request().Context())
	if err != nil {
		return internalError(c, "failed to list tests")
	}
	out := make([]*testResponse, 0, len(tests))
	for i := range tests {
		out = append(out, newTestResponse(&tests[i]))
	}
	return c.JSON(200, &testsResponse{Tests: out})
}

// testCreateHandler defines a new test. Gated by the new-tests password
// exclusively -- the one endpoint spec.md §6 carves out with no root
// fallback, since minting a test's own key_ro/key_rw is a distinct
// privilege from holding the root key.
func (s *Server) testCreateHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	if err := s.authorize(c, s.cfg.Authorization.NewTestsPassword); err != nil {
		return forbidden(c, err.Error())
	}

	var req testCreateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ctx := c.Request().Context()
	tx, err := s.set.Begin(ctx)
	if err != nil {
		return internalError(c, "failed to start transaction")
	}

	t, err := s.set.Tests.Create(ctx, tx, req.toModel(), dao.TxContinue)
	if err != nil {
		tx.Rollback()
		return internalError(c, "failed to create test")
	}

	if t.State == models.TestStateEnabled {
		_, err = s.set.Requests.Create(ctx, tx, &models.Request{
			IDTest: t.IDTest,
			Reason: models.RequestReasonNew,
		}, dao.TxFinish)
		if err != nil {
			tx.Rollback()
			return internalError(c, "failed to queue initial request")
		}
	} else if err := tx.Commit(); err != nil {
		return internalError(c, "failed to commit test creation")
	}

	return c.JSON(200, newTestResponse(t))
}

// testGetHandler returns one test's definition, read-only-or-root tier.
func (s *Server) testGetHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	t, err := s.findTest(c)
	if err != nil {
		return err
	}
	if err := s.authorize(c, t.KeyRO, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	return c.JSON(200, newTestResponse(t))
}

// testFullHandler returns a test alongside every pending request, planned
// event, in-flight run, recorded result and historical parameter set,
// read-only-or-root tier.
func (s *Server) testFullHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	t, err := s.findTest(c)
	if err != nil {
		return err
	}
	if err := s.authorize(c, t.KeyRO, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}

	ctx := c.Request().Context()

	events, err := s.set.Events.GetByTest(ctx, t.IDTest)
	if err != nil {
		return internalError(c, "failed to list events")
	}
	runs, err := s.set.Runs.GetByTest(ctx, t.IDTest)
	if err != nil {
		return internalError(c, "failed to list runs")
	}
	results, err := s.set.Results.GetSince(ctx, t.IDTest, 0)
	if err != nil {
		return internalError(c, "failed to list results")
	}
	oldParams, err := s.set.Tests.GetOldParams(ctx, t.IDTest, nil)
	if err != nil {
		return internalError(c, "failed to list old params")
	}

	requests, err := s.set.Requests.GetAll(ctx)
	if err != nil {
		return internalError(c, "failed to list requests")
	}

	resp := &testFullResponse{
		Test:      newTestResponse(t),
		Events:    make([]*eventResponse, 0, len(events)),
		Runs:      make([]*runResponse, 0, len(runs)),
		Results:   make([]*resultResponse, 0, len(results)),
		OldParams: make([]*oldParamsResponse, 0, len(oldParams)),
		Requests:  make([]*requestResponse, 0),
	}
	for i := range events {
		resp.Events = append(resp.Events, newEventResponse(&events[i]))
	}
	for i := range runs {
		resp.Runs = append(resp.Runs, newRunResponse(&runs[i]))
	}
	for i := range results {
		resp.Results = append(resp.Results, newResultResponse(&results[i]))
	}
	for i := range oldParams {
		resp.OldParams = append(resp.OldParams, newOldParamsResponse(&oldParams[i]))
	}
	for i := range requests {
		if requests[i].IDTest == t.IDTest {
			resp.Requests = append(resp.Requests, newRequestResponse(&requests[i]))
		}
	}
	return c.JSON(200, resp)
}

// testResultsHandler lists results for a test newer than since_id,
// touching last_downloaded_time on every successful read -- the original
// only stamps this on the results fetch, not on /full or /get.
func (s *Server) testResultsHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	t, err := s.findTest(c)
	if err != nil {
		return err
	}
	if err := s.authorize(c, t.KeyRO, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}

	sinceID, _ := strconv.ParseInt(c.QueryParam("since_id"), 10, 64)

	ctx := c.Request().Context()
	results, err := s.set.Results.GetSince(ctx, t.IDTest, sinceID)
	if err != nil {
		return internalError(c, "failed to list results")
	}
	if err := s.set.Tests.RecordDownloaded(ctx, t.IDTest, time.Now()); err != nil {
		return internalError(c, "failed to record download")
	}
	return c.JSON(200, newResultsResponse(results))
}

// testEventsHandler lists a test's planned future events, read-only-or-root.
func (s *Server) testEventsHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	t, err := s.findTest(c)
	if err != nil {
		return err
	}
	if err := s.authorize(c, t.KeyRO, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	events, err := s.set.Events.GetByTest(c.Request().Context(), t.IDTest)
	if err != nil {
		return internalError(c, "failed to list events")
	}
	out := make([]*eventResponse, 0, len(events))
	for i := range events {
		out = append(out, newEventResponse(&events[i]))
	}
	return c.JSON(200, &eventsResponse{Events: out})
}

// testOldParamsHandler lists every historical parameter snapshot for a
// test, read-only-or-root.
func (s *Server) testOldParamsHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	t, err := s.findTest(c)
	if err != nil {
		return err
	}
	if err := s.authorize(c, t.KeyRO, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	oldParams, err := s.set.Tests.GetOldParams(c.Request().Context(), t.IDTest, nil)
	if err != nil {
		return internalError(c, "failed to list old params")
	}
	out := make([]*oldParamsResponse, 0, len(oldParams))
	for i := range oldParams {
		out = append(out, newOldParamsResponse(&oldParams[i]))
	}
	return c.JSON(200, &oldParamsListResponse{OldParams: out})
}

// testOldParamsVersionHandler returns one historical parameter snapshot,
// 404 if that version was never recorded.
func (s *Server) testOldParamsVersionHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	t, err := s.findTest(c)
	if err != nil {
		return err
	}
	if err := s.authorize(c, t.KeyRO, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	version, err := parseIDParam(c, "version")
	if err != nil {
		return badRequest(c, "invalid version")
	}
	oldParams, err := s.set.Tests.GetOldParams(c.Request().Context(), t.IDTest, &version)
	if err != nil {
		return internalError(c, "failed to load old params")
	}
	if len(oldParams) == 0 {
		return notFound(c, "old params version not found")
	}
	return c.JSON(200, newOldParamsResponse(&oldParams[0]))
}

// testRequestHandler queues an ad-hoc "new" calendar request for a test,
// read-write-or-root tier.
func (s *Server) testRequestHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	t, err := s.findTest(c)
	if err != nil {
		return err
	}
	if err := s.authorize(c, t.KeyRW, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}
	req, err := s.set.Requests.Create(c.Request().Context(), nil, &models.Request{
		IDTest: t.IDTest,
		Reason: models.RequestReasonNew,
	}, dao.TxNone)
	if err != nil {
		return internalError(c, "failed to queue request")
	}
	return c.JSON(200, &testRequestResponse{IDRequest: req.IDRequest})
}

// testUpdateHandler applies a partial update to a test's definition,
// read-write-or-root tier. A changed state queues an "update" calendar
// request; changed test_params archive the prior version and bump
// Version, all in one transaction.
func (s *Server) testUpdateHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}
	t, err := s.findTest(c)
	if err != nil {
		return err
	}
	if err := s.authorize(c, t.KeyRW, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}

	var req testUpdateRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ctx := c.Request().Context()
	tx, err := s.set.Begin(ctx)
	if err != nil {
		return internalError(c, "failed to start transaction")
	}

	stateChanged := req.State != t.State
	paramsChanged := req.TestParams != t.TestParams

	updated := t
	if paramsChanged {
		updated, err = s.set.Tests.UpdateParams(ctx, tx, t.IDTest, req.TestParams, dao.TxContinue)
		if err != nil {
			tx.Rollback()
			return internalError(c, "failed to update test params")
		}
	}

	updated.Description = req.Description
	updated.State = req.State
	updated.Timeout = req.Timeout
	updated.SchedulingInterval = req.SchedulingInterval
	updated.SchedulingFrom = fromUnixSecondsPtr(req.SchedulingFrom)
	updated.SchedulingUntil = fromUnixSecondsPtr(req.SchedulingUntil)
	updated.RecoveryInterval = req.RecoveryInterval
	updated.RecoveryAttemptLimit = req.RecoveryAttemptLimit

	if err := s.set.Tests.Update(ctx, tx, updated, dao.TxContinue); err != nil {
		tx.Rollback()
		return internalError(c, "failed to update test")
	}

	if stateChanged {
		_, err = s.set.Requests.Create(ctx, tx, &models.Request{
			IDTest: t.IDTest,
			Reason: models.RequestReasonUpdate,
		}, dao.TxFinish)
		if err != nil {
			tx.Rollback()
			return internalError(c, "failed to queue update request")
		}
	} else if err := tx.Commit(); err != nil {
		return internalError(c, "failed to commit test update")
	}

	return c.JSON(200, newTestResponse(updated))
}
