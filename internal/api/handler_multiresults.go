package api

import (
	"crypto/subtle"
	"encoding/json"
	"strconv"
	"time"

	echo "github.com/labstack/echo/v5"

	"github.com/rysavy-ondrej/project-inventor/internal/crypto"
)

// multiResultInitHandler (re)creates an orchestrator's result-aggregation
// handle with an empty member set. Gated by the "any session" tier: a
// valid session is enough, with no per-endpoint secret at all, matching
// original_source/.../api/endpoints/multi_result.py's
// authorize_request(request, "").
func (s *Server) multiResultInitHandler(c *echo.Context) error {
	claims, err := s.requireSession(c)
	if err != nil {
		return err
	}
	if err := s.authorizeAnySession(c); err != nil {
		return forbidden(c, err.Error())
	}

	var req multiResultInitRequest
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid request body")
	}

	mr, err := s.set.MultiResults.Init(c.Request().Context(), claims.OrchestratorName, req.Key)
	if err != nil {
		return internalError(c, "failed to init multi-result aggregator")
	}
	return c.JSON(200, &multiResultIDResponse{IDMultiResult: mr.IDMultiResult})
}

// multiResultAddTestHandler adds one test to an aggregator's member set.
// Authorized against root-or-the-test-being-added's key_ro, keyed to
// body.id_test rather than the aggregator's own key -- the asymmetry
// original_source/.../api/endpoints/multi_result.py's add_test encodes,
// since the caller is proving it may read that test, not that it owns the
// aggregator.
func (s *Server) multiResultAddTestHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}

	idMultiResult, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid multi-result id")
	}

	// Decoded from the raw bytes (rather than c.Bind) so the body reader
	// stays intact for authorize's own HMAC canonicalization below --
	// c.Bind would otherwise drain it without restoring the reader.
	body, err := readBody(c)
	if err != nil {
		return badRequest(c, "invalid request body")
	}
	var req multiResultAddTestRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return badRequest(c, "invalid request body")
	}

	ctx := c.Request().Context()

	test, err := s.set.Tests.Get(ctx, req.IDTest)
	if err != nil {
		return internalError(c, "failed to load test")
	}
	if test == nil {
		return notFound(c, "test not found")
	}

	if err := s.authorize(c, test.KeyRO, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}

	mr, err := s.set.MultiResults.Get(ctx, idMultiResult)
	if err != nil {
		return internalError(c, "failed to load multi-result aggregator")
	}
	if mr == nil {
		return notFound(c, "multi-result aggregator not found")
	}

	expectedHash := crypto.Hash(mr.Key + strconv.FormatInt(mr.IDMultiResult, 10) + strconv.FormatInt(req.IDTest, 10))
	if subtle.ConstantTimeCompare([]byte(expectedHash), []byte(req.Hash)) != 1 {
		return forbidden(c, "hash mismatch")
	}

	if err := s.set.MultiResults.AddTest(ctx, idMultiResult, req.IDTest); err != nil {
		return internalError(c, "failed to add test to multi-result aggregator")
	}

	mr, err = s.set.MultiResults.Get(ctx, idMultiResult)
	if err != nil {
		return internalError(c, "failed to reload multi-result aggregator")
	}
	return c.JSON(200, &multiResultTestIDsResponse{TestIDs: testIDsToString(mr.TestIDs)})
}

// multiResultGetHandler returns, per member test, every result newer than
// last_checked_id, and the current max result id as the new
// last_checked_id -- the orchestrator's single poll across many tests.
// Authorized against root-or-the-aggregator's-own-key.
func (s *Server) multiResultGetHandler(c *echo.Context) error {
	if _, err := s.requireSession(c); err != nil {
		return err
	}

	idMultiResult, err := parseIDParam(c, "id")
	if err != nil {
		return badRequest(c, "invalid multi-result id")
	}

	ctx := c.Request().Context()
	mr, err := s.set.MultiResults.Get(ctx, idMultiResult)
	if err != nil {
		return internalError(c, "failed to load multi-result aggregator")
	}
	if mr == nil {
		return notFound(c, "multi-result aggregator not found")
	}

	if err := s.authorize(c, mr.Key, s.cfg.Authorization.RootPassword); err != nil {
		return forbidden(c, err.Error())
	}

	sinceID, _ := strconv.ParseInt(c.QueryParam("since_id"), 10, 64)

	if err := s.set.MultiResults.Touch(ctx, idMultiResult); err != nil {
		return internalError(c, "failed to touch multi-result aggregator")
	}

	results, err := s.set.Results.GetForTests(ctx, mr.TestIDs, sinceID)
	if err != nil {
		return internalError(c, "failed to load results for member tests")
	}

	byTest := make(map[int64]*resultsResponse, len(mr.TestIDs))
	for _, idTest := range mr.TestIDs {
		byTest[idTest] = &resultsResponse{Results: []*resultResponse{}}
	}
	for i := range results {
		r := &results[i]
		byTest[r.IDTest].Results = append(byTest[r.IDTest].Results, newResultResponse(r))
	}

	for _, idTest := range mr.TestIDs {
		if err := s.set.Tests.RecordDownloaded(ctx, idTest, time.Now()); err != nil {
			return internalError(c, "failed to record test download")
		}
	}

	lastCheckedID, err := s.set.Results.MaxID(ctx)
	if err != nil {
		return internalError(c, "failed to compute last checked id")
	}

	return c.JSON(200, &multiResultResponse{Results: byTest, LastCheckedID: lastCheckedID})
}
