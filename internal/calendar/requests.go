package calendar

import (
	"context"
	"log/slog"
	"time"

	"github.com/rysavy-ondrej/project-inventor/internal/dao"
	"github.com/rysavy-ondrej/project-inventor/internal/models"
)

// processAllRequests consumes every pending Request, dispatching each by
// reason (new/update/failed) and deleting it once processed, matching
// RequestsForNewEvents.process_all_requests in the original.
func (s *Service) processAllRequests(ctx context.Context) {
	requests, err := s.set.Requests.GetAll(ctx)
	if err != nil {
		slog.Error("Calendar: listing requests failed", "error", err)
		return
	}
	now := time.Now()
	for _, request := range requests {
		s.processRequest(ctx, request, now)
	}
}

func (s *Service) processRequest(ctx context.Context, request models.Request, now time.Time) {
	test, err := s.set.Tests.Get(ctx, request.IDTest)
	if err != nil {
		slog.Error("Calendar: fetching test for request failed", "id_test", request.IDTest, "error", err)
		return
	}
	if test == nil {
		slog.Warn("Calendar: request for unknown test, dropping", "id_test", request.IDTest)
		if err := s.set.Requests.Delete(ctx, nil, request.IDRequest, dao.TxNone); err != nil {
			slog.Error("Calendar: deleting orphan request failed", "id_request", request.IDRequest, "error", err)
		}
		return
	}

	switch request.Reason {
	case models.RequestReasonNew:
		s.processNewRequest(ctx, request, test, now)
	case models.RequestReasonUpdate:
		s.processUpdateRequest(ctx, request, test, now)
	case models.RequestReasonFailed:
		s.processRecoveryRequest(ctx, request, test, now)
	}

	if err := s.set.Requests.Delete(ctx, nil, request.IDRequest, dao.TxNone); err != nil {
		slog.Error("Calendar: deleting processed request failed", "id_request", request.IDRequest, "error", err)
	}
}

// processNewRequest implements spec.md §4.1's "new" reason: schedule at
// scheduling_from if it lies in the future, otherwise plan the next
// periodic occurrence as if the previous run were now.
func (s *Service) processNewRequest(ctx context.Context, request models.Request, test *models.Test, now time.Time) {
	if test.SchedulingFrom != nil && now.Before(*test.SchedulingFrom) {
		if err := s.insertIntoCalendar(ctx, nil, test, *test.SchedulingFrom, models.EventSourceRequest, 0, dao.TxNone); err != nil {
			slog.Error("Calendar: planning future-scheduled event failed", "id_test", test.IDTest, "error", err)
		}
		return
	}
	if err := s.planNextEvent(ctx, nil, test, now, now, dao.TxNone); err != nil {
		slog.Error("Calendar: planning immediate event failed", "id_test", test.IDTest, "error", err)
	}
}

// processUpdateRequest implements spec.md §4.1's "update" reason.
func (s *Service) processUpdateRequest(ctx context.Context, request models.Request, test *models.Test, now time.Time) {
	switch test.State {
	case models.TestStateDisabled, models.TestStateDeleted:
		if err := s.set.Events.DeleteByTest(ctx, nil, test.IDTest, dao.TxNone); err != nil {
			slog.Error("Calendar: clearing events after disable/delete failed", "id_test", test.IDTest, "error", err)
		}
	case models.TestStateEnabled:
		s.processNewRequest(ctx, request, test, now)
	default:
		// migrating_from / migrating_to: no calendar action.
	}
}

// processRecoveryRequest implements spec.md §4.1's "failed" reason.
func (s *Service) processRecoveryRequest(ctx context.Context, request models.Request, test *models.Test, now time.Time) {
	if test.RecoveryAttemptLimit == nil {
		return
	}
	if request.RecoveryAttempt > *test.RecoveryAttemptLimit {
		return
	}
	interval := int64(0)
	if test.RecoveryInterval != nil {
		interval = *test.RecoveryInterval
	}
	recoveryTime := now.Add(time.Duration(interval) * time.Second)
	if test.SchedulingUntil != nil && recoveryTime.After(*test.SchedulingUntil) {
		return
	}
	if err := s.insertIntoCalendar(ctx, nil, test, recoveryTime, models.EventSourceRecovery, request.RecoveryAttempt, dao.TxNone); err != nil {
		slog.Error("Calendar: planning recovery event failed", "id_test", test.IDTest, "error", err)
	}
}
