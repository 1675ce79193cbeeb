package application

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/calvuzs3/qdue-server/internal/persistence"
)

func newExceptionServiceForTest(t *testing.T) *ExceptionService {
	t.Helper()

	users := newFakeUserRepository()
	shifts := newFakeShiftRepository()
	exceptions := newFakeExceptionRepository()

	ctx := context.Background()
	if err := users.CreateUser(ctx, mustUser("user-1", "worker@example.com")); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	if err := shifts.CreateShift(ctx, persistence.Shift{ID: "shift-afternoon", Name: "Afternoon", StartsAt: "14:00", EndsAt: "22:00"}); err != nil {
		t.Fatalf("seed shift: %v", err)
	}

	return NewExceptionService(exceptions, users, shifts,
		sequentialIDs("exception"), fixedClock(time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)), nil)
}

func TestExceptionService_CreateException(t *testing.T) {
	t.Parallel()

	t.Run("users file exceptions for themselves", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)

		created, conflicts, err := service.CreateException(context.Background(), Principal{UserID: "user-1"}, ExceptionInput{
			UserID:           "user-1",
			TargetDate:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Type:             "ABSENCE_VACATION",
			RequiresApproval: true,
		})
		if err != nil {
			t.Fatalf("CreateException: %v", err)
		}
		if created.Status != "DRAFT" {
			t.Fatalf("expected a draft, got %q", created.Status)
		}
		if len(conflicts) != 0 {
			t.Fatalf("expected no conflicts, got %v", conflicts)
		}
	})

	t.Run("users cannot file for other users", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)

		_, _, err := service.CreateException(context.Background(), Principal{UserID: "user-2"}, ExceptionInput{
			UserID:     "user-1",
			TargetDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Type:       "ABSENCE_SICK",
		})
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("change exceptions need an existing replacement shift", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)

		missing := "missing-shift"
		_, _, err := service.CreateException(context.Background(), adminPrincipal, ExceptionInput{
			UserID:     "user-1",
			TargetDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Type:       "CHANGE_SHIFT",
			NewShiftID: &missing,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
		if _, ok := vErr.FieldErrors["new_shift_id"]; !ok {
			t.Fatalf("expected a new_shift_id field error, got %v", vErr.FieldErrors)
		}
	})

	t.Run("reduction exceptions need both window bounds", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)

		start := "10:00"
		_, _, err := service.CreateException(context.Background(), adminPrincipal, ExceptionInput{
			UserID:       "user-1",
			TargetDate:   time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Type:         "REDUCTION_HOURS",
			ReducedStart: &start,
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("rejects an unknown type namespace", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)

		_, _, err := service.CreateException(context.Background(), adminPrincipal, ExceptionInput{
			UserID:     "user-1",
			TargetDate: time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Type:       "HOLIDAY_EXTRA",
		})
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("expected ValidationError, got %v", err)
		}
	})

	t.Run("reports equal-priority collisions on the same date", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)
		ctx := context.Background()
		target := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

		newShift := "shift-afternoon"
		if _, _, err := service.CreateException(ctx, adminPrincipal, ExceptionInput{
			UserID:     "user-1",
			TargetDate: target,
			Type:       "CHANGE_SHIFT",
			NewShiftID: &newShift,
		}); err != nil {
			t.Fatalf("first CreateException: %v", err)
		}

		_, conflicts, err := service.CreateException(ctx, adminPrincipal, ExceptionInput{
			UserID:     "user-1",
			TargetDate: target,
			Type:       "ABSENCE_SICK",
		})
		if err != nil {
			t.Fatalf("second CreateException: %v", err)
		}
		if len(conflicts) == 0 {
			t.Fatalf("expected a conflict between the change and the absence")
		}
	})
}

func TestExceptionService_Workflow(t *testing.T) {
	t.Parallel()

	newDraft := func(t *testing.T, service *ExceptionService) Exception {
		t.Helper()
		created, _, err := service.CreateException(context.Background(), Principal{UserID: "user-1"}, ExceptionInput{
			UserID:           "user-1",
			TargetDate:       time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC),
			Type:             "ABSENCE_VACATION",
			RequiresApproval: true,
		})
		if err != nil {
			t.Fatalf("CreateException: %v", err)
		}
		return created
	}

	t.Run("draft submits, then approves with approver identity", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)
		ctx := context.Background()
		draft := newDraft(t, service)

		pending, err := service.SubmitException(ctx, Principal{UserID: "user-1"}, draft.ID)
		if err != nil {
			t.Fatalf("SubmitException: %v", err)
		}
		if pending.Status != "PENDING" {
			t.Fatalf("expected PENDING, got %q", pending.Status)
		}

		approved, err := service.ApproveException(ctx, adminPrincipal, draft.ID)
		if err != nil {
			t.Fatalf("ApproveException: %v", err)
		}
		if approved.Status != "APPROVED" {
			t.Fatalf("expected APPROVED, got %q", approved.Status)
		}
		if approved.ApprovedBy == nil || *approved.ApprovedBy != adminPrincipal.UserID {
			t.Fatalf("expected approver recorded, got %v", approved.ApprovedBy)
		}
		if approved.ApprovedAt == nil {
			t.Fatalf("expected the approval instant recorded")
		}
	})

	t.Run("rejection is terminal", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)
		ctx := context.Background()
		draft := newDraft(t, service)

		if _, err := service.SubmitException(ctx, Principal{UserID: "user-1"}, draft.ID); err != nil {
			t.Fatalf("SubmitException: %v", err)
		}
		if _, err := service.RejectException(ctx, adminPrincipal, draft.ID); err != nil {
			t.Fatalf("RejectException: %v", err)
		}
		_, err := service.ApproveException(ctx, adminPrincipal, draft.ID)
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState after rejection, got %v", err)
		}
	})

	t.Run("approval requires administrator privileges", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)
		ctx := context.Background()
		draft := newDraft(t, service)

		if _, err := service.SubmitException(ctx, Principal{UserID: "user-1"}, draft.ID); err != nil {
			t.Fatalf("SubmitException: %v", err)
		}
		_, err := service.ApproveException(ctx, Principal{UserID: "user-1"}, draft.ID)
		if !errors.Is(err, ErrUnauthorized) {
			t.Fatalf("expected ErrUnauthorized, got %v", err)
		}
	})

	t.Run("submitting a non-draft maps to ErrInvalidState", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)
		ctx := context.Background()
		draft := newDraft(t, service)

		if _, err := service.SubmitException(ctx, Principal{UserID: "user-1"}, draft.ID); err != nil {
			t.Fatalf("SubmitException: %v", err)
		}
		_, err := service.SubmitException(ctx, Principal{UserID: "user-1"}, draft.ID)
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState on double submit, got %v", err)
		}
	})

	t.Run("only drafts can be edited", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)
		ctx := context.Background()
		draft := newDraft(t, service)

		if _, err := service.SubmitException(ctx, Principal{UserID: "user-1"}, draft.ID); err != nil {
			t.Fatalf("SubmitException: %v", err)
		}
		_, _, err := service.UpdateException(ctx, Principal{UserID: "user-1"}, draft.ID, ExceptionInput{
			UserID:     "user-1",
			TargetDate: time.Date(2026, 3, 11, 0, 0, 0, 0, time.UTC),
			Type:       "ABSENCE_SICK",
		})
		if !errors.Is(err, ErrInvalidState) {
			t.Fatalf("expected ErrInvalidState, got %v", err)
		}
	})

	t.Run("deactivation hides even approved exceptions", func(t *testing.T) {
		t.Parallel()
		service := newExceptionServiceForTest(t)
		ctx := context.Background()
		draft := newDraft(t, service)

		if _, err := service.SubmitException(ctx, Principal{UserID: "user-1"}, draft.ID); err != nil {
			t.Fatalf("SubmitException: %v", err)
		}
		if _, err := service.ApproveException(ctx, adminPrincipal, draft.ID); err != nil {
			t.Fatalf("ApproveException: %v", err)
		}
		deactivated, err := service.DeactivateException(ctx, adminPrincipal, draft.ID)
		if err != nil {
			t.Fatalf("DeactivateException: %v", err)
		}
		if deactivated.Active {
			t.Fatalf("expected the exception hidden")
		}
		if deactivated.Status != "APPROVED" {
			t.Fatalf("deactivation must not rewrite the status, got %q", deactivated.Status)
		}
	})
}
