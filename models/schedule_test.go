package models

import (
	"errors"
	"testing"
	"time"

	"github.com/campuslab/lostfound_backend/utils"
)

func TestNewScheduleValidate(t *testing.T) {
	valid := NewSchedule{
		ProposedTime: time.Date(2026, 9, 10, 17, 0, 0, 0, time.UTC),
		Location:     "library entrance",
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("valid schedule rejected: %v", err)
	}

	missingTime := NewSchedule{Location: "library entrance"}
	assertValidationError(t, missingTime.Validate())

	blankLocation := NewSchedule{ProposedTime: valid.ProposedTime, Location: "   "}
	assertValidationError(t, blankLocation.Validate())
}

func TestScheduleRejectionValidate(t *testing.T) {
	if err := (&ScheduleRejection{Reason: "cannot make that time"}).Validate(); err != nil {
		t.Fatalf("valid rejection rejected: %v", err)
	}
	assertValidationError(t, (&ScheduleRejection{Reason: "  "}).Validate())
}

func assertValidationError(t *testing.T, err error) {
	t.Helper()
	if err == nil {
		t.Fatal("expected a validation error")
	}
	var appErr *utils.AppError
	if !errors.As(err, &appErr) || appErr.Kind != utils.KindValidation {
		t.Fatalf("expected a VALIDATION error, got %v", err)
	}
}
