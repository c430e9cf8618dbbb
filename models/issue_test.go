package models

import (
	"testing"
)

func TestIssuePayload_ScanKeepsVariantExclusive(t *testing.T) {
	payload := IssuePayload{Single: &SingleRowPayload{
		RowId:     3,
		RowNumber: 3,
		Data:      map[string]string{"email": ""},
		Reason:    "email is missing",
	}}

	value, err := payload.Value()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var scanned IssuePayload
	if err := scanned.Scan(value); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if scanned.Single == nil || scanned.Duplicate != nil {
		t.Fatalf("single payload must stay single: %+v", scanned)
	}
	if scanned.Single.RowId != 3 || scanned.Single.Reason != "email is missing" {
		t.Fatalf("unexpected payload: %+v", scanned.Single)
	}
}

func TestIssueStatus_ScanRejectsUnknown(t *testing.T) {
	var status IssueStatus
	if err := status.Scan("OPEN"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != IssueStatusOpen {
		t.Fatalf("got %q", status)
	}
	if err := status.Scan("HALF_DONE"); err == nil {
		t.Fatal("unknown status must be rejected")
	}
}

func TestJobStatus_ScanAcceptsBytes(t *testing.T) {
	var status JobStatus
	if err := status.Scan([]byte("NEEDS_REVIEW")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if status != JobStatusNeedsReview {
		t.Fatalf("got %q", status)
	}
}

func TestResolutionAction_ScanRejectsUnknown(t *testing.T) {
	var action ResolutionAction
	if err := action.Scan("merge"); err == nil {
		t.Fatal("unknown action must be rejected")
	}
	if err := action.Scan("choose"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestSingleRowIssueKey(t *testing.T) {
	if got := SingleRowIssueKey(42); got != "42" {
		t.Fatalf("got %q", got)
	}
}
