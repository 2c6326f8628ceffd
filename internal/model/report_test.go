package model

import (
	"errors"
	"strings"
	"testing"
)

func TestNewRunReport(t *testing.T) {
	report := NewRunReport()

	if report.ID == "" {
		t.Error("Expected report ID to be set")
	}
	if !strings.HasPrefix(report.ID, RunIDPrefix) {
		t.Errorf("Expected ID to start with %q, got %s", RunIDPrefix, report.ID)
	}
	if report.StartedAt.IsZero() {
		t.Error("Expected StartedAt to be set")
	}
	if report.HasFailures() {
		t.Error("Expected new report to have no failures")
	}
}

func TestGenerateRunID(t *testing.T) {
	id1 := generateRunID()
	id2 := generateRunID()

	if id1 == id2 {
		t.Error("Expected unique run IDs")
	}

	// UUID v7 string form is 36 characters
	if len(id1) != len(RunIDPrefix)+36 {
		t.Errorf("Unexpected run ID length: %d (%s)", len(id1), id1)
	}
}

func TestAddPage(t *testing.T) {
	report := NewRunReport()

	report.AddPage(3)
	report.AddPage(0)

	if report.Pages != 2 {
		t.Errorf("Expected 2 pages, got %d", report.Pages)
	}
	if report.Discovered != 3 {
		t.Errorf("Expected 3 discovered references, got %d", report.Discovered)
	}
}

func TestAddOutcomeCounters(t *testing.T) {
	report := NewRunReport()
	target := ValidatedTarget{URL: "https://example.com/a.jpg", DestPath: "/tmp/a.jpg"}

	report.AddOutcome("Chat", Downloaded(target, 100))
	report.AddOutcome("Chat", Downloaded(target, 200))
	report.AddOutcome("Chat", Skipped(target, SkipAlreadyExists))
	report.AddOutcome("Chat", Failed(target, errors.New("unexpected status: 404"), 1))
	report.AddRejected()
	report.AddDuplicate()

	if report.Downloaded != 2 {
		t.Errorf("Expected 2 downloaded, got %d", report.Downloaded)
	}
	if report.BytesWritten != 300 {
		t.Errorf("Expected 300 bytes written, got %d", report.BytesWritten)
	}
	if report.Skipped != 2 {
		t.Errorf("Expected 2 skipped, got %d", report.Skipped)
	}
	if report.Rejected != 1 {
		t.Errorf("Expected 1 rejected, got %d", report.Rejected)
	}
	if report.Failed != 1 {
		t.Errorf("Expected 1 failed, got %d", report.Failed)
	}
	if !report.HasFailures() {
		t.Error("Expected HasFailures to be true")
	}
}

func TestFailureDetails(t *testing.T) {
	report := NewRunReport()
	target := ValidatedTarget{URL: "https://example.com/broken.jpg", DestPath: "/tmp/broken.jpg"}

	report.AddOutcome("Ivan", Failed(target, errors.New("unexpected status: 503"), 3))

	if len(report.Failures) != 1 {
		t.Fatalf("Expected 1 failure detail, got %d", len(report.Failures))
	}

	detail := report.Failures[0]
	if detail.URL != target.URL {
		t.Errorf("Expected failure URL %s, got %s", target.URL, detail.URL)
	}
	if detail.GroupName != "Ivan" {
		t.Errorf("Expected group name Ivan, got %s", detail.GroupName)
	}
	if detail.Attempts != 3 {
		t.Errorf("Expected 3 attempts, got %d", detail.Attempts)
	}
	if detail.Reason != "unexpected status: 503" {
		t.Errorf("Unexpected failure reason: %q", detail.Reason)
	}
}

func TestFinishAndDuration(t *testing.T) {
	report := NewRunReport()

	if report.Duration() < 0 {
		t.Error("Expected non-negative duration for an unfinished report")
	}

	report.Finish()

	if report.FinishedAt.IsZero() {
		t.Error("Expected FinishedAt to be set after Finish")
	}
	if report.Duration() < 0 {
		t.Error("Expected non-negative duration after Finish")
	}
}
