package main

import (
	"testing"
	"time"

	"mercator-hq/janus/pkg/usage"
)

func TestBuildUsageQueryTimeRange(t *testing.T) {
	usageFlags.identity = "alice"
	usageFlags.outcome = "authorized"
	usageFlags.timeRange = "2026-08-01T00:00:00Z/2026-08-30T00:00:00Z"
	t.Cleanup(func() { usageFlags.identity, usageFlags.outcome, usageFlags.timeRange = "", "", "" })

	query, err := buildUsageQuery()
	if err != nil {
		t.Fatalf("buildUsageQuery failed: %v", err)
	}
	if query.Identity != "alice" || query.Outcome != usage.OutcomeAuthorized {
		t.Errorf("filters = %q/%q", query.Identity, query.Outcome)
	}
	if query.StartTime == nil || query.StartTime.Day() != 1 {
		t.Errorf("start time = %v", query.StartTime)
	}
	if query.EndTime == nil || query.EndTime.Day() != 30 {
		t.Errorf("end time = %v", query.EndTime)
	}
}

func TestBuildUsageQueryRejectsBadRange(t *testing.T) {
	tests := []string{
		"2026-08-01T00:00:00Z",
		"not-a-time/2026-08-30T00:00:00Z",
		"2026-08-01T00:00:00Z/not-a-time",
	}
	for _, tr := range tests {
		usageFlags.timeRange = tr
		if _, err := buildUsageQuery(); err == nil {
			t.Errorf("time range %q accepted, want error", tr)
		}
	}
	usageFlags.timeRange = ""
}

func TestSummaryTableCSV(t *testing.T) {
	table := summaryTable{
		{Identity: "alice", Authorized: 3, Denied: 1},
	}
	rows := table.CSVRows()
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	want := []string{"alice", "3", "1", "4"}
	for i, col := range want {
		if rows[0][i] != col {
			t.Errorf("column %d = %q, want %q", i, rows[0][i], col)
		}
	}
}

func TestRecordTableCSV(t *testing.T) {
	ts := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	table := recordTable{
		{ID: "r1", Identity: "bob", Method: "GET", Path: "/models", Outcome: usage.OutcomeAuthorized, Timestamp: ts},
	}
	rows := table.CSVRows()
	if len(rows) != 1 {
		t.Fatalf("got %d rows", len(rows))
	}
	if rows[0][1] != "2026-08-30T12:00:00Z" {
		t.Errorf("timestamp column = %q", rows[0][1])
	}
	if len(rows[0]) != len(table.CSVHeader()) {
		t.Errorf("row width %d != header width %d", len(rows[0]), len(table.CSVHeader()))
	}
}
