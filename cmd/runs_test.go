package main

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/chem-advisor/internal/model"
)

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2025, 6, 15, 10, 30, 0, 0, time.UTC)
	done := now.Add(2 * time.Minute)
	runs := []model.ReplacementRun{
		{
			ID:            "abc12345-6789-0000-0000-000000000000",
			Request:       model.ReplacementRequest{OriginalProductID: "p1"},
			Original:      &model.Product{Name: "Klenz-All"},
			Status:        model.RunStatusComplete,
			CandidatePool: 12,
			Candidates:    make([]model.ReplacementCandidate, 5),
			CreatedAt:     now,
			CompletedAt:   &done,
		},
		{
			ID:        "def12345-6789-0000-0000-000000000000",
			Request:   model.ReplacementRequest{OriginalProductID: "product-without-a-loaded-original-record"},
			Status:    model.RunStatusSourcing,
			CreatedAt: now.Add(-1 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "ID")
	assert.Contains(t, output, "ORIGINAL")
	assert.Contains(t, output, "Klenz-All")
	assert.Contains(t, output, "complete")
	assert.Contains(t, output, "sourcing")
	assert.Contains(t, output, "2025-06-15 10:30")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "2m0s")
	assert.Contains(t, output, "product-without-a-loaded-or...")
}

func TestComputeRunStats(t *testing.T) {
	now := time.Now()
	done := now.Add(10 * time.Second)
	runs := []model.ReplacementRun{
		{Status: model.RunStatusComplete, CandidatePool: 10, Candidates: make([]model.ReplacementCandidate, 4), CreatedAt: now, CompletedAt: &done},
		{Status: model.RunStatusComplete, CandidatePool: 20, Candidates: make([]model.ReplacementCandidate, 6), CreatedAt: now, CompletedAt: &done},
		{Status: model.RunStatusFailed, Error: "original product not found"},
		{Status: model.RunStatusScoring},
	}

	s := computeRunStats(runs)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.Complete)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.InProgress)
	assert.InDelta(t, 15.0, s.AvgPool, 0.001)
	assert.InDelta(t, 5.0, s.AvgCandidates, 0.001)
	assert.InDelta(t, 10.0, s.AvgDurSecs, 0.001)

	var buf bytes.Buffer
	formatRunStats(&buf, s)
	assert.Contains(t, buf.String(), "Total runs:")
	assert.Contains(t, buf.String(), "Avg pool:")
	assert.Contains(t, buf.String(), "10.0s")
}

func TestComputeRunStats_Empty(t *testing.T) {
	s := computeRunStats(nil)
	assert.Equal(t, runStats{}, s)

	var buf bytes.Buffer
	formatRunStats(&buf, s)
	assert.NotContains(t, buf.String(), "Avg")
}

func TestRunsSince(t *testing.T) {
	now := time.Now()
	runs := []model.ReplacementRun{
		{ID: "old", CreatedAt: now.Add(-48 * time.Hour)},
		{ID: "new", CreatedAt: now.Add(-time.Hour)},
	}
	got := runsSince(runs, now.Add(-24*time.Hour))
	require.Len(t, got, 1)
	assert.Equal(t, "new", got[0].ID)
	assert.Len(t, runs, 2)
}

func TestTruncateID(t *testing.T) {
	assert.Equal(t, "abc12345", truncateID("abc12345-6789"))
	assert.Equal(t, "short", truncateID("short"))
}

func TestRunsShow_NotFound(t *testing.T) {
	cfg = testConfig(t)
	runsShowCmd.SetContext(context.Background())

	err := runsShowCmd.RunE(runsShowCmd, []string{"missing"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "run missing not found")
}
