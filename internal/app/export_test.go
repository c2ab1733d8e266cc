package app

import (
	"testing"
	"time"

	"powerindex/internal/storage"
)

func pubRows(areas ...string) []storage.Publication {
	rows := make([]storage.Publication, len(areas))
	for i, area := range areas {
		rows[i] = storage.Publication{Area: area, DateNum: 20260831}
	}
	return rows
}

func TestDownsamplePublicationsSingleTarget(t *testing.T) {
	rows := pubRows("SE1", "SE2", "SE3")

	got := downsamplePublications(rows, 1)
	if len(got) != 1 {
		t.Fatalf("got %d rows, want 1", len(got))
	}
	if got[0].Area != "SE3" {
		t.Fatalf("the most recent row should survive, got %q", got[0].Area)
	}
}

func TestDownsamplePublicationsKeepsEndpoints(t *testing.T) {
	rows := pubRows("SE1", "SE2", "SE3", "SE4", "SE5")

	got := downsamplePublications(rows, 3)
	if len(got) != 3 {
		t.Fatalf("got %d rows, want 3", len(got))
	}
	if got[0].Area != "SE1" || got[2].Area != "SE5" {
		t.Fatalf("first and last rows must be kept: %+v", got)
	}
}

func TestDownsamplePublicationsNoopWhenSmall(t *testing.T) {
	rows := pubRows("SE1", "SE2")
	if got := downsamplePublications(rows, 10); len(got) != 2 {
		t.Fatalf("got %d rows, want 2", len(got))
	}
	if got := downsamplePublications(rows, 0); len(got) != 2 {
		t.Fatalf("max 0 means no downsampling, got %d rows", len(got))
	}
}

func TestDateNumTime(t *testing.T) {
	got := dateNumTime(20260831)
	want := time.Date(2026, 8, 31, 0, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("dateNumTime = %s, want %s", got, want)
	}
}
