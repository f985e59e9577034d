package db

import (
	"testing"
	"time"

	"github.com/harperreed/engage/models"
)

func TestLogAndListFeedback(t *testing.T) {
	db := setupTestDB(t)

	entries := []*models.FeedbackEntry{
		{RecommendationID: "rec-1", DealID: "deal-1", ActionPriority: models.PriorityP0, ActionChannel: models.ChannelEmail,
			FeedbackType: models.FeedbackPositive, FeedbackText: "Got a reply", WhatWorked: "Referencing their launch",
			RecordedAt: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)},
		{RecommendationID: "rec-1", DealID: "deal-1", FeedbackType: models.FeedbackNegative, FeedbackText: "Ignored",
			RecordedAt: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC)},
		{RecommendationID: "rec-2", DealID: "deal-2", ActionChannel: models.ChannelPhone, FeedbackType: models.FeedbackNeutral,
			FeedbackText: "Voicemail"},
	}
	for _, e := range entries {
		if err := LogFeedback(db, e); err != nil {
			t.Fatalf("LogFeedback failed: %v", err)
		}
		if e.ID == 0 {
			t.Error("expected ID to be assigned")
		}
	}

	list, err := ListFeedback(db, "deal-1", 10)
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(list) != 2 {
		t.Fatalf("expected 2 entries for deal-1, got %d", len(list))
	}
	if list[0].FeedbackType != models.FeedbackNegative {
		t.Errorf("expected newest first, got %s", list[0].FeedbackType)
	}
	if list[1].WhatWorked != "Referencing their launch" {
		t.Errorf("what_worked not round-tripped: %q", list[1].WhatWorked)
	}

	all, err := ListFeedback(db, "", 0)
	if err != nil {
		t.Fatalf("ListFeedback failed: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 entries, got %d", len(all))
	}

	got, err := GetFeedback(db, entries[0].ID)
	if err != nil || got == nil {
		t.Fatalf("GetFeedback failed: %v", err)
	}
	if got.ActionChannel != models.ChannelEmail || got.ActionPriority != models.PriorityP0 {
		t.Errorf("unexpected entry: %+v", got)
	}

	missing, err := GetFeedback(db, 9999)
	if err != nil || missing != nil {
		t.Errorf("expected (nil, nil) for missing feedback, got %v, %v", missing, err)
	}
}

func TestContextUpdatesAndStats(t *testing.T) {
	db := setupTestDB(t)

	fb := &models.FeedbackEntry{RecommendationID: "rec-1", DealID: "deal-1", ActionChannel: models.ChannelEmail,
		FeedbackType: models.FeedbackPositive, FeedbackText: "Worked"}
	if err := LogFeedback(db, fb); err != nil {
		t.Fatalf("LogFeedback failed: %v", err)
	}

	update := &models.ContextUpdate{UpdateType: "learning", Section: "Email Engagement Learnings",
		Content: "- **2024-05-01**: Worked", SourceFeedbackID: &fb.ID}
	if err := LogContextUpdate(db, update); err != nil {
		t.Fatalf("LogContextUpdate failed: %v", err)
	}

	orphan := &models.ContextUpdate{UpdateType: "manual", Section: "General Learnings", Content: "note"}
	if err := LogContextUpdate(db, orphan); err != nil {
		t.Fatalf("LogContextUpdate without source failed: %v", err)
	}

	updates, err := ListContextUpdates(db, 10)
	if err != nil {
		t.Fatalf("ListContextUpdates failed: %v", err)
	}
	if len(updates) != 2 {
		t.Fatalf("expected 2 updates, got %d", len(updates))
	}
	var linked int
	for _, u := range updates {
		if u.SourceFeedbackID != nil && *u.SourceFeedbackID == fb.ID {
			linked++
		}
	}
	if linked != 1 {
		t.Errorf("expected one update linked to feedback %d, got %d", fb.ID, linked)
	}

	stats, err := FeedbackStats(db)
	if err != nil {
		t.Fatalf("FeedbackStats failed: %v", err)
	}
	if stats.Total != 1 || stats.ByType[models.FeedbackPositive] != 1 || stats.ByChannel[models.ChannelEmail] != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
	if stats.ContextUpdates != 2 {
		t.Errorf("expected 2 context updates, got %d", stats.ContextUpdates)
	}
}

func TestContextUpdateRejectsUnknownFeedback(t *testing.T) {
	db := setupTestDB(t)

	bogus := int64(424242)
	err := LogContextUpdate(db, &models.ContextUpdate{UpdateType: "learning", Section: "x", Content: "y", SourceFeedbackID: &bogus})
	if err == nil {
		t.Error("expected foreign key violation for unknown feedback id")
	}
}
