// ABOUTME: Data models for recommendation feedback and company context updates
// ABOUTME: Defines FeedbackType, FeedbackEntry and ContextUpdate
package models

import (
	"time"
)

type FeedbackType string

const (
	FeedbackPositive FeedbackType = "positive"
	FeedbackNegative FeedbackType = "negative"
	FeedbackNeutral  FeedbackType = "neutral"
)

// FeedbackEntry is one row of the append-only feedback log.
type FeedbackEntry struct {
	ID                   int64        `json:"id"`
	RecommendationID     string       `json:"recommendation_id" validate:"required"`
	DealID               string       `json:"deal_id" validate:"required"`
	ActionPriority       Priority     `json:"action_priority,omitempty" validate:"omitempty,oneof=P0 P1 P2"`
	ActionChannel        Channel      `json:"action_channel,omitempty" validate:"omitempty,oneof=email phone linkedin whatsapp"`
	FeedbackType         FeedbackType `json:"feedback_type" validate:"oneof=positive negative neutral"`
	FeedbackText         string       `json:"feedback_text" validate:"required"`
	WhatWorked           string       `json:"what_worked,omitempty"`
	WhatDidntWork        string       `json:"what_didnt_work,omitempty"`
	SuggestedImprovement string       `json:"suggested_improvement,omitempty"`
	RecordedAt           time.Time    `json:"recorded_at"`
}

// ContextUpdate records a change to the company context file.
type ContextUpdate struct {
	ID               int64     `json:"id"`
	UpdateType       string    `json:"update_type"`
	Section          string    `json:"section"`
	Content          string    `json:"content"`
	AppliedAt        time.Time `json:"applied_at"`
	SourceFeedbackID *int64    `json:"source_feedback_id,omitempty"`
}

// FeedbackStats aggregates the feedback log.
type FeedbackStats struct {
	Total          int                  `json:"total"`
	ByType         map[FeedbackType]int `json:"by_type"`
	ByChannel      map[Channel]int      `json:"by_channel"`
	ContextUpdates int                  `json:"context_updates"`
}
