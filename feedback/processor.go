// ABOUTME: Turns recommendation feedback into learnings in the company context file
// ABOUTME: Logs feedback, appends a dated learning to the channel section and records the update
package feedback

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/harperreed/engage/companyctx"
	"github.com/harperreed/engage/db"
	"github.com/harperreed/engage/models"
	"github.com/harperreed/engage/validate"
)

// Section names learnings are appended to.
const (
	SectionEmail    = "Email Engagement Learnings"
	SectionPhone    = "Call Strategy Learnings"
	SectionLinkedIn = "LinkedIn Outreach Learnings"
	SectionWhatsApp = "WhatsApp Communication Learnings"
	SectionGeneral  = "General Learnings"
)

// UpdateTypeLearning marks context updates derived from feedback.
const UpdateTypeLearning = "learning"

// SectionFor picks the context section for a channel.
func SectionFor(channel models.Channel) string {
	switch channel {
	case models.ChannelEmail:
		return SectionEmail
	case models.ChannelPhone:
		return SectionPhone
	case models.ChannelLinkedIn:
		return SectionLinkedIn
	case models.ChannelWhatsApp:
		return SectionWhatsApp
	default:
		return SectionGeneral
	}
}

// Input is feedback on one recommendation or action.
type Input struct {
	RecommendationID     string              `json:"recommendation_id" jsonschema:"id of the recommendation the feedback is about"`
	DealID               string              `json:"deal_id,omitempty" jsonschema:"deal id, defaults to unknown"`
	ActionPriority       models.Priority     `json:"action_priority,omitempty" jsonschema:"P0, P1 or P2"`
	ActionChannel        models.Channel      `json:"action_channel,omitempty" jsonschema:"email, phone, linkedin or whatsapp"`
	FeedbackType         models.FeedbackType `json:"feedback_type" jsonschema:"positive, negative or neutral"`
	FeedbackText         string              `json:"feedback_text" jsonschema:"free-form feedback"`
	WhatWorked           string              `json:"what_worked,omitempty"`
	WhatDidntWork        string              `json:"what_didnt_work,omitempty"`
	SuggestedImprovement string              `json:"suggested_improvement,omitempty"`
}

// Result reports what the feedback changed.
type Result struct {
	FeedbackID   int64  `json:"feedback_id"`
	Learning     string `json:"learning_extracted"`
	Section      string `json:"added_to_section"`
	NewVersion   string `json:"new_version"`
	WillApplyTo  string `json:"will_apply_to"`
	ContextDiff  string `json:"context_diff,omitempty"`
	ContextWrote bool   `json:"company_context_updated"`
}

// Processor applies feedback to the log and the company context file.
type Processor struct {
	db          *sql.DB
	contextFile string
	logger      *slog.Logger
	now         func() time.Time
}

func NewProcessor(conn *sql.DB, contextFile string, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{db: conn, contextFile: contextFile, logger: logger, now: time.Now}
}

// Process records the feedback and appends its learning to the context.
// The feedback row is kept even if the context update fails.
func (p *Processor) Process(ctx context.Context, in Input) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entry := &models.FeedbackEntry{
		RecommendationID:     in.RecommendationID,
		DealID:               in.DealID,
		ActionPriority:       in.ActionPriority,
		ActionChannel:        in.ActionChannel,
		FeedbackType:         in.FeedbackType,
		FeedbackText:         strings.TrimSpace(in.FeedbackText),
		WhatWorked:           strings.TrimSpace(in.WhatWorked),
		WhatDidntWork:        strings.TrimSpace(in.WhatDidntWork),
		SuggestedImprovement: strings.TrimSpace(in.SuggestedImprovement),
		RecordedAt:           p.now().UTC(),
	}
	if entry.DealID == "" {
		entry.DealID = "unknown"
	}
	if err := validate.Struct(entry); err != nil {
		return nil, err
	}

	if err := db.LogFeedback(p.db, entry); err != nil {
		return nil, fmt.Errorf("failed to log feedback: %w", err)
	}
	p.logger.Info("feedback logged", "feedback_id", entry.ID, "recommendation_id", entry.RecommendationID, "type", entry.FeedbackType)

	learning := Learning(entry, p.now())
	section := SectionFor(entry.ActionChannel)
	res := &Result{
		FeedbackID:  entry.ID,
		Learning:    learning,
		Section:     section,
		WillApplyTo: appliesTo(entry.ActionChannel),
	}

	if _, err := companyctx.Load(p.contextFile); err != nil {
		return res, err
	}
	upd, err := companyctx.UpdateSection(p.contextFile, section, learning, true, p.now())
	if err != nil {
		return res, fmt.Errorf("failed to update company context: %w", err)
	}
	res.ContextWrote = true
	res.NewVersion = upd.NewVersion
	res.ContextDiff = upd.Diff

	feedbackID := entry.ID
	if err := db.LogContextUpdate(p.db, &models.ContextUpdate{
		UpdateType:       UpdateTypeLearning,
		Section:          section,
		Content:          learning,
		AppliedAt:        p.now().UTC(),
		SourceFeedbackID: &feedbackID,
	}); err != nil {
		return res, fmt.Errorf("failed to log context update: %w", err)
	}

	p.logger.Info("company context updated", "section", section, "version", upd.NewVersion)
	return res, nil
}

// Learning formats the dated learning line for entry.
func Learning(entry *models.FeedbackEntry, now time.Time) string {
	var instruction string
	switch {
	case entry.FeedbackType == models.FeedbackPositive && entry.WhatWorked != "":
		instruction = entry.WhatWorked
	case entry.FeedbackType == models.FeedbackNegative && entry.WhatDidntWork != "":
		instruction = "Avoid: " + entry.WhatDidntWork
	case entry.SuggestedImprovement != "":
		instruction = entry.SuggestedImprovement
	default:
		instruction = entry.FeedbackText
	}
	instruction = strings.Join(strings.Fields(instruction), " ")

	line := fmt.Sprintf("- **%s**: %s", now.Format("2006-01-02"), instruction)
	if scope := strings.TrimSpace(string(entry.ActionPriority) + " " + string(entry.ActionChannel)); scope != "" {
		line += fmt.Sprintf(" _(Context: %s action)_", scope)
	}
	return line
}

func appliesTo(channel models.Channel) string {
	if channel == "" {
		return "Future recommendations"
	}
	return fmt.Sprintf("Future %s recommendations", channel)
}
