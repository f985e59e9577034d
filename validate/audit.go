// ABOUTME: Soft quality audit of validated recommendations
// ABOUTME: Flags thin but legal content as warnings; never rejects anything
package validate

import (
	"fmt"
	"unicode/utf8"

	"github.com/harperreed/engage/models"
)

// Audit thresholds sit above the hard minimums: content that passes hard
// validation but is still thin gets a warning.
const (
	auditRationaleLen   = 100
	auditContextLen     = 60
	auditEmailLen       = 200
	auditTalkingPoints  = 3
	auditLinkedInLen    = 80
	auditMinMetrics     = 2
	auditExecSummaryLen = 200
)

// Warning is one non-fatal quality finding.
type Warning struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s", w.Field, w.Message)
}

// Audit inspects validated recommendations and returns quality warnings.
func Audit(r *models.ActionRecommendations) []Warning {
	var warnings []Warning
	add := func(field, format string, args ...any) {
		warnings = append(warnings, Warning{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if n := utf8.RuneCountInString(r.ExecutiveSummary); n < auditExecSummaryLen {
		add("executive_summary", "executive summary is brief (%d chars)", n)
	}
	if r.TotalActions() == 0 {
		add("actions", "no actions recommended")
	} else if len(r.P0Actions) == 0 {
		add("p0_actions", "no urgent (P0) action recommended")
	}

	groups := []struct {
		field   string
		actions []models.ExecutableAction
	}{
		{"p0_actions", r.P0Actions},
		{"p1_actions", r.P1Actions},
		{"p2_actions", r.P2Actions},
	}
	for _, g := range groups {
		for i, a := range g.actions {
			for _, w := range AuditAction(&a) {
				w.Field = fmt.Sprintf("%s[%d].%s", g.field, i, w.Field)
				warnings = append(warnings, w)
			}
		}
	}
	return warnings
}

// AuditAction inspects one action. Field paths are relative to the action.
func AuditAction(a *models.ExecutableAction) []Warning {
	var warnings []Warning
	add := func(field, format string, args ...any) {
		warnings = append(warnings, Warning{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	if n := utf8.RuneCountInString(a.Rationale); n < auditRationaleLen {
		add("rationale", "rationale is short (%d chars)", n)
	}
	if n := utf8.RuneCountInString(a.Context); n < auditContextLen {
		add("context", "context is short (%d chars)", n)
	}
	switch n := len(a.SuccessMetrics); {
	case n == 0:
		add("success_metrics", "no success metrics defined")
	case n < auditMinMetrics:
		add("success_metrics", "only %d success metric", n)
	}
	for i, p := range a.Prerequisites {
		if p.Blocking && p.Status != models.PrereqCompleted && p.Assignee == "" {
			add(fmt.Sprintf("prerequisites[%d].assignee", i), "blocking prerequisite has no assignee")
		}
	}

	switch p := a.Action.(type) {
	case models.EmailAction:
		if n := utf8.RuneCountInString(p.Content); n < auditEmailLen {
			add("action.content", "email body is thin (%d chars)", n)
		}
	case models.PhoneAction:
		if n := len(p.TalkingPoints); n < auditTalkingPoints {
			add("action.talking_points", "only %d talking points", n)
		}
	case models.LinkedInAction:
		if n := utf8.RuneCountInString(p.Message); n < auditLinkedInLen {
			add("action.message", "LinkedIn message is brief (%d chars)", n)
		}
	case models.WhatsAppAction:
		if p.MediaURL == "" && utf8.RuneCountInString(p.Message) < auditContextLen {
			add("action.message", "WhatsApp message is brief and has no media")
		}
	}
	return warnings
}
