// ABOUTME: Tests for hard action validation and the soft quality audit
// ABOUTME: Covers placeholders, phones, LinkedIn rules, status consistency and warnings
package validate

import (
	"errors"
	"strings"
	"testing"

	"github.com/harperreed/engage/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validEmail() models.EmailAction {
	return models.EmailAction{
		FromEmail: "ana@acme.io",
		FromName:  "Ana Silva",
		ToEmail:   "bo@buyer.com",
		ToName:    "Bo Chen",
		Subject:   "Pilot scope for the Q3 rollout",
		Content:   "Hi Bo,<br><br>Following up on the pilot scope we discussed on Thursday. I attached the revised timeline.",
	}
}

func validAction(payload models.ActionPayload) models.ExecutableAction {
	a := models.NewExecutableAction(payload, models.PriorityP0, "Tuesday morning before the steering call", nil)
	a.Rationale = "The buyer asked for a revised timeline and the steering committee meets Wednesday."
	a.Context = "Deal is in proposal stage with pricing already accepted."
	a.SuccessMetrics = []string{"Reply within two business days"}
	return a
}

func violationsOf(t *testing.T, err error) *Error {
	t.Helper()
	require.Error(t, err)
	var verr *Error
	require.True(t, errors.As(err, &verr), "expected *validate.Error, got %T", err)
	return verr
}

func TestValidEmailActionPasses(t *testing.T) {
	a := validAction(validEmail())
	assert.NoError(t, Action(&a))
}

func TestPlaceholderInEmailBodyRejected(t *testing.T) {
	email := validEmail()
	email.Content = "Hi [NAME], following up on the pilot scope we discussed on Thursday last week."
	a := validAction(email)

	verr := violationsOf(t, Action(&a))
	require.Len(t, verr.Violations, 1)
	assert.Equal(t, RulePlaceholder, verr.Violations[0].Rule)
	assert.Equal(t, "action.content", verr.Violations[0].Field)
	assert.Contains(t, verr.Error(), "[NAME]")
}

func TestPlaceholderPatterns(t *testing.T) {
	cases := map[string]string{
		"Dear [FIRST_NAME],":       "[FIRST_NAME]",
		"Budget {amount} approved": "{amount}",
		"Hello <NAME>":             "<NAME>",
		"Hi {{ first_name }}":      "{{ first_name }}",
		"Total ${unit price}":      "${unit price}",
		"Pricing TBD next week":    "TBD",
		"see [Insert case study]":  "[Insert case study]",
		"more details [...]":       "[...]",
		"Hi <first_name>, welcome": "<first_name>",
		"Thanks <br>, <Company>":   "<Company>",
		"Dear [First Name],":       "[First Name]",
		"Hi {first name}, hello":   "{first name}",
	}
	for text, want := range cases {
		assert.Equal(t, want, FindPlaceholder(text), text)
	}

	assert.False(t, HasPlaceholder("Line one<br>Line two<p>para</p>"))
	assert.False(t, HasPlaceholder("Review the [2024] plan with todos listed"))
	assert.False(t, HasPlaceholder("<b>Bold</b> and <strong>strong</strong><br/>"))
	assert.False(t, HasPlaceholder("See [our pilot results](https://example.com/pilot) first"))
}

func TestLowercaseAngleSlotRejected(t *testing.T) {
	for _, content := range []string{
		"Hi <first_name>, following up on the pilot scope we discussed on Thursday last week.",
		"Hi [First Name], following up on the pilot scope we discussed on Thursday last week.",
		"Hi {first name}, following up on the pilot scope we discussed on Thursday last week.",
	} {
		email := validEmail()
		email.Content = content
		a := validAction(email)

		verr := violationsOf(t, Action(&a))
		assert.True(t, verr.Has(RulePlaceholder), content)
	}
}

func TestGenericSubjectRejected(t *testing.T) {
	email := validEmail()
	email.Subject = "Checking in"
	a := validAction(email)

	verr := violationsOf(t, Action(&a))
	assert.True(t, verr.Has("specific_subject"))
}

func TestPhoneFormats(t *testing.T) {
	assert.True(t, ValidPhone("+1 (555) 123-4567"))
	assert.True(t, ValidPhone("+44 20 7946 0958"))
	assert.True(t, ValidPhone("555.123.4567"))
	assert.False(t, ValidPhone("12345"))
	assert.False(t, ValidPhone("call me maybe"))
	assert.False(t, ValidPhone("+1234567890123456"))
}

func TestPhoneActionRules(t *testing.T) {
	phone := models.PhoneAction{
		ToPhone:         "not a number",
		ToName:          "Bo Chen",
		Objective:       "Agree on pilot success criteria",
		TalkingPoints:   []string{"Confirm the pilot start date"},
		DurationMinutes: 200,
	}
	a := validAction(phone)

	verr := violationsOf(t, Action(&a))
	assert.True(t, verr.Has("phone"))
	assert.True(t, verr.Has("min"), "a single talking point is too few")
	assert.True(t, verr.Has("max"), "duration above two hours")
}

func TestLinkedInProfileURL(t *testing.T) {
	assert.True(t, ValidLinkedInProfile("https://www.linkedin.com/in/bo-chen"))
	assert.True(t, ValidLinkedInProfile("https://linkedin.com/in/bo-chen/"))
	assert.False(t, ValidLinkedInProfile("https://linkedin.com/company/acme"))
	assert.False(t, ValidLinkedInProfile("https://evil-linkedin.com/in/bo"))
	assert.False(t, ValidLinkedInProfile("https://www.linkedin.com/in/"))
}

func TestLinkedInCompanionFields(t *testing.T) {
	li := models.LinkedInAction{
		ProfileURL:    "https://www.linkedin.com/in/bo-chen",
		RecipientName: "Bo Chen",
		ActionType:    models.LinkedInInMail,
		Message:       "Saw your post about the platform migration, congrats on the launch.",
	}
	a := validAction(li)
	verr := violationsOf(t, Action(&a))
	assert.True(t, verr.Has("inmail_subject"))
	assert.Equal(t, "action.subject", verr.Violations[0].Field)

	li.ActionType = models.LinkedInConnectionRequest
	a = validAction(li)
	verr = violationsOf(t, Action(&a))
	assert.True(t, verr.Has("connection_note"))

	li.ConnectionNote = "Enjoyed your talk at the ops summit."
	a = validAction(li)
	assert.NoError(t, Action(&a))

	li.ConnectionNote = strings.Repeat("x", 301)
	a = validAction(li)
	verr = violationsOf(t, Action(&a))
	assert.True(t, verr.Has("max"))
}

func TestStatusContradictionRejected(t *testing.T) {
	a := validAction(validEmail())
	a.Prerequisites = []models.Prerequisite{{
		ID:       "p1",
		Task:     "Confirm discount approval with finance",
		Assignee: "Ana",
		Status:   models.PrereqTodo,
		Blocking: true,
	}}
	a.Status = models.StatusReady

	verr := violationsOf(t, Action(&a))
	assert.True(t, verr.Has(RuleStatus))

	a.RefreshStatus()
	assert.NoError(t, Action(&a))
}

func TestMissingPayload(t *testing.T) {
	a := validAction(nil)
	verr := violationsOf(t, Action(&a))
	assert.True(t, verr.Has(RuleRequired))
}

func validRecommendations() *models.ActionRecommendations {
	return &models.ActionRecommendations{
		DealID:           "deal-42",
		DealName:         "Acme Platform Expansion",
		ExecutiveSummary: strings.Repeat("Acme is evaluating the expansion and needs a revised pilot plan. ", 2),
		KeyInsights:      []string{"Budget approved for Q3"},
		P0Actions:        []models.ExecutableAction{validAction(validEmail())},
		OverallStrategy:  strings.Repeat("Keep momentum through the steering committee and secure the pilot. ", 2),
	}
}

func TestRecommendationsPrefixesActionPaths(t *testing.T) {
	r := validRecommendations()
	require.NoError(t, Recommendations(r))

	bad := validEmail()
	bad.Content = "Hi Bo, we will send pricing TODO once finance confirms the numbers."
	r.P1Actions = []models.ExecutableAction{validAction(bad)}
	r.KeyInsights = nil

	verr := violationsOf(t, Recommendations(r))
	fields := make([]string, len(verr.Violations))
	for i, v := range verr.Violations {
		fields[i] = v.Field
	}
	assert.Contains(t, fields, "key_insights")
	assert.Contains(t, fields, "p1_actions[0].action.content")
}

func TestStructValidatesFeedback(t *testing.T) {
	entry := models.FeedbackEntry{
		RecommendationID: "rec-1",
		DealID:           "deal-42",
		FeedbackType:     "meh",
		FeedbackText:     "too pushy",
	}
	verr := violationsOf(t, Struct(&entry))
	assert.True(t, verr.Has("oneof"))

	entry.FeedbackType = models.FeedbackNegative
	assert.NoError(t, Struct(&entry))
}

func TestAuditWarnsOnThinContent(t *testing.T) {
	r := validRecommendations()
	a := &r.P0Actions[0]
	a.Prerequisites = []models.Prerequisite{{ID: "p1", Task: "Get legal sign-off on terms", Status: models.PrereqTodo, Blocking: true}}
	a.RefreshStatus()
	require.NoError(t, Recommendations(r), "audit findings never fail validation")

	warnings := Audit(r)
	fields := make([]string, len(warnings))
	for i, w := range warnings {
		fields[i] = w.Field
	}
	assert.Contains(t, fields, "executive_summary")
	assert.Contains(t, fields, "p0_actions[0].rationale")
	assert.Contains(t, fields, "p0_actions[0].context")
	assert.Contains(t, fields, "p0_actions[0].success_metrics")
	assert.Contains(t, fields, "p0_actions[0].prerequisites[0].assignee")
	assert.Contains(t, fields, "p0_actions[0].action.content")
}

func TestAuditNoActions(t *testing.T) {
	r := validRecommendations()
	r.P0Actions = nil
	warnings := Audit(r)
	require.NotEmpty(t, warnings)
	assert.Equal(t, "actions", warnings[len(warnings)-1].Field)
}
