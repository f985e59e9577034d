// ABOUTME: Data models for executable outreach actions
// ABOUTME: Defines the channel payload union, prerequisites, ExecutableAction and ActionRecommendations
package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelPhone    Channel = "phone"
	ChannelLinkedIn Channel = "linkedin"
	ChannelWhatsApp Channel = "whatsapp"
)

// Channels lists every supported channel in display order.
var Channels = []Channel{ChannelEmail, ChannelPhone, ChannelLinkedIn, ChannelWhatsApp}

type Priority string

const (
	PriorityP0 Priority = "P0"
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
)

type ActionStatus string

const (
	StatusPending                 ActionStatus = "pending"
	StatusPrerequisitesIncomplete ActionStatus = "prerequisites_incomplete"
	StatusReady                   ActionStatus = "ready"
	StatusExecuting               ActionStatus = "executing"
	StatusCompleted               ActionStatus = "completed"
	StatusFailed                  ActionStatus = "failed"
)

type PrerequisiteStatus string

const (
	PrereqTodo       PrerequisiteStatus = "todo"
	PrereqInProgress PrerequisiteStatus = "in_progress"
	PrereqCompleted  PrerequisiteStatus = "completed"
	PrereqBlocked    PrerequisiteStatus = "blocked"
)

// LinkedIn action kinds.
const (
	LinkedInConnectionRequest = "connection_request"
	LinkedInMessage           = "message"
	LinkedInInMail            = "inmail"
)

// Prerequisite is a task that should be done before an action runs.
type Prerequisite struct {
	ID       string             `json:"id" validate:"required,noplaceholder"`
	Task     string             `json:"task" validate:"required,min=10,noplaceholder"`
	Assignee string             `json:"assignee,omitempty" validate:"omitempty,noplaceholder"`
	Deadline string             `json:"deadline,omitempty"`
	Status   PrerequisiteStatus `json:"status" validate:"oneof=todo in_progress completed blocked"`
	Blocking bool               `json:"blocking"`
}

// UnmarshalJSON applies the defaults: status todo, blocking true.
func (p *Prerequisite) UnmarshalJSON(data []byte) error {
	type alias Prerequisite
	aux := struct {
		*alias
		Blocking *bool `json:"blocking"`
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.Blocking = aux.Blocking == nil || *aux.Blocking
	if p.Status == "" {
		p.Status = PrereqTodo
	}
	return nil
}

// Incomplete reports whether this prerequisite holds its action back.
func (p Prerequisite) Incomplete() bool {
	return p.Blocking && p.Status != PrereqCompleted
}

// ActionPayload is one channel-specific action body. The set of
// implementations is closed: EmailAction, PhoneAction, LinkedInAction and
// WhatsAppAction.
type ActionPayload interface {
	Channel() Channel
	// Recipient names who the action is addressed to, for display.
	Recipient() string
}

type EmailAction struct {
	FromEmail   string   `json:"from_email" validate:"required,email"`
	FromName    string   `json:"from_name" validate:"required,noplaceholder"`
	ToEmail     string   `json:"to_email" validate:"required,email"`
	ToName      string   `json:"to_name" validate:"required,noplaceholder"`
	Subject     string   `json:"subject" validate:"required,min=5,specific_subject,noplaceholder"`
	Content     string   `json:"content" validate:"required,min=50,noplaceholder"`
	CCEmails    []string `json:"cc_emails,omitempty" validate:"omitempty,dive,email"`
	BCCEmails   []string `json:"bcc_emails,omitempty" validate:"omitempty,dive,email"`
	Attachments []string `json:"attachments,omitempty" validate:"omitempty,dive,url"`
}

func (EmailAction) Channel() Channel    { return ChannelEmail }
func (e EmailAction) Recipient() string { return fmt.Sprintf("%s <%s>", e.ToName, e.ToEmail) }

type PhoneAction struct {
	ToPhone         string   `json:"to_phone" validate:"required,phone"`
	ToName          string   `json:"to_name" validate:"required,noplaceholder"`
	Objective       string   `json:"objective" validate:"required,min=10,noplaceholder"`
	TalkingPoints   []string `json:"talking_points" validate:"min=2,dive,min=10,noplaceholder"`
	DurationMinutes int      `json:"expected_duration_minutes" validate:"min=5,max=120"`
	Notes           string   `json:"notes,omitempty" validate:"omitempty,noplaceholder"`
}

func (PhoneAction) Channel() Channel    { return ChannelPhone }
func (p PhoneAction) Recipient() string { return fmt.Sprintf("%s (%s)", p.ToName, p.ToPhone) }

type LinkedInAction struct {
	ProfileURL     string `json:"recipient_linkedin_url" validate:"required,url,linkedin_profile"`
	RecipientName  string `json:"recipient_name" validate:"required,noplaceholder"`
	ActionType     string `json:"action_type" validate:"oneof=connection_request message inmail"`
	Subject        string `json:"subject,omitempty" validate:"omitempty,noplaceholder"`
	Message        string `json:"message" validate:"min=20,max=1900,noplaceholder"`
	ConnectionNote string `json:"connection_note,omitempty" validate:"omitempty,max=300,noplaceholder"`
}

func (LinkedInAction) Channel() Channel    { return ChannelLinkedIn }
func (l LinkedInAction) Recipient() string { return l.RecipientName }

type WhatsAppAction struct {
	ToPhone  string `json:"to_phone" validate:"required,phone"`
	ToName   string `json:"to_name" validate:"required,noplaceholder"`
	Message  string `json:"message" validate:"min=10,noplaceholder"`
	MediaURL string `json:"media_url,omitempty" validate:"omitempty,url"`
}

func (WhatsAppAction) Channel() Channel    { return ChannelWhatsApp }
func (w WhatsAppAction) Recipient() string { return fmt.Sprintf("%s (%s)", w.ToName, w.ToPhone) }

// ExecutableAction wraps one channel payload with scheduling metadata.
// Status is always derived from Prerequisites; see DeriveStatus.
type ExecutableAction struct {
	Action            ActionPayload  `json:"action" validate:"-"`
	Priority          Priority       `json:"priority" validate:"oneof=P0 P1 P2"`
	RecommendedTiming string         `json:"recommended_timing" validate:"required,noplaceholder"`
	Prerequisites     []Prerequisite `json:"prerequisites" validate:"dive"`
	Rationale         string         `json:"rationale" validate:"min=50,noplaceholder"`
	Context           string         `json:"context" validate:"min=30,noplaceholder"`
	SuccessMetrics    []string       `json:"success_metrics" validate:"min=1,dive,min=10,noplaceholder"`
	Status            ActionStatus   `json:"status"`
	CreatedAt         time.Time      `json:"created_at"`
}

// NewExecutableAction builds an action and derives its status.
func NewExecutableAction(payload ActionPayload, priority Priority, timing string, prereqs []Prerequisite) ExecutableAction {
	a := ExecutableAction{
		Action:            payload,
		Priority:          priority,
		RecommendedTiming: timing,
		Prerequisites:     prereqs,
		CreatedAt:         time.Now().UTC(),
	}
	a.Status = DeriveStatus(a.Status, prereqs)
	return a
}

// DeriveStatus reconciles a requested status with the prerequisite list.
// Any incomplete blocking prerequisite forces StatusPrerequisitesIncomplete.
// Otherwise an empty status becomes pending, a stale
// prerequisites_incomplete becomes ready, and anything else is kept.
func DeriveStatus(requested ActionStatus, prereqs []Prerequisite) ActionStatus {
	for _, p := range prereqs {
		if p.Incomplete() {
			return StatusPrerequisitesIncomplete
		}
	}
	switch requested {
	case "":
		return StatusPending
	case StatusPrerequisitesIncomplete:
		return StatusReady
	default:
		return requested
	}
}

// RefreshStatus re-derives Status after prerequisites change.
func (a *ExecutableAction) RefreshStatus() {
	a.Status = DeriveStatus(a.Status, a.Prerequisites)
}

// Channel returns the payload channel, or "" when no payload is set.
func (a ExecutableAction) Channel() Channel {
	if a.Action == nil {
		return ""
	}
	return a.Action.Channel()
}

// Executable reports whether the action can run now.
func (a ExecutableAction) Executable() bool {
	return a.Status == StatusReady || a.Status == StatusPending
}

// MarshalJSON writes the payload with its "type" discriminator.
func (a ExecutableAction) MarshalJSON() ([]byte, error) {
	type alias ExecutableAction
	payload, err := marshalPayload(a.Action)
	if err != nil {
		return nil, err
	}
	return json.Marshal(struct {
		alias
		Action json.RawMessage `json:"action"`
	}{alias: alias(a), Action: payload})
}

// UnmarshalJSON dispatches the payload on its "type" discriminator and
// derives the status from the decoded prerequisites.
func (a *ExecutableAction) UnmarshalJSON(data []byte) error {
	type alias ExecutableAction
	aux := struct {
		*alias
		Action json.RawMessage `json:"action"`
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	a.Action = nil
	if len(aux.Action) > 0 && !bytes.Equal(bytes.TrimSpace(aux.Action), []byte("null")) {
		payload, err := unmarshalPayload(aux.Action)
		if err != nil {
			return err
		}
		a.Action = payload
	}
	a.RefreshStatus()
	return nil
}

func marshalPayload(p ActionPayload) (json.RawMessage, error) {
	if p == nil {
		return json.RawMessage("null"), nil
	}
	body, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	channel, err := json.Marshal(p.Channel())
	if err != nil {
		return nil, err
	}
	fields["type"] = channel
	return json.Marshal(fields)
}

func unmarshalPayload(data []byte) (ActionPayload, error) {
	var probe struct {
		Type Channel `json:"type"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("invalid action payload: %w", err)
	}

	switch probe.Type {
	case ChannelEmail:
		var p EmailAction
		err := json.Unmarshal(data, &p)
		return p, err
	case ChannelPhone:
		var p PhoneAction
		err := json.Unmarshal(data, &p)
		return p, err
	case ChannelLinkedIn:
		var p LinkedInAction
		err := json.Unmarshal(data, &p)
		return p, err
	case ChannelWhatsApp:
		var p WhatsAppAction
		err := json.Unmarshal(data, &p)
		return p, err
	case "":
		return nil, fmt.Errorf("action payload is missing its type discriminator")
	default:
		return nil, fmt.Errorf("unknown action type %q", probe.Type)
	}
}

// ActionRecommendations is the full recommendation artifact for one deal.
type ActionRecommendations struct {
	RecommendationID string             `json:"recommendation_id,omitempty"`
	DealID           string             `json:"deal_id" validate:"required"`
	DealName         string             `json:"deal_name" validate:"required"`
	ContactName      string             `json:"contact_name,omitempty"`
	ContactEmail     string             `json:"contact_email,omitempty"`
	ExecutiveSummary string             `json:"executive_summary" validate:"min=100,noplaceholder"`
	KeyInsights      []string           `json:"key_insights" validate:"min=1,dive,noplaceholder"`
	P0Actions        []ExecutableAction `json:"p0_actions"`
	P1Actions        []ExecutableAction `json:"p1_actions"`
	P2Actions        []ExecutableAction `json:"p2_actions"`
	OverallStrategy  string             `json:"overall_strategy" validate:"min=100,noplaceholder"`
	GeneratedAt      time.Time          `json:"generated_at"`
	DataVersion      string             `json:"data_version,omitempty"`
	IsCached         bool               `json:"is_cached"`
}

// AllActions returns P0, then P1, then P2 actions.
func (r *ActionRecommendations) AllActions() []ExecutableAction {
	all := make([]ExecutableAction, 0, r.TotalActions())
	all = append(all, r.P0Actions...)
	all = append(all, r.P1Actions...)
	all = append(all, r.P2Actions...)
	return all
}

func (r *ActionRecommendations) TotalActions() int {
	return len(r.P0Actions) + len(r.P1Actions) + len(r.P2Actions)
}

// ReadyActions returns actions with no blocking prerequisite outstanding.
func (r *ActionRecommendations) ReadyActions() []ExecutableAction {
	var ready []ExecutableAction
	for _, a := range r.AllActions() {
		if a.Executable() {
			ready = append(ready, a)
		}
	}
	return ready
}
