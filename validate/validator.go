// ABOUTME: Hard validation of generated actions before they may execute unattended
// ABOUTME: Struct tags plus custom rules for placeholders, phones, LinkedIn profiles and subjects
package validate

import (
	"errors"
	"fmt"
	"net/url"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/harperreed/engage/models"
)

// Rule names reported in violations. Custom tags map to these.
const (
	RulePlaceholder = "placeholder"
	RuleStatus      = "status"
	RuleRequired    = "required"
)

// GenericSubjects are email subjects too vague to send.
var GenericSubjects = []string{"hello", "hi", "follow up", "checking in"}

var (
	phoneCleaner = regexp.MustCompile(`[\s\-\(\)\.]+`)
	phonePattern = regexp.MustCompile(`^\+?\d{8,15}$`)
)

// actionValidate is shared by every call; validator.Validate caches struct
// metadata and is safe for concurrent use once configured.
var actionValidate *validator.Validate

func init() {
	actionValidate = validator.New(validator.WithRequiredStructEnabled())

	actionValidate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})

	_ = actionValidate.RegisterValidation("noplaceholder", validateNoPlaceholder)
	_ = actionValidate.RegisterValidation("phone", validatePhone)
	_ = actionValidate.RegisterValidation("linkedin_profile", validateLinkedInProfile)
	_ = actionValidate.RegisterValidation("specific_subject", validateSpecificSubject)
	actionValidate.RegisterStructValidation(linkedInCompanions, models.LinkedInAction{})
}

func validateNoPlaceholder(fl validator.FieldLevel) bool {
	return !HasPlaceholder(fl.Field().String())
}

// ValidPhone reports whether s has 8 to 15 digits, with an optional
// leading +, once spaces, dashes, dots and parentheses are removed.
func ValidPhone(s string) bool {
	return phonePattern.MatchString(phoneCleaner.ReplaceAllString(s, ""))
}

func validatePhone(fl validator.FieldLevel) bool {
	return ValidPhone(fl.Field().String())
}

// ValidLinkedInProfile reports whether raw points at a personal profile,
// i.e. https://<sub>.linkedin.com/in/<handle>.
func ValidLinkedInProfile(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if host != "linkedin.com" && !strings.HasSuffix(host, ".linkedin.com") {
		return false
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	return len(parts) >= 2 && parts[0] == "in" && parts[1] != ""
}

func validateLinkedInProfile(fl validator.FieldLevel) bool {
	return ValidLinkedInProfile(fl.Field().String())
}

func validateSpecificSubject(fl validator.FieldLevel) bool {
	subject := strings.ToLower(strings.TrimSpace(fl.Field().String()))
	for _, generic := range GenericSubjects {
		if subject == generic {
			return false
		}
	}
	return true
}

func linkedInCompanions(sl validator.StructLevel) {
	li := sl.Current().Interface().(models.LinkedInAction)
	switch li.ActionType {
	case models.LinkedInInMail:
		if strings.TrimSpace(li.Subject) == "" {
			sl.ReportError(li.Subject, "subject", "Subject", "inmail_subject", "")
		}
	case models.LinkedInConnectionRequest:
		if strings.TrimSpace(li.ConnectionNote) == "" {
			sl.ReportError(li.ConnectionNote, "connection_note", "ConnectionNote", "connection_note", "")
		}
	}
}

// Violation is one broken rule.
type Violation struct {
	Field   string `json:"field"`
	Rule    string `json:"rule"`
	Message string `json:"message"`
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// Error lists every violation found in one object.
type Error struct {
	Violations []Violation
}

func (e *Error) Error() string {
	if len(e.Violations) == 1 {
		return "validation failed: " + e.Violations[0].String()
	}
	msgs := make([]string, len(e.Violations))
	for i, v := range e.Violations {
		msgs[i] = v.String()
	}
	return fmt.Sprintf("validation failed (%d violations): %s", len(e.Violations), strings.Join(msgs, "; "))
}

// Has reports whether any violation broke rule.
func (e *Error) Has(rule string) bool {
	for _, v := range e.Violations {
		if v.Rule == rule {
			return true
		}
	}
	return false
}

// Action validates one ExecutableAction including its channel payload.
func Action(a *models.ExecutableAction) error {
	var violations []Violation
	collectAction(&violations, "", a)
	return asError(violations)
}

// Recommendations validates the artifact and every action in it.
func Recommendations(r *models.ActionRecommendations) error {
	var violations []Violation
	collectStruct(&violations, "", r)

	groups := []struct {
		field   string
		actions []models.ExecutableAction
	}{
		{"p0_actions", r.P0Actions},
		{"p1_actions", r.P1Actions},
		{"p2_actions", r.P2Actions},
	}
	for _, g := range groups {
		for i := range g.actions {
			collectAction(&violations, fmt.Sprintf("%s[%d].", g.field, i), &g.actions[i])
		}
	}
	return asError(violations)
}

func collectAction(violations *[]Violation, prefix string, a *models.ExecutableAction) {
	collectStruct(violations, prefix, a)

	switch p := a.Action.(type) {
	case nil:
		*violations = append(*violations, Violation{Field: prefix + "action", Rule: RuleRequired, Message: "action payload is required"})
	case models.EmailAction, models.PhoneAction, models.LinkedInAction, models.WhatsAppAction:
		collectStruct(violations, prefix+"action.", p)
	default:
		*violations = append(*violations, Violation{Field: prefix + "action", Rule: "type", Message: fmt.Sprintf("unsupported payload %T", p)})
	}

	if want := models.DeriveStatus(a.Status, a.Prerequisites); want != a.Status {
		*violations = append(*violations, Violation{
			Field:   prefix + "status",
			Rule:    RuleStatus,
			Message: fmt.Sprintf("status %q contradicts prerequisites (expected %q)", a.Status, want),
		})
	}
}

func collectStruct(violations *[]Violation, prefix string, v any) {
	err := actionValidate.Struct(v)
	if err == nil {
		return
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		*violations = append(*violations, Violation{Field: strings.TrimSuffix(prefix, "."), Rule: "invalid", Message: err.Error()})
		return
	}
	for _, fe := range verrs {
		*violations = append(*violations, translate(prefix, fe))
	}
}

// translate turns a validator FieldError into a Violation with a field
// path relative to the validated root.
func translate(prefix string, fe validator.FieldError) Violation {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	field = prefix + field

	value := fmt.Sprintf("%v", fe.Value())
	switch fe.Tag() {
	case "noplaceholder":
		return Violation{Field: field, Rule: RulePlaceholder, Message: fmt.Sprintf("contains placeholder %q", FindPlaceholder(value))}
	case "specific_subject":
		return Violation{Field: field, Rule: fe.Tag(), Message: fmt.Sprintf("subject line too generic: %q", value)}
	case "phone":
		return Violation{Field: field, Rule: fe.Tag(), Message: fmt.Sprintf("invalid phone number format: %q", value)}
	case "linkedin_profile":
		return Violation{Field: field, Rule: fe.Tag(), Message: fmt.Sprintf("not a LinkedIn profile URL: %q", value)}
	case "inmail_subject":
		return Violation{Field: field, Rule: fe.Tag(), Message: "InMail requires a subject line"}
	case "connection_note":
		return Violation{Field: field, Rule: fe.Tag(), Message: "connection request requires a note"}
	case "required":
		return Violation{Field: field, Rule: RuleRequired, Message: "is required"}
	case "min", "max":
		return Violation{Field: field, Rule: fe.Tag(), Message: fmt.Sprintf("violates %s=%s", fe.Tag(), fe.Param())}
	case "oneof":
		return Violation{Field: field, Rule: fe.Tag(), Message: fmt.Sprintf("%q is not one of [%s]", value, fe.Param())}
	default:
		return Violation{Field: field, Rule: fe.Tag(), Message: fmt.Sprintf("failed %s check", fe.Tag())}
	}
}

func asError(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	return &Error{Violations: violations}
}

// Struct validates any struct carrying validate tags with the shared rule
// set, e.g. feedback entries arriving over MCP.
func Struct(v any) error {
	var violations []Violation
	collectStruct(&violations, "", v)
	return asError(violations)
}
