// ABOUTME: Three-tier extraction of ActionRecommendations from free-form generator output
// ABOUTME: Tries direct JSON, fenced code blocks, then balanced-brace candidates; each decoded then validated
package parser

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/harperreed/engage/metrics"
	"github.com/harperreed/engage/models"
	"github.com/harperreed/engage/validate"
)

// Tier identifies which strategy produced a result.
type Tier int

const (
	TierNone Tier = iota
	TierDirect
	TierFenced
	TierBestEffort
)

func (t Tier) String() string {
	switch t {
	case TierDirect:
		return "direct"
	case TierFenced:
		return "fenced"
	case TierBestEffort:
		return "best_effort"
	default:
		return "none"
	}
}

const (
	DefaultMaxCandidates = 5
	DefaultSnippetLength = 500
)

// ErrNoCandidates is recorded when a tier finds nothing to try.
var ErrNoCandidates = errors.New("no candidates found")

// errWrongShape marks a best-effort candidate that decodes but is not a
// recommendations object.
var errWrongShape = errors.New("candidate has neither deal_id nor p0_actions")

// Hints fill fields the generator may leave out. They never override
// values present in the response.
type Hints struct {
	DealID      string
	DataVersion string
}

// Attempt records why one candidate was rejected.
type Attempt struct {
	Tier      Tier
	Candidate int
	Err       error
}

func (a Attempt) String() string {
	if a.Candidate > 0 {
		return fmt.Sprintf("%s #%d: %v", a.Tier, a.Candidate, a.Err)
	}
	return fmt.Sprintf("%s: %v", a.Tier, a.Err)
}

// Outcome is the result of Parse. On success Data is validated and
// Warnings holds the soft audit. On failure RawSnippet and DumpPath
// point at the rejected response.
type Outcome struct {
	Success    bool
	TierUsed   Tier
	Data       *models.ActionRecommendations
	Warnings   []validate.Warning
	Attempts   []Attempt
	RawSnippet string
	DumpPath   string
}

// TotalFailureError is returned when every tier fails.
type TotalFailureError struct {
	Attempts []Attempt
	Snippet  string
	DumpPath string
}

func (e *TotalFailureError) Error() string {
	msg := fmt.Sprintf("all parsing tiers failed after %d attempts", len(e.Attempts))
	if n := len(e.Attempts); n > 0 {
		msg += "; last: " + e.Attempts[n-1].String()
	}
	if e.DumpPath != "" {
		msg += " (raw response saved to " + e.DumpPath + ")"
	}
	return msg
}

// Options configure a Parser. Zero values fall back to defaults.
type Options struct {
	MaxCandidates int
	SnippetLength int
	Dumper        Dumper
	Logger        *slog.Logger
}

// Parser holds no mutable state and is safe for concurrent use.
type Parser struct {
	maxCandidates int
	snippetLength int
	dumper        Dumper
	logger        *slog.Logger
}

func New(opts Options) *Parser {
	p := &Parser{
		maxCandidates: opts.MaxCandidates,
		snippetLength: opts.SnippetLength,
		dumper:        opts.Dumper,
		logger:        opts.Logger,
	}
	if p.maxCandidates <= 0 {
		p.maxCandidates = DefaultMaxCandidates
	}
	if p.snippetLength <= 0 {
		p.snippetLength = DefaultSnippetLength
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p
}

// Parse runs the tiers in order and returns the first validated result.
// When all tiers fail the outcome is still returned alongside a
// *TotalFailureError.
func (p *Parser) Parse(response string, hints Hints) (*Outcome, error) {
	p.logger.Info("parsing response", "chars", len(response), "deal_id", hints.DealID)
	out := &Outcome{}

	tiers := []struct {
		tier       Tier
		candidates func(string) []string
	}{
		{TierDirect, func(s string) []string { return []string{strings.TrimSpace(s)} }},
		{TierFenced, fencedBlocks},
		{TierBestEffort, p.bestEffortCandidates},
	}

	for _, t := range tiers {
		candidates := t.candidates(response)
		if len(candidates) == 0 || (len(candidates) == 1 && candidates[0] == "") {
			out.Attempts = append(out.Attempts, Attempt{Tier: t.tier, Err: ErrNoCandidates})
			continue
		}

		for i, candidate := range candidates {
			recs, err := p.decode(t.tier, candidate, hints)
			if err != nil {
				out.Attempts = append(out.Attempts, Attempt{Tier: t.tier, Candidate: i + 1, Err: err})
				metrics.ParseAttempts.WithLabelValues(t.tier.String(), attemptResult(err)).Inc()
				p.logger.Debug("parse candidate rejected", "tier", t.tier.String(), "candidate", i+1, "error", err)
				continue
			}

			metrics.ParseAttempts.WithLabelValues(t.tier.String(), "success").Inc()
			out.Success = true
			out.TierUsed = t.tier
			out.Data = recs
			out.Warnings = validate.Audit(recs)

			if t.tier == TierBestEffort {
				out.Warnings = append(out.Warnings, validate.Warning{
					Field:   "response",
					Message: "recovered by best-effort extraction; data may be incomplete",
				})
				p.logger.Warn("best-effort extraction succeeded, data may be incomplete",
					"candidate", i+1, "of", len(candidates))
			} else {
				p.logger.Info("parsed response", "tier", t.tier.String(), "candidate", i+1)
			}
			return out, nil
		}
	}

	metrics.ParseFailures.Inc()
	out.RawSnippet = truncateRunes(response, p.snippetLength)
	if p.dumper != nil {
		path, err := p.dumper.Dump(response)
		if err != nil {
			p.logger.Warn("could not save raw response", "error", err)
		} else {
			out.DumpPath = path
		}
	}
	p.logger.Error("all parsing tiers failed", "attempts", len(out.Attempts), "dump", out.DumpPath)

	return out, &TotalFailureError{Attempts: out.Attempts, Snippet: out.RawSnippet, DumpPath: out.DumpPath}
}

func (p *Parser) bestEffortCandidates(response string) []string {
	candidates := jsonObjects(response)
	if len(candidates) > p.maxCandidates {
		candidates = candidates[:p.maxCandidates]
	}
	return candidates
}

// decode unmarshals and validates one candidate.
func (p *Parser) decode(tier Tier, candidate string, hints Hints) (*models.ActionRecommendations, error) {
	if tier == TierBestEffort {
		var probe map[string]json.RawMessage
		if err := json.Unmarshal([]byte(candidate), &probe); err != nil {
			return nil, fmt.Errorf("decode: %w", err)
		}
		_, hasDeal := probe["deal_id"]
		_, hasActions := probe["p0_actions"]
		if !hasDeal && !hasActions {
			return nil, errWrongShape
		}
	}

	var recs models.ActionRecommendations
	if err := json.Unmarshal([]byte(candidate), &recs); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if recs.DealID == "" {
		recs.DealID = hints.DealID
	}
	if recs.DataVersion == "" {
		recs.DataVersion = hints.DataVersion
	}
	if err := validate.Recommendations(&recs); err != nil {
		return nil, err
	}
	return &recs, nil
}

func attemptResult(err error) string {
	var verr *validate.Error
	if errors.As(err, &verr) {
		return "invalid"
	}
	return "decode_error"
}

func truncateRunes(s string, n int) string {
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}
