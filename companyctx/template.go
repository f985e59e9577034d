// ABOUTME: Default company context template written on first use
// ABOUTME: Includes per-channel learning sections that feedback appends to
package companyctx

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const defaultTemplate = `# Company Context for Sales Engagement

**Version**: 1.0.0
**Created**: {{date}}
**Last Updated**: {{date}}
**Maintained By**: engage

Company-specific context used when generating engagement recommendations.
Edit freely; learnings from feedback are appended automatically.

## Company Overview

Describe the company, its mission and its main value propositions.

## Products & Services

List each product with its target market, key features and pricing.

## Communication Guidelines

### Tone of Voice
- Professional but approachable
- Lead with the customer's problem
- Back claims with data
- Consultative, never pushy

### Messaging Framework
1. Understand their challenge
2. Present the relevant solution
3. Provide proof
4. End with a clear call to action

## Sales Playbook

### Enterprise (1000+ employees)
- Multi-stakeholder, long cycle; lead with ROI, security and scale

### Mid-Market (100-1000 employees)
- Decision-maker focus; lead with efficiency and cost savings

### SMB (10-100 employees)
- Fast value demonstration; lead with ease of use

## Learnings & Instructions

### Email Engagement Learnings
- Keep cold outreach under 200 words
- Reference recent context in subject lines

### Call Strategy Learnings
- Prepare three to five discovery questions

### LinkedIn Outreach Learnings
- Personalize every connection request

### WhatsApp Communication Learnings
- Use only for established relationships

### General Learnings

---

_Updated automatically from recommendation feedback._
`

// WriteDefault creates the default template at path, with now as the
// created and updated date.
func WriteDefault(path string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create context dir: %w", err)
	}
	content := strings.ReplaceAll(defaultTemplate, "{{date}}", now.Format("2006-01-02"))
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("failed to write default company context: %w", err)
	}
	return nil
}
