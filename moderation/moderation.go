package moderation

import (
	"context"
	"fmt"
	"time"

	"waterlog/llm"
	"waterlog/metrics"
	"waterlog/models"
	"waterlog/parser"

	"github.com/apex/log"
)

const promptTemplate = `
You are a strict Content Moderator for a government civic grievance portal.
Analyze the following report:
Title: %q
Description: %q

Determine if this is a VALID report about a civic issue (waterlogging, roads, sanitation, traffic, infrastructure, etc.).
REJECT if:
- It is spam (gibberish, random characters, "test", "hello").
- It is abusive, offensive, or uses profanity.
- It is clearly irrelevant (e.g. promoting a product, personal diary entry, asking for a date).
- It contains absolutely no actionable information.

Return ONLY a JSON object: { "is_valid": boolean, "reason": "short explanation if rejected" }
`

// BuildPrompt embeds the untrusted title and description into the moderation
// instructions. Both fields are quoted so they cannot close the surrounding text.
func BuildPrompt(title, description string) string {
	return fmt.Sprintf(promptTemplate, title, description)
}

// Moderator classifies report text as a legitimate civic report or noise.
type Moderator struct {
	client  llm.Client
	timeout time.Duration
}

// NewModerator creates a moderator over a text-generation client, usually an
// llm.Chain. A zero timeout leaves the call bounded only by the caller's context.
func NewModerator(client llm.Client, timeout time.Duration) *Moderator {
	return &Moderator{client: client, timeout: timeout}
}

// Moderate returns the verdict for a title and description. It fails open:
// when the text generator is unreachable or answers with something that is
// not a verdict, the report is accepted.
func (m *Moderator) Moderate(ctx context.Context, title, description string) models.Verdict {
	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	text, err := m.client.Generate(ctx, BuildPrompt(title, description))
	if err != nil {
		log.Errorf("Content validation unavailable, accepting report %q: %v", title, err)
		metrics.ModerationVerdictsTotal.WithLabelValues("fail_open").Inc()
		return models.Verdict{Accepted: true}
	}

	result, err := parser.ParseVerdict(text)
	if err != nil {
		log.Errorf("Content validation returned an unreadable verdict, accepting report %q: %v", title, err)
		metrics.ModerationVerdictsTotal.WithLabelValues("fail_open").Inc()
		return models.Verdict{Accepted: true}
	}

	if *result.IsValid {
		metrics.ModerationVerdictsTotal.WithLabelValues("accepted").Inc()
		return models.Verdict{Accepted: true}
	}
	metrics.ModerationVerdictsTotal.WithLabelValues("rejected").Inc()
	return models.Verdict{Accepted: false, Reason: result.Reason}
}
