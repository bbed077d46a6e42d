package assistant

import (
	"context"
	"fmt"
	"strings"

	"waterlog/llm"
	"waterlog/models"
)

// Authorities are the departments reports can be routed to, matched in this
// order against model replies.
var Authorities = []string{"MCD", "PWD", "DJB", "NDMC", "Cantonment Board"}

const authorityPrompt = `You are a Delhi Government dispatcher. Based on this report: %q at location %q, identify which authority should handle it:
- MCD (Municipal Corporation of Delhi): For local colony roads, internal drains, and garbage related flooding.
- PWD (Public Works Department): For major arterial roads, flyovers, and large storm water drains.
- DJB (Delhi Jal Board): For sewage overflow, water pipeline bursts.
- NDMC (New Delhi Municipal Council): For Lutyens Delhi and Central Delhi areas.
- Cantonment Board: For military/cantonment areas.

Provide ONLY the Name of the authority (one of: MCD, PWD, DJB, NDMC, Cantonment Board).`

const chatSystemPrompt = `You are the Delhi Waterlogging Monitoring & Response System Assistant.
Provide helpful, calm, and authoritative guidance to citizens.
Capabilities:
- Guide users through creating a report (provide info about title, severity, location).
- Provide emergency contacts (Fire: 101, Police: 100/112, Ambulance: 102).
- Give safety tips (Electrical safety, health, traffic).
- Explain authority roles (MCD: Local drains, PWD: Major roads, DJB: Water supply/sewerage).
Strict Guardrails:
- Informational only.
- No medical or legal diagnosis.
- If someone is in immediate danger, tell them to call 112 or 101.
Current context: Waterlogging in Delhi.`

// maxHistoryTurns bounds how much prior conversation goes into a chat prompt.
const maxHistoryTurns = 10

// ChatTurn is one prior message of a chat.
type ChatTurn struct {
	Role string `json:"role"`
	Text string `json:"text"`
}

// Assistant answers dispatcher and citizen questions with a text generator.
type Assistant struct {
	client llm.Client
}

func New(client llm.Client) *Assistant {
	return &Assistant{client: client}
}

// NormalizeAuthority returns the first known authority named in reply, or the
// trimmed reply when none is.
func NormalizeAuthority(reply string) string {
	reply = strings.TrimSpace(reply)
	upper := strings.ToUpper(reply)
	for _, a := range Authorities {
		if strings.Contains(upper, strings.ToUpper(a)) {
			return a
		}
	}
	return reply
}

// PredictAuthority suggests which department should handle a report.
func (a *Assistant) PredictAuthority(ctx context.Context, description, location string) (string, error) {
	text, err := a.client.Generate(ctx, fmt.Sprintf(authorityPrompt, description, location))
	if err != nil {
		return "", fmt.Errorf("authority prediction failed: %w", err)
	}
	return NormalizeAuthority(text), nil
}

// BuildChatPrompt lays out the system prompt, recent history and the new
// message as a plain transcript ending in the user's message.
func BuildChatPrompt(message string, history []ChatTurn) string {
	var b strings.Builder
	b.WriteString(chatSystemPrompt)
	b.WriteString("\n")
	if len(history) > maxHistoryTurns {
		history = history[len(history)-maxHistoryTurns:]
	}
	for _, turn := range history {
		role := "User"
		if turn.Role == "model" || turn.Role == "assistant" {
			role = "Assistant"
		}
		fmt.Fprintf(&b, "\n%s: %s", role, strings.TrimSpace(turn.Text))
	}
	b.WriteString("\nUser: ")
	b.WriteString(strings.TrimSpace(message))
	return b.String()
}

func (a *Assistant) Chat(ctx context.Context, message string, history []ChatTurn) (string, error) {
	text, err := a.client.Generate(ctx, BuildChatPrompt(message, history))
	if err != nil {
		return "", fmt.Errorf("chat failed: %w", err)
	}
	return strings.TrimSpace(text), nil
}

// RainfallWarnings is the advisory list shown on the dashboard.
func RainfallWarnings() []models.RainfallWarning {
	return []models.RainfallWarning{
		{Date: "Tomorrow", Risk: "High", Areas: []string{"North Delhi", "Central Delhi", "Minto Road"}, Advice: "Avoid low-lying areas and underpasses."},
		{Date: "Day after Tomorrow", Risk: "Medium", Areas: []string{"South Delhi", "Dwarka"}, Advice: "Expect slow traffic."},
	}
}
