package stubllm

import (
	"context"
	"encoding/json"
	"strings"
)

// Phrases the simulator looks for to decide what kind of prompt it was given.
// The prompt builders in moderation and assistant contain these verbatim.
const (
	ModerationMarker = "VALID report"
	AuthorityMarker  = "authority should handle"
	ChatMarker       = "\nUser: "
)

// Client is a deterministic, no-network text generator. It sits last in the
// model chain so the service keeps answering while every remote model is down,
// and it is the only client when no API key is configured.
type Client struct{}

func NewClient() *Client { return &Client{} }

func (c *Client) SourceName() string { return "simulation" }

// Generate dispatches on the chat marker first: chat messages are free text
// and may mention the other markers, while the moderation and authority
// prompts quote user text so it never contains a raw newline.
func (c *Client) Generate(_ context.Context, prompt string) (string, error) {
	switch {
	case strings.Contains(prompt, ChatMarker):
		msg := prompt[strings.LastIndex(prompt, ChatMarker)+len(ChatMarker):]
		return chatReply(msg), nil
	case strings.Contains(prompt, ModerationMarker):
		b, err := json.Marshal(map[string]any{
			"is_valid": true,
			"reason":   "Simulated Acceptance: Valid civic issue detected.",
		})
		if err != nil {
			return "", err
		}
		return string(b), nil
	case strings.Contains(prompt, AuthorityMarker):
		return predictAuthority(prompt), nil
	}
	return "Simulation Mode: Verified.", nil
}

// predictAuthority only reads the report part of the prompt, which precedes
// the marker; the authority descriptions after it mention every keyword.
func predictAuthority(prompt string) string {
	lower := strings.ToLower(prompt[:strings.Index(prompt, AuthorityMarker)])
	switch {
	case strings.Contains(lower, "drain") || strings.Contains(lower, "road"):
		return "PWD"
	case strings.Contains(lower, "sewage") || strings.Contains(lower, "pipeline"):
		return "DJB"
	}
	return "MCD"
}

type cannedReply struct {
	keywords []string
	reply    string
}

var cannedReplies = []cannedReply{
	{
		keywords: []string{"hello", "hi", "hey"},
		reply:    "Namaste! I am the waterlogging response assistant. I can help you with **Safety Guidelines**, **Emergency Contacts**, or **Reporting Waterlogging**. How may I assist you today?",
	},
	{
		keywords: []string{"emergency", "number", "phone"},
		reply:    "Here are the **Emergency Contacts for Delhi**:\n\n*   **Police:** 112\n*   **Ambulance:** 102\n*   **Fire:** 101\n*   **NDRF Control:** 9711077372\n*   **Delhi Jal Board:** 1916\n\nPlease stay safe and avoid waterlogged areas!",
	},
	{
		keywords: []string{"report", "complain", "photo"},
		reply:    "To report an issue:\n\n1. Navigate to the **Reports** page.\n2. Click the **'New Report'** button.\n3. Upload a photo and add a brief description.\n\nThe report is checked automatically and routed to the correct authority (MCD, PWD, or DJB).",
	},
	{
		keywords: []string{"mcd", "pwd", "djb", "role"},
		reply:    "**Authority Responsibilities:**\n\n*   **MCD:** Handles internal colony drains, garbage clearing, and sanitation.\n*   **PWD:** Manages major arterial roads (width > 60ft) and flyovers.\n*   **DJB:** Responsible for sewerage and water supply pipelines.",
	},
	{
		keywords: []string{"safe", "precaution", "tip"},
		reply:    "**Safety Guidelines:**\n\n1. **Avoid Wading:** Open manholes may be invisible under water.\n2. **Electrical Safety:** Stay away from street poles and transformers.\n3. **Drive Slowly:** Hydroplaning can cause loss of control.\n4. **Keep Emergency Kit:** Flashlight, power bank, and first aid.",
	},
	{
		keywords: []string{"water", "logging", "rain"},
		reply:    "Rainfall is being monitored across the city. High-risk zones currently include Minto Bridge and Okhla. Please check the **Live Map** for the latest alerts.",
	},
}

const defaultChatReply = "I can assist you with **Reporting**, **Safety Tips**, or **Emergency Contacts**. Please ask me specifically about these topics.\n\n*(Note: I am running in Offline Demo Mode)*"

func chatReply(message string) string {
	lower := strings.ToLower(message)
	for _, c := range cannedReplies {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.reply
			}
		}
	}
	return defaultChatReply
}
