package llm

import (
	"context"
	"errors"
	"fmt"

	"waterlog/metrics"

	"github.com/apex/log"
)

// Client abstracts a text-generation provider.
// Implementations must be concurrency-safe; one client is shared by all requests.
type Client interface {
	// Generate returns the generated text for a single prompt.
	Generate(ctx context.Context, prompt string) (string, error)
	// SourceName returns a short provider label used in logs and metrics (e.g. "gemini/gemini-1.5-flash").
	SourceName() string
}

// ErrUnavailable is returned when every client in a chain failed.
var ErrUnavailable = errors.New("text generation unavailable")

// Chain tries an ordered list of clients and returns the first successful answer.
// Put a deterministic offline client last to make the chain always answer.
type Chain struct {
	clients []Client
}

func NewChain(clients ...Client) *Chain {
	var cs []Client
	for _, c := range clients {
		if c != nil {
			cs = append(cs, c)
		}
	}
	return &Chain{clients: cs}
}

// Generate tries each client in order. Failures are logged and do not stop the
// iteration; a cancelled context does.
func (c *Chain) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	for _, client := range c.clients {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		text, err := client.Generate(ctx, prompt)
		if err == nil {
			metrics.ModelAttemptsTotal.WithLabelValues(client.SourceName(), "ok").Inc()
			return text, nil
		}
		metrics.ModelAttemptsTotal.WithLabelValues(client.SourceName(), "error").Inc()
		log.Warnf("Model %s failed: %v", client.SourceName(), err)
		lastErr = err
	}
	if lastErr == nil {
		return "", fmt.Errorf("%w: no clients configured", ErrUnavailable)
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}

func (c *Chain) SourceName() string {
	return "chain"
}

// Sources lists the configured clients in the order they are tried.
func (c *Chain) Sources() []string {
	names := make([]string, 0, len(c.clients))
	for _, client := range c.clients {
		names = append(names, client.SourceName())
	}
	return names
}
