package ollama

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

const warmUpTimeout = 30 * time.Second

// EnsureReady makes model usable before the first analysis: it fails when
// Ollama is not reachable, pulls the model when it is not installed and then
// loads it with a one-word chat. Progress is written to w. A failed warm-up
// is reported but not returned.
func EnsureReady(ctx context.Context, c *Client, model string, w io.Writer) error {
	names, err := c.Models(ctx)
	if errors.Is(err, ErrUnreachable) {
		return fmt.Errorf("Ollama is not running at %s. Start it with: ollama serve", c.baseURL)
	}
	if err != nil {
		return fmt.Errorf("listing Ollama models: %w", err)
	}

	if !Installed(names, model) {
		fmt.Fprintf(w, "model %s: pulling...\n", model)
		err := c.Pull(ctx, model, func(p PullProgress) {
			if p.Total > 0 {
				fmt.Fprintf(w, "  %s %.0f%%\n", p.Status, float64(p.Completed)/float64(p.Total)*100)
				return
			}
			fmt.Fprintf(w, "  %s\n", p.Status)
		})
		if err != nil {
			return err
		}
	}
	fmt.Fprintf(w, "model %s: ready\n", model)

	warmCtx, cancel := context.WithTimeout(ctx, warmUpTimeout)
	defer cancel()
	if _, err := c.Chat(warmCtx, model, []Message{{Role: "user", Content: "ping"}}, nil); err != nil {
		fmt.Fprintf(w, "model %s: warm-up failed, continuing: %v\n", model, err)
		return nil
	}
	fmt.Fprintf(w, "model %s: warm\n", model)
	return nil
}
