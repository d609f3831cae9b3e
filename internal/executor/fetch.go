package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/raulshma/tech-ticker-sub007/internal/domain"
)

// fetchPage performs one GET with the command's identity and classifies
// the response. A nil error means a 2xx page without a challenge.
func (e *Executor) fetchPage(ctx context.Context, cmd *domain.ScrapeCommand) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cmd.URL, http.NoBody)
	if err != nil {
		return nil, newScrapeError(domain.FailureStructural, CodeInvalidCommand, 0, "build request", err)
	}

	for name, value := range cmd.Profile.Headers {
		req.Header.Set(name, value)
	}
	if cmd.Profile.UserAgent != "" {
		req.Header.Set("User-Agent", cmd.Profile.UserAgent)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "text/html,application/xhtml+xml")
	}

	if e.metrics != nil {
		e.metrics.ExecutorAttempts.Inc()
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, classifyTransport(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, e.cfg.MaxBodyBytes))
	if err != nil {
		return nil, classifyTransport(fmt.Errorf("read response body: %w", err))
	}

	if se := e.classifyStatus(resp.StatusCode, body); se != nil {
		return nil, se
	}
	return body, nil
}
