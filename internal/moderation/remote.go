package moderation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"postflow/internal/observability"

	"github.com/gofiber/fiber/v2"
)

type remoteRequest struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// RemoteClassifier calls an external HTTP classifier:
// POST {url} with {"title","content"} answered by {"approved","reasons"}.
type RemoteClassifier struct {
	url     string
	timeout time.Duration
}

// NewRemoteClassifier returns a classifier bounded by timeout per call.
func NewRemoteClassifier(url string, timeout time.Duration) *RemoteClassifier {
	return &RemoteClassifier{url: url, timeout: timeout}
}

// Classify implements Classifier. Transport errors, timeouts, non-2xx answers
// and undecodable bodies all wrap ErrUnavailable.
func (rc *RemoteClassifier) Classify(ctx context.Context, title, content string) (Verdict, error) {
	defer observability.TrackClassifier("remote")()

	timeout := rc.timeout
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return Verdict{}, rc.unavailable(ctx.Err())
		}
		if timeout <= 0 || remaining < timeout {
			timeout = remaining
		}
	}
	if err := ctx.Err(); err != nil {
		return Verdict{}, rc.unavailable(err)
	}

	agent := fiber.Post(rc.url).
		JSON(remoteRequest{Title: title, Content: content}).
		Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if timeout > 0 {
		agent = agent.Timeout(timeout)
	}

	code, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return Verdict{}, rc.unavailable(errors.Join(errs...))
	}
	if code < 200 || code > 299 {
		return Verdict{}, rc.unavailable(fmt.Errorf("classifier responded %d", code))
	}

	var v Verdict
	if err := json.Unmarshal(body, &v); err != nil {
		return Verdict{}, rc.unavailable(fmt.Errorf("decode verdict: %w", err))
	}
	// A rejection must say why.
	if !v.Approved && len(v.Reasons) == 0 {
		v.Reasons = []string{"Rejected by content classifier"}
	}
	if v.Approved {
		v.Reasons = []string{}
	}

	outcome := "approved"
	if !v.Approved {
		outcome = "rejected"
	}
	observability.RecordClassifierOutcome("remote", outcome)
	return v, nil
}

func (rc *RemoteClassifier) unavailable(cause error) error {
	observability.RecordClassifierOutcome("remote", "unavailable")
	return fmt.Errorf("%w: %v", ErrUnavailable, cause)
}
