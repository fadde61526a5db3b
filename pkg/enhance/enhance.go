// Package enhance is the optional gateway that asks an external model to
// replace synthesized payload values with realistic ones. It is strictly
// pass-through: whatever goes wrong, the caller gets back a usable
// payload, at worst the deterministic one it sent in, plus a typed reason
// so the fallback is observable instead of silent.
package enhance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cenkalti/backoff/v4"
)

// placeholderMarker flags values the deterministic stage left for the
// model to fill in; one surviving in a reply means the model did not do
// its job.
const placeholderMarker = "__PLACEHOLDER_"

// FallbackReason explains why an enhancement fell back to the
// deterministic payload.
type FallbackReason string

const (
	FallbackNone        FallbackReason = ""
	FallbackDisabled    FallbackReason = "disabled"
	FallbackCircuitOpen FallbackReason = "circuit_open"
	FallbackProvider    FallbackReason = "provider_error"
	FallbackBadJSON     FallbackReason = "invalid_json"
	FallbackStructure   FallbackReason = "structure_mismatch"
	FallbackPlaceholder FallbackReason = "placeholder_leak"
)

// ErrCircuitOpen short-circuits a call without performing I/O.
var ErrCircuitOpen = errors.New("enhance: circuit open")

// Context describes the operation a payload belongs to, so the model
// knows what kind of data to invent.
type Context struct {
	OperationID string
	Method      string
	Path        string
	Description string
}

// Options configures a Gateway.
type Options struct {
	Provider Provider
	// Threshold is the breaker's consecutive-failure trip point.
	Threshold int
	// MaxRetries bounds attempts per payload, breaker permitting.
	MaxRetries int
	Logger     *slog.Logger
}

// Gateway drives enhancement calls through a retry loop and a circuit
// breaker. A nil Gateway is valid and enhances nothing.
type Gateway struct {
	provider   Provider
	breaker    *Breaker
	maxRetries int
	logger     *slog.Logger
}

// NewGateway wires a gateway around the provider. A nil provider yields a
// gateway that always falls back.
func NewGateway(opts Options) *Gateway {
	retries := opts.MaxRetries
	if retries <= 0 {
		retries = 3
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{
		provider:   opts.Provider,
		breaker:    NewBreaker(opts.Threshold),
		maxRetries: retries,
		logger:     logger,
	}
}

// Breaker exposes the gateway's circuit breaker.
func (g *Gateway) Breaker() *Breaker { return g.breaker }

// Enhance asks the model for a more realistic rendition of the payload.
// The reply is accepted only when it keeps the payload's exact structure:
// identical key sets at every level, compatible scalar types, unchanged
// array lengths and no leftover placeholder markers. On any failure the
// original payload comes back with the reason; the error budget is the
// retry limit and the circuit breaker, never the caller.
func (g *Gateway) Enhance(ctx context.Context, payload any, ectx Context) (any, FallbackReason) {
	if g == nil || g.provider == nil {
		return payload, FallbackDisabled
	}
	if !g.breaker.CheckState() {
		g.logger.Warn("enhancement skipped",
			"reason", FallbackCircuitOpen,
			"operation", ectx.OperationID)
		return payload, FallbackCircuitOpen
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		g.logger.Warn("enhancement skipped",
			"reason", FallbackBadJSON,
			"operation", ectx.OperationID,
			"error", err)
		return payload, FallbackBadJSON
	}

	var enhanced any
	reason := FallbackProvider
	attempt := func() error {
		if !g.breaker.CheckState() {
			reason = FallbackCircuitOpen
			return backoff.Permanent(ErrCircuitOpen)
		}
		resp, err := g.provider.Complete(ctx, &Request{
			SystemPrompt: systemPrompt,
			UserPrompt:   userPrompt(string(raw), ectx),
		})
		if err != nil {
			g.breaker.RecordFailure()
			reason = FallbackProvider
			return err
		}

		candidate, err := parseReply(resp.Content)
		if err != nil {
			g.breaker.RecordFailure()
			reason = FallbackBadJSON
			return err
		}
		if err := checkPlaceholders(candidate); err != nil {
			g.breaker.RecordFailure()
			reason = FallbackPlaceholder
			return err
		}
		if err := checkStructure(payload, candidate, ""); err != nil {
			g.breaker.RecordFailure()
			reason = FallbackStructure
			return err
		}

		enhanced = candidate
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(g.maxRetries)), ctx)
	if err := backoff.Retry(attempt, policy); err != nil {
		g.logger.Warn("enhancement fell back",
			"reason", reason,
			"operation", ectx.OperationID,
			"error", err)
		return payload, reason
	}

	g.breaker.RecordSuccess()
	return enhanced, FallbackNone
}

// parseReply extracts the JSON document from a model reply, stripping a
// surrounding markdown fence when present.
func parseReply(content string) (any, error) {
	text := strings.TrimSpace(content)
	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if i := strings.LastIndex(text, "```"); i >= 0 {
			text = text[:i]
		}
		text = strings.TrimSpace(text)
	}
	var v any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, fmt.Errorf("reply is not JSON: %w", err)
	}
	return v, nil
}

// checkPlaceholders rejects replies still carrying internal markers.
func checkPlaceholders(v any) error {
	switch t := v.(type) {
	case string:
		if strings.Contains(t, placeholderMarker) {
			return fmt.Errorf("placeholder %q survived enhancement", t)
		}
	case map[string]any:
		for _, e := range t {
			if err := checkPlaceholders(e); err != nil {
				return err
			}
		}
	case []any:
		for _, e := range t {
			if err := checkPlaceholders(e); err != nil {
				return err
			}
		}
	}
	return nil
}
