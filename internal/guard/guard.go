// Package guard neutralizes injection and markup payloads in caller
// supplied text. Sanitizers are pure apart from a logging side effect:
// malicious input is stripped, never rejected, so callers always get a safe
// string back and the attempt is captured as an audit event.
package guard

import (
	"context"
	"log/slog"
	"regexp"

	"caseguard/internal/audit"
	"caseguard/internal/platform/metrics"
)

// sqlPatterns cover the keyword and control-sequence list stripped from
// free-form input. Substitution repeats until a fixpoint so re-assembled
// payloads ("SELSELECTECT") do not survive a single pass.
var sqlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(SELECT|INSERT|UPDATE|DELETE|DROP|CREATE|ALTER|EXECUTE|EXEC)\b`),
	regexp.MustCompile(`--|;|/\*|\*/`),
	regexp.MustCompile(`(?i)\b(xp|sp)_`),
}

var htmlPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?is)<script[^>]*>.*?</script>`),
	regexp.MustCompile(`(?i)\son\w+\s*=\s*("[^"]*"|'[^']*'|[^\s>]+)`),
	regexp.MustCompile(`(?i)javascript\s*:`),
	regexp.MustCompile(`(?i)data\s*:\s*text/html`),
}

// sampleLimit bounds how much offending input lands in the audit trail.
const sampleLimit = 100

// AuditRecorder is the slice of the audit recorder the guard needs.
type AuditRecorder interface {
	Record(ctx context.Context, eventType audit.EventType, opts ...audit.RecordOption) (audit.Event, error)
}

type Guard struct {
	recorder AuditRecorder
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Guard)

func WithLogger(logger *slog.Logger) Option {
	return func(g *Guard) { g.logger = logger }
}

func WithAuditRecorder(recorder AuditRecorder) Option {
	return func(g *Guard) { g.recorder = recorder }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(g *Guard) { g.metrics = m }
}

func New(opts ...Option) *Guard {
	g := &Guard{logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// SanitizeInput strips SQL keywords and control sequences from text. Any
// match records exactly one sql_injection_attempt event carrying a
// truncated sample of the original input.
func (g *Guard) SanitizeInput(ctx context.Context, text string) string {
	cleaned, matched := strip(text, sqlPatterns)
	if matched {
		g.flag(ctx, audit.EventSQLInjectionAttempt, "sql", text)
	}
	return cleaned
}

// SanitizeHTML strips script blocks, inline event handlers, and executable
// URI schemes from markup. Any match records exactly one xss_attempt event.
func (g *Guard) SanitizeHTML(ctx context.Context, markup string) string {
	cleaned, matched := strip(markup, htmlPatterns)
	if matched {
		g.flag(ctx, audit.EventXSSAttempt, "html", markup)
	}
	return cleaned
}

func strip(text string, patterns []*regexp.Regexp) (string, bool) {
	matched := false
	for {
		next := text
		for _, p := range patterns {
			next = p.ReplaceAllString(next, "")
		}
		if next == text {
			return text, matched
		}
		matched = true
		text = next
	}
}

func (g *Guard) flag(ctx context.Context, eventType audit.EventType, kind, input string) {
	if g.metrics != nil {
		g.metrics.SanitizerHits.WithLabelValues(kind).Inc()
	}

	sample := truncate(input, sampleLimit)
	g.logger.WarnContext(ctx, "malicious input neutralized",
		"sanitizer", kind, "sample", sample, "log_type", "audit")

	if g.recorder == nil {
		return
	}
	_, _ = g.recorder.Record(ctx, eventType,
		audit.FromContext(ctx),
		audit.WithDetails(map[string]any{
			"sanitizer": kind,
			"sample":    sample,
		}),
	)
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
