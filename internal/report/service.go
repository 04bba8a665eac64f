// Package report provides read-only aggregation over the in-memory event
// buffer: trails by resource, the security-event feed, per-actor activity,
// and the global security report. It only sees what the ring still holds;
// long-retention queries belong to the durable store, not here.
package report

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/mssola/useragent"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"caseguard/internal/audit"
	dErrors "caseguard/pkg/domain-errors"
)

const (
	// DefaultLimit applies when callers pass a zero limit.
	DefaultLimit = 100
	// DefaultLookbackHours applies when callers pass zero hours.
	DefaultLookbackHours = 24

	topN = 10
)

// EventSource is the reporting read path into the buffered events.
type EventSource interface {
	Snapshot() []audit.Event
}

// Activity summarizes one actor's recent events.
type Activity struct {
	TotalEvents  int                     `json:"total_events"`
	EventsByType map[audit.EventType]int `json:"events_by_type"`
	RecentEvents []audit.Event           `json:"recent_events"`
}

// Count is a keyed tally used for top-offender lists.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// AgentCount tallies events per user-agent family.
type AgentCount struct {
	Agent string `json:"agent"`
	Bot   bool   `json:"bot"`
	Count int    `json:"count"`
}

// Report is the global aggregation across the whole buffer.
type Report struct {
	GeneratedAt       time.Time               `json:"generated_at"`
	TotalEvents       int                     `json:"total_events"`
	SecurityEvents    int                     `json:"security_events"`
	TopActors         []Count                 `json:"top_actors"`
	TopIPs            []Count                 `json:"top_ips"`
	TopUserAgents     []AgentCount            `json:"top_user_agents"`
	EventDistribution map[audit.EventType]int `json:"event_distribution"`
}

type Service struct {
	events EventSource
	logger *slog.Logger
	tracer trace.Tracer
	now    func() time.Time
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithClock injects a time source for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func New(events EventSource, opts ...Option) (*Service, error) {
	if events == nil {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "event source is required")
	}

	svc := &Service{
		events: events,
		logger: slog.Default(),
		tracer: otel.Tracer("caseguard/report"),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc, nil
}

// AuditTrail returns buffered events referencing the given resource, newest
// first. An event matches when its resource field equals resourceType and
// its details reference the resource id. An empty resourceID matches every
// event of that resource type.
func (s *Service) AuditTrail(resourceType, resourceID string, limit int) ([]audit.Event, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}
	if resourceType == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "resource type cannot be empty")
	}

	var matched []audit.Event
	for _, e := range s.events.Snapshot() {
		if e.Resource != resourceType {
			continue
		}
		if resourceID != "" && !referencesResource(e, resourceID) {
			continue
		}
		matched = append(matched, e)
	}
	return newestFirst(matched, limit), nil
}

// SecurityEvents returns the security violation subset, newest first.
func (s *Service) SecurityEvents(limit int) ([]audit.Event, error) {
	limit, err := normalizeLimit(limit)
	if err != nil {
		return nil, err
	}

	var matched []audit.Event
	for _, e := range s.events.Snapshot() {
		if e.Type.IsSecurity() {
			matched = append(matched, e)
		}
	}
	return newestFirst(matched, limit), nil
}

// UserActivity summarizes one actor's events within the lookback window.
func (s *Service) UserActivity(actorID string, hours int) (*Activity, error) {
	if actorID == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "actor id cannot be empty")
	}
	if hours < 0 {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "hours cannot be negative")
	}
	if hours == 0 {
		hours = DefaultLookbackHours
	}

	since := s.now().Add(-time.Duration(hours) * time.Hour)
	activity := &Activity{EventsByType: make(map[audit.EventType]int)}
	for _, e := range s.events.Snapshot() {
		if e.ActorID != actorID || e.Timestamp.Before(since) {
			continue
		}
		activity.TotalEvents++
		activity.EventsByType[e.Type]++
		activity.RecentEvents = append(activity.RecentEvents, e)
	}
	activity.RecentEvents = newestFirst(activity.RecentEvents, DefaultLimit)
	return activity, nil
}

// SecurityReport aggregates top offending actors, addresses, and user-agent
// families plus the full event-type distribution across the buffer.
func (s *Service) SecurityReport(ctx context.Context) *Report {
	_, span := s.tracer.Start(ctx, "report.security_report")
	defer span.End()

	events := s.events.Snapshot()
	rep := &Report{
		GeneratedAt:       s.now().UTC(),
		TotalEvents:       len(events),
		EventDistribution: make(map[audit.EventType]int),
	}

	actors := make(map[string]int)
	ips := make(map[string]int)
	agents := make(map[string]agentTally)

	for _, e := range events {
		rep.EventDistribution[e.Type]++
		if !e.Type.IsSecurity() {
			continue
		}
		rep.SecurityEvents++
		if e.ActorID != "" {
			actors[e.ActorID]++
		}
		if e.Network.IP != "" {
			ips[e.Network.IP]++
		}
		if e.Network.UserAgent != "" {
			family, bot := classifyAgent(e.Network.UserAgent)
			t := agents[family]
			t.bot = bot
			t.count++
			agents[family] = t
		}
	}

	rep.TopActors = topCounts(actors)
	rep.TopIPs = topCounts(ips)
	rep.TopUserAgents = topAgents(agents)
	return rep
}

type agentTally struct {
	count int
	bot   bool
}

// classifyAgent reduces a raw user-agent string to a browser or bot family
// so the report groups retries from the same client together.
func classifyAgent(raw string) (string, bool) {
	ua := useragent.New(raw)
	if ua.Bot() {
		name, _ := ua.Browser()
		if name == "" {
			name = "bot"
		}
		return name, true
	}
	name, _ := ua.Browser()
	if name == "" {
		return "unknown", false
	}
	return name, false
}

func referencesResource(e audit.Event, resourceID string) bool {
	for _, key := range []string{"resource_id", "record_id", "id"} {
		if v, ok := e.Details[key]; ok {
			return fmt.Sprintf("%v", v) == resourceID
		}
	}
	return false
}

func normalizeLimit(limit int) (int, error) {
	if limit < 0 {
		return 0, dErrors.New(dErrors.CodeInvalidInput, "limit cannot be negative")
	}
	if limit == 0 {
		return DefaultLimit, nil
	}
	return limit, nil
}

// newestFirst sorts by timestamp descending and truncates. Sorting a copy
// keeps EventSource snapshots reusable by the caller.
func newestFirst(events []audit.Event, limit int) []audit.Event {
	out := append([]audit.Event{}, events...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func topCounts(tallies map[string]int) []Count {
	out := make([]Count, 0, len(tallies))
	for key, n := range tallies {
		out = append(out, Count{Key: key, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Key < out[j].Key
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}

func topAgents(tallies map[string]agentTally) []AgentCount {
	out := make([]AgentCount, 0, len(tallies))
	for agent, t := range tallies {
		out = append(out, AgentCount{Agent: agent, Bot: t.bot, Count: t.count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Agent < out[j].Agent
	})
	if len(out) > topN {
		out = out[:topN]
	}
	return out
}
