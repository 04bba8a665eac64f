package report_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caseguard/internal/audit"
	"caseguard/internal/report"
	"caseguard/internal/signer"
	dErrors "caseguard/pkg/domain-errors"
)

type ReportSuite struct {
	suite.Suite
	now      time.Time
	recorder *audit.Recorder
	service  *report.Service
}

func TestReportSuite(t *testing.T) {
	suite.Run(t, new(ReportSuite))
}

func (s *ReportSuite) SetupTest() {
	s.now = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

	sig, err := signer.New("test-secret")
	s.Require().NoError(err)
	s.recorder, err = audit.NewRecorder(sig,
		audit.WithClock(func() time.Time {
			// Strictly increasing timestamps so newest-first ordering is
			// observable.
			s.now = s.now.Add(time.Second)
			return s.now
		}))
	s.Require().NoError(err)

	s.service, err = report.New(s.recorder,
		report.WithClock(func() time.Time { return s.now }))
	s.Require().NoError(err)
}

func (s *ReportSuite) record(eventType audit.EventType, opts ...audit.RecordOption) audit.Event {
	event, err := s.recorder.Record(context.Background(), eventType, opts...)
	s.Require().NoError(err)
	return event
}

func (s *ReportSuite) TestNew_RequiresEventSource() {
	_, err := report.New(nil)
	s.Require().Error(err)
}

func (s *ReportSuite) TestAuditTrail_MatchesResourceAndID() {
	s.record(audit.EventRecordCreated,
		audit.WithResource("case", "create"),
		audit.WithDetails(map[string]any{"resource_id": "case-42"}))
	s.record(audit.EventRecordUpdated,
		audit.WithResource("case", "update"),
		audit.WithDetails(map[string]any{"record_id": "case-42"}))
	s.record(audit.EventRecordUpdated,
		audit.WithResource("case", "update"),
		audit.WithDetails(map[string]any{"resource_id": "case-99"}))
	s.record(audit.EventRecordDeleted,
		audit.WithResource("contact", "delete"),
		audit.WithDetails(map[string]any{"resource_id": "case-42"}))

	trail, err := s.service.AuditTrail("case", "case-42", 0)
	s.Require().NoError(err)
	s.Require().Len(trail, 2)
	s.Equal(audit.EventRecordUpdated, trail[0].Type, "newest first")
	s.Equal(audit.EventRecordCreated, trail[1].Type)
}

func (s *ReportSuite) TestAuditTrail_EmptyIDMatchesWholeType() {
	s.record(audit.EventRecordCreated,
		audit.WithResource("case", "create"),
		audit.WithDetails(map[string]any{"resource_id": "case-42"}))
	s.record(audit.EventRecordUpdated,
		audit.WithResource("case", "update"))

	trail, err := s.service.AuditTrail("case", "", 0)
	s.Require().NoError(err)
	s.Len(trail, 2)
}

func (s *ReportSuite) TestAuditTrail_Validation() {
	_, err := s.service.AuditTrail("", "case-42", 0)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.AuditTrail("case", "case-42", -1)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ReportSuite) TestAuditTrail_LimitApplies() {
	for i := 0; i < 5; i++ {
		s.record(audit.EventRecordUpdated, audit.WithResource("case", "update"))
	}

	trail, err := s.service.AuditTrail("case", "", 3)
	s.Require().NoError(err)
	s.Len(trail, 3)
}

func (s *ReportSuite) TestSecurityEvents_FiltersSubset() {
	s.record(audit.EventLoginSuccess, audit.WithActor("user-17"))
	s.record(audit.EventRateLimitExceeded, audit.WithActor("user-17"))
	s.record(audit.EventRecordUpdated, audit.WithActor("user-17"))
	s.record(audit.EventCSRFFailure, audit.WithActor("user-17"))

	events, err := s.service.SecurityEvents(0)
	s.Require().NoError(err)
	s.Require().Len(events, 2)
	s.Equal(audit.EventCSRFFailure, events[0].Type, "newest first")
	s.Equal(audit.EventRateLimitExceeded, events[1].Type)
}

func (s *ReportSuite) TestUserActivity_SummarizesActor() {
	s.record(audit.EventLoginSuccess, audit.WithActor("user-17"))
	s.record(audit.EventRecordUpdated, audit.WithActor("user-17"))
	s.record(audit.EventRecordUpdated, audit.WithActor("user-17"))
	s.record(audit.EventRecordUpdated, audit.WithActor("user-99"))

	activity, err := s.service.UserActivity("user-17", 0)
	s.Require().NoError(err)

	s.Equal(3, activity.TotalEvents)
	s.Equal(1, activity.EventsByType[audit.EventLoginSuccess])
	s.Equal(2, activity.EventsByType[audit.EventRecordUpdated])
	s.Len(activity.RecentEvents, 3)
	s.Equal(audit.EventRecordUpdated, activity.RecentEvents[0].Type)
}

func (s *ReportSuite) TestUserActivity_WindowExcludesOldEvents() {
	s.record(audit.EventLoginSuccess, audit.WithActor("user-17"))

	s.now = s.now.Add(3 * time.Hour)
	s.record(audit.EventRecordUpdated, audit.WithActor("user-17"))

	activity, err := s.service.UserActivity("user-17", 2)
	s.Require().NoError(err)
	s.Equal(1, activity.TotalEvents)
}

func (s *ReportSuite) TestUserActivity_Validation() {
	_, err := s.service.UserActivity("", 1)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))

	_, err = s.service.UserActivity("user-17", -1)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
}

func (s *ReportSuite) TestSecurityReport_Aggregates() {
	chromeUA := "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	botUA := "Mozilla/5.0 (compatible; Googlebot/2.1; +http://www.google.com/bot.html)"

	s.record(audit.EventLoginSuccess, audit.WithActor("user-17"))
	s.record(audit.EventRateLimitExceeded,
		audit.WithActor("user-17"),
		audit.WithNetwork(audit.Network{IP: "203.0.113.9", UserAgent: chromeUA}))
	s.record(audit.EventRateLimitExceeded,
		audit.WithActor("user-17"),
		audit.WithNetwork(audit.Network{IP: "203.0.113.9", UserAgent: chromeUA}))
	s.record(audit.EventSQLInjectionAttempt,
		audit.WithActor("user-99"),
		audit.WithNetwork(audit.Network{IP: "198.51.100.2", UserAgent: botUA}))

	rep := s.service.SecurityReport(context.Background())

	s.Equal(4, rep.TotalEvents)
	s.Equal(3, rep.SecurityEvents)
	s.Equal(1, rep.EventDistribution[audit.EventLoginSuccess])
	s.Equal(2, rep.EventDistribution[audit.EventRateLimitExceeded])

	s.Require().NotEmpty(rep.TopActors)
	s.Equal("user-17", rep.TopActors[0].Key)
	s.Equal(2, rep.TopActors[0].Count)

	s.Require().NotEmpty(rep.TopIPs)
	s.Equal("203.0.113.9", rep.TopIPs[0].Key)

	s.Require().Len(rep.TopUserAgents, 2)
	s.Equal("Chrome", rep.TopUserAgents[0].Agent)
	s.False(rep.TopUserAgents[0].Bot)
	s.True(rep.TopUserAgents[1].Bot)
}

func (s *ReportSuite) TestSecurityReport_NonSecurityEventsExcludedFromTops() {
	s.record(audit.EventLoginSuccess,
		audit.WithActor("user-17"),
		audit.WithNetwork(audit.Network{IP: "203.0.113.9"}))

	rep := s.service.SecurityReport(context.Background())

	s.Zero(rep.SecurityEvents)
	s.Empty(rep.TopActors)
	s.Empty(rep.TopIPs)
}

func (s *ReportSuite) TestSecurityReport_EmptyBuffer() {
	rep := s.service.SecurityReport(context.Background())

	s.Zero(rep.TotalEvents)
	s.Empty(rep.TopActors)
	s.Empty(rep.TopUserAgents)
	s.NotNil(rep.EventDistribution)
}
