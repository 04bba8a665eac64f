package httptransport_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"caseguard/internal/anomaly"
	"caseguard/internal/audit"
	"caseguard/internal/authtoken"
	"caseguard/internal/csrf"
	"caseguard/internal/guard"
	rlmiddleware "caseguard/internal/ratelimit/middleware"
	rlmodels "caseguard/internal/ratelimit/models"
	rlservice "caseguard/internal/ratelimit/service"
	rlmemory "caseguard/internal/ratelimit/store/memory"
	"caseguard/internal/report"
	"caseguard/internal/signer"
	httptransport "caseguard/internal/transport/http"
	"caseguard/pkg/platform/middleware/auth"
	"caseguard/pkg/testutil"
)

type tokenValidator struct {
	tokens *authtoken.Service
}

func (v tokenValidator) Validate(tokenString string) (*auth.Claims, error) {
	claims, err := v.tokens.Validate(tokenString)
	if err != nil {
		return nil, err
	}
	return &auth.Claims{ActorID: claims.ActorID, Role: claims.Role}, nil
}

type HandlerSuite struct {
	suite.Suite
	recorder *audit.Recorder
	tokens   *authtoken.Service
	router   http.Handler
	token    string
}

func TestHandlerSuite(t *testing.T) {
	suite.Run(t, new(HandlerSuite))
}

func (s *HandlerSuite) SetupTest() {
	logger := slog.Default()

	sig, err := signer.New("test-secret")
	s.Require().NoError(err)
	s.recorder, err = audit.NewRecorder(sig)
	s.Require().NoError(err)

	limiter, err := rlservice.New(rlmemory.NewInMemoryCounterStore(),
		rlservice.WithAuditRecorder(s.recorder))
	s.Require().NoError(err)

	g := guard.New(guard.WithAuditRecorder(s.recorder))

	detector, err := anomaly.New(s.recorder, anomaly.WithAuditRecorder(s.recorder))
	s.Require().NoError(err)

	csrfSvc, err := csrf.New(sig, csrf.WithAuditRecorder(s.recorder))
	s.Require().NoError(err)

	reports, err := report.New(s.recorder)
	s.Require().NoError(err)

	s.tokens = authtoken.New("test-jwt-key", "caseguard", "operators")
	s.token, err = s.tokens.Generate("op-1", "admin", time.Hour)
	s.Require().NoError(err)

	limit := rlmiddleware.New(limiter,
		rlmodels.Config{Window: time.Minute, MaxRequests: 100}, logger)

	handler := httptransport.NewHandler(s.recorder, limiter, g, detector, csrfSvc, reports, logger)
	s.router = httptransport.NewRouter(handler, tokenValidator{tokens: s.tokens}, limit.Limit)
}

func (s *HandlerSuite) do(req *http.Request) *httptest.ResponseRecorder {
	req.Header.Set("Authorization", "Bearer "+s.token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	return rec
}

func (s *HandlerSuite) TestHealthz_Open() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, testutil.NewRequest(s.T(), http.MethodGet, "/healthz"))
	s.Equal(http.StatusOK, rec.Code)
}

func (s *HandlerSuite) TestAuthRequired() {
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, testutil.NewRequest(s.T(), http.MethodGet, "/audit/report"))
	s.Equal(http.StatusUnauthorized, rec.Code)

	req := testutil.NewRequest(s.T(), http.MethodGet, "/audit/report")
	req.Header.Set("Authorization", "Bearer not-a-token")
	rec = httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	s.Equal(http.StatusUnauthorized, rec.Code)
}

func (s *HandlerSuite) TestRecordEvent() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/audit/events", map[string]any{
		"event_type": "record_created",
		"actor_id":   "user-17",
		"resource":   "case",
		"action":     "create",
		"details":    map[string]any{"resource_id": "case-42"},
	})
	rec := s.do(req)
	s.Require().Equal(http.StatusAccepted, rec.Code)

	var body map[string]string
	testutil.DecodeJSON(s.T(), rec, &body)
	s.NotEmpty(body["event_id"])

	events := s.recorder.Snapshot()
	s.Require().Len(events, 1)
	s.Equal(audit.EventRecordCreated, events[0].Type)
	s.Equal("user-17", events[0].ActorID)
}

func (s *HandlerSuite) TestRecordEvent_UnknownType() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/audit/events", map[string]any{
		"event_type": "made_up",
	})
	rec := s.do(req)
	s.Equal(http.StatusBadRequest, rec.Code)

	var body map[string]string
	testutil.DecodeJSON(s.T(), rec, &body)
	s.Equal("INVALID_INPUT", body["error"])
}

func (s *HandlerSuite) TestVerifyEvent() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/audit/events", map[string]any{
		"event_type": "data_export",
		"actor_id":   "user-17",
	})
	s.Require().Equal(http.StatusAccepted, s.do(req).Code)

	event := s.recorder.Snapshot()[0]

	rec := s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/audit/verify", event))
	s.Require().Equal(http.StatusOK, rec.Code)
	var verdict map[string]bool
	testutil.DecodeJSON(s.T(), rec, &verdict)
	s.True(verdict["valid"])
	s.False(verdict["tampered"])

	tampered := event
	tampered.ActorID = "user-99"
	rec = s.do(testutil.NewJSONRequest(s.T(), http.MethodPost, "/audit/verify", tampered))
	s.Require().Equal(http.StatusOK, rec.Code)
	testutil.DecodeJSON(s.T(), rec, &verdict)
	s.False(verdict["valid"])
	s.True(verdict["tampered"])
}

func (s *HandlerSuite) TestAuditTrail() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/audit/events", map[string]any{
		"event_type": "record_updated",
		"resource":   "case",
		"action":     "update",
		"details":    map[string]any{"resource_id": "case-42"},
	})
	s.Require().Equal(http.StatusAccepted, s.do(req).Code)

	rec := s.do(testutil.NewRequest(s.T(), http.MethodGet,
		"/audit/trail?resource_type=case&resource_id=case-42"))
	s.Require().Equal(http.StatusOK, rec.Code)

	var body struct {
		Events []audit.Event `json:"events"`
	}
	testutil.DecodeJSON(s.T(), rec, &body)
	s.Len(body.Events, 1)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/audit/trail"))
	s.Equal(http.StatusBadRequest, rec.Code)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodGet,
		"/audit/trail?resource_type=case&limit=abc"))
	s.Equal(http.StatusBadRequest, rec.Code)
}

func (s *HandlerSuite) TestSecurityEventsAndReport() {
	// A forced rate limit rejection produces the security event.
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/ratelimit/check", map[string]any{
		"identifier":   "client-7",
		"window_ms":    60000,
		"max_requests": 1,
	})
	s.Require().Equal(http.StatusOK, s.do(req).Code)
	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/ratelimit/check", map[string]any{
		"identifier":   "client-7",
		"window_ms":    60000,
		"max_requests": 1,
	})
	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var result rlmodels.Result
	testutil.DecodeJSON(s.T(), rec, &result)
	s.False(result.Allowed)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/audit/security-events"))
	s.Require().Equal(http.StatusOK, rec.Code)
	var feed struct {
		Events []audit.Event `json:"events"`
	}
	testutil.DecodeJSON(s.T(), rec, &feed)
	s.Require().Len(feed.Events, 1)
	s.Equal(audit.EventRateLimitExceeded, feed.Events[0].Type)

	rec = s.do(testutil.NewRequest(s.T(), http.MethodGet, "/audit/report"))
	s.Require().Equal(http.StatusOK, rec.Code)
	var rep report.Report
	testutil.DecodeJSON(s.T(), rec, &rep)
	s.Equal(1, rep.SecurityEvents)
}

func (s *HandlerSuite) TestUserActivity() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/audit/events", map[string]any{
		"event_type": "login_success",
		"actor_id":   "user-17",
	})
	s.Require().Equal(http.StatusAccepted, s.do(req).Code)

	rec := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/audit/users/user-17/activity"))
	s.Require().Equal(http.StatusOK, rec.Code)

	var activity report.Activity
	testutil.DecodeJSON(s.T(), rec, &activity)
	s.Equal(1, activity.TotalEvents)
}

func (s *HandlerSuite) TestSanitizeEndpoints() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/sanitize/input", map[string]string{
		"text": "DROP TABLE users;--",
	})
	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body map[string]string
	testutil.DecodeJSON(s.T(), rec, &body)
	s.NotContains(body["sanitized"], "DROP")

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/sanitize/html", map[string]string{
		"markup": "<script>alert(1)</script><p>ok</p>",
	})
	rec = s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)
	testutil.DecodeJSON(s.T(), rec, &body)
	s.Equal("<p>ok</p>", body["sanitized"])
}

func (s *HandlerSuite) TestAnomalyCheck() {
	for i := 0; i < 6; i++ {
		req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/audit/events", map[string]any{
			"event_type": "login_failure",
			"actor_id":   "user-17",
		})
		s.Require().Equal(http.StatusAccepted, s.do(req).Code)
	}

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/anomaly/check", map[string]any{
		"actor_id": "user-17",
		"activity": "login",
	})
	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var result anomaly.Result
	testutil.DecodeJSON(s.T(), rec, &result)
	s.True(result.Suspicious)
	s.NotEmpty(result.Reasons)
}

func (s *HandlerSuite) TestCSRFEndpoints() {
	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/csrf/token", map[string]string{
		"session_token": "session-abc",
	})
	rec := s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)

	var body map[string]string
	testutil.DecodeJSON(s.T(), rec, &body)
	s.Require().NotEmpty(body["token"])

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/csrf/validate", map[string]string{
		"token":         body["token"],
		"session_token": "session-abc",
	})
	rec = s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)
	var verdict map[string]bool
	testutil.DecodeJSON(s.T(), rec, &verdict)
	s.True(verdict["valid"])

	req = testutil.NewJSONRequest(s.T(), http.MethodPost, "/csrf/validate", map[string]string{
		"token":         body["token"],
		"session_token": "session-xyz",
	})
	rec = s.do(req)
	s.Require().Equal(http.StatusOK, rec.Code)
	testutil.DecodeJSON(s.T(), rec, &verdict)
	s.False(verdict["valid"])
}

func (s *HandlerSuite) TestRateLimitHeadersOnAPI() {
	rec := s.do(testutil.NewRequest(s.T(), http.MethodGet, "/audit/report"))
	s.Require().Equal(http.StatusOK, rec.Code)
	s.Equal("100", rec.Header().Get("X-RateLimit-Limit"))
	s.Equal("99", rec.Header().Get("X-RateLimit-Remaining"))
}

func (s *HandlerSuite) TestMalformedBody() {
	req := httptest.NewRequest(http.MethodPost, "/audit/events", nil)
	rec := s.do(req)
	s.Equal(http.StatusBadRequest, rec.Code)
}
