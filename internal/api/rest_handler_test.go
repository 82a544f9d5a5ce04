package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fraud_monitor/internal/auth"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/processor"
	"fraud_monitor/internal/repository/memory"
	"fraud_monitor/internal/service"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

type testEnv struct {
	store  *memory.Store
	router http.Handler
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memory.NewStore()

	log := service.NewLogProvider(logger)
	cfg := service.DefaultDispatcherConfig()
	cfg.TestDelay = 0
	dispatcher := service.NewAlertDispatcher(store.Alerts(), service.Cascade{
		domain.ChannelSlack:  {log},
		domain.ChannelEmail:  {log},
		domain.ChannelNotion: {log},
	}, cfg, logger, service.WithRand(func() float64 { return 0 }))
	t.Cleanup(func() { _ = dispatcher.Shutdown(context.Background()) })

	analyzer := processor.NewAIAnalyzer(nil, processor.NewHeuristicScorer(processor.WithLocation(time.UTC)), 0, nil, logger)
	proc := processor.NewTransactionProcessor(processor.Dependencies{
		Store:    store,
		Analyzer: analyzer,
		Logger:   logger,
	}, domain.RiskHigh)

	tokens := auth.NewTokenManager("test-secret", time.Hour)
	sessions := auth.NewMemorySessionStore()

	h := NewAPIHandler(Deps{
		Processor: proc,
		Alerts:    dispatcher,
		Analytics: service.NewAnalyticsService(store.Transactions(), logger),
		Accounts:  service.NewAuthService(store.Users(), tokens, sessions, logger),
		Store:     store,
		Logger:    logger,
	})
	router := NewRouter(h, auth.NewAuthenticator(tokens, sessions, logger), RouterConfig{})

	return &testEnv{store: store, router: router}
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
		reader = bytes.NewReader(b)
	}
	r := httptest.NewRequest(method, path, reader)
	r.Header.Set("Content-Type", "application/json")
	if cookie != nil {
		r.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, r)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(w.Body.Bytes(), dst); err != nil {
		t.Fatalf("failed to decode response %q: %v", w.Body.String(), err)
	}
}

// login registers a user and returns the session cookie and user id.
func (e *testEnv) login(t *testing.T, email string) (*http.Cookie, string) {
	t.Helper()
	reg := e.do(t, "POST", "/api/auth/register", RegisterRequest{Name: "Alice Kumar", Email: email, Password: "password123"}, nil)
	if reg.Code != http.StatusOK {
		t.Fatalf("register failed: %d %s", reg.Code, reg.Body.String())
	}

	w := e.do(t, "POST", "/api/auth/login", LoginRequest{Email: email, Password: "password123"}, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("login failed: %d %s", w.Code, w.Body.String())
	}
	var resp SessionResponse
	decode(t, w, &resp)
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.CookieName {
			return c, resp.User.ID
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil, ""
}

func detectionBody(userID string, amount float64, description string) map[string]interface{} {
	return map[string]interface{}{
		"userId":      userID,
		"amount":      amount,
		"description": description,
		"timestamp":   "2024-03-12T12:00:00Z",
	}
}

func TestAPIHandler_DetectFraud_Critical(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(t, "POST", "/api/fraud-detection",
		detectionBody("u1", 15000, "urgent wire transfer to international account"), nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp FraudDetectionResponse
	decode(t, w, &resp)
	if !resp.Success || resp.Transaction.RiskLevel != domain.RiskCritical || !resp.Transaction.IsFraudulent {
		t.Errorf("unexpected transaction %+v", resp.Transaction)
	}
	if resp.FraudAnalysis.RiskScore != 80 || resp.FraudAnalysis.Source != processor.SourceHeuristic {
		t.Errorf("unexpected analysis %+v", resp.FraudAnalysis)
	}
	if resp.Report == nil || !strings.HasPrefix(resp.Report.Title, "CRITICAL risk transaction") {
		t.Errorf("expected report summary, got %+v", resp.Report)
	}
	if resp.SimilarTransactions == nil {
		t.Error("expected similarTransactions to be an empty list, not null")
	}
	if strings.Contains(w.Body.String(), "embedding") {
		t.Error("response must not expose embeddings")
	}
}

func TestAPIHandler_DetectFraud_Validation(t *testing.T) {
	env := newTestEnv(t)

	cases := map[string]interface{}{
		"missing amount":      map[string]interface{}{"userId": "u1", "description": "x"},
		"missing description": map[string]interface{}{"userId": "u1", "amount": 10},
		"negative amount":     map[string]interface{}{"userId": "u1", "amount": -5, "description": "x"},
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/fraud-detection", body, nil)

			if w.Code != http.StatusBadRequest {
				t.Fatalf("expected 400, got %d", w.Code)
			}
			var resp ErrorResponse
			decode(t, w, &resp)
			if resp.Error == "" {
				t.Error("expected error message")
			}
		})
	}

	if w := env.do(t, "POST", "/api/fraud-detection", nil, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for empty body, got %d", w.Code)
	}
}

func TestAPIHandler_ListTransactions(t *testing.T) {
	env := newTestEnv(t)
	user := domain.NewUser("Alice", "alice@example.com", domain.RoleCompliance)
	_ = env.store.Users().Create(context.Background(), user)
	env.do(t, "POST", "/api/fraud-detection", detectionBody(user.ID, 50, "coffee"), nil)
	env.do(t, "POST", "/api/fraud-detection", detectionBody(user.ID, 60, "lunch"), nil)
	env.do(t, "POST", "/api/fraud-detection", detectionBody("other", 70, "taxi"), nil)

	w := env.do(t, "GET", "/api/fraud-detection?userId="+user.ID+"&limit=1", nil, nil)

	var resp struct {
		Success      bool                  `json:"success"`
		Transactions []TransactionResponse `json:"transactions"`
	}
	decode(t, w, &resp)
	if len(resp.Transactions) != 1 {
		t.Fatalf("expected 1 transaction, got %d", len(resp.Transactions))
	}
	if resp.Transactions[0].User == nil || resp.Transactions[0].User.Email != "alice@example.com" {
		t.Errorf("expected user attached, got %+v", resp.Transactions[0].User)
	}

	all := env.do(t, "GET", "/api/fraud-detection?limit=abc", nil, nil)
	decode(t, all, &resp)
	if len(resp.Transactions) != 3 {
		t.Errorf("expected all 3 transactions with default limit, got %d", len(resp.Transactions))
	}
}

func TestAPIHandler_ProtectedRoutesRequireSession(t *testing.T) {
	env := newTestEnv(t)

	for _, route := range []struct{ method, path string }{
		{"GET", "/api/alerts"},
		{"POST", "/api/alerts"},
		{"POST", "/api/alerts/send"},
		{"GET", "/api/analytics"},
		{"GET", "/api/transactions/search?q=x"},
		{"GET", "/api/reports/abc"},
		{"GET", "/api/auth/session"},
	} {
		w := env.do(t, route.method, route.path, nil, nil)

		if w.Code != http.StatusUnauthorized {
			t.Errorf("%s %s: expected 401, got %d", route.method, route.path, w.Code)
		}
	}
}

func TestAPIHandler_Register(t *testing.T) {
	env := newTestEnv(t)
	body := RegisterRequest{Name: "Bob Smith", Email: "Bob@Example.com", Password: "password123", Role: "MANAGER"}

	w := env.do(t, "POST", "/api/auth/register", body, nil)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp SessionResponse
	decode(t, w, &resp)
	if resp.User.Email != "bob@example.com" || resp.User.Role != domain.RoleManager {
		t.Errorf("unexpected user %+v", resp.User)
	}
	if strings.Contains(w.Body.String(), "password") {
		t.Error("response must not include the password hash")
	}

	dup := env.do(t, "POST", "/api/auth/register", body, nil)
	var errResp ErrorResponse
	decode(t, dup, &errResp)
	if dup.Code != http.StatusConflict || errResp.Error != "Email already registered" {
		t.Errorf("expected 409 Email already registered, got %d %q", dup.Code, errResp.Error)
	}

	if w := env.do(t, "POST", "/api/auth/register", RegisterRequest{Email: "c@example.com"}, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing fields, got %d", w.Code)
	}
	long := RegisterRequest{Name: "Carol", Email: "carol@example.com", Password: strings.Repeat("p", 73)}
	if w := env.do(t, "POST", "/api/auth/register", long, nil); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for an over-long password, got %d: %s", w.Code, w.Body.String())
	}
}

func TestAPIHandler_LoginSessionLogout(t *testing.T) {
	env := newTestEnv(t)
	cookie, userID := env.login(t, "alice@example.com")

	w := env.do(t, "GET", "/api/auth/session", nil, cookie)
	var resp SessionResponse
	decode(t, w, &resp)
	if w.Code != http.StatusOK || resp.User.ID != userID {
		t.Fatalf("expected session for %s, got %d %+v", userID, w.Code, resp)
	}

	if w := env.do(t, "POST", "/api/auth/logout", nil, cookie); w.Code != http.StatusOK {
		t.Fatalf("expected 200 on logout, got %d", w.Code)
	}
	if w := env.do(t, "GET", "/api/auth/session", nil, cookie); w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 after logout, got %d", w.Code)
	}
}

func TestAPIHandler_LoginBearerToken(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice@example.com")
	w := env.do(t, "POST", "/api/auth/login", LoginRequest{Email: "alice@example.com", Password: "password123"}, nil)
	var resp SessionResponse
	decode(t, w, &resp)

	r := httptest.NewRequest("GET", "/api/auth/session", nil)
	r.Header.Set("Authorization", "Bearer "+resp.Token)
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, r)

	if rec.Code != http.StatusOK {
		t.Errorf("expected bearer token to authenticate, got %d", rec.Code)
	}
}

func TestAPIHandler_LoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.login(t, "alice@example.com")

	w := env.do(t, "POST", "/api/auth/login", LoginRequest{Email: "alice@example.com", Password: "nope-nope"}, nil)

	if w.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", w.Code)
	}
	if len(w.Result().Cookies()) != 0 {
		t.Error("expected no cookie on failed login")
	}
}

func TestAPIHandler_CreateAndListAlerts(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.login(t, "alice@example.com")
	detect := env.do(t, "POST", "/api/fraud-detection",
		detectionBody("someone", 15000, "urgent wire transfer to international account"), nil)
	var detection FraudDetectionResponse
	decode(t, detect, &detection)

	w := env.do(t, "POST", "/api/alerts", CreateAlertRequest{Channel: "slack", Message: "Check this", ReportID: detection.Report.ID}, cookie)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var alert domain.Alert
	decode(t, w, &alert)
	if alert.Status != domain.AlertDelivered || alert.Channel != domain.ChannelSlack || alert.SentAt == nil {
		t.Errorf("unexpected alert %+v", alert)
	}
	env.do(t, "POST", "/api/alerts", CreateAlertRequest{Channel: "EMAIL", Message: "No report"}, cookie)

	list := env.do(t, "GET", "/api/alerts", nil, cookie)
	var alerts []AlertResponse
	decode(t, list, &alerts)
	if len(alerts) != 2 {
		t.Fatalf("expected 2 alerts, got %d", len(alerts))
	}
	var withReport int
	for _, a := range alerts {
		if a.Report != nil {
			withReport++
			if a.Report.ID != detection.Report.ID {
				t.Errorf("unexpected report summary %+v", a.Report)
			}
		}
	}
	if withReport != 1 {
		t.Errorf("expected one alert with a report summary, got %d", withReport)
	}
}

func TestAPIHandler_CreateAlert_Errors(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.login(t, "alice@example.com")

	cases := []struct {
		name string
		body CreateAlertRequest
		want int
	}{
		{"missing message", CreateAlertRequest{Channel: "SLACK"}, http.StatusBadRequest},
		{"unsupported channel", CreateAlertRequest{Channel: "PAGER", Message: "m"}, http.StatusBadRequest},
		{"unknown report", CreateAlertRequest{Channel: "SLACK", Message: "m", ReportID: "missing"}, http.StatusNotFound},
		{"header in type", CreateAlertRequest{Channel: "EMAIL", Message: "m", Type: "X\r\nBcc: a@evil.example"}, http.StatusBadRequest},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			w := env.do(t, "POST", "/api/alerts", c.body, cookie)

			if w.Code != c.want {
				t.Errorf("expected %d, got %d: %s", c.want, w.Code, w.Body.String())
			}
		})
	}
}

func TestAPIHandler_SendTestAlert(t *testing.T) {
	env := newTestEnv(t)
	cookie, userID := env.login(t, "alice@example.com")

	w := env.do(t, "POST", "/api/alerts/send", CreateAlertRequest{Channel: "NOTION", Message: "test"}, cookie)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var resp TestAlertResponse
	decode(t, w, &resp)
	if !resp.Success || resp.AlertID == "" || resp.Message != "Alert sent successfully" {
		t.Errorf("unexpected response %+v", resp)
	}
	stored, err := env.store.Alerts().GetByID(context.Background(), resp.AlertID)
	if err != nil || stored.UserID != userID || stored.Status != domain.AlertDelivered {
		t.Errorf("unexpected stored alert %+v (%v)", stored, err)
	}
}

func TestAPIHandler_Analytics(t *testing.T) {
	env := newTestEnv(t)
	cookie, userID := env.login(t, "alice@example.com")
	env.do(t, "POST", "/api/fraud-detection", detectionBody(userID, 15000, "wire transfer international"), nil)
	env.do(t, "POST", "/api/fraud-detection", detectionBody(userID, 20, "coffee"), nil)

	w := env.do(t, "GET", "/api/analytics?range=1y", nil, cookie)

	var resp service.Analytics
	decode(t, w, &resp)
	if resp.Range != "7d" || resp.TotalTransactions != 2 || resp.FraudulentTransactions != 1 || resp.TotalAmount != 15020 {
		t.Errorf("unexpected analytics %+v", resp)
	}
	if resp.FraudRate != 50 {
		t.Errorf("expected 50%% fraud rate, got %f", resp.FraudRate)
	}
	if len(resp.WeeklyTrend) < 7 {
		t.Errorf("expected a point per day, got %d", len(resp.WeeklyTrend))
	}
}

func TestAPIHandler_SearchTransactions(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.login(t, "alice@example.com")
	env.do(t, "POST", "/api/fraud-detection", detectionBody("u1", 900, "bitcoin exchange deposit"), nil)
	env.do(t, "POST", "/api/fraud-detection", detectionBody("u2", 12, "grocery store"), nil)

	w := env.do(t, "GET", "/api/transactions/search?q=bitcoin+exchange", nil, cookie)

	var resp struct {
		Results []SearchResultResponse `json:"results"`
	}
	decode(t, w, &resp)
	if len(resp.Results) == 0 || resp.Results[0].Description != "bitcoin exchange deposit" {
		t.Errorf("expected bitcoin transaction first, got %+v", resp.Results)
	}

	if w := env.do(t, "GET", "/api/transactions/search?q=", nil, cookie); w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for blank query, got %d", w.Code)
	}
}

func TestAPIHandler_GetReport(t *testing.T) {
	env := newTestEnv(t)
	cookie, _ := env.login(t, "alice@example.com")
	detect := env.do(t, "POST", "/api/fraud-detection",
		detectionBody("u1", 15000, "urgent wire transfer to international account"), nil)
	var detection FraudDetectionResponse
	decode(t, detect, &detection)

	w := env.do(t, "GET", "/api/reports/"+detection.Report.ID, nil, cookie)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var report ReportResponse
	decode(t, w, &report)
	if report.Transaction.ID != detection.Transaction.ID || report.RiskScore != 80 {
		t.Errorf("unexpected report %+v", report)
	}

	if w := env.do(t, "GET", "/api/reports/missing", nil, cookie); w.Code != http.StatusNotFound {
		t.Errorf("expected 404, got %d", w.Code)
	}
}

func TestAPIHandler_HealthAndNotFound(t *testing.T) {
	env := newTestEnv(t)

	if w := env.do(t, "GET", "/healthz", nil, nil); w.Code != http.StatusOK {
		t.Errorf("expected healthy, got %d", w.Code)
	}
	w := env.do(t, "GET", "/api/nothing", nil, nil)
	var resp ErrorResponse
	decode(t, w, &resp)
	if w.Code != http.StatusNotFound || resp.Error == "" {
		t.Errorf("expected JSON 404, got %d %s", w.Code, w.Body.String())
	}
}
