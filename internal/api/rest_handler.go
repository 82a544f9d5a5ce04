package api

import (
	"context"
	"encoding/json"
	"errors"
	"fraud_monitor/internal/auth"
	"fraud_monitor/internal/domain"
	"fraud_monitor/internal/processor"
	"fraud_monitor/internal/repository"
	"fraud_monitor/internal/service"
	"fraud_monitor/pkg/metrics"
	"fraud_monitor/pkg/validator"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// AlertSender delivers alerts for the alert endpoints.
type AlertSender interface {
	Send(ctx context.Context, req domain.AlertRequest) (*domain.Alert, error)
	SendTest(ctx context.Context, req domain.AlertRequest) (*domain.Alert, error)
}

type Deps struct {
	Processor    *processor.TransactionProcessor
	Alerts       AlertSender
	Analytics    *service.AnalyticsService
	Accounts     *service.AuthService
	Store        repository.Store
	Metrics      *metrics.MetricsCollector
	Logger       *slog.Logger
	CookieSecure bool
}

type APIHandler struct {
	processor    *processor.TransactionProcessor
	alerts       AlertSender
	analytics    *service.AnalyticsService
	accounts     *service.AuthService
	store        repository.Store
	validator    *validator.Validator
	metrics      *metrics.MetricsCollector
	logger       *slog.Logger
	cookieSecure bool
}

func NewAPIHandler(deps Deps) *APIHandler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &APIHandler{
		processor:    deps.Processor,
		alerts:       deps.Alerts,
		analytics:    deps.Analytics,
		accounts:     deps.Accounts,
		store:        deps.Store,
		validator:    validator.New(),
		metrics:      deps.Metrics,
		logger:       logger,
		cookieSecure: deps.CookieSecure,
	}
}

type FraudDetectionRequest struct {
	UserID      string     `json:"userId"`
	Amount      *float64   `json:"amount"`
	Description string     `json:"description"`
	IP          string     `json:"ip,omitempty"`
	UserAgent   string     `json:"userAgent,omitempty"`
	Merchant    string     `json:"merchant,omitempty"`
	Location    string     `json:"location,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

type TransactionResponse struct {
	ID           string             `json:"id"`
	UserID       string             `json:"userId"`
	Amount       float64            `json:"amount"`
	Description  string             `json:"description"`
	IP           string             `json:"ip,omitempty"`
	RiskLevel    domain.RiskLevel   `json:"riskLevel"`
	IsFraudulent bool               `json:"isFraudulent"`
	CreatedAt    time.Time          `json:"createdAt"`
	User         *domain.PublicUser `json:"user,omitempty"`
}

type FraudAnalysisResponse struct {
	domain.FraudAnalysis
	SimilarTransactions []domain.SimilarTransaction `json:"similarTransactions"`
}

type EscalationResponse struct {
	RuleID  string              `json:"ruleId"`
	Channel domain.AlertChannel `json:"channel"`
}

type FraudDetectionResponse struct {
	Success             bool                        `json:"success"`
	Transaction         TransactionResponse         `json:"transaction"`
	FraudAnalysis       FraudAnalysisResponse       `json:"fraudAnalysis"`
	SimilarTransactions []domain.SimilarTransaction `json:"similarTransactions"`
	Report              *domain.ReportSummary       `json:"report,omitempty"`
	Escalations         []EscalationResponse        `json:"escalations,omitempty"`
}

type AlertResponse struct {
	domain.Alert
	Report *domain.ReportSummary `json:"report"`
}

type CreateAlertRequest struct {
	Channel  string `json:"channel"`
	Message  string `json:"message"`
	ReportID string `json:"reportId,omitempty"`
	Type     string `json:"type,omitempty"`
}

type TestAlertResponse struct {
	Success bool   `json:"success"`
	AlertID string `json:"alertId"`
	Message string `json:"message"`
}

type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Success   bool              `json:"success"`
	User      domain.PublicUser `json:"user"`
	Token     string            `json:"token,omitempty"`
	ExpiresAt *time.Time        `json:"expiresAt,omitempty"`
}

type SearchResultResponse struct {
	TransactionResponse
	Score float64 `json:"score"`
}

type ReportResponse struct {
	domain.Report
	Transaction TransactionResponse `json:"transaction"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

func (h *APIHandler) DetectFraudHandler(w http.ResponseWriter, r *http.Request) {
	var req FraudDetectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Amount == nil {
		h.handleError(w, r, validator.Missing("amount"), "")
		return
	}

	result, err := h.processor.ProcessTransaction(r.Context(), domain.FraudCheck{
		UserID:      req.UserID,
		Amount:      *req.Amount,
		Description: req.Description,
		IP:          req.IP,
		UserAgent:   req.UserAgent,
		Merchant:    req.Merchant,
		Location:    req.Location,
		Timestamp:   req.Timestamp,
	})
	if err != nil {
		h.handleError(w, r, err, "Failed to perform fraud detection")
		return
	}

	response := FraudDetectionResponse{
		Success:     true,
		Transaction: newTransactionResponse(result.Transaction, nil),
		FraudAnalysis: FraudAnalysisResponse{
			FraudAnalysis:       result.FraudAnalysis,
			SimilarTransactions: result.SimilarTransactions,
		},
		SimilarTransactions: result.SimilarTransactions,
	}
	if result.Report != nil {
		response.Report = result.Report.Summary()
	}
	for _, esc := range result.Escalations {
		response.Escalations = append(response.Escalations, EscalationResponse{RuleID: esc.RuleID, Channel: esc.Channel})
	}

	h.sendJSON(w, response, http.StatusOK)
}

func (h *APIHandler) ListTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	views, err := h.processor.ListTransactions(r.Context(), r.URL.Query().Get("userId"), queryInt(r, "limit"))
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch transactions")
		return
	}

	transactions := make([]TransactionResponse, 0, len(views))
	for _, v := range views {
		transactions = append(transactions, newTransactionResponse(v.Transaction, v.User))
	}
	h.sendJSON(w, map[string]interface{}{
		"success":      true,
		"transactions": transactions,
	}, http.StatusOK)
}

func (h *APIHandler) SearchTransactionsHandler(w http.ResponseWriter, r *http.Request) {
	results, err := h.processor.Search(r.Context(), r.URL.Query().Get("q"), queryInt(r, "limit"))
	if err != nil {
		h.handleError(w, r, err, "Failed to search transactions")
		return
	}

	out := make([]SearchResultResponse, 0, len(results))
	for _, res := range results {
		out = append(out, SearchResultResponse{
			TransactionResponse: newTransactionResponse(res.Transaction, nil),
			Score:               res.Score,
		})
	}
	h.sendJSON(w, map[string]interface{}{
		"success": true,
		"results": out,
	}, http.StatusOK)
}

func (h *APIHandler) GetReportHandler(w http.ResponseWriter, r *http.Request) {
	view, err := h.processor.GetReport(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch report")
		return
	}
	h.sendJSON(w, ReportResponse{
		Report:      *view.Report,
		Transaction: newTransactionResponse(view.Transaction, nil),
	}, http.StatusOK)
}

func (h *APIHandler) ListAlertsHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	alerts, err := h.store.Alerts().ListByUser(r.Context(), principal.UserID)
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch alerts")
		return
	}

	summaries := make(map[string]*domain.ReportSummary)
	out := make([]AlertResponse, 0, len(alerts))
	for _, alert := range alerts {
		resp := AlertResponse{Alert: *alert}
		if alert.ReportID != "" {
			summary, seen := summaries[alert.ReportID]
			if !seen {
				if report, err := h.store.Reports().GetByID(r.Context(), alert.ReportID); err == nil {
					summary = report.Summary()
				}
				summaries[alert.ReportID] = summary
			}
			resp.Report = summary
		}
		out = append(out, resp)
	}
	h.sendJSON(w, out, http.StatusOK)
}

func (h *APIHandler) CreateAlertHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.ValidateAlert(req.Channel, req.Message, req.Type); err != nil {
		h.handleError(w, r, err, "")
		return
	}
	if req.ReportID != "" {
		if _, err := h.store.Reports().GetByID(r.Context(), req.ReportID); err != nil {
			h.handleError(w, r, err, "Failed to create alert")
			return
		}
	}

	channel, _ := domain.ParseAlertChannel(req.Channel)
	alert, err := h.alerts.Send(r.Context(), domain.AlertRequest{
		UserID:   principal.UserID,
		Channel:  channel,
		Message:  req.Message,
		ReportID: req.ReportID,
		Type:     req.Type,
	})
	if err != nil {
		h.handleError(w, r, err, "Failed to create alert")
		return
	}
	h.sendJSON(w, alert, http.StatusOK)
}

func (h *APIHandler) SendTestAlertHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	var req CreateAlertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validator.ValidateAlert(req.Channel, req.Message, req.Type); err != nil {
		h.handleError(w, r, err, "")
		return
	}

	channel, _ := domain.ParseAlertChannel(req.Channel)
	alert, err := h.alerts.SendTest(r.Context(), domain.AlertRequest{
		UserID:  principal.UserID,
		Channel: channel,
		Message: req.Message,
		Type:    req.Type,
	})
	if err != nil {
		h.handleError(w, r, err, "Failed to send alert")
		return
	}

	success := alert.Status == domain.AlertDelivered
	message := "Alert sent successfully"
	if !success {
		message = "Alert failed to send"
	}
	h.sendJSON(w, TestAlertResponse{Success: success, AlertID: alert.ID, Message: message}, http.StatusOK)
}

func (h *APIHandler) AnalyticsHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	analytics, err := h.analytics.GetAnalytics(r.Context(), principal.UserID, r.URL.Query().Get("range"))
	if err != nil {
		h.handleError(w, r, err, "Failed to fetch analytics")
		return
	}
	h.sendJSON(w, analytics, http.StatusOK)
}

func (h *APIHandler) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}

	user, err := h.accounts.Register(r.Context(), service.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
		Role:     req.Role,
	})
	if err != nil {
		h.handleError(w, r, err, "Failed to register")
		return
	}
	h.sendJSON(w, SessionResponse{Success: true, User: user.Public()}, http.StatusOK)
}

func (h *APIHandler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.sendError(w, r, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Email == "" || req.Password == "" {
		h.handleError(w, r, validator.Missing("email", "password"), "")
		return
	}

	session, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		h.handleError(w, r, err, "Failed to log in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	h.sendJSON(w, SessionResponse{
		Success:   true,
		User:      session.User,
		Token:     session.Token,
		ExpiresAt: &session.ExpiresAt,
	}, http.StatusOK)
}

func (h *APIHandler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	if err := h.accounts.Logout(r.Context(), principal.SessionID); err != nil {
		h.handleError(w, r, err, "Failed to log out")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     auth.CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
	h.sendJSON(w, map[string]bool{"success": true}, http.StatusOK)
}

func (h *APIHandler) SessionHandler(w http.ResponseWriter, r *http.Request) {
	principal, _ := auth.PrincipalFromContext(r.Context())

	user, err := h.accounts.CurrentUser(r.Context(), principal.UserID)
	if err != nil {
		h.handleError(w, r, err, "Failed to load session")
		return
	}
	h.sendJSON(w, SessionResponse{Success: true, User: user.Public()}, http.StatusOK)
}

func (h *APIHandler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	response := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	}
	if err := h.store.Ping(ctx); err != nil {
		h.logger.ErrorContext(ctx, "Store ping failed", slog.String("error", err.Error()))
		response["status"] = "unhealthy"
		h.sendJSON(w, response, http.StatusServiceUnavailable)
		return
	}
	h.sendJSON(w, response, http.StatusOK)
}

// handleError maps domain errors to a status; anything unrecognised is
// logged and answered with fallback as a 500.
func (h *APIHandler) handleError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, validator.ErrValidation):
		h.sendError(w, r, err.Error(), http.StatusBadRequest)
	case errors.Is(err, auth.ErrInvalidCredentials):
		h.sendError(w, r, "Invalid email or password", http.StatusUnauthorized)
	case errors.Is(err, auth.ErrUnauthorized):
		h.sendError(w, r, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, service.ErrEmailTaken):
		h.sendError(w, r, "Email already registered", http.StatusConflict)
	case errors.Is(err, repository.ErrNotFound):
		h.sendError(w, r, "Not found", http.StatusNotFound)
	case errors.Is(err, service.ErrDispatcherClosed):
		h.sendError(w, r, "Service is shutting down", http.StatusServiceUnavailable)
	default:
		h.logger.ErrorContext(r.Context(), "Request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
		h.sendError(w, r, fallback, http.StatusInternalServerError)
	}
}

func (h *APIHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("Failed to encode JSON response", slog.String("error", err.Error()))
	}
}

func (h *APIHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int) {
	if message == "" {
		message = http.StatusText(statusCode)
	}
	h.sendJSON(w, ErrorResponse{Error: message}, statusCode)

	h.logger.WarnContext(r.Context(), "API error response",
		slog.String("message", message),
		slog.Int("status", statusCode))
}

func newTransactionResponse(tx *domain.Transaction, user *domain.PublicUser) TransactionResponse {
	return TransactionResponse{
		ID:           tx.ID,
		UserID:       tx.UserID,
		Amount:       tx.Amount,
		Description:  tx.Description,
		IP:           tx.IP,
		RiskLevel:    tx.RiskLevel,
		IsFraudulent: tx.IsFraudulent,
		CreatedAt:    tx.CreatedAt,
		User:         user,
	}
}

// queryInt returns 0 for a missing or malformed parameter.
func queryInt(r *http.Request, name string) int {
	n, err := strconv.Atoi(r.URL.Query().Get(name))
	if err != nil {
		return 0
	}
	return n
}
