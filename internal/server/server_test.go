package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Nickdtt/ia-crm/internal/conversation"
	apperrors "github.com/Nickdtt/ia-crm/internal/errors"
	"github.com/Nickdtt/ia-crm/internal/health"
	"github.com/Nickdtt/ia-crm/internal/leadcache"
	"github.com/Nickdtt/ia-crm/internal/messages"
	"github.com/Nickdtt/ia-crm/internal/nlu"
	"github.com/Nickdtt/ia-crm/internal/ratelimit"
	"github.com/Nickdtt/ia-crm/internal/repository"
	"github.com/Nickdtt/ia-crm/internal/scheduling"
	"github.com/Nickdtt/ia-crm/internal/session"
	"github.com/Nickdtt/ia-crm/pkg/config"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fallbackUnderstander answers with the deterministic extractors only, which
// is enough to drive the dialogue through HTTP.
type fallbackUnderstander struct {
	loc *time.Location
	now time.Time
}

func (f fallbackUnderstander) ClassifyIntent(ctx context.Context, text string) (nlu.Intent, error) {
	return nlu.ClassifyFallback(text), nil
}

func (f fallbackUnderstander) ExtractDateTime(ctx context.Context, text string, contextDate *time.Time) (time.Time, error) {
	if t, ok := nlu.FallbackDateTime(text, f.now, f.loc); ok {
		return t, nil
	}
	return time.Time{}, nlu.ErrNoDateTime
}

func (f fallbackUnderstander) AnswerQuestion(ctx context.Context, question string, docs []string) (string, error) {
	return "Somos um estúdio de crescimento digital.", nil
}

type emptyRetriever struct{}

func (emptyRetriever) Search(ctx context.Context, query string, topK int) ([]string, error) {
	return nil, nil
}

func newTestServer(t *testing.T) (*Server, *scheduling.Booking) {
	t.Helper()

	loc, err := time.LoadLocation("America/Sao_Paulo")
	require.NoError(t, err)

	clock := time.Date(2026, 9, 1, 8, 0, 0, 0, loc)
	now := func() time.Time { return clock }

	leads := repository.NewLeadMemory()
	appts := repository.NewAppointmentMemory()
	avail := scheduling.NewAvailability(appts, loc, testLogger())
	booking := scheduling.NewBooking(leads, appts, loc, 40, testLogger()).WithClock(now)

	catalog, err := messages.LoadFromDir("../messages")
	require.NoError(t, err)

	engine := conversation.NewEngine(conversation.Options{
		Store:        session.NewMemoryStore(),
		Understander: fallbackUnderstander{loc: loc, now: clock},
		Retriever:    emptyRetriever{},
		Availability: avail,
		Booking:      booking,
		Leads:        leads,
		LeadCache:    leadcache.NewCache(nil),
		Catalog:      catalog,
		ErrHandler:   apperrors.NewHandler(testLogger(), false),
		Log:          testLogger(),
	}).WithClock(now)

	checker := health.NewChecker(testLogger())
	checker.AddCheck("self", health.CheckFunc(func(ctx context.Context) error { return nil }))

	srv := New(Options{
		Engine:       engine,
		Booking:      booking,
		Availability: avail,
		Checker:      checker,
		Limiter:      ratelimit.NewMemoryLimiter(testLogger()),
		Rules: ratelimit.NewRules(config.LimitsConfig{
			PerSession: config.RateRule{Limit: 30, Window: "1m"},
			Global:     config.RateRule{Limit: 1000, Window: "1m"},
		}),
		Log: testLogger(),
	})

	return srv, booking
}

func postJSON(t *testing.T, handler http.Handler, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	return rec
}

func sendMessage(t *testing.T, handler http.Handler, sessionID, message string) chatMessageResponse {
	t.Helper()

	rec := postJSON(t, handler, "/api/v1/chat/message", chatMessageRequest{
		SessionID: sessionID,
		Message:   message,
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp chatMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestChatMessageValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	testCases := []struct {
		name string
		body chatMessageRequest
	}{
		{name: "missing session", body: chatMessageRequest{Message: "olá"}},
		{name: "missing message", body: chatMessageRequest{SessionID: "sess-http-001"}},
		{name: "blank message", body: chatMessageRequest{SessionID: "sess-http-001", Message: "   "}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			rec := postJSON(t, handler, "/api/v1/chat/message", tc.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestChatFlowOverHTTP(t *testing.T) {
	srv, booking := newTestServer(t)
	handler := srv.Handler()
	id := "sess-http-flow"

	resp := sendMessage(t, handler, id, "olá")
	assert.Contains(t, resp.Response, "Isso não é uma agência")

	sendMessage(t, handler, id, "quero agendar uma reunião")
	sendMessage(t, handler, id, "Maria Clara Souza")
	sendMessage(t, handler, id, "maria@ex.com")
	resp = sendMessage(t, handler, id, "Preciso de mais clientes para minha clínica")
	assert.Equal(t, "scheduling", resp.ConversationMode)

	sendMessage(t, handler, id, "ok")
	sendMessage(t, handler, id, "sim")
	resp = sendMessage(t, handler, id, "pode ser 17/09 às 14h")
	assert.Contains(t, resp.Response, "17/09/2026 às 14:00")
	assert.Equal(t, "completed", resp.ConversationMode)

	// The booking is visible through the admin listing.
	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/appointments?status=pending", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var listing struct {
		Appointments []appointmentView `json:"appointments"`
		Total        int               `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listing))
	require.Equal(t, 1, listing.Total)
	assert.Equal(t, "pending", listing.Appointments[0].Status)

	// And can be cancelled by the team.
	cancelPath := fmt.Sprintf("/api/v1/admin/appointments/%s/cancel", listing.Appointments[0].ID)
	rec = postJSON(t, handler, cancelPath, cancelRequest{Reason: "Cliente pediu por email"})
	require.Equal(t, http.StatusOK, rec.Code)

	var cancelled appointmentView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cancelled))
	assert.Equal(t, "cancelled", cancelled.Status)
	assert.Equal(t, "Cliente pediu por email", cancelled.CancellationReason)

	_ = booking
}

func TestChatReset(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	sendMessage(t, handler, "sess-http-reset", "olá")

	rec := postJSON(t, handler, "/api/v1/chat/reset", chatResetRequest{SessionID: "sess-http-reset"})
	assert.Equal(t, http.StatusOK, rec.Code)

	// Reset session greets from scratch.
	resp := sendMessage(t, handler, "sess-http-reset", "oi")
	assert.Contains(t, resp.Response, "Isso não é uma agência")
}

func TestAdminBlocksAndSlots(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/api/v1/admin/blocks", blockRequest{Date: "2026-09-17", Shift: "morning"})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/admin/slots?date=2026-09-17", nil)
	getRec := httptest.NewRecorder()
	handler.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)

	var slots struct {
		Slots []string `json:"slots"`
	}
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &slots))
	assert.Equal(t, []string{"14:00", "15:00", "16:00", "17:00"}, slots.Slots)

	req = httptest.NewRequest(http.MethodDelete, "/api/v1/admin/blocks?date=2026-09-17", nil)
	delRec := httptest.NewRecorder()
	handler.ServeHTTP(delRec, req)
	require.Equal(t, http.StatusOK, delRec.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/admin/slots?date=2026-09-17", nil)
	getRec = httptest.NewRecorder()
	handler.ServeHTTP(getRec, req)
	require.Equal(t, http.StatusOK, getRec.Code)
	require.NoError(t, json.Unmarshal(getRec.Body.Bytes(), &slots))
	assert.Len(t, slots.Slots, 7)
}

func TestAdminBlockValidation(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	rec := postJSON(t, handler, "/api/v1/admin/blocks", blockRequest{Date: "17/09/2026"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = postJSON(t, handler, "/api/v1/admin/blocks", blockRequest{Date: "2026-09-17", Shift: "night"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRateLimitPerSession(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.rules = ratelimit.NewRules(config.LimitsConfig{
		PerSession: config.RateRule{Limit: 2, Window: "1m"},
		Global:     config.RateRule{Limit: 1000, Window: "1m"},
	})
	handler := srv.Handler()

	sendMessage(t, handler, "sess-http-limit", "olá")
	sendMessage(t, handler, "sess-http-limit", "oi")

	rec := postJSON(t, handler, "/api/v1/chat/message", chatMessageRequest{
		SessionID: "sess-http-limit",
		Message:   "oi de novo",
	})
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)

	// Other sessions are unaffected.
	sendMessage(t, handler, "sess-http-other", "olá")
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	handler := srv.Handler()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Status     string            `json:"status"`
		Components map[string]string `json:"components"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body.Status)
	assert.Equal(t, "OK", body.Components["self"])
}
