package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/menuflow/menuflow/internal/engine"
	"github.com/menuflow/menuflow/internal/flow"
	"github.com/menuflow/menuflow/internal/messaging"
	"github.com/menuflow/menuflow/internal/models"
	"github.com/menuflow/menuflow/internal/store"
	"github.com/menuflow/menuflow/internal/twiliowhatsapp"
)

// testServer wires a server over the default flow, a Twilio mock backend,
// and an in-memory store. The responder loop is not started; handlers that
// inject messages only assert acceptance.
func testServer(t *testing.T) (*Server, *engine.Engine, *messaging.TwilioService, *store.InMemoryStore) {
	t.Helper()
	eng := engine.New(flow.Default())
	svc := messaging.NewTwilioService(twiliowhatsapp.NewMockClient())
	st := store.NewInMemoryStore()
	return NewServer(eng, svc, st), eng, svc, st
}

func decodeAPIResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response body: %v", err)
	}
	return resp
}

func TestTwilioWebhookHandler(t *testing.T) {
	s, _, svc, _ := testServer(t)

	form := "From=whatsapp%3A%2B15551234567&Body=buy"
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}
	resp := decodeAPIResponse(t, rec)
	if resp.Status != string(models.APIStatusRecorded) {
		t.Errorf("response status = %q, want %q", resp.Status, models.APIStatusRecorded)
	}

	select {
	case got := <-svc.Responses():
		if got.From != "15551234567" {
			t.Errorf("injected From = %q, want canonicalized %q", got.From, "15551234567")
		}
		if got.Body != "buy" {
			t.Errorf("injected Body = %q, want %q", got.Body, "buy")
		}
	case <-time.After(time.Second):
		t.Error("webhook did not inject the message")
	}
}

func TestTwilioWebhookHandlerButtonPayloadWins(t *testing.T) {
	s, _, svc, _ := testServer(t)

	form := "From=%2B15551234567&Body=Buy+a+phone&ButtonPayload=buy"
	req := httptest.NewRequest(http.MethodPost, "/webhook/twilio", strings.NewReader(form))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	got := <-svc.Responses()
	if got.Body != "buy" {
		t.Errorf("injected Body = %q, want option id %q", got.Body, "buy")
	}
}

func TestTwilioWebhookHandlerErrors(t *testing.T) {
	s, _, _, _ := testServer(t)

	tests := []struct {
		name       string
		method     string
		form       string
		wantStatus int
	}{
		{"wrong method", http.MethodGet, "", http.StatusMethodNotAllowed},
		{"missing from", http.MethodPost, "Body=hello", http.StatusBadRequest},
		{"invalid from", http.MethodPost, "From=garbage&Body=hello", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/webhook/twilio", strings.NewReader(tt.form))
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			rec := httptest.NewRecorder()
			s.routes().ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestResponseHandler(t *testing.T) {
	s, _, svc, _ := testServer(t)

	body := `{"from":"+15551234567","body":"menu"}`
	req := httptest.NewRequest(http.MethodPost, "/response", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusCreated, rec.Body.String())
	}

	got := <-svc.Responses()
	if got.From != "15551234567" || got.Body != "menu" {
		t.Errorf("injected response = %+v, want canonical from and body", got)
	}
	if got.Time == 0 {
		t.Error("injected response Time = 0, want defaulted timestamp")
	}
}

func TestResponseHandlerErrors(t *testing.T) {
	s, _, _, _ := testServer(t)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"malformed json", `{"from":`, http.StatusBadRequest},
		{"missing from", `{"body":"hi"}`, http.StatusBadRequest},
		{"invalid from", `{"from":"###","body":"hi"}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/response", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			rec := httptest.NewRecorder()
			s.routes().ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decodeAPIResponse(t, rec)
			if resp.Status != string(models.APIStatusError) {
				t.Errorf("response status = %q, want %q", resp.Status, models.APIStatusError)
			}
		})
	}
}

func TestSessionsHandlerByUser(t *testing.T) {
	s, eng, _, _ := testServer(t)
	eng.HandleMessage("15551234567", "buy")

	req := httptest.NewRequest(http.MethodGet, "/sessions?user=%2B15551234567", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	resp := decodeAPIResponse(t, rec)
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result = %T, want session object", resp.Result)
	}
	if result["current_step_id"] != flow.DefaultStepAskBrand {
		t.Errorf("current_step_id = %v, want %q", result["current_step_id"], flow.DefaultStepAskBrand)
	}
}

func TestSessionsHandlerUnknownUser(t *testing.T) {
	s, _, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/sessions?user=19998887777", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
}

func TestSessionsHandlerList(t *testing.T) {
	s, _, _, st := testServer(t)
	if err := st.SaveSession(models.SessionRecord{UserID: "15551234567", FlowName: "phone-shop", CurrentStepID: "confirm"}); err != nil {
		t.Fatalf("SaveSession() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/sessions", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeAPIResponse(t, rec)
	result, ok := resp.Result.([]interface{})
	if !ok {
		t.Fatalf("result = %T, want list", resp.Result)
	}
	if len(result) != 1 {
		t.Errorf("len(result) = %d, want 1", len(result))
	}
}

func TestMessagesHandler(t *testing.T) {
	s, _, _, st := testServer(t)
	if err := st.AddMessage(models.MessageRecord{ID: "m1", UserID: "15551234567", Direction: models.DirectionInbound, Body: "menu", Time: time.Now()}); err != nil {
		t.Fatalf("AddMessage() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/messages?user=15551234567", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	resp := decodeAPIResponse(t, rec)
	result, ok := resp.Result.([]interface{})
	if !ok {
		t.Fatalf("result = %T, want list", resp.Result)
	}
	if len(result) != 1 {
		t.Errorf("len(result) = %d, want 1", len(result))
	}

	// The user parameter is required.
	req = httptest.NewRequest(http.MethodGet, "/messages", nil)
	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d without user, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestReceiptsHandler(t *testing.T) {
	s, _, _, st := testServer(t)
	if err := st.AddReceipt(models.ReceiptRecord{ID: "r1", UserID: "15551234567", Status: models.MessageStatusDelivered, Time: time.Now()}); err != nil {
		t.Fatalf("AddReceipt() error = %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/receipts?user=%2B15551234567", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d, body %s", rec.Code, http.StatusOK, rec.Body.String())
	}
	resp := decodeAPIResponse(t, rec)
	result, ok := resp.Result.([]interface{})
	if !ok {
		t.Fatalf("result = %T, want list", resp.Result)
	}
	if len(result) != 1 {
		t.Errorf("len(result) = %d, want 1", len(result))
	}

	// The user parameter is required.
	req = httptest.NewRequest(http.MethodGet, "/receipts", nil)
	rec = httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d without user, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestFlowHandler(t *testing.T) {
	s, _, _, _ := testServer(t)

	req := httptest.NewRequest(http.MethodGet, "/flow", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeAPIResponse(t, rec)
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result = %T, want flow summary", resp.Result)
	}
	if result["name"] != "phone-shop" {
		t.Errorf("name = %v, want %q", result["name"], "phone-shop")
	}
	if result["start"] != flow.DefaultStepWelcome {
		t.Errorf("start = %v, want %q", result["start"], flow.DefaultStepWelcome)
	}
	steps, ok := result["steps"].([]interface{})
	if !ok || len(steps) != 8 {
		t.Errorf("steps = %v, want 8 step ids", result["steps"])
	}
}

func TestHealthHandler(t *testing.T) {
	s, eng, _, _ := testServer(t)
	eng.HandleMessage("15551234567", "menu")

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	s.routes().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	resp := decodeAPIResponse(t, rec)
	result, ok := resp.Result.(map[string]interface{})
	if !ok {
		t.Fatalf("result = %T, want health object", resp.Result)
	}
	if result["sessions"] != float64(1) {
		t.Errorf("sessions = %v, want 1", result["sessions"])
	}
}
