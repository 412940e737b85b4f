package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iwvelando/credit-simulator/internal/export"
	"github.com/iwvelando/credit-simulator/internal/message"
	"github.com/iwvelando/credit-simulator/internal/notify"
	"github.com/iwvelando/credit-simulator/internal/rates"
	"github.com/iwvelando/credit-simulator/internal/settings"
	"github.com/iwvelando/credit-simulator/internal/simulation"
	"github.com/iwvelando/credit-simulator/internal/storage"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/iwvelando/credit-simulator/pkg/testutil"
	"go.uber.org/zap"
)

var fixedNow = time.Date(2025, time.March, 10, 15, 0, 0, 0, time.UTC)

type recordingSender struct {
	mu       sync.Mutex
	messages []string
	err      error
}

func (s *recordingSender) Send(_ context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return notify.ErrEmptyMessage
	}
	if s.err != nil {
		return s.err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
	return nil
}

type testServer struct {
	handler http.Handler
	repo    *storage.Memory
	sender  *recordingSender
}

func newTestServer(t *testing.T, maxBodySize int64) testServer {
	t.Helper()

	repo := storage.NewMemory()
	provider, err := settings.NewProvider(settings.Config{
		BaseTable: rates.DefaultTable(),
		Store:     repo,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewProvider() error = %v", err)
	}

	sender := &recordingSender{}
	handler := NewHandler(Dependencies{
		Logger:     zap.NewNop(),
		Settings:   provider,
		Repository: repo,
		Calculator: simulation.Calculator{ReverseCalculation: true},
		Renderer:   message.Renderer{Now: func() time.Time { return fixedNow }, Location: time.UTC},
		Sender:     sender,
		Location:   time.UTC,
		Now:        func() time.Time { return fixedNow },
	}, maxBodySize, "1.2.3")

	return testServer{handler: handler, repo: repo, sender: sender}
}

func perform(t *testing.T, handler http.Handler, method, path string, payload interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var body bytes.Buffer
	if payload != nil {
		if err := json.NewEncoder(&body).Encode(payload); err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
	}

	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, target interface{}) {
	t.Helper()
	if err := json.Unmarshal(rr.Body.Bytes(), target); err != nil {
		t.Fatalf("failed to decode response %q: %v", rr.Body.String(), err)
	}
}

func autoRequest(save bool) map[string]interface{} {
	return map[string]interface{}{
		"categoryKey": "auto",
		"creditValue": "10.000,00",
		"selection":   map[string]interface{}{"mode": "manual", "manual": []string{"12"}},
		"user":        "Ana",
		"company":     "Acme",
		"save":        save,
	}
}

func TestHandleCreateSimulationSuccess(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	rr := perform(t, srv.handler, http.MethodPost, "/api/simulations", autoRequest(true))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp simulationResponse
	decode(t, rr, &resp)

	plan := testutil.FindPlan(resp.Result, 12)
	if plan == nil {
		t.Fatalf("expected a 12x plan, got %+v", resp.Result.InstallmentPlans)
	}
	if plan.ValueDisplay != "R$ 1.083,33" {
		t.Errorf("12x value = %s, expected R$ 1.083,33", plan.ValueDisplay)
	}
	if !strings.Contains(resp.Message, "*SIMULAÇÃO AUTOMÓVEL* (030)") {
		t.Errorf("message missing header:\n%s", resp.Message)
	}
	if !strings.Contains(resp.Message, "10/03/2025") || !strings.Contains(resp.Message, "Ana (Acme)") {
		t.Errorf("message missing date or attendant:\n%s", resp.Message)
	}
	if resp.PlainText == "" {
		t.Error("expected plain text rendering")
	}
	if resp.Record == nil || resp.Record.ID == "" {
		t.Fatalf("expected saved record, got %+v", resp.Record)
	}

	records, _ := srv.repo.ListSimulations(context.Background())
	if len(records) != 1 || records[0].UserDisplayName != "Ana" {
		t.Fatalf("expected one stored record for Ana, got %+v", records)
	}
}

func TestHandleCreateSimulationWithoutSave(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	rr := perform(t, srv.handler, http.MethodPost, "/api/simulations", autoRequest(false))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp simulationResponse
	decode(t, rr, &resp)
	if resp.Record != nil {
		t.Errorf("expected no record, got %+v", resp.Record)
	}
	records, _ := srv.repo.ListSimulations(context.Background())
	if len(records) != 0 {
		t.Errorf("expected nothing stored, got %d records", len(records))
	}
}

func TestHandleCreateSimulationErrors(t *testing.T) {
	tests := []struct {
		name         string
		payload      map[string]interface{}
		expectStatus int
		expectField  string
	}{
		{
			name: "invalid credit value",
			payload: map[string]interface{}{
				"categoryKey": "auto",
				"creditValue": "abc",
				"selection":   map[string]interface{}{"mode": "manual", "manual": []string{"12"}},
			},
			expectStatus: http.StatusBadRequest,
			expectField:  "creditValue",
		},
		{
			name: "custom fee missing",
			payload: map[string]interface{}{
				"categoryKey": "taxa",
				"creditValue": "10000",
				"selection":   map[string]interface{}{"mode": "manual", "manual": []string{"12"}},
			},
			expectStatus: http.StatusBadRequest,
			expectField:  "customFee",
		},
		{
			name: "no selection",
			payload: map[string]interface{}{
				"categoryKey": "auto",
				"creditValue": "10000",
			},
			expectStatus: http.StatusBadRequest,
			expectField:  "installments",
		},
		{
			name: "no selection and no credit value",
			payload: map[string]interface{}{
				"categoryKey": "auto",
			},
			expectStatus: http.StatusBadRequest,
			expectField:  "installments",
		},
		{
			name: "unknown category",
			payload: map[string]interface{}{
				"categoryKey": "barco",
				"creditValue": "10000",
				"selection":   map[string]interface{}{"mode": "manual", "manual": []string{"12"}},
			},
			expectStatus: http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)
			rr := perform(t, srv.handler, http.MethodPost, "/api/simulations", tt.payload)

			if rr.Code != tt.expectStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectStatus, rr.Code, rr.Body.String())
			}
			var resp map[string]string
			decode(t, rr, &resp)
			if resp["error"] == "" {
				t.Error("expected error message")
			}
			if tt.expectField != "" && resp["field"] != tt.expectField {
				t.Errorf("field = %q, expected %q", resp["field"], tt.expectField)
			}
		})
	}
}

func TestHandleCreateSimulationMalformedJSON(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	req := httptest.NewRequest(http.MethodPost, "/api/simulations", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	srv.handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected status 400, got %d", rr.Code)
	}
}

func TestHandleCreateSimulationBodyTooLarge(t *testing.T) {
	srv := newTestServer(t, 32)

	rr := perform(t, srv.handler, http.MethodPost, "/api/simulations", autoRequest(false))
	if rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected status 413, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestHandleCreateSimulationByInstallment(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	payload := map[string]interface{}{
		"categoryKey":   "auto",
		"creditValue":   "1.300,00",
		"byInstallment": true,
		"selection":     map[string]interface{}{"mode": "manual", "manual": []string{"10"}},
	}
	rr := perform(t, srv.handler, http.MethodPost, "/api/simulations", payload)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp simulationResponse
	decode(t, rr, &resp)

	if !resp.Result.ByInstallment {
		t.Error("expected a by-installment result")
	}
	plan := testutil.FindPlan(resp.Result, 10)
	if plan == nil || plan.EstimatedCreditDisplay != "R$ 10.000,00" {
		t.Fatalf("expected estimated credit R$ 10.000,00, got %+v", plan)
	}
	if testutil.FindVariation(resp.Result, "Parcela 30% Menor") == nil {
		t.Errorf("expected lower variation, got %+v", resp.Result.Variations)
	}
	if testutil.FindVariation(resp.Result, "Parcela 40% Maior") == nil {
		t.Errorf("expected higher variation, got %+v", resp.Result.Variations)
	}
}

func TestHandleSimulationHistory(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	for i := 0; i < 2; i++ {
		if rr := perform(t, srv.handler, http.MethodPost, "/api/simulations", autoRequest(true)); rr.Code != http.StatusOK {
			t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
		}
	}

	rr := perform(t, srv.handler, http.MethodGet, "/api/simulations", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var list struct {
		Simulations []storage.Record `json:"simulations"`
	}
	decode(t, rr, &list)
	if len(list.Simulations) != 2 {
		t.Fatalf("expected 2 simulations, got %d", len(list.Simulations))
	}

	rr = perform(t, srv.handler, http.MethodGet, "/api/analytics?user=Ana", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var summary struct {
		SimulationsToday int    `json:"simulationsToday"`
		TopUser          string `json:"topUser"`
	}
	decode(t, rr, &summary)
	if summary.SimulationsToday != 2 {
		t.Errorf("simulationsToday = %d, expected 2", summary.SimulationsToday)
	}

	rr = perform(t, srv.handler, http.MethodDelete, "/api/simulations", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	var deleted map[string]int64
	decode(t, rr, &deleted)
	if deleted["deleted"] != 2 {
		t.Errorf("deleted = %d, expected 2", deleted["deleted"])
	}

	rr = perform(t, srv.handler, http.MethodGet, "/api/simulations", nil)
	decode(t, rr, &list)
	if len(list.Simulations) != 0 {
		t.Errorf("expected empty history after delete, got %d", len(list.Simulations))
	}
}

func TestHandleSimulationExport(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)
	perform(t, srv.handler, http.MethodPost, "/api/simulations", autoRequest(true))

	rr := perform(t, srv.handler, http.MethodGet, "/api/simulations/export", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if ct := rr.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("Content-Type = %q", ct)
	}
	if cd := rr.Header().Get("Content-Disposition"); !strings.Contains(cd, "simulacoes-2025-03-10.xlsx") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if rr.Body.Len() == 0 {
		t.Error("expected spreadsheet body")
	}
}

func TestHandleSend(t *testing.T) {
	tests := []struct {
		name         string
		message      string
		senderErr    error
		expectStatus int
		expectSent   int
	}{
		{
			name:         "delivered",
			message:      "*SIMULAÇÃO*",
			expectStatus: http.StatusAccepted,
			expectSent:   1,
		},
		{
			name:         "empty message",
			message:      "  ",
			expectStatus: http.StatusBadRequest,
		},
		{
			name:         "channel failure",
			message:      "texto",
			senderErr:    errors.New("telegram down"),
			expectStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)
			srv.sender.err = tt.senderErr

			rr := perform(t, srv.handler, http.MethodPost, "/api/simulations/send", map[string]string{"message": tt.message})
			if rr.Code != tt.expectStatus {
				t.Fatalf("expected status %d, got %d: %s", tt.expectStatus, rr.Code, rr.Body.String())
			}
			if len(srv.sender.messages) != tt.expectSent {
				t.Errorf("sent %d messages, expected %d", len(srv.sender.messages), tt.expectSent)
			}
		})
	}
}

func TestSenderChannel(t *testing.T) {
	if got := senderChannel(notify.LogSender{}); got != "log" {
		t.Errorf("senderChannel(LogSender) = %q", got)
	}
	if got := senderChannel(&recordingSender{}); got != "custom" {
		t.Errorf("senderChannel(custom) = %q", got)
	}
}

func TestHandleOptions(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	rr := perform(t, srv.handler, http.MethodGet, "/api/options", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}

	var resp struct {
		Categories         []categoryOptions `json:"categories"`
		ReverseCalculation bool              `json:"reverseCalculation"`
	}
	decode(t, rr, &resp)

	if len(resp.Categories) != rates.DefaultTable().Len() {
		t.Fatalf("got %d categories, expected %d", len(resp.Categories), rates.DefaultTable().Len())
	}
	if resp.Categories[0].Key != "auto" || len(resp.Categories[0].Options) == 0 {
		t.Errorf("first category = %+v", resp.Categories[0])
	}
	if !resp.ReverseCalculation {
		t.Error("expected reverse calculation flag")
	}
}

func TestHandleTemplate(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	rr := perform(t, srv.handler, http.MethodGet, "/api/settings/template", nil)
	var got map[string]string
	decode(t, rr, &got)
	if got["template"] != message.DefaultTemplate {
		t.Errorf("expected default template, got %q", got["template"])
	}

	custom := "Crédito {VALOR_CREDITO}\n{LISTA_PARCELAS}"
	rr = perform(t, srv.handler, http.MethodPut, "/api/settings/template", map[string]string{"template": custom})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = perform(t, srv.handler, http.MethodGet, "/api/settings/template", nil)
	decode(t, rr, &got)
	if got["template"] != custom {
		t.Errorf("template = %q, expected %q", got["template"], custom)
	}

	rr = perform(t, srv.handler, http.MethodPost, "/api/simulations", autoRequest(false))
	var resp simulationResponse
	decode(t, rr, &resp)
	if resp.Message != "Crédito R$ 10.000,00\n• 12× de R$ 1.083,33" {
		t.Errorf("message = %q", resp.Message)
	}

	rr = perform(t, srv.handler, http.MethodPut, "/api/settings/template", map[string]string{"template": " "})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for empty template, got %d", rr.Code)
	}
}

func TestHandleVariables(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	rr := perform(t, srv.handler, http.MethodGet, "/api/settings/variables", nil)
	var got struct {
		Variables map[string]interface{} `json:"variables"`
	}
	decode(t, rr, &got)
	if got.Variables["auto_taxaAdm"] != 0.3 {
		t.Errorf("auto_taxaAdm = %v, expected 0.3", got.Variables["auto_taxaAdm"])
	}

	rr = perform(t, srv.handler, http.MethodPut, "/api/settings/variables",
		map[string]interface{}{"variables": map[string]interface{}{"auto_taxaAdm": 0.2}})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	decode(t, rr, &got)
	if got.Variables["auto_taxaAdm"] != 0.2 {
		t.Errorf("auto_taxaAdm = %v, expected 0.2", got.Variables["auto_taxaAdm"])
	}

	rr = perform(t, srv.handler, http.MethodPost, "/api/simulations", autoRequest(false))
	var resp simulationResponse
	decode(t, rr, &resp)
	if plan := testutil.FindPlan(resp.Result, 12); plan == nil || plan.ValueDisplay != "R$ 1.000,00" {
		t.Errorf("expected R$ 1.000,00 with the updated fee, got %+v", plan)
	}

	rr = perform(t, srv.handler, http.MethodPut, "/api/settings/variables",
		map[string]interface{}{"variables": map[string]interface{}{"semcategoria": 1}})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for malformed key, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = perform(t, srv.handler, http.MethodPut, "/api/settings/variables", map[string]interface{}{})
	if rr.Code != http.StatusBadRequest {
		t.Errorf("expected status 400 for missing variables, got %d", rr.Code)
	}
}

func TestHandleSettingsExport(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	rr := perform(t, srv.handler, http.MethodGet, "/api/settings/export", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}

	var resp map[string]string
	decode(t, rr, &resp)
	yamlText := resp["settingsYaml"]

	categoriesIdx := strings.Index(yamlText, "categories:")
	templateIdx := strings.Index(yamlText, "template:")
	if categoriesIdx != 0 || templateIdx <= categoriesIdx {
		t.Fatalf("expected categories before template, got:\n%s", yamlText)
	}
	for _, want := range []string{"key: auto", "adminFeeRate: 0.3", "value: 12x 24x 36x"} {
		if !strings.Contains(yamlText, want) {
			t.Errorf("export missing %q:\n%s", want, yamlText)
		}
	}
}

func TestHandleReload(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	rr := perform(t, srv.handler, http.MethodPost, "/api/settings/reload", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp struct {
		Categories []string `json:"categories"`
	}
	decode(t, rr, &resp)
	if len(resp.Categories) != rates.DefaultTable().Len() {
		t.Errorf("reloaded categories = %v", resp.Categories)
	}

	rr = perform(t, srv.handler, http.MethodGet, "/api/settings/reload", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status 405, got %d", rr.Code)
	}
}

func TestHandleVersion(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	rr := perform(t, srv.handler, http.MethodGet, "/api/version", nil)
	var resp map[string]string
	decode(t, rr, &resp)
	if resp["version"] != "1.2.3" {
		t.Errorf("version = %q", resp["version"])
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)
	perform(t, srv.handler, http.MethodPost, "/api/simulations", autoRequest(false))

	rr := perform(t, srv.handler, http.MethodGet, "/metrics", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rr.Code)
	}
	for _, want := range []string{"credit_simulator_simulations_total", "credit_simulator_http_request_duration_seconds"} {
		if !strings.Contains(rr.Body.String(), want) {
			t.Errorf("metrics output missing %s", want)
		}
	}
}

func TestMethodNotAllowed(t *testing.T) {
	srv := newTestServer(t, constants.DefaultMaxBodySizeBytes)

	paths := map[string]string{
		"/api/simulations":          http.MethodPut,
		"/api/simulations/export":   http.MethodPost,
		"/api/simulations/send":     http.MethodGet,
		"/api/analytics":            http.MethodPost,
		"/api/options":              http.MethodDelete,
		"/api/settings/template":    http.MethodPost,
		"/api/settings/variables":   http.MethodDelete,
		"/api/settings/export":      http.MethodPost,
		"/api/version":              http.MethodPost,
	}
	for path, method := range paths {
		rr := perform(t, srv.handler, method, path, nil)
		if rr.Code != http.StatusMethodNotAllowed {
			t.Errorf("%s %s: expected status 405, got %d", method, path, rr.Code)
		}
	}
}
