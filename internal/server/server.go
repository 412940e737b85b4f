package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/iwvelando/credit-simulator/internal/amqp"
	"github.com/iwvelando/credit-simulator/internal/analytics"
	"github.com/iwvelando/credit-simulator/internal/export"
	"github.com/iwvelando/credit-simulator/internal/message"
	"github.com/iwvelando/credit-simulator/internal/metrics"
	"github.com/iwvelando/credit-simulator/internal/notify"
	"github.com/iwvelando/credit-simulator/internal/rates"
	"github.com/iwvelando/credit-simulator/internal/settings"
	"github.com/iwvelando/credit-simulator/internal/simulation"
	"github.com/iwvelando/credit-simulator/internal/storage"
	"github.com/iwvelando/credit-simulator/internal/tracing"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/iwvelando/credit-simulator/pkg/validation"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Dependencies are the collaborators the HTTP API works with.
type Dependencies struct {
	Logger     *zap.Logger
	Settings   *settings.Provider
	Repository storage.Repository
	Calculator simulation.Calculator
	Renderer   message.Renderer
	Sender     notify.Sender
	Location   *time.Location
	Now        func() time.Time
}

type handler struct {
	deps        Dependencies
	logger      *zap.Logger
	maxBodySize int64
	version     string
	now         func() time.Time
}

// NewHandler constructs the HTTP handler that serves the simulation API.
func NewHandler(deps Dependencies, maxBodySize int64, version string) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	if maxBodySize <= 0 {
		maxBodySize = constants.DefaultMaxBodySizeBytes
	}

	trimmedVersion := strings.TrimSpace(version)
	if trimmedVersion == "" {
		trimmedVersion = "dev"
	}

	now := deps.Now
	if now == nil {
		now = time.Now
	}
	if deps.Location == nil {
		deps.Location = time.UTC
	}

	h := &handler{deps: deps, logger: logger, maxBodySize: maxBodySize, version: trimmedVersion, now: now}

	mux := http.NewServeMux()

	// Simulations: calculate, history, export and delivery
	h.route(mux, "/api/simulations", h.handleSimulations)
	h.route(mux, "/api/simulations/export", h.handleSimulationExport)
	h.route(mux, "/api/simulations/send", h.handleSend)

	// Analytics panel data
	h.route(mux, "/api/analytics", h.handleAnalytics)

	// Category options for the simulation form
	h.route(mux, "/api/options", h.handleOptions)

	// Settings administration
	h.route(mux, "/api/settings/template", h.handleTemplate)
	h.route(mux, "/api/settings/variables", h.handleVariables)
	h.route(mux, "/api/settings/export", h.handleSettingsExport)
	h.route(mux, "/api/settings/reload", h.handleReload)

	// Version endpoint for UI metadata
	h.route(mux, "/api/version", h.handleVersion)

	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func (h *handler) route(mux *http.ServeMux, pattern string, fn http.HandlerFunc) {
	mux.HandleFunc(pattern, func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		fn(recorder, r)
		metrics.RequestDuration.WithLabelValues(pattern, strconv.Itoa(recorder.status)).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

type simulationRequest struct {
	simulation.Input
	ByInstallment bool   `json:"byInstallment,omitempty"`
	User          string `json:"user,omitempty"`
	Company       string `json:"company,omitempty"`
	Save          bool   `json:"save,omitempty"`
}

type simulationResponse struct {
	Result    simulation.Result `json:"result"`
	Message   string            `json:"message"`
	PlainText string            `json:"plainText"`
	Record    *storage.Record   `json:"record,omitempty"`
}

func (h *handler) handleSimulations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handleCreateSimulation(w, r)
	case http.MethodGet:
		h.handleListSimulations(w, r)
	case http.MethodDelete:
		h.handleDeleteSimulations(w, r)
	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *handler) handleCreateSimulation(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleCreateSimulation"

	var req simulationRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}

	ctx, span := tracing.Start(r.Context(), op, "category", req.CategoryKey)
	var err error
	defer func() { tracing.End(span, err) }()

	snapshot, err := h.deps.Settings.Snapshot(ctx)
	if err != nil {
		h.respondDomainError(w, err, op)
		return
	}

	var result simulation.Result
	if req.ByInstallment {
		result, err = h.deps.Calculator.CalculateByInstallment(snapshot.Table, req.Input)
	} else {
		result, err = h.deps.Calculator.Calculate(snapshot.Table, req.Input)
	}
	metrics.ObserveSimulation(req.CategoryKey, err)
	if err != nil {
		h.respondDomainError(w, err, op)
		return
	}

	response := simulationResponse{
		Result:    result,
		Message:   h.deps.Renderer.Render(&result, snapshot.Template, snapshot.Table, req.User, req.Company, false),
		PlainText: h.deps.Renderer.Render(&result, snapshot.Template, snapshot.Table, req.User, req.Company, true),
	}

	if req.Save {
		var record storage.Record
		record, err = h.deps.Repository.SaveSimulation(ctx, storage.NewRecord(result, req.User, req.Company, h.now()))
		if err != nil {
			h.respondDomainError(w, fmt.Errorf("failed to save simulation: %w", err), op)
			return
		}
		response.Record = &record
	}

	h.logger.Info("simulation computed",
		zap.String("op", op),
		zap.String("category", result.CategoryKey),
		zap.Ints("installments", result.Counts()),
		zap.Bool("byInstallment", result.ByInstallment),
		zap.Bool("saved", req.Save),
	)

	h.writeJSON(w, http.StatusOK, response)
}

func (h *handler) handleListSimulations(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleListSimulations"

	records, err := h.deps.Repository.ListSimulations(r.Context())
	if err != nil {
		h.respondDomainError(w, err, op)
		return
	}
	if records == nil {
		records = []storage.Record{}
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"simulations": records,
	})
}

func (h *handler) handleDeleteSimulations(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleDeleteSimulations"

	deleted, err := h.deps.Repository.DeleteAllSimulations(r.Context())
	if err != nil {
		h.respondDomainError(w, err, op)
		return
	}

	h.logger.Info("simulation history cleared",
		zap.String("op", op),
		zap.Int64("deleted", deleted),
	)
	h.writeJSON(w, http.StatusOK, map[string]int64{"deleted": deleted})
}

func (h *handler) handleSimulationExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSimulationExport"
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	ctx, span := tracing.Start(r.Context(), op)
	records, err := h.deps.Repository.ListSimulations(ctx)
	tracing.End(span, err)
	if err != nil {
		h.respondDomainError(w, err, op)
		return
	}

	filename := fmt.Sprintf("simulacoes-%s.xlsx", h.now().In(h.deps.Location).Format("2006-01-02"))
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	if err := export.WriteXLSX(w, records, h.deps.Location); err != nil {
		h.logger.Error("failed to write spreadsheet",
			zap.String("op", op),
			zap.Error(err),
		)
	}
}

type sendRequest struct {
	Message string `json:"message"`
}

func (h *handler) handleSend(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSend"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	var req sendRequest
	if !h.decodeJSON(w, r, &req, op) {
		return
	}

	if h.deps.Sender == nil {
		h.respondErrorWithOp(w, http.StatusServiceUnavailable, "no message channel configured", op)
		return
	}
	channel := senderChannel(h.deps.Sender)

	ctx, span := tracing.Start(r.Context(), op, "channel", channel)
	err := h.deps.Sender.Send(ctx, req.Message)
	tracing.End(span, err)
	if err != nil {
		metrics.MessagesSent.WithLabelValues(channel, "failed").Inc()
		if errors.Is(err, notify.ErrEmptyMessage) {
			h.respondErrorWithOp(w, http.StatusBadRequest, err.Error(), op)
			return
		}
		h.respondErrorWithOp(w, http.StatusBadGateway, fmt.Sprintf("failed to send message: %v", err), op)
		return
	}
	metrics.MessagesSent.WithLabelValues(channel, "sent").Inc()

	status := "sent"
	if channel == "queue" {
		status = "queued"
	}
	h.writeJSON(w, http.StatusAccepted, map[string]string{"status": status, "channel": channel})
}

func senderChannel(sender notify.Sender) string {
	switch sender.(type) {
	case *notify.TelegramSender:
		return "telegram"
	case amqp.QueueSender, *amqp.QueueSender:
		return "queue"
	case notify.LogSender, *notify.LogSender:
		return "log"
	}
	return "custom"
}

func (h *handler) handleAnalytics(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleAnalytics"
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	records, err := h.deps.Repository.ListSimulations(r.Context())
	if err != nil {
		h.respondDomainError(w, err, op)
		return
	}

	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		user = analytics.AllUsers
	}
	h.writeJSON(w, http.StatusOK, analytics.Summarize(records, user, h.now().In(h.deps.Location)))
}

type categoryOptions struct {
	Key        string         `json:"key"`
	Name       string         `json:"name"`
	CustomRate bool           `json:"customRate"`
	AnnualUnit bool           `json:"annualUnit"`
	Options    []rates.Option `json:"options"`
}

func (h *handler) handleOptions(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleOptions"
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := h.deps.Settings.Snapshot(r.Context())
	if err != nil {
		h.respondDomainError(w, err, op)
		return
	}

	categories := make([]categoryOptions, 0, snapshot.Table.Len())
	for _, category := range snapshot.Table.Categories() {
		options := category.Options
		if options == nil {
			options = []rates.Option{}
		}
		categories = append(categories, categoryOptions{
			Key:        category.Key,
			Name:       category.Entry.Name,
			CustomRate: category.Entry.CustomRate(),
			AnnualUnit: category.Entry.AnnualUnit,
			Options:    options,
		})
	}

	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories":         categories,
		"reverseCalculation": h.deps.Calculator.ReverseCalculation,
	})
}

func (h *handler) handleVersion(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"version": h.version,
	})
}

func (h *handler) decodeJSON(w http.ResponseWriter, r *http.Request, target interface{}, op string) bool {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	decoder := json.NewDecoder(r.Body)
	decoder.UseNumber()
	if err := decoder.Decode(target); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			h.respondErrorWithOp(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request exceeds limit of %d bytes", h.maxBodySize), op)
			return false
		}
		h.respondErrorWithOp(w, http.StatusBadRequest, fmt.Sprintf("failed to decode request: %v", err), op)
		return false
	}
	return true
}

// respondDomainError maps validation errors to 400, configuration errors to
// 503 and everything else to 500.
func (h *handler) respondDomainError(w http.ResponseWriter, err error, op string) {
	h.respondDomainErrorWithStatus(w, err, op, http.StatusServiceUnavailable)
}

func (h *handler) respondDomainErrorWithStatus(w http.ResponseWriter, err error, op string, configurationStatus int) {
	metrics.ObserveError(op, err)

	var validationErr *validation.ValidationError
	if errors.As(err, &validationErr) {
		h.logger.Info("request rejected",
			zap.String("op", op),
			zap.String("field", validationErr.Field),
			zap.String("error", validationErr.Message),
		)
		h.writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": validationErr.Message,
			"field": validationErr.Field,
		})
		return
	}

	if validation.IsConfiguration(err) {
		h.respondErrorWithOp(w, configurationStatus, err.Error(), op)
		return
	}

	h.respondErrorWithOp(w, http.StatusInternalServerError, err.Error(), op)
}

func (h *handler) respondErrorWithOp(w http.ResponseWriter, status int, msg string, op string) {
	h.logger.Error("request failed",
		zap.String("op", op),
		zap.Int("status", status),
		zap.String("error", msg),
	)

	h.writeJSON(w, status, map[string]string{"error": msg})
}

func (h *handler) writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}
