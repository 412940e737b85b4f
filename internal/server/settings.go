package server

import (
	"net/http"
	"sort"

	"github.com/iwvelando/credit-simulator/internal/metrics"
	"github.com/iwvelando/credit-simulator/internal/rates"
	"github.com/iwvelando/credit-simulator/internal/tracing"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

type templateRequest struct {
	Template string `json:"template"`
}

func (h *handler) handleTemplate(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleTemplate"

	switch r.Method {
	case http.MethodGet:
		template, err := h.deps.Settings.Template(r.Context())
		if err != nil {
			h.respondDomainError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"template": template})

	case http.MethodPut:
		var req templateRequest
		if !h.decodeJSON(w, r, &req, op) {
			return
		}
		ctx, span := tracing.Start(r.Context(), op)
		snapshot, err := h.deps.Settings.UpdateTemplate(ctx, req.Template)
		tracing.End(span, err)
		if err != nil {
			h.respondDomainErrorWithStatus(w, err, op, http.StatusConflict)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]string{"template": snapshot.Template})

	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

type variablesRequest struct {
	Variables map[string]interface{} `json:"variables"`
}

func (h *handler) handleVariables(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleVariables"

	switch r.Method {
	case http.MethodGet:
		variables, err := h.deps.Settings.Variables(r.Context())
		if err != nil {
			h.respondDomainError(w, err, op)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"variables": variables})

	case http.MethodPut:
		var req variablesRequest
		if !h.decodeJSON(w, r, &req, op) {
			return
		}
		if req.Variables == nil {
			h.respondErrorWithOp(w, http.StatusBadRequest, "invalid variables payload: expected object", op)
			return
		}
		ctx, span := tracing.Start(r.Context(), op)
		snapshot, err := h.deps.Settings.UpdateVariables(ctx, req.Variables)
		tracing.End(span, err)
		if err != nil {
			h.respondDomainErrorWithStatus(w, err, op, http.StatusConflict)
			return
		}
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"variables": snapshot.Table.Variables()})

	default:
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
	}
}

func (h *handler) handleReload(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleReload"
	if r.Method != http.MethodPost {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	ctx, span := tracing.Start(r.Context(), op)
	snapshot, err := h.deps.Settings.Reload(ctx)
	tracing.End(span, err)
	if err != nil {
		metrics.SettingsReloads.WithLabelValues("failed").Inc()
		h.respondDomainError(w, err, op)
		return
	}
	metrics.SettingsReloads.WithLabelValues("success").Inc()

	h.logger.Info("settings reloaded",
		zap.String("op", op),
		zap.Int("categories", snapshot.Table.Len()),
	)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"categories": snapshot.Table.Keys(),
		"loadedAt":   snapshot.LoadedAt,
	})
}

func (h *handler) handleSettingsExport(w http.ResponseWriter, r *http.Request) {
	const op = "server.handleSettingsExport"
	if r.Method != http.MethodGet {
		http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
		return
	}

	snapshot, err := h.deps.Settings.Snapshot(r.Context())
	if err != nil {
		h.respondDomainError(w, err, op)
		return
	}

	payload := map[string]interface{}{
		"categories": exportCategories(snapshot.Table),
		"template":   map[string]string{"default": snapshot.Template},
	}
	yamlBytes, err := marshalOrderedConfigYAML(payload)
	if err != nil {
		h.respondErrorWithOp(w, http.StatusInternalServerError, "failed to encode settings: "+err.Error(), op)
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]string{
		"settingsYaml": string(yamlBytes),
	})
}

// exportedCategory mirrors the categories section of config.yaml.
type exportedCategory struct {
	Key             string         `yaml:"key"`
	Name            string         `yaml:"name"`
	AdminFeeRate    *float64       `yaml:"adminFeeRate,omitempty"`
	ReserveFundRate float64        `yaml:"reserveFundRate,omitempty"`
	InsuranceRate   float64        `yaml:"insuranceRate,omitempty"`
	Code            string         `yaml:"code,omitempty"`
	AnnualUnit      bool           `yaml:"annualUnit,omitempty"`
	Options         []rates.Option `yaml:"options,omitempty"`
}

func exportCategories(table *rates.Table) []exportedCategory {
	categories := make([]exportedCategory, 0, table.Len())
	for _, category := range table.Categories() {
		categories = append(categories, exportedCategory{
			Key:             category.Key,
			Name:            category.Entry.Name,
			AdminFeeRate:    category.Entry.AdminFeeRate,
			ReserveFundRate: category.Entry.ReserveFundRate,
			InsuranceRate:   category.Entry.InsuranceRate,
			Code:            category.Entry.Code,
			AnnualUnit:      category.Entry.AnnualUnit,
			Options:         category.Options,
		})
	}
	return categories
}

func marshalOrderedConfigYAML(payload map[string]interface{}) ([]byte, error) {
	items := make([]orderedItem, 0, len(payload))
	seen := make(map[string]struct{})

	for _, key := range []string{"categories", "template"} {
		if value, ok := payload[key]; ok {
			items = append(items, orderedItem{key: key, value: value})
			seen[key] = struct{}{}
		}
	}

	remainingKeys := make([]string, 0, len(payload))
	for key := range payload {
		if _, already := seen[key]; already {
			continue
		}
		remainingKeys = append(remainingKeys, key)
	}
	sort.Strings(remainingKeys)
	for _, key := range remainingKeys {
		items = append(items, orderedItem{key: key, value: payload[key]})
	}

	ordered := orderedConfig{items: items}
	return yaml.Marshal(ordered)
}

type orderedConfig struct {
	items []orderedItem
}

type orderedItem struct {
	key   string
	value interface{}
}

func (o orderedConfig) MarshalYAML() (interface{}, error) {
	mapNode := &yaml.Node{
		Kind: yaml.MappingNode,
		Tag:  "!!map",
	}

	for _, item := range o.items {
		keyNode := &yaml.Node{
			Kind:  yaml.ScalarNode,
			Tag:   "!!str",
			Value: item.key,
		}
		valueNode := &yaml.Node{}
		if err := valueNode.Encode(item.value); err != nil {
			return nil, err
		}
		mapNode.Content = append(mapNode.Content, keyNode, valueNode)
	}

	return mapNode, nil
}
