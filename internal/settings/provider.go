// Package settings owns the reloadable rate table and message template. A
// Snapshot is an immutable view handed to each calculation; Reload swaps it
// without disturbing snapshots already in use.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iwvelando/credit-simulator/internal/message"
	"github.com/iwvelando/credit-simulator/internal/rates"
	"github.com/iwvelando/credit-simulator/internal/storage"
	"github.com/iwvelando/credit-simulator/pkg/constants"
	"github.com/iwvelando/credit-simulator/pkg/validation"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// CacheKey is the cache entry holding the serialized settings.
const CacheKey = "credit-simulator:settings"

// Snapshot is the configuration in force for one calculation.
type Snapshot struct {
	Table    *rates.Table
	Template string
	LoadedAt time.Time
}

// Options returns the installment bundles of every category keyed by category.
func (s Snapshot) Options() map[string][]rates.Option {
	options := make(map[string][]rates.Option, s.Table.Len())
	for _, category := range s.Table.Categories() {
		options[category.Key] = category.Options
	}
	return options
}

// cached is the cache payload: the stored settings in their persisted form.
type cached struct {
	Template  string         `json:"template"`
	Variables map[string]any `json:"variables,omitempty"`
}

// Config configures a Provider.
type Config struct {
	BaseTable       *rates.Table
	DefaultTemplate string
	Store           storage.SettingsStore
	Cache           Cache
	CacheTTL        time.Duration
	Logger          *zap.Logger
}

// Provider loads settings from the store, through the cache, on demand.
type Provider struct {
	base            *rates.Table
	defaultTemplate string
	store           storage.SettingsStore
	cache           Cache
	ttl             time.Duration
	logger          *zap.Logger
	group           singleflight.Group
	now             func() time.Time

	mu      sync.RWMutex
	current *Snapshot
}

// NewProvider builds a Provider. Store is required; Cache is optional.
func NewProvider(cfg Config) (*Provider, error) {
	if cfg.Store == nil {
		return nil, errors.New("settings store is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	base := cfg.BaseTable
	if base == nil {
		base = rates.DefaultTable()
	}
	template := cfg.DefaultTemplate
	if strings.TrimSpace(template) == "" {
		template = message.DefaultTemplate
	}
	return &Provider{
		base:            base,
		defaultTemplate: template,
		store:           cfg.Store,
		cache:           cfg.Cache,
		ttl:             cfg.CacheTTL,
		logger:          logger,
		now:             time.Now,
	}, nil
}

// Snapshot returns the loaded settings, loading them on first use.
func (p *Provider) Snapshot(ctx context.Context) (Snapshot, error) {
	p.mu.RLock()
	current := p.current
	p.mu.RUnlock()
	if current != nil {
		return *current, nil
	}
	return p.Reload(ctx)
}

// Reload re-reads the settings. Concurrent callers share one load. On failure
// the previous snapshot stays in force.
func (p *Provider) Reload(ctx context.Context) (Snapshot, error) {
	value, err, _ := p.group.Do("reload", func() (any, error) {
		return p.load(ctx)
	})
	if err != nil {
		p.logger.Error("failed to reload settings",
			zap.String("op", "settings.Reload"),
			zap.Error(err),
		)
		return Snapshot{}, err
	}
	snapshot := value.(*Snapshot)
	p.mu.Lock()
	p.current = snapshot
	p.mu.Unlock()
	return *snapshot, nil
}

// Template returns the active template with real line breaks.
func (p *Provider) Template(ctx context.Context) (string, error) {
	snapshot, err := p.Snapshot(ctx)
	if err != nil {
		return "", err
	}
	return snapshot.Template, nil
}

// UpdateTemplate stores template (escaping line breaks) and reloads.
func (p *Provider) UpdateTemplate(ctx context.Context, template string) (Snapshot, error) {
	if strings.TrimSpace(template) == "" {
		return Snapshot{}, validation.NewValidationError("template", "template must not be empty")
	}
	if err := p.store.PutSetting(ctx, constants.SettingOutputTemplate, message.Escape(template)); err != nil {
		return Snapshot{}, fmt.Errorf("store template: %w", err)
	}
	p.logger.Info("output template updated", zap.String("op", "settings.UpdateTemplate"))
	return p.invalidateAndReload(ctx)
}

// Variables returns the active rate table as flat simulation variables.
func (p *Provider) Variables(ctx context.Context) (map[string]any, error) {
	snapshot, err := p.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	return snapshot.Table.Variables(), nil
}

// UpdateVariables validates vars against the base table, stores them, and reloads.
func (p *Provider) UpdateVariables(ctx context.Context, vars map[string]any) (Snapshot, error) {
	if _, err := rates.FromVariables(vars, p.base); err != nil {
		return Snapshot{}, err
	}
	encoded, err := json.Marshal(vars)
	if err != nil {
		return Snapshot{}, fmt.Errorf("encode simulation variables: %w", err)
	}
	if err := p.store.PutSetting(ctx, constants.SettingSimulationVariables, string(encoded)); err != nil {
		return Snapshot{}, fmt.Errorf("store simulation variables: %w", err)
	}
	p.logger.Info("simulation variables updated",
		zap.String("op", "settings.UpdateVariables"),
		zap.Int("count", len(vars)),
	)
	return p.invalidateAndReload(ctx)
}

func (p *Provider) invalidateAndReload(ctx context.Context) (Snapshot, error) {
	if p.cache != nil {
		if err := p.cache.Delete(ctx, CacheKey); err != nil {
			p.logger.Warn("failed to invalidate settings cache",
				zap.String("op", "settings.invalidateAndReload"),
				zap.Error(err),
			)
		}
	}
	return p.Reload(ctx)
}

func (p *Provider) load(ctx context.Context) (*Snapshot, error) {
	stored, fromCache := p.readCache(ctx)
	if !fromCache {
		var err error
		stored, err = p.readStore(ctx)
		if err != nil {
			return nil, err
		}
		p.writeCache(ctx, stored)
	}

	table := p.base
	if len(stored.Variables) > 0 {
		var err error
		table, err = rates.FromVariables(stored.Variables, p.base)
		if err != nil {
			return nil, validation.NewConfigurationError("stored simulation variables are invalid", err)
		}
	}
	template := message.Unescape(stored.Template)
	if strings.TrimSpace(template) == "" {
		template = p.defaultTemplate
	}

	p.logger.Debug("settings loaded",
		zap.String("op", "settings.load"),
		zap.Bool("cache", fromCache),
		zap.Int("categories", table.Len()),
	)
	return &Snapshot{Table: table, Template: template, LoadedAt: p.now()}, nil
}

func (p *Provider) readStore(ctx context.Context) (cached, error) {
	var stored cached

	template, err := p.store.GetSetting(ctx, constants.SettingOutputTemplate)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return cached{}, fmt.Errorf("read template: %w", err)
	default:
		stored.Template = template
	}

	raw, err := p.store.GetSetting(ctx, constants.SettingSimulationVariables)
	switch {
	case errors.Is(err, storage.ErrNotFound):
	case err != nil:
		return cached{}, fmt.Errorf("read simulation variables: %w", err)
	default:
		if err := json.Unmarshal([]byte(raw), &stored.Variables); err != nil {
			return cached{}, validation.NewConfigurationError("stored simulation variables are not valid JSON", err)
		}
	}
	return stored, nil
}

func (p *Provider) readCache(ctx context.Context) (cached, bool) {
	if p.cache == nil {
		return cached{}, false
	}
	raw, err := p.cache.Get(ctx, CacheKey)
	if err != nil {
		if !errors.Is(err, ErrCacheMiss) {
			p.logger.Warn("settings cache unavailable",
				zap.String("op", "settings.readCache"),
				zap.Error(err),
			)
		}
		return cached{}, false
	}
	var stored cached
	if err := json.Unmarshal(raw, &stored); err != nil {
		p.logger.Warn("discarding corrupt settings cache entry",
			zap.String("op", "settings.readCache"),
			zap.Error(err),
		)
		return cached{}, false
	}
	return stored, true
}

func (p *Provider) writeCache(ctx context.Context, stored cached) {
	if p.cache == nil {
		return
	}
	raw, err := json.Marshal(stored)
	if err != nil {
		return
	}
	if err := p.cache.Set(ctx, CacheKey, raw, p.ttl); err != nil {
		p.logger.Warn("failed to write settings cache",
			zap.String("op", "settings.writeCache"),
			zap.Error(err),
		)
	}
}
