package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/ternarybob/arbor"

	"github.com/pjsousa/jobato-platform/internal/interfaces"
)

// constructors maps catalog class names to model constructors. Adding a
// model class means adding a row here; unknown class names surface as
// per-entry load errors rather than failing the whole registry.
var constructors = map[string]func() interfaces.Model{
	"BaselineModel": func() interfaces.Model { return NewBaselineModel() },
	"KeywordModel":  func() interfaces.Model { return NewKeywordModel() },
}

// LoadError records why a catalog entry could not be constructed.
type LoadError struct {
	Identifier   string `json:"identifier"`
	ErrorType    string `json:"errorType"`
	ErrorMessage string `json:"errorMessage"`
}

// LoadedModel pairs a constructed model with its catalog entry.
type LoadedModel struct {
	Entry ModelEntry
	Model interfaces.Model
}

// Registry holds the constructed models for this process. It is built once
// at startup and injected wherever scoring or evaluation needs models.
type Registry struct {
	mu         sync.RWMutex
	models     map[string]*LoadedModel
	loadErrors []LoadError
	defaultID  string
	logger     arbor.ILogger
}

// NewRegistry constructs models for every enabled catalog entry. Entries
// whose class is unknown are recorded as load errors and skipped.
func NewRegistry(entries []ModelEntry, logger arbor.ILogger) *Registry {
	registry := &Registry{
		models: make(map[string]*LoadedModel),
		logger: logger,
	}

	for _, entry := range entries {
		if !entry.Enabled {
			continue
		}
		constructor, ok := constructors[entry.ClassName]
		if !ok {
			registry.loadErrors = append(registry.loadErrors, LoadError{
				Identifier:   entry.ID,
				ErrorType:    "unknown_class",
				ErrorMessage: fmt.Sprintf("no constructor registered for class %q", entry.ClassName),
			})
			if logger != nil {
				logger.Warn().Str("model_id", entry.ID).Str("class", entry.ClassName).Msg("Skipping model with unknown class")
			}
			continue
		}

		registry.models[entry.ID] = &LoadedModel{Entry: entry, Model: constructor()}
		if entry.Default {
			registry.defaultID = entry.ID
		}
	}

	if logger != nil {
		logger.Info().
			Int("models", len(registry.models)).
			Int("load_errors", len(registry.loadErrors)).
			Msg("Model registry initialized")
	}
	return registry
}

// GetModel returns a constructed model by id.
func (r *Registry) GetModel(modelID string) (*LoadedModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	model, ok := r.models[modelID]
	return model, ok
}

// HasModel reports whether a model id is registered.
func (r *Registry) HasModel(modelID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.models[modelID]
	return ok
}

// GetAvailableModels returns registered models sorted by id.
func (r *Registry) GetAvailableModels() []*LoadedModel {
	r.mu.RLock()
	defer r.mu.RUnlock()

	models := make([]*LoadedModel, 0, len(r.models))
	for _, model := range r.models {
		models = append(models, model)
	}
	sort.Slice(models, func(i, j int) bool {
		return models[i].Entry.ID < models[j].Entry.ID
	})
	return models
}

// GetDefaultModel returns the catalog's default model, or false when the
// catalog declares none.
func (r *Registry) GetDefaultModel() (*LoadedModel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.defaultID == "" {
		return nil, false
	}
	model, ok := r.models[r.defaultID]
	return model, ok
}

// LoadErrors returns the entries that failed to construct.
func (r *Registry) LoadErrors() []LoadError {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]LoadError(nil), r.loadErrors...)
}
