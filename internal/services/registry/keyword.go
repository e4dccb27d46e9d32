package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/pjsousa/jobato-platform/internal/models"
)

// KeywordModel learns per-token weights from labeled examples. Tokens seen
// mostly in positive rows pull scores up, tokens from negative rows pull
// them down. Its state serializes into retrain artifacts.
type KeywordModel struct {
	mu      sync.RWMutex
	weights map[string]float64
}

// NewKeywordModel creates an untrained keyword model.
func NewKeywordModel() *KeywordModel {
	return &KeywordModel{weights: make(map[string]float64)}
}

// Fit derives token weights from the labeled rows. Each token's weight is
// the smoothed ratio of positive to total occurrences, centered on zero.
func (m *KeywordModel) Fit(features []models.Features, labels []int) error {
	if len(features) != len(labels) {
		return fmt.Errorf("feature/label length mismatch: %d vs %d", len(features), len(labels))
	}

	positive := make(map[string]int)
	total := make(map[string]int)
	for i, f := range features {
		for _, token := range tokenize(f.Title + " " + f.Snippet) {
			total[token]++
			if labels[i] == 1 {
				positive[token]++
			}
		}
	}

	weights := make(map[string]float64, len(total))
	for token, count := range total {
		// Laplace-smoothed positive rate mapped onto [-1, 1].
		rate := (float64(positive[token]) + 1) / (float64(count) + 2)
		weights[token] = 2*rate - 1
	}

	m.mu.Lock()
	m.weights = weights
	m.mu.Unlock()
	return nil
}

func (m *KeywordModel) Predict(features []models.Features) ([]float64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	scores := make([]float64, len(features))
	for i, f := range features {
		tokens := tokenize(f.Title + " " + f.Snippet)
		if len(tokens) == 0 {
			continue
		}
		var sum float64
		var matched int
		for _, token := range tokens {
			if weight, ok := m.weights[token]; ok {
				sum += weight
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		scores[i] = math.Max(-1, math.Min(1, sum/float64(matched)))
	}
	return scores, nil
}

type keywordState struct {
	Weights map[string]float64 `json:"weights"`
}

// MarshalState serializes the learned weights for artifact storage.
func (m *KeywordModel) MarshalState() ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return json.Marshal(keywordState{Weights: m.weights})
}

// UnmarshalState restores weights from an artifact payload.
func (m *KeywordModel) UnmarshalState(data []byte) error {
	var state keywordState
	if err := json.Unmarshal(data, &state); err != nil {
		return fmt.Errorf("failed to decode keyword model state: %w", err)
	}
	if state.Weights == nil {
		state.Weights = make(map[string]float64)
	}
	m.mu.Lock()
	m.weights = state.Weights
	m.mu.Unlock()
	return nil
}

func tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9')
	})
	tokens := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) >= 2 {
			tokens = append(tokens, field)
		}
	}
	return tokens
}
