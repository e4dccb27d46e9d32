package registry

import (
	"strings"

	"github.com/pjsousa/jobato-platform/internal/models"
)

// BaselineModel is the always-available fallback scorer. It needs no
// training: a result scores positive when its title or snippet mentions a
// job-posting keyword, otherwise zero.
type BaselineModel struct{}

// NewBaselineModel creates the fallback model.
func NewBaselineModel() *BaselineModel {
	return &BaselineModel{}
}

var baselineKeywords = []string{
	"job", "jobs", "career", "careers", "hiring", "vacancy", "vacancies",
	"position", "opening", "apply", "engineer", "developer",
}

// Fit is a no-op; the baseline has no learned state.
func (m *BaselineModel) Fit(features []models.Features, labels []int) error {
	return nil
}

func (m *BaselineModel) Predict(features []models.Features) ([]float64, error) {
	scores := make([]float64, len(features))
	for i, f := range features {
		text := strings.ToLower(f.Title + " " + f.Snippet)
		for _, keyword := range baselineKeywords {
			if strings.Contains(text, keyword) {
				scores[i] = 0.5
				break
			}
		}
	}
	return scores, nil
}
