package interfaces

import (
	"github.com/pjsousa/jobato-platform/internal/models"
)

// Model is a relevance scoring model. Implementations must be safe for
// concurrent Predict calls after Fit has completed.
type Model interface {
	// Fit trains the model on labeled features. Labels are 0 or 1.
	Fit(features []models.Features, labels []int) error

	// Predict returns one relevance score per input row in [-1, 1].
	Predict(features []models.Features) ([]float64, error)
}

// StatefulModel is implemented by models whose learned state can be
// serialized into a retrain artifact and restored from one.
type StatefulModel interface {
	Model

	MarshalState() ([]byte, error)
	UnmarshalState(data []byte) error
}
