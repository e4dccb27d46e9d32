package retrain

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Artifact is the on-disk container for a trained model. The file keeps the
// conventional .pkl extension but its content is a JSON envelope with the
// model payload base64-encoded.
type Artifact struct {
	ModelID      string             `json:"modelId"`
	ModelVersion string             `json:"modelVersion"`
	TrainedAt    string             `json:"trainedAt"`
	Metrics      map[string]float64 `json:"metrics"`
	Payload      string             `json:"payload"`
}

// ArtifactPath returns the artifact location for a model version.
func ArtifactPath(artifactDir, modelID, version string) string {
	return filepath.Join(artifactDir, fmt.Sprintf("%s_%s.pkl", modelID, version))
}

// WriteArtifact stores the trained model's state in the artifact directory.
func WriteArtifact(artifactDir string, artifact *Artifact, state []byte) (string, error) {
	if err := os.MkdirAll(artifactDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	artifact.Payload = base64.StdEncoding.EncodeToString(state)
	data, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode artifact: %w", err)
	}

	path := ArtifactPath(artifactDir, artifact.ModelID, artifact.ModelVersion)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write artifact: %w", err)
	}
	return path, nil
}

// ReadArtifact loads and decodes an artifact file, returning the envelope
// and the raw model state.
func ReadArtifact(path string) (*Artifact, []byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, nil, fmt.Errorf("failed to decode artifact: %w", err)
	}

	state, err := base64.StdEncoding.DecodeString(artifact.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode artifact payload: %w", err)
	}
	return &artifact, state, nil
}

// ValidateArtifact re-reads an artifact and checks its header matches the
// expected model and version. Promotion only happens after this passes.
func ValidateArtifact(path, modelID, version string) error {
	artifact, _, err := ReadArtifact(path)
	if err != nil {
		return err
	}
	if artifact.ModelID != modelID {
		return fmt.Errorf("artifact model mismatch: expected %s, found %s", modelID, artifact.ModelID)
	}
	if artifact.ModelVersion != version {
		return fmt.Errorf("artifact version mismatch: expected %s, found %s", version, artifact.ModelVersion)
	}
	return nil
}
