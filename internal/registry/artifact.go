// Package registry loads and serves trained model artifacts. Artifacts are
// JSON files, one per scaler or model, written atomically so a crashed
// retrain never leaves a half-written file behind.
package registry

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/minhvu-dev/cardiopredict/internal/learn"
)

// Capability tags stored with each model artifact. Explanation dispatches
// on the tag instead of probing the loaded model at request time.
const (
	CapabilityTree   = "tree_importance"
	CapabilityLinear = "linear_coefficient"
	CapabilityProba  = "probability_only"
)

const (
	KindModel  = "model"
	KindScaler = "scaler"
)

type Artifact struct {
	Kind       string          `json:"kind"`
	Key        string          `json:"key"`
	ModelType  string          `json:"model_type,omitempty"`
	Capability string          `json:"capability,omitempty"`
	TrainedAt  time.Time       `json:"trained_at"`
	Payload    json.RawMessage `json:"payload"`
}

// CapabilityFor maps a model type to its explanation capability.
func CapabilityFor(modelType string) string {
	switch modelType {
	case learn.TypeTree, learn.TypeForest, learn.TypeBoosting:
		return CapabilityTree
	case learn.TypeLogistic:
		return CapabilityLinear
	default:
		return CapabilityProba
	}
}

func EncodeModel(key string, model learn.Classifier) (*Artifact, error) {
	modelType := learn.TypeOf(model)
	if modelType == "" {
		return nil, fmt.Errorf("cannot encode model of type %T", model)
	}
	payload, err := json.Marshal(model)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Kind:       KindModel,
		Key:        key,
		ModelType:  modelType,
		Capability: CapabilityFor(modelType),
		TrainedAt:  time.Now().UTC(),
		Payload:    payload,
	}, nil
}

func (a *Artifact) DecodeModel() (learn.Classifier, error) {
	if a.Kind != KindModel {
		return nil, fmt.Errorf("artifact %s is a %s, not a model", a.Key, a.Kind)
	}
	model, err := learn.NewByType(a.ModelType)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(a.Payload, model); err != nil {
		return nil, fmt.Errorf("decode %s: %w", a.Key, err)
	}
	return model, nil
}

func EncodeScaler(key string, scaler *learn.StandardScaler) (*Artifact, error) {
	payload, err := json.Marshal(scaler)
	if err != nil {
		return nil, err
	}
	return &Artifact{
		Kind:      KindScaler,
		Key:       key,
		TrainedAt: time.Now().UTC(),
		Payload:   payload,
	}, nil
}

func (a *Artifact) DecodeScaler() (*learn.StandardScaler, error) {
	if a.Kind != KindScaler {
		return nil, fmt.Errorf("artifact %s is a %s, not a scaler", a.Key, a.Kind)
	}
	scaler := &learn.StandardScaler{}
	if err := json.Unmarshal(a.Payload, scaler); err != nil {
		return nil, fmt.Errorf("decode %s: %w", a.Key, err)
	}
	return scaler, nil
}

func ModelPath(dir, key string) string {
	return filepath.Join(dir, key+".model.json")
}

func ScalerPath(dir, key string) string {
	return filepath.Join(dir, key+".scaler.json")
}

// SaveArtifact writes to a temp file in the same directory and renames it
// over the target, so readers only ever see complete files.
func SaveArtifact(path string, a *Artifact) error {
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".artifact-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), path)
}

func LoadArtifact(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	artifact := &Artifact{}
	if err := json.Unmarshal(data, artifact); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return artifact, nil
}
