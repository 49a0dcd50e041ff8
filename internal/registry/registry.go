package registry

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/minhvu-dev/cardiopredict/internal/learn"
	"github.com/minhvu-dev/cardiopredict/internal/models"
)

// ModelEntry is one loaded model with its artifact metadata.
type ModelEntry struct {
	Key        string
	ModelType  string
	Capability string
	TrainedAt  time.Time
	Model      learn.Classifier
}

// Registry holds the loaded models and scalers for every feature space.
// It is populated at startup and read-only between explicit reloads; a
// partially available model set is the normal operating condition, not an
// error.
type Registry struct {
	dir    string
	logger *logrus.Logger

	mu      sync.RWMutex
	loaded  bool
	models  map[string]*ModelEntry
	scalers map[string]*learn.StandardScaler
}

func New(dir string, logger *logrus.Logger) *Registry {
	return &Registry{
		dir:     dir,
		logger:  logger,
		models:  make(map[string]*ModelEntry),
		scalers: make(map[string]*learn.StandardScaler),
	}
}

// Load reads every known artifact from disk. Idempotent: a second call is
// a no-op once loaded. Missing or corrupt individual files are logged and
// skipped so the rest of the model set stays available.
func (r *Registry) Load() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.loaded {
		return nil
	}
	r.loadLocked()
	r.loaded = true
	return nil
}

// Reload rebuilds the whole artifact map and swaps it in under the write
// lock. Called after a retrain overwrites artifacts on disk.
func (r *Registry) Reload() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.models = make(map[string]*ModelEntry)
	r.scalers = make(map[string]*learn.StandardScaler)
	r.loadLocked()
	r.loaded = true
	return nil
}

func (r *Registry) loadLocked() {
	for _, space := range models.AllSpaces() {
		r.loadScaler(space.ScalerKey)
		for _, candidate := range space.Candidates {
			r.loadModel(candidate.Key)
		}
	}
	r.logger.WithFields(logrus.Fields{
		"dir":     r.dir,
		"models":  len(r.models),
		"scalers": len(r.scalers),
	}).Info("Model registry loaded")
}

func (r *Registry) loadScaler(key string) {
	path := ScalerPath(r.dir, key)
	artifact, err := LoadArtifact(path)
	if err != nil {
		r.logArtifactSkip("scaler", key, path, err)
		return
	}
	scaler, err := artifact.DecodeScaler()
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Error("Failed to decode scaler artifact")
		return
	}
	r.scalers[key] = scaler
}

func (r *Registry) loadModel(key string) {
	path := ModelPath(r.dir, key)
	artifact, err := LoadArtifact(path)
	if err != nil {
		r.logArtifactSkip("model", key, path, err)
		return
	}
	model, err := artifact.DecodeModel()
	if err != nil {
		r.logger.WithError(err).WithField("key", key).Error("Failed to decode model artifact")
		return
	}
	r.models[key] = &ModelEntry{
		Key:        key,
		ModelType:  artifact.ModelType,
		Capability: artifact.Capability,
		TrainedAt:  artifact.TrainedAt,
		Model:      model,
	}
}

func (r *Registry) logArtifactSkip(kind, key, path string, err error) {
	if os.IsNotExist(err) {
		r.logger.WithFields(logrus.Fields{
			"kind": kind,
			"key":  key,
			"path": path,
		}).Warn("Artifact file missing, skipping")
		return
	}
	r.logger.WithError(err).WithFields(logrus.Fields{
		"kind": kind,
		"key":  key,
	}).Error("Failed to load artifact")
}

// Model returns the loaded entry for a key, or nil when absent. Callers
// must check for nil; absence is not an error here.
func (r *Registry) Model(key string) *ModelEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.models[key]
}

// Scaler returns the fitted scaler for a space's scaler key, or nil.
func (r *Registry) Scaler(key string) *learn.StandardScaler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.scalers[key]
}

// Dir is the artifact directory the registry reads from.
func (r *Registry) Dir() string {
	return r.dir
}

// Counts reports loaded model and scaler totals for health checks.
func (r *Registry) Counts() (int, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.models), len(r.scalers)
}

// Status lists load state for every known model key.
func (r *Registry) Status() []models.ModelStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []models.ModelStatus
	for _, space := range models.AllSpaces() {
		for _, candidate := range space.Candidates {
			status := models.ModelStatus{
				Key:   candidate.Key,
				Name:  candidate.Name,
				Space: space.Name,
			}
			if entry, ok := r.models[candidate.Key]; ok {
				status.Loaded = true
				status.TrainedAt = entry.TrainedAt.Format(time.RFC3339)
			}
			out = append(out, status)
		}
	}
	return out
}

// Verify reports an error when a space has no usable scaler, which makes
// every prediction for it impossible.
func (r *Registry) Verify() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, space := range models.AllSpaces() {
		if r.scalers[space.ScalerKey] == nil {
			return fmt.Errorf("no scaler loaded for space %q (key %q)", space.Name, space.ScalerKey)
		}
	}
	return nil
}
