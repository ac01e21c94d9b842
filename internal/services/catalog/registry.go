package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"kepler-fleet/internal/models"
	"kepler-fleet/internal/services/store"
)

// UploadExtensions are the only file types accepted for model uploads.
var UploadExtensions = []string{".cfg", ".weights", ".names"}

// Registry manages the custom part of the model catalog and the files it
// references. Model paths are relative to workerDir; uploaded files live in
// workerDir/customDir.
type Registry struct {
	store     *store.Store
	workerDir string
	customDir string
	log       zerolog.Logger

	mu     sync.Mutex
	lastID int64
	now    func() time.Time
}

func NewRegistry(st *store.Store, workerDir, customDir string, logger zerolog.Logger) *Registry {
	return &Registry{
		store:     st,
		workerDir: workerDir,
		customDir: filepath.ToSlash(filepath.Clean(customDir)),
		log:       logger,
		now:       time.Now,
	}
}

// NamesResult lists a model's labels.
type NamesResult struct {
	ModelID string   `json:"modelId"`
	Names   []string `json:"names"`
	Count   int      `json:"count"`
}

func (r *Registry) List() []models.Model {
	return r.store.Catalog().All()
}

func (r *Registry) Get(id string) (models.Model, error) {
	m, ok := Find(r.store.Catalog(), id)
	if !ok {
		return models.Model{}, models.NotFoundf("model %s not found", id)
	}
	return m, nil
}

// Add registers a custom model whose files already exist.
func (r *Registry) Add(_ context.Context, in models.ModelInput) (models.Model, error) {
	var missing []string
	if strings.TrimSpace(in.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(in.Config) == "" {
		missing = append(missing, "config")
	}
	if strings.TrimSpace(in.Weights) == "" {
		missing = append(missing, "weights")
	}
	if len(missing) > 0 {
		return models.Model{}, models.Validationf("missing required fields: %s", strings.Join(missing, ", "))
	}

	m := models.Model{
		ID:          r.newID(),
		Name:        in.Name,
		Description: lo.Ternary(in.Description != "", in.Description, "Custom model"),
		Config:      in.Config,
		Weights:     in.Weights,
		Names:       lo.Ternary(in.Names != "", in.Names, models.DefaultNamesFile),
		Type:        lo.Ternary(in.Type != "", in.Type, "custom"),
	}
	m.Classes = r.classesOrDefault(m.Names)

	if err := r.appendCustom(m); err != nil {
		return models.Model{}, err
	}
	r.log.Info().Str("model_id", m.ID).Str("name", m.Name).Msg("Model added")
	return m, nil
}

// UploadAdd registers a custom model from uploaded files. Config and weights
// are required; without a labels file the default label set is used.
func (r *Registry) UploadAdd(_ context.Context, files models.ModelFiles, meta models.ModelInput) (models.Model, error) {
	if err := ValidateUpload(files, meta); err != nil {
		return models.Model{}, err
	}

	m := models.Model{
		ID:          r.newID(),
		Name:        meta.Name,
		Description: lo.Ternary(meta.Description != "", meta.Description, "Custom model"),
		Config:      files.Config,
		Weights:     files.Weights,
		Names:       models.DefaultNamesFile,
		Type:        "custom",
		Classes:     models.DefaultClassCount,
	}
	if files.Names != "" {
		m.Names = files.Names
		m.Classes = r.classesOrDefault(files.Names)
	}

	if err := r.appendCustom(m); err != nil {
		return models.Model{}, err
	}
	r.log.Info().Str("model_id", m.ID).Str("name", m.Name).Int("classes", m.Classes).Msg("Model uploaded")
	return m, nil
}

// Update changes a custom model's metadata and replaces any files supplied.
// Replaced files under the custom directory are removed best-effort.
func (r *Registry) Update(_ context.Context, id string, meta models.ModelInput, files models.ModelFiles) (models.Model, error) {
	if !models.IsCustom(id) {
		return models.Model{}, models.Validationf("only custom models can be edited")
	}

	var before, after models.Model
	err := r.store.Mutate(func(st *store.State) (store.Resource, error) {
		_, idx, ok := lo.FindIndexOf(st.Catalog.CustomModels, func(m models.Model) bool { return m.ID == id })
		if !ok {
			return store.None, models.NotFoundf("model %s not found", id)
		}
		m := &st.Catalog.CustomModels[idx]
		before = *m

		if meta.Name != "" {
			m.Name = meta.Name
		}
		if meta.Description != "" {
			m.Description = meta.Description
		}
		if files.Config != "" {
			m.Config = files.Config
		}
		if files.Weights != "" {
			m.Weights = files.Weights
		}
		if files.Names != "" {
			m.Names = files.Names
			if n, err := r.CountClasses(files.Names); err == nil {
				m.Classes = n
			} else {
				r.log.Warn().Err(err).Str("model_id", id).Msg("Failed to count classes, keeping previous value")
			}
		}
		after = *m
		return store.Catalog, nil
	})
	if err != nil {
		return models.Model{}, err
	}

	r.removeReplaced(before.Config, after.Config)
	r.removeReplaced(before.Weights, after.Weights)
	r.removeReplaced(before.Names, after.Names)

	r.log.Info().Str("model_id", id).Msg("Model updated")
	return after, nil
}

// Delete removes a custom model, its uploaded files and every camera's
// reference to it.
func (r *Registry) Delete(_ context.Context, id string) error {
	if !models.IsCustom(id) {
		return models.Validationf("only custom models can be deleted")
	}

	var removed models.Model
	var cleared int
	err := r.store.Mutate(func(st *store.State) (store.Resource, error) {
		m, idx, ok := lo.FindIndexOf(st.Catalog.CustomModels, func(m models.Model) bool { return m.ID == id })
		if !ok {
			return store.None, models.NotFoundf("model %s not found", id)
		}
		removed = m
		st.Catalog.CustomModels = append(st.Catalog.CustomModels[:idx], st.Catalog.CustomModels[idx+1:]...)

		dirty := store.Catalog
		for i := range st.Cameras.Cameras {
			if st.Cameras.Cameras[i].ModelID == id {
				st.Cameras.Cameras[i].ModelID = ""
				cleared++
				dirty |= store.Cameras
			}
		}
		for camID, det := range st.Detection {
			if det.ModelID == id {
				det.ModelID = ""
				st.Detection[camID] = det
				dirty |= store.Detection
			}
		}
		return dirty, nil
	})
	if err != nil {
		return err
	}

	for _, p := range []string{removed.Config, removed.Weights, removed.Names} {
		r.removeCustomFile(p)
	}

	r.log.Info().Str("model_id", id).Int("cameras_cleared", cleared).Msg("Model deleted")
	return nil
}

// Names reads the model's labels file.
func (r *Registry) Names(id string) (NamesResult, error) {
	m, err := r.Get(id)
	if err != nil {
		return NamesResult{}, err
	}
	names, err := readLabels(r.abs(m.NamesOrDefault()))
	if err != nil {
		return NamesResult{}, fmt.Errorf("read labels of %s: %w", id, err)
	}
	return NamesResult{ModelID: id, Names: names, Count: len(names)}, nil
}

// CountClasses counts the non-blank lines of a labels file given relative to
// the worker directory.
func (r *Registry) CountClasses(rel string) (int, error) {
	names, err := readLabels(r.abs(rel))
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// ValidateUpload checks the fields a new uploaded model needs. It only looks
// at which files are present, so it can run before anything is written.
func ValidateUpload(files models.ModelFiles, meta models.ModelInput) error {
	if files.Config == "" || files.Weights == "" {
		return models.Validationf("both a .cfg and a .weights file are required")
	}
	if strings.TrimSpace(meta.Name) == "" {
		return models.Validationf("missing required fields: name")
	}
	return nil
}

// UploadTarget validates an uploaded file name and returns where to store it:
// the absolute path and the catalog path relative to the worker directory.
// A file already used by a model other than owner is refused so that an
// upload never overwrites it. owner is empty for a new model.
func (r *Registry) UploadTarget(filename, owner string) (abs, rel string, err error) {
	base := filepath.Base(filepath.Clean("/" + filename))
	if base == "/" || base == "." || base == "" {
		return "", "", models.Validationf("invalid file name %q", filename)
	}
	ext := strings.ToLower(filepath.Ext(base))
	if !lo.Contains(UploadExtensions, ext) {
		return "", "", models.Validationf("only .cfg, .weights and .names files are allowed")
	}
	rel = path.Join(r.customDir, base)
	if other := r.referencedBy(rel, owner); other != "" {
		return "", "", models.Validationf("file %s is already used by model %s", base, other)
	}
	abs = r.abs(rel)
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", "", err
	}
	return abs, rel, nil
}

// DiscardUploads removes files saved for an upload that was not registered.
// Files the catalog references are kept.
func (r *Registry) DiscardUploads(rels []string) {
	for _, rel := range rels {
		r.removeCustomFile(rel)
	}
}

// referencedBy returns the id of a model other than except that uses rel.
func (r *Registry) referencedBy(rel, except string) string {
	m, ok := lo.Find(r.store.Catalog().All(), func(m models.Model) bool {
		return m.ID != except && (m.Config == rel || m.Weights == rel || m.Names == rel)
	})
	if !ok {
		return ""
	}
	return m.ID
}

func (r *Registry) appendCustom(m models.Model) error {
	return r.store.Mutate(func(st *store.State) (store.Resource, error) {
		st.Catalog.CustomModels = append(st.Catalog.CustomModels, m)
		return store.Catalog, nil
	})
}

// newID returns custom_<unix millis>, bumped to stay unique within the process.
func (r *Registry) newID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.now().UnixMilli()
	if id <= r.lastID {
		id = r.lastID + 1
	}
	r.lastID = id
	return fmt.Sprintf("%s%d", models.CustomModelPrefix, id)
}

func (r *Registry) classesOrDefault(rel string) int {
	n, err := r.CountClasses(rel)
	if err != nil {
		r.log.Debug().Err(err).Str("names", rel).Msg("Failed to count classes, using default")
		return models.DefaultClassCount
	}
	return n
}

func (r *Registry) isCustomPath(rel string) bool {
	return strings.HasPrefix(filepath.ToSlash(rel), r.customDir+"/")
}

func (r *Registry) removeReplaced(old, current string) {
	if old == "" || old == current {
		return
	}
	r.removeCustomFile(old)
}

// removeCustomFile deletes a file under the custom directory that no model
// references any more. Shared assets elsewhere are never touched; failures
// are logged and swallowed.
func (r *Registry) removeCustomFile(rel string) {
	if rel == "" || !r.isCustomPath(rel) {
		return
	}
	if other := r.referencedBy(rel, ""); other != "" {
		r.log.Debug().Str("file", rel).Str("model_id", other).Msg("Model file still in use, keeping it")
		return
	}
	if err := os.Remove(r.abs(rel)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		r.log.Warn().Err(err).Str("file", rel).Msg("Failed to remove model file")
	}
}

func (r *Registry) abs(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(r.workerDir, filepath.FromSlash(rel))
}

func readLabels(p string) ([]string, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		if line := strings.TrimSpace(sc.Text()); line != "" {
			names = append(names, line)
		}
	}
	return names, sc.Err()
}
