package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"kepler-fleet/internal/models"
)

const (
	CamerasFile   = "cameras_config.json"
	DetectionFile = "detection_config.json"
	ModelsFile    = "models_config.json"
)

// Resource selects which documents a mutation touched.
type Resource uint8

const (
	Cameras Resource = 1 << iota
	Detection
	Catalog

	None Resource = 0
)

// State is the in-memory copy of the three persisted documents.
type State struct {
	Cameras   models.CameraList
	Detection map[int]models.DetectionConfig
	Catalog   models.Catalog
}

// Camera returns a pointer into the camera list, or nil.
func (s *State) Camera(id int) *models.Camera {
	for i := range s.Cameras.Cameras {
		if s.Cameras.Cameras[i].ID == id {
			return &s.Cameras.Cameras[i]
		}
	}
	return nil
}

// Store owns the persisted configuration. Reads return copies; every change
// goes through Mutate, which writes to disk before the change becomes visible.
type Store struct {
	dir string
	log zerolog.Logger

	mu    sync.RWMutex
	state State
}

func New(dir string, logger zerolog.Logger) *Store {
	return &Store{
		dir: dir,
		log: logger,
		state: State{
			Cameras:   models.SeedCameras(),
			Detection: map[int]models.DetectionConfig{},
			Catalog:   models.DefaultCatalog(),
		},
	}
}

func (s *Store) Dir() string {
	return s.dir
}

// Load reads all documents. Absent or unparseable documents fall back to
// their defaults and are not rewritten until the next mutation.
func (s *Store) Load() error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	st := State{
		Cameras:   models.SeedCameras(),
		Detection: map[int]models.DetectionConfig{},
		Catalog:   models.DefaultCatalog(),
	}

	var cams models.CameraList
	if s.read(CamerasFile, &cams) {
		if cams.Cameras != nil {
			st.Cameras.Cameras = cams.Cameras
		}
		if cams.NextCameraID > 0 {
			st.Cameras.NextCameraID = cams.NextCameraID
		}
		// The counter must stay ahead of every id on disk.
		if maxID := lo.MaxBy(st.Cameras.Cameras, func(a, b models.Camera) bool { return a.ID > b.ID }); maxID.ID >= st.Cameras.NextCameraID {
			st.Cameras.NextCameraID = maxID.ID + 1
		}
	}

	var det map[int]models.DetectionConfig
	if s.read(DetectionFile, &det) && det != nil {
		st.Detection = det
	}

	var cat models.Catalog
	if s.read(ModelsFile, &cat) {
		if cat.Models == nil {
			cat.Models = []models.Model{}
		}
		if cat.CustomModels == nil {
			cat.CustomModels = []models.Model{}
		}
		st.Catalog = cat
	}

	s.mu.Lock()
	s.state = st
	s.mu.Unlock()

	s.log.Info().
		Int("cameras", len(st.Cameras.Cameras)).
		Int("detection_configs", len(st.Detection)).
		Int("models", len(st.Catalog.Models)).
		Int("custom_models", len(st.Catalog.CustomModels)).
		Msg("Configuration loaded")
	return nil
}

func (s *Store) read(name string, v any) bool {
	path := filepath.Join(s.dir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			s.log.Info().Str("file", path).Msg("Configuration file absent, using defaults")
		} else {
			s.log.Warn().Err(err).Str("file", path).Msg("Failed to read configuration file, using defaults")
		}
		return false
	}
	if err := json.Unmarshal(data, v); err != nil {
		s.log.Warn().Err(err).Str("file", path).Msg("Configuration file is corrupt, using defaults")
		return false
	}
	return true
}

// Snapshot returns a deep copy of the whole state.
func (s *Store) Snapshot() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return clone(s.state)
}

func (s *Store) Cameras() []models.Camera {
	return s.Snapshot().Cameras.Cameras
}

func (s *Store) Camera(id int) (models.Camera, bool) {
	st := s.Snapshot()
	cam := st.Camera(id)
	if cam == nil {
		return models.Camera{}, false
	}
	return *cam, true
}

func (s *Store) DetectionConfig(id int) (models.DetectionConfig, bool) {
	st := s.Snapshot()
	cfg, ok := st.Detection[id]
	return cfg, ok
}

func (s *Store) Catalog() models.Catalog {
	return s.Snapshot().Catalog
}

// Mutate applies fn to a copy of the state, writes every document fn reports
// as dirty and only then makes the copy current. If fn fails nothing is
// written. If a write fails memory is left untouched and ErrPersistence is
// returned; documents written earlier in the same call stay on disk.
func (s *Store) Mutate(fn func(st *State) (Resource, error)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := clone(s.state)
	dirty, err := fn(&next)
	if err != nil {
		return err
	}
	if dirty == None {
		return nil
	}

	if dirty&Cameras != 0 {
		if next.Cameras.Cameras == nil {
			next.Cameras.Cameras = []models.Camera{}
		}
		if err := s.write(CamerasFile, next.Cameras); err != nil {
			return models.Persistence("cameras", err)
		}
	}
	if dirty&Detection != 0 {
		if err := s.write(DetectionFile, next.Detection); err != nil {
			return models.Persistence("detection settings", err)
		}
	}
	if dirty&Catalog != 0 {
		if next.Catalog.CustomModels == nil {
			next.Catalog.CustomModels = []models.Model{}
		}
		if err := s.write(ModelsFile, next.Catalog); err != nil {
			return models.Persistence("model catalog", err)
		}
	}

	s.state = next
	return nil
}

func (s *Store) write(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return WriteFileAtomic(filepath.Join(s.dir, name), data)
}

// WriteFileAtomic writes data to a temporary file next to path and renames it
// into place.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

func clone(st State) State {
	var out State
	data, err := json.Marshal(wire{st.Cameras, st.Detection, st.Catalog})
	if err != nil {
		// All state types are plain JSON documents.
		panic(fmt.Sprintf("store: clone state: %v", err))
	}
	var w wire
	if err := json.Unmarshal(data, &w); err != nil {
		panic(fmt.Sprintf("store: clone state: %v", err))
	}
	out.Cameras = w.Cameras
	out.Detection = w.Detection
	out.Catalog = w.Catalog
	if out.Detection == nil {
		out.Detection = map[int]models.DetectionConfig{}
	}
	return out
}

type wire struct {
	Cameras   models.CameraList              `json:"cameras"`
	Detection map[int]models.DetectionConfig `json:"detection"`
	Catalog   models.Catalog                 `json:"catalog"`
}
