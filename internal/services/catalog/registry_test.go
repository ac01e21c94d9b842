package catalog

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"kepler-fleet/internal/models"
	"kepler-fleet/internal/services/store"
)

type registryFixture struct {
	reg       *Registry
	store     *store.Store
	workerDir string
}

func newRegistryFixture(t *testing.T) *registryFixture {
	t.Helper()
	root := t.TempDir()
	workerDir := filepath.Join(root, "darknet")
	st := store.New(filepath.Join(root, "config"), zerolog.Nop())
	if err := st.Load(); err != nil {
		t.Fatalf("Failed to load store: %v", err)
	}
	writeFile(t, filepath.Join(workerDir, "cfg", "coco.names"), "person\nbicycle\ncar\n")
	return &registryFixture{
		reg:       NewRegistry(st, workerDir, "custom_models", zerolog.Nop()),
		store:     st,
		workerDir: workerDir,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write %s: %v", path, err)
	}
}

func (f *registryFixture) upload(t *testing.T, name, content string) string {
	t.Helper()
	return f.uploadFor(t, "", name, content)
}

func (f *registryFixture) uploadFor(t *testing.T, owner, name, content string) string {
	t.Helper()
	abs, rel, err := f.reg.UploadTarget(name, owner)
	if err != nil {
		t.Fatalf("UploadTarget(%s) failed: %v", name, err)
	}
	writeFile(t, abs, content)
	return rel
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func TestAddValidation(t *testing.T) {
	f := newRegistryFixture(t)
	_, err := f.reg.Add(context.Background(), models.ModelInput{Name: "x"})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
	if len(f.store.Catalog().CustomModels) != 0 {
		t.Errorf("Expected no model added")
	}
}

func TestAddDefaults(t *testing.T) {
	f := newRegistryFixture(t)
	m, err := f.reg.Add(context.Background(), models.ModelInput{
		Name: "Mine", Config: "cfg/mine.cfg", Weights: "mine.weights",
	})
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if !models.IsCustom(m.ID) {
		t.Errorf("Expected custom id, got %s", m.ID)
	}
	if m.Type != "custom" || m.Description == "" {
		t.Errorf("Expected default type and description, got %q %q", m.Type, m.Description)
	}
	if m.Names != models.DefaultNamesFile {
		t.Errorf("Expected default names file, got %s", m.Names)
	}
	if m.Classes != 3 {
		t.Errorf("Expected 3 classes counted from default labels, got %d", m.Classes)
	}
	if _, err := f.reg.Get(m.ID); err != nil {
		t.Errorf("Expected model listed, got %v", err)
	}
}

func TestAddIDsUnique(t *testing.T) {
	f := newRegistryFixture(t)
	fixed := time.UnixMilli(1700000000000)
	f.reg.now = func() time.Time { return fixed }

	in := models.ModelInput{Name: "m", Config: "a.cfg", Weights: "a.weights"}
	a, err := f.reg.Add(context.Background(), in)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	b, err := f.reg.Add(context.Background(), in)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if a.ID == b.ID {
		t.Fatalf("Expected distinct ids, both %s", a.ID)
	}
	if a.ID != "custom_1700000000000" {
		t.Errorf("Expected custom_1700000000000, got %s", a.ID)
	}
}

func TestUploadAddCountsClasses(t *testing.T) {
	f := newRegistryFixture(t)
	files := models.ModelFiles{
		Config:  f.upload(t, "net.cfg", "[net]"),
		Weights: f.upload(t, "net.weights", "w"),
		Names:   f.upload(t, "net.names", "a\n\nb\n  \n"),
	}
	m, err := f.reg.UploadAdd(context.Background(), files, models.ModelInput{Name: "Net"})
	if err != nil {
		t.Fatalf("UploadAdd failed: %v", err)
	}
	if m.Classes != 2 {
		t.Errorf("Expected 2 classes, got %d", m.Classes)
	}
	if m.Config != "custom_models/net.cfg" {
		t.Errorf("Expected custom_models/net.cfg, got %s", m.Config)
	}
}

func TestUploadAddWithoutNames(t *testing.T) {
	f := newRegistryFixture(t)
	files := models.ModelFiles{
		Config:  f.upload(t, "net.cfg", "[net]"),
		Weights: f.upload(t, "net.weights", "w"),
	}
	m, err := f.reg.UploadAdd(context.Background(), files, models.ModelInput{Name: "Net"})
	if err != nil {
		t.Fatalf("UploadAdd failed: %v", err)
	}
	if m.Classes != models.DefaultClassCount || m.Names != models.DefaultNamesFile {
		t.Errorf("Expected default labels, got %s with %d classes", m.Names, m.Classes)
	}
}

func TestUploadAddRequiresFiles(t *testing.T) {
	f := newRegistryFixture(t)
	_, err := f.reg.UploadAdd(context.Background(), models.ModelFiles{Config: "custom_models/a.cfg"}, models.ModelInput{Name: "x"})
	if !errors.Is(err, models.ErrValidation) {
		t.Fatalf("Expected validation error, got %v", err)
	}
}

func TestUploadTarget(t *testing.T) {
	f := newRegistryFixture(t)
	if _, _, err := f.reg.UploadTarget("evil.exe", ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected .exe rejected, got %v", err)
	}
	abs, rel, err := f.reg.UploadTarget("../../etc/x.cfg", "")
	if err != nil {
		t.Fatalf("UploadTarget failed: %v", err)
	}
	if rel != "custom_models/x.cfg" {
		t.Errorf("Expected traversal stripped, got %s", rel)
	}
	if abs != filepath.Join(f.workerDir, "custom_models", "x.cfg") {
		t.Errorf("Unexpected absolute path %s", abs)
	}
	if _, _, err := f.reg.UploadTarget("X.WEIGHTS", ""); err != nil {
		t.Errorf("Expected extension check to ignore case, got %v", err)
	}
}

func TestUpdateReplacesFiles(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	m, err := f.reg.UploadAdd(ctx, models.ModelFiles{
		Config:  f.upload(t, "old.cfg", "[net]"),
		Weights: f.upload(t, "old.weights", "w"),
	}, models.ModelInput{Name: "Old"})
	if err != nil {
		t.Fatalf("UploadAdd failed: %v", err)
	}

	newNames := f.upload(t, "new.names", "x\ny\nz\nw\n")
	newCfg := f.upload(t, "new.cfg", "[net]")
	updated, err := f.reg.Update(ctx, m.ID, models.ModelInput{Name: "New"}, models.ModelFiles{Config: newCfg, Names: newNames})
	if err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if updated.Name != "New" || updated.Config != newCfg || updated.Classes != 4 {
		t.Errorf("Unexpected updated model %+v", updated)
	}
	if updated.Weights != m.Weights {
		t.Errorf("Expected weights kept, got %s", updated.Weights)
	}
	if exists(filepath.Join(f.workerDir, "custom_models", "old.cfg")) {
		t.Errorf("Expected replaced config removed")
	}
	if !exists(filepath.Join(f.workerDir, "custom_models", "old.weights")) {
		t.Errorf("Expected untouched weights kept")
	}
	if !exists(filepath.Join(f.workerDir, "cfg", "coco.names")) {
		t.Errorf("Expected shared labels file never removed")
	}
}

func TestUpdateSameFileNameKeepsFile(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	cfg := f.upload(t, "same.cfg", "[net]")
	m, err := f.reg.UploadAdd(ctx, models.ModelFiles{Config: cfg, Weights: f.upload(t, "same.weights", "w")}, models.ModelInput{Name: "S"})
	if err != nil {
		t.Fatalf("UploadAdd failed: %v", err)
	}
	cfg = f.uploadFor(t, m.ID, "same.cfg", "[net]\nbatch=2")
	if _, err := f.reg.Update(ctx, m.ID, models.ModelInput{}, models.ModelFiles{Config: cfg}); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if !exists(filepath.Join(f.workerDir, "custom_models", "same.cfg")) {
		t.Errorf("Expected re-uploaded file to survive")
	}
}

func TestUpdateErrors(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	if _, err := f.reg.Update(ctx, "yolov4-tiny", models.ModelInput{Name: "x"}, models.ModelFiles{}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for built-in, got %v", err)
	}
	if _, err := f.reg.Update(ctx, "custom_404", models.ModelInput{Name: "x"}, models.ModelFiles{}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestDeleteClearsReferences(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	m, err := f.reg.UploadAdd(ctx, models.ModelFiles{
		Config:  f.upload(t, "d.cfg", "[net]"),
		Weights: f.upload(t, "d.weights", "w"),
	}, models.ModelInput{Name: "D"})
	if err != nil {
		t.Fatalf("UploadAdd failed: %v", err)
	}
	err = f.store.Mutate(func(st *store.State) (store.Resource, error) {
		st.Camera(1).ModelID = m.ID
		st.Camera(2).ModelID = "yolov4-tiny"
		st.Detection[1] = models.DetectionConfig{ModelID: m.ID}
		return store.Cameras | store.Detection, nil
	})
	if err != nil {
		t.Fatalf("Mutate failed: %v", err)
	}

	if err := f.reg.Delete(ctx, m.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := f.reg.Get(m.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected model gone, got %v", err)
	}
	cam1, _ := f.store.Camera(1)
	cam2, _ := f.store.Camera(2)
	if cam1.ModelID != "" {
		t.Errorf("Expected camera 1 reference cleared, got %s", cam1.ModelID)
	}
	if cam2.ModelID != "yolov4-tiny" {
		t.Errorf("Expected camera 2 untouched, got %s", cam2.ModelID)
	}
	if det, _ := f.store.DetectionConfig(1); det.ModelID != "" {
		t.Errorf("Expected detection reference cleared, got %s", det.ModelID)
	}
	if exists(filepath.Join(f.workerDir, "custom_models", "d.cfg")) || exists(filepath.Join(f.workerDir, "custom_models", "d.weights")) {
		t.Errorf("Expected uploaded files removed")
	}
	if !exists(filepath.Join(f.workerDir, "cfg", "coco.names")) {
		t.Errorf("Expected shared labels file kept")
	}

	// Reload from disk to prove persistence.
	reloaded := store.New(f.store.Dir(), zerolog.Nop())
	if err := reloaded.Load(); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	if c, _ := reloaded.Camera(1); c.ModelID != "" {
		t.Errorf("Expected cleared reference persisted, got %s", c.ModelID)
	}
}

func TestDeleteErrors(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	if err := f.reg.Delete(ctx, "yolov4-tiny"); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected validation error for built-in, got %v", err)
	}
	if err := f.reg.Delete(ctx, "custom_404"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestNames(t *testing.T) {
	f := newRegistryFixture(t)
	res, err := f.reg.Names("yolov4-tiny")
	if err != nil {
		t.Fatalf("Names failed: %v", err)
	}
	if res.Count != 3 || res.Names[2] != "car" {
		t.Errorf("Unexpected labels %+v", res)
	}
	if _, err := f.reg.Names("nope"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestUploadTargetRefusesFilesOfOtherModels(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	m, err := f.reg.UploadAdd(ctx, models.ModelFiles{
		Config:  f.upload(t, "net.cfg", "[net]"),
		Weights: f.upload(t, "net.weights", "w"),
	}, models.ModelInput{Name: "Net"})
	if err != nil {
		t.Fatalf("UploadAdd failed: %v", err)
	}

	if _, _, err := f.reg.UploadTarget("net.cfg", ""); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected a new upload to be refused another model's file, got %v", err)
	}
	if _, _, err := f.reg.UploadTarget("net.cfg", m.ID); err != nil {
		t.Errorf("Expected the owning model to replace its own file, got %v", err)
	}
	if _, _, err := f.reg.UploadTarget("other.cfg", ""); err != nil {
		t.Errorf("Expected an unused name to be accepted, got %v", err)
	}
}

func TestDiscardUploadsKeepsReferencedFiles(t *testing.T) {
	f := newRegistryFixture(t)
	ctx := context.Background()
	cfg := f.upload(t, "keep.cfg", "[net]")
	if _, err := f.reg.UploadAdd(ctx, models.ModelFiles{Config: cfg, Weights: f.upload(t, "keep.weights", "w")}, models.ModelInput{Name: "K"}); err != nil {
		t.Fatalf("UploadAdd failed: %v", err)
	}
	stray := f.upload(t, "stray.names", "a\n")

	f.reg.DiscardUploads([]string{cfg, stray})

	if !exists(filepath.Join(f.workerDir, "custom_models", "keep.cfg")) {
		t.Errorf("Expected referenced file kept")
	}
	if exists(filepath.Join(f.workerDir, "custom_models", "stray.names")) {
		t.Errorf("Expected unreferenced file removed")
	}
}

func TestValidateUpload(t *testing.T) {
	full := models.ModelFiles{Config: "custom_models/a.cfg", Weights: "custom_models/a.weights"}
	if err := ValidateUpload(full, models.ModelInput{Name: "A"}); err != nil {
		t.Errorf("Expected valid upload, got %v", err)
	}
	if err := ValidateUpload(full, models.ModelInput{Name: "  "}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected blank name rejected, got %v", err)
	}
	if err := ValidateUpload(models.ModelFiles{Config: full.Config}, models.ModelInput{Name: "A"}); !errors.Is(err, models.ErrValidation) {
		t.Errorf("Expected missing weights rejected, got %v", err)
	}
}
