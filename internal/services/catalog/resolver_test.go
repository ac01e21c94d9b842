package catalog

import (
	"testing"

	"kepler-fleet/internal/models"
)

func testCatalog() models.Catalog {
	return models.Catalog{
		Models: []models.Model{
			{ID: "yolov4-tiny", Config: "cfg/yolov4-tiny.cfg"},
			{ID: "yolov4", Config: "cfg/yolov4.cfg"},
		},
		CustomModels: []models.Model{
			{ID: "custom_1", Config: "custom_models/a.cfg"},
			// Same id as a built-in: built-ins take precedence.
			{ID: "yolov4", Config: "custom_models/shadow.cfg"},
		},
	}
}

func TestResolveSelectedModel(t *testing.T) {
	m := Resolve(models.Camera{ModelID: "custom_1"}, testCatalog())
	if m.ID != "custom_1" {
		t.Errorf("Expected custom_1, got %s", m.ID)
	}
}

func TestResolvePrefersBuiltin(t *testing.T) {
	m := Resolve(models.Camera{ModelID: "yolov4"}, testCatalog())
	if m.Config != "cfg/yolov4.cfg" {
		t.Errorf("Expected built-in yolov4, got %s", m.Config)
	}
}

func TestResolveFallsBack(t *testing.T) {
	for _, id := range []string{"", "custom_gone"} {
		m := Resolve(models.Camera{ModelID: id}, testCatalog())
		if m.ID != "yolov4-tiny" {
			t.Errorf("ModelID %q: expected fallback to first built-in, got %s", id, m.ID)
		}
	}
}

func TestResolveEmptyCatalog(t *testing.T) {
	m := Resolve(models.Camera{ModelID: "x"}, models.Catalog{})
	if m.ID != models.BuiltinModel().ID {
		t.Errorf("Expected hardcoded default, got %s", m.ID)
	}
}
