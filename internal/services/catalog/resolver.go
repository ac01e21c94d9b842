package catalog

import (
	"github.com/samber/lo"

	"kepler-fleet/internal/models"
)

// Resolve picks the model a camera's worker runs with: the camera's model if
// the catalog has it (built-ins first), otherwise the first built-in model.
// It never fails; a dangling reference falls back silently.
func Resolve(cam models.Camera, cat models.Catalog) models.Model {
	if cam.ModelID != "" {
		if m, ok := Find(cat, cam.ModelID); ok {
			return m
		}
	}
	if len(cat.Models) > 0 {
		return cat.Models[0]
	}
	return models.BuiltinModel()
}

// Find looks a model up by id across built-in and custom models.
func Find(cat models.Catalog, id string) (models.Model, bool) {
	return lo.Find(cat.All(), func(m models.Model) bool { return m.ID == id })
}
