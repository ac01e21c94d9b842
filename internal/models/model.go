package models

import "strings"

const (
	// CustomModelPrefix marks models that may be updated or deleted.
	CustomModelPrefix = "custom_"
	// DefaultNamesFile is the label set used when a model has none.
	DefaultNamesFile = "cfg/coco.names"
	// DefaultClassCount matches DefaultNamesFile.
	DefaultClassCount = 80
)

// Model is a detection model: a network config, weights and a labels file.
// Paths are relative to the worker directory.
type Model struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Config      string `json:"config"`
	Weights     string `json:"weights"`
	Names       string `json:"names"`
	Type        string `json:"type"`
	Classes     int    `json:"classes"`
}

// IsCustom reports whether the model id carries the custom prefix.
func IsCustom(id string) bool {
	return strings.HasPrefix(id, CustomModelPrefix)
}

// NamesOrDefault returns Names, or DefaultNamesFile when unset.
func (m Model) NamesOrDefault() string {
	if m.Names == "" {
		return DefaultNamesFile
	}
	return m.Names
}

// Catalog is the on-disk model document.
type Catalog struct {
	Models       []Model `json:"models"`
	CustomModels []Model `json:"customModels"`
}

// All returns built-in models followed by custom ones.
func (c Catalog) All() []Model {
	all := make([]Model, 0, len(c.Models)+len(c.CustomModels))
	all = append(all, c.Models...)
	return append(all, c.CustomModels...)
}

// BuiltinModel is the model used when the catalog has no built-ins at all.
func BuiltinModel() Model {
	return Model{
		ID:          "yolov4-tiny",
		Name:        "YOLOv4-tiny (Por defecto)",
		Description: "Modelo ligero, rápido para detección general",
		Config:      "cfg/yolov4-tiny.cfg",
		Weights:     "yolov4-tiny.weights",
		Names:       DefaultNamesFile,
		Type:        "coco",
		Classes:     DefaultClassCount,
	}
}

// DefaultCatalog is used when no model document exists yet.
func DefaultCatalog() Catalog {
	return Catalog{
		Models:       []Model{BuiltinModel()},
		CustomModels: []Model{},
	}
}

// ModelInput is the caller-supplied payload for model add and update.
type ModelInput struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Config      string `json:"config"`
	Weights     string `json:"weights"`
	Names       string `json:"names"`
	Type        string `json:"type"`
}

// ModelFiles carries the paths of uploaded files, relative to the worker
// directory. Empty means not uploaded.
type ModelFiles struct {
	Config  string
	Weights string
	Names   string
}
