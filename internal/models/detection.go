package models

import (
	"encoding/json"
)

// StreamSettings is the display settings document handed to a worker in
// camera_<id>_settings.json. Keys the worker does not know about are kept in
// Extra and written back unchanged.
type StreamSettings struct {
	Quality           string  `json:"quality"`
	Resolution        string  `json:"resolution"`
	JPEGQuality       int     `json:"jpegQuality"`
	DetectionEnabled  bool    `json:"detectionEnabled"`
	ShowBoundingBoxes bool    `json:"showBoundingBoxes"`
	ShowLabels        bool    `json:"showLabels"`
	ShowConfidence    bool    `json:"showConfidence"`
	MinConfidence     float64 `json:"minConfidence"`

	Extra map[string]json.RawMessage `json:"-"`
}

var streamSettingsKeys = keySet(
	"quality", "resolution", "jpegQuality", "detectionEnabled",
	"showBoundingBoxes", "showLabels", "showConfidence", "minConfidence",
)

// DefaultStreamSettings is used for cameras that never had settings saved.
func DefaultStreamSettings() StreamSettings {
	return StreamSettings{
		Quality:           "medium",
		Resolution:        "720p",
		JPEGQuality:       75,
		DetectionEnabled:  true,
		ShowBoundingBoxes: true,
		ShowLabels:        true,
		ShowConfidence:    true,
		MinConfidence:     0.5,
	}
}

// UnmarshalJSON overwrites only the keys present in data, so decoding into an
// existing value acts as a partial merge.
func (s *StreamSettings) UnmarshalJSON(data []byte) error {
	type plain StreamSettings
	if err := json.Unmarshal(data, (*plain)(s)); err != nil {
		return err
	}
	extra, err := extraFields(data, streamSettingsKeys, s.Extra)
	if err != nil {
		return err
	}
	s.Extra = extra
	return nil
}

func (s StreamSettings) MarshalJSON() ([]byte, error) {
	type plain StreamSettings
	encoded, err := json.Marshal(plain(s))
	if err != nil {
		return nil, err
	}
	return withExtra(encoded, s.Extra)
}

// DetectionConfig is the per-camera detection options document. It is
// persisted in detection_config.json keyed by camera id and copied verbatim to
// camera_<id>_config.json before every start.
type DetectionConfig struct {
	EnabledClasses []bool          `json:"enabledClasses,omitempty"` // Indexed by class id
	Enabled        map[string]bool `json:"enabled,omitempty"`        // Legacy form keyed by class id string
	ModelID        string          `json:"modelId,omitempty"`
	MinConfidence  *float64        `json:"minConfidence,omitempty"`

	Extra map[string]json.RawMessage `json:"-"`
}

var detectionConfigKeys = keySet("enabledClasses", "enabled", "modelId", "minConfidence")

func (d *DetectionConfig) UnmarshalJSON(data []byte) error {
	type plain DetectionConfig
	if err := json.Unmarshal(data, (*plain)(d)); err != nil {
		return err
	}
	extra, err := extraFields(data, detectionConfigKeys, d.Extra)
	if err != nil {
		return err
	}
	d.Extra = extra
	return nil
}

func (d DetectionConfig) MarshalJSON() ([]byte, error) {
	type plain DetectionConfig
	encoded, err := json.Marshal(plain(d))
	if err != nil {
		return nil, err
	}
	return withExtra(encoded, d.Extra)
}
