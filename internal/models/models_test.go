package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestStreamSettingsPartialMerge(t *testing.T) {
	s := DefaultStreamSettings()
	if err := json.Unmarshal([]byte(`{"jpegQuality":90,"overlay":"clock"}`), &s); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if s.JPEGQuality != 90 {
		t.Errorf("Expected jpegQuality 90, got %d", s.JPEGQuality)
	}
	if s.Quality != "medium" || !s.ShowLabels {
		t.Errorf("Expected untouched defaults, got %+v", s)
	}

	out, err := json.Marshal(s)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	if !strings.Contains(string(out), `"overlay":"clock"`) {
		t.Errorf("Expected unknown key kept, got %s", out)
	}
}

func TestDetectionConfigKeepsUnknownKeys(t *testing.T) {
	var d DetectionConfig
	in := `{"enabledClasses":[true,false],"modelId":"yolov4-tiny","nmsThreshold":0.4}`
	if err := json.Unmarshal([]byte(in), &d); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if len(d.EnabledClasses) != 2 || d.ModelID != "yolov4-tiny" {
		t.Errorf("Unexpected config %+v", d)
	}

	out, err := json.Marshal(d)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}
	var back map[string]any
	json.Unmarshal(out, &back)
	if back["nmsThreshold"] != 0.4 {
		t.Errorf("Expected nmsThreshold preserved, got %v", back["nmsThreshold"])
	}
}

func TestCameraHelpers(t *testing.T) {
	c := Camera{
		ID: 7, Name: "Front  door\tleft", IP: "10.0.0.2", RTSPPort: 554,
		Username: "admin", Password: "p@ss", Path: "/live",
	}
	if got := c.SafeName(); got != "Front_door_left" {
		t.Errorf("Expected Front_door_left, got %s", got)
	}
	if got := c.RTSPURL(); got != "rtsp://admin:p@ss@10.0.0.2:554/live" {
		t.Errorf("Unexpected RTSP URL %s", got)
	}
	if c.Key() != "7" {
		t.Errorf("Expected key 7, got %s", c.Key())
	}
}

func TestApplyUpdate(t *testing.T) {
	c := Camera{ID: 1, Name: "A", IP: "1.1.1.1", Port: 8080, RTSPPort: 554, ModelID: "m"}

	out := c.ApplyUpdate(CameraInput{Name: "B", RTSPPort: 9000})
	if out.Name != "B" || out.IP != "1.1.1.1" {
		t.Errorf("Unexpected merge %+v", out)
	}
	if out.Port != 8080 || out.RTSPPort != 554 || out.ModelID != "m" {
		t.Errorf("Expected ports and model kept, got %+v", out)
	}

	cleared := ""
	if out = c.ApplyUpdate(CameraInput{ModelID: &cleared}); out.ModelID != "" {
		t.Errorf("Expected model cleared, got %q", out.ModelID)
	}
}

func TestSeedCameras(t *testing.T) {
	list := SeedCameras()
	if len(list.Cameras) != 3 || list.NextCameraID != 4 {
		t.Fatalf("Unexpected seed %+v", list)
	}
	for i, c := range list.Cameras {
		if c.ID != i+1 || c.Port != 8080+i {
			t.Errorf("Camera %d: unexpected id/port %d/%d", i, c.ID, c.Port)
		}
	}
}

func TestErrorClassification(t *testing.T) {
	cause := errors.New("permission denied")
	err := fmt.Errorf("start: %w", ExecutableUnavailable("/opt/worker", cause))

	if !errors.Is(err, ErrExecutableUnavailable) || !errors.Is(err, cause) {
		t.Errorf("Expected sentinel and cause to match")
	}
	if errors.Is(err, ErrValidation) {
		t.Errorf("Did not expect a validation match")
	}
	if got := Message(err); got != "Executable not found or not executable: /opt/worker" {
		t.Errorf("Unexpected message %q", got)
	}
	if got := Message(NotFoundf("camera %d not found", 3)); got != "camera 3 not found" {
		t.Errorf("Unexpected message %q", got)
	}
}

func TestModelHelpers(t *testing.T) {
	if !IsCustom("custom_1") || IsCustom("yolov4-tiny") {
		t.Errorf("Unexpected IsCustom results")
	}
	if (Model{}).NamesOrDefault() != DefaultNamesFile {
		t.Errorf("Expected default labels file")
	}
	if len(DefaultCatalog().All()) != 1 {
		t.Errorf("Expected one built-in model")
	}
}
