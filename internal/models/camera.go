package models

import (
	"fmt"
	"regexp"
	"strconv"
)

// Camera is a persisted camera record. ID and Port are assigned by the registry
// and never change afterwards.
type Camera struct {
	ID       int             `json:"id"`
	Name     string          `json:"name"`
	IP       string          `json:"ip"`
	Port     int             `json:"port"`      // Annotated stream port served by the worker
	RTSPPort int             `json:"rtsp_port"` // Camera's RTSP port
	Username string          `json:"username"`
	Password string          `json:"password"`
	Path     string          `json:"path"`
	ModelID  string          `json:"modelId,omitempty"`
	Settings *StreamSettings `json:"settings,omitempty"`
}

// CameraList is the on-disk camera document.
type CameraList struct {
	Cameras      []Camera `json:"cameras"`
	NextCameraID int      `json:"nextCameraId"`
}

// CameraInput is the caller-supplied payload for add and update. Empty fields
// are treated as absent; ModelID distinguishes absent (nil) from cleared ("").
type CameraInput struct {
	Name     string  `json:"name"`
	IP       string  `json:"ip"`
	RTSPPort int     `json:"rtsp_port"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	Path     string  `json:"path"`
	ModelID  *string `json:"modelId"`
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// SafeName returns the camera name with every whitespace run replaced by "_".
func (c Camera) SafeName() string {
	return whitespaceRun.ReplaceAllString(c.Name, "_")
}

// RTSPURL builds rtsp://user:pass@ip:port/path. Credentials are inserted verbatim.
func (c Camera) RTSPURL() string {
	return fmt.Sprintf("rtsp://%s:%s@%s:%d%s", c.Username, c.Password, c.IP, c.RTSPPort, c.Path)
}

// Key is the string form of the id used for map keys and log fields.
func (c Camera) Key() string {
	return strconv.Itoa(c.ID)
}

// ApplyUpdate merges in over c. Non-empty strings overwrite, ModelID is
// replaced whenever provided. ID, Port and RTSPPort are kept.
func (c Camera) ApplyUpdate(in CameraInput) Camera {
	out := c
	if in.Name != "" {
		out.Name = in.Name
	}
	if in.IP != "" {
		out.IP = in.IP
	}
	if in.Username != "" {
		out.Username = in.Username
	}
	if in.Password != "" {
		out.Password = in.Password
	}
	if in.Path != "" {
		out.Path = in.Path
	}
	if in.ModelID != nil {
		out.ModelID = *in.ModelID
	}
	return out
}

// CameraView is a camera enriched with its runtime state.
type CameraView struct {
	Camera
	Running   bool        `json:"running"`
	State     WorkerState `json:"state"`
	StreamURL string      `json:"streamUrl"`
}

// SeedCameras is the camera list used when no camera document exists yet.
func SeedCameras() CameraList {
	base := Camera{
		RTSPPort: 554,
		Username: "admin",
		Password: "admin",
		Path:     "/Streaming/Channels/1",
	}
	seed := []struct {
		name string
		ip   string
	}{
		{"Cámara Principal", "192.168.1.124"},
		{"Exterior", "192.168.1.126"},
		{"ofi", "192.168.1.123"},
	}

	list := CameraList{NextCameraID: len(seed) + 1}
	for i, s := range seed {
		cam := base
		cam.ID = i + 1
		cam.Name = s.name
		cam.IP = s.ip
		cam.Port = 8080 + i
		list.Cameras = append(list.Cameras, cam)
	}
	return list
}
