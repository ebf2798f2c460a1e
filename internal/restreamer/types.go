package restreamer

// Process is one entry in the engine's process list.
type Process struct {
	ID        string  `json:"id"`
	Reference string  `json:"reference"`
	State     string  `json:"state"`
	Uptime    int64   `json:"uptime"`
	CPUUsage  float64 `json:"cpu_usage"`
	Memory    uint64  `json:"memory"`
	Command   string  `json:"command"`
}

// ProcessState is the runtime state of a single process.
type ProcessState struct {
	Order    string   `json:"order"`
	Running  bool     `json:"running"`
	Progress Progress `json:"progress"`
}

// Progress carries the ffmpeg progress counters the engine reports for a
// running process. Bitrate is in kbit/s and SizeKB in kilobytes, matching
// the wire format.
type Progress struct {
	Frames        uint64  `json:"frames"`
	DroppedFrames uint64  `json:"dropped_frames"`
	Bitrate       uint64  `json:"bitrate"`
	FPS           float64 `json:"fps"`
	SizeKB        uint64  `json:"size_kb"`
	Packets       uint64  `json:"packets"`
	Percent       float64 `json:"percent"`
}

// Bytes returns the total bytes written by the process.
func (p Progress) Bytes() uint64 {
	return p.SizeKB * 1024
}

// Output describes a single output attached to a process.
type Output struct {
	ID          string `json:"id"`
	URL         string `json:"url,omitempty"`
	VideoFilter string `json:"video_filter,omitempty"`
}

// EncodingParams carries per-output encoder settings. Bitrates are in
// kbit/s; zero-valued fields are left untouched on the engine side.
type EncodingParams struct {
	VideoBitrateKbps int
	AudioBitrateKbps int
	Width            int
	Height           int
	FPSNum           int
	FPSDen           int
	Preset           string
	Profile          string
}

// Info describes the engine build, from GET /api.
type Info struct {
	Name      string `json:"name"`
	Version   string `json:"version"`
	BuildDate string `json:"build_date"`
	Commit    string `json:"commit"`
}

// LogEntry is one line of a process's ffmpeg log.
type LogEntry struct {
	Timestamp int64  `json:"timestamp"`
	Message   string `json:"message"`
	Level     string `json:"level"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresAt    int64  `json:"expires_at"`
}

type createProcessRequest struct {
	Reference string `json:"reference"`
	Command   string `json:"command"`
	Autostart bool   `json:"autostart"`
}

type processCommandRequest struct {
	Command string `json:"command"`
}

type addOutputRequest struct {
	ID          string `json:"id"`
	URL         string `json:"url"`
	VideoFilter string `json:"video_filter,omitempty"`
}

type updateOutputRequest struct {
	URL         string `json:"url,omitempty"`
	VideoFilter string `json:"video_filter,omitempty"`
}

type outputsResponse struct {
	Outputs []Output `json:"outputs"`
}

type resolutionSpec struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type rationalSpec struct {
	Num int `json:"num"`
	Den int `json:"den"`
}

type encodingRequest struct {
	VideoBitrate int             `json:"video_bitrate,omitempty"`
	AudioBitrate int             `json:"audio_bitrate,omitempty"`
	Resolution   *resolutionSpec `json:"resolution,omitempty"`
	FPS          *rationalSpec   `json:"fps,omitempty"`
	Preset       string          `json:"preset,omitempty"`
	Profile      string          `json:"profile,omitempty"`
}
