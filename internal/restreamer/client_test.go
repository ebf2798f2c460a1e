package restreamer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

const testToken = "test-access-token"

// newTestClient wires a Client to a fake engine. Login is handled by the
// fake; v3 traffic is dispatched to handler after the bearer token has been
// verified. The returned counter tracks login calls.
func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *atomic.Int32) {
	t.Helper()

	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		logins.Add(1)
		var req loginRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("failed to decode login body: %v", err)
		}
		if req.Username != "admin" || req.Password != "secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		json.NewEncoder(w).Encode(loginResponse{
			AccessToken: testToken,
			ExpiresAt:   time.Now().Add(time.Hour).Unix(),
		})
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer "+testToken {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		if handler != nil {
			handler(w, r)
			return
		}
		w.Write([]byte("[]"))
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := NewClient(Config{Username: "admin", Password: "secret"})
	client.baseURL = server.URL
	return client, &logins
}

func TestLoginAttachesBearer(t *testing.T) {
	var sawAuth atomic.Bool
	client, logins := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		sawAuth.Store(true)
		w.Write([]byte("[]"))
	})

	if _, err := client.ListProcesses(context.Background()); err != nil {
		t.Fatalf("ListProcesses failed: %v", err)
	}
	if !sawAuth.Load() {
		t.Error("expected authenticated request to reach the engine")
	}
	if got := logins.Load(); got != 1 {
		t.Errorf("logins = %d, want 1", got)
	}

	// Token is still valid, no second login.
	if _, err := client.ListProcesses(context.Background()); err != nil {
		t.Fatalf("second ListProcesses failed: %v", err)
	}
	if got := logins.Load(); got != 1 {
		t.Errorf("logins after reuse = %d, want 1", got)
	}
}

func TestLoginFailureThrottles(t *testing.T) {
	var logins atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/api/login" {
			logins.Add(1)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		t.Errorf("unexpected request to %s before login succeeded", r.URL.Path)
	}))
	defer server.Close()

	client := NewClient(Config{Username: "admin", Password: "secret"})
	client.baseURL = server.URL

	if _, err := client.ListProcesses(context.Background()); err == nil {
		t.Fatal("expected error when login fails")
	}
	if got := logins.Load(); got != 1 {
		t.Fatalf("logins = %d, want 1", got)
	}

	// Second attempt inside the backoff window must not hit the server.
	_, err := client.ListProcesses(context.Background())
	if err == nil || !strings.Contains(err.Error(), "throttled") {
		t.Errorf("expected throttled error, got %v", err)
	}
	if got := logins.Load(); got != 1 {
		t.Errorf("logins after throttled attempt = %d, want 1", got)
	}
}

func TestExpiredTokenTriggersRelogin(t *testing.T) {
	var logins atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/api/login", func(w http.ResponseWriter, r *http.Request) {
		n := logins.Add(1)
		expires := time.Now().Add(time.Hour)
		if n == 1 {
			// First token is already stale.
			expires = time.Now().Add(-time.Minute)
		}
		json.NewEncoder(w).Encode(loginResponse{
			AccessToken: testToken,
			ExpiresAt:   expires.Unix(),
		})
	})
	mux.HandleFunc("/api/v3/process", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	client := NewClient(Config{Username: "admin", Password: "secret"})
	client.baseURL = server.URL

	for i := 0; i < 3; i++ {
		if _, err := client.ListProcesses(context.Background()); err != nil {
			t.Fatalf("ListProcesses %d failed: %v", i, err)
		}
	}
	if got := logins.Load(); got != 2 {
		t.Errorf("logins = %d, want 2 (initial + refresh after stale token)", got)
	}
}

func TestRetryAfterUnauthorized(t *testing.T) {
	var v3Calls atomic.Int32
	client, logins := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if v3Calls.Add(1) == 1 {
			// Simulate a token revoked server-side.
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Write([]byte("[]"))
	})

	if _, err := client.ListProcesses(context.Background()); err != nil {
		t.Fatalf("ListProcesses failed: %v", err)
	}
	if got := v3Calls.Load(); got != 2 {
		t.Errorf("v3 calls = %d, want 2", got)
	}
	if got := logins.Load(); got != 2 {
		t.Errorf("logins = %d, want 2", got)
	}
}

func TestBuildTeeCommand(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		outputs  []string
		filter   string
		expected string
	}{
		{
			name:     "single output",
			input:    "rtmp://localhost/live/input",
			outputs:  []string{"rtmp://a.example.com/live/key1"},
			expected: `-re -i rtmp://localhost/live/input -c:v copy -c:a copy -f tee -map 0:v -map 0:a "[f=flv]rtmp://a.example.com/live/key1"`,
		},
		{
			name:     "two outputs",
			input:    "rtmp://localhost/live/input",
			outputs:  []string{"rtmp://a.example.com/live/key1", "rtmps://b.example.com:443/rtmp/key2"},
			expected: `-re -i rtmp://localhost/live/input -c:v copy -c:a copy -f tee -map 0:v -map 0:a "[f=flv]rtmp://a.example.com/live/key1|[f=flv]rtmps://b.example.com:443/rtmp/key2"`,
		},
		{
			name:     "with filter",
			input:    "rtmp://localhost/live/input",
			outputs:  []string{"rtmp://a.example.com/live/key1"},
			filter:   "crop=ih*9/16:ih,scale=1080:1920",
			expected: `-re -i rtmp://localhost/live/input -c:v copy -c:a copy -f tee -map 0:v -map 0:a -vf crop=ih*9/16:ih,scale=1080:1920 "[f=flv]rtmp://a.example.com/live/key1"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := BuildTeeCommand(tt.input, tt.outputs, tt.filter)
			if got != tt.expected {
				t.Errorf("command = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestCreateProcessBody(t *testing.T) {
	var body createProcessRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v3/process" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	outputs := []string{"rtmp://a.example.com/live/key1", "rtmp://b.example.com/live/key2"}
	err := client.CreateProcess(context.Background(), "unit_123", "rtmp://localhost/live/input", outputs, "")
	if err != nil {
		t.Fatalf("CreateProcess failed: %v", err)
	}

	if body.Reference != "unit_123" {
		t.Errorf("reference = %q, want unit_123", body.Reference)
	}
	if !body.Autostart {
		t.Error("expected autostart to be set")
	}
	want := `-re -i rtmp://localhost/live/input -c:v copy -c:a copy -f tee -map 0:v -map 0:a "[f=flv]rtmp://a.example.com/live/key1|[f=flv]rtmp://b.example.com/live/key2"`
	if body.Command != want {
		t.Errorf("command = %q, want %q", body.Command, want)
	}
}

func TestCreateProcessRequiresOutputs(t *testing.T) {
	client, logins := newTestClient(t, nil)

	err := client.CreateProcess(context.Background(), "unit_123", "rtmp://localhost/live/input", nil, "")
	if err == nil {
		t.Fatal("expected error for empty output list")
	}
	if got := logins.Load(); got != 0 {
		t.Errorf("logins = %d, want 0 (rejected before any request)", got)
	}
}

func TestResolveProcess(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode([]Process{
			{ID: "p1", Reference: "unit_a", State: "running"},
			{ID: "p2", Reference: "unit_b", State: "finished"},
		})
	})

	id, err := client.ResolveProcess(context.Background(), "unit_b")
	if err != nil {
		t.Fatalf("ResolveProcess failed: %v", err)
	}
	if id != "p2" {
		t.Errorf("id = %q, want p2", id)
	}

	if _, err := client.ResolveProcess(context.Background(), "unit_c"); err == nil {
		t.Error("expected error for unknown reference")
	}
}

func TestProcessCommands(t *testing.T) {
	var gotPath string
	var gotBody processCommandRequest
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	if err := client.StopProcess(context.Background(), "p1"); err != nil {
		t.Fatalf("StopProcess failed: %v", err)
	}
	if gotPath != "/api/v3/process/p1/command" {
		t.Errorf("path = %q, want /api/v3/process/p1/command", gotPath)
	}
	if gotBody.Command != "stop" {
		t.Errorf("command = %q, want stop", gotBody.Command)
	}

	if err := client.RestartProcess(context.Background(), "p1"); err != nil {
		t.Fatalf("RestartProcess failed: %v", err)
	}
	if gotBody.Command != "restart" {
		t.Errorf("command = %q, want restart", gotBody.Command)
	}
}

func TestGetProcessState(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/process/p1/state" {
			t.Errorf("path = %q, want /api/v3/process/p1/state", r.URL.Path)
		}
		w.Write([]byte(`{
			"order": "start",
			"running": true,
			"progress": {
				"frames": 1800,
				"dropped_frames": 3,
				"bitrate": 6000,
				"fps": 59.94,
				"size_kb": 2048,
				"packets": 4200,
				"percent": 42.5
			}
		}`))
	})

	state, err := client.GetProcessState(context.Background(), "p1")
	if err != nil {
		t.Fatalf("GetProcessState failed: %v", err)
	}
	if !state.Running {
		t.Error("expected running state")
	}
	if state.Order != "start" {
		t.Errorf("order = %q, want start", state.Order)
	}
	if state.Progress.Frames != 1800 {
		t.Errorf("frames = %d, want 1800", state.Progress.Frames)
	}
	if state.Progress.DroppedFrames != 3 {
		t.Errorf("dropped = %d, want 3", state.Progress.DroppedFrames)
	}
	if got := state.Progress.Bytes(); got != 2048*1024 {
		t.Errorf("bytes = %d, want %d", got, 2048*1024)
	}
}

func TestOutputLifecycle(t *testing.T) {
	type call struct {
		method string
		path   string
	}
	var calls []call
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, call{r.Method, r.URL.Path})
		if r.Method == http.MethodGet {
			json.NewEncoder(w).Encode(outputsResponse{
				Outputs: []Output{{ID: "twitch_9f3ac2"}, {ID: "youtube_1b22d0"}},
			})
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	ctx := context.Background()
	if err := client.AddOutput(ctx, "p1", "twitch_9f3ac2", "rtmp://live.twitch.tv/app/key", ""); err != nil {
		t.Fatalf("AddOutput failed: %v", err)
	}
	if err := client.UpdateOutput(ctx, "p1", "twitch_9f3ac2", "rtmp://live.twitch.tv/app/key2", "scale=1920:1080,setsar=1"); err != nil {
		t.Fatalf("UpdateOutput failed: %v", err)
	}
	ids, err := client.ListOutputs(ctx, "p1")
	if err != nil {
		t.Fatalf("ListOutputs failed: %v", err)
	}
	if err := client.RemoveOutput(ctx, "p1", "twitch_9f3ac2"); err != nil {
		t.Fatalf("RemoveOutput failed: %v", err)
	}

	if len(ids) != 2 || ids[0] != "twitch_9f3ac2" || ids[1] != "youtube_1b22d0" {
		t.Errorf("output ids = %v", ids)
	}

	want := []call{
		{http.MethodPost, "/api/v3/process/p1/outputs"},
		{http.MethodPut, "/api/v3/process/p1/outputs/twitch_9f3ac2"},
		{http.MethodGet, "/api/v3/process/p1/outputs"},
		{http.MethodDelete, "/api/v3/process/p1/outputs/twitch_9f3ac2"},
	}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("call %d = %v, want %v", i, calls[i], want[i])
		}
	}
}

func TestUpdateOutputEncodingBody(t *testing.T) {
	var body map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut || !strings.HasSuffix(r.URL.Path, "/encoding") {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("failed to decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	})

	params := EncodingParams{
		VideoBitrateKbps: 6000,
		Width:            1920,
		Height:           1080,
		FPSNum:           60,
		FPSDen:           1,
		Profile:          "high",
	}
	if err := client.UpdateOutputEncoding(context.Background(), "p1", "out1", params); err != nil {
		t.Fatalf("UpdateOutputEncoding failed: %v", err)
	}

	if got := body["video_bitrate"]; got != float64(6000000) {
		t.Errorf("video_bitrate = %v, want 6000000", got)
	}
	if _, ok := body["audio_bitrate"]; ok {
		t.Error("audio_bitrate should be omitted when zero")
	}
	if _, ok := body["preset"]; ok {
		t.Error("preset should be omitted when empty")
	}
	res, ok := body["resolution"].(map[string]any)
	if !ok || res["width"] != float64(1920) || res["height"] != float64(1080) {
		t.Errorf("resolution = %v", body["resolution"])
	}
	fps, ok := body["fps"].(map[string]any)
	if !ok || fps["num"] != float64(60) || fps["den"] != float64(1) {
		t.Errorf("fps = %v", body["fps"])
	}
	if got := body["profile"]; got != "high" {
		t.Errorf("profile = %v, want high", got)
	}
}

func TestPing(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/ping" {
			t.Errorf("path = %q, want /ping", r.URL.Path)
		}
		w.Write([]byte(`"pong"`))
	}))
	defer server.Close()

	client := NewClient(Config{})
	client.baseURL = server.URL
	if err := client.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}

	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`"nope"`))
	}))
	defer bad.Close()

	client.baseURL = bad.URL
	if err := client.Ping(context.Background()); err == nil {
		t.Error("expected error for non-pong response")
	}
}

func TestBaseURL(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected string
	}{
		{
			name:     "http",
			config:   Config{Host: "localhost", Port: 8080},
			expected: "http://localhost:8080",
		},
		{
			name:     "https",
			config:   Config{Host: "stream.example.com", Port: 443, UseHTTPS: true},
			expected: "https://stream.example.com:443",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.config.BaseURL(); got != tt.expected {
				t.Errorf("BaseURL() = %q, want %q", got, tt.expected)
			}
		})
	}
}
