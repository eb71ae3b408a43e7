package api

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/mixstudio/mixdeck/internal/events"
	"github.com/mixstudio/mixdeck/internal/sidecar"
)

// newTestServer builds a server around an idle supervisor with no worker configured.
func newTestServer(t *testing.T, authUser, authPass string) (*Server, *httptest.Server) {
	t.Helper()

	supervisor := sidecar.NewSupervisor(sidecar.Options{
		Name: "true",
		Args: []string{},
	})
	t.Cleanup(supervisor.Close)

	client := sidecar.NewControlClient("http://127.0.0.1:1", supervisor.IsRunning)

	server := NewServer(&Options{
		AuthUsername: authUser,
		AuthPassword: authPass,
		Supervisor:   supervisor,
		Client:       client,
		EventBus:     events.New(),
	})

	ts := httptest.NewServer(server.GetMux())
	t.Cleanup(ts.Close)

	return server, ts
}

func basicAuth(user, pass string) string {
	return "Basic " + base64.StdEncoding.EncodeToString([]byte(user+":"+pass))
}

func TestHealthEndpointNoAuth(t *testing.T) {
	_, ts := newTestServer(t, "admin", "secret")

	resp, err := http.Get(ts.URL + "/api/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for unauthenticated health check, got %d", resp.StatusCode)
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health response: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("Expected status 'ok', got '%s'", body.Status)
	}
}

func TestVersionEndpointNoAuth(t *testing.T) {
	_, ts := newTestServer(t, "admin", "secret")

	resp, err := http.Get(ts.URL + "/api/version")
	if err != nil {
		t.Fatalf("version request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 for unauthenticated version check, got %d", resp.StatusCode)
	}
}

func TestSidecarStatusRequiresAuth(t *testing.T) {
	_, ts := newTestServer(t, "admin", "secret")

	resp, err := http.Get(ts.URL + "/api/sidecar")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 without credentials, got %d", resp.StatusCode)
	}
	if resp.Header.Get("WWW-Authenticate") == "" {
		t.Error("Expected WWW-Authenticate header on 401 response")
	}
}

func TestSidecarStatusWithAuth(t *testing.T) {
	_, ts := newTestServer(t, "admin", "secret")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/sidecar", nil)
	req.Header.Set("Authorization", basicAuth("admin", "secret"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("Expected 200 with credentials, got %d", resp.StatusCode)
	}

	var body struct {
		State   string `json:"state"`
		Running bool   `json:"running"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode status response: %v", err)
	}
	if body.State != "idle" {
		t.Errorf("Expected idle state before start, got '%s'", body.State)
	}
	if body.Running {
		t.Error("Expected running=false before start")
	}
}

func TestSidecarStatusBadCredentials(t *testing.T) {
	_, ts := newTestServer(t, "admin", "secret")

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/api/sidecar", nil)
	req.Header.Set("Authorization", basicAuth("admin", "wrong"))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("Expected 401 with wrong password, got %d", resp.StatusCode)
	}
}

func TestPromptNotRunningConflict(t *testing.T) {
	_, ts := newTestServer(t, "admin", "secret")

	req, _ := http.NewRequest(http.MethodPost, ts.URL+"/api/prompt",
		strings.NewReader(`{"prompt":"hello"}`))
	req.Header.Set("Authorization", basicAuth("admin", "secret"))
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("prompt request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusConflict {
		t.Errorf("Expected 409 when worker is not running, got %d", resp.StatusCode)
	}
}

func TestCORSPreflight(t *testing.T) {
	_, ts := newTestServer(t, "admin", "secret")

	req, _ := http.NewRequest(http.MethodOptions, ts.URL+"/api/sidecar", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("Expected 204 for OPTIONS preflight, got %d", resp.StatusCode)
	}
	if resp.Header.Get("Access-Control-Allow-Origin") != "*" {
		t.Errorf("Expected permissive CORS origin, got '%s'",
			resp.Header.Get("Access-Control-Allow-Origin"))
	}
}

func TestNoAuthConfiguredAllowsAccess(t *testing.T) {
	_, ts := newTestServer(t, "", "")

	resp, err := http.Get(ts.URL + "/api/sidecar")
	if err != nil {
		t.Fatalf("status request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected 200 when no auth is configured, got %d", resp.StatusCode)
	}
}
