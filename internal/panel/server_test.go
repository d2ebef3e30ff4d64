package panel

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eltechnic0/arduino-control/internal/config"
	"github.com/eltechnic0/arduino-control/internal/device"
	"github.com/eltechnic0/arduino-control/internal/device/devicetest"
	"github.com/eltechnic0/arduino-control/internal/logging"
)

type testPanel struct {
	backend *devicetest.Backend
	ctrl    *Controller
	watcher *device.Watcher
	server  *Server
	http    *httptest.Server
	logs    *logging.Buffer
}

func newTestPanel(t *testing.T) *testPanel {
	t.Helper()
	backend := devicetest.New()
	t.Cleanup(backend.Close)

	cfg := config.Default()
	cfg.Device.BaseURL = backend.URL
	cfg.Device.RateLimit = 0

	logs := logging.NewBuffer(50)
	log := zerolog.New(logs)
	client := device.NewClient(cfg.Device, log)
	ctrl := NewController(client, cfg.Panel, log)
	watcher := device.NewWatcher(client, 0, log)
	watcher.BeforePoll = ctrl.IssueSeq
	watcher.OnStatus = ctrl.ApplyStatus
	srv := NewServer(cfg, ctrl, client, watcher, logs, log)

	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		srv.hub.Close()
		ts.Close()
	})
	return &testPanel{backend: backend, ctrl: ctrl, watcher: watcher, server: srv, http: ts, logs: logs}
}

func (p *testPanel) do(t *testing.T, method, path string, body interface{}) (*http.Response, []byte) {
	t.Helper()
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, p.http.URL+path, r)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func (p *testPanel) action(t *testing.T, path string, body interface{}) actionResponse {
	t.Helper()
	resp, data := p.do(t, http.MethodPost, path, body)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(data))
	var out actionResponse
	require.NoError(t, json.Unmarshal(data, &out))
	return out
}

func TestHealth(t *testing.T) {
	p := newTestPanel(t)
	resp, data := p.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "healthy", out["status"])
	assert.Equal(t, true, out["backend_reachable"])
	assert.Equal(t, p.backend.URL, out["backend"])
	assert.Equal(t, "closed", out["breaker"])
}

func TestHealthReportsWatcherStatus(t *testing.T) {
	p := newTestPanel(t)
	p.backend.SetConnected(true)
	p.watcher.Poll()

	_, data := p.do(t, http.MethodGet, "/health", nil)
	var out struct {
		Watcher device.ConnectionStatus `json:"watcher"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	assert.True(t, out.Watcher.Connected)
	assert.Equal(t, device.StatusConnected, out.Watcher.Text)
	assert.False(t, out.Watcher.LastSeen.IsZero())
	assert.Equal(t, device.StatusConnected, p.ctrl.View().Connection)
}

func TestPageRenders(t *testing.T) {
	p := newTestPanel(t)
	resp, data := p.do(t, http.MethodGet, "/", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")
	page := string(data)
	assert.Contains(t, page, "Arduino Control")
	assert.Contains(t, page, `id="comm-msg-hist-list"`)
	assert.Equal(t, 4, strings.Count(page, `class="reading vread-value"`))
	// grid clicks are measured on the grid itself, never on the dot inside it
	assert.Contains(t, page, "#grid-dot{position:absolute;pointer-events:none;")
	assert.Contains(t, page, "e.clientX - box.left")
	assert.Contains(t, page, "if (v.version <= lastVersion) return;")
}

func TestActionEndpoints(t *testing.T) {
	p := newTestPanel(t)

	out := p.action(t, "/api/connect", nil)
	assert.Equal(t, "Connected", out.View.Connection)

	out = p.action(t, "/api/vset", textRequest{Text: "3 9, 100 200, 500"})
	assert.Empty(t, out.Error)
	require.Len(t, out.View.History, 1)
	assert.True(t, out.View.History[0].OK)

	out = p.action(t, "/api/vset", textRequest{Text: "3 9, 100, 500"})
	assert.Equal(t, "Invalid expression", out.Error)
	assert.Equal(t, "Invalid expression", out.View.Flash.Text)

	out = p.action(t, "/api/vset/3", rowRequest{Value: "7", Settling: "10"})
	assert.Empty(t, out.Error)
	reqs := p.backend.RequestsTo("/serialVSet")
	require.Len(t, reqs, 2)
	assert.JSONEq(t, `{"pins":[11],"values":[7],"settling":10}`, reqs[1].Body)

	p.backend.SetReading(1, 2.5)
	out = p.action(t, "/api/vread/1", nil)
	assert.Equal(t, "2.5", out.View.Readings[1])

	out = p.action(t, "/api/verbose", map[string]bool{"value": true})
	assert.True(t, out.View.Verbose)

	out = p.action(t, "/api/script", textRequest{Text: `{"fname":"script_test"}`})
	require.Len(t, out.View.Scripts, 1)

	resp, data := p.do(t, http.MethodGet, "/api/scripts/"+out.View.Scripts[0].ID.String(), nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"text":"{\"fname\":\"script_test\"}"}`, string(data))

	out = p.action(t, "/api/grid/click", clickRequest{X: 200, Y: 0, Size: 200})
	assert.Equal(t, 100, out.View.Grid.X)
	assert.Equal(t, 100, out.View.Grid.Y)

	out = p.action(t, "/api/calibration/toggle", nil)
	assert.True(t, out.View.Calibration.Open)
}

func TestGridOptionsEndpoint(t *testing.T) {
	p := newTestPanel(t)
	resp, data := p.do(t, http.MethodPut, "/api/grid/options", GridOptions{
		Right: 9, Top: 3, Left: 11, Bottom: 10, Settling: 5, Resolution: 2, Autosend: true,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out actionResponse
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, 9, out.View.Grid.Right)
	assert.True(t, out.View.Grid.Autosend)
}

func TestBadRequests(t *testing.T) {
	p := newTestPanel(t)

	req, err := http.NewRequest(http.MethodPost, p.http.URL+"/api/vset", strings.NewReader("{"))
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = p.do(t, http.MethodPost, "/api/history/not-a-uuid/replay", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = p.do(t, http.MethodPost, "/api/history/"+uuid.NewString()+"/replay", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = p.do(t, http.MethodGet, "/api/scripts/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestReplayEndpoint(t *testing.T) {
	p := newTestPanel(t)
	p.backend.SetConnected(true)

	out := p.action(t, "/api/vread", textRequest{Text: "0 9"})
	require.Len(t, out.View.History, 1)
	resp, _ := p.do(t, http.MethodPost, "/api/history/"+out.View.History[0].ID.String()+"/replay", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	out = p.action(t, "/api/comtest", nil)
	out = p.action(t, "/api/history/"+out.View.History[0].ID.String()+"/replay", nil)
	assert.Equal(t, "comtest", out.View.Flash.Text)
	assert.Len(t, p.backend.RequestsTo("/serialComtest"), 2)
}

func TestLogsEndpoint(t *testing.T) {
	p := newTestPanel(t)
	p.backend.Close()
	p.action(t, "/api/comtest", nil)

	resp, data := p.do(t, http.MethodGet, "/api/logs?level=warn", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var out struct {
		Logs []logging.Entry `json:"logs"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	require.NotEmpty(t, out.Logs)
	assert.Equal(t, "command failed", out.Logs[len(out.Logs)-1].Message)

	resp, _ = p.do(t, http.MethodDelete, "/api/logs", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, p.logs.Entries(nil))
}

func TestLiveView(t *testing.T) {
	p := newTestPanel(t)
	p.backend.SetConnected(true)

	wsURL := "ws" + strings.TrimPrefix(p.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}

	initial := read()
	assert.Equal(t, "view", initial.Type)
	require.NotNil(t, initial.View)
	assert.Empty(t, initial.View.History)

	require.Eventually(t, func() bool { return p.server.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	p.action(t, "/api/comtest", nil)
	msg := read()
	require.NotNil(t, msg.View)
	require.Len(t, msg.View.History, 1)
	assert.Equal(t, "comtest", msg.View.History[0].Label)
}

func TestLiveViewSkipsOlderVersions(t *testing.T) {
	p := newTestPanel(t)

	wsURL := "ws" + strings.TrimPrefix(p.http.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	read := func() Message {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		return msg
	}
	initial := read()
	require.NotNil(t, initial.View)
	require.Eventually(t, func() bool { return p.server.hub.Clients() == 1 }, time.Second, 10*time.Millisecond)

	base := initial.View.Version + 100
	p.server.hub.Broadcast(View{Version: base, Connection: "newer"})
	p.server.hub.Broadcast(View{Version: base - 1, Connection: "older"})
	p.server.hub.Broadcast(View{Version: base, Connection: "repeat"})
	p.server.hub.Broadcast(View{Version: base + 1, Connection: "newest"})

	assert.Equal(t, "newer", read().View.Connection)
	assert.Equal(t, "newest", read().View.Connection)
}
