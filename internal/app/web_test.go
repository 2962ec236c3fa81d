package app

import (
	"encoding/json"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relabs-tech/imu_monitor/internal/imu"
	"github.com/relabs-tech/imu_monitor/internal/serialport"
)

func newTestServer(t *testing.T) (*Monitor, *httptest.Server) {
	t.Helper()
	m, _ := newTestMonitor(t, Deps{})
	srv := httptest.NewServer(Handler(m, zerolog.Nop()))
	t.Cleanup(srv.Close)
	return m, srv
}

func getJSON(t *testing.T, url string, v any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if v != nil && resp.StatusCode < 300 {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
	}
	return resp.StatusCode
}

func post(t *testing.T, url, body string) (int, string) {
	t.Helper()
	resp, err := http.Post(url, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(b)
}

func TestWeb_Ports(t *testing.T) {
	_, srv := newTestServer(t)

	var body map[string][]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/ports", &body))
	assert.Equal(t, []string{serialport.MockDeviceName}, body["ports"])
}

func TestWeb_ConnectDisconnect(t *testing.T) {
	_, srv := newTestServer(t)

	code, _ := post(t, srv.URL+"/api/connect", "{")
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = post(t, srv.URL+"/api/connect", `{"baud": 9600}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, msg := post(t, srv.URL+"/api/connect", `{"port": "ttyMissing"}`)
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Contains(t, msg, "could not open port [ttyMissing]")

	code, msg = post(t, srv.URL+"/api/connect", `{"port": "mock0"}`)
	require.Equal(t, http.StatusOK, code)
	var status Status
	require.NoError(t, json.Unmarshal([]byte(msg), &status))
	assert.True(t, status.Connected)
	assert.Equal(t, "mock0", status.Port)

	code, msg = post(t, srv.URL+"/api/disconnect", "")
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal([]byte(msg), &status))
	assert.False(t, status.Connected)

	resp, err := http.Get(srv.URL + "/api/connect")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWeb_WindowsAndPose(t *testing.T) {
	m, srv := newTestServer(t)

	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/api/orientation", nil))
	assert.Equal(t, http.StatusServiceUnavailable, getJSON(t, srv.URL+"/api/gps", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/window/mag", nil))

	m.handle(line(imuLine))
	m.handle(line(rmcLine))

	var view WindowView
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/window/acc", &view))
	assert.Equal(t, []int64{120}, view.Timestamps)
	assert.Equal(t, []float64{-0.2}, []float64(view.Series[imu.AxisY]))
	assert.InDelta(t, 0.1, view.Stats.P50, 1e-9)

	var pose map[string]float64
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/orientation", &pose))
	assert.Contains(t, pose, "roll")

	var fix map[string]any
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/gps", &fix))
	assert.Equal(t, "A", fix["validity"])
}

func TestWeb_WindowWithGapsIsValidJSON(t *testing.T) {
	m, srv := newTestServer(t)
	acc, _ := m.Window(GroupAcc)
	acc.Append(10, map[string]float64{imu.AxisX: 1})
	acc.Append(20, map[string]float64{imu.AxisY: 2})

	var view WindowView
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/window/acc", &view))
	assert.Equal(t, []int64{10, 20}, view.Timestamps)
	assert.Equal(t, 1.0, view.Series[imu.AxisX][0])
	assert.True(t, math.IsNaN(view.Series[imu.AxisX][1]))
	assert.True(t, math.IsNaN(view.Series[imu.AxisY][0]))
	assert.InDelta(t, 1.5, view.Stats.P50, 1e-9)
}

func TestWeb_Recordings(t *testing.T) {
	m, srv := newTestServer(t)

	code, _ := post(t, srv.URL+"/api/recordings/wave", "")
	assert.Equal(t, http.StatusConflict, code)

	m.Ingest("ttyUSB0", imu.Sample{Timestamp: 10, Accel: imu.Vector{X: 1}})
	m.Ingest("ttyUSB0", imu.Sample{Timestamp: 20, Accel: imu.Vector{X: 2}})

	code, body := post(t, srv.URL+"/api/recordings/wave", "")
	require.Equal(t, http.StatusCreated, code, body)
	var res SaveResult
	require.NoError(t, json.Unmarshal([]byte(body), &res))
	assert.Equal(t, 2, res.Rows)

	var listing map[string][]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/recordings", &listing))
	require.Len(t, listing["wave"], 1)

	var loaded map[string]WindowView
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/recordings/wave/"+listing["wave"][0], &loaded))
	assert.Equal(t, []int64{10, 20}, loaded[GroupAcc].Timestamps)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/recordings/wave/missing.csv", nil))
}

func TestWeb_StatusLogAndMetrics(t *testing.T) {
	m, srv := newTestServer(t)
	m.handle(line("hello\n"))

	var status Status
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/status", &status))
	assert.Equal(t, m.Session(), status.Session)
	assert.Equal(t, "stopped", status.ReadLoop)

	var logs map[string][]string
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/log", &logs))
	assert.Empty(t, logs["messages"])

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(b), `imu_lines_total{kind="text"} 1`)
	assert.Contains(t, string(b), "imu_read_loop_restarts_total 0")
}

func TestWeb_StreamFiltersByKind(t *testing.T) {
	m, srv := newTestServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?types=line&kinds=result"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return m.Hub().Clients() == 1 }, time.Second, time.Millisecond)

	m.handle(line(imuLine))
	m.handle(line("[Res] wave 0.88\r\n"))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg StreamMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, MsgLine, msg.Type)
	assert.Equal(t, "result", msg.Kind)
	assert.Equal(t, "[Res] wave 0.88\r\n", msg.Text)

	conn.Close()
	assert.Eventually(t, func() bool { return m.Hub().Clients() == 0 }, time.Second, time.Millisecond)
}
