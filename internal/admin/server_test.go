package admin

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"pathplanner/internal/geo"
	"pathplanner/internal/mission"
	"pathplanner/internal/model"
	"pathplanner/internal/overlay"
	"pathplanner/internal/transfer"
	"pathplanner/internal/uavobject"
)

var home = geo.LLA{Lat: 48.2, Lon: 16.4, Alt: 180}

type harness struct {
	server *Server
	wps    *model.WaypointTable
	remote *uavobject.MemorySet[uavobject.WaypointData]
	home   *geo.HomeLocation
}

func newHarness(t *testing.T, rows int) *harness {
	t.Helper()
	ws, _ := mission.NewWaypointStore(home)
	ss, _ := mission.NewSegmentStore(home)
	wps, segs := model.NewWaypointTable(ws), model.NewSegmentTable(ss)
	if rows > 0 {
		if err := wps.InsertRows(0, rows); err != nil {
			t.Fatalf("InsertRows: %v", err)
		}
	}
	remote := uavobject.NewMemorySet[uavobject.WaypointData](uavobject.WaypointObject)
	eng := transfer.New(wps, segs, remote, uavobject.NewMemorySet[uavobject.PathSegmentData](uavobject.PathSegmentObject),
		transfer.WithAckTimeout(5*time.Millisecond), transfer.WithRetryBackoff(time.Millisecond), transfer.WithMaxAttempts(2))
	hl, err := geo.NewHomeLocation(home)
	if err != nil {
		t.Fatalf("NewHomeLocation: %v", err)
	}
	cancel, err := wps.FollowOrigin(hl)
	if err != nil {
		t.Fatalf("FollowOrigin: %v", err)
	}
	t.Cleanup(cancel)
	s := NewServer(wps, segs, eng, hl, nil)
	s.WaypointOverlay = overlay.NewWaypointProjector(wps, time.Millisecond)
	t.Cleanup(s.WaypointOverlay.Close)
	return &harness{server: s, wps: wps, remote: remote, home: hl}
}

func (h *harness) do(method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	w := httptest.NewRecorder()
	h.server.Handler().ServeHTTP(w, req)
	return w
}

func TestHandlePush(t *testing.T) {
	h := newHarness(t, 2)
	w := h.do(http.MethodPost, "/push", "")
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d body = %s", w.Code, w.Body)
	}
	var res transfer.Result
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if res.Waypoints != 2 || res.OperationID == "" {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestHandlePushFailureReportsIndex(t *testing.T) {
	h := newHarness(t, 3)
	h.remote.SetAckPolicy(func(id uint16, _ int) uavobject.Outcome {
		if id == 1 {
			return uavobject.Nack
		}
		return uavobject.Ack
	})
	w := h.do(http.MethodPost, "/push", "")
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if body["index"] != float64(1) || body["attempts"] != float64(2) {
		t.Fatalf("body = %+v", body)
	}
}

func TestHandleEditWaypoint(t *testing.T) {
	h := newHarness(t, 1)
	cases := []struct {
		name   string
		body   string
		status int
	}{
		{"latitude", `{"row":0,"column":"latitude","value":48.3}`, http.StatusOK},
		{"mode label", `{"row":0,"column":"mode","value":"Land"}`, http.StatusOK},
		{"mode 257", `{"row":0,"column":"mode","value":257}`, http.StatusBadRequest},
		{"mode text 256", `{"row":0,"column":"mode","value":"256"}`, http.StatusBadRequest},
		{"bad row", `{"row":5,"column":"latitude","value":1}`, http.StatusNotFound},
		{"bad column", `{"row":0,"column":"colour","value":1}`, http.StatusBadRequest},
		{"bad latitude", `{"row":0,"column":"latitude","value":123}`, http.StatusBadRequest},
		{"lock", `{"row":0,"column":"locked","value":true}`, http.StatusOK},
		{"locked row", `{"row":0,"column":"velocity","value":3}`, http.StatusConflict},
	}
	for _, tc := range cases {
		if w := h.do(http.MethodPost, "/waypoints/edit", tc.body); w.Code != tc.status {
			t.Errorf("%s: status = %d body = %s", tc.name, w.Code, w.Body)
		}
	}
	rec, _ := h.wps.Store().Record(0)
	if rec.Mode != mission.ModeLand || rec.Position.Lat != 48.3 || !rec.Locked {
		t.Fatalf("record = %+v", rec)
	}
}

func TestHandleHomeMovesWaypoints(t *testing.T) {
	h := newHarness(t, 1)
	body, _ := json.Marshal(geo.LLA{Lat: home.Lat + 0.001, Lon: home.Lon, Alt: home.Alt})
	if w := h.do(http.MethodPost, "/home", string(body)); w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	rec, _ := h.wps.Store().Record(0)
	if rec.Local.North > -100 {
		t.Fatalf("local position not re-derived: %+v", rec.Local)
	}
	if w := h.do(http.MethodPost, "/home", `{"lat":95,"lon":0}`); w.Code != http.StatusBadRequest {
		t.Fatalf("invalid home status = %d", w.Code)
	}
}

func TestHandleOverlayAndIndex(t *testing.T) {
	h := newHarness(t, 2)
	h.server.WaypointOverlay.Refresh()
	w := h.do(http.MethodGet, "/overlay", "")
	var out map[string]overlay.Graph
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(out["waypoints"].Points) != 2 || len(out["waypoints"].Edges) != 1 {
		t.Fatalf("overlay = %+v", out)
	}

	w = h.do(http.MethodGet, "/", "")
	if w.Code != http.StatusOK || !bytes.Contains(w.Body.Bytes(), []byte("Mode parameters")) {
		t.Fatalf("index status = %d", w.Code)
	}
}

func TestHandlePullEmptiesPlan(t *testing.T) {
	h := newHarness(t, 2)
	w := h.do(http.MethodPost, "/pull", "")
	if w.Code != http.StatusOK || h.wps.RowCount() != 0 {
		t.Fatalf("status = %d rows = %d", w.Code, h.wps.RowCount())
	}
}
