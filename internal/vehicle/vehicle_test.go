package vehicle

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"pathplanner/internal/geo"
	"pathplanner/internal/link"
	"pathplanner/internal/mission"
	"pathplanner/internal/model"
	"pathplanner/internal/observability"
	"pathplanner/internal/transfer"
	"pathplanner/internal/uavobject"
)

func TestDecideWithoutChaosAlwaysAcks(t *testing.T) {
	v := New(Config{Seed: 1}, nil, nil)
	for i := 0; i < 100; i++ {
		if out := v.decide(); out != uavobject.Ack {
			t.Fatalf("outcome = %v", out)
		}
	}
}

func TestDecideRates(t *testing.T) {
	v := New(Config{CommunicationLoss: 0.5, NackRate: 0.5, Seed: 7}, nil, nil)
	counts := map[uavobject.Outcome]int{}
	for i := 0; i < 2000; i++ {
		counts[v.decide()]++
	}
	for _, out := range []uavobject.Outcome{uavobject.Ack, uavobject.Nack, uavobject.Drop} {
		if counts[out] == 0 {
			t.Fatalf("outcome %v never happened: %v", out, counts)
		}
	}
	if counts[uavobject.Drop] < 800 || counts[uavobject.Drop] > 1200 {
		t.Fatalf("drops = %d", counts[uavobject.Drop])
	}
	if v.ToggleChaos() {
		t.Fatalf("toggle should disable chaos")
	}
}

// A full push and pull between a planner and the vehicle over a websocket.
func TestPushAndPullOverWebsocket(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := observability.NewVehicleCollector(reg)
	if err != nil {
		t.Fatalf("NewVehicleCollector: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	v := New(Config{AckDelay: time.Millisecond, Seed: 1}, metrics, nil)
	srv := httptest.NewServer(v.Handler(ctx))
	defer srv.Close()

	conn, err := link.DialWebsocket(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/link")
	if err != nil {
		t.Fatalf("DialWebsocket: %v", err)
	}
	client := link.NewClient(conn, nil)
	defer client.Close()
	go client.Run(ctx)

	home := geo.LLA{Lat: 47.3977, Lon: 8.5456, Alt: 488}
	ws, _ := mission.NewWaypointStore(home)
	ss, _ := mission.NewSegmentStore(home)
	for i := 0; i < 3; i++ {
		if _, err := ws.AppendLocal(mission.Waypoint{Local: geo.NED{North: float64(i * 10)}, Mode: mission.ModeFlyVector}); err != nil {
			t.Fatalf("AppendLocal: %v", err)
		}
	}
	wps, segs := model.NewWaypointTable(ws), model.NewSegmentTable(ss)
	eng := transfer.New(wps, segs, client.Waypoints(), client.Segments(), transfer.WithAckTimeout(time.Second))

	res, err := eng.Push(ctx)
	if err != nil || !res.OK() {
		t.Fatalf("Push: %v %+v", err, res)
	}
	state := v.Snapshot()
	if len(state.Waypoints) != 3 || state.Waypoints[2].Position[0] != 20 {
		t.Fatalf("vehicle state = %+v", state)
	}
	if got := testutil.ToFloat64(metrics.Updates.WithLabelValues(uavobject.WaypointObject, "ack")); got != 3 {
		t.Fatalf("acked updates = %v", got)
	}

	if err := wps.RemoveRows(0, 3); err != nil {
		t.Fatalf("RemoveRows: %v", err)
	}
	if err := eng.Pull(ctx); err != nil {
		t.Fatalf("Pull: %v", err)
	}
	if wps.RowCount() != 3 {
		t.Fatalf("pulled rows = %d", wps.RowCount())
	}

	rr := httptest.NewRecorder()
	v.Handler(ctx).ServeHTTP(rr, httptest.NewRequest("GET", "/state", nil))
	var got State
	if err := json.NewDecoder(rr.Body).Decode(&got); err != nil {
		t.Fatalf("decode state: %v", err)
	}
	if len(got.Waypoints) != 3 || got.Chaos {
		t.Fatalf("state = %+v", got)
	}
}

func TestPushFailsWhenEverythingIsLost(t *testing.T) {
	v := New(Config{CommunicationLoss: 1, Seed: 1}, nil, nil)
	a, b := link.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go v.ServeConn(ctx, b)
	client := link.NewClient(a, nil)
	defer client.Close()
	go client.Run(ctx)

	home := geo.LLA{Lat: 1, Lon: 1}
	ws, _ := mission.NewWaypointStore(home)
	ss, _ := mission.NewSegmentStore(home)
	ws.Append(mission.Waypoint{Position: home, Mode: mission.ModeLand})
	eng := transfer.New(model.NewWaypointTable(ws), model.NewSegmentTable(ss), client.Waypoints(), client.Segments(),
		transfer.WithAckTimeout(5*time.Millisecond), transfer.WithRetryBackoff(time.Millisecond), transfer.WithMaxAttempts(3))
	res, err := eng.Push(ctx)
	if !errors.Is(err, transfer.ErrPushFailed) || res.Failed.Attempts != 3 {
		t.Fatalf("Push: %v %+v", err, res)
	}
	if n := v.Waypoints().Attempts(0); n != 3 {
		t.Fatalf("vehicle saw %d attempts", n)
	}
}
