package admin

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"time"

	"pathplanner/internal/geo"
	"pathplanner/internal/mission"
	"pathplanner/internal/model"
	"pathplanner/internal/overlay"
	"pathplanner/internal/transfer"
)

// Server exposes the plan and the sync engine over HTTP.
type Server struct {
	Waypoints *model.WaypointTable
	Segments  *model.SegmentTable
	Engine    *transfer.Engine
	Home      *geo.HomeLocation
	// Overlays are optional; /overlay reports the last graph of each.
	WaypointOverlay *overlay.Projector
	SegmentOverlay  *overlay.Projector
	// Metrics serves /metrics when set.
	Metrics http.Handler

	log *slog.Logger
	tpl *template.Template
}

//go:embed templates/index.html
var content embed.FS

func NewServer(wps *model.WaypointTable, segs *model.SegmentTable, engine *transfer.Engine, home *geo.HomeLocation, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	tpl := template.Must(template.New("index.html").ParseFS(content, "templates/index.html"))
	return &Server{Waypoints: wps, Segments: segs, Engine: engine, Home: home, log: log, tpl: tpl}
}

// Handler returns the routes of the server.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleIndex)
	mux.HandleFunc("GET /waypoints", s.handleWaypoints)
	mux.HandleFunc("POST /waypoints/edit", s.handleEditWaypoint)
	mux.HandleFunc("GET /segments", s.handleSegments)
	mux.HandleFunc("GET /overlay", s.handleOverlay)
	mux.HandleFunc("POST /push", s.handlePush)
	mux.HandleFunc("POST /pull", s.handlePull)
	mux.HandleFunc("POST /home", s.handleHome)
	if s.Metrics != nil {
		mux.Handle("GET /metrics", s.Metrics)
	}
	return mux
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		<-ctx.Done()
		shutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdown)
	}()
	s.log.Info("admin listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type tableView struct {
	Title   string
	Headers []string
	Rows    [][]string
}

func render(title string, t model.Table) tableView {
	v := tableView{Title: title}
	for c := 0; c < t.ColumnCount(); c++ {
		v.Headers = append(v.Headers, t.Header(c))
	}
	for r := 0; r < t.RowCount(); r++ {
		row := make([]string, 0, t.ColumnCount())
		for c := 0; c < t.ColumnCount(); c++ {
			val, err := t.Data(r, c, model.RoleDisplay)
			if err != nil {
				row = append(row, "")
				continue
			}
			row = append(row, val.String())
		}
		v.Rows = append(v.Rows, row)
	}
	return v
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	data := struct {
		Home   geo.LLA
		Busy   bool
		Tables []tableView
		Broken []string
	}{
		Home:   s.Waypoints.Store().Origin(),
		Busy:   s.Engine != nil && s.Engine.Busy(),
		Tables: []tableView{render("Waypoints", s.Waypoints), render("Path segments", s.Segments)},
	}
	for _, p := range []*overlay.Projector{s.WaypointOverlay, s.SegmentOverlay} {
		if p == nil {
			continue
		}
		for _, e := range p.Latest().Broken() {
			data.Broken = append(data.Broken, fmt.Sprintf("%d → %d: %v", e.From, e.To, e.Err))
		}
	}
	if err := s.tpl.Execute(w, data); err != nil {
		s.log.Warn("render index", "error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error, extra map[string]any) {
	body := map[string]any{"error": err.Error()}
	for k, v := range extra {
		body[k] = v
	}
	writeJSON(w, status, body)
}

func (s *Server) handleWaypoints(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Waypoints.Store().Snapshot())
}

func (s *Server) handleSegments(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Segments.Store().Snapshot())
}

type editRequest struct {
	Row    int    `json:"row"`
	Column string `json:"column"`
	Value  any    `json:"value"`
}

func toValue(v any) (mission.Value, error) {
	switch x := v.(type) {
	case string:
		return mission.StringValue(x), nil
	case float64:
		return mission.FloatValue(x), nil
	case bool:
		return mission.BoolValue(x), nil
	}
	return mission.Value{}, fmt.Errorf("%w: unsupported value %v", mission.ErrInvalidValue, v)
}

func (s *Server) handleEditWaypoint(w http.ResponseWriter, r *http.Request) {
	var req editRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err, nil)
		return
	}
	col := -1
	for c := 0; c < s.Waypoints.ColumnCount(); c++ {
		if mission.WaypointField(c).String() == req.Column || s.Waypoints.Header(c) == req.Column {
			col = c
			break
		}
	}
	if col < 0 {
		writeError(w, http.StatusBadRequest, fmt.Errorf("%w: %q", mission.ErrInvalidField, req.Column), nil)
		return
	}
	val, err := toValue(req.Value)
	if err == nil {
		err = s.Waypoints.SetData(req.Row, col, val)
	}
	switch {
	case err == nil:
		rec, _ := s.Waypoints.Store().Record(req.Row)
		writeJSON(w, http.StatusOK, rec)
	case errors.Is(err, mission.ErrRowOutOfRange):
		writeError(w, http.StatusNotFound, err, nil)
	case errors.Is(err, mission.ErrLocked):
		writeError(w, http.StatusConflict, err, nil)
	default:
		writeError(w, http.StatusBadRequest, err, nil)
	}
}

func (s *Server) handleOverlay(w http.ResponseWriter, r *http.Request) {
	out := map[string]overlay.Graph{}
	if s.WaypointOverlay != nil {
		out["waypoints"] = s.WaypointOverlay.Latest()
	}
	if s.SegmentOverlay != nil {
		out["segments"] = s.SegmentOverlay.Latest()
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handlePush(w http.ResponseWriter, r *http.Request) {
	res, err := s.Engine.Push(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, res)
	case errors.Is(err, transfer.ErrPushInProgress):
		writeError(w, http.StatusConflict, err, nil)
	case res.Failed != nil:
		writeError(w, http.StatusBadGateway, err, map[string]any{
			"operation_id": res.OperationID,
			"object":       res.Failed.Object,
			"index":        res.Failed.Index,
			"attempts":     res.Failed.Attempts,
		})
	default:
		writeError(w, http.StatusBadGateway, err, map[string]any{"operation_id": res.OperationID})
	}
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	err := s.Engine.Pull(r.Context())
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, map[string]int{
			"waypoints": s.Waypoints.RowCount(),
			"segments":  s.Segments.RowCount(),
		})
	case errors.Is(err, transfer.ErrPushInProgress):
		writeError(w, http.StatusConflict, err, nil)
	default:
		writeError(w, http.StatusBadGateway, err, nil)
	}
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if s.Home == nil {
		writeError(w, http.StatusNotFound, errors.New("home location is fixed"), nil)
		return
	}
	var req geo.LLA
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err, nil)
		return
	}
	if err := s.Home.Set(req); err != nil {
		writeError(w, http.StatusBadRequest, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, s.Home.Origin())
}
