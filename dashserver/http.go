package dashserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/xiaonanln/dtnview/dashboard"
	"github.com/xiaonanln/dtnview/history"
	"github.com/xiaonanln/dtnview/topology"
	"github.com/xiaonanln/dtnview/util/metrics"
)

const maxTelemetryBody = 4 << 20

// Handler returns the HTTP handler of the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	if s.cfg.StaticDir != "" {
		mux.Handle("/", http.FileServer(http.Dir(s.cfg.StaticDir)))
	}
	mux.HandleFunc("/scene", s.handleScene)
	mux.HandleFunc("/events/stream", s.handleEventsStream)
	mux.HandleFunc("/display", s.handleDisplay)
	mux.HandleFunc("/wires/xdrop", s.handleXDrop)
	mux.HandleFunc("/telemetry", s.handleTelemetry)
	mux.HandleFunc("/history", s.handleHistory)
	mux.HandleFunc("/history/series", s.handleHistorySeries)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"configured":  s.dash.Configured(),
			"sse_clients": s.SSEClientCount(),
		})
	})
	mux.Handle("/metrics", promhttp.Handler())

	return mux
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warnf("Failed to write JSON response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

// handleScene handles GET /scene
func (s *Server) handleScene(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}
	sc := s.dash.Scene()
	if sc == nil {
		writeError(w, http.StatusServiceUnavailable, dashboard.ErrNotConfigured)
		return
	}
	writeJSON(w, http.StatusOK, sc)
}

// DisplayOptions is the JSON form of topology.DisplayConfig.
type DisplayOptions struct {
	FontSize       float64 `json:"fontSize"`
	TextMargin     float64 `json:"textMargin"`
	Decimals       int     `json:"decimals"`
	Declutter      bool    `json:"declutter"`
	DeclutterNodes bool    `json:"declutterNodes"`
	Shrink         bool    `json:"shrink"`
}

func displayOptions(d topology.DisplayConfig) DisplayOptions {
	return DisplayOptions{
		FontSize:       d.FontSize,
		TextMargin:     d.TextMargin,
		Decimals:       d.Decimals,
		Declutter:      d.Declutter,
		DeclutterNodes: d.DeclutterNodes,
		Shrink:         d.Shrink,
	}
}

func (o DisplayOptions) config() topology.DisplayConfig {
	return topology.DisplayConfig{
		FontSize:       o.FontSize,
		TextMargin:     o.TextMargin,
		Decimals:       o.Decimals,
		Declutter:      o.Declutter,
		DeclutterNodes: o.DeclutterNodes,
		Shrink:         o.Shrink,
	}
}

func (o DisplayOptions) validate() error {
	if o.FontSize <= 0 {
		return errors.New("fontSize must be positive")
	}
	if o.TextMargin < 0 {
		return errors.New("textMargin must not be negative")
	}
	if o.Decimals < 0 || o.Decimals > 6 {
		return errors.New("decimals must be between 0 and 6")
	}
	return nil
}

// handleDisplay handles GET and PUT /display. A PUT starts from the current
// options, so a partial body only changes the fields it names.
func (s *Server) handleDisplay(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, displayOptions(s.dash.Display()))
	case http.MethodPut:
		opts := displayOptions(s.dash.Display())
		if err := json.NewDecoder(r.Body).Decode(&opts); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if err := opts.validate(); err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		if _, err := s.dash.SetDisplay(opts.config()); err != nil {
			writeError(w, http.StatusInternalServerError, err)
			return
		}
		writeJSON(w, http.StatusOK, opts)
	default:
		http.Error(w, "Only GET and PUT methods are allowed", http.StatusMethodNotAllowed)
	}
}

type xdropRequest struct {
	Wire string `json:"wire"`
	// XDropNorm releases the pin when null.
	XDropNorm *float64 `json:"xDropNorm"`
}

// handleXDrop handles POST /wires/xdrop
func (s *Server) handleXDrop(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}
	var req xdropRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := s.dash.SetManualXDrop(req.Wire, req.XDropNorm)
	switch {
	case errors.Is(err, dashboard.ErrUnknownWire):
		writeError(w, http.StatusNotFound, err)
		return
	case err != nil:
		writeError(w, http.StatusBadRequest, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]uint64{"generation": u.Scene.Generation})
}

// handleTelemetry handles POST /telemetry with one JSON telemetry message.
func (s *Server) handleTelemetry(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Only POST method is allowed", http.StatusMethodNotAllowed)
		return
	}
	data, err := io.ReadAll(io.LimitReader(r.Body, maxTelemetryBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	u, err := s.dash.ApplyJSON(data)
	if err != nil {
		status := ingestStatus(err)
		metrics.RecordIngestPush(status)
		code := http.StatusInternalServerError
		switch {
		case errors.Is(err, dashboard.ErrNotConfigured):
			code = http.StatusConflict
		case errors.Is(err, dashboard.ErrMalformedRecord):
			code = http.StatusUnprocessableEntity
		}
		writeError(w, code, err)
		return
	}
	metrics.RecordIngestPush(ingestOK)

	resp := map[string]interface{}{"redrawn": u.Redrawn}
	if u.Scene != nil {
		resp["generation"] = u.Scene.Generation
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleHistorySeries handles GET /history/series
func (s *Server) handleHistorySeries(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)
		return
	}
	series, err := s.store.Series(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"series": series})
}

// handleHistory handles GET /history?series=&from=&to=&limit=
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Only GET method is allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.store == nil {
		http.Error(w, "history is disabled", http.StatusNotFound)
		return
	}

	q, err := s.parseQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	points, err := s.store.Query(r.Context(), q)
	if err != nil {
		if errors.Is(err, history.ErrInvalidQuery) {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if points == nil {
		points = []history.Point{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"series": q.Series,
		"points": points,
	})
}

func (s *Server) parseQuery(r *http.Request) (history.Query, error) {
	values := r.URL.Query()
	q := history.Query{Series: values.Get("series"), Limit: s.cfg.HistoryLimit}

	parseInt := func(name string, dst *int64) error {
		v := values.Get(name)
		if v == "" {
			return nil
		}
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return errors.New("invalid " + name + ": " + v)
		}
		*dst = n
		return nil
	}
	if err := parseInt("from", &q.FromMillis); err != nil {
		return q, err
	}
	if err := parseInt("to", &q.ToMillis); err != nil {
		return q, err
	}
	var limit int64
	if err := parseInt("limit", &limit); err != nil {
		return q, err
	}
	if limit > 0 && int(limit) < q.Limit {
		q.Limit = int(limit)
	}
	return q, nil
}
