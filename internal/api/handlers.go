package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"advchart/internal/draw"
	"advchart/internal/indicator"
	"advchart/internal/session"
	"advchart/internal/viewport"
)

// Observer receives websocket session events. The metrics package
// implements it.
type Observer interface {
	SessionOpened()
	SessionClosed()
	FrameSent()
}

type nopObserver struct{}

func (nopObserver) SessionOpened() {}
func (nopObserver) SessionClosed() {}
func (nopObserver) FrameSent()     {}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	chart *session.Chart
	reg   *indicator.Registry
	log   *slog.Logger
	obs   Observer
}

// NewHandler creates a Handler. obs may be nil.
func NewHandler(chart *session.Chart, reg *indicator.Registry, log *slog.Logger, obs Observer) *Handler {
	if log == nil {
		log = slog.Default()
	}
	if obs == nil {
		obs = nopObserver{}
	}
	return &Handler{chart: chart, reg: reg, log: log, obs: obs}
}

// Catalog handles GET /indicators/catalog
func (h *Handler) Catalog(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.reg.Catalog())
}

// ListIndicators handles GET /indicators
func (h *Handler) ListIndicators(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, toIndicatorList(h.chart.Indicators()))
}

// AddIndicator handles POST /indicators. A new instance answers 201. When
// the type is already on the chart the existing instance is shown again
// with its own params, and the answer is 200.
func (h *Handler) AddIndicator(w http.ResponseWriter, r *http.Request) {
	var req AddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	kind, err := indicator.ParseKind(req.Type)
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.checkParams(kind, req.Params); err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	in, created, err := h.chart.Add(kind, req.Params)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !created {
		h.log.Info("indicator shown", slog.String("indicator_id", in.ID), slog.String("type", kind.String()))
		respondJSON(w, http.StatusOK, toIndicatorOut(in))
		return
	}
	h.log.Info("indicator added", slog.String("indicator_id", in.ID), slog.String("type", kind.String()))
	respondJSON(w, http.StatusCreated, toIndicatorOut(in))
}

// UpdateIndicator handles PATCH /indicators/{id}
func (h *Handler) UpdateIndicator(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var patch indicator.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if patch.Color != nil {
		if _, err := draw.ParseColor(*patch.Color); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if len(patch.Params) > 0 {
		cur, ok := h.chart.Manager().Get(id)
		if !ok {
			respondError(w, http.StatusNotFound, session.ErrNotFound.Error())
			return
		}
		if err := h.checkParams(cur.Kind, cur.Params.Merge(patch.Params)); err != nil {
			respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	in, err := h.chart.Update(id, patch)
	if err != nil {
		h.respondChartError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toIndicatorOut(in))
}

// RemoveIndicator handles DELETE /indicators/{id}
func (h *Handler) RemoveIndicator(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	if err := h.chart.Remove(id); err != nil {
		h.respondChartError(w, err)
		return
	}
	h.log.Info("indicator removed", slog.String("indicator_id", id))
	w.WriteHeader(http.StatusNoContent)
}

// ToggleIndicator handles POST /indicators/{id}/toggle
func (h *Handler) ToggleIndicator(w http.ResponseWriter, r *http.Request) {
	in, err := h.chart.Toggle(mux.Vars(r)["id"])
	if err != nil {
		h.respondChartError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, toIndicatorOut(in))
}

// ChartPNG handles GET /chart.png?start=&end=&width=&height=&theme=
func (h *Handler) ChartPNG(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	total := h.chart.Len()
	v := session.NewViewer(total, queryFloat(q.Get("width"), 0), queryFloat(q.Get("height"), 0), draw.ParseTheme(q.Get("theme")))
	if q.Has("start") || q.Has("end") {
		v.SetRange(viewport.Range{
			Start: queryFloat(q.Get("start"), v.Range.Start),
			End:   queryFloat(q.Get("end"), v.Range.End),
		}, total)
	}

	png, _, err := h.chart.RenderPNG(v)
	if errors.Is(err, session.ErrFrameSize) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err != nil {
		h.log.Error("render png failed", slog.Any("error", err))
		respondError(w, http.StatusInternalServerError, "render failed")
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(png)
}

// Stats handles GET /stats
func (h *Handler) Stats(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.chart.Stats())
}

// checkParams runs the type's calculator on no candles so invalid params
// are rejected before they reach the chart.
func (h *Handler) checkParams(kind indicator.Kind, params indicator.Params) error {
	def, err := h.reg.Get(kind)
	if err != nil {
		return err
	}
	fresh, err := h.reg.Create(kind, indicator.Patch{Params: params})
	if err != nil {
		return err
	}
	_, err = def.Calculate(nil, fresh.Params)
	return err
}

func (h *Handler) respondChartError(w http.ResponseWriter, err error) {
	if errors.Is(err, session.ErrNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, http.StatusInternalServerError, err.Error())
}

func queryFloat(v string, fallback float64) float64 {
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, msg string) {
	respondJSON(w, status, map[string]string{"error": msg})
}
