package api

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/abelzeko/dwlr-dashboard/internal/entities"
	"github.com/abelzeko/dwlr-dashboard/internal/presentation"
	"github.com/abelzeko/dwlr-dashboard/internal/usecases"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

//go:embed templates
var templatesFS embed.FS

// SessionCookie names the cookie that carries the browser session id
const SessionCookie = "dwlr_session"

// WebDashboard serves the dashboard as an HTML page and as JSON, one
// dashboard per browser session
type WebDashboard struct {
	sessions *usecases.Sessions
	logger   *zap.SugaredLogger
	validate *validator.Validate
	page     *template.Template
	router   *mux.Router
	// waitTimeout bounds how long a request waits for in-flight fetches
	waitTimeout time.Duration
}

type selectRequest struct {
	StationID string `json:"station_id" validate:"required"`
}

type scenarioRequest struct {
	RainfallFactor float64 `json:"rainfall_factor" validate:"gt=0"`
	DemandFactor   float64 `json:"demand_factor" validate:"gt=0"`
}

// DashboardResponse is the JSON form of a dashboard
type DashboardResponse struct {
	usecases.DashboardView
	KPIs          []presentation.KPICard   `json:"kpis"`
	TrendForecast *presentation.Chart      `json:"trend_forecast_chart,omitempty"`
	HistoryChart  *presentation.Chart      `json:"history_chart,omitempty"`
	AlertsPanel   presentation.AlertsPanel `json:"alerts_panel"`
	Markers       []presentation.MapMarker `json:"markers"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewWebDashboard parses the page template and sets up routes
func NewWebDashboard(sessions *usecases.Sessions, logger *zap.SugaredLogger) (*WebDashboard, error) {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	page, err := template.New("dashboard.html").Funcs(template.FuncMap{
		"number": presentation.Number,
		"point":  formatPoint,
	}).ParseFS(templatesFS, "templates/dashboard.html")
	if err != nil {
		return nil, err
	}

	w := &WebDashboard{
		sessions:    sessions,
		logger:      logger,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
		page:        page,
		waitTimeout: 10 * time.Second,
	}
	w.router = w.setupRouter()
	return w, nil
}

// Handler returns the root HTTP handler
func (w *WebDashboard) Handler() http.Handler {
	return w.router
}

func (w *WebDashboard) setupRouter() *mux.Router {
	router := mux.NewRouter()
	router.Use(w.loggingMiddleware)

	router.HandleFunc("/healthz", w.healthz).Methods(http.MethodGet)
	router.HandleFunc("/api/dashboard", w.getDashboard).Methods(http.MethodGet)
	router.HandleFunc("/api/select", w.postSelect).Methods(http.MethodPost)
	router.HandleFunc("/api/scenario", w.postScenario).Methods(http.MethodPost)
	router.HandleFunc("/", w.servePage).Methods(http.MethodGet)

	return router
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (w *WebDashboard) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: rw, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		w.logger.Debugw("HTTP request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start))
	})
}

// dashboard returns the dashboard of the requesting browser, issuing a new
// session cookie when there is none
func (w *WebDashboard) dashboard(rw http.ResponseWriter, r *http.Request) *usecases.Dashboard {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		if parsed, err := uuid.Parse(c.Value); err == nil {
			id = parsed.String()
		}
	}
	if id == "" {
		id = uuid.NewString()
		http.SetCookie(rw, &http.Cookie{
			Name:     SessionCookie,
			Value:    id,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
	}
	return w.sessions.Get("web:" + id)
}

// settle waits for in-flight fetches, giving up when the request ends or
// the wait timeout passes
func (w *WebDashboard) settle(ctx context.Context, d *usecases.Dashboard) {
	ctx, cancel := context.WithTimeout(ctx, w.waitTimeout)
	defer cancel()

	done := make(chan struct{})
	go func() {
		d.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		w.logger.Warnw("Serving dashboard with fetches still in flight", "error", ctx.Err())
	}
}

func (w *WebDashboard) healthz(rw http.ResponseWriter, r *http.Request) {
	rw.Header().Set("Content-Type", "text/plain")
	rw.Write([]byte("ok"))
}

func (w *WebDashboard) getDashboard(rw http.ResponseWriter, r *http.Request) {
	d := w.dashboard(rw, r)
	w.settle(r.Context(), d)
	w.writeJSON(rw, http.StatusOK, buildResponse(d.Snapshot()))
}

func (w *WebDashboard) postSelect(rw http.ResponseWriter, r *http.Request) {
	var req selectRequest
	form, err := w.decode(r, &req, func(r *http.Request) error {
		req.StationID = r.PostFormValue("station_id")
		return nil
	})
	if err != nil {
		w.writeJSON(rw, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	d := w.dashboard(rw, r)
	w.settle(r.Context(), d)
	if err := d.Select(req.StationID); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, usecases.ErrUnknownStation) {
			status = http.StatusNotFound
		}
		w.writeJSON(rw, status, errorResponse{Error: err.Error()})
		return
	}
	w.respond(rw, r, d, form)
}

func (w *WebDashboard) postScenario(rw http.ResponseWriter, r *http.Request) {
	var req scenarioRequest
	form, err := w.decode(r, &req, func(r *http.Request) error {
		var err error
		if req.RainfallFactor, err = strconv.ParseFloat(r.PostFormValue("rainfall_factor"), 64); err != nil {
			return errors.New("rainfall_factor must be a number")
		}
		if req.DemandFactor, err = strconv.ParseFloat(r.PostFormValue("demand_factor"), 64); err != nil {
			return errors.New("demand_factor must be a number")
		}
		return nil
	})
	if err != nil {
		w.writeJSON(rw, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	d := w.dashboard(rw, r)
	w.settle(r.Context(), d)
	if err := d.RunScenario(req.RainfallFactor, req.DemandFactor); err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, usecases.ErrFactorOutOfRange):
			status = http.StatusUnprocessableEntity
		case errors.Is(err, usecases.ErrNoStation):
			status = http.StatusConflict
		}
		w.writeJSON(rw, status, errorResponse{Error: err.Error()})
		return
	}
	w.respond(rw, r, d, form)
}

// decode reads a JSON body, or a form through fromForm, and validates it.
// It reports whether the request was a form post.
func (w *WebDashboard) decode(r *http.Request, dst any, fromForm func(*http.Request) error) (bool, error) {
	form := !strings.HasPrefix(r.Header.Get("Content-Type"), "application/json")
	if form {
		if err := fromForm(r); err != nil {
			return true, err
		}
	} else if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return false, errors.New("invalid JSON body")
	}
	if err := w.validate.Struct(dst); err != nil {
		return form, err
	}
	return form, nil
}

// respond redirects form posts back to the page and answers JSON posts with
// the updated dashboard
func (w *WebDashboard) respond(rw http.ResponseWriter, r *http.Request, d *usecases.Dashboard, form bool) {
	if form {
		http.Redirect(rw, r, "/", http.StatusSeeOther)
		return
	}
	w.settle(r.Context(), d)
	w.writeJSON(rw, http.StatusOK, buildResponse(d.Snapshot()))
}

func (w *WebDashboard) writeJSON(rw http.ResponseWriter, status int, v any) {
	rw.Header().Set("Content-Type", "application/json")
	rw.WriteHeader(status)
	if err := json.NewEncoder(rw).Encode(v); err != nil {
		w.logger.Errorw("Error encoding response", "error", err)
	}
}

func buildResponse(view usecases.DashboardView) DashboardResponse {
	resp := DashboardResponse{
		DashboardView: view,
		AlertsPanel:   presentation.NewAlertsPanel(view.Alerts.Data, !view.Alerts.Ready),
		Markers:       presentation.ZoneMarkers(view.Zones.Data),
	}
	if view.Summary.Ready {
		resp.KPIs = presentation.KPICards(*view.Summary.Data)
	}
	if current(view.Forecast, view.ActiveStation) {
		chart := presentation.TrendForecastChart(view.Forecast.Data.History, view.Forecast.Data.Forecast)
		resp.TrendForecast = &chart
	}
	if current(view.History, view.ActiveStation) {
		chart := presentation.HistoryChart(view.History.Data)
		resp.HistoryChart = &chart
	}
	return resp
}

// current reports whether v holds data for the active station
func current[T any](v usecases.View[T], active string) bool {
	return v.Ready && active != "" && v.StationID == active
}

type pageData struct {
	Active              string
	Stations            []entities.Station
	StationsPlaceholder string

	Summary            []presentation.KPICard
	SummaryPlaceholder string

	TrendForecast    *presentation.Chart
	TrendPlaceholder string

	Availability            *entities.Availability
	AvailabilityBadge       presentation.Badge
	AvailabilityPlaceholder string

	Params                   usecases.ScenarioParams
	RainfallMin, RainfallMax float64
	DemandMin, DemandMax     float64
	Scenario                 *usecases.ScenarioOutcome
	RiskBadge                presentation.Badge

	Alerts            presentation.AlertsPanel
	AlertsUnavailable string

	Markers        []presentation.MapMarker
	MapLat, MapLon float64
	MapZoom        int
}

func (w *WebDashboard) servePage(rw http.ResponseWriter, r *http.Request) {
	d := w.dashboard(rw, r)
	w.settle(r.Context(), d)
	view := d.Snapshot()
	resp := buildResponse(view)

	data := pageData{
		Active:                  view.ActiveStation,
		Stations:                view.Stations.Data,
		StationsPlaceholder:     placeholder(view.Stations.Loading),
		Summary:                 resp.KPIs,
		SummaryPlaceholder:      placeholder(view.Summary.Loading),
		TrendForecast:           resp.TrendForecast,
		TrendPlaceholder:        placeholder(view.Forecast.Loading),
		AvailabilityPlaceholder: placeholder(view.Availability.Loading),
		Params:                  view.ScenarioParams,
		RainfallMin:             usecases.MinRainfallFactor,
		RainfallMax:             usecases.MaxRainfallFactor,
		DemandMin:               usecases.MinDemandFactor,
		DemandMax:               usecases.MaxDemandFactor,
		Alerts:                  resp.AlertsPanel,
		Markers:                 resp.Markers,
		MapLat:                  presentation.MapCenterLat,
		MapLon:                  presentation.MapCenterLon,
		MapZoom:                 presentation.MapZoom,
	}
	if view.ActiveStation == "" {
		data.TrendPlaceholder = presentation.PlaceholderNoStation
		data.AvailabilityPlaceholder = presentation.PlaceholderNoStation
	}
	if current(view.Availability, view.ActiveStation) {
		data.Availability = view.Availability.Data
		data.AvailabilityBadge = presentation.AvailabilityBadge(*view.Availability.Data)
	}
	if current(view.Scenario, view.ActiveStation) {
		outcome := view.Scenario.Data
		data.Scenario = &outcome
		data.RiskBadge = presentation.RiskBadge(outcome.Result.RiskLevel)
	}
	if view.Alerts.Unavailable {
		data.AlertsUnavailable = presentation.PlaceholderUnavailable
	}

	rw.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := w.page.Execute(rw, data); err != nil {
		w.logger.Errorw("Error executing dashboard template", "error", err)
	}
}

func placeholder(loading bool) string {
	if loading {
		return presentation.PlaceholderLoading
	}
	return presentation.PlaceholderUnavailable
}

func formatPoint(points []*float64, i int) string {
	if i >= len(points) || points[i] == nil {
		return ""
	}
	return presentation.Number(*points[i])
}
