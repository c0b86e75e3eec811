package ui

import (
	"bytes"
	"context"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"

	"sondajes/internal/config"
	"sondajes/internal/metrics"
	"sondajes/internal/pipeline"
	"sondajes/internal/session"
)

const lookupTitle = "Análisis de Perforación por SONDAJE"

// App is the lookup dashboard: upload a workbook and look up the rows of
// one SONDAJE.
type App struct {
	router    *chi.Mux
	dashboard *Dashboard
	cfg       *config.Config
	metrics   *metrics.Metrics
	templates *template.Template
	uploads   *RateLimiter
}

// NewApp creates the lookup dashboard with its own session store.
func NewApp(cfg *config.Config, m *metrics.Metrics) (*App, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	app := &App{
		router:    chi.NewRouter(),
		dashboard: NewDashboard(cfg, m),
		cfg:       cfg,
		metrics:   m,
		templates: templates,
		uploads:   NewRateLimiter(cfg.Server.UploadRPS, cfg.Server.UploadBurst, "[LookupDashboard]"),
	}

	app.setupMiddleware()
	app.setupRoutes()

	return app, nil
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/", a.handleIndex)
	a.router.With(a.uploads.Handler).Post("/upload", a.handleUpload)
	a.router.Route("/s/{id}", func(r chi.Router) {
		r.Get("/", a.handleLookup)
		r.Post("/sheet", a.handleSheet)
	})
	a.router.Get("/api/s/{id}", a.handleLookupJSON)

	a.router.Handle("/metrics", a.metrics.Handler())
	a.router.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok"))
	})
}

// ServeHTTP makes the app usable directly as a handler.
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (a *App) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      a.router,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
	}
	return serve(ctx, srv, "[LookupDashboard]")
}

func (a *App) handleIndex(w http.ResponseWriter, r *http.Request) {
	a.renderTemplate(w, http.StatusOK, "index.html", indexPage{
		Title:    lookupTitle,
		Action:   "/upload",
		Defaults: a.cfg.LoadOptions(),
	})
}

func (a *App) handleUpload(w http.ResponseWriter, r *http.Request) {
	name, data, err := a.dashboard.readUpload(w, r)
	if err != nil {
		a.renderIndexError(w, r, err)
		return
	}
	opts, err := a.dashboard.loadOptions(r.PostForm)
	if err != nil {
		a.renderIndexError(w, r, err)
		return
	}

	sess, err := a.dashboard.Upload(name, data, opts)
	if err != nil && sess.ID.IsEmpty() {
		a.renderIndexError(w, r, err)
		return
	}
	if err != nil {
		a.renderLookup(w, r, statusFor(err), sess.ID.String(), userMessage(err))
		return
	}
	http.Redirect(w, r, "/s/"+sess.ID.String()+"/", http.StatusSeeOther)
}

func (a *App) handleLookup(w http.ResponseWriter, r *http.Request) {
	a.renderLookup(w, r, http.StatusOK, chi.URLParam(r, "id"), "")
}

func (a *App) handleSheet(w http.ResponseWriter, r *http.Request) {
	id, err := parseSessionID(chi.URLParam(r, "id"))
	if err != nil {
		a.renderIndexError(w, r, err)
		return
	}
	if err := r.ParseForm(); err != nil {
		a.renderLookup(w, r, http.StatusBadRequest, id.String(), "formulario inválido")
		return
	}
	opts, err := a.dashboard.loadOptions(r.PostForm)
	if err == nil {
		_, err = a.dashboard.Load(id, opts)
	}
	if err != nil {
		a.renderLookup(w, r, statusFor(err), id.String(), userMessage(err))
		return
	}
	http.Redirect(w, r, "/s/"+id.String()+"/", http.StatusSeeOther)
}

// lookupResponse is the JSON shape of one lookup.
type lookupResponse struct {
	SessionID  string           `json:"session_id"`
	Sheet      string           `json:"sheet"`
	Identifier string           `json:"identifier"`
	Query      string           `json:"query"`
	Found      bool             `json:"found"`
	Columns    []string         `json:"columns,omitempty"`
	Rows       [][]string       `json:"rows,omitempty"`
	Summary    pipeline.Summary `json:"summary"`
	Warnings   []string         `json:"warnings,omitempty"`
}

func (a *App) handleLookupJSON(w http.ResponseWriter, r *http.Request) {
	id, err := parseSessionID(chi.URLParam(r, "id"))
	if err == nil {
		var sess session.Session
		if sess, err = a.dashboard.Session(id); err == nil {
			a.writeLookupJSON(w, r, sess)
			return
		}
	}
	render.Status(r, statusFor(err))
	render.JSON(w, r, map[string]string{"error": userMessage(err)})
}

func (a *App) writeLookupJSON(w http.ResponseWriter, r *http.Request, sess session.Session) {
	if !sess.Loaded() {
		render.Status(r, http.StatusConflict)
		render.JSON(w, r, map[string]string{"error": "no sheet loaded for this session"})
		return
	}
	lookup := a.dashboard.Lookup(sess, r.URL.Query())
	if !lookup.Searchable {
		render.Status(r, http.StatusBadRequest)
		render.JSON(w, r, map[string]string{"error": "column " + lookup.Identifier + " not found"})
		return
	}
	resp := lookupResponse{
		SessionID:  sess.ID.String(),
		Sheet:      sess.Options.SheetName,
		Identifier: lookup.Identifier,
		Query:      lookup.Query,
		Found:      lookup.Found,
		Summary:    lookup.Summary,
		Warnings:   lookup.Warnings,
	}
	if lookup.Found {
		resp.Columns = lookup.Table.ColumnNames()
		resp.Rows = lookup.Table.StringRows()
	}
	render.JSON(w, r, resp)
}

func (a *App) renderLookup(w http.ResponseWriter, r *http.Request, status int, rawID, message string) {
	id, err := parseSessionID(rawID)
	if err != nil {
		a.renderIndexError(w, r, err)
		return
	}
	sess, err := a.dashboard.Session(id)
	if err != nil {
		a.renderIndexError(w, r, err)
		return
	}

	lookup := a.dashboard.Lookup(sess, r.URL.Query())
	a.renderTemplate(w, status, "lookup.html", lookupPage{
		Title:    lookupTitle,
		Lookup:   lookup,
		Sheet:    newSheetForm("/s/"+id.String()+"/sheet", sess, a.cfg.LoadOptions()),
		Error:    message,
		Warnings: lookup.Warnings,
	})
}

func (a *App) renderIndexError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("[LookupDashboard] %s %s: %v", r.Method, r.URL.Path, err)
	a.renderTemplate(w, statusFor(err), "index.html", indexPage{
		Title:    lookupTitle,
		Action:   "/upload",
		Defaults: a.cfg.LoadOptions(),
		Error:    userMessage(err),
	})
}

// renderTemplate renders to a buffer first so a template failure never
// leaves a half-written page.
func (a *App) renderTemplate(w http.ResponseWriter, status int, templateName string, data interface{}) {
	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, templateName, data); err != nil {
		log.Printf("[LookupDashboard] template error for %s: %v", templateName, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if _, err := buf.WriteTo(w); err != nil {
		log.Printf("[LookupDashboard] error writing response: %v", err)
	}
}
