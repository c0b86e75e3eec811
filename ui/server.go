package ui

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"sondajes/domain/filter"
	"sondajes/internal/config"
	"sondajes/internal/metrics"
	"sondajes/internal/pipeline"
)

const filterTitle = "Filtros de Perforación"

// Server is the filter dashboard: upload a workbook, pick a sheet, narrow
// the rows with membership filters and read the summary.
type Server struct {
	router    *gin.Engine
	dashboard *Dashboard
	cfg       *config.Config
	metrics   *metrics.Metrics
	uploads   *RateLimiter
}

// NewServer creates the filter dashboard with its own session store.
func NewServer(cfg *config.Config, m *metrics.Metrics) (*Server, error) {
	templates, err := parseTemplates()
	if err != nil {
		return nil, err
	}

	gin.SetMode(cfg.Server.GinMode)
	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	router.SetHTMLTemplate(templates)
	router.MaxMultipartMemory = cfg.MaxUploadBytes()

	s := &Server{
		router:    router,
		dashboard: NewDashboard(cfg, m),
		cfg:       cfg,
		metrics:   m,
		uploads:   NewRateLimiter(cfg.Server.UploadRPS, cfg.Server.UploadBurst, "[FilterDashboard]"),
	}
	s.setupRoutes()
	return s, nil
}

// setupRoutes configures the application routes
func (s *Server) setupRoutes() {
	s.router.GET("/", s.handleIndex)
	s.router.POST("/upload", s.uploads.Gin(), s.handleUpload)

	s.router.GET("/sessions/:id", s.handleSession)
	s.router.POST("/sessions/:id/sheet", s.handleSheet)
	s.router.GET("/sessions/:id/report.md", s.handleReport)

	api := s.router.Group("/api")
	api.GET("/sessions/:id", s.handleSessionJSON)
	api.DELETE("/sessions/:id", s.handleDeleteSession)

	s.router.GET("/metrics", gin.WrapH(s.metrics.Handler()))
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  s.cfg.Server.ReadTimeout,
		WriteTimeout: s.cfg.Server.WriteTimeout,
	}
	return serve(ctx, srv, "[FilterDashboard]")
}

func (s *Server) handleIndex(c *gin.Context) {
	c.HTML(http.StatusOK, "index.html", indexPage{
		Title:    filterTitle,
		Action:   "/upload",
		Defaults: s.cfg.LoadOptions(),
	})
}

func (s *Server) handleUpload(c *gin.Context) {
	name, data, err := s.dashboard.readUpload(c.Writer, c.Request)
	if err != nil {
		s.renderIndexError(c, err)
		return
	}
	opts, err := s.dashboard.loadOptions(c.Request.PostForm)
	if err != nil {
		s.renderIndexError(c, err)
		return
	}

	sess, err := s.dashboard.Upload(name, data, opts)
	if err != nil && sess.ID.IsEmpty() {
		s.renderIndexError(c, err)
		return
	}
	if err != nil {
		// The workbook is kept; the page offers its sheets instead.
		s.renderSession(c, statusFor(err), sess.ID.String(), userMessage(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/sessions/"+sess.ID.String())
}

func (s *Server) handleSession(c *gin.Context) {
	s.renderSession(c, http.StatusOK, c.Param("id"), "")
}

func (s *Server) handleSheet(c *gin.Context) {
	id, err := parseSessionID(c.Param("id"))
	if err != nil {
		s.renderIndexError(c, err)
		return
	}
	if err := c.Request.ParseForm(); err != nil {
		s.renderSession(c, http.StatusBadRequest, id.String(), "formulario inválido")
		return
	}
	opts, err := s.dashboard.loadOptions(c.Request.PostForm)
	if err == nil {
		_, err = s.dashboard.Load(id, opts)
	}
	if err != nil {
		if errors.Is(err, errNoSession) {
			s.renderIndexError(c, err)
			return
		}
		s.renderSession(c, statusFor(err), id.String(), userMessage(err))
		return
	}
	c.Redirect(http.StatusSeeOther, "/sessions/"+id.String())
}

func (s *Server) renderSession(c *gin.Context, status int, rawID, message string) {
	id, err := parseSessionID(rawID)
	if err != nil {
		s.renderIndexError(c, err)
		return
	}
	sess, err := s.dashboard.Session(id)
	if err != nil {
		s.renderIndexError(c, err)
		return
	}

	query := c.Request.URL.Query()
	view := s.dashboard.Filter(sess, query)
	base := "/sessions/" + id.String()
	c.HTML(status, "filter.html", filterPage{
		Title:     filterTitle,
		View:      view,
		Sheet:     newSheetForm(base+"/sheet", sess, s.cfg.LoadOptions()),
		Error:     message,
		Warnings:  view.Warnings,
		ReportURL: withQuery(base+"/report.md", query),
		JSONURL:   withQuery("/api"+base, query),
	})
}

func (s *Server) handleReport(c *gin.Context) {
	view, ok := s.loadedView(c)
	if !ok {
		return
	}
	r := view.Report
	r.Warnings = view.Warnings
	r.MaxRows = 0
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "reporte_"+view.Session.ID.String()+".md"))
	c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(r.Markdown()))
}

// sessionResponse is the JSON shape of one filtered view.
type sessionResponse struct {
	SessionID string              `json:"session_id"`
	FileName  string              `json:"file_name"`
	Sheet     string              `json:"sheet"`
	Sheets    []string            `json:"sheets"`
	Filters   filter.Filters      `json:"filters"`
	Columns   []string            `json:"columns"`
	Rows      [][]string          `json:"rows"`
	Summary   pipeline.Summary    `json:"summary"`
	Options   map[string][]string `json:"options"`
	Warnings  []string            `json:"warnings,omitempty"`
}

func (s *Server) handleSessionJSON(c *gin.Context) {
	view, ok := s.loadedView(c)
	if !ok {
		return
	}
	resp := sessionResponse{
		SessionID: view.Session.ID.String(),
		FileName:  view.Session.FileName,
		Sheet:     view.Session.Options.SheetName,
		Sheets:    view.Session.Sheets,
		Filters:   view.Filters,
		Columns:   view.Table.ColumnNames(),
		Rows:      view.Table.StringRows(),
		Summary:   view.Summary,
		Options:   make(map[string][]string, len(view.Fields)),
		Warnings:  view.Warnings,
	}
	for _, f := range view.Fields {
		resp.Options[f.Column] = f.Choices
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleDeleteSession(c *gin.Context) {
	id, err := parseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return
	}
	s.dashboard.Close(id)
	c.Status(http.StatusNoContent)
}

// loadedView answers the JSON error itself when the session is missing or
// has no table yet.
func (s *Server) loadedView(c *gin.Context) (View, bool) {
	id, err := parseSessionID(c.Param("id"))
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return View{}, false
	}
	sess, err := s.dashboard.Session(id)
	if err != nil {
		c.JSON(statusFor(err), gin.H{"error": userMessage(err)})
		return View{}, false
	}
	if !sess.Loaded() {
		c.JSON(http.StatusConflict, gin.H{"error": "no sheet loaded for this session"})
		return View{}, false
	}
	return s.dashboard.Filter(sess, c.Request.URL.Query()), true
}

func (s *Server) renderIndexError(c *gin.Context, err error) {
	log.Printf("[FilterDashboard] %s %s: %v", c.Request.Method, c.Request.URL.Path, err)
	c.HTML(statusFor(err), "index.html", indexPage{
		Title:    filterTitle,
		Action:   "/upload",
		Defaults: s.cfg.LoadOptions(),
		Error:    userMessage(err),
	})
}

// serve runs srv until ctx is done.
func serve(ctx context.Context, srv *http.Server, tag string) error {
	errCh := make(chan error, 1)
	go func() {
		log.Printf("%s listening on http://%s", tag, srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Printf("%s shutting down", tag)
		return srv.Shutdown(shutdownCtx)
	}
}
