package server

import (
	"bytes"
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/yuin/goldmark"

	"github.com/TobiSchelling/goldpulse/internal/curate"
	"github.com/TobiSchelling/goldpulse/internal/database"
	"github.com/TobiSchelling/goldpulse/internal/logging"
	"github.com/TobiSchelling/goldpulse/internal/pipeline"
	"github.com/TobiSchelling/goldpulse/internal/prompts"
)

//go:embed templates/*.html
var templateFS embed.FS

var md = goldmark.New()

// Limits for list endpoints: default and maximum.
const (
	historyDefault = 30
	historyMax     = 100
	newsDefault    = 10
	newsMax        = 50
	cyclesDefault  = 20
	cyclesMax      = 100
)

// Trigger runs an on-demand full cycle. *scheduler.Scheduler satisfies it.
type Trigger interface {
	TriggerFull(ctx context.Context, trigger string) (*pipeline.Result, error)
}

// Server is the read API plus the on-demand refresh endpoint.
type Server struct {
	db        *database.DB
	templates prompts.Provider
	trigger   Trigger
	topics    []curate.Topic
	page      *template.Template
	engine    *gin.Engine
}

// New creates a new Server. trigger may be nil, in which case
// POST /api/update answers 503.
func New(db *database.DB, templates prompts.Provider, trigger Trigger, topics []curate.Topic) (*Server, error) {
	funcMap := template.FuncMap{
		"markdown": renderMarkdown,
	}
	page, err := template.New("base.html").Funcs(funcMap).ParseFS(templateFS, "templates/base.html", "templates/prompts.html")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}

	if logging.Logger().IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())

	s := &Server{
		db:        db,
		templates: templates,
		trigger:   trigger,
		topics:    topics,
		page:      page,
		engine:    engine,
	}
	s.routes()
	return s, nil
}

// Handler returns the HTTP handler for the server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) routes() {
	api := s.engine.Group("/api")
	api.GET("/health", s.handleHealth)
	api.GET("/price/latest", s.handleLatestPrice)
	api.GET("/price/history", s.handlePriceHistory)
	api.GET("/news/latest", s.handleLatestNews)
	api.GET("/news/category/:category", s.handleNewsByCategory)
	api.GET("/news/all-categories", s.handleAllCategories)
	api.GET("/news/search", s.handleNewsSearch)
	api.GET("/prompts", s.handlePrompts)
	api.GET("/cycles", s.handleCycles)
	api.POST("/update", s.handleUpdate)

	s.engine.GET("/prompts", s.handlePromptsPage)
}

func requestLogger() gin.HandlerFunc {
	log := logging.For("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(logrus.Fields{
			"status":   c.Writer.Status(),
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"duration": time.Since(start).Round(time.Millisecond),
		}).Debug("request")
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	slugs := make([]string, len(s.topics))
	for i, t := range s.topics {
		slugs[i] = t.Slug
	}
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"time":   time.Now().Format(time.RFC3339),
		"topics": slugs,
	})
}

func (s *Server) handleLatestPrice(c *gin.Context) {
	snap, err := s.db.LatestPriceSnapshot()
	if err != nil {
		s.fail(c, err)
		return
	}
	if snap == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, newPriceView(snap))
}

func (s *Server) handlePriceHistory(c *gin.Context) {
	limit, ok := parseLimit(c, historyDefault, historyMax)
	if !ok {
		return
	}
	history, err := s.db.PriceHistory(limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]historyPoint, len(history))
	for i, h := range history {
		out[i] = historyPoint{Date: h.Date, PriceBase: h.PriceBase, PriceDerived: h.PriceDerived}
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleLatestNews(c *gin.Context) {
	limit, ok := parseLimit(c, newsDefault, newsMax)
	if !ok {
		return
	}
	items, err := s.db.RecentNews(limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newNewsViews(items))
}

func (s *Server) handleNewsByCategory(c *gin.Context) {
	topic, ok := curate.Lookup(c.Param("category"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("unknown category %q", c.Param("category"))})
		return
	}
	item, err := s.db.LatestNewsByCategory(topic.Slug)
	if err != nil {
		s.fail(c, err)
		return
	}
	if item == nil {
		c.JSON(http.StatusOK, gin.H{})
		return
	}
	c.JSON(http.StatusOK, newNewsView(item))
}

func (s *Server) handleAllCategories(c *gin.Context) {
	out := make(map[string]any, len(s.topics))
	for _, t := range s.topics {
		item, err := s.db.LatestNewsByCategory(t.Slug)
		if err != nil {
			s.fail(c, err)
			return
		}
		if item == nil {
			out[t.Slug] = gin.H{}
			continue
		}
		out[t.Slug] = newNewsView(item)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleNewsSearch(c *gin.Context) {
	q := strings.TrimSpace(c.Query("q"))
	if q == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "query parameter q is required"})
		return
	}
	limit, ok := parseLimit(c, newsDefault, newsMax)
	if !ok {
		return
	}
	items, err := s.db.SearchNews(q, limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, newNewsViews(items))
}

func (s *Server) handlePrompts(c *gin.Context) {
	set, err := s.templates.Load()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"source":    set.Source,
		"path":      set.Path,
		"templates": set.Templates,
		"markdown":  set.Markdown,
		"timestamp": set.LoadedAt.Format(time.RFC3339),
	})
}

func (s *Server) handlePromptsPage(c *gin.Context) {
	set, err := s.templates.Load()
	if err != nil {
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}

	var buf bytes.Buffer
	err = s.page.ExecuteTemplate(&buf, "base.html", map[string]any{
		"Source":   set.Source,
		"Path":     set.Path,
		"LoadedAt": set.LoadedAt.Format(time.DateTime),
		"Markdown": set.Markdown,
	})
	if err != nil {
		logging.For("http").WithError(err).Error("rendering prompts page")
		c.String(http.StatusInternalServerError, "Internal server error")
		return
	}
	c.Data(http.StatusOK, "text/html; charset=utf-8", buf.Bytes())
}

func (s *Server) handleCycles(c *gin.Context) {
	limit, ok := parseLimit(c, cyclesDefault, cyclesMax)
	if !ok {
		return
	}
	reports, err := s.db.RecentCycleReports(limit)
	if err != nil {
		s.fail(c, err)
		return
	}
	out := make([]cycleView, len(reports))
	for i, r := range reports {
		out[i] = newCycleView(r)
	}
	c.JSON(http.StatusOK, out)
}

func (s *Server) handleUpdate(c *gin.Context) {
	if s.trigger == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": "refresh is not available"})
		return
	}

	result, err := s.trigger.TriggerFull(c.Request.Context(), "api")
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"success": false, "message": err.Error()})
		return
	}

	lines := make([]string, 0, len(result.Steps))
	for _, step := range result.Steps {
		if step.Err != nil {
			lines = append(lines, fmt.Sprintf("%s: %v", step.Name, step.Err))
			continue
		}
		lines = append(lines, fmt.Sprintf("%s: %s", step.Name, step.Summary))
	}
	c.JSON(http.StatusOK, gin.H{
		"success":  result.Errors() == 0,
		"message":  strings.Join(lines, "; "),
		"cycle_id": result.CycleID,
	})
}

func (s *Server) fail(c *gin.Context, err error) {
	logging.For("http").WithError(err).Errorf("%s %s", c.Request.Method, c.Request.URL.Path)
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
}

// parseLimit reads ?limit=, clamping to max. A non-numeric or non-positive
// value answers 400 and reports false.
func parseLimit(c *gin.Context, def, max int) (int, bool) {
	raw := c.Query("limit")
	if raw == "" {
		return def, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("invalid limit %q", raw)})
		return 0, false
	}
	return min(n, max), true
}

func renderMarkdown(text string) template.HTML {
	var buf bytes.Buffer
	if err := md.Convert([]byte(text), &buf); err != nil {
		return template.HTML(template.HTMLEscapeString(text))
	}
	return template.HTML(buf.String()) //nolint: gosec
}

// Serve runs the server on addr until ctx is cancelled.
func Serve(ctx context.Context, s *Server, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logging.For("http").Infof("Server listening on http://%s", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
