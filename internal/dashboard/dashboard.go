// Package dashboard serves finished evaluation runs over HTTP: run
// summaries, metric tables, per-label raw metrics and rendered figures.
package dashboard

import (
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"outcomeeval/internal/report"
)

type Server struct {
	RunsDir string
	APIKey  string
	log     *zap.Logger
}

func New(runsDir, apiKey string, log *zap.Logger) *Server {
	if log == nil { log = zap.NewNop() }
	return &Server{RunsDir: runsDir, APIKey: apiKey, log: log}
}

// Router registers every route on a new gin engine.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog)
	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })

	api := r.Group("/runs")
	api.Use(s.apiKeyMiddleware)
	api.GET("", s.listRuns)
	api.GET("/:run", s.getRun)
	api.GET("/:run/tables/:metric", s.getTable)
	api.GET("/:run/labels/:label/metrics", s.getRecord)
	api.GET("/:run/labels/:label/figures/*file", s.getFigure)
	return r
}

func (s *Server) apiKeyMiddleware(c *gin.Context) {
	if s.APIKey == "" { c.Next(); return }
	if c.GetHeader("X-API-Key") != s.APIKey { c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"}); return }
	c.Next()
}

func (s *Server) accessLog(c *gin.Context) {
	c.Next()
	s.log.Info("request", zap.String("method", c.Request.Method), zap.String("path", c.Request.URL.Path), zap.Int("status", c.Writer.Status()))
}

// runDir resolves a run name inside RunsDir, rejecting path traversal.
func (s *Server) runDir(c *gin.Context) (string, bool) {
	name := c.Param("run")
	if !safeName(name) { c.JSON(http.StatusBadRequest, gin.H{"error": "invalid run name"}); return "", false }
	dir := filepath.Join(s.RunsDir, name)
	if _, err := os.Stat(filepath.Join(dir, report.SummaryFile)); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "run not found"})
		return "", false
	}
	return dir, true
}

func safeName(name string) bool {
	return name != "" && name != "." && name != ".." && !strings.ContainsAny(name, `/\`)
}

func (s *Server) listRuns(c *gin.Context) {
	entries, err := os.ReadDir(s.RunsDir)
	if err != nil { c.JSON(http.StatusOK, gin.H{"runs": []gin.H{}}); return }
	runs := make([]gin.H, 0, len(entries))
	for _, e := range entries {
		if !e.IsDir() { continue }
		sum, err := report.ReadSummary(filepath.Join(s.RunsDir, e.Name()))
		if err != nil { continue }
		runs = append(runs, gin.H{"name": e.Name(), "run_id": sum.RunID, "dataset": sum.Dataset, "started": sum.Started, "labels": sum.Labels, "failed": sum.Failed})
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i]["name"].(string) > runs[j]["name"].(string) })
	c.JSON(http.StatusOK, gin.H{"runs": runs})
}

func (s *Server) getRun(c *gin.Context) {
	dir, ok := s.runDir(c)
	if !ok { return }
	sum, err := report.ReadSummary(dir)
	if err != nil { c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()}); return }
	c.JSON(http.StatusOK, sum)
}

// getTable returns data_frames/<metric>.csv as {model: {label: value}};
// empty cells become null. ?format=csv returns the file itself.
func (s *Server) getTable(c *gin.Context) {
	dir, ok := s.runDir(c)
	if !ok { return }
	metric := c.Param("metric")
	if !safeName(metric) { c.JSON(http.StatusBadRequest, gin.H{"error": "invalid metric"}); return }
	if c.Query("format") == "csv" {
		c.File(filepath.Join(dir, report.TablesDir, metric+".csv"))
		return
	}
	rows, err := report.ReadTable(dir, metric)
	if err != nil { c.JSON(http.StatusNotFound, gin.H{"error": "metric table not found"}); return }
	if len(rows) == 0 { c.JSON(http.StatusOK, gin.H{"metric": metric, "labels": []string{}, "values": gin.H{}}); return }
	labels := rows[0][1:]
	values := gin.H{}
	for _, row := range rows[1:] {
		cells := gin.H{}
		for k, label := range labels {
			var v interface{}
			if k+1 < len(row) {
				if f, err := strconv.ParseFloat(row[k+1], 64); err == nil { v = f }
			}
			cells[label] = v
		}
		values[row[0]] = cells
	}
	c.JSON(http.StatusOK, gin.H{"metric": metric, "labels": labels, "values": values})
}

// getRecord returns the raw per-model metrics of one label, optionally
// restricted with ?metric=.
func (s *Server) getRecord(c *gin.Context) {
	dir, ok := s.runDir(c)
	if !ok { return }
	label := c.Param("label")
	if !safeName(label) { c.JSON(http.StatusBadRequest, gin.H{"error": "invalid label"}); return }
	rec, err := report.ReadRecord(dir, label)
	if err != nil { c.JSON(http.StatusNotFound, gin.H{"error": "label not found"}); return }
	m := c.Query("metric")
	if m == "" { c.JSON(http.StatusOK, rec); return }
	if byModel, ok := rec.Scalars[m]; ok { c.JSON(http.StatusOK, gin.H{m: byModel}); return }
	if m == "confusion_matrix" && rec.Confusion != nil { c.JSON(http.StatusOK, gin.H{m: rec.Confusion}); return }
	c.JSON(http.StatusNotFound, gin.H{"error": "metric not found"})
}

func (s *Server) getFigure(c *gin.Context) {
	dir, ok := s.runDir(c)
	if !ok { return }
	label := c.Param("label")
	if !safeName(label) { c.JSON(http.StatusBadRequest, gin.H{"error": "invalid label"}); return }
	rel := filepath.Clean(strings.TrimPrefix(c.Param("file"), "/"))
	if rel == "." || strings.HasPrefix(rel, "..") || filepath.IsAbs(rel) || filepath.Ext(rel) != ".png" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid figure"})
		return
	}
	path := filepath.Join(dir, label, rel)
	if _, err := os.Stat(path); err != nil { c.JSON(http.StatusNotFound, gin.H{"error": "figure not found"}); return }
	c.File(path)
}
