package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"point-matcher/internal/calculator"
	"point-matcher/internal/coord"
	"point-matcher/internal/jobs"
	"point-matcher/internal/metrics"
	"point-matcher/internal/models"
	"point-matcher/internal/pipeline"
	"point-matcher/internal/report"
	"point-matcher/internal/source"
)

type pointInput struct {
	Lat any `json:"lat"`
	Lon any `json:"lon"`
}

type matchRequest struct {
	Source   []pointInput `json:"source"`
	Target   []pointInput `json:"target"`
	Mode     string       `json:"mode"`
	RadiusKm float64      `json:"radius_km"`
}

type matchResponse struct {
	OK     bool                     `json:"ok"`
	Pairs  []models.MatchPair       `json:"pairs,omitempty"`
	Radius []calculator.RadiusMatch `json:"radius,omitempty"`
}

func parsePoints(set string, in []pointInput) ([]models.Point, error) {
	points := make([]models.Point, 0, len(in))
	for i, p := range in {
		pt, err := coord.ParsePoint(p.Lat, p.Lon)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", set, i, err)
		}
		points = append(points, pt)
	}
	return points, nil
}

func (s *Server) match(c *gin.Context) {
	var req matchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	src, err := parsePoints("source", req.Source)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	dst, err := parsePoints("target", req.Target)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}

	dist := s.cfg.Distance()
	switch req.Mode {
	case "", pipeline.ModeNearest:
		m := calculator.BruteForce{Distance: dist, Workers: s.cfg.Workers}
		pairs, err := m.Match(c.Request.Context(), src, dst)
		if err != nil {
			metrics.MatchRuns.WithLabelValues(pipeline.ModeNearest, "error").Inc()
			c.JSON(http.StatusServiceUnavailable, gin.H{"ok": false, "error": err.Error()})
			return
		}
		metrics.MatchRuns.WithLabelValues(pipeline.ModeNearest, "ok").Inc()
		c.JSON(http.StatusOK, matchResponse{OK: true, Pairs: pairs})
	case pipeline.ModeRadius:
		if err := pipeline.CheckRadius(req.RadiusKm); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
		metrics.MatchRuns.WithLabelValues(pipeline.ModeRadius, "ok").Inc()
		c.JSON(http.StatusOK, matchResponse{OK: true, Radius: calculator.WithinRadius(src, dst, req.RadiusKm, dist)})
	default:
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": fmt.Sprintf("unknown mode %q", req.Mode)})
	}
}

type runRequest struct {
	Mode     string
	RadiusKm float64
	Layout   source.Layout
	Comma    rune
	Sheets   [2]string
	Paths    [2]string
}

func (s *Server) run(c *gin.Context) {
	srcFile, err := c.FormFile("source_file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "source_file is required"})
		return
	}

	req := runRequest{
		Mode:   c.DefaultPostForm("mode", pipeline.ModeNearest),
		Layout: s.cfg.Layout(),
		Sheets: [2]string{c.PostForm("source_sheet"), c.PostForm("target_sheet")},
	}
	if v := c.PostForm("radius_km"); v != "" {
		if req.RadiusKm, err = strconv.ParseFloat(v, 64); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "radius_km must be a number"})
			return
		}
	}
	if v := c.PostForm("has_header"); v != "" {
		if req.Layout.HasHeader, err = strconv.ParseBool(v); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": "has_header must be a boolean"})
			return
		}
	}
	if req.Comma, err = source.ParseDelimiter(c.DefaultPostForm("delimiter", s.cfg.Delimiter)); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	if req.Mode != pipeline.ModeNearest && req.Mode != pipeline.ModeRadius {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": fmt.Sprintf("unknown mode %q", req.Mode)})
		return
	}
	if req.Mode == pipeline.ModeRadius {
		if err := pipeline.CheckRadius(req.RadiusKm); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
			return
		}
	}

	dstFile, err := c.FormFile("target_file")
	if err != nil {
		dstFile = nil
		if msg := singleFileProblem(srcFile.Filename, req.Sheets); msg != "" {
			c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": msg})
			return
		}
	}

	if err := os.MkdirAll(s.cfg.UploadDir, 0o755); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "upload directory unavailable"})
		return
	}

	req.Paths[0] = filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(srcFile.Filename)))
	if err := c.SaveUploadedFile(srcFile, req.Paths[0]); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not store upload"})
		return
	}
	// without a target file both sets come from two sheets of the source workbook
	req.Paths[1] = req.Paths[0]
	if dstFile != nil {
		req.Paths[1] = filepath.Join(s.cfg.UploadDir, fmt.Sprintf("%s_%s", uuid.New().String(), filepath.Base(dstFile.Filename)))
		if err := c.SaveUploadedFile(dstFile, req.Paths[1]); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"ok": false, "error": "could not store upload"})
			return
		}
	}

	job, ctx := s.jobs.New(context.Background())
	go s.processJob(ctx, job, req)

	c.JSON(http.StatusAccepted, gin.H{"ok": true, "job_id": job.ID})
}

// singleFileProblem explains why one upload cannot provide both sets, or
// returns "" when it can: an XLSX workbook with two different sheets named.
func singleFileProblem(filename string, sheets [2]string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
	default:
		return "target_file is required unless source_file is a workbook with a target_sheet"
	}
	if sheets[1] == "" {
		return "target_sheet is required when target_file is not uploaded"
	}
	if sheets[0] == sheets[1] {
		return "source_sheet and target_sheet must differ when target_file is not uploaded"
	}
	return ""
}

func (s *Server) jobLogs(c *gin.Context) {
	job := s.jobs.Get(c.Query("job_id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "job not found"})
		return
	}
	snap := job.Snapshot()
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"logs":     snap.Logs,
		"status":   snap.Status,
		"progress": snap.Progress,
	})
}

func (s *Server) jobStatus(c *gin.Context) {
	job := s.jobs.Get(c.Query("job_id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "job not found"})
		return
	}
	snap := job.Snapshot()
	res := gin.H{
		"ok":     true,
		"status": snap.Status,
		"error":  snap.Error,
	}
	if snap.Result != nil {
		res["result"] = snap.Result
	}
	c.JSON(http.StatusOK, res)
}

func (s *Server) cancelJob(c *gin.Context) {
	job := s.jobs.Get(c.Query("job_id"))
	if job == nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "job not found"})
		return
	}
	job.Cancel()
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

func (s *Server) download(c *gin.Context) {
	name := filepath.Base(c.Param("filename"))
	target := filepath.Join(s.cfg.OutputDir, name)
	if _, err := os.Stat(target); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"ok": false, "error": "result not found"})
		return
	}
	c.FileAttachment(target, name)
}

func (s *Server) processJob(ctx context.Context, job *jobs.Job, req runRequest) {
	metrics.ActiveJobs.Inc()
	defer metrics.ActiveJobs.Dec()
	defer func() {
		if r := recover(); r != nil {
			s.log.WithField("job_id", job.ID).Errorf("job panic: %v", r)
			job.Fail(fmt.Sprintf("panic: %v", r))
		}
	}()

	job.Log(fmt.Sprintf("Processing %s", filepath.Base(req.Paths[0])))

	src := pipeline.Open(req.Paths[0], req.Layout, req.Comma, req.Sheets[0])
	dst := pipeline.Open(req.Paths[1], req.Layout, req.Comma, req.Sheets[1])

	runner := &pipeline.Runner{Log: s.log.WithField("job_id", job.ID)}
	res, err := runner.Run(ctx, src, dst, pipeline.Options{
		Mode:       req.Mode,
		RadiusKm:   req.RadiusKm,
		Distance:   s.cfg.Distance(),
		Workers:    s.cfg.Workers,
		OnProgress: job.SetProgress,
	})
	if err != nil {
		job.Fail(fmt.Sprintf("matching failed: %v", err))
		return
	}
	job.Log(fmt.Sprintf("Loaded %d source and %d target points, %d rows skipped.", len(res.Source), len(res.Target), res.Skipped))
	job.Log(fmt.Sprintf("Matching finished in %s.", res.Elapsed))

	if err := os.MkdirAll(s.cfg.OutputDir, 0o755); err != nil {
		job.Fail(fmt.Sprintf("output directory unavailable: %v", err))
		return
	}
	filename := fmt.Sprintf("%s_%s.xlsx", job.ID, req.Mode)
	output := filepath.Join(s.cfg.OutputDir, filename)

	job.Log("Writing result workbook...")
	if err := report.WriteXLSX(output, res.Rows); err != nil {
		job.Fail(fmt.Sprintf("write failed: %v", err))
		return
	}

	job.Finish(&jobs.Result{
		Mode:     req.Mode,
		Rows:     len(res.Rows),
		Skipped:  res.Skipped,
		Output:   output,
		Filename: filename,
	})
}
