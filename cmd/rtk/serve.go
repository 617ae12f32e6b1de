// Copyright 2025 KrakLabs
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// The local HTTP daemon binds loopback-only and exposes the same four
// entry points as the CLI (explore, delta, refresh, plan-context) over
// JSON, plus a prometheus /metrics endpoint and an async job-polling
// model for long-running rebuilds, so an editor integration can hold
// one warm process instead of paying Go runtime startup on every call.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/time/rate"

	"github.com/rtk-project/rtk/internal/errors"
	"github.com/rtk-project/rtk/pkg/artifact"
	"github.com/rtk-project/rtk/pkg/engine"
	"github.com/rtk-project/rtk/pkg/planner"
	"github.com/rtk-project/rtk/pkg/renderer"
)

const (
	maxRequestBodyBytes = 1 << 20 // 1MB
	maxConcurrentReqs   = 32
	requestTimeout      = 30 * time.Second
	defaultIdleTimeout  = 30 * time.Minute
)

var (
	metricCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtk_cache_hits_total", Help: "Requests served from a FRESH cached artifact.",
	})
	metricCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtk_cache_misses_total", Help: "Requests with no cached artifact at all.",
	})
	metricCacheStale = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtk_cache_stale_total", Help: "Requests served against a STALE artifact, rebuilt in place.",
	})
	metricCacheDirty = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtk_cache_dirty_total", Help: "Requests served against a DIRTY artifact, rebuilt in place.",
	})
	metricEvictions = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtk_lru_evictions_total", Help: "Projects evicted from the store by LRU pruning.",
	})
	metricRequestsRejected = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtk_requests_rejected_total", Help: "Requests rejected for exceeding the concurrency or rate bound.",
	})
	metricJobsStarted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "rtk_async_jobs_started_total", Help: "Async jobs created via ?async=true.",
	})
)

func init() {
	prometheus.MustRegister(metricCacheHits, metricCacheMisses, metricCacheStale,
		metricCacheDirty, metricEvictions, metricRequestsRejected, metricJobsStarted)
}

// asyncJob tracks one background refresh or plan-context request
// started with ?async=true, polled via GET /v1/jobs/{id}.
type asyncJob struct {
	ID        string          `json:"job_id"`
	Status    string          `json:"status"` // "running", "done", "failed"
	Response  *engine.Response `json:"response,omitempty"`
	Error     string          `json:"error,omitempty"`
	StartedAt time.Time       `json:"started_at"`
	EndedAt   *time.Time      `json:"ended_at,omitempty"`
}

// rtkServer holds the daemon's shared state: one Engine, the job
// table for async requests, a concurrency-bounding semaphore, and a
// request-rate limiter in front of every bound endpoint (plan shells
// out to git for the churn signal, delta to git diff when given a
// revision).
type rtkServer struct {
	eng    *engine.Engine
	logger *slog.Logger

	jobsMu sync.Mutex
	jobs   map[string]*asyncJob

	sem     chan struct{}
	limiter *rate.Limiter

	lastActivityMu sync.Mutex
	lastActivity   time.Time
}

func runServe(args []string, configPath string, globals GlobalFlags) {
	fs := flag.NewFlagSet("serve", flag.ExitOnError)
	port := fs.Int("port", 8742, "TCP port to bind on 127.0.0.1")
	idleMinutes := fs.Int("idle-timeout", 30, "Exit automatically after this many idle minutes (0 disables)")
	pidFile := fs.String("pid-file", "", "Path to a PID-file guarding against a second instance (default: OS temp dir)")

	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, `Usage: rtk serve [options]

Runs a loopback-only HTTP daemon exposing explore/delta/refresh/
plan-context over JSON, a prometheus metrics endpoint, and an async
job-polling model for long rebuilds. Intended for editor integrations
that want one warm process instead of a CLI invocation per call.

Options:
`)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		os.Exit(1)
	}

	eng, _ := newEngine(configPath, globals)
	defer eng.Close()

	pidPath := *pidFile
	if pidPath == "" {
		pidPath = filepath.Join(os.TempDir(), fmt.Sprintf("rtk-serve-%d.pid", *port))
	}
	release, err := acquirePIDFile(pidPath)
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"rtk serve is already running",
			err.Error(),
			fmt.Sprintf("Stop the other instance or remove %s if it's stale", pidPath),
			err,
		), globals.JSON)
	}
	defer release()

	srv := &rtkServer{
		eng:          eng,
		logger:       eng.Logger,
		jobs:         make(map[string]*asyncJob),
		sem:          make(chan struct{}, maxConcurrentReqs),
		limiter:      rate.NewLimiter(rate.Limit(maxConcurrentReqs), maxConcurrentReqs*2),
		lastActivity: time.Now(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/health", srv.handleHealth)
	mux.HandleFunc("POST /v1/explore", srv.bound(srv.handleExplore))
	mux.HandleFunc("POST /v1/delta", srv.bound(srv.handleDelta))
	mux.HandleFunc("POST /v1/refresh", srv.bound(srv.handleRefresh))
	mux.HandleFunc("POST /v1/plan-context", srv.bound(srv.handlePlan))
	mux.HandleFunc("GET /v1/jobs/{id}", srv.handleJobStatus)
	mux.Handle("GET /metrics", promhttp.Handler())

	addr := fmt.Sprintf("127.0.0.1:%d", *port)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		errors.FatalError(errors.NewNetworkError(
			"Cannot bind to "+addr,
			err.Error(),
			"Another process may already be listening on this port; try --port with a different value",
			err,
		), globals.JSON)
	}

	httpSrv := &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	if *idleMinutes > 0 {
		go srv.watchIdle(httpSrv, time.Duration(*idleMinutes)*time.Minute)
	}

	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		srv.logger.Info("serve.shutdown.signal")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(ctx)
	}()

	srv.logger.Info("serve.listening", "addr", addr, "pid_file", pidPath)
	if err := httpSrv.Serve(listener); err != nil && err != http.ErrServerClosed {
		errors.FatalError(errors.NewNetworkError("Server error", err.Error(), "", err), globals.JSON)
	}
}

// bound wraps h with the 1MB body cap, the concurrency semaphore, the
// request-rate limiter, and a per-request timeout, so every mutating
// endpoint shares the same hardening without repeating it.
func (s *rtkServer) bound(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.touch()
		if !s.limiter.Allow() {
			metricRequestsRejected.Inc()
			http.Error(w, "rate limit exceeded", http.StatusTooManyRequests)
			return
		}
		select {
		case s.sem <- struct{}{}:
			defer func() { <-s.sem }()
		default:
			metricRequestsRejected.Inc()
			http.Error(w, "server busy, try again shortly", http.StatusServiceUnavailable)
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
		ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
		defer cancel()
		h(w, r.WithContext(ctx))
	}
}

func (s *rtkServer) touch() {
	s.lastActivityMu.Lock()
	s.lastActivity = time.Now()
	s.lastActivityMu.Unlock()
}

func (s *rtkServer) watchIdle(httpSrv *http.Server, idle time.Duration) {
	ticker := time.NewTicker(idle / 4)
	defer ticker.Stop()
	for range ticker.C {
		s.lastActivityMu.Lock()
		elapsed := time.Since(s.lastActivity)
		s.lastActivityMu.Unlock()
		if elapsed >= idle {
			s.logger.Info("serve.idle_exit", "idle_for", elapsed.String())
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			_ = httpSrv.Shutdown(ctx)
			cancel()
			return
		}
	}
}

func (s *rtkServer) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "pid": os.Getpid()})
}

type exploreBody struct {
	ProjectRoot string `json:"project_root"`
	QueryType   string `json:"query_type"`
	Detail      string `json:"detail"`
	Profile     string `json:"profile"`
	Strict      *bool  `json:"strict,omitempty"`
}

func (s *rtkServer) handleExplore(w http.ResponseWriter, r *http.Request) {
	var body exploreBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if body.ProjectRoot == "" {
		body.ProjectRoot = "."
	}
	run := func(ctx context.Context) (engine.Response, error) {
		return s.eng.Explore(ctx, engine.ExploreRequest{
			ProjectRoot: projectRootFlag(body.ProjectRoot),
			QueryType:   renderer.QueryType(orDefault(body.QueryType, "general")),
			Detail:      renderer.Detail(orDefault(body.Detail, "normal")),
			Profile:     renderer.Profile(orDefault(body.Profile, "full")),
			Strict:      body.Strict,
		})
	}
	s.serveOrAsync(w, r, run)
}

type deltaBody struct {
	ProjectRoot string `json:"project_root"`
	Since       string `json:"since"`
}

func (s *rtkServer) handleDelta(w http.ResponseWriter, r *http.Request) {
	var body deltaBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if body.ProjectRoot == "" {
		body.ProjectRoot = "."
	}
	resp, err := s.eng.Delta(r.Context(), engine.DeltaRequest{
		ProjectRoot: projectRootFlag(body.ProjectRoot),
		Since:       body.Since,
	})
	if err != nil {
		writeJSONError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

type refreshBody struct {
	ProjectRoot string `json:"project_root"`
}

func (s *rtkServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	var body refreshBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if body.ProjectRoot == "" {
		body.ProjectRoot = "."
	}
	run := func(ctx context.Context) (engine.Response, error) {
		return s.eng.Refresh(ctx, engine.RefreshRequest{ProjectRoot: projectRootFlag(body.ProjectRoot)})
	}
	s.serveOrAsync(w, r, run)
}

type planBody struct {
	ProjectRoot string `json:"project_root"`
	Task        string `json:"task"`
	TokenBudget int    `json:"token_budget"`
	Intent      string `json:"intent"`
	Legacy      bool   `json:"legacy"`
}

func (s *rtkServer) handlePlan(w http.ResponseWriter, r *http.Request) {
	var body planBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSONError(w, http.StatusBadRequest, err)
		return
	}
	if body.ProjectRoot == "" {
		body.ProjectRoot = "."
	}
	if body.Task == "" {
		writeJSONError(w, http.StatusBadRequest, fmt.Errorf("task is required"))
		return
	}
	run := func(ctx context.Context) (engine.Response, error) {
		return s.eng.Plan(ctx, engine.PlanRequest{
			ProjectRoot: projectRootFlag(body.ProjectRoot),
			Task:        body.Task,
			TokenBudget: body.TokenBudget,
			Intent:      planner.IntentKind(body.Intent),
			Legacy:      body.Legacy,
		})
	}
	s.serveOrAsync(w, r, run)
}

// serveOrAsync runs op synchronously unless the request carries
// ?async=true, in which case it's dispatched to a goroutine and this
// call returns a job_id immediately for GET /v1/jobs/{id} to poll.
func (s *rtkServer) serveOrAsync(w http.ResponseWriter, r *http.Request, op func(context.Context) (engine.Response, error)) {
	record := func(resp engine.Response) {
		switch resp.Envelope.CacheStatus {
		case artifact.EventHit:
			metricCacheHits.Inc()
		case artifact.EventMiss:
			metricCacheMisses.Inc()
		case artifact.EventStaleRebuild:
			metricCacheStale.Inc()
		case artifact.EventDirtyRebuild:
			metricCacheDirty.Inc()
		}
	}
	if r.URL.Query().Get("async") != "true" {
		resp, err := op(r.Context())
		if err != nil {
			writeJSONError(w, http.StatusInternalServerError, err)
			return
		}
		record(resp)
		writeJSON(w, http.StatusOK, resp)
		return
	}

	metricJobsStarted.Inc()
	job := &asyncJob{ID: uuid.NewString(), Status: "running", StartedAt: time.Now()}
	s.jobsMu.Lock()
	s.jobs[job.ID] = job
	s.jobsMu.Unlock()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		resp, err := op(ctx)
		now := time.Now()
		s.jobsMu.Lock()
		defer s.jobsMu.Unlock()
		job.EndedAt = &now
		if err != nil {
			job.Status = "failed"
			job.Error = err.Error()
			return
		}
		record(resp)
		job.Status = "done"
		job.Response = &resp
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": job.ID, "status": "running"})
}

func (s *rtkServer) handleJobStatus(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	s.jobsMu.Lock()
	job, ok := s.jobs[id]
	s.jobsMu.Unlock()
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeJSONError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]any{"error": err.Error()})
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

// acquirePIDFile writes pid-file exclusively (O_EXCL), refusing to
// start a second daemon against the same port. A stale file left by a
// crashed process is detected by checking whether its PID is still
// alive and cleaned up automatically.
func acquirePIDFile(path string) (func(), error) {
	if existing, err := os.ReadFile(path); err == nil {
		if pid, convErr := strconv.Atoi(string(existing)); convErr == nil && processAlive(pid) {
			return nil, fmt.Errorf("pid %d is already listening (pid-file %s)", pid, path)
		}
		_ = os.Remove(path)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o640)
	if err != nil {
		return nil, err
	}
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	_ = f.Close()
	return func() { _ = os.Remove(path) }, nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
