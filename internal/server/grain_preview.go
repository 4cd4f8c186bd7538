// Package server exposes grain previews and the preset table over HTTP.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log/slog"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/MeKo-Tech/grainmatch/internal/camera"
	"github.com/MeKo-Tech/grainmatch/internal/composite"
	"github.com/MeKo-Tech/grainmatch/internal/grain"
	"github.com/MeKo-Tech/grainmatch/internal/iso"
)

// Preview defaults.
const (
	DefaultDimension    = 256
	DefaultMaxDimension = grain.MaxPreviewDimension
)

type GrainServerConfig struct {
	CacheControl             string
	MaxConcurrentGenerations int
	MaxDimension             int
	GenerationTimeout        time.Duration
	// Cameras is optional; when set, ?camera=<name> resolves stored settings.
	// Unknown cameras are 404, and ?camera= without a store is 400.
	Cameras *camera.Store
}

type GrainServer struct {
	logger *slog.Logger
	sem    chan struct{}
	cfg    GrainServerConfig

	activeRenders atomic.Int32
	totalRendered atomic.Int64
	totalFailed   atomic.Int64
}

// Status represents the current render counters.
type Status struct {
	ActiveRenders int   `json:"active_renders"`
	TotalRendered int64 `json:"total_rendered"`
	TotalFailed   int64 `json:"total_failed"`
	MaxConcurrent int   `json:"max_concurrent"`
}

// PresetJSON is the wire form of an ISO preset.
type PresetJSON struct {
	ISO            string  `json:"iso"`
	Label          string  `json:"label"`
	Description    string  `json:"description"`
	Intensity      float64 `json:"intensity"`
	Size           float64 `json:"size"`
	Roughness      float64 `json:"roughness"`
	ColorInfluence float64 `json:"color_influence"`
	LumaInfluence  float64 `json:"luma_influence"`
	ChromaBias     float64 `json:"chroma_bias"`
}

// requestError carries the HTTP status for a rejected query.
type requestError struct {
	status int
	err    error
}

func (e *requestError) Error() string { return e.err.Error() }
func (e *requestError) Unwrap() error { return e.err }

func badRequest(err error) error { return &requestError{status: http.StatusBadRequest, err: err} }

// previewRequest is a parsed /grain.png query.
type previewRequest struct {
	settings camera.Settings
	pass     string
	seed     int64
	width    int
	height   int
}

func NewGrainServer(cfg GrainServerConfig, logger *slog.Logger) *GrainServer {
	if cfg.MaxConcurrentGenerations <= 0 {
		cfg.MaxConcurrentGenerations = 1
	}
	if cfg.MaxDimension <= 0 {
		cfg.MaxDimension = DefaultMaxDimension
	}
	if cfg.GenerationTimeout <= 0 {
		cfg.GenerationTimeout = 30 * time.Second
	}
	if cfg.CacheControl == "" {
		cfg.CacheControl = "no-store"
	}

	return &GrainServer{
		cfg:    cfg,
		logger: logger,
		sem:    make(chan struct{}, cfg.MaxConcurrentGenerations),
	}
}

// Routes registers every endpoint on a new mux.
func (s *GrainServer) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("/grain.png", s.Handler())
	mux.Handle("/presets", s.PresetsHandler())
	mux.Handle("/status", s.StatusHandler())
	return mux
}

// Status returns the current render counters.
func (s *GrainServer) Status() Status {
	return Status{
		ActiveRenders: int(s.activeRenders.Load()),
		TotalRendered: s.totalRendered.Load(),
		TotalFailed:   s.totalFailed.Load(),
		MaxConcurrent: s.cfg.MaxConcurrentGenerations,
	}
}

// StatusHandler returns an HTTP handler for the status endpoint (JSON).
func (s *GrainServer) StatusHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, s.Status())
	})
}

// PresetsHandler lists the ISO table as JSON.
func (s *GrainServer) PresetsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		presets := iso.Presets()
		out := make([]PresetJSON, 0, len(presets))
		for _, p := range presets {
			out = append(out, PresetJSON{
				ISO:            p.Identifier,
				Label:          p.Label,
				Description:    p.Description,
				Intensity:      p.Params.Intensity,
				Size:           p.Params.Size,
				Roughness:      p.Params.Roughness,
				ColorInfluence: p.Params.ColorInfluence,
				LumaInfluence:  p.Params.LumaInfluence,
				ChromaBias:     p.Params.ChromaBias,
			})
		}
		s.writeJSON(w, out)
	})
}

func (s *GrainServer) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log().Error("failed to encode response", "error", err)
		http.Error(w, "failed to encode response", http.StatusInternalServerError)
	}
}

// Handler serves grain previews as PNG.
func (s *GrainServer) Handler() http.Handler {
	return http.HandlerFunc(s.serveGrain)
}

func (s *GrainServer) serveGrain(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	req, err := s.parseRequest(r)
	if err != nil {
		status := http.StatusBadRequest
		var reqErr *requestError
		if errors.As(err, &reqErr) {
			status = reqErr.status
		}
		if status >= http.StatusInternalServerError {
			s.log().Error("failed to resolve preview request", "error", err)
		}
		http.Error(w, err.Error(), status)
		return
	}

	// The slot is released by render once generation has actually stopped.
	select {
	case s.sem <- struct{}{}:
	case <-r.Context().Done():
		http.Error(w, "request cancelled", http.StatusRequestTimeout)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.GenerationTimeout)
	defer cancel()

	start := time.Now()
	data, err := s.render(ctx, req)

	if err != nil {
		s.totalFailed.Add(1)
		s.log().Error("failed to render grain preview", "iso", req.settings.ISO, "seed", req.seed, "error", err)
		status := http.StatusInternalServerError
		if errors.Is(err, context.DeadlineExceeded) {
			status = http.StatusGatewayTimeout
		}
		http.Error(w, fmt.Sprintf("failed to render grain: %v", err), status)
		return
	}
	s.totalRendered.Add(1)
	s.log().Info("grain preview rendered",
		"iso", req.settings.ISO, "seed", req.seed, "pass", req.pass,
		"width", req.width, "height", req.height, "ms", time.Since(start).Milliseconds())

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", s.cfg.CacheControl)
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	_, _ = w.Write(data)
}

func (s *GrainServer) parseRequest(r *http.Request) (previewRequest, error) {
	q := r.URL.Query()
	req := previewRequest{
		settings: camera.DefaultSettings(),
		pass:     "grain",
		seed:     1,
		width:    DefaultDimension,
		height:   DefaultDimension,
	}

	if name := q.Get("camera"); name != "" {
		if s.cfg.Cameras == nil {
			return req, badRequest(fmt.Errorf("camera %q: camera lookup is not enabled", name))
		}
		settings, err := s.cfg.Cameras.Get(r.Context(), name)
		switch {
		case errors.Is(err, camera.ErrNotFound):
			return req, &requestError{status: http.StatusNotFound, err: fmt.Errorf("camera %q: %w", name, err)}
		case err != nil:
			return req, &requestError{status: http.StatusInternalServerError, err: fmt.Errorf("camera %q: %w", name, err)}
		}
		req.settings = settings
	}
	if v := q.Get("iso"); v != "" {
		// Unknown values fall back to the default preset during generation.
		req.settings.ISO = v
	}
	if v := q.Get("seed"); v != "" {
		seed, err := grain.NormalizeSeed(v)
		if err != nil {
			return req, badRequest(err)
		}
		req.seed = seed
	}

	var err error
	if req.width, err = s.parseDimension(q.Get("width"), "width"); err != nil {
		return req, badRequest(err)
	}
	if req.height, err = s.parseDimension(q.Get("height"), "height"); err != nil {
		return req, badRequest(err)
	}

	if v := q.Get("pass"); v != "" {
		switch v {
		case "grain", "luma", "color":
			req.pass = v
		default:
			return req, badRequest(fmt.Errorf("unknown pass %q (valid: grain, luma, color)", v))
		}
	}
	return req, nil
}

func (s *GrainServer) parseDimension(v, name string) (int, error) {
	if v == "" {
		return DefaultDimension, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q", name, v)
	}
	// PNG cannot encode an empty image, so previews need at least one pixel.
	if n <= 0 {
		return 0, fmt.Errorf("%w: %s %d must be positive", grain.ErrInvalidDimension, name, n)
	}
	if n > s.cfg.MaxDimension {
		return 0, fmt.Errorf("%s %d exceeds maximum %d", name, n, s.cfg.MaxDimension)
	}
	return n, nil
}

// render runs generation off the request goroutine so the timeout can fire.
// It owns the semaphore slot acquired by the caller and frees it only when
// the generation goroutine returns, so timed-out work still counts against
// MaxConcurrentGenerations.
func (s *GrainServer) render(ctx context.Context, req previewRequest) ([]byte, error) {
	type result struct {
		data []byte
		err  error
	}
	ch := make(chan result, 1)

	s.activeRenders.Add(1)
	go func() {
		data, err := encodePreview(ctx, req)
		// Release before reporting so a finished request never shows as active.
		s.activeRenders.Add(-1)
		<-s.sem
		ch <- result{data: data, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		return res.data, res.err
	}
}

// encodePreview renders the requested pass as PNG. It checks ctx between
// stages so abandoned requests stop early.
func encodePreview(ctx context.Context, req previewRequest) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	field, err := grain.Generate(req.settings.ISO, req.seed, req.width, req.height)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var img image.Image
	switch req.pass {
	case "luma":
		img = field.LumaImage(1)
	case "color":
		img = field.ColorImage(1)
	default:
		canvas := image.NewNRGBA(image.Rect(0, 0, req.width, req.height))
		grey := color.NRGBA{R: 128, G: 128, B: 128, A: 255}
		for y := 0; y < req.height; y++ {
			for x := 0; x < req.width; x++ {
				canvas.SetNRGBA(x, y, grey)
			}
		}
		passes, err := composite.Apply(canvas, nil, field, composite.OptionsFromSettings(req.settings, req.seed))
		if err != nil {
			return nil, err
		}
		img = passes.GrainOnly
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *GrainServer) log() *slog.Logger {
	if s.logger != nil {
		return s.logger
	}
	return slog.Default()
}
