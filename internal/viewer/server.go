// Package viewer exposes a running simulation to a renderer over HTTP: frame
// snapshots, a websocket frame stream, pointer picking and runtime controls.
package viewer

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/signalsfoundry/globe-simulator/core"
	"github.com/signalsfoundry/globe-simulator/internal/logging"
	"github.com/signalsfoundry/globe-simulator/internal/observability"
)

const msgpackContentType = "application/msgpack"

// Clock is the part of the time controller the HTTP surface drives.
type Clock interface {
	Now() float64
	Acceleration() float64
	SetAcceleration(factor float64) error
}

// Options configure a Server.
type Options struct {
	CORSOrigins []string
	PickRate    float64
	PickBurst   int
	// FrameFormat is used when the request names no format: "json" or
	// "msgpack".
	FrameFormat string
}

// Server serves one simulation.
type Server struct {
	sim     *core.Simulation
	clock   Clock
	log     logging.Logger
	metrics *observability.SimCollector
	tracer  trace.Tracer
	limiter *rate.Limiter
	opts    Options

	hub      *streamHub
	upgrader websocket.Upgrader
	zenc     *zstd.Encoder
}

// NewServer wires handlers for sim. metrics may be nil, in which case no
// /metrics route is mounted.
func NewServer(sim *core.Simulation, clock Clock, log logging.Logger, metrics *observability.SimCollector, opts Options) *Server {
	if log == nil {
		log = logging.Noop()
	}
	if opts.PickRate <= 0 {
		opts.PickRate = float64(rate.Inf)
	}
	if opts.PickBurst < 1 {
		opts.PickBurst = 1
	}
	if opts.FrameFormat == "" {
		opts.FrameFormat = "json"
	}
	s := &Server{
		sim:     sim,
		clock:   clock,
		log:     log,
		metrics: metrics,
		tracer:  observability.Tracer("viewer"),
		limiter: rate.NewLimiter(rate.Limit(opts.PickRate), opts.PickBurst),
		opts:    opts,
		hub:     newStreamHub(),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.checkOrigin}

	// EncodeAll is safe for concurrent use, so one encoder serves every request.
	zenc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedFastest), zstd.WithEncoderConcurrency(1))
	if err != nil {
		log.Warn(context.Background(), "zstd frame encoding disabled", logging.Err(err))
	} else {
		s.zenc = zenc
	}
	return s
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)
	if s.metrics != nil {
		r.Use(s.metrics.Middleware)
	}
	origins := s.opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	r.Route("/v1", func(r chi.Router) {
		r.Get("/frame", s.handleFrame)
		r.Get("/stream", s.handleStream)
		r.Post("/pick", s.handlePick)
		r.Get("/acceleration", s.handleGetAcceleration)
		r.Put("/acceleration", s.handleSetAcceleration)
		r.Get("/visibility", s.handleGetVisibility)
		r.Put("/visibility", s.handleSetVisibility)
		r.Get("/airports", s.handleAirports)
		r.Get("/flights/{index}", s.handleFlight)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if id := r.Header.Get("X-Request-Id"); id != "" {
			ctx = logging.ContextWithRequestID(ctx, id)
		}
		ctx, id := logging.EnsureRequestID(ctx)
		ctx = logging.ContextWithLogger(ctx, s.log.With(logging.String("route", r.URL.Path)))
		w.Header().Set("X-Request-Id", id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) logger(ctx context.Context) logging.Logger {
	if l := logging.LoggerFromContext(ctx); l != nil {
		return l
	}
	return s.log
}

type healthResponse struct {
	Status  string  `json:"status"`
	Flights int     `json:"flights"`
	SimTime float64 `json:"sim_time"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:  "ok",
		Flights: s.sim.Len(),
		SimTime: s.sim.SimTime(),
	})
}

func (s *Server) handleFrame(w http.ResponseWriter, r *http.Request) {
	ctx, span := s.tracer.Start(r.Context(), "viewer.frame")
	defer span.End()

	q := r.URL.Query()
	full, _ := strconv.ParseBool(q.Get("full"))
	var frame core.Frame
	if raw := q.Get("since"); raw != "" && !full {
		since, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "since must be a frame generation")
			return
		}
		frame = s.sim.FrameSince(since)
	} else {
		frame = s.sim.Frame(full)
	}
	span.SetAttributes(
		attribute.Bool("frame.full", full),
		attribute.Int64("frame.generation", int64(frame.Generation)),
		attribute.Int("frame.lines", len(frame.Lines)),
	)

	contentType := "application/json"
	marshal := json.Marshal
	if s.wantsMsgpack(r) {
		contentType = msgpackContentType
		marshal = msgpack.Marshal
	}
	body, err := marshal(&frame)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "encode frame")
		s.logger(ctx).Error(ctx, "frame encode failed", logging.Err(err))
		writeError(w, http.StatusInternalServerError, "frame encode failed")
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Vary", "Accept, Accept-Encoding")
	if s.zenc != nil && acceptsZstd(r) {
		body = s.zenc.EncodeAll(body, make([]byte, 0, len(body)/4))
		w.Header().Set("Content-Encoding", "zstd")
	}
	span.SetAttributes(attribute.Int("frame.bytes", len(body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func acceptsZstd(r *http.Request) bool {
	for _, enc := range strings.Split(r.Header.Get("Accept-Encoding"), ",") {
		name, _, _ := strings.Cut(strings.TrimSpace(enc), ";")
		if strings.EqualFold(name, "zstd") {
			return true
		}
	}
	return false
}

func (s *Server) wantsMsgpack(r *http.Request) bool {
	switch strings.ToLower(r.URL.Query().Get("format")) {
	case "msgpack":
		return true
	case "json":
		return false
	}
	if strings.Contains(r.Header.Get("Accept"), msgpackContentType) {
		return true
	}
	return s.opts.FrameFormat == "msgpack"
}

// PickRequest is a world-space ray. Direction need not be normalized.
type PickRequest struct {
	Origin    core.Vec3 `json:"origin"`
	Direction core.Vec3 `json:"direction"`
}

func (s *Server) handlePick(w http.ResponseWriter, r *http.Request) {
	if !s.limiter.Allow() {
		writeError(w, http.StatusTooManyRequests, "too many pick requests")
		return
	}

	ctx, span := s.tracer.Start(r.Context(), "viewer.pick")
	defer span.End()

	var req PickRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid pick request: "+err.Error())
		return
	}
	if req.Direction.Norm() == 0 {
		writeError(w, http.StatusBadRequest, "pick direction must be non-zero")
		return
	}

	res, ok := s.sim.Pick(ctx, core.NewRay(req.Origin, req.Direction))
	span.SetAttributes(attribute.Bool("pick.hit", ok))
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	span.SetAttributes(
		attribute.String("pick.layer", string(res.Layer)),
		attribute.Int("pick.index", res.TrajectoryIndex),
	)
	writeJSON(w, http.StatusOK, res)
}

type accelerationBody struct {
	Factor  float64 `json:"factor"`
	SimTime float64 `json:"sim_time,omitempty"`
}

func (s *Server) handleGetAcceleration(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, accelerationBody{Factor: s.clock.Acceleration(), SimTime: s.clock.Now()})
}

func (s *Server) handleSetAcceleration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var body accelerationBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid acceleration body: "+err.Error())
		return
	}
	if err := s.clock.SetAcceleration(body.Factor); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.logger(ctx).Info(ctx, "acceleration changed", logging.Float64("factor", body.Factor))
	writeJSON(w, http.StatusOK, accelerationBody{Factor: s.clock.Acceleration(), SimTime: s.clock.Now()})
}

// visibilityPatch updates only the toggles that are present.
type visibilityPatch struct {
	Markers       *bool `json:"markers"`
	Airports      *bool `json:"airports"`
	Paths         *bool `json:"paths"`
	CompletePaths *bool `json:"complete_paths"`
}

func (s *Server) handleGetVisibility(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Visibility())
}

func (s *Server) handleSetVisibility(w http.ResponseWriter, r *http.Request) {
	var patch visibilityPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeError(w, http.StatusBadRequest, "invalid visibility body: "+err.Error())
		return
	}
	if patch.Markers != nil {
		s.sim.SetMarkersVisible(*patch.Markers)
	}
	if patch.Airports != nil {
		s.sim.SetAirportsVisible(*patch.Airports)
	}
	if patch.Paths != nil {
		s.sim.SetPathsVisible(*patch.Paths)
	}
	if patch.CompletePaths != nil {
		s.sim.SetCompletePathsVisible(*patch.CompletePaths)
	}
	writeJSON(w, http.StatusOK, s.sim.Visibility())
}

func (s *Server) handleAirports(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Airports())
}

func (s *Server) handleFlight(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "flight index must be an integer")
		return
	}
	detail, ok := s.sim.FlightDetail(idx)
	if !ok {
		writeError(w, http.StatusNotFound, "no flight at index "+strconv.Itoa(idx))
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// IsClosed reports whether err only signals a graceful shutdown.
func IsClosed(err error) bool { return err == nil || errors.Is(err, http.ErrServerClosed) }
