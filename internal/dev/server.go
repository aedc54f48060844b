package dev

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/vpack/internal/build"
	"github.com/vango-dev/vpack/internal/config"
	"github.com/vango-dev/vpack/internal/emit"
	"github.com/vango-dev/vpack/internal/errors"
	"github.com/vango-dev/vpack/internal/module"
	"github.com/vango-dev/vpack/internal/plugin"
	"github.com/vango-dev/vpack/pkg/assets"
)

// Reserved dev server routes.
const (
	WebSocketPath = "/_vpack/ws"
	StatusPath    = "/_vpack/status"
	MetricsPath   = "/metrics"
)

// Builder runs compilations.
type Builder interface {
	Build(ctx context.Context, changed []string) (*build.Compilation, error)
}

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration.
	Config *config.Config

	// Builder produces compilations. It should keep assets in memory.
	Builder Builder

	// Logger receives server records. Default: info to stderr.
	Logger *slog.Logger

	// Registry is exposed on /metrics. Default: a new registry.
	Registry *prometheus.Registry

	// Tracer traces requests. Default: otel.Tracer("vpack").
	Tracer trace.Tracer

	// OnBuildStart is called when a build starts.
	OnBuildStart func()

	// OnBuildComplete is called when a build completes or fails. It is not
	// called for superseded builds.
	OnBuildComplete func(c *build.Compilation)
}

// Server is the development server.
type Server struct {
	config       *config.Config
	options      ServerOptions
	logger       *slog.Logger
	watcher      *Watcher
	reloadServer *ReloadServer
	scheduler    *scheduler
	metrics      *httpMetrics
	router       chi.Router
	state        stateMachine
	current      atomic.Pointer[build.Compilation]
	publicPath   string
	overlay      bool

	errMu  sync.RWMutex
	errors []string

	ctx    context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	running    bool
	httpServer *http.Server
	addr       string
}

// NewServer creates a new development server.
func NewServer(options ServerOptions) *Server {
	cfg := options.Config
	if options.Logger == nil {
		options.Logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	if options.Registry == nil {
		options.Registry = prometheus.NewRegistry()
	}

	publicPath := cfg.Output.PublicPath
	if u, err := url.Parse(publicPath); err == nil {
		publicPath = u.Path
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		config:     cfg,
		options:    options,
		logger:     options.Logger,
		metrics:    newHTTPMetrics(options.Registry),
		publicPath: publicPath,
		overlay:    cfg.Overlay(),
		ctx:        ctx,
		cancel:     cancel,
	}
	s.reloadServer = NewReloadServer(s.hello)
	s.scheduler = newScheduler(ctx, s.runBuild)
	s.watcher = NewWatcher(WatcherConfig{
		Paths:    CollectWatchPaths(cfg),
		Ignore:   cfg.Dev.Ignore,
		SkipDirs: []string{cfg.OutputPath()},
		Interval: cfg.PollInterval(),
	})
	s.watcher.OnChange(s.handleChanges)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(s.metrics.instrument(options.Tracer))
	r.Get(WebSocketPath, s.reloadServer.HandleWebSocket)
	r.Get(StatusPath, s.handleStatus)
	r.Method(http.MethodGet, MetricsPath, promhttp.HandlerFor(options.Registry, promhttp.HandlerOpts{}))
	r.Get("/*", s.handleAsset)
	r.Head("/*", s.handleAsset)
	s.router = r

	return s
}

// Handler returns the HTTP handler of the server.
func (s *Server) Handler() http.Handler {
	return s.router
}

// State returns the current build state.
func (s *Server) State() State {
	return s.state.Get()
}

// Current returns the compilation being served, or nil before the first
// successful build.
func (s *Server) Current() *build.Compilation {
	return s.current.Load()
}

// Errors returns the errors of the last failed build. It is empty once a
// build succeeds.
func (s *Server) Errors() []string {
	s.errMu.RLock()
	defer s.errMu.RUnlock()
	return append([]string(nil), s.errors...)
}

// Addr returns the listening address once Start is serving.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// Start builds once, starts the watcher and serves until ctx is done.
// Build failures never stop the server.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	s.mu.Unlock()

	stop := context.AfterFunc(ctx, s.cancel)
	defer stop()

	// Initial build
	s.Rebuild(nil)
	s.scheduler.wait()

	go s.watcher.Start(s.ctx)

	ln, err := net.Listen("tcp", s.config.DevAddress())
	if err != nil {
		s.Stop()
		return errors.New("E400").
			WithDetail(fmt.Sprintf("Could not listen on %s: %v", s.config.DevAddress(), err)).
			WithSuggestion("Choose another port with --port or dev.port").
			Wrap(err)
	}

	s.mu.Lock()
	s.addr = ln.Addr().String()
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	srv := s.httpServer
	s.mu.Unlock()

	s.logger.Info("dev server running", "url", "http://"+ln.Addr().String())

	errCh := make(chan error, 1)
	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			errCh <- err
			return
		}
		errCh <- nil
	}()

	select {
	case <-s.ctx.Done():
		s.Stop()
		return nil
	case err := <-errCh:
		s.Stop()
		if err != nil {
			return errors.New("E400").Wrap(err)
		}
		return nil
	}
}

// Stop stops the development server.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.running = false

	s.cancel()
	s.watcher.Stop()
	s.reloadServer.Close()

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(ctx)
	}
}

// Rebuild schedules a build for the changed paths. It returns at once.
func (s *Server) Rebuild(changed []string) {
	s.scheduler.schedule(changed)
}

// handleChanges is the watcher callback.
func (s *Server) handleChanges(changes []Change) {
	for _, c := range changes {
		s.logger.Info("file changed", "path", c.Path, "op", c.Op.String())
	}
	if s.outsideGraph(changes) {
		s.logger.Debug("changes outside the module graph, skipping rebuild")
		return
	}

	paths := make([]string, len(changes))
	for i, c := range changes {
		paths[i] = c.Path
	}
	s.Rebuild(paths)
}

// outsideGraph reports whether changes can be ignored: they only modify
// files that the last good graph does not contain. Creates and removes can
// affect resolution, and a failing build may depend on any file, so
// neither is skipped.
func (s *Server) outsideGraph(changes []Change) bool {
	cur := s.current.Load()
	if cur == nil || s.state.Get() == StateServingStaleWithErrors {
		return false
	}
	for _, c := range changes {
		if c.Op != OpWrite || cur.Includes(c.Path) {
			return false
		}
	}
	return true
}

// runBuild runs one scheduled build and publishes its result.
func (s *Server) runBuild(ctx context.Context, changed []string) {
	prev := s.current.Load()
	if err := s.state.begin(prev != nil); err != nil {
		s.logger.Error("dev state", "error", err)
	}
	if s.options.OnBuildStart != nil {
		s.options.OnBuildStart()
	}
	if prev != nil && len(changed) > 0 {
		s.logger.Info("rebuilding",
			"changed", len(changed),
			"affected", len(affected(prev.Graph, changed)))
	} else {
		s.logger.Info("building")
	}

	comp, err := s.options.Builder.Build(ctx, changed)
	if ctx.Err() != nil {
		s.logger.Debug("build superseded")
		return
	}
	if s.options.OnBuildComplete != nil {
		s.options.OnBuildComplete(comp)
	}

	if err != nil {
		msgs := messages(comp, err)
		s.setErrors(msgs)
		if err := s.state.finish(false); err != nil {
			s.logger.Error("dev state", "error", err)
		}
		for _, m := range msgs {
			s.logger.Error("build error", "error", m)
		}
		s.reloadServer.NotifyErrors(msgs)
		s.metrics.reloadsSent.Inc()
		return
	}

	s.current.Store(comp)
	s.setErrors(nil)
	if err := s.state.finish(true); err != nil {
		s.logger.Error("dev state", "error", err)
	}
	s.logger.Info("built",
		"modules", comp.Stats.Modules,
		"transformed", comp.Stats.Transformed,
		"duration", comp.Duration.Round(time.Millisecond))
	s.reloadServer.NotifySuccess(comp.Hash)
	s.metrics.reloadsSent.Inc()
}

func (s *Server) setErrors(msgs []string) {
	s.errMu.Lock()
	defer s.errMu.Unlock()
	s.errors = msgs
}

// hello is the first message a new browser connection receives.
func (s *Server) hello() *Message {
	if errs := s.Errors(); len(errs) > 0 {
		return &Message{Type: MessageBuildError, Errors: errs}
	}
	if cur := s.current.Load(); cur != nil {
		return &Message{Type: MessageBuildSuccess, Hash: cur.Hash}
	}
	return nil
}

// affected returns the modules that must be rebuilt when paths change: the
// modules loaded from them and everything that depends on those.
func affected(g *module.Graph, paths []string) []module.Identity {
	if g == nil {
		return nil
	}
	var ids []module.Identity
	for _, p := range paths {
		for _, r := range g.ByPath(p) {
			ids = append(ids, r.ID)
		}
	}
	return g.Dependents(ids...)
}

// messages renders the errors of a failed compilation for browsers.
func messages(c *build.Compilation, err error) []string {
	errs := []error{err}
	if c != nil && len(c.Errors) > 0 {
		errs = c.Errors
	}
	out := make([]string, 0, len(errs))
	for _, e := range errs {
		for _, d := range errors.Collect(e) {
			out = append(out, d.FormatCompact())
		}
	}
	return out
}

type compilationStatus struct {
	ID          string   `json:"id"`
	Hash        string   `json:"hash"`
	Mode        string   `json:"mode"`
	Duration    string   `json:"duration"`
	Modules     int      `json:"modules"`
	Transformed int      `json:"transformed"`
	Cached      int      `json:"cached"`
	Assets      []string `json:"assets"`
}

type statusResponse struct {
	State       State              `json:"state"`
	Compilation *compilationStatus `json:"compilation,omitempty"`
	Errors      []string           `json:"errors"`
	Clients     int                `json:"clients"`
}

// handleStatus reports the state, the served compilation and the errors.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{
		State:   s.State(),
		Errors:  s.Errors(),
		Clients: s.reloadServer.ClientCount(),
	}
	if resp.Errors == nil {
		resp.Errors = []string{}
	}
	if cur := s.current.Load(); cur != nil {
		cs := &compilationStatus{
			ID:          cur.ID,
			Hash:        cur.Hash,
			Mode:        cur.Mode,
			Duration:    cur.Duration.String(),
			Modules:     cur.Stats.Modules,
			Transformed: cur.Stats.Transformed,
			Cached:      cur.Stats.Cached,
		}
		for _, a := range cur.Assets {
			cs.Assets = append(cs.Assets, a.Path)
		}
		resp.Compilation = cs
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	json.NewEncoder(w).Encode(resp)
}

// handleAsset serves an exact asset match from the current compilation,
// then the index document for history fallback, then 404.
func (s *Server) handleAsset(w http.ResponseWriter, r *http.Request) {
	cur := s.current.Load()
	if cur == nil {
		s.serveUnavailable(w)
		return
	}

	p, ok := s.assetPath(r.URL.Path)
	if ok && p != "" {
		if a, found := cur.Asset(p); found {
			s.serveAsset(w, r, cur, a)
			return
		}
	}

	if p == "" || (s.config.HistoryFallback() && fallbackCandidate(p)) {
		if p != "" {
			s.metrics.fallbacks.Inc()
		}
		s.serveAsset(w, r, cur, s.index(cur))
		return
	}

	http.NotFound(w, r)
}

// assetPath maps a URL path to an asset path. ok is false when the URL is
// outside the public path.
func (s *Server) assetPath(urlPath string) (string, bool) {
	p := path.Clean("/" + urlPath)
	prefix := strings.TrimSuffix(s.publicPath, "/")
	if prefix != "" {
		if p != prefix && !strings.HasPrefix(p, prefix+"/") {
			return strings.TrimPrefix(p, "/"), false
		}
		p = strings.TrimPrefix(p, prefix)
	}
	return strings.TrimPrefix(p, "/"), true
}

// fallbackCandidate reports whether a missing path looks like a client-side
// route rather than a missing file.
func fallbackCandidate(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case "", ".html", ".htm":
		return true
	}
	return false
}

// index returns the configured index document, or a generated page that
// loads every chunk when no plugin emitted one.
func (s *Server) index(cur *build.Compilation) emit.Asset {
	if a, ok := cur.Asset(s.config.Dev.Index); ok {
		return a
	}

	urls := assets.NewResolver(nil, s.config.Output.PublicPath)
	var tags strings.Builder
	for _, a := range cur.Assets {
		if a.Kind == emit.KindCode {
			fmt.Fprintf(&tags, "<script src=\"%s\"></script>\n", html.EscapeString(urls.URL(a.Path)))
		}
	}
	return emit.Asset{
		Path:    s.config.Dev.Index,
		Content: []byte(plugin.InjectBeforeBodyEnd(generatedIndex, tags.String())),
		Kind:    emit.KindAux,
	}
}

// serveAsset writes a, injecting the live reload client into HTML.
func (s *Server) serveAsset(w http.ResponseWriter, r *http.Request, cur *build.Compilation, a emit.Asset) {
	content := a.Content
	contentType := mime.TypeByExtension(path.Ext(a.Path))
	if a.IsHTML() {
		content = []byte(plugin.InjectBeforeBodyEnd(string(content), ClientScript(cur.Hash, s.overlay)))
		contentType = "text/html; charset=utf-8"
	}
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")
	http.ServeContent(w, r, a.Path, cur.Started, bytes.NewReader(content))
}

// serveUnavailable answers requests made before the first good build. The
// page reloads itself once a build succeeds and shows the overlay meanwhile.
func (s *Server) serveUnavailable(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusServiceUnavailable)
	fmt.Fprint(w, plugin.InjectBeforeBodyEnd(unavailablePage, ClientScript("", s.overlay)))
}

const generatedIndex = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>vpack</title>
</head>
<body>
</body>
</html>
`

const unavailablePage = `<!DOCTYPE html>
<html>
<head><title>vpack dev server</title></head>
<body style="font-family: system-ui; padding: 40px; background: #1a1a1a; color: #fff;">
<h1>Waiting for a successful build</h1>
<p style="color: #888;">The page will automatically reload when the build succeeds. Check your terminal for errors.</p>
</body>
</html>
`
