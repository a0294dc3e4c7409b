package router

import (
	"context"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/jwalitptl/clinic-api/internal/handler/health"
	"github.com/jwalitptl/clinic-api/internal/middleware"
)

// Handler is an API resource mounted under /api.
type Handler interface {
	RegisterRoutes(r *gin.RouterGroup, auth *middleware.AuthMiddleware)
}

type Router struct {
	engine      *gin.Engine
	auth        *middleware.AuthMiddleware
	health      *health.Handler
	handlers    []Handler
	metrics     *routerMetrics
	rateLimiter *middleware.RateLimiter
	gatherer    prometheus.Gatherer
}

type routerMetrics struct {
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	errorTotal      *prometheus.CounterVec
}

type RouterConfig struct {
	Mode        string
	CORSConfig  middleware.CORSConfig
	MaxBodySize int64
	// RateLimit is nil when rate limiting is disabled.
	RateLimit        *middleware.RateLimiterConfig
	MetricsNamespace string
	// Registry receives the HTTP metrics and backs /metrics. Nil means the
	// default prometheus registry.
	Registry *prometheus.Registry
}

func NewRouter(auth *middleware.AuthMiddleware, healthH *health.Handler, config RouterConfig, handlers ...Handler) *Router {
	if config.Mode != "" {
		gin.SetMode(config.Mode)
	}
	if config.MaxBodySize <= 0 {
		config.MaxBodySize = middleware.DefaultMaxBodySize
	}

	var (
		registerer prometheus.Registerer = prometheus.DefaultRegisterer
		gatherer   prometheus.Gatherer   = prometheus.DefaultGatherer
	)
	if config.Registry != nil {
		registerer, gatherer = config.Registry, config.Registry
	}

	r := &Router{
		engine:   gin.New(),
		auth:     auth,
		health:   healthH,
		handlers: handlers,
		metrics:  initRouterMetrics(config.MetricsNamespace, registerer),
		gatherer: gatherer,
	}

	r.engine.Use(
		middleware.RequestID(),
		middleware.Logger(),
		r.metricsMiddleware(),
		middleware.Recovery(),
		middleware.ErrorLogger(),
		middleware.SecurityHeaders(),
		middleware.CORS(config.CORSConfig),
		middleware.SizeLimit(config.MaxBodySize),
	)

	if config.RateLimit != nil {
		r.rateLimiter = middleware.NewRateLimiter(*config.RateLimit)
		r.engine.Use(r.rateLimiter.RateLimit())
	}

	return r
}

func (r *Router) Setup() {
	r.health.RegisterRoutes(r.engine)
	r.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})))

	api := r.engine.Group("/api")
	for _, h := range r.handlers {
		h.RegisterRoutes(api, r.auth)
	}
}

func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// RunCleanup periodically evicts idle rate limiter clients until ctx is done.
func (r *Router) RunCleanup(ctx context.Context, interval time.Duration) {
	if r.rateLimiter == nil {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.rateLimiter.Cleanup()
		}
	}
}

func initRouterMetrics(namespace string, reg prometheus.Registerer) *routerMetrics {
	f := promauto.With(reg)
	return &routerMetrics{
		requestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path", "status"},
		),
		requestTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		errorTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "http",
				Name:      "errors_total",
				Help:      "Total number of HTTP errors",
			},
			[]string{"method", "path", "type"},
		),
	}
}

func (r *Router) metricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		// Route templates keep label cardinality bounded.
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		code := c.Writer.Status()
		status := strconv.Itoa(code)

		r.metrics.requestDuration.WithLabelValues(c.Request.Method, path, status).Observe(time.Since(start).Seconds())
		r.metrics.requestTotal.WithLabelValues(c.Request.Method, path, status).Inc()

		switch {
		case code >= 500:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "server").Inc()
		case code >= 400:
			r.metrics.errorTotal.WithLabelValues(c.Request.Method, path, "client").Inc()
		}
	}
}
