package middleware

import (
	"sync"

	"github.com/ansrivas/fiberprometheus/v2"
	"github.com/gofiber/fiber/v2"
)

var (
	promMu        sync.Mutex
	promInstances = map[string]*fiberprometheus.FiberPrometheus{}
)

// InitMetrics returns the Prometheus HTTP instrumentation for service. The
// collectors live in the default registry, so repeated calls share one instance.
func InitMetrics(service string) *fiberprometheus.FiberPrometheus {
	promMu.Lock()
	defer promMu.Unlock()

	if prom, ok := promInstances[service]; ok {
		return prom
	}
	prom := fiberprometheus.New(service)
	prom.SetSkipPaths([]string{"/metrics", "/health/live", "/health/ready"})
	promInstances[service] = prom
	return prom
}

// MetricsMiddleware records request counts and latencies.
func MetricsMiddleware(prom *fiberprometheus.FiberPrometheus) fiber.Handler {
	return prom.Middleware
}
