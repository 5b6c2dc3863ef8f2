package router

import (
	"github.com/gin-gonic/gin"
)

// Routes is implemented by handlers that mount endpoints under the API prefix
type Routes interface {
	RegisterRoutes(rg *gin.RouterGroup)
}

// Router mounts handler routes under /api/<version> behind shared middleware
type Router struct {
	engine  *gin.Engine
	version string
	guards  []gin.HandlerFunc
	routes  []Routes
}

// RouterOption configures a Router
type RouterOption func(*Router)

// WithAPIVersion replaces the default "v1" path segment
func WithAPIVersion(version string) RouterOption {
	return func(r *Router) { r.version = version }
}

// WithGroupMiddleware runs guards before every API handler; /health is outside the group
func WithGroupMiddleware(guards ...gin.HandlerFunc) RouterOption {
	return func(r *Router) { r.guards = append(r.guards, guards...) }
}

// NewRouter creates a Router on engine
func NewRouter(engine *gin.Engine, opts ...RouterOption) *Router {
	r := &Router{engine: engine, version: "v1"}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register queues handlers for Setup
func (r *Router) Register(routes ...Routes) *Router {
	r.routes = append(r.routes, routes...)
	return r
}

// Setup mounts the queued handlers
func (r *Router) Setup() {
	api := r.engine.Group("/api/"+r.version, r.guards...)
	for _, routes := range r.routes {
		routes.RegisterRoutes(api)
	}
}
