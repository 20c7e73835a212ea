package http

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type Middleware struct {
	Auth          echo.MiddlewareFunc
	XRay          echo.MiddlewareFunc
	RequestLogger echo.MiddlewareFunc
}

type Handlers struct {
	Pipeline *PipelineHandler
	Access   *AccessHandler
	Audit    *AuditHandler
	Graph    *GraphHandler
	Classify *ClassifyHandler
}

func NewRouter(h Handlers, m Middleware) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestID())
	if m.XRay != nil {
		e.Use(m.XRay)
	}
	if m.RequestLogger != nil {
		e.Use(m.RequestLogger)
	}
	if m.Auth != nil {
		e.Use(m.Auth)
	}

	e.POST("/query", h.Pipeline.Query)
	e.POST("/threat-model", h.Pipeline.ThreatModel)

	e.POST("/access/roles/assign", h.Access.AssignRole)
	e.POST("/access/roles/revoke", h.Access.RevokeRole)
	e.POST("/access/grants", h.Access.GrantResource)
	e.POST("/access/grants/revoke", h.Access.RevokeResource)
	e.POST("/authorize", h.Access.Authorize)

	e.GET("/audit", h.Audit.List)

	e.POST("/graph/nodes", h.Graph.AddNode)
	e.POST("/graph/edges", h.Graph.AddEdge)
	e.GET("/graph/nodes/:id/neighbors", h.Graph.Neighbors)
	e.GET("/graph/nodes/:id/mitigations", h.Graph.Mitigations)
	e.GET("/graph/nodes/:id/related", h.Graph.RelatedThreats)
	e.GET("/graph/paths", h.Graph.AttackPaths)
	e.POST("/graph/links/cve-technique", h.Graph.LinkCVE)
	e.POST("/graph/links/technique-mitigation", h.Graph.LinkMitigation)

	e.POST("/classify", h.Classify.Classify)

	return e
}
