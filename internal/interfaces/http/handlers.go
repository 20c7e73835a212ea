package http

import (
	"errors"
	stdhttp "net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"threatgate/internal/application"
	"threatgate/internal/domain"
	"threatgate/internal/ports"
)

// handleError translates core errors into responses. Denials and injection
// rejections carry only generic messages; internal detail stays server-side.
func handleError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, domain.ErrPermissionDeny):
		return c.JSON(stdhttp.StatusForbidden, map[string]string{"error": "access denied"})
	case errors.Is(err, domain.ErrInjectionDetected):
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "request rejected"})
	case errors.Is(err, domain.ErrUnknownRole), errors.Is(err, domain.ErrInvalidInput):
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrNodeNotFound), errors.Is(err, domain.ErrNotFound):
		return c.JSON(stdhttp.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, domain.ErrUnavailable):
		return c.JSON(stdhttp.StatusServiceUnavailable, map[string]string{"error": err.Error()})
	default:
		return c.JSON(stdhttp.StatusInternalServerError, map[string]string{"error": "internal error"})
	}
}

func callerID(c echo.Context) string {
	if uid, ok := c.Get("user_id").(string); ok && uid != "" {
		return uid
	}
	return "anonymous"
}

type PipelineHandler struct {
	pipeline *application.RequestPipeline
}

func NewPipelineHandler(pipeline *application.RequestPipeline) *PipelineHandler {
	return &PipelineHandler{pipeline: pipeline}
}

func (h *PipelineHandler) Query(c echo.Context) error {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.Bind(&req); err != nil || req.Query == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	result, err := h.pipeline.ProcessQuery(c.Request().Context(), callerID(c), req.Query)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, result)
}

func (h *PipelineHandler) ThreatModel(c echo.Context) error {
	var req struct {
		Query string `json:"query"`
	}
	if err := c.Bind(&req); err != nil || req.Query == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	result, err := h.pipeline.ProcessThreatModel(c.Request().Context(), callerID(c), req.Query)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, result)
}

// AccessHandler exposes role and grant administration plus a decision
// endpoint. Mutating operations require the caller to hold admin.
type AccessHandler struct {
	gate  *application.PermissionGate
	audit *application.AuditTrail
}

func NewAccessHandler(gate *application.PermissionGate, audit *application.AuditTrail) *AccessHandler {
	return &AccessHandler{gate: gate, audit: audit}
}

// requireAdmin gates the administration endpoints. Like the pipeline, this
// surface fails closed: a denial that cannot be audited is a server error,
// not a silent gap in the trail.
func (h *AccessHandler) requireAdmin(c echo.Context) error {
	caller := callerID(c)
	if !h.gate.HasPermission(caller, domain.PermissionAdmin) {
		if err := h.audit.LogAccessDenied(caller, "access_admin", domain.PermissionAdmin, "missing permission"); err != nil {
			return err
		}
		return domain.ErrPermissionDeny
	}
	return nil
}

func (h *AccessHandler) AssignRole(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return handleError(c, err)
	}
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" || req.Role == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := h.gate.AssignRole(req.UserID, req.Role); err != nil {
		return handleError(c, err)
	}
	if err := h.audit.LogEvent(domain.AuditEventConfigChange, callerID(c), map[string]any{
		"action": "assign_role", "target_user": req.UserID, "role": req.Role,
	}, "", true); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusCreated)
}

func (h *AccessHandler) RevokeRole(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return handleError(c, err)
	}
	var req struct {
		UserID string `json:"user_id"`
		Role   string `json:"role"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" || req.Role == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	revoked := h.gate.RevokeRole(req.UserID, req.Role)
	if err := h.audit.LogEvent(domain.AuditEventConfigChange, callerID(c), map[string]any{
		"action": "revoke_role", "target_user": req.UserID, "role": req.Role, "revoked": revoked,
	}, "", true); err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, map[string]bool{"revoked": revoked})
}

func (h *AccessHandler) GrantResource(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return handleError(c, err)
	}
	var req struct {
		UserID     string `json:"user_id"`
		ResourceID string `json:"resource_id"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" || req.ResourceID == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	h.gate.GrantResourceAccess(req.UserID, req.ResourceID)
	if err := h.audit.LogEvent(domain.AuditEventConfigChange, callerID(c), map[string]any{
		"action": "grant_resource", "target_user": req.UserID,
	}, req.ResourceID, true); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusCreated)
}

func (h *AccessHandler) RevokeResource(c echo.Context) error {
	if err := h.requireAdmin(c); err != nil {
		return handleError(c, err)
	}
	var req struct {
		UserID     string `json:"user_id"`
		ResourceID string `json:"resource_id"`
	}
	if err := c.Bind(&req); err != nil || req.UserID == "" || req.ResourceID == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	h.gate.RevokeResourceAccess(req.UserID, req.ResourceID)
	if err := h.audit.LogEvent(domain.AuditEventConfigChange, callerID(c), map[string]any{
		"action": "revoke_resource", "target_user": req.UserID,
	}, req.ResourceID, true); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusOK)
}

func (h *AccessHandler) Authorize(c echo.Context) error {
	var req struct {
		UserID     string `json:"user_id"`
		Permission string `json:"permission"`
		ResourceID string `json:"resource_id"`
	}
	if err := c.Bind(&req); err != nil || req.Permission == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if req.UserID == "" {
		req.UserID = callerID(c)
	}
	permission := domain.Permission(req.Permission)
	var allowed bool
	if req.ResourceID != "" {
		allowed = h.gate.CheckAccess(req.UserID, req.ResourceID, permission)
	} else {
		allowed = h.gate.HasPermission(req.UserID, permission)
	}
	return c.JSON(stdhttp.StatusOK, map[string]bool{"allowed": allowed})
}

// AuditHandler serves audit queries to admins.
type AuditHandler struct {
	gate  *application.PermissionGate
	audit *application.AuditTrail
}

func NewAuditHandler(gate *application.PermissionGate, audit *application.AuditTrail) *AuditHandler {
	return &AuditHandler{gate: gate, audit: audit}
}

func (h *AuditHandler) List(c echo.Context) error {
	caller := callerID(c)
	if !h.gate.HasPermission(caller, domain.PermissionAdmin) {
		if err := h.audit.LogAccessDenied(caller, "audit_log", domain.PermissionAdmin, "missing permission"); err != nil {
			return handleError(c, err)
		}
		return handleError(c, domain.ErrPermissionDeny)
	}
	filter := application.EventFilter{
		UserID:    c.QueryParam("user_id"),
		EventType: domain.AuditEventType(c.QueryParam("event_type")),
	}
	if v := c.QueryParam("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid limit"})
		}
		filter.Limit = limit
	}
	if v := c.QueryParam("start_date"); v != "" {
		start, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid start_date"})
		}
		filter.StartDate = start
	}
	if v := c.QueryParam("end_date"); v != "" {
		end, err := time.Parse("2006-01-02", v)
		if err != nil {
			return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid end_date"})
		}
		filter.EndDate = end
	}
	events, err := h.audit.GetEvents(filter)
	if err != nil {
		return handleError(c, err)
	}
	return c.JSON(stdhttp.StatusOK, map[string]any{"events": events, "count": len(events)})
}

// GraphHandler exposes threat-graph reads and writes. Writes go through the
// in-memory graph first and then, when a snapshot repository is configured,
// are persisted for startup hydration.
type GraphHandler struct {
	graph    *application.ThreatGraph
	snapshot ports.GraphSnapshotRepository
}

func NewGraphHandler(graph *application.ThreatGraph, snapshot ports.GraphSnapshotRepository) *GraphHandler {
	return &GraphHandler{graph: graph, snapshot: snapshot}
}

func (h *GraphHandler) AddNode(c echo.Context) error {
	var node domain.ThreatNode
	if err := c.Bind(&node); err != nil || node.ID == "" || node.Type == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	h.graph.AddNode(node)
	if h.snapshot != nil {
		if err := h.snapshot.SaveNode(c.Request().Context(), node); err != nil {
			return handleError(c, err)
		}
	}
	return c.NoContent(stdhttp.StatusCreated)
}

func (h *GraphHandler) AddEdge(c echo.Context) error {
	var edge domain.ThreatEdge
	if err := c.Bind(&edge); err != nil || edge.ID == "" || edge.Type == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := h.graph.AddEdge(edge); err != nil {
		return handleError(c, err)
	}
	if h.snapshot != nil {
		if err := h.snapshot.SaveEdge(c.Request().Context(), edge); err != nil {
			return handleError(c, err)
		}
	}
	return c.NoContent(stdhttp.StatusCreated)
}

func (h *GraphHandler) Neighbors(c echo.Context) error {
	nodeID := c.Param("id")
	if _, ok := h.graph.GetNode(nodeID); !ok {
		return handleError(c, domain.ErrNodeNotFound)
	}
	neighbors := h.graph.GetNeighbors(nodeID, domain.EdgeType(c.QueryParam("edge_type")))
	return c.JSON(stdhttp.StatusOK, map[string]any{"neighbors": neighbors})
}

func (h *GraphHandler) AttackPaths(c echo.Context) error {
	source := c.QueryParam("source")
	target := c.QueryParam("target")
	if source == "" || target == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "source and target are required"})
	}
	maxDepth := 5
	if v := c.QueryParam("max_depth"); v != "" {
		d, err := strconv.Atoi(v)
		if err != nil || d < 1 {
			return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid max_depth"})
		}
		maxDepth = d
	}
	var edgeTypes []domain.EdgeType
	for _, v := range c.QueryParams()["edge_type"] {
		edgeTypes = append(edgeTypes, domain.EdgeType(v))
	}
	paths := h.graph.FindAttackPaths(source, target, maxDepth, edgeTypes)
	return c.JSON(stdhttp.StatusOK, map[string]any{"paths": paths, "count": len(paths)})
}

func (h *GraphHandler) Mitigations(c echo.Context) error {
	nodeID := c.Param("id")
	if _, ok := h.graph.GetNode(nodeID); !ok {
		return handleError(c, domain.ErrNodeNotFound)
	}
	return c.JSON(stdhttp.StatusOK, map[string]any{"mitigations": h.graph.GetMitigationsForThreat(nodeID)})
}

func (h *GraphHandler) RelatedThreats(c echo.Context) error {
	nodeID := c.Param("id")
	if _, ok := h.graph.GetNode(nodeID); !ok {
		return handleError(c, domain.ErrNodeNotFound)
	}
	maxHops := 2
	if v := c.QueryParam("max_hops"); v != "" {
		hops, err := strconv.Atoi(v)
		if err != nil || hops < 1 {
			return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid max_hops"})
		}
		maxHops = hops
	}
	return c.JSON(stdhttp.StatusOK, map[string]any{"threats": h.graph.GetRelatedThreats(nodeID, maxHops)})
}

func (h *GraphHandler) LinkCVE(c echo.Context) error {
	var req struct {
		CVEID       string  `json:"cve_id"`
		TechniqueID string  `json:"technique_id"`
		Weight      float64 `json:"weight"`
	}
	if err := c.Bind(&req); err != nil || req.CVEID == "" || req.TechniqueID == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := h.graph.LinkCVEToTechnique(req.CVEID, req.TechniqueID, req.Weight); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusCreated)
}

func (h *GraphHandler) LinkMitigation(c echo.Context) error {
	var req struct {
		TechniqueID string  `json:"technique_id"`
		ControlID   string  `json:"control_id"`
		Weight      float64 `json:"weight"`
	}
	if err := c.Bind(&req); err != nil || req.TechniqueID == "" || req.ControlID == "" {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	if err := h.graph.LinkTechniqueToMitigation(req.TechniqueID, req.ControlID, req.Weight); err != nil {
		return handleError(c, err)
	}
	return c.NoContent(stdhttp.StatusCreated)
}

type ClassifyHandler struct {
	classifier *application.FrameworkClassifier
}

func NewClassifyHandler(classifier *application.FrameworkClassifier) *ClassifyHandler {
	return &ClassifyHandler{classifier: classifier}
}

func (h *ClassifyHandler) Classify(c echo.Context) error {
	var req struct {
		Name        string `json:"name"`
		Description string `json:"description"`
	}
	if err := c.Bind(&req); err != nil || (req.Name == "" && req.Description == "") {
		return c.JSON(stdhttp.StatusBadRequest, map[string]string{"error": "invalid payload"})
	}
	mapping := h.classifier.MapThreat(domain.ThreatNode{Name: req.Name, Description: req.Description})
	return c.JSON(stdhttp.StatusOK, mapping)
}
