// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package curator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/Curator/services/curator/graph"
	"github.com/AleutianAI/Curator/services/curator/license"
	"github.com/AleutianAI/Curator/services/curator/telemetry"
)

// ServiceVersion is the curator service version.
const ServiceVersion = "0.1.0"

// Handlers contains the HTTP handlers for the curator.
type Handlers struct {
	svc *Service
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	return telemetry.LoggerWithTrace(c.Request.Context(), h.svc.logger).With(
		slog.String("request_id", getOrCreateRequestID(c)),
		slog.String("handler", handler),
	)
}

// parseID reads the :id path parameter. It writes a 400 and returns false
// when the id is not a positive integer.
func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "id must be a positive integer",
			Code:  "INVALID_ID",
		})
		return 0, false
	}
	return id, true
}

// writeError maps service errors to HTTP responses.
func writeError(c *gin.Context, logger *slog.Logger, err error) {
	status, code := http.StatusInternalServerError, "INTERNAL"
	switch {
	case errors.Is(err, ErrObjectNotFound):
		status, code = http.StatusNotFound, "OBJECT_NOT_FOUND"
	case errors.Is(err, license.ErrLicenseNotFound):
		status, code = http.StatusNotFound, "LICENSE_NOT_FOUND"
	case errors.Is(err, ErrRateLimited):
		status, code = http.StatusTooManyRequests, "RATE_LIMITED"
	case errors.Is(err, graph.ErrInvalidMode):
		status, code = http.StatusBadRequest, "INVALID_MODE"
	case errors.Is(err, context.DeadlineExceeded):
		status, code = http.StatusGatewayTimeout, "TIMEOUT"
	case errors.Is(err, context.Canceled), errors.Is(err, graph.ErrBuildCancelled):
		status, code = http.StatusServiceUnavailable, "CANCELLED"
	}
	if status >= http.StatusInternalServerError {
		logger.Error("request failed", slog.String("error", err.Error()))
	} else {
		logger.Debug("request rejected", slog.String("code", code), slog.String("error", err.Error()))
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

// HandleHealth handles GET /v1/curator/health.
func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", Version: ServiceVersion}
	if db := h.svc.Database(); db != nil {
		builtAt := db.BuiltAt()
		resp.EpochID = db.EpochID()
		resp.Objects = db.Len()
		resp.BuiltAt = &builtAt
	}
	c.JSON(http.StatusOK, resp)
}

// HandleChildren handles GET /v1/curator/objects/:id/children.
//
// Response:
//
//	200 OK: ChildrenResponse, ordered by type, then name, then id
//	400 Bad Request: Invalid id
//	404 Not Found: Unknown object
func (h *Handlers) HandleChildren(c *gin.Context) {
	logger := h.requestLogger(c, "HandleChildren")
	id, ok := parseID(c)
	if !ok {
		return
	}
	children, err := h.svc.ChildrenOf(c.Request.Context(), id)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ChildrenResponse{ID: id, Children: children})
}

// HandleGraph handles GET /v1/curator/objects/:id/graph.
//
// Query Parameters:
//
//	mode - ancestors, descendants (default), or both
//	depth - Optional positive maximum depth
//
// Response:
//
//	200 OK: graph.Result
//	400 Bad Request: Invalid id, mode, or depth
func (h *Handlers) HandleGraph(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGraph")
	id, ok := parseID(c)
	if !ok {
		return
	}
	mode, err := graph.ParseMode(c.DefaultQuery("mode", "descendants"))
	if err != nil {
		writeError(c, logger, err)
		return
	}
	depth := 0
	if raw := c.Query("depth"); raw != "" {
		depth, err = strconv.Atoi(raw)
		if err != nil || depth <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error: "depth must be a positive integer",
				Code:  "INVALID_DEPTH",
			})
			return
		}
	}
	res, err := h.svc.Graph(c.Request.Context(), id, mode, depth)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

// HandleIntegrity handles GET /v1/curator/objects/:id/integrity.
func (h *Handlers) HandleIntegrity(c *gin.Context) {
	logger := h.requestLogger(c, "HandleIntegrity")
	id, ok := parseID(c)
	if !ok {
		return
	}
	report, err := h.svc.Integrity(c.Request.Context(), id)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// HandleGetLicense handles GET /v1/curator/objects/:id/license.
func (h *Handlers) HandleGetLicense(c *gin.Context) {
	logger := h.requestLogger(c, "HandleGetLicense")
	id, ok := parseID(c)
	if !ok {
		return
	}
	res, err := h.svc.ResolveLicense(c.Request.Context(), id)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, LicenseResponse{ID: id, Licensed: res != nil, Resolution: res})
}

// HandleSetLicense handles PUT /v1/curator/objects/:id/license.
//
// Request Body:
//
//	SetLicenseRequest
//
// Response:
//
//	200 OK: SetLicenseResponse
//	400 Bad Request: Invalid body or window
//	404 Not Found: Unknown license
func (h *Handlers) HandleSetLicense(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSetLicense")
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req SetLicenseRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request body",
			Code:    "INVALID_REQUEST",
			Details: err.Error(),
		})
		return
	}
	if req.DateStart != nil && req.DateEnd != nil && !req.DateEnd.After(*req.DateStart) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "date_end must be after date_start",
			Code:  "INVALID_WINDOW",
		})
		return
	}

	a, err := h.svc.SetLicense(c.Request.Context(), id, req.LicenseID, req.DateStart, req.DateEnd)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	logger.Info("license assigned",
		slog.Int64("id", id),
		slog.Int64("license_id", req.LicenseID),
		slog.Bool("active", a != nil),
	)
	c.JSON(http.StatusOK, SetLicenseResponse{ID: id, Active: a != nil, Assignment: a})
}

// HandleClearLicense handles DELETE /v1/curator/objects/:id/license.
//
// Query Parameters:
//
//	all - "true" ends inactive assignments too
func (h *Handlers) HandleClearLicense(c *gin.Context) {
	logger := h.requestLogger(c, "HandleClearLicense")
	id, ok := parseID(c)
	if !ok {
		return
	}
	clearAll, err := strconv.ParseBool(c.DefaultQuery("all", "false"))
	if err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "all must be a boolean",
			Code:  "INVALID_REQUEST",
		})
		return
	}
	n, err := h.svc.ClearLicense(c.Request.Context(), id, clearAll)
	if err != nil {
		writeError(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, ClearLicenseResponse{ID: id, Ended: n})
}

// HandleGraphEntry handles GET /v1/curator/graphdb/objects/:id.
//
// Response:
//
//	200 OK: graph.Entry
//	404 Not Found: No graph database loaded, or id not in it
func (h *Handlers) HandleGraphEntry(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	e, ok := h.svc.GraphEntry(id)
	if !ok {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error: fmt.Sprintf("object %d is not in the graph database", id),
			Code:  "NOT_IN_GRAPHDB",
		})
		return
	}
	c.JSON(http.StatusOK, e)
}

// HandleRebuild handles POST /v1/curator/graphdb/rebuild.
//
// Response:
//
//	200 OK: RebuildResponse
//	429 Too Many Requests: Rebuild limit reached
func (h *Handlers) HandleRebuild(c *gin.Context) {
	logger := h.requestLogger(c, "HandleRebuild")
	br, err := h.svc.Rebuild(c.Request.Context())
	if err != nil {
		writeError(c, logger, err)
		return
	}
	resp := RebuildResponse{Build: br}
	for _, e := range br.Errors {
		resp.Errors = append(resp.Errors, e.Error())
	}
	c.JSON(http.StatusOK, resp)
}

// HandleFlushCaches handles POST /v1/curator/cache/flush.
func (h *Handlers) HandleFlushCaches(c *gin.Context) {
	logger := h.requestLogger(c, "HandleFlushCaches")
	if err := h.svc.FlushCaches(c.Request.Context()); err != nil {
		writeError(c, logger, err)
		return
	}
	c.Status(http.StatusNoContent)
}
