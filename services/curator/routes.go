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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/Curator/services/curator/telemetry"
)

// RegisterRoutes registers all curator routes with the router.
//
// Description:
//
//	Registers all /v1/curator/* endpoints with the given Gin router group.
//
// Inputs:
//
//	rg - Gin router group (typically /v1)
//	handlers - The handlers instance
//
// Endpoints:
//
//	GET    /v1/curator/health - Health and current epoch
//	GET    /v1/curator/objects/:id/children - Ordered direct children
//	GET    /v1/curator/objects/:id/graph - Traversal from an object
//	GET    /v1/curator/objects/:id/integrity - Hierarchy and cycle report
//	GET    /v1/curator/objects/:id/license - Effective license
//	PUT    /v1/curator/objects/:id/license - Assign a license
//	DELETE /v1/curator/objects/:id/license - End license assignments
//	GET    /v1/curator/graphdb/objects/:id - Graph database node state
//	POST   /v1/curator/graphdb/rebuild - Build a new graph database epoch
//	POST   /v1/curator/cache/flush - Reload caches
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	curator := rg.Group("/curator")
	{
		curator.GET("/health", handlers.HandleHealth)

		objects := curator.Group("/objects/:id")
		{
			objects.GET("/children", handlers.HandleChildren)
			objects.GET("/graph", handlers.HandleGraph)
			objects.GET("/integrity", handlers.HandleIntegrity)
			objects.GET("/license", handlers.HandleGetLicense)
			objects.PUT("/license", handlers.HandleSetLicense)
			objects.DELETE("/license", handlers.HandleClearLicense)
		}

		curator.GET("/graphdb/objects/:id", handlers.HandleGraphEntry)
		curator.POST("/graphdb/rebuild", handlers.HandleRebuild)
		curator.POST("/cache/flush", handlers.HandleFlushCaches)
	}
}

// NewRouter builds the gin engine serving svc, traced with otelgin. The
// Prometheus handler is mounted at /metrics when the exporter is enabled.
func NewRouter(svc *Service) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("curator"))

	RegisterRoutes(router.Group("/v1"), NewHandlers(svc))

	if h := telemetry.MetricsHandler(); h != nil {
		router.GET("/metrics", gin.WrapH(h))
	}
	return router
}
