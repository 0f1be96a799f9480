package api

import (
	"github.com/gin-gonic/gin"

	"github.com/civicwatch/intake/internal/telemetry"
)

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handler *Handler, tp *telemetry.Provider) {
	// Health, readiness and metrics
	router.GET("/health", handler.HealthCheck)
	router.GET("/ready", handler.ReadyCheck)
	if tp != nil {
		router.GET("/metrics", gin.WrapH(tp.Handler()))
	}

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		incidents := v1.Group("/incidents")
		{
			incidents.POST("", handler.CreateIncident)               // POST /api/v1/incidents
			incidents.GET("/:id", handler.GetIncident)               // GET /api/v1/incidents/:id
			incidents.GET("/:id/ml", handler.GetIncidentML)          // GET /api/v1/incidents/:id/ml
			incidents.GET("/:id/enrichment", handler.GetEnrichment)  // GET /api/v1/incidents/:id/enrichment
			incidents.GET("/:id/actions", handler.ListActions)       // GET /api/v1/incidents/:id/actions
			incidents.POST("/:id/status", handler.TransitionStatus)  // POST /api/v1/incidents/:id/status
			incidents.POST("/:id/verify", handler.Verify)            // POST /api/v1/incidents/:id/verify
			incidents.POST("/:id/reject", handler.Reject)            // POST /api/v1/incidents/:id/reject
			incidents.POST("/:id/escalate", handler.Escalate)        // POST /api/v1/incidents/:id/escalate
			incidents.POST("/:id/needs-info", handler.NeedsInfo)     // POST /api/v1/incidents/:id/needs-info
			incidents.POST("/:id/merge", handler.Merge)              // POST /api/v1/incidents/:id/merge
			incidents.POST("/:id/category", handler.CorrectCategory) // POST /api/v1/incidents/:id/category
			incidents.POST("/:id/dedup-verdict", handler.DedupVerdict)
		}

		v1.GET("/ml-health", handler.MLHealth) // GET /api/v1/ml-health
	}
}
