package httpapi

import (
	"github.com/gin-gonic/gin"

	"campus/internal/identity"
)

// Register mounts all v1 routes onto the router.
func Register(r *gin.Engine, h *Handler) {
	r.POST("/v1/auth/login", h.Login)

	// homepage marketing content is public
	r.GET("/v1/site-content", h.GetSiteContent)

	authed := r.Group("/v1", identity.RequireAuth(h.cfg.JWTSigningKey, h.cfg.JWTIssuer))

	me := authed.Group("/me")
	me.GET("/profile", h.MyProfile)
	me.GET("/fees", h.MyFees)
	me.GET("/results", h.MyResults)
	me.GET("/announcements", h.MyAnnouncements)

	admin := authed.Group("", identity.RequireRole(identity.RoleAdmin))

	admin.POST("/students", h.CreateStudent)
	admin.GET("/students", h.ListStudents)
	admin.GET("/students/:id", h.GetStudent)
	admin.PUT("/students/:id", h.UpdateStudent)
	admin.DELETE("/students/:id", h.DeleteStudent)

	admin.DELETE("/students/:id/fees/:feeId", h.RemoveFee)
	admin.DELETE("/students/:id/results/:resultId", h.RemoveResult)

	admin.POST("/classes", h.CreateClass)
	admin.GET("/classes", h.ListClasses)
	admin.PUT("/classes/:id", h.UpdateClass)
	admin.DELETE("/classes/:id", h.DeleteClass)

	admin.POST("/announcements", h.CreateAnnouncement)
	admin.GET("/announcements", h.ListAnnouncements)
	admin.DELETE("/announcements/:id", h.DeleteAnnouncement)

	admin.PUT("/fees", h.UpsertFee)
	admin.GET("/fees", h.ListFees)
	admin.PUT("/results", h.UpsertResult)
	admin.GET("/results", h.ListResults)

	admin.PUT("/site-content", h.UpdateSiteContent)
	admin.POST("/uploads", h.Upload)
}
