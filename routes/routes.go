package routes

import (
	"net/http"

	"Gin_postgres_redis_equipment_tool/app"
	"Gin_postgres_redis_equipment_tool/controllers"
	"Gin_postgres_redis_equipment_tool/events"
	"Gin_postgres_redis_equipment_tool/models"

	"github.com/gin-gonic/gin"
)

func RegisterRoutes(r *gin.Engine, a *app.App) {
	// 控制器与依赖
	s := controllers.GetSrv(a)

	// 复用的中间件
	authMW := app.AuthRequired([]byte(a.Config.JWTSecret), a.Revocations())
	seenMW := app.SyncUser(a.Services.Users, app.RedisThrottle(a.RDB), a.Config.SeenThrottle, a.Log)

	r.GET("/healthz", func(c *app.Ctx) { c.JSON(http.StatusOK, app.H{"ok": true}) })

	api := r.Group("/api", authMW, seenMW)
	// 实时事件（websocket，token 走 access_token 查询参数）
	api.GET("/events", events.Handler(a.Hub, a.Config.SameOrigin))
	Mount(api, s)
}

// Mount attaches every REST endpoint to an already authenticated group.
func Mount(api *gin.RouterGroup, s *controllers.Srv) {
	staff := app.Staff()
	adminOnly := app.RequireRoles(models.RoleAdmin)
	managers := app.RequireRoles(models.RoleAdmin, models.RoleTechnicalManager)

	mc := controllers.NewMaterielController(s)
	ac := controllers.NewAllocationController(s)
	mt := controllers.NewMaintenanceController(s)
	ic := controllers.NewIntakeController(s)
	au := controllers.NewAuditController(s)

	// ------------------------------
	// 登录态（身份由外部签发）
	// ------------------------------
	auth := api.Group("/auth")
	{
		auth.GET("/whoami", au.WhoAmI)
		auth.POST("/logout", au.Logout)
	}

	// ------------------------------
	// 物资台账
	// ------------------------------
	materiel := api.Group("/materiel")
	{
		materiel.GET("", mc.List) // ?q=&status=&type=&location=&category=&condition=&page=&size=
		materiel.POST("", staff, mc.Create)
		materiel.GET("/available", mc.Available)
		materiel.GET("/labels", mc.Labels) // ?ids=a,b
		materiel.GET("/:id", mc.Get)
		materiel.PUT("/:id", staff, mc.Update)
		materiel.DELETE("/:id", adminOnly, mc.Delete)
		materiel.POST("/:id/status", staff, mc.SetStatus)
		materiel.POST("/:id/assign", staff, mc.Assign)
		materiel.POST("/:id/return", mc.Return)
		materiel.POST("/:id/mark-irreparable", staff, mc.MarkIrreparable)
	}

	// ------------------------------
	// 领用
	// ------------------------------
	alloc := api.Group("/allocations")
	{
		alloc.GET("", ac.List) // ?status=&approvalStatus=&userId=&materielId=&overdue=
		alloc.POST("", ac.Create)
		alloc.GET("/user/:userId", ac.ListForUser)
		alloc.GET("/:id", ac.Get)
		alloc.PUT("/:id", ac.Update)
		alloc.POST("/:id/approve", staff, ac.Approve)
		alloc.POST("/:id/reject", staff, ac.Reject)
		alloc.POST("/:id/return", ac.Return)
		alloc.POST("/:id/cancel", ac.Cancel)
	}

	// ------------------------------
	// 维修保养
	// ------------------------------
	maint := api.Group("/maintenance")
	{
		maint.GET("", staff, mt.List)
		maint.POST("", mt.Create)
		maint.GET("/schedule", staff, mt.Schedule)            // ?from=&to=&technicianId=
		maint.GET("/preventive/due", staff, mt.PreventiveDue) // ?days=
		maint.GET("/technician/:technicianId", mt.ForTechnician)
		maint.GET("/:id", mt.Get)
		maint.PUT("/:id", mt.Update)
		maint.POST("/:id/start", staff, mt.Start)
		maint.POST("/:id/complete", staff, mt.Complete)
		maint.POST("/:id/cancel", staff, mt.Cancel)
	}

	// ------------------------------
	// 故障报修与设备申请
	// ------------------------------
	faults := api.Group("/fault-reports")
	{
		faults.GET("", ic.ListFaults)
		faults.POST("", ic.CreateFault)
		faults.PUT("/:id", ic.UpdateFault)
	}
	reqs := api.Group("/equipment-requests")
	{
		reqs.GET("", ic.ListRequests)
		reqs.POST("", ic.CreateRequest)
		reqs.PUT("/:id/status", managers, ic.UpdateRequestStatus)
		reqs.POST("/:id/cancel", ic.CancelRequest)
	}

	// 审计（仅管理员）
	api.GET("/audit", adminOnly, au.List) // ?entity=&entityId=
}
