package routes

import (
	"tutorlink_go/controllers"
	"tutorlink_go/database"
	"tutorlink_go/middleware"
	"tutorlink_go/services"
	"tutorlink_go/services/websocket"
	"tutorlink_go/storage"
	"tutorlink_go/store/gormstore"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, wsHub *websocket.Hub, archiver *storage.ExportArchiver, ledger *services.AttendanceLedger, callStore *services.CallStore, reports *services.ReportEngine) {
	refs := gormstore.NewReferenceRepository(database.GetDB())

	// Initialize controllers
	authController := &controllers.AuthController{}
	notificationController := &controllers.NotificationController{}
	callController := controllers.NewCallController(callStore)
	attendanceController := controllers.NewAttendanceController(ledger, reports, archiver)
	batchController := controllers.NewBatchController(refs)
	exportController := controllers.NewExportArchiveController(archiver)
	healthController := controllers.NewHealthController(services.NewHealthService("", ""))
	wsController := controllers.NewWebSocketController(wsHub)

	// Health check (public)
	app.Get("/health", healthController.GetHealthStatus)

	// WebSocket endpoint, token passed as query parameter
	app.Use("/ws", wsController.UpgradeRequired)
	app.Get("/ws", wsController.WebSocketHandler())

	// API group
	api := app.Group("/api")

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)

	// Protected routes (require authentication)
	protected := api.Group("/", middleware.JWTMiddleware())

	protected.Post("/auth/logout", authController.Logout)
	protected.Get("/profile", authController.Profile)
	protected.Put("/profile/password", authController.ChangePassword)

	// Scheduled call routes
	calls := protected.Group("/calls")
	calls.Get("/", callController.List)
	calls.Post("/", middleware.RequireTeacherOrAbove(), callController.Create)
	calls.Get("/:id", callController.Get)
	calls.Put("/:id/reschedule", middleware.RequireTeacherOrAbove(), callController.Reschedule)
	calls.Put("/:id/cancel", middleware.RequireTeacherOrAbove(), callController.Cancel)
	calls.Put("/:id/complete", middleware.RequireTeacherOrAbove(), callController.Complete)
	calls.Delete("/:id", middleware.RequireTeacherOrAbove(), callController.Delete)

	// Attendance marking sits under the call it belongs to
	calls.Put("/:id/attendance", middleware.RequireTeacherOrAbove(), attendanceController.Mark)
	calls.Get("/:id/attendance", attendanceController.Record)

	// Attendance reporting routes
	attendance := protected.Group("/attendance")
	attendance.Get("/", attendanceController.Query)
	attendance.Get("/pivot", attendanceController.Pivot)
	attendance.Get("/export", attendanceController.Export)

	// Export archive history (staff only)
	exports := protected.Group("/exports", middleware.RequireStaff())
	exports.Get("/", exportController.List)
	exports.Get("/:id/download", exportController.Download)

	// Reference data
	batches := protected.Group("/batches")
	batches.Get("/", middleware.RequireTeacherOrAbove(), batchController.List)
	batches.Get("/:id", middleware.RequireTeacherOrAbove(), batchController.Get)

	// Notifications
	notifications := protected.Group("/notifications")
	notifications.Get("/", notificationController.GetNotifications)
	notifications.Put("/:id/read", notificationController.MarkAsRead)
	notifications.Put("/read-all", notificationController.MarkAllAsRead)
}
