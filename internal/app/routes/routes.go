package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sga/schoolhub/internal/app/controllers"
	"github.com/sga/schoolhub/internal/app/models"
	"github.com/sga/schoolhub/internal/app/models/dto"
	"github.com/sga/schoolhub/internal/middleware"
)

// Controllers bundles every HTTP handler set the router mounts
type Controllers struct {
	Auth         *controllers.AuthController
	User         *controllers.UserController
	Batch        *controllers.BatchController
	Student      *controllers.StudentController
	Attendance   *controllers.AttendanceController
	Fee          *controllers.FeeController
	Chat         *controllers.ChatController
	Announcement *controllers.AnnouncementController
	Portal       *controllers.PortalController
	Dashboard    *controllers.DashboardController
}

// SetupRouter configures all application routes
func SetupRouter(router *gin.Engine, c Controllers, authMiddleware *middleware.AuthMiddleware) {
	router.GET("/ping", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, dto.NewMessageResponse("pong"))
	})

	v1 := router.Group("/api/v1")

	// --- Public Auth routes ---
	auth := v1.Group("/auth")
	{
		auth.POST("/login", c.Auth.Login)
		auth.POST("/refresh-token", c.Auth.RefreshToken)
		auth.POST("/logout", c.Auth.Logout)
	}

	// --- Authenticated Routes Group ---
	authenticated := v1.Group("")
	authenticated.Use(authMiddleware.JWTAuth())

	authenticated.GET("/auth/me", c.Auth.Me)
	authenticated.POST("/auth/change-password", c.Auth.ChangePassword)
	authenticated.GET("/users/search", c.User.SearchUsers)

	staff := authenticated.Group("")
	staff.Use(authMiddleware.StaffOnly())

	staff.GET("/dashboard", c.Dashboard.Overview)

	teachers := staff.Group("/teachers")
	{
		teachers.GET("", c.User.ListTeachers)
		teachers.GET("/:id", c.User.GetTeacher)

		admin := teachers.Group("")
		admin.Use(authMiddleware.AdminOnly())
		admin.POST("", c.User.CreateTeacher)
		admin.PUT("/:id", c.User.UpdateTeacher)
		admin.PATCH("/:id/active", c.User.SetActive)
		admin.DELETE("/:id", c.User.DeleteTeacher)
	}

	batches := staff.Group("/batches")
	{
		batches.POST("", c.Batch.CreateBatch)
		batches.GET("", c.Batch.ListBatches)
		batches.GET("/:id", c.Batch.GetBatch)
		batches.PUT("/:id", c.Batch.UpdateBatch)
		batches.DELETE("/:id", c.Batch.DeleteBatch)
	}

	students := staff.Group("/students")
	{
		students.POST("", c.Student.CreateStudent)
		students.GET("", c.Student.ListStudents)
		students.GET("/next-id", c.Student.NextStudentID)
		students.POST("/move", c.Student.MoveStudents)
		students.POST("/bulk-delete", c.Student.DeleteStudents)
		students.GET("/:id", c.Student.GetStudent)
		students.PUT("/:id", c.Student.UpdateStudent)
		students.PATCH("/:id/status", c.Student.SetStatus)
		students.DELETE("/:id", c.Student.DeleteStudent)
		students.POST("/:id/login", c.Student.CreateLogin)
	}

	attendance := staff.Group("/attendance")
	{
		attendance.POST("", c.Attendance.MarkBatchAttendance)
		attendance.GET("/overview", c.Attendance.DailyOverview)
		attendance.GET("/batches/:id", c.Attendance.BatchAttendance)
		attendance.GET("/batches/:id/report", c.Attendance.MonthlyReport)
	}
	// students may read their own history; the service checks ownership
	authenticated.GET("/attendance/students/:id", c.Attendance.StudentAttendance)

	fees := staff.Group("/fees")
	{
		fees.POST("/structures", c.Fee.CreateStructure)
		fees.GET("/structures", c.Fee.ListStructures)
		fees.GET("/structures/:id", c.Fee.GetStructure)
		fees.PUT("/structures/:id", c.Fee.UpdateStructure)
		fees.DELETE("/structures/:id", c.Fee.DeleteStructure)

		fees.POST("/transactions", c.Fee.CollectFee)
		fees.GET("/transactions", c.Fee.ListTransactions)
		fees.GET("/receipt-number", c.Fee.NextReceiptNumber)

		fees.GET("/pending", c.Fee.PendingDues)
		fees.GET("/summary", c.Fee.Summary)
		fees.GET("/reports/collection", c.Fee.CollectionReport)
		fees.GET("/students/:id", c.Fee.StudentFeeDetails)

		fees.POST("/dues", c.Fee.CreateDue)
		fees.POST("/dues/:id/pay", c.Fee.PayDue)
		fees.POST("/dues/refresh-overdue", c.Fee.RefreshOverdue)
		fees.GET("/defaulters", c.Fee.Defaulters)
	}
	ownFees := authenticated.Group("/fees")
	{
		ownFees.GET("/transactions/:id", c.Fee.GetTransaction)
		ownFees.GET("/students/:id/status", c.Fee.StudentFeeStatus)
		ownFees.GET("/students/:id/dues", c.Fee.StudentDues)
	}

	messages := authenticated.Group("/messages")
	{
		messages.POST("", c.Chat.Compose)
		messages.GET("/unread-count", c.Chat.UnreadCount)
		messages.DELETE("/:id", c.Chat.DeleteMessage)
		messages.GET("/conversations", c.Chat.Inbox)
		messages.POST("/conversations", c.Chat.StartConversation)
		messages.GET("/conversations/:id", c.Chat.OpenConversation)
		messages.DELETE("/conversations/:id", c.Chat.DeleteConversation)
		messages.GET("/conversations/:id/messages", c.Chat.MessagesAfter)
		messages.POST("/conversations/:id/messages", c.Chat.SendMessage)
		messages.DELETE("/conversations/:id/messages", c.Chat.ClearConversation)
		messages.POST("/conversations/:id/read", c.Chat.MarkRead)
	}

	authenticated.GET("/announcements/feed", c.Announcement.Feed)
	announcements := staff.Group("/announcements")
	{
		announcements.GET("", c.Announcement.ListAnnouncements)
		announcements.POST("", c.Announcement.CreateAnnouncement)
		announcements.POST("/images", c.Announcement.UploadImage)
		announcements.GET("/:id", c.Announcement.GetAnnouncement)
		announcements.PUT("/:id", c.Announcement.UpdateAnnouncement)
		announcements.DELETE("/:id", c.Announcement.DeleteAnnouncement)
	}

	portal := authenticated.Group("/portal")
	portal.Use(authMiddleware.RoleRequired(models.RoleStudent))
	{
		portal.GET("/dashboard", c.Portal.Dashboard)
		portal.GET("/profile", c.Portal.Profile)
		portal.PUT("/profile", c.Portal.UpdateProfile)
		portal.GET("/attendance", c.Portal.Attendance)
		portal.GET("/fees", c.Portal.Fees)
		portal.GET("/announcements", c.Portal.Announcements)
	}
}
