package server

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/qr-attendance-api/internal/handler"
	"github.com/noah-isme/qr-attendance-api/internal/middleware"
	"github.com/noah-isme/qr-attendance-api/internal/models"
	"github.com/noah-isme/qr-attendance-api/internal/service"
	"github.com/noah-isme/qr-attendance-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/qr-attendance-api/pkg/middleware/cors"
	"github.com/noah-isme/qr-attendance-api/pkg/middleware/ratelimit"
	reqidmiddleware "github.com/noah-isme/qr-attendance-api/pkg/middleware/requestid"
	"github.com/noah-isme/qr-attendance-api/pkg/observability"
)

// TokenValidator verifies bearer access tokens.
type TokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// AccountResolver reloads the caller's account behind validated token claims.
type AccountResolver interface {
	ResolveClaims(ctx context.Context, claims *models.JWTClaims) (*models.JWTClaims, error)
}

// AuditWriter persists audit entries for audited routes.
type AuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Deps collects everything the router mounts.
type Deps struct {
	Logger         *zap.Logger
	Metrics        *service.MetricsService
	Tokens         TokenValidator
	Accounts       AccountResolver
	Audit          AuditWriter
	Limiter        ratelimit.Limiter
	AllowedOrigins []string
	APIPrefix      string
	EnableDocs     bool

	Attendance *handler.AttendanceHandler
	Reports    *handler.ReportHandler
	Students   *handler.StudentHandler
	Auth       *handler.AuthHandler
	Users      *handler.UserHandler
	Avatars    *handler.AvatarHandler
	Ops        *handler.MetricsHandler
}

// AvatarPath is where signed avatar links are served, relative to the API prefix.
const AvatarPath = "/avatars"

// NewRouter builds the gin engine with every route of the API.
func NewRouter(deps Deps) *gin.Engine {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(deps.Logger))
	r.Use(observability.GinMiddleware())
	r.Use(corsmiddleware.New(deps.AllowedOrigins))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", deps.Ops.Health)
	r.GET("/ready", deps.Ops.Ready)
	r.GET("/metrics", deps.Ops.Prometheus)
	if deps.EnableDocs {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	api := r.Group(normalizePrefix(deps.APIPrefix))

	api.POST("/register", ratelimit.Middleware(deps.Limiter, "register"), deps.Auth.Register)
	api.POST("/login", ratelimit.Middleware(deps.Limiter, "login"), deps.Auth.Login)
	api.POST("/auth/refresh", deps.Auth.Refresh)
	api.GET(AvatarPath+"/:token", deps.Avatars.Serve)

	authed := api.Group("", middleware.JWT(deps.Tokens))
	if deps.Accounts != nil {
		authed.Use(middleware.CurrentAccount(deps.Accounts))
	}
	authed.POST("/logout", deps.Auth.Logout)
	authed.GET("/auth/me", deps.Auth.Me)
	authed.GET("/profile", deps.Auth.Me)
	authed.POST("/profile", deps.Auth.UpdateProfile)
	authed.PUT("/profile", deps.Auth.ChangePassword)

	attendance := authed.Group("/attendance")
	attendance.POST("/scan", ratelimit.Middleware(deps.Limiter, "scan"), deps.Attendance.Scan)
	attendance.POST("/lookup", deps.Attendance.Lookup)
	attendance.GET("/scanned-codes-data", deps.Attendance.Scanned)
	attendance.GET("/export", middleware.Audit(deps.Audit, deps.Logger, models.AuditActionAttendanceExport, "attendances"), deps.Attendance.Export)
	attendance.GET("/total-visitors-today", deps.Reports.VisitorsToday)
	attendance.GET("/total-visitors", deps.Reports.TotalVisitors)
	attendance.GET("/currently-inside", deps.Reports.CurrentlyInside)
	attendance.GET("/by-level", deps.Reports.ByLevel)
	attendance.GET("/weekly-attendance", deps.Reports.Weekly)

	authed.GET("/students-data", deps.Students.List)
	authed.GET("/students/count", deps.Students.Count)
	authed.POST("/students/check-name", deps.Students.CheckName)
	authed.POST("/students", deps.Students.Create)
	authed.GET("/students/:id", deps.Students.Get)
	authed.PUT("/students/:id", deps.Students.Update)
	authed.DELETE("/students/:id", deps.Students.Delete)
	authed.GET("/students/:id/qr", deps.Students.QRCode)

	admin := authed.Group("", middleware.RequireRoles(models.RoleAdmin))
	admin.GET("/admin/pending-users", deps.Users.ListPending)
	admin.POST("/admin/approve/:id", deps.Users.Approve)
	admin.POST("/admin/reject/:id", deps.Users.Reject)
	admin.GET("/admin/users", deps.Users.List)
	admin.PUT("/admin/users/:id", deps.Users.Update)
	admin.POST("/admin/users/:id/reset-password", deps.Users.ResetPassword)
	admin.DELETE("/delete-users/:id", deps.Users.Delete)
	admin.PUT("/users/:id/toggle-activation", deps.Users.ToggleActivation)
	admin.GET("/users-data", deps.Users.ListAll)

	return r
}

func normalizePrefix(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" || prefix == "/" {
		return "/"
	}
	return "/" + strings.Trim(prefix, "/")
}
