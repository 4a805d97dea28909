package api

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/your-org/presence/internal/api/handlers"
	"github.com/your-org/presence/internal/api/ws"
	"github.com/your-org/presence/internal/auth"
	"github.com/your-org/presence/internal/queue"
	"github.com/your-org/presence/internal/storage"
	"github.com/your-org/presence/internal/verify"
)

type RouterConfig struct {
	APIKey         string
	JWTSecret      string
	MatchThreshold float64
	DB             *storage.PostgresStore
	Snapshots      *storage.SnapshotStore
	Producer       *queue.Producer
	Hub            *ws.Hub
	Pipeline       *verify.Pipeline
	Extractor      verify.Extractor
	Rebuilder      handlers.Rebuilder
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware())
	r.Use(cors.Default())

	// System endpoints (no auth)
	systemH := handlers.NewSystemHandler(cfg.DB, cfg.Snapshots, cfg.Producer)
	r.GET("/healthz", systemH.Healthz)
	r.GET("/readyz", systemH.Readyz)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/v1")

	// WebSocket attempt feed
	v1.GET("/ws", cfg.Hub.HandleWS)

	attendanceH := handlers.NewAttendanceHandler(cfg.Pipeline, cfg.Snapshots)

	// Anonymous variant carries no credential at all
	v1.POST("/attendance/anonymous-clock", attendanceH.AnonymousClock)

	// Authenticated variants require a session token
	session := v1.Group("/attendance")
	session.Use(auth.SessionMiddleware(cfg.JWTSecret, cfg.DB))
	session.POST("/clock-in", attendanceH.ClockIn)
	session.POST("/clock-out", attendanceH.ClockOut)
	session.POST("/manual-in", attendanceH.ManualIn)
	session.POST("/manual-out", attendanceH.ManualOut)

	// Provisioning (API key)
	directoryH := handlers.NewDirectoryHandler(cfg.DB, cfg.Extractor, cfg.Rebuilder, cfg.MatchThreshold)
	admin := v1.Group("")
	admin.Use(auth.APIKeyMiddleware(cfg.APIKey))
	admin.POST("/departments", directoryH.CreateDepartment)
	admin.GET("/departments", directoryH.ListDepartments)
	admin.POST("/users", directoryH.CreateUser)
	admin.GET("/users/:id", directoryH.GetUser)
	admin.PUT("/users/:id/department", directoryH.AssignDepartment)
	admin.POST("/users/:id/embeddings", directoryH.AddEmbedding)
	admin.GET("/users/:id/embeddings", directoryH.ListEmbeddings)
	admin.POST("/identify", directoryH.Identify)

	return r
}
