package main

import (
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"sheetboard/api"
	"sheetboard/config"
	"sheetboard/dataset"
	"sheetboard/db"
	"sheetboard/editor"
	"sheetboard/models"
	"sheetboard/obs"
	"sheetboard/remote"
	"sheetboard/utils"
)

// @title           Sheetboard API
// @version         1.0.0

// @description     ## Sheetboard API
// @description
// @description     A dashboard backend for viewing, filtering, and editing a multi-sheet
// @description     spreadsheet workbook, with time-bounded login sessions under a global
// @description     concurrent-user cap and optional synchronization of the workbook to a
// @description     GitHub-hosted file.
// @description
// @description     **Sessions:** `POST /auth/login` activates a session and returns a bearer
// @description     token. A user may hold only one active session at a time, and the number
// @description     of concurrently active users is capped; the admin account can be exempted
// @description     from both rules by configuration. Sessions expire after the configured
// @description     duration whether or not the client is still around.
// @description
// @description     **Remote sync:** `POST /remote/fetch` downloads the configured remote file
// @description     and records its version token. Every save pushed remotely must present the
// @description     last observed token; if someone else saved in between, the push fails with
// @description     409 and the local copy keeps your change — fetch and re-apply to recover.

// @license.name  MIT

// @host      localhost:8080
// @BasePath  /

// @securityDefinitions.jwt BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and the token from /auth/login.
func main() {
	// --- Configuration ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL: Failed to load configuration: %v", err)
	}

	// --- Stores ---
	creds, err := db.NewFileCredentialStore(cfg.UsersFilePath, cfg.EnableBackup)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize credential store: %v", err)
	}
	registry, err := db.NewFileSessionRegistry(cfg.SessionsFilePath, cfg.EnableBackup, creds,
		cfg.SessionDuration, cfg.MaxActiveSessions, cfg.AdminExempt)
	if err != nil {
		log.Fatalf("CRITICAL: Failed to initialize session registry: %v", err)
	}

	// --- Dataset / remote sync ---
	cache := dataset.NewCache(cfg.WorkbookPath, cfg.CacheTTL)
	var client remote.Client
	if cfg.RemoteConfigured() {
		client = remote.NewGitHubClient(cfg.RemoteOwner, cfg.RemoteRepo, cfg.RemoteBranch,
			cfg.RemotePath, cfg.RemoteToken, cfg.RemoteTimeout)
	}
	ed := editor.New(cfg.WorkbookPath, cache, client)

	// --- Metrics ---
	obs.Init()

	// --- Gin Router Setup ---
	router := gin.Default()

	// --- Public Routes (No Auth Required) ---
	authGroup := router.Group("/auth")
	{
		// POST /auth/login, throttled per client IP
		authGroup.POST("/login", api.LoginRateLimit(10, time.Minute), func(c *gin.Context) {
			api.LoginHandler(c, registry, cfg)
		})
	}

	// --- Protected Routes (Auth Required) ---
	authMiddleware := utils.AuthMiddleware(cfg, registry)
	canView := utils.RequirePermission(models.PermView, creds)
	canEdit := utils.RequirePermission(models.PermEdit, creds)
	canSync := utils.RequirePermission(models.PermSync, creds)

	router.POST("/auth/logout", authMiddleware, func(c *gin.Context) {
		api.LogoutHandler(c, registry, cfg)
	})
	router.GET("/session", authMiddleware, func(c *gin.Context) {
		api.SessionStatusHandler(c, registry, creds, cfg)
	})

	sheetGroup := router.Group("/sheets")
	sheetGroup.Use(authMiddleware)
	{
		sheetGroup.GET("", canView, func(c *gin.Context) {
			api.ListSheetsHandler(c, cache, cfg)
		})
		sheetGroup.GET("/:name", canView, func(c *gin.Context) {
			api.GetSheetHandler(c, cache, cfg)
		})
		sheetGroup.GET("/:name/export", canView, func(c *gin.Context) {
			api.ExportSheetHandler(c, cache, cfg)
		})
		sheetGroup.PUT("/:name", canEdit, func(c *gin.Context) {
			api.UpdateSheetHandler(c, ed, cfg)
		})
		sheetGroup.POST("/:name/rows", canEdit, func(c *gin.Context) {
			api.AddRowHandler(c, ed, cfg)
		})
	}

	remoteGroup := router.Group("/remote")
	remoteGroup.Use(authMiddleware)
	{
		remoteGroup.GET("/status", canView, func(c *gin.Context) {
			api.RemoteStatusHandler(c, ed, cfg)
		})
		remoteGroup.POST("/fetch", canSync, func(c *gin.Context) {
			api.FetchRemoteHandler(c, ed, cfg)
		})
	}

	// --- Metrics Route ---
	router.GET("/metrics", gin.WrapH(obs.Handler()))

	// --- Swagger Route ---
	// Serve the static spec from the docs directory, render the UI at /swagger/.
	router.StaticFS("/docs", http.Dir("docs"))
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/docs/swagger.json")))

	// --- Start Server ---
	listenAddr := fmt.Sprintf("%s:%s", cfg.ListenAddress, cfg.ListenPort)
	log.Printf("INFO: Starting server on %s", listenAddr)

	server := &http.Server{
		Addr:    listenAddr,
		Handler: router,
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("CRITICAL: Server failed to start: %v", err)
	}
}
