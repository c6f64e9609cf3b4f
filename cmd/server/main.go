package main

import (
	"log"
	"time"

	"github.com/gin-gonic/gin"

	"server-tracker/internal/api"
	"server-tracker/internal/config"
	"server-tracker/internal/database"
	"server-tracker/internal/models"
	"server-tracker/internal/scheduler"
	"server-tracker/internal/services"
	"server-tracker/internal/whm"
)

// initDefaultAdmin initializes the default admin account
func initDefaultAdmin(authService *services.AuthService) {
	db := database.GetDB()

	// Check if admin user already exists
	var existingUser models.User
	if err := db.Where("username = ?", "admin").First(&existingUser).Error; err == nil {
		log.Println("Admin account already exists")
		return
	}

	// Create default admin account (username: admin, password: admin123)
	hashedPassword, err := authService.HashPassword("admin123")
	if err != nil {
		log.Printf("Failed to hash default admin password: %v", err)
		return
	}

	admin := models.User{
		Username:  "admin",
		Password:  hashedPassword,
		Email:     "admin@example.com",
		IsActive:  true,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}

	if err := db.Create(&admin).Error; err != nil {
		log.Printf("Failed to create default admin account: %v", err)
		return
	}

	log.Println("Default admin account created (username: admin, password: admin123)")
}

// connectorFactory builds a per-server WHM client with the shared
// connection options
func connectorFactory(cfg *config.WHMConfig) services.ConnectorFactory {
	opts := whm.Options{
		Protocol:      cfg.Protocol,
		Username:      cfg.Username,
		Timeout:       cfg.ConnectionTimeoutDuration(),
		SkipTLSVerify: cfg.SkipTLSVerify,
	}

	return func(server *models.Server) services.Connector {
		token := ""
		if server.Token != nil {
			token = *server.Token
		}
		return whm.NewClient(server.Address, server.Port, token, opts)
	}
}

func main() {
	// Load configuration
	cfg, err := config.LoadConfig("config/config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database
	if err := database.InitDB(&cfg.Database); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	log.Println("Database initialized successfully")

	db := database.GetDB()

	// Initialize services
	notifyService := services.NewNotifyService(db, &cfg.Notifications, cfg.Tracker.AdminEmails)
	settingsService := services.NewSettingsService(db)
	trackerService := services.NewTrackerService(db, connectorFactory(&cfg.WHM), notifyService, &cfg.Tracker)
	authService := services.NewAuthService()

	// Initialize default admin account
	initDefaultAdmin(authService)

	// Initialize scheduler
	sched := scheduler.NewScheduler(trackerService)
	if cfg.Tracker.CheckInterval != "" {
		if err := sched.Start(cfg.Tracker.CheckInterval); err != nil {
			log.Fatalf("Failed to start scheduler: %v", err)
		}
		defer sched.Stop()
	}

	// Setup Gin
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()

	// Enable CORS
	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}
		c.Next()
	})

	// Setup API routes
	thresholds := models.DiskThresholds{
		Warning:  cfg.Tracker.DiskWarningPercent,
		Critical: cfg.Tracker.DiskCriticalPercent,
		Full:     cfg.Tracker.DiskFullPercent,
	}
	handler := api.NewHandler(trackerService, settingsService, authService, thresholds)
	api.SetupRoutes(r, handler)

	// Serve static files
	r.Static("/static", "./web/dist")

	// Serve frontend
	r.GET("/", func(c *gin.Context) {
		c.File("./web/dist/index.html")
	})

	// Start server
	addr := ":" + cfg.Server.Port
	log.Printf("Server starting on %s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}
