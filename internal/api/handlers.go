package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"server-tracker/internal/database"
	"server-tracker/internal/models"
	"server-tracker/internal/services"
)

// Handler holds service dependencies
type Handler struct {
	trackerService  *services.TrackerService
	settingsService *services.SettingsService
	authService     *services.AuthService
	thresholds      models.DiskThresholds
}

// NewHandler creates a new API handler
func NewHandler(trackerService *services.TrackerService, settingsService *services.SettingsService, authService *services.AuthService, thresholds models.DiskThresholds) *Handler {
	return &Handler{
		trackerService:  trackerService,
		settingsService: settingsService,
		authService:     authService,
		thresholds:      thresholds,
	}
}

// SetupRoutes configures all API routes
func SetupRoutes(r *gin.Engine, handler *Handler) {
	api := r.Group("/api/v1")
	{
		// Authentication
		api.POST("/auth/login", handler.Login)
		api.POST("/auth/validate", handler.ValidateToken)
		api.POST("/auth/change-password", handler.ChangePassword)

		// Server management
		api.GET("/servers", handler.ListServers)
		api.POST("/servers", handler.CreateServer)
		api.POST("/servers/refresh", handler.RefreshAllServers)
		api.GET("/servers/:id", handler.GetServer)
		api.PUT("/servers/:id", handler.UpdateServer)
		api.DELETE("/servers/:id", handler.DeleteServer)
		api.POST("/servers/:id/refresh", handler.RefreshServer)
		api.GET("/servers/:id/accounts", handler.ListServerAccounts)
		api.GET("/servers/:id/settings", handler.GetServerSettings)

		// Accounts across the fleet
		api.GET("/accounts", handler.ListAccounts)

		// Dashboard statistics
		api.GET("/dashboard/stats", handler.GetStats)

		// Notifications
		api.GET("/notifications", handler.ListNotifications)
	}
}

// serverView augments a server row with its derived display attributes.
// The server's Settings must be preloaded.
func (h *Handler) serverView(server *models.Server, accountCount int64) gin.H {
	return gin.H{
		"id":                    server.ID,
		"name":                  server.Name,
		"address":               server.Address,
		"port":                  server.Port,
		"server_type":           server.ServerType,
		"notes":                 server.Notes,
		"details_last_updated":  server.DetailsLastUpdated,
		"accounts_last_updated": server.AccountsLastUpdated,
		"created_at":            server.CreatedAt,
		"updated_at":            server.UpdatedAt,
		"accounts_count":        accountCount,
		"formatted_server_type": server.FormattedServerType(),
		"formatted_backup_days": server.FormattedBackupDays(),
		"formatted_disk_used":   server.FormattedDiskUsed(),
		"formatted_disk_avail":  server.FormattedDiskAvailable(),
		"formatted_disk_total":  server.FormattedDiskTotal(),
		"formatted_php_version": server.FormattedPHPVersion(),
		"missing_token":         server.MissingToken(),
		"can_refresh_data":      server.CanRefreshData(),
		"whm_url":               server.WhmURL(),
		"disk_severity":         server.DiskSeverity(h.thresholds),
	}
}

// accountView augments an account row with its derived display attributes
func (h *Handler) accountView(account *models.Account) gin.H {
	return gin.H{
		"id":                   account.ID,
		"server_id":            account.ServerID,
		"user":                 account.User,
		"domain":               account.Domain,
		"ip":                   account.IP,
		"backup":               account.Backup,
		"suspended":            account.Suspended,
		"suspend_reason":       account.SuspendReason,
		"suspend_time":         account.SuspendTime,
		"setup_date":           account.SetupDate,
		"disk_used":            account.DiskUsed,
		"disk_limit":           account.DiskLimit,
		"plan":                 account.Plan,
		"formatted_disk_used":  account.FormattedDiskUsed(),
		"formatted_disk_limit": account.FormattedDiskLimit(),
		"disk_percentage":      account.DiskPercentage(),
		"disk_severity":        account.DiskSeverity(h.thresholds),
	}
}

// ListServers retrieves all servers, optionally filtered by a name/notes search
func (h *Handler) ListServers(c *gin.Context) {
	db := database.GetDB()

	query := db.Preload("Settings").Order("name asc")
	if search := c.Query("q"); search != "" {
		like := "%" + search + "%"
		query = query.Where("name LIKE ? OR notes LIKE ?", like, like)
	}

	var servers []models.Server
	if err := query.Find(&servers).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(servers))
	for i := range servers {
		var count int64
		db.Model(&models.Account{}).Where("server_id = ?", servers[i].ID).Count(&count)
		views = append(views, h.serverView(&servers[i], count))
	}

	c.JSON(http.StatusOK, views)
}

// CreateServer adds a new server
func (h *Handler) CreateServer(c *gin.Context) {
	var req struct {
		Name       string  `json:"name" binding:"required"`
		Address    string  `json:"address" binding:"required"`
		Port       int     `json:"port"`
		ServerType string  `json:"server_type" binding:"required"`
		Token      *string `json:"token"`
		Notes      string  `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	switch req.ServerType {
	case models.ServerTypeVPS, models.ServerTypeDedicated, models.ServerTypeReseller:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid server type"})
		return
	}

	if req.Port == 0 {
		req.Port = 2087
	}

	server := models.Server{
		Name:       req.Name,
		Address:    req.Address,
		Port:       req.Port,
		ServerType: req.ServerType,
		Token:      req.Token,
		Notes:      req.Notes,
	}

	db := database.GetDB()
	if err := db.Create(&server).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	// Pull data for the new server right away when it is eligible
	if server.CanRefreshData() {
		go func(id uint) {
			if err := h.trackerService.RefreshServer(id); err != nil {
				// surfaced through stale timestamps; nothing to do here
				_ = err
			}
		}(server.ID)
	}

	c.JSON(http.StatusCreated, h.serverView(&server, 0))
}

// GetServer retrieves a single server
func (h *Handler) GetServer(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid server ID"})
		return
	}

	db := database.GetDB()

	var server models.Server
	if err := db.Preload("Settings").First(&server, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	var count int64
	db.Model(&models.Account{}).Where("server_id = ?", server.ID).Count(&count)

	c.JSON(http.StatusOK, h.serverView(&server, count))
}

// UpdateServer updates a server's connection details
func (h *Handler) UpdateServer(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid server ID"})
		return
	}

	db := database.GetDB()

	var server models.Server
	if err := db.Preload("Settings").First(&server, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	var req struct {
		Name       *string `json:"name"`
		Address    *string `json:"address"`
		Port       *int    `json:"port"`
		ServerType *string `json:"server_type"`
		Token      *string `json:"token"`
		Notes      *string `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.Name != nil {
		server.Name = *req.Name
	}
	if req.Address != nil {
		server.Address = *req.Address
	}
	if req.Port != nil {
		server.Port = *req.Port
	}
	if req.ServerType != nil {
		switch *req.ServerType {
		case models.ServerTypeVPS, models.ServerTypeDedicated, models.ServerTypeReseller:
			server.ServerType = *req.ServerType
		default:
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid server type"})
			return
		}
	}
	if req.Token != nil {
		server.Token = req.Token
	}
	if req.Notes != nil {
		server.Notes = *req.Notes
	}

	server.UpdatedAt = time.Now()

	if err := db.Save(&server).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	var count int64
	db.Model(&models.Account{}).Where("server_id = ?", server.ID).Count(&count)

	c.JSON(http.StatusOK, h.serverView(&server, count))
}

// DeleteServer removes a server and everything it owns
func (h *Handler) DeleteServer(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid server ID"})
		return
	}

	db := database.GetDB()

	var server models.Server
	if err := db.First(&server, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	if err := h.trackerService.DeleteServer(server.ID); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Server deleted successfully"})
}

// RefreshServer manually refreshes one server's remote data
func (h *Handler) RefreshServer(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid server ID"})
		return
	}

	if err := h.trackerService.RefreshServer(uint(id)); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, services.ErrRefreshNotAllowed) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	db := database.GetDB()

	var server models.Server
	if err := db.Preload("Settings").First(&server, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	var count int64
	db.Model(&models.Account{}).Where("server_id = ?", server.ID).Count(&count)

	c.JSON(http.StatusOK, h.serverView(&server, count))
}

// RefreshAllServers kicks off a fleet-wide refresh in the background
func (h *Handler) RefreshAllServers(c *gin.Context) {
	go func() {
		if err := h.trackerService.RefreshAll(); err != nil {
			_ = err
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"message": "Refresh started"})
}

// ListServerAccounts retrieves the accounts owned by one server
func (h *Handler) ListServerAccounts(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid server ID"})
		return
	}

	db := database.GetDB()

	var server models.Server
	if err := db.First(&server, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	var accounts []models.Account
	if err := db.Where("server_id = ?", server.ID).Order("user asc").Find(&accounts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(accounts))
	for i := range accounts {
		views = append(views, h.accountView(&accounts[i]))
	}

	c.JSON(http.StatusOK, views)
}

// ListAccounts retrieves accounts across all servers, optionally filtered
func (h *Handler) ListAccounts(c *gin.Context) {
	db := database.GetDB()

	query := db.Order("user asc")
	if search := c.Query("q"); search != "" {
		like := "%" + search + "%"
		query = query.Where("user LIKE ? OR domain LIKE ?", like, like)
	}
	if suspended := c.Query("suspended"); suspended != "" {
		query = query.Where("suspended = ?", suspended == "true")
	}

	var accounts []models.Account
	if err := query.Find(&accounts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	views := make([]gin.H, 0, len(accounts))
	for i := range accounts {
		views = append(views, h.accountView(&accounts[i]))
	}

	c.JSON(http.StatusOK, views)
}

// GetServerSettings retrieves the raw settings bag for one server
func (h *Handler) GetServerSettings(c *gin.Context) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 32)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid server ID"})
		return
	}

	db := database.GetDB()

	var server models.Server
	if err := db.First(&server, id).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Server not found"})
		return
	}

	settings, err := h.settingsService.All(server.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, settings)
}

// GetStats retrieves dashboard statistics
func (h *Handler) GetStats(c *gin.Context) {
	db := database.GetDB()

	var totalServers int64
	db.Model(&models.Server{}).Count(&totalServers)

	var refreshable int64
	db.Model(&models.Server{}).
		Where("server_type <> ? AND token IS NOT NULL", models.ServerTypeReseller).
		Count(&refreshable)

	var totalAccounts int64
	db.Model(&models.Account{}).Count(&totalAccounts)

	var suspendedAccounts int64
	db.Model(&models.Account{}).Where("suspended = ?", true).Count(&suspendedAccounts)

	c.JSON(http.StatusOK, gin.H{
		"servers":            totalServers,
		"refreshable":        refreshable,
		"accounts":           totalAccounts,
		"suspended_accounts": suspendedAccounts,
	})
}

// ListNotifications retrieves notification history
func (h *Handler) ListNotifications(c *gin.Context) {
	db := database.GetDB()

	var notifications []models.Notification
	if err := db.Order("sent_at desc").Limit(100).Find(&notifications).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, notifications)
}

// Login handles user login
func (h *Handler) Login(c *gin.Context) {
	var loginReq struct {
		Username string `json:"username" binding:"required"`
		Password string `json:"password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&loginReq); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Username and password are required"})
		return
	}

	db := database.GetDB()

	var user models.User
	if err := db.Where("username = ?", loginReq.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	if !user.IsActive {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is disabled"})
		return
	}

	if !h.authService.CheckPassword(user.Password, loginReq.Password) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	token, err := h.authService.GenerateToken(&user)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"token": token,
		"user": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
		},
	})
}

// ValidateToken validates a JWT token
func (h *Handler) ValidateToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Token is required"})
		return
	}

	claims, err := h.authService.ValidateToken(req.Token)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"valid": true,
		"user": gin.H{
			"id":       claims.UserID,
			"username": claims.Username,
		},
	})
}

// ChangePassword handles password change
func (h *Handler) ChangePassword(c *gin.Context) {
	var req struct {
		Username    string `json:"username" binding:"required"`
		OldPassword string `json:"old_password" binding:"required"`
		NewPassword string `json:"new_password" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "All fields are required"})
		return
	}

	if len(req.NewPassword) < 6 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "New password must be at least 6 characters"})
		return
	}

	db := database.GetDB()

	var user models.User
	if err := db.Where("username = ?", req.Username).First(&user).Error; err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	if !h.authService.CheckPassword(user.Password, req.OldPassword) {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid username or password"})
		return
	}

	hashedPassword, err := h.authService.HashPassword(req.NewPassword)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user.Password = hashedPassword
	user.UpdatedAt = time.Now()

	if err := db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Password changed, please log in with the new password"})
}
