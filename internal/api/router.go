package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"frenzy-service/internal/middleware"
	"frenzy-service/internal/service"
	"frenzy-service/internal/service/engine"
	runsvc "frenzy-service/internal/service/run"
	usersvc "frenzy-service/internal/service/user"
	"frenzy-service/internal/ws"
	appErr "frenzy-service/pkg/errors"
	"frenzy-service/pkg/response"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	services *service.Container
}

func RegisterRoutes(r *gin.Engine, services *service.Container) {
	handler := &Handler{services: services}
	wsHandler := ws.NewHandler(services.Run)

	r.GET("/ping", func(c *gin.Context) {
		response.Success(c, gin.H{"message": "pong"})
	})

	v1 := r.Group("/frenzy/v1")
	{
		authGroup := v1.Group("/auth")
		{
			authGroup.POST("/register", handler.Register)
			authGroup.POST("/login", handler.Login)
		}

		v1.GET("/catalog/jokers", handler.ListJokers)
		v1.GET("/catalog/hands", handler.ListHands)
		v1.GET("/leaderboard", handler.Leaderboard)

		userGroup := v1.Group("/user")
		userGroup.Use(middleware.AuthRequired())
		{
			userGroup.GET("/profile", handler.GetProfile)
			userGroup.PUT("/profile", handler.UpdateProfile)
			userGroup.GET("/settings", handler.GetSettings)
			userGroup.PUT("/settings", handler.UpdateSettings)
			userGroup.GET("/stats", handler.GetStats)
			userGroup.GET("/rank", handler.GetRank)
		}

		runGroup := v1.Group("/runs")
		runGroup.Use(middleware.AuthRequired())
		{
			runGroup.POST("", handler.StartRun)
			runGroup.GET("/current", handler.CurrentRun)
			runGroup.POST("/resume", handler.ResumeRun)
			runGroup.DELETE("/current", handler.AbandonRun)
			runGroup.GET("/:id", handler.GetRunState)
			runGroup.POST("/:id/actions", handler.RunAction)
		}
	}

	adminGroup := r.Group("/admin")
	{
		adminGroup.POST("/auth/login", handler.AdminLogin)

		protected := adminGroup.Group("/")
		protected.Use(middleware.AdminAuthRequired())
		{
			protected.GET("/overview", handler.AdminOverview)
			protected.GET("/users", handler.AdminListUsers)
			protected.GET("/users/:id", handler.AdminGetUser)
			protected.PUT("/users/:id/ban", handler.AdminBanUser)
			protected.GET("/users/:id/stats", handler.AdminGetUserStats)
			protected.GET("/runs", handler.AdminListRuns)
		}
	}

	r.GET("/ws/run/:runId", wsHandler.HandleRunWS)
}

type registerBody struct {
	Email    string `json:"email" binding:"required"`
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type loginBody struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type startRunBody struct {
	Difficulty string `json:"difficulty" binding:"required"`
	DeckChoice string `json:"deckChoice"`
}

type runActionBody struct {
	Type string          `json:"type" binding:"required"`
	Data json.RawMessage `json:"data"`
}

type updateProfileBody struct {
	Nickname *string `json:"nickname"`
}

type adminLoginBody struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type adminUserBanBody struct {
	Status string `json:"status" binding:"required"`
	Reason string `json:"reason"`
}

func (h *Handler) Register(c *gin.Context) {
	var body registerBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Auth.Register(c.Request.Context(), body.Email, body.Username, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch err {
		case appErr.ErrInvalidEmail, appErr.ErrInvalidUsername, appErr.ErrWeakPassword:
			status = http.StatusBadRequest
		case appErr.ErrEmailTaken, appErr.ErrUsernameTaken:
			status = http.StatusConflict
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) Login(c *gin.Context) {
	var body loginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Auth.Login(c.Request.Context(), body.Email, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch err {
		case appErr.ErrInvalidCredentials:
			status = http.StatusUnauthorized
		case appErr.ErrTooManyAttempts:
			status = http.StatusTooManyRequests
		case appErr.ErrUserBanned:
			status = http.StatusForbidden
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) ListJokers(c *gin.Context) {
	jokers := engine.CatalogJokers()
	items := make([]gin.H, 0, len(jokers))
	for _, j := range jokers {
		items = append(items, gin.H{
			"id":          j.ID,
			"name":        j.Name,
			"description": j.Description,
			"cost":        j.Cost,
		})
	}
	response.Success(c, gin.H{"jokers": items})
}

func (h *Handler) ListHands(c *gin.Context) {
	categories := engine.Categories()
	items := make([]gin.H, 0, len(categories))
	for _, cat := range categories {
		value := engine.BaseValue(cat)
		items = append(items, gin.H{
			"hand":       cat,
			"chips":      value.Chips,
			"multiplier": value.Multiplier,
		})
	}
	response.Success(c, gin.H{"hands": items})
}

func (h *Handler) Leaderboard(c *gin.Context) {
	difficulty := strings.ToLower(strings.TrimSpace(c.Query("difficulty")))
	if difficulty != "" && !engine.ValidDifficulty(engine.Difficulty(difficulty)) {
		response.Error(c, http.StatusBadRequest, "invalid difficulty")
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			response.Error(c, http.StatusBadRequest, "invalid limit")
			return
		}
		limit = parsed
	}

	entries, err := h.services.Leaderboard.Top(c.Request.Context(), difficulty, limit)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"entries": entries})
}

func (h *Handler) GetRank(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	difficulty := strings.ToLower(strings.TrimSpace(c.Query("difficulty")))
	if difficulty != "" && !engine.ValidDifficulty(engine.Difficulty(difficulty)) {
		response.Error(c, http.StatusBadRequest, "invalid difficulty")
		return
	}

	entry, err := h.services.Leaderboard.Rank(c.Request.Context(), userID, difficulty)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	if entry == nil {
		response.Success(c, gin.H{"ranked": false})
		return
	}
	response.Success(c, gin.H{"ranked": true, "entry": entry})
}

func (h *Handler) GetStats(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	stats, err := h.services.Leaderboard.Stats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, stats)
}

func (h *Handler) GetProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}
	profile, err := h.services.User.GetProfile(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, appErr.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		response.Error(c, status, err.Error())
		return
	}
	response.Success(c, profile)
}

func (h *Handler) UpdateProfile(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body updateProfileBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	updated, err := h.services.User.UpdateProfile(c.Request.Context(), userID, usersvc.UpdateProfileRequest{
		Nickname: body.Nickname,
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, updated)
}

func (h *Handler) GetSettings(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	settings, err := h.services.User.GetSettings(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"settings": settings})
}

func (h *Handler) UpdateSettings(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var incoming usersvc.Settings
	if err := c.ShouldBindJSON(&incoming); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	settings, err := h.services.User.UpdateSettings(c.Request.Context(), userID, incoming)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, gin.H{"settings": settings})
}

func (h *Handler) StartRun(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	var body startRunBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	rt, err := h.services.Run.StartRun(c.Request.Context(), userID, body.Difficulty, body.DeckChoice)
	if err != nil {
		h.handleRunError(c, err)
		return
	}

	response.Success(c, rt.State())
}

func (h *Handler) CurrentRun(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	rec, err := h.services.Run.CurrentRun(c.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, appErr.ErrNoSavedRun) {
			response.Success(c, gin.H{"active": false})
			return
		}
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, gin.H{
		"active": true,
		"run": gin.H{
			"runId":      strconv.FormatInt(rec.ID, 10),
			"code":       rec.Code,
			"difficulty": rec.Difficulty,
			"deckChoice": rec.DeckChoice,
			"createdAt":  rec.CreatedAt,
		},
	})
}

func (h *Handler) ResumeRun(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	rt, err := h.services.Run.Resume(c.Request.Context(), userID)
	if err != nil {
		h.handleRunError(c, err)
		return
	}
	response.Success(c, rt.State())
}

func (h *Handler) AbandonRun(c *gin.Context) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return
	}

	if err := h.services.Run.Abandon(c.Request.Context(), userID); err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.SuccessWithMsg(c, gin.H{"status": "abandoned"}, "")
}

func (h *Handler) GetRunState(c *gin.Context) {
	rt, ok := h.authorizedRuntime(c)
	if !ok {
		return
	}
	response.Success(c, rt.State())
}

func (h *Handler) RunAction(c *gin.Context) {
	rt, ok := h.authorizedRuntime(c)
	if !ok {
		return
	}

	var body runActionBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	if err := rt.HandleAction(body.Type, body.Data); err != nil {
		h.handleRunError(c, err)
		return
	}
	response.Success(c, rt.State())
}

func (h *Handler) authorizedRuntime(c *gin.Context) (*runsvc.Runtime, bool) {
	userID, ok := getUserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, "unauthorized")
		return nil, false
	}

	runID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || runID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid run id")
		return nil, false
	}

	if err := h.services.Run.ValidateRunAccess(c.Request.Context(), userID, runID); err != nil {
		h.handleRunError(c, err)
		return nil, false
	}

	rt, err := h.services.Run.GetRuntime(c.Request.Context(), runID)
	if err != nil {
		h.handleRunError(c, err)
		return nil, false
	}
	return rt, true
}

func (h *Handler) AdminLogin(c *gin.Context) {
	var body adminLoginBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	resp, err := h.services.Admin.Login(c.Request.Context(), body.Username, body.Password)
	if err != nil {
		status := http.StatusInternalServerError
		switch err {
		case appErr.ErrAdminNotFound, appErr.ErrInvalidAdminPassword:
			status = http.StatusUnauthorized
		case appErr.ErrAdminDisabled:
			status = http.StatusForbidden
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, resp)
}

func (h *Handler) AdminOverview(c *gin.Context) {
	overview, err := h.services.Admin.Overview(c.Request.Context())
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, overview)
}

func (h *Handler) AdminListUsers(c *gin.Context) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	status := strings.ToLower(strings.TrimSpace(c.Query("status")))
	if status != "" && status != "normal" && status != "banned" {
		response.Error(c, http.StatusBadRequest, "invalid status filter")
		return
	}

	result, err := h.services.User.AdminListUsers(c.Request.Context(), usersvc.AdminListUsersFilter{
		Page:         page,
		Size:         size,
		Status:       status,
		EmailKeyword: strings.TrimSpace(c.Query("email")),
		Username:     strings.TrimSpace(c.Query("username")),
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, gin.H{
		"items": result.Items,
		"total": result.Total,
		"page":  page,
		"size":  size,
	})
}

func (h *Handler) AdminGetUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	user, err := h.services.User.AdminGetUser(c.Request.Context(), userID)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, appErr.ErrUserNotFound) {
			status = http.StatusNotFound
		}
		response.Error(c, status, err.Error())
		return
	}

	response.Success(c, gin.H{"user": user})
}

func (h *Handler) AdminBanUser(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	var body adminUserBanBody
	if err := c.ShouldBindJSON(&body); err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	status := strings.ToLower(strings.TrimSpace(body.Status))
	if status != "normal" && status != "banned" {
		response.Error(c, http.StatusBadRequest, "status must be 'normal' or 'banned'")
		return
	}

	updated, err := h.services.User.AdminUpdateUserStatus(c.Request.Context(), userID, status, body.Reason)
	if err != nil {
		statusCode := http.StatusInternalServerError
		switch {
		case errors.Is(err, appErr.ErrUserNotFound):
			statusCode = http.StatusNotFound
		case errors.Is(err, appErr.ErrInvalidUserStatus):
			statusCode = http.StatusBadRequest
		}
		response.Error(c, statusCode, err.Error())
		return
	}

	response.Success(c, gin.H{"user": updated})
}

func (h *Handler) AdminGetUserStats(c *gin.Context) {
	userID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || userID <= 0 {
		response.Error(c, http.StatusBadRequest, "invalid user id")
		return
	}

	stats, err := h.services.Leaderboard.Stats(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}
	response.Success(c, stats)
}

func (h *Handler) AdminListRuns(c *gin.Context) {
	page, err := parsePositiveIntQuery(c, "page", 1)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}
	size, err := parsePositiveIntQuery(c, "size", 20)
	if err != nil {
		response.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	var userID *int64
	if raw := strings.TrimSpace(c.Query("userId")); raw != "" {
		id, parseErr := strconv.ParseInt(raw, 10, 64)
		if parseErr != nil || id <= 0 {
			response.Error(c, http.StatusBadRequest, "invalid userId")
			return
		}
		userID = &id
	}

	result, err := h.services.Run.AdminListRuns(c.Request.Context(), runsvc.AdminListRunsFilter{
		Page:       page,
		Size:       size,
		Status:     c.Query("status"),
		Difficulty: c.Query("difficulty"),
		UserID:     userID,
	})
	if err != nil {
		response.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	response.Success(c, gin.H{
		"items": result.Items,
		"total": result.Total,
		"page":  page,
		"size":  size,
	})
}

func (h *Handler) handleRunError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, appErr.ErrRunNotFound), errors.Is(err, appErr.ErrNoSavedRun):
		response.Error(c, http.StatusNotFound, err.Error())
	case errors.Is(err, appErr.ErrRunAccessDenied):
		response.Error(c, http.StatusForbidden, err.Error())
	case errors.Is(err, appErr.ErrRunFinished):
		response.Error(c, http.StatusGone, err.Error())
	case errors.Is(err, appErr.ErrCorruptSavedRun):
		response.Error(c, http.StatusConflict, err.Error())
	case errors.Is(err, appErr.ErrInvalidDifficulty),
		errors.Is(err, appErr.ErrInvalidDeckChoice),
		errors.Is(err, appErr.ErrInvalidPhase),
		errors.Is(err, appErr.ErrNoSelection),
		errors.Is(err, appErr.ErrSelectionTooLarge),
		errors.Is(err, appErr.ErrInvalidCardIndex),
		errors.Is(err, appErr.ErrNoPlaysRemaining),
		errors.Is(err, appErr.ErrNoDiscardsRemaining),
		errors.Is(err, appErr.ErrJokerNotFound),
		errors.Is(err, appErr.ErrJokerNotOffered),
		errors.Is(err, appErr.ErrJokerSlotsFull),
		errors.Is(err, appErr.ErrJokerAlreadyOwned),
		errors.Is(err, appErr.ErrInsufficientCoins):
		response.Error(c, http.StatusBadRequest, err.Error())
	default:
		response.Error(c, http.StatusInternalServerError, err.Error())
	}
}

func parsePositiveIntQuery(c *gin.Context, key string, defaultVal int) (int, error) {
	val := c.Query(key)
	if val == "" {
		return defaultVal, nil
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return 0, errInvalidQuery(key)
	}
	return parsed, nil
}

func errInvalidQuery(key string) error {
	return errors.New("invalid " + key)
}

func getUserID(c *gin.Context) (int64, bool) {
	v, ok := c.Get(middleware.ContextUserIDKey)
	if !ok {
		return 0, false
	}
	id, ok := v.(int64)
	return id, ok
}
