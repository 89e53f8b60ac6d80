package gateway

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/bizmatters/agent-builder/plan-wizard/internal/auth"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/export"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/models"
	"github.com/bizmatters/agent-builder/plan-wizard/internal/wizard"
)

// DefaultTokenTTL is the lifetime of issued tokens.
const DefaultTokenTTL = 24 * time.Hour

// Handler handles HTTP requests for the gateway layer
type Handler struct {
	sessions   *SessionManager
	hub        *Hub
	exporter   *export.Exporter
	users      auth.UserStore
	jwtManager *auth.JWTManager
	tokenTTL   time.Duration
	logger     *zap.Logger
}

// HandlerConfig wires a Handler.
type HandlerConfig struct {
	Sessions   *SessionManager
	Hub        *Hub
	Exporter   *export.Exporter
	Users      auth.UserStore
	JWTManager *auth.JWTManager
	TokenTTL   time.Duration
	Logger     *zap.Logger
}

// NewHandler creates a new gateway handler
func NewHandler(cfg HandlerConfig) *Handler {
	if cfg.Hub == nil {
		cfg.Hub = NewHub()
	}
	if cfg.TokenTTL <= 0 {
		cfg.TokenTTL = DefaultTokenTTL
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Handler{
		sessions:   cfg.Sessions,
		hub:        cfg.Hub,
		exporter:   cfg.Exporter,
		users:      cfg.Users,
		jwtManager: cfg.JWTManager,
		tokenTTL:   cfg.TokenTTL,
		logger:     cfg.Logger,
	}
}

// WizardResponse is a wizard snapshot together with its advisory progress.
type WizardResponse struct {
	wizard.Snapshot
	Progress *models.ProgressInfo `json:"progress,omitempty"`
}

// CommandErrorResponse reports a rejected command and the unchanged state.
type CommandErrorResponse struct {
	models.ErrorResponse
	Snapshot wizard.Snapshot `json:"snapshot"`
}

// Login godoc
// @Summary User login
// @Description Authenticate user and return JWT token
// @Tags auth
// @Accept json
// @Produce json
// @Param request body models.LoginRequest true "Login credentials"
// @Success 200 {object} models.LoginResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (h *Handler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request", Code: models.ErrCodeInvalidRequest})
		return
	}

	user, err := auth.Authenticate(c.Request.Context(), h.users, req.Email, req.Password)
	if errors.Is(err, auth.ErrInvalidCredentials) {
		h.logger.Warn("login rejected", zap.String("email", req.Email))
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid email or password", Code: models.ErrCodeUnauthorized})
		return
	}
	if err != nil {
		h.logger.Error("login failed", zap.String("email", req.Email), zap.Error(err))
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to sign in", Code: models.ErrCodeInternalError})
		return
	}

	token, expiresAt, err := h.jwtManager.GenerateToken(c.Request.Context(), user.ID, user.Email, h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{Error: "Failed to generate token", Code: models.ErrCodeInternalError})
		return
	}

	c.JSON(http.StatusOK, models.LoginResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      user.ToUserInfo(),
	})
}

// Refresh godoc
// @Summary Refresh token
// @Description Reissue a still-valid JWT with a fresh expiry
// @Tags auth
// @Produce json
// @Success 200 {object} models.RefreshResponse
// @Failure 401 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /auth/refresh [post]
func (h *Handler) Refresh(c *gin.Context) {
	token, expiresAt, err := h.jwtManager.RefreshToken(c.Request.Context(), auth.BearerToken(c), h.tokenTTL)
	if err != nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "Invalid or expired token", Code: models.ErrCodeUnauthorized})
		return
	}
	c.JSON(http.StatusOK, models.RefreshResponse{Token: token, ExpiresAt: expiresAt})
}

// ListWizards godoc
// @Summary List wizards
// @Description List every wizard with its ordered steps
// @Tags wizards
// @Produce json
// @Success 200 {array} models.WizardSummary
// @Security BearerAuth
// @Router /wizards [get]
func (h *Handler) ListWizards(c *gin.Context) {
	wizards := h.sessions.Catalog().Wizards()
	out := make([]models.WizardSummary, 0, len(wizards))
	for _, w := range wizards {
		steps := w.Definition.Registry.Steps()
		summary := models.WizardSummary{Kind: w.Kind, Title: w.Title, Steps: make([]models.StepSummary, len(steps))}
		for i, s := range steps {
			fields := s.Schema.Paths()
			if fields == nil {
				fields = []string{}
			}
			summary.Steps[i] = models.StepSummary{
				ID:       s.ID,
				Title:    s.Title,
				Order:    s.Order,
				Fields:   fields,
				Terminal: s.Terminal(),
			}
		}
		out = append(out, summary)
	}
	c.JSON(http.StatusOK, out)
}

// GetWizard godoc
// @Summary Get wizard state
// @Description Resume the caller's session in a wizard and return its snapshot
// @Tags wizards
// @Produce json
// @Param kind path string true "Wizard kind"
// @Success 200 {object} WizardResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /wizards/{kind} [get]
func (h *Handler) GetWizard(c *gin.Context) {
	userID := auth.UserID(c)
	kind := c.Param("kind")
	session, _, err := h.sessions.Get(c.Request.Context(), userID, kind)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, h.response(c, session.Snapshot()))
}

// Command godoc
// @Summary Dispatch wizard command
// @Description Apply edit, advance, back, goto or submit to the caller's session
// @Tags wizards
// @Accept json
// @Produce json
// @Param kind path string true "Wizard kind"
// @Param request body models.CommandRequest true "Command"
// @Success 200 {object} WizardResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} CommandErrorResponse
// @Failure 422 {object} CommandErrorResponse
// @Failure 502 {object} CommandErrorResponse
// @Failure 503 {object} CommandErrorResponse
// @Security BearerAuth
// @Router /wizards/{kind}/commands [post]
func (h *Handler) Command(c *gin.Context) {
	var req models.CommandRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid request", Code: models.ErrCodeInvalidRequest})
		return
	}
	cmd, err := toCommand(req)
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Code: models.ErrCodeInvalidRequest})
		return
	}

	userID := auth.UserID(c)
	kind := c.Param("kind")
	session, _, err := h.sessions.Get(c.Request.Context(), userID, kind)
	if err != nil {
		h.respondError(c, err)
		return
	}

	snap, err := session.Dispatch(c.Request.Context(), cmd)
	if err != nil {
		status, body := errorBody(err)
		if status >= http.StatusInternalServerError || status == http.StatusUnauthorized {
			h.logger.Warn("command failed",
				zap.String("wizard", kind),
				zap.String("command", req.Type),
				zap.String("user_id", userID),
				zap.Error(err))
		}
		c.JSON(status, CommandErrorResponse{ErrorResponse: body, Snapshot: snap})
		return
	}
	if req.Type != models.CommandEdit {
		h.hub.Publish(snap)
	}
	c.JSON(http.StatusOK, h.response(c, snap))
}

// Export godoc
// @Summary Export a section
// @Description Render one section, or the whole plan from the review index, and store it
// @Tags wizards
// @Produce json
// @Param kind path string true "Wizard kind"
// @Param index path int true "Step index"
// @Param format query string false "markdown or html" default(markdown)
// @Success 200 {object} models.ExportResponse
// @Failure 400 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Failure 503 {object} models.ErrorResponse
// @Security BearerAuth
// @Router /wizards/{kind}/exports/{index} [post]
func (h *Handler) Export(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: "Invalid section index", Code: models.ErrCodeInvalidRequest})
		return
	}
	format, err := export.ParseFormat(c.DefaultQuery("format", string(export.FormatMarkdown)))
	if err != nil {
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Code: models.ErrCodeInvalidRequest})
		return
	}
	if h.exporter == nil {
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Export is not available", Code: models.ErrCodeExportUnavailable})
		return
	}

	userID := auth.UserID(c)
	kind := c.Param("kind")
	session, w, err := h.sessions.Get(c.Request.Context(), userID, kind)
	if err != nil {
		h.respondError(c, err)
		return
	}

	var tracker export.DownloadTracker
	if t := h.sessions.Tracker(userID, kind); t != nil {
		tracker = t
	}
	art, err := h.exporter.Export(c.Request.Context(), export.Request{
		Title:    w.Title,
		Registry: session.Registry(),
		Snapshot: session.Snapshot(),
		Index:    index,
		Format:   format,
	}, tracker)
	switch {
	case errors.Is(err, export.ErrReviewIncomplete):
		c.JSON(http.StatusConflict, models.ErrorResponse{Error: err.Error(), Code: models.ErrCodeExportUnavailable})
		return
	case errors.Is(err, export.ErrNotExportable):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{Error: err.Error(), Code: models.ErrCodeInvalidRequest})
		return
	case err != nil:
		c.JSON(http.StatusServiceUnavailable, models.ErrorResponse{Error: "Failed to export. Please try again.", Code: models.ErrCodeExportUnavailable})
		return
	}

	c.JSON(http.StatusOK, models.ExportResponse{
		Key:         art.Key,
		Index:       art.Index,
		StepID:      art.StepID,
		Format:      string(art.Format),
		ContentType: art.ContentType,
		Content:     art.Content,
		CreatedAt:   art.CreatedAt,
	})
}

func (h *Handler) response(c *gin.Context, snap wizard.Snapshot) WizardResponse {
	resp := WizardResponse{Snapshot: snap}
	tracker := h.sessions.Tracker(snap.UserID, snap.Wizard)
	if tracker == nil {
		return resp
	}
	if p, ok := tracker.Progress(c.Request.Context()); ok {
		resp.Progress = &models.ProgressInfo{
			LastActiveSection:   p.LastActiveSection,
			CompletedSections:   nonNil(p.CompletedSections),
			DownloadedArtifacts: nonNil(p.DownloadedArtifacts),
			IsComplete:          p.IsComplete,
		}
	}
	return resp
}

func nonNil(s []int) []int {
	if s == nil {
		return []int{}
	}
	return s
}
