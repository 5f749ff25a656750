package votes

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/guild-portal/backend/internal/middleware"
	"github.com/guild-portal/backend/pkg/response"
)

// CreateQuestionRequest is the body for POST /votes/questions.
type CreateQuestionRequest struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	EligibleAccountIDs []string `json:"eligibleAccountIds"`
	IsActive           bool     `json:"isActive"`
	ClosesAt           string   `json:"closesAt"`
}

// SetEligibilityRequest is the body for PUT /votes/questions/:id/eligibility.
type SetEligibilityRequest struct {
	AccountIDs []string `json:"accountIds"`
}

// CastVoteRequest is the body for POST /votes/questions/:id/ballot.
type CastVoteRequest struct {
	OptionID string `json:"optionId"`
}

// Handler handles voting HTTP endpoints.
type Handler struct {
	svc    *Service
	logger *zap.Logger
}

// NewHandler creates a votes handler.
func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	return &Handler{svc: svc, logger: logger}
}

// fail writes err as an envelope. Unclassified errors were already logged by
// the service and are reported as internal_error.
func (h *Handler) fail(c *gin.Context, err error) {
	status, code, ok := Classify(err)
	if !ok {
		if ctxErr := c.Request.Context().Err(); ctxErr != nil {
			h.logger.Warn("request cancelled", zap.String("route", c.FullPath()), zap.Error(ctxErr))
		}
		response.Internal(c)
		return
	}
	response.Fail(c, status, code)
}

func questionID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, ErrInvalidQuestionID.Error())
		return uuid.Nil, false
	}
	return id, true
}

func parseAccountIDs(raw []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(raw))
	for _, s := range raw {
		id, err := uuid.Parse(strings.TrimSpace(s))
		if err != nil || id == uuid.Nil {
			return nil, ErrInvalidAccountIDs
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// Create handles POST /votes/questions (admin).
func (h *Handler) Create(c *gin.Context) {
	var req CreateQuestionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidRequest)
		return
	}
	ids, err := parseAccountIDs(req.EligibleAccountIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	var closesAt *time.Time
	if s := strings.TrimSpace(req.ClosesAt); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			h.fail(c, ErrInvalidClosesAt)
			return
		}
		closesAt = &t
	}

	creator, _, _ := middleware.CurrentAccount(c)
	q, err := h.svc.CreateQuestion(c.Request.Context(), creator, CreateQuestionInput{
		Question:           req.Question,
		Options:            req.Options,
		EligibleAccountIDs: ids,
		Activate:           req.IsActive,
		ClosesAt:           closesAt,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, q)
}

// Get handles GET /votes/questions/:id (admin).
func (h *Handler) Get(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	q, err := h.svc.GetQuestion(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, q)
}

// Activate handles POST /votes/questions/:id/activate (admin).
func (h *Handler) Activate(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	q, err := h.svc.ActivateQuestion(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, q)
}

// Close handles POST /votes/questions/:id/close (admin).
func (h *Handler) Close(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	q, err := h.svc.CloseQuestion(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, q)
}

// Delete handles DELETE /votes/questions/:id (admin).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	if err := h.svc.DeleteQuestion(c.Request.Context(), id); err != nil {
		h.fail(c, err)
		return
	}
	response.Done(c)
}

// SetEligibility handles PUT /votes/questions/:id/eligibility (admin).
func (h *Handler) SetEligibility(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	var req SetEligibilityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidRequest)
		return
	}
	ids, err := parseAccountIDs(req.AccountIDs)
	if err != nil {
		h.fail(c, err)
		return
	}
	if err := h.svc.SetEligibility(c.Request.Context(), id, ids); err != nil {
		h.fail(c, err)
		return
	}
	response.Done(c)
}

// GetEligibility handles GET /votes/questions/:id/eligibility (admin).
func (h *Handler) GetEligibility(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	list, err := h.svc.GetEligibility(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"items": list})
}

// Cast handles POST /votes/questions/:id/ballot (signed in).
func (h *Handler) Cast(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	accountID, _, ok := middleware.CurrentAccount(c)
	if !ok {
		response.Unauthorized(c, response.CodeUnauthenticated)
		return
	}
	var req CastVoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, response.CodeInvalidRequest)
		return
	}
	raw := strings.TrimSpace(req.OptionID)
	if raw == "" {
		h.fail(c, ErrOptionRequired)
		return
	}
	optionID, err := uuid.Parse(raw)
	if err != nil {
		h.fail(c, ErrInvalidOptionID)
		return
	}
	if err := h.svc.CastVote(c.Request.Context(), id, accountID, optionID); err != nil {
		h.fail(c, err)
		return
	}
	response.Done(c)
}

// Active handles GET /votes/active. Anonymous callers see the question only.
func (h *Handler) Active(c *gin.Context) {
	accountID, _, _ := middleware.CurrentAccount(c)
	view, err := h.svc.ActiveQuestion(c.Request.Context(), accountID)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, view)
}

// Results handles GET /votes/questions/:id/results (admin).
func (h *Handler) Results(c *gin.Context) {
	id, ok := questionID(c)
	if !ok {
		return
	}
	res, err := h.svc.Results(c.Request.Context(), id)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, res)
}

// History handles GET /votes/history (admin).
func (h *Handler) History(c *gin.Context) {
	items, err := h.svc.History(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, gin.H{"items": items})
}
