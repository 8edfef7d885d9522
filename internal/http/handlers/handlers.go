package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/contractline/backend/internal/compliance"
	"github.com/contractline/backend/internal/db"
	"github.com/contractline/backend/internal/directory"
	"github.com/contractline/backend/internal/extract"
	"github.com/contractline/backend/internal/models"
	"github.com/contractline/backend/internal/phone"
	"github.com/contractline/backend/internal/service"
)

type Handler struct {
	Store     *db.Store
	Turns     *service.TurnService
	Extractor extract.Extractor
	Validator *validator.Validate
	Logger    zerolog.Logger
}

type WebhookRequest struct {
	CallSid      string `form:"CallSid" json:"call_sid" validate:"required"`
	From         string `form:"From" json:"from" validate:"required"`
	SpeechResult string `form:"SpeechResult" json:"speech_result"`
}

func (h *Handler) Healthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		writeError(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database unavailable", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary Process one voice webhook turn
// @Description Accepts the telephony platform's per-turn callback (form or JSON) and advances the conversation
// @Tags webhook
// @Accept x-www-form-urlencoded
// @Accept json
// @Produce json
// @Param CallSid formData string true "Call SID"
// @Param From formData string true "Caller phone number"
// @Param SpeechResult formData string false "Transcribed speech for this turn"
// @Success 200 {object} service.TurnResponse
// @Failure 400 {object} map[string]any
// @Router /webhook/voice [post]
func (h *Handler) Webhook(c *gin.Context) {
	var req WebhookRequest
	if err := c.ShouldBind(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	resp, err := h.Turns.ProcessTurn(c.Request.Context(), service.TurnRequest{
		CallSid:    req.CallSid,
		From:       req.From,
		Transcript: req.SpeechResult,
	})
	if err != nil {
		if errors.Is(err, phone.ErrInvalidPhone) {
			writeError(c, http.StatusBadRequest, "INVALID_PHONE_NUMBER", "Caller phone number could not be normalized", err.Error())
			return
		}
		h.Logger.Error().Err(err).Str("call_sid", req.CallSid).Msg("turn processing failed")
		writeError(c, http.StatusInternalServerError, "TURN_ERROR", "Failed to process turn", err.Error())
		return
	}
	c.JSON(http.StatusOK, resp)
}

// @Summary List caller directory entries
// @Tags directory
// @Produce json
// @Param repeat query bool false "Only repeat callers"
// @Param contact_method query string false "Filter by contact method (sms|email)"
// @Success 200 {object} map[string]any
// @Router /api/callers [get]
func (h *Handler) CallersList(c *gin.Context) {
	repeatOnly := c.Query("repeat") == "true"
	contactMethod := directory.SanitizeContactMethod(c.Query("contact_method"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	items, err := h.Store.ListCallers(c.Request.Context(), repeatOnly, contactMethod, limit, offset)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to list callers", err.Error())
		return
	}
	if items == nil {
		items = []models.CallerRecord{}
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": limit, "offset": offset})
}

// @Summary Get the persisted state of a call
// @Tags calls
// @Produce json
// @Param sid path string true "Call SID"
// @Success 200 {object} models.TurnState
// @Failure 404 {object} map[string]any
// @Router /api/calls/{sid}/state [get]
func (h *Handler) CallState(c *gin.Context) {
	sid := c.Param("sid")
	st, err := h.Store.GetCallState(c.Request.Context(), sid)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			writeError(c, http.StatusNotFound, "NOT_FOUND", "Call not found", nil)
			return
		}
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Failed to load call state", err.Error())
		return
	}
	c.JSON(http.StatusOK, st)
}

// @Summary Bootstrap the caller directory
// @Description Loads directory rows from a JSON array, accepting both row-array and keyed-object forms
// @Tags directory
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/directory/bootstrap [post]
func (h *Handler) Bootstrap(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Failed to read body", err.Error())
		return
	}
	var raw json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Body must be a JSON array", err.Error())
		return
	}

	callers := directory.DecodeCandidates(raw)
	if len(callers) == 0 {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "No decodable directory rows", nil)
		return
	}

	ctx := c.Request.Context()
	if err := h.Store.EnsureSchema(ctx); err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Schema setup failed", err.Error())
		return
	}
	inserted, err := h.Store.BulkInsertCallers(ctx, callers)
	if err != nil {
		writeError(c, http.StatusInternalServerError, "DB_ERROR", "Bulk insert failed", err.Error())
		return
	}
	h.Logger.Info().Int64("inserted", inserted).Msg("directory bootstrapped")
	c.JSON(http.StatusOK, gin.H{"decoded": len(callers), "inserted": inserted})
}

// @Summary Run the contract compliance check against a field snapshot
// @Tags debug
// @Accept json
// @Produce json
// @Success 200 {object} compliance.Result
// @Router /api/debug/compliance [post]
func (h *Handler) DebugCompliance(c *gin.Context) {
	var fields models.ExtractedFields
	if err := c.ShouldBindJSON(&fields); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	c.JSON(http.StatusOK, compliance.Check(fields))
}

type DebugExtractRequest struct {
	Transcript string `json:"transcript" validate:"required"`
}

// @Summary Run field extraction against a transcript
// @Tags debug
// @Accept json
// @Produce json
// @Success 200 {object} map[string]any
// @Router /api/debug/extract [post]
func (h *Handler) DebugExtract(c *gin.Context) {
	var req DebugExtractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, http.StatusBadRequest, "INVALID_REQUEST", "Invalid payload", err.Error())
		return
	}
	if err := h.Validator.Struct(req); err != nil {
		writeError(c, http.StatusBadRequest, "VALIDATION_ERROR", "Validation failed", err.Error())
		return
	}

	fields, latencyMs, err := h.Extractor.ExtractFields(c.Request.Context(), req.Transcript)
	if err != nil {
		writeError(c, http.StatusBadGateway, "EXTRACTION_ERROR", "Extraction failed", err.Error())
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"fields":     fields,
		"missing":    extract.Missing(fields),
		"latency_ms": latencyMs,
	})
}

func writeError(c *gin.Context, status int, code string, message string, details any) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
			"details": details,
		},
	})
}
