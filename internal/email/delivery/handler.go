package delivery

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	emaildomain "email-agent-backend/internal/email/domain"
	emaildto "email-agent-backend/internal/email/dto"
	"email-agent-backend/internal/email/usecase"

	"github.com/gin-gonic/gin"
)

type EmailAgentHandler struct {
	connections usecase.ConnectionUsecase
	digests     usecase.DigestUsecase
}

func NewEmailAgentHandler(connections usecase.ConnectionUsecase, digests usecase.DigestUsecase) *EmailAgentHandler {
	return &EmailAgentHandler{
		connections: connections,
		digests:     digests,
	}
}

// Connect stores tokens obtained by a client-side OAuth flow
// POST /api/email-agent/connect
func (h *EmailAgentHandler) Connect(c *gin.Context) {
	var req emaildto.ConnectGmailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.connections.Connect(c.Request.Context(), c.GetString("userID"), req.AccessToken, req.RefreshToken, req.ExpiryDate); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, emaildto.ConnectGmailResponse{
		Success: true,
		Message: "Gmail account connected successfully",
	})
}

// Status GET /api/email-agent/status
func (h *EmailAgentHandler) Status(c *gin.Context) {
	status, err := h.connections.GetStatus(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}

// Run triggers a digest for the caller immediately
// POST /api/email-agent/run
func (h *EmailAgentHandler) Run(c *gin.Context) {
	digest, err := h.digests.RunDigest(c.Request.Context(), c.GetString("userID"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, digest)
}

// History GET /api/email-agent/digests?page=&limit=
func (h *EmailAgentHandler) History(c *gin.Context) {
	page := 1
	limit := 10

	if pageStr := c.Query("page"); pageStr != "" {
		if parsed, err := strconv.Atoi(pageStr); err == nil && parsed > 0 {
			page = parsed
		}
	}

	if limitStr := c.Query("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}

	resp, err := h.digests.GetDigestHistory(c.GetString("userID"), page, limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Details GET /api/email-agent/digests/:id
func (h *EmailAgentHandler) Details(c *gin.Context) {
	digest, err := h.digests.GetDigestDetails(c.GetString("userID"), c.Param("id"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, digest)
}

// Delete DELETE /api/email-agent/digests/:id
func (h *EmailAgentHandler) Delete(c *gin.Context) {
	if err := h.digests.DeleteDigest(c.GetString("userID"), c.Param("id")); err != nil {
		writeError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func writeError(c *gin.Context, err error) {
	var connErr *emaildomain.ConnectionError
	// ConnectionError wraps the verification failure, so it is matched before the sentinels it may carry
	switch {
	case errors.As(err, &connErr):
		c.JSON(http.StatusBadRequest, gin.H{"error": connErr.Error()})
	case errors.Is(err, emaildomain.ErrConnectionNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "No Gmail connection found. Please connect your Gmail account first."})
	case errors.Is(err, emaildomain.ErrConnectionInactive):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Gmail connection is inactive. Please reconnect your Gmail account."})
	case errors.Is(err, emaildomain.ErrAuthExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "Gmail authorization expired. Please reconnect your Gmail account."})
	case errors.Is(err, emaildomain.ErrDigestNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "digest not found"})
	default:
		log.Printf("[EmailAgent] Request %s %s failed: %v", c.Request.Method, c.FullPath(), err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}
