package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-application-tracker/internal/auth"
	"github.com/justsurfingit/job-application-tracker/internal/dtos"
	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/rotisserie/eris"
)

type CredentialHandler struct {
	Credentials *auth.CredentialStore
	now         func() time.Time
}

func NewCredentialHandler(creds *auth.CredentialStore) *CredentialHandler {
	return &CredentialHandler{Credentials: creds, now: time.Now}
}

// Login is POST /credentials: it persists the credential handed over by the
// login flow, replacing any earlier one for the same user and provider.
func (h *CredentialHandler) Login(c *gin.Context) {
	var req dtos.CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	cred := &models.Credential{
		UserID:       req.UserID,
		Provider:     models.Provider(req.Provider),
		AccessToken:  req.AccessToken,
		RefreshToken: req.RefreshToken,
		TokenType:    req.TokenType,
		Expiry:       req.Expiry,
	}
	if req.ExpiresIn > 0 {
		cred.Expiry = h.now().Add(time.Duration(req.ExpiresIn) * time.Second)
	}
	if err := h.Credentials.Save(c.Request.Context(), cred); err != nil {
		if eris.Is(err, auth.ErrCredentialInvalid) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save credential: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, dtos.CredentialResponse{
		UserID:   cred.UserID,
		Provider: string(cred.Provider),
		Expiry:   cred.Expiry,
	})
}

// Logout is DELETE /credentials/:user_id/:provider.
func (h *CredentialHandler) Logout(c *gin.Context) {
	provider, ok := models.ParseProvider(c.Param("provider"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown provider: " + c.Param("provider")})
		return
	}
	err := h.Credentials.Delete(c.Request.Context(), c.Param("user_id"), provider)
	if eris.Is(err, auth.ErrCredentialNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete credential: " + err.Error()})
		return
	}
	c.Status(http.StatusNoContent)
}
