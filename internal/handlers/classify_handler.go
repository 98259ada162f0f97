package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/justsurfingit/job-application-tracker/internal/auth"
	"github.com/justsurfingit/job-application-tracker/internal/dtos"
	"github.com/justsurfingit/job-application-tracker/internal/mailsource"
	"github.com/justsurfingit/job-application-tracker/internal/models"
	"github.com/justsurfingit/job-application-tracker/internal/services"
	"github.com/rotisserie/eris"
	"golang.org/x/oauth2"
)

type ClassifyHandler struct {
	Classifier  *services.ClassificationService
	Credentials *auth.CredentialStore
}

func NewClassifyHandler(cls *services.ClassificationService, creds *auth.CredentialStore) *ClassifyHandler {
	return &ClassifyHandler{Classifier: cls, Credentials: creds}
}

// Classify is POST /classify. The bearer token in the Authorization header
// wins; without one the credential stored at login is used.
func (h *ClassifyHandler) Classify(c *gin.Context) {
	var req dtos.ClassifyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON format: " + err.Error()})
		return
	}
	provider, ok := models.ParseProvider(req.Provider)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unknown provider: " + req.Provider})
		return
	}

	token := bearerToken(c.GetHeader("Authorization"))
	if token == nil {
		cred, err := h.Credentials.Get(c.Request.Context(), req.UserID, provider)
		if err != nil {
			writeError(c, err)
			return
		}
		token = cred.Token()
	}

	q := h.Classifier.Query
	if req.LookbackDays > 0 {
		q.LookbackDays = req.LookbackDays
	}
	if req.MaxResults > 0 {
		q.MaxResults = req.MaxResults
	}

	summary, err := h.Classifier.RunQuery(c.Request.Context(), req.UserID, provider, token, q)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

func bearerToken(header string) *oauth2.Token {
	scheme, value, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return nil
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &oauth2.Token{AccessToken: value, TokenType: "Bearer"}
}

// writeError maps pipeline errors onto HTTP statuses.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	var fetchErr *mailsource.FetchError
	switch {
	case eris.Is(err, auth.ErrCredentialNotFound), eris.Is(err, auth.ErrCredentialInvalid):
		status = http.StatusUnauthorized
	case errors.As(err, &fetchErr):
		status = http.StatusBadGateway
		if fetchErr.Unauthorized() {
			status = http.StatusUnauthorized
		}
	case eris.Is(err, mailsource.ErrNoSource):
		status = http.StatusBadRequest
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
