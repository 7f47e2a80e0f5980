package httpapi

import (
	"errors"
	"net/http"

	"github.com/aws/smithy-go"
	"github.com/gin-gonic/gin"

	"github.com/qbiz-tools/qconsole/internal/identity"
	"github.com/qbiz-tools/qconsole/internal/session"
)

// writeError maps a domain error to a status code and a plain message body.
// Not-found sessions are 404, upstream AWS failures are 502, configuration
// problems and everything else are 500.
func writeError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, identity.ErrNoRoleConfigured),
		errors.Is(err, identity.ErrFederationNotConfigured):
		status = http.StatusInternalServerError
	default:
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			status = http.StatusBadGateway
		}
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

// missingField writes the standard required-field validation response.
func missingField(c *gin.Context, field string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": field + " is required"})
}
