package http

import (
	"context"
	"errors"
	"net/http"

	"github.com/GriffinCanCode/stubterm/backend/internal/domain/registry"
	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/cipher"
	"github.com/GriffinCanCode/stubterm/backend/internal/protocol/codec"
	"github.com/GriffinCanCode/stubterm/backend/internal/providers/http/client"
	"github.com/GriffinCanCode/stubterm/backend/internal/providers/terminal"
	"github.com/gin-gonic/gin"
)

// statusFor maps an error to the HTTP status it is reported with.
func statusFor(err error) int {
	var (
		notFound  *registry.SessionNotFoundError
		dup       *registry.DuplicateShellError
		invalid   *registry.ValidationError
		bootstrap *terminal.BootstrapError
		transport *client.TransportError
		malformed *codec.MalformedResponseError
		crypto    *cipher.CryptoError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &dup):
		return http.StatusConflict
	case errors.As(err, &invalid):
		return http.StatusBadRequest
	case errors.As(err, &bootstrap):
		return http.StatusUnprocessableEntity
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &transport), errors.As(err, &malformed), errors.As(err, &crypto):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err with its mapped status.
func respondError(c *gin.Context, err error) {
	body := gin.H{"error": err.Error()}

	var dup *registry.DuplicateShellError
	if errors.As(err, &dup) {
		body["existing_id"] = dup.ExistingID
	}
	var invalid *registry.ValidationError
	if errors.As(err, &invalid) {
		body["field"] = invalid.Field
	}
	var bootstrap *terminal.BootstrapError
	if errors.As(err, &bootstrap) {
		body["missing"] = bootstrap.Missing
	}

	c.JSON(statusFor(err), body)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
}
