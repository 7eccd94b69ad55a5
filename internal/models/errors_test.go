package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", NewNotFoundError("Post", 1), fiber.StatusNotFound},
		{"validation", NewValidationError("bad"), fiber.StatusBadRequest},
		{"validation failed", NewValidationFailedError([]string{"x"}), fiber.StatusUnprocessableEntity},
		{"invalid transition", NewInvalidTransitionError("edit", StatusPublished), fiber.StatusConflict},
		{"storage conflict", NewStorageConflictError(errors.New("version")), fiber.StatusConflict},
		{"classifier unavailable", NewClassifierUnavailableError(errors.New("timeout")), fiber.StatusServiceUnavailable},
		{"internal", NewInternalError(errors.New("boom")), fiber.StatusInternalServerError},
		{"plain error", errors.New("boom"), fiber.StatusInternalServerError},
		{"wrapped app error", fmt.Errorf("ctx: %w", NewNotFoundError("Post", 2)), fiber.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusFor(tt.err))
		})
	}
}

func TestRespondWithError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantCode    string
		wantReasons []string
		wantDetails string
	}{
		{
			name:        "validation failed carries reasons",
			err:         NewValidationFailedError([]string{"Content too short (minimum 50 characters)"}),
			wantCode:    CodeValidationFailed,
			wantReasons: []string{"Content too short (minimum 50 characters)"},
		},
		{
			name:        "classifier unavailable exposes cause",
			err:         NewClassifierUnavailableError(errors.New("timeout")),
			wantCode:    CodeClassifierUnavailable,
			wantDetails: "timeout",
		},
		{
			name:     "internal hides cause",
			err:      NewInternalError(errors.New("dsn=secret")),
			wantCode: CodeInternal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := fiber.New()
			app.Get("/", func(c *fiber.Ctx) error {
				return RespondWithError(c, StatusFor(tt.err), tt.err)
			})

			resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
			require.NoError(t, err)
			assert.Equal(t, StatusFor(tt.err), resp.StatusCode)

			body, _ := io.ReadAll(resp.Body)
			var got ErrorResponse
			require.NoError(t, json.Unmarshal(body, &got))
			assert.Equal(t, tt.wantCode, got.Code)
			assert.Equal(t, tt.wantReasons, got.Reasons)
			assert.Equal(t, tt.wantDetails, got.Details)
			assert.NotEmpty(t, got.Error)
		})
	}
}
