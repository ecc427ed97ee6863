package middleware

import (
	"errors"
	"net/http"

	"contact-form-service/internal/delivery/http/response"
	"contact-form-service/pkg/apperror"
	"contact-form-service/pkg/logger"

	"github.com/gin-gonic/gin"
)

func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		// Check if there are errors appended to the context
		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		if c.Writer.Written() {
			// The handler already rendered its own error page.
			logger.Log.Error("Request failed after response was written",
				"request_id", c.GetString(response.RequestIDKey),
				"error", err,
			)
			return
		}

		var appErr *apperror.AppError
		if errors.As(err, &appErr) {
			if appErr.Err != nil {
				logger.Log.Warn("Request failed",
					"request_id", c.GetString(response.RequestIDKey),
					"status", appErr.Code,
					"error", appErr.Err,
				)
			}
			response.Error(c, appErr.Code, appErr.Message, appErr.Details)
			return
		}

		// SECURITY: Never expose internal error details to clients.
		logger.Log.Error("Internal Server Error",
			"request_id", c.GetString(response.RequestIDKey),
			"error", err,
		)
		response.Error(c, http.StatusInternalServerError, "An unexpected error occurred. Please try again later.", nil)
	}
}
