package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"rocket-rental/internal/service"
)

const genericFaultMessage = "Something went wrong"

// AppError is the only error shape the boundary renders. Status selects the
// response; EndSession clears the cookie and sends the caller home.
type AppError struct {
	Status     int
	Message    string
	EndSession bool
	Cause      error
}

func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

func badRequest(err error) *AppError {
	return &AppError{Status: http.StatusBadRequest, Message: err.Error(), Cause: err}
}

func unauthorized(err error) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Message: "Unauthorized", Cause: err}
}

func userNotFound(username string, err error) *AppError {
	return &AppError{
		Status:  http.StatusNotFound,
		Message: fmt.Sprintf("No user with the username %q exists", username),
		Cause:   err,
	}
}

// toAppError classifies a service error. Anything unrecognised is a fault.
func toAppError(err error) *AppError {
	var appErr *AppError
	switch {
	case errors.As(err, &appErr):
		return appErr
	case errors.Is(err, service.ErrInvalidFormShape):
		return badRequest(err)
	case errors.Is(err, service.ErrUnauthenticated):
		return &AppError{Status: http.StatusFound, Message: "session ended", EndSession: true, Cause: err}
	default:
		return &AppError{Status: http.StatusInternalServerError, Message: genericFaultMessage, Cause: err}
	}
}

func (h *Handler) errorBoundary() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		appErr := toAppError(c.Errors.Last().Err)
		logger := h.logger.WithField("request_id", c.GetString(ctxRequestID))

		if c.Writer.Written() {
			logger.Warnf("error after response was written: %v", appErr)
			return
		}

		switch {
		case appErr.EndSession:
			h.sessions.Terminate(c)
			c.Redirect(http.StatusFound, "/")
		case appErr.Status >= http.StatusInternalServerError:
			logger.WithField("path", c.Request.URL.Path).Errorf("unhandled error: %v", appErr.Cause)
			c.JSON(http.StatusInternalServerError, gin.H{"error": genericFaultMessage})
		default:
			c.JSON(appErr.Status, gin.H{"error": appErr.Message})
		}
	}
}
