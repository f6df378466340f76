package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"rocket-rental/internal/domain"
	"rocket-rental/internal/service"
)

const maxFormMemory = 1 << 20

func (h *Handler) publicProfile(c *gin.Context) {
	username := c.Param("username")
	profile, err := h.profiles.GetPublicProfile(c.Request.Context(), username)
	if err != nil {
		if errors.Is(err, service.ErrUserNotFound) {
			_ = c.Error(userNotFound(username, err))
			return
		}
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) editableProfile(c *gin.Context) {
	profile, err := h.profiles.GetEditableProfile(c.Request.Context(), c.GetInt64(ctxUserID))
	if err != nil {
		_ = c.Error(err)
		return
	}
	c.JSON(http.StatusOK, profile)
}

func (h *Handler) updateProfile(c *gin.Context) {
	form, err := bindProfileForm(c)
	if err != nil {
		_ = c.Error(err)
		return
	}

	result, err := h.profiles.UpdateProfile(c.Request.Context(), c.GetInt64(ctxUserID), form)
	if err != nil {
		_ = c.Error(err)
		return
	}

	if result.Status == service.StatusSuccess {
		c.Redirect(http.StatusFound, result.RedirectTo)
		return
	}
	c.JSON(http.StatusBadRequest, result)
}

func (h *Handler) provision(c *gin.Context) {
	capability, err := domain.ParseCapability(c.Param("capability"))
	if err != nil {
		_ = c.Error(&AppError{Status: http.StatusNotFound, Message: "Not found", Cause: err})
		return
	}
	provisioner, ok := h.provisioners[capability]
	if !ok {
		_ = c.Error(fmt.Errorf("no provisioner registered for %s", capability))
		return
	}

	result, err := provisioner.Provision(c.Request.Context(), c.GetInt64(ctxUserID))
	if err != nil {
		_ = c.Error(err)
		return
	}

	status := http.StatusOK
	if result.Status != service.StatusSuccess {
		status = http.StatusInternalServerError
	}
	c.JSON(status, result)
}

// bindProfileForm coerces the request body by content type. Url-encoded is
// the fallback when no content type is given.
func bindProfileForm(c *gin.Context) (service.ProfileForm, error) {
	switch c.ContentType() {
	case gin.MIMEJSON:
		var body map[string]any
		if err := json.NewDecoder(c.Request.Body).Decode(&body); err != nil {
			return service.ProfileForm{}, fmt.Errorf("%w: decode json: %v", service.ErrInvalidFormShape, err)
		}
		if body == nil {
			return service.ProfileForm{}, fmt.Errorf("%w: body must be an object", service.ErrInvalidFormShape)
		}
		return service.ProfileFormFromJSON(body)
	case gin.MIMEMultipartPOSTForm:
		if err := c.Request.ParseMultipartForm(maxFormMemory); err != nil {
			return service.ProfileForm{}, fmt.Errorf("%w: parse multipart: %v", service.ErrInvalidFormShape, err)
		}
		return service.ProfileFormFromMultipart(c.Request.MultipartForm)
	default:
		if err := c.Request.ParseForm(); err != nil {
			return service.ProfileForm{}, fmt.Errorf("%w: parse form: %v", service.ErrInvalidFormShape, err)
		}
		return service.ProfileFormFromValues(c.Request.PostForm)
	}
}
