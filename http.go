package auth

import (
	"net/http"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

const genericServerError = "An unexpected server error occurred"

// ErrorResponse is the JSON body for failed requests
type ErrorResponse struct {
	Error            string            `json:"error"`
	TextCode         string            `json:"text_code,omitempty"`
	Message          string            `json:"message"`
	ValidationErrors map[string]string `json:"validation_errors,omitempty"`
}

// RouteRegistrar is the part of router.Router the controllers mount on.
// Callers pass a group so the prefix stays with the application.
type RouteRegistrar interface {
	Get(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Post(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
	Delete(path string, handler router.HandlerFunc, mw ...router.MiddlewareFunc) router.RouteInfo
}

// SessionMiddleware requires a bearer session token and stores the
// organizer in the request store and context.
func SessionMiddleware(auther *Auther) router.MiddlewareFunc {
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			token := bearerToken(c.Header(router.HeaderAuthorization))
			if token == "" {
				return ErrInvalidSession
			}

			org, err := auther.OrganizerFromToken(c.Context(), token)
			if err != nil {
				return err
			}

			c.Set(ContextOrganizerKey, org)
			c.SetContext(WithContext(c.Context(), org))
			return next(c)
		}
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// ErrorMiddleware renders handler errors as JSON using the status carried
// by the error. Internal errors never expose their message. Install it with
// Use before any group is created so every route inherits it.
func ErrorMiddleware(logger Logger) router.MiddlewareFunc {
	logger = normalizeLogger(logger)
	return func(next router.HandlerFunc) router.HandlerFunc {
		return func(c router.Context) error {
			err := next(c)
			if err == nil {
				return nil
			}
			status, resp := errorResponse(err)

			if status >= http.StatusInternalServerError {
				logger.Error("request failed",
					"path", c.Path(),
					"method", c.Method(),
					"error", err.Error(),
				)
				resp.Message = genericServerError
			} else {
				logger.Debug("request rejected",
					"path", c.Path(),
					"status", status,
					"text_code", resp.TextCode,
				)
			}

			return c.JSON(status, resp)
		}
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	var routerErr *router.RouterError
	if errors.As(err, &routerErr) {
		return routerErr.Code, ErrorResponse{
			Error:   strings.ToLower(string(routerErr.Type)),
			Message: routerErr.Message,
		}
	}

	var richErr *errors.Error
	if !errors.As(err, &richErr) {
		richErr = errors.Wrap(err, errors.CategoryInternal, genericServerError).
			WithCode(errors.CodeInternal)
	}

	status := richErr.Code
	if status == 0 {
		status = statusForCategory(richErr.Category)
	}

	resp := ErrorResponse{
		Error:    richErr.Category.String(),
		TextCode: richErr.TextCode,
		Message:  richErr.Message,
	}
	if vm := richErr.ValidationMap(); len(vm) > 0 {
		resp.ValidationErrors = vm
	}
	return status, resp
}

func statusForCategory(cat errors.Category) int {
	switch cat {
	case errors.CategoryValidation, errors.CategoryBadInput:
		return http.StatusBadRequest
	case errors.CategoryAuth:
		return http.StatusUnauthorized
	case errors.CategoryAuthz:
		return http.StatusForbidden
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryConflict:
		return http.StatusConflict
	case errors.CategoryExternal:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
