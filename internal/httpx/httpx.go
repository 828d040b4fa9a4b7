// Package httpx holds the request binding and error rendering shared by every
// HTTP handler.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/tap2go/tap2go/internal/ledger"
)

// Validator adapts validator/v10 to echo.Validator.
type Validator struct {
	v *validator.Validate
}

func NewValidator() *Validator {
	return &Validator{v: validator.New(validator.WithRequiredStructEnabled())}
}

func (cv *Validator) Validate(i interface{}) error {
	return cv.v.Struct(i)
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// Bind decodes the request into req and runs its validate tags. Failures come
// back as a validation error naming the offending fields.
func Bind(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return ledger.NewError(ledger.KindValidation, ledger.ErrInvalidInput.Code, "Malformed request body.")
	}
	if err := c.Validate(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			fields := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				fields = append(fields, fieldName(fe))
			}
			return ledger.NewError(ledger.KindValidation, ledger.ErrInvalidInput.Code,
				fmt.Sprintf("Missing or invalid fields: %s.", strings.Join(fields, ", ")))
		}
		return ledger.ErrInvalidInput
	}
	return nil
}

func fieldName(fe validator.FieldError) string {
	name := fe.Field()
	if name == "" {
		return fe.StructField()
	}
	return strings.ToLower(name[:1]) + name[1:]
}

// Status maps an error to its HTTP status code.
func Status(err error) int {
	var le *ledger.Error
	if !errors.As(err, &le) {
		return http.StatusInternalServerError
	}
	// The withdrawal surface reports these as client errors.
	if errors.Is(err, ledger.ErrInsufficientBalance) || errors.Is(err, ledger.ErrDuplicatePendingRequest) {
		return http.StatusBadRequest
	}
	switch le.Kind {
	case ledger.KindValidation:
		return http.StatusBadRequest
	case ledger.KindNotFound:
		return http.StatusNotFound
	case ledger.KindConflict:
		return http.StatusConflict
	case ledger.KindUnauthorized:
		return http.StatusUnauthorized
	case ledger.KindForbidden:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// WriteError renders err. Upstream failures are logged and hidden behind a
// generic body.
func WriteError(c echo.Context, log *zap.Logger, err error) error {
	status := Status(err)
	var le *ledger.Error
	if status == http.StatusInternalServerError || !errors.As(err, &le) {
		log.Error("request failed",
			zap.String("method", c.Request().Method),
			zap.String("route", c.Path()),
			zap.Error(err),
		)
		return c.JSON(http.StatusInternalServerError, ErrorBody{Error: "internal_error", Message: "Internal server error."})
	}
	return c.JSON(status, ErrorBody{Error: le.Code, Message: le.Message})
}

// ErrorHandler renders errors that escape handlers, including echo's own
// routing errors.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		var he *echo.HTTPError
		if errors.As(err, &he) {
			msg := http.StatusText(he.Code)
			if m, ok := he.Message.(string); ok {
				msg = m
			}
			code := strings.ReplaceAll(strings.ToLower(http.StatusText(he.Code)), " ", "_")
			_ = c.JSON(he.Code, ErrorBody{Error: code, Message: msg})
			return
		}
		_ = WriteError(c, log, err)
	}
}

// UserID returns the authenticated account id set by the auth middleware.
func UserID(c echo.Context) string {
	id, _ := c.Get("user_id").(string)
	return id
}

// Role returns the authenticated role set by the auth middleware.
func Role(c echo.Context) ledger.Role {
	r, _ := c.Get("role").(string)
	return ledger.Role(r)
}
