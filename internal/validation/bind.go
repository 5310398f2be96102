package validation

import (
	"errors"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/apperrors"
	"github.com/imrishuroy/go-helpdesk-tickets/internal/tickets"
)

// BindAndValidate binds the JSON body into out and runs validation.
// Failures come back as InvalidInput errors for the error middleware to render.
func BindAndValidate(c *gin.Context, out any, v *validatorv10.Validate) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return apperrors.Wrap(err, apperrors.KindInvalidInput, "Invalid JSON body")
	}
	return validate(out, v)
}

// BindQueryAndValidate binds the query string into out and runs validation.
func BindQueryAndValidate(c *gin.Context, out any, v *validatorv10.Validate) error {
	if err := c.ShouldBindQuery(out); err != nil {
		return apperrors.Wrap(err, apperrors.KindInvalidInput, "Invalid query string")
	}
	return validate(out, v)
}

func validate(out any, v *validatorv10.Validate) error {
	err := v.Struct(out)
	if err == nil {
		return nil
	}
	var ve validatorv10.ValidationErrors
	if errors.As(err, &ve) && len(ve) > 0 {
		// first failing field, in declaration order
		return apperrors.Wrap(err, apperrors.KindInvalidInput, fieldMessage(ve[0]))
	}
	return apperrors.Wrap(err, apperrors.KindInvalidInput, "Invalid request")
}

func fieldMessage(fe validatorv10.FieldError) string {
	switch fe.Tag() {
	case tagTitle:
		return fmt.Sprintf("title is required and must be %d-%d characters", tickets.TitleMinLen, tickets.TitleMaxLen)
	case tagDescription:
		return fmt.Sprintf("description is required and must be %d-%d characters", tickets.DescriptionMinLen, tickets.DescriptionMaxLen)
	case tagStatus, "required":
		if fe.Field() == "Status" {
			return "Missing or invalid status. Use OPEN, IN_PROGRESS, or RESOLVED"
		}
	}
	return fmt.Sprintf("%s is invalid", strings.ToLower(fe.Field()))
}
