package validation

import (
	validatorv10 "github.com/go-playground/validator/v10"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/tickets"
)

// Custom tags. They delegate to the ticket rules so the HTTP layer and the
// engine can never disagree on what is valid.
const (
	tagTitle       = "ticket_title"
	tagDescription = "ticket_description"
	tagStatus      = "ticket_status"
)

// New returns a validator with the ticket tags registered.
func New() *validatorv10.Validate {
	v := validatorv10.New()

	// registration only fails for an empty tag or nil func
	_ = v.RegisterValidation(tagTitle, func(fl validatorv10.FieldLevel) bool {
		return tickets.ValidateTitle(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation(tagDescription, func(fl validatorv10.FieldLevel) bool {
		return tickets.ValidateDescription(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation(tagStatus, func(fl validatorv10.FieldLevel) bool {
		return tickets.IsValidStatus(fl.Field().String())
	})

	return v
}
