package validation

// CreateTicketRequest is the payload for POST /tickets.
type CreateTicketRequest struct {
	Title       string `json:"title" validate:"ticket_title"`             // 3..120 characters after trimming
	Description string `json:"description" validate:"ticket_description"` // 5..2000 characters after trimming
}

// TransitionRequest is the payload for PATCH /agent/tickets/:ticketId.
type TransitionRequest struct {
	Status string `json:"status" validate:"required,ticket_status"`
}

// ListByStatusQuery is the query string of GET /agent/tickets.
type ListByStatusQuery struct {
	Status string `form:"status" validate:"required,ticket_status"`
}
