package idempotency

// Status values for processed-event markers
const (
	StatusInProgress = "IN_PROGRESS"
	StatusDone       = "DONE"
	StatusFailed     = "FAILED"
)

const (
	entityType = "PROCESSED_EVENT"
	keyPrefix  = "EVENT#"
	markerSK   = "PROCESSED"
)

// Record marks a lifecycle event as claimed or consumed by the worker. It
// lives in the ticket table next to the tickets it describes.
type Record struct {
	PK         string `dynamodbav:"PK"` // EVENT#<eventId>
	SK         string `dynamodbav:"SK"` // PROCESSED
	EntityType string `dynamodbav:"entityType"`
	EventID    string `dynamodbav:"eventId"`
	TicketID   string `dynamodbav:"ticketId,omitempty"`
	Status     string `dynamodbav:"status"`
	CreatedAt  string `dynamodbav:"createdAt"`
	UpdatedAt  string `dynamodbav:"updatedAt"`
	LeaseUntil int64  `dynamodbav:"leaseUntil"` // epoch seconds; an IN_PROGRESS claim past this may be taken over
	ExpiresAt  int64  `dynamodbav:"expiresAt"`  // TTL epoch seconds
	Note       string `dynamodbav:"note,omitempty"`
}
