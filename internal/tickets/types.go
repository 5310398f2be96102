package tickets

import "time"

// Status is the lifecycle state of a ticket.
type Status string

const (
	StatusOpen       Status = "OPEN"
	StatusInProgress Status = "IN_PROGRESS"
	StatusResolved   Status = "RESOLVED"
)

// Item families stored in the single table.
const (
	EntityTicket      = "TICKET"
	EntityOwnerTicket = "OWNER_TICKET"
)

// Key prefixes and attribute names of the single-table layout.
const (
	AttrPK        = "PK"
	AttrSK        = "SK"
	AttrGSI1PK    = "GSI1PK"
	AttrGSI1SK    = "GSI1SK"
	AttrStatus    = "status"
	AttrUpdatedAt = "updatedAt"

	ticketPrefix  = "TICKET#"
	userPrefix    = "USER#"
	statusPrefix  = "STATUS#"
	createdPrefix = "CREATED#"
	metaSK        = "META"
)

// TimeLayout is fixed width so lexical order of stored timestamps is chronological.
// Microsecond precision keeps creations within the same millisecond in recency order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout (UTC).
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Record is the ticket of record. It also carries the status index
// attributes, so the status index is a projection of this item.
type Record struct {
	PK          string `dynamodbav:"PK"`
	SK          string `dynamodbav:"SK"`
	EntityType  string `dynamodbav:"entityType"`
	TicketID    string `dynamodbav:"ticketId"`
	OwnerID     string `dynamodbav:"ownerId"`
	Status      Status `dynamodbav:"status"`
	Title       string `dynamodbav:"title"`
	Description string `dynamodbav:"description"`
	CreatedAt   string `dynamodbav:"createdAt"`
	UpdatedAt   string `dynamodbav:"updatedAt,omitempty"`
	GSI1PK      string `dynamodbav:"GSI1PK"` // STATUS#<status>
	GSI1SK      string `dynamodbav:"GSI1SK"` // CREATED#<createdAt>#<ticketId>
}

// OwnerEntry is the owner index item: "tickets belonging to owner X",
// with the fields a list view needs denormalized.
type OwnerEntry struct {
	PK         string `dynamodbav:"PK"` // USER#<ownerId>
	SK         string `dynamodbav:"SK"` // TICKET#<createdAt>#<ticketId>
	EntityType string `dynamodbav:"entityType"`
	TicketID   string `dynamodbav:"ticketId"`
	Status     Status `dynamodbav:"status"`
	Title      string `dynamodbav:"title"`
	CreatedAt  string `dynamodbav:"createdAt"`
}

// TicketKey is the primary key of a ticket record.
func TicketKey(ticketID string) Key {
	return Key{PK: ticketPrefix + ticketID, SK: metaSK}
}

// OwnerKey is the primary key of an owner index entry.
func OwnerKey(ownerID, createdAt, ticketID string) Key {
	return Key{PK: OwnerPartition(ownerID), SK: ticketPrefix + createdAt + "#" + ticketID}
}

// OwnerPartition is the owner index partition value.
func OwnerPartition(ownerID string) string {
	return userPrefix + ownerID
}

// StatusPartition is the status index partition value.
func StatusPartition(s Status) string {
	return statusPrefix + string(s)
}

// StatusSort is the status index sort value.
func StatusSort(createdAt, ticketID string) string {
	return createdPrefix + createdAt + "#" + ticketID
}

// NewRecord builds an OPEN ticket record.
func NewRecord(ticketID, ownerID, title, description, createdAt string) Record {
	key := TicketKey(ticketID)
	return Record{
		PK:          key.PK,
		SK:          key.SK,
		EntityType:  EntityTicket,
		TicketID:    ticketID,
		OwnerID:     ownerID,
		Status:      StatusOpen,
		Title:       title,
		Description: description,
		CreatedAt:   createdAt,
		GSI1PK:      StatusPartition(StatusOpen),
		GSI1SK:      StatusSort(createdAt, ticketID),
	}
}

// OwnerEntryFor builds the owner index entry mirroring r.
func OwnerEntryFor(r Record) OwnerEntry {
	key := OwnerKey(r.OwnerID, r.CreatedAt, r.TicketID)
	return OwnerEntry{
		PK:         key.PK,
		SK:         key.SK,
		EntityType: EntityOwnerTicket,
		TicketID:   r.TicketID,
		Status:     r.Status,
		Title:      r.Title,
		CreatedAt:  r.CreatedAt,
	}
}

// Ticket is the full ticket as returned to callers.
type Ticket struct {
	TicketID    string `json:"ticketId"`
	OwnerID     string `json:"ownerId"`
	Status      Status `json:"status"`
	Title       string `json:"title"`
	Description string `json:"description"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt,omitempty"`
}

// Ticket projects the record for callers.
func (r Record) Ticket() Ticket {
	return Ticket{
		TicketID:    r.TicketID,
		OwnerID:     r.OwnerID,
		Status:      r.Status,
		Title:       r.Title,
		Description: r.Description,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

// Summary is a list row. OwnerID is only populated for status listings.
type Summary struct {
	TicketID  string `json:"ticketId"`
	OwnerID   string `json:"ownerId,omitempty"`
	Status    Status `json:"status"`
	CreatedAt string `json:"createdAt"`
	Title     string `json:"title"`
}

// CreateResult is returned by CreateTicket.
type CreateResult struct {
	TicketID  string `json:"ticketId"`
	Status    Status `json:"status"`
	CreatedAt string `json:"createdAt"`
}

// TransitionResult is returned by TransitionStatus.
type TransitionResult struct {
	TicketID  string `json:"ticketId"`
	Status    Status `json:"status"`
	UpdatedAt string `json:"updatedAt"`
}

// ParseStatus returns the status named exactly by raw.
func ParseStatus(raw string) (Status, bool) {
	return Status(raw), IsValidStatus(raw)
}
