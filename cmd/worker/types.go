package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/imrishuroy/go-helpdesk-tickets/internal/tickets"
)

// errMalformed marks messages that will never process successfully.
var errMalformed = errors.New("malformed ticket event")

// decodeEvent parses and checks one queue message body.
func decodeEvent(body string) (tickets.Event, error) {
	var ev tickets.Event
	if err := json.Unmarshal([]byte(body), &ev); err != nil {
		return ev, fmt.Errorf("%w: %w", errMalformed, err)
	}
	if ev.TicketID == "" {
		return ev, fmt.Errorf("%w: missing ticketId", errMalformed)
	}
	if !tickets.IsValidStatus(string(ev.ToStatus)) {
		return ev, fmt.Errorf("%w: invalid toStatus %q", errMalformed, ev.ToStatus)
	}
	switch ev.Type {
	case tickets.EventTicketCreated:
	case tickets.EventStatusChanged:
		if err := tickets.CheckTransition(ev.FromStatus, ev.ToStatus); err != nil {
			return ev, fmt.Errorf("%w: %w", errMalformed, err)
		}
	default:
		return ev, fmt.Errorf("%w: unknown type %q", errMalformed, ev.Type)
	}
	return ev, nil
}

// parseTime reads an event timestamp. Any RFC 3339 fraction width is accepted
// so events written before the microsecond layout still parse.
func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
