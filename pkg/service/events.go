package service

import (
	"github.com/mash-protocol/tagsched/pkg/log"
)

// sessionStamper tags scheduler events with the session whose call produced
// them. The server sets session under its lock before each scheduler call.
type sessionStamper struct {
	next    log.Logger
	session string
}

func (s *sessionStamper) Log(event log.Event) {
	if event.SessionID == "" {
		event.SessionID = s.session
	}
	s.next.Log(event)
}

// as sets the session for events emitted until the returned func runs.
// Caller holds the server lock.
func (s *sessionStamper) as(id string) func() {
	s.session = id
	return func() { s.session = "" }
}
