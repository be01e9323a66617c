package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Lead represents a prospective customer captured through the qualification flow.
type Lead struct {
	ID        uuid.UUID
	Name      string
	Email     string
	Phone     string
	Interest  string
	Notes     string
	CreatedAt time.Time
}

// FirstName returns the first word of the lead's full name.
func (l *Lead) FirstName() string {
	for i, r := range l.Name {
		if r == ' ' {
			return l.Name[:i]
		}
	}
	return l.Name
}

// SynthesizePhone derives a stable contact identifier from a web chat session ID.
// Leads arriving through the web widget have no real phone number.
func SynthesizePhone(sessionID string) string {
	if len(sessionID) >= 8 {
		return fmt.Sprintf("web-%s", sessionID[:8])
	}
	return fmt.Sprintf("web-%s", sessionID)
}
