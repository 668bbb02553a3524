package core

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// ID represents a domain identifier
type ID string

// NewID creates a new unique identifier using UUID v7 for time-ordered generation
func NewID() ID {
	// Falls back to v4 if v7 generation fails
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return ID(id.String())
}

// String returns the string representation
func (id ID) String() string {
	return string(id)
}

// IsEmpty checks if the ID is empty
func (id ID) IsEmpty() bool {
	return id == ""
}

// Domain-specific ID types
type (
	SessionID ID
	ExportID  ID
)

func (id SessionID) String() string { return ID(id).String() }
func (id ExportID) String() string  { return ID(id).String() }

// NewSessionID creates an identifier for an interactive filter session
func NewSessionID() SessionID { return SessionID(NewID()) }

// NewExportID creates an identifier for an aggregation export run
func NewExportID() ExportID { return ExportID(NewID()) }

// ParseSessionID parses a string into SessionID
func ParseSessionID(s string) (SessionID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("session ID cannot be empty")
	}
	return SessionID(s), nil
}

// ParseExportID parses a string into ExportID
func ParseExportID(s string) (ExportID, error) {
	if strings.TrimSpace(s) == "" {
		return "", fmt.Errorf("export ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return "", fmt.Errorf("export ID %q is not a UUID: %w", s, err)
	}
	return ExportID(s), nil
}
