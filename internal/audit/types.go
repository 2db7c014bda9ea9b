package audit

import "time"

// Entry is one executed command.
type Entry struct {
	ID         string    `json:"id"`
	Kind       string    `json:"kind"`
	Address    string    `json:"address,omitempty"`
	Target     string    `json:"target,omitempty"`
	Source     string    `json:"source"`
	Outcome    string    `json:"outcome"`
	Error      string    `json:"error,omitempty"`
	IssuedAt   time.Time `json:"issued_at"`
	ExecutedAt time.Time `json:"executed_at"`
}

// Filter controls which entries List returns. Zero fields match everything.
type Filter struct {
	Address string
	Outcome string
	Source  string
	Since   time.Time
	Limit   int // default 50, max 200
	Offset  int
}

// ListResult is a page of entries, most recent first.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Sighting records when a base station was first and last seen.
type Sighting struct {
	Address   string    `json:"address"`
	Name      string    `json:"name"`
	LastState string    `json:"last_state"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
}
