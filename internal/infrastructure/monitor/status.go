package monitor

import "time"

// Dependency health values.
const (
	StateUp       = "up"
	StateDown     = "down"
	StateDisabled = "disabled"
)

type Status struct {
	PostgreSQL string    `json:"postgresql"`
	Redis      string    `json:"redis"`
	Buffer     string    `json:"buffer"`
	BufferSize int       `json:"buffer_size"`
	LastCheck  time.Time `json:"last_check"`
}

// Healthy reports whether every configured dependency is reachable.
func (s Status) Healthy() bool {
	return s.PostgreSQL != StateDown && s.Redis != StateDown && s.Buffer != StateDown
}
