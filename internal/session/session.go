// Package session defines the Session aggregate, a lightweight grouping of
// jobs sharing a retention and lifecycle window.
package session

import "time"

// Session groups zero or more jobs created under the same session id.
type Session struct {
	ID      string
	Created time.Time
	Updated time.Time
}
