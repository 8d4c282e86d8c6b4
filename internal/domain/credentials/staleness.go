package credentials

import "time"

// IsStale reports whether a credential revealed at revealedAt was replaced
// afterwards. Nothing revealed yet means nothing to hide.
func IsStale(lastUpdated time.Time, revealedAt *time.Time) bool {
	if revealedAt == nil {
		return false
	}
	return lastUpdated.After(*revealedAt)
}
