package plans

import "time"

const day = 24 * time.Hour

func Duration(p Plan) (time.Duration, error) {
	info, err := Lookup(p)
	if err != nil {
		return 0, err
	}
	return time.Duration(info.Days) * day, nil
}

// ComputeExpiration returns anchor + Duration(p). Callers pass "now" when there is
// no better anchor.
func ComputeExpiration(p Plan, anchor time.Time) (time.Time, error) {
	d, err := Duration(p)
	if err != nil {
		return time.Time{}, err
	}
	return anchor.Add(d), nil
}

// RenewalAnchor stacks a renewal on top of the remaining time: a current
// expiration still in the future is the anchor, otherwise now.
func RenewalAnchor(current *time.Time, now time.Time) time.Time {
	if current != nil && current.After(now) {
		return *current
	}
	return now
}

func Renew(p Plan, current *time.Time, now time.Time) (time.Time, error) {
	return ComputeExpiration(p, RenewalAnchor(current, now))
}
