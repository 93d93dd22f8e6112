package utils

import "time"

// DayFloor truncates t to UTC midnight.
func DayFloor(t time.Time) time.Time {
	u := t.UTC()
	y, m, d := u.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// DayCeil returns the UTC midnight strictly after t, so [DayFloor(t), DayCeil(t))
// covers the whole day containing t.
func DayCeil(t time.Time) time.Time {
	return DayFloor(t).Add(24 * time.Hour)
}
