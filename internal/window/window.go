// Package window provides the pure time-window predicates used by nudge
// detection. All predicates compare absolute instants with fixed-duration
// arithmetic (a "day" is always 24h), so DST transitions never move a
// window boundary.
package window

import "time"

const (
	// Pre-event confirmation nudges fire when the event starts between
	// 20 and 28 hours from now, inclusive on both ends.
	confirm24hLower = 20 * time.Hour
	confirm24hUpper = 28 * time.Hour

	// Post-session prompts fire while a session ended within the last 2h.
	recentSessionEnd = 2 * time.Hour

	// twoHourBefore is the lead time for short-notice session reminders.
	twoHourBefore = 2 * time.Hour

	longGap           = 14 * 24 * time.Hour
	inactiveThreshold = 7 * 24 * time.Hour
)

// IsWithin24hWindow reports whether eventAt falls in [now+20h, now+28h].
func IsWithin24hWindow(eventAt, now time.Time) bool {
	delta := eventAt.Sub(now)
	return delta >= confirm24hLower && delta <= confirm24hUpper
}

// IsWithin2hWindow reports whether eventAt falls in [now, now+2h].
func IsWithin2hWindow(eventAt, now time.Time) bool {
	delta := eventAt.Sub(now)
	return delta >= 0 && delta <= twoHourBefore
}

// IsRecentSessionEnd reports whether endAt falls in [now-2h, now].
func IsRecentSessionEnd(endAt, now time.Time) bool {
	delta := now.Sub(endAt)
	return delta >= 0 && delta <= recentSessionEnd
}

// IsLongGap reports whether more than 14 days have passed since
// lastSessionAt. Exactly 14 days is not a long gap.
func IsLongGap(lastSessionAt, now time.Time) bool {
	return now.Sub(lastSessionAt) > longGap
}

// IsInactiveConversation reports whether more than 7 days have passed
// since lastMessageAt. Exactly 7 days is not inactive.
func IsInactiveConversation(lastMessageAt, now time.Time) bool {
	return now.Sub(lastMessageAt) > inactiveThreshold
}

// IsDueToday reports whether dueAt falls on the same UTC day as now.
// Task due dates are stored as instants; "today" is the 24h UTC bucket.
func IsDueToday(dueAt, now time.Time) bool {
	y1, m1, d1 := dueAt.UTC().Date()
	y2, m2, d2 := now.UTC().Date()
	return y1 == y2 && m1 == m2 && d1 == d2
}

// IsOverdue reports whether dueAt is strictly before the start of the
// current UTC day. A task due earlier today is "due today", not overdue.
func IsOverdue(dueAt, now time.Time) bool {
	y, m, d := now.UTC().Date()
	startOfDay := time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	return dueAt.Before(startOfDay)
}
