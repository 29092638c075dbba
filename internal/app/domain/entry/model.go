package entry

import "time"

// Entry is one night of sleep data. At most one entry exists per
// (UserID, Date); re-submitting the same date replaces the mutable fields
// while ID and CreatedAt are preserved.
type Entry struct {
	ID         int64     `json:"id"`
	UserID     int64     `json:"userId"`
	Date       string    `json:"date"`
	BedTime    string    `json:"bedTime"`
	WakeTime   string    `json:"wakeTime"`
	Duration   float64   `json:"duration"`
	ScreenTime float64   `json:"screenTime"`
	Energy     int       `json:"energy"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"createdAt"`
}
