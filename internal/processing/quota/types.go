package quota

import "time"

const (
	SourceChat  = "chat"
	SourceIntro = "intro"
)

// Attribution says what spent the tokens. Both fields are informational.
type Attribution struct {
	Model  string
	Source string
}

// Usage is one recorded increment of a day's counter.
type Usage struct {
	Day        string
	Tokens     int64
	DayTotal   int64
	Model      string
	Source     string
	OccurredAt time.Time
}
