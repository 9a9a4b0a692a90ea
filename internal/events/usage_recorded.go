package events

// UsageRecorded is emitted after the gateway adds tokens to a day's quota
// counter.
type UsageRecorded struct {
	EventID    string `json:"eventId"`
	Day        string `json:"day"`
	Tokens     int64  `json:"tokens"`
	DayTotal   int64  `json:"dayTotal"`
	Model      string `json:"model,omitempty"`
	Source     string `json:"source"`
	OccurredAt string `json:"occurredAt"`
}
