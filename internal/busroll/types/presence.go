package types

type PresenceRequest struct {
	ActorID   string `json:"actor_id"`
	SubjectID string `json:"subject_id"`
	At        string `json:"at,omitempty"` // optional RFC3339 timestamp
}

type Event struct {
	EventID   string `json:"event_id"`
	Seq       int64  `json:"seq"`
	ActorID   string `json:"actor_id"`
	SubjectID string `json:"subject_id"`
	GroupID   string `json:"group_id"`
	Action    string `json:"action"`
	Timestamp string `json:"timestamp"`
	Source    string `json:"source"`
}

type OnBoardResponse struct {
	SubjectID string `json:"subject_id"`
	OnBoard   bool   `json:"on_board"`
}

type RosterResponse struct {
	GroupID  string   `json:"group_id"`
	Subjects []string `json:"subjects"`
	Count    int      `json:"count"`
}

type EventsResponse struct {
	ActorID string  `json:"actor_id"`
	Events  []Event `json:"events"`
}

type SummaryResponse struct {
	GroupID       string `json:"group_id"`
	Date          string `json:"date"`
	BoardedCount  int    `json:"boarded_count"`
	AlightedCount int    `json:"alighted_count"`
	TotalEvents   int    `json:"total_events"`
}

type StatsResponse struct {
	ActorID          string `json:"actor_id"`
	GroupID          string `json:"group_id"`
	BoardedToday     int    `json:"boarded_today"`
	AlightedToday    int    `json:"alighted_today"`
	CurrentlyOnBoard int    `json:"currently_on_board"`
}
