package types

type AttendanceRequest struct {
	SubjectID string `json:"subject_id"`
	At        string `json:"at,omitempty"`
}

type AttendanceRecord struct {
	SubjectID string `json:"subject_id"`
	Date      string `json:"date"`
	FirstSeen string `json:"first_seen"`
	ActorID   string `json:"actor_id,omitempty"`
}

type AttendanceResponse struct {
	Status string           `json:"status"` // "created" | "already_recorded"
	Record AttendanceRecord `json:"record"`
}

type AttendanceListResponse struct {
	Date    string             `json:"date"`
	Records []AttendanceRecord `json:"records"`
}

type AbsenteesResponse struct {
	GroupID  string    `json:"group_id"`
	Date     string    `json:"date"`
	Subjects []Subject `json:"subjects"`
}
