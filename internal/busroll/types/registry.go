package types

type Subject struct {
	SubjectID string `json:"subject_id"`
	Name      string `json:"name,omitempty"`
	BusStop   string `json:"bus_stop,omitempty"`
	GroupID   string `json:"group_id,omitempty"`
	OnLeave   bool   `json:"on_leave"`
}

type SubjectsResponse struct {
	Subjects []Subject `json:"subjects"`
}

type GroupAssignment struct {
	GroupID string `json:"group_id"`
}

type LeaveRequest struct {
	OnLeave bool `json:"on_leave"`
}

type Actor struct {
	ActorID string `json:"actor_id"`
	Name    string `json:"name,omitempty"`
	GroupID string `json:"group_id"`
	Kind    string `json:"kind,omitempty"` // "driver" | "recognizer"
}

type ActorsResponse struct {
	Actors []Actor `json:"actors"`
}
