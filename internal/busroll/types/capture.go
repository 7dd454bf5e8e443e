package types

type CaptureRequest struct {
	ActorID   string    `json:"actor_id"`
	Vector    []float32 `json:"vector"`
	Direction string    `json:"direction,omitempty"` // "in" (default) | "out"
	At        string    `json:"at,omitempty"`
}

type CaptureResponse struct {
	Known         bool                `json:"known"`
	SubjectID     string              `json:"subject_id,omitempty"`
	Distance      float64             `json:"distance"`
	Event         *Event              `json:"event,omitempty"`
	PresenceError string              `json:"presence_error,omitempty"`
	Attendance    *AttendanceResponse `json:"attendance,omitempty"`
}

type GalleryResponse struct {
	Entries       int      `json:"entries"`
	Subjects      int      `json:"subjects"`
	Vectors       int      `json:"vectors,omitempty"`
	SkippedImages int      `json:"skipped_images,omitempty"`
	Indexed       bool     `json:"indexed"`
	BuiltAt       string   `json:"built_at,omitempty"`
	NoEncoding    []string `json:"no_encoding"`
}
