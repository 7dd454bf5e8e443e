// Package memory provides in-memory implementations of the busroll stores
// for tests and the dev profile.
package memory

// Stores bundles one of each in-memory store.
type Stores struct {
	Events     *EventStore
	Attendance *AttendanceStore
	Registry   *RegistryStore
}

func New() *Stores {
	return &Stores{
		Events:     NewEventStore(),
		Attendance: NewAttendanceStore(),
		Registry:   NewRegistryStore(),
	}
}
