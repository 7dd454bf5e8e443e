package service

import (
	"context"
	"time"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

type AttendanceStatus string

const (
	AttendanceCreated         AttendanceStatus = "created"
	AttendanceAlreadyRecorded AttendanceStatus = "already_recorded"
)

// AttendanceOutcome is the result of recording attendance.  Record is the
// row stored for the day, which on a repeat is the earlier one.
type AttendanceOutcome struct {
	Status AttendanceStatus
	Record store.AttendanceRecord
}

// AttendanceLedger keeps at most one attendance record per subject per
// calendar day.
type AttendanceLedger struct {
	attendance store.AttendanceStore
	registry   store.RegistryStore
	opts       Options
}

func NewAttendanceLedger(attendance store.AttendanceStore, registry store.RegistryStore, opts Options) *AttendanceLedger {
	return &AttendanceLedger{attendance: attendance, registry: registry, opts: opts.withDefaults()}
}

// RecordAttendance records the subject as present on the calendar date of
// at.  Repeats on the same date report AttendanceAlreadyRecorded.
func (l *AttendanceLedger) RecordAttendance(ctx context.Context, subjectID string, at time.Time) (AttendanceOutcome, error) {
	return l.RecordSighting(ctx, subjectID, "", at)
}

// RecordSighting is RecordAttendance with the actor whose capture
// produced it.
func (l *AttendanceLedger) RecordSighting(ctx context.Context, subjectID, actorID string, at time.Time) (AttendanceOutcome, error) {
	subjectID, err := requireID("subject_id", subjectID)
	if err != nil {
		return AttendanceOutcome{}, err
	}
	if at.IsZero() {
		at = l.opts.now()
	}

	ctx, cancel := l.opts.bound(ctx)
	defer cancel()

	if _, err := lookupSubject(ctx, l.registry, subjectID); err != nil {
		return AttendanceOutcome{}, err
	}

	rec, created, err := l.attendance.InsertIfAbsent(ctx, store.AttendanceRecord{
		SubjectID: subjectID,
		Date:      l.opts.dateOf(at),
		FirstSeen: at.UTC().Truncate(time.Millisecond),
		ActorID:   actorID,
	})
	if err != nil {
		return AttendanceOutcome{}, storageErr("record attendance", err)
	}

	out := AttendanceOutcome{Status: AttendanceAlreadyRecorded, Record: rec}
	if created {
		out.Status = AttendanceCreated
	}
	return out, nil
}

// ListAttendance returns the records for date (empty means today),
// ordered by first sighting.
func (l *AttendanceLedger) ListAttendance(ctx context.Context, date string) ([]store.AttendanceRecord, error) {
	date, _, _, err := l.opts.dayBounds(date)
	if err != nil {
		return nil, err
	}

	ctx, cancel := l.opts.bound(ctx)
	defer cancel()

	recs, err := l.attendance.ListByDate(ctx, date)
	if err != nil {
		return nil, storageErr("list attendance", err)
	}
	if recs == nil {
		recs = []store.AttendanceRecord{}
	}
	return recs, nil
}

// Absentees returns the subjects of groupID with no attendance on date.
// Subjects on leave are not expected and never listed.
func (l *AttendanceLedger) Absentees(ctx context.Context, groupID, date string) ([]store.SubjectRecord, error) {
	groupID, err := requireID("group_id", groupID)
	if err != nil {
		return nil, err
	}
	date, _, _, err = l.opts.dayBounds(date)
	if err != nil {
		return nil, err
	}

	ctx, cancel := l.opts.bound(ctx)
	defer cancel()

	subjects, err := l.registry.ListSubjects(ctx, groupID)
	if err != nil {
		return nil, storageErr("list subjects", err)
	}
	recs, err := l.attendance.ListByDate(ctx, date)
	if err != nil {
		return nil, storageErr("list attendance", err)
	}

	present := make(map[string]struct{}, len(recs))
	for _, r := range recs {
		present[r.SubjectID] = struct{}{}
	}

	out := []store.SubjectRecord{}
	for _, s := range subjects {
		if s.OnLeave {
			continue
		}
		if _, ok := present[s.SubjectID]; ok {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}
