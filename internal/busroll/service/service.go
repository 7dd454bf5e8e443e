// Package service holds the presence, attendance, reporting, and identity
// services.  Every view is derived from the append-only presence log.
package service

import (
	"context"
	"errors"
	"io"
	"log"
	"strings"
	"time"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

const (
	defaultStoreTimeout = 5 * time.Second
	dateLayout          = "2006-01-02"
)

// Options carries the settings shared by the services.
type Options struct {
	// Location defines calendar days for attendance and summaries.
	// Defaults to UTC.
	Location *time.Location

	// StoreTimeout bounds each storage call.  Defaults to 5s.
	StoreTimeout time.Duration

	// Now is the clock.  Defaults to time.Now.
	Now func() time.Time

	Logger *log.Logger
}

func (o Options) withDefaults() Options {
	if o.Location == nil {
		o.Location = time.UTC
	}
	if o.StoreTimeout <= 0 {
		o.StoreTimeout = defaultStoreTimeout
	}
	if o.Now == nil {
		o.Now = time.Now
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard, "", 0)
	}
	return o
}

func (o Options) now() time.Time {
	return o.Now().UTC().Truncate(time.Millisecond)
}

// bound applies the storage timeout to ctx.
func (o Options) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, o.StoreTimeout)
}

// dateOf returns the calendar date of t in the configured location.
func (o Options) dateOf(t time.Time) string {
	return t.In(o.Location).Format(dateLayout)
}

// dayBounds parses date (empty means today) and returns the half-open
// [from, to) interval it covers in the configured location.
func (o Options) dayBounds(date string) (string, time.Time, time.Time, error) {
	date = strings.TrimSpace(date)
	if date == "" {
		date = o.dateOf(o.Now())
	}
	day, err := time.ParseInLocation(dateLayout, date, o.Location)
	if err != nil {
		return "", time.Time{}, time.Time{}, apperr.Wrap(apperr.CodeInvalidInput, "date must be YYYY-MM-DD", err)
	}
	return date, day, day.AddDate(0, 0, 1), nil
}

func storageErr(op string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	return apperr.Wrap(apperr.CodeStorageUnavailable, op, err)
}

func requireID(field, v string) (string, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return "", apperr.New(apperr.CodeInvalidInput, field+" is required")
	}
	return v, nil
}

// lookupActor resolves an actor or returns UnknownActor.
func lookupActor(ctx context.Context, reg store.RegistryStore, actorID string) (store.ActorRecord, error) {
	actor, err := reg.GetActor(ctx, actorID)
	if errors.Is(err, store.ErrNotFound) {
		return store.ActorRecord{}, apperr.New(apperr.CodeUnknownActor, "unknown actor "+actorID)
	}
	if err != nil {
		return store.ActorRecord{}, storageErr("get actor", err)
	}
	return actor, nil
}

// lookupSubject resolves a live subject or returns UnknownSubject.
func lookupSubject(ctx context.Context, reg store.RegistryStore, subjectID string) (store.SubjectRecord, error) {
	subject, err := reg.GetSubject(ctx, subjectID)
	if errors.Is(err, store.ErrNotFound) || (err == nil && subject.Deleted()) {
		return store.SubjectRecord{}, apperr.New(apperr.CodeUnknownSubject, "unknown subject "+subjectID)
	}
	if err != nil {
		return store.SubjectRecord{}, storageErr("get subject", err)
	}
	return subject, nil
}

func subjectIDs(subjects []store.SubjectRecord) []string {
	ids := make([]string, len(subjects))
	for i, s := range subjects {
		ids[i] = s.SubjectID
	}
	return ids
}

func actorIDs(actors []store.ActorRecord) []string {
	ids := make([]string, len(actors))
	for i, a := range actors {
		ids[i] = a.ActorID
	}
	return ids
}
