package service

import (
	"context"

	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

type DailySummary struct {
	GroupID       string
	Date          string
	BoardedCount  int
	AlightedCount int
	TotalEvents   int
}

type ActorStats struct {
	ActorID          string
	GroupID          string
	BoardedToday     int
	AlightedToday    int
	CurrentlyOnBoard int
}

// SummaryReporter computes read-only aggregates over the presence log.
type SummaryReporter struct {
	events   store.EventStore
	registry store.RegistryStore
	engine   *PresenceEngine
	opts     Options
}

func NewSummaryReporter(events store.EventStore, registry store.RegistryStore, engine *PresenceEngine, opts Options) *SummaryReporter {
	return &SummaryReporter{events: events, registry: registry, engine: engine, opts: opts.withDefaults()}
}

// DailySummary counts the events emitted by actors of groupID on date
// (empty means today).
func (r *SummaryReporter) DailySummary(ctx context.Context, groupID, date string) (DailySummary, error) {
	groupID, err := requireID("group_id", groupID)
	if err != nil {
		return DailySummary{}, err
	}
	date, from, to, err := r.opts.dayBounds(date)
	if err != nil {
		return DailySummary{}, err
	}
	out := DailySummary{GroupID: groupID, Date: date}

	ctx, cancel := r.opts.bound(ctx)
	defer cancel()

	actors, err := r.registry.ListActors(ctx, groupID)
	if err != nil {
		return DailySummary{}, storageErr("list actors", err)
	}
	if len(actors) == 0 {
		return out, nil
	}

	evs, err := r.events.List(ctx, store.EventQuery{ActorIDs: actorIDs(actors), From: from, To: to})
	if err != nil {
		return DailySummary{}, storageErr("list events", err)
	}
	out.BoardedCount, out.AlightedCount = countActions(evs)
	out.TotalEvents = len(evs)
	return out, nil
}

// ActorStats reports the actor's own events today and the current roster
// size of its group.
func (r *SummaryReporter) ActorStats(ctx context.Context, actorID string) (ActorStats, error) {
	actorID, err := requireID("actor_id", actorID)
	if err != nil {
		return ActorStats{}, err
	}
	_, from, to, err := r.opts.dayBounds("")
	if err != nil {
		return ActorStats{}, err
	}

	bctx, cancel := r.opts.bound(ctx)
	defer cancel()

	actor, err := lookupActor(bctx, r.registry, actorID)
	if err != nil {
		return ActorStats{}, err
	}
	evs, err := r.events.List(bctx, store.EventQuery{ActorIDs: []string{actorID}, From: from, To: to})
	if err != nil {
		return ActorStats{}, storageErr("list events", err)
	}
	roster, err := r.engine.Roster(ctx, actor.GroupID)
	if err != nil {
		return ActorStats{}, err
	}

	out := ActorStats{ActorID: actorID, GroupID: actor.GroupID, CurrentlyOnBoard: len(roster)}
	out.BoardedToday, out.AlightedToday = countActions(evs)
	return out, nil
}

func countActions(evs []store.EventRecord) (in, out int) {
	for _, ev := range evs {
		switch ev.Action {
		case store.ActionIn:
			in++
		case store.ActionOut:
			out++
		}
	}
	return in, out
}
