package service

import (
	"context"
	"fmt"
	"time"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
	"github.com/BrandonDHaskell/busroll/internal/busroll/identity"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

type Direction string

const (
	DirectionIn  Direction = "in"
	DirectionOut Direction = "out"
)

// CaptureRequest is one face embedding seen by a recognizer or driver
// device.  An empty Direction means DirectionIn.
type CaptureRequest struct {
	ActorID   string
	Vector    []float32
	Direction Direction
	At        time.Time
}

// CaptureResult reports what a capture produced.  A rejected presence
// transition is reported through PresenceError and does not prevent the
// attendance record.
type CaptureResult struct {
	Known         bool
	SubjectID     string
	Distance      float64
	Event         *store.EventRecord
	PresenceError apperr.Code
	Attendance    *AttendanceOutcome
}

// CapturePipeline runs identification, presence, and attendance for one
// captured frame.
type CapturePipeline struct {
	matcher  *identity.Matcher
	engine   *PresenceEngine
	ledger   *AttendanceLedger
	registry store.RegistryStore
	opts     Options
}

func NewCapturePipeline(m *identity.Matcher, engine *PresenceEngine, ledger *AttendanceLedger, registry store.RegistryStore, opts Options) *CapturePipeline {
	return &CapturePipeline{matcher: m, engine: engine, ledger: ledger, registry: registry, opts: opts.withDefaults()}
}

func (p *CapturePipeline) Process(ctx context.Context, req CaptureRequest) (CaptureResult, error) {
	actorID, err := requireID("actor_id", req.ActorID)
	if err != nil {
		return CaptureResult{}, err
	}

	action := store.ActionIn
	switch req.Direction {
	case "", DirectionIn:
	case DirectionOut:
		action = store.ActionOut
	default:
		return CaptureResult{}, apperr.New(apperr.CodeInvalidInput, fmt.Sprintf("unknown direction %q", req.Direction))
	}

	lctx, cancel := p.opts.bound(ctx)
	_, err = lookupActor(lctx, p.registry, actorID)
	cancel()
	if err != nil {
		return CaptureResult{}, err
	}

	match, err := p.matcher.Match(req.Vector)
	if err != nil {
		return CaptureResult{}, err
	}
	res := CaptureResult{Known: match.Known, SubjectID: match.SubjectID, Distance: match.Distance}
	if !match.Known {
		return res, nil
	}

	at := req.At
	if at.IsZero() {
		at = p.opts.now()
	}

	ev, err := p.engine.Apply(ctx, Command{
		ActorID:   actorID,
		SubjectID: match.SubjectID,
		Action:    action,
		At:        at,
		Source:    SourceCapture,
	})
	if err != nil {
		res.PresenceError = apperr.CodeOf(err)
		p.opts.Logger.Printf("capture: %s %s by %s rejected: %v", action, match.SubjectID, actorID, err)
	} else {
		res.Event = &ev
	}

	outcome, err := p.ledger.RecordSighting(ctx, match.SubjectID, actorID, at)
	if err != nil {
		return res, err
	}
	res.Attendance = &outcome
	return res, nil
}
