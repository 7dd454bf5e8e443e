package service

import (
	"context"
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/BrandonDHaskell/busroll/internal/apperr"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

// GalleryInvalidator is told when the set of enrolled subjects changes.
// EvictSubject must take effect before RemoveSubject returns.
type GalleryInvalidator interface {
	InvalidateGallery(reason string)
	EvictSubject(subjectID string)
}

type SubjectInput struct {
	SubjectID string
	Name      string
	BusStop   string
	GroupID   string
	OnLeave   bool
}

type ActorInput struct {
	ActorID string
	Name    string
	GroupID string
	Kind    store.ActorKind
}

// Registry manages subjects and actors.  Group changes take effect on the
// next presence validation or roster read.
type Registry struct {
	store       store.RegistryStore
	invalidator GalleryInvalidator
	opts        Options
}

// NewRegistry returns a Registry.  inv may be nil.
func NewRegistry(st store.RegistryStore, inv GalleryInvalidator, opts Options) *Registry {
	return &Registry{store: st, invalidator: inv, opts: opts.withDefaults()}
}

func (r *Registry) AddSubject(ctx context.Context, in SubjectInput) (store.SubjectRecord, error) {
	id, err := requireID("subject_id", in.SubjectID)
	if err != nil {
		return store.SubjectRecord{}, err
	}
	rec := store.SubjectRecord{
		SubjectID: id,
		Name:      strings.TrimSpace(in.Name),
		BusStop:   strings.TrimSpace(in.BusStop),
		GroupID:   strings.TrimSpace(in.GroupID),
		OnLeave:   in.OnLeave,
		CreatedAt: r.opts.now(),
	}

	ctx, cancel := r.opts.bound(ctx)
	defer cancel()

	err = r.store.PutSubject(ctx, rec)
	if errors.Is(err, store.ErrAlreadyExists) {
		return store.SubjectRecord{}, apperr.New(apperr.CodeInvalidInput, "subject "+id+" already exists")
	}
	if err != nil {
		return store.SubjectRecord{}, storageErr("add subject", err)
	}
	r.invalidate("subject added: " + id)
	return rec, nil
}

func (r *Registry) GetSubject(ctx context.Context, subjectID string) (store.SubjectRecord, error) {
	subjectID, err := requireID("subject_id", subjectID)
	if err != nil {
		return store.SubjectRecord{}, err
	}
	ctx, cancel := r.opts.bound(ctx)
	defer cancel()
	return lookupSubject(ctx, r.store, subjectID)
}

// ListSubjects lists live subjects; groupID "" lists all of them.
func (r *Registry) ListSubjects(ctx context.Context, groupID string) ([]store.SubjectRecord, error) {
	ctx, cancel := r.opts.bound(ctx)
	defer cancel()

	subs, err := r.store.ListSubjects(ctx, strings.TrimSpace(groupID))
	if err != nil {
		return nil, storageErr("list subjects", err)
	}
	if subs == nil {
		subs = []store.SubjectRecord{}
	}
	return subs, nil
}

// AssignGroup moves a subject to groupID; "" unassigns it.
func (r *Registry) AssignGroup(ctx context.Context, subjectID, groupID string) error {
	return r.updateSubject(ctx, subjectID, "assign group", func(ctx context.Context, id string) error {
		return r.store.SetSubjectGroup(ctx, id, strings.TrimSpace(groupID))
	})
}

func (r *Registry) SetLeave(ctx context.Context, subjectID string, onLeave bool) error {
	return r.updateSubject(ctx, subjectID, "set leave", func(ctx context.Context, id string) error {
		return r.store.SetSubjectLeave(ctx, id, onLeave)
	})
}

// RemoveSubject soft-deletes a subject.  Its events stay in the log.
func (r *Registry) RemoveSubject(ctx context.Context, subjectID string) error {
	err := r.updateSubject(ctx, subjectID, "remove subject", func(ctx context.Context, id string) error {
		return r.store.DeleteSubject(ctx, id, r.opts.now())
	})
	if err != nil {
		return err
	}
	id := strings.TrimSpace(subjectID)
	if r.invalidator != nil {
		r.invalidator.EvictSubject(id)
	}
	r.invalidate("subject removed: " + id)
	return nil
}

func (r *Registry) updateSubject(ctx context.Context, subjectID, op string, fn func(context.Context, string) error) error {
	id, err := requireID("subject_id", subjectID)
	if err != nil {
		return err
	}

	ctx, cancel := r.opts.bound(ctx)
	defer cancel()

	err = fn(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return apperr.New(apperr.CodeUnknownSubject, "unknown subject "+id)
	}
	if err != nil {
		return storageErr(op, err)
	}
	return nil
}

// SearchSubjects returns live subjects whose name or ID contains query,
// ignoring case and diacritics.  An empty query matches everyone.
func (r *Registry) SearchSubjects(ctx context.Context, query string) ([]store.SubjectRecord, error) {
	subs, err := r.ListSubjects(ctx, "")
	if err != nil {
		return nil, err
	}
	q := foldName(query)
	if q == "" {
		return subs, nil
	}

	out := []store.SubjectRecord{}
	for _, s := range subs {
		if strings.Contains(foldName(s.Name), q) || strings.Contains(foldName(s.SubjectID), q) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (r *Registry) AddActor(ctx context.Context, in ActorInput) (store.ActorRecord, error) {
	id, err := requireID("actor_id", in.ActorID)
	if err != nil {
		return store.ActorRecord{}, err
	}
	groupID, err := requireID("group_id", in.GroupID)
	if err != nil {
		return store.ActorRecord{}, err
	}
	kind := in.Kind
	if kind == "" {
		kind = store.ActorDriver
	}
	if kind != store.ActorDriver && kind != store.ActorRecognizer {
		return store.ActorRecord{}, apperr.New(apperr.CodeInvalidInput, "unknown actor kind "+string(kind))
	}
	rec := store.ActorRecord{
		ActorID:   id,
		Name:      strings.TrimSpace(in.Name),
		GroupID:   groupID,
		Kind:      kind,
		CreatedAt: r.opts.now(),
	}

	ctx, cancel := r.opts.bound(ctx)
	defer cancel()

	err = r.store.PutActor(ctx, rec)
	if errors.Is(err, store.ErrAlreadyExists) {
		return store.ActorRecord{}, apperr.New(apperr.CodeInvalidInput, "actor "+id+" already exists")
	}
	if err != nil {
		return store.ActorRecord{}, storageErr("add actor", err)
	}
	return rec, nil
}

func (r *Registry) GetActor(ctx context.Context, actorID string) (store.ActorRecord, error) {
	actorID, err := requireID("actor_id", actorID)
	if err != nil {
		return store.ActorRecord{}, err
	}
	ctx, cancel := r.opts.bound(ctx)
	defer cancel()
	return lookupActor(ctx, r.store, actorID)
}

func (r *Registry) ListActors(ctx context.Context, groupID string) ([]store.ActorRecord, error) {
	ctx, cancel := r.opts.bound(ctx)
	defer cancel()

	actors, err := r.store.ListActors(ctx, strings.TrimSpace(groupID))
	if err != nil {
		return nil, storageErr("list actors", err)
	}
	if actors == nil {
		actors = []store.ActorRecord{}
	}
	return actors, nil
}

func (r *Registry) invalidate(reason string) {
	if r.invalidator != nil {
		r.invalidator.InvalidateGallery(reason)
	}
}

// foldName lowercases s and strips diacritics ("Jiří" -> "jiri").
func foldName(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, _ := transform.String(t, s)
	return strings.ToLower(strings.TrimSpace(folded))
}
