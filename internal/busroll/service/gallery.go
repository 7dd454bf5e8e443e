package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/BrandonDHaskell/busroll/internal/busroll/identity"
	"github.com/BrandonDHaskell/busroll/internal/busroll/store"
)

// GalleryConfig holds the parameters for NewGalleryService.
type GalleryConfig struct {
	// CachePath is where the built gallery is saved.  Empty disables the
	// cache.
	CachePath       string
	IndexMinEntries int
}

// GalleryStatus describes the installed gallery.
type GalleryStatus struct {
	Entries    int
	Subjects   int
	Indexed    bool
	BuiltAt    time.Time
	NoEncoding []string
}

// GalleryService builds identity galleries from the registry and installs
// them into the Matcher.
type GalleryService struct {
	registry  store.RegistryStore
	source    identity.ImageSource
	extractor identity.Extractor
	matcher   *identity.Matcher
	cfg       GalleryConfig
	logger    *log.Logger

	buildMu sync.Mutex // serializes rebuilds

	mu          sync.Mutex
	noEncoding  []string
	evicted     map[string]bool // removals seen during a running build; nil when idle
	onInstalled func()
}

func NewGalleryService(
	registry store.RegistryStore,
	source identity.ImageSource,
	extractor identity.Extractor,
	matcher *identity.Matcher,
	cfg GalleryConfig,
	logger *log.Logger,
) *GalleryService {
	return &GalleryService{
		registry:  registry,
		source:    source,
		extractor: extractor,
		matcher:   matcher,
		cfg:       cfg,
		logger:    logger,
	}
}

func (s *GalleryService) Matcher() *identity.Matcher { return s.matcher }

// Rebuild extracts a fresh gallery for every live subject and swaps it in.
// On failure the installed gallery is left untouched.
func (s *GalleryService) Rebuild(ctx context.Context) (identity.BuildReport, error) {
	return s.RebuildWithProgress(ctx, nil)
}

func (s *GalleryService) RebuildWithProgress(ctx context.Context, progress func(done, total int)) (identity.BuildReport, error) {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()

	s.mu.Lock()
	s.evicted = make(map[string]bool)
	s.mu.Unlock()

	g, report, err := s.build(ctx, progress)
	if err != nil {
		s.mu.Lock()
		s.evicted = nil
		s.mu.Unlock()
		return identity.BuildReport{}, err
	}

	// Subjects removed while the build ran may still be in g.
	s.mu.Lock()
	removed := make([]string, 0, len(s.evicted))
	for id := range s.evicted {
		removed = append(removed, id)
	}
	g = g.Without(removed...)
	s.evicted = nil
	s.noEncoding = report.NoEncoding
	s.matcher.Swap(g)
	s.mu.Unlock()
	s.installed()

	if s.cfg.CachePath != "" {
		if err := identity.SaveGallery(s.cfg.CachePath, g); err != nil {
			s.logger.Printf("gallery cache write error: %v", err)
		}
	}
	return report, nil
}

func (s *GalleryService) build(ctx context.Context, progress func(done, total int)) (*identity.Gallery, identity.BuildReport, error) {
	subjects, err := s.registry.ListSubjects(ctx, "")
	if err != nil {
		return nil, identity.BuildReport{}, storageErr("list subjects", err)
	}

	start := time.Now()
	g, report, err := identity.BuildGallery(ctx, subjectIDs(subjects), s.source, s.extractor, identity.BuildOptions{
		IndexMinEntries: s.cfg.IndexMinEntries,
		Logger:          s.logger,
		Progress:        progress,
	})
	if err != nil {
		return nil, identity.BuildReport{}, fmt.Errorf("build gallery: %w", err)
	}
	s.logger.Printf("gallery rebuilt: %d subjects, %d vectors, %d without encoding (%s)",
		report.Subjects, report.Vectors, len(report.NoEncoding), time.Since(start).Round(time.Millisecond))
	return g, report, nil
}

// EvictSubject drops a removed subject from the installed gallery without
// re-extracting anything.  A build already running drops it too before
// its result is installed.
func (s *GalleryService) EvictSubject(subjectID string) {
	s.mu.Lock()
	if s.evicted != nil {
		s.evicted[subjectID] = true
	}
	s.mu.Unlock()

	if s.matcher.Remove(subjectID) {
		s.logger.Printf("gallery: evicted subject %s", subjectID)
	}
}

// OnInstalled registers fn to run after every gallery swap from a rebuild
// or the cache.
func (s *GalleryService) OnInstalled(fn func()) {
	s.mu.Lock()
	s.onInstalled = fn
	s.mu.Unlock()
}

func (s *GalleryService) installed() {
	s.mu.Lock()
	fn := s.onInstalled
	s.mu.Unlock()
	if fn != nil {
		fn()
	}
}

// LoadCache installs the cached gallery, reporting whether one was found.
// Subjects removed since the cache was written are left out.
func (s *GalleryService) LoadCache(ctx context.Context) (bool, error) {
	if s.cfg.CachePath == "" {
		return false, nil
	}
	g, err := identity.LoadGallery(s.cfg.CachePath, identity.GalleryOptions{IndexMinEntries: s.cfg.IndexMinEntries})
	if err != nil {
		return false, err
	}

	subjects, err := s.registry.ListSubjects(ctx, "")
	if err != nil {
		return false, storageErr("list subjects", err)
	}
	live := make(map[string]bool, len(subjects))
	for _, sub := range subjects {
		live[sub.SubjectID] = true
	}
	var stale []string
	for _, id := range g.Subjects() {
		if !live[id] {
			stale = append(stale, id)
		}
	}
	g = g.Without(stale...)

	s.buildMu.Lock()
	s.matcher.Swap(g)
	s.buildMu.Unlock()
	s.installed()

	s.logger.Printf("gallery loaded from cache: %d vectors built %s (%d stale subjects dropped)",
		g.Len(), g.BuiltAt().Format(time.RFC3339), len(stale))
	return true, nil
}

// Init loads the cache when possible and falls back to a full rebuild.
func (s *GalleryService) Init(ctx context.Context) error {
	ok, err := s.LoadCache(ctx)
	if ok {
		return nil
	}
	if err != nil {
		s.logger.Printf("gallery cache unavailable, rebuilding: %v", err)
	}
	_, err = s.Rebuild(ctx)
	return err
}

func (s *GalleryService) Status() GalleryStatus {
	g := s.matcher.Current()

	s.mu.Lock()
	noEnc := append([]string(nil), s.noEncoding...)
	s.mu.Unlock()

	return GalleryStatus{
		Entries:    g.Len(),
		Subjects:   len(g.Subjects()),
		Indexed:    g.Indexed(),
		BuiltAt:    g.BuiltAt(),
		NoEncoding: noEnc,
	}
}
