package identity

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sort"
	"time"
)

// ErrNoFaceDetected is returned by an Extractor when an image holds no
// usable face.  The build skips such images instead of failing.
var ErrNoFaceDetected = errors.New("no face detected")

// ErrUnreadableImage marks a photo that exists but cannot be decoded.
// Like ErrNoFaceDetected it skips the image, not the build.
var ErrUnreadableImage = errors.New("unreadable image")

// Image is one reference photo of a subject.  Err is set by a source for
// a photo it found but could not decode; Data is empty then.
type Image struct {
	Name string
	Data []byte
	Err  error
}

// ImageSource lists the reference photos of a subject.  A subject without
// photos yields an empty slice and no error.
type ImageSource interface {
	Images(ctx context.Context, subjectID string) ([]Image, error)
}

// Extractor turns one photo into a face embedding.
type Extractor interface {
	Extract(ctx context.Context, img []byte) ([]float32, error)
}

type BuildOptions struct {
	IndexMinEntries int
	Logger          *log.Logger
	// Progress, when set, is called after each subject is processed.
	Progress func(done, total int)
	Now      func() time.Time
}

// BuildReport summarizes a gallery build.
type BuildReport struct {
	Subjects      int      // subjects with at least one vector
	Vectors       int      // total entries
	SkippedImages int      // images with no detectable face
	NoEncoding    []string // subjects left out of the gallery, sorted
}

// BuildGallery extracts embeddings for every subject and returns a new
// gallery.  Subjects with no usable photo are reported, not fatal; any
// other source or extractor error aborts the build.
func BuildGallery(ctx context.Context, subjectIDs []string, src ImageSource, ex Extractor, opts BuildOptions) (*Gallery, BuildReport, error) {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	ids := append([]string(nil), subjectIDs...)
	sort.Strings(ids)

	var (
		entries []Entry
		report  BuildReport
	)
	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return nil, BuildReport{}, err
		}

		images, err := src.Images(ctx, id)
		if err != nil {
			return nil, BuildReport{}, fmt.Errorf("load images for %s: %w", id, err)
		}

		usable := 0
		for _, img := range images {
			if img.Err != nil {
				report.SkippedImages++
				logger.Printf("gallery: skipping %s for subject %s: %v", img.Name, id, img.Err)
				continue
			}
			vec, err := ex.Extract(ctx, img.Data)
			if errors.Is(err, ErrNoFaceDetected) || errors.Is(err, ErrUnreadableImage) {
				report.SkippedImages++
				logger.Printf("gallery: no face in %s for subject %s: %v", img.Name, id, err)
				continue
			}
			if err != nil {
				return nil, BuildReport{}, fmt.Errorf("extract %s for %s: %w", img.Name, id, err)
			}
			entries = append(entries, Entry{SubjectID: id, Vector: vec})
			usable++
		}

		if usable == 0 {
			report.NoEncoding = append(report.NoEncoding, id)
			logger.Printf("gallery: subject %s has no usable encoding", id)
		} else {
			report.Subjects++
			report.Vectors += usable
		}
		if opts.Progress != nil {
			opts.Progress(i+1, len(ids))
		}
	}

	g, err := NewGallery(entries, GalleryOptions{
		IndexMinEntries: opts.IndexMinEntries,
		BuiltAt:         now().UTC(),
	})
	if err != nil {
		return nil, BuildReport{}, err
	}
	return g, report, nil
}
