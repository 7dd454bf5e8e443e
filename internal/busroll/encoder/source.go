package encoder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"github.com/BrandonDHaskell/busroll/internal/busroll/identity"
)

// DefaultMaxSize bounds the longer image side sent to the encoder.
const DefaultMaxSize = 800

var imageExts = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".webp": true,
}

// DirSource reads reference photos from <Root>/<subject_id>/.  Images are
// re-encoded as JPEG no larger than MaxSize on either side.  A file that
// does not decode is returned with Err wrapping identity.ErrUnreadableImage;
// read failures abort.
type DirSource struct {
	Root    string
	MaxSize int
}

func NewDirSource(root string, maxSize int) *DirSource {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	return &DirSource{Root: root, MaxSize: maxSize}
}

func (s *DirSource) Images(ctx context.Context, subjectID string) ([]identity.Image, error) {
	if subjectID == "" || strings.ContainsAny(subjectID, `/\`) || subjectID == "." || subjectID == ".." {
		return nil, fmt.Errorf("invalid subject id %q", subjectID)
	}

	dir := filepath.Join(s.Root, subjectID)
	entries, err := os.ReadDir(dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", dir, err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !imageExts[strings.ToLower(filepath.Ext(e.Name()))] {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)

	out := make([]identity.Image, 0, len(names))
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path) //nolint:gosec // path is under the configured gallery root
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
		resized, err := ResizeImage(data, s.MaxSize)
		if err != nil {
			out = append(out, identity.Image{
				Name: name,
				Err:  fmt.Errorf("%s: %w: %v", path, identity.ErrUnreadableImage, err),
			})
			continue
		}
		out = append(out, identity.Image{Name: name, Data: resized})
	}
	return out, nil
}

// ResizeImage resizes an image to fit within maxSize (width or height)
// while keeping aspect ratio, and re-encodes it as JPEG.
func ResizeImage(data []byte, maxSize int) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()

	var out image.Image = img
	if width > maxSize || height > maxSize {
		var newWidth, newHeight int
		if width > height {
			newWidth = maxSize
			newHeight = int(float64(height) * float64(maxSize) / float64(width))
		} else {
			newHeight = maxSize
			newWidth = int(float64(width) * float64(maxSize) / float64(height))
		}
		resized := image.NewRGBA(image.Rect(0, 0, max(newWidth, 1), max(newHeight, 1)))
		draw.CatmullRom.Scale(resized, resized.Bounds(), img, bounds, draw.Over, nil)
		out = resized
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: 85}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	return buf.Bytes(), nil
}
