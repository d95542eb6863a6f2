package camera

import (
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"
)

var stillExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

// DirectoryOpener replays still images from a directory as if they were
// camera frames, one file per sample in name order.
type DirectoryOpener struct {
	Dir string
}

func (o DirectoryOpener) Open(ctx context.Context, c Constraints) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dir := o.Dir
	if c.Device != "" {
		dir = c.Device
	}

	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, os.ErrPermission) {
			return nil, &DeviceError{Reason: ReasonPermissionDenied, Err: err}
		}
		return nil, &DeviceError{Reason: ReasonNoDevice, Err: err}
	}
	if !info.IsDir() {
		return nil, &DeviceError{Reason: ReasonNoDevice, Err: fmt.Errorf("%s is not a directory", dir)}
	}

	return &directoryStream{dir: dir}, nil
}

type directoryStream struct {
	dir string

	mu     sync.Mutex
	next   int
	closed bool
}

// Frame decodes the next file. An empty directory has no frame yet.
func (s *directoryStream) Frame() (image.Image, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	files, err := listStills(s.dir)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}

	path := files[s.next%len(files)]
	s.next++

	img, err := imaging.Open(path, imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}

func (s *directoryStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func listStills(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read frame directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if stillExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			files = append(files, filepath.Join(dir, entry.Name()))
		}
	}
	sort.Strings(files)
	return files, nil
}
