// Package frames turns a video, or a directory of extracted images, into an ordered
// sequence of sampled frames.
package frames

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/Veraticus/assembly-verify/internal/common"
	"github.com/Veraticus/assembly-verify/internal/model"
	"github.com/Veraticus/assembly-verify/internal/service"
)

// Options controls frame sampling.
type Options struct {
	FFmpegPath string
	FPS        float64
	Stride     int
}

// DefaultOptions returns the default sampling: every 8th frame of a 30 fps video.
func DefaultOptions() Options {
	return Options{
		FFmpegPath: "ffmpeg",
		FPS:        30,
		Stride:     8,
	}
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.FFmpegPath == "" {
		o.FFmpegPath = def.FFmpegPath
	}
	if o.FPS <= 0 {
		o.FPS = def.FPS
	}
	if o.Stride <= 0 {
		o.Stride = def.Stride
	}
	return o
}

var imageExts = map[string]struct{}{
	".jpg":  {},
	".jpeg": {},
	".png":  {},
}

// DirSource yields the images of a directory in frame-number order. Each image stands for every
// Stride-th video frame, so image n is stamped n*Stride/FPS seconds.
type DirSource struct {
	dir   string
	paths []string
	opts  Options
	next  int
	mu    sync.Mutex
}

var _ service.FrameSource = (*DirSource)(nil)

// NewDirSource lists the images in dir.
func NewDirSource(dir string, opts Options) (*DirSource, error) {
	opts = opts.withDefaults()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceUnavailable, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if _, ok := imageExts[strings.ToLower(filepath.Ext(e.Name()))]; ok {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("%w: no images in %s", common.ErrSourceUnavailable, dir)
	}
	sortFrames(paths)

	return &DirSource{dir: dir, paths: paths, opts: opts}, nil
}

// sortFrames orders paths by name, comparing a trailing frame number numerically so that
// frame_10000 follows frame_9999.
func sortFrames(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		pi, ni, oki := frameNumber(paths[i])
		pj, nj, okj := frameNumber(paths[j])
		if oki && okj && pi == pj && ni != nj {
			return ni < nj
		}
		return paths[i] < paths[j]
	})
}

// frameNumber splits the base name of path into its prefix and trailing number.
func frameNumber(path string) (string, uint64, bool) {
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	end := len(name)
	start := end
	for start > 0 && name[start-1] >= '0' && name[start-1] <= '9' {
		start--
	}
	if start == end {
		return name, 0, false
	}
	n, err := strconv.ParseUint(name[start:], 10, 64)
	if err != nil {
		return name, 0, false
	}
	return name[:start], n, true
}

// Next implements service.FrameSource.
func (s *DirSource) Next(ctx context.Context) (model.Frame, error) {
	if err := ctx.Err(); err != nil {
		return model.Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.next >= len(s.paths) {
		return model.Frame{}, io.EOF
	}
	i := s.next
	s.next++

	path := s.paths[i]
	return model.Frame{
		ID:        strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:      path,
		Index:     i,
		Timestamp: float64(i*s.opts.Stride) / s.opts.FPS,
	}, nil
}

// Len returns the number of frames the source yields in total.
func (s *DirSource) Len() int {
	return len(s.paths)
}

// Close implements service.FrameSource.
func (s *DirSource) Close() error {
	return nil
}

// Open returns a source for path: a directory of images is read directly, anything else
// is treated as a video and sampled into outDir/frames.
func Open(ctx context.Context, path, outDir string, opts Options) (*DirSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", common.ErrSourceUnavailable, err)
	}
	if info.IsDir() {
		return NewDirSource(path, opts)
	}
	return NewVideoSource(ctx, path, outDir, opts)
}
