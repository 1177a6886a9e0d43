package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

const (
	segmentExt   = ".seg"
	lockFileName = "LOCK"
)

// segment is a log file named by a KSUID. KSUID strings sort in creation
// order, so the newest segment is always last.
type segment struct {
	id   ksuid.KSUID
	path string
}

func (s segment) name() string {
	return filepath.Base(s.path)
}

// createdAt returns the second at which the segment was started
func (s segment) createdAt() time.Time {
	return s.id.Time()
}

// newSegment allocates a segment that sorts after last
func newSegment(dir string, last *segment) segment {
	id := ksuid.New()
	if last != nil && ksuid.Compare(id, last.id) <= 0 {
		id = last.id.Next()
	}
	return segment{id: id, path: filepath.Join(dir, id.String()+segmentExt)}
}

// listSegments returns the segments in dir ordered oldest first. Files that
// do not carry a segment name are ignored.
func listSegments(dir string) ([]segment, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list segments: %w", err)
	}

	segments := make([]segment, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), segmentExt) {
			continue
		}
		id, err := ksuid.Parse(strings.TrimSuffix(entry.Name(), segmentExt))
		if err != nil {
			log.Warn("ignoring file with invalid segment name", "file", entry.Name(), "error", err)
			continue
		}
		segments = append(segments, segment{id: id, path: filepath.Join(dir, entry.Name())})
	}

	sort.Slice(segments, func(i, j int) bool {
		return ksuid.Compare(segments[i].id, segments[j].id) < 0
	})
	return segments, nil
}
