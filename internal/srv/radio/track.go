package radio

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhowden/tag"
	"github.com/sirupsen/logrus"
	"github.com/tcolgate/mp3"
)

// Track is an immutable description of one audio file in a station's
// playlist. Tracks are ordered and compared by file modification time,
// which is what Chronologic and Reverse playlists sort on.
type Track struct {
	Duration time.Duration
	Modified time.Time
	Location string
	Title    string
}

// Before reports whether t was modified strictly before other.
func (t Track) Before(other Track) bool {
	return t.Modified.Before(other.Modified)
}

// Same reports whether two tracks carry the same modification time.
// Collisions between distinct files are accepted as a known limitation.
func (t Track) Same(other Track) bool {
	return t.Modified.Equal(other.Modified)
}

var playableExtensions = map[string]struct{}{
	".mp3": {},
	".ogg": {},
}

// LoadTracksFromDir scans the direct children of a playlist directory and
// returns a Track for every readable audio file. Directories, unreadable
// entries and files with unknown extensions are skipped. A missing or
// unreadable directory returns an error so the caller can degrade the
// playlist instead of panicking.
func LoadTracksFromDir(playlistPath string) ([]Track, error) {
	entries, err := os.ReadDir(playlistPath)
	if err != nil {
		return nil, err
	}

	var tracks []Track
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if _, ok := playableExtensions[ext]; !ok {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			logrus.Warnf("Skipping unreadable playlist entry %s: %v", entry.Name(), err)
			continue
		}
		location := filepath.Join(playlistPath, entry.Name())

		track := Track{
			Modified: info.ModTime(),
			Location: location,
			Title:    strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name())),
		}
		if title := readTitle(location); title != "" {
			track.Title = title
		}
		if ext == ".mp3" {
			if duration, err := computeMP3Duration(location); err == nil {
				track.Duration = duration
			} else {
				logrus.Debugf("Unable to compute duration of %s: %v", location, err)
			}
		}
		tracks = append(tracks, track)
	}
	return tracks, nil
}

func readTitle(path string) string {
	f, err := os.Open(path)
	if err != nil {
		return ""
	}
	defer f.Close()

	meta, err := tag.ReadFrom(f)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(meta.Title())
}

func computeMP3Duration(path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	decoder := mp3.NewDecoder(f)
	var frame mp3.Frame
	var skipped int
	var total time.Duration

	for {
		err := decoder.Decode(&frame, &skipped)
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return 0, err
		}
		total += frame.Duration()
	}
	return total, nil
}
