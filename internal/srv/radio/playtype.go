package radio

import (
	"math/rand"
	"path/filepath"
	"sort"

	"github.com/sirupsen/logrus"
)

// PlayKind enumerates the playlist strategies a station can declare.
type PlayKind int

const (
	// Dead stations have no playlist and never yield a track.
	Dead PlayKind = iota
	// Random picks any track and keeps it in the list.
	Random
	// Shuffle plays every track once in random order, then rescans and
	// reshuffles.
	Shuffle
	// Chronologic plays oldest to newest by modification time, removing
	// tracks as they play.
	Chronologic
	// Reverse plays newest to oldest by modification time, removing tracks
	// as they play.
	Reverse
	// Live holds a schedule of streams ordered by start time. Ingestion is
	// future work; Live never yields a track yet.
	Live
)

func (k PlayKind) String() string {
	switch k {
	case Random:
		return "Random"
	case Shuffle:
		return "Shuffle"
	case Chronologic:
		return "Chronologic"
	case Reverse:
		return "Reverse"
	case Live:
		return "Live"
	default:
		return "Dead"
	}
}

// PlayType couples a playlist strategy with its track container. It is a
// closed variant: adding a strategy means adding a PlayKind and extending
// the switches below.
type PlayType struct {
	kind    PlayKind
	tracks  []Track
	streams []LiveStream

	stationPath string
}

// NewPlayType builds the playlist for one station. Unknown kind strings and
// an explicit "Dead" yield a Dead playlist. A failed directory scan also
// degrades to Dead: it is logged here and never surfaced to the manager.
func NewPlayType(kind string, stationPath string) PlayType {
	p := PlayType{stationPath: stationPath}

	switch kind {
	case "Random":
		p.kind = Random
	case "Shuffle":
		p.kind = Shuffle
	case "Chronologic":
		p.kind = Chronologic
	case "Reverse":
		p.kind = Reverse
	case "Live":
		p.kind = Live
		streams, err := LoadSchedule(stationPath)
		if err != nil {
			logrus.Warnf("Unable to read schedule of %s: %v", stationPath, err)
		}
		p.MergeStreams(streams)
		return p
	default:
		p.kind = Dead
		return p
	}

	tracks, err := LoadTracksFromDir(filepath.Join(stationPath, PlaylistFolder))
	if err != nil {
		logrus.Warnf("Unable to scan playlist of %s: %v", stationPath, err)
		return PlayType{kind: Dead, stationPath: stationPath}
	}
	p.tracks = tracks
	p.arrange()
	return p
}

// arrange puts the container in the order its strategy pops from.
func (p *PlayType) arrange() {
	switch p.kind {
	case Chronologic, Reverse:
		// Ascending by modification time. Ties keep insertion order;
		// callers must not depend on order among equal timestamps.
		sort.SliceStable(p.tracks, func(i, j int) bool {
			return p.tracks[i].Before(p.tracks[j])
		})
	case Shuffle:
		rand.Shuffle(len(p.tracks), func(i, j int) {
			p.tracks[i], p.tracks[j] = p.tracks[j], p.tracks[i]
		})
	}
}

// Kind returns the strategy this playlist was built with.
func (p *PlayType) Kind() PlayKind {
	return p.kind
}

// Len returns how many tracks remain in the container.
func (p *PlayType) Len() int {
	return len(p.tracks)
}

// Advance returns the next track per the strategy, mutating the container
// as the strategy requires. It returns false when the playlist yields
// nothing; deciding whether that takes the station off-air is the station's
// business, not the playlist's.
func (p *PlayType) Advance() (Track, bool) {
	switch p.kind {
	case Random:
		if len(p.tracks) == 0 {
			return Track{}, false
		}
		return p.tracks[rand.Intn(len(p.tracks))], true

	case Shuffle:
		if len(p.tracks) == 0 {
			p.reload()
			if len(p.tracks) == 0 {
				return Track{}, false
			}
		}
		last := len(p.tracks) - 1
		track := p.tracks[last]
		p.tracks = p.tracks[:last]
		return track, true

	case Chronologic:
		if len(p.tracks) == 0 {
			return Track{}, false
		}
		track := p.tracks[0]
		p.tracks = p.tracks[1:]
		return track, true

	case Reverse:
		if len(p.tracks) == 0 {
			return Track{}, false
		}
		last := len(p.tracks) - 1
		track := p.tracks[last]
		p.tracks = p.tracks[:last]
		return track, true

	default:
		// Dead and Live yield nothing.
		return Track{}, false
	}
}

// reload rescans the playlist directory and reshuffles. Only Shuffle
// playlists self-heal this way.
func (p *PlayType) reload() {
	tracks, err := LoadTracksFromDir(filepath.Join(p.stationPath, PlaylistFolder))
	if err != nil {
		logrus.Warnf("Unable to rescan playlist of %s: %v", p.stationPath, err)
		return
	}
	p.tracks = tracks
	p.arrange()
	logrus.Debugf("Reloaded shuffle playlist of %s with %d tracks", p.stationPath, len(p.tracks))
}

// Merge folds freshly scanned tracks into the container. Random playlists
// absorb new tracks; ordered removal strategies would replay history, so
// anything else ignores the merge.
func (p *PlayType) Merge(tracks []Track) {
	switch p.kind {
	case Random:
		known := make(map[string]struct{}, len(p.tracks))
		for _, track := range p.tracks {
			known[track.Location] = struct{}{}
		}
		for _, track := range tracks {
			if _, ok := known[track.Location]; !ok {
				p.tracks = append(p.tracks, track)
			}
		}
	}
}

// MergeStreams folds scheduled streams into a Live playlist, keeping the
// schedule ordered by start time.
func (p *PlayType) MergeStreams(streams []LiveStream) {
	if p.kind != Live {
		return
	}
	p.streams = append(p.streams, streams...)
	sort.SliceStable(p.streams, func(i, j int) bool {
		return p.streams[i].StartsBefore(p.streams[j])
	})
}
