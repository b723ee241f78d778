package radio

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Content is what a station slot holds: a local track now, a live stream
// later. At most one arm is set.
type Content struct {
	Track *Track
	Live  *LiveStream
}

// Station is one independently advancing playlist bound to one audio sink.
// All fields are owned by the station manager goroutine; nothing else ever
// reads or writes them.
type Station struct {
	currentContent *Content
	nextContent    *Content
	playList       PlayType
	purge          bool
	onAir          bool
	hasSkipped     bool
	sink           Sink
	stationPath    string
	volume         float64

	// Prefetch bookkeeping, maintained by the manager. outstanding holds
	// the paths requested from the loader and not yet answered, oldest
	// first; up to two sit here after Prime or a turnover skip. retryPath
	// is a failed path the sweep must re-request before advancing past it.
	outstanding  []string
	retryPath    string
	loadFailures int
}

// NewStation builds a station from its folder. A missing folder, bad
// station.info or unreadable playlist degrades to a permanently Dead
// station; construction never fails.
func NewStation(stationPath string, sink Sink) *Station {
	info := LoadStationInfo(stationPath)
	playList := NewPlayType(info.PlayType, stationPath)

	station := &Station{
		playList:    playList,
		purge:       info.Purge,
		sink:        sink,
		stationPath: stationPath,
	}

	if playList.Kind() == Dead {
		logrus.Infof("Station %s is dead", stationPath)
	} else {
		station.onAir = true
		logrus.Infof("Station %s on air (%s, %d tracks)", stationPath, playList.Kind(), playList.Len())
	}
	return station
}

// whatNext pulls one track from the playlist strategy. An exhausted
// Chronologic or Reverse playlist takes the station off-air for good;
// Random and Shuffle self-heal inside PlayType.
func (s *Station) whatNext() (Track, bool) {
	track, ok := s.playList.Advance()
	if !ok {
		switch s.playList.Kind() {
		case Chronologic, Reverse:
			if s.onAir {
				logrus.Infof("Station %s playlist exhausted, going off air", s.stationPath)
				s.GoOffAir()
			}
		}
		return Track{}, false
	}
	return track, true
}

// AdvanceAndShift pulls the next track, shifts nextContent into
// currentContent and stores the new track as nextContent. It returns the
// new nextContent's path, to be requested from the file loader. When the
// strategy yields nothing the station state is left untouched.
func (s *Station) AdvanceAndShift() (string, bool) {
	track, ok := s.whatNext()
	if !ok {
		return "", false
	}

	finished := s.currentContent
	s.currentContent = s.nextContent
	s.nextContent = &Content{Track: &track}

	if finished != nil && finished.Track != nil && s.purge {
		if err := os.Remove(finished.Track.Location); err != nil {
			logrus.Warnf("Unable to purge played track %s: %v", finished.Track.Location, err)
		} else {
			logrus.Debugf("Purged played track %s", finished.Track.Location)
		}
	}

	return track.Location, true
}

// Prime populates currentContent and nextContent after construction and
// returns the up-to-two paths that must be loaded before this station can
// produce audio. An exhausted or dead playlist returns fewer paths.
func (s *Station) Prime() []string {
	var paths []string
	for i := 0; i < 2; i++ {
		if path, ok := s.AdvanceAndShift(); ok {
			paths = append(paths, path)
		}
	}
	return paths
}

// NeedsPrefetch reports whether the sink's lookahead has dropped below two
// queued items.
func (s *Station) NeedsPrefetch() bool {
	if s.sink == nil {
		return false
	}
	return s.sink.Len() < 2
}

// Deliver appends decoded audio to the sink queue.
func (s *Station) Deliver(audio *Audio) {
	if s.sink != nil {
		s.sink.Append(audio)
	}
}

// GoOnAir marks the station eligible to produce audio. Dead stations never
// re-evaluate their playlist, so this has no effect on them.
func (s *Station) GoOnAir() {
	if s.playList.Kind() == Dead {
		return
	}
	s.onAir = true
}

// GoOffAir pauses the sink and marks the station silent.
func (s *Station) GoOffAir() {
	if s.sink != nil {
		s.sink.Pause()
	}
	s.onAir = false
}

// Activate unpauses the sink when this station becomes the dial target and
// rearms Skip for the next turnover.
func (s *Station) Activate() {
	if s.sink != nil {
		s.sink.Play()
	}
	s.hasSkipped = false
}

// Deactivate pauses the sink when the dial moves away. hasSkipped is left
// as-is; only Activate clears it.
func (s *Station) Deactivate() {
	if s.sink != nil {
		s.sink.Pause()
	}
}

// Skip advances the station one track in background radio time. It is
// effective once per turnover cycle: a second call before the next Activate
// does nothing. On success it returns the path of the new nextContent for
// prefetching.
func (s *Station) Skip() (string, bool) {
	if s.hasSkipped || s.sink == nil {
		return "", false
	}
	s.hasSkipped = true
	s.sink.SkipOne()
	return s.AdvanceAndShift()
}

// forgetRequest drops the oldest outstanding load request matching path
// and reports whether one was found.
func (s *Station) forgetRequest(path string) bool {
	for i, p := range s.outstanding {
		if p == path {
			s.outstanding = append(s.outstanding[:i], s.outstanding[i+1:]...)
			return true
		}
	}
	return false
}

// SetVolume forwards a crossfade level in [0,1] to the sink.
func (s *Station) SetVolume(volume float64) {
	s.volume = volume
	if s.sink != nil {
		s.sink.SetVolume(volume)
	}
}

// IsOnAir reports whether the station currently holds a playable playlist.
func (s *Station) IsOnAir() bool {
	return s.onAir
}

// CurrentTrack returns the track playing or about to play, if any.
func (s *Station) CurrentTrack() *Track {
	if s.currentContent == nil {
		return nil
	}
	return s.currentContent.Track
}

// QueueLen returns how many decoded items sit in the sink.
func (s *Station) QueueLen() int {
	if s.sink == nil {
		return 0
	}
	return s.sink.Len()
}

// Kind returns the playlist strategy this station runs.
func (s *Station) Kind() PlayKind {
	return s.playList.Kind()
}

// Volume returns the last crossfade level applied to the sink.
func (s *Station) Volume() float64 {
	return s.volume
}
