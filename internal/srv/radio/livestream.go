package radio

import (
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const scheduleFilename = "schedule.yaml"

// LiveStream is a scheduled stream a Live station may cut to. Streams are
// ordered by scheduled start time. Ingestion is not implemented yet; Live
// playlists hold and order their schedule but never yield it as content.
type LiveStream struct {
	Location string
	Start    time.Time
	Delay    time.Duration
	MaxPlay  time.Duration
	Host     string
}

// StartsBefore reports whether l is scheduled before other.
func (l LiveStream) StartsBefore(other LiveStream) bool {
	return l.Start.Before(other.Start)
}

type scheduleEntry struct {
	Location       string    `yaml:"location"`
	Start          time.Time `yaml:"start"`
	DelaySeconds   int       `yaml:"delay_seconds"`
	MaxPlaySeconds int       `yaml:"max_play_seconds"`
	Host           string    `yaml:"host"`
}

// LoadSchedule reads a Live station's schedule.yaml. A missing file is an
// empty schedule, not an error.
func LoadSchedule(stationPath string) ([]LiveStream, error) {
	raw, err := os.ReadFile(filepath.Join(stationPath, scheduleFilename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var entries []scheduleEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return nil, err
	}

	streams := make([]LiveStream, 0, len(entries))
	for _, entry := range entries {
		streams = append(streams, LiveStream{
			Location: entry.Location,
			Start:    entry.Start,
			Delay:    time.Duration(entry.DelaySeconds) * time.Second,
			MaxPlay:  time.Duration(entry.MaxPlaySeconds) * time.Second,
			Host:     entry.Host,
		})
	}
	return streams, nil
}
