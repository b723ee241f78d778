package radio

import (
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

const stationInfoFilename = "station.info"

// PlaylistFolder is the subdirectory of a station folder holding its tracks.
const PlaylistFolder = "playlist"

// StationInfo is the per-station configuration read from station.info.
// The file is parsed with yaml, which also accepts the historical JSON form
// {"play_type": "Random", "purge": false}.
type StationInfo struct {
	PlayType string `yaml:"play_type"`
	Purge    bool   `yaml:"purge"`
}

// LoadStationInfo reads a station folder's station.info. A missing or
// malformed file is never an error for the caller: it degrades to a Dead
// station so the rest of the bank keeps running.
func LoadStationInfo(stationPath string) StationInfo {
	raw, err := os.ReadFile(filepath.Join(stationPath, stationInfoFilename))
	if err != nil {
		logrus.Warnf("Unable to read station config in %s: %v", stationPath, err)
		return StationInfo{PlayType: "Dead"}
	}

	var info StationInfo
	if err := yaml.Unmarshal(raw, &info); err != nil {
		logrus.Warnf("Unable to interpret station config in %s: %v", stationPath, err)
		return StationInfo{PlayType: "Dead"}
	}
	return info
}
