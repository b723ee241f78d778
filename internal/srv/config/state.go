package config

import (
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// ServerState is the small bit of radio state that survives a restart: the
// last dial position and band selection. Writes are debounced so dial
// sweeps do not hammer the filesystem.
type ServerState struct {
	serverStateConfig     ServerStateConfig
	lock                  sync.RWMutex
	backupTimer           *time.Timer
	completeStateFilename string
}

func NewServerState(completeStateFilename string) *ServerState {
	serverState := &ServerState{
		completeStateFilename: completeStateFilename,
	}

	rawConfig, err := os.ReadFile(completeStateFilename)
	if err == nil {
		err = yaml.Unmarshal(rawConfig, &serverState.serverStateConfig)
		if err != nil {
			logrus.Fatalf("Unable to interpret state file: %v\n", err)
		}
	} else {
		logrus.Infof("Create default state file")
		serverState.SetDial(0)
		serverState.SetBandFM(false)
	}

	return serverState
}

func (ss *ServerState) Dial() int {
	ss.lock.RLock()
	defer ss.lock.RUnlock()

	return ss.serverStateConfig.DialValue
}

func (ss *ServerState) SetDial(value int) {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	ss.serverStateConfig.DialValue = value
	ss.scheduleSave()
}

func (ss *ServerState) IsBandFM() bool {
	ss.lock.RLock()
	defer ss.lock.RUnlock()

	return ss.serverStateConfig.BandFM
}

func (ss *ServerState) SetBandFM(isFM bool) {
	ss.lock.Lock()
	defer ss.lock.Unlock()

	ss.serverStateConfig.BandFM = isFM
	ss.scheduleSave()
}

func (ss *ServerState) scheduleSave() {
	if ss.backupTimer == nil {
		ss.backupTimer = time.AfterFunc(10*time.Second, func() {
			ss.lock.Lock()
			defer ss.lock.Unlock()
			ss.save()
		})
	} else {
		ss.backupTimer.Reset(10 * time.Second)
	}
}

func (ss *ServerState) save() {
	logrus.Infof("Save state file: %s", ss.completeStateFilename)
	rawConfig, err := yaml.Marshal(&ss.serverStateConfig)
	if err != nil {
		logrus.Fatalf("Unable to serialize state file: %v\n", err)
	}
	err = os.WriteFile(ss.completeStateFilename, rawConfig, 0660)
	if err != nil {
		logrus.Errorf("Unable to save state file: %v\n", err)
	}
}

func (ss *ServerState) FlushSave() {
	ss.lock.Lock()
	defer ss.lock.Unlock()
	if ss.backupTimer != nil {
		if ss.backupTimer.Stop() {
			ss.save()
		}
	}
}

type ServerStateConfig struct {
	DialValue int  `yaml:"dial_value"`
	BandFM    bool `yaml:"band_fm"`
}
