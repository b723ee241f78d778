package srv

import (
	"math/rand"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"mokradio/internal/srv/config"
	"mokradio/internal/srv/device"
	"mokradio/internal/srv/radio"
)

// ServerApp wires the devices together: the input device and the file
// loader each run their own goroutine and talk to the station manager only
// through its channels, so the manager stays the single writer of all
// station state.
type ServerApp struct {
	*config.ServerConfig

	mixerDevice   *device.Mixer
	inputDevice   *device.Input
	loaderDevice  *device.FileLoader
	watcherDevice *device.PlaylistWatcher
	apiDevice     *device.Api

	stationManager *radio.Manager
}

func NewServerApp(configDir string, debugMode bool, simulationMode bool) *ServerApp {
	logrus.Debugf("Creation of mokradio server ...")

	app := &ServerApp{
		ServerConfig: config.NewServerConfig(configDir, debugMode, simulationMode),
	}

	app.mixerDevice = device.NewMixer(app.SimulationMode)
	app.stationManager = radio.NewManager(app.ServerConfig, func(id radio.StationID) radio.Sink {
		return app.mixerDevice.NewSink()
	})
	app.inputDevice = device.NewInput(app.ServerConfig, app.stationManager.InputChannel())
	app.loaderDevice = device.NewFileLoader(app.stationManager.RequestChannel(), app.stationManager.ResponseChannel())

	watcher, err := device.NewPlaylistWatcher(app.GetCompleteStationsFolder(), app.stationManager.RequestChannel())
	if err != nil {
		logrus.Warnf("Playlist watcher unavailable: %v", err)
	} else {
		app.watcherDevice = watcher
	}

	if app.ServerParam.ApiParam.Enabled {
		app.apiDevice = device.NewApi(app.ServerConfig, app.stationManager.ApiChannel())
	}

	logrus.Debugln("Server created")

	return app
}

func (s *ServerApp) Start() {
	logrus.Printf("Starting mokradio server ...")

	// Init random generator
	rand.Seed(time.Now().UnixNano())

	logrus.Printf("Starting devices ...")

	// Start mixer device
	s.mixerDevice.Start()

	// Start file loader device
	s.loaderDevice.Start()

	// Start station manager loop
	s.stationManager.Start()

	// Start input device
	s.inputDevice.Start()

	// Start playlist watcher device
	if s.watcherDevice != nil {
		s.watcherDevice.Start()
	}

	// Start api device
	if s.apiDevice != nil {
		s.apiDevice.Start()
	}
}

func (s *ServerApp) Stop() {
	logrus.Printf("Stopping mokradio server ...")

	// Stop api
	if s.apiDevice != nil {
		s.apiDevice.StopSendingEvent()
	}

	// Stop playlist watcher
	if s.watcherDevice != nil {
		s.watcherDevice.Stop()
	}

	// Stop input device
	s.inputDevice.StopSendingEvent()

	// Stop station manager loop
	s.stationManager.Stop()

	// Stop file loader
	s.loaderDevice.Stop()

	// Stop mixer device
	s.mixerDevice.Stop()

	// Flush config backup
	s.ServerConfig.ServerState.FlushSave()

	logrus.Printf("Server stopped")

	os.Exit(0)
}
