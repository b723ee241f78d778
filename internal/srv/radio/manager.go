package radio

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"

	"mokradio/apimodel"
	"mokradio/internal/srv/config"
)

// ApiEvent carries a remote-control request into the manager loop. The
// handler answers on Result so the api device can finish its HTTP response.
type ApiEvent struct {
	Result chan error
	Data   interface{}
}

type ApiDialMovedData struct {
	AdcValue int
}

type ApiBandSwitchedData struct {
	IsFM bool
}

type ApiStatusData struct {
	Reply chan []apimodel.StationStatus
}

type ApiTunerStatusData struct {
	Reply chan apimodel.TunerStatus
}

// SinkFactory builds the playback queue for one station slot.
type SinkFactory func(id StationID) Sink

// Manager owns every station on both bands and is the only goroutine that
// touches their state. It polls its three inbound channels without ever
// blocking on them and sleeps one tick between passes.
type Manager struct {
	serverConfig *config.ServerConfig

	stations [2][StationsPerBand]*Station

	currentBand Band
	dialValue   int
	active      StationID
	haveActive  bool

	lastVolumes [2][StationsPerBand]float64

	inputChannel    chan InputEvent
	apiChannel      chan ApiEvent
	requestChannel  chan FileRequest
	responseChannel chan FileResponse

	askDone chan bool
	done    chan bool
}

// NewManager builds all 24 stations from the directory layout under the
// configured stations folder: <stations>/am/00 .. <stations>/fm/11. A
// missing slot directory simply yields a dead station.
func NewManager(serverConfig *config.ServerConfig, sinks SinkFactory) *Manager {
	m := &Manager{
		serverConfig:    serverConfig,
		inputChannel:    make(chan InputEvent, 64),
		apiChannel:      make(chan ApiEvent),
		requestChannel:  make(chan FileRequest, 128),
		responseChannel: make(chan FileResponse, 64),
		askDone:         make(chan bool),
		done:            make(chan bool),
	}

	root := serverConfig.GetCompleteStationsFolder()
	for _, band := range []Band{AM, FM} {
		for index := 0; index < StationsPerBand; index++ {
			id := StationID{Band: band, Index: index}
			stationPath := filepath.Join(root, band.String(), fmt.Sprintf("%02d", index))
			m.stations[band][index] = NewStation(stationPath, sinks(id))
		}
	}

	m.dialValue = serverConfig.ServerState.Dial()
	if serverConfig.ServerState.IsBandFM() {
		m.currentBand = FM
	}

	return m
}

// InputChannel is where the input device pushes tuning events.
func (m *Manager) InputChannel() chan InputEvent {
	return m.inputChannel
}

// ApiChannel is where the api device pushes remote-control events.
func (m *Manager) ApiChannel() chan ApiEvent {
	return m.apiChannel
}

// RequestChannel feeds the file loader, FIFO.
func (m *Manager) RequestChannel() chan FileRequest {
	return m.requestChannel
}

// ResponseChannel is where the file loader answers.
func (m *Manager) ResponseChannel() chan FileResponse {
	return m.responseChannel
}

// Start primes every station's lookahead and launches the manager loop.
func (m *Manager) Start() {
	logrus.Infof("Start station manager")

	for _, band := range []Band{AM, FM} {
		for index := 0; index < StationsPerBand; index++ {
			station := m.stations[band][index]
			for _, path := range station.Prime() {
				m.enqueueLoad(StationID{Band: band, Index: index}, station, path)
			}
		}
	}

	// First tune-in is not a turnover: no station earns a background skip
	// before anything has played.
	target := StationID{
		Band:  m.currentBand,
		Index: TargetSlot(m.dialValue, m.serverConfig.ServerParam.AdcSpan),
	}
	if station := m.stations[target.Band][target.Index]; station.IsOnAir() {
		station.Activate()
	}
	m.active = target
	m.haveActive = true
	m.applyVolumes()

	go m.loop()
}

// Stop shuts the manager loop down and waits for it.
func (m *Manager) Stop() {
	logrus.Infof("Stop station manager")
	m.askDone <- true
	<-m.done
}

func (m *Manager) loop() {
	tick := time.Duration(m.serverConfig.ServerParam.TickMillis) * time.Millisecond
	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for loop := true; loop; {
		select {
		case <-ticker.C:
			m.runTick()
		case <-m.askDone:
			loop = false
		}
	}
	m.done <- true
}

// runTick is one full drain-and-recompute pass. Nothing in it blocks.
func (m *Manager) runTick() {
	m.drainInput()
	m.drainApi()
	m.drainResponses()
	m.retune()
	m.prefetchSweep()
	m.applyVolumes()
}

func (m *Manager) drainInput() {
	for {
		select {
		case ev := <-m.inputChannel:
			m.handleInput(ev)
		default:
			return
		}
	}
}

func (m *Manager) handleInput(ev InputEvent) {
	switch data := ev.Data.(type) {
	case InputDialMovedData:
		logrus.Debugf("Dial moved to %d", data.AdcValue)
		m.dialValue = data.AdcValue
		m.serverConfig.ServerState.SetDial(data.AdcValue)
	case InputBandSwitchedData:
		band := AM
		if data.IsFM {
			band = FM
		}
		if band != m.currentBand {
			logrus.Infof("Band switched to %s", band)
			m.currentBand = band
			m.serverConfig.ServerState.SetBandFM(data.IsFM)
		}
	}
}

func (m *Manager) drainApi() {
	for {
		select {
		case ev := <-m.apiChannel:
			m.handleApi(ev)
		default:
			return
		}
	}
}

func (m *Manager) handleApi(ev ApiEvent) {
	switch data := ev.Data.(type) {
	case ApiDialMovedData:
		m.handleInput(InputEvent{Data: InputDialMovedData{AdcValue: data.AdcValue}})
		ev.Result <- nil
	case ApiBandSwitchedData:
		m.handleInput(InputEvent{Data: InputBandSwitchedData{IsFM: data.IsFM}})
		ev.Result <- nil
	case ApiStatusData:
		data.Reply <- m.statuses()
		ev.Result <- nil
	case ApiTunerStatusData:
		data.Reply <- apimodel.TunerStatus{DialValue: m.dialValue, Band: m.currentBand.String()}
		ev.Result <- nil
	default:
		ev.Result <- fmt.Errorf("unknown api event")
	}
}

// retune recomputes the dial target and drives the turnover protocol when
// the target changed: deactivate the old active station, activate the new
// one, then give every other on-air station its one background skip.
func (m *Manager) retune() {
	target := StationID{
		Band:  m.currentBand,
		Index: TargetSlot(m.dialValue, m.serverConfig.ServerParam.AdcSpan),
	}

	if m.haveActive && target == m.active {
		return
	}

	previous := m.active
	hadActive := m.haveActive

	if hadActive {
		m.stations[previous.Band][previous.Index].Deactivate()
	}

	newStation := m.stations[target.Band][target.Index]
	if newStation.IsOnAir() {
		newStation.Activate()
	}

	logrus.Debugf("Turnover to %s/%02d", target.Band, target.Index)

	for _, band := range []Band{AM, FM} {
		for index := 0; index < StationsPerBand; index++ {
			id := StationID{Band: band, Index: index}
			if id == target || (hadActive && id == previous) {
				continue
			}
			station := m.stations[band][index]
			if !station.IsOnAir() {
				continue
			}
			if path, ok := station.Skip(); ok {
				m.enqueueLoad(id, station, path)
			}
		}
	}

	m.active = target
	m.haveActive = true
}

// prefetchSweep keeps every on-air station's lookahead full. In steady
// state at most one loader request is outstanding per station; priming and
// turnover skips may briefly leave two in flight. A station with a failed
// request re-requests the failed path, once nothing else is in flight,
// instead of advancing past it.
func (m *Manager) prefetchSweep() {
	for _, band := range []Band{AM, FM} {
		for index := 0; index < StationsPerBand; index++ {
			station := m.stations[band][index]
			if !station.IsOnAir() || len(station.outstanding) > 0 || !station.NeedsPrefetch() {
				continue
			}

			path := station.retryPath
			if path == "" {
				var ok bool
				path, ok = station.AdvanceAndShift()
				if !ok {
					continue
				}
			}
			m.enqueueLoad(StationID{Band: band, Index: index}, station, path)
		}
	}
}

// enqueueLoad hands one load request to the file loader without ever
// blocking the tick; a full queue leaves the path behind as a retry for
// the next sweep.
func (m *Manager) enqueueLoad(id StationID, station *Station, path string) {
	select {
	case m.requestChannel <- FileRequest{StationID: id, Data: FileRequestLoadTrackData{FilePath: path}}:
		station.outstanding = append(station.outstanding, path)
		if station.retryPath == path {
			station.retryPath = ""
		}
	default:
		logrus.Warnf("Load queue full, delaying request for %s", path)
		station.retryPath = path
	}
}

func (m *Manager) drainResponses() {
	for {
		select {
		case resp := <-m.responseChannel:
			m.handleResponse(resp)
		default:
			return
		}
	}
}

func (m *Manager) handleResponse(resp FileResponse) {
	if resp.StationID.Index < 0 || resp.StationID.Index >= StationsPerBand ||
		(resp.StationID.Band != AM && resp.StationID.Band != FM) {
		// Protocol error, dropped silently.
		logrus.Debugf("Dropping response for unknown station %v", resp.StationID)
		return
	}
	station := m.stations[resp.StationID.Band][resp.StationID.Index]

	switch data := resp.Data.(type) {
	case FileResponseTrackLoadedData:
		station.forgetRequest(data.FilePath)
		station.loadFailures = 0
		if !station.IsOnAir() {
			// Station stopped expecting this while the load was in flight.
			logrus.Debugf("Discarding loaded audio for off-air station %s/%02d",
				resp.StationID.Band, resp.StationID.Index)
			return
		}
		station.Deliver(data.Audio)

	case FileResponseDirectoryScannedData:
		station.playList.Merge(data.Tracks)

	case FileResponseLoadErrorData:
		if !station.forgetRequest(data.FilePath) {
			// Directory scan failure or a stale response; nothing to retry.
			logrus.Warnf("Load error for %s: %s", data.FilePath, data.Message)
			return
		}
		station.loadFailures++
		logrus.Warnf("Load error for station %s/%02d (%d/%d): %s",
			resp.StationID.Band, resp.StationID.Index,
			station.loadFailures, m.serverConfig.ServerParam.LoadRetryLimit, data.Message)
		if station.loadFailures >= m.serverConfig.ServerParam.LoadRetryLimit {
			logrus.Errorf("Station %s/%02d starved after %d load errors, going off air",
				resp.StationID.Band, resp.StationID.Index, station.loadFailures)
			station.retryPath = ""
			station.GoOffAir()
			return
		}
		station.retryPath = data.FilePath
	}
}

// applyVolumes pushes the crossfade curve to every station whose level
// changed since the previous tick. The off band is silent.
func (m *Manager) applyVolumes() {
	for _, band := range []Band{AM, FM} {
		for index := 0; index < StationsPerBand; index++ {
			volume := 0.0
			if band == m.currentBand {
				volume = SlotVolume(m.dialValue, m.serverConfig.ServerParam.AdcSpan, index)
			}
			if volume != m.lastVolumes[band][index] {
				m.stations[band][index].SetVolume(volume)
				m.lastVolumes[band][index] = volume
			}
		}
	}
}

func (m *Manager) statuses() []apimodel.StationStatus {
	var statuses []apimodel.StationStatus
	for _, band := range []Band{AM, FM} {
		for index := 0; index < StationsPerBand; index++ {
			station := m.stations[band][index]
			status := apimodel.StationStatus{
				Band:     band.String(),
				Index:    index,
				PlayType: station.Kind().String(),
				OnAir:    station.IsOnAir(),
				Active:   m.haveActive && m.active == (StationID{Band: band, Index: index}),
				QueueLen: station.QueueLen(),
				Volume:   station.Volume(),
			}
			if track := station.CurrentTrack(); track != nil {
				status.CurrentTitle = track.Title
			}
			statuses = append(statuses, status)
		}
	}
	return statuses
}
