package radio

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"mokradio/apimodel"
	"mokradio/internal/srv/config"
)

// makeStation lays out one station slot under the stations root.
func makeStation(t *testing.T, root string, band Band, index int, kind string, trackCount int) {
	t.Helper()

	dir := filepath.Join(root, band.String(), fmt.Sprintf("%02d", index))
	playlist := filepath.Join(dir, PlaylistFolder)
	if err := os.MkdirAll(playlist, 0o755); err != nil {
		t.Fatal(err)
	}
	info := fmt.Sprintf("play_type: %s\npurge: false\n", kind)
	if err := os.WriteFile(filepath.Join(dir, "station.info"), []byte(info), 0o644); err != nil {
		t.Fatal(err)
	}

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < trackCount; i++ {
		path := filepath.Join(playlist, fmt.Sprintf("track%02d.mp3", i))
		if err := os.WriteFile(path, []byte("not really audio"), 0o644); err != nil {
			t.Fatal(err)
		}
		if err := os.Chtimes(path, base.Add(time.Duration(i)*time.Hour), base.Add(time.Duration(i)*time.Hour)); err != nil {
			t.Fatal(err)
		}
	}
}

type sinkBank map[StationID]*fakeSink

func (b sinkBank) factory(id StationID) Sink {
	sink := &fakeSink{paused: true}
	b[id] = sink
	return sink
}

// newTestManager builds a manager whose loop ticker effectively never
// fires, so tests drive runTick by hand.
func newTestManager(t *testing.T, stationsRoot string) (*Manager, sinkBank) {
	t.Helper()

	cfg := &config.ServerConfig{
		ConfigDir: t.TempDir(),
		ServerParam: &config.ServerParam{
			StationsFolder: stationsRoot,
			AdcSpan:        DefaultAdcSpan,
			TickMillis:     3600000,
			LoadRetryLimit: 3,
		},
		ServerState: config.NewServerState(filepath.Join(t.TempDir(), "state.yaml")),
	}

	bank := make(sinkBank)
	m := NewManager(cfg, bank.factory)
	m.Start()
	m.Stop()
	return m, bank
}

func drainRequests(m *Manager) []FileRequest {
	var requests []FileRequest
	for {
		select {
		case request := <-m.RequestChannel():
			requests = append(requests, request)
		default:
			return requests
		}
	}
}

func TestPrimeRequestsLookaheadFIFO(t *testing.T) {
	root := t.TempDir()
	makeStation(t, root, AM, 0, "Chronologic", 6)

	m, _ := newTestManager(t, root)

	requests := drainRequests(m)
	if len(requests) != 2 {
		t.Fatalf("prime issued %d requests, want 2", len(requests))
	}
	first := requests[0].Data.(FileRequestLoadTrackData)
	second := requests[1].Data.(FileRequestLoadTrackData)
	if filepath.Base(first.FilePath) != "track00.mp3" || filepath.Base(second.FilePath) != "track01.mp3" {
		t.Fatalf("prime requested %s then %s, want oldest two in order",
			first.FilePath, second.FilePath)
	}
	if requests[0].StationID != (StationID{Band: AM, Index: 0}) {
		t.Fatalf("request routed to %v", requests[0].StationID)
	}
}

func TestTurnoverProtocol(t *testing.T) {
	root := t.TempDir()
	makeStation(t, root, AM, 0, "Chronologic", 6)
	makeStation(t, root, AM, 1, "Chronologic", 6)
	makeStation(t, root, AM, 2, "Chronologic", 6)

	m, bank := newTestManager(t, root)
	drainRequests(m)

	span := DefaultAdcSpan
	center := func(index int) int {
		return (2*index + 1) * span / (2 * StationsPerBand)
	}

	// Dial starts at 0, so am/00 is already active.
	am0 := bank[StationID{Band: AM, Index: 0}]
	am1 := bank[StationID{Band: AM, Index: 1}]
	am2 := bank[StationID{Band: AM, Index: 2}]
	if am0.paused {
		t.Fatal("initial target station is paused")
	}

	m.InputChannel() <- InputEvent{Data: InputDialMovedData{AdcValue: center(1)}}
	m.runTick()

	if !am0.paused {
		t.Fatal("old active station was not deactivated")
	}
	if am1.paused {
		t.Fatal("new target station was not activated")
	}
	if am0.skips != 0 {
		t.Fatalf("old active station was skipped %d times during its own turnover", am0.skips)
	}
	if am1.skips != 0 {
		t.Fatalf("new active station was skipped %d times", am1.skips)
	}
	if am2.skips != 1 {
		t.Fatalf("background station skips = %d, want exactly 1", am2.skips)
	}

	if m.active != (StationID{Band: AM, Index: 1}) {
		t.Fatalf("active = %v, want am/01", m.active)
	}
	if am1.volume < 0.9 {
		t.Fatalf("active station volume = %v, want near 1.0", am1.volume)
	}
	if am0.volume > 0.1 {
		t.Fatalf("old station volume = %v, want near 0", am0.volume)
	}
}

func TestTurnoverSkipsOnlyOncePerCycle(t *testing.T) {
	root := t.TempDir()
	makeStation(t, root, AM, 0, "Chronologic", 8)
	makeStation(t, root, AM, 5, "Chronologic", 8)

	m, bank := newTestManager(t, root)
	drainRequests(m)

	span := DefaultAdcSpan
	center := func(index int) int {
		return (2*index + 1) * span / (2 * StationsPerBand)
	}
	am5 := bank[StationID{Band: AM, Index: 5}]

	// Bounce the dial between two dead slots; am/05 stays background.
	m.InputChannel() <- InputEvent{Data: InputDialMovedData{AdcValue: center(2)}}
	m.runTick()
	m.InputChannel() <- InputEvent{Data: InputDialMovedData{AdcValue: center(3)}}
	m.runTick()

	if am5.skips != 1 {
		t.Fatalf("background station skips = %d, want 1 until it is reactivated", am5.skips)
	}
}

func TestBandSwitchKeepsDialValue(t *testing.T) {
	root := t.TempDir()
	makeStation(t, root, AM, 2, "Random", 3)
	makeStation(t, root, FM, 2, "Random", 3)

	m, bank := newTestManager(t, root)
	drainRequests(m)

	span := DefaultAdcSpan
	dial := (2*2 + 1) * span / (2 * StationsPerBand)
	m.InputChannel() <- InputEvent{Data: InputDialMovedData{AdcValue: dial}}
	m.runTick()

	if m.active != (StationID{Band: AM, Index: 2}) {
		t.Fatalf("active = %v, want am/02", m.active)
	}

	m.InputChannel() <- InputEvent{Data: InputBandSwitchedData{IsFM: true}}
	m.runTick()

	if m.active != (StationID{Band: FM, Index: 2}) {
		t.Fatalf("active after band switch = %v, want fm/02", m.active)
	}
	if m.dialValue != dial {
		t.Fatalf("band switch reset the dial: %d, want %d", m.dialValue, dial)
	}
	if v := bank[StationID{Band: AM, Index: 2}].volume; v != 0 {
		t.Fatalf("off-band station volume = %v, want 0", v)
	}
	if v := bank[StationID{Band: FM, Index: 2}].volume; v < 0.9 {
		t.Fatalf("on-band station volume = %v, want near 1.0", v)
	}
}

func TestLoadErrorRetriesTheFailedPath(t *testing.T) {
	root := t.TempDir()
	makeStation(t, root, AM, 0, "Chronologic", 8)

	m, _ := newTestManager(t, root)
	id := StationID{Band: AM, Index: 0}

	primes := drainRequests(m)
	if len(primes) != 2 {
		t.Fatalf("prime issued %d requests, want 2", len(primes))
	}
	first := primes[0].Data.(FileRequestLoadTrackData).FilePath
	second := primes[1].Data.(FileRequestLoadTrackData).FilePath

	// The older request fails while the newer one is still in flight.
	m.ResponseChannel() <- FileResponse{StationID: id, Data: FileResponseLoadErrorData{FilePath: first, Message: "boom"}}
	m.runTick()
	if requests := drainRequests(m); len(requests) != 0 {
		t.Fatalf("sweep issued %d requests with a load still in flight", len(requests))
	}

	m.ResponseChannel() <- FileResponse{StationID: id, Data: FileResponseTrackLoadedData{FilePath: second, Audio: &Audio{Path: second}}}
	m.runTick()

	retries := drainRequests(m)
	if len(retries) != 1 {
		t.Fatalf("sweep issued %d requests, want 1 retry", len(retries))
	}
	if got := retries[0].Data.(FileRequestLoadTrackData).FilePath; got != first {
		t.Fatalf("retry requested %s, want the failed path %s", got, first)
	}
}

func TestLoadErrorStarvesStationAfterRetryLimit(t *testing.T) {
	root := t.TempDir()
	makeStation(t, root, AM, 0, "Chronologic", 8)

	m, bank := newTestManager(t, root)
	id := StationID{Band: AM, Index: 0}

	primes := drainRequests(m)
	if len(primes) != 2 {
		t.Fatalf("prime issued %d requests, want 2", len(primes))
	}
	first := primes[0].Data.(FileRequestLoadTrackData).FilePath
	second := primes[1].Data.(FileRequestLoadTrackData).FilePath

	m.ResponseChannel() <- FileResponse{StationID: id, Data: FileResponseTrackLoadedData{FilePath: second, Audio: &Audio{Path: second}}}
	m.ResponseChannel() <- FileResponse{StationID: id, Data: FileResponseLoadErrorData{FilePath: first, Message: "boom"}}
	m.runTick()

	for attempt := 1; attempt <= 2; attempt++ {
		retries := drainRequests(m)
		if len(retries) != 1 {
			t.Fatalf("attempt %d: sweep issued %d requests, want 1 retry", attempt, len(retries))
		}
		retried := retries[0].Data.(FileRequestLoadTrackData).FilePath
		if retried != first {
			t.Fatalf("attempt %d retried %s, want %s", attempt, retried, first)
		}
		m.ResponseChannel() <- FileResponse{StationID: id, Data: FileResponseLoadErrorData{FilePath: first, Message: "boom"}}
		m.runTick()
	}

	// Third consecutive failure starves the station for good.
	station := m.stations[AM][0]
	if station.IsOnAir() {
		t.Fatal("station still on air after exhausting load retries")
	}
	if !bank[id].paused {
		t.Fatal("starved station sink not paused")
	}
	if requests := drainRequests(m); len(requests) != 0 {
		t.Fatalf("off-air station still prefetching: %d requests", len(requests))
	}
}

func TestResponseRouting(t *testing.T) {
	root := t.TempDir()
	makeStation(t, root, AM, 0, "Chronologic", 6)

	m, bank := newTestManager(t, root)
	id := StationID{Band: AM, Index: 0}
	drainRequests(m)

	m.ResponseChannel() <- FileResponse{StationID: id, Data: FileResponseTrackLoadedData{FilePath: "a", Audio: &Audio{Path: "a"}}}
	m.runTick()
	if got := bank[id].Len(); got != 1 {
		t.Fatalf("delivered queue length = %d, want 1", got)
	}

	// A response for a station that no longer wants it is dropped.
	offAir := StationID{Band: FM, Index: 7} // dead slot, nothing configured
	m.ResponseChannel() <- FileResponse{StationID: offAir, Data: FileResponseTrackLoadedData{FilePath: "b", Audio: &Audio{Path: "b"}}}
	m.runTick()
	if got := bank[offAir].Len(); got != 0 {
		t.Fatalf("off-air station accepted audio: queue length %d", got)
	}

	// A response for a nonsense station id is dropped silently.
	m.ResponseChannel() <- FileResponse{StationID: StationID{Band: AM, Index: 99}, Data: FileResponseLoadErrorData{FilePath: "c", Message: "late"}}
	m.runTick()
}

func TestApiTunerStatus(t *testing.T) {
	root := t.TempDir()
	makeStation(t, root, AM, 0, "Random", 2)

	m, _ := newTestManager(t, root)
	drainRequests(m)

	m.InputChannel() <- InputEvent{Data: InputDialMovedData{AdcValue: 1234}}
	m.runTick()

	ev := ApiEvent{
		Result: make(chan error, 1),
		Data:   ApiTunerStatusData{Reply: make(chan apimodel.TunerStatus, 1)},
	}
	m.handleApi(ev)
	if err := <-ev.Result; err != nil {
		t.Fatal(err)
	}

	status := <-ev.Data.(ApiTunerStatusData).Reply
	if status.DialValue != 1234 || status.Band != "am" {
		t.Fatalf("tuner status = %+v", status)
	}
}

func TestStatusesReportActiveStation(t *testing.T) {
	root := t.TempDir()
	makeStation(t, root, AM, 0, "Chronologic", 4)

	m, _ := newTestManager(t, root)
	drainRequests(m)
	m.runTick()

	statuses := m.statuses()
	if len(statuses) != 2*StationsPerBand {
		t.Fatalf("statuses count = %d, want %d", len(statuses), 2*StationsPerBand)
	}

	var active int
	for _, status := range statuses {
		if status.Active {
			active++
			if status.Band != "am" || status.Index != 0 {
				t.Fatalf("active station is %s/%02d, want am/00", status.Band, status.Index)
			}
			if status.PlayType != "Chronologic" {
				t.Fatalf("active station play type = %s", status.PlayType)
			}
		}
	}
	if active != 1 {
		t.Fatalf("%d stations marked active, want 1", active)
	}
}
