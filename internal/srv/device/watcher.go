package device

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"mokradio/internal/srv/radio"
)

const rescanDebounce = 2 * time.Second

// PlaylistWatcher watches every station's playlist directory and, when its
// contents change, asks the file loader for a fresh scan. The resulting
// DirectoryScanned response lets Random and Live stations pick up new
// files without a restart.
type PlaylistWatcher struct {
	watcher         *fsnotify.Watcher
	requestChannel  chan radio.FileRequest
	stationsByDir   map[string]radio.StationID
	rescanMu        sync.Mutex
	rescanTimers    map[radio.StationID]*time.Timer
	done            chan struct{}
	wg              sync.WaitGroup
	closeOnce       sync.Once
}

func NewPlaylistWatcher(stationsRoot string, requestChannel chan radio.FileRequest) (*PlaylistWatcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &PlaylistWatcher{
		watcher:        watcher,
		requestChannel: requestChannel,
		stationsByDir:  make(map[string]radio.StationID),
		rescanTimers:   make(map[radio.StationID]*time.Timer),
		done:           make(chan struct{}),
	}

	for _, band := range []radio.Band{radio.AM, radio.FM} {
		for index := 0; index < radio.StationsPerBand; index++ {
			dir := filepath.Join(stationsRoot, band.String(), fmt.Sprintf("%02d", index), radio.PlaylistFolder)
			if info, err := os.Stat(dir); err != nil || !info.IsDir() {
				continue
			}
			if err := w.watcher.Add(dir); err != nil {
				logrus.Warnf("Unable to watch playlist dir %s: %v", dir, err)
				continue
			}
			w.stationsByDir[dir] = radio.StationID{Band: band, Index: index}
		}
	}

	return w, nil
}

func (w *PlaylistWatcher) Start() {
	logrus.Infof("Start playlist watcher device (%d directories)", len(w.stationsByDir))

	w.wg.Add(1)
	go w.run()
}

func (w *PlaylistWatcher) Stop() {
	logrus.Infof("Stop playlist watcher device")

	w.closeOnce.Do(func() {
		close(w.done)

		w.rescanMu.Lock()
		for _, timer := range w.rescanTimers {
			timer.Stop()
		}
		w.rescanMu.Unlock()

		w.watcher.Close()
		w.wg.Wait()
	})
}

func (w *PlaylistWatcher) run() {
	defer w.wg.Done()

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logrus.Warnf("Playlist watcher error: %v", err)
		case <-w.done:
			return
		}
	}
}

func (w *PlaylistWatcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}

	dir := filepath.Dir(event.Name)
	id, ok := w.stationsByDir[dir]
	if !ok {
		return
	}
	w.scheduleRescan(id, dir)
}

func (w *PlaylistWatcher) scheduleRescan(id radio.StationID, dir string) {
	select {
	case <-w.done:
		return
	default:
	}

	w.rescanMu.Lock()
	defer w.rescanMu.Unlock()

	if timer, ok := w.rescanTimers[id]; ok {
		timer.Stop()
	}
	w.rescanTimers[id] = time.AfterFunc(rescanDebounce, func() {
		select {
		case w.requestChannel <- radio.FileRequest{
			StationID: id,
			Data:      radio.FileRequestScanDirectoryData{DirectoryPath: dir},
		}:
			logrus.Debugf("Requested rescan of %s", dir)
		default:
			logrus.Warnf("Load queue full, dropping rescan of %s", dir)
		}
	})
}
