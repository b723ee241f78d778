package device

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	mp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	"github.com/sirupsen/logrus"

	"mokradio/internal/srv/radio"
)

// FileLoader is the only component that touches the disk for audio data.
// It buffers requests in arrival order and answers each one with exactly
// one response, so slow decodes never stall the station manager.
type FileLoader struct {
	lock sync.RWMutex

	requestChannel  chan radio.FileRequest
	responseChannel chan radio.FileResponse

	queue []radio.FileRequest

	askDone chan bool
	done    chan bool
}

func NewFileLoader(requestChannel chan radio.FileRequest, responseChannel chan radio.FileResponse) *FileLoader {
	return &FileLoader{
		requestChannel:  requestChannel,
		responseChannel: responseChannel,
		askDone:         make(chan bool),
		done:            make(chan bool),
	}
}

func (d *FileLoader) Start() {
	logrus.Infof("Start file loader device")

	go func() {
		for loop := true; loop; {
			// Pull everything pending into the FIFO buffer.
			for drained := false; !drained; {
				select {
				case request := <-d.requestChannel:
					d.queue = append(d.queue, request)
				default:
					drained = true
				}
			}

			if len(d.queue) > 0 {
				request := d.queue[0]
				d.queue = d.queue[1:]
				// The manager may already be gone at shutdown; never get
				// stuck on a response it will not read.
				select {
				case d.responseChannel <- d.process(request):
				case <-d.askDone:
					loop = false
				}
				continue
			}

			select {
			case <-d.askDone:
				loop = false
			case <-time.After(10 * time.Millisecond):
			}
		}
		d.done <- true
	}()
}

func (d *FileLoader) Stop() {
	logrus.Infof("Stop file loader device")
	d.askDone <- true
	<-d.done
}

func (d *FileLoader) process(request radio.FileRequest) radio.FileResponse {
	switch data := request.Data.(type) {
	case radio.FileRequestLoadTrackData:
		audio, err := decodeFile(data.FilePath)
		if err != nil {
			return radio.FileResponse{
				StationID: request.StationID,
				Data:      radio.FileResponseLoadErrorData{FilePath: data.FilePath, Message: err.Error()},
			}
		}
		return radio.FileResponse{
			StationID: request.StationID,
			Data:      radio.FileResponseTrackLoadedData{FilePath: data.FilePath, Audio: audio},
		}

	case radio.FileRequestScanDirectoryData:
		tracks, err := radio.LoadTracksFromDir(data.DirectoryPath)
		if err != nil {
			return radio.FileResponse{
				StationID: request.StationID,
				Data:      radio.FileResponseLoadErrorData{FilePath: data.DirectoryPath, Message: err.Error()},
			}
		}
		return radio.FileResponse{
			StationID: request.StationID,
			Data:      radio.FileResponseDirectoryScannedData{Tracks: tracks},
		}

	default:
		return radio.FileResponse{
			StationID: request.StationID,
			Data:      radio.FileResponseLoadErrorData{Message: "unknown file request"},
		}
	}
}

// decodeFile loads one audio file fully into interleaved 16-bit PCM.
func decodeFile(path string) (*radio.Audio, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open %s: %w", path, err)
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".mp3":
		return decodeMP3(path, f)
	case ".ogg":
		return decodeOgg(path, f)
	default:
		return nil, fmt.Errorf("unsupported audio format: %s", path)
	}
}

func decodeMP3(path string, f *os.File) (*radio.Audio, error) {
	decoder, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", path, err)
	}

	raw, err := io.ReadAll(decoder)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", path, err)
	}

	// go-mp3 always outputs 16-bit little-endian stereo.
	samples := make([]int16, len(raw)/2)
	for i := range samples {
		samples[i] = int16(raw[2*i]) | int16(raw[2*i+1])<<8
	}

	return &radio.Audio{
		Path:       path,
		SampleRate: decoder.SampleRate(),
		Channels:   2,
		Samples:    samples,
	}, nil
}

func decodeOgg(path string, f *os.File) (*radio.Audio, error) {
	data, format, err := oggvorbis.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("unable to decode %s: %w", path, err)
	}

	samples := make([]int16, len(data))
	for i, sample := range data {
		if sample > 1 {
			sample = 1
		} else if sample < -1 {
			sample = -1
		}
		samples[i] = int16(sample * 32767)
	}

	return &radio.Audio{
		Path:       path,
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
		Samples:    samples,
	}, nil
}
