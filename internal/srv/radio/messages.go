package radio

// Message types crossing the three channels between the input device, the
// station manager and the file loader. These are the only way station state
// is reached from outside the manager goroutine.

// Band selects which array of stations the dial addresses.
type Band int

const (
	AM Band = iota
	FM
)

func (b Band) String() string {
	if b == FM {
		return "fm"
	}
	return "am"
}

// StationsPerBand is the number of station slots on each band.
const StationsPerBand = 12

// StationID addresses one station slot. It is the routing key carried by
// every file request and response.
type StationID struct {
	Band  Band
	Index int
}

// Input device -> Station Manager

type InputEvent struct {
	Data interface{}
}

// InputDialMovedData carries a new raw position of the tuning potentiometer.
type InputDialMovedData struct {
	AdcValue int
}

// InputBandSwitchedData signals the AM/FM toggle changed.
type InputBandSwitchedData struct {
	IsFM bool
}

// Station Manager -> File Loader

type FileRequest struct {
	StationID StationID
	Data      interface{}
}

type FileRequestLoadTrackData struct {
	FilePath string
}

type FileRequestScanDirectoryData struct {
	DirectoryPath string
}

// File Loader -> Station Manager

type FileResponse struct {
	StationID StationID
	Data      interface{}
}

type FileResponseTrackLoadedData struct {
	FilePath string
	Audio    *Audio
}

type FileResponseDirectoryScannedData struct {
	Tracks []Track
}

// FileResponseLoadErrorData reports a failed request. FilePath echoes the
// requested path so the manager can match the failure to the right
// outstanding request.
type FileResponseLoadErrorData struct {
	FilePath string
	Message  string
}

// Audio is one decoded file, ready to enqueue on a station sink.
// Samples are interleaved signed 16-bit PCM.
type Audio struct {
	Path       string
	SampleRate int
	Channels   int
	Samples    []int16
}

// Sink is the per-station playback queue the audio device hands to each
// station. Append enqueues decoded audio, Len reports how many queued items
// have not finished playing, SkipOne discards the item currently queued to
// play next.
type Sink interface {
	Append(audio *Audio)
	Play()
	Pause()
	SetVolume(volume float64)
	SkipOne()
	Len() int
}
