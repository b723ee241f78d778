package device

import (
	"io"
	"os/exec"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"mokradio/internal/srv/radio"
)

const mixerSampleRate = 44100
const mixerChannels = 2
const mixerChunk = 20 * time.Millisecond

// Mixer is the shared audio output. Every station owns one MixerSink; each
// chunk period the mixer sums the scaled samples of all unpaused sinks and
// pipes raw S16_LE frames into aplay. In simulation mode samples are mixed
// and discarded.
type Mixer struct {
	lock       sync.Mutex
	simulation bool

	sinks []*MixerSink

	outputCmd   *exec.Cmd
	outputStdin io.WriteCloser

	chunkTicker *time.Ticker

	askDone chan bool
	done    chan bool
}

func NewMixer(simulation bool) *Mixer {
	return &Mixer{
		simulation: simulation,
		askDone:    make(chan bool),
		done:       make(chan bool),
	}
}

// NewSink registers one playback queue with the mixer. Sinks start paused
// at zero volume; the station manager decides who is audible.
func (d *Mixer) NewSink() radio.Sink {
	d.lock.Lock()
	defer d.lock.Unlock()

	sink := &MixerSink{paused: true}
	d.sinks = append(d.sinks, sink)
	return sink
}

func (d *Mixer) Start() {
	logrus.Infof("Start mixer device")

	if !d.simulation {
		d.outputCmd = exec.Command("aplay", "-D", "default", "-t", "raw",
			"-r", "44100", "-c", "2", "-f", "S16_LE", "-")
		stdin, err := d.outputCmd.StdinPipe()
		if err != nil {
			logrus.Errorf("Unable to open audio output pipe: %v", err)
		} else {
			d.outputStdin = stdin
		}
		if err := d.outputCmd.Start(); err != nil {
			logrus.Errorf("Unable to start audio output: %v", err)
			d.outputStdin = nil
		}
	}

	d.chunkTicker = time.NewTicker(mixerChunk)
	go func() {
		frames := int(mixerSampleRate * mixerChunk / time.Second)
		buffer := make([]byte, frames*mixerChannels*2)
		mixed := make([]int32, frames*mixerChannels)

		for loop := true; loop; {
			select {
			case <-d.chunkTicker.C:
				d.mix(mixed)
				for i, sample := range mixed {
					if sample > 32767 {
						sample = 32767
					} else if sample < -32768 {
						sample = -32768
					}
					buffer[2*i] = byte(sample)
					buffer[2*i+1] = byte(sample >> 8)
				}
				if d.outputStdin != nil {
					if _, err := d.outputStdin.Write(buffer); err != nil {
						logrus.Warnf("Audio output write failed: %v", err)
						d.outputStdin = nil
					}
				}
			case <-d.askDone:
				loop = false
			}
		}
		d.done <- true
	}()
}

func (d *Mixer) Stop() {
	logrus.Infof("Stop mixer device")

	d.chunkTicker.Stop()
	d.askDone <- true
	<-d.done

	if d.outputStdin != nil {
		d.outputStdin.Close()
	}
	if d.outputCmd != nil && d.outputCmd.Process != nil {
		if err := d.outputCmd.Process.Kill(); err != nil {
			logrus.Errorf("Failed to stop audio output: %v", err)
		}
	}
}

func (d *Mixer) mix(mixed []int32) {
	for i := range mixed {
		mixed[i] = 0
	}

	d.lock.Lock()
	sinks := d.sinks
	d.lock.Unlock()

	for _, sink := range sinks {
		sink.mixInto(mixed)
	}
}

// MixerSink is the per-station playback queue. Stations enqueue decoded
// audio; the mixer drains it in real time. No resampling is done: content
// is expected at the mixer rate.
type MixerSink struct {
	lock     sync.Mutex
	queue    []*radio.Audio
	position int
	paused   bool
	volume   float64
}

func (s *MixerSink) Append(audio *radio.Audio) {
	if audio == nil {
		return
	}
	if audio.SampleRate != mixerSampleRate || audio.Channels != mixerChannels {
		// No resampling: foreign formats play at the wrong speed.
		logrus.Warnf("Audio %s is %dHz/%dch, mixer expects %dHz/%dch",
			audio.Path, audio.SampleRate, audio.Channels, mixerSampleRate, mixerChannels)
	}
	s.lock.Lock()
	defer s.lock.Unlock()
	s.queue = append(s.queue, audio)
}

func (s *MixerSink) Play() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.paused = false
}

func (s *MixerSink) Pause() {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.paused = true
}

func (s *MixerSink) SetVolume(volume float64) {
	s.lock.Lock()
	defer s.lock.Unlock()
	s.volume = volume
}

// SkipOne discards the item currently queued to play next.
func (s *MixerSink) SkipOne() {
	s.lock.Lock()
	defer s.lock.Unlock()
	if len(s.queue) > 0 {
		s.queue = s.queue[1:]
		s.position = 0
	}
}

func (s *MixerSink) Len() int {
	s.lock.Lock()
	defer s.lock.Unlock()
	return len(s.queue)
}

func (s *MixerSink) mixInto(mixed []int32) {
	s.lock.Lock()
	defer s.lock.Unlock()

	if s.paused || s.volume <= 0 {
		return
	}

	for i := 0; i < len(mixed); {
		if len(s.queue) == 0 {
			return
		}
		current := s.queue[0]
		remaining := len(current.Samples) - s.position
		if remaining <= 0 {
			s.queue = s.queue[1:]
			s.position = 0
			continue
		}
		n := len(mixed) - i
		if n > remaining {
			n = remaining
		}
		for j := 0; j < n; j++ {
			mixed[i+j] += int32(float64(current.Samples[s.position+j]) * s.volume)
		}
		s.position += n
		i += n
	}
}
