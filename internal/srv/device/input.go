package device

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"periph.io/x/conn/v3/analog"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/devices/v3/ads1x15"
	"periph.io/x/host/v3"

	"mokradio/internal/srv/config"
	"mokradio/internal/srv/radio"
)

// adsFullScale is the positive range of the ADS1115 conversion register.
const adsFullScale = 32768

// Input reads the tuning potentiometer through an ADS1115 ADC and the
// AM/FM toggle through a GPIO pin, and turns changes into InputEvents.
// In simulation mode no hardware is opened and the api device is the only
// event source.
type Input struct {
	lock         sync.RWMutex
	eventChannel chan radio.InputEvent
	simulation   bool

	serverConfig *config.ServerConfig

	adcPin  analog.PinADC
	bandPin gpio.PinIO

	lastDial   int
	haveDial   bool
	lastBandFM bool
	haveBand   bool

	checkTicker *time.Ticker

	askDone chan bool
	done    chan bool
}

// NewInput wires the device to the station manager's input channel.
func NewInput(serverConfig *config.ServerConfig, eventChannel chan radio.InputEvent) *Input {
	device := Input{
		eventChannel: eventChannel,
		simulation:   serverConfig.SimulationMode,
		serverConfig: serverConfig,
		askDone:      make(chan bool),
		done:         make(chan bool),
	}

	if !device.simulation {
		if _, err := host.Init(); err != nil {
			logrus.Fatalf("Failed to initialize host: %v", err)
		}
	}

	return &device
}

func (d *Input) Start() {
	logrus.Infof("Start input device")

	d.lock.Lock()
	defer d.lock.Unlock()

	if !d.simulation {
		bus, err := i2creg.Open(d.serverConfig.ServerParam.InputParam.I2CBus)
		if err != nil {
			logrus.Fatalf("Failed to open i2c bus: %v", err)
		}
		adc, err := ads1x15.NewADS1115(bus, &ads1x15.DefaultOpts)
		if err != nil {
			logrus.Fatalf("Failed to setup tuning ADC: %v", err)
		}
		d.adcPin, err = adc.PinForChannel(ads1x15.Channel0, 3300*physic.MilliVolt, 100*physic.Hertz, ads1x15.SaveEnergy)
		if err != nil {
			logrus.Fatalf("Failed to setup tuning ADC channel: %v", err)
		}

		pinName := d.serverConfig.ServerParam.InputParam.BandSwitchPin
		d.bandPin = gpioreg.ByName(pinName)
		if d.bandPin == nil {
			logrus.Fatalf("Failed to find %s band switch pin", pinName)
		}
		if err := d.bandPin.In(gpio.PullUp, gpio.NoEdge); err != nil {
			logrus.Fatalf("Failed to setup %s band switch pin: %v", pinName, err)
		}
	}

	d.checkTicker = time.NewTicker(50 * time.Millisecond)
	go func() {
		for loop := true; loop; {
			select {
			case <-d.checkTicker.C:
				d.refresh()
			case <-d.askDone:
				loop = false
			}
		}
		d.done <- true
	}()
}

// refresh samples the hardware once and emits events for what changed.
// Events never block: a full channel drops the sample, the next tick
// re-reads the hardware anyway.
func (d *Input) refresh() {
	if d.simulation {
		return
	}

	if d.adcPin != nil {
		sample, err := d.adcPin.Read()
		if err != nil {
			logrus.Warnf("Unable to read tuning ADC: %v", err)
		} else {
			raw := int(sample.Raw)
			if raw < 0 {
				raw = 0
			}
			span := d.serverConfig.ServerParam.AdcSpan
			dial := raw * span / adsFullScale
			deadband := d.serverConfig.ServerParam.InputParam.Deadband

			delta := dial - d.lastDial
			if delta < 0 {
				delta = -delta
			}
			if !d.haveDial || delta >= deadband {
				d.haveDial = true
				d.lastDial = dial
				select {
				case d.eventChannel <- radio.InputEvent{Data: radio.InputDialMovedData{AdcValue: dial}}:
				default:
				}
			}
		}
	}

	if d.bandPin != nil {
		isFM := d.bandPin.Read() == gpio.Low
		if !d.haveBand || isFM != d.lastBandFM {
			d.haveBand = true
			d.lastBandFM = isFM
			select {
			case d.eventChannel <- radio.InputEvent{Data: radio.InputBandSwitchedData{IsFM: isFM}}:
			default:
			}
		}
	}
}

func (d *Input) StopSendingEvent() {
	logrus.Infof("Stop input device")

	d.lock.Lock()
	defer d.lock.Unlock()

	d.checkTicker.Stop()
	d.askDone <- true
	<-d.done
}

func (d *Input) EventChannel() chan radio.InputEvent {
	return d.eventChannel
}
