package tsl2561

/*
 * tsl2561 - Package for interacting with TSL2561 lux sensors.
 *
 * Ref:
 * https://github.com/adafruit/TSL2561-Arduino-Library
 * https://cdn-shop.adafruit.com/datasheets/TSL2561.pdf
 *
 */

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/io/i2c"
)

var l *logrus.Logger

func init() {
	l = logrus.New()
	// Setup the logger, so it can be parsed by datadog
	l.Formatter = &logrus.JSONFormatter{}
	l.SetOutput(os.Stdout)
	// Set the log level
	logLevel := strings.ToLower(os.Getenv("LOG_LEVEL"))
	switch logLevel {
	case "debug":
		l.SetLevel(logrus.DebugLevel)
	case "info":
		l.SetLevel(logrus.InfoLevel)
	case "error":
		l.SetLevel(logrus.ErrorLevel)
	default:
		l.SetLevel(logrus.InfoLevel)
	}
}

// Bus is the register transport the driver talks through. *i2c.Device from
// golang.org/x/exp/io/i2c satisfies it. The bus must not interleave other
// traffic with a single register operation; no retry or error recovery is
// performed here.
type Bus interface {
	ReadReg(reg byte, buf []byte) error
	WriteReg(reg byte, buf []byte) error
	Close() error
}

// LuxResult is the outcome of a single lux conversion. Saturated means the
// raw readings exceeded the clipping threshold for the current integration
// time and Lux holds the sentinel 65536 rather than a real value.
type LuxResult struct {
	Lux       uint32
	Saturated bool
}

// SensorInfo describes the static capabilities of the sensor.
type SensorInfo struct {
	Name       string
	SensorID   int32
	MaxValue   float64
	MinValue   float64
	Resolution float64
	MinDelay   int32
}

type TSL2561 struct {
	IntegrationTime IntegrationTime
	Gain            Gain
	AutoGain        bool
	AllowSleep      bool
	Package         Package
	SensorID        int32
	Enabled         bool
	Device          Bus
	initialized     bool
	*sync.Mutex
}

// Connect to a TSL2561 via I2C protocol & set integration time/gain.
// allowSleep powers the device down after every operation to save power;
// keep it false when using interrupts, disabling the device loses them.
func NewTSL2561(integration IntegrationTime, gain Gain, path string, allowSleep bool) (*TSL2561, error) {
	if path == "" {
		// i2c-1 is the default I2C bus for the Raspberry Pi
		path = "/dev/i2c-1"
	}
	device, err := i2c.Open(&i2c.Devfs{Dev: path}, int(TSL2561_ADDR_FLOAT))
	if err != nil {
		return nil, fmt.Errorf("Failed to open: %w", err)
	}
	tsl := &TSL2561{
		IntegrationTime: integration,
		Gain:            gain,
		AllowSleep:      allowSleep,
		Package:         PackageT,
		Device:          device,
		Mutex:           &sync.Mutex{},
	}

	if err := tsl.begin(); err != nil {
		return nil, err
	}
	return tsl, nil
}

// begin probes the device identity and applies the configured integration
// time and gain. The ID register holds the part number in the high nibble;
// a TSL2561 reads back with none of the 0x05 bits set.
func (tsl *TSL2561) begin() error {
	x, err := tsl.read8(TSL2561_REGISTER_ID)
	if err != nil {
		return fmt.Errorf("Failed to read ID register: %w", err)
	}
	if x&0x05 != 0 {
		return fmt.Errorf("Can't find a TSL2561 on the I2C bus, ID register read 0x%02X", x)
	}
	tsl.initialized = true
	l.Debugf("TSL2561 found, ID register: 0x%02X", x)

	if err := tsl.SetIntegrationTime(tsl.IntegrationTime); err != nil {
		return err
	}
	if err := tsl.SetGain(tsl.Gain); err != nil {
		return err
	}

	// The device boots powered down
	if tsl.AllowSleep {
		return tsl.disable()
	}
	return nil
}

// Enable powers the device on.
func (tsl *TSL2561) Enable() error {
	tsl.Lock()
	defer tsl.Unlock()
	return tsl.enable()
}

// Disable powers the device off, putting it in low power sleep mode.
func (tsl *TSL2561) Disable() error {
	tsl.Lock()
	defer tsl.Unlock()
	return tsl.disable()
}

func (tsl *TSL2561) enable() error {
	if err := tsl.write8(TSL2561_COMMAND_BIT|TSL2561_REGISTER_CONTROL, TSL2561_CONTROL_POWERON); err != nil {
		return err
	}
	tsl.Enabled = true
	return nil
}

func (tsl *TSL2561) disable() error {
	if err := tsl.write8(TSL2561_COMMAND_BIT|TSL2561_REGISTER_CONTROL, TSL2561_CONTROL_POWEROFF); err != nil {
		return err
	}
	tsl.Enabled = false
	return nil
}

// Close powers the device down and releases the bus. The bus is released
// even when the power down write fails.
func (tsl *TSL2561) Close() error {
	if err := tsl.Disable(); err != nil {
		l.Errorf("Failed to power down before close: %v", err)
	}
	return tsl.Device.Close()
}

// SetIntegrationTime updates the integration time, taking effect on the
// next acquisition.
func (tsl *TSL2561) SetIntegrationTime(integration IntegrationTime) error {
	if !tsl.initialized {
		if err := tsl.begin(); err != nil {
			return err
		}
	}
	if err := tsl.enable(); err != nil {
		return err
	}
	if err := tsl.write8(TSL2561_COMMAND_BIT|TSL2561_REGISTER_TIMING, byte(integration)|byte(tsl.Gain)); err != nil {
		return err
	}
	tsl.IntegrationTime = integration

	if tsl.AllowSleep {
		return tsl.disable()
	}
	return nil
}

// SetGain adjusts the sensitivity to light, taking effect on the next
// acquisition.
func (tsl *TSL2561) SetGain(gain Gain) error {
	if !tsl.initialized {
		if err := tsl.begin(); err != nil {
			return err
		}
	}
	if err := tsl.enable(); err != nil {
		return err
	}
	if err := tsl.write8(TSL2561_COMMAND_BIT|TSL2561_REGISTER_TIMING, byte(tsl.IntegrationTime)|byte(gain)); err != nil {
		return err
	}
	tsl.Gain = gain

	if tsl.AllowSleep {
		return tsl.disable()
	}
	return nil
}

// EnableAutoGain turns the automatic gain adjustment on or off for
// subsequent readings.
func (tsl *TSL2561) EnableAutoGain(enable bool) {
	tsl.AutoGain = enable
}

// getData performs one acquisition: power on, wait for the ADC, read both
// channels, power off again if sleeping is allowed.
func (tsl *TSL2561) getData() (uint16, uint16, error) {
	if err := tsl.enable(); err != nil {
		return 0, 0, err
	}

	// Wait for the ADC to complete
	switch tsl.IntegrationTime {
	case TSL2561_INTEGRATIONTIME_13MS:
		time.Sleep(TSL2561_DELAY_INTTIME_13MS * time.Millisecond)
	case TSL2561_INTEGRATIONTIME_101MS:
		time.Sleep(TSL2561_DELAY_INTTIME_101MS * time.Millisecond)
	default:
		time.Sleep(TSL2561_DELAY_INTTIME_402MS * time.Millisecond)
	}

	// Channel 0 covers visible + infrared, channel 1 infrared only
	broadband, err := tsl.read16(TSL2561_COMMAND_BIT | TSL2561_WORD_BIT | TSL2561_REGISTER_CHAN0_LOW)
	if err != nil {
		return 0, 0, err
	}
	ir, err := tsl.read16(TSL2561_COMMAND_BIT | TSL2561_WORD_BIT | TSL2561_REGISTER_CHAN1_LOW)
	if err != nil {
		return 0, 0, err
	}
	l.Debugf("Channel 0: %v, Channel 1: %v", broadband, ir)

	if tsl.AllowSleep {
		if err := tsl.disable(); err != nil {
			return 0, 0, err
		}
	}
	return broadband, ir, nil
}

// GetLuminosity reads the broadband (visible + infrared) and IR-only raw
// channel values, adjusting gain once if auto-gain is enabled. The gain is
// adjusted at most one time per call, so a value at one extreme before the
// switch and the other extreme after it cannot cause an endless loop. At
// most three hardware acquisitions are performed.
func (tsl *TSL2561) GetLuminosity() (uint16, uint16, error) {
	if !tsl.initialized {
		if err := tsl.begin(); err != nil {
			return 0, 0, err
		}
	}

	// With auto-gain disabled take a single reading and return it as-is
	if !tsl.AutoGain {
		return tsl.getData()
	}

	var lo, hi uint16
	switch tsl.IntegrationTime {
	case TSL2561_INTEGRATIONTIME_13MS:
		lo, hi = TSL2561_AGC_TLO_13MS, TSL2561_AGC_THI_13MS
	case TSL2561_INTEGRATIONTIME_101MS:
		lo, hi = TSL2561_AGC_TLO_101MS, TSL2561_AGC_THI_101MS
	default:
		lo, hi = TSL2561_AGC_TLO_402MS, TSL2561_AGC_THI_402MS
	}

	broadband, ir, err := tsl.getData()
	if err != nil {
		return 0, 0, err
	}

	if broadband < lo && tsl.Gain == TSL2561_GAIN_1X {
		// Too dim, increase the gain and drop the previous conversion
		l.Debugf("Auto-gain: reading %v below %v, switching to 16x", broadband, lo)
		if err := tsl.SetGain(TSL2561_GAIN_16X); err != nil {
			return 0, 0, err
		}
		return tsl.getDataAfterGainSwitch()
	}
	if broadband > hi && tsl.Gain == TSL2561_GAIN_16X {
		// Too bright, drop the gain to 1x and read again
		l.Debugf("Auto-gain: reading %v above %v, switching to 1x", broadband, hi)
		if err := tsl.SetGain(TSL2561_GAIN_1X); err != nil {
			return 0, 0, err
		}
		return tsl.getDataAfterGainSwitch()
	}

	// Reading is either in range, or the sensor is already at its limit
	return broadband, ir, nil
}

// getDataAfterGainSwitch discards the conversion that may have been in
// flight when the gain changed and returns the next one. The device
// integrates continuously when sleep is not allowed, so the first value
// after a gain write can straddle both gain settings.
func (tsl *TSL2561) getDataAfterGainSwitch() (uint16, uint16, error) {
	if _, _, err := tsl.getData(); err != nil {
		return 0, 0, err
	}
	return tsl.getData()
}

// Measure performs one acquisition and converts it to lux.
func (tsl *TSL2561) Measure() (LuxResult, error) {
	broadband, ir, err := tsl.GetLuminosity()
	if err != nil {
		return LuxResult{}, err
	}
	return tsl.CalculateLux(broadband, ir), nil
}

// SetInterruptThresholds programs the channel 0 window the level interrupt
// fires outside of. Thresholds are raw sensor values, not lux; use
// CalculateRawCH0 to estimate a raw value for a lux target.
func (tsl *TSL2561) SetInterruptThresholds(low, high uint16) error {
	if !tsl.initialized {
		if err := tsl.begin(); err != nil {
			return err
		}
	}
	if err := tsl.write16(TSL2561_COMMAND_BIT|TSL2561_REGISTER_THRESHHOLDL_LOW, low); err != nil {
		return err
	}
	return tsl.write16(TSL2561_COMMAND_BIT|TSL2561_REGISTER_THRESHHOLDH_LOW, high)
}

// SetInterruptControl sets the interrupt output mode and the persistence
// filter. persist 0 interrupts every integration cycle, 1 on any value
// outside the thresholds, 2..15 require that many consecutive out-of-window
// cycles. Note that a sleeping device loses pending interrupts, so
// construct the driver with allowSleep false when using these.
func (tsl *TSL2561) SetInterruptControl(control InterruptControl, persist uint8) error {
	if !tsl.initialized {
		if err := tsl.begin(); err != nil {
			return err
		}
	}
	if err := tsl.enable(); err != nil {
		return err
	}
	data := (byte(control)&0x03)<<4 | (persist & 0x0F)
	if err := tsl.write8(TSL2561_COMMAND_BIT|TSL2561_REGISTER_INTERRUPT, data); err != nil {
		return err
	}
	if tsl.AllowSleep {
		return tsl.disable()
	}
	return nil
}

// ClearInterrupt clears an active level interrupt.
func (tsl *TSL2561) ClearInterrupt() error {
	return tsl.writeCmd(TSL2561_COMMAND_BIT | TSL2561_CLEAR_BIT)
}

// Info reports the static sensor capabilities. The max value is based on
// trial and error with the breakout board.
func (tsl *TSL2561) Info() SensorInfo {
	return SensorInfo{
		Name:       "TSL2561",
		SensorID:   tsl.SensorID,
		MaxValue:   17000.0,
		MinValue:   0.0,
		Resolution: 1.0,
		MinDelay:   0,
	}
}

func (tsl *TSL2561) write8(reg byte, value byte) error {
	return tsl.Device.WriteReg(reg, []byte{value})
}

// writeCmd writes a bare command byte with no data, used for the
// interrupt clear command.
func (tsl *TSL2561) writeCmd(reg byte) error {
	return tsl.Device.WriteReg(reg, nil)
}

// write16 writes a 16 bit value low byte first at consecutive register
// offsets. Only registers up to a low nibble of 0x0E are accepted so the
// high byte cannot spill into the next register block.
func (tsl *TSL2561) write16(reg byte, value uint16) error {
	if reg&0x0F >= 0x0F {
		return errors.New("write16: register offset would overflow its block")
	}
	if err := tsl.write8(reg, byte(value&0xFF)); err != nil {
		return err
	}
	return tsl.write8(reg+1, byte(value>>8))
}

func (tsl *TSL2561) read8(reg byte) (byte, error) {
	buf := make([]byte, 1)
	if err := tsl.Device.ReadReg(reg, buf); err != nil {
		return 0, err
	}
	return buf[0], nil
}

// read16 reads a 16 bit value, low byte transmitted first.
func (tsl *TSL2561) read16(reg byte) (uint16, error) {
	buf := make([]byte, 2)
	if err := tsl.Device.ReadReg(reg, buf); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(buf), nil
}
