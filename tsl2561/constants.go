package tsl2561

const (
	TSL2561_ADDR_LOW   byte = 0x29 ///< Address pin tied to ground
	TSL2561_ADDR_FLOAT byte = 0x39 ///< Address pin left floating (default)
	TSL2561_ADDR_HIGH  byte = 0x49 ///< Address pin tied to vcc

	TSL2561_COMMAND_BIT byte = 0x80 ///< Must be 1 to select the command register
	TSL2561_CLEAR_BIT   byte = 0x40 ///< Clears any pending interrupt (write 1 to clear)
	TSL2561_WORD_BIT    byte = 0x20 ///< 1 = read/write word rather than byte
	TSL2561_BLOCK_BIT   byte = 0x10 ///< 1 = using block read/write

	TSL2561_CONTROL_POWERON  byte = 0x03 ///< Control register value to power on
	TSL2561_CONTROL_POWEROFF byte = 0x00 ///< Control register value to power off
)

// TSL2561 Register map
const (
	TSL2561_REGISTER_CONTROL          byte = 0x00 // Control/power register
	TSL2561_REGISTER_TIMING           byte = 0x01 // Integration time and gain register
	TSL2561_REGISTER_THRESHHOLDL_LOW  byte = 0x02 // Interrupt low threshold, low byte
	TSL2561_REGISTER_THRESHHOLDL_HIGH byte = 0x03 // Interrupt low threshold, high byte
	TSL2561_REGISTER_THRESHHOLDH_LOW  byte = 0x04 // Interrupt high threshold, low byte
	TSL2561_REGISTER_THRESHHOLDH_HIGH byte = 0x05 // Interrupt high threshold, high byte
	TSL2561_REGISTER_INTERRUPT        byte = 0x06 // Interrupt control and persistence register
	TSL2561_REGISTER_CRC              byte = 0x08 // Factory test register, do not write
	TSL2561_REGISTER_ID               byte = 0x0A // Part number and silicon revision
	TSL2561_REGISTER_CHAN0_LOW        byte = 0x0C // Channel 0 data, low byte
	TSL2561_REGISTER_CHAN0_HIGH       byte = 0x0D // Channel 0 data, high byte
	TSL2561_REGISTER_CHAN1_LOW        byte = 0x0E // Channel 1 data, low byte
	TSL2561_REGISTER_CHAN1_HIGH       byte = 0x0F // Channel 1 data, high byte
)

// IntegrationTime selects how long the sensor accumulates charge per reading.
// Longer integration gives better resolution in low light but slower reads.
type IntegrationTime byte

const (
	TSL2561_INTEGRATIONTIME_13MS  IntegrationTime = 0x00 // 13.7ms, fast but coarse
	TSL2561_INTEGRATIONTIME_101MS IntegrationTime = 0x01 // 101ms, medium
	TSL2561_INTEGRATIONTIME_402MS IntegrationTime = 0x02 // 402ms, full 16-bit resolution
)

// Gain is the analog amplification applied before the ADC.
type Gain byte

const (
	TSL2561_GAIN_1X  Gain = 0x00 // No gain, bright conditions
	TSL2561_GAIN_16X Gain = 0x10 // 16x gain, dim conditions
)

// Package selects the coefficient table for the physical chip package.
// The CS package uses a different set of empirical lux coefficients than
// the T, FN and CL packages.
type Package byte

const (
	PackageT  Package = iota // T, FN and CL packages (default)
	PackageCS                // CS package
)

// InterruptControl selects the interrupt output mode of the sensor.
type InterruptControl byte

const (
	TSL2561_INTERRUPTCTL_DISABLE  InterruptControl = 0x00 // Interrupt output disabled
	TSL2561_INTERRUPTCTL_LEVEL    InterruptControl = 0x01 // Level interrupt, uses the threshold registers
	TSL2561_INTERRUPTCTL_SMBALERT InterruptControl = 0x02 // SMBAlert compliant mode
	TSL2561_INTERRUPTCTL_TEST     InterruptControl = 0x03 // Sets interrupt immediately, functions as SMBAlert
)

// Delays waited for the ADC to complete, per integration time. These are
// calibrated offsets above the nominal integration time (13.7/101/402 ms).
const (
	TSL2561_DELAY_INTTIME_13MS  = 15  // milliseconds
	TSL2561_DELAY_INTTIME_101MS = 120 // milliseconds
	TSL2561_DELAY_INTTIME_402MS = 450 // milliseconds
)

// Auto-gain thresholds: raw channel 0 values outside (lo, hi) for the
// current integration time trigger a one-shot gain switch.
const (
	TSL2561_AGC_THI_13MS  uint16 = 4850  ///< Max value at Ti 13ms = 5047
	TSL2561_AGC_TLO_13MS  uint16 = 100   ///< Min value at Ti 13ms
	TSL2561_AGC_THI_101MS uint16 = 36000 ///< Max value at Ti 101ms = 37177
	TSL2561_AGC_TLO_101MS uint16 = 200   ///< Min value at Ti 101ms
	TSL2561_AGC_THI_402MS uint16 = 63000 ///< Max value at Ti 402ms = 65535
	TSL2561_AGC_TLO_402MS uint16 = 500   ///< Min value at Ti 402ms
)

// Clipping thresholds: raw readings above these are saturated and the
// conversion result is unreliable.
const (
	TSL2561_CLIPPING_13MS  uint16 = 4900   ///< Clipping threshold at Ti 13ms
	TSL2561_CLIPPING_101MS uint16 = 37000  ///< Clipping threshold at Ti 101ms
	TSL2561_CLIPPING_402MS uint16 = 65000  ///< Clipping threshold at Ti 402ms
)

// Fixed point scales used by the lux conversion, from the TAOS reference
// implementation in the datasheet.
const (
	TSL2561_LUX_LUXSCALE      = 14     ///< Scale by 2^14
	TSL2561_LUX_RATIOSCALE    = 9      ///< Scale ratio by 2^9
	TSL2561_LUX_CHSCALE       = 10     ///< Scale channel values by 2^10
	TSL2561_LUX_CHSCALE_TINT0 = 0x7517 ///< 322/11 * 2^TSL2561_LUX_CHSCALE
	TSL2561_LUX_CHSCALE_TINT1 = 0x0FE7 ///< 322/81 * 2^TSL2561_LUX_CHSCALE
)

// Assumed channel1/channel0 ratios for CalculateRawCH0, estimated from the
// area under the spectral sensitivity curves in the datasheet (Fig. 4, p8).
// Sunlight was experimentally verified around 0.32; LED light has a much
// smaller IR component and leans towards 0.10.
const (
	TSL2561_APPROXCHRATIO_SUN float64 = 0.325 ///< Assumed ch1/ch0 ratio under sunlight
	TSL2561_APPROXCHRATIO_LED float64 = 0.100 ///< Assumed ch1/ch0 ratio under LED light
)

// Saturated is the sentinel lux value signaling that the raw readings
// exceeded the clipping threshold, distinct from a genuine 0 lux reading.
const Saturated uint32 = 65536

// RawCH0Undefined is the sentinel returned by CalculateRawCH0 when no
// meaningful channel 0 threshold exists for the supplied ratio.
const RawCH0Undefined uint32 = 0xFFFF

func (t IntegrationTime) String() string {
	switch t {
	case TSL2561_INTEGRATIONTIME_13MS:
		return "13ms"
	case TSL2561_INTEGRATIONTIME_101MS:
		return "101ms"
	case TSL2561_INTEGRATIONTIME_402MS:
		return "402ms"
	default:
		return "Unknown"
	}
}

func (g Gain) String() string {
	switch g {
	case TSL2561_GAIN_1X:
		return "Low gain (1x)"
	case TSL2561_GAIN_16X:
		return "High gain (16x)"
	default:
		return "Unknown"
	}
}
