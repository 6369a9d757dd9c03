package tsl2561

import "math"

// Empirical lux coefficients from the TAOS datasheet (p23). Each row maps a
// ch1/ch0 ratio bracket (k, 2^TSL2561_LUX_RATIOSCALE fixed point) to the
// (b, m) pair used in lux = ch0*b - ch1*m. Rows are in ascending breakpoint
// order and the scan depends on that; the last row is the catch-all for
// ratios above 1.30 where no visible light remains.
type luxCoeff struct {
	k uint32 // ratio breakpoint
	b uint32 // ch0 coefficient, 2^TSL2561_LUX_LUXSCALE fixed point
	m uint32 // ch1 coefficient, 2^TSL2561_LUX_LUXSCALE fixed point
}

// T, FN and CL package coefficients
var luxTableT = [8]luxCoeff{
	{0x0040, 0x01F2, 0x01BE}, // 0.125 * 2^9, 0.0304 * 2^14, 0.0272 * 2^14
	{0x0080, 0x0214, 0x02D1}, // 0.250, 0.0325, 0.0440
	{0x00C0, 0x023F, 0x037B}, // 0.375, 0.0351, 0.0544
	{0x0100, 0x0270, 0x03FE}, // 0.500, 0.0381, 0.0624
	{0x0138, 0x016F, 0x01FC}, // 0.610, 0.0224, 0.0310
	{0x019A, 0x00D2, 0x00FB}, // 0.800, 0.0128, 0.0153
	{0x029A, 0x0018, 0x0012}, // 1.300, 0.00146, 0.00112
	{0x029A, 0x0000, 0x0000}, // > 1.300
}

// CS package coefficients
var luxTableCS = [8]luxCoeff{
	{0x0043, 0x0204, 0x01AD}, // 0.130 * 2^9, 0.0315 * 2^14, 0.0262 * 2^14
	{0x0085, 0x0228, 0x02C1}, // 0.260, 0.0337, 0.0430
	{0x00C8, 0x0253, 0x0363}, // 0.390, 0.0363, 0.0529
	{0x010A, 0x0282, 0x03DF}, // 0.520, 0.0392, 0.0605
	{0x014D, 0x0177, 0x01DD}, // 0.650, 0.0229, 0.0291
	{0x019A, 0x0101, 0x0127}, // 0.800, 0.0157, 0.0180
	{0x029A, 0x0037, 0x002B}, // 1.300, 0.00338, 0.00260
	{0x029A, 0x0000, 0x0000}, // > 1.300
}

// findCoeff returns the first row whose breakpoint the ratio does not
// exceed, or the catch-all last row.
func findCoeff(pkg Package, ratio uint32) luxCoeff {
	table := &luxTableT
	if pkg == PackageCS {
		table = &luxTableCS
	}
	for _, c := range table[:7] {
		if ratio <= c.k {
			return c
		}
	}
	return table[7]
}

// CalculateLux converts raw channel readings to the standard SI lux
// equivalent using the configured integration time, gain and package. It is
// a pure function of its inputs and the configuration. A reading above the
// clipping threshold for the integration time returns Saturated, which
// signals unreliable data and is distinct from a genuine 0 lux result.
func (tsl *TSL2561) CalculateLux(broadband, ir uint16) LuxResult {
	var clipThreshold uint16
	switch tsl.IntegrationTime {
	case TSL2561_INTEGRATIONTIME_13MS:
		clipThreshold = TSL2561_CLIPPING_13MS
	case TSL2561_INTEGRATIONTIME_101MS:
		clipThreshold = TSL2561_CLIPPING_101MS
	default:
		clipThreshold = TSL2561_CLIPPING_402MS
	}
	if broadband > clipThreshold || ir > clipThreshold {
		return LuxResult{Lux: Saturated, Saturated: true}
	}

	chScale := channelScale(tsl.IntegrationTime, tsl.Gain)

	// Scale the channel values to the 402ms/16x reference
	channel0 := (uint32(broadband) * chScale) >> TSL2561_LUX_CHSCALE
	channel1 := (uint32(ir) * chScale) >> TSL2561_LUX_CHSCALE

	ratio := roundedRatio(channel0, channel1)

	c := findCoeff(tsl.Package, ratio)

	// Clamp a negative intermediate to zero before rounding, per the
	// reference formula
	temp := int64(channel0)*int64(c.b) - int64(channel1)*int64(c.m)
	if temp < 0 {
		temp = 0
	}

	// Round the lsb and strip off the fractional portion
	temp += 1 << (TSL2561_LUX_LUXSCALE - 1)
	return LuxResult{Lux: uint32(temp >> TSL2561_LUX_LUXSCALE)}
}

// CalculateRawCH0 estimates the raw channel 0 value corresponding to a lux
// target, for programming interrupt thresholds. The sensor thresholds only
// channel 0, so the unmeasurable channel 1 is replaced by an assumed
// ch1/ch0 ratio supplied by the caller; TSL2561_APPROXCHRATIO_SUN and
// TSL2561_APPROXCHRATIO_LED are reasonable starting points. This is a
// heuristic inversion of a many-to-one mapping: an interrupt may not fire
// at exactly the desired lux level, so re-validate with CalculateLux after
// one fires. Ratios above 1.30 have no meaningful threshold and return
// RawCH0Undefined.
func (tsl *TSL2561) CalculateRawCH0(lux uint16, approxChRatio float64) uint32 {
	// Move the lux target onto the fixed point channel scale
	luxScale := float64(uint32(lux) << TSL2561_LUX_CHSCALE)

	// Solve the datasheet lux formula for ch0 with ch1 = ratio * ch0. The
	// divisor is the bracket's lux-per-ch0 slope.
	var divisor float64
	switch {
	case approxChRatio > 1.30:
		return RawCH0Undefined
	case tsl.Package == PackageCS:
		switch {
		case approxChRatio > 0.80:
			divisor = 0.00338 - 0.00260*approxChRatio
		case approxChRatio > 0.65:
			divisor = 0.0157 - 0.0180*approxChRatio
		case approxChRatio > 0.52:
			divisor = 0.0229 - 0.0291*approxChRatio
		default:
			divisor = 0.0315 - 0.0593*math.Pow(approxChRatio, 1.4)
		}
	default:
		switch {
		case approxChRatio > 0.80:
			divisor = 0.00146 - 0.00112*approxChRatio
		case approxChRatio > 0.61:
			divisor = 0.0128 - 0.0153*approxChRatio
		case approxChRatio > 0.50:
			divisor = 0.0224 - 0.031*approxChRatio
		default:
			divisor = 0.0304 - 0.062*math.Pow(approxChRatio, 1.4)
		}
	}
	if divisor <= 0 {
		return RawCH0Undefined
	}
	ch0Scale := uint64(luxScale / divisor)

	// Reverse the same integration time / gain scaling the forward
	// conversion applies
	return uint32(ch0Scale / uint64(channelScale(tsl.IntegrationTime, tsl.Gain)))
}

// roundedRatio returns ch1/ch0 in 2^TSL2561_LUX_RATIOSCALE fixed point,
// rounded half-up. The ratio is zero when channel 0 is zero.
func roundedRatio(channel0, channel1 uint32) uint32 {
	var ratio1 uint32
	if channel0 != 0 {
		ratio1 = (channel1 << (TSL2561_LUX_RATIOSCALE + 1)) / channel0
	}
	return (ratio1 + 1) >> 1
}

// channelScale returns the fixed point factor that normalizes a raw channel
// value to the 402ms/16x reference scale.
func channelScale(integration IntegrationTime, gain Gain) uint32 {
	var chScale uint32
	switch integration {
	case TSL2561_INTEGRATIONTIME_13MS:
		chScale = TSL2561_LUX_CHSCALE_TINT0
	case TSL2561_INTEGRATIONTIME_101MS:
		chScale = TSL2561_LUX_CHSCALE_TINT1
	default:
		// No scaling at 402ms
		chScale = 1 << TSL2561_LUX_CHSCALE
	}
	// A 1x gain reading is 16 times smaller than the 16x reference
	if gain == TSL2561_GAIN_1X {
		chScale <<= 4
	}
	return chScale
}
