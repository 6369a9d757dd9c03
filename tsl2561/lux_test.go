package tsl2561

import (
	"math"
	"sync"
	"testing"
)

func testSensor(pkg Package, integration IntegrationTime, gain Gain) *TSL2561 {
	return &TSL2561{
		IntegrationTime: integration,
		Gain:            gain,
		Package:         pkg,
		Mutex:           &sync.Mutex{},
	}
}

func TestCalculateLux(t *testing.T) {
	cases := []struct {
		name        string
		pkg         Package
		integration IntegrationTime
		gain        Gain
		broadband   uint16
		ir          uint16
		want        uint32
		saturated   bool
	}{
		{"known value T package", PackageT, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_16X, 100, 30, 2, false},
		{"no infrared component", PackageT, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_16X, 100, 0, 3, false},
		{"ratio above 1.30 is zero lux", PackageT, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_16X, 100, 140, 0, false},
		{"dark reading", PackageT, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_16X, 0, 0, 0, false},
		{"known value CS package", PackageCS, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_16X, 100, 30, 2, false},
		{"clipped at 13ms", PackageT, TSL2561_INTEGRATIONTIME_13MS, TSL2561_GAIN_16X, 5000, 0, Saturated, true},
		{"clipped on ir channel", PackageT, TSL2561_INTEGRATIONTIME_13MS, TSL2561_GAIN_16X, 0, 5000, Saturated, true},
		{"clipped at 101ms", PackageT, TSL2561_INTEGRATIONTIME_101MS, TSL2561_GAIN_16X, 37001, 0, Saturated, true},
		{"clipped at 402ms", PackageT, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_16X, 65001, 0, Saturated, true},
		{"below clip at 402ms", PackageT, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_16X, 65000, 65000, 24, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tsl := testSensor(tc.pkg, tc.integration, tc.gain)
			got := tsl.CalculateLux(tc.broadband, tc.ir)
			if got.Lux != tc.want || got.Saturated != tc.saturated {
				t.Errorf("CalculateLux(%d, %d) = %+v, want lux %d saturated %v",
					tc.broadband, tc.ir, got, tc.want, tc.saturated)
			}
		})
	}
}

func TestCalculateLuxIdempotent(t *testing.T) {
	tsl := testSensor(PackageT, TSL2561_INTEGRATIONTIME_101MS, TSL2561_GAIN_1X)
	first := tsl.CalculateLux(1234, 567)
	for i := 0; i < 10; i++ {
		if got := tsl.CalculateLux(1234, 567); got != first {
			t.Fatalf("conversion not stable: got %+v, want %+v", got, first)
		}
	}
}

func TestRoundedRatio(t *testing.T) {
	cases := []struct {
		channel0 uint32
		channel1 uint32
		want     uint32
	}{
		{100, 100, 1 << TSL2561_LUX_RATIOSCALE}, // equal channels resolve to fixed point 1.0
		{0, 5, 0},                               // zero channel 0 never divides
		{3, 1, 171},                             // 1024/3 = 341.33 halved rounds up
		{100, 30, 154},
		{100, 50, 256}, // exactly 0.5
	}
	for _, tc := range cases {
		if got := roundedRatio(tc.channel0, tc.channel1); got != tc.want {
			t.Errorf("roundedRatio(%d, %d) = %d, want %d", tc.channel0, tc.channel1, got, tc.want)
		}
	}
}

// The coefficient brackets must be exhaustive and non-overlapping: every
// ratio selects exactly one row, and rows appear in ascending breakpoint
// order so the first-match scan is correct.
func TestCoeffBrackets(t *testing.T) {
	for _, table := range []*[8]luxCoeff{&luxTableT, &luxTableCS} {
		for i := 1; i < 7; i++ {
			if table[i].k < table[i-1].k {
				t.Fatalf("breakpoints not ascending at row %d: %#x < %#x", i, table[i].k, table[i-1].k)
			}
		}
	}

	for _, pkg := range []Package{PackageT, PackageCS} {
		prev := findCoeff(pkg, 0)
		changes := 0
		for ratio := uint32(0); ratio <= 0x300; ratio++ {
			c := findCoeff(pkg, ratio)
			if c != prev {
				changes++
				prev = c
			}
		}
		// 8 rows give 8 distinct regimes; the last two share a
		// breakpoint but differ in coefficients
		if changes != 7 {
			t.Errorf("package %v: expected 7 bracket transitions over [0, 0x300], got %d", pkg, changes)
		}
	}
}

func TestCalculateRawCH0Sentinel(t *testing.T) {
	for _, pkg := range []Package{PackageT, PackageCS} {
		tsl := testSensor(pkg, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_16X)
		if got := tsl.CalculateRawCH0(400, 1.5); got != RawCH0Undefined {
			t.Errorf("package %v: CalculateRawCH0(400, 1.5) = %#x, want %#x", pkg, got, RawCH0Undefined)
		}
	}
}

// The inverse approximation fed back through the forward conversion should
// land near the requested lux value. It cannot be exact: the forward
// mapping is many-to-one and the inverse assumes a channel ratio.
func TestCalculateRawCH0RoundTrip(t *testing.T) {
	const targetLux = 400
	const ratio = 0.32

	tsl := testSensor(PackageT, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_16X)
	raw := tsl.CalculateRawCH0(targetLux, ratio)
	if raw == RawCH0Undefined || raw > math.MaxUint16 {
		t.Fatalf("CalculateRawCH0(%d, %v) = %#x, not a usable raw value", targetLux, ratio, raw)
	}

	ir := uint16(math.Round(ratio * float64(raw)))
	got := tsl.CalculateLux(uint16(raw), ir)
	if got.Saturated {
		t.Fatalf("round trip saturated: %+v", got)
	}
	if diff := int64(got.Lux) - targetLux; diff < -10 || diff > 10 {
		t.Errorf("round trip lux = %d, want within 10 of %d (raw %d)", got.Lux, targetLux, raw)
	}
}

// The raw estimate must reverse the same channel scaling the forward
// conversion applies: a 1x gain estimate is 16 times smaller than 16x.
func TestCalculateRawCH0GainScaling(t *testing.T) {
	hi := testSensor(PackageT, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_16X)
	lo := testSensor(PackageT, TSL2561_INTEGRATIONTIME_402MS, TSL2561_GAIN_1X)

	rawHi := hi.CalculateRawCH0(1000, TSL2561_APPROXCHRATIO_SUN)
	rawLo := lo.CalculateRawCH0(1000, TSL2561_APPROXCHRATIO_SUN)
	if rawLo == 0 {
		t.Fatal("1x estimate is zero")
	}
	if q := float64(rawHi) / float64(rawLo); q < 15.5 || q > 16.5 {
		t.Errorf("16x/1x raw estimate ratio = %.2f, want about 16", q)
	}
}
