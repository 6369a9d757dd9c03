package luxmeter

import (
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/ztkent/lux-meter/tsl2561"
)

// fakeBus answers the identity probe and records register writes.
type fakeBus struct {
	writes map[byte][]byte
}

func (b *fakeBus) ReadReg(reg byte, buf []byte) error {
	if reg == tsl2561.TSL2561_REGISTER_ID {
		buf[0] = 0x50
	}
	return nil
}

func (b *fakeBus) WriteReg(reg byte, buf []byte) error {
	if b.writes == nil {
		b.writes = make(map[byte][]byte)
	}
	b.writes[reg] = append([]byte(nil), buf...)
	return nil
}

func (b *fakeBus) Close() error { return nil }

func testMeter(bus *fakeBus) *Meter {
	return &Meter{
		TSL2561: &tsl2561.TSL2561{
			IntegrationTime: tsl2561.TSL2561_INTEGRATIONTIME_402MS,
			Gain:            tsl2561.TSL2561_GAIN_16X,
			Device:          bus,
			Mutex:           &sync.Mutex{},
		},
		LuxResultsChan: make(chan LuxResults, 1),
	}
}

// A sensor configured with sleep disabled is left powered on, which must not
// read as an already-running job.
func TestStartAfterBootWithSleepDisabled(t *testing.T) {
	bus := &fakeBus{}
	m := testMeter(bus)

	// Bring the driver up the way main does, sleep disabled keeps the
	// device powered after configuration
	if err := m.SetGain(tsl2561.TSL2561_GAIN_1X); err != nil {
		t.Fatal(err)
	}
	if !m.Enabled {
		t.Fatal("device should be powered on after configuration")
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/start", nil)
	m.Start().ServeHTTP(w, r)
	if w.Code != 200 {
		t.Fatalf("start on a powered-on sensor: status = %d, body %q", w.Code, w.Body.String())
	}

	// A second start while the job is running is rejected
	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/api/v1/start", nil)
	m.Start().ServeHTTP(w, r)
	if w.Code != 400 {
		t.Errorf("start with a running job: status = %d, want 400", w.Code)
	}

	// Stop ends the job cleanly
	w = httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/api/v1/stop", nil)
	m.Stop().ServeHTTP(w, r)
	if w.Code != 200 {
		t.Fatalf("stop with a running job: status = %d, body %q", w.Code, w.Body.String())
	}
}

func TestStopWithoutRunningJob(t *testing.T) {
	bus := &fakeBus{}
	m := testMeter(bus)

	// Powered on, but no job was ever started
	if err := m.SetGain(tsl2561.TSL2561_GAIN_1X); err != nil {
		t.Fatal(err)
	}

	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "/api/v1/stop", nil)
	m.Stop().ServeHTTP(w, r)
	if w.Code != 400 {
		t.Errorf("stop without a job: status = %d, want 400", w.Code)
	}
}

func TestConfigureInterruptProgramsThresholds(t *testing.T) {
	bus := &fakeBus{}
	m := testMeter(bus)

	r := httptest.NewRequest("POST", "/api/v1/interrupt",
		strings.NewReader("low=100&high=1000&ratio=0.325&persist=4"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	m.ConfigureInterrupt().ServeHTTP(w, r)
	if w.Code != 200 {
		t.Fatalf("status = %d, body %q", w.Code, w.Body.String())
	}

	// All four threshold bytes and the interrupt control register must be
	// written
	for _, reg := range []byte{
		tsl2561.TSL2561_COMMAND_BIT | tsl2561.TSL2561_REGISTER_THRESHHOLDL_LOW,
		tsl2561.TSL2561_COMMAND_BIT | tsl2561.TSL2561_REGISTER_THRESHHOLDL_HIGH,
		tsl2561.TSL2561_COMMAND_BIT | tsl2561.TSL2561_REGISTER_THRESHHOLDH_LOW,
		tsl2561.TSL2561_COMMAND_BIT | tsl2561.TSL2561_REGISTER_THRESHHOLDH_HIGH,
	} {
		if _, ok := bus.writes[reg]; !ok {
			t.Errorf("threshold register %#x never written", reg)
		}
	}
	intReg := tsl2561.TSL2561_COMMAND_BIT | tsl2561.TSL2561_REGISTER_INTERRUPT
	got, ok := bus.writes[intReg]
	if !ok || len(got) != 1 {
		t.Fatalf("interrupt control register never written")
	}
	if want := byte(0x14); got[0] != want { // level mode, persist 4
		t.Errorf("interrupt control = %#x, want %#x", got[0], want)
	}
}

func TestConfigureInterruptRejectsBadWindow(t *testing.T) {
	m := testMeter(&fakeBus{})

	r := httptest.NewRequest("POST", "/api/v1/interrupt",
		strings.NewReader("low=1000&high=100"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	m.ConfigureInterrupt().ServeHTTP(w, r)
	if w.Code != 400 {
		t.Errorf("inverted window accepted, status = %d", w.Code)
	}
}

func TestConfigureInterruptRejectsUndefinedRatio(t *testing.T) {
	m := testMeter(&fakeBus{})

	r := httptest.NewRequest("POST", "/api/v1/interrupt",
		strings.NewReader("low=100&high=1000&ratio=1.5"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()

	m.ConfigureInterrupt().ServeHTTP(w, r)
	if w.Code != 400 {
		t.Errorf("undefined ratio accepted, status = %d", w.Code)
	}
}

func TestHandlersRequireConnectedSensor(t *testing.T) {
	m := &Meter{LuxResultsChan: make(chan LuxResults, 1)}

	for name, handler := range map[string]func() func(w *httptest.ResponseRecorder){
		"start": func() func(w *httptest.ResponseRecorder) {
			return func(w *httptest.ResponseRecorder) {
				r := httptest.NewRequest("GET", "/api/v1/start", nil)
				m.Start().ServeHTTP(w, r)
			}
		},
		"stop": func() func(w *httptest.ResponseRecorder) {
			return func(w *httptest.ResponseRecorder) {
				r := httptest.NewRequest("GET", "/api/v1/stop", nil)
				m.Stop().ServeHTTP(w, r)
			}
		},
		"current-conditions": func() func(w *httptest.ResponseRecorder) {
			return func(w *httptest.ResponseRecorder) {
				r := httptest.NewRequest("GET", "/api/v1/current-conditions", nil)
				m.CurrentConditions().ServeHTTP(w, r)
			}
		},
		"interrupt": func() func(w *httptest.ResponseRecorder) {
			return func(w *httptest.ResponseRecorder) {
				r := httptest.NewRequest("POST", "/api/v1/interrupt", strings.NewReader("low=1&high=2"))
				r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
				m.ConfigureInterrupt().ServeHTTP(w, r)
			}
		},
	} {
		w := httptest.NewRecorder()
		handler()(w)
		if w.Code != 400 {
			t.Errorf("%s without a sensor: status = %d, want 400", name, w.Code)
		}
	}
}
