package luxmeter

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/ztkent/lux-meter/tsl2561"
)

//go:embed html/*
var templateFiles embed.FS

type Meter struct {
	*tsl2561.TSL2561
	LuxResultsChan chan LuxResults
	ResultsDB      *sql.DB
	cancel         context.CancelFunc
	Pid            int
}

type LuxResults struct {
	Lux       uint32
	Broadband uint16
	Infrared  uint16
	Saturated bool
	JobID     string
}

type Conditions struct {
	JobID                string  `json:"jobID"`
	Lux                  uint32  `json:"lux"`
	Broadband            uint16  `json:"broadband"`
	Infrared             uint16  `json:"infrared"`
	IntegrationTime      string  `json:"integrationTime"`
	Gain                 string  `json:"gain"`
	DateRange            string  `json:"dateRange"`
	RecordedHoursInRange float64 `json:"recordedHoursInRange"`
	DaylightInRange      float64 `json:"daylightInRange"`
	ConditionInRange     string  `json:"conditionInRange"`
	AverageLuxInRange    float64 `json:"averageLuxInRange"`
}

const (
	MAX_JOB_DURATION = 8 * time.Hour
	RECORD_INTERVAL  = 30 * time.Second
	DB_PATH          = "luxmeter.db"
)

// Start the sensor, and collect data in a loop
func (m *Meter) Start() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		log.Println("Let there be light readings!")
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		} else if m.cancel != nil {
			// The device is powered on outside of jobs when sleep is not
			// allowed, so the job state is tracked by the cancel handle
			// rather than the power state.
			ServeResponse(w, r, "A recording job is already running", http.StatusBadRequest)
			return
		}

		// Create a new context with a timeout to manage the job lifecycle
		ctx, cancel := context.WithTimeout(context.Background(), MAX_JOB_DURATION)
		m.cancel = cancel

		go func() {
			// Enable the sensor, and let auto-gain track the conditions
			m.Enable()
			defer m.Disable()
			m.EnableAutoGain(true)

			jobID := uuid.New().String()
			ticker := time.NewTicker(RECORD_INTERVAL)
			defer ticker.Stop()
			for {
				// Check if we've cancelled this job.
				select {
				case <-ctx.Done():
					log.Println("Job Cancelled, stopping sensor")
					return
				default:
				}

				// Read the sensor
				broadband, ir, err := m.GetLuminosity()
				if err != nil {
					log.Println(fmt.Sprintf("The sensor failed to get luminosity: %s", err.Error()))
					m.LuxResultsChan <- LuxResults{
						JobID: jobID,
					}
					select {
					case <-ctx.Done():
						return
					case <-ticker.C:
					}
					continue
				}

				// Convert the raw channel pair to lux
				result := m.CalculateLux(broadband, ir)
				if result.Saturated {
					log.Println("The sensor is saturated, recording the sample as unreliable")
				}

				// Send the results to the LuxResultsChan
				m.LuxResultsChan <- LuxResults{
					Lux:       result.Lux,
					Broadband: broadband,
					Infrared:  ir,
					Saturated: result.Saturated,
					JobID:     jobID,
				}
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
				}
			}
		}()
		w.WriteHeader(http.StatusOK)
		ServeResponse(w, r, "Lux Reading Started", http.StatusOK)
		return
	}
}

// Stop the sensor, and cancel the job context
func (m *Meter) Stop() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		} else if m.cancel == nil {
			ServeResponse(w, r, "No recording job is running", http.StatusBadRequest)
			return
		}

		// Cancel the job context, stop the sensor. Stop also resets an
		// expired job, the timeout does not clear the handle on its own.
		defer m.Disable()
		m.cancel()
		m.cancel = nil

		w.WriteHeader(http.StatusOK)
		ServeResponse(w, r, "Lux Reading Stopped", http.StatusOK)
		return
	}
}

// Serve data about the most recent entry saved to the db
func (m *Meter) CurrentConditions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		} else if !m.Enabled {
			ServeResponse(w, r, "The sensor is not enabled", http.StatusBadRequest)
			return
		}
		conditions, err := m.getCurrentConditions()
		if err != nil {
			log.Println(err)
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}

		conditionsData, err := json.Marshal(conditions)
		if err != nil {
			log.Println(err)
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}

		w.WriteHeader(http.StatusOK)
		ServeResponse(w, r, string(conditionsData), http.StatusOK)
		return
	}
}

// Return the most recent entry saved to the db
func (m *Meter) getCurrentConditions() (Conditions, error) {
	if m.TSL2561 == nil || !m.Enabled {
		return Conditions{}, nil
	}
	conditions := Conditions{
		IntegrationTime: m.IntegrationTime.String(),
		Gain:            m.Gain.String(),
	}
	row := m.ResultsDB.QueryRow("SELECT job_id, lux, broadband, infrared FROM readings ORDER BY id DESC LIMIT 1")
	err := row.Scan(&conditions.JobID, &conditions.Lux, &conditions.Broadband, &conditions.Infrared)
	if err != nil {
		log.Println(err)
		return Conditions{}, err
	}
	return conditions, nil
}

// Program the level interrupt from a lux window. The sensor thresholds raw
// channel 0 values, so the lux targets are converted with the assumed
// channel ratio first; the interrupt may not fire at exactly the requested
// lux levels.
func (m *Meter) ConfigureInterrupt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		}

		lowLux, err1 := strconv.ParseUint(r.FormValue("low"), 10, 16)
		highLux, err2 := strconv.ParseUint(r.FormValue("high"), 10, 16)
		if err1 != nil || err2 != nil || lowLux > highLux {
			ServeResponse(w, r, "Provide a valid lux window, low and high", http.StatusBadRequest)
			return
		}

		// Assume sunlight unless the caller knows better
		ratio := tsl2561.TSL2561_APPROXCHRATIO_SUN
		if v := r.FormValue("ratio"); v != "" {
			ratio, err1 = strconv.ParseFloat(v, 64)
			if err1 != nil {
				ServeResponse(w, r, "Invalid channel ratio", http.StatusBadRequest)
				return
			}
		}

		persist := uint64(4)
		if v := r.FormValue("persist"); v != "" {
			persist, err1 = strconv.ParseUint(v, 10, 8)
			if err1 != nil || persist > 15 {
				ServeResponse(w, r, "Persist must be between 0 and 15", http.StatusBadRequest)
				return
			}
		}

		rawLow := m.CalculateRawCH0(uint16(lowLux), ratio)
		rawHigh := m.CalculateRawCH0(uint16(highLux), ratio)
		if rawLow == tsl2561.RawCH0Undefined || rawHigh == tsl2561.RawCH0Undefined {
			ServeResponse(w, r, "No meaningful threshold exists for that channel ratio", http.StatusBadRequest)
			return
		}
		if rawLow > 0xFFFF {
			rawLow = 0xFFFF
		}
		if rawHigh > 0xFFFF {
			rawHigh = 0xFFFF
		}

		if err := m.SetInterruptThresholds(uint16(rawLow), uint16(rawHigh)); err != nil {
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := m.SetInterruptControl(tsl2561.TSL2561_INTERRUPTCTL_LEVEL, uint8(persist)); err != nil {
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}

		log.Println(fmt.Sprintf("Interrupt window set: %d-%d lux -> raw %d-%d (ratio %.3f)",
			lowLux, highLux, rawLow, rawHigh, ratio))
		ServeResponse(w, r, fmt.Sprintf("Interrupt set for %d-%d lux (raw %d-%d)",
			lowLux, highLux, rawLow, rawHigh), http.StatusOK)
	}
}

// Clear a pending level interrupt
func (m *Meter) ClearSensorInterrupt() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		}
		if err := m.ClearInterrupt(); err != nil {
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		ServeResponse(w, r, "Interrupt cleared", http.StatusOK)
	}
}

// Serve the static sensor capabilities
func (m *Meter) SensorInfo() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if m.TSL2561 == nil {
			ServeResponse(w, r, "The sensor is not connected", http.StatusBadRequest)
			return
		}
		infoData, err := json.Marshal(m.Info())
		if err != nil {
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
		ServeResponse(w, r, string(infoData), http.StatusOK)
	}
}

// Check the signal strength of the wifi connection
func (m *Meter) SignalStrength() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cmd := exec.Command("sh", "-c", "iw dev wlan0 link | grep 'signal:' | awk '{print $2}'")
		output, err := cmd.Output()
		if err != nil {
			log.Println(err)
			ServeResponse(w, r, err.Error(), http.StatusInternalServerError)
			return
		}
		signalInt, err := strconv.Atoi(strings.TrimSpace(string(output)))
		if err != nil {
			ServeResponse(w, r, "Device is not connected to a network", http.StatusBadRequest)
			return
		}

		// Convert the signal to a strength value
		// https://git.openwrt.org/?p=project/iwinfo.git;a=blob;f=iwinfo_nl80211.c;hb=HEAD#l2885
		if signalInt < -110 {
			signalInt = -110
		} else if signalInt > -40 {
			signalInt = -40
		}

		// Scale the signal to a percentage
		strength := (signalInt + 110) * 100 / 70
		if strength < 0 {
			strength = 0
		} else if strength > 100 {
			strength = 100
		}

		w.WriteHeader(http.StatusOK)
		ServeResponse(w, r, "Signal Strength: "+fmt.Sprintf("%d", signalInt)+" dBm\nQuality: "+fmt.Sprintf("%d", strength)+"%", http.StatusOK)
		return
	}
}

// Populate the response div with a message, or reply with a JSON message
func ServeResponse(w http.ResponseWriter, r *http.Request, message string, status int) {
	if strings.Contains(r.URL.Path, "/api/v1/") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"message": message})
		return
	}

	tmpl, err := parseTemplateFile("html/response.gohtml")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	err = tmpl.Execute(w, message)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}

func parseTemplateFile(path string) (*template.Template, error) {
	content, err := templateFiles.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded template: %w", err)
	}

	tmpl, err := template.New("results").Parse(string(content))
	if err != nil {
		return nil, fmt.Errorf("failed to parse template: %w", err)
	}
	return tmpl, nil
}

// Read from LuxResultsChan, write the results to sqlite
func (m *Meter) MonitorAndRecordResults() {
	log.Println("Monitoring for new lux readings...")
	for {
		select {
		case result := <-m.LuxResultsChan:
			log.Println(fmt.Sprintf("- JobID: %s, Lux: %d", result.JobID, result.Lux))
			if result.Saturated {
				log.Println("Reading is saturated, skipping record")
				continue
			}
			_, err := m.ResultsDB.Exec(
				"INSERT INTO readings (job_id, lux, broadband, infrared) VALUES (?, ?, ?, ?)",
				result.JobID,
				result.Lux,
				result.Broadband,
				result.Infrared,
			)
			if err != nil {
				log.Println(err)
			}
		}
	}
}
