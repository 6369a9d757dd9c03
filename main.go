package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/ztkent/lux-meter/internal/luxmeter"
	"github.com/ztkent/lux-meter/internal/tools"
	"github.com/ztkent/lux-meter/tsl2561"
)

/*
	Primary entry point for the Lux Meter application.
	It should be running at startup, on a Raspberry Pi, with the TSL2561 sensor connected.
*/

func main() {
	pid := os.Getpid()
	log.Println("LuxMeter [" + fmt.Sprintf("%d", pid) + "]")

	// connect to the lux sensor, auto-gain keeps the sensitivity tracking
	// the ambient conditions
	device, err := tsl2561.NewTSL2561(
		tsl2561.TSL2561_INTEGRATIONTIME_402MS,
		tsl2561.TSL2561_GAIN_1X,
		"/dev/i2c-1",
		false, // keep the device awake so interrupts survive
	)
	if err != nil {
		log.Fatalf("Failed to connect to the TSL2561 sensor: %v", err)
	}

	// connect to the sqlite database
	db, err := tools.ConnectSqlite(luxmeter.DB_PATH)
	if err != nil {
		// Unlike connecting to the sensor, this should always work.
		log.Fatalf("Failed to connect to the sqlite database: %v", err)
	}

	// Initialize router
	r := chi.NewRouter()
	// Log requests and recover from panics
	r.Use(middleware.Logger)
	r.Use(handleServerPanic)

	// Define routes
	defineRoutes(r, &luxmeter.Meter{
		TSL2561:        device,
		ResultsDB:      db,
		LuxResultsChan: make(chan luxmeter.LuxResults),
		Pid:            pid,
	})

	if os.Getenv("SSL") == "true" {
		// Generate a self-signed certificate if one doesn't exist
		tools.EnsureCertificate("cert.pem", "key.pem")

		// Start server
		app_port := "443"
		certPath := "cert.pem"
		keyPath := "key.pem"

		log.Printf("Starting HTTPS server on port %s", app_port)
		err = http.ListenAndServeTLS(":"+app_port, certPath, keyPath, r)
		if err != nil {
			log.Fatalf("Failed to start HTTPS server: %v", err)
		}
	} else {
		// Start server
		app_port := "80"
		log.Printf("Starting HTTP server on port %s", app_port)
		err = http.ListenAndServe(":"+app_port, r)
		if err != nil {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}

	return
}

func defineRoutes(r *chi.Mux, meter *luxmeter.Meter) {
	// Listen for any result messages from our jobs, record them in sqlite
	go meter.MonitorAndRecordResults()

	// Lux Meter Dashboard Controls
	r.Get("/", meter.ServeDashboard())
	r.Route("/luxmeter", func(r chi.Router) {
		r.Get("/start", meter.Start())
		r.Get("/stop", meter.Stop())
		r.Get("/signal-strength", meter.SignalStrength())
		r.Get("/current-conditions", meter.CurrentConditions())
		r.Get("/sensor-info", meter.SensorInfo())
		r.Get("/export", meter.ServeResultsDB())
		r.Post("/graph", meter.ServeResultsGraph())
		r.Get("/controls", meter.ServeMeterControls())
		r.Get("/status", meter.ServeSensorStatus())
		r.Post("/results", meter.ServeResultsTab())
		r.Post("/interrupt", meter.ConfigureInterrupt())
		r.Get("/interrupt/clear", meter.ClearSensorInterrupt())
		r.Get("/clear", meter.Clear())
	})

	// Lux Meter API, these serve a JSON response
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/start", meter.Start())
		r.Get("/stop", meter.Stop())
		r.Get("/signal-strength", meter.SignalStrength())
		r.Get("/current-conditions", meter.CurrentConditions())
		r.Get("/sensor-info", meter.SensorInfo())
		r.Get("/export", meter.ServeResultsDB())
		r.Post("/interrupt", meter.ConfigureInterrupt())
		r.Get("/interrupt/clear", meter.ClearSensorInterrupt())
	})

	// Route for service identification
	r.Get("/id", func(w http.ResponseWriter, r *http.Request) {
		response := struct {
			ServiceName string `json:"service_name"`
		}{
			ServiceName: "Lux Meter",
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(response)
	})
}

func handleServerPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				luxmeter.ServeResponse(w, r, (fmt.Sprintf("%v", err)), http.StatusInternalServerError)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
