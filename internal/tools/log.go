package tools

import (
	"io"
	"log"
	"os"
)

// Record anything we log in the lux-meter.log file
func init() {
	logFile, err := os.OpenFile("lux-meter.log", os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
	if err != nil {
		log.Fatalf("error opening log file: %v", err)
	}
	multi := io.MultiWriter(logFile, os.Stdout)
	log.SetOutput(multi)
}
