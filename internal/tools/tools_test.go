package tools

import (
	"net"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestParseStartAndEndDate(t *testing.T) {
	r := httptest.NewRequest("POST", "/luxmeter/results",
		strings.NewReader("start=2026-08-01T10:00&end=2026-08-02T12:30"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	start, end := ParseStartAndEndDate(r)
	if start != "2026-08-01 10:00:00" {
		t.Errorf("start = %q, want 2026-08-01 10:00:00", start)
	}
	if end != "2026-08-02 12:30:00" {
		t.Errorf("end = %q, want 2026-08-02 12:30:00", end)
	}
}

func TestParseStartAndEndDateDefaults(t *testing.T) {
	r := httptest.NewRequest("GET", "/luxmeter/results", nil)
	start, end := ParseStartAndEndDate(r)

	startTime, endTime, err := StartAndEndDateToTime(start, end)
	if err != nil {
		t.Fatalf("default dates do not round trip: %v", err)
	}
	if hours := endTime.Sub(startTime).Hours(); hours < 23.9 || hours > 24.1 {
		t.Errorf("default range covers %.1f hours, want 24", hours)
	}
}

func TestReadingsSchemaEmbedded(t *testing.T) {
	if !strings.Contains(readingsSchema, "CREATE TABLE IF NOT EXISTS readings") {
		t.Error("embedded schema is missing the readings table definition")
	}
	if !strings.Contains(readingsSchema, "idx_readings_created_at") {
		t.Error("embedded schema is missing the created_at index")
	}
}

func TestIsLocalAddress(t *testing.T) {
	cases := []struct {
		ip   string
		want bool
	}{
		{"127.0.0.1", true},
		{"192.168.1.20", true},
		{"10.0.5.5", true},
		{"172.16.0.1", true},
		{"8.8.8.8", false},
		{"203.0.113.7", false},
	}
	for _, tc := range cases {
		if got := isLocalAddress(net.ParseIP(tc.ip)); got != tc.want {
			t.Errorf("isLocalAddress(%s) = %v, want %v", tc.ip, got, tc.want)
		}
	}
}
