package handlers

import (
	"fmt"
	"strings"
	"time"

	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

// Countdown renders a departure as a short board string, "Now" or "N min".
// Realtime-confirmed times carry a trailing marker so riders can tell a
// live estimate from a timetable guess.
func Countdown(dep models.CanonicalDeparture, now time.Time) string {
	minutes := dep.MinutesAway(now)

	var s string
	if minutes == 0 {
		s = "Now"
	} else {
		if minutes < 0 {
			minutes = -minutes
		}
		s = fmt.Sprintf("%d min", minutes)
	}

	if dep.Provenance == models.ProvenanceRealtime {
		s += "*"
	}
	return s
}

// SimplifyRouteName shortens verbose route names for narrow board columns
func SimplifyRouteName(name string) string {
	name = strings.ReplaceAll(name, " Line", "")
	name = strings.ReplaceAll(name, "/", "\n")
	return name
}
