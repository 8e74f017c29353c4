package transit

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parseServiceTime combines a GTFS service date ("2006-01-02") with a
// "HH:MM:SS" time of day. GTFS hours run past 23 for trips that operate
// after midnight on the previous service day; 25:30:00 on the 3rd means
// 01:30:00 on the 4th.
func parseServiceTime(serviceDate, clock string, loc *time.Location) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", serviceDate, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("parsing service date %q: %w", serviceDate, err)
	}

	parts := strings.Split(clock, ":")
	if len(parts) != 3 {
		return time.Time{}, fmt.Errorf("malformed time of day %q", clock)
	}

	hour, err := strconv.Atoi(parts[0])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed hour in %q", clock)
	}
	minute, err := strconv.Atoi(parts[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed minute in %q", clock)
	}
	second, err := strconv.Atoi(parts[2])
	if err != nil {
		return time.Time{}, fmt.Errorf("malformed second in %q", clock)
	}
	if hour < 0 || minute < 0 || minute > 59 || second < 0 || second > 59 {
		return time.Time{}, fmt.Errorf("time of day %q out of range", clock)
	}

	if hour > 23 {
		day = day.AddDate(0, 0, 1)
		hour = hour % 24
	}

	return time.Date(day.Year(), day.Month(), day.Day(), hour, minute, second, 0, loc), nil
}
