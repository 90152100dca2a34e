package timeutil

import "time"

// Belgrade is the reference zone for daily budget windows and summaries.
// FixedZone avoids a tzdata dependency; DST drift of an hour around the
// day boundary is acceptable for quota accounting.
var Belgrade = time.FixedZone("CET", 1*60*60)

func NowBelgrade() time.Time {
	return time.Now().In(Belgrade)
}

func StartOfDayBelgrade(t time.Time) time.Time {
	b := t.In(Belgrade)
	return time.Date(b.Year(), b.Month(), b.Day(), 0, 0, 0, 0, Belgrade)
}

// DayKey renders the calendar day used in budget counter keys.
func DayKey(t time.Time) string {
	return t.In(Belgrade).Format("2006-01-02")
}

func ParseToBelgrade(s string) (time.Time, error) {
	layouts := []string{
		time.RFC3339,
		"2006-01-02T15:04:05Z07:00",
		"2006-01-02 15:04:05",
		"2006-01-02",
	}

	var lastErr error
	for _, layout := range layouts {
		if layout == "2006-01-02 15:04:05" || layout == "2006-01-02" {
			t, err := time.ParseInLocation(layout, s, Belgrade)
			if err == nil {
				return t.In(Belgrade), nil
			}
			lastErr = err
			continue
		}

		t, err := time.Parse(layout, s)
		if err == nil {
			return t.In(Belgrade), nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
