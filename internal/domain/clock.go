package domain

import "time"

// TimestampLayout is the on-disk representation for file and workbook stores.
const TimestampLayout = "2006-01-02 15:04:05"

// recordZone is the fixed civil zone all timestamps are stored in, so rows
// look identical regardless of where the process runs.
var recordZone = loadRecordZone()

func loadRecordZone() *time.Location {
	if loc, err := time.LoadLocation("Asia/Kolkata"); err == nil {
		return loc
	}
	// Hosts without tzdata still get the correct UTC+5:30 offset.
	return time.FixedZone("IST", 5*3600+30*60)
}

// RecordTime converts a wall-clock instant to the fixed storage zone,
// truncated to whole seconds to match the stored layout.
func RecordTime(now time.Time) time.Time {
	return now.In(recordZone).Truncate(time.Second)
}

// FormatTimestamp renders a stored instant using TimestampLayout in the
// fixed storage zone.
func FormatTimestamp(t time.Time) string {
	return t.In(recordZone).Format(TimestampLayout)
}
