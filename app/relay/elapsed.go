package relay

import (
	"fmt"
	"time"
)

const createdLayout = "2006/01/02-15:04"

// DescribeElapsed renders the age of a post, e.g. "12.50 minutes (created 2025/03/01-17:30)".
func DescribeElapsed(created, now time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}

	minutes := now.Sub(created).Minutes()
	stamp := created.In(loc).Format(createdLayout)

	if minutes < 60 {
		return fmt.Sprintf("%.2f minutes (created %s)", minutes, stamp)
	}
	return fmt.Sprintf("%.2f hours (created %s)", minutes/60, stamp)
}
