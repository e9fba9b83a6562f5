package common

import (
	"fmt"
	"time"

	"github.com/inhies/go-bytesize"
)

// GetSize formats a byte count for display.
func GetSize(sizeVal int64) string {
	size := bytesize.New(float64(sizeVal))
	return size.String()
}

// GetDuration formats an elapsed duration for display.
func GetDuration(d time.Duration) string {
	if d < time.Second {
		return d.Round(time.Millisecond).String()
	}
	if d < time.Minute {
		return d.Round(100 * time.Millisecond).String()
	}
	return fmt.Sprintf("%dm%ds", int(d.Minutes()), int(d.Seconds())%60)
}
