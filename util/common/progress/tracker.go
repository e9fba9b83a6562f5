package progress

import (
	"fmt"
	"time"

	"github.com/pterm/pterm"

	"github.com/eden-toolkit/coding-nexus-migrator/module/migrate/types"
	"github.com/eden-toolkit/coding-nexus-migrator/util/common"
)

// Tracker periodically renders run counters in a single spinner line while a
// long operation runs in the foreground. All artifact counts come from the
// snapshot function, the tracker itself holds no state worth syncing.
type Tracker struct {
	snapshot func() types.Summary
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewTracker creates a tracker over snapshot. Call Start, then Stop.
func NewTracker(snapshot func() types.Summary) *Tracker {
	return &Tracker{
		snapshot: snapshot,
		interval: time.Second,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start begins rendering in a background goroutine.
func (t *Tracker) Start(title string) {
	spinner, err := pterm.DefaultSpinner.WithRemoveWhenDone(true).Start(title)
	go func() {
		defer close(t.done)
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-t.stop:
				if err == nil {
					spinner.Stop()
				}
				return
			case <-ticker.C:
				if err == nil {
					spinner.UpdateText(render(title, t.snapshot()))
				}
			}
		}
	}()
}

// Stop halts rendering and waits for the spinner line to clear.
func (t *Tracker) Stop() {
	close(t.stop)
	<-t.done
}

func render(title string, s types.Summary) string {
	return fmt.Sprintf("%s  migrated %d, skipped %d, failed %d (%s)",
		title, s.Done, s.Skipped, s.Failed, common.GetSize(s.Bytes))
}
