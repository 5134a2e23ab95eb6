package cli

import (
	"os"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
)

type stopFunc func()

func startSpinner(enabled bool, description string) stopFunc {
	if !enabled {
		return func() {}
	}

	bar := progressbar.NewOptions(
		-1,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionThrottle(80*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	stopCh := make(chan struct{})
	doneCh := make(chan struct{})

	go func() {
		defer close(doneCh)
		ticker := time.NewTicker(120 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-stopCh:
				_ = bar.Finish()
				return
			case <-ticker.C:
				_ = bar.Add(1)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			close(stopCh)
			<-doneCh
		})
	}
}

// startFractionBar renders a determinate bar driven by fractional
// progress callbacks in [0,1]. The update func is safe to call from
// other goroutines.
func startFractionBar(enabled bool, description string) (func(fraction float64), stopFunc) {
	if !enabled {
		return func(float64) {}, func() {}
	}

	bar := progressbar.NewOptions64(
		100,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(20),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)

	var mu sync.Mutex
	update := func(fraction float64) {
		if fraction < 0 {
			fraction = 0
		}
		if fraction > 1 {
			fraction = 1
		}
		mu.Lock()
		_ = bar.Set64(int64(fraction * 100))
		mu.Unlock()
	}

	var once sync.Once
	stop := func() {
		once.Do(func() {
			mu.Lock()
			_ = bar.Finish()
			mu.Unlock()
		})
	}

	return update, stop
}
