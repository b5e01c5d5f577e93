package main

import (
	"fmt"

	"github.com/gofrs/flock"
)

// acquireLock takes an exclusive, non-blocking lock on path so that two
// schedulers reading the same configuration never fire the same commands
// twice. The caller must Unlock the returned lock.
func acquireLock(path string) (*flock.Flock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("opening lock %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("another shedcmd instance holds %s", path)
	}
	return fl, nil
}
