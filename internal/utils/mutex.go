package utils

import "sync"

var gdalMu sync.Mutex

// ExecuteWithMutex serialises calls into GDAL, whose dataset handles are not
// safe for concurrent use from the gallery worker pool.
func ExecuteWithMutex(fn func()) {
	gdalMu.Lock()
	defer gdalMu.Unlock()
	fn()
}

// ExecuteWithMutexErr is ExecuteWithMutex for functions that fail.
func ExecuteWithMutexErr(fn func() error) error {
	var err error
	ExecuteWithMutex(func() {
		err = fn()
	})
	return err
}
