package database

import "sync"

// ResetDefault forgets the process-wide store so the next Default call connects again
func ResetDefault() {
	defaultStore = nil
	defaultStoreErr = nil
	defaultOnce = sync.Once{}
}
