// Package lock provides deadlock-checked drop-in replacements for sync.Mutex
// and sync.RWMutex, used anywhere shared state is guarded across goroutines
// in this module.
package lock

import "github.com/sasha-s/go-deadlock"

// Mutex is a sync.Mutex with deadlock detection.
type Mutex = deadlock.Mutex

// RWMutex is a sync.RWMutex with deadlock detection.
type RWMutex = deadlock.RWMutex
