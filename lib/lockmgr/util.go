package lockmgr

import (
	"github.com/VictoriaMetrics/metrics"
)

var (
	acquireAcquired    = metrics.NewCounter(`dcoord_lock_acquire_total{result="acquired"}`)
	acquireContended   = metrics.NewCounter(`dcoord_lock_acquire_total{result="contended"}`)
	acquireUnavailable = metrics.NewCounter(`dcoord_lock_acquire_total{result="unavailable"}`)
	acquireInterrupted = metrics.NewCounter(`dcoord_lock_acquire_total{result="interrupted"}`)
	acquireError       = metrics.NewCounter(`dcoord_lock_acquire_total{result="error"}`)
	acquireAttempts    = metrics.NewCounter(`dcoord_lock_acquire_attempts_total`)

	// lockWait is the time from the first attempt until the lock was acquired
	lockWait = metrics.NewHistogram(`dcoord_lock_wait_seconds`)
)
