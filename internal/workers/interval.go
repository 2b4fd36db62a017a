// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/logger"
)

// IntervalSyncJob triggers a sync cycle on a fixed schedule. It is the
// safety net behind the event-driven workers: even if every notification is
// missed, the zone converges within one interval.
type IntervalSyncJob struct {
	interval time.Duration
	trigger  SyncTrigger
	logger   *logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewIntervalSyncJob(interval time.Duration, trigger SyncTrigger, log *logger.Logger) *IntervalSyncJob {
	return &IntervalSyncJob{
		interval: interval,
		trigger:  trigger,
		logger:   log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (j *IntervalSyncJob) Run() {
	go func() {
		defer close(j.done)

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		j.logger.Info().Dur("interval", j.interval).Msg("periodic sync job started")
		for {
			select {
			case <-j.stop:
				return
			case <-ticker.C:
				j.trigger()
			}
		}
	}()
}

func (j *IntervalSyncJob) Stop() {
	j.stopOnce.Do(func() { close(j.stop) })
	<-j.done
}
