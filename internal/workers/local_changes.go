// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"sync"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

const defaultDebounce = 500 * time.Millisecond

// LocalChangeListener watches the store's change events and triggers a sync
// cycle after local mutations. Events arriving within the debounce window
// coalesce into a single trigger, so a burst of saves costs one cycle.
type LocalChangeListener struct {
	events   <-chan models.LocalChangeEvent
	trigger  SyncTrigger
	debounce time.Duration
	logger   *logger.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

func NewLocalChangeListener(events <-chan models.LocalChangeEvent, trigger SyncTrigger, log *logger.Logger) *LocalChangeListener {
	return &LocalChangeListener{
		events:   events,
		trigger:  trigger,
		debounce: defaultDebounce,
		logger:   log,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (l *LocalChangeListener) Run() {
	go func() {
		defer close(l.done)

		l.logger.Info().Msg("local change listener started")
		for {
			select {
			case <-l.stop:
				return
			case ev, ok := <-l.events:
				if !ok {
					return
				}
				l.logger.Debug().
					Str("entity", ev.EntityName).
					Str("record_id", ev.RecordID).
					Msg("local change observed")
				if !l.settle() {
					return
				}
				l.trigger()
			}
		}
	}()
}

// settle waits out the debounce window, swallowing further events. Returns
// false if the listener was stopped while waiting.
func (l *LocalChangeListener) settle() bool {
	timer := time.NewTimer(l.debounce)
	defer timer.Stop()

	for {
		select {
		case <-l.stop:
			return false
		case _, ok := <-l.events:
			if !ok {
				return true
			}
		case <-timer.C:
			return true
		}
	}
}

func (l *LocalChangeListener) Stop() {
	l.stopOnce.Do(func() { close(l.stop) })
	<-l.done
}
