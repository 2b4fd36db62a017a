// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package workers

import (
	"context"

	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/models"
)

// NotificationSource is the subset of the adapter's notification listener
// the worker depends on.
type NotificationSource interface {
	Start(ctx context.Context)
	Stop()
	Notifications() <-chan models.ZoneNotification
}

// NotificationSyncWorker triggers a sync cycle whenever the record service
// reports that another device changed the zone.
type NotificationSyncWorker struct {
	source  NotificationSource
	zoneID  models.ZoneID
	trigger SyncTrigger
	logger  *logger.Logger

	done chan struct{}
}

func NewNotificationSyncWorker(source NotificationSource, zoneID models.ZoneID, trigger SyncTrigger, log *logger.Logger) *NotificationSyncWorker {
	return &NotificationSyncWorker{
		source:  source,
		zoneID:  zoneID,
		trigger: trigger,
		logger:  log,
		done:    make(chan struct{}),
	}
}

func (w *NotificationSyncWorker) Run() {
	w.source.Start(context.Background())

	go func() {
		defer close(w.done)

		for note := range w.source.Notifications() {
			if note.ZoneID != w.zoneID {
				continue
			}
			w.logger.Debug().
				Str("zone", note.ZoneID.ZoneName).
				Msg("zone notification received")
			w.trigger()
		}
	}()
}

// Stop closes the notification source; its channel close ends the goroutine.
func (w *NotificationSyncWorker) Stop() {
	w.source.Stop()
	<-w.done
}
