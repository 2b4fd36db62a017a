// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package service drives the sync cycle: it drains the change-set ledger
// into batched pushes, resolves conflicts by policy, pulls the zone change
// feed, applies it in dependency order, and commits the change token only
// after the apply has landed.
//
// One cycle runs at a time. Concurrent triggers collapse into ErrSyncInFlight
// and the caller simply waits for the running cycle; the stages inside a
// cycle execute serially on the calling goroutine.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MKhiriev/go-sync-store/internal/adapter"
	"github.com/MKhiriev/go-sync-store/internal/graph"
	"github.com/MKhiriev/go-sync-store/internal/logger"
	"github.com/MKhiriev/go-sync-store/internal/mapper"
	"github.com/MKhiriev/go-sync-store/internal/store"
	"github.com/MKhiriev/go-sync-store/models"
)

// Config tunes one sync engine instance.
type Config struct {
	ZoneID models.ZoneID

	// BatchLimit caps the item count (saves plus deletes) of one push
	// request. Defaults to 400, the server's ceiling.
	BatchLimit int

	// ApplyRetryLimit bounds the passes over records deferred for missing
	// related objects during apply. Defaults to 5.
	ApplyRetryLimit int

	// PageLimit caps one change-feed page. Zero lets the server choose.
	PageLimit int

	Policy    ConflictPolicy
	Arbitrate ArbitrateFunc
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.BatchLimit <= 0 {
		out.BatchLimit = 400
	}
	if out.ApplyRetryLimit <= 0 {
		out.ApplyRetryLimit = 5
	}
	if out.Policy == "" {
		out.Policy = PolicyServerWins
	}
	return out
}

// EventKind classifies engine notifications.
type EventKind string

const (
	EventSyncStarted  EventKind = "sync_started"
	EventSyncFinished EventKind = "sync_finished"
)

// Event is delivered to registered observers around every cycle. Err is nil
// for started events and for successful finishes.
type Event struct {
	Kind   EventKind
	Result models.SyncResult
	Err    error
}

// Engine is the sync orchestrator.
type Engine struct {
	objects     store.ObjectRepository
	ledger      store.LedgerRepository
	state       store.SyncStateRepository
	remote      adapter.RemoteDatabase
	mapper      *mapper.Mapper
	provisioner *Provisioner
	schema      models.Schema
	resolver    conflictResolver
	cfg         Config
	logger      *logger.Logger

	inFlight atomic.Bool

	obsMu     sync.RWMutex
	observers []func(Event)
}

// NewEngine validates the configuration and builds the orchestrator.
// Returns an error for an unknown policy or a client-arbitrates policy
// without a resolver function.
func NewEngine(
	objects store.ObjectRepository,
	ledger store.LedgerRepository,
	state store.SyncStateRepository,
	remote adapter.RemoteDatabase,
	m *mapper.Mapper,
	provisioner *Provisioner,
	schema models.Schema,
	cfg Config,
	log *logger.Logger,
) (*Engine, error) {
	cfg = (&cfg).withDefaults()

	resolver, err := newConflictResolver(cfg.Policy, cfg.Arbitrate)
	if err != nil {
		return nil, err
	}

	return &Engine{
		objects:     objects,
		ledger:      ledger,
		state:       state,
		remote:      remote,
		mapper:      m,
		provisioner: provisioner,
		schema:      schema,
		resolver:    resolver,
		cfg:         cfg,
		logger:      log,
	}, nil
}

// Observe registers a callback invoked synchronously on sync-started and
// sync-finished events. Callbacks must be fast; they run on the sync
// goroutine.
func (e *Engine) Observe(fn func(Event)) {
	e.obsMu.Lock()
	defer e.obsMu.Unlock()
	e.observers = append(e.observers, fn)
}

func (e *Engine) notify(ev Event) {
	e.obsMu.RLock()
	defer e.obsMu.RUnlock()
	for _, fn := range e.observers {
		fn(ev)
	}
}

// Sync runs one full cycle: provision, push, resolve, pull, apply, commit.
// Returns ErrSyncInFlight when another cycle is already running.
//
// On success every queued ledger entry is deleted; on failure queued entries
// are unmarked so the next cycle retries them from scratch.
func (e *Engine) Sync(ctx context.Context) (models.SyncResult, error) {
	if !e.inFlight.CompareAndSwap(false, true) {
		return models.SyncResult{}, ErrSyncInFlight
	}
	defer e.inFlight.Store(false)

	result := models.SyncResult{Started: time.Now().UTC()}
	e.notify(Event{Kind: EventSyncStarted})
	e.logger.Info().Msg("sync cycle started")

	err := e.run(ctx, &result)
	result.Finished = time.Now().UTC()

	if err != nil {
		if unmarkErr := e.ledger.UnmarkQueued(ctx); unmarkErr != nil {
			e.logger.Error().Err(unmarkErr).Msg("failed to unmark queued ledger entries")
		}
		e.logger.Error().Err(err).Msg("sync cycle failed")
		e.notify(Event{Kind: EventSyncFinished, Result: result, Err: err})
		return result, err
	}

	if clearErr := e.ledger.ClearQueued(ctx); clearErr != nil {
		e.logger.Error().Err(clearErr).Msg("failed to clear queued ledger entries")
		e.notify(Event{Kind: EventSyncFinished, Result: result, Err: clearErr})
		return result, clearErr
	}

	e.logger.Info().
		Int("pushed", result.Pushed).
		Int("pushed_deletes", result.PushedDeletes).
		Int("applied", result.Applied).
		Int("applied_deletes", result.AppliedDeletes).
		Int("conflicts_resolved", result.ConflictsResolved).
		Int("skipped", len(result.Skipped)).
		Bool("full_resync", result.FullResync).
		Msg("sync cycle finished")
	e.notify(Event{Kind: EventSyncFinished, Result: result})
	return result, nil
}

func (e *Engine) run(ctx context.Context, result *models.SyncResult) error {
	if err := e.provisioner.Ensure(ctx); err != nil {
		return stageErr(StageProvision, err)
	}
	if err := e.push(ctx, result); err != nil {
		return err
	}
	if err := e.pull(ctx, result); err != nil {
		return err
	}
	return nil
}

// pushIntent is the collapsed per-record outcome of all its ledger entries.
type pushIntent struct {
	recordID   string
	entityName string
	deleted    bool

	// allKeys is set by inserts and by updates without a key list.
	allKeys bool
	keys    map[string]bool
}

func (e *Engine) push(ctx context.Context, result *models.SyncResult) error {
	entries, err := e.ledger.PendingChangeSets(ctx)
	if err != nil {
		return stageErr(StagePush, fmt.Errorf("drain ledger: %w", err))
	}
	if len(entries) == 0 {
		return nil
	}

	intents := collapseEntries(entries)

	var toSave []*models.RemoteRecord
	var toDelete []models.RecordID

	for _, intent := range intents {
		if intent.deleted {
			toDelete = append(toDelete, models.NewRecordID(intent.recordID, e.cfg.ZoneID))
			continue
		}

		obj, getErr := e.objects.Get(ctx, intent.recordID)
		if getErr != nil {
			if errors.Is(getErr, store.ErrObjectNotFound) {
				// The object vanished after its entry was written; its own
				// delete entry handles the remote side.
				continue
			}
			return stageErr(StagePush, fmt.Errorf("load object %s: %w", intent.recordID, getErr))
		}

		var keys []string
		if !intent.allKeys {
			keys = make([]string, 0, len(intent.keys))
			for k := range intent.keys {
				keys = append(keys, k)
			}
		}

		record, mapErr := e.mapper.ToRemoteRecord(ctx, &obj, keys)
		if mapErr != nil {
			e.logger.Warn().Err(mapErr).Str("record_id", intent.recordID).Msg("skipping unconvertible object")
			result.Skipped = append(result.Skipped, models.SkippedRecord{
				RecordID:   intent.recordID,
				RecordType: obj.EntityName,
				Reason:     models.SkipInvalidRecord,
				Detail:     mapErr.Error(),
			})
			continue
		}
		toSave = append(toSave, record)
	}

	toSave = sortRecords(toSave, e.schema, e.logger)

	conflicts, err := e.pushBatches(ctx, toSave, toDelete, result)
	if err != nil {
		return stageErr(StagePush, err)
	}
	if len(conflicts) == 0 {
		return nil
	}

	return e.resolveAndRepush(ctx, conflicts, result)
}

// pushBatches sends saves and deletes in request-sized chunks and processes
// the per-record results. Conflicting records are returned for resolution.
func (e *Engine) pushBatches(ctx context.Context, toSave []*models.RemoteRecord, toDelete []models.RecordID, result *models.SyncResult) ([]models.ConflictRecord, error) {
	var conflicts []models.ConflictRecord

	for len(toSave) > 0 || len(toDelete) > 0 {
		req := models.ModifyRecordsRequest{}
		room := e.cfg.BatchLimit

		n := min(room, len(toSave))
		req.RecordsToSave, toSave = toSave[:n], toSave[n:]
		room -= n

		n = min(room, len(toDelete))
		req.RecordIDsToDelete, toDelete = toDelete[:n], toDelete[n:]

		resp, err := e.remote.ModifyRecords(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("modify records: %w", err)
		}

		batchConflicts, err := e.processPushResults(ctx, resp.Results, result)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, batchConflicts...)
	}

	return conflicts, nil
}

func (e *Engine) processPushResults(ctx context.Context, results []models.RecordResult, result *models.SyncResult) ([]models.ConflictRecord, error) {
	var conflicts []models.ConflictRecord

	for _, rr := range results {
		switch rr.Code {
		case models.RecordResultSaved:
			if rr.SavedRecord == nil {
				return nil, fmt.Errorf("saved result for %s without record body", rr.RecordID.RecordName)
			}
			if err := e.stampSystemFields(ctx, rr.SavedRecord); err != nil {
				return nil, err
			}
			result.Pushed++

		case models.RecordResultDeleted:
			result.PushedDeletes++

		case models.RecordResultConflict:
			if rr.Conflict == nil {
				return nil, fmt.Errorf("conflict result for %s without conflict body", rr.RecordID.RecordName)
			}
			conflicts = append(conflicts, *rr.Conflict)

		default:
			e.logger.Warn().
				Str("record_id", rr.RecordID.RecordName).
				Str("code", string(rr.Code)).
				Str("reason", rr.Reason).
				Msg("push rejected record")
			result.Skipped = append(result.Skipped, models.SkippedRecord{
				RecordID: rr.RecordID.RecordName,
				Reason:   models.SkipPushRejected,
				Detail:   rr.Reason,
			})
		}
	}

	return conflicts, nil
}

// resolveAndRepush applies the conflict policy and retries each conflicting
// record exactly once. A record conflicting again fails the cycle.
func (e *Engine) resolveAndRepush(ctx context.Context, conflicts []models.ConflictRecord, result *models.SyncResult) error {
	resolved := make([]*models.RemoteRecord, 0, len(conflicts))
	for _, c := range conflicts {
		e.logger.Info().
			Str("record_id", c.ServerRecord.RecordID.RecordName).
			Str("policy", string(e.resolver.policy)).
			Msg("resolving push conflict")
		resolved = append(resolved, e.resolver.resolve(c))
	}

	resolved = sortRecords(resolved, e.schema, e.logger)

	for len(resolved) > 0 {
		n := min(e.cfg.BatchLimit, len(resolved))
		var batch []*models.RemoteRecord
		batch, resolved = resolved[:n], resolved[n:]

		resp, err := e.remote.ModifyRecords(ctx, models.ModifyRecordsRequest{RecordsToSave: batch})
		if err != nil {
			return stageErr(StageResolve, fmt.Errorf("repush resolved records: %w", err))
		}

		for _, rr := range resp.Results {
			switch rr.Code {
			case models.RecordResultSaved:
				if rr.SavedRecord == nil {
					return stageErr(StageResolve, fmt.Errorf("saved result for %s without record body", rr.RecordID.RecordName))
				}
				if err = e.stampSystemFields(ctx, rr.SavedRecord); err != nil {
					return stageErr(StageResolve, err)
				}
				result.Pushed++
				result.ConflictsResolved++
			case models.RecordResultConflict:
				return stageErr(StageResolve, fmt.Errorf("%w: %s", ErrRepeatedConflict, rr.RecordID.RecordName))
			default:
				return stageErr(StageResolve, fmt.Errorf("repush rejected record %s: %s", rr.RecordID.RecordName, rr.Reason))
			}
		}
	}

	return nil
}

// stampSystemFields persists the fresh remote identity and change tag on the
// local object backing a just-saved record.
func (e *Engine) stampSystemFields(ctx context.Context, saved *models.RemoteRecord) error {
	encoded, err := mapper.EncodeSystemFields(saved)
	if err != nil {
		return fmt.Errorf("encode system fields of %s: %w", saved.RecordID.RecordName, err)
	}
	err = e.objects.SetSystemFields(ctx, saved.RecordID.RecordName, encoded)
	if err != nil && !errors.Is(err, store.ErrObjectNotFound) {
		return fmt.Errorf("stamp system fields of %s: %w", saved.RecordID.RecordName, err)
	}
	return nil
}

// pull walks the change feed page by page. Each page is applied and its
// token committed before the next page is fetched, so an interrupted pull
// resumes where it stopped instead of refetching everything.
func (e *Engine) pull(ctx context.Context, result *models.SyncResult) error {
	token, err := e.state.Token(ctx)
	if err != nil {
		return stageErr(StageFetch, fmt.Errorf("read change token: %w", err))
	}
	result.FullResync = token.IsZero()

	retriedExpired := false
	for {
		resp, fetchErr := e.remote.FetchZoneChanges(ctx, models.FetchZoneChangesRequest{
			ZoneID: e.cfg.ZoneID,
			Token:  token,
			Limit:  e.cfg.PageLimit,
		})
		if fetchErr != nil {
			if errors.Is(fetchErr, adapter.ErrTokenExpired) && !retriedExpired {
				// The server compacted its feed past our cursor. Restart
				// from the beginning once; applies are idempotent upserts.
				e.logger.Warn().Msg("change token expired, falling back to full resync")
				if err = e.state.DeleteToken(ctx); err != nil {
					return stageErr(StageFetch, fmt.Errorf("discard expired token: %w", err))
				}
				token = ""
				result.FullResync = true
				retriedExpired = true
				continue
			}
			return stageErr(StageFetch, fmt.Errorf("fetch zone changes: %w", fetchErr))
		}

		if err = e.applyPage(ctx, resp, result); err != nil {
			return err
		}

		if err = e.state.SaveToken(ctx, resp.Token); err != nil {
			return stageErr(StageCommit, fmt.Errorf("commit change token: %w", err))
		}
		token = resp.Token

		if !resp.MoreComing {
			return nil
		}
	}
}

// applyPage materialises one change-feed page locally: process deletions,
// then fetch the full bodies of changed records and apply them in dependency
// order with bounded retries for records whose referenced objects arrive
// later.
//
// Deletions go first. A page may carry both a delete and a change event for
// the same record when it was deleted and recreated between two pulls;
// fetching the record bodies after the delete keeps the recreated record,
// while a record that was created and then deleted is simply absent from the
// fetch response.
func (e *Engine) applyPage(ctx context.Context, page models.FetchZoneChangesResponse, result *models.SyncResult) error {
	if len(page.Deleted) > 0 {
		ids := make([]string, 0, len(page.Deleted))
		for _, id := range page.Deleted {
			ids = append(ids, id.RecordName)
		}
		removed, err := e.objects.DeleteByRecordIDs(ctx, ids)
		if err != nil {
			return stageErr(StageApply, fmt.Errorf("apply deletions: %w", err))
		}
		result.AppliedDeletes += int(removed)
	}

	if len(page.Changed) > 0 {
		ids := make([]models.RecordID, 0, len(page.Changed))
		for _, info := range page.Changed {
			ids = append(ids, info.RecordID)
		}

		fetched, err := e.remote.FetchRecords(ctx, models.FetchRecordsRequest{RecordIDs: ids})
		if err != nil {
			return stageErr(StageFetch, fmt.Errorf("fetch record bodies: %w", err))
		}

		if err = e.applyRecords(ctx, fetched.Records, result); err != nil {
			return err
		}
	}

	return nil
}

func (e *Engine) applyRecords(ctx context.Context, records []*models.RemoteRecord, result *models.SyncResult) error {
	pending := sortRecords(records, e.schema, e.logger)

	for pass := 0; pass < e.cfg.ApplyRetryLimit && len(pending) > 0; pass++ {
		var deferred []*models.RemoteRecord

		for _, record := range pending {
			obj, err := e.mapper.FromRemoteRecord(ctx, record)
			switch {
			case err == nil:
				if applyErr := e.objects.ApplyRemote(ctx, obj); applyErr != nil {
					return stageErr(StageApply, fmt.Errorf("apply record %s: %w", record.RecordID.RecordName, applyErr))
				}
				result.Applied++

			case errors.Is(err, mapper.ErrMissingRelatedObject):
				// The referenced object may be later in this page or in a
				// record another pass materialises first.
				deferred = append(deferred, record)

			case errors.Is(err, mapper.ErrInvalidRecord):
				e.logger.Warn().Err(err).Str("record_id", record.RecordID.RecordName).Msg("skipping invalid record")
				result.Skipped = append(result.Skipped, models.SkippedRecord{
					RecordID:   record.RecordID.RecordName,
					RecordType: record.RecordType,
					Reason:     models.SkipInvalidRecord,
					Detail:     err.Error(),
				})

			default:
				return stageErr(StageApply, fmt.Errorf("map record %s: %w", record.RecordID.RecordName, err))
			}
		}

		if len(deferred) == len(pending) {
			// No progress; further passes cannot resolve anything.
			pending = deferred
			break
		}
		pending = deferred
	}

	for _, record := range pending {
		e.logger.Warn().
			Str("record_id", record.RecordID.RecordName).
			Str("record_type", record.RecordType).
			Msg("dropping record with unresolvable references")
		result.Skipped = append(result.Skipped, models.SkippedRecord{
			RecordID:   record.RecordID.RecordName,
			RecordType: record.RecordType,
			Reason:     models.SkipMissingRelatedObject,
		})
	}

	return nil
}

// collapseEntries folds the ordered ledger entries into one intent per
// record. Later entries win: a delete supersedes pending saves and a
// re-insert supersedes a delete. Changed-key lists of multiple updates are
// unioned.
func collapseEntries(entries []models.ChangeSetEntry) []pushIntent {
	byRecord := make(map[string]*pushIntent)
	order := make([]string, 0, len(entries))

	for _, entry := range entries {
		intent, seen := byRecord[entry.RecordID]
		if !seen {
			intent = &pushIntent{recordID: entry.RecordID, keys: make(map[string]bool)}
			byRecord[entry.RecordID] = intent
			order = append(order, entry.RecordID)
		}
		if entry.EntityName != "" {
			intent.entityName = entry.EntityName
		}

		switch entry.ChangeType {
		case models.ChangeDeleted:
			intent.deleted = true
			intent.allKeys = false
			intent.keys = make(map[string]bool)

		case models.ChangeInserted:
			intent.deleted = false
			intent.allKeys = true

		case models.ChangeUpdated:
			intent.deleted = false
			keys := entry.ChangedKeyList()
			if keys == nil {
				intent.allKeys = true
			}
			for _, k := range keys {
				intent.keys[k] = true
			}
		}
	}

	out := make([]pushIntent, 0, len(order))
	for _, id := range order {
		out = append(out, *byRecord[id])
	}
	return out
}

func sortRecords(records []*models.RemoteRecord, schema models.Schema, log *logger.Logger) []*models.RemoteRecord {
	if len(records) < 2 {
		return records
	}
	nodes := make([]graph.Node, 0, len(records))
	for _, r := range records {
		nodes = append(nodes, r)
	}
	sorted := graph.New(nodes, schema, log).Sorted()

	out := make([]*models.RemoteRecord, 0, len(sorted))
	for _, n := range sorted {
		out = append(out, n.(*models.RemoteRecord))
	}
	return out
}
