package ingest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/festworks/festpass-backend/internal/passes"
	"github.com/festworks/festpass-backend/internal/passmap"
	"github.com/festworks/festpass-backend/internal/portal"
	"github.com/festworks/festpass-backend/pkg/config"
	"github.com/festworks/festpass-backend/pkg/db/models"
	"github.com/festworks/festpass-backend/pkg/enums"
	pkgerrors "github.com/festworks/festpass-backend/pkg/errors"
	"github.com/festworks/festpass-backend/pkg/logger"
	"github.com/festworks/festpass-backend/pkg/metrics"
	"github.com/festworks/festpass-backend/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Sync error tags surfaced to clients alongside last-known state.
const (
	syncErrPortalUnreachable = "portal_unreachable"
	syncErrInProgress        = "sync_in_progress"
)

const phoneLockTTL = 30 * time.Second

// Service is the reconciliation entry point consumed by the API layer.
type Service interface {
	Sync(ctx context.Context, userID uuid.UUID, debug bool) (*SyncResult, error)
	PendingQueue(ctx context.Context, params pagination.Params) (*PendingQueueResult, error)
	InvalidateMappingCache()
}

type userFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type passesRepository interface {
	resolverPassRepo
	granterRepo
	guardRepo
	ListOwnershipsByUser(ctx context.Context, userID uuid.UUID) ([]models.PassOwnership, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Pass, error)
}

type logsRepository interface {
	logInserter
	ListSuccessByUser(ctx context.Context, userID uuid.UUID) ([]models.PaymentLog, error)
	ListSuccessPage(ctx context.Context, limit int, before *models.PaymentLog) ([]models.PaymentLog, error)
	NormalizeLegacyStatusesForUser(ctx context.Context, userID uuid.UUID) (int64, error)
}

type mappingCache interface {
	Load(ctx context.Context) passmap.Snapshot
	Invalidate()
}

type phoneLocker interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	Del(ctx context.Context, keys ...string) error
	PhoneLockKey(phone string) string
}

type service struct {
	fetcher  portal.Fetcher
	users    userFinder
	passes   passesRepository
	logs     logsRepository
	cache    mappingCache
	caps     *StorageCapabilities
	persist  *Persister
	resolver *Resolver
	granter  *Granter
	locker   phoneLocker
	flags    config.FeatureFlagsConfig
	maxDocs  int
	logger   *logger.Logger
	metrics  *metrics.IngestMetrics
	now      func() time.Time
}

// ServiceParams bundles the dependencies required to build the ingest service.
type ServiceParams struct {
	Fetcher      portal.Fetcher
	Users        userFinder
	Passes       passesRepository
	Logs         logsRepository
	Cache        mappingCache
	Capabilities *StorageCapabilities
	PassesConfig config.PassesConfig
	FeatureFlags config.FeatureFlagsConfig
	MaxDocsPerRun int
	Locker       phoneLocker
	Logger       *logger.Logger
	Metrics      *metrics.IngestMetrics
	NewToken     func() string
	Now          func() time.Time
}

// NewService wires the reconciliation pipeline.
func NewService(params ServiceParams) (Service, error) {
	if params.Fetcher == nil {
		return nil, fmt.Errorf("portal fetcher is required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository is required")
	}
	if params.Passes == nil {
		return nil, fmt.Errorf("passes repository is required")
	}
	if params.Logs == nil {
		return nil, fmt.Errorf("payment log repository is required")
	}
	if params.Cache == nil {
		return nil, fmt.Errorf("mapping cache is required")
	}
	if params.FeatureFlags.PhoneLock && params.Locker == nil {
		return nil, fmt.Errorf("phone lock enabled but no locker provided")
	}

	caps := params.Capabilities
	if caps == nil {
		caps = NewStorageCapabilities(params.Metrics)
	}

	persist, err := NewPersister(PersisterParams{
		Logs:         params.Logs,
		Capabilities: caps,
		Logger:       params.Logger,
	})
	if err != nil {
		return nil, err
	}
	resolver, err := NewResolver(ResolverParams{
		Passes: params.Passes,
		Config: params.PassesConfig,
		Logger: params.Logger,
	})
	if err != nil {
		return nil, err
	}
	granter, err := NewGranter(GranterParams{
		Passes:       params.Passes,
		Resolver:     resolver,
		Capabilities: caps,
		Logger:       params.Logger,
		Metrics:      params.Metrics,
		NewToken:     params.NewToken,
	})
	if err != nil {
		return nil, err
	}

	maxDocs := params.MaxDocsPerRun
	if maxDocs <= 0 {
		maxDocs = MaxDocsPerRun
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}

	return &service{
		fetcher:  params.Fetcher,
		users:    params.Users,
		passes:   params.Passes,
		logs:     params.Logs,
		cache:    params.Cache,
		caps:     caps,
		persist:  persist,
		resolver: resolver,
		granter:  granter,
		locker:   params.Locker,
		flags:    params.FeatureFlags,
		maxDocs:  maxDocs,
		logger:   params.Logger,
		metrics:  params.Metrics,
		now:      now,
	}, nil
}

// SyncResult is the reconciliation outcome: the user's full ownership join
// plus an actionable pending list. It is produced even when the upstream
// fetch failed, in which case it reflects previously known state and carries
// a sync error tag.
type SyncResult struct {
	Passes    []passes.OwnedPassDTO `json:"passes"`
	Pending   []PendingItem         `json:"pending"`
	Refreshed bool                  `json:"refreshed"`
	SyncError string                `json:"sync_error,omitempty"`
	Debug     *SyncDebug            `json:"debug,omitempty"`
}

// SyncDebug carries per-run counters for the admin debug flag.
type SyncDebug struct {
	RunID            string `json:"run_id"`
	DocsFetched      int    `json:"docs_fetched"`
	DocsRejected     int    `json:"docs_rejected"`
	DocsPersisted    int    `json:"docs_persisted"`
	DocsDuplicate    int    `json:"docs_duplicate"`
	Grants           int    `json:"grants"`
	StatusesRepaired int64  `json:"statuses_repaired"`
}

func (s *service) Sync(ctx context.Context, userID uuid.UUID, debug bool) (*SyncResult, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	if user.Phone == nil || *user.Phone == "" {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "user_phone_missing")
	}
	phone := *user.Phone

	runID := uuid.NewString()
	if s.logger != nil {
		ctx = s.logger.WithRunID(ctx, runID)
		ctx = s.logger.WithPhone(ctx, phone)
	}
	started := s.now()
	dbg := &SyncDebug{RunID: runID}

	if s.flags.PhoneLock {
		acquired, err := s.locker.SetNX(ctx, s.locker.PhoneLockKey(phone), runID, phoneLockTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire phone lock")
		}
		if !acquired {
			return s.assembleResult(ctx, userID, nil, false, syncErrInProgress, nil)
		}
		defer func() {
			_ = s.locker.Del(context.WithoutCancel(ctx), s.locker.PhoneLockKey(phone))
		}()
	}

	snapshot := s.cache.Load(ctx)
	run := NewRunState()
	guard := NewPhoneBundleGuard(s.passes)

	docs, fetchErr := s.fetcher.FetchLogs(ctx, phone)
	syncError := ""
	if fetchErr != nil {
		syncError = syncErrPortalUnreachable
		if s.logger != nil {
			s.logger.Error(ctx, "portal fetch failed, serving last-known state", fetchErr)
		}
	}
	if len(docs) > s.maxDocs {
		docs = docs[:s.maxDocs]
	}
	dbg.DocsFetched = len(docs)

	for _, doc := range docs {
		normalized, reason := NormalizeDocument(doc)
		if reason != "" {
			s.metrics.IncDocument("rejected")
			dbg.DocsRejected++
			continue
		}
		row, created, err := s.persist.Persist(ctx, userID, phone, normalized)
		if err != nil {
			s.metrics.IncDocument("failed")
			if s.logger != nil {
				s.logger.Error(ctx, "payment log persist failed", err)
			}
			continue
		}
		if created {
			s.metrics.IncDocument("persisted")
			dbg.DocsPersisted++
		} else {
			s.metrics.IncDocument("duplicate")
			dbg.DocsDuplicate++
		}
		run.MarkPersisted(row.ID)
	}

	repaired, err := s.logs.NormalizeLegacyStatusesForUser(ctx, userID)
	if err != nil && s.logger != nil {
		s.logger.Error(ctx, "legacy status normalization failed", err)
	}
	dbg.StatusesRepaired = repaired

	successLogs, err := s.logs.ListSuccessByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list success logs")
	}

	outcomes := make([]logOutcome, 0, len(successLogs))
	for _, log := range successLogs {
		declared := declaredCategory(log.RawDocument)
		res, err := s.resolver.Resolve(ctx, log, declared, snapshot, userID)
		if err != nil {
			if s.logger != nil {
				s.logger.Error(ctx, "entitlement resolution failed", err)
			}
			continue
		}
		outcomes = append(outcomes, logOutcome{log: log, res: res})
		if res.Outcome != OutcomeResolved {
			continue
		}

		allowed, err := guard.Allow(ctx, phone, userID, res.Pass)
		if err != nil {
			if s.logger != nil {
				s.logger.Error(ctx, "phone bundle guard check failed", err)
			}
			continue
		}
		if !allowed {
			continue
		}

		source := enums.OwnershipSourceBackfill
		if run.PersistedThisRun(log.ID) {
			source = enums.OwnershipSourceSync
		}
		trackingID := log.TrackingID
		created, err := s.granter.Grant(ctx, run, GrantRequest{
			UserID:     userID,
			Phone:      phone,
			TrackingID: &trackingID,
			Pass:       res.Pass,
			Source:     source,
		})
		if err != nil {
			if s.logger != nil {
				s.logger.Error(ctx, "ownership grant failed", err)
			}
			continue
		}
		if res.Pass.IsBundle() {
			guard.MarkConsumed(phone)
		}
		if created {
			dbg.Grants++
		}
	}

	result, err := s.assembleResult(ctx, userID, outcomes, fetchErr == nil, syncError, dbg)
	if err != nil {
		return nil, err
	}

	outcome := "ok"
	if syncError != "" {
		outcome = "degraded"
	}
	s.metrics.ObserveRun(outcome, s.now().Sub(started))
	if !debug {
		result.Debug = nil
	}
	return result, nil
}

type logOutcome struct {
	log models.PaymentLog
	res *Resolution
}

func (s *service) assembleResult(ctx context.Context, userID uuid.UUID, outcomes []logOutcome, refreshed bool, syncError string, dbg *SyncDebug) (*SyncResult, error) {
	ownerships, err := s.passes.ListOwnershipsByUser(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list ownerships")
	}
	ids := make([]uuid.UUID, 0, len(ownerships))
	ownedIDs := make(map[uuid.UUID]bool, len(ownerships))
	for _, own := range ownerships {
		ids = append(ids, own.PassID)
		ownedIDs[own.PassID] = true
	}
	passByID, err := s.passes.FindByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load passes")
	}

	owned := make([]passes.OwnedPassDTO, 0, len(ownerships))
	for _, own := range ownerships {
		if pass, ok := passByID[own.PassID]; ok {
			owned = append(owned, passes.BuildOwnedPass(own, pass))
		}
	}

	pending := make([]PendingItem, 0)
	for _, outcome := range outcomes {
		item, ok := pendingFor(outcome, ownedIDs)
		if !ok {
			continue
		}
		pending = append(pending, item)
		s.metrics.IncPending(item.Reason.String())
	}

	return &SyncResult{
		Passes:    owned,
		Pending:   pending,
		Refreshed: refreshed,
		SyncError: syncError,
		Debug:     dbg,
	}, nil
}

// pendingFor classifies one resolved log for the pending report: unmapped
// logs surface with their computed key, resolved-but-unowned logs surface as
// ownership-pending, and everything else (granted, explicit null) is omitted.
func pendingFor(outcome logOutcome, ownedIDs map[uuid.UUID]bool) (PendingItem, bool) {
	res := outcome.res
	switch res.Outcome {
	case OutcomeUnmapped:
		return PendingItem{
			LogID:      outcome.log.ID,
			TrackingID: outcome.log.TrackingID,
			Key:        computedKey(res),
			EventName:  outcome.log.EventName,
			Reason:     enums.PendingReasonUnmapped,
		}, true
	case OutcomeResolved:
		if ownedIDs[res.Pass.ID] {
			return PendingItem{}, false
		}
		return PendingItem{
			LogID:      outcome.log.ID,
			TrackingID: outcome.log.TrackingID,
			Key:        res.MatchedKey,
			EventName:  outcome.log.EventName,
			Reason:     enums.PendingReasonOwnershipPending,
		}, true
	default:
		return PendingItem{}, false
	}
}

func computedKey(res *Resolution) string {
	if len(res.Keys) > 0 {
		// the legacy key is always last in candidate order
		return res.Keys[len(res.Keys)-1]
	}
	return res.MatchedKey
}

// declaredCategory probes the preserved raw document for the upstream
// user-category flag.
func declaredCategory(raw json.RawMessage) *enums.PassCategory {
	if len(raw) == 0 {
		return nil
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil
	}
	if category, ok := ProbeUserCategory(doc); ok {
		return &category
	}
	return nil
}

// PendingQueueResult is one page of the admin pending queue.
type PendingQueueResult struct {
	Items      []AdminPendingItem `json:"items"`
	NextCursor string             `json:"next_cursor,omitempty"`
}

// PendingQueue pages through all successful logs and reports the ones that
// have not produced an owned pass, without applying grant side effects.
func (s *service) PendingQueue(ctx context.Context, params pagination.Params) (*PendingQueueResult, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	var before *models.PaymentLog
	if cursor != nil {
		before = &models.PaymentLog{ID: cursor.ID, CreatedAt: cursor.CreatedAt}
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.logs.ListSuccessPage(ctx, pagination.LimitWithBuffer(params.Limit), before)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list success logs")
	}

	hasMore := len(rows) > limit
	if hasMore {
		rows = rows[:limit]
	}

	snapshot := s.cache.Load(ctx)
	items := make([]AdminPendingItem, 0, len(rows))
	for _, row := range rows {
		item, ok, err := s.queueItemFor(ctx, row, snapshot)
		if err != nil {
			return nil, err
		}
		if ok {
			items = append(items, item)
		}
	}

	result := &PendingQueueResult{Items: items}
	if hasMore {
		last := rows[len(rows)-1]
		result.NextCursor = pagination.EncodeCursor(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return result, nil
}

// queueItemFor is the side-effect-free resolution used by the admin queue: no
// category override, no cleanup, just key probing and an ownership check.
func (s *service) queueItemFor(ctx context.Context, row models.PaymentLog, snapshot passmap.Snapshot) (AdminPendingItem, bool, error) {
	keys := passmap.CandidateKeys(row.Membership, row.EventName, row.EventType)

	var passID *uuid.UUID
	matched := ""
	found := false
	for _, key := range keys {
		if id, present := snapshot[key]; present {
			matched = key
			passID = id
			found = true
			break
		}
	}

	base := AdminPendingItem{
		PendingItem: PendingItem{
			LogID:      row.ID,
			TrackingID: row.TrackingID,
			EventName:  row.EventName,
		},
		UserID:    row.UserID,
		Phone:     row.Phone,
		CreatedAt: row.CreatedAt,
	}

	if !found {
		base.Key = keys[len(keys)-1]
		base.Reason = enums.PendingReasonUnmapped
		return base, true, nil
	}
	if passID == nil {
		return AdminPendingItem{}, false, nil
	}

	owned, err := s.passes.OwnershipExists(ctx, row.UserID, *passID)
	if err != nil {
		return AdminPendingItem{}, false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "check ownership")
	}
	if owned {
		return AdminPendingItem{}, false, nil
	}
	base.Key = matched
	base.Reason = enums.PendingReasonOwnershipPending
	return base, true, nil
}

// InvalidateMappingCache clears the whitelist cache; the next run re-queries.
func (s *service) InvalidateMappingCache() {
	s.cache.Invalidate()
}
