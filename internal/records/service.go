package records

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/MarcoPoloResearchLab/prospect/backend/internal/metrics"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	opServiceNew = "records.service.new"
	opList       = "records.list"
	opGet        = "records.get"
	opCreate     = "records.create"
	opDelete     = "records.delete"
	opDeleteMany = "records.delete_many"
)

var noOpLogger = zap.NewNop()

// ServiceConfig describes the dependencies of a record service.
type ServiceConfig struct {
	Descriptor Descriptor
	Database   *gorm.DB
	Identities IdentityResolver
	IDProvider IDProvider
	Clock      func() time.Time
	Logger     *zap.Logger
	Metrics    metrics.Recorder
}

// Service exposes list, get, create, delete and bulk delete for one entity type.
type Service[T Record, P Payload[T]] struct {
	descriptor Descriptor
	scoper     *Scoper
	engine     *Engine[T]
	lifecycle  *Lifecycle[T]
	logger     *zap.Logger
	metrics    metrics.Recorder
}

// NewService wires the scoper, join engine and lifecycle manager for cfg.Descriptor.
func NewService[T Record, P Payload[T]](cfg ServiceConfig) (*Service[T, P], error) {
	if cfg.Database == nil {
		return nil, newServiceError(opServiceNew, "missing_database", ErrPersistence, errMissingDatabase)
	}
	if cfg.IDProvider == nil {
		return nil, newServiceError(opServiceNew, "missing_id_provider", ErrPersistence, errMissingIDProvider)
	}
	if err := cfg.Descriptor.validate(); err != nil {
		return nil, newServiceError(opServiceNew, "invalid_descriptor", ErrPersistence, err)
	}

	scoper, err := NewScoper(cfg.Identities)
	if err != nil {
		return nil, err
	}
	store, err := NewStore(cfg.Database)
	if err != nil {
		return nil, newServiceError(opServiceNew, "missing_database", ErrPersistence, err)
	}
	engine, err := NewEngine[T](store, cfg.Descriptor)
	if err != nil {
		return nil, newServiceError(opServiceNew, "engine_init_failed", ErrPersistence, err)
	}
	lifecycle, err := NewLifecycle[T](store, cfg.Descriptor, cfg.IDProvider, cfg.Clock)
	if err != nil {
		return nil, newServiceError(opServiceNew, "lifecycle_init_failed", ErrPersistence, err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = noOpLogger
	}
	recorder := cfg.Metrics
	if recorder == nil {
		recorder = metrics.Nop()
	}

	return &Service[T, P]{
		descriptor: cfg.Descriptor,
		scoper:     scoper,
		engine:     engine,
		lifecycle:  lifecycle,
		logger:     logger,
		metrics:    recorder,
	}, nil
}

// Descriptor returns the entity descriptor the service was built for.
func (s *Service[T, P]) Descriptor() Descriptor {
	return s.descriptor
}

// List returns the caller-visible records matching filter.
func (s *Service[T, P]) List(ctx context.Context, filter Filter, callerID string) (views []View[T], err error) {
	defer s.observe("list", time.Now(), &err)

	scoped, err := s.scoper.Scope(ctx, s.descriptor, filter, callerID)
	if err != nil {
		s.logFailure(err, zap.String("caller_id", callerID))
		return nil, err
	}
	views, err = s.engine.Resolve(ctx, scoped)
	if err != nil {
		s.logError(opList, "query_failed", err, zap.String("caller_id", callerID))
		return nil, newServiceError(opList, "query_failed", ErrPersistence, err)
	}
	return views, nil
}

// Get returns a single caller-visible record.
func (s *Service[T, P]) Get(ctx context.Context, id, callerID string) (view View[T], err error) {
	defer s.observe("get", time.Now(), &err)

	scoped, err := s.scoper.Scope(ctx, s.descriptor, nil, callerID)
	if err != nil {
		s.logFailure(err, zap.String("caller_id", callerID))
		return View[T]{}, err
	}
	view, err = s.engine.ResolveOne(ctx, scoped, strings.TrimSpace(id))
	if errors.Is(err, ErrRecordNotFound) {
		return View[T]{}, newServiceError(opGet, "not_found", ErrRecordNotFound, nil)
	}
	if err != nil {
		s.logError(opGet, "query_failed", err, zap.String("caller_id", callerID), zap.String("record_id", id))
		return View[T]{}, newServiceError(opGet, "query_failed", ErrPersistence, err)
	}
	return view, nil
}

// Create validates payload and persists a record owned by the caller.
func (s *Service[T, P]) Create(ctx context.Context, payload P, callerID string) (record T, err error) {
	defer s.observe("create", time.Now(), &err)

	var zero T
	caller, err := s.scoper.Authenticate(ctx, callerID)
	if err != nil {
		s.logFailure(err, zap.String("caller_id", callerID))
		return zero, err
	}
	if err := payload.Validate(); err != nil {
		return zero, newServiceError(opCreate, "invalid_payload", ErrValidation, err)
	}
	record, err = s.lifecycle.Create(ctx, payload, caller.UserID)
	if err != nil {
		s.logError(opCreate, "insert_failed", err, zap.String("caller_id", caller.UserID))
		return zero, newServiceError(opCreate, "insert_failed", ErrPersistence, err)
	}
	return record, nil
}

// Delete soft-deletes one record. Deleting an already deleted record succeeds.
func (s *Service[T, P]) Delete(ctx context.Context, id, callerID string) (outcome Outcome, err error) {
	defer s.observe("delete", time.Now(), &err)

	caller, err := s.scoper.Authenticate(ctx, callerID)
	if err != nil {
		s.logFailure(err, zap.String("caller_id", callerID))
		return Outcome{}, err
	}
	outcome, err = s.lifecycle.SoftDelete(ctx, strings.TrimSpace(id), caller.UserID)
	if errors.Is(err, ErrRecordNotFound) {
		return Outcome{}, newServiceError(opDelete, "not_found", ErrRecordNotFound, nil)
	}
	if err != nil {
		s.logError(opDelete, "update_failed", err, zap.String("caller_id", caller.UserID), zap.String("record_id", id))
		return Outcome{}, newServiceError(opDelete, "update_failed", ErrPersistence, err)
	}
	return outcome, nil
}

// DeleteMany soft-deletes every existing record in ids; unknown ids are skipped.
func (s *Service[T, P]) DeleteMany(ctx context.Context, ids []string, callerID string) (outcome Outcome, err error) {
	defer s.observe("delete_many", time.Now(), &err)

	caller, err := s.scoper.Authenticate(ctx, callerID)
	if err != nil {
		s.logFailure(err, zap.String("caller_id", callerID))
		return Outcome{}, err
	}
	trimmed := make([]string, 0, len(ids))
	for _, id := range ids {
		trimmed = append(trimmed, strings.TrimSpace(id))
	}
	outcome, err = s.lifecycle.SoftDeleteMany(ctx, trimmed, caller.UserID)
	if err != nil {
		s.logError(opDeleteMany, "update_failed", err, zap.String("caller_id", caller.UserID), zap.Int("ids", len(ids)))
		return Outcome{}, newServiceError(opDeleteMany, "update_failed", ErrPersistence, err)
	}
	return outcome, nil
}

func (s *Service[T, P]) observe(operation string, started time.Time, errp *error) {
	s.metrics.ObserveOperation(s.descriptor.Entity, operation, outcomeLabel(*errp), time.Since(started))
}

func outcomeLabel(err error) string {
	switch KindOf(err) {
	case nil:
		return metrics.OutcomeOK
	case ErrRecordNotFound:
		return metrics.OutcomeNotFound
	case ErrUnauthorizedIdentity:
		return metrics.OutcomeUnauthorized
	case ErrValidation:
		return metrics.OutcomeInvalid
	default:
		return metrics.OutcomeError
	}
}

// logFailure logs scoper failures that are not the caller's fault.
func (s *Service[T, P]) logFailure(err error, fields ...zap.Field) {
	if KindOf(err) != ErrPersistence {
		return
	}
	var serviceErr *ServiceError
	if errors.As(err, &serviceErr) {
		fields = append(fields, zap.String("code", serviceErr.Code()))
	}
	s.loggerOrDefault().Error("records service error", append(fields, zap.String("entity", s.descriptor.Entity), zap.Error(err))...)
}

func (s *Service[T, P]) loggerOrDefault() *zap.Logger {
	if s == nil || s.logger == nil {
		return noOpLogger
	}
	return s.logger
}

func (s *Service[T, P]) logError(operation, reason string, err error, fields ...zap.Field) {
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
		zap.String("entity", s.descriptor.Entity),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	s.loggerOrDefault().Error("records service error", attrs...)
}
