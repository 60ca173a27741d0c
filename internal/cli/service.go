package cli

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/roach88/moneymap/internal/api"
	"github.com/roach88/moneymap/internal/client"
	"github.com/roach88/moneymap/internal/config"
	"github.com/roach88/moneymap/internal/graph"
	"github.com/roach88/moneymap/internal/store"
	"github.com/roach88/moneymap/internal/workspace"
)

// service is what the workspace commands need. It is served either by a
// local database or by a remote server through the HTTP API.
type service interface {
	Graph(ctx context.Context, householdID string, v store.Variant) (api.GraphResponse, error)
	Publish(ctx context.Context, householdID string, v store.Variant, s graph.Snapshot) (api.PublishResponse, error)
	SubmitChangeRequest(ctx context.Context, householdID string, s graph.Snapshot) (api.PublishResponse, error)
	ResetSandbox(ctx context.Context, householdID string) (workspace.Result, error)
	ApplySandbox(ctx context.Context, householdID string) (workspace.Result, error)
	Diffs(ctx context.Context, householdID string) ([]store.Diff, error)
	DeleteWorkspace(ctx context.Context, householdID string, v store.Variant) error
	DeleteHousehold(ctx context.Context, householdID string) (int, error)
	AuditEvents(ctx context.Context, householdID string) ([]store.AuditEvent, error)
	Close() error
}

// openService picks the remote service when --server is set and the local
// database otherwise.
func openService(opts *RootOptions) (service, error) {
	if opts.Server != "" {
		return &remoteService{Client: client.New(opts.Server, client.WithActor(opts.Actor))}, nil
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}
	if opts.Database != "" {
		cfg.Database.Path = opts.Database
	}

	logger := zap.NewNop()
	if opts.Verbose {
		if logger, err = newLogger("debug"); err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to create logger", err)
		}
	}

	st, err := store.OpenDriver(cfg.Database.Driver, cfg.Database.Path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return &localService{
		manager: workspace.NewManager(st, workspace.WithLogger(logger)),
		store:   st,
		logger:  logger,
		actor:   opts.Actor,
	}, nil
}

// remoteService adapts the HTTP client.
type remoteService struct {
	*client.Client
}

func (r *remoteService) Close() error { return nil }

// localService runs operations against a database file.
type localService struct {
	manager *workspace.Manager
	store   *store.Store
	logger  *zap.Logger
	actor   string
}

func (l *localService) Graph(ctx context.Context, householdID string, v store.Variant) (api.GraphResponse, error) {
	snap, ws, err := l.manager.Load(ctx, householdID, v)
	if err != nil {
		return api.GraphResponse{}, err
	}
	return api.GraphResponse{Workspace: ws, Graph: snap}, nil
}

// Publish validates s the same way the server does before writing it.
func (l *localService) Publish(ctx context.Context, householdID string, v store.Variant, s graph.Snapshot) (api.PublishResponse, error) {
	if err := graph.ValidateStructure(s); err != nil {
		return api.PublishResponse{}, err
	}
	res, err := l.manager.Publish(ctx, householdID, v, l.actor, store.PayloadFromSnapshot(s))
	if err != nil {
		return api.PublishResponse{}, err
	}
	return api.PublishResponse{IDMaps: res.IDMaps, Skipped: res.Skipped, Graph: res.Snapshot}, nil
}

func (l *localService) SubmitChangeRequest(ctx context.Context, householdID string, s graph.Snapshot) (api.PublishResponse, error) {
	if err := graph.ValidateStructure(s); err != nil {
		return api.PublishResponse{}, err
	}
	res, err := l.manager.SubmitChangeRequest(ctx, householdID, l.actor, store.PayloadFromSnapshot(s))
	if err != nil {
		return api.PublishResponse{}, err
	}
	return api.PublishResponse{
		RequestID: res.RequestID,
		IDMaps:    res.IDMaps,
		Skipped:   res.Skipped,
		Graph:     res.Snapshot,
	}, nil
}

func (l *localService) ResetSandbox(ctx context.Context, householdID string) (workspace.Result, error) {
	return l.manager.ResetSandbox(ctx, householdID, l.actor)
}

func (l *localService) ApplySandbox(ctx context.Context, householdID string) (workspace.Result, error) {
	return l.manager.ApplySandbox(ctx, householdID, l.actor)
}

func (l *localService) Diffs(ctx context.Context, householdID string) ([]store.Diff, error) {
	return l.manager.Diffs(ctx, householdID)
}

func (l *localService) DeleteWorkspace(ctx context.Context, householdID string, v store.Variant) error {
	return l.manager.DeleteWorkspace(ctx, householdID, v, l.actor)
}

func (l *localService) DeleteHousehold(ctx context.Context, householdID string) (int, error) {
	return l.manager.DeleteHousehold(ctx, householdID, l.actor)
}

func (l *localService) AuditEvents(ctx context.Context, householdID string) ([]store.AuditEvent, error) {
	return l.manager.AuditEvents(ctx, householdID)
}

func (l *localService) Close() error {
	_ = l.logger.Sync()
	if err := l.store.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withService opens the service, runs fn and closes it. A close failure is
// reported only when fn succeeded.
func withService(opts *RootOptions, fn func(svc service) error) (err error) {
	svc, err := openService(opts)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := svc.Close(); cerr != nil && err == nil {
			err = WrapExitError(ExitCommandError, "failed to close", cerr)
		}
	}()
	return fn(svc)
}

// parseVariant checks a --variant flag value.
func parseVariant(s string) (store.Variant, error) {
	v := store.Variant(s)
	if !v.Valid() {
		return "", WrapExitError(ExitCommandError, "invalid --variant",
			fmt.Errorf("%q: %w", s, workspace.ErrInvalidVariant))
	}
	return v, nil
}
