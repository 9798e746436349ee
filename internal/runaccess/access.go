package runaccess

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"inkwell/internal/api"
	"inkwell/internal/ipc"
	"inkwell/internal/runs"
	"inkwell/internal/services"
	"inkwell/internal/template"
)

// Access provides run operations regardless of IPC or direct store backing.
type Access interface {
	Submit(ctx context.Context, templateName string, input map[string]any) (api.Run, error)
	Stats(ctx context.Context) (map[string]int, error)
	List(ctx context.Context, statuses []string) ([]api.Run, error)
	Describe(ctx context.Context, id string) (*api.RunDetail, error)
	Cancel(ctx context.Context, id string) error
	ClearAll(ctx context.Context) (int64, error)
	ClearCompleted(ctx context.Context) (int64, error)
	ClearFailed(ctx context.Context) (int64, error)
	Templates(ctx context.Context) ([]api.TemplateInfo, error)
	Health(ctx context.Context) (runs.HealthSummary, error)
}

// NewIPCAccess returns an Access backed by daemon IPC.
func NewIPCAccess(client *ipc.Client) Access {
	return &ipcAccess{client: client}
}

// NewStoreAccess returns an Access backed by direct DB access.
func NewStoreAccess(store *runs.Store, templates *template.Registry) Access {
	return &storeAccess{
		store:   store,
		service: api.NewRunService(store, templates, nil, nil),
	}
}

type ipcAccess struct {
	client *ipc.Client
}

func (a *ipcAccess) Submit(_ context.Context, templateName string, input map[string]any) (api.Run, error) {
	resp, err := a.client.RunSubmit(templateName, input)
	if err != nil {
		return api.Run{}, err
	}
	return resp.Run, nil
}

func (a *ipcAccess) Stats(_ context.Context) (map[string]int, error) {
	resp, err := a.client.Status()
	if err != nil {
		return nil, err
	}
	return resp.Workflow.RunStats, nil
}

func (a *ipcAccess) List(_ context.Context, statuses []string) ([]api.Run, error) {
	resp, err := a.client.RunList(statuses)
	if err != nil {
		return nil, err
	}
	return resp.Runs, nil
}

func (a *ipcAccess) Describe(_ context.Context, id string) (*api.RunDetail, error) {
	resp, err := a.client.RunDescribe(id)
	if err != nil {
		// RPC flattens the not-found sentinel into its message.
		if strings.Contains(err.Error(), "not found") {
			return nil, nil
		}
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	return &resp.Detail, nil
}

func (a *ipcAccess) Cancel(_ context.Context, id string) error {
	_, err := a.client.RunCancel(id)
	return err
}

func (a *ipcAccess) ClearAll(_ context.Context) (int64, error) {
	resp, err := a.client.RunClear()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) ClearCompleted(_ context.Context) (int64, error) {
	resp, err := a.client.RunClearCompleted()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) ClearFailed(_ context.Context) (int64, error) {
	resp, err := a.client.RunClearFailed()
	if err != nil {
		return 0, err
	}
	return resp.Removed, nil
}

func (a *ipcAccess) Templates(_ context.Context) ([]api.TemplateInfo, error) {
	resp, err := a.client.Templates()
	if err != nil {
		return nil, err
	}
	return resp.Templates, nil
}

func (a *ipcAccess) Health(_ context.Context) (runs.HealthSummary, error) {
	resp, err := a.client.RunHealth()
	if err != nil {
		return runs.HealthSummary{}, err
	}
	return runs.HealthSummary{
		Total:     resp.Total,
		Pending:   resp.Pending,
		Running:   resp.Running,
		Completed: resp.Completed,
		Failed:    resp.Failed,
		Cancelled: resp.Cancelled,
	}, nil
}

type storeAccess struct {
	store   *runs.Store
	service *api.RunService
}

func (a *storeAccess) Submit(ctx context.Context, templateName string, input map[string]any) (api.Run, error) {
	return a.service.Submit(ctx, templateName, input)
}

func (a *storeAccess) Stats(ctx context.Context) (map[string]int, error) {
	return a.service.Stats(ctx)
}

func (a *storeAccess) List(ctx context.Context, statuses []string) ([]api.Run, error) {
	var filters []runs.Status
	for _, s := range statuses {
		if parsed, ok := runs.ParseStatus(s); ok {
			filters = append(filters, parsed)
		}
	}
	return a.service.List(ctx, filters...)
}

func (a *storeAccess) Describe(ctx context.Context, id string) (*api.RunDetail, error) {
	detail, err := a.service.Describe(ctx, id)
	if err != nil {
		if errors.Is(err, services.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return detail, nil
}

// Cancel without a daemon can only flip pending rows; anything mid-flight
// belongs to a worker the CLI cannot reach.
func (a *storeAccess) Cancel(ctx context.Context, id string) error {
	run, err := a.store.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if run == nil {
		return services.Wrap(services.ErrNotFound, "runaccess", "cancel",
			fmt.Sprintf("run %q not found", id), nil)
	}
	cancelled, err := a.store.CancelPending(ctx, id, runs.CancelRequestedReason)
	if err != nil {
		return err
	}
	if !cancelled {
		return services.Wrap(services.ErrValidation, "runaccess", "cancel",
			fmt.Sprintf("run %q is %s; only pending runs can be cancelled while the daemon is stopped", id, run.Status), nil)
	}
	return nil
}

func (a *storeAccess) ClearAll(ctx context.Context) (int64, error) {
	return a.store.Clear(ctx)
}

func (a *storeAccess) ClearCompleted(ctx context.Context) (int64, error) {
	return a.store.ClearCompleted(ctx)
}

func (a *storeAccess) ClearFailed(ctx context.Context) (int64, error) {
	return a.store.ClearFailed(ctx)
}

func (a *storeAccess) Templates(_ context.Context) ([]api.TemplateInfo, error) {
	return a.service.Templates(), nil
}

func (a *storeAccess) Health(ctx context.Context) (runs.HealthSummary, error) {
	return a.store.Health(ctx)
}
