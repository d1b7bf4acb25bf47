package dispatch

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

func TestAuthorizationDenialNeverReachesProxy(t *testing.T) {
	proxy := &countingProxy{}
	logger := &recordingLogger{}
	deny := portal.AuthorizerFunc(func(op portal.Operation, typeName string, _ portal.Principal) bool {
		return op != portal.OperationUpdate
	})
	d := New(proxy, WithAuthorizer(deny), WithLogger(logger))

	tk := newTicket()
	tk.Title.Set("t")
	_, err := d.Update(context.Background(), &portal.Context{Principal: portal.Principal{Name: "eve"}}, tk)
	var authz portal.AuthorizationError
	if !errors.As(err, &authz) || authz.Principal != "eve" || authz.Type != "test.Ticket" {
		t.Fatalf("expected AuthorizationError, got %v", err)
	}
	if proxy.calls() != 0 {
		t.Fatalf("proxy must not be invoked, got %d calls", proxy.calls())
	}
	if got := strings.Join(logger.phases(), ","); got != "requested,authorizing,failed" {
		t.Fatalf("unexpected phases %s", got)
	}
	if tk.IsBusy() {
		t.Fatalf("busy flag must be released after failure")
	}
}

func TestPhasesOnSuccess(t *testing.T) {
	logger := &recordingLogger{}
	d, _ := newLocalDispatcher(t, WithLogger(logger))
	if _, err := d.Fetch(context.Background(), nil, "test.Ticket", byTitle{Title: "a"}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	want := "requested,authorizing,executing,completing,succeeded"
	if got := strings.Join(logger.phases(), ","); got != want {
		t.Fatalf("expected %s, got %s", want, got)
	}
}

func TestCreateAndFetchPostProcessing(t *testing.T) {
	d, s := newLocalDispatcher(t)
	ctx := context.Background()

	created, err := d.Create(ctx, nil, "test.Ticket", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	tk := created.(*ticket)
	if !tk.IsNew() || tk.Title.IsDirty() || tk.Title.Get() != "untitled" {
		t.Fatalf("created object must be new with clean fields")
	}

	// criteria unknown to create falls back to the parameterless handler
	if _, err := d.Create(ctx, nil, "test.Ticket", byTitle{Title: "x"}); err != nil {
		t.Fatalf("create fallback: %v", err)
	}

	fetched, err := d.Fetch(ctx, nil, "test.Ticket", byTitle{Title: "a"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	ft := fetched.(*ticket)
	if ft.IsNew() || ft.IsDirty() || ft.Tasks.At(0).IsNew() || !ft.Tasks.At(0).IsChild() {
		t.Fatalf("fetched graph must be old, clean and own its children")
	}
	if got := strings.Join(s.list(), ","); got != "create,create,fetch" {
		t.Fatalf("unexpected calls %s", got)
	}
}

func TestFetchWithoutMatchingHandler(t *testing.T) {
	d, _ := newLocalDispatcher(t)
	_, err := d.Fetch(context.Background(), nil, "test.Ticket", 42)
	if !errors.Is(err, portal.ErrNoHandler) {
		t.Fatalf("expected ErrNoHandler, got %v", err)
	}
}

func TestHandlerFailureIsTagged(t *testing.T) {
	d, _ := newLocalDispatcher(t)
	obj, err := d.Fetch(context.Background(), nil, "test.Ticket", byTitle{Title: "broken"})
	var he portal.HandlerError
	if !errors.As(err, &he) || he.Operation != portal.OperationFetch || he.Type != "test.Ticket" {
		t.Fatalf("expected tagged HandlerError, got %v", err)
	}
	if obj != nil {
		t.Fatalf("no result may accompany an error")
	}
}

func TestSaveNewObjectInsertsAndReturnsFreshGraph(t *testing.T) {
	d, s := newLocalDispatcher(t)
	tk := newTicket()
	tk.Title.Set("printer")
	tk.Tasks.AddNew().Name.Set("order toner")

	saved, err := d.Save(context.Background(), nil, tk, SaveOptions{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	st := saved.(*ticket)
	if st == tk {
		t.Fatalf("local saves return a new graph")
	}
	if st.IsNew() || st.IsDirty() || st.Title.Get() != "printer#1" {
		t.Fatalf("saved graph must be old and clean with handler changes, got %q", st.Title.Get())
	}
	if !tk.IsNew() || tk.Title.Get() != "printer" {
		t.Fatalf("caller's original must be untouched")
	}
	if got := strings.Join(s.list(), ","); got != "insert,child_insert" {
		t.Fatalf("unexpected calls %s", got)
	}
}

func TestSaveFailureLeavesOriginalUntouched(t *testing.T) {
	d, _ := newLocalDispatcher(t)
	tk := newTicket()
	tk.Title.Set("reject")
	if _, err := d.Save(context.Background(), nil, tk, SaveOptions{}); !errors.Is(err, portal.ErrHandler) {
		t.Fatalf("expected handler error, got %v", err)
	}
	if !tk.IsNew() || !tk.IsDirty() || tk.IsBusy() {
		t.Fatalf("failed save must leave the original as it was")
	}
}

func TestSaveForceUpdate(t *testing.T) {
	d, s := newLocalDispatcher(t)
	tk := newTicket()
	tk.Title.Set("known")
	if _, err := d.Save(context.Background(), nil, tk, SaveOptions{ForceUpdate: true}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if got := s.list(); len(got) != 1 || got[0] != "update" {
		t.Fatalf("expected update, got %v", got)
	}
}

func TestSaveDeletedRoot(t *testing.T) {
	d, s := newLocalDispatcher(t)
	fetched, err := d.Fetch(context.Background(), nil, "test.Ticket", byTitle{Title: "old"})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if err := fetched.Core().Delete(); err != nil {
		t.Fatalf("delete: %v", err)
	}
	saved, err := d.Save(context.Background(), nil, fetched, SaveOptions{})
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	if !saved.Core().IsNew() || saved.Core().IsDeleted() {
		t.Fatalf("deleted root becomes new after save")
	}
	if got := s.list(); got[len(got)-1] != "delete_self" {
		t.Fatalf("expected delete_self, got %v", got)
	}
}

func TestSaveGuards(t *testing.T) {
	d, s := newLocalDispatcher(t)
	ctx := context.Background()

	invalid := newTicket()
	if _, err := d.Save(ctx, nil, invalid, SaveOptions{}); !errors.Is(err, portal.ErrNotSavable) {
		t.Fatalf("expected ErrNotSavable, got %v", err)
	}

	editing := newTicket()
	editing.Title.Set("x")
	_ = editing.BeginEdit()
	if _, err := d.Save(ctx, nil, editing, SaveOptions{}); !errors.Is(err, domain.ErrEditInProgress) {
		t.Fatalf("expected ErrEditInProgress, got %v", err)
	}

	parent, _ := d.Fetch(ctx, nil, "test.Ticket", byTitle{Title: "p"})
	child := parent.(*ticket).Tasks.At(0)
	child.Name.Set("changed")
	if _, err := d.Save(ctx, nil, child, SaveOptions{}); !errors.Is(err, portal.ErrChildDispatch) {
		t.Fatalf("expected ErrChildDispatch, got %v", err)
	}
	if _, err := d.Update(ctx, nil, child); !errors.Is(err, portal.ErrChildDispatch) {
		t.Fatalf("expected ErrChildDispatch from Update, got %v", err)
	}

	clean, _ := d.Fetch(ctx, nil, "test.Ticket", byTitle{Title: "c"})
	before := len(s.list())
	same, err := d.Save(ctx, nil, clean, SaveOptions{})
	if err != nil || same != clean {
		t.Fatalf("clean object must be returned as is, err=%v", err)
	}
	if len(s.list()) != before {
		t.Fatalf("clean save must not dispatch")
	}
}

func TestDeleteAndExecute(t *testing.T) {
	d, s := newLocalDispatcher(t)
	ctx := context.Background()
	if err := d.Delete(ctx, nil, "test.Ticket", byTitle{Title: "gone"}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	cmd := newCloseTickets()
	out, err := d.Execute(ctx, nil, cmd)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if out.(*closeTickets).Closed.Get() != 3 {
		t.Fatalf("expected executed command to be returned")
	}
	if got := strings.Join(s.list(), ","); got != "delete,execute" {
		t.Fatalf("unexpected calls %s", got)
	}
}

func TestGlobalContextFlowsBack(t *testing.T) {
	d, _ := newLocalDispatcher(t)
	pc := &portal.Context{Client: map[string]string{"locale": "en"}}
	if _, err := d.Fetch(context.Background(), pc, "test.Ticket", byTitle{Title: "ctx"}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if pc.Global["last-fetch"] != "ctx" {
		t.Fatalf("expected global value from handler, got %v", pc.Global)
	}
}

func TestObservabilityHooks(t *testing.T) {
	metrics := &captureMetrics{}
	tracer := &captureTracer{}
	audit := &captureAudit{}
	base := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	ticks := 0
	clock := ClockFunc(func() time.Time {
		ticks++
		return base.Add(time.Duration(ticks) * time.Millisecond)
	})
	d, _ := newLocalDispatcher(t, WithMetricsRecorder(metrics), WithTracer(tracer), WithAuditRecorder(audit), WithClock(clock))
	ctx := context.Background()
	pc := &portal.Context{Principal: portal.Principal{Name: "ana"}}

	if _, err := d.Fetch(ctx, pc, "test.Ticket", byTitle{Title: "a"}); err != nil {
		t.Fatalf("fetch: %v", err)
	}
	_, _ = d.Fetch(ctx, pc, "test.Ticket", byTitle{Title: "broken"})

	if !metrics.has("portal.fetch", true) || !metrics.has("portal.fetch", false) {
		t.Fatalf("expected success and failure metrics, got %+v", metrics.calls)
	}
	if len(tracer.ended) != 2 || tracer.ended[0].err != nil || tracer.ended[1].err == nil {
		t.Fatalf("unexpected spans %+v", tracer.ended)
	}
	if len(audit.entries) != 2 || audit.entries[0].Status != AuditStatusSuccess || audit.entries[1].Status != AuditStatusError {
		t.Fatalf("unexpected audit entries %+v", audit.entries)
	}
	if audit.entries[0].Principal != "ana" || audit.entries[0].Duration != time.Millisecond || !audit.entries[0].Timestamp.Equal(base.Add(time.Millisecond)) {
		t.Fatalf("audit entry lacks metadata: %+v", audit.entries[0])
	}
}

func TestDispatchValidation(t *testing.T) {
	d := New(&countingProxy{})
	ctx := context.Background()
	if _, err := d.Dispatch(ctx, portal.Request{Operation: "merge", Type: "x"}); err == nil {
		t.Fatalf("expected unknown operation error")
	}
	if _, err := d.Dispatch(ctx, portal.Request{Operation: portal.OperationFetch}); err == nil {
		t.Fatalf("expected missing type error")
	}
	if _, err := d.Dispatch(ctx, portal.Request{Operation: portal.OperationUpdate, Type: "x"}); err == nil {
		t.Fatalf("expected missing object error")
	}
}
