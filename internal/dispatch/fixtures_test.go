package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"

	"bizcore/internal/router"
	"bizcore/internal/transport"
	"bizcore/pkg/domain"
	"bizcore/pkg/portal"
)

type ticket struct {
	domain.Base
	Title *domain.Field[string]
	Tasks *domain.List[*task]
}

func newTicket() *ticket {
	t := &ticket{}
	t.Init(t, "test.Ticket", func() domain.Object { return newTicket() })
	t.Title = domain.NewField(&t.Base, "title", "")
	t.Tasks = domain.NewList(&t.Base, "tasks", newTask)
	t.AddRule(domain.Required(t.Title))
	return t
}

type task struct {
	domain.Base
	Name *domain.Field[string]
}

func newTask() *task {
	k := &task{}
	k.Init(k, "test.Task", func() domain.Object { return newTask() })
	k.Name = domain.NewField(&k.Base, "name", "")
	return k
}

type closeTickets struct {
	domain.Base
	Closed *domain.Field[int]
}

func newCloseTickets() *closeTickets {
	c := &closeTickets{}
	c.Init(c, "test.CloseTickets", func() domain.Object { return newCloseTickets() })
	c.Closed = domain.NewField(&c.Base, "closed", 0)
	return c
}

type byTitle struct{ Title string }

type spy struct {
	mu    sync.Mutex
	calls []string
}

func (s *spy) add(call string) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()
}

func (s *spy) list() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func newRegistry(t *testing.T, s *spy) *portal.Registry {
	t.Helper()
	reg := portal.NewRegistry()
	tickets, err := portal.Define(reg, "test.Ticket", newTicket)
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	tasks, err := portal.Define(reg, "test.Task", newTask)
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	commands, err := portal.Define(reg, "test.CloseTickets", newCloseTickets)
	if err != nil {
		t.Fatalf("define: %v", err)
	}
	err = errors.Join(
		tickets.Create(func(_ context.Context, _ *portal.Context, tk *ticket) error {
			tk.Title.Set("untitled")
			s.add("create")
			return nil
		}),
		portal.FetchWith(tickets, func(_ context.Context, pc *portal.Context, tk *ticket, c byTitle) error {
			if c.Title == "broken" {
				return errors.New("row missing")
			}
			tk.Title.Set(c.Title)
			tk.Tasks.AddNew().Name.Set("triage")
			pc.SetGlobal("last-fetch", c.Title)
			s.add("fetch")
			return nil
		}),
		tickets.Insert(func(_ context.Context, _ *portal.Context, tk *ticket) error {
			if tk.Title.Get() == "reject" {
				return errors.New("constraint violated")
			}
			tk.Title.Set(tk.Title.Get() + "#1")
			s.add("insert")
			return nil
		}),
		tickets.Update(func(context.Context, *portal.Context, *ticket) error {
			s.add("update")
			return nil
		}),
		tickets.DeleteSelf(func(context.Context, *portal.Context, *ticket) error {
			s.add("delete_self")
			return nil
		}),
		portal.DeleteWith(tickets, func(context.Context, *portal.Context, byTitle) error {
			s.add("delete")
			return nil
		}),
		tasks.ChildInsert(func(context.Context, *portal.Context, *task, domain.Object) error {
			s.add("child_insert")
			return nil
		}),
		tasks.ChildUpdate(func(context.Context, *portal.Context, *task, domain.Object) error {
			s.add("child_update")
			return nil
		}),
		tasks.ChildDelete(func(context.Context, *portal.Context, *task, domain.Object) error {
			s.add("child_delete")
			return nil
		}),
		commands.Execute(func(_ context.Context, _ *portal.Context, c *closeTickets) error {
			c.Closed.Set(3)
			s.add("execute")
			return nil
		}),
	)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	return reg
}

func newLocalDispatcher(t *testing.T, opts ...Option) (*Dispatcher, *spy) {
	t.Helper()
	s := &spy{}
	reg := newRegistry(t, s)
	return New(transport.NewLocal(router.New(reg)), opts...), s
}

// countingProxy counts executions and optionally blocks until released.
type countingProxy struct {
	mu      sync.Mutex
	count   int
	entered chan string
	gate    chan struct{}
	resp    portal.Response
	err     error
}

func (p *countingProxy) Execute(_ context.Context, req portal.Request) (portal.Response, error) {
	p.mu.Lock()
	p.count++
	p.mu.Unlock()
	if p.entered != nil {
		id := ""
		if req.Object != nil {
			id = req.Object.Core().ID()
		}
		p.entered <- id
	}
	if p.gate != nil {
		<-p.gate
	}
	resp := p.resp
	if resp.Object == nil && req.Object != nil {
		resp.Object = req.Object
	}
	return resp, p.err
}

func (p *countingProxy) calls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

type logRecord struct {
	level string
	msg   string
	args  []any
}

type recordingLogger struct {
	mu      sync.Mutex
	records []logRecord
}

func (l *recordingLogger) log(level, msg string, args []any) {
	l.mu.Lock()
	l.records = append(l.records, logRecord{level: level, msg: msg, args: args})
	l.mu.Unlock()
}

func (l *recordingLogger) Debug(msg string, args ...any) { l.log("debug", msg, args) }
func (l *recordingLogger) Info(msg string, args ...any)  { l.log("info", msg, args) }
func (l *recordingLogger) Warn(msg string, args ...any)  { l.log("warn", msg, args) }
func (l *recordingLogger) Error(msg string, args ...any) { l.log("error", msg, args) }

func (l *recordingLogger) phases() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []string
	for _, r := range l.records {
		for i := 0; i+1 < len(r.args); i += 2 {
			if r.args[i] == "phase" {
				out = append(out, r.args[i+1].(string))
			}
		}
	}
	return out
}
