package audit

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"medical-record-access/internal/domain/identity"
	"medical-record-access/internal/platform/logger"
)

type testRepo struct {
	entries []Entry
	fail    bool
}

func (r *testRepo) Append(ctx context.Context, e Entry) error {
	if r.fail {
		return errors.New("disk on fire")
	}
	r.entries = append(r.entries, e)
	return nil
}

func (r *testRepo) Query(ctx context.Context, f Filter) ([]Entry, error) {
	out := make([]Entry, 0)
	for _, e := range r.entries {
		if f.ActorID != "" && e.ActorID != f.ActorID {
			continue
		}
		if f.Action != "" && e.Action != f.Action {
			continue
		}
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.After(out[j].Timestamp)
	})
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

var (
	requester  = identity.Actor{ID: "requester-1", Role: identity.RoleRequester}
	supervisor = identity.Actor{ID: "supervisor-1", Role: identity.RoleSupervisor}
)

func TestService_Record_Validates(t *testing.T) {
	svc := NewService(&testRepo{}, logger.Nop())

	if _, err := svc.Record(context.Background(), RecordInput{Action: ActionRequested}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing actor must be invalid, got %v", err)
	}
	if _, err := svc.Record(context.Background(), RecordInput{ActorID: "a"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("missing action must be invalid, got %v", err)
	}
}

func TestService_Record_PropagatesStorageFailure(t *testing.T) {
	repo := &testRepo{fail: true}
	svc := NewService(repo, logger.Nop())

	if _, err := svc.Record(context.Background(), RecordInput{ActorID: "a", Action: ActionApproved}); err == nil {
		t.Fatalf("expected storage error to surface")
	}
}

func TestService_Query_NewestFirst(t *testing.T) {
	repo := &testRepo{}
	svc := NewService(repo, logger.Nop())

	t0 := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	for i, action := range []Action{ActionRequested, ActionApproved, ActionRecordAccessed} {
		tick := t0.Add(time.Duration(i) * time.Minute)
		svc.now = func() time.Time { return tick }
		if _, err := svc.Record(context.Background(), RecordInput{ActorID: requester.ID, Action: action}); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	got, err := svc.Query(context.Background(), supervisor, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(got))
	}
	if got[0].Action != ActionRecordAccessed || got[2].Action != ActionRequested {
		t.Fatalf("expected newest-first ordering, got %v %v %v", got[0].Action, got[1].Action, got[2].Action)
	}
}

func TestService_Query_NonSupervisorSeesOnlySelf(t *testing.T) {
	repo := &testRepo{}
	svc := NewService(repo, logger.Nop())

	_, _ = svc.Record(context.Background(), RecordInput{ActorID: requester.ID, Action: ActionRequested})
	_, _ = svc.Record(context.Background(), RecordInput{ActorID: "someone-else", Action: ActionApproved})

	got, err := svc.Query(context.Background(), requester, Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ActorID != requester.ID {
		t.Fatalf("expected only own entries, got %#v", got)
	}

	// pedir explícitamente las entradas de otro actor es forbidden, no vacío
	if _, err := svc.Query(context.Background(), requester, Filter{ActorID: "someone-else"}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestService_Query_SupervisorFilters(t *testing.T) {
	repo := &testRepo{}
	svc := NewService(repo, logger.Nop())

	_, _ = svc.Record(context.Background(), RecordInput{ActorID: "a", Action: ActionRequested})
	_, _ = svc.Record(context.Background(), RecordInput{ActorID: "b", Action: ActionApproved})
	_, _ = svc.Record(context.Background(), RecordInput{ActorID: "a", Action: ActionApproved})

	got, err := svc.Query(context.Background(), supervisor, Filter{ActorID: "a", Action: ActionApproved})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if len(got) != 1 || got[0].ActorID != "a" || got[0].Action != ActionApproved {
		t.Fatalf("unexpected filter result: %#v", got)
	}
}
