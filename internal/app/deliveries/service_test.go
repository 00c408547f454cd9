package deliveries

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	memdeliveryrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/deliveryrepo"
	memuserrepo "github.com/campus-logistics/delivery-tracker-api/internal/adapters/memory/userrepo"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/authz"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	platformclock "github.com/campus-logistics/delivery-tracker-api/internal/platform/clock"
	"github.com/campus-logistics/delivery-tracker-api/internal/ports/out/userrepo"
)

type fakeRoster map[domain.UserID]bool

func (r fakeRoster) IsActivePersonnel(_ context.Context, id domain.UserID) (bool, error) {
	return r[id], nil
}

var (
	student   = domain.User{ID: "1", Email: "student@campus.edu", Name: "John Student", Role: domain.RoleStudent}
	personnel = domain.User{ID: "2", Email: "personnel@campus.edu", Name: "Jane Personnel", Role: domain.RolePersonnel}
	admin     = domain.User{ID: "3", Email: "admin@campus.edu", Name: "Admin User", Role: domain.RoleAdmin}
	idle      = domain.User{ID: "4", Email: "idle@campus.edu", Name: "Idle Runner", Role: domain.RolePersonnel}
)

type fixture struct {
	svc *Service
	clk *platformclock.ManualClock
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	ctx := context.Background()
	clk := platformclock.NewManualClock(time.Unix(1700000000, 0).UTC())
	users := memuserrepo.NewRepo()
	for _, u := range []domain.User{student, personnel, admin, idle} {
		if err := users.Create(ctx, userrepo.User{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role, CreatedAt: clk.Now(), UpdatedAt: clk.Now()}); err != nil {
			t.Fatalf("seed user %s: %v", u.ID, err)
		}
	}
	roster := fakeRoster{personnel.ID: true, idle.ID: false}
	return fixture{
		svc: NewService(memdeliveryrepo.NewRepo(), users, roster, clk, Options{}),
		clk: clk,
	}
}

func (f fixture) create(t *testing.T) domain.Delivery {
	t.Helper()
	d, err := f.svc.Create(context.Background(), student, CreateInput{Source: "Main Gate", Destination: "Computer Science Department"})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	return d
}

func wantCode(t *testing.T, err error, status int, code string) {
	t.Helper()
	if ae := (*Error)(nil); errors.As(err, &ae) {
		if ae.Status != status || ae.Code != code {
			t.Fatalf("err=%v (%s %d), want %s %d", err, ae.Code, ae.Status, code, status)
		}
		return
	}
	if ae := (*authz.Error)(nil); errors.As(err, &ae) {
		if ae.Status != status || ae.Code != code {
			t.Fatalf("err=%v (%s %d), want %s %d", err, ae.Code, ae.Status, code, status)
		}
		return
	}
	t.Fatalf("err=%v (type=%T), want %s %d", err, err, code, status)
}

func TestService_Create(t *testing.T) {
	t.Parallel()
	f := newFixture(t)

	notes := "  leave at desk "
	d, err := f.svc.Create(context.Background(), student, CreateInput{Source: " Main  Gate ", Destination: "Bethel Hostel", Notes: &notes})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	if d.Status != domain.StatusRequested || !d.RequestedAt.Equal(d.UpdatedAt) {
		t.Fatalf("created=%+v", d)
	}
	if d.Source != "Main Gate" || d.StudentID != student.ID || d.StudentName != student.Name {
		t.Fatalf("created=%+v", d)
	}
	if d.PersonnelID != nil || d.PersonnelName != nil {
		t.Fatalf("new delivery must be unassigned: %+v", d)
	}
	if d.Notes == nil || *d.Notes != "leave at desk" || d.ContactPhone != nil {
		t.Fatalf("optional fields=%+v", d)
	}
}

func TestService_Create_ValidationAndRoles(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, student, CreateInput{Source: "  ", Destination: "X"})
	wantCode(t, err, 422, "VALIDATION_ERROR")
	_, err = f.svc.Create(ctx, student, CreateInput{Source: "X", Destination: ""})
	wantCode(t, err, 422, "VALIDATION_ERROR")
	_, err = f.svc.Create(ctx, personnel, CreateInput{Source: "X", Destination: "Y"})
	wantCode(t, err, 403, "FORBIDDEN")
	if _, err := f.svc.Create(ctx, admin, CreateInput{Source: "X", Destination: "Y"}); err != nil {
		t.Fatalf("admin Create err=%v", err)
	}
}

func TestService_Accept_OnlyTouchesTarget(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	a := f.create(t)
	b := f.create(t)
	f.clk.Advance(time.Minute)

	got, err := f.svc.Accept(ctx, personnel, a.ID, personnel.ID)
	if err != nil {
		t.Fatalf("Accept err=%v", err)
	}
	if got.Status != domain.StatusAccepted || !got.IsAssignedTo(personnel.ID) || got.PersonnelName == nil || *got.PersonnelName != personnel.Name {
		t.Fatalf("accepted=%+v", got)
	}
	if !got.UpdatedAt.After(a.UpdatedAt) {
		t.Fatalf("updatedAt not refreshed")
	}

	other, err := f.svc.Get(ctx, admin, b.ID)
	if err != nil {
		t.Fatalf("Get err=%v", err)
	}
	if other.Status != domain.StatusRequested || other.PersonnelID != nil || !other.UpdatedAt.Equal(b.UpdatedAt) {
		t.Fatalf("untouched delivery changed: %+v", other)
	}
}

func TestService_Accept_Rules(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	d := f.create(t)

	_, err := f.svc.Accept(ctx, student, d.ID, personnel.ID)
	wantCode(t, err, 403, "FORBIDDEN")
	_, err = f.svc.Accept(ctx, personnel, d.ID, idle.ID)
	wantCode(t, err, 403, "FORBIDDEN")
	_, err = f.svc.Accept(ctx, admin, d.ID, idle.ID)
	wantCode(t, err, 409, "PERSONNEL_INACTIVE")
	_, err = f.svc.Accept(ctx, admin, d.ID, student.ID)
	wantCode(t, err, 404, "PERSONNEL_NOT_FOUND")
	_, err = f.svc.Accept(ctx, admin, d.ID, "")
	wantCode(t, err, 422, "VALIDATION_ERROR")
	_, err = f.svc.Accept(ctx, admin, "missing", personnel.ID)
	wantCode(t, err, 404, "DELIVERY_NOT_FOUND")

	// Empty personnel id means "me" for personnel.
	got, err := f.svc.Accept(ctx, personnel, d.ID, "")
	if err != nil || !got.IsAssignedTo(personnel.ID) {
		t.Fatalf("Accept(self)=%+v err=%v", got, err)
	}
	// Accept requires Requested.
	_, err = f.svc.Accept(ctx, admin, d.ID, personnel.ID)
	wantCode(t, err, 409, "INVALID_TRANSITION")
}

func TestService_Reject_Idempotent(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	d := f.create(t)
	got, err := f.svc.Reject(ctx, personnel, d.ID)
	if err != nil || got.Status != domain.StatusRejected {
		t.Fatalf("Reject=%+v err=%v", got, err)
	}
	again, err := f.svc.Reject(ctx, personnel, d.ID)
	if err != nil || again.Status != domain.StatusRejected {
		t.Fatalf("second Reject=%+v err=%v", again, err)
	}
	evs, err := f.svc.History(ctx, admin, d.ID)
	if err != nil || len(evs) != 2 {
		t.Fatalf("History=%+v err=%v, want creation + one rejection", evs, err)
	}

	accepted := f.create(t)
	if _, err := f.svc.Accept(ctx, personnel, accepted.ID, ""); err != nil {
		t.Fatalf("Accept err=%v", err)
	}
	_, err = f.svc.Reject(ctx, personnel, accepted.ID)
	wantCode(t, err, 409, "INVALID_TRANSITION")
}

func TestService_Advance_FullLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	d := f.create(t)
	if _, err := f.svc.Accept(ctx, personnel, d.ID, ""); err != nil {
		t.Fatalf("Accept err=%v", err)
	}
	_, err := f.svc.Advance(ctx, idle, d.ID)
	wantCode(t, err, 403, "FORBIDDEN")

	prev := d.UpdatedAt
	for _, want := range []domain.DeliveryStatus{domain.StatusPickedUp, domain.StatusEnRoute, domain.StatusDelivered} {
		got, err := f.svc.Advance(ctx, personnel, d.ID)
		if err != nil {
			t.Fatalf("Advance to %s err=%v", want, err)
		}
		if got.Status != want {
			t.Fatalf("Advance status=%s, want %s", got.Status, want)
		}
		if !got.UpdatedAt.After(prev) {
			t.Fatalf("updatedAt %v not after %v", got.UpdatedAt, prev)
		}
		prev = got.UpdatedAt
	}
	_, err = f.svc.Advance(ctx, personnel, d.ID)
	wantCode(t, err, 409, "INVALID_TRANSITION")

	evs, err := f.svc.History(ctx, student, d.ID)
	if err != nil {
		t.Fatalf("History err=%v", err)
	}
	want := []domain.DeliveryStatus{domain.StatusRequested, domain.StatusAccepted, domain.StatusPickedUp, domain.StatusEnRoute, domain.StatusDelivered}
	if len(evs) != len(want) {
		t.Fatalf("events=%d, want %d", len(evs), len(want))
	}
	for i, ev := range evs {
		if ev.To != want[i] {
			t.Fatalf("event[%d].To=%s, want %s", i, ev.To, want[i])
		}
	}
}

func TestService_UpdateStatus_GuardedAndOverride(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	d := f.create(t)
	if _, err := f.svc.Accept(ctx, personnel, d.ID, ""); err != nil {
		t.Fatalf("Accept err=%v", err)
	}

	// Skip without override is rejected.
	_, err := f.svc.UpdateStatus(ctx, personnel, d.ID, UpdateStatusInput{Status: domain.StatusDelivered})
	wantCode(t, err, 409, "INVALID_TRANSITION")
	// Backward move is rejected.
	_, err = f.svc.UpdateStatus(ctx, admin, d.ID, UpdateStatusInput{Status: domain.StatusRequested})
	wantCode(t, err, 409, "INVALID_TRANSITION")
	// Only admins may override.
	_, err = f.svc.UpdateStatus(ctx, personnel, d.ID, UpdateStatusInput{Status: domain.StatusDelivered, Override: true})
	wantCode(t, err, 403, "FORBIDDEN")
	_, err = f.svc.UpdateStatus(ctx, admin, d.ID, UpdateStatusInput{Status: "Lost"})
	wantCode(t, err, 422, "VALIDATION_ERROR")

	got, err := f.svc.UpdateStatus(ctx, admin, d.ID, UpdateStatusInput{Status: domain.StatusDelivered, Override: true})
	if err != nil || got.Status != domain.StatusDelivered {
		t.Fatalf("override=%+v err=%v", got, err)
	}
	evs, _ := f.svc.History(ctx, admin, d.ID)
	if last := evs[len(evs)-1]; !last.Override || last.ActorID != admin.ID {
		t.Fatalf("override event=%+v", last)
	}

	// Override back to Requested clears the assignment.
	got, err = f.svc.UpdateStatus(ctx, admin, d.ID, UpdateStatusInput{Status: domain.StatusRequested, Override: true})
	if err != nil || got.PersonnelID != nil || got.PersonnelName != nil {
		t.Fatalf("override to Requested=%+v err=%v", got, err)
	}
}

func TestService_UpdateStatus_AcceptedRequiresPersonnel(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	d := f.create(t)
	_, err := f.svc.UpdateStatus(ctx, admin, d.ID, UpdateStatusInput{Status: domain.StatusAccepted})
	wantCode(t, err, 422, "VALIDATION_ERROR")

	pid := personnel.ID
	got, err := f.svc.UpdateStatus(ctx, admin, d.ID, UpdateStatusInput{Status: domain.StatusAccepted, PersonnelID: &pid})
	if err != nil || !got.IsAssignedTo(pid) || got.PersonnelName == nil {
		t.Fatalf("UpdateStatus(Accepted)=%+v err=%v", got, err)
	}
}

func TestService_ScenarioStudentToDelivered(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	before, err := f.svc.List(ctx, student, ListFilter{})
	if err != nil {
		t.Fatalf("List err=%v", err)
	}
	created, err := f.svc.Create(ctx, student, CreateInput{Source: "Main Gate", Destination: "CS Dept"})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}
	after, err := f.svc.List(ctx, student, ListFilter{})
	if err != nil {
		t.Fatalf("List err=%v", err)
	}
	if len(after) != len(before)+1 {
		t.Fatalf("list grew by %d, want 1", len(after)-len(before))
	}
	if last := after[len(after)-1]; last.ID != created.ID || last.Status != domain.StatusRequested || last.StudentID != student.ID {
		t.Fatalf("new record=%+v", last)
	}

	f.clk.Advance(time.Minute)
	accepted, err := f.svc.Accept(ctx, personnel, created.ID, personnel.ID)
	if err != nil || accepted.Status != domain.StatusAccepted || !accepted.IsAssignedTo(personnel.ID) {
		t.Fatalf("Accept=%+v err=%v", accepted, err)
	}

	// The guarded machine refuses the skip.
	_, err = f.svc.UpdateStatus(ctx, personnel, created.ID, UpdateStatusInput{Status: domain.StatusDelivered})
	wantCode(t, err, 409, "INVALID_TRANSITION")

	// Same clock instant: updatedAt must still strictly increase.
	delivered, err := f.svc.UpdateStatus(ctx, admin, created.ID, UpdateStatusInput{Status: domain.StatusDelivered, Override: true})
	if err != nil {
		t.Fatalf("UpdateStatus err=%v", err)
	}
	if delivered.Status != domain.StatusDelivered || !delivered.UpdatedAt.After(accepted.UpdatedAt) {
		t.Fatalf("delivered=%+v accepted.updatedAt=%v", delivered, accepted.UpdatedAt)
	}
}

func TestService_VisibilityAndStats(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	mine := f.create(t)
	if _, err := f.svc.Accept(ctx, personnel, mine.ID, ""); err != nil {
		t.Fatalf("Accept err=%v", err)
	}
	theirs, err := f.svc.Create(ctx, admin, CreateInput{Source: "A", Destination: "B"})
	if err != nil {
		t.Fatalf("Create err=%v", err)
	}

	_, err = f.svc.Get(ctx, student, theirs.ID)
	wantCode(t, err, 404, "DELIVERY_NOT_FOUND")
	_, err = f.svc.History(ctx, student, theirs.ID)
	wantCode(t, err, 404, "DELIVERY_NOT_FOUND")

	ds, err := f.svc.List(ctx, student, ListFilter{})
	if err != nil || len(ds) != 1 || ds[0].ID != mine.ID {
		t.Fatalf("student List=%+v err=%v", ds, err)
	}
	ds, err = f.svc.List(ctx, idle, ListFilter{})
	if err != nil || len(ds) != 1 || ds[0].ID != theirs.ID {
		t.Fatalf("idle personnel List=%+v err=%v, want only open requests", ds, err)
	}
	ds, err = f.svc.List(ctx, admin, ListFilter{Statuses: []domain.DeliveryStatus{domain.StatusAccepted}})
	if err != nil || len(ds) != 1 || ds[0].ID != mine.ID {
		t.Fatalf("admin filtered List=%+v err=%v", ds, err)
	}

	_, err = f.svc.Stats(ctx, student)
	wantCode(t, err, 403, "FORBIDDEN")
	st, err := f.svc.Stats(ctx, admin)
	if err != nil || st.Total != 2 || st.Pending != 1 || st.Active != 2 {
		t.Fatalf("Stats=%+v err=%v", st, err)
	}
}

func TestService_ConcurrentAcceptOneWinner(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	ctx := context.Background()

	d := f.create(t)
	const n = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		wins      int
		conflicts int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.Accept(ctx, admin, d.ID, personnel.ID)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				wins++
				return
			}
			ae := (*Error)(nil)
			if errors.As(err, &ae) && (ae.Code == "DELIVERY_CONFLICT" || ae.Code == "INVALID_TRANSITION") {
				conflicts++
			}
		}()
	}
	wg.Wait()
	if wins != 1 || conflicts != n-1 {
		t.Fatalf("wins=%d conflicts=%d, want 1/%d", wins, conflicts, n-1)
	}
}
