package contracttest

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
	platformclock "github.com/campus-logistics/delivery-tracker-api/internal/platform/clock"
	deliveryrepoport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/deliveryrepo"
	idempotencyport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/idempotency"
	sessionstoreport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/sessionstore"
	staffrepoport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/staffrepo"
	userrepoport "github.com/campus-logistics/delivery-tracker-api/internal/ports/out/userrepo"
)

// Suites may run against a shared database, so every record they create uses fresh ids
// and emails and assertions only look at records the suite itself wrote.

type CleanupFunc = func()

type UserRepoFactory func(t *testing.T) (userrepoport.Repository, CleanupFunc)
type DeliveryRepoFactory func(t *testing.T) (deliveryrepoport.Repository, CleanupFunc)
type StaffRepoFactory func(t *testing.T) (staffrepoport.Repository, CleanupFunc)
type SessionStoreFactory func(t *testing.T, clk *platformclock.ManualClock) (sessionstoreport.Store, CleanupFunc)
type IdemStoreFactory func(t *testing.T) (idempotencyport.Store, CleanupFunc)

func RunIdempotencyStore(t *testing.T, newStore IdemStoreFactory) {
	t.Helper()
	ctx := context.Background()

	store, cleanup := newStore(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	fp := idempotencyport.Fingerprint{
		Key:      idempotencyport.Key("k-" + uuid.NewString()),
		UserID:   domain.UserID("user-1"),
		Method:   "POST",
		Route:    "/deliveries",
		BodyHash: "abc",
	}
	if _, ok, err := store.Get(ctx, fp); err != nil || ok {
		t.Fatalf("Get(missing) ok=%v err=%v, want false,nil", ok, err)
	}

	rec := idempotencyport.Record{
		StatusCode:  201,
		ContentType: "application/json",
		Body:        []byte(`{"id":"1"}`),
		CreatedAt:   time.Unix(123, 0).UTC(),
	}
	if err := store.Put(ctx, fp, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, ok, err := store.Get(ctx, fp)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !ok {
		t.Fatalf("expected ok=true")
	}
	if string(got.Body) != `{"id":"1"}` || got.ContentType != "application/json" || got.StatusCode != 201 {
		t.Fatalf("unexpected record: %+v", got)
	}

	// A different user with the same key does not see the record.
	other := fp
	other.UserID = domain.UserID("user-2")
	if _, ok, err := store.Get(ctx, other); err != nil || ok {
		t.Fatalf("Get(other user) ok=%v err=%v, want false,nil", ok, err)
	}

	// Overwrite semantics.
	rec2 := rec
	rec2.Body = []byte(`{"id":"2"}`)
	if err := store.Put(ctx, fp, rec2); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	got, ok, err = store.Get(ctx, fp)
	if err != nil || !ok || string(got.Body) != `{"id":"2"}` {
		t.Fatalf("expected overwritten record, got ok=%v err=%v body=%q", ok, err, string(got.Body))
	}
}

func RunUserRepo(t *testing.T, newRepo UserRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := time.Unix(1000, 0).UTC()
	suffix := uuid.NewString()[:8]
	aID := domain.UserID(uuid.NewString())
	aEmail := "alice-" + suffix + "@campus.edu"
	a := userrepoport.User{
		ID:           aID,
		Email:        "  Alice-" + suffix + "@Campus.EDU ",
		Name:         "Alice " + suffix,
		Role:         domain.RoleStudent,
		PasswordHash: []byte("hash-a"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := repo.Create(ctx, a); err != nil {
		t.Fatalf("Create a: %v", err)
	}

	got, err := repo.GetByID(ctx, aID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.Email != aEmail || got.Role != domain.RoleStudent || string(got.PasswordHash) != "hash-a" {
		t.Fatalf("GetByID=%+v", got)
	}
	if !got.CreatedAt.Equal(now) {
		t.Fatalf("createdAt=%v, want %v", got.CreatedAt, now)
	}

	// Email lookups are case-insensitive.
	if got, err := repo.GetByEmail(ctx, "ALICE-"+suffix+"@campus.edu"); err != nil || got.ID != aID {
		t.Fatalf("GetByEmail=%+v err=%v", got, err)
	}
	if _, err := repo.GetByEmail(ctx, "nobody-"+suffix+"@campus.edu"); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByEmail(missing) err=%v, want ErrNotFound", err)
	}
	if _, err := repo.GetByID(ctx, domain.UserID(uuid.NewString())); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByID(missing) err=%v, want ErrNotFound", err)
	}

	// Duplicate id and duplicate email.
	if err := repo.Create(ctx, a); !errors.Is(err, userrepoport.ErrAlreadyExists) {
		t.Fatalf("Create(dup id) err=%v, want ErrAlreadyExists", err)
	}
	dup := a
	dup.ID = domain.UserID(uuid.NewString())
	dup.Email = "ALICE-" + suffix + "@campus.edu"
	if err := repo.Create(ctx, dup); !errors.Is(err, userrepoport.ErrEmailTaken) {
		t.Fatalf("Create(dup email) err=%v, want ErrEmailTaken", err)
	}

	bID := domain.UserID(uuid.NewString())
	if err := repo.Create(ctx, userrepoport.User{
		ID:           bID,
		Email:        "bob-" + suffix + "@campus.edu",
		Name:         "bob " + suffix,
		Role:         domain.RolePersonnel,
		PasswordHash: []byte("hash-b"),
		CreatedAt:    now,
		UpdatedAt:    now,
	}); err != nil {
		t.Fatalf("Create b: %v", err)
	}

	// Update cannot steal another user's email.
	b, err := repo.GetByID(ctx, bID)
	if err != nil {
		t.Fatalf("GetByID b: %v", err)
	}
	b.Email = aEmail
	if err := repo.Update(ctx, b); !errors.Is(err, userrepoport.ErrEmailTaken) {
		t.Fatalf("Update(steal email) err=%v, want ErrEmailTaken", err)
	}
	b.Email = "bob-" + suffix + "@campus.edu"
	b.Name = "Bob " + suffix
	b.UpdatedAt = now.Add(time.Minute)
	if err := repo.Update(ctx, b); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if got, _ := repo.GetByID(ctx, bID); got.Name != "Bob "+suffix {
		t.Fatalf("Update did not persist name: %+v", got)
	}
	missing := b
	missing.ID = domain.UserID(uuid.NewString())
	missing.Email = "missing-" + suffix + "@campus.edu"
	if err := repo.Update(ctx, missing); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("Update(missing) err=%v, want ErrNotFound", err)
	}

	// Role filter and name ordering.
	ps, err := repo.List(ctx, domain.RolePersonnel)
	if err != nil {
		t.Fatalf("List(personnel): %v", err)
	}
	foundB := false
	for _, u := range ps {
		if u.Role != domain.RolePersonnel {
			t.Fatalf("List(personnel) returned %+v", u)
		}
		if u.ID == bID {
			foundB = true
		}
	}
	if !foundB {
		t.Fatalf("List(personnel) missing %s", bID)
	}
	all, err := repo.List(ctx, "")
	if err != nil {
		t.Fatalf("List(all): %v", err)
	}
	ai, bi := -1, -1
	for i, u := range all {
		switch u.ID {
		case aID:
			ai = i
		case bID:
			bi = i
		}
	}
	if ai < 0 || bi < 0 || ai > bi {
		t.Fatalf("List(all) ordering: alice=%d bob=%d", ai, bi)
	}

	// Delete frees the email for reuse.
	if err := repo.Delete(ctx, bID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := repo.GetByID(ctx, bID); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("GetByID(deleted) err=%v, want ErrNotFound", err)
	}
	if err := repo.Delete(ctx, bID); !errors.Is(err, userrepoport.ErrNotFound) {
		t.Fatalf("Delete(missing) err=%v, want ErrNotFound", err)
	}
	reuse := b
	reuse.ID = domain.UserID(uuid.NewString())
	if err := repo.Create(ctx, reuse); err != nil {
		t.Fatalf("Create(reused email) err=%v", err)
	}
}

func RunDeliveryRepo(t *testing.T, newRepo DeliveryRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	t0 := time.Unix(5000, 0).UTC()
	student := domain.UserID(uuid.NewString())
	personnel := domain.UserID(uuid.NewString())
	personnelName := "Jane Personnel"
	notes := "Fragile package"

	d1 := domain.Delivery{
		ID:          domain.DeliveryID(uuid.NewString()),
		StudentID:   student,
		StudentName: "John Student",
		Source:      "Main Gate",
		Destination: "Bethel Hostel",
		Status:      domain.StatusRequested,
		RequestedAt: t0,
		UpdatedAt:   t0,
		Notes:       &notes,
	}
	created := domain.StatusEvent{To: domain.StatusRequested, ActorID: student, ActorName: "John Student", At: t0}
	if err := repo.Create(ctx, d1, created); err != nil {
		t.Fatalf("Create d1: %v", err)
	}
	if err := repo.Create(ctx, d1, created); !errors.Is(err, deliveryrepoport.ErrAlreadyExists) {
		t.Fatalf("Create(dup) err=%v, want ErrAlreadyExists", err)
	}

	got, err := repo.Get(ctx, d1.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Status != domain.StatusRequested || got.PersonnelID != nil || got.PersonnelName != nil {
		t.Fatalf("Get=%+v", got)
	}
	if got.Notes == nil || *got.Notes != notes || got.ContactPhone != nil {
		t.Fatalf("optional fields=%+v", got)
	}
	if !got.RequestedAt.Equal(t0) {
		t.Fatalf("requestedAt=%v, want %v", got.RequestedAt, t0)
	}
	if _, err := repo.Get(ctx, domain.DeliveryID(uuid.NewString())); !errors.Is(err, deliveryrepoport.ErrNotFound) {
		t.Fatalf("Get(missing) err=%v, want ErrNotFound", err)
	}

	// Compare-and-set: succeeds from the expected status, conflicts otherwise.
	t1 := t0.Add(time.Minute)
	accepted := got
	accepted.Status = domain.StatusAccepted
	accepted.PersonnelID = &personnel
	accepted.PersonnelName = &personnelName
	accepted.UpdatedAt = t1
	accEv := domain.StatusEvent{From: domain.StatusRequested, To: domain.StatusAccepted, ActorID: personnel, ActorName: personnelName, At: t1}
	if err := repo.UpdateIfStatus(ctx, accepted, domain.StatusRequested, accEv); err != nil {
		t.Fatalf("UpdateIfStatus: %v", err)
	}
	if err := repo.UpdateIfStatus(ctx, accepted, domain.StatusRequested, accEv); !errors.Is(err, deliveryrepoport.ErrStatusConflict) {
		t.Fatalf("UpdateIfStatus(stale) err=%v, want ErrStatusConflict", err)
	}
	ghost := accepted
	ghost.ID = domain.DeliveryID(uuid.NewString())
	if err := repo.UpdateIfStatus(ctx, ghost, domain.StatusRequested, accEv); !errors.Is(err, deliveryrepoport.ErrNotFound) {
		t.Fatalf("UpdateIfStatus(missing) err=%v, want ErrNotFound", err)
	}

	got, err = repo.Get(ctx, d1.ID)
	if err != nil {
		t.Fatalf("Get after update: %v", err)
	}
	if got.Status != domain.StatusAccepted || !got.IsAssignedTo(personnel) || got.PersonnelName == nil || *got.PersonnelName != personnelName {
		t.Fatalf("after accept=%+v", got)
	}
	if !got.UpdatedAt.Equal(t1) || !got.RequestedAt.Equal(t0) {
		t.Fatalf("timestamps requestedAt=%v updatedAt=%v", got.RequestedAt, got.UpdatedAt)
	}

	evs, err := repo.ListEvents(ctx, d1.ID)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(evs) != 2 {
		t.Fatalf("events=%+v, want 2", evs)
	}
	if evs[0].From != "" || evs[0].To != domain.StatusRequested || evs[1].From != domain.StatusRequested || evs[1].To != domain.StatusAccepted {
		t.Fatalf("event order=%+v", evs)
	}
	if evs[1].ActorID != personnel || evs[1].ActorName != personnelName || evs[1].DeliveryID != d1.ID {
		t.Fatalf("event fields=%+v", evs[1])
	}
	if _, err := repo.ListEvents(ctx, domain.DeliveryID(uuid.NewString())); !errors.Is(err, deliveryrepoport.ErrNotFound) {
		t.Fatalf("ListEvents(missing) err=%v, want ErrNotFound", err)
	}

	// Second delivery, requested earlier, for list ordering and filters.
	d2 := domain.Delivery{
		ID:          domain.DeliveryID(uuid.NewString()),
		StudentID:   student,
		StudentName: "John Student",
		Source:      "MSQ Gate",
		Destination: "Computer Science Department",
		Status:      domain.StatusRequested,
		RequestedAt: t0.Add(-time.Hour),
		UpdatedAt:   t0.Add(-time.Hour),
	}
	if err := repo.Create(ctx, d2, domain.StatusEvent{To: domain.StatusRequested, ActorID: student, ActorName: "John Student", At: d2.RequestedAt}); err != nil {
		t.Fatalf("Create d2: %v", err)
	}

	mine, err := repo.List(ctx, deliveryrepoport.Filter{StudentID: &student})
	if err != nil {
		t.Fatalf("List(student): %v", err)
	}
	if len(mine) != 2 || mine[0].ID != d2.ID || mine[1].ID != d1.ID {
		t.Fatalf("List(student)=%+v, want [d2 d1]", mine)
	}
	assigned, err := repo.List(ctx, deliveryrepoport.Filter{PersonnelID: &personnel})
	if err != nil {
		t.Fatalf("List(personnel): %v", err)
	}
	if len(assigned) != 1 || assigned[0].ID != d1.ID {
		t.Fatalf("List(personnel)=%+v", assigned)
	}
	pending, err := repo.List(ctx, deliveryrepoport.Filter{StudentID: &student, Statuses: []domain.DeliveryStatus{domain.StatusRequested}})
	if err != nil {
		t.Fatalf("List(requested): %v", err)
	}
	if len(pending) != 1 || pending[0].ID != d2.ID {
		t.Fatalf("List(requested)=%+v", pending)
	}

	// Exactly one of several racing updates from the same status wins.
	const racers = 8
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			next := d2
			next.Status = domain.StatusRejected
			next.UpdatedAt = t1
			err := repo.UpdateIfStatus(ctx, next, domain.StatusRequested, domain.StatusEvent{From: domain.StatusRequested, To: domain.StatusRejected, ActorID: personnel, ActorName: personnelName, At: t1})
			if err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
				return
			}
			if !errors.Is(err, deliveryrepoport.ErrStatusConflict) {
				t.Errorf("racing UpdateIfStatus err=%v", err)
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("racing updates wins=%d, want 1", wins)
	}
	evs, err = repo.ListEvents(ctx, d2.ID)
	if err != nil || len(evs) != 2 {
		t.Fatalf("ListEvents(d2)=%+v err=%v, want 2 events", evs, err)
	}
}

func RunStaffRepo(t *testing.T, newRepo StaffRepoFactory) {
	t.Helper()
	ctx := context.Background()

	repo, cleanup := newRepo(t)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	t0 := time.Unix(9000, 0).UTC()
	userID := domain.UserID(uuid.NewString())
	linked := domain.StaffMember{
		ID:        domain.StaffID(uuid.NewString()),
		UserID:    &userID,
		Name:      "Jane Personnel",
		Email:     "jane@campus.edu",
		Active:    true,
		CreatedAt: t0,
		UpdatedAt: t0,
	}
	if err := repo.Create(ctx, linked); err != nil {
		t.Fatalf("Create linked: %v", err)
	}
	if err := repo.Create(ctx, linked); !errors.Is(err, staffrepoport.ErrAlreadyExists) {
		t.Fatalf("Create(dup id) err=%v, want ErrAlreadyExists", err)
	}
	second := linked
	second.ID = domain.StaffID(uuid.NewString())
	if err := repo.Create(ctx, second); !errors.Is(err, staffrepoport.ErrAlreadyExists) {
		t.Fatalf("Create(dup user link) err=%v, want ErrAlreadyExists", err)
	}

	byUser, err := repo.GetByUserID(ctx, userID)
	if err != nil || byUser.ID != linked.ID {
		t.Fatalf("GetByUserID=%+v err=%v", byUser, err)
	}
	if _, err := repo.GetByUserID(ctx, domain.UserID(uuid.NewString())); !errors.Is(err, staffrepoport.ErrNotFound) {
		t.Fatalf("GetByUserID(missing) err=%v, want ErrNotFound", err)
	}

	sourceID := domain.UserID(uuid.NewString())
	unlinked := domain.StaffMember{
		ID:                domain.StaffID(uuid.NewString()),
		SourcePersonnelID: &sourceID,
		Name:              "Sam Runner",
		Active:            true,
		CreatedAt:         t0.Add(time.Minute),
		UpdatedAt:         t0.Add(time.Minute),
	}
	if err := repo.Create(ctx, unlinked); err != nil {
		t.Fatalf("Create unlinked: %v", err)
	}
	got, err := repo.GetByID(ctx, unlinked.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if got.UserID != nil || got.SourcePersonnelID == nil || *got.SourcePersonnelID != sourceID || got.Name != "Sam Runner" || !got.Active {
		t.Fatalf("GetByID=%+v", got)
	}

	// Deactivate and rename; list filters inactive unless asked. The import source survives
	// updates.
	got.Active = false
	got.Name = "Sam Courier"
	got.SourcePersonnelID = nil
	got.UpdatedAt = t0.Add(2 * time.Minute)
	if err := repo.Update(ctx, got); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if after, err := repo.GetByID(ctx, unlinked.ID); err != nil || after.Name != "Sam Courier" || after.SourcePersonnelID == nil || *after.SourcePersonnelID != sourceID {
		t.Fatalf("after Update=%+v err=%v, want renamed with source kept", after, err)
	}
	ghost := got
	ghost.ID = domain.StaffID(uuid.NewString())
	if err := repo.Update(ctx, ghost); !errors.Is(err, staffrepoport.ErrNotFound) {
		t.Fatalf("Update(missing) err=%v, want ErrNotFound", err)
	}

	active, err := repo.List(ctx, false)
	if err != nil {
		t.Fatalf("List(active): %v", err)
	}
	for _, m := range active {
		if m.ID == unlinked.ID {
			t.Fatalf("List(active) includes inactive member")
		}
	}
	all, err := repo.List(ctx, true)
	if err != nil {
		t.Fatalf("List(all): %v", err)
	}
	li, ui := -1, -1
	for i, m := range all {
		switch m.ID {
		case linked.ID:
			li = i
		case unlinked.ID:
			ui = i
			if m.Active {
				t.Fatalf("Update did not persist active=false")
			}
		}
	}
	if li < 0 || ui < 0 || li > ui {
		t.Fatalf("List(all) ordering linked=%d unlinked=%d", li, ui)
	}
}

func RunSessionStore(t *testing.T, newStore SessionStoreFactory) {
	t.Helper()
	ctx := context.Background()

	clk := platformclock.NewManualClock(time.Unix(20000, 0).UTC())
	store, cleanup := newStore(t, clk)
	if cleanup != nil {
		t.Cleanup(cleanup)
	}

	now := clk.Now()
	sess := domain.Session{
		ID:        domain.SessionID(uuid.NewString()),
		User:      domain.User{ID: "1", Email: "student@campus.edu", Name: "John Student", Role: domain.RoleStudent},
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put: %v", err)
	}
	got, err := store.Get(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.User != sess.User {
		t.Fatalf("Get user=%+v, want %+v", got.User, sess.User)
	}
	if _, err := store.Get(ctx, domain.SessionID(uuid.NewString())); !errors.Is(err, sessionstoreport.ErrNotFound) {
		t.Fatalf("Get(missing) err=%v, want ErrNotFound", err)
	}

	// Put overwrites the stored user record.
	sess.User.Name = "Johnny Student"
	if err := store.Put(ctx, sess); err != nil {
		t.Fatalf("Put overwrite: %v", err)
	}
	if got, err := store.Get(ctx, sess.ID); err != nil || got.User.Name != "Johnny Student" {
		t.Fatalf("Get after overwrite=%+v err=%v", got, err)
	}

	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(ctx, sess.ID); !errors.Is(err, sessionstoreport.ErrNotFound) {
		t.Fatalf("Get after Delete err=%v, want ErrNotFound", err)
	}
	if err := store.Delete(ctx, sess.ID); err != nil {
		t.Fatalf("Delete twice err=%v, want nil", err)
	}

	// Expiry.
	short := domain.Session{
		ID:        domain.SessionID(uuid.NewString()),
		User:      sess.User,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Minute),
	}
	if err := store.Put(ctx, short); err != nil {
		t.Fatalf("Put short: %v", err)
	}
	clk.Advance(2 * time.Minute)
	if _, err := store.Get(ctx, short.ID); !errors.Is(err, sessionstoreport.ErrNotFound) {
		t.Fatalf("Get(expired) err=%v, want ErrNotFound", err)
	}
}
