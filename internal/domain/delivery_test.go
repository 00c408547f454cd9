package domain

import (
	"errors"
	"testing"
	"time"
)

func TestCheckTransition_Table(t *testing.T) {
	t.Parallel()

	allowed := map[[2]DeliveryStatus]bool{
		{StatusRequested, StatusAccepted}: true,
		{StatusRequested, StatusRejected}: true,
		{StatusAccepted, StatusPickedUp}:  true,
		{StatusPickedUp, StatusEnRoute}:   true,
		{StatusEnRoute, StatusDelivered}:  true,
	}

	for _, from := range AllStatuses {
		for _, to := range AllStatuses {
			err := CheckTransition(from, to)
			want := allowed[[2]DeliveryStatus{from, to}]
			if want && err != nil {
				t.Fatalf("CheckTransition(%q,%q) err=%v, want nil", from, to, err)
			}
			if !want {
				var te *TransitionError
				if !errors.As(err, &te) {
					t.Fatalf("CheckTransition(%q,%q) err=%v, want *TransitionError", from, to, err)
				}
				if te.From != from || te.To != to {
					t.Fatalf("TransitionError=%+v", te)
				}
			}
		}
	}
}

func TestCheckTransition_UnknownStatus(t *testing.T) {
	t.Parallel()

	if err := CheckTransition(StatusRequested, DeliveryStatus("Lost")); err == nil {
		t.Fatalf("expected error for unknown target status")
	}
	if err := CheckTransition(DeliveryStatus("Lost"), StatusAccepted); err == nil {
		t.Fatalf("expected error for unknown source status")
	}
}

func TestDeliveryStatus_Next(t *testing.T) {
	t.Parallel()

	cases := []struct {
		from DeliveryStatus
		want DeliveryStatus
		ok   bool
	}{
		{StatusRequested, "", false},
		{StatusAccepted, StatusPickedUp, true},
		{StatusPickedUp, StatusEnRoute, true},
		{StatusEnRoute, StatusDelivered, true},
		{StatusDelivered, "", false},
		{StatusRejected, "", false},
	}
	for _, tc := range cases {
		got, ok := tc.from.Next()
		if got != tc.want || ok != tc.ok {
			t.Fatalf("%q.Next()=(%q,%v), want (%q,%v)", tc.from, got, ok, tc.want, tc.ok)
		}
		if ok {
			if err := CheckTransition(tc.from, got); err != nil {
				t.Fatalf("Next() produced a disallowed transition: %v", err)
			}
		}
	}
}

func TestParseDeliveryStatus(t *testing.T) {
	t.Parallel()

	if st, ok := ParseDeliveryStatus("Picked Up"); !ok || st != StatusPickedUp {
		t.Fatalf("ParseDeliveryStatus(Picked Up)=(%q,%v)", st, ok)
	}
	if _, ok := ParseDeliveryStatus("picked up"); ok {
		t.Fatalf("status parsing must be exact")
	}
}

func TestComputeDeliveryStats(t *testing.T) {
	t.Parallel()

	ds := []Delivery{
		{ID: "1", Status: StatusRequested},
		{ID: "2", Status: StatusEnRoute},
		{ID: "3", Status: StatusDelivered},
		{ID: "4", Status: StatusRejected},
		{ID: "5", Status: StatusRequested},
	}
	st := ComputeDeliveryStats(ds)
	if st.Total != 5 || st.Active != 3 || st.Completed != 1 || st.Pending != 2 || st.Rejected != 1 {
		t.Fatalf("stats=%+v", st)
	}
	if st.ByStatus[StatusRequested] != 2 || st.ByStatus[StatusAccepted] != 0 {
		t.Fatalf("byStatus=%v", st.ByStatus)
	}
}

func TestComputeStaffStats(t *testing.T) {
	t.Parallel()

	jane := UserID("2")
	name := "Jane Personnel"
	other := UserID("9")
	t1 := time.Unix(100, 0).UTC()
	t2 := time.Unix(200, 0).UTC()

	ds := []Delivery{
		{ID: "1", PersonnelID: &jane, PersonnelName: &name, Status: StatusDelivered, RequestedAt: t1},
		{ID: "2", PersonnelID: &jane, PersonnelName: &name, Status: StatusEnRoute, RequestedAt: t2},
		{ID: "3", PersonnelID: &other, Status: StatusDelivered, RequestedAt: t2},
		{ID: "4", Status: StatusRequested, RequestedAt: t2},
	}

	linked := StaffMember{ID: "s1", UserID: &jane, Name: "Renamed"}
	st := ComputeStaffStats(linked, nil, ds)
	if st.Assigned != 2 || st.Completed != 1 || st.LastAssignedAt == nil || !st.LastAssignedAt.Equal(t2) {
		t.Fatalf("linked stats=%+v", st)
	}

	unlinked := StaffMember{ID: "s2", Name: name}
	st = ComputeStaffStats(unlinked, nil, ds)
	if st.Assigned != 2 {
		t.Fatalf("unlinked stats=%+v, want match by name", st)
	}

	// A same-named unlinked entry does not count deliveries owned by a linked entry.
	roster := ComputeRosterStats([]StaffMember{linked, unlinked}, ds)
	if roster[0].Stats.Assigned != 2 || roster[1].Stats.Assigned != 0 {
		t.Fatalf("roster stats=%+v / %+v, want 2 / 0", roster[0].Stats, roster[1].Stats)
	}

	// Imported entries keep matching by source personnel id after a rename.
	imported := StaffMember{ID: "s3", SourcePersonnelID: &other, Name: "Someone Else"}
	st = ComputeStaffStats(imported, ClaimedPersonnel([]StaffMember{imported}), ds)
	if st.Assigned != 1 || st.Completed != 1 {
		t.Fatalf("imported stats=%+v, want match by source personnel id", st)
	}
}
