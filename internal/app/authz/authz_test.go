package authz

import (
	"errors"
	"testing"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

func TestAllowed_PolicyTable(t *testing.T) {
	t.Parallel()

	cases := []struct {
		op        Op
		student   bool
		personnel bool
		admin     bool
	}{
		{OpCreateDelivery, true, false, true},
		{OpAcceptDelivery, false, true, true},
		{OpRejectDelivery, false, true, true},
		{OpAdvanceDelivery, false, true, true},
		{OpUpdateStatus, false, true, true},
		{OpOverrideStatus, false, false, true},
		{OpViewOwn, true, true, true},
		{OpViewAll, false, false, true},
		{OpViewStats, false, false, true},
		{OpExport, false, false, true},
		{OpManageStaff, false, false, true},
		{Op("launch_rockets"), false, false, false},
	}
	for _, tc := range cases {
		if got := Allowed(domain.RoleStudent, tc.op); got != tc.student {
			t.Fatalf("Allowed(student,%s)=%v, want %v", tc.op, got, tc.student)
		}
		if got := Allowed(domain.RolePersonnel, tc.op); got != tc.personnel {
			t.Fatalf("Allowed(personnel,%s)=%v, want %v", tc.op, got, tc.personnel)
		}
		if got := Allowed(domain.RoleAdmin, tc.op); got != tc.admin {
			t.Fatalf("Allowed(admin,%s)=%v, want %v", tc.op, got, tc.admin)
		}
	}
}

func TestRequire_Forbidden(t *testing.T) {
	t.Parallel()

	err := Require(domain.User{ID: "1", Role: domain.RoleStudent}, OpViewStats)
	var ae *Error
	if !errors.As(err, &ae) || ae.Status != 403 || ae.Code != "FORBIDDEN" {
		t.Fatalf("err=%v, want FORBIDDEN 403", err)
	}
	if err := Require(domain.User{ID: "3", Role: domain.RoleAdmin}, OpViewStats); err != nil {
		t.Fatalf("Require(admin) err=%v", err)
	}
}

func TestCanView(t *testing.T) {
	t.Parallel()

	jane := domain.UserID("2")
	requested := domain.Delivery{ID: "a", StudentID: "1", Status: domain.StatusRequested}
	assigned := domain.Delivery{ID: "b", StudentID: "1", Status: domain.StatusEnRoute, PersonnelID: &jane}
	other := domain.UserID("9")
	foreign := domain.Delivery{ID: "c", StudentID: "5", Status: domain.StatusEnRoute, PersonnelID: &other}

	student := domain.User{ID: "1", Role: domain.RoleStudent}
	personnel := domain.User{ID: jane, Role: domain.RolePersonnel}
	admin := domain.User{ID: "3", Role: domain.RoleAdmin}

	if !CanView(student, requested) || CanView(student, foreign) {
		t.Fatalf("student visibility wrong")
	}
	if !CanView(personnel, requested) || !CanView(personnel, assigned) || CanView(personnel, foreign) {
		t.Fatalf("personnel visibility wrong")
	}
	if !CanView(admin, foreign) {
		t.Fatalf("admin must see everything")
	}
	if CanView(domain.User{ID: "x", Role: "guest"}, requested) {
		t.Fatalf("unknown role must see nothing")
	}
}
