package dashboard

import (
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

// Action is something the caller may do from a view.
type Action string

const (
	ActionCreate  Action = "create"
	ActionAccept  Action = "accept"
	ActionReject  Action = "reject"
	ActionAdvance Action = "advance"
)

// Item is a delivery together with the actions the viewer may take on it.
type Item struct {
	Delivery   domain.Delivery
	Actions    []Action
	NextStatus *domain.DeliveryStatus
}

type StudentCounts struct {
	Total     int
	Active    int
	Delivered int
}

type StudentView struct {
	Deliveries []Item
	Counts     StudentCounts
	Actions    []Action
}

type PersonnelCounts struct {
	Assigned  int
	Delivered int
}

type PersonnelView struct {
	NewRequests []Item
	Active      []Item
	Counts      PersonnelCounts
}

type AdminView struct {
	// Status is the filter applied to Deliveries; nil shows everything.
	Status     *domain.DeliveryStatus
	Deliveries []domain.Delivery
	Stats      domain.DeliveryStats
	Staff      []domain.RosterEntry
}

// Student projects the caller's own deliveries. The inputs are not modified.
func Student(u domain.User, ds []domain.Delivery) StudentView {
	v := StudentView{
		Deliveries: []Item{},
		Actions:    []Action{ActionCreate},
	}
	for _, d := range ds {
		if d.StudentID != u.ID {
			continue
		}
		v.Deliveries = append(v.Deliveries, Item{Delivery: d, Actions: []Action{}})
		v.Counts.Total++
		if d.Status.IsActive() {
			v.Counts.Active++
		}
		if d.Status == domain.StatusDelivered {
			v.Counts.Delivered++
		}
	}
	return v
}

// Personnel splits deliveries into open requests anyone may take and the caller's own
// in-progress work.
func Personnel(u domain.User, ds []domain.Delivery) PersonnelView {
	v := PersonnelView{
		NewRequests: []Item{},
		Active:      []Item{},
	}
	for _, d := range ds {
		if d.Status == domain.StatusRequested {
			v.NewRequests = append(v.NewRequests, Item{
				Delivery: d,
				Actions:  []Action{ActionAccept, ActionReject},
			})
			continue
		}
		if !d.IsAssignedTo(u.ID) {
			continue
		}
		v.Counts.Assigned++
		if d.Status == domain.StatusDelivered {
			v.Counts.Delivered++
		}
		if d.Status.IsActive() {
			it := Item{Delivery: d, Actions: []Action{}}
			if next, ok := d.Status.Next(); ok {
				it.Actions = []Action{ActionAdvance}
				it.NextStatus = &next
			}
			v.Active = append(v.Active, it)
		}
	}
	return v
}

// Admin shows every delivery, optionally narrowed to one status. Stats always cover the
// full list.
func Admin(ds []domain.Delivery, status *domain.DeliveryStatus, roster []domain.RosterEntry) AdminView {
	v := AdminView{
		Status:     status,
		Deliveries: []domain.Delivery{},
		Stats:      domain.ComputeDeliveryStats(ds),
		Staff:      roster,
	}
	if v.Staff == nil {
		v.Staff = []domain.RosterEntry{}
	}
	for _, d := range ds {
		if status != nil && d.Status != *status {
			continue
		}
		v.Deliveries = append(v.Deliveries, d)
	}
	return v
}
