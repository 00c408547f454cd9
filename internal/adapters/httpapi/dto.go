package httpapi

import (
	"time"

	"github.com/oapi-codegen/nullable"
	openapi_types "github.com/oapi-codegen/runtime/types"

	"github.com/campus-logistics/delivery-tracker-api/internal/app/dashboard"
	"github.com/campus-logistics/delivery-tracker-api/internal/app/staff"
	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

// Requests

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type RegisterRequest struct {
	Email    openapi_types.Email `json:"email"`
	Password string              `json:"password"`
	Name     string              `json:"name"`
}

type CreateDeliveryRequest struct {
	Source       string  `json:"source"`
	Destination  string  `json:"destination"`
	Notes        *string `json:"notes,omitempty"`
	ContactPhone *string `json:"contactPhone,omitempty"`
}

type AcceptDeliveryRequest struct {
	PersonnelId *string `json:"personnelId,omitempty"`
}

type UpdateStatusRequest struct {
	Status      string  `json:"status"`
	PersonnelId *string `json:"personnelId,omitempty"`
	Override    bool    `json:"override,omitempty"`
}

type AddStaffRequest struct {
	Name     string               `json:"name"`
	Email    *openapi_types.Email `json:"email,omitempty"`
	Password *string              `json:"password,omitempty"`
}

type UpdateStaffRequest struct {
	Name   nullable.Nullable[string]              `json:"name,omitempty"`
	Email  nullable.Nullable[openapi_types.Email] `json:"email,omitempty"`
	Active *bool                                  `json:"active,omitempty"`
}

// Responses

type User struct {
	Id    string              `json:"id"`
	Email openapi_types.Email `json:"email"`
	Name  string              `json:"name"`
	Role  string              `json:"role"`
}

type AuthResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	User      User      `json:"user"`
}

type UserResponse struct {
	User User `json:"user"`
}

type Delivery struct {
	Id            string                    `json:"id"`
	StudentId     string                    `json:"studentId"`
	StudentName   string                    `json:"studentName"`
	PersonnelId   nullable.Nullable[string] `json:"personnelId"`
	PersonnelName nullable.Nullable[string] `json:"personnelName"`
	Source        string                    `json:"source"`
	Destination   string                    `json:"destination"`
	Status        string                    `json:"status"`
	RequestedAt   time.Time                 `json:"requestedAt"`
	UpdatedAt     time.Time                 `json:"updatedAt"`
	Notes         nullable.Nullable[string] `json:"notes"`
	ContactPhone  nullable.Nullable[string] `json:"contactPhone"`
}

type DeliveryResponse struct {
	Delivery Delivery `json:"delivery"`
}

type DeliveryListResponse struct {
	Deliveries []Delivery `json:"deliveries"`
}

type StatusEvent struct {
	From      nullable.Nullable[string] `json:"from"`
	To        string                    `json:"to"`
	ActorId   string                    `json:"actorId"`
	ActorName string                    `json:"actorName"`
	Override  bool                      `json:"override"`
	At        time.Time                 `json:"at"`
}

type HistoryResponse struct {
	Events []StatusEvent `json:"events"`
}

type Stats struct {
	Total     int            `json:"total"`
	Active    int            `json:"active"`
	Completed int            `json:"completed"`
	Pending   int            `json:"pending"`
	Rejected  int            `json:"rejected"`
	ByStatus  map[string]int `json:"byStatus"`
}

type StatsResponse struct {
	Stats Stats `json:"stats"`
}

type StaffStats struct {
	Assigned       int                          `json:"assigned"`
	Completed      int                          `json:"completed"`
	LastAssignedAt nullable.Nullable[time.Time] `json:"lastAssignedAt"`
}

type StaffMember struct {
	Id                string                                 `json:"id"`
	UserId            nullable.Nullable[string]              `json:"userId"`
	SourcePersonnelId nullable.Nullable[string]              `json:"sourcePersonnelId"`
	Name              string                                 `json:"name"`
	Email             nullable.Nullable[openapi_types.Email] `json:"email"`
	Active            bool                                   `json:"active"`
	CreatedAt         time.Time                              `json:"createdAt"`
	UpdatedAt         time.Time                              `json:"updatedAt"`
	Stats             StaffStats                             `json:"stats"`
}

type StaffMemberResponse struct {
	StaffMember StaffMember `json:"staffMember"`
}

type StaffListResponse struct {
	Staff []StaffMember `json:"staff"`
}

type DashboardItem struct {
	Delivery   Delivery                  `json:"delivery"`
	Actions    []string                  `json:"actions"`
	NextStatus nullable.Nullable[string] `json:"nextStatus,omitempty"`
}

type StudentDashboard struct {
	Deliveries []DashboardItem `json:"deliveries"`
	Counts     struct {
		Total     int `json:"total"`
		Active    int `json:"active"`
		Delivered int `json:"delivered"`
	} `json:"counts"`
	Actions []string `json:"actions"`
}

type PersonnelDashboard struct {
	NewRequests []DashboardItem `json:"newRequests"`
	Active      []DashboardItem `json:"active"`
	Counts      struct {
		Assigned  int `json:"assigned"`
		Delivered int `json:"delivered"`
	} `json:"counts"`
}

type AdminDashboard struct {
	StatusFilter nullable.Nullable[string] `json:"statusFilter"`
	Deliveries   []Delivery                `json:"deliveries"`
	Stats        Stats                     `json:"stats"`
	Staff        []StaffMember             `json:"staff"`
}

type DashboardResponse struct {
	Role      string              `json:"role"`
	User      User                `json:"user"`
	Student   *StudentDashboard   `json:"student,omitempty"`
	Personnel *PersonnelDashboard `json:"personnel,omitempty"`
	Admin     *AdminDashboard     `json:"admin,omitempty"`
}

type LandingResponse struct {
	Service string   `json:"service"`
	Routes  []string `json:"routes"`
}

// Mapping

func userFromDomain(u domain.User) User {
	return User{
		Id:    string(u.ID),
		Email: openapi_types.Email(u.Email),
		Name:  u.Name,
		Role:  string(u.Role),
	}
}

func deliveryFromDomain(d domain.Delivery) Delivery {
	out := Delivery{
		Id:            string(d.ID),
		StudentId:     string(d.StudentID),
		StudentName:   d.StudentName,
		PersonnelName: nullableString(d.PersonnelName),
		Source:        d.Source,
		Destination:   d.Destination,
		Status:        string(d.Status),
		RequestedAt:   d.RequestedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
		Notes:         nullableString(d.Notes),
		ContactPhone:  nullableString(d.ContactPhone),
	}
	out.PersonnelId.SetNull()
	if d.PersonnelID != nil {
		out.PersonnelId.Set(string(*d.PersonnelID))
	}
	return out
}

func deliveriesFromDomain(ds []domain.Delivery) []Delivery {
	out := make([]Delivery, 0, len(ds))
	for _, d := range ds {
		out = append(out, deliveryFromDomain(d))
	}
	return out
}

func statusEventFromDomain(ev domain.StatusEvent) StatusEvent {
	out := StatusEvent{
		To:        string(ev.To),
		ActorId:   string(ev.ActorID),
		ActorName: ev.ActorName,
		Override:  ev.Override,
		At:        ev.At.UTC(),
	}
	out.From.SetNull()
	if ev.From != "" {
		out.From.Set(string(ev.From))
	}
	return out
}

func statsFromDomain(st domain.DeliveryStats) Stats {
	out := Stats{
		Total:     st.Total,
		Active:    st.Active,
		Completed: st.Completed,
		Pending:   st.Pending,
		Rejected:  st.Rejected,
		ByStatus:  make(map[string]int, len(st.ByStatus)),
	}
	for k, v := range st.ByStatus {
		out.ByStatus[string(k)] = v
	}
	return out
}

func staffMemberFromDomain(e domain.RosterEntry) StaffMember {
	out := StaffMember{
		Id:        string(e.ID),
		Name:      e.Name,
		Active:    e.Active,
		CreatedAt: e.CreatedAt.UTC(),
		UpdatedAt: e.UpdatedAt.UTC(),
		Stats: StaffStats{
			Assigned:  e.Stats.Assigned,
			Completed: e.Stats.Completed,
		},
	}
	out.UserId.SetNull()
	if e.UserID != nil {
		out.UserId.Set(string(*e.UserID))
	}
	out.SourcePersonnelId.SetNull()
	if e.SourcePersonnelID != nil {
		out.SourcePersonnelId.Set(string(*e.SourcePersonnelID))
	}
	out.Email.SetNull()
	if e.Email != "" {
		out.Email.Set(openapi_types.Email(e.Email))
	}
	out.Stats.LastAssignedAt.SetNull()
	if e.Stats.LastAssignedAt != nil {
		out.Stats.LastAssignedAt.Set(e.Stats.LastAssignedAt.UTC())
	}
	return out
}

func staffFromDomain(es []domain.RosterEntry) []StaffMember {
	out := make([]StaffMember, 0, len(es))
	for _, e := range es {
		out = append(out, staffMemberFromDomain(e))
	}
	return out
}

func itemsFromDashboard(items []dashboard.Item) []DashboardItem {
	out := make([]DashboardItem, 0, len(items))
	for _, it := range items {
		di := DashboardItem{
			Delivery: deliveryFromDomain(it.Delivery),
			Actions:  make([]string, 0, len(it.Actions)),
		}
		for _, a := range it.Actions {
			di.Actions = append(di.Actions, string(a))
		}
		if it.NextStatus != nil {
			di.NextStatus.Set(string(*it.NextStatus))
		}
		out = append(out, di)
	}
	return out
}

func dashboardFromView(v dashboard.View) DashboardResponse {
	out := DashboardResponse{
		Role: string(v.Role),
		User: userFromDomain(v.User),
	}
	if sv := v.Student; sv != nil {
		sd := &StudentDashboard{
			Deliveries: itemsFromDashboard(sv.Deliveries),
			Actions:    make([]string, 0, len(sv.Actions)),
		}
		sd.Counts.Total = sv.Counts.Total
		sd.Counts.Active = sv.Counts.Active
		sd.Counts.Delivered = sv.Counts.Delivered
		for _, a := range sv.Actions {
			sd.Actions = append(sd.Actions, string(a))
		}
		out.Student = sd
	}
	if pv := v.Personnel; pv != nil {
		pd := &PersonnelDashboard{
			NewRequests: itemsFromDashboard(pv.NewRequests),
			Active:      itemsFromDashboard(pv.Active),
		}
		pd.Counts.Assigned = pv.Counts.Assigned
		pd.Counts.Delivered = pv.Counts.Delivered
		out.Personnel = pd
	}
	if av := v.Admin; av != nil {
		ad := &AdminDashboard{
			Deliveries: deliveriesFromDomain(av.Deliveries),
			Stats:      statsFromDomain(av.Stats),
			Staff:      staffFromDomain(av.Staff),
		}
		ad.StatusFilter.SetNull()
		if av.Status != nil {
			ad.StatusFilter.Set(string(*av.Status))
		}
		out.Admin = ad
	}
	return out
}

// nullableString maps nil to an explicit JSON null.
func nullableString(p *string) nullable.Nullable[string] {
	var out nullable.Nullable[string]
	out.SetNull()
	if p != nil {
		out.Set(*p)
	}
	return out
}

func optionalStringFromNullable(n nullable.Nullable[string]) staff.Optional[string] {
	if !n.IsSpecified() {
		return staff.Unspecified[string]()
	}
	if n.IsNull() {
		return staff.Null[string]()
	}
	v, err := n.Get()
	if err != nil {
		return staff.Unspecified[string]()
	}
	return staff.Some(v)
}

func optionalEmailFromNullable(n nullable.Nullable[openapi_types.Email]) staff.Optional[string] {
	if !n.IsSpecified() {
		return staff.Unspecified[string]()
	}
	if n.IsNull() {
		return staff.Null[string]()
	}
	v, err := n.Get()
	if err != nil {
		return staff.Unspecified[string]()
	}
	return staff.Some(string(v))
}
