package domain

import "time"

// StaffMember is an entry on the admin-managed personnel roster. UserID links the entry to a
// personnel login account when one exists. SourcePersonnelID records the personnel id an
// entry was imported from when no login was found; both are immutable once set.
type StaffMember struct {
	ID                StaffID
	UserID            *UserID
	SourcePersonnelID *UserID

	Name   string
	Email  string
	Active bool

	CreatedAt time.Time
	UpdatedAt time.Time
}

// StaffStats are derived from delivery history; they are never stored.
type StaffStats struct {
	Assigned       int
	Completed      int
	LastAssignedAt *time.Time
}

// RosterEntry pairs a staff member with its derived stats.
type RosterEntry struct {
	StaffMember
	Stats StaffStats
}

// PersonnelID is the delivery personnel id this entry stands for, if known.
func (m StaffMember) PersonnelID() *UserID {
	if m.UserID != nil {
		return m.UserID
	}
	return m.SourcePersonnelID
}

// ClaimedPersonnel returns the personnel ids owned by roster entries through a login link or
// an import source.
func ClaimedPersonnel(ms []StaffMember) map[UserID]bool {
	out := make(map[UserID]bool, len(ms))
	for _, m := range ms {
		if id := m.PersonnelID(); id != nil {
			out[*id] = true
		}
	}
	return out
}

// MatchesDelivery reports whether d is attributed to this staff member. Entries with a
// personnel id match on it. Others fall back to the personnel name, skipping deliveries
// whose personnel is claimed by another entry.
func (m StaffMember) MatchesDelivery(d Delivery, claimed map[UserID]bool) bool {
	if id := m.PersonnelID(); id != nil {
		return d.IsAssignedTo(*id)
	}
	if d.PersonnelName == nil || *d.PersonnelName != m.Name {
		return false
	}
	return d.PersonnelID == nil || !claimed[*d.PersonnelID]
}

// ComputeStaffStats derives per-member stats from the delivery list. claimed comes from
// ClaimedPersonnel over the whole roster. LastAssignedAt uses the most recent requestedAt
// among assigned deliveries.
func ComputeStaffStats(m StaffMember, claimed map[UserID]bool, ds []Delivery) StaffStats {
	var st StaffStats
	for _, d := range ds {
		if !m.MatchesDelivery(d, claimed) {
			continue
		}
		st.Assigned++
		if d.Status == StatusDelivered {
			st.Completed++
		}
		if st.LastAssignedAt == nil || d.RequestedAt.After(*st.LastAssignedAt) {
			t := d.RequestedAt
			st.LastAssignedAt = &t
		}
	}
	return st
}

// ComputeRosterStats pairs every member with its stats.
func ComputeRosterStats(ms []StaffMember, ds []Delivery) []RosterEntry {
	claimed := ClaimedPersonnel(ms)
	out := make([]RosterEntry, 0, len(ms))
	for _, m := range ms {
		out = append(out, RosterEntry{StaffMember: m, Stats: ComputeStaffStats(m, claimed, ds)})
	}
	return out
}
