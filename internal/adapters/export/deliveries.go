// Package export renders admin reports as Excel workbooks.
package export

import (
	"fmt"
	"strconv"
	"time"

	"github.com/campus-logistics/delivery-tracker-api/internal/domain"
)

const (
	DeliveriesSheet = "Deliveries"
	StaffSheet      = "Staff"

	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var (
	deliveryHeader = []string{"ID", "Student", "Source", "Destination", "Status", "Personnel", "Requested At", "Updated At", "Notes", "Contact Phone"}
	staffHeader    = []string{"ID", "Name", "Email", "Active", "Linked Account", "Assigned", "Completed", "Last Assigned At"}
)

// Report builds the admin workbook: one sheet of deliveries and one of the staff roster.
func Report(ds []domain.Delivery, roster []domain.RosterEntry) (*Workbook, error) {
	deliveries := Sheet{Title: DeliveriesSheet, Header: deliveryHeader}
	for _, d := range ds {
		deliveries.Rows = append(deliveries.Rows, []string{
			string(d.ID),
			d.StudentName,
			d.Source,
			d.Destination,
			string(d.Status),
			deref(d.PersonnelName),
			stamp(d.RequestedAt),
			stamp(d.UpdatedAt),
			deref(d.Notes),
			deref(d.ContactPhone),
		})
	}

	staff := Sheet{Title: StaffSheet, Header: staffHeader}
	for _, e := range roster {
		last := ""
		if e.Stats.LastAssignedAt != nil {
			last = stamp(*e.Stats.LastAssignedAt)
		}
		linked := ""
		if e.UserID != nil {
			linked = string(*e.UserID)
		}
		staff.Rows = append(staff.Rows, []string{
			string(e.ID),
			e.Name,
			e.Email,
			strconv.FormatBool(e.Active),
			linked,
			strconv.Itoa(e.Stats.Assigned),
			strconv.Itoa(e.Stats.Completed),
			last,
		})
	}

	return NewWorkbook([]Sheet{deliveries, staff})
}

// Filename names a report generated at now.
func Filename(now time.Time) string {
	return fmt.Sprintf("deliveries_%s.xlsx", now.UTC().Format("2006-01-02"))
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
