package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"shift-staffing-client/models"
	"shift-staffing-client/services"
	"shift-staffing-client/utils"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#5B8DEF"))
	urgentStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF6B6B"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#AAAAAA"))
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#59C17A"))
	boxStyle    = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#444444")).
			Padding(0, 1)
)

const timeLayout = "Mon Jan 2 15:04"

var out io.Writer = os.Stdout

func printJSON(v interface{}) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printRows renders rows as left aligned columns under a styled header.
func printRows(header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if w := lipgloss.Width(cell); w > widths[i] {
				widths[i] = w
			}
		}
	}

	line := func(cells []string, style *lipgloss.Style) string {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			pad := strings.Repeat(" ", widths[i]-lipgloss.Width(cell))
			if style != nil {
				cell = style.Render(cell)
			}
			parts[i] = cell + pad
		}
		return strings.TrimRight(strings.Join(parts, "  "), " ")
	}

	fmt.Fprintln(out, line(header, &headerStyle))
	for _, row := range rows {
		fmt.Fprintln(out, line(row, nil))
	}
	if len(rows) == 0 {
		fmt.Fprintln(out, mutedStyle.Render("(none)"))
	}
}

func shiftWindow(s models.Shift) string {
	return fmt.Sprintf("%s - %s", s.StartTime.Local().Format(timeLayout), s.EndTime.Local().Format("15:04"))
}

func departmentLabel(d models.Department) string {
	if d.Code != "" && d.Code != d.Name {
		return fmt.Sprintf("%s (%s)", d.Name, d.Code)
	}
	return d.Name
}

func renderShifts(shifts []models.Shift) {
	rows := make([][]string, 0, len(shifts))
	for _, s := range shifts {
		urgent := ""
		if s.IsUrgent() {
			urgent = "URGENT"
		}
		rate := "-"
		if s.HourlyRate != nil {
			rate = fmt.Sprintf("$%.2f", *s.HourlyRate)
		}
		rows = append(rows, []string{
			fmt.Sprint(s.ShiftID),
			s.Title(),
			departmentLabel(s.Department),
			s.LicenseType,
			shiftWindow(s),
			fmt.Sprintf("%d/%d", s.AssignedNurses, s.RequiredNurses),
			rate,
			urgent,
		})
	}
	printRows([]string{"ID", "TYPE", "DEPARTMENT", "LICENSE", "WHEN", "STAFF", "RATE", ""}, rows)
}

func renderBookings(bookings []models.Booking) {
	rows := make([][]string, 0, len(bookings))
	for _, b := range bookings {
		when := "-"
		if b.Shift != nil {
			when = shiftWindow(*b.Shift)
		}
		rows = append(rows, []string{b.ID, fmt.Sprint(b.ShiftID), string(b.Status), when, string(b.Sync)})
	}
	printRows([]string{"BOOKING", "SHIFT", "STATUS", "WHEN", "SYNC"}, rows)
}

func renderSwaps(swaps []services.SwapView) {
	rows := make([][]string, 0, len(swaps))
	for _, s := range swaps {
		target := "open"
		if s.TargetNurseID != nil {
			target = fmt.Sprintf("nurse %d", *s.TargetNurseID)
		}
		rows = append(rows, []string{
			fmt.Sprint(s.SwapID),
			string(s.SwapType),
			fmt.Sprint(s.OriginalShiftID),
			target,
			string(s.Display),
			s.ExpiresAt.Local().Format(timeLayout),
			s.Reason,
		})
	}
	printRows([]string{"ID", "TYPE", "SHIFT", "WITH", "STATUS", "EXPIRES", "REASON"}, rows)
}

func renderOpportunities(opps []models.SwapOpportunity) {
	rows := make([][]string, 0, len(opps))
	for _, o := range opps {
		shift := fmt.Sprint(o.SwapRequest.OriginalShiftID)
		if o.SwapRequest.OriginalShift != nil {
			shift += " " + shiftWindow(*o.SwapRequest.OriginalShift)
		}
		rows = append(rows, []string{
			fmt.Sprint(o.SwapRequest.SwapID),
			shift,
			fmt.Sprintf("%.0f%%", o.CompatibilityScore*100),
			strings.Join(o.MatchReasons, "; "),
		})
	}
	printRows([]string{"SWAP", "SHIFT", "MATCH", "WHY"}, rows)
}

func renderNotifications(items []models.Notification) {
	rows := make([][]string, 0, len(items))
	for _, n := range items {
		marker := " "
		if !n.IsRead {
			marker = "*"
		}
		priority := string(n.Priority)
		if n.IsUrgent() {
			priority = urgentStyle.Render(priority)
		}
		rows = append(rows, []string{
			marker,
			fmt.Sprint(n.NotificationID),
			priority,
			n.Category,
			n.Title,
			n.SentAt.Local().Format(timeLayout),
		})
	}
	printRows([]string{"", "ID", "PRIORITY", "CATEGORY", "TITLE", "SENT"}, rows)
}

func renderAvailability(entries []models.NurseAvailability) {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		day, _ := services.WeekdayName(e.DayOfWeek)
		hours := mutedStyle.Render("unavailable")
		if e.IsAvailable {
			hours = e.StartTime + " - " + e.EndTime
		}
		preferred := ""
		if e.IsPreferred {
			preferred = okStyle.Render("preferred")
		}
		rows = append(rows, []string{day, hours, preferred})
	}
	printRows([]string{"DAY", "HOURS", ""}, rows)
}

func renderDashboard(v services.DashboardView, now time.Time) string {
	var b strings.Builder

	name := "nurse"
	if v.Nurse != nil && v.Nurse.User.Name != "" {
		name = v.Nurse.User.Name
	}
	fmt.Fprintln(&b, headerStyle.Render("Hello, "+name))

	switch {
	case v.CurrentShift != nil:
		left := v.CurrentShift.EndTime.Sub(now)
		fmt.Fprintf(&b, "On shift: %s, %s left\n", departmentLabel(v.CurrentShift.Department), utils.FormatDuration(left))
	case v.TodayShift != nil:
		fmt.Fprintf(&b, "Today: %s %s\n", v.TodayShift.Title(), shiftWindow(*v.TodayShift))
	default:
		fmt.Fprintln(&b, mutedStyle.Render("No shift today"))
	}

	unread := fmt.Sprint(v.UnreadCount)
	if v.UnreadEstimated {
		unread += "+"
	}
	fmt.Fprintf(&b, "Unread notifications: %s\n", unread)

	if len(v.UrgentAlerts) > 0 {
		fmt.Fprintln(&b, urgentStyle.Render("Urgent"))
		for _, n := range v.UrgentAlerts {
			fmt.Fprintf(&b, "  %s\n", n.Title)
		}
	}

	fmt.Fprintln(&b, headerStyle.Render("Upcoming"))
	if len(v.UpcomingShifts) == 0 {
		fmt.Fprintln(&b, mutedStyle.Render("  nothing scheduled"))
	}
	for _, s := range v.UpcomingShifts {
		fmt.Fprintf(&b, "  %s  %s  %s (%.1fh)\n", shiftWindow(s), departmentLabel(s.Department), s.Title(), s.Hours())
	}
	if v.Err != nil {
		fmt.Fprintln(&b, urgentStyle.Render("Some data could not be loaded: "+v.Err.Error()))
	}

	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
