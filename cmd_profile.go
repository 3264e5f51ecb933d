package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"shift-staffing-client/models"
	"shift-staffing-client/services"
)

var (
	availFrom      string
	availUntil     string
	availDays      []string
	availPreferred []string

	clockLat   float64
	clockLng   float64
	clockNotes string
	clockCount int
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Today's shift, what is coming up and urgent alerts",
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		err := e.Dashboard.Load(ctx)
		view := e.Dashboard.View()
		if jsonOut {
			return printJSON(view)
		}
		fmt.Fprintln(out, renderDashboard(view, time.Now()))
		if view.TodayShift == nil && err != nil {
			return err
		}
		return nil
	}),
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show your nurse profile",
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		nurse, err := e.Profile.Nurse(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(nurse)
		}
		fmt.Fprintln(out, headerStyle.Render(nurse.User.Name))
		fmt.Fprintf(out, "Employee %s, %s, %s\n", nurse.EmployeeID, nurse.Specialization, nurse.EmploymentType)
		fmt.Fprintf(out, "License %s, up to %dh per week\n", nurse.LicenseNumber, nurse.MaxHoursPerWeek)
		return nil
	}),
}

var availabilityCmd = &cobra.Command{
	Use:   "availability",
	Short: "Show or replace your weekly availability",
	Long: `Without flags, prints the current weekly availability. With --from and
--until, replaces it: each --day is "monday=07:00-19:00", and days not listed
are sent as unavailable.`,
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		if availFrom == "" && availUntil == "" && len(availDays) == 0 {
			entries, err := e.Availability.Get(ctx)
			if err != nil {
				return err
			}
			if jsonOut {
				return printJSON(entries)
			}
			renderAvailability(entries)
			return nil
		}

		week, err := parseWeek()
		if err != nil {
			return err
		}
		entries, err := e.Availability.Update(ctx, week)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(entries)
		}
		renderAvailability(entries)
		return nil
	}),
}

func parseWeek() (services.WeeklyAvailability, error) {
	week := services.WeeklyAvailability{
		EffectiveFrom:  availFrom,
		EffectiveUntil: availUntil,
		Days:           make(map[string]services.DaySchedule),
	}
	for _, entry := range availDays {
		day, hours, ok := strings.Cut(entry, "=")
		start, end, ok2 := strings.Cut(hours, "-")
		if !ok || !ok2 {
			return week, fmt.Errorf("bad --day %q, want day=HH:MM-HH:MM", entry)
		}
		day = strings.ToLower(strings.TrimSpace(day))
		week.Days[day] = services.DaySchedule{IsAvailable: true, StartTime: start, EndTime: end}
	}
	for _, day := range availPreferred {
		day = strings.ToLower(strings.TrimSpace(day))
		d, ok := week.Days[day]
		if !ok {
			return week, fmt.Errorf("--preferred %s needs a matching --day", day)
		}
		d.IsPreferred = true
		week.Days[day] = d
	}
	return week, nil
}

var clockInCmd = &cobra.Command{
	Use:   "clock-in <assignment-id>",
	Short: "Record arrival for an assignment",
	Args:  cobra.ExactArgs(1),
}

func runClockIn(ctx context.Context, e *services.Engine, args []string) error {
	if err := requireSession(e); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	req := models.ClockInRequest{AssignmentID: id, Notes: clockNotes}
	if cmdFlagChanged(clockInCmd, "lat") || cmdFlagChanged(clockInCmd, "lng") {
		req.LocationLat, req.LocationLng = &clockLat, &clockLng
	}
	resp, err := e.Attendance.ClockIn(ctx, req)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(resp)
	}
	msg := fmt.Sprintf("Clocked in at %s", resp.ClockInTime.Local().Format("15:04"))
	if resp.LateMinutes > 0 {
		msg += fmt.Sprintf(", %d minutes late", resp.LateMinutes)
	}
	fmt.Fprintln(out, okStyle.Render(msg))
	for _, w := range resp.Warnings {
		fmt.Fprintln(out, mutedStyle.Render("  "+w))
	}
	return nil
}

var clockOutCmd = &cobra.Command{
	Use:   "clock-out <assignment-id>",
	Short: "Record departure for an assignment",
	Args:  cobra.ExactArgs(1),
}

func runClockOut(ctx context.Context, e *services.Engine, args []string) error {
	if err := requireSession(e); err != nil {
		return err
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	req := models.ClockOutRequest{AssignmentID: id, Notes: clockNotes}
	if cmdFlagChanged(clockOutCmd, "patients") {
		req.PatientCountEnd = &clockCount
	}
	resp, err := e.Attendance.ClockOut(ctx, req)
	if err != nil {
		return err
	}
	if jsonOut {
		return printJSON(resp)
	}
	fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Clocked out after %.2fh", resp.TotalHours)))
	if resp.OvertimeMinutes > 0 {
		fmt.Fprintf(out, "  %d minutes overtime\n", resp.OvertimeMinutes)
	}
	for _, v := range resp.Violations {
		fmt.Fprintln(out, urgentStyle.Render("  "+v))
	}
	return nil
}

var attendanceCmd = &cobra.Command{
	Use:   "attendance",
	Short: "List your attendance records",
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		records, err := e.Attendance.Records(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(records)
		}
		rows := make([][]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, []string{
				fmt.Sprint(r.RecordID),
				fmt.Sprint(r.AssignmentID),
				r.ScheduledStart.Local().Format(timeLayout),
				r.Status,
				fmt.Sprint(r.LateMinutes),
				fmt.Sprint(r.OvertimeMinutes),
			})
		}
		printRows([]string{"RECORD", "ASSIGNMENT", "SCHEDULED", "STATUS", "LATE", "OVERTIME"}, rows)
		return nil
	}),
}

func cmdFlagChanged(cmd *cobra.Command, name string) bool {
	f := cmd.Flags().Lookup(name)
	return f != nil && f.Changed
}

func init() {
	clockInCmd.RunE = withEngine(runClockIn)
	clockOutCmd.RunE = withEngine(runClockOut)

	availabilityCmd.Flags().StringVar(&availFrom, "from", "", "Effective from, YYYY-MM-DD")
	availabilityCmd.Flags().StringVar(&availUntil, "until", "", "Effective until, YYYY-MM-DD")
	availabilityCmd.Flags().StringArrayVar(&availDays, "day", nil, "Available day as day=HH:MM-HH:MM (repeatable)")
	availabilityCmd.Flags().StringSliceVar(&availPreferred, "preferred", nil, "Days to mark preferred")

	for _, c := range []*cobra.Command{clockInCmd, clockOutCmd} {
		c.Flags().StringVar(&clockNotes, "notes", "", "Free text note")
	}
	clockInCmd.Flags().Float64Var(&clockLat, "lat", 0, "Latitude")
	clockInCmd.Flags().Float64Var(&clockLng, "lng", 0, "Longitude")
	clockOutCmd.Flags().IntVar(&clockCount, "patients", 0, "Patients under your care at the end of the shift")

	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(availabilityCmd)
	rootCmd.AddCommand(clockInCmd)
	rootCmd.AddCommand(clockOutCmd)
	rootCmd.AddCommand(attendanceCmd)
}
