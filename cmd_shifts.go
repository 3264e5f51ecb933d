package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"shift-staffing-client/services"
)

var (
	loginEmail    string
	loginPassword string

	shiftSearch      string
	shiftUrgent      bool
	shiftDepartments []string
	shiftLicenses    []string
	shiftFrom        string
	shiftTo          string
	shiftMaxDistance float64
	shiftClear       bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in and remember the session locally",
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		password := loginPassword
		if password == "" {
			password = os.Getenv("STAFFING_PASSWORD")
		}
		resp, err := e.Login(ctx, loginEmail, password)
		if err != nil {
			return err
		}
		if err := saveSession(ctx, e); err != nil {
			return fmt.Errorf("save session: %w", err)
		}
		if jsonOut {
			return printJSON(resp.User)
		}
		fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Signed in as %s (nurse %d)", resp.User.Name, resp.NurseID)))
		return nil
	}),
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the session and every locally stored record",
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		err := e.Logout(ctx)
		if derr := e.Store.Delete(ctx, sessionKey); derr != nil {
			log.Warn("delete saved session", zap.Error(derr))
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(out, "Signed out")
		return nil
	}),
}

var shiftsCmd = &cobra.Command{
	Use:   "shifts",
	Short: "Browse open shifts",
	Long: `Lists the shift catalog through the saved filters. Filter flags replace
the saved filters and are remembered for the next run; --clear resets them.`,
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		if err := e.Shifts.LoadAvailableShifts(ctx); err != nil {
			return err
		}

		if shiftClear {
			e.Shifts.ClearFilters()
		} else if filtersChanged() {
			f := services.DefaultFilters()
			f.LicenseTypes = append(f.LicenseTypes, shiftLicenses...)
			f.Departments = append(f.Departments, shiftDepartments...)
			f.MaxDistance = shiftMaxDistance
			if shiftUrgent {
				urgent := true
				f.IsUrgent = &urgent
			}
			if shiftFrom != "" || shiftTo != "" {
				f.DateRange = &services.DateRange{Start: shiftFrom, End: shiftTo}
			}
			e.Shifts.SetFilters(f)
		}
		e.Shifts.SetSearchQuery(shiftSearch)

		shifts := e.Shifts.FilteredShifts()
		if jsonOut {
			return printJSON(shifts)
		}
		renderShifts(shifts)
		if n := len(e.Shifts.AvailableShifts()) - len(shifts); n > 0 {
			fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d more hidden by filters", n)))
		}
		return nil
	}),
}

func filtersChanged() bool {
	return shiftUrgent || len(shiftDepartments) > 0 || len(shiftLicenses) > 0 ||
		shiftFrom != "" || shiftTo != "" || shiftMaxDistance > 0
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule [days]",
	Short: "Show your own shifts for the coming days",
	Args:  cobra.MaximumNArgs(1),
	RunE: withEngine(func(ctx context.Context, e *services.Engine, args []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		days := 7
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n <= 0 {
				return fmt.Errorf("days must be a positive number")
			}
			days = n
		}
		now := time.Now()
		if err := e.Shifts.LoadSchedule(ctx, now.Add(-12*time.Hour), now.AddDate(0, 0, days)); err != nil {
			return err
		}
		schedule := e.Shifts.Schedule()
		if jsonOut {
			return printJSON(schedule)
		}
		renderShifts(schedule)
		return nil
	}),
}

var applyCmd = &cobra.Command{
	Use:   "apply <shift-id>",
	Short: "Apply for an open shift",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, e *services.Engine, args []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := e.Shifts.LoadMyBookings(ctx); err != nil {
			log.Warn("could not refresh bookings", zap.Error(err))
		}
		booking, err := e.Shifts.ApplyForShift(ctx, id)
		if services.IsConflict(err) {
			return fmt.Errorf("shift %d is no longer available: %w", id, err)
		}
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(booking)
		}
		fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Applied for shift %d, booking %s (%s)", id, booking.ID, booking.Status)))
		return nil
	}),
}

var cancelBookingCmd = &cobra.Command{
	Use:   "cancel-booking <booking-id>",
	Short: "Cancel one of your bookings",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, e *services.Engine, args []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		if err := e.Shifts.LoadMyBookings(ctx); err != nil {
			log.Warn("could not refresh bookings", zap.Error(err))
		}
		if err := e.Shifts.CancelBooking(ctx, args[0]); err != nil {
			return err
		}
		fmt.Fprintf(out, "Booking %s cancelled\n", args[0])
		return nil
	}),
}

var bookingsCmd = &cobra.Command{
	Use:   "bookings",
	Short: "List your bookings",
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		if err := e.Shifts.LoadMyBookings(ctx); err != nil {
			return err
		}
		bookings := e.Shifts.Bookings()
		if jsonOut {
			return printJSON(bookings)
		}
		renderBookings(bookings)
		return nil
	}),
}

func parseID(s string) (uint, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return uint(n), nil
}

func init() {
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email (required)")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password (or set STAFFING_PASSWORD)")
	loginCmd.MarkFlagRequired("email")

	shiftsCmd.Flags().StringVarP(&shiftSearch, "search", "s", "", "Match department, facility, license or notes")
	shiftsCmd.Flags().BoolVar(&shiftUrgent, "urgent", false, "Only urgent shifts")
	shiftsCmd.Flags().StringSliceVar(&shiftDepartments, "department", nil, "Department name or code (repeatable)")
	shiftsCmd.Flags().StringSliceVar(&shiftLicenses, "license", nil, "License type (repeatable)")
	shiftsCmd.Flags().StringVar(&shiftFrom, "from", "", "Earliest shift date, YYYY-MM-DD")
	shiftsCmd.Flags().StringVar(&shiftTo, "to", "", "Latest shift date, YYYY-MM-DD")
	shiftsCmd.Flags().Float64Var(&shiftMaxDistance, "max-distance", 0, "Maximum distance in km")
	shiftsCmd.Flags().BoolVar(&shiftClear, "clear", false, "Reset saved filters")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
	rootCmd.AddCommand(shiftsCmd)
	rootCmd.AddCommand(scheduleCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(cancelBookingCmd)
	rootCmd.AddCommand(bookingsCmd)
}
