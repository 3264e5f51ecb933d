package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"shift-staffing-client/models"
	"shift-staffing-client/services"
)

var (
	swapType           string
	swapReason         string
	swapExpiresIn      int
	swapTargetNurse    uint
	swapRequestedShift uint
)

var swapsCmd = &cobra.Command{
	Use:     "swaps",
	Aliases: []string{"swap"},
	Short:   "List swap requests you made or received",
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		swaps, err := e.Swaps.ListMySwapRequests(ctx)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(swaps)
		}
		renderSwaps(swaps)
		return nil
	}),
}

var swapCreateCmd = &cobra.Command{
	Use:   "create <shift-id>",
	Short: "Offer one of your shifts for a swap",
	Long: `Creates a swap request for a shift you are assigned to. A full_shift swap
names both --with-nurse and --for-shift; an open_request needs neither.`,
	Args: cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, e *services.Engine, args []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		shiftID, err := parseID(args[0])
		if err != nil {
			return err
		}

		in := services.SwapInput{
			OriginalShiftID: shiftID,
			SwapType:        models.SwapType(swapType),
			Reason:          swapReason,
			ExpiresInHours:  swapExpiresIn,
		}
		if swapTargetNurse != 0 {
			in.TargetNurseID = &swapTargetNurse
		}
		if swapRequestedShift != 0 {
			in.RequestedShiftID = &swapRequestedShift
		}

		req, err := e.Swaps.CreateSwapRequest(ctx, in)
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(req)
		}
		fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Swap request %d created, expires %s",
			req.SwapID, req.ExpiresAt.Local().Format(timeLayout))))
		return nil
	}),
}

var swapAcceptCmd = &cobra.Command{
	Use:   "accept <swap-id>",
	Short: "Accept a swap request addressed to you",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, e *services.Engine, args []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if _, err := e.Swaps.ListMySwapRequests(ctx); err != nil {
			return err
		}
		if err := e.Swaps.AcceptSwapRequest(ctx, id); err != nil {
			return err
		}
		fmt.Fprintln(out, okStyle.Render(fmt.Sprintf("Swap request %d accepted", id)))
		return nil
	}),
}

var swapCancelCmd = &cobra.Command{
	Use:   "cancel <swap-id>",
	Short: "Withdraw one of your swap requests",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, e *services.Engine, args []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if _, err := e.Swaps.ListMySwapRequests(ctx); err != nil {
			return err
		}
		if err := e.Swaps.CancelSwapRequest(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "Swap request %d cancelled\n", id)
		return nil
	}),
}

var opportunitiesCmd = &cobra.Command{
	Use:   "opportunities",
	Short: "Show swap requests you could take, best match first",
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		opps, err := e.Swaps.ListSwapOpportunities(ctx, e.Session.NurseID())
		if err != nil {
			return err
		}
		if jsonOut {
			return printJSON(opps)
		}
		renderOpportunities(opps)
		return nil
	}),
}

func init() {
	swapCreateCmd.Flags().StringVar(&swapType, "type", string(models.SwapTypeOpenRequest), "full_shift, partial_shift or open_request")
	swapCreateCmd.Flags().StringVar(&swapReason, "reason", "", "Why you need the swap (required)")
	swapCreateCmd.Flags().IntVar(&swapExpiresIn, "expires-in", 0, "Hours until the request expires (default 24)")
	swapCreateCmd.Flags().UintVar(&swapTargetNurse, "with-nurse", 0, "Nurse to swap with")
	swapCreateCmd.Flags().UintVar(&swapRequestedShift, "for-shift", 0, "Shift you want in exchange")

	swapsCmd.AddCommand(swapCreateCmd)
	swapsCmd.AddCommand(swapAcceptCmd)
	swapsCmd.AddCommand(swapCancelCmd)
	rootCmd.AddCommand(swapsCmd)
	rootCmd.AddCommand(opportunitiesCmd)
}
