package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"shift-staffing-client/services"
)

var (
	notificationsUnread bool
	notificationsUrgent bool
	readAllCategory     string
)

var notificationsCmd = &cobra.Command{
	Use:     "notifications",
	Aliases: []string{"inbox"},
	Short:   "List notifications",
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		nc := e.Notifications
		if err := nc.Load(ctx); err != nil {
			return err
		}
		nc.ClearExpired(time.Now())

		items := nc.Notifications()
		switch {
		case notificationsUrgent:
			items = nc.UnreadUrgent()
		case notificationsUnread:
			items = nc.Unread()
		}
		if jsonOut {
			return printJSON(items)
		}
		renderNotifications(items)

		count, estimated := nc.UnreadCount()
		suffix := ""
		if estimated {
			suffix = " (at least)"
		}
		fmt.Fprintln(out, mutedStyle.Render(fmt.Sprintf("%d unread%s, %d urgent", count, suffix, nc.UrgentUnreadCount())))
		return nil
	}),
}

var readCmd = &cobra.Command{
	Use:   "read <notification-id>",
	Short: "Mark a notification as read",
	Args:  cobra.ExactArgs(1),
	RunE: withEngine(func(ctx context.Context, e *services.Engine, args []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := e.Notifications.MarkAsRead(ctx, id); err != nil {
			return err
		}
		fmt.Fprintf(out, "Notification %d marked read\n", id)
		return nil
	}),
}

var readAllCmd = &cobra.Command{
	Use:   "read-all",
	Short: "Mark every notification, or one category, as read",
	RunE: withEngine(func(ctx context.Context, e *services.Engine, _ []string) error {
		if err := requireSession(e); err != nil {
			return err
		}
		if err := e.Notifications.MarkAllAsRead(ctx, readAllCategory); err != nil {
			return err
		}
		count, _ := e.Notifications.UnreadCount()
		fmt.Fprintf(out, "Marked read, %d unread left\n", count)
		return nil
	}),
}

func init() {
	notificationsCmd.Flags().BoolVar(&notificationsUnread, "unread", false, "Only unread notifications")
	notificationsCmd.Flags().BoolVar(&notificationsUrgent, "urgent", false, "Only unread urgent notifications")
	readAllCmd.Flags().StringVar(&readAllCategory, "category", "", "Category to clear, or \"urgent\"")

	rootCmd.AddCommand(notificationsCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(readAllCmd)
}
