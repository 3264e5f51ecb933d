package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"shift-staffing-client/jobs"
	"shift-staffing-client/models"
	"shift-staffing-client/routes"
	ws "shift-staffing-client/websocket"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stay connected and print notifications as they arrive",
	Long: `Opens the push channel and keeps unread counts and the dashboard fresh
until interrupted. Shift and swap updates invalidate the local caches.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(0)
		defer cancel()

		e, err := openEngine(ctx)
		if err != nil {
			return err
		}
		defer e.Close()
		if err := requireSession(e); err != nil {
			return err
		}

		if err := e.Dashboard.Load(ctx); err != nil {
			log.Warn("initial dashboard load", zap.Error(err))
		}
		fmt.Fprintln(out, renderDashboard(e.Dashboard.View(), time.Now()))

		pushURL, err := pushEndpoint()
		if err != nil {
			return err
		}
		listener := ws.NewListener(ws.ListenerOptions{
			URL:    pushURL,
			Tokens: e.Session,
			Sinks: ws.Sinks{
				Notifications: printingSink{next: e.Notifications},
				Shifts:        e.Shifts,
				Swaps:         e.Swaps,
			},
			OnConnect: func() {
				e.Notifications.Refresh()
				e.Dashboard.Refresh()
			},
			Logger: log,
		})

		job := jobs.NewRefreshJob(e.Notifications, e.Dashboard, cfg.Jobs, log)
		job.Start(ctx)
		defer job.Stop()

		g, gctx := errgroup.WithContext(ctx)
		if cfg.Push.Enabled {
			g.Go(func() error {
				return listener.Run(gctx)
			})
		} else {
			log.Info("push disabled, polling only")
			g.Go(func() error {
				<-gctx.Done()
				return nil
			})
		}
		err = g.Wait()
		if errors.Is(err, ws.ErrRejected) {
			return fmt.Errorf(`%w, run "staffing login" again`, err)
		}
		return err
	},
}

// pushEndpoint is the configured push URL, or the API base URL with a
// websocket scheme and the notifications path.
func pushEndpoint() (string, error) {
	if cfg.Push.URL != "" {
		return cfg.Push.URL, nil
	}
	u, err := url.Parse(cfg.API.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/notifications"
	return u.String(), nil
}

// printingSink echoes pushed notifications before handing them on.
type printingSink struct {
	next ws.NotificationSink
}

func (p printingSink) Receive(n models.Notification) {
	line := fmt.Sprintf("[%s] %s: %s", n.Priority, n.Title, n.Message)
	if n.IsUrgent() {
		line = urgentStyle.Render(line)
	}
	fmt.Fprintln(out, line)
	p.next.Receive(n)
}

var serveMockCmd = &cobra.Command{
	Use:   "serve-mock",
	Short: "Run a seeded staffing service for local use",
	Long: `Serves the staffing REST API and push channel from memory, seeded with
three nurses, a week of shifts and a few notifications. Every seeded
account uses the password "` + routes.SeedPassword + `".`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := signalContext(0)
		defer cancel()

		if cfg.MockServer.GinMode == "release" {
			gin.SetMode(gin.ReleaseMode)
		}
		mock := routes.NewMockServer(routes.MockOptions{
			JWTSecret: cfg.MockServer.JWTSecret,
			Logger:    log,
		})
		mock.Start()
		defer mock.Close()

		srv := &http.Server{
			Addr:              "0.0.0.0:" + cfg.MockServer.Port,
			Handler:           mock.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			log.Info("mock service listening", zap.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return srv.Shutdown(shutdownCtx)
		})
		return g.Wait()
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveMockCmd)
}
