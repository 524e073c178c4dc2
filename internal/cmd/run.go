package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/reverielabs/reverie/internal/config"
	"github.com/reverielabs/reverie/internal/connector"
	"github.com/reverielabs/reverie/internal/controller"
	"github.com/reverielabs/reverie/internal/event"
	"github.com/reverielabs/reverie/internal/logging"
	"github.com/reverielabs/reverie/internal/sched"
	"github.com/reverielabs/reverie/internal/wakelock"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start and supervise an ambient service session",
	Long: `Start an ambient service session and supervise it until it ends.

The service process is bound, connected and attached; watchdogs tear it
down if it is slow to connect or refuses to finish. The first SIGINT or
SIGTERM asks the service to finish gracefully; a second one forces
immediate teardown. SIGUSR1 dumps supervisor state to stderr.

Examples:
  # Supervise the service configured in the config file
  reverie run

  # Supervise a specific service executable
  reverie run --component /usr/libexec/agentd

  # Try a service out without announcing the session
  reverie run --component /usr/libexec/agentd --preview`,
	RunE: runRun,
}

var runPreview bool

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("component", "", "path to the service executable")
	runCmd.Flags().Bool("can-doze", false, "allow the service to run in low-power mode")
	runCmd.Flags().Int("user", 0, "user the service runs on behalf of")
	runCmd.Flags().BoolVar(&runPreview, "preview", false, "run without announcing the session")

	_ = viper.BindPFlag("service.component", runCmd.Flags().Lookup("component"))
	_ = viper.BindPFlag("service.can_doze", runCmd.Flags().Lookup("can-doze"))
	_ = viper.BindPFlag("service.user_id", runCmd.Flags().Lookup("user"))
}

// endedListener signals the run loop once the supervised session is over.
type endedListener struct {
	ch chan string
}

func (l *endedListener) OnSessionEnded(token string) {
	select {
	case l.ch <- token:
	default:
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.Service.Component == "" {
		return fmt.Errorf("no service component configured (use --component or service.component)")
	}

	logger := logging.Nop()
	if cfg.Logging.Enabled {
		logger, err = logging.New(cfg.Logging.Dir, cfg.Logging.Level)
		if err != nil {
			return fmt.Errorf("failed to set up logging: %w", err)
		}
		defer logger.Close()
	}

	lockDir := cfg.Lock.ResolveLockDir(config.DataDir())
	if err := os.MkdirAll(lockDir, 0o755); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}
	if cfg.Lock.CleanStaleOnStart {
		if n, err := wakelock.CleanStale(lockDir, logger); err != nil {
			logger.Warn("stale lock cleanup failed", "error", err.Error())
		} else if n > 0 {
			logger.Info("cleaned stale locks", "count", n)
		}
	}

	loop := sched.New()
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	go func() { _ = loop.Run(ctx) }()

	bus := event.NewBus()
	bus.SubscribeAll(func(e event.Event) {
		logger.Info("broadcast", "event", e.EventType())
	})

	listener := &endedListener{ch: make(chan string, 1)}
	ctrl := controller.New(
		loop,
		connector.NewProcessConnector(logger),
		&wakelock.FileFactory{Dir: lockDir, Logger: logger},
		bus,
		listener,
		logger,
		controller.Policy{
			ConnectTimeout:      cfg.Timeouts.ConnectTimeout(),
			FinishTimeout:       cfg.Timeouts.FinishTimeout(),
			LockReleaseFallback: cfg.Timeouts.LockReleaseFallback(),
		},
	)

	// Watchdog durations follow config file edits while the session runs.
	if path := viper.ConfigFileUsed(); path != "" {
		watcher, err := config.NewWatcher(path, logger, func(cfg *config.Config) {
			_ = ctrl.UpdatePolicy(controller.Policy{
				ConnectTimeout:      cfg.Timeouts.ConnectTimeout(),
				FinishTimeout:       cfg.Timeouts.FinishTimeout(),
				LockReleaseFallback: cfg.Timeouts.LockReleaseFallback(),
			})
		})
		if err != nil {
			logger.Warn("config watcher unavailable", "error", err.Error())
		} else {
			defer watcher.Close()
		}
	}

	target := connector.Target{
		Component: cfg.Service.Component,
		Preview:   runPreview || cfg.Privacy.SuppressBroadcasts,
		CanDoze:   cfg.Service.CanDoze,
		UserID:    cfg.Service.UserID,
	}
	token, err := ctrl.StartSession(target)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	fmt.Printf("Session %s started (%s)\n", token, target.Component)

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM, syscall.SIGUSR1)
	defer signal.Stop(sigCh)

	stopping := false
	for {
		select {
		case <-listener.ch:
			fmt.Printf("Session %s ended\n", token)
			return nil

		case sig := <-sigCh:
			if sig == syscall.SIGUSR1 {
				if err := ctrl.Dump(os.Stderr); err != nil {
					logger.Warn("dump failed", "error", err.Error())
				}
				continue
			}
			if !stopping {
				stopping = true
				fmt.Println("Stopping session (signal again to force)...")
				if err := ctrl.StopSession(false, "shutdown requested"); err != nil {
					return err
				}
				continue
			}
			if err := ctrl.StopSession(true, "forced shutdown"); err != nil {
				return err
			}
		}
	}
}
