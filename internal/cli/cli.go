// Package cli runs the member-side session core from a terminal: sign in,
// device pairing, approval and a long-running watch that enforces the idle
// and absolute windows.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"runtime"
	"strings"
	"time"

	"github.com/go-authgate/memberguard/internal/clientstore"
	"github.com/go-authgate/memberguard/internal/config"
	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/portal"
	"github.com/go-authgate/memberguard/internal/remote"
	"github.com/go-authgate/memberguard/internal/sessiontimer"
	"github.com/go-authgate/memberguard/internal/version"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// ErrUsage is returned when the command line cannot be understood.
var ErrUsage = errors.New("invalid usage")

// expiryWait bounds how long a command waits for an elapsed session window
// to sign the member out after resuming.
const expiryWait = 3 * time.Second

// App wires the member session core to a terminal.
type App struct {
	cfg         *config.ClientConfig
	storage     core.Storage
	client      *remote.Client
	nav         *consoleNavigator
	probe       *healthProbe
	coordinator *portal.Coordinator
	clock       clockwork.Clock
	userAgent   string
	in          *bufio.Reader
	out         io.Writer
	logger      *zap.Logger
	started     bool
}

// Run loads the member configuration, opens the persisted state file and
// executes one member command.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout io.Writer) error {
	cfg := config.LoadClient()

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()

	storage, err := clientstore.Open(cfg.StatePath)
	if err != nil {
		return fmt.Errorf("failed to open client state %s: %w", cfg.StatePath, err)
	}
	defer func() {
		if err := storage.Close(); err != nil {
			logger.Warn("failed to close client state", zap.Error(err))
		}
	}()

	app, err := New(cfg, storage, stdin, stdout, logger)
	if err != nil {
		return err
	}
	defer app.Close()
	return app.Run(ctx, args)
}

// New builds an App over storage. A nil logger disables logging.
func New(
	cfg *config.ClientConfig,
	storage core.Storage,
	stdin io.Reader,
	stdout io.Writer,
	logger *zap.Logger,
) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := clockwork.NewRealClock()

	client, err := remote.New(cfg.ServerURL, storage,
		remote.WithServiceAuth(cfg.APIAuthMode, cfg.APIAuthSecret, cfg.APIAuthHeader),
		remote.WithTimeout(cfg.HTTPTimeout),
		remote.WithInsecureSkipVerify(cfg.InsecureSkipVerify),
		remote.WithRetries(cfg.MaxRetries, cfg.RetryDelay, cfg.MaxRetryDelay),
		remote.WithClock(clock),
		remote.WithLogger(logger.Named("api")),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	nav := newConsoleNavigator(logger)
	probe := newHealthProbe(cfg.ServerURL)
	userAgent := fmt.Sprintf("memberguard/%s (%s; %s)", version.Short(), runtime.GOOS, runtime.GOARCH)

	coordinator := portal.New(portal.Deps{
		Identity:     client,
		Devices:      client,
		Profiles:     client,
		Storage:      storage,
		Navigator:    nav,
		Connectivity: probe,
		UserAgent:    userAgent,
	},
		portal.WithClock(clock),
		portal.WithLogger(logger),
		portal.WithSessionFetchTimeout(cfg.SessionFetchTimeout),
		portal.WithProfileFetchTimeout(cfg.ProfileFetchTimeout),
		portal.WithProfileCacheTTL(cfg.ProfileCacheTTL),
		portal.WithVerifyInterval(cfg.VerifyInterval),
		portal.WithTimerOptions(
			sessiontimer.WithIdleTimeout(cfg.IdleTimeout),
			sessiontimer.WithAbsoluteTimeout(cfg.AbsoluteTimeout),
			sessiontimer.WithLogger(logger),
		),
	)

	return &App{
		cfg:         cfg,
		storage:     storage,
		client:      client,
		nav:         nav,
		probe:       probe,
		coordinator: coordinator,
		clock:       clock,
		userAgent:   userAgent,
		in:          bufio.NewReader(stdin),
		out:         stdout,
		logger:      logger,
	}, nil
}

// Close stops background work. Persisted session state is kept.
func (a *App) Close() {
	a.coordinator.Close()
}

// Run dispatches one member command.
func (a *App) Run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		a.usage()
		return ErrUsage
	}

	switch args[0] {
	case "login":
		return a.login(ctx, args[1:])
	case "status":
		return a.status(ctx)
	case "pair":
		return a.pair(ctx)
	case "approve":
		return a.decide(ctx, args[1:], true)
	case "reject":
		return a.decide(ctx, args[1:], false)
	case "logout":
		return a.logout(ctx)
	case "watch":
		return a.watch(ctx)
	case "passwd":
		return a.passwd(ctx, args[1:])
	case "help", "-h", "--help":
		a.usage()
		return nil
	default:
		fmt.Fprintf(a.out, "Unknown member command: %s\n\n", args[0])
		a.usage()
		return ErrUsage
	}
}

func (a *App) usage() {
	fmt.Fprintln(a.out, "Usage: memberguard member COMMAND")
	fmt.Fprintln(a.out, "\nCommands:")
	fmt.Fprintln(a.out, "  login     Sign in and bind this device")
	fmt.Fprintln(a.out, "  status    Show the signed-in member and device")
	fmt.Fprintln(a.out, "  pair      Request access for this device with a pairing code")
	fmt.Fprintln(a.out, "  approve   Approve a pairing code shown on another device")
	fmt.Fprintln(a.out, "  reject    Decline a pairing code shown on another device")
	fmt.Fprintln(a.out, "  logout    Sign out")
	fmt.Fprintln(a.out, "  watch     Stay signed in until the session times out")
	fmt.Fprintln(a.out, "  passwd    Change the account password")
}

// start probes connectivity and restores the persisted session once.
func (a *App) start(ctx context.Context) {
	if a.started {
		return
	}
	a.started = true
	a.probe.Check(ctx)
	a.coordinator.Start(ctx)
}

// session requires a live session. A resumed session whose idle or absolute
// window already elapsed is signed out before the command runs.
func (a *App) session(ctx context.Context) (portal.State, error) {
	a.start(ctx)

	state := a.coordinator.State()
	if !state.HasSession {
		return state, noSession(state.AuthIssue)
	}

	idle, absolute := a.coordinator.Windows()
	now := a.clock.Now()
	if (!idle.IsZero() && !idle.After(now)) || (!absolute.IsZero() && !absolute.After(now)) {
		state = a.await(ctx, expiryWait, func(s portal.State) bool { return !s.HasSession })
		return state, noSession(state.Notice)
	}

	a.coordinator.Activity()
	return state, nil
}

// await blocks until done accepts the coordinator state, the timeout passes
// or ctx ends, and returns the last state seen.
func (a *App) await(ctx context.Context, timeout time.Duration, done func(portal.State) bool) portal.State {
	changed := make(chan struct{}, 1)
	unsubscribe := a.coordinator.Subscribe(func(portal.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	timer := a.clock.NewTimer(timeout)
	defer timer.Stop()

	for {
		state := a.coordinator.State()
		if done(state) {
			return state
		}
		select {
		case <-changed:
		case <-timer.Chan():
			return a.coordinator.State()
		case <-ctx.Done():
			return a.coordinator.State()
		}
	}
}

func (a *App) prompt(label string) (string, error) {
	fmt.Fprint(a.out, label)
	line, err := a.in.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", fmt.Errorf("read %s: %w", strings.TrimSuffix(strings.ToLower(label), ": "), err)
	}
	return strings.TrimSpace(line), nil
}

func noSession(reason string) error {
	if reason == "" {
		return fmt.Errorf("%w: run `memberguard member login`", core.ErrNoSession)
	}
	return fmt.Errorf("%w: %s", core.ErrNoSession, reason)
}

func newLogger(level string) (*zap.Logger, error) {
	atomic, err := zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid MEMBER_LOG_LEVEL %q: %w", level, err)
	}
	cfg := zap.NewDevelopmentConfig()
	cfg.Level = atomic
	cfg.OutputPaths = []string{"stderr"}
	cfg.DisableStacktrace = true
	logger, err := cfg.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger, nil
}
