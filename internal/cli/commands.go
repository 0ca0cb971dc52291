package cli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"strconv"
	"time"

	"github.com/go-authgate/memberguard/internal/core"
	"github.com/go-authgate/memberguard/internal/deviceid"
	"github.com/go-authgate/memberguard/internal/pairing"
	"github.com/go-authgate/memberguard/internal/portal"

	"go.uber.org/zap"
)

const probeInterval = 15 * time.Second

func (a *App) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ContinueOnError)
	fs.SetOutput(a.out)
	email := fs.String("email", "", "account email")
	password := fs.String("password", "", "account password, prompted when empty")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	var err error
	if *email == "" {
		if *email, err = a.prompt("Email: "); err != nil {
			return err
		}
	}
	if *password == "" {
		if *password, err = a.prompt("Password: "); err != nil {
			return err
		}
	}

	a.start(ctx)
	if !a.probe.Online() {
		return errors.New(portal.MsgOffline)
	}
	if err := a.coordinator.SignIn(ctx, *email, *password); err != nil {
		if errors.Is(err, core.ErrInvalidCredentials) {
			return errors.New("invalid email or password")
		}
		return fmt.Errorf("sign in failed: %w", err)
	}

	session, err := a.client.GetSession(ctx)
	if err != nil {
		return fmt.Errorf("sign in failed: %w", err)
	}
	if session == nil {
		return noSession("")
	}

	// Landing on the dashboard is what triggers the device check.
	a.nav.Replace(core.RouteDashboard)
	switch a.coordinator.VerifyDevice(ctx, session.UserID) {
	case portal.DecisionTrusted, portal.DecisionRegistered:
		state := a.await(ctx, a.cfg.ProfileFetchTimeout, profileSettled)
		a.printWelcome(state)
	case portal.DecisionPairingRequired:
		fmt.Fprintln(a.out, "This account is already active on another device.")
		fmt.Fprintln(a.out, "Run `memberguard member pair` and enter the code on that device.")
	case portal.DecisionRevoked:
		fmt.Fprintln(a.out, "This device was removed from the account and has been signed out.")
		fmt.Fprintln(a.out, "Sign in again and run `memberguard member pair` to request access.")
	default:
		fmt.Fprintln(a.out, "Signed in. The device check could not finish; it will run again on the next command.")
	}
	return nil
}

func (a *App) status(ctx context.Context) error {
	state, err := a.session(ctx)
	if errors.Is(err, core.ErrNoSession) {
		fmt.Fprintln(a.out, "Signed out.")
		if reason := firstNonEmpty(state.Notice, state.AuthIssue); reason != "" {
			fmt.Fprintln(a.out, reason)
		}
		return nil
	}
	if err != nil {
		return err
	}

	state = a.await(ctx, a.cfg.ProfileFetchTimeout, profileSettled)
	if state.User == nil {
		return errors.New(firstNonEmpty(state.AuthIssue, portal.MsgProfileFailed))
	}
	a.printProfile(state.User)

	deviceID, ok := deviceid.GetOrCreate(a.storage)
	if !ok {
		fmt.Fprintln(a.out, "Device:   unavailable")
		return nil
	}
	binding, err := a.client.CheckBinding(ctx, state.User.ID, deviceID)
	switch {
	case err != nil:
		fmt.Fprintf(a.out, "Device:   %s (check failed: %v)\n", deviceID, err)
	case binding == nil:
		fmt.Fprintf(a.out, "Device:   %s (not bound)\n", deviceID)
	case binding.Revoked:
		fmt.Fprintf(a.out, "Device:   %s (revoked)\n", deviceID)
	default:
		fmt.Fprintf(a.out, "Device:   %s (%s, trusted)\n", deviceID, binding.Label)
	}

	idle, absolute := a.coordinator.Windows()
	if !idle.IsZero() {
		fmt.Fprintf(a.out, "Idle:     signs out at %s\n", idle.Local().Format(time.Kitchen))
		fmt.Fprintf(a.out, "Session:  ends at %s\n", absolute.Local().Format("Jan 2 15:04"))
	}
	return nil
}

func (a *App) pair(ctx context.Context) error {
	if _, err := a.session(ctx); err != nil {
		return err
	}
	session, err := a.client.GetSession(ctx)
	if err != nil {
		return err
	}
	if session == nil {
		return noSession("")
	}
	deviceID, _ := deviceid.GetOrCreate(a.storage)

	// Signing out from anywhere ends the wait.
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(a.coordinator.SessionContext(), cancel)
	defer stop()

	printer := &pairingPrinter{app: a}
	flow := pairing.NewFlow(a.client, a.client, a.nav,
		pairing.WithPollInterval(a.cfg.PairingPollInterval),
		pairing.WithLogger(a.logger),
		pairing.WithObserver(printer.show),
	)
	view, err := flow.Run(runCtx, pairing.Request{
		UserID:    session.UserID,
		DeviceID:  deviceID,
		Label:     deviceid.Label(a.userAgent),
		UserAgent: a.userAgent,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return errors.New("pairing cancelled")
		}
		return err
	}
	if view.Phase != pairing.PhaseApproved {
		return fmt.Errorf("pairing %s", view.Phase)
	}
	return nil
}

type pairingPrinter struct {
	app  *App
	code string
}

func (p *pairingPrinter) show(v pairing.View) {
	out := p.app.out
	switch v.Phase {
	case pairing.PhaseDisplayCode:
		if v.Code == p.code {
			return
		}
		p.code = v.Code
		fmt.Fprintf(out, "Pairing code: %s\n", v.Display)
		fmt.Fprintln(out, "Enter it on the device that is signed in to approve this one.")
		if !v.ExpiresAt.IsZero() {
			fmt.Fprintf(out, "The code expires at %s.\n", v.ExpiresAt.Local().Format(time.Kitchen))
		}
	case pairing.PhaseApproved:
		fmt.Fprintln(out, "Device approved. Welcome back.")
	case pairing.PhaseRejected:
		fmt.Fprintln(out, "The request was declined.")
	case pairing.PhaseExpired:
		fmt.Fprintln(out, "The code expired. Run `memberguard member pair` for a new one.")
	case pairing.PhaseFailed:
		if v.Err != nil {
			fmt.Fprintf(out, "Could not request pairing: %v\n", v.Err)
		}
	}
}

func (a *App) decide(ctx context.Context, args []string, approve bool) error {
	var code string
	if len(args) > 0 {
		code = args[0]
	} else {
		var err error
		if code, err = a.prompt("Pairing code: "); err != nil {
			return err
		}
	}
	if pairing.SanitizeCode(code) == "" {
		return pairing.ErrEmptyCode
	}

	if _, err := a.session(ctx); err != nil {
		return err
	}
	a.nav.Replace(core.RouteDeviceApprove)
	approver := pairing.NewApprover(a.client, a.coordinator, a.nav, a.logger)

	if !approve {
		if err := approver.Reject(ctx, code); err != nil {
			return fmt.Errorf("reject %s: %w", pairing.FormatCode(pairing.SanitizeCode(code)), err)
		}
		fmt.Fprintln(a.out, "Request declined.")
		return nil
	}

	if err := approver.Approve(ctx, code); err != nil {
		return fmt.Errorf("approve %s: %w", pairing.FormatCode(pairing.SanitizeCode(code)), err)
	}
	fmt.Fprintln(a.out, "Approved. The account moved to the new device and this one has been signed out.")
	return nil
}

func (a *App) logout(ctx context.Context) error {
	a.start(ctx)
	if !a.coordinator.State().HasSession {
		fmt.Fprintln(a.out, "Already signed out.")
		return nil
	}
	a.coordinator.SignOut(ctx)
	a.nav.Replace(core.RouteLogin)
	fmt.Fprintln(a.out, "Signed out.")
	return nil
}

func (a *App) passwd(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("passwd", flag.ContinueOnError)
	fs.SetOutput(a.out)
	password := fs.String("password", "", "new password, prompted when empty")
	if err := fs.Parse(args); err != nil {
		return ErrUsage
	}

	if _, err := a.session(ctx); err != nil {
		return err
	}

	if *password == "" {
		first, err := a.prompt("New password: ")
		if err != nil {
			return err
		}
		confirm, err := a.prompt("Confirm password: ")
		if err != nil {
			return err
		}
		if first != confirm {
			return errors.New("passwords do not match")
		}
		*password = first
	}
	if *password == "" {
		return errors.New("password must not be empty")
	}

	if err := a.coordinator.UpdatePassword(ctx, *password); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	fmt.Fprintln(a.out, "Password updated.")
	return nil
}

// watch keeps the session open until it ends. Each line read from stdin
// counts as member activity.
func (a *App) watch(ctx context.Context) error {
	state, err := a.session(ctx)
	if err != nil {
		return err
	}
	a.nav.Replace(core.RouteDashboard)
	a.printWelcome(a.await(ctx, a.cfg.ProfileFetchTimeout, profileSettled))

	gate := portal.NewGate(a.probe, a.clock)
	changed := make(chan struct{}, 1)
	unsubscribe := a.coordinator.Subscribe(func(portal.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})
	defer unsubscribe()

	lines := make(chan struct{})
	go func() {
		defer close(lines)
		for {
			if _, err := a.in.ReadString('\n'); err != nil {
				return
			}
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
	}()
	input := (<-chan struct{})(lines)

	ticker := a.clock.NewTicker(probeInterval)
	defer ticker.Stop()

	lastNotice, lastHint := state.Notice, ""
	for {
		select {
		case <-ctx.Done():
			fmt.Fprintln(a.out, "Stopped watching; the session stays open.")
			return nil
		case _, ok := <-input:
			if !ok {
				input = nil
				continue
			}
			a.coordinator.Activity()
			a.logger.Debug("member activity")
		case <-ticker.Chan():
			if online, flipped := a.probe.Check(ctx); flipped {
				a.coordinator.SetOnline(online)
			}
		case <-changed:
		}

		state = a.coordinator.State()
		if state.Notice != "" && state.Notice != lastNotice {
			fmt.Fprintln(a.out, state.Notice)
		}
		lastNotice = state.Notice
		if !state.HasSession && !state.Loading {
			fmt.Fprintln(a.out, "Signed out.")
			return nil
		}
		verdict := gate.Evaluate(state, a.nav.Current())
		if verdict.Hint != "" && verdict.Hint != lastHint {
			fmt.Fprintln(a.out, verdict.Hint)
		}
		lastHint = verdict.Hint
		if verdict.Redirect != "" {
			a.logger.Info("gate redirect", zap.String("to", verdict.Redirect))
		}
	}
}

func (a *App) printWelcome(state portal.State) {
	if state.User == nil {
		fmt.Fprintln(a.out, "Signed in.")
		if state.AuthIssue != "" {
			fmt.Fprintln(a.out, state.AuthIssue)
		}
		return
	}
	fmt.Fprintf(a.out, "Signed in as %s (%s).\n", firstNonEmpty(state.User.FullName, state.User.Email), state.User.Email)
}

func (a *App) printProfile(p *core.Profile) {
	fmt.Fprintf(a.out, "Member:   %s <%s>\n", firstNonEmpty(p.FullName, p.Email), p.Email)
	if p.Tier != "" {
		fmt.Fprintf(a.out, "Tier:     %s\n", p.Tier)
	}
	if p.Balance != "" {
		fmt.Fprintf(a.out, "Balance:  %s\n", p.Balance)
	}
	if p.Status != "" {
		fmt.Fprintf(a.out, "Status:   %s\n", p.Status)
	}
	if p.SubscriptionExpiresAt != nil {
		fmt.Fprintf(a.out, "Renews:   %s\n", p.SubscriptionExpiresAt.Local().Format("Jan 2 2006"))
	}
	if raw, err := a.storage.Get(core.KeyLastActivity); err == nil {
		if ms, err := strconv.ParseInt(raw, 10, 64); err == nil {
			fmt.Fprintf(a.out, "Active:   %s\n", time.UnixMilli(ms).Local().Format(time.Kitchen))
		}
	}
}

// profileSettled reports whether the profile load has finished either way.
func profileSettled(s portal.State) bool {
	return !s.HasSession || s.User != nil || s.AuthIssue != ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
