package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"spacetrack/pkg/auth"
	"spacetrack/pkg/config"
	"spacetrack/pkg/logger"
	"spacetrack/pkg/ratelimit"
	"spacetrack/pkg/retry"
	"spacetrack/pkg/spacetrack"
	"spacetrack/pkg/ui"
)

// loadConfig merges the global flags and extra command flags over the
// config file, environment and defaults, then sets up the global logger.
func loadConfig(extra map[string]interface{}) (*config.Config, error) {
	flags := map[string]interface{}{
		"base-url":  baseURL,
		"identity":  identity,
		"max-calls": maxCalls,
		"period":    period,
		"binding":   binding,
		"notify":    notify,
		"log-level": logLevel,
	}
	for k, v := range extra {
		flags[k] = v
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		return nil, err
	}
	if quiet {
		cfg.Logging.Level = "error"
	}

	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// resolveCredentials fills in the password from the credential store when
// the config does not carry a complete login.
// Order: config and environment, then the named stored account, then the
// most recent stored account.
func resolveCredentials(cfg *config.Config, log logger.Logger) {
	if cfg.HasCredentials() {
		return
	}

	manager, err := auth.NewManager()
	if err != nil {
		log.WithError(err).Debug("Credential store unavailable")
		return
	}

	var account *auth.Account
	if cfg.SpaceTrack.Identity != "" {
		account, err = manager.Retrieve(cfg.SpaceTrack.Identity)
	} else {
		account, err = manager.RetrieveDefault()
	}
	if err != nil {
		log.Debug("No stored credentials found")
		return
	}

	cfg.SpaceTrack.Identity = account.Identity
	cfg.SpaceTrack.Password = account.Password
	log.WithField("identity", account.Identity).Debug("Using stored credentials")
}

// throttleRelay fans one gate throttle event out to every registered
// listener. Listeners can be added after the gate is built.
type throttleRelay struct {
	mu  sync.RWMutex
	fns []ratelimit.ThrottleFunc
}

func (r *throttleRelay) Add(fn ratelimit.ThrottleFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fns = append(r.fns, fn)
}

func (r *throttleRelay) Notify(ctx context.Context, until time.Time) error {
	r.mu.RLock()
	fns := append([]ratelimit.ThrottleFunc(nil), r.fns...)
	r.mu.RUnlock()

	var errs []error
	for _, fn := range fns {
		if err := fn(ctx, until); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// session bundles the gate and client a command talks to the catalog through.
type session struct {
	cfg      *config.Config
	log      logger.Logger
	gate     *ratelimit.Gate
	client   *spacetrack.Client
	throttle *throttleRelay
	notifier *ui.Notifier
}

func newSession(cfg *config.Config, log logger.Logger) (*session, error) {
	resolveCredentials(cfg, log)

	kind, err := ratelimit.ParseBindingKind(cfg.RateLimit.Binding)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:      cfg,
		log:      log,
		throttle: &throttleRelay{},
		notifier: ui.NewNotifier(),
	}
	if cfg.Notifications.Enabled && cfg.Notifications.OnThrottle {
		s.throttle.Add(s.notifier.ThrottleNotifier)
	}

	s.gate, err = ratelimit.NewGate(cfg.RateLimit.MaxCalls, cfg.RateLimit.Period,
		ratelimit.WithBindingKind(kind),
		ratelimit.WithLogger(log),
		ratelimit.WithOnThrottle(s.throttle.Notify),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate gate: %w", err)
	}

	s.client, err = spacetrack.NewClient(spacetrack.OptionsFromConfig(cfg.SpaceTrack), s.gate, log)
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	s.client.SetRetry(retry.FromConfig(cfg.Retry, log))

	log.WithFields(map[string]interface{}{
		"max_calls": cfg.RateLimit.MaxCalls,
		"period":    cfg.RateLimit.Period.String(),
		"binding":   string(kind),
		"identity":  cfg.SpaceTrack.Identity,
	}).Debug("Session ready")

	return s, nil
}

// close logs out when a session was opened. It does not reuse the command
// context, which may already be cancelled.
func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.client.Close(ctx); err != nil {
		s.log.WithError(err).Warn("Logout failed")
	}
}

// notifyDone sends the end-of-run desktop notification the config asks for.
func (s *session) notifyDone(title, message string, failed bool) {
	n := s.cfg.Notifications
	if !n.Enabled {
		return
	}

	var err error
	switch {
	case failed && n.OnError:
		err = s.notifier.SendError(title, message)
	case !failed && n.OnComplete:
		err = s.notifier.SendSuccess(title, message)
	}
	if err != nil {
		s.log.WithError(err).Debug("Desktop notification failed")
	}
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}
