// Package simulator drives a relay with scripted referee and display clients
// and checks that the expected number of scores is confirmed.
package simulator

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/hantei/internal/domain/consensus"
	"github.com/okian/hantei/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// Run plays one bout against the relay and returns its statistics. It fails
// with ErrMismatch when the display saw a different number of confirmed
// scores than the threshold table predicts.
func Run(ctx context.Context, cfg *Config) (*Stats, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := logger.Get().Named("sim")
	stats := &Stats{StartTime: time.Now()}

	log.Info(ctx, "starting referee simulation",
		logger.String("baseURL", cfg.BaseURL),
		logger.Int("referees", cfg.Referees),
		logger.Int("agree", cfg.Agree),
		logger.Int("signals", cfg.Signals))

	if err := checkServiceHealth(ctx, cfg); err != nil {
		return nil, err
	}

	endpoint, err := wsURL(cfg.BaseURL, cfg.WSPath)
	if err != nil {
		return nil, err
	}

	display, err := dial(ctx, endpoint, "display", cfg.Verbose)
	if err != nil {
		return nil, err
	}
	defer display.close()

	if err := display.send(frame{Action: "register_display", DeviceID: "sim-display", LicenseKey: cfg.LicenseKey}); err != nil {
		return nil, err
	}
	if _, err := display.await(ctx, cfg.Timeout, "roster"); err != nil {
		return nil, err
	}

	referees, err := connectReferees(ctx, cfg, endpoint, stats)
	if err != nil {
		return nil, err
	}
	defer func() {
		for _, r := range referees {
			r.close()
		}
	}()

	agree := min(cfg.Agree, len(referees))
	stats.Required = consensus.RequiredConfirmations(len(referees))
	if agree > 0 && agree >= stats.Required {
		stats.Expected = cfg.Signals
	}

	for i := range cfg.Signals {
		f := roundFrame(i)
		for _, r := range referees[:agree] {
			if err := r.send(f); err != nil {
				return nil, fmt.Errorf("round %d: %s: %w", i, r.name, err)
			}
			stats.SignalsSent++
		}
		if cfg.Interval > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(cfg.Interval):
			}
		}
	}

	stats.Confirmations = collectConfirmations(ctx, display, stats.Expected, cfg.Timeout)

	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(ctx, log, stats)

	if stats.Confirmations != stats.Expected {
		return stats, fmt.Errorf("%w: expected %d, got %d", ErrMismatch, stats.Expected, stats.Confirmations)
	}
	return stats, nil
}

// connectReferees dials and registers every referee concurrently. Referees
// refused for capacity are counted and closed; the admitted ones are
// returned in index order.
func connectReferees(ctx context.Context, cfg *Config, endpoint string, stats *Stats) ([]*client, error) {
	slots := make([]*client, cfg.Referees)
	g, gctx := errgroup.WithContext(ctx)

	for i := range cfg.Referees {
		g.Go(func() error {
			name := "referee-" + strconv.Itoa(i+1)
			c, err := dial(gctx, endpoint, name, cfg.Verbose)
			if err != nil {
				return err
			}
			if err := c.send(frame{Action: "register_referee", DeviceID: name, LicenseKey: cfg.LicenseKey}); err != nil {
				c.close()
				return err
			}
			r, err := c.await(gctx, cfg.Timeout, "roster", "capacity_error")
			if err != nil {
				c.close()
				return err
			}
			if r.Action == "capacity_error" {
				c.logger.Warn(gctx, "referee refused", logger.String("plan", r.Plan), logger.Int("limit", r.Limit))
				c.close()
				return nil
			}
			slots[i] = c
			return nil
		})
	}

	err := g.Wait()
	admitted := make([]*client, 0, len(slots))
	for _, c := range slots {
		if c != nil {
			admitted = append(admitted, c)
		}
	}
	if err != nil {
		for _, c := range admitted {
			c.close()
		}
		return nil, err
	}

	stats.RefereesAdmitted = len(admitted)
	stats.RefereesRejected = cfg.Referees - len(admitted)
	return admitted, nil
}

// roundFrame returns the signal for round i. Signatures do not repeat for
// the first maxRounds rounds.
func roundFrame(i int) frame {
	return frame{
		Action:    "signal",
		Target:    targets[i%len(targets)],
		Category:  categories[(i/len(targets))%len(categories)],
		Magnitude: i/(len(targets)*len(categories)) + 1,
	}
}

// collectConfirmations counts confirmed scores on the display until expected
// have arrived, then listens a little longer for duplicates.
func collectConfirmations(ctx context.Context, display *client, expected int, timeout time.Duration) int {
	got := 0
	for got < expected {
		if _, err := display.await(ctx, timeout, "confirmed_score"); err != nil {
			return got
		}
		got++
	}
	for {
		if _, err := display.await(ctx, settleDelay, "confirmed_score"); err != nil {
			return got
		}
		got++
	}
}

// checkServiceHealth verifies the relay answers its health probe.
func checkServiceHealth(ctx context.Context, cfg *Config) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cfg.BaseURL+"/healthz", nil)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	resp, err := (&http.Client{Timeout: cfg.Timeout}).Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrUnhealthy, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: status %d", ErrUnhealthy, resp.StatusCode)
	}
	return nil
}

func displayFinalStats(ctx context.Context, log logger.Logger, stats *Stats) {
	log.Info(ctx, "final statistics",
		logger.Int("refereesAdmitted", stats.RefereesAdmitted),
		logger.Int("refereesRejected", stats.RefereesRejected),
		logger.Int("required", stats.Required),
		logger.Int("signalsSent", stats.SignalsSent),
		logger.Int("expected", stats.Expected),
		logger.Int("confirmations", stats.Confirmations),
		logger.Duration("duration", stats.Duration))
}
