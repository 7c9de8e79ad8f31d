// Package sched paces outgoing packets: one frame every frame period,
// with bounded retry on transient send failures and adaptive
// micro-delays when the link shows signs of congestion.
package sched

import (
	"log/slog"
	"time"

	"github.com/audiolink/audiolink-go/metrics"
)

const (
	// tolerance is how close to the deadline counts as on time.
	tolerance = time.Millisecond
	// timingSlack is the drift beyond which a timing error is counted.
	timingSlack = 5 * time.Millisecond
	// delayStep is the adaptive delay added per congested send.
	delayStep = time.Millisecond
	// delayCap bounds the adaptive delay.
	delayCap = 10 * time.Millisecond
	// delayFloor is where decay snaps the adaptive delay to zero.
	delayFloor = 100 * time.Microsecond
	// clearCooldown is how long congestion must stay clear before the
	// flag drops and the delay starts decaying.
	clearCooldown = 2 * time.Second
	// historySize is the ring of recent send timestamps used for the
	// congestion estimate.
	historySize = 16
)

// Config tunes the scheduler for one stream.
type Config struct {
	// FramePeriod is the nominal interval between sends.
	FramePeriod time.Duration
	// RetryCount bounds retries after a failed send.
	RetryCount int
	// RetryDelay is slept between retries.
	RetryDelay time.Duration
}

// SendFunc transmits one datagram.
type SendFunc func(p []byte) error

// Scheduler owns the sender-side pacing state. It is driven by a
// single transmission loop; it is not safe for concurrent use.
type Scheduler struct {
	cfg    Config
	send   SendFunc
	col    *metrics.Collector
	logger *slog.Logger

	deadline      time.Time
	adaptiveDelay time.Duration
	congested     bool
	clearSince    time.Time

	history [historySize]time.Time
	histPos int
	histLen int

	// clock indirection for tests
	now   func() time.Time
	sleep func(time.Duration)
}

func New(cfg Config, send SendFunc, col *metrics.Collector) *Scheduler {
	return &Scheduler{
		cfg:    cfg,
		send:   send,
		col:    col,
		logger: slog.Default().With(slog.String("component", "sched")),
		now:    time.Now,
		sleep:  time.Sleep,
	}
}

// Send transmits one packet at the next deadline. It blocks until the
// deadline (plus any adaptive delay), attempts the send with bounded
// retry, and advances the deadline by exactly one frame period whether
// or not the send succeeded, so pacing never drifts cumulatively.
func (s *Scheduler) Send(packet []byte) {
	if s.deadline.IsZero() {
		s.deadline = s.now()
	}

	if wait := s.deadline.Sub(s.now()); wait > tolerance {
		s.sleep(wait)
	}
	if s.congested && s.adaptiveDelay > 0 {
		s.sleep(s.adaptiveDelay)
	}

	s.attempt(packet)

	sentAt := s.now()
	if drift := sentAt.Sub(s.deadline); drift > timingSlack || drift < -timingSlack {
		s.col.CountTimingError()
	}

	s.observe(sentAt)
	s.deadline = s.deadline.Add(s.cfg.FramePeriod)
}

// attempt performs the send with bounded retry. Exhausted retries drop
// the packet; the pacing loop is never blocked beyond the retry budget.
func (s *Scheduler) attempt(packet []byte) {
	err := s.send(packet)
	for r := 0; err != nil && r < s.cfg.RetryCount; r++ {
		s.col.CountSendRetry()
		s.sleep(s.cfg.RetryDelay)
		err = s.send(packet)
	}
	if err != nil {
		s.col.CountSendError()
		s.logger.Debug("packet dropped after retries", slog.Any("err", err))
		return
	}
	s.col.CountSent(len(packet))
}

// observe updates the congestion estimate from the inter-send history.
// A trailing mean interval above 1.5x the nominal period flags
// congestion; once clear for a cooldown window the adaptive delay
// decays geometrically back to zero.
func (s *Scheduler) observe(sentAt time.Time) {
	s.history[s.histPos] = sentAt
	s.histPos = (s.histPos + 1) % historySize
	if s.histLen < historySize {
		s.histLen++
	}

	mean, ok := s.meanInterval()
	threshold := s.cfg.FramePeriod + s.cfg.FramePeriod/2

	switch {
	case ok && mean > threshold:
		if !s.congested {
			s.congested = true
			s.logger.Debug("congestion detected", slog.Duration("mean_interval", mean))
		}
		s.clearSince = time.Time{}
		if s.adaptiveDelay < delayCap {
			s.adaptiveDelay += delayStep
		}
	case s.congested:
		if s.clearSince.IsZero() {
			s.clearSince = sentAt
		} else if sentAt.Sub(s.clearSince) >= clearCooldown {
			s.congested = false
			s.logger.Debug("congestion cleared")
		}
	default:
		if s.adaptiveDelay > 0 {
			s.adaptiveDelay /= 2
			if s.adaptiveDelay < delayFloor {
				s.adaptiveDelay = 0
			}
		}
	}

	s.col.SetAdaptiveDelay(s.adaptiveDelay)
}

func (s *Scheduler) meanInterval() (time.Duration, bool) {
	if s.histLen < 2 {
		return 0, false
	}

	// oldest and newest entries of the ring
	newest := (s.histPos - 1 + historySize) % historySize
	oldest := s.histPos
	if s.histLen < historySize {
		oldest = 0
	}

	span := s.history[newest].Sub(s.history[oldest])
	return span / time.Duration(s.histLen-1), true
}

// Congested reports whether the congestion flag is currently set.
func (s *Scheduler) Congested() bool { return s.congested }

// AdaptiveDelay returns the current congestion micro-delay.
func (s *Scheduler) AdaptiveDelay() time.Duration { return s.adaptiveDelay }

// Reset clears pacing state for a stream restart.
func (s *Scheduler) Reset() {
	s.deadline = time.Time{}
	s.adaptiveDelay = 0
	s.congested = false
	s.clearSince = time.Time{}
	s.histPos = 0
	s.histLen = 0
}
