// Copyright 2025 Justin P Barnett
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package assistant

import (
	"sync"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"go.uber.org/zap"
)

// Rate limit policy defaults.
const (
	DefaultCooldown      = 1 * time.Second
	DefaultWindow        = 60 * time.Second
	DefaultMaxPerWindow  = 10
	ReasonCooldown       = "too soon"
	ReasonQuotaExhausted = "too many requests"
)

// Decision is the outcome of a rate limit check.
type Decision struct {
	Allowed bool
	Reason  string
}

// RateLimitConfig tunes the per-caller throttle policy.
type RateLimitConfig struct {
	// Cooldown is the minimum spacing between two requests from one caller.
	Cooldown time.Duration
	// Window is the rolling quota window.
	Window time.Duration
	// MaxPerWindow is the request quota within one window.
	MaxPerWindow int
}

func (c *RateLimitConfig) applyDefaults() {
	if c.Cooldown <= 0 {
		c.Cooldown = DefaultCooldown
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	if c.MaxPerWindow <= 0 {
		c.MaxPerWindow = DefaultMaxPerWindow
	}
}

type rateRecord struct {
	count       int
	lastRequest time.Time
}

// RateLimiter throttles callers by id. Records expire out of the store one
// window after their last touch, which bounds memory on caller churn.
type RateLimiter struct {
	mu      sync.Mutex
	records *ttlcache.Cache[string, *rateRecord]
	cfg     RateLimitConfig
	logger  *zap.Logger

	// now is swappable for tests
	now func() time.Time
}

// NewRateLimiter creates a rate limiter with its own record store.
func NewRateLimiter(cfg RateLimitConfig, logger *zap.Logger) *RateLimiter {
	cfg.applyDefaults()
	records := ttlcache.New(
		ttlcache.WithTTL[string, *rateRecord](cfg.Window),
	)
	go records.Start()

	return &RateLimiter{
		records: records,
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}
}

// Check evaluates the policy for one caller. The policy order is cooldown,
// window reset, then quota. The record is mutated only when the request is
// allowed; a cooldown rejection does not push the cooldown further out, so
// rapid retries cannot lock a caller out indefinitely.
func (rl *RateLimiter) Check(callerID string) Decision {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	var rec *rateRecord
	if item := rl.records.Get(callerID); item != nil {
		rec = item.Value()
	} else {
		rec = &rateRecord{}
	}

	elapsed := now.Sub(rec.lastRequest)

	if !rec.lastRequest.IsZero() && elapsed < rl.cfg.Cooldown {
		rl.logger.Debug("request denied by cooldown",
			zap.String("caller", callerID),
			zap.Duration("elapsed", elapsed))
		RecordChatDenial(ReasonCooldown)
		return Decision{Reason: ReasonCooldown}
	}

	count := rec.count
	if elapsed > rl.cfg.Window {
		count = 0
	}

	if count >= rl.cfg.MaxPerWindow {
		rl.logger.Debug("request denied by quota",
			zap.String("caller", callerID),
			zap.Int("count", count))
		RecordChatDenial(ReasonQuotaExhausted)
		return Decision{Reason: ReasonQuotaExhausted}
	}

	rec.count = count + 1
	rec.lastRequest = now
	rl.records.Set(callerID, rec, ttlcache.DefaultTTL)
	return Decision{Allowed: true}
}

// Close stops the record store's eviction loop.
func (rl *RateLimiter) Close() {
	rl.records.Stop()
}
