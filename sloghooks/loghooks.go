// Package sloghooks logs cache events through log/slog with sampling for the
// high-volume ones. Hit and Miss fire on every read, so they default to
// sampled; failures are always logged.
package sloghooks

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"sync/atomic"

	"github.com/coordcache/coordcache"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery  uint64
	MissEvery uint64
	// Optional key redactor. Defaults to SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr  atomic.Uint64
	missCtr atomic.Uint64
}

var _ coordcache.Hooks = (*Hooks)(nil)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	sum := sha256.Sum256([]byte(k))
	return hex.EncodeToString(sum[:8])
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) Hit(cacheName, key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("coordcache.hit",
		"cache", cacheName,
		"key", h.redact(key))
}

func (h *Hooks) Miss(cacheName, key string) {
	if h.l == nil || !sample(h.opts.MissEvery, &h.missCtr) {
		return
	}
	h.l.Debug("coordcache.miss",
		"cache", cacheName,
		"key", h.redact(key))
}

func (h *Hooks) Eviction(cacheName, key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("coordcache.eviction",
		"cache", cacheName,
		"key", h.redact(key))
}

func (h *Hooks) LoadFailOpen(cacheName, key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("coordcache.load_fail_open",
		"cache", cacheName,
		"key", h.redact(key),
		"reason", reason)
}

func (h *Hooks) BackendError(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("coordcache.backend_error",
		"op", op,
		"key", h.redact(key),
		"err", err)
}

func (h *Hooks) WriteBehindEnqueued(cacheName, key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("coordcache.write_behind_enqueued",
		"cache", cacheName,
		"key", h.redact(key))
}
