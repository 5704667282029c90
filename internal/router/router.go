// Package router selects exactly one eligible output channel per deal and
// owns the cooldown/quota/disable state machine. Channel state is committed
// only after the publish sink confirms delivery, so a failed send never
// starts a cooldown or consumes quota.
package router

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Stockspotdeals/stockspot-dispatch/internal/models"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/notifier"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/storage"
	"github.com/Stockspotdeals/stockspot-dispatch/internal/tier"
)

const dailyResetPeriod = 24 * time.Hour

// Reason explains why a deal was not dispatched.
type Reason string

const (
	ReasonNone                  Reason = ""
	ReasonNoEligibleChannel     Reason = "NO_ELIGIBLE_CHANNEL"
	ReasonAllDisabled           Reason = "ALL_DISABLED"
	ReasonAllAtDailyLimit       Reason = "ALL_AT_DAILY_LIMIT"
	ReasonAllOnCooldown         Reason = "ALL_ON_COOLDOWN"
	ReasonAdmissionDelayed      Reason = "ADMISSION_DELAYED"
	ReasonTitleValidationFailed Reason = "TITLE_VALIDATION_FAILED"
)

// Outcome is the result of a dispatch attempt. Reason is set only when
// Dispatched is false.
type Outcome struct {
	Dispatched bool
	ChannelID  string
	Title      string
	Reason     Reason
}

// channelEntry pairs a channel's static target with its mutable state.
// state is mutated only while holding mu (single writer per channel).
type channelEntry struct {
	mu        sync.Mutex
	target    models.ChannelTarget
	state     models.ChannelState
	disabled  bool
	reason    string
	templates *TemplateSet
}

// Router is the channel-selection state machine.
type Router struct {
	mu        sync.Mutex
	channels  []*channelEntry // declaration order, used for tie-breaking
	byID      map[string]*channelEntry
	store     storage.Store
	sink      notifier.Sink
	admission *tier.Controller
	titles    *TitleValidator
}

// New builds a router over the configured channel targets, restoring
// persisted state where present. Disable flags from config and from the
// store are both honored.
func New(
	targets []models.ChannelTarget,
	persisted *storage.State,
	store storage.Store,
	sink notifier.Sink,
	admission *tier.Controller,
	titles *TitleValidator,
	templateSeed int64,
) *Router {
	r := &Router{
		byID:      make(map[string]*channelEntry, len(targets)),
		store:     store,
		sink:      sink,
		admission: admission,
		titles:    titles,
	}
	for i, target := range targets {
		entry := &channelEntry{
			target:    target,
			state:     models.ChannelState{ChannelID: target.ID},
			disabled:  target.Disabled,
			reason:    target.DisableReason,
			templates: NewTemplateSet(target.TitleTemplates, templateSeed+int64(i)),
		}
		if persisted != nil {
			if cs, ok := persisted.Channels[target.ID]; ok {
				entry.state = cs
			}
			if flag, ok := persisted.Disabled[target.ID]; ok {
				entry.disabled = flag.Disabled
				entry.reason = flag.Reason
			}
		}
		r.channels = append(r.channels, entry)
		r.byID[target.ID] = entry
	}
	return r
}

// applyDailyReset advances the rolling 24h quota window. The boundary is
// measured from DailyResetAt, not calendar midnight. Caller holds e.mu or
// has exclusive access.
func (e *channelEntry) applyDailyReset(now time.Time) {
	if e.state.DailyResetAt.IsZero() {
		e.state.DailyResetAt = now
		return
	}
	elapsed := now.Sub(e.state.DailyResetAt)
	if elapsed < dailyResetPeriod {
		return
	}
	periods := elapsed / dailyResetPeriod
	e.state.DailyResetAt = e.state.DailyResetAt.Add(periods * dailyResetPeriod)
	e.state.DispatchCountToday = 0
}

// status computes the channel's current state, lazily applying the daily
// reset and cooldown expiry. Caller holds e.mu or has exclusive access.
func (e *channelEntry) status(now time.Time) models.ChannelStatus {
	if e.disabled {
		return models.StatusDisabled
	}
	e.applyDailyReset(now)
	if e.state.DispatchCountToday >= e.target.DailyQuota {
		return models.StatusDailyLimitReached
	}
	if !e.state.LastDispatchAt.IsZero() && now.Sub(e.state.LastDispatchAt) < e.target.CooldownPeriod {
		return models.StatusCooldown
	}
	return models.StatusAvailable
}

// elapsedSinceDispatch orders channels for least-recently-used selection.
// A channel that never dispatched sorts first.
func (e *channelEntry) elapsedSinceDispatch(now time.Time) time.Duration {
	if e.state.LastDispatchAt.IsZero() {
		return time.Duration(1<<62 - 1)
	}
	return now.Sub(e.state.LastDispatchAt)
}

// SelectChannel picks the channel that would receive a deal of the given
// category right now, or the most specific reason none qualifies.
func (r *Router) SelectChannel(category string, now time.Time) (*models.ChannelTarget, Reason) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, reason := r.selectLocked(category, nil, now)
	if entry == nil {
		return nil, reason
	}
	target := entry.target
	return &target, ReasonNone
}

// candidate is a point-in-time snapshot of one channel, taken under the
// entry's lock so selection never races dispatch commits or admin flips.
type candidate struct {
	entry   *channelEntry
	status  models.ChannelStatus
	elapsed time.Duration
}

// selectLocked runs the selection filters in order, narrowing the candidate
// set stage by stage so the reported reason names the last non-empty stage.
// deal is optional; when present, tier admission gating applies. Caller
// holds r.mu.
func (r *Router) selectLocked(category string, deal *models.DealEvent, now time.Time) (*channelEntry, Reason) {
	var eligible []candidate
	for _, e := range r.channels {
		if !e.target.Eligible(category) {
			continue
		}
		e.mu.Lock()
		eligible = append(eligible, candidate{
			entry:   e,
			status:  e.status(now),
			elapsed: e.elapsedSinceDispatch(now),
		})
		e.mu.Unlock()
	}
	if len(eligible) == 0 {
		return nil, ReasonNoEligibleChannel
	}

	var enabled []candidate
	for _, c := range eligible {
		if c.status != models.StatusDisabled {
			enabled = append(enabled, c)
		}
	}
	if len(enabled) == 0 {
		return nil, ReasonAllDisabled
	}

	visible := enabled
	if deal != nil {
		visible = nil
		for _, c := range enabled {
			if r.admission.IsVisible(*deal, c.entry.target.Audience, c.entry.target.Class, now) {
				visible = append(visible, c)
			}
		}
		if len(visible) == 0 {
			return nil, ReasonAdmissionDelayed
		}
	}

	var underQuota []candidate
	for _, c := range visible {
		if c.status != models.StatusDailyLimitReached {
			underQuota = append(underQuota, c)
		}
	}
	if len(underQuota) == 0 {
		return nil, ReasonAllAtDailyLimit
	}

	var ready []candidate
	for _, c := range underQuota {
		if c.status == models.StatusAvailable {
			ready = append(ready, c)
		}
	}
	if len(ready) == 0 {
		return nil, ReasonAllOnCooldown
	}

	// Least-recently-used wins; ties keep declaration order.
	best := ready[0]
	for _, c := range ready[1:] {
		if c.elapsed > best.elapsed {
			best = c
		}
	}
	return best.entry, ReasonNone
}

// Dispatch routes one deal: select a channel, render and validate a title,
// publish, and commit state. State mutates only on confirmed delivery.
func (r *Router) Dispatch(ctx context.Context, deal models.MonetizedDeal, now time.Time) (Outcome, error) {
	for attempt := 0; attempt <= len(r.channels); attempt++ {
		r.mu.Lock()
		entry, reason := r.selectLocked(deal.Category, &deal.DealEvent, now)
		r.mu.Unlock()
		if entry == nil {
			return Outcome{Reason: reason}, nil
		}

		entry.mu.Lock()
		if entry.status(now) != models.StatusAvailable {
			// Raced with another dispatch on this channel; re-select.
			entry.mu.Unlock()
			continue
		}
		outcome, err := r.dispatchLocked(ctx, entry, deal, now)
		entry.mu.Unlock()
		return outcome, err
	}
	return Outcome{Reason: ReasonAllOnCooldown}, nil
}

// dispatchLocked publishes to the chosen channel and commits. Caller holds
// entry.mu, which keeps this channel single-writer through the commit.
func (r *Router) dispatchLocked(ctx context.Context, entry *channelEntry, deal models.MonetizedDeal, now time.Time) (Outcome, error) {
	title, ok := r.renderTitle(entry, deal)
	if !ok {
		// No template produced a publishable title; no quota consumed.
		return Outcome{Reason: ReasonTitleValidationFailed}, nil
	}

	if err := r.sink.Publish(ctx, entry.target, title, deal); err != nil {
		// Not dispatched: state untouched, so no cooldown or quota burn.
		return Outcome{}, err
	}

	entry.state.LastDispatchAt = now
	entry.state.DispatchCountToday++
	if entry.state.DailyResetAt.IsZero() {
		entry.state.DailyResetAt = now
	}

	record := models.DistributionRecord{
		DealKey:      deal.DedupKey(),
		ChannelID:    entry.target.ID,
		DispatchedAt: now,
	}
	if err := r.store.CommitDispatch(ctx, entry.state, record); err != nil {
		// The send went out but the fact was not persisted. Surface it as a
		// state-store failure so the cycle aborts instead of dropping it.
		return Outcome{Dispatched: true, ChannelID: entry.target.ID, Title: title},
			fmt.Errorf("%w: %v", models.ErrStateStore, err)
	}

	return Outcome{Dispatched: true, ChannelID: entry.target.ID, Title: title}, nil
}

func (r *Router) renderTitle(entry *channelEntry, deal models.MonetizedDeal) (string, bool) {
	for _, tpl := range entry.templates.Candidates() {
		title := RenderTemplate(tpl, deal)
		if err := r.titles.Validate(title); err != nil {
			slog.Debug("Title rejected, trying next template", "channel", entry.target.ID, "error", err)
			continue
		}
		return title, true
	}
	return "", false
}

// Disable takes a channel out of rotation until an explicit re-enable. The
// flag is persisted so it survives restarts.
func (r *Router) Disable(ctx context.Context, channelID, reason string) error {
	entry, ok := r.byID[channelID]
	if !ok {
		return fmt.Errorf("unknown channel %q", channelID)
	}
	entry.mu.Lock()
	entry.disabled = true
	entry.reason = reason
	entry.mu.Unlock()
	if err := r.store.SetChannelDisabled(ctx, channelID, true, reason); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStateStore, err)
	}
	slog.Info("Channel disabled", "channel", channelID, "reason", reason)
	return nil
}

// Enable returns a disabled channel to rotation. Channels never re-enable
// automatically.
func (r *Router) Enable(ctx context.Context, channelID string) error {
	entry, ok := r.byID[channelID]
	if !ok {
		return fmt.Errorf("unknown channel %q", channelID)
	}
	entry.mu.Lock()
	entry.disabled = false
	entry.reason = ""
	entry.mu.Unlock()
	if err := r.store.SetChannelDisabled(ctx, channelID, false, ""); err != nil {
		return fmt.Errorf("%w: %v", models.ErrStateStore, err)
	}
	slog.Info("Channel enabled", "channel", channelID)
	return nil
}

// StatusView is a read-only snapshot of one channel for the ops surface.
type StatusView struct {
	ChannelID          string               `json:"channelId"`
	Status             models.ChannelStatus `json:"status"`
	DisableReason      string               `json:"disableReason,omitempty"`
	LastDispatchAt     time.Time            `json:"lastDispatchAt"`
	DispatchCountToday int                  `json:"dispatchCountToday"`
	DailyQuota         int                  `json:"dailyQuota"`
}

// Statuses reports every channel's current state.
func (r *Router) Statuses(now time.Time) []StatusView {
	views := make([]StatusView, 0, len(r.channels))
	for _, e := range r.channels {
		e.mu.Lock()
		views = append(views, StatusView{
			ChannelID:          e.target.ID,
			Status:             e.status(now),
			DisableReason:      e.reason,
			LastDispatchAt:     e.state.LastDispatchAt,
			DispatchCountToday: e.state.DispatchCountToday,
			DailyQuota:         e.target.DailyQuota,
		})
		e.mu.Unlock()
	}
	return views
}
