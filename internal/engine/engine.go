// Package engine orchestrates subscription document synthesis: load the
// subscription, fetch its selected upstream sources, resolve selectors,
// merge groups and rules, assemble the document and cache it by token.
package engine

import (
	"context"
	"errors"
	"time"

	"github.com/elysiawen/SubLinks-sub001/internal/cache"
	"github.com/elysiawen/SubLinks-sub001/internal/fetch"
	"github.com/elysiawen/SubLinks-sub001/internal/model"
	"github.com/elysiawen/SubLinks-sub001/internal/rules"
	"github.com/elysiawen/SubLinks-sub001/internal/store"
	"github.com/elysiawen/SubLinks-sub001/internal/synth"
	"github.com/elysiawen/SubLinks-sub001/internal/upstream"
	"github.com/sirupsen/logrus"
)

// SubscriptionStore, ConfigSetStore and SettingsProvider are the collaborator
// contracts the engine consumes. *store.Store satisfies all three; tests
// inject in-memory fakes.
type SubscriptionStore interface {
	GetSubscription(token string) (*model.Subscription, error)
}

type ConfigSetStore interface {
	GetConfigSet(id string) (*model.ConfigSet, error)
}

type SettingsProvider interface {
	Settings() (model.Settings, error)
}

type Options struct {
	Fetch fetch.Options

	// PrecacheConcurrency bounds parallel builds in one precache batch.
	PrecacheConcurrency int64
}

type Engine struct {
	subs  SubscriptionStore
	sets  ConfigSetStore
	cfg   SettingsProvider
	cli   *upstream.Client
	cache *cache.Cache
	opt   Options
}

func New(subs SubscriptionStore, sets ConfigSetStore, cfg SettingsProvider, opt Options) *Engine {
	e := &Engine{
		subs: subs,
		sets: sets,
		cfg:  cfg,
		cli:  &upstream.Client{Fetch: opt.Fetch},
		opt:  opt,
	}
	e.cache = cache.New(e.buildDocument, e.cacheTTL)
	return e
}

// Document is the primary entry point: read-through cached fetch for token.
func (e *Engine) Document(ctx context.Context, token string) (*synth.Document, error) {
	return e.cache.Get(ctx, token)
}

// Refresh rebuilds token's document, bypassing any cached copy.
func (e *Engine) Refresh(ctx context.Context, token string) (*synth.Document, error) {
	return e.cache.ForceRefresh(ctx, token)
}

func (e *Engine) Invalidate(token string) { e.cache.Invalidate(token) }

func (e *Engine) InvalidateAll() { e.cache.InvalidateAll() }

// Precache warms the cache for tokens; per-token failures are isolated and
// reported in the result, never aborting the batch.
func (e *Engine) Precache(ctx context.Context, tokens []string, force bool) cache.PrecacheResult {
	return e.cache.Precache(ctx, tokens, force, e.opt.PrecacheConcurrency)
}

func (e *Engine) cacheTTL() time.Duration {
	settings, err := e.cfg.Settings()
	if err != nil {
		return model.Settings{}.CacheTTL()
	}
	return settings.CacheTTL()
}

// buildDocument is the full synthesis pipeline for one token. It runs under
// the cache's per-token singleflight; a failed build leaves the token absent.
func (e *Engine) buildDocument(ctx context.Context, token string) (*synth.Document, error) {
	sub, err := e.subs.GetSubscription(token)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, errSubNotFound(token)
		}
		return nil, err
	}
	if !sub.Enabled {
		return nil, errSubDisabled(token)
	}

	settings, err := e.cfg.Settings()
	if err != nil {
		return nil, err
	}
	sources := settings.SelectSources(sub.SelectedSources)
	if len(sources) == 0 {
		return nil, errNoSources()
	}

	res := e.cli.FetchAll(ctx, sources)
	for name, ferr := range res.Failed {
		sourceFailuresTotal.WithLabelValues(name).Inc()
		logrus.WithField("token", token).WithField("source", name).
			Warnf("upstream fetch failed: %v", ferr)
	}
	if len(res.Failed) == len(sources) {
		return nil, errAllSourcesFailed(firstFailure(sources, res.Failed))
	}
	for _, w := range res.Warnings {
		logrus.WithField("token", token).Debug(w)
	}

	customGroups := e.loadGroupSet(token, sub)
	customRules := e.loadRuleSet(token, sub)
	appended := e.parseAppended(token, sub)

	groups, warns := synth.Groups(res.Groups, customGroups, res.Inventory)

	policies := make(map[string]struct{}, len(groups)+2)
	for _, name := range model.BuiltinPolicies() {
		policies[name] = struct{}{}
	}
	for _, g := range groups {
		policies[g.Name] = struct{}{}
	}

	ruleList, ruleWarns := synth.Rules(res.Rules, customRules, appended, policies)
	for _, w := range append(warns, ruleWarns...) {
		logrus.WithField("token", token).Warn(w)
	}

	return synth.Assemble(token, res.Inventory, groups, ruleList)
}

// loadGroupSet resolves the subscription's group axis. Any failure (missing
// set, wrong kind, unparseable content) falls back to the default layout for
// this axis only.
func (e *Engine) loadGroupSet(token string, sub *model.Subscription) []model.Group {
	if sub.GroupRef.IsDefault() {
		return nil
	}
	set, err := e.sets.GetConfigSet(sub.GroupRef.ID())
	if err != nil {
		logrus.WithField("token", token).Warnf("group set %q unavailable, using default: %v", sub.GroupRef.ID(), err)
		return nil
	}
	if set.Kind != model.SetGroups {
		logrus.WithField("token", token).Warnf("config set %q is not a group set, using default", set.ID)
		return nil
	}
	groups, err := rules.ParseGroupText(set.Content)
	if err != nil {
		logrus.WithField("token", token).Warnf("group set %q unparseable, using default: %v", set.ID, err)
		return nil
	}
	return groups
}

func (e *Engine) loadRuleSet(token string, sub *model.Subscription) []model.Rule {
	if sub.RuleRef.IsDefault() {
		return nil
	}
	set, err := e.sets.GetConfigSet(sub.RuleRef.ID())
	if err != nil {
		logrus.WithField("token", token).Warnf("rule set %q unavailable, using default: %v", sub.RuleRef.ID(), err)
		return nil
	}
	if set.Kind != model.SetRules {
		logrus.WithField("token", token).Warnf("config set %q is not a rule set, using default", set.ID)
		return nil
	}
	ruleList, err := rules.ParseText(set.Content)
	if err != nil {
		logrus.WithField("token", token).Warnf("rule set %q unparseable, using default: %v", set.ID, err)
		return nil
	}
	return ruleList
}

// parseAppended parses the per-subscription appended rule text. Appended
// text is validated on write, but a bad line that slipped in degrades to
// "no appended rules" rather than failing the build.
func (e *Engine) parseAppended(token string, sub *model.Subscription) []model.Rule {
	if sub.CustomRules == "" {
		return nil
	}
	appended, err := rules.ParseText(sub.CustomRules)
	if err != nil {
		logrus.WithField("token", token).Warnf("appended rules unparseable, ignored: %v", err)
		return nil
	}
	return appended
}

func firstFailure(sources []model.UpstreamSource, failed map[string]error) error {
	for _, src := range sources {
		if err, ok := failed[src.Name]; ok {
			return err
		}
	}
	return nil
}
