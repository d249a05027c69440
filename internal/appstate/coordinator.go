package appstate

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// SetupInfo holds the onboarding fields kept alongside the setup flag.
type SetupInfo struct {
	SetupCompleted bool
	CompanyName    string
	BusinessType   string
	BusinessSector string
}

// SettingsProvider is the upstream settings/auth collaborator. It owns the
// account identity and the per-account settings record the signals are
// fetched from.
type SettingsProvider interface {
	AccountID(ctx context.Context) (string, error)
	FetchAuth(ctx context.Context) (authenticated bool, isAdmin bool, err error)
	FetchSetup(ctx context.Context) (SetupInfo, error)
	FetchTrials(ctx context.Context) (map[string]Trial, error)
	FetchPaidFeatures(ctx context.Context) (map[string]bool, error)

	WriteSetupField(ctx context.Context, field string, value interface{}) error
	// WriteReset marks setup incomplete and clears every trial entry and
	// paid-feature flag for the account.
	WriteReset(ctx context.Context) error
}

// CachePurger clears locally cached feature-derived record sets.
type CachePurger interface {
	PurgeCollection(ctx context.Context, collection string) error
}

// FeatureCacheCollections are the onboarding-derived record sets wiped by a
// reset. Business records (clients, invoices, projects) are never touched.
var FeatureCacheCollections = []string{
	"service_items",
	"appointments",
	"project_cache",
}

// Coordinator fetches the raw signals, memoizes the derived state and
// capability set, and executes lifecycle transitions.
type Coordinator struct {
	mu sync.RWMutex

	settings SettingsProvider
	purger   CachePurger
	now      func() time.Time

	signals Signals
	state   State
	caps    CapabilitySet
	setup   SetupInfo
	fetched bool

	onChange func(State)
}

// NewCoordinator creates a coordinator. onChange may be nil; when set it is
// invoked only when the derived state actually changes.
func NewCoordinator(settings SettingsProvider, purger CachePurger, onChange func(State)) *Coordinator {
	c := &Coordinator{
		settings: settings,
		purger:   purger,
		now:      time.Now,
		onChange: onChange,
	}
	c.signals = Signals{Loading: true, Now: c.now()}
	c.state = DeriveState(c.signals)
	c.caps = Capabilities(c.state)
	return c
}

// State returns the memoized derived state.
func (c *Coordinator) State() State {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// CapabilitySet returns the memoized capability set.
func (c *Coordinator) CapabilitySet() CapabilitySet {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.caps
}

// Setup returns the onboarding fields. SetupCompleted stays an independent
// signal next to the lifecycle state so an admin with unfinished onboarding
// is still ADMIN_PREVIEW while the wizard can be replayed.
func (c *Coordinator) Setup() SetupInfo {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.setup
}

// HasAccess checks feature access against the memoized state and signals.
func (c *Coordinator) HasAccess(key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return HasFeatureAccess(c.state, c.signals, key)
}

// Refresh fetches the four signal groups in parallel and re-derives the
// state. A failed group is treated as still loading, which pins the derived
// state at INSTALL instead of flashing a wrong one.
func (c *Coordinator) Refresh(ctx context.Context) State {
	var (
		wg sync.WaitGroup

		authenticated, isAdmin bool
		setup                  SetupInfo
		trials                 map[string]Trial
		paid                   map[string]bool

		errMu    sync.Mutex
		fetchErr error
	)

	recordErr := func(group string, err error) {
		errMu.Lock()
		defer errMu.Unlock()
		log.Printf("⚠️ AppState: %s signal fetch failed: %v", group, err)
		if fetchErr == nil {
			fetchErr = fmt.Errorf("%s: %w", group, err)
		}
	}

	wg.Add(4)
	go func() {
		defer wg.Done()
		var err error
		if authenticated, isAdmin, err = c.settings.FetchAuth(ctx); err != nil {
			recordErr("auth", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if setup, err = c.settings.FetchSetup(ctx); err != nil {
			recordErr("setup", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if trials, err = c.settings.FetchTrials(ctx); err != nil {
			recordErr("trials", err)
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		if paid, err = c.settings.FetchPaidFeatures(ctx); err != nil {
			recordErr("paid features", err)
		}
	}()
	wg.Wait()

	sig := Signals{
		Loading:        fetchErr != nil,
		Authenticated:  authenticated,
		IsAdmin:        isAdmin,
		SetupCompleted: setup.SetupCompleted,
		Trials:         trials,
		PaidFeatures:   paid,
		Now:            c.now(),
	}

	c.mu.Lock()
	c.signals = sig
	c.setup = setup
	c.fetched = fetchErr == nil
	prev := c.state
	c.state = DeriveState(sig)
	c.caps = Capabilities(c.state)
	changed := c.state != prev
	next := c.state
	c.mu.Unlock()

	if changed {
		log.Printf("🔁 AppState: %s -> %s", prev, next)
		if c.onChange != nil {
			c.onChange(next)
		}
	}
	return next
}

// TransitionTo consults the transition table and refetches signals when the
// table says the state would move. The returned state is re-derived, not
// taken from the table. Trial starts and purchases change the entitlement
// signals even when the state stays put (a second subscription while already
// PAID_PRO), so those actions refetch unconditionally.
func (c *Coordinator) TransitionTo(ctx context.Context, action Action) State {
	c.mu.RLock()
	cur := c.state
	c.mu.RUnlock()

	if NextState(cur, action) == cur && !mutatesEntitlements(action) {
		return cur
	}
	return c.Refresh(ctx)
}

func mutatesEntitlements(action Action) bool {
	return action == ActionStartTrial || action == ActionSubscribe
}

// ResetToInstall wipes onboarding-derived state. Permitted only from
// ADMIN_PREVIEW; any other state is a permission failure reported as false,
// not an error. Already-synced business records are left untouched.
func (c *Coordinator) ResetToInstall(ctx context.Context) bool {
	c.mu.RLock()
	cur := c.state
	c.mu.RUnlock()

	if cur != StateAdminPreview {
		log.Printf("🚫 AppState: reset denied from state %s", cur)
		return false
	}

	if err := c.settings.WriteReset(ctx); err != nil {
		log.Printf("❌ AppState: reset settings write failed: %v", err)
		return false
	}

	for _, collection := range FeatureCacheCollections {
		if err := c.purger.PurgeCollection(ctx, collection); err != nil {
			log.Printf("⚠️ AppState: purge of %s failed: %v", collection, err)
		}
	}

	c.mu.Lock()
	c.setup = SetupInfo{}
	c.signals.SetupCompleted = false
	c.signals.Trials = nil
	c.signals.PaidFeatures = nil
	c.mu.Unlock()

	log.Println("🧹 AppState: reset to install completed")
	c.Refresh(ctx)
	return true
}

// PersistSetupStep writes a single onboarding field upstream and patches the
// local copy only on success, so failure leaves local state unchanged.
func (c *Coordinator) PersistSetupStep(ctx context.Context, field string, value interface{}) error {
	if err := c.settings.WriteSetupField(ctx, field, value); err != nil {
		return fmt.Errorf("persist setup step %q: %w", field, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	switch field {
	case "companyName":
		c.setup.CompanyName, _ = value.(string)
	case "businessType":
		c.setup.BusinessType, _ = value.(string)
	case "businessSector":
		c.setup.BusinessSector, _ = value.(string)
	case "setupCompleted":
		done, _ := value.(bool)
		c.setup.SetupCompleted = done
		c.signals.SetupCompleted = done
		c.state = DeriveState(c.signals)
		c.caps = Capabilities(c.state)
	}
	return nil
}
