package appstate

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeProvider struct {
	accountID     string
	authenticated bool
	isAdmin       bool
	setup         SetupInfo
	trials        map[string]Trial
	paid          map[string]bool

	authErr  error
	writeErr error

	resetCalls  int
	setupWrites map[string]interface{}
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		accountID:   "acct-1",
		setupWrites: make(map[string]interface{}),
	}
}

func (f *fakeProvider) AccountID(ctx context.Context) (string, error) { return f.accountID, nil }

func (f *fakeProvider) FetchAuth(ctx context.Context) (bool, bool, error) {
	return f.authenticated, f.isAdmin, f.authErr
}

func (f *fakeProvider) FetchSetup(ctx context.Context) (SetupInfo, error) { return f.setup, nil }

// FetchTrials and FetchPaidFeatures return copies, like the real provider
// decoding a fresh settings row per fetch. Sharing the maps would let the
// coordinator's memoized signals alias the fake's mutable state.
func (f *fakeProvider) FetchTrials(ctx context.Context) (map[string]Trial, error) {
	out := make(map[string]Trial, len(f.trials))
	for k, v := range f.trials {
		out[k] = v
	}
	return out, nil
}

func (f *fakeProvider) FetchPaidFeatures(ctx context.Context) (map[string]bool, error) {
	out := make(map[string]bool, len(f.paid))
	for k, v := range f.paid {
		out[k] = v
	}
	return out, nil
}

func (f *fakeProvider) WriteSetupField(ctx context.Context, field string, value interface{}) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	f.setupWrites[field] = value
	if field == "setupCompleted" {
		f.setup.SetupCompleted, _ = value.(bool)
	}
	return nil
}

func (f *fakeProvider) WriteReset(ctx context.Context) error {
	f.resetCalls++
	f.setup = SetupInfo{}
	f.trials = nil
	f.paid = nil
	return nil
}

type fakePurger struct {
	purged []string
}

func (f *fakePurger) PurgeCollection(ctx context.Context, collection string) error {
	f.purged = append(f.purged, collection)
	return nil
}

func TestCoordinatorStartsAtInstall(t *testing.T) {
	c := NewCoordinator(newFakeProvider(), &fakePurger{}, nil)
	if got := c.State(); got != StateInstall {
		t.Errorf("initial state = %s, want %s", got, StateInstall)
	}
}

func TestRefreshDerivesFromSignals(t *testing.T) {
	provider := newFakeProvider()
	provider.authenticated = true
	provider.setup = SetupInfo{SetupCompleted: true, CompanyName: "Acme Lawn Care"}

	c := NewCoordinator(provider, &fakePurger{}, nil)
	if got := c.Refresh(context.Background()); got != StateReadyBase {
		t.Fatalf("Refresh() = %s, want %s", got, StateReadyBase)
	}

	if setup := c.Setup(); setup.CompanyName != "Acme Lawn Care" {
		t.Errorf("setup info not memoized: %+v", setup)
	}
}

func TestRefreshFetchFailureKeepsInstall(t *testing.T) {
	provider := newFakeProvider()
	provider.authenticated = true
	provider.setup = SetupInfo{SetupCompleted: true}
	provider.authErr = errors.New("settings service unreachable")

	c := NewCoordinator(provider, &fakePurger{}, nil)
	if got := c.Refresh(context.Background()); got != StateInstall {
		t.Errorf("failed fetch should pin state at %s, got %s", StateInstall, got)
	}
}

func TestRefreshNotifiesOnlyOnChange(t *testing.T) {
	provider := newFakeProvider()
	provider.authenticated = true
	provider.setup = SetupInfo{SetupCompleted: true}

	var notified []State
	c := NewCoordinator(provider, &fakePurger{}, func(s State) {
		notified = append(notified, s)
	})

	c.Refresh(context.Background())
	c.Refresh(context.Background())
	c.Refresh(context.Background())

	if len(notified) != 1 || notified[0] != StateReadyBase {
		t.Errorf("expected a single READY_BASE notification, got %v", notified)
	}
}

func TestResetDeniedOutsideAdminPreview(t *testing.T) {
	provider := newFakeProvider()
	provider.authenticated = true
	provider.setup = SetupInfo{SetupCompleted: true}
	purger := &fakePurger{}

	c := NewCoordinator(provider, purger, nil)
	c.Refresh(context.Background())

	if c.ResetToInstall(context.Background()) {
		t.Error("reset must be denied from READY_BASE")
	}
	if provider.resetCalls != 0 {
		t.Error("denied reset must not touch upstream settings")
	}
	if len(purger.purged) != 0 {
		t.Error("denied reset must not purge caches")
	}
}

func TestResetFromAdminPreview(t *testing.T) {
	provider := newFakeProvider()
	provider.authenticated = true
	provider.isAdmin = true
	provider.setup = SetupInfo{SetupCompleted: true, CompanyName: "Acme"}
	provider.trials = map[string]Trial{FeatureMileage: {ExpiresAt: time.Now().Add(time.Hour)}}
	provider.paid = map[string]bool{FeatureScheduling: true}
	purger := &fakePurger{}

	c := NewCoordinator(provider, purger, nil)
	if got := c.Refresh(context.Background()); got != StateAdminPreview {
		t.Fatalf("precondition: state = %s", got)
	}

	if !c.ResetToInstall(context.Background()) {
		t.Fatal("reset should succeed from ADMIN_PREVIEW")
	}
	if provider.resetCalls != 1 {
		t.Errorf("resetCalls = %d, want 1", provider.resetCalls)
	}

	// Only the feature-derived caches are purged; business collections are
	// never in the purge list.
	if len(purger.purged) != len(FeatureCacheCollections) {
		t.Fatalf("purged %v, want %v", purger.purged, FeatureCacheCollections)
	}
	for i, collection := range FeatureCacheCollections {
		if purger.purged[i] != collection {
			t.Errorf("purged[%d] = %s, want %s", i, purger.purged[i], collection)
		}
	}
	for _, business := range []string{"clients", "invoices", "projects"} {
		for _, purged := range purger.purged {
			if purged == business {
				t.Errorf("reset must not purge business collection %s", business)
			}
		}
	}

	// Trials and paid flags are gone, so the admin lands back in preview of
	// a clean account rather than a pro state.
	if c.Setup() != (SetupInfo{}) {
		t.Errorf("setup info should be cleared, got %+v", c.Setup())
	}
}

func TestPersistSetupStepFailureLeavesLocalUnchanged(t *testing.T) {
	provider := newFakeProvider()
	provider.authenticated = true

	c := NewCoordinator(provider, &fakePurger{}, nil)
	c.Refresh(context.Background())

	provider.writeErr = errors.New("disk full")
	if err := c.PersistSetupStep(context.Background(), "companyName", "Acme"); err == nil {
		t.Fatal("expected persist error")
	}
	if c.Setup().CompanyName != "" {
		t.Error("failed write must not patch the local copy")
	}
}

func TestPersistSetupCompletedMovesState(t *testing.T) {
	provider := newFakeProvider()
	provider.authenticated = true

	c := NewCoordinator(provider, &fakePurger{}, nil)
	if got := c.Refresh(context.Background()); got != StateSetupIncomplete {
		t.Fatalf("precondition: state = %s", got)
	}

	if err := c.PersistSetupStep(context.Background(), "setupCompleted", true); err != nil {
		t.Fatalf("persist: %v", err)
	}
	if got := c.State(); got != StateReadyBase {
		t.Errorf("state after setup completion = %s, want %s", got, StateReadyBase)
	}
	if !c.Setup().SetupCompleted {
		t.Error("setup flag should be patched locally")
	}
}

func TestSubscribeWhileAlreadyPaidUnlocksFeature(t *testing.T) {
	provider := newFakeProvider()
	provider.authenticated = true
	provider.setup = SetupInfo{SetupCompleted: true}
	provider.paid = map[string]bool{FeatureScheduling: true}

	c := NewCoordinator(provider, &fakePurger{}, nil)
	if got := c.Refresh(context.Background()); got != StatePaidPro {
		t.Fatalf("precondition: state = %s", got)
	}
	if c.HasAccess(FeatureMileage) {
		t.Fatal("precondition: mileage must start locked")
	}

	// A second purchase does not move the state, but the entitlement must
	// still be visible without a manual refresh.
	provider.paid[FeatureMileage] = true
	if got := c.TransitionTo(context.Background(), ActionSubscribe); got != StatePaidPro {
		t.Fatalf("state after purchase = %s, want %s", got, StatePaidPro)
	}
	if !c.HasAccess(FeatureMileage) {
		t.Error("purchased feature still locked after transition")
	}
}

func TestTrialStartWhileAlreadyTrialingUnlocksFeature(t *testing.T) {
	provider := newFakeProvider()
	provider.authenticated = true
	provider.setup = SetupInfo{SetupCompleted: true}
	provider.trials = map[string]Trial{
		FeatureScheduling: {ExpiresAt: time.Now().Add(24 * time.Hour)},
	}

	c := NewCoordinator(provider, &fakePurger{}, nil)
	if got := c.Refresh(context.Background()); got != StateTrialPro {
		t.Fatalf("precondition: state = %s", got)
	}
	if c.HasAccess(FeatureServices) {
		t.Fatal("precondition: services must start locked")
	}

	provider.trials[FeatureServices] = Trial{ExpiresAt: time.Now().Add(24 * time.Hour)}
	if got := c.TransitionTo(context.Background(), ActionStartTrial); got != StateTrialPro {
		t.Fatalf("state after trial start = %s, want %s", got, StateTrialPro)
	}
	if !c.HasAccess(FeatureServices) {
		t.Error("newly trialed feature still locked after transition")
	}
}

func TestTransitionToSkipsRefreshOnNoOp(t *testing.T) {
	provider := newFakeProvider()
	provider.authenticated = true
	provider.setup = SetupInfo{SetupCompleted: true}

	c := NewCoordinator(provider, &fakePurger{}, nil)
	c.Refresh(context.Background())

	// trial_expired is not valid from READY_BASE; the state must not move.
	if got := c.TransitionTo(context.Background(), ActionTrialExpired); got != StateReadyBase {
		t.Errorf("no-op transition moved state to %s", got)
	}
}
