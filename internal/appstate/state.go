package appstate

import "time"

// State represents the account lifecycle state. It is always derived from
// raw signals, never stored.
type State string

const (
	StateInstall         State = "INSTALL"
	StateSetupIncomplete State = "SETUP_INCOMPLETE"
	StateReadyBase       State = "READY_BASE"
	StateTrialPro        State = "TRIAL_PRO"
	StatePaidPro         State = "PAID_PRO"
	StateAdminPreview    State = "ADMIN_PREVIEW"
)

// Feature keys gated by the entitlement model
const (
	FeatureScheduling = "scheduling"
	FeatureServices   = "services"
	FeatureMileage    = "mileage"
	FeatureInvoicing  = "invoicing"
	FeatureTaxReports = "tax_reports"
)

// AllFeatures lists every gated feature key.
var AllFeatures = []string{
	FeatureScheduling,
	FeatureServices,
	FeatureMileage,
	FeatureInvoicing,
	FeatureTaxReports,
}

// Trial represents one feature trial window. Entries are created on trial
// start and never mutated; a trial is expired once Now passes ExpiresAt.
type Trial struct {
	StartedAt time.Time `json:"startedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Active reports whether the trial is still running at the given instant.
// The boundary is strict: a trial expiring exactly at now is not active.
func (t Trial) Active(now time.Time) bool {
	return t.ExpiresAt.After(now)
}

// Signals are the raw inputs to state derivation. Each group is fetched
// independently; Loading covers any group that has not resolved yet.
type Signals struct {
	Loading        bool
	Authenticated  bool
	IsAdmin        bool
	SetupCompleted bool
	Trials         map[string]Trial
	PaidFeatures   map[string]bool
	Now            time.Time
}

// HasActiveTrial reports whether any trial window is still open.
func (s Signals) HasActiveTrial() bool {
	for _, t := range s.Trials {
		if t.Active(s.Now) {
			return true
		}
	}
	return false
}

// HasPaidFeature reports whether any paid feature flag is set.
func (s Signals) HasPaidFeature() bool {
	for _, on := range s.PaidFeatures {
		if on {
			return true
		}
	}
	return false
}

// DeriveState computes the lifecycle state from raw signals. The precedence
// order is the tie-break policy: first match wins.
func DeriveState(sig Signals) State {
	if sig.Loading {
		return StateInstall
	}
	if !sig.Authenticated {
		return StateInstall
	}
	if sig.IsAdmin {
		return StateAdminPreview
	}
	if !sig.SetupCompleted {
		return StateSetupIncomplete
	}
	if sig.HasPaidFeature() {
		return StatePaidPro
	}
	if sig.HasActiveTrial() {
		return StateTrialPro
	}
	return StateReadyBase
}

// CapabilitySet lists what a state allows unconditionally. Per-feature
// entitlement in the pro states is resolved against the paid/trial signals
// on top of this table (see HasFeatureAccess).
type CapabilitySet struct {
	Features        map[string]bool
	CanReset        bool
	BypassesPaywall bool
}

func featureSet(keys ...string) map[string]bool {
	m := make(map[string]bool, len(keys))
	for _, k := range keys {
		m[k] = true
	}
	return m
}

var capabilityTable = map[State]CapabilitySet{
	StateInstall:         {Features: featureSet()},
	StateSetupIncomplete: {Features: featureSet()},
	StateReadyBase:       {Features: featureSet(FeatureInvoicing)},
	StateTrialPro:        {Features: featureSet(FeatureInvoicing)},
	StatePaidPro:         {Features: featureSet(FeatureInvoicing)},
	StateAdminPreview: {
		Features:        featureSet(AllFeatures...),
		CanReset:        true,
		BypassesPaywall: true,
	},
}

// Capabilities returns the static capability set for a state.
func Capabilities(state State) CapabilitySet {
	return capabilityTable[state]
}

// HasFeatureAccess resolves access to one feature key. Admin preview always
// grants access regardless of the underlying paid/trial signals. In the pro
// states, premium keys require a paid flag or an unexpired trial for that
// specific key.
func HasFeatureAccess(state State, sig Signals, key string) bool {
	caps := Capabilities(state)
	if caps.BypassesPaywall {
		return true
	}
	if caps.Features[key] {
		return true
	}
	if state != StateTrialPro && state != StatePaidPro {
		return false
	}
	if sig.PaidFeatures[key] {
		return true
	}
	if t, ok := sig.Trials[key]; ok && t.Active(sig.Now) {
		return true
	}
	return false
}

// Action is a lifecycle transition trigger.
type Action string

const (
	ActionCompleteSetup Action = "complete_setup"
	ActionStartTrial    Action = "start_trial"
	ActionSubscribe     Action = "subscribe"
	ActionTrialExpired  Action = "trial_expired"
	ActionReset         Action = "reset"
)

var transitionTable = map[State]map[Action]State{
	StateSetupIncomplete: {
		ActionCompleteSetup: StateReadyBase,
	},
	StateReadyBase: {
		ActionStartTrial: StateTrialPro,
		ActionSubscribe:  StatePaidPro,
	},
	StateTrialPro: {
		ActionSubscribe:    StatePaidPro,
		ActionTrialExpired: StateReadyBase,
	},
	StateAdminPreview: {
		ActionReset: StateInstall,
	},
}

// NextState returns the expected state after an action. Actions that are not
// valid from the current state are no-ops. The table is advisory only; the
// caller re-derives from fresh signals rather than trusting it.
func NextState(state State, action Action) State {
	if row, ok := transitionTable[state]; ok {
		if next, ok := row[action]; ok {
			return next
		}
	}
	return state
}
