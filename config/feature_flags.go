package config

import (
	"hash/fnv"
	"strconv"
	"strings"
	"sync"

	"github.com/spf13/viper"
)

// FeatureFlags manages feature toggles with per-learner gradual rollout.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for testing/debugging)
	userOverrides map[string]map[string]bool // userID -> feature -> enabled
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100)
	// Learners are assigned based on hash of their ID
	RolloutPercent int
}

// Predefined feature flag names.
const (
	// Due-soon "assignment" reminders emitted by the sweep
	FeatureDueReminders = "notify.due_reminders"

	// Calendar events ordered by date instead of lessons-then-activities
	FeatureCalendarByDate = "calendar.sort_by_date"
)

// LoadFeatureFlags loads feature flags, applying FEATURE_<NAME> overrides.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_NOTIFY_DUE_REMINDERS=false
// Example: FEATURE_CALENDAR_SORT_BY_DATE=25 (25% rollout)
func LoadFeatureFlags(v *viper.Viper) *FeatureFlags {
	ff := NewFeatureFlags()
	if v != nil {
		ff.loadFrom(v)
	}
	return ff
}

// NewFeatureFlags returns the default flag set.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:      make(map[string]*Feature),
		userOverrides: make(map[string]map[string]bool),
	}

	ff.features[FeatureDueReminders] = &Feature{
		Name:           FeatureDueReminders,
		Description:    "Remind learners about activities due soon",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureCalendarByDate] = &Feature{
		Name:           FeatureCalendarByDate,
		Description:    "Sort calendar events by date",
		Enabled:        false,
		RolloutPercent: 0,
	}

	return ff
}

func (ff *FeatureFlags) loadFrom(v *viper.Viper) {
	for name, feature := range ff.features {
		val := strings.TrimSpace(v.GetString(featureNameToEnvKey(name)))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "notify.due_reminders" -> "FEATURE_NOTIFY_DUE_REMINDERS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the learner.
// A nil FeatureFlags reports every feature at its default.
func (ff *FeatureFlags) IsEnabled(featureName, userID string) bool {
	if ff == nil {
		ff = NewFeatureFlags()
	}

	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if overrides, ok := ff.userOverrides[userID]; ok {
		if enabled, ok := overrides[featureName]; ok {
			return enabled
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	if feature.RolloutPercent < 100 && userID != "" {
		return isInRollout(userID, featureName, feature.RolloutPercent)
	}

	return feature.RolloutPercent > 0
}

// isInRollout uses consistent hashing so learners stay in their bucket.
func isInRollout(userID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(userID))
	return int(h.Sum32()%100) < percent
}

// SetUserOverride sets a feature override for a specific learner.
func (ff *FeatureFlags) SetUserOverride(userID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.userOverrides[userID]; !ok {
		ff.userOverrides[userID] = make(map[string]bool)
	}
	ff.userOverrides[userID][featureName] = enabled
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}

	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0

	return nil
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
