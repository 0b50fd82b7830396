package config

import "slices"

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked; everything else
// (providers, stores, listen address) requires a restart.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// CooldownChanged is true when detect.cooldown_ms changed.
	CooldownChanged bool
	NewCooldownMS   int

	// TriggersAdded and TriggersRemoved list trigger phrase changes.
	TriggersAdded   []string
	TriggersRemoved []string

	// MatchChanged is true when any matcher tuning value changed.
	MatchChanged bool
	NewMatch     MatchConfig
}

// Empty reports whether the diff carries no hot-reloadable change.
func (d ConfigDiff) Empty() bool {
	return !d.LogLevelChanged && !d.CooldownChanged && !d.MatchChanged &&
		len(d.TriggersAdded) == 0 && len(d.TriggersRemoved) == 0
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Log.Level != new.Log.Level {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Log.Level
	}

	if old.Detect.CooldownMS != new.Detect.CooldownMS {
		d.CooldownChanged = true
		d.NewCooldownMS = new.Detect.CooldownMS
	}

	for _, phrase := range new.Detect.TriggerPhrases {
		if !slices.Contains(old.Detect.TriggerPhrases, phrase) {
			d.TriggersAdded = append(d.TriggersAdded, phrase)
		}
	}
	for _, phrase := range old.Detect.TriggerPhrases {
		if !slices.Contains(new.Detect.TriggerPhrases, phrase) {
			d.TriggersRemoved = append(d.TriggersRemoved, phrase)
		}
	}

	if old.Match != new.Match {
		d.MatchChanged = true
		d.NewMatch = new.Match
	}

	return d
}
