package config

import (
	"reflect"

	"github.com/intervoq/intervoq/internal/gateway"
)

// ConfigDiff describes what changed between two configs.
// Only fields that can be safely hot-reloaded are tracked.
type ConfigDiff struct {
	LogLevelChanged bool
	NewLogLevel     LogLevel

	// RoutesChanged is true when any task route or the default route differs.
	RoutesChanged bool
	RouteChanges  []RouteDiff

	// VoiceChanged is true when the interviewer voice configuration differs.
	VoiceChanged bool
	NewVoice     VoiceConfig
}

// RouteDiff describes what changed for a single LLM task route.
type RouteDiff struct {
	Task    string
	Added   bool
	Removed bool

	// Changed is true when the route exists in both configs with a different
	// primary or fallback chain.
	Changed bool
}

// Diff compares old and new configs and returns what changed.
// Only tracks changes that are safe to apply without restart.
func Diff(old, new *Config) ConfigDiff {
	d := ConfigDiff{}

	if old.Server.LogLevel != new.Server.LogLevel {
		d.LogLevelChanged = true
		d.NewLogLevel = new.Server.LogLevel
	}

	if old.Interview.Voice != new.Interview.Voice {
		d.VoiceChanged = true
		d.NewVoice = new.Interview.Voice
	}

	oldRoutes := old.Providers.LLM.Routes
	newRoutes := new.Providers.LLM.Routes

	for task, oldRoute := range oldRoutes {
		newRoute, exists := newRoutes[task]
		if !exists {
			d.RouteChanges = append(d.RouteChanges, RouteDiff{Task: task, Removed: true})
			d.RoutesChanged = true
			continue
		}
		if !routesEqual(oldRoute, newRoute) {
			d.RouteChanges = append(d.RouteChanges, RouteDiff{Task: task, Changed: true})
			d.RoutesChanged = true
		}
	}
	for task := range newRoutes {
		if _, exists := oldRoutes[task]; !exists {
			d.RouteChanges = append(d.RouteChanges, RouteDiff{Task: task, Added: true})
			d.RoutesChanged = true
		}
	}

	if !routesEqual(old.Providers.LLM.DefaultRoute, new.Providers.LLM.DefaultRoute) {
		d.RoutesChanged = true
	}

	return d
}

func routesEqual(a, b gateway.Route) bool {
	return reflect.DeepEqual(a, b)
}
