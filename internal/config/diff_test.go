package config_test

import (
	"testing"

	"github.com/intervoq/intervoq/internal/config"
	"github.com/intervoq/intervoq/internal/gateway"
)

func baseConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{LogLevel: config.LogInfo},
		Interview: config.InterviewConfig{
			Voice: config.VoiceConfig{Provider: "deepgram", VoiceID: "aura-asteria-en"},
		},
		Providers: config.ProvidersConfig{
			LLM: config.LLMConfig{
				Routes: map[string]gateway.Route{
					"answer_evaluation": {
						Primary: gateway.ModelRef{Provider: "openrouter", Model: "gpt-4o"},
					},
				},
			},
		},
	}
}

func TestDiff_NoChanges(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	d := config.Diff(old, new)
	if d.LogLevelChanged || d.RoutesChanged || d.VoiceChanged {
		t.Errorf("diff = %+v, want zero", d)
	}
}

func TestDiff_LogLevel(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Server.LogLevel = config.LogDebug

	d := config.Diff(old, new)
	if !d.LogLevelChanged || d.NewLogLevel != config.LogDebug {
		t.Errorf("diff = %+v", d)
	}
}

func TestDiff_Voice(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Interview.Voice.VoiceID = "aura-orion-en"

	d := config.Diff(old, new)
	if !d.VoiceChanged || d.NewVoice.VoiceID != "aura-orion-en" {
		t.Errorf("diff = %+v", d)
	}
}

func TestDiff_RouteModified(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Providers.LLM.Routes["answer_evaluation"] = gateway.Route{
		Primary: gateway.ModelRef{Provider: "gemini", Model: "gemini-2.5-pro"},
	}

	d := config.Diff(old, new)
	if !d.RoutesChanged {
		t.Fatal("route change not detected")
	}
	if len(d.RouteChanges) != 1 || !d.RouteChanges[0].Changed || d.RouteChanges[0].Task != "answer_evaluation" {
		t.Errorf("route changes = %+v", d.RouteChanges)
	}
}

func TestDiff_RouteAddedAndRemoved(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	delete(new.Providers.LLM.Routes, "answer_evaluation")
	new.Providers.LLM.Routes["report_generation"] = gateway.Route{
		Primary: gateway.ModelRef{Provider: "openrouter", Model: "gpt-4o"},
	}

	d := config.Diff(old, new)
	if !d.RoutesChanged {
		t.Fatal("route changes not detected")
	}
	var added, removed bool
	for _, rc := range d.RouteChanges {
		if rc.Task == "report_generation" && rc.Added {
			added = true
		}
		if rc.Task == "answer_evaluation" && rc.Removed {
			removed = true
		}
	}
	if !added || !removed {
		t.Errorf("route changes = %+v", d.RouteChanges)
	}
}

func TestDiff_DefaultRoute(t *testing.T) {
	old, new := baseConfig(), baseConfig()
	new.Providers.LLM.DefaultRoute = gateway.Route{
		Primary: gateway.ModelRef{Provider: "openrouter", Model: "gpt-4o-mini"},
	}

	d := config.Diff(old, new)
	if !d.RoutesChanged {
		t.Error("default route change not detected")
	}
}
