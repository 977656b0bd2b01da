package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/flemzord/almond/internal/core"
	"github.com/flemzord/almond/internal/cron"
	"github.com/flemzord/almond/internal/dispatch"
)

// Validate checks the structural validity of a Config whose defaults have
// been filled. It verifies the version field, ensures modules are present,
// checks that all referenced module IDs exist in the registry, and checks
// cross-references between sections. Every failure is reported.
func Validate(cfg *Config) error {
	var errs []error

	if cfg.Version == "" {
		errs = append(errs, errors.New("config: version field is required"))
	} else if cfg.Version != "1" {
		errs = append(errs, fmt.Errorf("config: unsupported version %q (supported: \"1\")", cfg.Version))
	}

	if len(cfg.Modules) == 0 {
		errs = append(errs, errors.New("config: at least one module must be configured"))
	}

	for _, id := range Resolve(cfg) {
		if _, ok := core.GetModule(id); !ok {
			errs = append(errs, fmt.Errorf("config: unknown module %q", id))
		}
	}

	errs = append(errs, validateProvider(cfg)...)
	errs = append(errs, validateSchedules(cfg)...)
	errs = append(errs, validateDispatch(cfg)...)

	if strings.TrimSpace(cfg.Assistant.FallbackReply) == "" {
		errs = append(errs, errors.New("config: assistant.fallback_reply must not be blank"))
	}
	if r := cfg.Telemetry.Tracing.SampleRatio; r <= 0 || r > 1 {
		errs = append(errs, fmt.Errorf("config: telemetry.tracing.sample_ratio %v out of range (0, 1]", r))
	}

	return errors.Join(errs...)
}

// validateProvider checks that the primary and fallback delegates name
// configured provider.* modules.
func validateProvider(cfg *Config) []error {
	var errs []error
	p := cfg.Provider

	names := make([]string, 0, len(p.Fallbacks)+1)
	if p.Primary != "" {
		names = append(names, p.Primary)
	} else if len(p.Fallbacks) > 0 {
		errs = append(errs, errors.New("config: provider.fallbacks set without provider.primary"))
	}
	names = append(names, p.Fallbacks...)

	seen := make(map[string]bool, len(names))
	for _, name := range names {
		if seen[name] {
			errs = append(errs, fmt.Errorf("config: provider %q listed more than once", name))
			continue
		}
		seen[name] = true
		if _, ok := cfg.Modules["provider."+name]; !ok {
			errs = append(errs, fmt.Errorf("config: provider %q has no provider.%s module entry", name, name))
		}
	}
	return errs
}

func validateSchedules(cfg *Config) []error {
	var errs []error
	if err := cron.ValidateSchedule(cfg.Memory.Forget.Schedule); err != nil {
		errs = append(errs, fmt.Errorf("config: memory.forget.schedule: %w", err))
	}
	if err := cron.ValidateSchedule(cfg.Maintenance.LanePruneSchedule); err != nil {
		errs = append(errs, fmt.Errorf("config: maintenance.lane_prune_schedule: %w", err))
	}
	return errs
}

func validateDispatch(cfg *Config) []error {
	switch cfg.Dispatch.Group.Mode {
	case "", dispatch.GroupPolicyRequireMention, dispatch.GroupPolicyAllowAll:
		return nil
	default:
		return []error{fmt.Errorf("config: dispatch.group.mode %q is not one of %q, %q",
			cfg.Dispatch.Group.Mode, dispatch.GroupPolicyRequireMention, dispatch.GroupPolicyAllowAll)}
	}
}
