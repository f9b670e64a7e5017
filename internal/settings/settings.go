// Package settings resolves the effective publish settings from explicit
// overrides, per-project defaults and the subscription store.
package settings

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/project"
	"github.com/cloudsvc/terraform-provider-cloudsvc/internal/servicemgmt"
)

// DefaultsFileName holds per-project publish defaults next to service.yaml.
const DefaultsFileName = "settings.yaml"

// ConfigurationError reports a setting that is missing or invalid.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Overrides are values given explicitly for one publish. A nil field means
// "not given"; a pointer to an empty string is an explicit empty value and
// is rejected for subscription, location and slot.
type Overrides struct {
	ServiceName    *string
	Subscription   *string
	StorageAccount *string
	Location       *string
	AffinityGroup  *string
	Slot           *string
	Label          *string
}

// String returns a pointer to s, for building Overrides.
func String(s string) *string { return &s }

// Defaults are the per-project publish defaults stored in settings.yaml.
type Defaults struct {
	Subscription   string `yaml:"subscription,omitempty"`
	Slot           string `yaml:"slot,omitempty"`
	Location       string `yaml:"location,omitempty"`
	AffinityGroup  string `yaml:"affinity_group,omitempty"`
	StorageAccount string `yaml:"storage_account,omitempty"`
	Label          string `yaml:"label,omitempty"`
}

// PublishSettings are the fully resolved settings of one publish.
type PublishSettings struct {
	Subscription   servicemgmt.Subscription
	ServiceName    string
	StorageAccount string
	Location       string
	AffinityGroup  string
	Slot           string
	Label          string
	DeploymentName string
}

// LocationLister supplies the default location for the resolved subscription
// when none is configured.
type LocationLister func(ctx context.Context, sub servicemgmt.Subscription) ([]servicemgmt.Location, error)

// Store resolves settings against the subscription store.
type Store struct {
	Subscriptions *SubscriptionStore
}

// LoadDefaults reads <projectDir>/settings.yaml. A missing file yields zero Defaults.
func LoadDefaults(projectDir string) (Defaults, error) {
	var d Defaults
	data, err := os.ReadFile(filepath.Join(projectDir, DefaultsFileName))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return d, nil
		}
		return d, fmt.Errorf("settings: read %s: %w", DefaultsFileName, err)
	}
	if err := yaml.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("settings: parse %s: %w", DefaultsFileName, err)
	}
	return d, nil
}

// SaveDefaults persists the resolved settings as the project's defaults.
func SaveDefaults(projectDir string, ps *PublishSettings) error {
	d := Defaults{
		Subscription:   ps.Subscription.Name,
		Slot:           ps.Slot,
		Location:       ps.Location,
		AffinityGroup:  ps.AffinityGroup,
		StorageAccount: ps.StorageAccount,
		Label:          ps.Label,
	}
	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("settings: marshal defaults: %w", err)
	}
	if err := os.WriteFile(filepath.Join(projectDir, DefaultsFileName), data, 0o644); err != nil {
		return fmt.Errorf("settings: write %s: %w", DefaultsFileName, err)
	}
	return nil
}

// Validate rejects explicitly empty values without touching the network.
func (o Overrides) Validate() error {
	for _, f := range []struct {
		name string
		v    *string
	}{
		{"subscription", o.Subscription},
		{"location", o.Location},
		{"slot", o.Slot},
		{"service name", o.ServiceName},
		{"storage account", o.StorageAccount},
	} {
		if f.v != nil && strings.TrimSpace(*f.v) == "" {
			return &ConfigurationError{Field: f.name, Reason: "must not be empty"}
		}
	}
	return nil
}

// Resolve computes the effective settings for publishing p. Precedence is
// overrides, then project defaults, then the subscription store. Every
// local check runs before locations is consulted.
func (s *Store) Resolve(ctx context.Context, p *project.Project, o Overrides, locations LocationLister) (*PublishSettings, error) {
	if err := o.Validate(); err != nil {
		return nil, err
	}
	defaults, err := LoadDefaults(p.Dir())
	if err != nil {
		return nil, err
	}

	ps := &PublishSettings{}
	ps.ServiceName = pick(o.ServiceName, p.Name)

	sub, err := s.resolveSubscription(pick(o.Subscription, defaults.Subscription))
	if err != nil {
		return nil, err
	}
	ps.Subscription = sub

	slot, err := NormalizeSlot(pick(o.Slot, defaults.Slot, servicemgmt.SlotProduction))
	if err != nil {
		return nil, err
	}
	ps.Slot = slot

	ps.Location = pick(o.Location, defaults.Location)
	ps.AffinityGroup = pick(o.AffinityGroup, defaults.AffinityGroup)
	if o.Location != nil && o.AffinityGroup == nil {
		ps.AffinityGroup = ""
	}
	if o.AffinityGroup != nil && o.Location == nil {
		ps.Location = ""
	}
	if ps.Location != "" && ps.AffinityGroup != "" {
		return nil, &ConfigurationError{Field: "location", Reason: "location and affinity group are mutually exclusive"}
	}

	ps.StorageAccount = pick(o.StorageAccount, defaults.StorageAccount, StorageAccountName(ps.ServiceName))
	if !storageAccountPattern.MatchString(ps.StorageAccount) {
		return nil, &ConfigurationError{Field: "storage account", Reason: fmt.Sprintf("%q must be 3-24 lowercase letters or digits", ps.StorageAccount)}
	}
	ps.Label = pick(o.Label, defaults.Label, ps.ServiceName)
	ps.DeploymentName = DeploymentName(ps.ServiceName, ps.Slot)

	if ps.Location == "" && ps.AffinityGroup == "" {
		if locations == nil {
			return nil, &ConfigurationError{Field: "location", Reason: "no location or affinity group configured"}
		}
		locs, err := locations(ctx, ps.Subscription)
		if err != nil {
			return nil, fmt.Errorf("settings: list locations: %w", err)
		}
		if len(locs) == 0 {
			return nil, &ConfigurationError{Field: "location", Reason: "no location configured and the subscription offers none"}
		}
		ps.Location = locs[0].Name
	}
	return ps, nil
}

// Subscription looks up a subscription by name or id; an empty name selects
// the default subscription.
func (s *Store) Subscription(name string) (servicemgmt.Subscription, error) {
	return s.resolveSubscription(name)
}

func (s *Store) resolveSubscription(name string) (servicemgmt.Subscription, error) {
	if s.Subscriptions == nil {
		return servicemgmt.Subscription{}, &ConfigurationError{Field: "subscription", Reason: "no subscription store configured"}
	}
	var (
		sub Subscription
		ok  bool
	)
	if name == "" {
		sub, ok = s.Subscriptions.Default()
		if !ok {
			return servicemgmt.Subscription{}, &ConfigurationError{Field: "subscription", Reason: "no subscription given and no default subscription configured"}
		}
	} else {
		sub, ok = s.Subscriptions.Lookup(name)
		if !ok {
			return servicemgmt.Subscription{}, &ConfigurationError{Field: "subscription", Reason: fmt.Sprintf("%q is not a known subscription", name)}
		}
	}
	if sub.ID == "" {
		return servicemgmt.Subscription{}, &ConfigurationError{Field: "subscription", Reason: fmt.Sprintf("subscription %q has no id", sub.Name)}
	}
	return servicemgmt.Subscription{ID: sub.ID, Name: sub.Name, Endpoint: sub.Endpoint}, nil
}

// NormalizeSlot maps a case-insensitive slot name to its canonical form.
func NormalizeSlot(slot string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(slot)) {
	case "production":
		return servicemgmt.SlotProduction, nil
	case "staging":
		return servicemgmt.SlotStaging, nil
	case "":
		return "", &ConfigurationError{Field: "slot", Reason: "must not be empty"}
	}
	return "", &ConfigurationError{Field: "slot", Reason: fmt.Sprintf("%q is not Production or Staging", slot)}
}

// DeploymentName is the name given to new deployments in a slot.
func DeploymentName(service, slot string) string {
	return service + "-" + strings.ToLower(slot)
}

var (
	storageAccountPattern = regexp.MustCompile(`^[a-z0-9]{3,24}$`)
	nonAlnum              = regexp.MustCompile(`[^a-z0-9]`)
)

// StorageAccountName derives a valid storage account name from a service name.
func StorageAccountName(service string) string {
	name := nonAlnum.ReplaceAllString(strings.ToLower(service), "")
	if len(name) > 24 {
		name = name[:24]
	}
	for len(name) < 3 {
		name += "0"
	}
	return name
}

// pick returns the override when given, else the first non-empty fallback.
func pick(override *string, fallbacks ...string) string {
	if override != nil {
		return strings.TrimSpace(*override)
	}
	for _, f := range fallbacks {
		if f != "" {
			return f
		}
	}
	return ""
}
