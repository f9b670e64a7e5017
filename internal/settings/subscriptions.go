package settings

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Subscription is one entry of the subscription store.
type Subscription struct {
	Name     string `yaml:"name"`
	ID       string `yaml:"id"`
	Endpoint string `yaml:"endpoint,omitempty"`
	Default  bool   `yaml:"default,omitempty"`
}

// SubscriptionStore is the list of known subscriptions.
type SubscriptionStore struct {
	Subscriptions []Subscription `yaml:"subscriptions"`
}

// LoadSubscriptions reads a subscriptions YAML file. A missing file yields
// an empty store.
func LoadSubscriptions(path string) (*SubscriptionStore, error) {
	s := &SubscriptionStore{}
	if path == "" {
		return s, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("settings: read subscriptions file: %w", err)
	}
	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("settings: parse subscriptions file %s: %w", path, err)
	}
	return s, nil
}

// Save writes the store to path.
func (s *SubscriptionStore) Save(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("settings: marshal subscriptions: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("settings: write subscriptions file: %w", err)
	}
	return nil
}

// Add appends sub, replacing an entry with the same name.
func (s *SubscriptionStore) Add(sub Subscription) {
	for i := range s.Subscriptions {
		if strings.EqualFold(s.Subscriptions[i].Name, sub.Name) {
			s.Subscriptions[i] = sub
			return
		}
	}
	s.Subscriptions = append(s.Subscriptions, sub)
}

// Lookup finds a subscription by name (case-insensitive) or by ID.
func (s *SubscriptionStore) Lookup(nameOrID string) (Subscription, bool) {
	for _, sub := range s.Subscriptions {
		if strings.EqualFold(sub.Name, nameOrID) || sub.ID == nameOrID {
			return sub, true
		}
	}
	return Subscription{}, false
}

// Default returns the subscription marked default, or the only entry when
// there is exactly one.
func (s *SubscriptionStore) Default() (Subscription, bool) {
	for _, sub := range s.Subscriptions {
		if sub.Default {
			return sub, true
		}
	}
	if len(s.Subscriptions) == 1 {
		return s.Subscriptions[0], true
	}
	return Subscription{}, false
}
