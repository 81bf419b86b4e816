package registry

import (
	"encoding/json"
	"fmt"
	"os"
)

// Screen describes one UI entry configured for a tenant.
type Screen struct {
	Name        string `json:"name"`
	URL         string `json:"url"`
	Icon        string `json:"icon"`
	Description string `json:"description"`
	AdminOnly   bool   `json:"adminOnly,omitempty"`
}

// TenantEntry is the static per-tenant configuration block.
type TenantEntry struct {
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Screens     []Screen          `json:"screens"`
	Settings    map[string]any    `json:"settings,omitempty"`
	Features    []string          `json:"features,omitempty"`
	Branding    map[string]string `json:"branding,omitempty"`
}

// ScreenRegistry is the static tenant-to-screens map, loaded once at start.
type ScreenRegistry struct {
	entries map[string]TenantEntry
}

// Load reads the registry JSON file. A missing file yields an empty
// registry rather than an error: tenants without configuration simply see
// no screens.
func Load(path string) (*ScreenRegistry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &ScreenRegistry{entries: map[string]TenantEntry{}}, nil
		}
		return nil, fmt.Errorf("read screen registry: %w", err)
	}

	var entries map[string]TenantEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse screen registry: %w", err)
	}
	return &ScreenRegistry{entries: entries}, nil
}

// Lookup returns a tenant's entry, if configured.
func (r *ScreenRegistry) Lookup(tenantID string) (TenantEntry, bool) {
	entry, ok := r.entries[tenantID]
	return entry, ok
}

// ScreensFor returns a tenant's screens filtered for the caller: non-admin
// callers never see admin-only screens.
func (r *ScreenRegistry) ScreensFor(tenantID string, isAdmin bool) ([]Screen, bool) {
	entry, ok := r.entries[tenantID]
	if !ok {
		return nil, false
	}
	if isAdmin {
		return entry.Screens, true
	}
	screens := make([]Screen, 0, len(entry.Screens))
	for _, screen := range entry.Screens {
		if screen.AdminOnly {
			continue
		}
		screens = append(screens, screen)
	}
	return screens, true
}
