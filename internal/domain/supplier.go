package domain

import (
	"fmt"
	"net/url"
	"strings"
)

// Category groups suppliers by the utility or record they manage.
type Category string

const (
	CategoryElectricity Category = "electricity"
	CategoryGas         Category = "gas"
	CategoryWater       Category = "water"
	CategoryProperty    Category = "property"
)

// Categories lists every known category in display order.
var Categories = []Category{
	CategoryElectricity,
	CategoryGas,
	CategoryWater,
	CategoryProperty,
}

// ParseCategory returns the category matching s (case-insensitive).
func ParseCategory(s string) (Category, bool) {
	c := Category(strings.ToLower(strings.TrimSpace(s)))
	for _, known := range Categories {
		if c == known {
			return c, true
		}
	}
	return "", false
}

// Action is the kind of change a citizen wants to make with a supplier.
type Action string

const (
	ActionPortal        Action = "portal"
	ActionNameChange    Action = "name_change"
	ActionAddressChange Action = "address_change"
	ActionOfflineForm   Action = "offline_form"
)

// ParseAction maps a query value to an Action. Unknown or empty values map to ActionPortal.
func ParseAction(s string) Action {
	switch Action(strings.ToLower(strings.TrimSpace(s))) {
	case ActionNameChange:
		return ActionNameChange
	case ActionAddressChange:
		return ActionAddressChange
	case ActionOfflineForm:
		return ActionOfflineForm
	default:
		return ActionPortal
	}
}

// Supplier is a utility or government body with its own online or offline
// process for name and address changes.
//
// Suppliers are loaded in bulk from the directory file and are never mutated
// while serving, except for the Counter used to rank redirect searches.
type Supplier struct {
	// ID is unique across the whole directory.
	ID       string   `json:"id"`
	Name     string   `json:"name"`
	Category Category `json:"category"`

	// Ownership is "government" or "private".
	Ownership string `json:"type,omitempty"`

	// URLs are either empty or absolute http(s) URLs.
	PortalURL        string `json:"portal_url,omitempty"`
	NameChangeURL    string `json:"name_change_url,omitempty"`
	AddressChangeURL string `json:"address_change_url,omitempty"`
	OfflineFormURL   string `json:"offline_form_url,omitempty"`

	// OfflineOffice names the office handling paper applications when there is no form URL.
	OfflineOffice string `json:"offline_office,omitempty"`

	APIAvailable    bool `json:"api_available"`
	OnlineAvailable bool `json:"online_available"`
	RPAEnabled      bool `json:"rpa_enabled"`
	LoginRequired   bool `json:"login_required"`
	DirectAccess    bool `json:"direct_access"`

	AutomationType        string `json:"automation_type,omitempty"`
	FormType              string `json:"form_type,omitempty"`
	NameChangeFacility    string `json:"name_change_facility,omitempty"`
	AddressChangeFacility string `json:"address_change_facility,omitempty"`

	// Counter is the number of redirects served for this supplier.
	Counter int64 `json:"-"`
}

// URLFor returns the supplier URL for the given action, falling back to the portal.
func (s *Supplier) URLFor(action Action) string {
	var u string
	switch action {
	case ActionNameChange:
		u = s.NameChangeURL
	case ActionAddressChange:
		u = s.AddressChangeURL
	case ActionOfflineForm:
		u = s.OfflineFormURL
	}
	if u == "" {
		u = s.PortalURL
	}
	return u
}

// Validate checks the per-record invariants. Directory-wide uniqueness is
// checked by the directory mapper.
func (s *Supplier) Validate() error {
	if strings.TrimSpace(s.ID) == "" {
		return fmt.Errorf("supplier %q: empty id", s.Name)
	}
	if _, ok := ParseCategory(string(s.Category)); !ok {
		return fmt.Errorf("supplier %s: unknown category %q", s.ID, s.Category)
	}
	fields := map[string]string{
		"portal_url":         s.PortalURL,
		"name_change_url":    s.NameChangeURL,
		"address_change_url": s.AddressChangeURL,
		"offline_form_url":   s.OfflineFormURL,
	}
	for field, raw := range fields {
		if raw == "" {
			continue
		}
		if !IsWebURL(raw) {
			return fmt.Errorf("supplier %s: %s is not a valid URL: %q", s.ID, field, raw)
		}
	}
	return nil
}

// IsWebURL reports whether raw is an absolute http or https URL with a host.
func IsWebURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
