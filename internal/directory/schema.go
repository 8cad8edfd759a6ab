package directory

// Entry is one supplier record as stored in the directory file.
// Keys match the services_data.json layout consumed by the portal UI.
type Entry struct {
	ID               string `yaml:"id" json:"id"`
	Name             string `yaml:"name" json:"name"`
	Type             string `yaml:"type,omitempty" json:"type,omitempty"`
	PortalURL        string `yaml:"portal_url,omitempty" json:"portal_url,omitempty"`
	NameChangeURL    string `yaml:"name_change_url,omitempty" json:"name_change_url,omitempty"`
	AddressChangeURL string `yaml:"address_change_url,omitempty" json:"address_change_url,omitempty"`
	OfflineFormURL   string `yaml:"offline_form_url,omitempty" json:"offline_form_url,omitempty"`
	OfflineOffice    string `yaml:"offline_office,omitempty" json:"offline_office,omitempty"`

	APIAvailable    bool `yaml:"api_available" json:"api_available"`
	OnlineAvailable bool `yaml:"online_available" json:"online_available"`
	RPAEnabled      bool `yaml:"rpa_enabled" json:"rpa_enabled"`
	LoginRequired   bool `yaml:"login_required" json:"login_required"`
	DirectAccess    bool `yaml:"direct_access" json:"direct_access"`

	AutomationType        string `yaml:"automation_type,omitempty" json:"automation_type,omitempty"`
	FormType              string `yaml:"form_type,omitempty" json:"form_type,omitempty"`
	NameChangeFacility    string `yaml:"name_change_facility,omitempty" json:"name_change_facility,omitempty"`
	AddressChangeFacility string `yaml:"address_change_facility,omitempty" json:"address_change_facility,omitempty"`
}

// File is the root structure of the directory file: category name to supplier list.
type File map[string][]Entry

// Counts returns the number of entries per category.
func (f File) Counts() map[string]int {
	out := make(map[string]int, len(f))
	for cat, entries := range f {
		out[cat] = len(entries)
	}
	return out
}

// Total returns the number of entries across all categories.
func (f File) Total() int {
	n := 0
	for _, entries := range f {
		n += len(entries)
	}
	return n
}
