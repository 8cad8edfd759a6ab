package directory

import (
	"fmt"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
)

// Map converts a directory file into validated domain suppliers, ordered by
// category then file position.
//
// It fails on an unknown category, a duplicate id anywhere in the file, or a
// malformed URL. Free-text "offline form" values that are not URLs at all
// (e.g. "PGVCL office") are moved to OfflineOffice.
func Map(f File) ([]*domain.Supplier, error) {
	cats := make([]string, 0, len(f))
	for name := range f {
		cats = append(cats, name)
	}
	sort.Slice(cats, func(i, j int) bool {
		ri, rj := categoryRank(cats[i]), categoryRank(cats[j])
		if ri != rj {
			return ri < rj
		}
		return cats[i] < cats[j]
	})

	seen := make(map[string]string)
	suppliers := make([]*domain.Supplier, 0, f.Total())

	for _, name := range cats {
		cat, ok := domain.ParseCategory(name)
		if !ok {
			return nil, fmt.Errorf("unknown category %q", name)
		}

		for i, e := range f[name] {
			s := toSupplier(cat, e)
			if s.ID == "" {
				return nil, fmt.Errorf("%s[%d]: empty id", name, i)
			}
			if prev, dup := seen[s.ID]; dup {
				return nil, fmt.Errorf("duplicate supplier id %q in %s (already in %s)", s.ID, name, prev)
			}
			seen[s.ID] = name

			if err := s.Validate(); err != nil {
				return nil, err
			}
			suppliers = append(suppliers, s)
		}
	}

	if len(suppliers) == 0 {
		return nil, fmt.Errorf("no suppliers found in directory")
	}
	return suppliers, nil
}

// ToFile converts suppliers back to the file layout.
func ToFile(suppliers []domain.Supplier) File {
	f := make(File)
	for _, s := range suppliers {
		f[string(s.Category)] = append(f[string(s.Category)], Entry{
			ID:                    s.ID,
			Name:                  s.Name,
			Type:                  s.Ownership,
			PortalURL:             s.PortalURL,
			NameChangeURL:         s.NameChangeURL,
			AddressChangeURL:      s.AddressChangeURL,
			OfflineFormURL:        s.OfflineFormURL,
			OfflineOffice:         s.OfflineOffice,
			APIAvailable:          s.APIAvailable,
			OnlineAvailable:       s.OnlineAvailable,
			RPAEnabled:            s.RPAEnabled,
			LoginRequired:         s.LoginRequired,
			DirectAccess:          s.DirectAccess,
			AutomationType:        s.AutomationType,
			FormType:              s.FormType,
			NameChangeFacility:    s.NameChangeFacility,
			AddressChangeFacility: s.AddressChangeFacility,
		})
	}
	return f
}

func toSupplier(cat domain.Category, e Entry) *domain.Supplier {
	s := &domain.Supplier{
		ID:                    strings.TrimSpace(e.ID),
		Name:                  strings.TrimSpace(e.Name),
		Category:              cat,
		Ownership:             e.Type,
		PortalURL:             strings.TrimSpace(e.PortalURL),
		NameChangeURL:         strings.TrimSpace(e.NameChangeURL),
		AddressChangeURL:      strings.TrimSpace(e.AddressChangeURL),
		OfflineFormURL:        strings.TrimSpace(e.OfflineFormURL),
		OfflineOffice:         strings.TrimSpace(e.OfflineOffice),
		APIAvailable:          e.APIAvailable,
		OnlineAvailable:       e.OnlineAvailable,
		RPAEnabled:            e.RPAEnabled,
		LoginRequired:         e.LoginRequired,
		DirectAccess:          e.DirectAccess,
		AutomationType:        e.AutomationType,
		FormType:              e.FormType,
		NameChangeFacility:    e.NameChangeFacility,
		AddressChangeFacility: e.AddressChangeFacility,
	}

	if s.OfflineFormURL != "" && !strings.Contains(s.OfflineFormURL, "://") {
		if s.OfflineOffice == "" {
			s.OfflineOffice = s.OfflineFormURL
		}
		s.OfflineFormURL = ""
	}
	return s
}

func categoryRank(name string) int {
	for i, c := range domain.Categories {
		if string(c) == name {
			return i
		}
	}
	return len(domain.Categories)
}
