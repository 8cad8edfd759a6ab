package directory

import (
	"net/url"
	"sort"
	"strings"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
)

// Redirection kinds reported by Check.
const (
	RedirectSpecific = "specific" // dedicated name-change page
	RedirectPortal   = "portal"   // name change goes through the main portal
	RedirectManual   = "manual"   // no online name change
	RedirectBroken   = "broken"   // name-change URL present but malformed
)

// MaxGUVNLShare is the highest share of suppliers allowed on guvnl.in.
const MaxGUVNLShare = 0.3

// KeySuppliers must be present in any complete Gujarat directory.
var KeySuppliers = []string{"gujarat-gas", "torrent-power", "pgvcl", "anyror", "adani-gas"}

// Redirection is how one supplier handles name changes.
type Redirection struct {
	Supplier domain.Supplier
	Kind     string
}

// Report is the result of Check.
type Report struct {
	Redirections []Redirection
	Working      int // specific + portal
	Manual       int
	Broken       int

	KeyFound   []domain.Supplier
	KeyMissing []string

	Total         int
	GUVNLCount    int
	UniqueDomains []string
}

// SuccessRate is the share of online suppliers with a usable name-change URL.
// Manual suppliers are left out; a directory with only manual suppliers scores 0.
func (r Report) SuccessRate() float64 {
	online := r.Working + r.Broken
	if online == 0 {
		return 0
	}
	return float64(r.Working) / float64(online)
}

// RedirectionsOK reports whether every online supplier has a usable URL.
func (r Report) RedirectionsOK() bool {
	return r.Broken == 0 && r.Working > 0
}

// DiversityOK reports whether less than MaxGUVNLShare of suppliers use guvnl.in.
func (r Report) DiversityOK() bool {
	return float64(r.GUVNLCount) < float64(r.Total)*MaxGUVNLShare
}

// DomainDiversity is unique portal domains over suppliers.
func (r Report) DomainDiversity() float64 {
	if r.Total == 0 {
		return 0
	}
	return float64(len(r.UniqueDomains)) / float64(r.Total)
}

// OK reports whether the directory passes every check.
func (r Report) OK() bool {
	return r.RedirectionsOK() && r.DiversityOK()
}

// Check inspects suppliers in order.
func Check(suppliers []domain.Supplier) Report {
	rep := Report{Total: len(suppliers)}
	domains := make(map[string]struct{})
	byID := make(map[string]domain.Supplier, len(suppliers))

	for _, s := range suppliers {
		byID[s.ID] = s
		kind := redirectionKind(s)
		switch kind {
		case RedirectSpecific, RedirectPortal:
			rep.Working++
		case RedirectManual:
			rep.Manual++
		case RedirectBroken:
			rep.Broken++
		}
		rep.Redirections = append(rep.Redirections, Redirection{Supplier: s, Kind: kind})

		if h := host(s.PortalURL); h != "" {
			domains[h] = struct{}{}
		}
		if onGUVNL(s.PortalURL) || onGUVNL(s.NameChangeURL) {
			rep.GUVNLCount++
		}
	}

	for _, id := range KeySuppliers {
		if s, ok := byID[id]; ok {
			rep.KeyFound = append(rep.KeyFound, s)
		} else {
			rep.KeyMissing = append(rep.KeyMissing, id)
		}
	}

	for d := range domains {
		rep.UniqueDomains = append(rep.UniqueDomains, d)
	}
	sort.Strings(rep.UniqueDomains)
	return rep
}

func redirectionKind(s domain.Supplier) string {
	switch {
	case s.NameChangeURL == "":
		return RedirectManual
	case !domain.IsWebURL(s.NameChangeURL):
		return RedirectBroken
	case s.NameChangeURL == s.PortalURL:
		return RedirectPortal
	default:
		return RedirectSpecific
	}
}

func host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}

func onGUVNL(raw string) bool {
	h := host(raw)
	return h == "guvnl.in" || strings.HasSuffix(h, ".guvnl.in")
}
