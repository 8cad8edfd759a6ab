package directory

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrSnakeDoc/sevasetu/internal/domain"
)

func TestSeedLoadsAndMaps(t *testing.T) {
	f, err := NewLoader("").Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if f.Total() != 21 {
		t.Fatalf("Total() = %d, want 21", f.Total())
	}

	want := map[string]int{"electricity": 5, "gas": 7, "water": 5, "property": 4}
	for cat, n := range want {
		if got := f.Counts()[cat]; got != n {
			t.Errorf("Counts()[%s] = %d, want %d", cat, got, n)
		}
	}

	suppliers, err := Map(f)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	if suppliers[0].Category != domain.CategoryElectricity {
		t.Errorf("first supplier category = %s, want electricity", suppliers[0].Category)
	}
	if suppliers[len(suppliers)-1].Category != domain.CategoryProperty {
		t.Errorf("last supplier category = %s, want property", suppliers[len(suppliers)-1].Category)
	}
}

func TestParseAcceptsJSON(t *testing.T) {
	data := `{
  "electricity": [
    {"id": "pgvcl", "name": "PGVCL", "portal_url": "https://www.pgvcl.com", "offline_form_url": "PGVCL office", "name_change_url": null, "rpa_enabled": true}
  ]
}`
	f, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	suppliers, err := Map(f)
	if err != nil {
		t.Fatalf("Map() error = %v", err)
	}
	s := suppliers[0]
	if s.OfflineFormURL != "" || s.OfflineOffice != "PGVCL office" {
		t.Errorf("office name not moved: url=%q office=%q", s.OfflineFormURL, s.OfflineOffice)
	}
	if s.NameChangeURL != "" {
		t.Errorf("null url should be empty, got %q", s.NameChangeURL)
	}
	if !s.RPAEnabled {
		t.Error("rpa_enabled lost")
	}
}

func TestMapErrors(t *testing.T) {
	tests := []struct {
		name    string
		file    File
		wantErr string
	}{
		{
			name: "duplicate id across categories",
			file: File{
				"gas":   {{ID: "torrent", Name: "Torrent Gas"}},
				"water": {{ID: "torrent", Name: "Torrent Water"}},
			},
			wantErr: "duplicate supplier id",
		},
		{
			name:    "unknown category",
			file:    File{"telecom": {{ID: "jio", Name: "Jio"}}},
			wantErr: "unknown category",
		},
		{
			name:    "malformed url",
			file:    File{"gas": {{ID: "gspc", Name: "GSPC", PortalURL: "http//gspc"}}},
			wantErr: "portal_url",
		},
		{
			name:    "empty id",
			file:    File{"gas": {{Name: "Nameless"}}},
			wantErr: "empty id",
		},
		{
			name:    "empty",
			file:    File{"gas": {}},
			wantErr: "no suppliers",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Map(tt.file)
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Map() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	seed, err := Seed()
	if err != nil {
		t.Fatalf("Seed() error = %v", err)
	}

	for _, name := range []string{"services_data.json", "suppliers.yaml"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "nested", name)
			if err := Write(path, seed); err != nil {
				t.Fatalf("Write() error = %v", err)
			}

			raw, err := os.ReadFile(path)
			if err != nil {
				t.Fatal(err)
			}
			if strings.HasSuffix(name, ".json") && !strings.HasPrefix(string(raw), "{") {
				t.Errorf("expected JSON output, got %q", string(raw[:20]))
			}

			back, err := NewLoader(path).Load()
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			if back.Total() != seed.Total() {
				t.Errorf("Total() = %d, want %d", back.Total(), seed.Total())
			}
			if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
				t.Error("temp file left behind")
			}
		})
	}
}

func TestIndex(t *testing.T) {
	idx := NewIndex()
	idx.Replace([]*domain.Supplier{
		{ID: "pgvcl", Category: domain.CategoryElectricity},
		{ID: "gspc", Category: domain.CategoryGas},
		{ID: "dgvcl", Category: domain.CategoryElectricity},
	})

	if idx.Count() != 3 {
		t.Fatalf("Count() = %d, want 3", idx.Count())
	}
	if idx.LastReload().IsZero() {
		t.Error("LastReload() not set")
	}

	elec := idx.ByCategory(domain.CategoryElectricity)
	if len(elec) != 2 || elec[0].ID != "pgvcl" || elec[1].ID != "dgvcl" {
		t.Errorf("ByCategory(electricity) = %+v", elec)
	}

	grouped := idx.Grouped()
	if len(grouped) != len(domain.Categories) {
		t.Errorf("Grouped() has %d categories, want %d", len(grouped), len(domain.Categories))
	}
	if grouped[domain.CategoryWater] == nil || len(grouped[domain.CategoryWater]) != 0 {
		t.Errorf("water should be an empty list, got %v", grouped[domain.CategoryWater])
	}

	idx.IncrementCounter("pgvcl")
	idx.IncrementCounter("pgvcl")
	idx.IncrementCounter("unknown")

	got, ok := idx.Get("pgvcl")
	if !ok || got.Counter != 2 {
		t.Fatalf("Get(pgvcl) = %+v, %v", got, ok)
	}

	// copies do not alias the index
	got.Counter = 99
	if again, _ := idx.Get("pgvcl"); again.Counter != 2 {
		t.Error("Get returned an aliased supplier")
	}

	// counters survive a reload
	idx.Replace([]*domain.Supplier{{ID: "pgvcl", Category: domain.CategoryElectricity}})
	if s, _ := idx.Get("pgvcl"); s.Counter != 2 {
		t.Errorf("counter after reload = %d, want 2", s.Counter)
	}
	if _, ok := idx.Get("gspc"); ok {
		t.Error("gspc should be gone after reload")
	}

	idx.SetCounters(map[string]int64{"pgvcl": 10, "ghost": 3})
	if s, _ := idx.Get("pgvcl"); s.Counter != 10 {
		t.Errorf("SetCounters: counter = %d, want 10", s.Counter)
	}
}

func TestFindBestMatch(t *testing.T) {
	f, err := Seed()
	if err != nil {
		t.Fatal(err)
	}
	mapped, err := Map(f)
	if err != nil {
		t.Fatal(err)
	}
	suppliers := make([]domain.Supplier, 0, len(mapped))
	for _, s := range mapped {
		suppliers = append(suppliers, *s)
	}

	tests := []struct {
		query string
		want  string
	}{
		{"pgvcl", "pgvcl"},
		{"DGVCL", "dgvcl"},
		{"torrent gas", "torrent-gas"},
		{"torrent power", "torrent-power"},
		{"adani", "adani-gas"},
		{"anyror", "anyror"},
		{"sabarmati", "sabarmati-gas"},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			got, ok := FindBestMatch(ParseQuery(tt.query), suppliers)
			if !ok {
				t.Fatalf("no match for %q", tt.query)
			}
			if got.ID != tt.want {
				t.Errorf("FindBestMatch(%q) = %s, want %s", tt.query, got.ID, tt.want)
			}
		})
	}

	if _, ok := FindBestMatch(ParseQuery(""), suppliers); ok {
		t.Error("empty query should not match")
	}
	if _, ok := FindBestMatch(ParseQuery("zzzz"), suppliers); ok {
		t.Error("nonsense query should not match")
	}
}

func TestRankUsesCounters(t *testing.T) {
	suppliers := []domain.Supplier{
		{ID: "vmc-water", Name: "VMC"},
		{ID: "rmc-water", Name: "RMC"},
	}

	ranked := Rank(ParseQuery("water"), suppliers)
	if len(ranked) != 2 || ranked[0].Supplier.ID != "vmc-water" {
		t.Fatalf("tie should keep directory order, got %v", ranked[0].Supplier.ID)
	}

	suppliers[1].Counter = 50
	ranked = Rank(ParseQuery("water"), suppliers)
	if ranked[0].Supplier.ID != "rmc-water" {
		t.Errorf("usage should break the tie, got %s", ranked[0].Supplier.ID)
	}
	if ranked[0].UsageScore <= 0 {
		t.Errorf("UsageScore = %f", ranked[0].UsageScore)
	}
}
