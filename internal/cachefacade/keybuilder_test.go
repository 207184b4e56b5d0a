package cachefacade

import "testing"

func TestKeyBuilder_CanonicalPrefixes(t *testing.T) {
	kb := KeyBuilder{}

	cases := []struct {
		name string
		got  string
		want string
	}{
		{"daily", kb.Daily("2026-07-30"), "daily:2026-07-30"},
		{"rank", kb.Rank("2026-07-30", 10), "rank:2026-07-30:10"},
		{"sector", kb.Sector("2026-07-30"), "sector:2026-07-30"},
		{"hotspot", kb.Hotspot("2026-07-30"), "hotspot:2026-07-30"},
		{"signal", kb.Signal("breakout", "2026-07-30"), "signal:breakout:2026-07-30"},
		{"industry_jump", kb.IndustryJump("2026-07-30", 5), "industry_jump:2026-07-30:5"},
		{"entity", kb.Entity("42"), "42"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("got %q, want %q", tc.got, tc.want)
			}
		})
	}
}

func TestKeyBuilder_HashedKeysAreStableAndDistinguishParams(t *testing.T) {
	kb := KeyBuilder{}

	a := kb.APICache("quotes", "code=600000")
	b := kb.APICache("quotes", "code=600000")
	if a != b {
		t.Fatalf("same inputs produced different keys: %q vs %q", a, b)
	}

	c := kb.APICache("quotes", "code=600001")
	if a == c {
		t.Fatalf("different params produced the same key: %q", a)
	}

	if got := kb.Report("daily_summary", "code=600000"); got == a {
		t.Fatalf("report and api-cache keys collided: %q", got)
	}
}
