package pattern

import (
	"errors"
	"testing"
)

var defaultSources = []string{
	`(?P<year>\d{4})年?第?(?P<quarter>[一二三四1-4])季度KPI考核自评(?P<score>\d{1,3})分`,
	`季度KPI考核自评(\d{1,3})分`,
	`KPI\s*自评得分\s*(\d{1,3})\s*分`,
	`自评得分\s*(\d{1,3})\s*分`,
	`KPI考核自评(\d{1,3})分`,
}

func mustEngine(t *testing.T, sources []string) *Engine {
	t.Helper()
	compiled, err := Compile(sources)
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	return NewEngine(compiled)
}

func TestEngine_Match(t *testing.T) {
	engine := mustEngine(t, defaultSources)

	tests := []struct {
		name        string
		text        string
		wantMatch   bool
		wantPattern int
		wantScore   int
		wantYear    int
		wantQuarter int
	}{
		{"full sentence with year and quarter", "2024年第四季度KPI考核自评85分", true, 0, 85, 2024, 4},
		{"arabic quarter", "2025年第2季度KPI考核自评90分。", true, 0, 90, 2025, 2},
		{"quarter only", "本季度KPI考核自评96分", true, 1, 96, 0, 0},
		{"spaced score", "KPI 自评得分 94 分", true, 2, 94, 0, 0},
		{"no KPI prefix", "自评得分 94 分", true, 3, 94, 0, 0},
		{"short form", "KPI考核自评82分", true, 4, 82, 0, 0},
		{"lower case", "kpi考核自评82分", true, 4, 82, 0, 0},
		{"full-width characters", "ＫＰＩ考核自评８２分", true, 4, 82, 0, 0},
		{"ideographic spaces", "KPI　自评得分　　70 分", true, 2, 70, 0, 0},
		{"zero score", "KPI考核自评0分", true, 4, 0, 0, 0},
		{"hundred", "KPI考核自评100分", true, 4, 100, 0, 0},
		{"out of range score", "KPI考核自评150分", false, 0, 0, 0, 0},
		{"out of range then valid", "KPI考核自评150分，更正为KPI考核自评90分", true, 4, 90, 0, 0},
		{"unrelated text", "本季度工作总结如下。", false, 0, 0, 0, 0},
		{"empty", "", false, 0, 0, 0, 0},
		{"whitespace only", " \t　", false, 0, 0, 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := engine.Match(tt.text)
			if ok != tt.wantMatch {
				t.Fatalf("Match(%q) ok = %v, want %v", tt.text, ok, tt.wantMatch)
			}
			if !ok {
				if m != nil {
					t.Errorf("expected nil match, got %+v", m)
				}
				return
			}
			if m.Pattern != tt.wantPattern {
				t.Errorf("Pattern = %d, want %d", m.Pattern, tt.wantPattern)
			}
			if m.Score != tt.wantScore {
				t.Errorf("Score = %d, want %d", m.Score, tt.wantScore)
			}
			if tt.wantYear != 0 {
				if m.Year == nil || *m.Year != tt.wantYear {
					t.Errorf("Year = %v, want %d", m.Year, tt.wantYear)
				}
			} else if m.Year != nil {
				t.Errorf("Year = %d, want nil", *m.Year)
			}
			if tt.wantQuarter != 0 {
				if m.Quarter == nil || *m.Quarter != tt.wantQuarter {
					t.Errorf("Quarter = %v, want %d", m.Quarter, tt.wantQuarter)
				}
			} else if m.Quarter != nil {
				t.Errorf("Quarter = %d, want nil", *m.Quarter)
			}
		})
	}
}

func TestEngine_FirstDeclaredPatternWins(t *testing.T) {
	broad := `自评(\d{1,3})分`
	narrow := `KPI考核自评(\d{1,3})分`
	text := "2024年KPI考核自评77分"

	tests := []struct {
		name       string
		sources    []string
		wantSource string
	}{
		{"broad first", []string{broad, narrow}, broad},
		{"narrow first", []string{narrow, broad}, narrow},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, ok := mustEngine(t, tt.sources).Match(text)
			if !ok {
				t.Fatalf("expected a match for %q", text)
			}
			if m.Pattern != 0 || m.Source != tt.wantSource {
				t.Errorf("matched pattern %d (%q), want 0 (%q)", m.Pattern, m.Source, tt.wantSource)
			}
			if m.Score != 77 {
				t.Errorf("Score = %d, want 77", m.Score)
			}
		})
	}
}

func TestEngine_MatchIsRepeatable(t *testing.T) {
	engine := mustEngine(t, defaultSources)
	first, _ := engine.Match("2024年第四季度KPI考核自评85分")
	second, _ := engine.Match("2024年第四季度KPI考核自评85分")
	if first.Text != second.Text || first.Score != second.Score || first.Pattern != second.Pattern {
		t.Errorf("repeated match differs: %+v vs %+v", first, second)
	}
}

func TestCompile_UnnamedGroups(t *testing.T) {
	compiled, err := Compile([]string{`(\d{4})年.*自评(\d{1,3})分`})
	if err != nil {
		t.Fatalf("Compile() error = %v", err)
	}
	if !compiled[0].HasYear() {
		t.Fatal("expected first unnamed group to be the year")
	}
	if compiled[0].HasQuarter() {
		t.Error("expected no quarter slot")
	}

	m, ok := NewEngine(compiled).Match("2023年度考核自评88分")
	if !ok {
		t.Fatal("expected match")
	}
	if m.Score != 88 || m.Year == nil || *m.Year != 2023 {
		t.Errorf("got score %d year %v, want 88 and 2023", m.Score, m.Year)
	}
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name      string
		sources   []string
		wantIndex int
		wantNoGrp bool
	}{
		{"invalid regex", []string{`KPI(\d+`}, 0, false},
		{"no capture group", []string{`KPI考核自评(\d+)分`, `KPI考核自评\d+分`}, 1, true},
		{"empty pattern", []string{"  "}, 0, false},
		{"only named non-score groups", []string{`(?P<year>\d{4})年`}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.sources)
			if err == nil {
				t.Fatal("expected error")
			}
			var perr *Error
			if !errors.As(err, &perr) {
				t.Fatalf("error %v is not *pattern.Error", err)
			}
			if perr.Index != tt.wantIndex {
				t.Errorf("Index = %d, want %d", perr.Index, tt.wantIndex)
			}
			if got := errors.Is(err, ErrNoScoreSlot); got != tt.wantNoGrp {
				t.Errorf("errors.Is(ErrNoScoreSlot) = %v, want %v", got, tt.wantNoGrp)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"  KPI  考核 ", "KPI 考核"},
		{"ＫＰＩ８５", "KPI85"},
		{"a　　b", "a b"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestParseQuarter(t *testing.T) {
	for in, want := range map[string]int{"一": 1, "二": 2, "三": 3, "四": 4, "1": 1, "4": 4} {
		if got, ok := ParseQuarter(in); !ok || got != want {
			t.Errorf("ParseQuarter(%q) = %d, %v; want %d", in, got, ok, want)
		}
	}
	if _, ok := ParseQuarter("五"); ok {
		t.Error("ParseQuarter(五) should fail")
	}
}
