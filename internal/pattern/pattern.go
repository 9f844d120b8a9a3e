// Package pattern matches KPI self-assessment sentences against an ordered list
// of regular expressions.
package pattern

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// Capture slot names recognised in patterns.
const (
	SlotScore   = "score"
	SlotYear    = "year"
	SlotQuarter = "quarter"
)

// ErrNoScoreSlot is returned for a pattern that cannot capture a score.
var ErrNoScoreSlot = errors.New("pattern has no score capture group")

// Error describes a pattern that failed to compile.
type Error struct {
	Index  int
	Source string
	Err    error
}

func (e *Error) Error() string {
	return fmt.Sprintf("kpi pattern %d (%q): %v", e.Index, e.Source, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Compiled is one compiled pattern. Slot fields hold submatch indexes, -1 when absent.
type Compiled struct {
	Index  int
	Source string

	re      *regexp.Regexp
	score   int
	year    int
	quarter int
}

// HasYear reports whether the pattern captures a year.
func (s *Compiled) HasYear() bool { return s.year >= 0 }

// HasQuarter reports whether the pattern captures a quarter.
func (s *Compiled) HasQuarter() bool { return s.quarter >= 0 }

// Compile compiles sources in order. Slots are taken from the named groups
// score, year and quarter. Without a named score group, a single unnamed group
// is the score; with several unnamed groups the last one is the score and the
// first one the year.
func Compile(sources []string) ([]*Compiled, error) {
	compiled := make([]*Compiled, 0, len(sources))
	for i, src := range sources {
		c, err := compileOne(i, src)
		if err != nil {
			return nil, err
		}
		compiled = append(compiled, c)
	}
	return compiled, nil
}

func compileOne(index int, src string) (*Compiled, error) {
	if strings.TrimSpace(src) == "" {
		return nil, &Error{Index: index, Source: src, Err: errors.New("empty pattern")}
	}

	re, err := regexp.Compile("(?i)" + src)
	if err != nil {
		return nil, &Error{Index: index, Source: src, Err: err}
	}

	c := &Compiled{Index: index, Source: src, re: re, score: -1, year: -1, quarter: -1}
	var unnamed []int
	for i, name := range re.SubexpNames() {
		if i == 0 {
			continue
		}
		switch name {
		case SlotScore:
			c.score = i
		case SlotYear:
			c.year = i
		case SlotQuarter:
			c.quarter = i
		case "":
			unnamed = append(unnamed, i)
		}
	}

	if c.score < 0 {
		switch len(unnamed) {
		case 0:
			return nil, &Error{Index: index, Source: src, Err: ErrNoScoreSlot}
		case 1:
			c.score = unnamed[0]
		default:
			c.score = unnamed[len(unnamed)-1]
			if c.year < 0 {
				c.year = unnamed[0]
			}
		}
	}

	return c, nil
}

// Match is the result of a successful match.
type Match struct {
	Pattern int    // index of the matching c
	Source  string // source of the matching c
	Text    string // matched text
	Score   int
	Year    *int
	Quarter *int
}

// match returns the first candidate in text whose score lies in 0..100.
func (s *Compiled) match(text string) (*Match, bool) {
	for _, loc := range s.re.FindAllStringSubmatchIndex(text, -1) {
		score, err := strconv.Atoi(group(text, loc, s.score))
		if err != nil || score < 0 || score > 100 {
			continue
		}

		m := &Match{
			Pattern: s.Index,
			Source:  s.Source,
			Text:    text[loc[0]:loc[1]],
			Score:   score,
		}
		if s.year >= 0 {
			if y, err := strconv.Atoi(group(text, loc, s.year)); err == nil {
				m.Year = &y
			}
		}
		if s.quarter >= 0 {
			if q, ok := ParseQuarter(group(text, loc, s.quarter)); ok {
				m.Quarter = &q
			}
		}
		return m, true
	}
	return nil, false
}

func group(text string, loc []int, idx int) string {
	if idx < 0 || 2*idx+1 >= len(loc) || loc[2*idx] < 0 {
		return ""
	}
	return text[loc[2*idx]:loc[2*idx+1]]
}

// Engine tries patterns in declaration order; the first one that matches wins.
type Engine struct {
	compiled []*Compiled
}

// NewEngine creates an Engine over already compiled patterns.
func NewEngine(compiled []*Compiled) *Engine {
	return &Engine{compiled: compiled}
}

// Patterns returns the patterns in match order.
func (e *Engine) Patterns() []*Compiled {
	return e.compiled
}

// Match normalises text and returns the match of the first pattern that hits.
func (e *Engine) Match(text string) (*Match, bool) {
	norm := Normalize(text)
	if norm == "" {
		return nil, false
	}
	for _, s := range e.compiled {
		if m, ok := s.match(norm); ok {
			return m, true
		}
	}
	return nil, false
}

// Normalize folds full-width characters to their narrow forms and collapses
// whitespace runs (including the ideographic space) to a single space.
func Normalize(text string) string {
	return strings.Join(strings.Fields(width.Fold.String(text)), " ")
}

var quarterNumerals = map[string]int{
	"一": 1, "二": 2, "三": 3, "四": 4,
	"1": 1, "2": 2, "3": 3, "4": 4,
}

// ParseQuarter parses "1".."4" or "一".."四".
func ParseQuarter(s string) (int, bool) {
	q, ok := quarterNumerals[strings.TrimSpace(s)]
	return q, ok
}
