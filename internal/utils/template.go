package utils

import (
	"regexp"
	"time"

	"github.com/itchyny/timefmt-go"
)

// variablePattern matches {var} placeholders.
var variablePattern = regexp.MustCompile(`\{([A-Za-z_]+)\}`)

// blankPattern matches a run of underscores left for a value to be filled in by hand.
var blankPattern = regexp.MustCompile(`_{2,}`)

// Template is a string that supports template expansion.
// It can contain {name} variables and strftime tokens like %Y, %m, %d.
type Template string

// Variables returns the distinct variable names in order of first appearance.
func (t Template) Variables() []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range variablePattern.FindAllStringSubmatch(string(t), -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Blanks returns the number of underscore runs of length two or more.
func (t Template) Blanks() int {
	return len(blankPattern.FindAllStringIndex(string(t), -1))
}

// Expand replaces {name} variables with values from vars.
// Unknown variables are left unchanged.
func (t Template) Expand(vars map[string]string) Template {
	return replaceVariables(t, vars)
}

// ExpandWithTime expands strftime tokens using now.
func (t Template) ExpandWithTime(now time.Time) Template {
	return Template(timefmt.Format(now, string(t)))
}

func (t Template) String() string {
	return string(t)
}

func replaceVariables(template Template, vars map[string]string) Template {
	result := variablePattern.ReplaceAllStringFunc(string(template), func(match string) string {
		varName := match[1 : len(match)-1]
		if val, ok := vars[varName]; ok {
			return val
		}
		return match
	})
	return Template(result)
}
