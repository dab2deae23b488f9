// Package rename applies the naming pattern language to a staging folder
// and its files, driven by a metadata record: single-letter variables,
// {}-delimited optional blocks, list separators, and filesystem-safe
// sanitisation.
package rename

import (
	"regexp"
	"strings"

	"github.com/cineripr/releasepipeline/internal/metadata"
)

// Default patterns: folder "Example Movie (Directors Cut) (2021)", file
// "Example Movie".
const (
	DefaultFolderPattern = "$T{ ($6)}{ ($Y)}"
	DefaultFilePattern   = "$T"
)

var (
	optionalBlockRe = regexp.MustCompile(`\{([^{}]*)\}`)
	whitespaceRe    = regexp.MustCompile(`\s+`)
	invalidCharsRe  = regexp.MustCompile(`[<>:"/\\|?*]`)
	listSepRe       = map[string]*regexp.Regexp{
		"G": regexp.MustCompile(`\$G([\s.,-])`),
		"U": regexp.MustCompile(`\$U([\s.,-])`),
	}
)

// Interpreter substitutes metadata values into naming patterns.
type Interpreter struct {
	vars map[string]any
}

// NewInterpreter builds an interpreter over the record's variable table.
func NewInterpreter(record metadata.Record) *Interpreter {
	return &Interpreter{vars: record.Vars()}
}

// FolderName resolves the folder naming pattern. An empty pattern (or the
// passthrough "$D") yields "".
func (i *Interpreter) FolderName(pattern string) string {
	if strings.TrimSpace(pattern) == "" || strings.TrimSpace(pattern) == "$D" {
		return ""
	}
	return i.interpret(pattern)
}

// FileName resolves the file naming pattern, without extension. The magic
// token "ST" used alone is interpreted as "$T"; an empty pattern falls back
// to the original filename's stem.
func (i *Interpreter) FileName(pattern, originalStem string) string {
	if pattern == "" {
		return originalStem
	}
	if strings.TrimSpace(pattern) == "ST" {
		pattern = "$T"
	}
	return i.interpret(pattern)
}

func (i *Interpreter) interpret(pattern string) string {
	result := pattern
	for strings.Contains(result, "{") && strings.Contains(result, "}") {
		next := i.resolveInnermostBlock(result)
		if next == result {
			break
		}
		result = next
	}
	result = i.substitute(result)
	result = whitespaceRe.ReplaceAllString(result, " ")
	return sanitize(result)
}

// resolveInnermostBlock processes one optional {...} block: kept (braces
// dropped) when at least one variable inside it substitutes non-empty,
// removed entirely otherwise.
func (i *Interpreter) resolveInnermostBlock(text string) string {
	loc := optionalBlockRe.FindStringSubmatchIndex(text)
	if loc == nil {
		return text
	}
	content := text[loc[2]:loc[3]]
	if i.hasNonEmptyVariable(content) {
		return text[:loc[0]] + content + text[loc[1]:]
	}
	return text[:loc[0]] + text[loc[1]:]
}

var variableTokenRe = regexp.MustCompile(`\$([A-Za-z0-9])`)

func (i *Interpreter) hasNonEmptyVariable(content string) bool {
	for _, m := range variableTokenRe.FindAllStringSubmatch(content, -1) {
		switch v := i.vars[m[1]].(type) {
		case string:
			if v != "" {
				return true
			}
		case []string:
			if len(v) > 0 {
				return true
			}
		}
	}
	return false
}

func (i *Interpreter) substitute(text string) string {
	result := text

	// List variables first so a trailing separator character can override
	// the default comma-space join.
	for _, key := range []string{"G", "U"} {
		values, _ := i.vars[key].([]string)
		token := "$" + key
		if !strings.Contains(result, token) {
			continue
		}
		if m := listSepRe[key].FindStringSubmatch(result); m != nil {
			joined := strings.Join(values, m[1])
			result = listSepRe[key].ReplaceAllString(result, joined+m[1])
		} else {
			result = strings.ReplaceAll(result, token, strings.Join(values, ", "))
		}
	}

	for key, value := range i.vars {
		str, ok := value.(string)
		if !ok {
			continue
		}
		re := regexp.MustCompile(`\$` + regexp.QuoteMeta(key) + `(?:[^a-zA-Z0-9]|$)`)
		result = re.ReplaceAllStringFunc(result, func(m string) string {
			return str + strings.TrimPrefix(m, "$"+key)
		})
	}

	// $1 is the first letter of the title.
	if strings.Contains(result, "$1") {
		first := ""
		if title, _ := i.vars["T"].(string); title != "" {
			first = string([]rune(title)[0])
		}
		result = strings.ReplaceAll(result, "$1", first)
	}

	// Context variables that have no meaning here, and any unknown
	// variable, substitute empty.
	for _, dead := range []string{"$F", "$B", "$D"} {
		result = strings.ReplaceAll(result, dead, "")
	}
	result = variableTokenRe.ReplaceAllString(result, "")

	return result
}

// sanitize strips filesystem-invalid characters, collapses whitespace, and
// trims stray dots and spaces.
func sanitize(name string) string {
	name = invalidCharsRe.ReplaceAllString(name, "")
	name = strings.Trim(name, ". ")
	return whitespaceRe.ReplaceAllString(name, " ")
}
