package entity

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cast"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const (
	AttrAttribution = "attribution"
	AttrAccountCode = "account_code"
	AttrAccountID   = "account_id"

	FormatVarCode        = "code"
	FormatVarAccountCode = "account_code"
	FormatVarAccountID   = "account_id"
	FormatVarID          = "id"

	AttributionFormat = "Data provided by %s"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

var (
	lettersPattern = regexp.MustCompile(`[A-Za-z]`)
	digitsPattern  = regexp.MustCompile(`[0-9]`)
	wordsPattern   = regexp.MustCompile(`\w+`)
)

// FormatName fills {key} placeholders from values. Suffixes _upper, _cap and _title
// transform an existing value; unknown keys are rendered as {{key}}.
func FormatName(format string, values map[string]string) string {
	return placeholderPattern.ReplaceAllStringFunc(format, func(match string) string {
		key := match[1 : len(match)-1]
		if value, ok := values[key]; ok {
			return value
		}
		if base, ok := strings.CutSuffix(key, "_upper"); ok {
			if value, ok := values[base]; ok {
				return strings.ToUpper(value)
			}
		}
		if base, ok := strings.CutSuffix(key, "_cap"); ok {
			if value, ok := values[base]; ok {
				return capitalize(value)
			}
		}
		if base, ok := strings.CutSuffix(key, "_title"); ok {
			if value, ok := values[base]; ok {
				return cases.Title(language.Und).String(value)
			}
		}
		return "{{" + key + "}}"
	})
}

func capitalize(value string) string {
	if value == "" {
		return value
	}
	runes := []rune(strings.ToLower(value))
	runes[0] = []rune(strings.ToUpper(string(runes[0])))[0]
	return string(runes)
}

// Name renders the entity's display name from its class name format.
func Name(e Entity) string {
	base := e.Core()
	values := make(map[string]interface{})
	for key, value := range e.NameFormatValues() {
		values[key] = value
	}
	if _, ok := values[FormatVarCode]; !ok {
		values[FormatVarCode] = e.Code()
	}
	if _, ok := values[FormatVarAccountCode]; !ok {
		values[FormatVarAccountCode] = base.Account().Code
	}

	base.maskDevPresentation(
		values,
		[]string{FormatVarCode, FormatVarAccountCode},
		[]string{FormatVarAccountID, FormatVarID},
	)

	formatted := make(map[string]string, len(values))
	for key, value := range values {
		if value == nil {
			formatted[key] = ""
			continue
		}
		formatted[key] = cast.ToString(value)
	}

	return FormatName(base.NameFormat(), formatted)
}

// ExtraStateAttributes merges the attribution and account code with the class attributes.
func ExtraStateAttributes(e Entity) map[string]interface{} {
	base := e.Core()
	attributes := map[string]interface{}{
		AttrAttribution: fmt.Sprintf(AttributionFormat, base.APIHostname()),
	}
	for key, value := range e.SensorRelatedAttributes() {
		attributes[key] = value
	}
	if _, ok := attributes[AttrAccountCode]; !ok {
		attributes[AttrAccountCode] = base.Account().Code
	}

	base.maskDevPresentation(attributes, []string{AttrAccountCode, AttrAccountID}, nil)
	return attributes
}

// maskDevPresentation hides identifying values when dev presentation is enabled.
// Blackout keys are replaced wholesale, filter keys keep their shape only.
func (b *Base) maskDevPresentation(mapping map[string]interface{}, filter, blackout []string) {
	if !b.AccountConfig().DevPresentation {
		return
	}

	blackoutSet := make(map[string]struct{}, len(blackout))
	for _, key := range blackout {
		blackoutSet[key] = struct{}{}
		value, ok := mapping[key]
		if !ok || value == nil {
			continue
		}
		switch value.(type) {
		case float32, float64:
			mapping[key] = "#####.###"
		case int, int32, int64, uint, uint32, uint64:
			mapping[key] = "#####"
		case string:
			mapping[key] = "XXXXX"
		default:
			mapping[key] = "*****"
		}
	}

	for _, key := range filter {
		if _, skip := blackoutSet[key]; skip {
			continue
		}
		value, ok := mapping[key]
		if !ok || value == nil {
			continue
		}
		masked := lettersPattern.ReplaceAllString(cast.ToString(value), "X")
		masked = digitsPattern.ReplaceAllString(masked, "#")
		mapping[key] = wordsPattern.ReplaceAllString(masked, "*")
	}
}
