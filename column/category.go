package column

import (
	"strconv"
	"strings"

	"github.com/google/uuid"

	msierrors "github.com/FocuswithJustin/msigo/errors"
)

// Category indicates the format a string-typed column's values must
// follow, per the column data types documented for the MSI format.
type Category int

const (
	CategoryText Category = iota
	CategoryUpperCase
	CategoryLowerCase
	CategoryInteger
	CategoryDoubleInteger
	CategoryTimeDate
	CategoryIdentifier
	CategoryProperty
	CategoryFilename
	CategoryWildCardFilename
	CategoryPath
	CategoryPaths
	CategoryAnyPath
	CategoryDefaultDir
	CategoryRegPath
	CategoryFormatted
	CategoryFormattedSddlText
	CategoryTemplate
	CategoryCondition
	CategoryGuid
	CategoryVersion
	CategoryLanguage
	CategoryBinary
	CategoryCustomSource
	CategoryCabinet
	CategoryShortcut
)

var categoryNames = map[Category]string{
	CategoryText:              "Text",
	CategoryUpperCase:         "UpperCase",
	CategoryLowerCase:         "LowerCase",
	CategoryInteger:           "Integer",
	CategoryDoubleInteger:     "DoubleInteger",
	CategoryTimeDate:          "TimeDate",
	CategoryIdentifier:        "Identifier",
	CategoryProperty:          "Property",
	CategoryFilename:          "Filename",
	CategoryWildCardFilename:  "WildCardFilename",
	CategoryPath:              "Path",
	CategoryPaths:             "Paths",
	CategoryAnyPath:           "AnyPath",
	CategoryDefaultDir:        "DefaultDir",
	CategoryRegPath:           "RegPath",
	CategoryFormatted:         "Formatted",
	CategoryFormattedSddlText: "FormattedSDDLText",
	CategoryTemplate:          "Template",
	CategoryCondition:         "Condition",
	CategoryGuid:              "GUID",
	CategoryVersion:           "Version",
	CategoryLanguage:          "Language",
	CategoryBinary:            "Binary",
	CategoryCustomSource:      "CustomSource",
	CategoryCabinet:           "Cabinet",
	CategoryShortcut:          "Shortcut",
}

var categoryByName map[string]Category

func init() {
	categoryByName = make(map[string]Category, len(categoryNames))
	for c, name := range categoryNames {
		categoryByName[name] = c
	}
	categoryByName["FormattedSddlText"] = CategoryFormattedSddlText
	categoryByName["Guid"] = CategoryGuid
}

func (c Category) String() string {
	if name, ok := categoryNames[c]; ok {
		return name
	}
	return "Unknown"
}

// ParseCategory parses a category name as stored in the _Validation table.
func ParseCategory(s string) (Category, error) {
	if c, ok := categoryByName[s]; ok {
		return c, nil
	}
	return 0, msierrors.NewSchema("", "", "invalid category: "+strconv.Quote(s))
}

// Validate reports whether s is a legal value for a string column with
// this category.
func (c Category) Validate(s string) bool {
	switch c {
	case CategoryText:
		return true
	case CategoryUpperCase:
		return !strings.ContainsFunc(s, isASCIILower)
	case CategoryLowerCase:
		return !strings.ContainsFunc(s, isASCIIUpper)
	case CategoryInteger:
		_, err := strconv.ParseInt(s, 10, 16)
		return err == nil
	case CategoryDoubleInteger:
		_, err := strconv.ParseInt(s, 10, 32)
		return err == nil
	case CategoryIdentifier:
		return validIdentifier(s)
	case CategoryProperty:
		return validIdentifier(strings.TrimPrefix(s, "%"))
	case CategoryGuid:
		return validGuid(s)
	case CategoryVersion:
		return validVersion(s)
	case CategoryLanguage:
		return validLanguage(s)
	case CategoryCabinet:
		return validCabinet(s)
	default:
		return true
	}
}

func isASCIILower(r rune) bool { return r >= 'a' && r <= 'z' }
func isASCIIUpper(r rune) bool { return r >= 'A' && r <= 'Z' }

func validIdentifier(s string) bool {
	if s == "" {
		return false
	}
	first := s[0]
	if !((first >= 'a' && first <= 'z') || (first >= 'A' && first <= 'Z') || first == '_') {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		alnum := (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9')
		if !(alnum || c == '_' || c == '.') {
			return false
		}
	}
	return true
}

func validGuid(s string) bool {
	if len(s) != 38 || s[0] != '{' || s[len(s)-1] != '}' {
		return false
	}
	if strings.ContainsFunc(s, isASCIILower) {
		return false
	}
	_, err := uuid.Parse(s[1:37])
	return err == nil
}

func validVersion(s string) bool {
	parts := strings.Split(s, ".")
	if len(parts) > 4 {
		return false
	}
	for _, part := range parts {
		if _, err := strconv.ParseUint(part, 10, 16); err != nil {
			return false
		}
	}
	return true
}

func validLanguage(s string) bool {
	if s == "" {
		return false
	}
	for _, part := range strings.Split(s, ",") {
		if _, err := strconv.ParseUint(part, 10, 16); err != nil {
			return false
		}
	}
	return true
}

func validCabinet(s string) bool {
	if rest, ok := strings.CutPrefix(s, "#"); ok {
		return validIdentifier(rest)
	}
	base, ext, hasExt := s, "", false
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		base, ext, hasExt = s[:i], s[i+1:], true
	}
	if base == "" || len(base) > 8 {
		return false
	}
	if hasExt && len(ext) > 3 {
		return false
	}
	return true
}
