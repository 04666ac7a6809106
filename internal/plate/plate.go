// Package plate validates and canonicalizes Russian registration plates typed
// as free text.
package plate

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/Stagnxzione/ra-userbot/internal/domain"
)

// Placeholder is displayed for absent or unparsable plates.
const Placeholder = "—"

// latinToCyrillic maps Latin letters that look identical to the Cyrillic
// letters allowed on plates.
var latinToCyrillic = map[rune]rune{
	'A': 'А',
	'B': 'В',
	'E': 'Е',
	'K': 'К',
	'M': 'М',
	'H': 'Н',
	'O': 'О',
	'P': 'Р',
	'C': 'С',
	'T': 'Т',
	'Y': 'У',
	'X': 'Х',
}

var (
	vehiclePattern      = regexp.MustCompile(`^([A-ZА-ЯЁ])(\d{3,4})([A-ZА-ЯЁ]{2})(\d{2,3})$`)
	vehicleShortPattern = regexp.MustCompile(`^([A-ZА-ЯЁ])(\d{3})([A-ZА-ЯЁ]{2})(\d{2,3})$`)
	trailerPattern      = regexp.MustCompile(`^([A-ZА-ЯЁ]{2})(\d{4})(\d{2,3})$`)
)

// Hint is the re-prompt text shown after a rejected plate.
type Hint struct {
	Format  string
	Example string
}

// Cleanse keeps letters and digits, uppercases them and folds Latin
// look-alikes to Cyrillic.
func Cleanse(raw string) string {
	var b strings.Builder
	for _, r := range raw {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			continue
		}
		r = unicode.ToUpper(r)
		if c, ok := latinToCyrillic[r]; ok {
			r = c
		}
		b.WriteRune(r)
	}
	return b.String()
}

// NormalizeVehicle returns the canonical compact vehicle plate. The
// size-constrained brand only accepts a three-digit numeric group.
func NormalizeVehicle(raw string, brand *string) (string, bool) {
	s := Cleanse(raw)
	pattern := vehiclePattern
	if domain.IsSizeConstrained(brand) {
		pattern = vehicleShortPattern
	}
	if !pattern.MatchString(s) {
		return "", false
	}
	return s, true
}

// NormalizeTrailer returns the canonical compact trailer plate. When the
// strict shape fails it rebuilds the plate from the first two letters and
// the first six or seven digits, then validates again.
func NormalizeTrailer(raw string) (string, bool) {
	s := Cleanse(raw)
	if trailerPattern.MatchString(s) {
		return s, true
	}

	var letters, digits []rune
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits = append(digits, r)
		case unicode.IsLetter(r):
			letters = append(letters, r)
		}
	}
	if len(letters) < 2 || len(digits) < 6 {
		return "", false
	}
	end := len(digits)
	if end > 7 {
		end = 7
	}
	candidate := string(letters[:2]) + string(digits[:end])
	if !trailerPattern.MatchString(candidate) {
		return "", false
	}
	return candidate, true
}

// Normalize dispatches on the step input kind.
func Normalize(kind domain.InputKind, raw string, brand *string) (string, bool) {
	switch kind {
	case domain.InputVehiclePlate:
		return NormalizeVehicle(raw, brand)
	case domain.InputTrailerPlate:
		return NormalizeTrailer(raw)
	}
	return "", false
}

// Display inserts a space before the region digits. Values that are not a
// canonical vehicle or trailer plate render as Placeholder.
func Display(canonical string) string {
	if m := vehiclePattern.FindStringSubmatch(canonical); m != nil {
		return m[1] + m[2] + m[3] + " " + m[4]
	}
	if m := trailerPattern.FindStringSubmatch(canonical); m != nil {
		return m[1] + m[2] + " " + m[3]
	}
	return Placeholder
}

// DisplayValue is Display for an optional value.
func DisplayValue(v *string) string {
	if v == nil || *v == "" {
		return Placeholder
	}
	return Display(*v)
}

// VehicleHint describes the expected vehicle plate shape for the brand.
func VehicleHint(brand *string) Hint {
	if domain.IsSizeConstrained(brand) {
		return Hint{Format: "Буква + 3 цифры + 2 буквы + 2–3 цифры", Example: "A123BC 77"}
	}
	return Hint{Format: "Буква + 3–4 цифры + 2 буквы + 2–3 цифры", Example: "A1234BC 77"}
}

// TrailerHint describes the expected trailer plate shape.
func TrailerHint() Hint {
	return Hint{Format: "2 буквы + 4 цифры + 2–3 цифры (регион)", Example: "AB1234 77"}
}
