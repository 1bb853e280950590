// Package specfile implements spec-attachment support: content
// fingerprinting and structural validation of an attached markdown spec's
// required section headings. Both are pure functions over the document
// bytes, returning a categorized *tsqerr.Error on failure.
package specfile

import (
	"bufio"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/misty-step/tsq/internal/tsqerr"
)

// Fingerprint returns the SHA-256 hex digest of the exact file bytes.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

var headingPattern = regexp.MustCompile(`^(#{1,6})\s+(.+)$`)

// requiredSections is the canonical set of section titles a valid spec must
// contain, matched case-insensitively with internal whitespace normalized to
// single spaces.
var requiredSections = []string{
	"Overview",
	"Constraints / Non-goals",
	"Interfaces (CLI/API)",
	"Data model / schema changes",
	"Acceptance criteria",
	"Test plan",
}

func normalize(title string) string {
	fields := strings.Fields(title)
	return strings.ToLower(strings.Join(fields, " "))
}

// Validate checks that content's Markdown headings cover every required
// section title (case-insensitive, whitespace-normalized), returning
// SPEC_VALIDATION_FAILED naming the missing sections when they do not.
func Validate(content []byte) error {
	found := map[string]bool{}
	scanner := bufio.NewScanner(strings.NewReader(string(content)))
	for scanner.Scan() {
		m := headingPattern.FindStringSubmatch(scanner.Text())
		if m == nil {
			continue
		}
		found[normalize(m[2])] = true
	}

	var missing []string
	for _, section := range requiredSections {
		if !found[normalize(section)] {
			missing = append(missing, section)
		}
	}
	if len(missing) > 0 {
		return tsqerr.Newf(tsqerr.CodeSpecValidation, "spec is missing required section(s): %s", strings.Join(missing, ", ")).
			WithDetails(map[string]any{"missing_sections": missing})
	}
	return nil
}
