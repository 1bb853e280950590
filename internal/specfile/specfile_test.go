package specfile

import (
	"strings"
	"testing"

	"github.com/misty-step/tsq/internal/tsqerr"
)

func TestFingerprintIsStableAndSensitiveToContent(t *testing.T) {
	t.Parallel()
	a := Fingerprint([]byte("hello"))
	b := Fingerprint([]byte("hello"))
	c := Fingerprint([]byte("hello!"))
	if a != b {
		t.Fatalf("Fingerprint is not stable: %q != %q", a, b)
	}
	if a == c {
		t.Fatal("Fingerprint did not change with content")
	}
}

const validSpec = `# Overview

Does a thing.

## Constraints / Non-goals

None.

### Interfaces (CLI/API)

None.

## Data model / schema changes

None.

## Acceptance criteria

It works.

## Test plan

Unit tests.
`

func TestValidateAcceptsCompleteSpec(t *testing.T) {
	t.Parallel()
	if err := Validate([]byte(validSpec)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateIsCaseAndWhitespaceInsensitive(t *testing.T) {
	t.Parallel()
	loose := strings.ReplaceAll(validSpec, "Overview", "  oVERVIEW  ")
	if err := Validate([]byte(loose)); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
}

func TestValidateReportsMissingSections(t *testing.T) {
	t.Parallel()
	incomplete := "# Overview\n\nJust this.\n"
	err := Validate([]byte(incomplete))
	if err == nil {
		t.Fatal("Validate() expected error, got nil")
	}
	code, ok := tsqerr.CodeOf(err)
	if !ok || code != tsqerr.CodeSpecValidation {
		t.Fatalf("error code = %v, want %v", code, tsqerr.CodeSpecValidation)
	}
}
