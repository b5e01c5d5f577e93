package fault

import (
	"errors"
	"fmt"
	"io/fs"
	"testing"
)

func TestNilStaysNil(t *testing.T) {
	if Recoverable(nil) != nil {
		t.Error("Recoverable(nil) != nil")
	}
	if Fatal(nil) != nil {
		t.Error("Fatal(nil) != nil")
	}
}

func TestClassification(t *testing.T) {
	rec := Recoverable(errors.New("host unreachable"))
	fat := Fatal(errors.New("bad timestamp"))

	if !IsRecoverable(rec) || IsFatal(rec) {
		t.Errorf("recoverable misclassified: %v", SeverityOf(rec))
	}
	if !IsFatal(fat) || IsRecoverable(fat) {
		t.Errorf("fatal misclassified: %v", SeverityOf(fat))
	}
	if SeverityOf(errors.New("plain")) != 0 {
		t.Error("plain error should carry no severity")
	}
}

func TestClassificationSurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("tick 4: %w", Fatal(fs.ErrNotExist))
	if !IsFatal(err) {
		t.Error("wrapped fatal not detected")
	}
	if !errors.Is(err, fs.ErrNotExist) {
		t.Error("underlying error lost through Unwrap")
	}
}

func TestErrorMessage(t *testing.T) {
	err := Recoverablef("fetch %s: %w", "https://example.com", errors.New("timeout"))
	if got, want := err.Error(), "fetch https://example.com: timeout"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if got := SeverityFatal.String(); got != "fatal" {
		t.Errorf("String() = %q", got)
	}
}
