package progress

import (
	"bytes"
	"testing"
)

func TestCIReporter(t *testing.T) {
	var buf bytes.Buffer
	r := &CIReporter{Out: &buf}

	r.Start("Extracting text", 2)
	fn := Func(r)
	fn(1, 2, "a.pdf")
	fn(2, 2, "b.png")
	r.Finish()

	want := "Extracting text: 2 file(s)\n[1/2] a.pdf\n[2/2] b.png\nExtracting text complete\n"
	if got := buf.String(); got != want {
		t.Errorf("unexpected output:\n%s\nwant:\n%s", got, want)
	}
}

func TestFuncNil(t *testing.T) {
	if Func(nil) != nil {
		t.Error("expected nil callback for nil reporter")
	}
}

func TestNewReporterCI(t *testing.T) {
	t.Setenv("CI", "true")
	if _, ok := NewReporter().(*CIReporter); !ok {
		t.Error("expected CIReporter when CI is set")
	}
}
