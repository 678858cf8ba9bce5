package errors

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io/fs"
	"strings"
	"testing"

	"github.com/sptgo/gameserver/internal/jsonutil"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		code    string
		wantMsg string
		wantCat Category
	}{
		{
			name:    "config error",
			code:    "E102",
			wantMsg: "Invalid config JSON",
			wantCat: CategoryConfig,
		},
		{
			name:    "startup error",
			code:    "E120",
			wantMsg: "Activity store unavailable",
			wantCat: CategoryStartup,
		},
		{
			name:    "cli error",
			code:    "E140",
			wantMsg: "Invalid flag value",
			wantCat: CategoryCLI,
		},
		{
			name:    "unknown error code",
			code:    "E999",
			wantMsg: "Unknown error",
			wantCat: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code)
			if err.Message != tt.wantMsg {
				t.Errorf("Message = %q, want %q", err.Message, tt.wantMsg)
			}
			if err.Category != tt.wantCat {
				t.Errorf("Category = %q, want %q", err.Category, tt.wantCat)
			}
			if err.Code != tt.code {
				t.Errorf("Code = %q, want %q", err.Code, tt.code)
			}
		})
	}
}

func TestNewf(t *testing.T) {
	err := Newf(CategoryCLI, "unknown command %q", "srv")
	if err.Message != `unknown command "srv"` {
		t.Errorf("Message = %q", err.Message)
	}
	if err.Code != "" {
		t.Errorf("Code = %q, want empty", err.Code)
	}
}

func TestErrorString(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{"code only", New("E100"), "E100: Config file not found"},
		{"with field", New("E103").WithField("port"), "E103: Invalid config value (port)"},
		{
			"with cause",
			New("E101").Wrap(fs.ErrPermission),
			"E101: Config file unreadable: permission denied",
		},
		{"uncoded", Newf(CategoryConfig, "bad"), "bad"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Errorf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestUnwrap(t *testing.T) {
	err := New("E101").Wrap(fs.ErrNotExist)
	if !stderrors.Is(err, fs.ErrNotExist) {
		t.Error("errors.Is should see the wrapped error")
	}

	wrapped := fmt.Errorf("load: %w", err)
	var e *Error
	if !stderrors.As(wrapped, &e) || e.Code != "E101" {
		t.Errorf("errors.As = %v, want E101", e)
	}
}

func TestFromError(t *testing.T) {
	if FromError(nil, "E100") != nil {
		t.Error("FromError(nil) should be nil")
	}

	plain := stderrors.New("boom")
	e := FromError(plain, "E122")
	if e.Code != "E122" || e.Wrapped != plain {
		t.Errorf("FromError = %+v", e)
	}

	coded := New("E120")
	if got := FromError(fmt.Errorf("ctx: %w", coded), "E122"); got != coded {
		t.Error("FromError should return the Error already in the chain")
	}
}

func TestCode(t *testing.T) {
	if got := Code(fmt.Errorf("x: %w", New("E104"))); got != "E104" {
		t.Errorf("Code = %q, want E104", got)
	}
	if got := Code(stderrors.New("plain")); got != "" {
		t.Errorf("Code = %q, want empty", got)
	}
}

func TestFormat(t *testing.T) {
	DisableColors()
	defer EnableColors()

	err := New("E103").
		WithField("activity.backend").
		WithDetail(`unknown backend "mysql"`).
		WithSuggestion("Use memory, redis or sqlite").
		WithExample(`"activity": {"backend": "redis"}`).
		Wrap(stderrors.New("inner"))

	out := err.Format()
	for _, want := range []string{
		"ERROR E103: Invalid config value",
		"activity.backend",
		`unknown backend "mysql"`,
		"Cause: inner",
		"Hint: Use memory, redis or sqlite",
		"Example:",
		`    "activity": {"backend": "redis"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Format() missing %q\n%s", want, out)
		}
	}
	if strings.Contains(out, "\033[") {
		t.Error("Format() should not emit color codes when disabled")
	}
}

func TestFormatColors(t *testing.T) {
	EnableColors()
	if !strings.Contains(New("E100").Format(), colorRed) {
		t.Error("Format() should emit color codes when enabled")
	}
}

func TestFormatCompact(t *testing.T) {
	if got := New("E103").WithField("port").FormatCompact(); got != "E103: Invalid config value [port]" {
		t.Errorf("FormatCompact() = %q", got)
	}
	if got := Newf(CategoryCLI, "oops").FormatCompact(); got != "oops" {
		t.Errorf("FormatCompact() = %q", got)
	}
}

func TestFormatJSON(t *testing.T) {
	out := New("E102").WithField("port").Wrap(stderrors.New("bad token")).FormatJSON()

	got, err := jsonutil.Deserialize[map[string]string](out)
	if err != nil {
		t.Fatalf("FormatJSON() is not valid JSON: %v\n%s", err, out)
	}
	want := map[string]string{
		"code":     "E102",
		"category": "config",
		"message":  "Invalid config JSON",
		"field":    "port",
		"cause":    "bad token",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if _, ok := got["suggestion"]; ok {
		t.Error("empty suggestion should be omitted")
	}
}

func TestFprint(t *testing.T) {
	DisableColors()
	defer EnableColors()

	var buf bytes.Buffer
	Fprint(&buf, fmt.Errorf("start: %w", New("E122")))
	if !strings.Contains(buf.String(), "ERROR E122: Server failed") {
		t.Errorf("Fprint(coded) = %q", buf.String())
	}

	buf.Reset()
	Fprint(&buf, stderrors.New("plain failure"))
	if !strings.Contains(buf.String(), "ERROR: plain failure") {
		t.Errorf("Fprint(plain) = %q", buf.String())
	}
}

func TestWrapText(t *testing.T) {
	if wrapText("", 10) != nil {
		t.Error("empty text should wrap to nil")
	}
	lines := wrapText("one two three four five", 9)
	want := []string{"one two", "three", "four five"}
	if len(lines) != len(want) {
		t.Fatalf("wrapText = %q, want %q", lines, want)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestRegistry(t *testing.T) {
	for _, code := range GetAllCodes() {
		tmpl, ok := GetTemplate(code)
		if !ok {
			t.Errorf("GetTemplate(%s) missing", code)
			continue
		}
		if tmpl.Message == "" || tmpl.Category == "" {
			t.Errorf("%s: incomplete template %+v", code, tmpl)
		}
	}

	Register("E199", ErrorTemplate{Category: CategoryConfig, Message: "custom"})
	defer delete(registry, "E199")
	if New("E199").Message != "custom" {
		t.Error("registered template not used")
	}
}
