package htmlform

import (
	"errors"
	"strings"
	"testing"
)

const loginPage = `<!DOCTYPE html>
<html>
<head><meta name="csrf-token" content="meta-token"></head>
<body>
  <form action="/login" method="post">
    <input name="utf8" type="hidden" value="&#x2713;">
    <input type="hidden" name="authenticity_token" value="abc+/123==">
    <input type="email" name="account[email]">
    <input type="password" name="account[password]" />
    <input type="hidden" name="remember" value="1" />
    <input type="hidden" name="return_to" value="">
    <button type="submit" name="button">Sign in</button>
  </form>
</body>
</html>`

func TestHiddenInputValue(t *testing.T) {
	tests := []struct {
		name  string
		field string
		want  string
	}{
		{"AuthenticityToken", "authenticity_token", "abc+/123=="},
		{"EntityDecoded", "utf8", "✓"},
		{"SelfClosing", "remember", "1"},
		{"EmptyValue", "return_to", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HiddenInputValue(strings.NewReader(loginPage), tt.field)
			if err != nil {
				t.Fatalf("HiddenInputValue failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("Expected %q, got %q", tt.want, got)
			}
		})
	}

	t.Run("Missing", func(t *testing.T) {
		_, err := HiddenInputValue(strings.NewReader(loginPage), "csrf-token")
		if !errors.Is(err, ErrFieldNotFound) {
			t.Errorf("Expected ErrFieldNotFound, got %v", err)
		}
	})

	t.Run("NoValueAttribute", func(t *testing.T) {
		for _, field := range []string{"account[email]", "account[password]"} {
			got, err := HiddenInputValue(strings.NewReader(loginPage), field)
			if !errors.Is(err, ErrFieldNotFound) {
				t.Errorf("%s: expected ErrFieldNotFound, got %q, %v", field, got, err)
			}
		}
	})

	t.Run("LaterInputWithValue", func(t *testing.T) {
		page := `<input type="hidden" name="authenticity_token"><input type="hidden" name="authenticity_token" value="second">`
		got, err := HiddenInputValue(strings.NewReader(page), "authenticity_token")
		if err != nil {
			t.Fatalf("HiddenInputValue failed: %v", err)
		}
		if got != "second" {
			t.Errorf("Expected %q, got %q", "second", got)
		}
	})

	t.Run("ButtonIsNotAnInput", func(t *testing.T) {
		_, err := HiddenInputValue(strings.NewReader(loginPage), "button")
		if !errors.Is(err, ErrFieldNotFound) {
			t.Errorf("Expected ErrFieldNotFound, got %v", err)
		}
	})

	t.Run("EmptyDocument", func(t *testing.T) {
		_, err := HiddenInputValue(strings.NewReader(""), "authenticity_token")
		if !errors.Is(err, ErrFieldNotFound) {
			t.Errorf("Expected ErrFieldNotFound, got %v", err)
		}
	})
}
