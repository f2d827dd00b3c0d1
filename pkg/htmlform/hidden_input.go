// Package htmlform pulls values out of server-rendered HTML forms.
package htmlform

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrFieldNotFound is returned when no input carries the requested name
// together with a value attribute.
var ErrFieldNotFound = errors.New("form field not found")

// HiddenInputValue returns the value attribute of the first <input> element
// whose name attribute equals name and that has a value attribute. An empty
// value="" counts as present.
func HiddenInputValue(r io.Reader, name string) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", fmt.Errorf("parse html: %w", err)
			}
			return "", fmt.Errorf("%w: %s", ErrFieldNotFound, name)
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			if tok.DataAtom != atom.Input {
				continue
			}
			if value, ok := inputValue(tok, name); ok {
				return value, nil
			}
		}
	}
}

func inputValue(tok html.Token, name string) (string, bool) {
	var matched, hasValue bool
	var value string
	for _, a := range tok.Attr {
		switch a.Key {
		case "name":
			matched = a.Val == name
		case "value":
			value, hasValue = a.Val, true
		}
	}
	return value, matched && hasValue
}
