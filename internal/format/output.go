// Package format renders command results as JSON, EDN or text.
//
// Every command result is one value, usually wrapped as {"data": ...} by
// the caller. Table and Document carry their raw Data so the machine
// formats stay stable while text output is laid out for a terminal.
package format

import (
	"encoding/json"
	"fmt"
	"io"
)

// Names accepted by Write. An empty name means JSON.
const (
	JSON = "json"
	EDN  = "edn"
	Text = "text"
)

// Write encodes v to w in the named format. pretty indents JSON and EDN.
func Write(w io.Writer, v any, name string, pretty bool) error {
	switch name {
	case "", JSON:
		return WriteJSON(w, v, pretty)
	case EDN:
		return WriteEDN(w, v, pretty)
	case Text:
		return WriteText(w, v)
	default:
		return fmt.Errorf("unknown format %q (want %s, %s or %s)", name, JSON, EDN, Text)
	}
}

// WriteJSON writes v as a single JSON document followed by a newline.
// Scripts parse this output, so it never carries colour or log lines.
func WriteJSON(w io.Writer, v any, pretty bool) error {
	var b []byte
	var err error
	if pretty {
		b, err = json.MarshalIndent(v, "", "  ")
	} else {
		b, err = json.Marshal(v)
	}
	if err != nil {
		return err
	}

	_, err = fmt.Fprintln(w, string(b))
	return err
}
