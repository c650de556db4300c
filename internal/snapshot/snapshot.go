// Package snapshot stores order lists as pretty-printed JSON for hand editing.
// Paths ending in .xz are compressed. Reading always re-validates, so an edited
// file is held to the same rules as a fresh fetch.
package snapshot

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/ulikunitz/xz"

	"github.com/phillip-england/orderprep/internal/order"
	"github.com/phillip-england/orderprep/internal/validate"
)

// Marshal renders orders the way the manual edit view shows them.
func Marshal(orders []order.Order) ([]byte, error) {
	if orders == nil {
		orders = []order.Order{}
	}
	data, err := json.MarshalIndent(orders, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode orders: %w", err)
	}
	return append(data, '\n'), nil
}

func Write(path string, orders []order.Order) error {
	data, err := Marshal(orders)
	if err != nil {
		return err
	}
	if compressed(path) {
		var buf bytes.Buffer
		w, err := xz.NewWriter(&buf)
		if err != nil {
			return fmt.Errorf("create xz writer: %w", err)
		}
		if _, err := w.Write(data); err != nil {
			return fmt.Errorf("compress orders: %w", err)
		}
		if err := w.Close(); err != nil {
			return fmt.Errorf("compress orders: %w", err)
		}
		data = buf.Bytes()
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// ReadRaw returns the decoded JSON list without validating it.
func ReadRaw(path string) ([]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open snapshot: %w", err)
	}
	defer f.Close()

	var r io.Reader = f
	if compressed(path) {
		xr, err := xz.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("open xz snapshot: %w", err)
		}
		r = xr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}
	return validate.ParseJSON(data)
}

// Read loads a snapshot and runs it through the validator.
func Read(path string, v *validate.Validator) (validate.Report, error) {
	raw, err := ReadRaw(path)
	if err != nil {
		return validate.Report{}, err
	}
	return v.Validate(raw), nil
}

func compressed(path string) bool {
	return strings.HasSuffix(strings.ToLower(path), ".xz")
}
