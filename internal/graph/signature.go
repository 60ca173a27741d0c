package graph

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"unicode/utf16"

	"github.com/shopspring/decimal"
	"golang.org/x/text/unicode/norm"
)

// DomainAllocationSignature separates allocation signatures from any other
// hash computed over the same bytes.
const DomainAllocationSignature = "moneymap/allocation-signature/v1"

// Signature returns an order-independent identity for a rule's trigger and
// allocation set. Two allocation sets with the same targets and percentages
// (to within AllocationTolerance) have the same signature regardless of
// order or allocation ids. Allocations without a target are ignored.
func Signature(trigger Trigger, triggerNodeID string, allocs []Allocation) string {
	entries := make([]any, 0, len(allocs))
	for _, a := range allocs {
		if a.TargetNodeID == "" {
			continue
		}
		entries = append(entries, map[string]any{
			"target":    a.TargetNodeID,
			"milli_pct": percentToMilli(a.Percentage),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		ti := entries[i].(map[string]any)["target"].(string)
		tj := entries[j].(map[string]any)["target"].(string)
		return ti < tj
	})

	data, err := marshalCanonical(map[string]any{
		"trigger":      string(trigger),
		"trigger_node": triggerNodeID,
		"allocations":  entries,
	})
	if err != nil {
		// Only strings, ints and containers are fed in above.
		panic(fmt.Sprintf("allocation signature: %v", err))
	}
	return hashWithDomain(DomainAllocationSignature, data)
}

// percentToMilli converts a percentage to integer thousandths, the
// resolution of AllocationTolerance.
func percentToMilli(p float64) int64 {
	return decimal.NewFromFloat(p).Shift(3).Round(0).IntPart()
}

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// marshalCanonical produces canonical JSON for the value shapes used in
// signatures: object keys sorted by UTF-16 code units, no HTML escaping,
// NFC-normalized strings, no floats.
func marshalCanonical(v any) ([]byte, error) {
	switch val := v.(type) {
	case string:
		return marshalCanonicalString(val)
	case int64:
		return []byte(fmt.Sprintf("%d", val)), nil
	case int:
		return []byte(fmt.Sprintf("%d", val)), nil
	case bool:
		if val {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case []any:
		var buf bytes.Buffer
		buf.WriteByte('[')
		for i, elem := range val {
			if i > 0 {
				buf.WriteByte(',')
			}
			b, err := marshalCanonical(elem)
			if err != nil {
				return nil, fmt.Errorf("array[%d]: %w", i, err)
			}
			buf.Write(b)
		}
		buf.WriteByte(']')
		return buf.Bytes(), nil
	case map[string]any:
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return compareUTF16(keys[i], keys[j]) < 0 })

		var buf bytes.Buffer
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			kb, err := marshalCanonicalString(k)
			if err != nil {
				return nil, err
			}
			buf.Write(kb)
			buf.WriteByte(':')
			vb, err := marshalCanonical(val[k])
			if err != nil {
				return nil, fmt.Errorf("object[%q]: %w", k, err)
			}
			buf.Write(vb)
		}
		buf.WriteByte('}')
		return buf.Bytes(), nil
	case nil:
		return nil, fmt.Errorf("null is forbidden in canonical JSON")
	case float32, float64:
		return nil, fmt.Errorf("floats are forbidden in canonical JSON: %v", val)
	default:
		return nil, fmt.Errorf("unsupported type for canonical JSON: %T", v)
	}
}

func marshalCanonicalString(s string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(norm.NFC.String(s)); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// compareUTF16 orders strings by UTF-16 code units.
func compareUTF16(a, b string) int {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			if ua[i] < ub[i] {
				return -1
			}
			return 1
		}
	}
	return len(ua) - len(ub)
}
