package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/moneymap/internal/graph"
)

// Metadata keys owned by NodeMeta. Any other key is carried in Extra.
const (
	metaPosition     = "position"
	metaInflow       = "inflow"
	metaReturnRate   = "returnRate"
	metaPodType      = "podType"
	metaIcon         = "icon"
	metaAccent       = "accent"
	metaBalanceCents = "balanceCents"
)

// marshalMetadata converts typed node metadata to the JSON TEXT stored in
// nodes.metadata. Keys are sorted and HTML escaping is off so equal
// metadata always produces equal text.
func marshalMetadata(m NodeMeta) (string, error) {
	row := make(map[string]any, len(m.Extra)+7)
	for k, v := range m.Extra {
		row[k] = v
	}
	row[metaPosition] = m.Position
	if m.Inflow != nil {
		row[metaInflow] = m.Inflow
	}
	if m.ReturnRate != nil {
		row[metaReturnRate] = *m.ReturnRate
	}
	if m.PodType != "" {
		row[metaPodType] = m.PodType
	}
	if m.Icon != "" {
		row[metaIcon] = m.Icon
	}
	if m.Accent != "" {
		row[metaAccent] = m.Accent
	}
	if m.BalanceCents != nil {
		row[metaBalanceCents] = *m.BalanceCents
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(row); err != nil {
		return "", fmt.Errorf("marshal metadata: %w", err)
	}
	// Encoder adds a trailing newline, remove it
	return strings.TrimSpace(buf.String()), nil
}

// unmarshalMetadata parses nodes.metadata back into typed fields. Unknown
// keys land in Extra.
func unmarshalMetadata(data string) (NodeMeta, error) {
	var m NodeMeta
	if data == "" || data == "{}" {
		return m, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &raw); err != nil {
		return NodeMeta{}, fmt.Errorf("unmarshal metadata: %w", err)
	}

	decode := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		if string(v) == "null" {
			return nil
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return fmt.Errorf("unmarshal metadata %s: %w", key, err)
		}
		return nil
	}

	var (
		inflow graph.Inflow
		rate   float64
		cents  int64
	)
	_, hasInflow := raw[metaInflow]
	_, hasRate := raw[metaReturnRate]
	_, hasCents := raw[metaBalanceCents]

	for _, f := range []struct {
		key string
		dst any
	}{
		{metaPosition, &m.Position},
		{metaInflow, &inflow},
		{metaReturnRate, &rate},
		{metaPodType, &m.PodType},
		{metaIcon, &m.Icon},
		{metaAccent, &m.Accent},
		{metaBalanceCents, &cents},
	} {
		if err := decode(f.key, f.dst); err != nil {
			return NodeMeta{}, err
		}
	}
	if hasInflow {
		m.Inflow = &inflow
	}
	if hasRate {
		m.ReturnRate = &rate
	}
	if hasCents {
		m.BalanceCents = &cents
	}

	if len(raw) > 0 {
		m.Extra = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return NodeMeta{}, fmt.Errorf("unmarshal metadata %s: %w", k, err)
			}
			m.Extra[k] = val
		}
	}
	return m, nil
}

// marshalPayload stores a change-request payload in workspace_diffs.
func marshalPayload(p Payload) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(p); err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalPayload(data string) (Payload, error) {
	var p Payload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		return Payload{}, fmt.Errorf("unmarshal payload: %w", err)
	}
	return p, nil
}

func marshalDetail(d map[string]any) (string, error) {
	if len(d) == 0 {
		return "{}", nil
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(d); err != nil {
		return "", fmt.Errorf("marshal detail: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}

func unmarshalDetail(data string) (map[string]any, error) {
	out := map[string]any{}
	if data == "" || data == "{}" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(data), &out); err != nil {
		return nil, fmt.Errorf("unmarshal detail: %w", err)
	}
	return out, nil
}
