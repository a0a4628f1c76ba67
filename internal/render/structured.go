package render

import (
	"bufio"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/nao1215/qcsv/domain/model"
	"gopkg.in/yaml.v3"
)

// jsonValue converts a scanned value into one go-json encodes as expected.
// JSON has no infinities or NaN, so those become strings.
func jsonValue(v any) any {
	switch v := v.(type) {
	case []byte:
		return string(v)
	case float64:
		if math.IsInf(v, 0) || math.IsNaN(v) {
			return formatValue(v, "")
		}
		return v
	case time.Time:
		return formatTime(v)
	default:
		return v
	}
}

// writeJSON writes an array with one object per row. Keys keep column order.
func writeJSON(w io.Writer, rs *model.ResultSet) error {
	keys := make([][]byte, len(rs.Columns))
	for c, col := range rs.Columns {
		key, err := json.Marshal(col.Name)
		if err != nil {
			return err
		}
		keys[c] = key
	}

	bw := bufio.NewWriter(w)
	if len(rs.Rows) == 0 {
		_, _ = bw.WriteString("[]\n")
		return bw.Flush()
	}

	_, _ = bw.WriteString("[\n")
	for r, row := range rs.Rows {
		_, _ = bw.WriteString("  {")
		for c, key := range keys {
			if c > 0 {
				_ = bw.WriteByte(',')
			}
			var v any
			if c < len(row) {
				v = jsonValue(row[c])
			}
			value, err := json.Marshal(v)
			if err != nil {
				return err
			}
			_, _ = bw.Write(key)
			_ = bw.WriteByte(':')
			_, _ = bw.Write(value)
		}
		_ = bw.WriteByte('}')
		if r < len(rs.Rows)-1 {
			_ = bw.WriteByte(',')
		}
		_ = bw.WriteByte('\n')
	}
	_, _ = bw.WriteString("]\n")
	return bw.Flush()
}

// yamlScalar builds the node for one value
func yamlScalar(v any) *yaml.Node {
	node := &yaml.Node{Kind: yaml.ScalarNode}
	switch v := v.(type) {
	case nil:
		node.Tag, node.Value = "!!null", "null"
	case int64:
		node.Tag, node.Value = "!!int", strconv.FormatInt(v, 10)
	case float64:
		node.Tag, node.Value = "!!float", yamlFloat(v)
	case bool:
		node.Tag, node.Value = "!!bool", strconv.FormatBool(v)
	default:
		node.Tag, node.Value = "!!str", formatValue(v, "")
	}
	return node
}

// yamlFloat spells a float the way YAML resolves it back, including .inf and .nan
func yamlFloat(v float64) string {
	switch {
	case math.IsNaN(v):
		return ".nan"
	case math.IsInf(v, 1):
		return ".inf"
	case math.IsInf(v, -1):
		return "-.inf"
	default:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
}

// writeYAML writes a sequence with one mapping per row. Keys keep column order.
func writeYAML(w io.Writer, rs *model.ResultSet) error {
	doc := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
	for _, row := range rs.Rows {
		mapping := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for c, col := range rs.Columns {
			var v any
			if c < len(row) {
				v = row[c]
			}
			mapping.Content = append(mapping.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: col.Name},
				yamlScalar(v),
			)
		}
		doc.Content = append(doc.Content, mapping)
	}
	if len(doc.Content) == 0 {
		doc.Style = yaml.FlowStyle
	}

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return err
	}
	return enc.Close()
}
