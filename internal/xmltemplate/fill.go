package xmltemplate

import (
	"fmt"
	"math"
	"slices"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/cptkit/cptconv/internal/logging"
)

// Data is a nested fill object. Values are Data (or map[string]any) for
// subtrees, or scalars: string, bool, integer and float types, *float64,
// time.Time, fmt.Stringer, or nil.
type Data map[string]any

// Fill overlays data onto a copy of tmpl. Keys match child local names,
// starting below the root. Keys with no matching child are skipped, logged
// at warn level and returned as dotted paths.
func Fill(tmpl *Node, data Data, logger *zap.Logger) (*Node, []string) {
	logger = logging.OrNop(logger)
	out := tmpl.Clone()
	var skipped []string
	overlay(out, data, "", logger, &skipped)
	return out, skipped
}

func overlay(n *Node, data Data, prefix string, logger *zap.Logger, skipped *[]string) {
	keys := make([]string, 0, len(data))
	for k := range data {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	for _, key := range keys {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}

		child, ok := n.Child(key)
		if !ok {
			logger.Warn("template has no element for key", zap.String("path", path))
			*skipped = append(*skipped, path)
			continue
		}

		switch v := data[key].(type) {
		case Data:
			fillSubtree(child, v, path, logger, skipped)
		case map[string]any:
			fillSubtree(child, Data(v), path, logger, skipped)
		case nil:
			child.Value = Leaf{Null: true}
		case *float64:
			if v == nil {
				child.Value = Leaf{Null: true}
			} else {
				child.Value = Leaf{Text: formatFloat(*v)}
			}
		default:
			child.Value = Leaf{Text: FormatScalar(v)}
		}
	}
}

func fillSubtree(n *Node, data Data, path string, logger *zap.Logger, skipped *[]string) {
	if _, ok := n.Value.(*Children); !ok {
		logger.Warn("template element is a leaf, nested data skipped", zap.String("path", path))
		*skipped = append(*skipped, path)
		return
	}
	overlay(n, data, path, logger, skipped)
}

// FormatScalar renders a leaf value. Strings are verbatim, floats use the
// shortest representation, bools are true/false and nil is empty.
func FormatScalar(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return formatFloat(x)
	case float32:
		return formatFloat(float64(x))
	case *float64:
		if x == nil {
			return ""
		}
		return formatFloat(*x)
	case time.Time:
		return x.Format(time.RFC3339)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

func formatFloat(f float64) string {
	if math.IsNaN(f) {
		return ""
	}
	return strconv.FormatFloat(f, 'f', -1, 64)
}
