package differ

import (
	"fmt"
	"strings"

	"github.com/wI2L/jsondiff"

	"github.com/lockaudit/lockaudit/internal/models"
)

// Translate patches to english. Values are read from the records rather
// than the patch so removed values can be named.
func Translate(patch jsondiff.Patch, old, current models.Record) []string {
	if len(patch) == 0 {
		return nil
	}

	oldFields := fieldMap(old)
	newFields := fieldMap(current)

	var translations []string
	seen := make(map[string]bool)
	for _, op := range patch {
		field := strings.TrimPrefix(op.Path, "/")
		t := translateOperation(op.Type, field, oldFields[field], newFields[field])
		if t != "" && !seen[t] {
			seen[t] = true
			translations = append(translations, t)
		}
	}
	return translations
}

func translateOperation(opType, field, oldVal, newVal string) string {
	if opType != jsondiff.OperationReplace && opType != jsondiff.OperationAdd && opType != jsondiff.OperationRemove {
		return ""
	}
	switch field {
	case "Severity":
		return fmt.Sprintf("Severity changed from %s to %s.", oldVal, newVal)
	case "Reason":
		return "Risk reasons changed."
	case "Recommendation":
		return "Recommendation changed."
	case "Action":
		return fmt.Sprintf("Action changed from %s to %s.", oldVal, newVal)
	case "":
		return ""
	default:
		return fmt.Sprintf("%s changed.", field)
	}
}

func fieldMap(r models.Record) map[string]string {
	vals := r.Values()
	m := make(map[string]string, len(vals))
	for i, name := range models.RecordFields {
		m[name] = vals[i]
	}
	return m
}
