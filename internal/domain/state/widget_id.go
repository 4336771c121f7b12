package state

import (
	"fmt"

	"github.com/cespare/xxhash/v2"

	"github.com/freshet/freshet/internal/domain/msg"
)

// WidgetID is the stable identity of a widget across reruns. It is derived
// from the widget's tree position and a fingerprint of its declaration, so
// the same widget call maps to the same ID even though the whole script
// re-executes from the top.
type WidgetID string

const widgetIDPrefix = "$$WIDGET"

// ComputeWidgetID derives the ID for a widget declared at path. elementType
// and label identify the declaration; params carries the remaining
// construction arguments in declaration order. A non-empty userKey pins the
// identity independent of position, letting a widget move in the tree
// without losing its value.
func ComputeWidgetID(elementType msg.ElementType, label string, params []string, path msg.DeltaPath, userKey string) WidgetID {
	h := xxhash.New()
	_, _ = h.WriteString(string(elementType))
	_, _ = h.Write([]byte{0})
	_, _ = h.WriteString(label)
	for _, p := range params {
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(p)
	}
	if userKey != "" {
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(userKey)
	} else {
		_, _ = h.Write([]byte{0})
		_, _ = h.WriteString(path.Key())
	}
	return WidgetID(fmt.Sprintf("%s-%016x-%s", widgetIDPrefix, h.Sum64(), userKey))
}
