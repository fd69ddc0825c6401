package fleet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// emptyShadow stands in for a core that never reported a shadow.
var emptyShadow = []byte("{}")

// CoreShadow returns the indented shadow document of a group's core thing.
// A missing shadow yields "{}".
func CoreShadow(ctx context.Context, r ShadowReader, groupName string) ([]byte, error) {
	thing := CoreThingName(groupName)

	doc, err := r.GetThingShadow(ctx, thing)
	if IsNotFound(err) {
		return bytes.Clone(emptyShadow), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get shadow of %s: %w", thing, err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, doc, "", "  "); err != nil {
		return nil, fmt.Errorf("shadow of %s is not JSON: %w", thing, err)
	}
	return out.Bytes(), nil
}
