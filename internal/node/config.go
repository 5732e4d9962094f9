package node

import (
	"fmt"

	"github.com/go-viper/mapstructure/v2"
)

// Configurable is implemented by node classes that accept per-node
// configuration from the graph description. Configure is called once,
// after construction and before the node is wired or started.
type Configurable interface {
	Configure(raw map[string]any) error
}

// DecodeConfig decodes raw into the struct pointed to by out using `flow`
// field tags. Strings are coerced where sensible, durations parse from
// strings like "5s", and unknown keys are an error.
func DecodeConfig(raw map[string]any, out any) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           out,
		TagName:          "flow",
		WeaklyTypedInput: true,
		ErrorUnused:      true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return fmt.Errorf("building config decoder: %w", err)
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("decoding config: %w", err)
	}
	return nil
}
