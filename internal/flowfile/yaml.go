package flowfile

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/vk/flowgrid/internal/flowdesc"
	"gopkg.in/yaml.v3"
)

func parseYAML(src []byte, filename string) (*flowdesc.Description, error) {
	dec := yaml.NewDecoder(bytes.NewReader(src))
	dec.KnownFields(true)

	desc := &flowdesc.Description{}
	if err := dec.Decode(desc); err != nil {
		if errors.Is(err, io.EOF) {
			return desc, nil
		}
		return nil, fmt.Errorf("failed to decode %s: %w", filename, err)
	}
	return desc, nil
}
