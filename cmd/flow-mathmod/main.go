// Command flow-mathmod is an out-of-process node module providing the
// math.* classes. Drop the binary into a modules directory with the
// .flowmod extension; it is not meant to be run by hand.
package main

import (
	"github.com/vk/flowgrid/internal/nodeplugin"
	"github.com/vk/flowgrid/modules/mathmod"
)

func main() {
	nodeplugin.Serve(mathmod.Classes())
}
