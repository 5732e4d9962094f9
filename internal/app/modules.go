package app

import (
	"github.com/vk/flowgrid/internal/registry"
	"github.com/vk/flowgrid/modules/console"
	"github.com/vk/flowgrid/modules/constant"
	"github.com/vk/flowgrid/modules/envvar"
	"github.com/vk/flowgrid/modules/httprequest"
	"github.com/vk/flowgrid/modules/socketio"
)

// coreModules is the definitive list of node classes compiled into the
// flow binary. Everything else comes from the modules directory.
var coreModules = []registry.Module{
	console.Module{},
	constant.Module{},
	envvar.Module{},
	httprequest.Module{},
	socketio.Module{},
}
