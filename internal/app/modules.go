package app

import (
	"github.com/specialistvlad/rtprop/internal/notify"
	"github.com/specialistvlad/rtprop/internal/rtti"
	"github.com/specialistvlad/rtprop/modules/scene"
)

// coreModules is the definitive list of all schema modules compiled into
// the rtprop binary. sink receives their property change events.
func coreModules(sink notify.Sink) []rtti.Module {
	return []rtti.Module{
		&scene.Module{Sink: sink},
	}
}
