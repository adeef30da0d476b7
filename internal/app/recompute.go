package app

import (
	"context"

	"github.com/specialistvlad/rtprop/internal/coll"
	"github.com/specialistvlad/rtprop/internal/ctxlog"
	"github.com/specialistvlad/rtprop/internal/notify"
	"github.com/specialistvlad/rtprop/modules/scene"
)

// reevaluate is the recompute handler: it re-resolves every animation
// channel of the changed scene and warns about channels that lost their
// target.
func (a *App) reevaluate(ctx context.Context, ev notify.Event) error {
	logger := ctxlog.FromContext(ctx).With("owner", ev.OwnerID)
	root, ok := a.store.Lookup(ev.OwnerID)
	if !ok {
		logger.Debug("Owner no longer exists, nothing to recompute.")
		return nil
	}
	actions, ok := root.Type.Prop("actions")
	if !ok {
		return nil
	}

	resolved := 0
	for _, action := range coll.All(ctx, a.registry, root, actions) {
		targets, broken, err := scene.ResolveChannels(ctx, a.registry, root, action)
		if err != nil {
			return err
		}
		resolved += len(targets)
		for _, ch := range broken {
			logger.Warn("Animation channel no longer resolves.", "action", action.Data.(*scene.Action).Name, "data_path", ch.DataPath, "array_index", ch.ArrayIndex)
		}
	}
	logger.Debug("Owner re-evaluated.", "prop", ev.PropID, "channels", resolved)
	return nil
}
