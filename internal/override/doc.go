// Package override replays recorded per-field edits onto data linked from a
// shared library asset, so local edits survive reloading and relinking.
//
// An Op addresses its target by path relative to the owning entity. Scalar
// and array targets are replaced or combined numerically through the access
// layer. Collection targets receive InsertAfter ops that copy an item from
// the local source into the reloaded destination right after an anchor item.
//
// When the anchor no longer exists in the destination, the item is inserted
// at the head of the collection instead and an OverrideAnchorMissing report
// is raised at info level. This is known to be imprecise when the library
// and the local copy diverged structurally; callers should not rely on the
// final position in that case.
package override
