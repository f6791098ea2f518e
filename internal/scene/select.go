package scene

import "tilescape.dev/internal/geom"

// computeVisibility classifies the tile against the frame's view.
func (t *Tile) computeVisibility(args *DrawArgs) Visibility {
	if t.isEmpty() {
		return OutsideFrustum
	}
	if args.Frustum.ContainsBox(t.bounds) == geom.Outside {
		return OutsideFrustum
	}
	if !t.isDisplayable() {
		return TooCoarse
	}
	if cap := t.tree.opts.DebugMaxDepth; cap > 0 && t.depth >= cap {
		return Visible
	}
	if t.isLeaf {
		return Visible
	}
	if args.PixelSize(t) > t.MaximumSize()*args.TileSizeModifier {
		return TooCoarse
	}
	return Visible
}

// selectTiles decides, for this subtree, what to draw this frame. The
// return value tells the parent whether it must draw itself because this
// subtree could not satisfactorily stand in (selectParentYes).
//
// The walk is synchronous and never blocks: unready tiles are registered
// as missing and a coarser or finer substitute is drawn for now.
func (t *Tile) selectTiles(args *DrawArgs, numSkipped int) selectParent {
	vis := t.computeVisibility(args)
	if vis == OutsideFrustum {
		return selectParentNo
	}

	if vis == Visible {
		// Adequate resolution for its screen footprint.
		if !t.isReady() {
			args.InsertMissing(t)
		}
		if t.HasGraphics() {
			args.selectTile(t)
			args.MarkReady(t)
			// This tile suffices on its own now; drop finer content no
			// frame has wanted lately.
			t.purgeChildren(args)
			return selectParentNo
		}

		// Not drawable yet. See whether already-built children can stand in,
		// without forcing their load.
		kids := t.children
		if kids == nil {
			return selectParentYes
		}
		initial := len(args.selected)
		if t.depth < t.tree.opts.MaxInitialTilesToSkip {
			for _, kid := range kids {
				if kid.selectTiles(args, numSkipped) == selectParentYes {
					args.truncateSelected(initial)
					return selectParentYes
				}
				// Only the first child is ever consulted on this path. Odd,
				// but long-standing behavior; pinned by a test.
				return selectParentNo
			}
		}
		for _, kid := range kids {
			if kid.computeVisibility(args) != OutsideFrustum {
				if !kid.HasGraphics() {
					args.truncateSelected(initial)
					return selectParentYes
				}
				args.selectTile(kid)
			}
		}
		args.MarkUsed(t)
		return selectParentNo
	}

	// TooCoarse: prefer to draw something finer.
	canSkip := (t.hadGraphics && !t.HasGraphics()) || t.depth < t.tree.opts.MaxInitialTilesToSkip
	if !canSkip && numSkipped < t.tree.opts.MaxTilesToSkip {
		canSkip = t.isReady() || t.isParentDisplayable()
	}
	if canSkip {
		numSkipped++
	}

	// Keep the pipeline warm regardless of the skip decision.
	childrenStatus := t.loadChildren()
	switch childrenStatus {
	case Loading:
		if canSkip {
			args.MarkChildrenLoading()
			args.MarkUsed(t)
		}
	case NotFound:
		// The hierarchy ends here; this tile must stand in itself.
		canSkip = false
	}

	if kids := t.children; kids != nil {
		args.MarkUsed(t)
		undisplayableRoot := t.isUndisplayableRoot()
		drawChildren := true
		initial := len(args.selected)
		for _, kid := range kids {
			// Keep iterating even after a failure so missing siblings still
			// get their content requested.
			if kid.selectTiles(args, numSkipped) == selectParentYes {
				if kid.status == NotFound {
					// No finer data down that branch, ever. Draw this tile
					// in the children's place.
					drawChildren = false
					canSkip = false
				} else {
					// Still loading. Hold out for the full set unless we are
					// an undisplayable root, which shows partial results
					// rather than nothing.
					drawChildren = undisplayableRoot
				}
			}
		}
		if drawChildren {
			return selectParentNo
		}
		args.truncateSelected(initial)
	}

	if canSkip {
		return selectParentYes
	}

	// Nothing finer is usable. Fall back to this (coarser) tile.
	if t.isReady() {
		if t.HasGraphics() {
			args.selectTile(t)
			args.MarkReady(t)
		}
		return selectParentNo
	}
	args.InsertMissing(t)
	args.MarkUsed(t)
	if t.isParentDisplayable() {
		return selectParentYes
	}
	return selectParentNo
}
