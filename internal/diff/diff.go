// Package diff wraps the diff-match-patch primitives used by the sync
// engine: character-level diffs, context-carrying patch bundles, and fuzzy
// application against a slightly divergent base.
package diff

import (
	"github.com/sergi/go-diff/diffmatchpatch"
)

/*
FUZZY PATCHING

Differential synchronization stays robust under concurrent edits because
patches carry local context (PatchMargin, 4 chars) and apply fuzzily: a hunk
slides within the bitap window (MatchMaxBits, 32 chars) when its exact
context is not found. Two clients editing disjoint regions both apply
cleanly even though each saw a slightly stale base.
*/

// The DiffMatchPatch value only holds tuning knobs, so one shared instance
// is safe for concurrent use. Library defaults give the 4-char patch margin
// and 32-char match window the engine relies on.
var dmp = diffmatchpatch.New()

// PatchBundle is an ordered sequence of context-carrying hunks. It is
// opaque above this package; on the wire it travels in the library's text
// serialization.
type PatchBundle []diffmatchpatch.Patch

// Empty reports whether the bundle has no hunks
func (b PatchBundle) Empty() bool { return len(b) == 0 }

// Text serializes the bundle for the wire
func (b PatchBundle) Text() string {
	return dmp.PatchToText(b)
}

// Diff computes a character-level diff from a to b, consolidated at
// semantic (word/line) boundaries.
func Diff(a, b string) []diffmatchpatch.Diff {
	diffs := dmp.DiffMain(a, b, false)
	return dmp.DiffCleanupSemantic(diffs)
}

// MakePatch builds a patch bundle transforming a into b
func MakePatch(a, b string) PatchBundle {
	return PatchBundle(dmp.PatchMake(a, Diff(a, b)))
}

// FromText parses a wire-serialized bundle
func FromText(text string) (PatchBundle, error) {
	patches, err := dmp.PatchFromText(text)
	if err != nil {
		return nil, err
	}
	return PatchBundle(patches), nil
}

// Apply attempts each hunk against text, sliding within the match window
// when the exact context is absent. Returns the resulting text and a
// per-hunk success flag. Failed hunks leave their region untouched, so an
// empty bundle and a bundle whose hunks all fail both return the input
// unchanged; callers deciding commit-or-resync must use AllApplied.
func Apply(bundle PatchBundle, text string) (string, []bool) {
	return dmp.PatchApply([]diffmatchpatch.Patch(bundle), text)
}

// AllApplied reports whether every hunk in an Apply result succeeded.
// A bundle is deemed applied only if all hunks are.
func AllApplied(results []bool) bool {
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}
