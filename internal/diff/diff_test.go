package diff

import (
	"testing"

	"github.com/go-playground/assert/v2"
	"github.com/sergi/go-diff/diffmatchpatch"
)

func TestDiffIdentity(t *testing.T) {
	diffs := Diff("hello world", "hello world")
	assert.Equal(t, len(diffs), 1)
	assert.Equal(t, diffs[0].Type, diffmatchpatch.DiffEqual)
}

func TestMakePatchRoundTrip(t *testing.T) {
	a := "the quick brown fox"
	b := "the quick red fox jumps"

	bundle := MakePatch(a, b)
	assert.Equal(t, bundle.Empty(), false)

	got, results := Apply(bundle, a)
	assert.Equal(t, AllApplied(results), true)
	assert.Equal(t, got, b)
}

func TestPatchWireRoundTrip(t *testing.T) {
	a := "one two three"
	b := "one 2 three four"

	wire := MakePatch(a, b).Text()
	parsed, err := FromText(wire)
	assert.Equal(t, err, nil)

	got, results := Apply(parsed, a)
	assert.Equal(t, AllApplied(results), true)
	assert.Equal(t, got, b)
}

func TestFromTextRejectsGarbage(t *testing.T) {
	_, err := FromText("not a patch")
	assert.NotEqual(t, err, nil)
}

func TestFuzzyApplyAgainstDriftedBase(t *testing.T) {
	// The patch was made against "AAA BBB" but the base has drifted at the
	// other end of the text. Context matching still locates the hunk.
	bundle := MakePatch("AAA BBB", "XXX BBB")

	got, results := Apply(bundle, "AAA YYY")
	assert.Equal(t, AllApplied(results), true)
	assert.Equal(t, got, "XXX YYY")
}

func TestApplyFailsWhenContextGone(t *testing.T) {
	bundle := MakePatch(
		"one two alpha beta gamma delta",
		"one two alpha beta gamma delta epsilon",
	)

	// A completely unrelated base gives the hunk nothing to anchor on
	_, results := Apply(bundle, "zzzzzzzzzzzzzzzzzzzzzzzzzzzzzzzz")
	assert.Equal(t, AllApplied(results), false)
}

func TestApplyEmptyBundleIsNoop(t *testing.T) {
	got, results := Apply(PatchBundle{}, "unchanged")
	assert.Equal(t, got, "unchanged")
	assert.Equal(t, len(results), 0)
	assert.Equal(t, AllApplied(results), true)
}

func TestPatchFromEmptyDocument(t *testing.T) {
	bundle := MakePatch("", "hello")
	got, results := Apply(bundle, "")
	assert.Equal(t, AllApplied(results), true)
	assert.Equal(t, got, "hello")
}
