package clone

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mistops/org-clone-workbench/internal/models"
)

func TestRewriteIDsNested(t *testing.T) {
	ids := IDMap{"old-1": "new-1", "old-2": "new-2"}

	in := models.Resource{
		"servicepolicy_id": "old-1",
		"nested": map[string]interface{}{
			"refs": []interface{}{"old-2", "unrelated", 42},
		},
		"count": 7,
	}

	out := RewriteResource(in, ids)

	assert.Equal(t, "new-1", out.Str("servicepolicy_id"))
	nested := out["nested"].(map[string]interface{})
	assert.Equal(t, []interface{}{"new-2", "unrelated", 42}, nested["refs"])
	assert.Equal(t, 7, out["count"])

	// Input untouched
	assert.Equal(t, "old-1", in.Str("servicepolicy_id"))
}

func TestRewriteIDsKeysUntouched(t *testing.T) {
	ids := IDMap{"old-1": "new-1"}

	in := models.Resource{
		"old-1": "old-1",
	}
	out := RewriteResource(in, ids)

	assert.Contains(t, out, "old-1", "map keys are never rewritten")
	assert.Equal(t, "new-1", out.Str("old-1"))
}

func TestRewriteIDsExactMatchOnly(t *testing.T) {
	ids := IDMap{"abc": "xyz"}

	in := models.Resource{
		"a": "abc",
		"b": "abcdef",
		"c": "zabc",
	}
	out := RewriteResource(in, ids)

	assert.Equal(t, "xyz", out.Str("a"))
	assert.Equal(t, "abcdef", out.Str("b"), "substrings never match")
	assert.Equal(t, "zabc", out.Str("c"))
}

func TestRewriteIDsIdempotent(t *testing.T) {
	ids := IDMap{"old-1": "new-1"}

	in := models.Resource{"ref": "old-1"}
	once := RewriteResource(in, ids)
	twice := RewriteResource(once, ids)

	assert.Equal(t, once, twice)
}

func TestRewriteResourceEmptyMap(t *testing.T) {
	in := models.Resource{"ref": "old-1"}
	out := RewriteResource(in, nil)
	assert.Equal(t, in, out)
}
