package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlan(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestConsume_RequiresApproval(t *testing.T) {
	p, err := New(KindApply, writePlan(t, "a.tfplan", "plan"), []ResourceChange{{Address: "module.network.x", Action: ActionCreate}}, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, p.ID)
	assert.Len(t, p.Digest, 64)

	assert.ErrorIs(t, p.Consume(), ErrNotApproved)

	p.Approve("apply")
	gate, ok := p.ApprovedBy()
	assert.True(t, ok)
	assert.Equal(t, "apply", gate)

	require.NoError(t, p.Consume())
	assert.True(t, p.Consumed())
	assert.ErrorIs(t, p.Consume(), ErrAlreadyConsumed)
}

func TestConsume_DetectsModification(t *testing.T) {
	path := writePlan(t, "a.tfplan", "reviewed")
	p, err := New(KindApply, path, nil, nil)
	require.NoError(t, err)
	p.Approve("apply")

	require.NoError(t, os.WriteFile(path, []byte("tampered"), 0600))
	assert.ErrorIs(t, p.Consume(), ErrModified)

	require.NoError(t, os.Remove(path))
	assert.ErrorIs(t, p.Consume(), ErrModified)
}

func TestDispose(t *testing.T) {
	path := writePlan(t, "a.tfplan", "plan")
	p, err := New(KindApply, path, nil, nil)
	require.NoError(t, err)
	p.Approve("apply")

	require.NoError(t, p.Dispose())
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
	assert.ErrorIs(t, p.Consume(), ErrDisposed)
	// Second dispose is a no-op.
	assert.NoError(t, p.Dispose())
}

func TestNew_MissingFile(t *testing.T) {
	_, err := New(KindApply, filepath.Join(t.TempDir(), "nope"), nil, nil)
	assert.Error(t, err)
}

func TestSlice(t *testing.T) {
	parentChanges := []ResourceChange{
		{Address: "module.cluster.aws_eks_cluster.this", Action: ActionDelete},
		{Address: "module.network.aws_vpc.this", Action: ActionDelete},
	}
	parent, err := New(KindDestroy, writePlan(t, "d.tfplan", "destroy"), parentChanges, nil)
	require.NoError(t, err)

	child := func(changes ...ResourceChange) *Plan {
		p, err := New(KindDestroy, writePlan(t, "slice.tfplan", "slice"), changes, []string{"module.cluster"})
		require.NoError(t, err)
		return p
	}

	covered := child(ResourceChange{Address: "module.cluster.aws_eks_cluster.this", Action: ActionDelete})
	assert.ErrorIs(t, parent.Slice(covered), ErrNotConsumed)

	parent.Approve("destroy")
	require.NoError(t, parent.Consume())

	require.NoError(t, parent.Slice(covered))
	gate, ok := covered.ApprovedBy()
	assert.True(t, ok)
	assert.Equal(t, "destroy", gate)
	require.NoError(t, covered.Consume())

	drifted := child(ResourceChange{Address: "module.cluster.aws_iam_role.extra", Action: ActionDelete})
	assert.ErrorIs(t, parent.Slice(drifted), ErrDrift)
	_, ok = drifted.ApprovedBy()
	assert.False(t, ok)

	changedAction := child(ResourceChange{Address: "module.network.aws_vpc.this", Action: ActionReplace})
	assert.ErrorIs(t, parent.Slice(changedAction), ErrDrift)

	noops := child(ResourceChange{Address: "data.aws_region.current", Action: ActionRead})
	assert.NoError(t, parent.Slice(noops))
}

func TestSummary(t *testing.T) {
	p, err := New(KindApply, writePlan(t, "a.tfplan", "x"), []ResourceChange{
		{Address: "a", Action: ActionCreate},
		{Address: "b", Action: ActionCreate},
		{Address: "c", Action: ActionUpdate},
		{Address: "d", Action: ActionReplace},
		{Address: "e", Action: ActionNoop},
		{Address: "f", Action: ActionDelete},
	}, nil)
	require.NoError(t, err)

	s := p.Summary()
	assert.Equal(t, Summary{Create: 2, Update: 1, Delete: 1, Replace: 1}, s)
	assert.Equal(t, 5, s.Total())
	assert.Equal(t, "2 to add, 1 to change, 1 to destroy, 1 to replace", s.String())
	assert.True(t, p.HasChanges())

	empty, err := New(KindApply, writePlan(t, "b.tfplan", "x"), []ResourceChange{{Address: "e", Action: ActionNoop}}, nil)
	require.NoError(t, err)
	assert.False(t, empty.HasChanges())
}
