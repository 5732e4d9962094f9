package flowdesc

import (
	"testing"

	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vk/flowgrid/internal/portaddr"
)

func TestValidate(t *testing.T) {
	t.Parallel()

	const id = "0b8e2f3a-9c1d-4e5f-8a7b-6c5d4e3f2a1b"

	testCases := []struct {
		name     string
		desc     Description
		wantErrs []string
	}{
		{
			name: "valid",
			desc: Description{
				Nodes: []NodeSpec{{Class: "constant", Name: "src", ID: id}, {Class: "console", Name: "out"}},
				Edges: []EdgeSpec{{From: portaddr.MustParse("src.out"), To: portaddr.MustParse("out.in")}},
			},
		},
		{
			name:     "missing class and name",
			desc:     Description{Nodes: []NodeSpec{{}}},
			wantErrs: []string{"node #1: missing class", "node #1: missing name"},
		},
		{
			name:     "duplicate name",
			desc:     Description{Nodes: []NodeSpec{{Class: "a", Name: "x"}, {Class: "b", Name: "x"}}},
			wantErrs: []string{`node "x": duplicate name, first used by node #1`},
		},
		{
			name:     "duplicate id",
			desc:     Description{Nodes: []NodeSpec{{Class: "a", Name: "x", ID: id}, {Class: "a", Name: "y", ID: id}}},
			wantErrs: []string{`node "y": duplicate id`},
		},
		{
			name:     "malformed id",
			desc:     Description{Nodes: []NodeSpec{{Class: "a", Name: "x", ID: "not-a-uuid"}}},
			wantErrs: []string{`node "x": malformed id "not-a-uuid"`},
		},
		{
			name:     "invalid name",
			desc:     Description{Nodes: []NodeSpec{{Class: "a", Name: "a b"}}},
			wantErrs: []string{`node "a b": invalid name`},
		},
		{
			name:     "edge without endpoint",
			desc:     Description{Edges: []EdgeSpec{{From: portaddr.MustParse("a.out")}}},
			wantErrs: []string{"edge #1: both endpoints are required"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			err := tc.desc.Validate()

			if len(tc.wantErrs) == 0 {
				assert.NoError(t, err)
				return
			}
			var merr *multierror.Error
			require.ErrorAs(t, err, &merr)
			require.Len(t, merr.Errors, len(tc.wantErrs))
			for i, want := range tc.wantErrs {
				assert.ErrorContains(t, merr.Errors[i], want)
			}
		})
	}
}

func TestNodeSpec_ParseID(t *testing.T) {
	t.Parallel()

	id, err := NodeSpec{}.ParseID()
	require.NoError(t, err)
	assert.Equal(t, "00000000-0000-0000-0000-000000000000", id.String())
}
