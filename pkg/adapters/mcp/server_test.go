package mcp

import (
	"context"
	"testing"

	"github.com/aretw0/lattice"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*Server, *memory.Driver) {
	t.Helper()
	d := memory.NewDriver(
		memory.WithQuery("RETURN 1", domain.NewRecord([]string{"1"}, domain.Int(1))),
		memory.WithHandler("RETURN $n AS n", func(_ context.Context, p domain.Params) ([]domain.Record, error) {
			return []domain.Record{domain.NewRecord([]string{"n"}, p["n"])}, nil
		}),
	)
	c := lattice.New(d)
	t.Cleanup(func() { _ = c.Close(context.Background()) })
	return NewServer(c, lattice.Version), d
}

func TestRunQuery(t *testing.T) {
	s, d := newTestServer(t)
	ctx := context.Background()

	out, err := s.handleRunQuery(ctx, mcp.CallToolRequest{}, RunQueryArgs{
		Query:  "RETURN $n AS n",
		Params: `{"n": 7}`,
	})
	require.NoError(t, err)
	assert.Empty(t, out.ResultID)
	assert.Equal(t, domain.PolicyCloseOnExhaust, out.Policy)
	assert.Equal(t, []map[string]any{{"n": int64(7)}}, out.Records)
	assert.Equal(t, 0, d.OpenSessions())
}

func TestRunQuery_Errors(t *testing.T) {
	s, d := newTestServer(t)
	ctx := context.Background()

	_, err := s.handleRunQuery(ctx, mcp.CallToolRequest{}, RunQueryArgs{})
	assert.Error(t, err)

	_, err = s.handleRunQuery(ctx, mcp.CallToolRequest{}, RunQueryArgs{Query: "RETURN 1", Policy: "sometimes"})
	assert.Error(t, err)

	_, err = s.handleRunQuery(ctx, mcp.CallToolRequest{}, RunQueryArgs{Query: "RETURN 1", Params: "[1]"})
	assert.Error(t, err)

	_, err = s.handleRunQuery(ctx, mcp.CallToolRequest{}, RunQueryArgs{Query: "RETURN 2"})
	assert.ErrorIs(t, err, domain.ErrQuery)
	assert.Equal(t, 0, d.OpenSessions())
}

func TestManualRelease(t *testing.T) {
	s, d := newTestServer(t)
	ctx := context.Background()

	out, err := s.handleRunQuery(ctx, mcp.CallToolRequest{}, RunQueryArgs{Query: "RETURN 1", Policy: "manual"})
	require.NoError(t, err)
	require.NotEmpty(t, out.ResultID)
	assert.Equal(t, 1, d.OpenSessions())

	list, err := s.handleList(ctx, mcp.CallToolRequest{}, struct{}{})
	require.NoError(t, err)
	assert.Equal(t, []domain.ResultID{out.ResultID}, list.Pending)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]any{"result_id": string(out.ResultID)}

	res, err := s.handleRelease(ctx, req)
	require.NoError(t, err)
	assert.False(t, res.IsError)
	assert.Equal(t, 0, d.OpenSessions())

	res, err = s.handleRelease(ctx, req)
	require.NoError(t, err)
	assert.True(t, res.IsError, "Second release should report not found")

	list, err = s.handleList(ctx, mcp.CallToolRequest{}, struct{}{})
	require.NoError(t, err)
	assert.Empty(t, list.Pending)
}

func TestRelease_MissingID(t *testing.T) {
	s, _ := newTestServer(t)
	res, err := s.handleRelease(context.Background(), mcp.CallToolRequest{})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}
