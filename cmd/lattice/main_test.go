package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/aretw0/lattice"
	httpAdapter "github.com/aretw0/lattice/internal/adapters/http"
	"github.com/aretw0/lattice/pkg/adapters/memory"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		rootCmd.SetArgs(nil)
		// Flag values persist on the package-level commands between runs.
		_ = rootCmd.PersistentFlags().Set("driver", "redis")
		_ = resultsCmd.Flags().Set("server", "localhost:8080")
		_ = releaseCmd.Flags().Set("server", "localhost:8080")
		_ = queryCmd.Flags().Set("policy", "close_on_exhaust")
		_ = queryCmd.Flags().Set("format", "table")
	})
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestQueryCommand_MemoryJSON(t *testing.T) {
	out, err := run(t, "query", "RETURN 1", "--driver", "memory", "--format", "json", "--policy", "immediate")
	require.NoError(t, err)

	var body struct {
		Records []map[string]any `json:"records"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &body))
	assert.Equal(t, []map[string]any{{"1": float64(1)}}, body.Records)
}

func TestQueryCommand_Table(t *testing.T) {
	out, err := run(t, "query", "RETURN 1", "--driver", "memory")
	require.NoError(t, err)
	assert.Contains(t, out, "| 1 |")
}

func TestQueryCommand_Errors(t *testing.T) {
	_, err := run(t, "query", "RETURN 1", "--driver", "memory", "--policy", "sometimes")
	assert.Error(t, err)

	_, err = run(t, "query", "RETURN 2", "--driver", "memory")
	assert.ErrorIs(t, err, domain.ErrQuery)
}

func TestQueryCommand_RejectsManual(t *testing.T) {
	out, err := run(t, "query", "RETURN 1", "--driver", "memory", "--policy", "manual")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lattice serve")
	assert.NotContains(t, out, "| 1 |", "No records should be printed")
}

func TestVersionCommand(t *testing.T) {
	out, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "lattice version "+lattice.Version+"\n", out)
}

func TestResultsAndRelease(t *testing.T) {
	d := memory.NewDriver(memory.WithQuery("RETURN 1", domain.NewRecord([]string{"1"}, domain.Int(1))))
	client := lattice.New(d)
	defer client.Close(context.Background())
	srv := httptest.NewServer(httpAdapter.NewHandler(client))
	defer srv.Close()

	_, id, err := client.RunManual(context.Background(), "RETURN 1", nil)
	require.NoError(t, err)

	out, err := run(t, "results", "--server", srv.URL)
	require.NoError(t, err)
	assert.Equal(t, string(id)+"\n", out)

	out, err = run(t, "release", string(id), "--server", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "released")
	assert.Equal(t, 0, d.OpenSessions())

	_, err = run(t, "release", string(id), "--server", srv.URL)
	assert.Error(t, err)
}

func TestParseParams(t *testing.T) {
	params, err := parseParams([]string{"name=ada", "age=36", "tags=[\"a\",\"b\"]", "flag=true"})
	require.NoError(t, err)
	assert.Equal(t, domain.String("ada"), params["name"])
	assert.Equal(t, domain.Int(36), params["age"])
	assert.Equal(t, domain.KindList, params["tags"].Kind())
	assert.Equal(t, domain.Bool(true), params["flag"])

	_, err = parseParams([]string{"novalue"})
	assert.Error(t, err)
}

func TestAPIURL(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/v1/results", apiURL("localhost:8080", "/v1/results"))
	assert.Equal(t, "https://x/v1/results", apiURL("https://x/", "/v1/results"))
}

func TestReleaseURL_EscapesID(t *testing.T) {
	assert.Equal(t, "http://localhost:8080/v1/results/abc", releaseURL("localhost:8080", "abc"))
	assert.Equal(t, "http://localhost:8080/v1/results/a%2Fb%3Fc", releaseURL("localhost:8080", "a/b?c"))
}
