package worker

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mgreenly/nuagent/internal/provider"
	"github.com/mgreenly/nuagent/internal/store"
	"github.com/mgreenly/nuagent/internal/store/migrations"
	"github.com/mgreenly/nuagent/internal/tool"
)

// fakeAdapter is a minimal provider.Adapter stub shared by this
// package's worker tests; SendMessage returns one canned response
// regardless of input, sufficient for exercising the summarizer
// workers without a live provider.
type fakeAdapter struct {
	response provider.Response
	err      error
	calls    int
}

func (f *fakeAdapter) Name() string    { return "fake" }
func (f *fakeAdapter) Model() string   { return "fake-model" }
func (f *fakeAdapter) MaxContext() int { return 10_000 }
func (f *fakeAdapter) CalculateCost(int, int) float64                   { return 0 }
func (f *fakeAdapter) FormatTools(*tool.Registry) []provider.ToolSchema { return nil }
func (f *fakeAdapter) SendMessage(context.Context, []provider.Message, string, []provider.ToolSchema) (provider.Response, error) {
	f.calls++
	return f.response, f.err
}

func strPtr(s string) *string { return &s }

func newTestGateway(t *testing.T) *store.Gateway {
	t.Helper()
	gw, err := store.NewWithMigrations(context.Background(), ":memory:", migrations.All())
	require.NoError(t, err)
	t.Cleanup(func() { _ = gw.Close() })
	return gw
}
