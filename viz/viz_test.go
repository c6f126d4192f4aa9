// ABOUTME: Tests for workflow diagrams and the moderation dashboard
// ABOUTME: Dashboard counts run against an in-memory SQLite backend
package viz

import (
	"bytes"
	"context"
	"database/sql"
	"strings"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/harperreed/devicedrop/db"
	"github.com/harperreed/devicedrop/models"
)

func TestWorkflowDOTListsStatusesAndActions(t *testing.T) {
	dot, err := WorkflowDOT(context.Background(), models.KindRequest)
	require.NoError(t, err)

	for _, want := range []string{"pending", "approved", "rejected", "completed", "approve", "complete", "doublecircle"} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q", want)
		}
	}
}

func TestWorkflowDOTShowsRequiredFields(t *testing.T) {
	dot, err := WorkflowDOT(context.Background(), models.KindDevice)
	require.NoError(t, err)
	assert.Contains(t, dot, "reset reason")
	assert.Contains(t, dot, "rejection reason")
}

func TestRenderWorkflowSVG(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderWorkflow(context.Background(), models.KindUser, "svg", &buf))
	assert.Contains(t, buf.String(), "<svg")
}

func TestRenderWorkflowRejectsBadInput(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, RenderWorkflow(context.Background(), models.KindUser, "gif", &buf))
	assert.Error(t, RenderWorkflow(context.Background(), models.Kind("donor"), "dot", &buf))
}

func TestDashboardCounts(t *testing.T) {
	database, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	database.SetMaxOpenConns(1)
	require.NoError(t, db.InitSchema(database))
	t.Cleanup(func() { _ = database.Close() })

	backend := db.NewBackend(database)
	ctx := context.Background()
	_, err = backend.Seed(ctx)
	require.NoError(t, err)

	stats, err := GenerateDashboardStats(ctx, backend)
	require.NoError(t, err)
	require.Len(t, stats.Kinds, len(models.AllKinds))

	devices := stats.Kinds[0]
	assert.Equal(t, models.KindDevice, devices.Kind)
	assert.Equal(t, 4, devices.Total)
	assert.Equal(t, 4, devices.Pending())

	out := RenderDashboard(stats)
	assert.Contains(t, out, "DEVICES (4)")
	assert.Contains(t, out, "4 devices awaiting review")
}
