package grpcserver

import (
	"context"
	"net"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"dealflow/internal/dataset"
	"dealflow/internal/store"
	"dealflow/pkg/database"
	"dealflow/pkg/models"
)

func amt(f float64) *float64 { return &f }

func newTestClient(t *testing.T) *Client {
	t.Helper()
	db, err := database.Open(database.Config{Path: filepath.Join(t.TempDir(), "grpc.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	require.NoError(t, database.Migrate(db))

	st := store.New(db)
	_, err = st.Import(testContext(t), &dataset.Dataset{Deals: []models.Deal{
		{ID: "1", CompanyName: "acme", Date: "2020-01-10", Amount: amt(5_000_000), PrimaryTag: "fintech", Headquarters: "Toronto"},
		{ID: "2", CompanyName: "globex", Date: "2021-03-03", Amount: amt(2_000_000), PrimaryTag: "health", Headquarters: "Vancouver"},
		{ID: "3", CompanyName: "initech", Date: "2023-08-20", Amount: amt(1_000_000), PrimaryTag: "fintech", Headquarters: "Toronto"},
		{ID: "4", CompanyName: "hooli", Date: "2012-01-01", Amount: amt(90_000_000), PrimaryTag: "ai"},
	}})
	require.NoError(t, err)

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterInsightsServer(srv, NewServer(st))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return NewClient(conn)
}

func TestSummary(t *testing.T) {
	c := newTestClient(t)

	resp, err := c.Summary(testContext(t), &WindowRequest{})
	require.NoError(t, err)
	assert.Equal(t, 2019, resp.Window.From)
	assert.Equal(t, 3, resp.Summary.Deals)
	assert.InDelta(t, 8_000_000, resp.Summary.TotalAmount, 0.001)
	assert.InDelta(t, 1_000_000, resp.Summary.Smallest, 0.001)

	resp, err = c.Summary(testContext(t), &WindowRequest{From: 2010, To: 2012})
	require.NoError(t, err)
	assert.Equal(t, 1, resp.Summary.Deals)
}

func TestTopSectorsAndRegions(t *testing.T) {
	c := newTestClient(t)

	sectors, err := c.TopSectors(testContext(t), &WindowRequest{Top: 1})
	require.NoError(t, err)
	require.Len(t, sectors.Items, 1)
	assert.Equal(t, "fintech", sectors.Items[0].Name)
	assert.InDelta(t, 6_000_000, sectors.Items[0].Amount, 0.001)

	regions, err := c.TopRegions(testContext(t), &WindowRequest{})
	require.NoError(t, err)
	require.Len(t, regions.Items, 2)
	assert.Equal(t, "Toronto", regions.Items[0].Name)
}

func TestInvalidWindow(t *testing.T) {
	c := newTestClient(t)

	_, err := c.Summary(testContext(t), &WindowRequest{From: 2024, To: 2020})
	require.Error(t, err)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
}

// testContext returns a context that is canceled when the test finishes.
func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}
