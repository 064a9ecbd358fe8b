package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ctfer-io/chore-server/client"
	"github.com/ctfer-io/chore-server/pkg/cors"
	"github.com/ctfer-io/chore-server/pkg/fs"
	"github.com/ctfer-io/chore-server/server"
)

func newTestClient(t *testing.T) *client.Client {
	t.Helper()

	st, err := fs.NewStore(fs.Options{Directory: t.TempDir(), Atomic: true})
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, st.Close())
	})
	policy, err := cors.New(cors.Config{Policy: cors.PresetWildcard})
	require.NoError(t, err)

	ts := httptest.NewServer(server.NewServer(server.Options{
		MaxBodySize: 256,
		Store:       st,
		Policy:      policy,
	}))
	t.Cleanup(ts.Close)

	return client.New(ts.URL+"/", ts.Client())
}

func Test_U_ClientRoundTrip(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cli := newTestClient(t)

	require.NoError(t, cli.Alive(ctx))

	doc, err := cli.Fetch(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(doc))

	in := fs.Document(`{"chores":{"alice":["dishes"]}}`)
	require.NoError(t, cli.Replace(ctx, in))

	doc, err = cli.Fetch(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, string(in), string(doc))
}

func Test_U_ClientErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cli := newTestClient(t)

	err := cli.Replace(ctx, fs.Document(`[1,2,3]`))
	var apiErr *client.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.NotEmpty(t, apiErr.Message)

	big := make([]byte, 0, 512)
	big = append(big, `{"x":"`...)
	for range 400 {
		big = append(big, 'x')
	}
	big = append(big, `"}`...)
	err = cli.Replace(ctx, fs.Document(big))
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusRequestEntityTooLarge, apiErr.Status)
}
