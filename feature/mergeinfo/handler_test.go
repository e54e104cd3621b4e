package mergeinfo

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	core "merge-engine/core/mergeinfo"
	"merge-engine/feature/repository"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockIndex struct {
	mock.Mock
}

func (m *mockIndex) Youngest(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func (m *mockIndex) GetMergeinfo(ctx context.Context, path string, rev int64, inherit repository.Inheritance) (core.Mergeinfo, bool, error) {
	args := m.Called(ctx, path, rev, inherit)
	mi, _ := args.Get(0).(core.Mergeinfo)
	return mi, args.Bool(1), args.Error(2)
}

func (m *mockIndex) GetMergeinfoForTree(ctx context.Context, path string, rev int64) (map[string]core.Mergeinfo, error) {
	args := m.Called(ctx, path, rev)
	tree, _ := args.Get(0).(map[string]core.Mergeinfo)
	return tree, args.Error(1)
}

func setupTestApp(t *testing.T) (*fiber.App, *mockIndex) {
	app := fiber.New()
	index := new(mockIndex)
	feature := NewFeature(index, zap.NewNop())
	require.True(t, feature.IsEnabled())
	require.NoError(t, feature.Load(app))
	return app, index
}

func decode(t *testing.T, app *fiber.App, url string) (int, map[string]any) {
	resp, err := app.Test(httptest.NewRequest("GET", url, nil))
	require.NoError(t, err)
	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return resp.StatusCode, body
}

func TestHandleGet(t *testing.T) {
	app, index := setupTestApp(t)
	mi, err := core.Parse("/trunk:1-3,5")
	require.NoError(t, err)

	index.On("Youngest", mock.Anything).Return(int64(7), nil)
	index.On("GetMergeinfo", mock.Anything, "/branch/B", int64(7), repository.Inherited).Return(mi, true, nil)
	index.On("GetMergeinfo", mock.Anything, "/branch", int64(3), repository.Explicit).Return(nil, false, nil)

	status, body := decode(t, app, "/mergeinfo?path=branch/B")
	assert.Equal(t, 200, status)
	assert.Equal(t, "/branch/B", body["path"])
	assert.Equal(t, float64(7), body["revision"])
	assert.Equal(t, "inherited", body["mode"])
	assert.Equal(t, true, body["found"])
	assert.Equal(t, map[string]any{"/trunk": "1-3,5"}, body["mergeinfo"])

	status, body = decode(t, app, "/mergeinfo?path=/branch&rev=r3&mode=explicit")
	assert.Equal(t, 200, status)
	assert.Equal(t, false, body["found"])
	assert.Empty(t, body["mergeinfo"])
}

func TestHandleGet_BadRequest(t *testing.T) {
	app, index := setupTestApp(t)
	index.On("Youngest", mock.Anything).Return(int64(2), nil)

	for _, url := range []string{
		"/mergeinfo?mode=sideways",
		"/mergeinfo?rev=abc",
		"/mergeinfo?rev=9",
	} {
		status, body := decode(t, app, url)
		assert.Equal(t, 400, status, url)
		assert.Contains(t, body["error"], "bad request")
	}
	index.AssertNotCalled(t, "GetMergeinfo", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleGet_IndexError(t *testing.T) {
	app, index := setupTestApp(t)
	index.On("Youngest", mock.Anything).Return(int64(0), errors.New("db down"))

	status, body := decode(t, app, "/mergeinfo")
	assert.Equal(t, 500, status)
	assert.Equal(t, "db down", body["error"])
}

func TestHandleTree(t *testing.T) {
	app, index := setupTestApp(t)
	root, _ := core.Parse("/trunk:1-4")
	index.On("Youngest", mock.Anything).Return(int64(4), nil)
	index.On("GetMergeinfoForTree", mock.Anything, "/branch", int64(4)).Return(map[string]core.Mergeinfo{
		"/branch":   root,
		"/branch/D": {},
	}, nil)

	status, body := decode(t, app, "/mergeinfo/tree?path=/branch&rev=HEAD")
	assert.Equal(t, 200, status)
	assert.Equal(t, map[string]any{
		"/branch":   map[string]any{"/trunk": "1-4"},
		"/branch/D": map[string]any{},
	}, body["tree"])
}

func TestFeature_Disabled(t *testing.T) {
	feature := NewFeature(nil, zap.NewNop())
	assert.Equal(t, "mergeinfo", feature.Name())
	assert.False(t, feature.IsEnabled())
}
