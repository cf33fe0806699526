package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	quakesBody = `{"type":"FeatureCollection","features":[
	  {"type":"Feature","id":"a","properties":{"mag":5.2,"place":"10km N of X","time":1700000000000},
	   "geometry":{"type":"Point","coordinates":[1,2,15]}}]}`
	platesBody = `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":{"Name":"AF-AN"},
	   "geometry":{"type":"LineString","coordinates":[[0,0],[1,1]]}}]}`
)

func feedServer(t *testing.T) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	mux.HandleFunc("/quakes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "quakemap/1.0", r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/geo+json")
		_, _ = w.Write([]byte(quakesBody))
	})
	mux.HandleFunc("/plates", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(platesBody))
	})
	mux.HandleFunc("/numeric", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[
		  {"type":"Feature","id":1,"properties":{"mag":2.5},"geometry":{"type":"Point","coordinates":[1,2,3]}},
		  {"type":"Feature","id":"ok","properties":{"mag":3.5},"geometry":{"type":"Point","coordinates":[4,5,6]}}]}`))
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"type":"FeatureCollection","features":[`))
	})
	mux.HandleFunc("/down", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	return srv
}

func TestFetchEarthquakes(t *testing.T) {
	srv := feedServer(t)
	c := NewClient(srv.URL+"/quakes", srv.URL+"/plates", 5*time.Second)

	res := c.FetchEarthquakes(context.Background())
	require.True(t, res.OK(), "%v", res.Err)
	require.Len(t, res.Value.Features, 1)
	assert.Equal(t, "a", res.Value.Features[0].ID)
	assert.Equal(t, []float64{1, 2, 15}, res.Value.Features[0].Geometry.Coordinates)
}

func TestFetchEarthquakesNumericID(t *testing.T) {
	srv := feedServer(t)
	c := NewClient(srv.URL+"/numeric", srv.URL+"/plates", 5*time.Second)

	res := c.FetchEarthquakes(context.Background())
	require.True(t, res.OK(), "%v", res.Err)
	require.Len(t, res.Value.Features, 2)
	assert.Equal(t, 1.0, res.Value.Features[0].ID)
	assert.Equal(t, "ok", res.Value.Features[1].ID)
}

func TestFetchPlates(t *testing.T) {
	srv := feedServer(t)
	c := NewClient(srv.URL+"/quakes", srv.URL+"/plates", 5*time.Second)

	res := c.FetchPlates(context.Background())
	require.True(t, res.OK(), "%v", res.Err)
	require.Len(t, res.Value.Features, 1)
	assert.Equal(t, "AF-AN", res.Value.Features[0].Properties["Name"])
}

func TestFetchErrors(t *testing.T) {
	srv := feedServer(t)

	t.Run("http status", func(t *testing.T) {
		c := NewClient(srv.URL+"/down", srv.URL+"/down", 5*time.Second)

		res := c.FetchEarthquakes(context.Background())
		require.False(t, res.OK())
		assert.EqualError(t, res.Err, "earthquakes: status 503")

		plates := c.FetchPlates(context.Background())
		require.False(t, plates.OK())
		assert.EqualError(t, plates.Err, "plates: status 503")
	})

	t.Run("decode", func(t *testing.T) {
		c := NewClient(srv.URL+"/broken", srv.URL+"/broken", 5*time.Second)

		res := c.FetchEarthquakes(context.Background())
		require.False(t, res.OK())
		assert.Contains(t, res.Err.Error(), "decode")

		assert.False(t, c.FetchPlates(context.Background()).OK())
	})

	t.Run("canceled", func(t *testing.T) {
		c := NewClient(srv.URL+"/quakes", srv.URL+"/plates", 5*time.Second)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		res := c.FetchEarthquakes(ctx)
		require.Error(t, res.Err)
		assert.ErrorIs(t, res.Err, context.Canceled)
	})
}
