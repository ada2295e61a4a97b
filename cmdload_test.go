package main

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/siegeai/schemaparser/collection"
	"github.com/siegeai/schemaparser/server"
)

func TestLoad(t *testing.T) {
	reg := collection.NewRegistry()
	ts := httptest.NewServer(server.New(reg).Handler())
	defer ts.Close()

	err := runLoad(context.Background(), ts.Client(), loadOptions{
		server:     ts.URL,
		collection: "stress",
		requests:   5,
		batch:      4,
		workers:    2,
		seed:       1,
	})
	require.Nil(t, err)

	c, err := reg.Get("stress")
	require.Nil(t, err)
	assert.Equal(t, 40, c.Count())
}

func TestLoadUnexpectedResponse(t *testing.T) {
	ts := httptest.NewServer(server.New(collection.NewRegistry()).Handler())
	defer ts.Close()

	err := runLoad(context.Background(), ts.Client(), loadOptions{
		server:     ts.URL + "/nowhere",
		collection: "stress",
		requests:   1,
		batch:      1,
		workers:    1,
	})
	assert.ErrorContains(t, err, "unexpected response")
}
