package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
)

func TestInferStdin(t *testing.T) {
	in := strings.NewReader(`[{"name": "Nori", "age": 3}, {"name": "Rey"}]`)
	var out bytes.Buffer
	err := runInfer(in, &out, nil, inferOptions{format: "json", extended: true})
	require.Nil(t, err)

	var got struct {
		Count  int `json:"count"`
		Fields []struct {
			Name        string  `json:"name"`
			Probability float64 `json:"probability"`
		} `json:"fields"`
	}
	require.Nil(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, 2, got.Count)
	require.Len(t, got.Fields, 2)
	assert.Equal(t, "name", got.Fields[0].Name)
	assert.Equal(t, 1.0, got.Fields[0].Probability)
	assert.Equal(t, "age", got.Fields[1].Name)
	assert.Equal(t, 0.5, got.Fields[1].Probability)
}

func TestInferFiles(t *testing.T) {
	dir := t.TempDir()

	nd := filepath.Join(dir, "a.ndjson")
	require.Nil(t, os.WriteFile(nd, []byte("{\"x\": 1}\n\n{\"x\": 2}\n"), 0o644))

	raw, err := bson.Marshal(bson.D{{Key: "x", Value: "three"}})
	require.Nil(t, err)
	bs := filepath.Join(dir, "b.bson")
	require.Nil(t, os.WriteFile(bs, raw, 0o644))

	var out bytes.Buffer
	err = runInfer(nil, &out, []string{nd, bs}, inferOptions{format: "openapi", extended: true})
	require.Nil(t, err)

	var got map[string]any
	require.Nil(t, json.Unmarshal(out.Bytes(), &got))
	assert.Equal(t, "object", got["type"])
	assert.Equal(t, []any{"x"}, got["required"])
	x := got["properties"].(map[string]any)["x"].(map[string]any)
	assert.Len(t, x["oneOf"], 2)
}

func TestInferErrors(t *testing.T) {
	var out bytes.Buffer
	err := runInfer(strings.NewReader(`{}`), &out, nil, inferOptions{format: "xml"})
	assert.ErrorIs(t, err, errUnknownFormat)

	err = runInfer(strings.NewReader(`{}`), &out, nil, inferOptions{input: "csv", format: "json"})
	assert.ErrorIs(t, err, errUnknownFormat)

	err = runInfer(strings.NewReader(`[1, 2]`), &out, nil, inferOptions{format: "json"})
	assert.ErrorContains(t, err, "stdin")
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, "bson", formatOf("dump/users.BSON"))
	assert.Equal(t, "ndjson", formatOf("events.jsonl"))
	assert.Equal(t, "json", formatOf("x"))
}
