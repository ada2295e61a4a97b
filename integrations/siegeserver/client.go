package siegeserver

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/goccy/go-json"

	"github.com/siegeai/schemaparser/render"
)

type Client struct {
	APIKey string
	Server string

	http *http.Client
}

var (
	ErrUnexpectedResponse = errors.New("unexpected response code")
	ErrMissingAPIKey      = errors.New("missing api key")
)

func NewClient(apikey, server string) (*Client, error) {
	if apikey == "" {
		return nil, ErrMissingAPIKey
	}
	client := &Client{
		APIKey: apikey,
		Server: server,
		http:   &http.Client{Timeout: 30 * time.Second},
	}
	return client, nil
}

type ListenerConfig struct {
	ListenerID string `json:"listenerID"`
}

func (c *Client) Startup(ctx context.Context) (*ListenerConfig, error) {
	var config ListenerConfig
	if err := c.post(ctx, "/api/v1/listener/startup", nil, &config); err != nil {
		return nil, err
	}
	return &config, nil
}

type ListenerShutdownRequest struct {
	ListenerID string `json:"listenerID"`
}

func (c *Client) Shutdown(ctx context.Context, listenerID string) error {
	return c.post(ctx, "/api/v1/listener/shutdown", &ListenerShutdownRequest{ListenerID: listenerID}, nil)
}

// ListenerUpdate carries everything learned since startup: the assembled
// API description and the full schema of every body collection.
type ListenerUpdate struct {
	ListenerID string                    `json:"listenerID"`
	Spec       *openapi3.T               `json:"spec"`
	Schemas    map[string]*render.Schema `json:"schemas"`
	Metrics    string                    `json:"metrics"`
}

func (c *Client) Update(ctx context.Context, args ListenerUpdate) error {
	return c.post(ctx, "/api/v1/listener/update", &args, nil)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		bs, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.formatURL(path), r)
	if err != nil {
		return err
	}
	req.Header.Add("Content-Type", "application/json")
	req.Header.Add("Authorization", fmt.Sprintf("Bearer %s", c.APIKey))

	res, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: %s %s", ErrUnexpectedResponse, path, res.Status)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(res.Body).Decode(out)
}

func (c *Client) formatURL(path string) string {
	return fmt.Sprintf("%s%s", c.Server, path)
}
