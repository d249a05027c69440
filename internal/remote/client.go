package remote

import (
	"fmt"
	"net/http"
	"time"

	"github.com/kolo/xmlrpc"
)

// Client talks XML-RPC to the hosted Fieldfolio backend. The backend exposes
// per-collection CRUD through an execute_kw-style dispatch, addressed by
// collection name and record id.
type Client struct {
	URL        string
	Database   string
	Username   string
	APIKey     string
	Uid        int
	CommonURL  string
	ObjectURL  string
	HttpClient *http.Client
}

// NewClient creates a new backend client
func NewClient(url, db, username, apiKey string) *Client {
	return &Client{
		URL:        url,
		Database:   db,
		Username:   username,
		APIKey:     apiKey,
		CommonURL:  fmt.Sprintf("%s/xmlrpc/2/common", url),
		ObjectURL:  fmt.Sprintf("%s/xmlrpc/2/object", url),
		HttpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Authenticate authenticates with the backend and returns the session uid
func (c *Client) Authenticate() (int, error) {
	client, err := xmlrpc.NewClient(c.CommonURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	args := []interface{}{c.Database, c.Username, c.APIKey, make([]interface{}, 0)}
	var uid int
	if err := client.Call("authenticate", args, &uid); err != nil {
		return 0, fmt.Errorf("authentication failed: %w", err)
	}

	c.Uid = uid
	return uid, nil
}

// execute runs one execute_kw call against the object endpoint.
func (c *Client) execute(collection, method string, params []interface{}, result interface{}) error {
	client, err := xmlrpc.NewClient(c.ObjectURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	args := []interface{}{
		c.Database,
		c.Uid,
		c.APIKey,
		collection,
		method,
		params,
	}

	if err := client.Call("execute_kw", args, result); err != nil {
		return fmt.Errorf("failed to execute %s on %s: %w", method, collection, err)
	}
	return nil
}

// SearchRead fetches the full remote collection as raw field maps in the
// remote naming convention.
func (c *Client) SearchRead(collection string, fields []string) ([]map[string]interface{}, error) {
	client, err := xmlrpc.NewClient(c.ObjectURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create XML-RPC client: %w", err)
	}
	defer client.Close()

	args := []interface{}{
		c.Database,
		c.Uid,
		c.APIKey,
		collection,
		"search_read",
		[]interface{}{[]interface{}{}},
		map[string]interface{}{
			"fields": fields,
		},
	}

	var rows []map[string]interface{}
	if err := client.Call("execute_kw", args, &rows); err != nil {
		return nil, fmt.Errorf("failed to execute search_read on %s: %w", collection, err)
	}
	return rows, nil
}

// Create creates a new remote record and returns its id
func (c *Client) Create(collection string, values map[string]interface{}) (int64, error) {
	var id int64
	if err := c.execute(collection, "create", []interface{}{values}, &id); err != nil {
		return 0, err
	}
	return id, nil
}

// Write updates an existing remote record
func (c *Client) Write(collection string, id int64, values map[string]interface{}) error {
	var success bool
	if err := c.execute(collection, "write", []interface{}{[]int64{id}, values}, &success); err != nil {
		return err
	}
	if !success {
		return fmt.Errorf("write on %s/%d returned false", collection, id)
	}
	return nil
}

// Delete removes a remote record
func (c *Client) Delete(collection string, id int64) error {
	var success bool
	if err := c.execute(collection, "unlink", []interface{}{[]int64{id}}, &success); err != nil {
		return err
	}
	if !success {
		return fmt.Errorf("unlink on %s/%d returned false", collection, id)
	}
	return nil
}
