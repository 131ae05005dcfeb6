package spacetrack

import (
	"encoding/json"
	"fmt"

	errs "spacetrack/pkg/errors"
	"spacetrack/pkg/query"
)

// Result is a decoded catalog response. Exactly one of JSON, Text or Raw is
// the primary payload, as given by Kind; Raw always holds the body bytes.
type Result struct {
	Path   string          `json:"path"`
	Format query.Format    `json:"format"`
	Kind   query.Kind      `json:"-"`
	Status int             `json:"status"`
	JSON   json.RawMessage `json:"json,omitempty"`
	Text   string          `json:"text,omitempty"`
	Raw    []byte          `json:"-"`
}

// Body returns the payload in its decoded form: the parsed JSON value, the
// text or the raw bytes.
func (r *Result) Body() interface{} {
	switch r.Kind {
	case query.KindJSON:
		var v interface{}
		if err := json.Unmarshal(r.JSON, &v); err != nil {
			return r.Text
		}
		return v
	case query.KindText:
		return r.Text
	default:
		return r.Raw
	}
}

// Decode unmarshals a JSON payload into v.
func (r *Result) Decode(v interface{}) error {
	if r.Kind != query.KindJSON {
		return errs.New(errs.ErrorTypeParsing, r.Status, fmt.Sprintf("result is %s, not json", r.Kind))
	}
	if err := json.Unmarshal(r.JSON, v); err != nil {
		return errs.Wrap(err, errs.ErrorTypeParsing, r.Status, "failed to decode result")
	}
	return nil
}

// Records returns a JSON array payload as generic rows.
func (r *Result) Records() ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	if err := r.Decode(&rows); err != nil {
		return nil, err
	}
	return rows, nil
}

// decode turns the response into a Result. A json response that does not
// parse falls back to text and the failure is logged.
func (c *Client) decode(q *query.Builder, path string, resp *response) *Result {
	format := q.GetFormat()
	result := &Result{
		Path:   path,
		Format: format,
		Kind:   query.DecodeKind(format),
		Status: resp.status,
		Raw:    resp.body,
	}

	switch result.Kind {
	case query.KindJSON:
		if json.Valid(resp.body) {
			result.JSON = json.RawMessage(resp.body)
			return result
		}
		c.logger.ErrorWithFields("failed to parse JSON response, returning text", map[string]interface{}{
			"path":         path,
			"body_preview": preview(resp.body),
		})
		result.Kind = query.KindText
		result.Text = string(resp.body)
	case query.KindText:
		result.Text = string(resp.body)
	}
	return result
}
