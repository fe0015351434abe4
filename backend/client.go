package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"studio/models/editor"

	"github.com/go-resty/resty/v2"
)

// ErrNotAuthorized signals the current user may not author courses. Fatal to
// the editing session, never retried.
var ErrNotAuthorized = errors.New("not authorized to author courses")

// apiEnvelope is the marketplace backend's standard response wrapper
type apiEnvelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// SaveResponse is the save endpoint's result. CourseID is set when the
// backend assigned an id to a newly created course.
type SaveResponse struct {
	CourseID uint `json:"course_id"`
}

// Client talks to the remote marketplace backend with the caller's bearer
// credential attached to every request
type Client struct {
	http *resty.Client
}

// NewClient builds a backend client for one bearer credential
func NewClient(baseURL, bearerToken string) *Client {
	return &Client{
		http: resty.New().SetBaseURL(baseURL).SetAuthToken(bearerToken),
	}
}

// CheckAuthorization asks whether the current user may author/edit courses.
// Any non-success answer is a hard redirect-away signal.
func (c *Client) CheckAuthorization(ctx context.Context) error {
	resp, err := c.http.R().SetContext(ctx).Get("/author/access")
	if err != nil {
		return fmt.Errorf("authorization check: %w", err)
	}
	if resp.IsError() {
		return ErrNotAuthorized
	}
	return nil
}

// FetchCourse loads the full course (metadata, chapter/video tree, upload
// configuration) for editing
func (c *Client) FetchCourse(ctx context.Context, courseID uint) (*CourseResponse, error) {
	resp, err := c.http.R().SetContext(ctx).
		Get("/courses/" + strconv.FormatUint(uint64(courseID), 10) + "/edit")
	if err != nil {
		return nil, fmt.Errorf("fetch course: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("fetch course: status %d", resp.StatusCode())
	}
	var env apiEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("fetch course: decode: %w", err)
	}
	var course CourseResponse
	if err := json.Unmarshal(env.Data, &course); err != nil {
		return nil, fmt.Errorf("fetch course: decode: %w", err)
	}
	return &course, nil
}

// SaveCourse sends the whole course in a single request. A staged thumbnail
// switches the call to multipart with the payload as a json part; partial
// application is the server's concern, not ours.
func (c *Client) SaveCourse(ctx context.Context, req SaveRequest, thumbnail *editor.Thumbnail) (*SaveResponse, error) {
	r := c.http.R().SetContext(ctx)
	if thumbnail != nil {
		body, err := json.Marshal(req)
		if err != nil {
			return nil, fmt.Errorf("save course: encode: %w", err)
		}
		r.SetMultipartField("data", "", "application/json", bytes.NewReader(body)).
			SetMultipartField("thumbnail", thumbnail.Filename, thumbnail.MimeType, bytes.NewReader(thumbnail.Data))
	} else {
		r.SetHeader("Content-Type", "application/json").SetBody(req)
	}
	resp, err := r.Post("/courses/save")
	if err != nil {
		return nil, fmt.Errorf("save course: %w", err)
	}
	if resp.IsError() {
		return nil, fmt.Errorf("save course: status %d", resp.StatusCode())
	}
	var env apiEnvelope
	if err := json.Unmarshal(resp.Body(), &env); err != nil {
		return nil, fmt.Errorf("save course: decode: %w", err)
	}
	saved := &SaveResponse{}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, saved); err != nil {
			return nil, fmt.Errorf("save course: decode: %w", err)
		}
	}
	return saved, nil
}
