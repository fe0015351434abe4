package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	// ErrUploadInFlight is returned when Start is called while a transfer is active
	ErrUploadInFlight = errors.New("an upload is already in progress")
	// ErrNegotiation is returned when the negotiation response lacks the
	// continuation location or the media id; nothing was allocated remotely.
	ErrNegotiation = errors.New("upload negotiation failed")
)

// backoffDelays is the per-chunk retry schedule. The first attempt goes out
// immediately; exhausting the schedule is terminal for the whole transfer.
var backoffDelays = []time.Duration{0, time.Second, 3 * time.Second, 5 * time.Second}

// Config carries the upload parameters handed out by the course fetch endpoint
type Config struct {
	Endpoint   string // Negotiation URL
	ChunkSize  int
	TusVersion string
	CreatorID  string
}

// Callbacks receive transfer lifecycle events. OnNegotiated fires the moment
// the remote id is issued, before any bytes move, so callers can track it for
// cleanup. OnProgress percentages are advisory. OnFailure's mediaUID is empty
// when negotiation never completed; when set, the caller owns scheduling its
// deletion.
type Callbacks struct {
	OnNegotiated func(mediaUID string)
	OnProgress   func(percent int)
	OnComplete   func(mediaUID string, durationSeconds int)
	OnFailure    func(mediaUID string, err error)
}

// Client drives a single resumable transfer at a time: negotiate a
// continuation location, stream the file in retryable chunks, report progress.
// The remote media id is captured as soon as negotiation returns so an aborted
// or failed transfer can still be cleaned up.
type Client struct {
	http *resty.Client
	cfg  Config

	mu       sync.Mutex
	active   bool
	mediaUID string
	cancel   context.CancelFunc
}

// NewClient builds an upload client for one editor session
func NewClient(cfg Config) *Client {
	return &Client{http: resty.New(), cfg: cfg}
}

// Start begins a transfer in the background. src must be positioned at the
// start of the file; metadata values are base64-encoded on the wire so they
// stay transport-safe. Returns ErrUploadInFlight if a transfer is active.
func (c *Client) Start(ctx context.Context, src io.ReadSeeker, size int64, metadata map[string]string, cb Callbacks) error {
	c.mu.Lock()
	if c.active {
		c.mu.Unlock()
		return ErrUploadInFlight
	}
	ctx, cancel := context.WithCancel(ctx)
	c.active = true
	c.mediaUID = ""
	c.cancel = cancel
	c.mu.Unlock()

	go c.run(ctx, src, size, metadata, cb)
	return nil
}

// Abort cancels the in-flight transfer, if any, and returns the remote media
// id that had been allocated so the caller can schedule its deletion. Safe to
// call at any point; returns "" when there is nothing to cancel or no id was
// ever issued.
func (c *Client) Abort() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.active {
		return ""
	}
	if c.cancel != nil {
		c.cancel()
	}
	c.active = false
	uid := c.mediaUID
	c.mediaUID = ""
	return uid
}

// Active reports whether a transfer is currently tracked
func (c *Client) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Client) run(ctx context.Context, src io.ReadSeeker, size int64, metadata map[string]string, cb Callbacks) {
	// Duration is best-effort; a probe failure never fails the upload
	duration := ProbeDurationSeconds(src)
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		c.finish(cb, "", fmt.Errorf("rewind source: %w", err))
		return
	}

	location, mediaUID, err := c.negotiate(ctx, size, metadata)
	if err != nil {
		c.finish(cb, "", err)
		return
	}

	c.mu.Lock()
	if !c.active { // Aborted during negotiation; the id is lost to the caller,
		c.mu.Unlock() // so reclaim it through the failure channel instead
		if cb.OnFailure != nil {
			cb.OnFailure(mediaUID, context.Canceled)
		}
		return
	}
	c.mediaUID = mediaUID
	c.mu.Unlock()
	if cb.OnNegotiated != nil {
		cb.OnNegotiated(mediaUID)
	}

	if err := c.transfer(ctx, location, src, size, cb); err != nil {
		if errors.Is(err, context.Canceled) {
			// User abort: Abort() already handed the id back
			return
		}
		c.finish(cb, mediaUID, err)
		return
	}

	c.finishComplete(cb, mediaUID, duration)
}

// finishComplete closes out a fully transferred upload. When an abort won the
// race after the last chunk was acknowledged, the abort path already handed
// the id back for cleanup and completion must not fire, or the id would end
// up both on a live video and in the caller's deletion set.
func (c *Client) finishComplete(cb Callbacks, mediaUID string, duration int) {
	c.mu.Lock()
	if !c.active {
		c.mu.Unlock()
		return
	}
	c.active = false
	c.mediaUID = ""
	c.mu.Unlock()
	if cb.OnComplete != nil {
		cb.OnComplete(mediaUID, duration)
	}
}

// negotiate opens the resumable transfer and returns the continuation
// location plus the remote-assigned media id. Missing either is a hard
// failure before any bytes are sent.
func (c *Client) negotiate(ctx context.Context, size int64, metadata map[string]string) (string, string, error) {
	resp, err := c.http.R().
		SetContext(ctx).
		SetHeader("Tus-Resumable", c.cfg.TusVersion).
		SetHeader("Upload-Length", strconv.FormatInt(size, 10)).
		SetHeader("Upload-Metadata", encodeMetadata(metadata)).
		SetHeader("Upload-Creator", c.cfg.CreatorID).
		Post(c.cfg.Endpoint)
	if err != nil {
		return "", "", fmt.Errorf("upload negotiation: %w", err)
	}
	if resp.StatusCode() < 200 || resp.StatusCode() >= 300 {
		return "", "", fmt.Errorf("%w: status %d", ErrNegotiation, resp.StatusCode())
	}
	location := resp.Header().Get("Location")
	mediaUID := resp.Header().Get("Stream-Media-Id")
	if location == "" || mediaUID == "" {
		return "", "", ErrNegotiation
	}
	return location, mediaUID, nil
}

// transfer streams the file chunk by chunk against the continuation location.
// Each chunk gets the full backoff schedule before the transfer is declared dead.
func (c *Client) transfer(ctx context.Context, location string, src io.Reader, size int64, cb Callbacks) error {
	var offset int64
	buf := make([]byte, c.cfg.ChunkSize)
	for offset < size {
		n, err := io.ReadFull(src, buf)
		if err == io.ErrUnexpectedEOF || err == io.EOF {
			err = nil
		}
		if err != nil {
			return fmt.Errorf("read chunk at %d: %w", offset, err)
		}
		if n == 0 {
			return fmt.Errorf("short read at offset %d of %d", offset, size)
		}
		if err := c.sendChunk(ctx, location, offset, buf[:n]); err != nil {
			return err
		}
		offset += int64(n)
		if cb.OnProgress != nil {
			cb.OnProgress(int(offset * 100 / size))
		}
	}
	return nil
}

func (c *Client) sendChunk(ctx context.Context, location string, offset int64, chunk []byte) error {
	var lastErr error
	for _, delay := range backoffDelays {
		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		resp, err := c.http.R().
			SetContext(ctx).
			SetHeader("Tus-Resumable", c.cfg.TusVersion).
			SetHeader("Upload-Offset", strconv.FormatInt(offset, 10)).
			SetHeader("Content-Type", "application/offset+octet-stream").
			SetBody(chunk).
			Patch(location)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			continue
		}
		if resp.StatusCode() >= 500 {
			lastErr = fmt.Errorf("chunk at %d: status %d", offset, resp.StatusCode())
			continue
		}
		if resp.StatusCode() >= 300 {
			return fmt.Errorf("chunk at %d rejected: status %d", offset, resp.StatusCode())
		}
		return nil
	}
	return fmt.Errorf("chunk at %d: retries exhausted: %w", offset, lastErr)
}

// finish tears down the active transfer and reports the failure
func (c *Client) finish(cb Callbacks, mediaUID string, err error) {
	c.mu.Lock()
	c.active = false
	c.mediaUID = ""
	c.mu.Unlock()
	if cb.OnFailure != nil {
		cb.OnFailure(mediaUID, err)
	}
}

// encodeMetadata renders a flat metadata map as comma-separated
// "key base64(value)" pairs, keys in stable order
func encodeMetadata(metadata map[string]string) string {
	keys := make([]string, 0, len(metadata))
	for k := range metadata {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+" "+base64.StdEncoding.EncodeToString([]byte(metadata[k])))
	}
	return strings.Join(pairs, ",")
}
