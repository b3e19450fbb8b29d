// Package googletasks implements store.Store on a Google Tasks list.
//
// The list belongs to the signed-in Google account. Live snapshots are
// produced by polling the list, and every local write triggers an immediate
// refresh.
package googletasks

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"reflect"
	"time"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	tasks "google.golang.org/api/tasks/v1"

	"taskdeck/internal/config"
	"taskdeck/internal/notify"
	"taskdeck/internal/store"
	"taskdeck/internal/task"
)

const (
	// DefaultListID is the special ID for the default list.
	DefaultListID = "@default"

	// PageSize is the number of tasks per page.
	PageSize = 100

	// APITimeout is the timeout for API calls.
	APITimeout = 5 * time.Second

	// DefaultPollInterval is used when no poll interval is configured.
	DefaultPollInterval = 15 * time.Second

	// OAuth scope for Google Tasks
	TasksScope = "https://www.googleapis.com/auth/tasks"
)

// ErrUnauthorized is returned when the stored token is no longer accepted.
var ErrUnauthorized = fmt.Errorf("token expired or revoked (run: taskdeck login): %w", store.ErrUnauthorized)

// Client implements store.Store using Google Tasks API.
type Client struct {
	svc          *tasks.Service
	listID       string
	pollInterval time.Duration
	changes      *notify.Local
	now          func() time.Time
	log          *slog.Logger
}

// New creates a new Google Tasks client.
// Requires oauth_client.json and token.json to exist.
func New(ctx context.Context, cfg *config.Config) (*Client, error) {
	oauthConfig, err := OAuthConfig(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnauthorized, err)
	}
	token, err := LoadToken(cfg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", store.ErrUnauthorized, err)
	}

	// Create HTTP client with a token source that auto-refreshes
	httpClient := oauth2.NewClient(ctx, oauthConfig.TokenSource(ctx, token))

	return newClient(ctx, cfg.PollInterval, option.WithHTTPClient(httpClient))
}

// NewWithHTTPClient creates a client with a custom HTTP client and API
// endpoint (for testing).
func NewWithHTTPClient(ctx context.Context, httpClient *http.Client, endpoint string, pollInterval time.Duration) (*Client, error) {
	return newClient(ctx, pollInterval, option.WithHTTPClient(httpClient), option.WithEndpoint(endpoint))
}

func newClient(ctx context.Context, pollInterval time.Duration, opts ...option.ClientOption) (*Client, error) {
	svc, err := tasks.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tasks service: %w", err)
	}
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Client{
		svc:          svc,
		listID:       DefaultListID,
		pollInterval: pollInterval,
		changes:      notify.NewLocal(),
		now:          time.Now,
		log:          slog.Default(),
	}, nil
}

// Close stops all live subscriptions.
func (c *Client) Close() error {
	return c.changes.Close()
}

// Subscribe implements store.Store by polling the list.
func (c *Client) Subscribe(ctx context.Context, ownerID string, onSnapshot store.SnapshotFunc, onError store.ErrorFunc) (store.Unsubscribe, error) {
	ctx, cancel := context.WithCancel(ctx)
	changes, stop, err := c.changes.Subscribe(ctx, ownerID)
	if err != nil {
		cancel()
		return nil, task.Op("subscribe", ownerID, err)
	}

	go func() {
		ticker := time.NewTicker(c.pollInterval)
		defer ticker.Stop()

		var last []task.Task
		sent := false
		poll := func() {
			snap, err := c.list(ctx, ownerID)
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				if onError != nil {
					onError(task.Op("subscribe", ownerID, err))
				}
				return
			}
			if sent && reflect.DeepEqual(snap, last) {
				return
			}
			last, sent = snap, true
			onSnapshot(snap)
		}

		poll()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				poll()
			case _, ok := <-changes:
				if !ok {
					return
				}
				poll()
			}
		}
	}()

	return func() {
		cancel()
		stop()
	}, nil
}

// list returns the owner's tasks, completed and hidden ones included.
func (c *Client) list(ctx context.Context, ownerID string) ([]task.Task, error) {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	var result []task.Task
	err := c.svc.Tasks.List(c.listID).
		MaxResults(PageSize).
		ShowCompleted(true).
		ShowHidden(true).
		ShowDeleted(false).
		Pages(ctx, func(resp *tasks.Tasks) error {
			for _, gt := range resp.Items {
				t := decode(gt, ownerID)
				if t.OwnerID == ownerID {
					result = append(result, t)
				}
			}
			return nil
		})
	if err != nil {
		return nil, wrapError(err)
	}
	store.SortSnapshot(result)
	return result, nil
}

// Create implements store.Store.
func (c *Client) Create(ctx context.Context, t task.Task) (task.Task, error) {
	if err := t.Validate(); err != nil {
		return task.Task{}, err
	}
	if t.CreatedAt == nil {
		t.CreatedAt = task.TimePtr(c.now())
	}
	gt, err := encode(t)
	if err != nil {
		return task.Task{}, task.Op("create", "", err)
	}
	gt.Id = ""

	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	created, err := c.svc.Tasks.Insert(c.listID, gt).Context(ctx).Do()
	if err != nil {
		return task.Task{}, task.Op("create", "", wrapError(err))
	}
	c.changed(ctx, t.OwnerID)

	t.ID = created.Id
	if u, err := time.Parse(time.RFC3339, created.Updated); err == nil {
		t.UpdatedAt = u
	}
	return t, nil
}

// Update implements store.Store. The current document is read, patched and
// written back in full.
func (c *Client) Update(ctx context.Context, id string, p task.Patch) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	cur, err := c.svc.Tasks.Get(c.listID, id).Context(ctx).Do()
	if err != nil {
		return task.Op("update", id, wrapError(err))
	}
	existing := decode(cur, "")
	updated := p.Apply(existing)

	gt, err := encode(updated)
	if err != nil {
		return task.Op("update", id, err)
	}
	gt.Id = id
	if _, err := c.svc.Tasks.Update(c.listID, id, gt).Context(ctx).Do(); err != nil {
		return task.Op("update", id, wrapError(err))
	}
	c.changed(ctx, updated.OwnerID)
	return nil
}

// Delete implements store.Store.
func (c *Client) Delete(ctx context.Context, id string) error {
	ctx, cancel := context.WithTimeout(ctx, APITimeout)
	defer cancel()

	cur, err := c.svc.Tasks.Get(c.listID, id).Context(ctx).Do()
	if err != nil {
		return task.Op("delete", id, wrapError(err))
	}
	if err := c.svc.Tasks.Delete(c.listID, id).Context(ctx).Do(); err != nil {
		return task.Op("delete", id, wrapError(err))
	}
	c.changed(ctx, decode(cur, "").OwnerID)
	return nil
}

func (c *Client) changed(ctx context.Context, ownerID string) {
	if ownerID == "" {
		return
	}
	if err := c.changes.Publish(ctx, ownerID); err != nil {
		c.log.Warn("publish task change failed", "owner", ownerID, "error", err)
	}
}

// wrapError wraps API errors with user-friendly messages.
func wrapError(err error) error {
	if err == nil {
		return nil
	}

	// Check for timeout
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("request timed out: %w", err)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		switch apiErr.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return ErrUnauthorized
		case http.StatusNotFound:
			return store.ErrNotFound
		}
	}
	return err
}
