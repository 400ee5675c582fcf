package couchdb

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
	"github.com/todaytrend/trend-dashboard/internal/models"
	"github.com/todaytrend/trend-dashboard/internal/storage"
)

// HashtagSearchWindow is how many rows a hashtag search scans.
// Matches outside this window are not found: the search is not a full corpus scan.
const HashtagSearchWindow = 100

// Options configures a Client
type Options struct {
	BaseURL  string
	Database string
	Username string
	Password string
	Timeout  time.Duration
}

// Client is the only component talking to the CouchDB HTTP API
type Client struct {
	client   *resty.Client
	database string
	archive  storage.StorageInterface
	log      *logrus.Entry
}

// DatabaseInfo is the subset of GET /{db} the dashboard reports
type DatabaseInfo struct {
	DBName      string          `json:"db_name"`
	DocCount    int             `json:"doc_count"`
	DocDelCount int             `json:"doc_del_count"`
	UpdateSeq   json.RawMessage `json:"update_seq"`
	Sizes       struct {
		File     int64 `json:"file"`
		External int64 `json:"external"`
		Active   int64 `json:"active"`
	} `json:"sizes"`
}

type allDocsResponse struct {
	TotalRows int          `json:"total_rows"`
	Offset    int          `json:"offset"`
	Rows      []allDocsRow `json:"rows"`
}

type allDocsRow struct {
	ID    string          `json:"id"`
	Key   string          `json:"key"`
	Value json.RawMessage `json:"value"`
	Doc   json.RawMessage `json:"doc,omitempty"`
}

func (r allDocsRow) hasDoc() bool {
	return len(r.Doc) > 0 && string(r.Doc) != "null"
}

type revisionOnly struct {
	Rev string `json:"_rev"`
}

// NewClient creates a new CouchDB client
func NewClient(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("couchdb base URL is required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("couchdb database name is required")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(opts.BaseURL, "/")).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", "TrendDashboard/1.0").
		SetPathParam("db", opts.Database)

	if opts.Username != "" {
		client.SetBasicAuth(opts.Username, opts.Password)
	}

	return &Client{
		client:   client,
		database: opts.Database,
		log:      logrus.WithField("component", "couchdb"),
	}, nil
}

// SetArchive makes DeleteOne store every document before deleting it
func (c *Client) SetArchive(archive storage.StorageInterface) *Client {
	c.archive = archive
	return c
}

// Database returns the configured database name
func (c *Client) Database() string {
	return c.database
}

// ListAll returns the posts in one page of _all_docs and the database's total row count.
// The total counts every document, not just posts.
func (c *Client) ListAll(ctx context.Context, limit, skip int) ([]models.Post, int, error) {
	query := map[string]string{
		"include_docs": "true",
		"skip":         strconv.Itoa(skip),
	}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}

	page, err := c.allDocs(ctx, "list posts", query)
	if err != nil {
		return nil, 0, err
	}

	return c.decodePosts(page.Rows), page.TotalRows, nil
}

// ListRecent returns posts of the first page sorted by collection time, newest first
func (c *Client) ListRecent(ctx context.Context, limit int) ([]models.Post, error) {
	query := map[string]string{"include_docs": "true"}
	if limit > 0 {
		query["limit"] = strconv.Itoa(limit)
	}

	page, err := c.allDocs(ctx, "list recent posts", query)
	if err != nil {
		return nil, err
	}

	posts := c.decodePosts(page.Rows)
	SortByCollectedDesc(posts)

	if limit > 0 && len(posts) > limit {
		posts = posts[:limit]
	}
	return posts, nil
}

// SearchByHashtag returns up to limit posts of the search window having a hashtag
// that contains term, in fetch order. A limit of zero or less keeps every match.
func (c *Client) SearchByHashtag(ctx context.Context, term string, limit int) ([]models.Post, error) {
	posts, _, err := c.ListAll(ctx, HashtagSearchWindow, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to search hashtag %q: %w", term, err)
	}

	if limit <= 0 {
		limit = HashtagSearchWindow
	}

	matches := make([]models.Post, 0, limit)
	for _, post := range posts {
		if len(matches) >= limit {
			break
		}
		if post.HasHashtagContaining(term) {
			matches = append(matches, post)
		}
	}

	c.log.Debugf("Hashtag search %q matched %d of %d posts", term, len(matches), len(posts))
	return matches, nil
}

// FetchOne returns a single raw document
func (c *Client) FetchOne(ctx context.Context, id string) (json.RawMessage, error) {
	resp, err := c.execute(ctx, "fetch document "+id, http.MethodGet, "/{db}/{id}", func(r *resty.Request) {
		r.SetPathParam("id", id)
	})
	if err != nil {
		return nil, err
	}
	return json.RawMessage(resp.Body()), nil
}

// DeleteOne deletes a document at its current revision.
// The revision is fetched first, so a modification between the two requests
// fails the delete with a conflict instead of being retried.
func (c *Client) DeleteOne(ctx context.Context, id string) error {
	raw, err := c.FetchOne(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	var doc revisionOnly
	if err := json.Unmarshal(raw, &doc); err != nil {
		return fmt.Errorf("failed to parse document %s: %w", id, err)
	}
	if doc.Rev == "" {
		return fmt.Errorf("failed to delete %s: document has no revision", id)
	}

	archived := ""
	if c.archive != nil {
		archived = storage.DeletedDocumentName(id, doc.Rev)
		if err := c.archive.Store(ctx, archived, raw); err != nil {
			return fmt.Errorf("failed to archive %s before delete: %w", id, err)
		}
	}

	_, err = c.execute(ctx, "delete document "+id, http.MethodDelete, "/{db}/{id}", func(r *resty.Request) {
		r.SetPathParam("id", id).SetQueryParam("rev", doc.Rev)
	})
	if err != nil {
		// the document still exists, so it must not stay listed as deleted
		if archived != "" {
			if rmErr := c.archive.Delete(context.WithoutCancel(ctx), archived); rmErr != nil {
				c.log.Warnf("Failed to withdraw archive entry %s: %v", archived, rmErr)
			}
		}
		return fmt.Errorf("failed to delete %s: %w", id, err)
	}

	c.log.Infof("Deleted %s at revision %s", id, doc.Rev)
	return nil
}

// FetchLatestAnalysis returns the most recently dated keyword analysis, or nil when none exists
func (c *Client) FetchLatestAnalysis(ctx context.Context) (*models.KeywordAnalysis, error) {
	startKey, _ := json.Marshal(models.AnalysisIDPrefix)
	endKey, _ := json.Marshal(models.AnalysisIDPrefix + "\uffff")

	page, err := c.allDocs(ctx, "fetch keyword analysis", map[string]string{
		"include_docs": "true",
		"startkey":     string(startKey),
		"endkey":       string(endKey),
	})
	if err != nil {
		return nil, err
	}

	var latest *models.KeywordAnalysis
	for _, row := range page.Rows {
		if !row.hasDoc() || !strings.HasPrefix(row.ID, models.AnalysisIDPrefix) {
			continue
		}

		var analysis models.KeywordAnalysis
		if err := json.Unmarshal(row.Doc, &analysis); err != nil {
			c.log.Warnf("Skipping undecodable analysis document %s: %v", row.ID, err)
			continue
		}
		analysis.Raw = row.Doc

		if latest == nil || analysis.AnalysisDate.After(latest.AnalysisDate.Time) {
			candidate := analysis
			latest = &candidate
		}
	}

	return latest, nil
}

// DatabaseInfo returns metadata about the configured database
func (c *Client) DatabaseInfo(ctx context.Context) (*DatabaseInfo, error) {
	resp, err := c.execute(ctx, "fetch database info", http.MethodGet, "/{db}", nil)
	if err != nil {
		return nil, err
	}

	var info DatabaseInfo
	if err := json.Unmarshal(resp.Body(), &info); err != nil {
		return nil, fmt.Errorf("failed to parse database info: %w", err)
	}
	return &info, nil
}

func (c *Client) allDocs(ctx context.Context, op string, query map[string]string) (*allDocsResponse, error) {
	resp, err := c.execute(ctx, op, http.MethodGet, "/{db}/_all_docs", func(r *resty.Request) {
		r.SetQueryParams(query)
	})
	if err != nil {
		return nil, err
	}

	var page allDocsResponse
	if err := json.Unmarshal(resp.Body(), &page); err != nil {
		return nil, fmt.Errorf("failed to parse %s response: %w", op, err)
	}
	return &page, nil
}

func (c *Client) execute(ctx context.Context, op, method, path string, configure func(*resty.Request)) (*resty.Response, error) {
	req := c.client.R().SetContext(ctx)
	if configure != nil {
		configure(req)
	}

	c.log.Debugf("%s %s (%s)", method, path, op)
	resp, err := req.Execute(method, path)
	if err != nil {
		c.log.Errorf("CouchDB request failed (%s): %v", op, err)
		return nil, &NetworkError{Op: op, Err: err}
	}

	if !resp.IsSuccess() {
		fetchErr := newFetchError(op, resp)
		c.log.Warnf("CouchDB returned status %d for %s: %s", resp.StatusCode(), op, string(resp.Body()))
		return nil, fetchErr
	}

	return resp, nil
}

func (c *Client) decodePosts(rows []allDocsRow) []models.Post {
	posts := make([]models.Post, 0, len(rows))
	for _, row := range rows {
		if !row.hasDoc() || !models.IsPostID(row.ID) {
			continue
		}

		var post models.Post
		if err := json.Unmarshal(row.Doc, &post); err != nil {
			c.log.Warnf("Skipping undecodable post %s: %v", row.ID, err)
			continue
		}
		posts = append(posts, post)
	}
	return posts
}

// SortByCollectedDesc orders posts newest collection time first, keeping the
// fetch order of equal timestamps
func SortByCollectedDesc(posts []models.Post) {
	sort.SliceStable(posts, func(i, j int) bool {
		return posts[i].CollectedAt.After(posts[j].CollectedAt.Time)
	})
}
