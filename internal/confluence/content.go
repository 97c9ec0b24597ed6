package confluence

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Inna0915/obsidian-confluence-flow/internal/apperrors"
)

const (
	// expandParams requests the body, version, ancestor chain and
	// attachment-count hint in one call.
	expandParams = "body.storage,version,ancestors,children.attachment"

	// defaultPageSize is the number of results per search page.
	defaultPageSize = 50

	// maxFetchAll is the hard ceiling on pages accumulated by one
	// fetch-all call, protecting against runaway pagination.
	maxFetchAll = 1000

	// cqlTimeFormat formats the modified-since predicate to minute precision.
	cqlTimeFormat = "2006-01-02 15:04"
)

// TestConnection validates reachability and credentials via the
// current-user endpoint. Failures are classified by status code.
func (c *Client) TestConnection(ctx context.Context) error {
	parsed, err := url.Parse(c.baseURL)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return fmt.Errorf("%w: %q", apperrors.ErrMalformedBaseURL, c.baseURL)
	}

	var user User
	if err := c.get(ctx, restPrefix+"/user/current", nil, &user); err != nil {
		var httpErr *apperrors.HTTPError
		if errors.As(err, &httpErr) {
			switch httpErr.StatusCode {
			case 401, 403:
				return apperrors.ErrAuthFailed
			case 404:
				return apperrors.ErrEndpointNotFound
			}
		}
		return fmt.Errorf("test connection: %w", err)
	}

	c.logger.InfoContext(ctx, "connection ok", "user", user.DisplayName)
	return nil
}

// FetchPage retrieves one page with its body, version, ancestors and
// attachment-count hint.
func (c *Client) FetchPage(ctx context.Context, pageID string) (*Page, error) {
	q := url.Values{}
	q.Set("expand", expandParams)

	var page Page
	if err := c.get(ctx, restPrefix+"/content/"+pageID, q, &page); err != nil {
		return nil, fmt.Errorf("fetch page %s: %w", pageID, err)
	}
	return &page, nil
}

// BuildRootsCQL builds the filter expression selecting the root pages
// themselves and all their descendants, optionally restricted to pages
// modified at or after since.
func BuildRootsCQL(rootIDs []string, since time.Time) string {
	ids := strings.Join(rootIDs, ",")
	cql := fmt.Sprintf("(id in (%s) OR ancestor in (%s))", ids, ids)
	if !since.IsZero() {
		cql += fmt.Sprintf(" AND lastModified >= %q", since.Format(cqlTimeFormat))
	}
	return cql
}

// SearchByRoots runs one page of a CQL search over the given roots.
// A zero since omits the time predicate.
func (c *Client) SearchByRoots(
	ctx context.Context, rootIDs []string, since time.Time, start, limit int,
) (*SearchResult, error) {
	q := url.Values{}
	q.Set("cql", BuildRootsCQL(rootIDs, since))
	q.Set("expand", expandParams)
	q.Set("start", fmt.Sprintf("%d", start))
	q.Set("limit", fmt.Sprintf("%d", limit))

	var result SearchResult
	if err := c.get(ctx, restPrefix+"/content/search", q, &result); err != nil {
		return nil, fmt.Errorf("search content: %w", err)
	}
	return &result, nil
}

// FetchAllByRoots accumulates all search pages for the given roots.
// The loop stops when a page returns fewer results than the page size,
// when the reported total is reached, or at the hard ceiling, whichever
// comes first.
func (c *Client) FetchAllByRoots(ctx context.Context, rootIDs []string, since time.Time) ([]Page, error) {
	var all []Page
	start := 0

	for {
		result, err := c.SearchByRoots(ctx, rootIDs, since, start, defaultPageSize)
		if err != nil {
			return nil, err
		}

		all = append(all, result.Results...)
		start += len(result.Results)

		c.logger.DebugContext(ctx, "search page fetched",
			"fetched", len(result.Results),
			"accumulated", len(all),
			"total", result.TotalSize)

		if len(all) >= maxFetchAll {
			c.logger.WarnContext(ctx, "pagination ceiling reached", "ceiling", maxFetchAll)
			all = all[:maxFetchAll]
			break
		}
		if len(result.Results) < defaultPageSize {
			break
		}
		if result.TotalSize > 0 && len(all) >= result.TotalSize {
			break
		}
	}

	return all, nil
}

// ListAttachments returns all attachments of a page.
func (c *Client) ListAttachments(ctx context.Context, pageID string) ([]Attachment, error) {
	q := url.Values{}
	q.Set("limit", fmt.Sprintf("%d", defaultPageSize))

	var all []Attachment
	start := 0

	for {
		q.Set("start", fmt.Sprintf("%d", start))
		var list attachmentList
		if err := c.get(ctx, restPrefix+"/content/"+pageID+"/child/attachment", q, &list); err != nil {
			return nil, fmt.Errorf("list attachments %s: %w", pageID, err)
		}

		all = append(all, list.Results...)
		start += len(list.Results)

		if len(list.Results) < defaultPageSize {
			break
		}
	}

	return all, nil
}

// DownloadAttachment fetches the attachment bytes via its download link.
func (c *Client) DownloadAttachment(ctx context.Context, att *Attachment) ([]byte, error) {
	if att.Links.Download == "" {
		return nil, fmt.Errorf("attachment %s: %w", att.Title, apperrors.NewHTTPError(404, "no download link"))
	}

	data, err := c.getRaw(ctx, att.Links.Download, nil)
	if err != nil {
		return nil, fmt.Errorf("download attachment %s: %w", att.Title, err)
	}
	return data, nil
}

// PageURL returns the canonical browser URL of a page.
func (c *Client) PageURL(page *Page) string {
	if page.Links.WebUI != "" {
		return c.baseURL + page.Links.WebUI
	}
	return c.baseURL + "/pages/viewpage.action?pageId=" + page.ID
}
