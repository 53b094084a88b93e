package notion

import (
	"context"
	"strconv"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
)

// QueryAll fetches all pages from a Notion database, handling pagination.
// The next page is requested while the current one is being appended.
func QueryAll(ctx context.Context, c Client, dbID string, filter *notionapi.DatabaseQueryRequest) ([]notionapi.Page, error) {
	var all []notionapi.Page

	newReq := func(cursor notionapi.Cursor) *notionapi.DatabaseQueryRequest {
		req := &notionapi.DatabaseQueryRequest{StartCursor: cursor}
		if filter != nil {
			req.Filter = filter.Filter
			req.Sorts = filter.Sorts
			req.PageSize = filter.PageSize
		}
		return req
	}

	type prefetchResult struct {
		resp *notionapi.DatabaseQueryResponse
		err  error
	}
	var prefetchCh <-chan prefetchResult

	for {
		var resp *notionapi.DatabaseQueryResponse
		var err error

		if prefetchCh != nil {
			result := <-prefetchCh
			resp, err = result.resp, result.err
		} else {
			resp, err = c.QueryDatabase(ctx, dbID, newReq(""))
		}
		if err != nil {
			return nil, eris.Wrap(err, "notion: query all page")
		}

		all = append(all, resp.Results...)
		if !resp.HasMore {
			break
		}

		nextReq := newReq(resp.NextCursor)
		ch := make(chan prefetchResult, 1)
		prefetchCh = ch
		go func() {
			r, e := c.QueryDatabase(ctx, dbID, nextReq)
			ch <- prefetchResult{resp: r, err: e}
		}()
	}

	return all, nil
}

// QueryProducts fetches the product database. With activeOnly set, only pages
// whose "Active" checkbox is ticked are returned.
func QueryProducts(ctx context.Context, c Client, dbID string, activeOnly bool) ([]notionapi.Page, error) {
	var filter *notionapi.DatabaseQueryRequest
	if activeOnly {
		filter = &notionapi.DatabaseQueryRequest{
			Filter: notionapi.PropertyFilter{
				Property: "Active",
				Checkbox: &notionapi.CheckboxFilterCondition{Equals: true},
			},
		}
	}
	pages, err := QueryAll(ctx, c, dbID, filter)
	if err != nil {
		return nil, eris.Wrap(err, "notion: query products")
	}
	return pages, nil
}

// FlattenProperties renders a page's properties as plain strings keyed by
// property name. Unsupported property types are omitted.
func FlattenProperties(p notionapi.Page) map[string]string {
	out := make(map[string]string, len(p.Properties))
	for name, prop := range p.Properties {
		switch v := prop.(type) {
		case *notionapi.TitleProperty:
			out[name] = plainText(v.Title)
		case *notionapi.RichTextProperty:
			out[name] = plainText(v.RichText)
		case *notionapi.SelectProperty:
			out[name] = v.Select.Name
		case *notionapi.StatusProperty:
			out[name] = v.Status.Name
		case *notionapi.MultiSelectProperty:
			names := make([]string, 0, len(v.MultiSelect))
			for _, o := range v.MultiSelect {
				names = append(names, o.Name)
			}
			out[name] = strings.Join(names, ", ")
		case *notionapi.CheckboxProperty:
			out[name] = strconv.FormatBool(v.Checkbox)
		case *notionapi.NumberProperty:
			out[name] = strconv.FormatFloat(v.Number, 'f', -1, 64)
		case *notionapi.URLProperty:
			out[name] = v.URL
		}
	}
	return out
}

func plainText(rts []notionapi.RichText) string {
	var b strings.Builder
	for _, rt := range rts {
		b.WriteString(rt.PlainText)
	}
	return strings.TrimSpace(b.String())
}
