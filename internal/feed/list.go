package feed

import (
	"context"
	"fmt"
	"strings"

	"github.com/tidwall/gjson"
)

const (
	listPageSize = 500
	// Shenzhen main board, ChiNext, Shanghai main board and STAR market
	listMarkets = "m:0+t:6,m:0+t:80,m:1+t:2,m:1+t:23"
)

// Listing is one row of the exchange stock list.
type Listing struct {
	Code     string
	Name     string
	Exchange string
}

// FetchListings fetches the full exchange stock list page by page.
func (c *Client) FetchListings(ctx context.Context) ([]Listing, error) {
	var all []Listing

	for page := 1; ; page++ {
		url := fmt.Sprintf(
			"%s/api/qt/clist/get?pn=%d&pz=%d&fs=%s&fields=f12,f13,f14",
			c.listBase, page, listPageSize, listMarkets,
		)

		body, err := c.fetchJSON(ctx, url)
		if err != nil {
			return nil, fmt.Errorf("fetch listings page %d: %w", page, err)
		}

		listings, total, err := parseListings(body)
		if err != nil {
			return nil, fmt.Errorf("parse listings page %d: %w", page, err)
		}
		if len(listings) == 0 {
			break
		}
		all = append(all, listings...)

		if len(all) >= total || len(listings) < listPageSize {
			break
		}
	}

	c.logger.WithField("count", len(all)).Info("Fetched instrument listings")
	return all, nil
}

// parseListings extracts rows from a clist response. data.diff is an
// array on some gateways and an index-keyed object on others.
func parseListings(body []byte) ([]Listing, int, error) {
	data := gjson.GetBytes(body, "data")
	if !data.Exists() {
		return nil, 0, fmt.Errorf("no data in list response")
	}

	total := int(data.Get("total").Int())

	diff := data.Get("diff")
	if !diff.Exists() {
		return nil, total, nil
	}

	var listings []Listing
	diff.ForEach(func(_, item gjson.Result) bool {
		code := strings.TrimSpace(item.Get("f12").String())
		if code == "" {
			return true
		}

		exchange := "SZ"
		if item.Get("f13").Int() == 1 {
			exchange = "SH"
		}

		listings = append(listings, Listing{
			Code:     code,
			Name:     strings.TrimSpace(item.Get("f14").String()),
			Exchange: exchange,
		})
		return true
	})

	return listings, total, nil
}
