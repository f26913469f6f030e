package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// Profile is company metadata scraped from the profile pages.
type Profile struct {
	Code     string
	Name     string
	Industry string
	ListedAt time.Time
}

// FetchProfile scrapes the company survey page of one instrument.
func (c *Client) FetchProfile(ctx context.Context, code string) (*Profile, error) {
	url := fmt.Sprintf("%s/CompanySurvey/Index?type=web&code=%s", c.profileBase, profileCode(code))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Referer", "https://emweb.securities.eastmoney.com/")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	profile, err := parseProfile(resp.Body, code)
	if err != nil {
		return nil, err
	}

	c.logger.WithFields(map[string]interface{}{
		"instrument_id": code,
		"industry":      profile.Industry,
	}).Debug("Fetched profile")

	return profile, nil
}

// profileCode prefixes the exchange the profile pages expect: sh600519.
func profileCode(code string) string {
	if strings.HasPrefix(SecID(code), "1.") {
		return "sh" + code
	}
	return "sz" + code
}

// parseProfile extracts company fields from the survey HTML. The overview
// table holds label/value cell pairs.
func parseProfile(r io.Reader, code string) (*Profile, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("parse profile html: %w", err)
	}

	profile := &Profile{Code: code}
	doc.Find("table tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("td")
		for i := 0; i+1 < cells.Length(); i += 2 {
			label := strings.TrimSpace(cells.Eq(i).Text())
			value := strings.TrimSpace(cells.Eq(i + 1).Text())
			if value == "" || value == "-" {
				continue
			}

			switch label {
			case "公司名称", "证券简称":
				if profile.Name == "" {
					profile.Name = value
				}
			case "所属行业", "所属东财行业":
				if profile.Industry == "" {
					profile.Industry = value
				}
			case "上市日期":
				if t, err := time.Parse("2006-01-02", value); err == nil {
					profile.ListedAt = t
				}
			}
		}
	})

	if profile.Name == "" && profile.Industry == "" {
		return nil, fmt.Errorf("profile fields not found for %s", code)
	}

	return profile, nil
}
