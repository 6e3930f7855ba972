// Package jobs 负责职位搜索与用户收藏职位的跟踪。
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	adzunaBaseURL   = "https://api.adzuna.com/v1/api/jobs"
	defaultPageSize = 20
	maxPageSize     = 50
	httpTimeout     = 15 * time.Second
)

// SourceAdzuna 标识来自 Adzuna 的职位。
const SourceAdzuna = "adzuna"

// Listing 是搜索返回的一条职位。
type Listing struct {
	Source      string `json:"source"`
	ExternalID  string `json:"externalId"`
	Title       string `json:"title"`
	Company     string `json:"company"`
	Location    string `json:"location"`
	Description string `json:"description"`
	Salary      string `json:"salary"`
	URL         string `json:"url"`
	PostedAt    string `json:"postedAt,omitempty"`
}

// Query 描述一次搜索请求，Page 从 1 开始。
type Query struct {
	What    string
	Where   string
	Page    int
	PerPage int
}

// SearchResult 是一页结果及总数。
type SearchResult struct {
	Jobs  []Listing `json:"jobs"`
	Count int       `json:"count"`
	Page  int       `json:"page"`
}

// AdzunaClient 调用 Adzuna 公共 API。未配置凭据时搜索总是返回空结果。
type AdzunaClient struct {
	appID   string
	appKey  string
	country string
	baseURL string
	client  *http.Client
	logger  *slog.Logger
}

// NewAdzunaClient 为指定国家（"gb"、"us" 等）构造客户端。
func NewAdzunaClient(appID, appKey, country string, logger *slog.Logger) *AdzunaClient {
	if country == "" {
		country = "us"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AdzunaClient{
		appID:   appID,
		appKey:  appKey,
		country: country,
		baseURL: adzunaBaseURL,
		client:  &http.Client{Timeout: httpTimeout},
		logger:  logger,
	}
}

type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

type adzunaResult struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	SalaryMin   float64 `json:"salary_min"`
	SalaryMax   float64 `json:"salary_max"`
	RedirectURL string  `json:"redirect_url"`
	Created     string  `json:"created"`
	Company     struct {
		DisplayName string `json:"display_name"`
	} `json:"company"`
	Location struct {
		DisplayName string `json:"display_name"`
	} `json:"location"`
}

// Search 返回一页职位。
func (c *AdzunaClient) Search(ctx context.Context, q Query) (SearchResult, error) {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PerPage <= 0 {
		q.PerPage = defaultPageSize
	}
	q.PerPage = min(q.PerPage, maxPageSize)

	empty := SearchResult{Jobs: []Listing{}, Page: q.Page}
	if c.appID == "" || c.appKey == "" {
		c.logger.Warn("adzuna credentials not set, skipping job search")
		return empty, nil
	}

	params := url.Values{}
	params.Set("app_id", c.appID)
	params.Set("app_key", c.appKey)
	params.Set("results_per_page", strconv.Itoa(q.PerPage))
	params.Set("content-type", "application/json")
	if w := strings.TrimSpace(q.What); w != "" {
		params.Set("what", w)
	}
	if w := strings.TrimSpace(q.Where); w != "" {
		params.Set("where", w)
	}

	endpoint := fmt.Sprintf("%s/%s/search/%d?%s", c.baseURL, c.country, q.Page, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return empty, fmt.Errorf("build adzuna request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return empty, fmt.Errorf("adzuna search: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return empty, fmt.Errorf("read adzuna body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return empty, fmt.Errorf("adzuna returned %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var payload adzunaResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return empty, fmt.Errorf("decode adzuna response: %w", err)
	}

	out := SearchResult{Jobs: make([]Listing, 0, len(payload.Results)), Count: payload.Count, Page: q.Page}
	for _, r := range payload.Results {
		out.Jobs = append(out.Jobs, Listing{
			Source:      SourceAdzuna,
			ExternalID:  r.ID,
			Title:       plainText(r.Title),
			Company:     r.Company.DisplayName,
			Location:    r.Location.DisplayName,
			Description: plainText(r.Description),
			Salary:      FormatSalary(r.SalaryMin, r.SalaryMax),
			URL:         r.RedirectURL,
			PostedAt:    r.Created,
		})
	}
	return out, nil
}

// plainText 去掉 Adzuna 标题和摘要里的高亮标签。
func plainText(s string) string {
	if !strings.ContainsRune(s, '<') {
		return strings.TrimSpace(s)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(s))
	if err != nil {
		return strings.TrimSpace(s)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}

// FormatSalary 把薪资区间格式化为文本，例如 "40,000 - 55,000"。
func FormatSalary(lo, hi float64) string {
	p := message.NewPrinter(language.English)
	switch {
	case lo <= 0 && hi <= 0:
		return ""
	case lo <= 0 || lo == hi:
		return p.Sprintf("%d", int64(max(lo, hi)))
	case hi <= 0:
		return p.Sprintf("from %d", int64(lo))
	default:
		return p.Sprintf("%d - %d", int64(lo), int64(hi))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
