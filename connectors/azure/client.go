// Package azure reads cost exports from an Azure Blob Storage container.
package azure

import (
	"bytes"
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	lo "github.com/samber/lo"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	apiVersion       = "2021-08-06"
	storageScope     = "https://storage.azure.com/.default"
	defaultAuthority = "https://login.microsoftonline.com"
)

// ErrNoBlobs is returned when the container holds no matching export.
var ErrNoBlobs = errors.New("no export blobs found")

// Config describes where the exports live and how to authenticate.
// With TenantID, ClientID and ClientSecret set the client uses an Azure AD
// client-credentials token; otherwise SASToken (if any) is appended to every URL.
type Config struct {
	AccountName  string
	Container    string
	Prefix       string
	TenantID     string
	ClientID     string
	ClientSecret string
	SASToken     string
	// Endpoint overrides https://<account>.blob.core.windows.net.
	Endpoint string
	// Authority overrides the Azure AD host used for token requests.
	Authority string
	// CacheBytes bounds the downloaded-export cache; 0 disables it.
	CacheBytes int64
}

// Blob is one entry of a container listing.
type Blob struct {
	Name         string
	ETag         string
	LastModified time.Time
	Size         int64
}

// Client handles Azure Blob Storage requests
type Client struct {
	cfg        Config
	endpoint   string
	httpClient *http.Client
	cache      *ristretto.Cache[string, []byte]
}

// NewClient creates a Blob Storage client for cfg.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Container == "" {
		return nil, fmt.Errorf("azure: container is required")
	}
	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	if endpoint == "" {
		if cfg.AccountName == "" {
			return nil, fmt.Errorf("azure: account name or endpoint is required")
		}
		endpoint = fmt.Sprintf("https://%s.blob.core.windows.net", cfg.AccountName)
	}

	httpClient := &http.Client{Timeout: 60 * time.Second}
	if cfg.TenantID != "" && cfg.ClientID != "" && cfg.ClientSecret != "" {
		authority := strings.TrimRight(lo.Ternary(cfg.Authority == "", defaultAuthority, cfg.Authority), "/")
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", authority, cfg.TenantID),
			Scopes:       []string{storageScope},
		}
		httpClient = cc.Client(context.Background())
		httpClient.Timeout = 60 * time.Second
	}

	c := &Client{cfg: cfg, endpoint: endpoint, httpClient: httpClient}
	if cfg.CacheBytes > 0 {
		cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
			NumCounters: 1000,
			MaxCost:     cfg.CacheBytes,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create blob cache: %w", err)
		}
		c.cache = cache
	}
	return c, nil
}

// Name identifies the source in logs and bundles.
func (c *Client) Name() string {
	return fmt.Sprintf("azureblob://%s/%s", lo.Ternary(c.cfg.AccountName == "", c.endpoint, c.cfg.AccountName), c.cfg.Container)
}

// Close releases the blob cache.
func (c *Client) Close() {
	if c.cache != nil {
		c.cache.Close()
	}
}

type listResponse struct {
	Blobs []struct {
		Name       string `xml:"Name"`
		Properties struct {
			LastModified  string `xml:"Last-Modified"`
			ETag          string `xml:"Etag"`
			ContentLength int64  `xml:"Content-Length"`
		} `xml:"Properties"`
	} `xml:"Blobs>Blob"`
	NextMarker string `xml:"NextMarker"`
}

// ListBlobs returns every blob under the configured prefix, following
// continuation markers.
func (c *Client) ListBlobs(ctx context.Context) ([]Blob, error) {
	var out []Blob
	marker := ""
	for {
		q := url.Values{}
		q.Set("restype", "container")
		q.Set("comp", "list")
		if c.cfg.Prefix != "" {
			q.Set("prefix", c.cfg.Prefix)
		}
		if marker != "" {
			q.Set("marker", marker)
		}
		body, err := c.get(ctx, c.containerURL()+"?"+q.Encode())
		if err != nil {
			return nil, fmt.Errorf("failed to list blobs: %w", err)
		}
		var page listResponse
		if err := xml.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("failed to decode blob listing: %w", err)
		}
		for _, b := range page.Blobs {
			modified, err := http.ParseTime(b.Properties.LastModified)
			if err != nil {
				slog.Debug("azure.blob.list.bad_time", "blob", b.Name, "value", b.Properties.LastModified)
			}
			out = append(out, Blob{
				Name:         b.Name,
				ETag:         b.Properties.ETag,
				LastModified: modified,
				Size:         b.Properties.ContentLength,
			})
		}
		if page.NextMarker == "" {
			return out, nil
		}
		marker = page.NextMarker
	}
}

// Latest returns the most recently modified .csv blob. Ties go to the
// lexically greatest name, which for dated export paths is the newest.
func (c *Client) Latest(ctx context.Context) (Blob, error) {
	blobs, err := c.ListBlobs(ctx)
	if err != nil {
		return Blob{}, err
	}
	csvs := lo.Filter(blobs, func(b Blob, _ int) bool {
		return strings.HasSuffix(strings.ToLower(b.Name), ".csv")
	})
	if len(csvs) == 0 {
		return Blob{}, fmt.Errorf("%s: %w", c.Name(), ErrNoBlobs)
	}
	return lo.MaxBy(csvs, func(a, b Blob) bool {
		if a.LastModified.Equal(b.LastModified) {
			return a.Name > b.Name
		}
		return a.LastModified.After(b.LastModified)
	}), nil
}

// Download returns the content of blob. Content is cached by name and ETag,
// so an unchanged export is fetched once.
func (c *Client) Download(ctx context.Context, blob Blob) ([]byte, error) {
	key := blob.Name + "@" + blob.ETag
	if c.cache != nil && blob.ETag != "" {
		if data, ok := c.cache.Get(key); ok {
			slog.Debug("azure.blob.cache.hit", "blob", blob.Name, "etag", blob.ETag)
			return data, nil
		}
	}
	data, err := c.get(ctx, c.containerURL()+"/"+escapePath(blob.Name))
	if err != nil {
		return nil, fmt.Errorf("failed to download blob %s: %w", blob.Name, err)
	}
	if c.cache != nil && blob.ETag != "" {
		c.cache.Set(key, data, int64(len(data)))
		c.cache.Wait()
	}
	slog.Info("azure.blob.downloaded", "blob", blob.Name, "bytes", len(data))
	return data, nil
}

// Fetch downloads the latest export.
func (c *Client) Fetch(ctx context.Context) (io.ReadCloser, error) {
	blob, err := c.Latest(ctx)
	if err != nil {
		return nil, err
	}
	data, err := c.Download(ctx, blob)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (c *Client) containerURL() string {
	return c.endpoint + "/" + url.PathEscape(c.cfg.Container)
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	if c.cfg.SASToken != "" {
		sep := lo.Ternary(strings.Contains(u, "?"), "&", "?")
		u += sep + strings.TrimPrefix(c.cfg.SASToken, "?")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("x-ms-version", apiVersion)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("request failed: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return body, nil
}

func escapePath(name string) string {
	parts := strings.Split(name, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
