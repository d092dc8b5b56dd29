package sentinel

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/forest-guardian/canasat/internal/cache"
	"github.com/rs/zerolog"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/oauth2"
)

const (
	DefaultClientID   = "cdse-public"
	DefaultAPIURL     = "https://catalogue.dataspace.copernicus.eu/odata/v1"
	DefaultTokenURL   = "https://identity.dataspace.copernicus.eu/auth/realms/CDSE/protocol/openid-connect/token"
	DefaultTimeout    = 60 * time.Second
	maxRedirects      = 5
	productType       = "S2MSI2A"
	downloadTimeoutX  = 10
	errorBodyExcerpt  = 512
	catalogDateLayout = "2006-01-02"
)

var (
	ErrMissingCredentials = errors.New("sentinel: copernicus credentials are not configured")
	ErrAuthentication     = errors.New("sentinel: failed to obtain access token from Copernicus Data Space")
	ErrTooManyRedirects   = errors.New("sentinel: exceeded maximum number of redirects while downloading product")
	ErrMissingProductID   = errors.New("sentinel: product payload missing 'Id' field")
	ErrDownloadStalled    = errors.New("sentinel: download received no data within the idle timeout")
)

type CatalogConfig struct {
	Username string
	Password string
	APIURL   string
	TokenURL string
	ClientID string
	Timeout  time.Duration
}

// CloudRange bounds the scene cloud cover in percent.
type CloudRange struct {
	Min float64
	Max float64
}

// Product is the subset of the OData product payload the workflow uses.
type Product struct {
	ID          string `json:"Id"`
	Name        string `json:"Name"`
	ContentDate struct {
		Start string `json:"Start"`
		End   string `json:"End"`
	} `json:"ContentDate"`
	ContentLength int64 `json:"ContentLength"`
}

func (p Product) Title() string {
	if p.Name == "" {
		return p.ID
	}
	return ProductTitle(p.Name)
}

// HTTPStatusError carries the status and a body excerpt of a failed call.
type HTTPStatusError struct {
	Op     string
	Status int
	Body   string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("sentinel: %s failed with status %d: %s", e.Op, e.Status, e.Body)
}

// Session is an authenticated client. Redirects are returned to the caller.
type Session struct {
	client *http.Client
	Token  *oauth2.Token
}

type Catalog struct {
	cfg    CatalogConfig
	http   *http.Client
	cache  *cache.FileCache[Product]
	logger zerolog.Logger
	quiet  bool
	now    func() time.Time
}

type CatalogOption func(*Catalog)

func WithHTTPClient(c *http.Client) CatalogOption {
	return func(cat *Catalog) {
		cat.http = c
	}
}

// WithQueryCache memoises query results for date ranges that already ended.
func WithQueryCache(fc *cache.FileCache[Product]) CatalogOption {
	return func(cat *Catalog) {
		cat.cache = fc
	}
}

func WithCatalogLogger(l zerolog.Logger) CatalogOption {
	return func(cat *Catalog) {
		cat.logger = l
	}
}

func WithQuietDownloads() CatalogOption {
	return func(cat *Catalog) {
		cat.quiet = true
	}
}

func NewCatalog(cfg CatalogConfig, opts ...CatalogOption) (*Catalog, error) {
	if cfg.Username == "" || cfg.Password == "" {
		return nil, ErrMissingCredentials
	}
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.ClientID == "" {
		cfg.ClientID = DefaultClientID
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	c := &Catalog{cfg: cfg, http: &http.Client{}, logger: zerolog.Nop(), now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Authenticate runs the OAuth2 password grant.
func (c *Catalog) Authenticate(ctx context.Context) (*Session, error) {
	conf := &oauth2.Config{
		ClientID: c.cfg.ClientID,
		Endpoint: oauth2.Endpoint{TokenURL: c.cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams},
	}
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.http)

	tok, err := conf.PasswordCredentialsToken(ctx, c.cfg.Username, c.cfg.Password)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuthentication, err)
	}
	if tok.AccessToken == "" {
		return nil, ErrAuthentication
	}
	c.logger.Debug().Time("expiry", tok.Expiry).Msg("copernicus token acquired")

	return &Session{
		Token: tok,
		client: &http.Client{
			Transport: &oauth2.Transport{Source: oauth2.StaticTokenSource(tok), Base: c.http.Transport},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// BuildFilter renders the OData $filter for the latest L2A product
// intersecting footprintWKT between start and end (inclusive days).
func BuildFilter(footprintWKT string, start, end time.Time, cloud CloudRange) string {
	parts := []string{
		"Collection/Name eq 'SENTINEL-2'",
		fmt.Sprintf("ContentDate/Start ge %sT00:00:00Z", start.Format(catalogDateLayout)),
		fmt.Sprintf("ContentDate/Start lt %sT00:00:00Z", end.AddDate(0, 0, 1).Format(catalogDateLayout)),
		fmt.Sprintf("OData.CSC.Intersects(Footprint, geography'SRID=4326;%s')", footprintWKT),
		"Attributes/OData.CSC.StringAttribute/any(att:att/Name eq 'productType' " +
			"and att/OData.CSC.StringAttribute/Value eq '" + productType + "')",
	}
	if cloud.Min > 0 {
		parts = append(parts, fmt.Sprintf("Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq 'cloudCover' "+
			"and att/OData.CSC.DoubleAttribute/Value ge %.2f)", cloud.Min))
	}
	parts = append(parts, fmt.Sprintf("Attributes/OData.CSC.DoubleAttribute/any(att:att/Name eq 'cloudCover' "+
		"and att/OData.CSC.DoubleAttribute/Value le %.2f)", cloud.Max))
	return strings.Join(parts, " and ")
}

func (c *Catalog) endpoint(path string) string {
	return strings.TrimRight(c.cfg.APIURL, "/") + "/" + path
}

// QueryLatest returns the most recent matching product, or nil when the
// catalog has none.
func (c *Catalog) QueryLatest(ctx context.Context, s *Session, footprintWKT string, start, end time.Time, cloud CloudRange) (*Product, error) {
	filter := BuildFilter(footprintWKT, start, end, cloud)

	var key string
	if c.cache != nil && c.rangeClosed(end) {
		key = c.cache.GenerateKey(filter)
		if p, ok := c.cache.Get(key); ok {
			c.logger.Debug().Str("product", p.Name).Msg("catalog query served from cache")
			return &p, nil
		}
	}

	params := url.Values{}
	params.Set("$filter", filter)
	params.Set("$orderby", "ContentDate/Start desc")
	params.Set("$top", "1")

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("Products")+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build catalog query: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to query catalog: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, statusError("catalog query", resp)
	}

	var payload struct {
		Value []Product `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("failed to decode catalog response: %w", err)
	}
	if len(payload.Value) == 0 {
		return nil, nil
	}
	p := payload.Value[0]
	if key != "" {
		if err := c.cache.Set(key, p); err != nil {
			c.logger.Warn().Err(err).Msg("failed to cache catalog query")
		}
	}
	return &p, nil
}

func (c *Catalog) rangeClosed(end time.Time) bool {
	y, m, d := c.now().Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, end.Location())
	return end.Before(today)
}

// Download streams the product archive into destDir and returns its path.
// Redirects are followed by hand, at most five hops.
func (c *Catalog) Download(ctx context.Context, s *Session, p Product, destDir string) (string, error) {
	if p.ID == "" {
		return "", ErrMissingProductID
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create download directory: %w", err)
	}
	name := p.Name
	if name == "" {
		name = p.ID
	}
	if !strings.HasSuffix(name, ".zip") {
		name += ".zip"
	}
	target := filepath.Join(destDir, name)

	// The idle window covers each request until headers arrive, then every
	// read of the body; a slow but steady transfer never expires.
	idle := c.cfg.Timeout * downloadTimeoutX
	parent := ctx
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	watchdog := time.AfterFunc(idle, cancel)
	defer watchdog.Stop()

	current := c.endpoint(fmt.Sprintf("Products(%s)/$value", p.ID))
	var resp *http.Response
	for hop := 0; ; hop++ {
		if hop == maxRedirects {
			return "", ErrTooManyRedirects
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, current, nil)
		if err != nil {
			return "", fmt.Errorf("failed to build download request: %w", err)
		}
		resp, err = s.client.Do(req)
		if err != nil {
			return "", stalled(parent, ctx, fmt.Errorf("failed to download product %s: %w", p.ID, err))
		}
		watchdog.Reset(idle)
		location := resp.Header.Get("Location")
		if !isRedirect(resp.StatusCode) || location == "" {
			break
		}
		resp.Body.Close()
		next, err := resolveLocation(current, location)
		if err != nil {
			return "", err
		}
		c.logger.Debug().Str("location", next).Int("hop", hop+1).Msg("following download redirect")
		current = next
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return "", statusError("product download", resp)
	}

	tmp := target + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("failed to create archive file: %w", err)
	}
	var bar *progressbar.ProgressBar
	if c.quiet {
		bar = progressbar.DefaultBytesSilent(resp.ContentLength, "Downloading "+name)
	} else {
		bar = progressbar.DefaultBytes(resp.ContentLength, "Downloading "+name)
	}
	_, err = io.Copy(io.MultiWriter(f, bar), &idleReader{r: resp.Body, timer: watchdog, idle: idle})
	closeErr := f.Close()
	_ = bar.Finish()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmp)
		return "", stalled(parent, ctx, fmt.Errorf("failed to write archive: %w", err))
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to finalise archive: %w", err)
	}
	c.logger.Info().Str("path", target).Msg("product downloaded")
	return target, nil
}

func isRedirect(status int) bool {
	switch status {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
		return true
	}
	return false
}

func resolveLocation(base, location string) (string, error) {
	b, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("failed to parse url %q: %w", base, err)
	}
	l, err := url.Parse(location)
	if err != nil {
		return "", fmt.Errorf("failed to parse redirect location %q: %w", location, err)
	}
	return b.ResolveReference(l).String(), nil
}

func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, errorBodyExcerpt))
	return &HTTPStatusError{Op: op, Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
}

// ProductTitle derives the product name from an archive or SAFE path.
func ProductTitle(path string) string {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	stem = strings.TrimSuffix(stem, ".SAFE")
	if stem == "" {
		return base
	}
	return stem
}

// idleReader pushes the download watchdog back on every read that makes
// progress.
type idleReader struct {
	r     io.Reader
	timer *time.Timer
	idle  time.Duration
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.idle)
	}
	return n, err
}

// stalled reports err as ErrDownloadStalled when the watchdog, not the
// caller, cancelled the transfer.
func stalled(parent, ctx context.Context, err error) error {
	if parent.Err() == nil && ctx.Err() != nil {
		return fmt.Errorf("%w: %w", ErrDownloadStalled, err)
	}
	return err
}
