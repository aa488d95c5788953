package refresh

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"vocarank/internal/models"
	"vocarank/internal/providers"
	"vocarank/internal/structures"

	"github.com/goccy/go-json"
	"golang.org/x/time/rate"
)

// ViewsProvider fetches the current view count of one video. A nil count
// means the source reported nothing for the video.
type ViewsProvider interface {
	GetViews(ctx context.Context, videoID string) (*int64, error)
}

type rateLimitedProvider struct {
	next    ViewsProvider
	limiter *rate.Limiter
}

// NewRateLimitedProvider allows at most perSecond calls to next. A
// non-positive rate disables limiting.
func NewRateLimitedProvider(next ViewsProvider, perSecond float64) ViewsProvider {
	if perSecond <= 0 {
		return next
	}
	return &rateLimitedProvider{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(perSecond), 1),
	}
}

func (p *rateLimitedProvider) GetViews(ctx context.Context, videoID string) (*int64, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	return p.next.GetViews(ctx, videoID)
}

// HTTPProvider reads {"views": n} from an endpoint template in which "{id}"
// is replaced by the video id.
type HTTPProvider struct {
	client   *http.Client
	template string
}

func NewHTTPProvider(client *http.Client, template string) *HTTPProvider {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPProvider{client: client, template: template}
}

type viewsResponse struct {
	Views *int64 `json:"views"`
}

func (p *HTTPProvider) GetViews(ctx context.Context, videoID string) (*int64, error) {
	endpoint := strings.ReplaceAll(p.template, "{id}", url.PathEscape(videoID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("views endpoint returned %d for %s", resp.StatusCode, videoID)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out viewsResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return out.Views, nil
}

// NewProviders builds a rate-limited HTTP provider for every configured
// source. Unknown source names are logged and ignored.
func NewProviders(conf *structures.Config, logger providers.Logger) map[models.SourceType]ViewsProvider {
	out := make(map[models.SourceType]ViewsProvider, len(conf.Refresh.Providers))
	client := &http.Client{Timeout: 15 * time.Second}
	for name, template := range conf.Refresh.Providers {
		source, ok := models.ParseSourceType(name)
		if !ok {
			logger.Warnf(providers.TypeRefresh, "Ignoring views provider for unknown source %q", name)
			continue
		}
		out[source] = NewRateLimitedProvider(NewHTTPProvider(client, template), conf.Refresh.ProviderRate)
	}
	return out
}
