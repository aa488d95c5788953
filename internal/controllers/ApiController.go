package controllers

import (
	"errors"
	"net/http"
	"vocarank/internal/models"
	"vocarank/internal/providers"
	"vocarank/internal/services"
	"vocarank/internal/structures"

	json "github.com/goccy/go-json"
)

const (
	defaultHistoryRange  = 30
	defaultHistoryPeriod = 1
)

var errNotFound = errors.New("not found")

type ApiController struct {
	logger   providers.Logger
	service  services.RankingServiceInterface
	cache    providers.CacheProviderInterface
	rankings structures.RankingsConfig
}

func NewApiController(logger providers.Logger, service services.RankingServiceInterface, cache providers.CacheProviderInterface, conf *structures.Config) *ApiController {
	return &ApiController{
		logger:   logger,
		service:  service,
		cache:    cache,
		rankings: conf.Rankings,
	}
}

func writeJSON(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// serveFromCacheOrCompute answers from the page cache keyed by path and
// sorted query. Only successful results are cached.
func (ac *ApiController) serveFromCacheOrCompute(w http.ResponseWriter, r *http.Request, compute func() (any, error)) {
	cacheKey := r.URL.Path + "?" + r.URL.Query().Encode()
	if data, ok := ac.cache.Get(cacheKey); ok {
		writeJSON(w, http.StatusOK, data)
		return
	}

	result, err := compute()
	if err != nil {
		ac.writeError(w, r, err)
		return
	}

	gson, err := json.Marshal(result)
	if err != nil {
		ac.logger.Errorf(providers.TypeGet, "Cannot encode %s: %v", r.URL.Path, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	ac.cache.Set(cacheKey, gson)
	writeJSON(w, http.StatusOK, gson)
}

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (ac *ApiController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *models.ValidationError
	switch {
	case errors.As(err, &verr):
		fields := make(map[string]string, len(verr.Errors))
		for field := range verr.Errors {
			fields[field] = verr.Errors.FieldOne(field)
		}
		gson, _ := json.Marshal(errorResponse{Error: "Bad Request", Fields: fields})
		writeJSON(w, http.StatusBadRequest, gson)
	case errors.Is(err, errNotFound):
		http.Error(w, "Not Found", http.StatusNotFound)
	default:
		ac.logger.Errorf(providers.TypeGet, "%s?%s failed: %v", r.URL.Path, r.URL.RawQuery, err)
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

func (ac *ApiController) GetSongRankings(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, func() (any, error) {
		p, err := songRankingsParams(r.URL.Query(), ac.rankings)
		if err != nil {
			return nil, err
		}
		return ac.service.SongRankings(r.Context(), p)
	})
}

func (ac *ApiController) GetArtistRankings(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, func() (any, error) {
		p, err := artistRankingsParams(r.URL.Query(), ac.rankings)
		if err != nil {
			return nil, err
		}
		return ac.service.ArtistRankings(r.Context(), p)
	})
}

func (ac *ApiController) GetHistoricalViews(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, func() (any, error) {
		qr := newQueryReader(r.URL.Query())
		entity := models.HistoricalEntitySong
		switch r.URL.Query().Get("entity") {
		case "", "song":
		case "artist":
			entity = models.HistoricalEntityArtist
		default:
			qr.fail("entity", "entity must be song or artist")
		}
		id := qr.entityID("id")
		rng := qr.readInt("range", defaultHistoryRange)
		period := qr.readInt("period", defaultHistoryPeriod)
		ts := qr.readTime("timestamp")
		if err := qr.err(); err != nil {
			return nil, err
		}
		return ac.service.HistoricalViews(r.Context(), entity, id, rng, period, ts)
	})
}

func (ac *ApiController) GetSong(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, func() (any, error) {
		qr := newQueryReader(r.URL.Query())
		id := qr.entityID("id")
		ts := qr.readTime("timestamp")
		if err := qr.err(); err != nil {
			return nil, err
		}
		song, err := ac.service.Song(r.Context(), id, ts)
		if err != nil {
			return nil, err
		}
		if song == nil {
			return nil, errNotFound
		}
		return song, nil
	})
}

func (ac *ApiController) GetArtist(w http.ResponseWriter, r *http.Request) {
	ac.serveFromCacheOrCompute(w, r, func() (any, error) {
		qr := newQueryReader(r.URL.Query())
		id := qr.entityID("id")
		ts := qr.readTime("timestamp")
		if err := qr.err(); err != nil {
			return nil, err
		}
		artist, err := ac.service.Artist(r.Context(), id, ts)
		if err != nil {
			return nil, err
		}
		if artist == nil {
			return nil, errNotFound
		}
		return artist, nil
	})
}
