package transit

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/TonyTwoStep/mini-metro-display/internal/cache"
	"github.com/TonyTwoStep/mini-metro-display/internal/models"
)

// RealtimeFeed fetches live departure estimates from one or more GTFS-RT
// trip-update feeds. Stop and trip identifiers must share a namespace with
// the scheduled data source so the reconciler can correlate records.
type RealtimeFeed struct {
	urls      []string
	client    *http.Client
	feedCache *cache.Cache[[]models.DepartureRecord]
}

// NewRealtimeFeed creates a realtime feed client polling the given URLs
func NewRealtimeFeed(urls []string, timeout, cacheTTL time.Duration) *RealtimeFeed {
	return &RealtimeFeed{
		urls:      urls,
		client:    &http.Client{Timeout: timeout},
		feedCache: cache.New[[]models.DepartureRecord](cacheTTL),
	}
}

// DeparturesForStop returns the live departure records for one stop across
// all configured feeds. Feeds that fail are skipped; the call errors only
// when every feed failed.
func (f *RealtimeFeed) DeparturesForStop(ctx context.Context, stopID string) ([]models.DepartureRecord, error) {
	if len(f.urls) == 0 {
		return nil, nil
	}

	var records []models.DepartureRecord
	failures := 0
	for _, url := range f.urls {
		feedRecords, err := f.feedRecords(ctx, url)
		if err != nil {
			slog.Warn("realtime feed fetch failed", "url", url, "err", err)
			failures++
			continue
		}
		for _, record := range feedRecords {
			if record.StopID == stopID {
				records = append(records, record)
			}
		}
	}

	if failures == len(f.urls) {
		return nil, fmt.Errorf("all %d realtime feeds failed: %w", failures, ErrSourceUnavailable)
	}
	return records, nil
}

func (f *RealtimeFeed) feedRecords(ctx context.Context, url string) ([]models.DepartureRecord, error) {
	return f.feedCache.GetOrFill(url, func() ([]models.DepartureRecord, error) {
		feed, err := f.fetchFeed(ctx, url)
		if err != nil {
			return nil, err
		}
		return parseTripUpdates(feed), nil
	})
}

func (f *RealtimeFeed) fetchFeed(ctx context.Context, url string) (*gtfs.FeedMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building feed request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching feed: %w: %w", ErrSourceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("fetching feed: %w", ErrRateLimited)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d: %w", resp.StatusCode, ErrSourceUnavailable)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading feed body: %w: %w", ErrSourceUnavailable, err)
	}

	feed := &gtfs.FeedMessage{}
	if err := proto.Unmarshal(body, feed); err != nil {
		return nil, fmt.Errorf("parsing feed protobuf: %w: %w", ErrSourceUnavailable, err)
	}
	return feed, nil
}

func parseTripUpdates(feed *gtfs.FeedMessage) []models.DepartureRecord {
	var records []models.DepartureRecord

	for _, entity := range feed.GetEntity() {
		tripUpdate := entity.GetTripUpdate()
		if tripUpdate == nil {
			continue
		}

		trip := tripUpdate.GetTrip()
		for _, stu := range tripUpdate.GetStopTimeUpdate() {
			stopID := stu.GetStopId()
			if stopID == "" {
				continue
			}

			// Departure time first; arrival is the terminal-stop fallback
			unix := stu.GetDeparture().GetTime()
			if unix == 0 {
				unix = stu.GetArrival().GetTime()
			}
			if unix == 0 {
				continue
			}

			estimated := time.Unix(unix, 0)
			records = append(records, models.DepartureRecord{
				StopID:    stopID,
				RouteID:   trip.GetRouteId(),
				TripID:    trip.GetTripId(),
				Estimated: &estimated,
				Source:    models.SourceRealtime,
			})
		}
	}

	return records
}
