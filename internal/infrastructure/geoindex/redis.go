package geoindex

import (
	"context"
	"fmt"
	"iter"

	"habinest-backend/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// DefaultRedisKey is the sorted set holding listing positions.
const DefaultRedisKey = "geo:listings"

// Redis GEO refuses latitudes beyond the web-mercator band.
const (
	redisMaxLatitude = 85.05112878
	// Slightly above the longest great-circle distance so the whole set is in range.
	redisWorldRadius = domain.MaxDistanceMeters + 1000
)

// Redis stores positions with GEOADD and queries them with GEORADIUS.
// Redis quantizes coordinates to a 52-bit geohash, so distances agree with the
// in-memory index to within about a meter.
type Redis struct {
	client *redis.Client
	key    string
}

func NewRedis(client *redis.Client, key string) *Redis {
	if key == "" {
		key = DefaultRedisKey
	}
	return &Redis{client: client, key: key}
}

// Accepts rejects latitudes GEOADD cannot store.
func (r *Redis) Accepts(p domain.Point) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if p.Latitude > redisMaxLatitude || p.Latitude < -redisMaxLatitude {
		return domain.Validationf("latitude %v outside [-%v, %v] supported by the geo index", p.Latitude, redisMaxLatitude, redisMaxLatitude)
	}
	return nil
}

func (r *Redis) Upsert(ctx context.Context, id uuid.UUID, p domain.Point) error {
	if err := r.Accepts(p); err != nil {
		return err
	}
	if err := r.client.GeoAdd(ctx, r.key, &redis.GeoLocation{
		Name:      id.String(),
		Longitude: p.Longitude,
		Latitude:  p.Latitude,
	}).Err(); err != nil {
		return fmt.Errorf("geoadd: %w", err)
	}
	return nil
}

func (r *Redis) Remove(ctx context.Context, id uuid.UUID) error {
	if err := r.client.ZRem(ctx, r.key, id.String()).Err(); err != nil {
		return fmt.Errorf("zrem: %w", err)
	}
	return nil
}

func (r *Redis) radius(ctx context.Context, center domain.Point, radiusMeters float64) ([]Hit, error) {
	locs, err := r.client.GeoRadius(ctx, r.key, center.Longitude, center.Latitude, &redis.GeoRadiusQuery{
		Radius:   radiusMeters,
		Unit:     "m",
		WithDist: true,
		Sort:     "ASC",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("georadius: %w", err)
	}
	hits := make([]Hit, 0, len(locs))
	for _, loc := range locs {
		id, err := uuid.Parse(loc.Name)
		if err != nil {
			log.Warn().Str("member", loc.Name).Msg("geoindex: skipping non-uuid member")
			continue
		}
		hits = append(hits, Hit{ListingID: id, DistanceMeters: loc.Dist})
	}
	// redis breaks distance ties arbitrarily
	sortHits(hits)
	return hits, nil
}

func (r *Redis) WithinRadius(ctx context.Context, center domain.Point, radiusMeters float64) iter.Seq2[Hit, error] {
	return func(yield func(Hit, error) bool) {
		if err := validateQuery(center, radiusMeters); err != nil {
			yield(Hit{}, err)
			return
		}
		hits, err := r.radius(ctx, center, radiusMeters)
		if err != nil {
			yield(Hit{}, err)
			return
		}
		yieldAll(ctx, hits, yield)
	}
}

// Nearest fetches the whole set ordered by distance; a COUNT limit would cut ties arbitrarily.
func (r *Redis) Nearest(ctx context.Context, center domain.Point, k int) ([]Hit, error) {
	if err := center.Validate(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, domain.Validationf("k must be positive")
	}
	hits, err := r.radius(ctx, center, redisWorldRadius)
	if err != nil {
		return nil, err
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// Rebuild swaps the set atomically inside MULTI/EXEC.
func (r *Redis) Rebuild(ctx context.Context, entries map[uuid.UUID]domain.Point) error {
	locs := make([]*redis.GeoLocation, 0, len(entries))
	for id, p := range entries {
		if err := p.Validate(); err != nil {
			return err
		}
		if r.Accepts(p) != nil {
			log.Warn().Str("listing_id", id.String()).Float64("lat", p.Latitude).Msg("geoindex: latitude outside redis range, not indexed")
			continue
		}
		locs = append(locs, &redis.GeoLocation{Name: id.String(), Longitude: p.Longitude, Latitude: p.Latitude})
	}
	_, err := r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, r.key)
		if len(locs) > 0 {
			pipe.GeoAdd(ctx, r.key, locs...)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("rebuild geo index: %w", err)
	}
	return nil
}

func (r *Redis) Len(ctx context.Context) (int, error) {
	n, err := r.client.ZCard(ctx, r.key).Result()
	if err != nil {
		return 0, fmt.Errorf("zcard: %w", err)
	}
	return int(n), nil
}
