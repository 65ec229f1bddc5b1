// Package skillimport fetches a character's trained skills from ESI and
// applies them to a dogma.Context. It caches the ESI result in Redis and
// degrades gracefully on failure, the same way the teacher's
// SkillsService degrades to worst-case trading skills when ESI is
// unavailable.
package skillimport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	esiclient "github.com/Sternrassler/eve-esi-client/pkg/client"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/Sternrassler/eve-o-provit/backend/internal/dogma"
	"github.com/Sternrassler/eve-o-provit/backend/internal/metrics"
	"github.com/Sternrassler/eve-o-provit/backend/pkg/logger"
)

// ttl matches the teacher's own character_skills cache entry lifetime.
const ttl = 5 * time.Minute

// TrainedSkill is one entry from ESI's /characters/{id}/skills/ response,
// trimmed to what Apply needs.
type TrainedSkill struct {
	SkillID          uint32 `json:"skill_id"`
	ActiveSkillLevel int    `json:"active_skill_level"`
}

type esiSkillsResponse struct {
	Skills []TrainedSkill `json:"skills"`
}

// Importer fetches and caches a character's trained skills.
type Importer struct {
	esiClient *esiclient.Client
	redis     *redis.Client
	log       *logger.Logger
	limiter   *rate.Limiter
}

// New wraps esiClient with a Redis cache in front of it. Outbound ESI
// calls are throttled to ESI's documented 300 requests/minute budget,
// the same token bucket shape the teacher's ESIRateLimiter used.
func New(esiClient *esiclient.Client, redisClient *redis.Client, log *logger.Logger) *Importer {
	return &Importer{
		esiClient: esiClient,
		redis:     redisClient,
		log:       log,
		limiter:   rate.NewLimiter(rate.Limit(5.0), 400),
	}
}

func cacheKey(characterID int) string {
	return fmt.Sprintf("character_skills:%d", characterID)
}

// Fetch returns the character's trained skills, preferring a cached
// copy. On ESI failure after a cache miss it returns an empty list — it
// never returns an error; applying the empty list leaves the context's
// skill levels as they were.
func (imp *Importer) Fetch(ctx context.Context, characterID int, accessToken string) []TrainedSkill {
	key := cacheKey(characterID)

	cached, err := imp.redis.Get(ctx, key).Bytes()
	if err == nil {
		var skills []TrainedSkill
		if err := json.Unmarshal(cached, &skills); err == nil {
			imp.log.Debug("skill cache hit", "characterID", characterID)
			return skills
		}
		imp.log.Warn("failed to unmarshal cached skills", "error", err)
	}

	skills, err := imp.fetchFromESI(ctx, characterID, accessToken)
	if err != nil {
		imp.log.Error("ESI skills fetch failed - keeping existing skill levels", "error", err, "characterID", characterID)
		return nil
	}

	if data, err := json.Marshal(skills); err == nil {
		if err := imp.redis.Set(ctx, key, data, ttl).Err(); err != nil {
			imp.log.Warn("failed to cache skills", "error", err)
		}
	}

	imp.log.Info("skills fetched from ESI and cached", "characterID", characterID, "count", len(skills))
	return skills
}

func (imp *Importer) fetchFromESI(ctx context.Context, characterID int, accessToken string) ([]TrainedSkill, error) {
	if err := imp.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	endpoint := fmt.Sprintf("/v4/characters/%d/skills/", characterID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://esi.evetech.net"+endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := imp.esiClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("esi request failed: %w", err)
	}
	defer resp.Body.Close()

	metrics.ESIRequestsTotal.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, fmt.Errorf("unauthorized: status %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("ESI returned status %d: %s", resp.StatusCode, string(body))
	}

	var parsed esiSkillsResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parse skills response: %w", err)
	}
	return parsed.Skills, nil
}

// Apply installs skills into ctx, one SetSkillLevel call per trained
// skill. Skills absent from the list keep the context's default level.
func Apply(ctx *dogma.Context, skills []TrainedSkill) {
	for _, s := range skills {
		ctx.SetSkillLevel(s.SkillID, s.ActiveSkillLevel)
	}
}
