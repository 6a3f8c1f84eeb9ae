package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/univhub/timetable-engine/internal/models"
)

// cacheObserver receives cache hit/miss telemetry. Implemented by the
// metrics service; nil disables instrumentation.
type cacheObserver interface {
	RecordCacheOperation(hit bool, duration time.Duration)
}

// CachedCatalog is a read-through Redis decorator over the catalog
// repository. TTL 0 disables expiry; the engine tolerates eventual
// consistency across reads within one request.
type CachedCatalog struct {
	inner   *CatalogRepository
	client  *redis.Client
	ttl     time.Duration
	logger  *zap.Logger
	metrics cacheObserver
}

// NewCachedCatalog wraps a catalog repository with a Redis cache. A nil
// client degrades to direct reads.
func NewCachedCatalog(inner *CatalogRepository, client *redis.Client, ttl time.Duration, logger *zap.Logger, metrics cacheObserver) *CachedCatalog {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CachedCatalog{inner: inner, client: client, ttl: ttl, logger: logger, metrics: metrics}
}

func (c *CachedCatalog) lookup(ctx context.Context, key string, dest interface{}, load func() (interface{}, error)) error {
	start := time.Now()
	if c.client != nil {
		raw, err := c.client.Get(ctx, key).Bytes()
		if err == nil {
			if unmarshalErr := json.Unmarshal(raw, dest); unmarshalErr == nil {
				c.observe(true, time.Since(start))
				return nil
			}
			c.logger.Warn("catalog cache entry corrupt", zap.String("key", key))
		} else if err != redis.Nil {
			c.logger.Warn("catalog cache read failed", zap.String("key", key), zap.Error(err))
		}
	}
	c.observe(false, time.Since(start))

	value, err := load()
	if err != nil {
		return err
	}

	payload, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal catalog value for %s: %w", key, err)
	}
	if err := json.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("copy catalog value for %s: %w", key, err)
	}

	if c.client != nil {
		if err := c.client.Set(ctx, key, payload, c.ttl).Err(); err != nil {
			c.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return nil
}

func (c *CachedCatalog) observe(hit bool, duration time.Duration) {
	if c.metrics != nil {
		c.metrics.RecordCacheOperation(hit, duration)
	}
}

func (c *CachedCatalog) Group(ctx context.Context, id string) (*models.Group, error) {
	var group models.Group
	err := c.lookup(ctx, "catalog:group:"+id, &group, func() (interface{}, error) {
		return c.inner.Group(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &group, nil
}

func (c *CachedCatalog) Teacher(ctx context.Context, id string) (*models.Teacher, error) {
	var teacher models.Teacher
	err := c.lookup(ctx, "catalog:teacher:"+id, &teacher, func() (interface{}, error) {
		return c.inner.Teacher(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &teacher, nil
}

func (c *CachedCatalog) Room(ctx context.Context, id string) (*models.Room, error) {
	var room models.Room
	err := c.lookup(ctx, "catalog:room:"+id, &room, func() (interface{}, error) {
		return c.inner.Room(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &room, nil
}

func (c *CachedCatalog) Subject(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	err := c.lookup(ctx, "catalog:subject:"+id, &subject, func() (interface{}, error) {
		return c.inner.Subject(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &subject, nil
}

func (c *CachedCatalog) Student(ctx context.Context, id string) (*models.Student, error) {
	var student models.Student
	err := c.lookup(ctx, "catalog:student:"+id, &student, func() (interface{}, error) {
		return c.inner.Student(ctx, id)
	})
	if err != nil {
		return nil, err
	}
	return &student, nil
}

func (c *CachedCatalog) GroupDepartment(ctx context.Context, groupID string) (string, error) {
	var departmentID string
	err := c.lookup(ctx, "catalog:group-department:"+groupID, &departmentID, func() (interface{}, error) {
		return c.inner.GroupDepartment(ctx, groupID)
	})
	if err != nil {
		return "", err
	}
	return departmentID, nil
}

func (c *CachedCatalog) GroupIDsByDepartment(ctx context.Context, departmentID string) ([]string, error) {
	var ids []string
	err := c.lookup(ctx, "catalog:department-groups:"+departmentID, &ids, func() (interface{}, error) {
		return c.inner.GroupIDsByDepartment(ctx, departmentID)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *CachedCatalog) GroupIDsBySpecialty(ctx context.Context, specialtyID string) ([]string, error) {
	var ids []string
	err := c.lookup(ctx, "catalog:specialty-groups:"+specialtyID, &ids, func() (interface{}, error) {
		return c.inner.GroupIDsBySpecialty(ctx, specialtyID)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

func (c *CachedCatalog) GroupIDsByLevel(ctx context.Context, levelID string) ([]string, error) {
	var ids []string
	err := c.lookup(ctx, "catalog:level-groups:"+levelID, &ids, func() (interface{}, error) {
		return c.inner.GroupIDsByLevel(ctx, levelID)
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}
