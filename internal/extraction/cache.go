package extraction

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// DefaultSystemInstruction is sent with every extraction request.
const DefaultSystemInstruction = "Tu es un assistant français. Réponds UNIQUEMENT en français avec des réponses courtes et précises. Ne jamais utiliser l'anglais. " +
	"Tu es un expert en extraction de données. Il va t'etre passé du text non structuré, et tu dois le convertir dans la structure donnée. " +
	"Si un nombre n'est pas mentionné, répond 0"

// Service performs one structured extraction call.
type Service interface {
	Invoke(ctx context.Context, systemInstruction, taskInstruction string, schema OutputSchema) (json.RawMessage, error)
}

// Cache answers extraction tasks from a Store and calls the Service only on misses.
type Cache struct {
	service Service
	store   Store
	system  string
	logger  *slog.Logger
}

// Option tunes a single Extract call.
type Option func(*callOptions)

type callOptions struct {
	forceRefresh bool
}

// WithForceRefresh skips the cache lookup; the fresh result is still stored.
func WithForceRefresh() Option {
	return func(o *callOptions) {
		o.forceRefresh = true
	}
}

// NewCache wires the extraction service with its store. An empty system
// instruction selects DefaultSystemInstruction.
func NewCache(service Service, store Store, systemInstruction string, logger *slog.Logger) *Cache {
	if strings.TrimSpace(systemInstruction) == "" {
		systemInstruction = DefaultSystemInstruction
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Cache{
		service: service,
		store:   store,
		system:  systemInstruction,
		logger:  logger,
	}
}

// ExtractField resolves field by identifier. Unknown fields are not an error:
// they yield an unresolved result and no service call.
func (c *Cache) ExtractField(ctx context.Context, field, contextText string, opts ...Option) (Result, error) {
	task, ok := ParseTask(field)
	if !ok {
		c.logger.Warn("no extraction task registered for field", "field", field)
		return Result{Field: field, Unresolved: true}, nil
	}
	return c.Extract(ctx, task, contextText, opts...)
}

// Extract returns the typed value of task for contextText.
func (c *Cache) Extract(ctx context.Context, task Task, contextText string, opts ...Option) (Result, error) {
	if !task.Valid() {
		c.logger.Warn("unknown extraction task", "task", int(task))
		return Result{Field: task.ID(), Unresolved: true}, nil
	}

	var o callOptions
	for _, opt := range opts {
		opt(&o)
	}

	shape := task.Shape()
	if strings.TrimSpace(contextText) == "" {
		return shape.zero(task.ID()), nil
	}

	prompt := task.Render(contextText)
	key := Key(task, prompt)

	if !o.forceRefresh {
		if raw, ok := c.store.Get(key); ok {
			res, _, err := shape.decode(task.ID(), raw)
			if err != nil {
				return Result{}, fmt.Errorf("cached %s entry %s: %w", task, key[:8], err)
			}
			c.logger.Debug("cache hit", "task", task.ID(), "hash", key[:8])
			return res, nil
		}
	}

	if c.service == nil {
		return Result{}, errors.New("extraction service is not configured")
	}

	c.logger.Debug("cache miss, calling extraction service", "task", task.ID(), "hash", key[:8], "force", o.forceRefresh)
	raw, err := c.service.Invoke(ctx, c.system, prompt, shape.Schema())
	if err != nil {
		return Result{}, fmt.Errorf("extract %s: %w", task, err)
	}

	res, canonical, err := shape.decode(task.ID(), raw)
	if err != nil {
		return Result{}, fmt.Errorf("extract %s: %w", task, err)
	}

	if err := c.store.Put(key, canonical); err != nil {
		return Result{}, fmt.Errorf("store %s result: %w", task, err)
	}
	return res, nil
}

// Key derives the cache key from the task identifier and the rendered prompt.
func Key(task Task, renderedPrompt string) string {
	h := sha256.New()
	h.Write([]byte(task.ID()))
	h.Write([]byte{0})
	h.Write([]byte(renderedPrompt))
	return hex.EncodeToString(h.Sum(nil))
}
