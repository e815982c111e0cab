package handlers

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"seqgen/internal/domain/sequence"
	"seqgen/internal/infrastructure/http/v1/dto"
)

// ConfigReader is the read side used on the hot generation path. Satisfied by
// both the repository and the TTL config cache.
type ConfigReader interface {
	Get(ctx context.Context, scopeID, name string) (sequence.Config, error)
}

// Invalidator drops cached configs after administrative writes.
type Invalidator interface {
	Invalidate(scopeID, name string)
}

// SequenceHandler exposes the generation engine over HTTP.
type SequenceHandler struct {
	*BaseHandler
	svc        *sequence.Service
	repo       sequence.ConfigRepository
	reader     ConfigReader
	invalidate Invalidator
}

// NewSequenceHandler creates the handler. reader may be a cache wrapping repo;
// pass repo itself to disable caching. invalidate may be nil.
func NewSequenceHandler(base *BaseHandler, svc *sequence.Service, repo sequence.ConfigRepository, reader ConfigReader, invalidate Invalidator) *SequenceHandler {
	if reader == nil {
		reader = repo
	}
	return &SequenceHandler{
		BaseHandler: base,
		svc:         svc,
		repo:        repo,
		reader:      reader,
		invalidate:  invalidate,
	}
}

// Provision handles POST /sequences.
func (h *SequenceHandler) Provision(c *gin.Context) {
	var req dto.ProvisionRequest
	if !h.BindJSON(c, &req) {
		return
	}

	cfg := req.Config(h.GetScopeID(c))
	if err := h.svc.Provision(c.Request.Context(), cfg); err != nil {
		h.Error(c, err)
		return
	}

	h.Created(c, dto.NewSequenceResponse(cfg))
}

// List handles GET /sequences.
func (h *SequenceHandler) List(c *gin.Context) {
	configs, err := h.repo.List(c.Request.Context(), h.GetScopeID(c))
	if err != nil {
		h.Error(c, err)
		return
	}

	items := make([]dto.SequenceResponse, 0, len(configs))
	for _, cfg := range configs {
		items = append(items, dto.NewSequenceResponse(cfg))
	}
	h.OK(c, dto.ListResponse{Items: items, Total: len(items)})
}

// Get handles GET /sequences/:name.
func (h *SequenceHandler) Get(c *gin.Context) {
	cfg, err := h.repo.Get(c.Request.Context(), h.GetScopeID(c), c.Param("name"))
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewSequenceResponse(cfg))
}

// Update handles PUT /sequences/:name.
func (h *SequenceHandler) Update(c *gin.Context) {
	var req dto.UpdateRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	scopeID := h.GetScopeID(c)
	name := c.Param("name")

	cfg, err := h.repo.Get(ctx, scopeID, name)
	if err != nil {
		h.Error(c, err)
		return
	}

	cfg.Pattern = req.Pattern
	cfg.ResetPeriod = sequence.ResetPeriod(req.ResetPeriod)
	cfg.Padding = req.Padding
	cfg.StepSize = req.StepSize
	cfg.ResetLimit = req.ResetLimit
	if req.Enabled != nil {
		cfg.Enabled = *req.Enabled
	}
	if err := h.svc.ValidateConfig(cfg); err != nil {
		h.Error(c, err)
		return
	}

	if err := h.repo.Save(ctx, cfg); err != nil {
		h.Error(c, err)
		return
	}
	h.dropCached(scopeID, name)

	h.OK(c, dto.NewSequenceResponse(cfg))
}

// Generate handles POST /sequences/:name/generate.
func (h *SequenceHandler) Generate(c *gin.Context) {
	var req dto.GenerateRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	cfg, err := h.reader.Get(ctx, h.GetScopeID(c), c.Param("name"))
	if err != nil {
		h.Error(c, err)
		return
	}

	n, err := h.svc.Generate(ctx, cfg, sequence.Context(req.Context), time.Now().UTC())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewGeneratedResponse(n))
}

// Preview handles POST /sequences/:name/preview.
func (h *SequenceHandler) Preview(c *gin.Context) {
	var req dto.GenerateRequest
	if c.Request.ContentLength > 0 && !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	cfg, err := h.reader.Get(ctx, h.GetScopeID(c), c.Param("name"))
	if err != nil {
		h.Error(c, err)
		return
	}

	n, err := h.svc.Preview(ctx, cfg, sequence.Context(req.Context), time.Now().UTC())
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.NewGeneratedResponse(n))
}

// GetCounter handles GET /sequences/:name/counter.
func (h *SequenceHandler) GetCounter(c *gin.Context) {
	ctx := c.Request.Context()
	cfg, err := h.repo.Get(ctx, h.GetScopeID(c), c.Param("name"))
	if err != nil {
		h.Error(c, err)
		return
	}

	st, err := h.svc.Peek(ctx, cfg)
	if err != nil {
		h.Error(c, err)
		return
	}
	h.OK(c, dto.CounterResponse{Value: st.Value, LastResetAt: st.LastResetAt})
}

// SetCounter handles PUT /sequences/:name/counter.
func (h *SequenceHandler) SetCounter(c *gin.Context) {
	var req dto.SetCounterRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	cfg, err := h.repo.Get(ctx, h.GetScopeID(c), c.Param("name"))
	if err != nil {
		h.Error(c, err)
		return
	}

	if err := h.svc.SetCounter(ctx, cfg, *req.Value); err != nil {
		h.Error(c, err)
		return
	}
	h.NoContent(c)
}

// SetEnabled handles PUT /sequences/:name/enabled.
func (h *SequenceHandler) SetEnabled(c *gin.Context) {
	var req dto.SetEnabledRequest
	if !h.BindJSON(c, &req) {
		return
	}

	ctx := c.Request.Context()
	scopeID := h.GetScopeID(c)
	name := c.Param("name")

	if err := h.repo.SetEnabled(ctx, scopeID, name, *req.Enabled); err != nil {
		h.Error(c, err)
		return
	}
	h.dropCached(scopeID, name)

	h.NoContent(c)
}

func (h *SequenceHandler) dropCached(scopeID, name string) {
	if h.invalidate != nil {
		h.invalidate.Invalidate(scopeID, name)
	}
}
