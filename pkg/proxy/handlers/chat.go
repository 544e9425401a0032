package handlers

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/events"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/policy/registry"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/middleware"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/types"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/stream"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/telemetry/metrics"
)

// ChatHandler serves POST /v1/chat/completions. Every request, streaming or
// not, passes through the active policy before output reaches the client.
type ChatHandler struct {
	providers *ProviderSet
	registry  *registry.Registry
	streamCfg stream.Config
	sink      events.Sink
	metrics   *metrics.StreamMetrics
	logger    *slog.Logger
}

// NewChatHandler wires the chat completion handler.
func NewChatHandler(set *ProviderSet, reg *registry.Registry, streamCfg stream.Config, sink events.Sink, m *metrics.StreamMetrics, logger *slog.Logger) *ChatHandler {
	if sink == nil {
		sink = events.NopSink{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ChatHandler{
		providers: set,
		registry:  reg,
		streamCfg: streamCfg,
		sink:      sink,
		metrics:   m,
		logger:    logger,
	}
}

// ServeHTTP implements http.Handler.
func (h *ChatHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if r.Method != http.MethodPost {
		h.writeError(ctx, w, types.NewInvalidRequestError(
			fmt.Sprintf("Method %s not allowed. Use POST instead.", r.Method),
			"", types.CodeInvalidValue,
		))
		return
	}

	chatReq, err := proxy.ParseChatCompletionRequest(r)
	if err != nil {
		h.writeError(ctx, w, proxy.HandleError(err))
		return
	}

	pol := h.registry.Active()
	if pol == nil {
		h.writeError(ctx, w, types.NewServerError("no policy is active"))
		return
	}

	provider, err := h.providers.ForModel(chatReq.Model)
	if err != nil {
		h.writeError(ctx, w, types.NewErrorResponse(
			err.Error(), types.ErrorTypeServiceUnavailable, "model", types.CodeModelNotFound,
		))
		return
	}

	pipeline := stream.NewPipeline(pol, h.streamCfg, h.sink, h.metrics, h.logger)
	neutral := proxy.ToCompletionRequest(chatReq)

	if chatReq.Stream {
		h.handleStream(ctx, w, provider, pipeline, chatReq, neutral)
		return
	}
	h.handleComplete(ctx, w, provider, pipeline, chatReq, neutral)
}

// handleComplete runs the non-streaming path. The upstream response is
// replayed through the policy engine before it is returned.
func (h *ChatHandler) handleComplete(ctx context.Context, w http.ResponseWriter, provider providers.Provider, pipeline *stream.Pipeline, chatReq *types.ChatCompletionRequest, neutral *providers.CompletionRequest) {
	start := time.Now()
	requestID := middleware.GetRequestID(ctx)

	upstream, err := provider.Complete(ctx, neutral)
	if err != nil {
		h.logger.ErrorContext(ctx, "upstream completion failed",
			"request_id", requestID,
			"provider", provider.Name(),
			"model", chatReq.Model,
			"error", err,
		)
		h.writeError(ctx, w, proxy.HandleError(err))
		return
	}

	approved, reason, err := pipeline.ProcessResponse(ctx, upstream)
	if err != nil {
		h.writeError(ctx, w, proxy.HandleError(err))
		return
	}
	if approved == nil {
		h.logger.InfoContext(ctx, "completion terminated by policy",
			"request_id", requestID,
			"model", chatReq.Model,
			"reason", reason,
		)
		h.writeError(ctx, w, proxy.TerminationResponse(reason))
		return
	}

	h.logger.InfoContext(ctx, "completion succeeded",
		"request_id", requestID,
		"provider", provider.Name(),
		"model", chatReq.Model,
		"finish_reason", approved.FinishReason,
		"latency_ms", time.Since(start).Milliseconds(),
	)

	if err := proxy.WriteJSONResponse(w, http.StatusOK, proxy.FormatChatCompletionResponse(approved, chatReq.Model)); err != nil {
		h.logger.ErrorContext(ctx, "failed to write response", "request_id", requestID, "error", err)
	}
}

// handleStream runs the streaming path: upstream chunks flow through the
// policy pipeline and approved output is relayed as SSE.
func (h *ChatHandler) handleStream(ctx context.Context, w http.ResponseWriter, provider providers.Provider, pipeline *stream.Pipeline, chatReq *types.ChatCompletionRequest, neutral *providers.CompletionRequest) {
	start := time.Now()
	requestID := middleware.GetRequestID(ctx)

	reader, err := provider.Stream(ctx, neutral)
	if err != nil {
		h.logger.ErrorContext(ctx, "upstream stream failed to start",
			"request_id", requestID,
			"provider", provider.Name(),
			"model", chatReq.Model,
			"error", err,
		)
		h.writeError(ctx, w, proxy.HandleError(err))
		return
	}
	defer reader.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s := pipeline.Run(ctx, reader)
	responseID := fmt.Sprintf("chatcmpl-%s", s.ID())

	proxy.SetSSEHeaders(w)
	if flusher, ok := w.(http.Flusher); ok {
		flusher.Flush()
	}

	sent := 0
	for chunk := range s.Chunks() {
		if err := proxy.WriteSSEChunk(w, proxy.FormatStreamChunk(chunk, chatReq.Model, responseID)); err != nil {
			h.logger.WarnContext(ctx, "client write failed, cancelling stream",
				"request_id", requestID,
				"stream_id", s.ID(),
				"chunks_sent", sent,
				"error", err,
			)
			cancel()
			for range s.Chunks() {
			}
			break
		}
		sent++
	}

	streamErr := s.Err()
	reason, terminated := s.Terminated()

	switch {
	case streamErr == nil && terminated:
		// Policy stopped the stream after approving some output. The client
		// sees a truncated but well-formed stream.
		h.logger.InfoContext(ctx, "stream terminated by policy",
			"request_id", requestID,
			"stream_id", s.ID(),
			"reason", reason,
			"chunks_sent", sent,
		)
	case streamErr != nil && terminated && isSilentDrop(streamErr):
		// Terminated before anything was approved: surface the termination,
		// not the internal drop diagnosis.
		if err := proxy.WriteSSEError(w, proxy.TerminationResponse(reason)); err != nil {
			h.logger.ErrorContext(ctx, "failed to write SSE error", "request_id", requestID, "error", err)
		}
	case streamErr != nil:
		h.logger.ErrorContext(ctx, "stream failed",
			"request_id", requestID,
			"stream_id", s.ID(),
			"chunks_sent", sent,
			"error", streamErr,
		)
		if err := proxy.WriteSSEError(w, proxy.HandleError(streamErr)); err != nil {
			h.logger.ErrorContext(ctx, "failed to write SSE error", "request_id", requestID, "error", err)
		}
	}

	if err := proxy.WriteSSEDone(w); err != nil {
		h.logger.ErrorContext(ctx, "failed to write SSE done marker", "request_id", requestID, "error", err)
	}

	h.logger.InfoContext(ctx, "stream finished",
		"request_id", requestID,
		"stream_id", s.ID(),
		"provider", provider.Name(),
		"model", chatReq.Model,
		"chunks_sent", sent,
		"latency_ms", time.Since(start).Milliseconds(),
	)
}

func (h *ChatHandler) writeError(ctx context.Context, w http.ResponseWriter, errResp *types.ErrorResponse) {
	if err := proxy.WriteErrorResponse(w, errResp); err != nil {
		h.logger.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

func isSilentDrop(err error) bool {
	var silent *stream.SilentDropError
	return errors.As(err, &silent)
}
