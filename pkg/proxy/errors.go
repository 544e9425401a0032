package proxy

import (
	"context"
	"errors"
	"fmt"

	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/providers"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/proxy/types"
	"github.com/LuthienResearch/luthien-proxy-sub002/pkg/stream"
)

// HandleError maps internal errors to OpenAI-compatible error responses.
// Upstream and policy failures become gateway errors; client mistakes keep
// their field context; everything unrecognized is a generic server error.
func HandleError(err error) *types.ErrorResponse {
	var reqErr *RequestError
	if errors.As(err, &reqErr) {
		return types.NewInvalidRequestError(reqErr.Message, reqErr.Param, reqErr.Code)
	}

	var upstreamErr *providers.UpstreamError
	if errors.As(err, &upstreamErr) {
		switch {
		case upstreamErr.StatusCode == 429:
			return types.NewRateLimitError(fmt.Sprintf("upstream %q rate limited the request", upstreamErr.Provider))
		case upstreamErr.StatusCode >= 400 && upstreamErr.StatusCode < 500:
			return types.NewErrorResponse(
				fmt.Sprintf("upstream %q rejected the request (status %d)", upstreamErr.Provider, upstreamErr.StatusCode),
				types.ErrorTypeBadGateway, "", types.CodeProviderError,
			)
		default:
			return types.NewBadGatewayError(fmt.Sprintf("upstream %q request failed", upstreamErr.Provider))
		}
	}

	var parseErr *providers.ParseError
	if errors.As(err, &parseErr) {
		return types.NewBadGatewayError(fmt.Sprintf("upstream %q returned an unparseable response", parseErr.Provider))
	}

	var streamErr *providers.StreamError
	if errors.As(err, &streamErr) {
		return types.NewBadGatewayError(fmt.Sprintf("upstream %q stream failed", streamErr.Provider))
	}

	var policyErr *stream.PolicyError
	if errors.As(err, &policyErr) {
		return types.NewErrorResponse(
			fmt.Sprintf("policy %q failed in %s", policyErr.Policy, policyErr.Hook),
			types.ErrorTypeServerError, "", types.CodePolicyError,
		)
	}

	var timeoutErr *stream.TimeoutError
	if errors.As(err, &timeoutErr) {
		return types.NewGatewayTimeoutError("stream timed out waiting for upstream output")
	}

	var backpressureErr *stream.BackpressureError
	if errors.As(err, &backpressureErr) {
		return types.NewServerError("client is not consuming the stream fast enough")
	}

	var dropErr *stream.SilentDropError
	if errors.As(err, &dropErr) {
		return types.NewErrorResponse(
			"policy produced no output for this request",
			types.ErrorTypeServerError, "", types.CodePolicyError,
		)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return types.NewGatewayTimeoutError("request timed out")
	}

	return types.NewServerError("an internal error occurred")
}

// TerminationResponse builds the error payload returned when a policy
// terminates a request before any output was delivered.
func TerminationResponse(reason string) *types.ErrorResponse {
	msg := "request terminated by policy"
	if reason != "" {
		msg = fmt.Sprintf("request terminated by policy: %s", reason)
	}
	return types.NewErrorResponse(msg, types.ErrorTypeInvalidRequest, "", types.CodePolicyTerminated)
}
