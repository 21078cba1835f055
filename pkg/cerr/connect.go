package cerr

import (
	"context"

	"connectrpc.com/connect"
)

// streamErrorInterceptor turns errors returned by streaming handlers into
// Connect errors. Only server streams are served, so unary calls and
// clients pass through untouched.
type streamErrorInterceptor struct{}

func NewConvertConnectErrorInterceptor() connect.Interceptor {
	return streamErrorInterceptor{}
}

func (streamErrorInterceptor) WrapUnary(next connect.UnaryFunc) connect.UnaryFunc {
	return next
}

func (streamErrorInterceptor) WrapStreamingClient(next connect.StreamingClientFunc) connect.StreamingClientFunc {
	return next
}

func (streamErrorInterceptor) WrapStreamingHandler(next connect.StreamingHandlerFunc) connect.StreamingHandlerFunc {
	return func(ctx context.Context, conn connect.StreamingHandlerConn) error {
		if err := next(ctx, conn); err != nil {
			return ExtractConnectError(ctx, err)
		}
		return nil
	}
}
