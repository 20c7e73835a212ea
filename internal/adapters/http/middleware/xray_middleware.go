package middleware

import (
	"github.com/aws/aws-xray-sdk-go/xray"
	"github.com/labstack/echo/v4"
)

// XRayMiddleware opens one segment per request and swaps the segment
// context into the request, so the logger's trace enrichment and the
// DynamoDB capture spans attach to it.
func XRayMiddleware(segmentName string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx, seg := xray.BeginSegment(c.Request().Context(), segmentName)
			defer seg.Close(nil)
			c.SetRequest(c.Request().Clone(ctx))
			return next(c)
		}
	}
}
