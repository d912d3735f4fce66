// Package client implements the [OperationHelper], which signs, throttles,
// and executes operations against the product advertising API.
//
// # Building a Helper
//
// Use [Build] with a [Config] and optional functional options:
//
//	h, err := client.Build(client.Config{
//		AWSID:                "AKID",
//		AWSSecret:            "secret",
//		AssocID:              "tag-20",
//		Locale:               "UK",
//		MaxRequestsPerSecond: 1,
//		RequestTimeout:       5 * time.Second,
//	}, client.WithLogger(logger))
//
// Missing identity fields fail with a [*ConfigurationError] before any
// request is made.
//
// # Executing Operations
//
// [OperationHelper.Execute] blocks until the call completes and returns a
// [Response] holding the parsed tree and the raw body:
//
//	resp, err := h.Execute(ctx, "ItemLookup", signer.Params{"ItemId": "B00008OE6I"}, nil)
//
// An optional [Callback] observes the same outcome. It exists for callers
// that prefer notification over return values; both always agree.
//
// [OperationHelper.ExecuteAsync] returns a [throttle.Result] immediately.
// All calls sharing one helper share its rate limit and are dispatched in
// submission order.
//
// # Errors
//
// Failures are reported as [*ConfigurationError], [*NetworkError] (including
// timeouts, see [NetworkError.Timeout]) or [*ParseError], which always
// carries the raw body. Nothing is retried.
//
// # Parsers
//
// Config.Parser selects the backend, "xml-tree" (default) or "xml-to-json".
// See [github.com/adamwoolhether/apac/client/parser].
package client
