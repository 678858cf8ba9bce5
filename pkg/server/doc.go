// Package server is the HTTP/WebSocket entry point of the game backend.
//
// Every inbound connection goes through Server.HandleConnection, which decides
// between a WebSocket handoff and HTTP dispatch, resolves the caller's session
// from the PHPSESSID cookie, records session activity and hands the request to
// the first Listener that admits it. Requests no listener admits fall through
// to the next handler.
//
// # Protocol Listener
//
// ProtocolListener speaks the client's legacy wire format:
//
//   - PUT bodies are always zlib-compressed; POST bodies are compressed unless
//     the request carries "requestcompressed: 0". Content-Encoding is ignored.
//   - Responses are compressed with zlib unless the request carries
//     "responsecompressed: 0", in which case the JSON is sent verbatim.
//   - Outputs recognized by a serializer (images, bundles, notifications) are
//     written by that serializer instead.
//   - Every JSON response carries an xxHash64 ETag and a Last-Modified header.
//
// Routes that produce no output get a JSON envelope with error code 404 and
// HTTP status 200, which is what the client expects.
//
// # Errors
//
// Handlers return errors instead of writing them. At the http.Handler
// boundary a body decode failure becomes 400 Bad Request; failures after the
// response has started abort the connection.
package server
