// Package errors provides coded, actionable errors for the server's startup
// path: loading http.json, opening the activity and file stores, and binding
// the listening socket.
//
// Each code (e.g. "E102") maps to a category, a short message and a longer
// explanation. Call sites add the specifics:
//
//	err := errors.New("E102").
//	    WithDetail(`unexpected "}" at offset 41`).
//	    WithSuggestion("Check http.json for a trailing comma").
//	    Wrap(parseErr)
//
//	errors.PrintError(err)
//	// ERROR E102: Invalid config JSON
//	//
//	//   unexpected "}" at offset 41
//	//
//	//   Hint: Check http.json for a trailing comma
//
// Request-path failures do not use this package; they are sentinel errors in
// package server.
package errors
