package server

import "net/http"

// requestRecord is logged as REQUEST=<json> on the requests logger.
type requestRecord struct {
	Method string        `json:"Method"`
	Output requestOutput `json:"output"`
}

type requestOutput struct {
	URL     string      `json:"Url"`
	Headers http.Header `json:"Headers"`
}

// responseRecord is logged as RESPONSE=<json> on the requests logger.
type responseRecord struct {
	Method   string `json:"Method"`
	JSONData string `json:"jsonData"`
}
