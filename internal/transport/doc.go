// Package transport fetches pages over HTTP for the crawler.
//
// A Client wraps an http.Client with the settings every fetch shares: a
// User-Agent, a response body limit, an optional SOCKS5 proxy and per-host
// headers and cookies. Fetch failures are reported as *model.FetchError so
// the crawl engine can classify them without inspecting transport details.
package transport
