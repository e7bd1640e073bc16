// Package server exposes the pipeline over a single RPC-style HTTP
// endpoint. Requests carry a "type" field selecting the operation plus a
// flat parameter map merged from the query string and the JSON body; every
// response is wrapped in a {success, data|error, timestamp} envelope.
package server
