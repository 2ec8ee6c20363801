// Package client provides the `boardlog` command-line client.
//
// The CLI talks to a boardlog node's HTTP API to inspect and manage
// document update logs from a terminal. It is primarily intended for
// developers and operators.
//
// Installation
//
//	go install github.com/macrat/markdown-board-sub001/cmd/boardlog@latest
//
// # Address configuration
//
// The HTTP base URL is discovered by the application that embeds the
// commands via a BaseURLFunc. The standalone binary reads BOARDLOG_API and
// defaults to http://127.0.0.1:8080.
//
// Usage
//
//	boardlog append --document pg_readme --data-b64 BASE64_UPDATE
//
//	boardlog read --document pg_readme
//
//	boardlog state --document pg_readme     # merged seed update for a new client
//
//	boardlog stats --document pg_readme
//	boardlog docs                           # list documents with records
//
//	boardlog compact --document pg_readme
//
//	# Pages exist only on the embedded backend
//	boardlog pages create --title "Meeting notes"
//	boardlog pages list
//	boardlog pages delete --id pg_... --confirm
//
// Notes
//
//   - append payloads are opaque CRDT update fragments; --data sends raw
//     bytes, --data-b64 base64.
//   - pages delete removes the page and its entire update log in one
//     transaction; it requires --confirm.
package client
