// Package api serves household graphs and workspace variant operations over
// HTTP.
//
// Routes, all under /api/v1/households/:household:
//
//	GET    /graph?variant=live|sandbox   load a graph
//	PUT    /graph?variant=live|sandbox   publish a whole graph
//	POST   /change-requests              submit a graph to the sandbox for review
//	POST   /sandbox/reset                copy live into sandbox
//	POST   /sandbox/apply                promote sandbox to live
//	GET    /diffs                        pending change diffs
//	GET    /audit                        audit log
//	DELETE /workspaces/:variant          delete the sandbox
//	DELETE /                             delete the household
//
// plus /health and /metrics. The acting user is read from the X-Actor-ID
// header. Errors are returned as {"error":{"code","message"}}.
package api
