// Package batch executes many HTTP requests bundled in one multipart/mixed
// envelope.
//
// A Parser turns the envelope into independent sub-requests, an Executor
// dispatches them sequentially or concurrently, and a Composer writes the
// responses back in request order. Handler ties the three together and is
// mounted as an ordinary action.
package batch
