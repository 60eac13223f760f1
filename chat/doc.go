// Package chat contains the monitoring core: the poller, the query engine,
// and the session controller.
//
// It provides three entrypoints:
//   - Poller: a background loop that pulls batches of chat events from a
//     Source at a fixed interval, normalizes them, and pushes them into a
//     bounded buffer until the stream ends, the connection is lost, or a
//     stop is requested.
//   - Search / SearchAuthor: substring and exact-author lookups over an
//     immutable buffer snapshot, used to tell whether a message ever
//     reached public chat.
//   - Controller: orchestrates one monitoring session at a time
//     (StartSession, CheckNow, EndSession) and publishes poller state
//     transitions on a subscribable status stream.
//
// The package opens no network connections itself. Concrete feeds implement
// the Source interface; see the youtube and twitch packages.
package chat
