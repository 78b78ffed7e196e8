// Package gmail lists Google Scholar alert messages through the Gmail API.
//
// Source builds the query "from:<sender> after:<unix seconds>", pages
// through matching message ids, and fetches each message in full. The body
// is the first text/html part of the MIME tree (text/plain as a fallback);
// the timestamp is internalDate, or the Date header when that is missing.
//
// Authentication uses the installed-app OAuth flow: credentials.json holds
// the client secret and token.json the user token. Authorize runs the
// console flow; HTTPClient loads the stored token and writes it back when
// it is refreshed.
package gmail
