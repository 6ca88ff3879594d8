// Package crawler implements the quotes crawl engine: the domain records and
// their validation, the error taxonomy, the concurrency governor, the listing
// walker and author resolver, and the retry decorator used around fetchers.
package crawler
