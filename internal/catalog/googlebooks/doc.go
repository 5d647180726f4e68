// Package googlebooks looks up books in the Google Books API by volume id,
// ISBN, or title.
package googlebooks
