// Package comicvine looks up comic volumes in the ComicVine API.
//
// The API omits themes and issue credits for many volumes, so the client
// also scrapes the volume's public page with goquery: the "Themes" row of the
// details table and the "Most issue credits" list. Scraping runs when the API
// returned no themes or when the caller forces it.
package comicvine
