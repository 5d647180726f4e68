// Package tmdb is the movies catalog client for The Movie Database API.
package tmdb
