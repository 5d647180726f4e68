// Package igdb is the games catalog client. It authenticates with Twitch
// client credentials and posts apicalypse queries to the IGDb v4 games
// endpoint.
package igdb
