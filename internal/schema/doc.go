// Package schema maps logical record fields onto destination property ids.
//
// Each target declares one or more databases. A database names the property
// id for every field it stores, the properties holding external ids, and an
// optional per-field merge behavior. Validate checks the mapping against the
// live destination before a run starts; Map turns a fetched catalog record
// into property values shaped for the destination's column types.
package schema
