package models

import (
	"strings"
)

// Sentinels substituted for any field that cannot be resolved from a source record.
// Downstream consumers match on these exact strings.
const (
	NoName        = "No Event Name"
	NoDate        = "No Date Available"
	NoVenue       = "No Venue Available"
	NoAddress     = "No Address Available"
	NoPostalCode  = "No ZIP Code Available"
	NoGenre       = "No Genre Available"
	NoOrganizer   = "No Organizer Available"
	NoTicketURL   = "No Ticket URL Available"
	NoImageURL    = "No Image Available"
	NoDescription = "No Description Available"
)

// Query is one (city, genre) pair driving a single fetch.
type Query struct {
	City  string `json:"city"`
	Genre string `json:"genre"`
}

// Key returns the dataset key "{city}_{genre}".
func (q Query) Key() string {
	return q.City + "_" + q.Genre
}

// String implements fmt.Stringer.
func (q Query) String() string {
	return q.Genre + " in " + q.City
}

// SourceKind identifies which adapter produced a RawRecord.
type SourceKind string

// Source kinds.
const (
	SourceAPI     SourceKind = "api"
	SourceBrowser SourceKind = "browser"
)

// Browser record fields, as extracted from one listing card.
const (
	CardName     = "name"
	CardDate     = "date"
	CardLocation = "location"
	CardLink     = "link"
)

// RawRecord is an untyped source payload. API records are decoded JSON objects,
// browser records carry the text fragments extracted from one listing card.
type RawRecord map[string]any

// NormalizedEvent is the canonical event shape. Every field is a non-empty string.
type NormalizedEvent struct {
	Name       string `json:"name"`
	Date       string `json:"date"`
	VenueName  string `json:"venueName"`
	Address    string `json:"address"`
	PostalCode string `json:"postalCode"`
	Genre      string `json:"genre"`
	Organizer  string `json:"organizer"`
	TicketURL  string `json:"ticketUrl"`
	ImageURL   string `json:"imageUrl"`
}

// EnrichedEvent is a NormalizedEvent plus generated description and ranked keywords.
type EnrichedEvent struct {
	NormalizedEvent

	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// DedupKey identifies semantically duplicate events.
type DedupKey struct {
	Name  string
	Date  string
	Venue string
}

// Key derives the case-normalized dedup key for the event.
func (e NormalizedEvent) Key() DedupKey {
	return DedupKey{
		Name:  foldKey(e.Name),
		Date:  foldKey(e.Date),
		Venue: foldKey(e.VenueName),
	}
}

// String renders the key in a stable form suitable for storage indexes.
func (k DedupKey) String() string {
	return k.Name + "|" + k.Date + "|" + k.Venue
}

func foldKey(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Columns is the fixed export column order.
var Columns = []string{
	"Name",
	"Date",
	"Venue",
	"Address",
	"ZIP Code",
	"Genre",
	"Organizer",
	"Ticket URL",
	"Image URL",
	"AI Description",
	"Keywords",
}

// Row returns the event's cells in Columns order. Keywords are comma-joined.
func (e EnrichedEvent) Row() []string {
	return []string{
		e.Name,
		e.Date,
		e.VenueName,
		e.Address,
		e.PostalCode,
		e.Genre,
		e.Organizer,
		e.TicketURL,
		e.ImageURL,
		e.Description,
		strings.Join(e.Keywords, ", "),
	}
}

// Dataset is the ordered set of enriched events belonging to one query group.
type Dataset struct {
	Key    string          `json:"key"`
	Query  Query           `json:"query"`
	Events []EnrichedEvent `json:"events"`
}
