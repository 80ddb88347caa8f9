// Package constants provides shared constants for the renovasjon-bridge application
package constants

// BridgeIdentifier is the unique identifier used to mark events and entities created by this application
const BridgeIdentifier = "Renovasjon Bridge"

// DefaultBaseURL is the public Renovasjonsportal calendar API
const DefaultBaseURL = "https://kalender.renovasjonsportal.no/api"
