package handlers

// Error Codes
const (
	ErrCodeInvalidRequest    = "invalid_request"
	ErrCodeMissingQuery      = "missing_query"
	ErrCodeNoAddressesFound  = "no_addresses_found"
	ErrCodeUnknownAddress    = "unknown_address"
	ErrCodeCannotConnect     = "cannot_connect"
	ErrCodeSearchFailed      = "search_failed"
	ErrCodeRefreshFailed     = "refresh_failed"
	ErrCodeInvalidInterval   = "invalid_interval"
	ErrCodeFailedSaveAddress = "failed_save_address"
	ErrCodeAuthRequired      = "authentication_required"
	ErrCodeCalendarError     = "calendar_error"
	ErrCodeUnknown           = "unknown_error"
)

// ErrorMessages maps error codes to user-friendly messages
var ErrorMessages = map[string]string{
	ErrCodeInvalidRequest:    "Invalid request.",
	ErrCodeMissingQuery:      "A search query is required.",
	ErrCodeNoAddressesFound:  "No addresses matched the search.",
	ErrCodeUnknownAddress:    "The address is not configured.",
	ErrCodeCannotConnect:     "Could not reach Renovasjonsportal. Please try again later.",
	ErrCodeSearchFailed:      "Address search failed. Please try again.",
	ErrCodeRefreshFailed:     "Failed to refresh the collection schedule.",
	ErrCodeInvalidInterval:   "Update interval must be between 1 and 168 hours.",
	ErrCodeFailedSaveAddress: "Failed to save the address.",
	ErrCodeAuthRequired:      "Authentication required. Please connect Google Calendar first.",
	ErrCodeCalendarError:     "Failed to talk to Google Calendar. Please try authenticating again.",
	ErrCodeUnknown:           "An unknown error occurred.",
}

// GetErrorMessage returns the message for a given error code
func GetErrorMessage(code string) string {
	if msg, ok := ErrorMessages[code]; ok {
		return msg
	}
	return ErrorMessages[ErrCodeUnknown]
}
