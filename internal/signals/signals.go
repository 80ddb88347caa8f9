package signals

import (
	"context"

	"github.com/maniartech/signals"
)

// DataUpdatedData contains data associated with a completed refresh cycle
type DataUpdatedData struct {
	// AddressIDs lists the addresses that were refreshed during the cycle
	AddressIDs []string
	// Success is false when at least one address failed to refresh
	Success bool
}

// AddressAddedData contains data associated with a newly configured address
type AddressAddedData struct {
	AddressID string
}

// TokenSetupData contains data associated with OAuth token setup
type TokenSetupData struct {
	Success bool
}

// Signal definitions using generics
var DataUpdated = signals.New[DataUpdatedData]()
var AddressAdded = signals.New[AddressAddedData]()
var TokenSetup = signals.New[TokenSetupData]()

// EmitDataUpdated emits a signal after a refresh cycle completed
func EmitDataUpdated(ctx context.Context, addressIDs []string, success bool) {
	DataUpdated.Emit(ctx, DataUpdatedData{
		AddressIDs: addressIDs,
		Success:    success,
	})
}

// EmitAddressAdded emits a signal when a new address is configured
func EmitAddressAdded(ctx context.Context, addressID string) {
	AddressAdded.Emit(ctx, AddressAddedData{
		AddressID: addressID,
	})
}

// EmitTokenSetup emits a signal when an OAuth token has been stored
func EmitTokenSetup(ctx context.Context, success bool) {
	TokenSetup.Emit(ctx, TokenSetupData{
		Success: success,
	})
}

// OnDataUpdated registers a handler for refresh completion events
func OnDataUpdated(handler func(ctx context.Context, data DataUpdatedData), key ...string) {
	if len(key) > 0 {
		DataUpdated.AddListener(handler, key[0])
	} else {
		DataUpdated.AddListener(handler)
	}
}

// OnAddressAdded registers a handler for address configuration events
func OnAddressAdded(handler func(ctx context.Context, data AddressAddedData), key ...string) {
	if len(key) > 0 {
		AddressAdded.AddListener(handler, key[0])
	} else {
		AddressAdded.AddListener(handler)
	}
}

// OnTokenSetup registers a handler for token setup events
func OnTokenSetup(handler func(ctx context.Context, data TokenSetupData), key ...string) {
	if len(key) > 0 {
		TokenSetup.AddListener(handler, key[0])
	} else {
		TokenSetup.AddListener(handler)
	}
}
