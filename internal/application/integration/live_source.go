package integration

import (
	"context"
	"fmt"

	"github.com/mgastron/mvgtms-sub000/internal/domain/integration"
	"github.com/mgastron/mvgtms-sub000/internal/domain/shipment"
)

// TrackerResolver returns the live tracker of a provider.
type TrackerResolver interface {
	LiveTracker(provider shipment.Provider) (integration.LiveTracker, error)
}

// LiveSource reads live-tracked shipments on behalf of a client, going
// through the vault for every call.
type LiveSource struct {
	vault    *CredentialVault
	trackers TrackerResolver
}

// NewLiveSource creates a new live shipment source
func NewLiveSource(vault *CredentialVault, trackers TrackerResolver) *LiveSource {
	return &LiveSource{vault: vault, trackers: trackers}
}

// FetchDraft fetches and normalizes a live shipment for client.
func (s *LiveSource) FetchDraft(ctx context.Context, client *integration.Client, provider shipment.Provider, shipmentID string) (*shipment.Draft, error) {
	tracker, link, err := s.resolve(client, provider)
	if err != nil {
		return nil, err
	}

	var raw integration.RawOrder
	err = s.vault.Do(ctx, client.ID, provider, func(ctx context.Context, token string) error {
		var fetchErr error
		raw, fetchErr = tracker.FetchShipment(ctx, link, token, shipmentID)
		return fetchErr
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch live shipment %s: %w", shipmentID, err)
	}
	return tracker.Normalize(raw, client)
}

// FetchStatus returns the canonical status of a live shipment.
func (s *LiveSource) FetchStatus(ctx context.Context, client *integration.Client, provider shipment.Provider, shipmentID string) (shipment.Status, error) {
	tracker, link, err := s.resolve(client, provider)
	if err != nil {
		return "", err
	}

	var status shipment.Status
	err = s.vault.Do(ctx, client.ID, provider, func(ctx context.Context, token string) error {
		var fetchErr error
		status, fetchErr = tracker.FetchStatus(ctx, link, token, shipmentID)
		return fetchErr
	})
	return status, err
}

func (s *LiveSource) resolve(client *integration.Client, provider shipment.Provider) (integration.LiveTracker, *integration.ProviderLink, error) {
	tracker, err := s.trackers.LiveTracker(provider)
	if err != nil {
		return nil, nil, err
	}
	link := client.Link(provider)
	if link == nil {
		return nil, nil, integration.ErrLinkNotFound
	}
	return tracker, link, nil
}
