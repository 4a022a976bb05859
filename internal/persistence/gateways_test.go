package persistence

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGatewayRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	apt := &Apartment{Name: "Home"}
	require.NoError(t, s.AddApartment(ctx, apt))

	gw := &Gateway{
		Model: "ITGW-433", Name: "Hall", Firmware: "1.2.3", Active: true,
		LocalHost: "192.168.1.20", LocalPort: 49880,
		WANHost: "home.example.org", WANPort: 49881,
		SSIDs:        []string{"home", "home-5g"},
		ApartmentIDs: []int64{apt.ID},
	}
	require.NoError(t, s.AddGateway(ctx, gw))

	got, err := s.GetGateway(ctx, gw.ID)
	require.NoError(t, err)
	if diff := cmp.Diff(gw, got, equateEmpty); diff != "" {
		t.Errorf("GetGateway() mismatch (-want +got):\n%s", diff)
	}

	gw.Firmware = "1.3.0"
	gw.SSIDs = []string{"guest"}
	require.NoError(t, s.UpdateGateway(ctx, gw))
	got, err = s.GetGateway(ctx, gw.ID)
	require.NoError(t, err)
	assert.Equal(t, "1.3.0", got.Firmware)
	assert.Equal(t, []string{"guest"}, got.SSIDs)

	require.NoError(t, s.EnableGateway(ctx, gw.ID, false))
	active, err := s.ListActiveGateways(ctx)
	require.NoError(t, err)
	assert.Empty(t, active)

	all, err := s.ListGateways(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestAddGatewayDuplicateAddress(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	existing := &Gateway{Model: "ITGW-433", LocalHost: "192.168.1.20", LocalPort: 49880,
		WANHost: "home.example.org", WANPort: 49880}
	require.NoError(t, s.AddGateway(ctx, existing))
	require.NoError(t, s.EnableGateway(ctx, existing.ID, false))

	tests := []struct {
		name    string
		gateway Gateway
		wantDup bool
	}{
		{
			name:    "same local address",
			gateway: Gateway{Model: "BRGW", LocalHost: "192.168.1.20", LocalPort: 49880},
			wantDup: true,
		},
		{
			name:    "same WAN address",
			gateway: Gateway{Model: "BRGW", LocalHost: "10.0.0.2", LocalPort: 1, WANHost: "home.example.org", WANPort: 49880},
			wantDup: true,
		},
		{
			name:    "same host other port",
			gateway: Gateway{Model: "BRGW", LocalHost: "192.168.1.20", LocalPort: 49881},
		},
		{
			name:    "WAN host matches local host",
			gateway: Gateway{Model: "BRGW", WANHost: "192.168.1.20", WANPort: 49880},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := tt.gateway
			err := s.AddGateway(ctx, &g)
			if !tt.wantDup {
				require.NoError(t, err)
				require.NoError(t, s.DeleteGateway(ctx, g.ID))
				return
			}

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrGatewayExists)
			var exists *GatewayExistsError
			require.True(t, errors.As(err, &exists))
			assert.Equal(t, existing.ID, exists.ID)
			assert.False(t, exists.Active)
			assert.Zero(t, g.ID)
		})
	}

	gateways, err := s.ListGateways(ctx)
	require.NoError(t, err)
	assert.Len(t, gateways, 1)
}

func TestUpdateGatewayAddress(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	a := &Gateway{Model: "ITGW-433", Active: true, LocalHost: "192.168.1.20", LocalPort: 49880}
	b := &Gateway{Model: "ITGW-433", LocalHost: "192.168.1.21", LocalPort: 49880}
	require.NoError(t, s.AddGateway(ctx, a))
	require.NoError(t, s.AddGateway(ctx, b))

	// Keeping its own address is fine.
	a.Name = "Hall"
	require.NoError(t, s.UpdateGateway(ctx, a))

	b.LocalHost = a.LocalHost
	err := s.UpdateGateway(ctx, b)
	var exists *GatewayExistsError
	require.ErrorAs(t, err, &exists)
	assert.Equal(t, a.ID, exists.ID)
	assert.True(t, exists.Active)

	got, err := s.GetGateway(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.21", got.LocalHost)
}

func TestGatewayExistsErrorIsNotLoggedAsError(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	logger := &recordingLogger{}
	s.SetLogger(logger)

	g := Gateway{Model: "ITGW-433", LocalHost: "192.168.1.20", LocalPort: 49880}
	require.NoError(t, s.AddGateway(ctx, &g))
	dup := g
	dup.ID = 0
	require.ErrorIs(t, s.AddGateway(ctx, &dup), ErrGatewayExists)
	assert.Zero(t, logger.errors)
}
