package sink

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/Ryan4n6/MASS-Trap/pkg/domain"
)

func TestLoggingSinkDoesNotError(t *testing.T) {
	s := NewLoggingSink(zerolog.Nop())
	require.NoError(t, s.BroadcastState(Snapshot{Role: domain.RoleFinish, RaceState: domain.Armed}))
	require.NoError(t, s.PlayCue(CueArmed))
}

func TestHTTPSinkServesLatestSnapshot(t *testing.T) {
	s := NewHTTPSink(zerolog.Nop())
	require.NoError(t, s.BroadcastState(Snapshot{
		Role:      domain.RoleFinish,
		RaceState: domain.Finished,
		Connected: true,
		Car:       "Twin Mill",
	}))

	srv := httptest.NewServer(s.router)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/state")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Equal(t, domain.RoleFinish, got.Role)
	require.Equal(t, "Twin Mill", got.Car)
}
