package proxies

import (
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/proxydesk/proxydesk/internal/api"
	"github.com/proxydesk/proxydesk/internal/quota"
)

func TestMapClaimError(t *testing.T) {
	cases := []struct {
		name string
		in   error
		code int
	}{
		{
			// Asking beyond today's allowance is a bad request, not a
			// conflict: the pool state has nothing to do with it.
			name: "limit exceeded",
			in:   &quota.LimitExceededError{Requested: 6, Remaining: 2},
			code: http.StatusBadRequest,
		},
		{
			name: "invalid amount",
			in:   quota.ErrInvalidAmount,
			code: http.StatusBadRequest,
		},
		{
			name: "in cooldown",
			in:   &InCooldownError{Until: time.Now().Add(time.Hour), Remaining: time.Hour},
			code: http.StatusTooManyRequests,
		},
		{
			name: "insufficient pool",
			in:   &InsufficientError{Requested: 5, Available: 2},
			code: http.StatusConflict,
		},
		{
			name: "contention",
			in:   ErrContention,
			code: http.StatusConflict,
		},
		{
			name: "pool empty",
			in:   ErrPoolEmpty,
			code: http.StatusConflict,
		},
		{
			name: "no staged claim",
			in:   ErrNoStagedClaim,
			code: http.StatusNotFound,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var appErr *api.AppError
			require.True(t, errors.As(mapClaimError(tc.in), &appErr))
			assert.Equal(t, tc.code, appErr.Code)
		})
	}
}

func TestMapClaimErrorPassesThroughUnknown(t *testing.T) {
	boom := errors.New("boom")
	assert.Equal(t, boom, mapClaimError(boom))
}
