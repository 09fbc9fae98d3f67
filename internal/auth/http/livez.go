package http

import (
	"net/http"
	"time"

	"github.com/aussiebroadwan/otpauth/pkg/authsdk"
	"github.com/aussiebroadwan/otpauth/pkg/clock"
	"github.com/aussiebroadwan/otpauth/pkg/httpx"
)

// LivezHandler godoc
//
//	@Summary		Liveness probe
//	@Description	Always 200 while the process serves HTTP. Dependencies are not checked; see /readyz.
//	@Tags			Health
//	@Produce		json
//	@Success		200	{object}	authsdk.HealthResponse	"status, uptime, version"
//	@Router			/livez [get].
func LivezHandler(clk clock.Clocker, startTime time.Time, version string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.WriteJSON(w, http.StatusOK, authsdk.HealthResponse{
			Status:  "ok",
			Uptime:  uptime(clk, startTime),
			Version: version,
		})
	}
}

// uptime is rounded to the second so probes don't log nanoseconds.
func uptime(clk clock.Clocker, startTime time.Time) string {
	return clk.Now().Sub(startTime).Truncate(time.Second).String()
}
