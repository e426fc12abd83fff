package middleware

import (
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/AnshRaj112/trailhub-backend/internal/auth"
	"github.com/AnshRaj112/trailhub-backend/pkg/clientip"
	"github.com/AnshRaj112/trailhub-backend/pkg/utils"
)

// MessageRateLimit caps message sends per authenticated user at perMinute,
// allowing short bursts of up to perMinute/3 so a quick back-and-forth is not
// throttled. Mount it on the POST message routes behind Authenticate.
func MessageRateLimit(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		perMinute = 30
	}
	burst := perMinute / 3
	if burst < 1 {
		burst = 1
	}
	limiter := newKeyedLimiter(rate.Every(time.Minute/time.Duration(perMinute)), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			key := auth.UserID(r.Context())
			if key == "" {
				key = "ip:" + clientip.RealClientIP(r)
			}
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(perMinute))
			if !limiter.allow(key) {
				w.Header().Set("X-RateLimit-Remaining", "0")
				utils.Error(w, http.StatusTooManyRequests, "You are sending messages too quickly. Please slow down.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
