package middleware

import (
	"net/http"
	"strings"

	"github.com/deliajin33/stablecoin/pkg/logger"
)

const (
	MerchantIDHeader = "X-Merchant-Id"
	maxMerchantIDLen = 64
)

// MerchantContext lifts the caller's merchant identity from X-Merchant-Id into
// the request context. Identity is asserted by the fronting gateway; this
// service does not authenticate it. Missing or oversized values leave the
// context untouched so handlers can decide whether a merchant is required.
func MerchantContext(logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			merchantID := strings.TrimSpace(r.Header.Get(MerchantIDHeader))
			if merchantID == "" || len(merchantID) > maxMerchantIDLen {
				next.ServeHTTP(w, r)
				return
			}
			ctx := WithMerchantID(r.Context(), merchantID)
			if logg != nil {
				ctx = logg.WithMerchantID(ctx, merchantID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
