package middleware

import (
	"net/http"
	"strings"
)

// SkipCompressionForUpgrades wraps a compression middleware so protocol
// upgrade requests bypass it. A WebSocket handshake hijacks the underlying
// connection, which a compressing writer cannot hand over.
func SkipCompressionForUpgrades(compress func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		compressed := compress(next)

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.EqualFold(r.Header.Get("Upgrade"), "websocket") {
				next.ServeHTTP(w, r)
				return
			}
			compressed.ServeHTTP(w, r)
		})
	}
}
