package telephony

import (
	"crypto/hmac"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base64"
	"net/http"
	"net/url"
	"sort"

	"github.com/Newrona-pi/Twilio-INPUT/pkg/logger"

	"github.com/gin-gonic/gin"
)

const signatureHeader = "X-Twilio-Signature"

// ValidateSignature checks the X-Twilio-Signature scheme: HMAC-SHA1 over the
// full callback URL concatenated with every POST parameter name+value in
// lexicographic order, base64 encoded.
// Ref: https://www.twilio.com/docs/usage/security#validating-requests
func ValidateSignature(authToken, fullURL string, postForm url.Values, signature string) bool {
	if authToken == "" || signature == "" {
		return false
	}

	keys := make([]string, 0, len(postForm))
	for k := range postForm {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	mac := hmac.New(sha1.New, []byte(authToken))
	mac.Write([]byte(fullURL))
	for _, k := range keys {
		// Twilio signs only the first value of repeated parameters.
		mac.Write([]byte(k))
		if vs := postForm[k]; len(vs) > 0 {
			mac.Write([]byte(vs[0]))
		}
	}
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return subtle.ConstantTimeCompare([]byte(want), []byte(signature)) == 1
}

// RequireSignature validates webhook authenticity before any handler runs.
// baseURL is the externally reachable origin (scheme + host) Twilio was
// configured with; the request URI is appended to rebuild the signed URL.
//
// With an empty authToken the middleware is a pass-through, which keeps local
// development usable; production config requires the token.
func RequireSignature(authToken, baseURL string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if authToken == "" {
			c.Next()
			return
		}

		if err := c.Request.ParseForm(); err != nil {
			c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid form"})
			return
		}

		fullURL := baseURL + c.Request.URL.RequestURI()
		sig := c.GetHeader(signatureHeader)
		if !ValidateSignature(authToken, fullURL, c.Request.PostForm, sig) {
			logger.FromGin(c).Warn("webhook signature rejected", "path", c.Request.URL.Path)
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid signature"})
			return
		}
		c.Next()
	}
}
