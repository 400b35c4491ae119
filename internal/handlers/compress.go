// internal/handlers/compress.go
package handlers

import (
	"net/http"
	"path"
	"strings"

	"github.com/klauspost/compress/gzhttp"
	"github.com/sirupsen/logrus"
)

// alwaysCompress lists the model and audio assets of the game page. Their
// content types are not on the compressible list, so they are matched by
// extension instead.
var alwaysCompress = map[string]bool{
	".dae": true,
	".mtl": true,
	".obj": true,
	".ogg": true,
}

// CompressHandler gzips responses for clients that accept it.
func CompressHandler(logger *logrus.Logger, next http.Handler) http.Handler {
	byType, err := gzhttp.NewWrapper()
	if err != nil {
		logger.Warnf("gzip disabled: %v", err)
		return next
	}
	anyType, err := gzhttp.NewWrapper(gzhttp.ContentTypeFilter(func(string) bool { return true }))
	if err != nil {
		logger.Warnf("gzip disabled: %v", err)
		return next
	}
	typed, forced := byType(next), anyType(next)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if alwaysCompress[strings.ToLower(path.Ext(r.URL.Path))] {
			forced.ServeHTTP(w, r)
			return
		}
		typed.ServeHTTP(w, r)
	})
}
