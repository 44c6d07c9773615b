package apps

import (
	"encoding/json"
	"net/http"

	"serverless-http-adapter/pkg/lambda"

	"github.com/gorilla/mux"
)

// MuxAppLocator is the locator of the gorilla/mux application
const MuxAppLocator = "apps.mux_app"

// pixel is a 1x1 transparent GIF
var pixel = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

func init() {
	lambda.RegisterApplication(MuxAppLocator, func() (http.Handler, error) {
		return NewMuxApp(), nil
	})
}

// NewMuxApp builds the gorilla/mux application
func NewMuxApp() *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":   mux.Vars(r)["id"],
			"link": lambda.ScriptName(r) + r.URL.Path,
		})
	}).Methods(http.MethodGet)

	router.HandleFunc("/pixel.gif", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/gif")
		w.Header().Set("Cache-Control", "no-store")
		_, _ = w.Write(pixel)
	}).Methods(http.MethodGet)

	return router
}
